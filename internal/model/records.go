// Package model defines the normalized records and shared value types.
package model

import "time"

// Unspecified is the bucket key used when a branch, product or worker is missing.
const Unspecified = "unspecified"

// DealStatus is the canonical outcome of a deal-system entry.
type DealStatus string

const (
	DealApproved    DealStatus = "approved"
	DealRejected    DealStatus = "rejected"
	DealPending     DealStatus = "pending"
	DealUnspecified DealStatus = "unspecified"
)

// ProductActivity is one product block of a daily activity report.
type ProductActivity struct {
	Product          string  `json:"product_name"`
	CallCount        float64 `json:"call_count"`
	CallHours        float64 `json:"call_hours"`
	ReceptionBlocked float64 `json:"reception_blocked"`
	NoContact        float64 `json:"no_contact"`
	Disconnects      float64 `json:"disconnects"`
	ContactConnected float64 `json:"contact_connected"`
	ContactBlocked   float64 `json:"contact_blocked"`
	AppointmentsWon  float64 `json:"appointments_won"`
}

// ActivityRecord is one worker-day row of the daily activity log.
type ActivityRecord struct {
	ReportID int               `json:"daily_report_id"`
	Date     *time.Time        `json:"date"`
	Worker   string            `json:"worker_id"`
	Branch   string            `json:"branch"`
	JoinDate *time.Time        `json:"join_date"`
	Main     ProductActivity   `json:"main_product_activity"`
	Subs     []ProductActivity `json:"sub_product_activities"`
}

// TotalCalls sums calls across the main and sub product blocks.
func (a ActivityRecord) TotalCalls() float64 {
	n := a.Main.CallCount
	for _, s := range a.Subs {
		n += s.CallCount
	}
	return n
}

// TotalHours sums call hours across all product blocks.
func (a ActivityRecord) TotalHours() float64 {
	n := a.Main.CallHours
	for _, s := range a.Subs {
		n += s.CallHours
	}
	return n
}

// TotalAppointments sums appointments across all product blocks.
func (a ActivityRecord) TotalAppointments() float64 {
	n := a.Main.AppointmentsWon
	for _, s := range a.Subs {
		n += s.AppointmentsWon
	}
	return n
}

// Blocks returns the main block followed by the sub-product blocks.
func (a ActivityRecord) Blocks() []ProductActivity {
	out := make([]ProductActivity, 0, 1+len(a.Subs))
	out = append(out, a.Main)
	return append(out, a.Subs...)
}

// DealRecord is one entry of the deal system.
type DealRecord struct {
	Date            *time.Time `json:"date"`
	Worker          string     `json:"worker_id"`
	Company         string     `json:"company"`
	Product         string     `json:"product"`
	Commission      *float64   `json:"commission"`
	DealStart       *time.Time `json:"deal_start"`
	DealEnd         *time.Time `json:"deal_end"`
	Status          DealStatus `json:"status"`
	RawStatus       string     `json:"raw_status,omitempty"`
	CorporateID     string     `json:"corporate_id"`
	CorporateName   string     `json:"corporate_name"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// CommissionValue returns the commission or 0 when absent.
func (d DealRecord) CommissionValue() float64 {
	if d.Commission == nil {
		return 0
	}
	return *d.Commission
}

// RejectionRecord is one row of the external rejection log.
type RejectionRecord struct {
	Date    *time.Time `json:"date"`
	Worker  string     `json:"worker_id,omitempty"`
	Company string     `json:"company"`
	Product string     `json:"product"`
	Reason  string     `json:"reason"`
	Detail  string     `json:"detail"`
}

// WorkerRecord is one roster entry. The worker id is the display name.
type WorkerRecord struct {
	WorkerID string     `json:"worker_id"`
	Name     string     `json:"name"`
	JoinDate *time.Time `json:"join_date"`
	Branch   string     `json:"branch"`
}

// Roster indexes workers by id.
type Roster map[string]WorkerRecord

// Branch returns the roster branch for worker, or Unspecified.
func (r Roster) Branch(worker string) string {
	if w, ok := r[worker]; ok && w.Branch != "" {
		return w.Branch
	}
	return Unspecified
}

// Dataset is the full normalized snapshot processed by one run.
type Dataset struct {
	Roster     Roster
	Activities []ActivityRecord
	Deals      []DealRecord
	Rejections []RejectionRecord
}

// MonthKey formats t as YYYY-MM, or "" for nil.
func MonthKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01")
}

// DayKey formats t as YYYY-MM-DD, or "" for nil.
func DayKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// OrUnspecified returns s, or Unspecified when s is blank.
func OrUnspecified(s string) string {
	if s == "" {
		return Unspecified
	}
	return s
}

// RawTables holds the four input tables as rows of cells, header rows included.
type RawTables struct {
	Roster     [][]string
	Rejections [][]string
	Deals      [][]string
	Activity   [][]string
}
