// Package join attaches deal and rejection records to daily activity reports
// and builds the merged per-report view.
package join

import (
	"time"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// Key identifies a worker-day. Day is YYYY-MM-DD with time of day stripped.
type Key struct {
	Day    string
	Worker string
}

// Valid reports whether both parts are present. Incomplete keys never match.
func (k Key) Valid() bool { return k.Day != "" && k.Worker != "" }

// KeyOf builds a Key from a date and worker.
func KeyOf(t *time.Time, worker string) Key {
	return Key{Day: model.DayKey(t), Worker: worker}
}

// FindMatch returns the first candidate whose key equals want. Later
// candidates with the same key are never attached.
func FindMatch[T any](candidates []T, keyOf func(T) Key, want Key) (T, bool) {
	var zero T
	if !want.Valid() {
		return zero, false
	}
	for _, c := range candidates {
		if keyOf(c) == want {
			return c, true
		}
	}
	return zero, false
}

func dealKey(d model.DealRecord) Key           { return KeyOf(d.Date, d.Worker) }
func rejectionKey(r model.RejectionRecord) Key { return KeyOf(r.Date, r.Worker) }

// CompositeReport is one daily report with its matched deal attached.
type CompositeReport struct {
	DailyReportID  int            `json:"daily_report_id"`
	Staff          Staff          `json:"staff"`
	ActivityDetail ActivityDetail `json:"activity_detail"`
}

// Staff identifies the reporting worker.
type Staff struct {
	Name     string     `json:"name"`
	JoinDate *time.Time `json:"join_date"`
}

// ActivityDetail holds the main-product call figures and the company report.
type ActivityDetail struct {
	CallReport    CallReport              `json:"call_report"`
	CompanyReport CompanyReport           `json:"company_report"`
	SubProducts   []model.ProductActivity `json:"sub_products"`
}

// CallReport is the main product's call volume.
type CallReport struct {
	CallCount float64 `json:"call_count"`
	CallTime  float64 `json:"call_time"`
}

// CompanyReport is the deal outcome for the report. DealStatus and DealInfo
// are nil when no deal matched.
type CompanyReport struct {
	CompanyName    *string           `json:"company_name"`
	ProductName    string            `json:"product_name"`
	DealStatus     *model.DealStatus `json:"deal_status"`
	ReasonOfStatus Reason            `json:"reason_of_status"`
	DealInfo       *DealInfo         `json:"deal_info,omitempty"`
}

// Reason explains a rejection. The zero value serializes as {}.
type Reason struct {
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// DealInfo is the subset of the matched deal carried into the view.
type DealInfo struct {
	Commission      *float64   `json:"commission"`
	DealStart       *time.Time `json:"deal_start"`
	DealEnd         *time.Time `json:"deal_end"`
	CorporateNumber string     `json:"corporate_number"`
	CorporateName   string     `json:"corporate_name"`
	RawStatus       string     `json:"deal_status"`
}

// Compose builds the merged view, one entry per activity record in input
// order. Products listed in js.ExternalRejectionProducts take their reason
// from the rejection log; all others take the deal's inline reason.
func Compose(activities []model.ActivityRecord, deals []model.DealRecord, rejections []model.RejectionRecord, js config.JoinSettings) []CompositeReport {
	external := make(map[string]bool, len(js.ExternalRejectionProducts))
	for _, p := range js.ExternalRejectionProducts {
		external[p] = true
	}

	out := make([]CompositeReport, 0, len(activities))
	for _, a := range activities {
		key := KeyOf(a.Date, a.Worker)
		report := CompanyReport{ProductName: a.Main.Product}

		deal, hasDeal := FindMatch(deals, dealKey, key)
		if hasDeal {
			status := deal.Status
			report.DealStatus = &status
			report.DealInfo = &DealInfo{
				Commission:      deal.Commission,
				DealStart:       deal.DealStart,
				DealEnd:         deal.DealEnd,
				CorporateNumber: deal.CorporateID,
				CorporateName:   deal.CorporateName,
				RawStatus:       deal.RawStatus,
			}
		}

		if external[a.Main.Product] {
			if rej, ok := FindMatch(rejections, rejectionKey, key); ok {
				report.ReasonOfStatus = Reason{Reason: rej.Reason, Detail: rej.Detail}
			}
		} else if hasDeal && deal.RejectionReason != "" {
			report.ReasonOfStatus = Reason{Reason: deal.RejectionReason}
		}

		subs := a.Subs
		if subs == nil {
			subs = []model.ProductActivity{}
		}
		out = append(out, CompositeReport{
			DailyReportID: a.ReportID,
			Staff:         Staff{Name: a.Worker, JoinDate: a.JoinDate},
			ActivityDetail: ActivityDetail{
				CallReport:    CallReport{CallCount: a.Main.CallCount, CallTime: a.Main.CallHours},
				CompanyReport: report,
				SubProducts:   subs,
			},
		})
	}
	return out
}
