// Package aggregate folds normalized records into monthly rollups keyed by
// branch, product and worker.
package aggregate

import (
	"sort"
	"time"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Counters are the cumulative totals shared by every bucket.
type Counters struct {
	TotalCalls            float64    `json:"total_calls"`
	TotalHours            float64    `json:"total_hours"`
	TotalAppointments     float64    `json:"total_appointments"`
	TotalDeals            int        `json:"total_deals"`
	TotalApproved         int        `json:"total_approved"`
	TotalRejected         int        `json:"total_rejected"`
	TotalRevenue          float64    `json:"total_revenue"`
	TotalPotentialRevenue float64    `json:"total_potential_revenue"`
	ApprovalRate          model.Rate `json:"approval_rate"`
}

func (c *Counters) addBlock(b model.ProductActivity) {
	c.TotalCalls += b.CallCount
	c.TotalHours += b.CallHours
	c.TotalAppointments += b.AppointmentsWon
}

func (c *Counters) addActivity(a model.ActivityRecord) {
	for _, b := range a.Blocks() {
		c.addBlock(b)
	}
}

// addDeal applies the status rule: approvals realize revenue, rejections only
// count, pending deals add potential revenue.
func (c *Counters) addDeal(d model.DealRecord) {
	c.TotalDeals++
	switch d.Status {
	case model.DealApproved:
		c.TotalApproved++
		c.TotalRevenue += d.CommissionValue()
	case model.DealRejected:
		c.TotalRejected++
	case model.DealPending:
		c.TotalPotentialRevenue += d.CommissionValue()
	}
}

func (c *Counters) finalize() {
	c.ApprovalRate = model.NewPercent(float64(c.TotalApproved), float64(c.TotalDeals))
}

// BranchTotals is a branch's month.
type BranchTotals struct {
	BranchName string `json:"branch_name"`
	StaffCount int    `json:"staff_count"`
	Counters
	CallsPerStaff model.Rate `json:"calls_per_staff"`
	HoursPerStaff model.Rate `json:"hours_per_staff"`
	StaffList     []string   `json:"staff_list"`
}

// ProductTotals is a product's month.
type ProductTotals struct {
	ProductName string `json:"product_name"`
	Counters
	CallsPerHour        model.Rate `json:"calls_per_hour"`
	AppointmentsPerCall model.Rate `json:"appointments_per_call"`
}

// WorkerTotals is a worker's month.
type WorkerTotals struct {
	StaffName string     `json:"staff_name"`
	Branch    string     `json:"branch"`
	JoinDate  *time.Time `json:"join_date"`
	Counters
	CallsPerHour        model.Rate      `json:"calls_per_hour"`
	AppointmentsPerCall model.Rate      `json:"appointments_per_call"`
	DailyActivity       []DailyActivity `json:"daily_activity"`
}

// DailyActivity is one report folded into a worker's month.
type DailyActivity struct {
	Date        *time.Time              `json:"date"`
	MainProduct model.ProductActivity   `json:"main_product"`
	SubProducts []model.ProductActivity `json:"sub_products"`
}

// Month is the rollup for one YYYY-MM.
type Month struct {
	Month    string                    `json:"month"`
	Branches map[string]*BranchTotals  `json:"branches"`
	Products map[string]*ProductTotals `json:"products"`
	Staff    map[string]*WorkerTotals  `json:"staff"`
	Summary  Counters                  `json:"summary"`

	staffOrder []string
}

func newMonth(key string) *Month {
	return &Month{
		Month:    key,
		Branches: make(map[string]*BranchTotals),
		Products: make(map[string]*ProductTotals),
		Staff:    make(map[string]*WorkerTotals),
	}
}

// StaffOrder returns worker keys in first-encounter order.
func (m *Month) StaffOrder() []string { return m.staffOrder }

func (m *Month) branch(name string) *BranchTotals {
	name = model.OrUnspecified(name)
	b, ok := m.Branches[name]
	if !ok {
		b = &BranchTotals{BranchName: name, StaffList: []string{}}
		m.Branches[name] = b
	}
	return b
}

func (m *Month) product(name string) *ProductTotals {
	name = model.OrUnspecified(name)
	p, ok := m.Products[name]
	if !ok {
		p = &ProductTotals{ProductName: name}
		m.Products[name] = p
	}
	return p
}

func (m *Month) worker(name, branch string, joinDate *time.Time) *WorkerTotals {
	name = model.OrUnspecified(name)
	w, ok := m.Staff[name]
	if !ok {
		w = &WorkerTotals{
			StaffName:     name,
			Branch:        model.OrUnspecified(branch),
			JoinDate:      joinDate,
			DailyActivity: []DailyActivity{},
		}
		m.Staff[name] = w
		m.staffOrder = append(m.staffOrder, name)
	}
	return w
}

// Monthly is the set of month rollups keyed by YYYY-MM.
type Monthly map[string]*Month

// Months returns the month keys in ascending order.
func (m Monthly) Months() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Aggregator accumulates records, then derives rates in Finalize.
type Aggregator struct {
	roster model.Roster
	months Monthly
}

// New returns an Aggregator resolving deal branches through roster.
func New(roster model.Roster) *Aggregator {
	return &Aggregator{roster: roster, months: make(Monthly)}
}

func (a *Aggregator) month(key string) *Month {
	m, ok := a.months[key]
	if !ok {
		m = newMonth(key)
		a.months[key] = m
	}
	return m
}

// Accumulate folds activity and deals. Records without a date reach no
// month bucket.
func (a *Aggregator) Accumulate(activities []model.ActivityRecord, deals []model.DealRecord) {
	for _, rec := range activities {
		a.AddActivity(rec)
	}
	for _, d := range deals {
		a.AddDeal(d)
	}
}

// AddActivity folds one activity record into its month.
func (a *Aggregator) AddActivity(rec model.ActivityRecord) {
	key := model.MonthKey(rec.Date)
	if key == "" {
		return
	}
	m := a.month(key)

	b := m.branch(rec.Branch)
	b.addActivity(rec)
	worker := model.OrUnspecified(rec.Worker)
	if !contains(b.StaffList, worker) {
		b.StaffList = append(b.StaffList, worker)
		b.StaffCount = len(b.StaffList)
	}

	for _, blk := range rec.Blocks() {
		m.product(blk.Product).addBlock(blk)
	}

	w := m.worker(rec.Worker, rec.Branch, rec.JoinDate)
	w.addActivity(rec)
	subs := rec.Subs
	if subs == nil {
		subs = []model.ProductActivity{}
	}
	w.DailyActivity = append(w.DailyActivity, DailyActivity{Date: rec.Date, MainProduct: rec.Main, SubProducts: subs})

	m.Summary.addActivity(rec)
}

// AddDeal folds one deal into the month of its own date, creating the month
// when needed. Every dated deal lands in exactly one branch, product and
// worker bucket.
func (a *Aggregator) AddDeal(d model.DealRecord) {
	key := model.MonthKey(d.Date)
	if key == "" {
		return
	}
	m := a.month(key)
	branch := a.roster.Branch(d.Worker)

	m.Summary.addDeal(d)
	m.branch(branch).addDeal(d)
	m.product(d.Product).addDeal(d)

	var joinDate *time.Time
	if w, ok := a.roster[d.Worker]; ok {
		joinDate = w.JoinDate
	}
	m.worker(d.Worker, branch, joinDate).addDeal(d)
}

// Finalize derives every rate from the accumulated totals and returns the
// rollups. It may be called again after further accumulation.
func (a *Aggregator) Finalize() Monthly {
	for _, m := range a.months {
		m.Summary.finalize()
		for _, b := range m.Branches {
			b.finalize()
			b.CallsPerStaff = model.NewRate(b.TotalCalls, float64(b.StaffCount))
			b.HoursPerStaff = model.NewRate(b.TotalHours, float64(b.StaffCount))
		}
		for _, p := range m.Products {
			p.finalize()
			p.CallsPerHour = model.NewRate(p.TotalCalls, p.TotalHours)
			p.AppointmentsPerCall = model.NewRate(p.TotalAppointments, p.TotalCalls)
		}
		for _, w := range m.Staff {
			w.finalize()
			w.CallsPerHour = model.NewRate(w.TotalCalls, w.TotalHours)
			w.AppointmentsPerCall = model.NewRate(w.TotalAppointments, w.TotalCalls)
		}
	}
	return a.months
}

// Build is Accumulate followed by Finalize over a dataset.
func Build(ds model.Dataset) Monthly {
	a := New(ds.Roster)
	a.Accumulate(ds.Activities, ds.Deals)
	return a.Finalize()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
