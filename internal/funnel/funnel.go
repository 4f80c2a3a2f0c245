// Package funnel tracks self-reported appointments through deal-system
// entries to approvals.
package funnel

import (
	"sort"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Stage holds the three funnel counts and their ratios. A ratio is nil when
// its denominator is zero; ratios are not clamped.
type Stage struct {
	SelfReportedAppointments float64  `json:"self_reported_appointments"`
	TaaanEntries             int      `json:"taaan_entries"`
	ApprovedDeals            int      `json:"approved_deals"`
	TaaanRate                *float64 `json:"taaan_rate"`
	ApprovalRate             *float64 `json:"approval_rate"`
	TrueApprovalRate         *float64 `json:"true_approval_rate"`
}

func (s *Stage) derive() {
	s.TaaanRate = model.Ratio(float64(s.TaaanEntries), s.SelfReportedAppointments)
	s.ApprovalRate = model.Ratio(float64(s.ApprovedDeals), float64(s.TaaanEntries))
	s.TrueApprovalRate = model.Ratio(float64(s.ApprovedDeals), s.SelfReportedAppointments)
}

// Month is the funnel for one month.
type Month struct {
	Total     *Stage            `json:"total"`
	ByStaff   map[string]*Stage `json:"by_staff"`
	ByBranch  map[string]*Stage `json:"by_branch"`
	ByProduct map[string]*Stage `json:"by_product"`
}

func newMonth() *Month {
	return &Month{
		Total:     &Stage{},
		ByStaff:   make(map[string]*Stage),
		ByBranch:  make(map[string]*Stage),
		ByProduct: make(map[string]*Stage),
	}
}

func stage(m map[string]*Stage, key string) *Stage {
	key = model.OrUnspecified(key)
	s, ok := m[key]
	if !ok {
		s = &Stage{}
		m[key] = s
	}
	return s
}

// Funnel is keyed by YYYY-MM.
type Funnel map[string]*Month

// Months returns the month keys in ascending order.
func (f Funnel) Months() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build runs both folds and derives ratios. Activity creates the month
// buckets; deals dated in a month with no activity are left out. A report's
// appointments, sub-products included, are credited to its main product.
func Build(activities []model.ActivityRecord, deals []model.DealRecord, roster model.Roster) Funnel {
	f := make(Funnel)

	for _, a := range activities {
		month := model.MonthKey(a.Date)
		if month == "" {
			continue
		}
		m, ok := f[month]
		if !ok {
			m = newMonth()
			f[month] = m
		}
		total := a.TotalAppointments()
		m.Total.SelfReportedAppointments += total
		stage(m.ByStaff, a.Worker).SelfReportedAppointments += total
		stage(m.ByBranch, a.Branch).SelfReportedAppointments += total
		stage(m.ByProduct, a.Main.Product).SelfReportedAppointments += total
	}

	for _, d := range deals {
		m, ok := f[model.MonthKey(d.Date)]
		if !ok {
			continue
		}
		approved := 0
		if d.Status == model.DealApproved {
			approved = 1
		}
		for _, s := range []*Stage{
			m.Total,
			stage(m.ByStaff, d.Worker),
			stage(m.ByBranch, roster.Branch(d.Worker)),
			stage(m.ByProduct, d.Product),
		} {
			s.TaaanEntries++
			s.ApprovedDeals += approved
		}
	}

	for _, m := range f {
		m.Total.derive()
		for _, group := range []map[string]*Stage{m.ByStaff, m.ByBranch, m.ByProduct} {
			for _, s := range group {
				s.derive()
			}
		}
	}
	return f
}
