// Package report composes the monthly summary from the analysis and
// retention documents.
package report

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops-cli/internal/aggregate"
	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/retention"
)

// ErrNoMonthData is returned when the analysis has no bucket for the period.
var ErrNoMonthData = eris.New("report: no data for period")

// ReportType identifies the summary document.
const ReportType = "monthly_summary"

// Summary is the monthly summary document.
type Summary struct {
	Metadata                   Metadata                      `json:"metadata"`
	KeyMetrics                 KeyMetrics                    `json:"key_metrics"`
	DealStatusBreakdown        DealStatusBreakdown           `json:"deal_status_breakdown"`
	BranchPerformance          map[string]BranchPerformance  `json:"branch_performance"`
	ProductPerformance         map[string]ProductPerformance `json:"product_performance"`
	StaffPerformance           []StaffPerformance            `json:"staff_performance"`
	RetentionMetrics           RetentionMetrics              `json:"retention_metrics"`
	ActivityWarnings           []ActivityWarning             `json:"activity_warnings"`
	Alerts                     []Alert                       `json:"alerts"`
	BranchProductCrossAnalysis CrossAnalysis                 `json:"branch_product_cross_analysis"`
}

// Metadata identifies the report.
type Metadata struct {
	ReportPeriod string    `json:"report_period"`
	GeneratedAt  time.Time `json:"generated_at"`
	ReportType   string    `json:"report_type"`
}

// KeyMetrics are the month's headline totals.
type KeyMetrics struct {
	TotalCalls        float64    `json:"total_calls"`
	TotalHours        float64    `json:"total_hours"`
	TotalAppointments float64    `json:"total_appointments"`
	TotalDeals        int        `json:"total_deals"`
	TotalApproved     int        `json:"total_approved"`
	TotalRejected     int        `json:"total_rejected"`
	ApprovalRate      model.Rate `json:"approval_rate"`
}

// DealStatusBreakdown splits the month's deals. Pending is everything
// neither approved nor rejected.
type DealStatusBreakdown struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`
	Total    int `json:"total"`
}

// BranchPerformance is a branch slice.
type BranchPerformance struct {
	TotalCalls            float64     `json:"total_calls"`
	TotalHours            float64     `json:"total_hours"`
	TotalAppointments     float64     `json:"total_appointments"`
	TotalDeals            int         `json:"total_deals"`
	TotalApproved         int         `json:"total_approved"`
	TotalRevenue          float64     `json:"total_revenue"`
	TotalPotentialRevenue float64     `json:"total_potential_revenue"`
	ApprovalRate          model.Rate  `json:"approval_rate"`
	CallsPerStaff         *model.Rate `json:"calls_per_staff,omitempty"`
	HoursPerStaff         *model.Rate `json:"hours_per_staff,omitempty"`
}

// ProductPerformance is a product slice.
type ProductPerformance struct {
	TotalCalls            float64     `json:"total_calls"`
	TotalHours            float64     `json:"total_hours"`
	TotalAppointments     float64     `json:"total_appointments"`
	TotalDeals            int         `json:"total_deals"`
	TotalApproved         int         `json:"total_approved"`
	TotalRevenue          float64     `json:"total_revenue"`
	TotalPotentialRevenue float64     `json:"total_potential_revenue"`
	ApprovalRate          model.Rate  `json:"approval_rate"`
	CallsPerHour          *model.Rate `json:"calls_per_hour,omitempty"`
	AppointmentsPerCall   *model.Rate `json:"appointments_per_call,omitempty"`
	DealsPerAppointment   *model.Rate `json:"deals_per_appointment,omitempty"`
}

// StaffPerformance is one ranked worker.
type StaffPerformance struct {
	Rank                  int         `json:"rank"`
	StaffName             string      `json:"staff_name"`
	Branch                string      `json:"branch"`
	TotalCalls            float64     `json:"total_calls"`
	TotalHours            float64     `json:"total_hours"`
	TotalAppointments     float64     `json:"total_appointments"`
	TotalDeals            int         `json:"total_deals"`
	TotalApproved         int         `json:"total_approved"`
	TotalRevenue          float64     `json:"total_revenue"`
	TotalPotentialRevenue float64     `json:"total_potential_revenue"`
	ApprovalRate          model.Rate  `json:"approval_rate"`
	CallsPerHour          *model.Rate `json:"calls_per_hour,omitempty"`
	AppointmentsPerCall   *model.Rate `json:"appointments_per_call,omitempty"`
}

// RetentionMetrics summarizes the retention document for the month.
type RetentionMetrics struct {
	TotalStaff      int        `json:"total_staff"`
	ActiveStaff     int        `json:"active_staff"`
	HighRiskStaff   int        `json:"high_risk_staff"`
	MediumRiskStaff int        `json:"medium_risk_staff"`
	LowRiskStaff    int        `json:"low_risk_staff"`
	RetentionRate   model.Rate `json:"retention_rate"`
}

// Composer builds summaries under one settings value.
type Composer struct {
	settings config.Settings
}

// NewComposer returns a Composer.
func NewComposer(s config.Settings) *Composer {
	return &Composer{settings: s}
}

// Summarize builds the summary for period.
func (c *Composer) Summarize(analysis *aggregate.Analysis, ret *retention.Document, period string, generatedAt time.Time) (*Summary, error) {
	month, ok := analysis.MonthlyAnalysis[period]
	if !ok {
		return nil, eris.Wrapf(ErrNoMonthData, "period %s", period)
	}
	s := month.Summary
	eff := c.settings.MonthlySummary.EfficiencyMetrics

	out := &Summary{
		Metadata: Metadata{ReportPeriod: period, GeneratedAt: generatedAt, ReportType: ReportType},
		KeyMetrics: KeyMetrics{
			TotalCalls:        s.TotalCalls,
			TotalHours:        s.TotalHours,
			TotalAppointments: s.TotalAppointments,
			TotalDeals:        s.TotalDeals,
			TotalApproved:     s.TotalApproved,
			TotalRejected:     s.TotalRejected,
			ApprovalRate:      s.ApprovalRate,
		},
		DealStatusBreakdown: DealStatusBreakdown{
			Approved: s.TotalApproved,
			Rejected: s.TotalRejected,
			Pending:  s.TotalDeals - s.TotalApproved - s.TotalRejected,
			Total:    s.TotalDeals,
		},
		BranchPerformance:  make(map[string]BranchPerformance, len(month.Branches)),
		ProductPerformance: make(map[string]ProductPerformance, len(month.Products)),
		StaffPerformance:   c.topStaff(month),
		RetentionMetrics:   c.retentionMetrics(ret, period),
		ActivityWarnings:   c.activityWarnings(month, ret),
		Alerts:             []Alert{},
	}

	for name, b := range month.Branches {
		bp := BranchPerformance{
			TotalCalls:            b.TotalCalls,
			TotalHours:            b.TotalHours,
			TotalAppointments:     b.TotalAppointments,
			TotalDeals:            b.TotalDeals,
			TotalApproved:         b.TotalApproved,
			TotalRevenue:          b.TotalRevenue,
			TotalPotentialRevenue: b.TotalPotentialRevenue,
			ApprovalRate:          b.ApprovalRate,
		}
		if eff.ShowCallsPerHour {
			bp.CallsPerStaff = rate(b.CallsPerStaff)
			bp.HoursPerStaff = rate(b.HoursPerStaff)
		}
		out.BranchPerformance[name] = bp
	}

	for name, p := range month.Products {
		pp := ProductPerformance{
			TotalCalls:            p.TotalCalls,
			TotalHours:            p.TotalHours,
			TotalAppointments:     p.TotalAppointments,
			TotalDeals:            p.TotalDeals,
			TotalApproved:         p.TotalApproved,
			TotalRevenue:          p.TotalRevenue,
			TotalPotentialRevenue: p.TotalPotentialRevenue,
			ApprovalRate:          p.ApprovalRate,
		}
		if eff.ShowCallsPerHour {
			pp.CallsPerHour = rate(p.CallsPerHour)
		}
		if eff.ShowAppointmentsPerCall {
			pp.AppointmentsPerCall = rate(p.AppointmentsPerCall)
		}
		if eff.ShowDealsPerAppointment {
			pp.DealsPerAppointment = rate(model.NewRate(float64(p.TotalDeals), p.TotalAppointments))
		}
		out.ProductPerformance[name] = pp
	}

	out.Alerts = Evaluate(c.settings.Alerts, out.KeyMetrics.ApprovalRate, out.RetentionMetrics)
	out.BranchProductCrossAnalysis = CrossTabulate(month)
	return out, nil
}

// topStaff ranks workers by call volume, descending. Ties keep first
// encounter order.
func (c *Composer) topStaff(month *aggregate.Month) []StaffPerformance {
	order := month.StaffOrder()
	workers := make([]*aggregate.WorkerTotals, 0, len(order))
	for _, name := range order {
		workers = append(workers, month.Staff[name])
	}
	sort.SliceStable(workers, func(i, j int) bool { return workers[i].TotalCalls > workers[j].TotalCalls })

	n := c.settings.MonthlySummary.TopStaffCount
	if n < 0 || n > len(workers) {
		n = len(workers)
	}
	eff := c.settings.MonthlySummary.EfficiencyMetrics

	out := make([]StaffPerformance, 0, n)
	for i, w := range workers[:n] {
		sp := StaffPerformance{
			Rank:                  i + 1,
			StaffName:             w.StaffName,
			Branch:                w.Branch,
			TotalCalls:            w.TotalCalls,
			TotalHours:            w.TotalHours,
			TotalAppointments:     w.TotalAppointments,
			TotalDeals:            w.TotalDeals,
			TotalApproved:         w.TotalApproved,
			TotalRevenue:          w.TotalRevenue,
			TotalPotentialRevenue: w.TotalPotentialRevenue,
			ApprovalRate:          w.ApprovalRate,
		}
		if eff.ShowCallsPerHour {
			sp.CallsPerHour = rate(w.CallsPerHour)
		}
		if eff.ShowAppointmentsPerCall {
			sp.AppointmentsPerCall = rate(w.AppointmentsPerCall)
		}
		out = append(out, sp)
	}
	return out
}

func (c *Composer) retentionMetrics(ret *retention.Document, period string) RetentionMetrics {
	m := RetentionMetrics{
		TotalStaff:      len(ret.StaffRetentionAnalysis),
		ActiveStaff:     ret.ActiveStaff(c.settings.RiskScoring.Factors.ActivityRateThreshold),
		HighRiskStaff:   len(ret.RiskAnalysis.HighRiskStaff),
		MediumRiskStaff: len(ret.RiskAnalysis.MediumRiskStaff),
		LowRiskStaff:    len(ret.RiskAnalysis.LowRiskStaff),
	}
	if r, ok := ret.MonthlyRetentionRates[period]; ok {
		m.RetentionRate = r.RetentionRate
	}
	return m
}

func rate(r model.Rate) *model.Rate { return &r }
