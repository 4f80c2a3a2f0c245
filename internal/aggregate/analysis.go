package aggregate

import (
	"time"

	"github.com/sells-group/salesops-cli/internal/funnel"
	"github.com/sells-group/salesops-cli/internal/model"
)

// Analysis is the basic monthly analysis document.
type Analysis struct {
	Metadata          AnalysisMetadata `json:"metadata"`
	MonthlyAnalysis   Monthly          `json:"monthly_analysis"`
	SummaryByPeriod   PeriodSummary    `json:"summary_by_period"`
	MonthlyConversion funnel.Funnel    `json:"monthly_conversion"`
}

// AnalysisMetadata describes the covered months.
type AnalysisMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	DataPeriod  Period    `json:"data_period"`
	TotalMonths int       `json:"total_months"`
}

// Period is an inclusive month range. Both ends are empty for no data.
type Period struct {
	StartMonth string `json:"start_month"`
	EndMonth   string `json:"end_month"`
}

// PeriodFor returns the range spanned by sorted month keys.
func PeriodFor(months []string) Period {
	if len(months) == 0 {
		return Period{}
	}
	return Period{StartMonth: months[0], EndMonth: months[len(months)-1]}
}

// PeriodSummary totals every month.
type PeriodSummary struct {
	TotalCalls            float64    `json:"total_calls"`
	TotalHours            float64    `json:"total_hours"`
	TotalAppointments     float64    `json:"total_appointments"`
	TotalDeals            int        `json:"total_deals"`
	TotalApproved         int        `json:"total_approved"`
	TotalRejected         int        `json:"total_rejected"`
	TotalRevenue          float64    `json:"total_revenue"`
	TotalPotentialRevenue float64    `json:"total_potential_revenue"`
	OverallApprovalRate   model.Rate `json:"overall_approval_rate"`
}

// Summarize totals the month summaries.
func Summarize(m Monthly) PeriodSummary {
	var s PeriodSummary
	for _, key := range m.Months() {
		c := m[key].Summary
		s.TotalCalls += c.TotalCalls
		s.TotalHours += c.TotalHours
		s.TotalAppointments += c.TotalAppointments
		s.TotalDeals += c.TotalDeals
		s.TotalApproved += c.TotalApproved
		s.TotalRejected += c.TotalRejected
		s.TotalRevenue += c.TotalRevenue
		s.TotalPotentialRevenue += c.TotalPotentialRevenue
	}
	s.OverallApprovalRate = model.NewPercent(float64(s.TotalApproved), float64(s.TotalDeals))
	return s
}

// NewAnalysis builds the basic analysis document for a dataset.
func NewAnalysis(ds model.Dataset, generatedAt time.Time) *Analysis {
	monthly := Build(ds)
	months := monthly.Months()
	return &Analysis{
		Metadata: AnalysisMetadata{
			GeneratedAt: generatedAt,
			DataPeriod:  PeriodFor(months),
			TotalMonths: len(months),
		},
		MonthlyAnalysis:   monthly,
		SummaryByPeriod:   Summarize(monthly),
		MonthlyConversion: funnel.Build(ds.Activities, ds.Deals, ds.Roster),
	}
}
