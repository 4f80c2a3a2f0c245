package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Detailed is the basic analysis plus the detailed metrics block.
type Detailed struct {
	Analysis
	ReportPeriod    string          `json:"report_period,omitempty"`
	DetailedMetrics DetailedMetrics `json:"detailed_metrics"`
}

// DetailedMetrics groups the extension block.
type DetailedMetrics struct {
	AcquisitionAnalysis AcquisitionAnalysis `json:"acquisition_analysis"`
	ActivityEfficiency  ActivityEfficiency  `json:"activity_efficiency"`
	TrendAnalysis       TrendAnalysis       `json:"trend_analysis"`
}

// AcquisitionAnalysis splits each month's deals into first-seen and repeat
// companies. Companies are identified by corporate id, then corporate name,
// then maker name.
type AcquisitionAnalysis struct {
	NewCustomers          map[string]int        `json:"new_customers"`
	ExistingCustomers     map[string]int        `json:"existing_customers"`
	AcquisitionEfficiency map[string]model.Rate `json:"acquisition_efficiency"`
}

// ActivityEfficiency holds per-month efficiency ratios.
type ActivityEfficiency struct {
	CallsPerHour        map[string]model.Rate `json:"calls_per_hour"`
	AppointmentsPerCall map[string]model.Rate `json:"appointments_per_call"`
	DealsPerAppointment map[string]model.Rate `json:"deals_per_appointment"`
	RevenuePerDeal      map[string]model.Rate `json:"revenue_per_deal"`
}

// TrendAnalysis compares months, branches and products.
type TrendAnalysis struct {
	MonthlyTrends      map[string]MonthlyTrend        `json:"monthly_trends"`
	BranchComparison   map[string]map[string]Snapshot `json:"branch_comparison"`
	ProductPerformance map[string]map[string]Snapshot `json:"product_performance"`
}

// MonthlyTrend is a month's totals with percent change from the prior month.
// Changes are 0 for the first month or when the prior value was 0.
type MonthlyTrend struct {
	TotalCalls    float64    `json:"total_calls"`
	TotalDeals    int        `json:"total_deals"`
	TotalApproved int        `json:"total_approved"`
	TotalRevenue  float64    `json:"total_revenue"`
	ApprovalRate  model.Rate `json:"approval_rate"`
	CallsChange   model.Rate `json:"calls_change"`
	DealsChange   model.Rate `json:"deals_change"`
	RevenueChange model.Rate `json:"revenue_change"`
}

// Snapshot is one bucket's month.
type Snapshot struct {
	TotalCalls        float64    `json:"total_calls"`
	TotalAppointments float64    `json:"total_appointments"`
	TotalDeals        int        `json:"total_deals"`
	TotalApproved     int        `json:"total_approved"`
	TotalRevenue      float64    `json:"total_revenue"`
	ApprovalRate      model.Rate `json:"approval_rate"`
}

func snapshot(c Counters) Snapshot {
	return Snapshot{
		TotalCalls:        c.TotalCalls,
		TotalAppointments: c.TotalAppointments,
		TotalDeals:        c.TotalDeals,
		TotalApproved:     c.TotalApproved,
		TotalRevenue:      c.TotalRevenue,
		ApprovalRate:      c.ApprovalRate,
	}
}

// NewDetailed builds the detailed document for reportPeriod.
func NewDetailed(ds model.Dataset, reportPeriod string, generatedAt time.Time) *Detailed {
	a := NewAnalysis(ds, generatedAt)
	return &Detailed{
		Analysis:     *a,
		ReportPeriod: reportPeriod,
		DetailedMetrics: DetailedMetrics{
			AcquisitionAnalysis: acquisition(ds.Deals),
			ActivityEfficiency:  efficiency(a.MonthlyAnalysis),
			TrendAnalysis:       trends(a.MonthlyAnalysis),
		},
	}
}

func efficiency(m Monthly) ActivityEfficiency {
	e := ActivityEfficiency{
		CallsPerHour:        make(map[string]model.Rate, len(m)),
		AppointmentsPerCall: make(map[string]model.Rate, len(m)),
		DealsPerAppointment: make(map[string]model.Rate, len(m)),
		RevenuePerDeal:      make(map[string]model.Rate, len(m)),
	}
	for key, month := range m {
		s := month.Summary
		e.CallsPerHour[key] = model.NewRate(s.TotalCalls, s.TotalHours)
		e.AppointmentsPerCall[key] = model.NewRate(s.TotalAppointments, s.TotalCalls)
		e.DealsPerAppointment[key] = model.NewRate(float64(s.TotalDeals), s.TotalAppointments)
		e.RevenuePerDeal[key] = model.NewRate(s.TotalRevenue, float64(s.TotalDeals))
	}
	return e
}

func trends(m Monthly) TrendAnalysis {
	t := TrendAnalysis{
		MonthlyTrends:      make(map[string]MonthlyTrend, len(m)),
		BranchComparison:   make(map[string]map[string]Snapshot),
		ProductPerformance: make(map[string]map[string]Snapshot),
	}

	var prev *Counters
	for _, key := range m.Months() {
		month := m[key]
		s := month.Summary
		trend := MonthlyTrend{
			TotalCalls:    s.TotalCalls,
			TotalDeals:    s.TotalDeals,
			TotalApproved: s.TotalApproved,
			TotalRevenue:  s.TotalRevenue,
			ApprovalRate:  s.ApprovalRate,
		}
		if prev != nil {
			trend.CallsChange = model.NewPercent(s.TotalCalls-prev.TotalCalls, prev.TotalCalls)
			trend.DealsChange = model.NewPercent(float64(s.TotalDeals-prev.TotalDeals), float64(prev.TotalDeals))
			trend.RevenueChange = model.NewPercent(s.TotalRevenue-prev.TotalRevenue, prev.TotalRevenue)
		}
		t.MonthlyTrends[key] = trend
		prev = &month.Summary

		for name, b := range month.Branches {
			if t.BranchComparison[name] == nil {
				t.BranchComparison[name] = make(map[string]Snapshot)
			}
			t.BranchComparison[name][key] = snapshot(b.Counters)
		}
		for name, p := range month.Products {
			if t.ProductPerformance[name] == nil {
				t.ProductPerformance[name] = make(map[string]Snapshot)
			}
			t.ProductPerformance[name][key] = snapshot(p.Counters)
		}
	}
	return t
}

func acquisition(deals []model.DealRecord) AcquisitionAnalysis {
	a := AcquisitionAnalysis{
		NewCustomers:          make(map[string]int),
		ExistingCustomers:     make(map[string]int),
		AcquisitionEfficiency: make(map[string]model.Rate),
	}

	dated := make([]model.DealRecord, 0, len(deals))
	for _, d := range deals {
		if d.Date != nil && companyKey(d) != "" {
			dated = append(dated, d)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date.Before(*dated[j].Date) })

	seen := make(map[string]bool)
	for _, d := range dated {
		month := model.MonthKey(d.Date)
		key := companyKey(d)
		if seen[key] {
			a.ExistingCustomers[month]++
		} else {
			seen[key] = true
			a.NewCustomers[month]++
		}
	}

	months := make(map[string]bool)
	for k := range a.NewCustomers {
		months[k] = true
	}
	for k := range a.ExistingCustomers {
		months[k] = true
	}
	for k := range months {
		n := a.NewCustomers[k]
		a.AcquisitionEfficiency[k] = model.NewPercent(float64(n), float64(n+a.ExistingCustomers[k]))
	}
	return a
}

func companyKey(d model.DealRecord) string {
	for _, v := range []string{d.CorporateID, d.CorporateName, d.Company} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
