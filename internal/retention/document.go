package retention

import (
	"sort"
	"time"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// Document is the retention and risk analysis.
type Document struct {
	Metadata                Metadata                    `json:"metadata"`
	StaffRetentionAnalysis  map[string]*Profile         `json:"staff_retention_analysis"`
	MonthlyRetentionRates   map[string]MonthlyRetention `json:"monthly_retention_rates"`
	BranchRetentionAnalysis map[string]*BranchRetention `json:"branch_retention_analysis"`
	RiskAnalysis            RiskLists                   `json:"risk_analysis"`
}

// Metadata describes the analyzed months.
type Metadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	AnalysisPeriod Period    `json:"analysis_period"`
	TotalMonths    int       `json:"total_months"`
}

// Period is an inclusive month range.
type Period struct {
	StartMonth string `json:"start_month"`
	EndMonth   string `json:"end_month"`
}

// MonthlyRetention is the share of present workers active in a month.
type MonthlyRetention struct {
	Month         string     `json:"month"`
	ActiveStaff   int        `json:"active_staff"`
	TotalStaff    int        `json:"total_staff"`
	RetentionRate model.Rate `json:"retention_rate"`
}

// BranchRetention rolls profiles up by branch.
type BranchRetention struct {
	BranchName      string     `json:"branch_name"`
	TotalStaff      int        `json:"total_staff"`
	ActiveStaff     int        `json:"active_staff"`
	HighRiskStaff   int        `json:"high_risk_staff"`
	MediumRiskStaff int        `json:"medium_risk_staff"`
	LowRiskStaff    int        `json:"low_risk_staff"`
	AvgActivityRate model.Rate `json:"avg_activity_rate"`
	AvgRiskScore    model.Rate `json:"avg_risk_score"`

	activitySum float64
	scoreSum    float64
}

// RiskLists names the workers in each tier, sorted.
type RiskLists struct {
	HighRiskStaff   []string `json:"high_risk_staff"`
	MediumRiskStaff []string `json:"medium_risk_staff"`
	LowRiskStaff    []string `json:"low_risk_staff"`
}

// Analyze scores every worker and derives the monthly and branch views.
func Analyze(activities []model.ActivityRecord, rs config.RiskScoring, generatedAt time.Time) *Document {
	histories, months := Histories(activities)

	doc := &Document{
		Metadata: Metadata{
			GeneratedAt: generatedAt,
			TotalMonths: len(months),
		},
		StaffRetentionAnalysis:  make(map[string]*Profile, len(histories)),
		MonthlyRetentionRates:   make(map[string]MonthlyRetention, len(months)),
		BranchRetentionAnalysis: make(map[string]*BranchRetention),
		RiskAnalysis: RiskLists{
			HighRiskStaff:   []string{},
			MediumRiskStaff: []string{},
			LowRiskStaff:    []string{},
		},
	}
	if len(months) > 0 {
		doc.Metadata.AnalysisPeriod = Period{StartMonth: months[0], EndMonth: months[len(months)-1]}
	}

	for name, h := range histories {
		p := Score(h, len(months), rs)
		doc.StaffRetentionAnalysis[name] = p
		switch p.RiskLevel {
		case RiskHigh:
			doc.RiskAnalysis.HighRiskStaff = append(doc.RiskAnalysis.HighRiskStaff, name)
		case RiskMedium:
			doc.RiskAnalysis.MediumRiskStaff = append(doc.RiskAnalysis.MediumRiskStaff, name)
		default:
			doc.RiskAnalysis.LowRiskStaff = append(doc.RiskAnalysis.LowRiskStaff, name)
		}
		doc.addToBranch(p, rs.Factors.ActivityRateThreshold)
	}
	sort.Strings(doc.RiskAnalysis.HighRiskStaff)
	sort.Strings(doc.RiskAnalysis.MediumRiskStaff)
	sort.Strings(doc.RiskAnalysis.LowRiskStaff)

	for _, b := range doc.BranchRetentionAnalysis {
		b.AvgActivityRate = model.NewRate(b.activitySum, float64(b.TotalStaff))
		b.AvgRiskScore = model.NewRate(b.scoreSum, float64(b.TotalStaff))
	}

	for _, month := range months {
		doc.MonthlyRetentionRates[month] = monthlyRetention(histories, month)
	}
	return doc
}

func (d *Document) addToBranch(p *Profile, activeThreshold float64) {
	b, ok := d.BranchRetentionAnalysis[p.Branch]
	if !ok {
		b = &BranchRetention{BranchName: p.Branch}
		d.BranchRetentionAnalysis[p.Branch] = b
	}
	b.TotalStaff++
	b.activitySum += p.MonthlyActivityRate.Value
	b.scoreSum += p.RiskScore
	if p.MonthlyActivityRate.Value > activeThreshold {
		b.ActiveStaff++
	}
	switch p.RiskLevel {
	case RiskHigh:
		b.HighRiskStaff++
	case RiskMedium:
		b.MediumRiskStaff++
	default:
		b.LowRiskStaff++
	}
}

// monthlyRetention counts workers present in month (joined in or before it,
// or with no join date) and how many of them were active.
func monthlyRetention(histories map[string]*History, month string) MonthlyRetention {
	r := MonthlyRetention{Month: month}
	for _, h := range histories {
		if h.JoinDate != nil && model.MonthKey(h.JoinDate) > month {
			continue
		}
		r.TotalStaff++
		if _, ok := h.Months[month]; ok {
			r.ActiveStaff++
		}
	}
	r.RetentionRate = model.NewPercent(float64(r.ActiveStaff), float64(r.TotalStaff))
	return r
}

// ActiveStaff counts profiles whose activity rate exceeds threshold.
func (d *Document) ActiveStaff(threshold float64) int {
	n := 0
	for _, p := range d.StaffRetentionAnalysis {
		if p.MonthlyActivityRate.Value > threshold {
			n++
		}
	}
	return n
}
