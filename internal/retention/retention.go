// Package retention builds per-worker activity histories and scores each
// worker's attrition risk.
package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// RiskLevel is a worker's risk tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// recentMonths is how many of the latest active months count as recent.
const recentMonths = 3

// Level maps a score onto a tier.
func Level(score, high, medium float64) RiskLevel {
	switch {
	case score >= high:
		return RiskHigh
	case score >= medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// MonthActivity is a worker's activity within one month.
type MonthActivity struct {
	Month             string  `json:"month"`
	ActivityDays      int     `json:"activity_days"`
	TotalCalls        float64 `json:"total_calls"`
	TotalHours        float64 `json:"total_hours"`
	TotalAppointments float64 `json:"total_appointments"`

	days map[string]bool
}

// History is the activity of one worker across all months.
type History struct {
	Worker   string
	Branch   string
	JoinDate *time.Time
	First    time.Time
	Last     time.Time
	Months   map[string]*MonthActivity
}

// TotalActivityDays sums activity days over every month.
func (h *History) TotalActivityDays() int {
	n := 0
	for _, m := range h.Months {
		n += m.ActivityDays
	}
	return n
}

// sortedMonths returns the active month keys ascending.
func (h *History) sortedMonths() []string {
	out := make([]string, 0, len(h.Months))
	for k := range h.Months {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Histories groups dated activity by worker. An activity day is a distinct
// calendar date; calls and appointments include every product block.
// Records without a date or worker are skipped. The second result lists
// every observed month ascending.
func Histories(activities []model.ActivityRecord) (map[string]*History, []string) {
	out := make(map[string]*History)
	observed := make(map[string]bool)

	for _, a := range activities {
		if a.Date == nil || a.Worker == "" {
			continue
		}
		h, ok := out[a.Worker]
		if !ok {
			h = &History{
				Worker:   a.Worker,
				Branch:   a.Branch,
				JoinDate: a.JoinDate,
				First:    *a.Date,
				Last:     *a.Date,
				Months:   make(map[string]*MonthActivity),
			}
			out[a.Worker] = h
		}
		if a.Date.Before(h.First) {
			h.First = *a.Date
		}
		if a.Date.After(h.Last) {
			h.Last = *a.Date
		}

		month := model.MonthKey(a.Date)
		observed[month] = true
		m, ok := h.Months[month]
		if !ok {
			m = &MonthActivity{Month: month, days: make(map[string]bool)}
			h.Months[month] = m
		}
		if d := model.DayKey(a.Date); !m.days[d] {
			m.days[d] = true
			m.ActivityDays++
		}
		m.TotalCalls += a.TotalCalls()
		m.TotalHours += a.TotalHours()
		m.TotalAppointments += a.TotalAppointments()
	}

	months := make([]string, 0, len(observed))
	for k := range observed {
		months = append(months, k)
	}
	sort.Strings(months)
	return out, months
}

// MonthsBetween counts calendar months from a to b, ignoring days.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// Variance is the population variance of xs, or 0 for fewer than two values.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return sq / float64(len(xs))
}

// Profile is a worker's retention and risk assessment.
type Profile struct {
	StaffName                string                    `json:"staff_name"`
	Branch                   string                    `json:"branch"`
	JoinDate                 *time.Time                `json:"join_date"`
	FirstActivityDate        time.Time                 `json:"first_activity_date"`
	LastActivityDate         time.Time                 `json:"last_activity_date"`
	MonthsSinceJoin          *int                      `json:"months_since_join"`
	MonthsSinceFirstActivity int                       `json:"months_since_first_activity"`
	ActiveMonths             int                       `json:"active_months"`
	TotalActivityDays        int                       `json:"total_activity_days"`
	MonthlyActivityRate      model.Rate                `json:"monthly_activity_rate"`
	AvgMonthlyActivityDays   model.Rate                `json:"avg_monthly_activity_days"`
	TotalCalls               float64                   `json:"total_calls"`
	TotalHours               float64                   `json:"total_hours"`
	TotalAppointments        float64                   `json:"total_appointments"`
	AppointmentRate          model.Rate                `json:"appointment_rate"`
	ActivityVariance         float64                   `json:"activity_variance"`
	RiskScore                float64                   `json:"risk_score"`
	RiskLevel                RiskLevel                 `json:"risk_level"`
	RiskFactors              []string                  `json:"risk_factors"`
	ActivityMonths           map[string]*MonthActivity `json:"activity_months"`
}

// factor is one binary risk signal.
type factor struct {
	fires       func(p *Profile, recentDays int) bool
	weight      float64
	description string
}

func factors(rs config.RiskScoring) []factor {
	f, w := rs.Factors, rs.Weights
	return []factor{
		{
			fires:       func(p *Profile, _ int) bool { return p.MonthlyActivityRate.Value < f.ActivityRateThreshold },
			weight:      w.LowActivityRate,
			description: fmt.Sprintf("活動率が%s%%未満", num(f.ActivityRateThreshold)),
		},
		{
			fires:       func(_ *Profile, recent int) bool { return recent < f.RecentActivityDaysThreshold },
			weight:      w.RecentInactivity,
			description: fmt.Sprintf("最近%dヶ月の活動日数が%d日未満", recentMonths, f.RecentActivityDaysThreshold),
		},
		{
			fires:       func(p *Profile, _ int) bool { return p.AppointmentRate.Value < f.AppointmentRateThreshold },
			weight:      w.LowPerformance,
			description: fmt.Sprintf("アポ獲得率が%s%%未満", num(f.AppointmentRateThreshold)),
		},
		{
			fires: func(p *Profile, _ int) bool {
				return p.MonthsSinceJoin != nil &&
					*p.MonthsSinceJoin < f.ShortTenureMonths &&
					p.TotalActivityDays < f.MinActivityDaysShortTenure
			},
			weight:      w.ShortTenureLowActivity,
			description: fmt.Sprintf("入社%dヶ月未満で活動日数が%d日未満", f.ShortTenureMonths, f.MinActivityDaysShortTenure),
		},
		{
			fires:       func(p *Profile, _ int) bool { return p.ActivityVariance > f.ActivityVarianceThreshold },
			weight:      w.UnstableActivity,
			description: fmt.Sprintf("活動のばらつきが大きい（閾値: %s）", num(f.ActivityVarianceThreshold)),
		},
	}
}

func num(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Score builds one worker's profile. observedMonths is the number of months
// seen across all workers.
func Score(h *History, observedMonths int, rs config.RiskScoring) *Profile {
	months := h.sortedMonths()
	p := &Profile{
		StaffName:                h.Worker,
		Branch:                   model.OrUnspecified(h.Branch),
		JoinDate:                 h.JoinDate,
		FirstActivityDate:        h.First,
		LastActivityDate:         h.Last,
		MonthsSinceFirstActivity: MonthsBetween(h.First, h.Last),
		ActiveMonths:             len(months),
		TotalActivityDays:        h.TotalActivityDays(),
		ActivityMonths:           h.Months,
		RiskFactors:              []string{},
	}
	if h.JoinDate != nil {
		n := MonthsBetween(*h.JoinDate, h.Last)
		p.MonthsSinceJoin = &n
	}

	days := make([]float64, 0, len(months))
	for _, k := range months {
		m := h.Months[k]
		p.TotalCalls += m.TotalCalls
		p.TotalHours += m.TotalHours
		p.TotalAppointments += m.TotalAppointments
		days = append(days, float64(m.ActivityDays))
	}
	p.MonthlyActivityRate = model.NewPercent(float64(p.ActiveMonths), float64(observedMonths))
	p.AvgMonthlyActivityDays = model.NewRate(float64(p.TotalActivityDays), float64(p.ActiveMonths))
	p.AppointmentRate = model.NewPercent(p.TotalAppointments, p.TotalCalls)
	if !p.AppointmentRate.Defined {
		// Zero calls is a zero rate, not an absent one.
		p.AppointmentRate = model.Rate{Value: 0, Defined: true}
	}
	p.ActivityVariance = Variance(days)

	recent := 0
	start := len(months) - recentMonths
	if start < 0 {
		start = 0
	}
	for _, k := range months[start:] {
		recent += h.Months[k].ActivityDays
	}

	for _, f := range factors(rs) {
		if f.fires(p, recent) {
			p.RiskScore += f.weight
			p.RiskFactors = append(p.RiskFactors, f.description)
		}
	}
	p.RiskLevel = Level(p.RiskScore, rs.Thresholds.HighRisk, rs.Thresholds.MediumRisk)
	return p
}
