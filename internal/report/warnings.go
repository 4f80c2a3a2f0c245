package report

import (
	"fmt"

	"github.com/sells-group/salesops-cli/internal/aggregate"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/retention"
)

// ActivityWarning flags a worker below the monthly activity minimums.
type ActivityWarning struct {
	StaffName    string   `json:"staff_name"`
	Branch       string   `json:"branch"`
	TotalCalls   float64  `json:"total_calls"`
	TotalHours   float64  `json:"total_hours"`
	ActivityDays int      `json:"activity_days"`
	Reasons      []string `json:"reasons"`
}

// activityWarnings checks every worker who reported activity in the month,
// in encounter order. Deal-only buckets are not checked.
func (c *Composer) activityWarnings(month *aggregate.Month, ret *retention.Document) []ActivityWarning {
	floor := c.settings.Alerts.Activity
	out := []ActivityWarning{}

	for _, name := range month.StaffOrder() {
		w := month.Staff[name]
		if name == model.Unspecified || len(w.DailyActivity) == 0 {
			continue
		}
		days := 0
		if p, ok := ret.StaffRetentionAnalysis[name]; ok {
			if m, ok := p.ActivityMonths[month.Month]; ok {
				days = m.ActivityDays
			}
		}

		var reasons []string
		if w.TotalCalls < floor.MinCallsPerMonth {
			reasons = append(reasons, fmt.Sprintf("月間架電数が%s件未満", num(floor.MinCallsPerMonth)))
		}
		if w.TotalHours < floor.MinHoursPerMonth {
			reasons = append(reasons, fmt.Sprintf("月間架電時間が%s時間未満", num(floor.MinHoursPerMonth)))
		}
		if days < floor.MinActivityDays {
			reasons = append(reasons, fmt.Sprintf("月間活動日数が%d日未満", floor.MinActivityDays))
		}
		if len(reasons) == 0 {
			continue
		}
		out = append(out, ActivityWarning{
			StaffName:    name,
			Branch:       w.Branch,
			TotalCalls:   w.TotalCalls,
			TotalHours:   w.TotalHours,
			ActivityDays: days,
			Reasons:      reasons,
		})
	}
	return out
}
