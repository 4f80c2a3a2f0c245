package report

import (
	"time"

	"github.com/sells-group/salesops-cli/internal/aggregate"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/retention"
)

// RunLog records what one monthly run produced.
type RunLog struct {
	ExecutionTime time.Time     `json:"execution_time"`
	ReportPeriod  string        `json:"report_period"`
	FilesCreated  []string      `json:"files_created"`
	FilesFailed   []string      `json:"files_failed,omitempty"`
	Destination   string        `json:"destination"`
	Summary       RunLogSummary `json:"summary"`
}

// RunLogSummary repeats the period-wide headline numbers.
type RunLogSummary struct {
	TotalStaff   int        `json:"total_staff"`
	TotalCalls   float64    `json:"total_calls"`
	TotalDeals   int        `json:"total_deals"`
	ApprovalRate model.Rate `json:"approval_rate"`
}

// NewRunLog builds the run log for period.
func NewRunLog(period, destination string, created, failed []string, analysis *aggregate.Analysis, ret *retention.Document, at time.Time) *RunLog {
	if created == nil {
		created = []string{}
	}
	return &RunLog{
		ExecutionTime: at,
		ReportPeriod:  period,
		FilesCreated:  created,
		FilesFailed:   failed,
		Destination:   destination,
		Summary: RunLogSummary{
			TotalStaff:   len(ret.StaffRetentionAnalysis),
			TotalCalls:   analysis.SummaryByPeriod.TotalCalls,
			TotalDeals:   analysis.SummaryByPeriod.TotalDeals,
			ApprovalRate: analysis.SummaryByPeriod.OverallApprovalRate,
		},
	}
}
