package report

import (
	"fmt"
	"strconv"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// Severity ranks an alert. Critical takes precedence over warning.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// AlertMetric identifies the metric an alert was raised for.
type AlertMetric string

const (
	MetricApprovalRate  AlertMetric = "approval_rate"
	MetricHighRiskStaff AlertMetric = "high_risk_staff"
	MetricRetentionRate AlertMetric = "retention_rate"
)

// Alert is one threshold breach.
type Alert struct {
	Type      Severity    `json:"type"`
	Metric    AlertMetric `json:"metric"`
	Message   string      `json:"message"`
	Value     string      `json:"value"`
	Threshold string      `json:"threshold"`
}

// Evaluate checks the three metrics independently and returns zero to three
// alerts. Rate alerts fire when the rate falls below a threshold; the
// high-risk alert fires when the count reaches one. An undefined rate is
// compared as its emitted value 0.
func Evaluate(t config.AlertSettings, approval model.Rate, ret RetentionMetrics) []Alert {
	alerts := []Alert{}

	if a, ok := below(MetricApprovalRate, "承認率", approval.Rounded(), t.ApprovalRate, approval.String()+"%", "%"); ok {
		alerts = append(alerts, a)
	}

	high := float64(ret.HighRiskStaff)
	value := strconv.Itoa(ret.HighRiskStaff) + "名"
	switch {
	case high >= t.HighRiskStaff.Critical:
		alerts = append(alerts, Alert{
			Type:      SeverityCritical,
			Metric:    MetricHighRiskStaff,
			Message:   "高リスク学生が危険レベルを超えています",
			Value:     value,
			Threshold: num(t.HighRiskStaff.Critical) + "名",
		})
	case high >= t.HighRiskStaff.Warning:
		alerts = append(alerts, Alert{
			Type:      SeverityWarning,
			Metric:    MetricHighRiskStaff,
			Message:   "高リスク学生が警告レベルを超えています",
			Value:     value,
			Threshold: num(t.HighRiskStaff.Warning) + "名",
		})
	}

	if a, ok := below(MetricRetentionRate, "定着率", ret.RetentionRate.Rounded(), t.Retention, ret.RetentionRate.String()+"%", "%"); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func below(metric AlertMetric, label string, v float64, t config.Threshold, value, unit string) (Alert, bool) {
	switch {
	case v < t.Critical:
		return Alert{
			Type:      SeverityCritical,
			Metric:    metric,
			Message:   fmt.Sprintf("%sが危険レベルを下回っています", label),
			Value:     value,
			Threshold: num(t.Critical) + unit,
		}, true
	case v < t.Warning:
		return Alert{
			Type:      SeverityWarning,
			Metric:    metric,
			Message:   fmt.Sprintf("%sが警告レベルを下回っています", label),
			Value:     value,
			Threshold: num(t.Warning) + unit,
		}, true
	}
	return Alert{}, false
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
