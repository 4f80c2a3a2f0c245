package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops-cli/internal/aggregate"
	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/retention"
)

var generated = time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func f64(v float64) *float64 { return &v }

func activity(id int, date *time.Time, worker, branch, product string, calls, hours, appts float64) model.ActivityRecord {
	return model.ActivityRecord{
		ReportID: id,
		Date:     date,
		Worker:   worker,
		Branch:   branch,
		Main:     model.ProductActivity{Product: product, CallCount: calls, CallHours: hours, AppointmentsWon: appts},
	}
}

func testDataset() model.Dataset {
	return model.Dataset{
		Roster: model.Roster{
			"佐藤": {WorkerID: "佐藤", Name: "佐藤", Branch: "東京"},
			"鈴木": {WorkerID: "鈴木", Name: "鈴木", Branch: "大阪"},
			"高橋": {WorkerID: "高橋", Name: "高橋", Branch: "東京"},
		},
		Activities: []model.ActivityRecord{
			activity(1, day(2024, 10, 1), "佐藤", "東京", "Bill One", 40, 4, 2),
			activity(2, day(2024, 10, 2), "佐藤", "東京", "Contract One", 10, 1, 0),
			activity(3, day(2024, 10, 3), "鈴木", "大阪", "Bill One", 60, 5, 0),
			activity(4, day(2024, 10, 4), "高橋", "東京", "Bill One", 3, 0.5, 0),
		},
		Deals: []model.DealRecord{
			{Date: day(2024, 10, 5), Worker: "佐藤", Product: "Bill One", Commission: f64(10000), Status: model.DealApproved},
			{Date: day(2024, 10, 6), Worker: "佐藤", Product: "Bill One", Status: model.DealRejected},
			{Date: day(2024, 10, 7), Worker: "鈴木", Product: "Contract One", Commission: f64(5000), Status: model.DealPending},
		},
	}
}

func summarize(t *testing.T, s config.Settings) *Summary {
	t.Helper()
	ds := testDataset()
	analysis := aggregate.NewAnalysis(ds, generated)
	ret := retention.Analyze(ds.Activities, s.RiskScoring, generated)
	out, err := NewComposer(s).Summarize(analysis, ret, "2024-10", generated)
	require.NoError(t, err)
	return out
}

func TestSummarize_KeyMetrics(t *testing.T) {
	s := summarize(t, config.Defaults())

	assert.Equal(t, ReportType, s.Metadata.ReportType)
	assert.Equal(t, "2024-10", s.Metadata.ReportPeriod)
	assert.InDelta(t, 113, s.KeyMetrics.TotalCalls, 1e-9)
	assert.InDelta(t, 10.5, s.KeyMetrics.TotalHours, 1e-9)
	assert.Equal(t, 3, s.KeyMetrics.TotalDeals)
	assert.Equal(t, "33.33", s.KeyMetrics.ApprovalRate.String())

	assert.Equal(t, DealStatusBreakdown{Approved: 1, Rejected: 1, Pending: 1, Total: 3}, s.DealStatusBreakdown)

	require.Contains(t, s.BranchPerformance, "東京")
	tokyo := s.BranchPerformance["東京"]
	assert.InDelta(t, 53, tokyo.TotalCalls, 1e-9)
	require.NotNil(t, tokyo.CallsPerStaff)
	assert.Equal(t, "26.50", tokyo.CallsPerStaff.String())

	bill := s.ProductPerformance["Bill One"]
	assert.Equal(t, 2, bill.TotalDeals)
	require.NotNil(t, bill.DealsPerAppointment)
	assert.Equal(t, "1.00", bill.DealsPerAppointment.String())
}

func TestSummarize_StaffRanking(t *testing.T) {
	s := summarize(t, config.Defaults())

	require.Len(t, s.StaffPerformance, 3)
	names := []string{s.StaffPerformance[0].StaffName, s.StaffPerformance[1].StaffName, s.StaffPerformance[2].StaffName}
	assert.Equal(t, []string{"鈴木", "佐藤", "高橋"}, names)
	for i, sp := range s.StaffPerformance {
		assert.Equal(t, i+1, sp.Rank)
	}
}

func TestTopStaff_TiesKeepEncounterOrder(t *testing.T) {
	ds := model.Dataset{
		Activities: []model.ActivityRecord{
			activity(1, day(2024, 10, 1), "A", "東京", "Bill One", 10, 1, 0),
			activity(2, day(2024, 10, 1), "B", "東京", "Bill One", 10, 1, 0),
			activity(3, day(2024, 10, 1), "C", "東京", "Bill One", 20, 1, 0),
			activity(4, day(2024, 10, 1), "D", "東京", "Bill One", 10, 1, 0),
		},
	}
	month := aggregate.Build(ds)["2024-10"]

	settings := config.Defaults()
	settings.MonthlySummary.TopStaffCount = 3
	got := NewComposer(settings).topStaff(month)

	require.Len(t, got, 3)
	assert.Equal(t, "C", got[0].StaffName)
	assert.Equal(t, "A", got[1].StaffName)
	assert.Equal(t, "B", got[2].StaffName)
}

func TestSummarize_EfficiencyFlagsOff(t *testing.T) {
	settings := config.Defaults()
	settings.MonthlySummary.EfficiencyMetrics = config.EfficiencyMetrics{}
	s := summarize(t, settings)

	for _, b := range s.BranchPerformance {
		assert.Nil(t, b.CallsPerStaff)
		assert.Nil(t, b.HoursPerStaff)
	}
	for _, p := range s.ProductPerformance {
		assert.Nil(t, p.CallsPerHour)
		assert.Nil(t, p.AppointmentsPerCall)
		assert.Nil(t, p.DealsPerAppointment)
	}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "calls_per_hour")
	assert.NotContains(t, string(b), "deals_per_appointment")
}

func TestSummarize_MissingPeriod(t *testing.T) {
	ds := testDataset()
	analysis := aggregate.NewAnalysis(ds, generated)
	ret := retention.Analyze(ds.Activities, config.Defaults().RiskScoring, generated)

	_, err := NewComposer(config.Defaults()).Summarize(analysis, ret, "2023-01", generated)
	assert.ErrorIs(t, err, ErrNoMonthData)
}

func TestSummarize_RetentionMetrics(t *testing.T) {
	settings := config.Defaults()
	ds := testDataset()
	ret := retention.Analyze(ds.Activities, settings.RiskScoring, generated)
	s := summarize(t, settings)

	m := s.RetentionMetrics
	assert.Equal(t, 3, m.TotalStaff)
	assert.Equal(t, len(ret.RiskAnalysis.HighRiskStaff), m.HighRiskStaff)
	assert.Equal(t, m.TotalStaff, m.HighRiskStaff+m.MediumRiskStaff+m.LowRiskStaff)
	assert.Equal(t, "100.00", m.RetentionRate.String())
}

func TestSummarize_Alerts(t *testing.T) {
	s := summarize(t, config.Defaults())

	require.Len(t, s.Alerts, 1)
	a := s.Alerts[0]
	assert.Equal(t, SeverityCritical, a.Type)
	assert.Equal(t, MetricApprovalRate, a.Metric)
	assert.Equal(t, "33.33%", a.Value)
	assert.Equal(t, "50%", a.Threshold)
}

func TestEvaluate(t *testing.T) {
	pct := func(v float64) model.Rate { return model.Rate{Value: v, Defined: true} }
	healthy := RetentionMetrics{RetentionRate: pct(80)}

	tests := []struct {
		name     string
		approval model.Rate
		ret      RetentionMetrics
		want     []Severity
		metrics  []AlertMetric
	}{
		{name: "all healthy", approval: pct(70), ret: healthy},
		{name: "approval warning", approval: pct(55), ret: healthy,
			want: []Severity{SeverityWarning}, metrics: []AlertMetric{MetricApprovalRate}},
		{name: "approval critical wins", approval: pct(49.99), ret: healthy,
			want: []Severity{SeverityCritical}, metrics: []AlertMetric{MetricApprovalRate}},
		{name: "approval at warning threshold", approval: pct(60), ret: healthy},
		{name: "high risk warning", approval: pct(70), ret: RetentionMetrics{HighRiskStaff: 10, RetentionRate: pct(80)},
			want: []Severity{SeverityWarning}, metrics: []AlertMetric{MetricHighRiskStaff}},
		{name: "high risk critical", approval: pct(70), ret: RetentionMetrics{HighRiskStaff: 15, RetentionRate: pct(80)},
			want: []Severity{SeverityCritical}, metrics: []AlertMetric{MetricHighRiskStaff}},
		{name: "retention warning", approval: pct(70), ret: RetentionMetrics{RetentionRate: pct(25)},
			want: []Severity{SeverityWarning}, metrics: []AlertMetric{MetricRetentionRate}},
		{name: "undefined approval compares as zero", approval: model.NewPercent(0, 0), ret: healthy,
			want: []Severity{SeverityCritical}, metrics: []AlertMetric{MetricApprovalRate}},
		{name: "undefined rates compare as zero", approval: model.Rate{}, ret: RetentionMetrics{},
			want:    []Severity{SeverityCritical, SeverityCritical},
			metrics: []AlertMetric{MetricApprovalRate, MetricRetentionRate}},
		{name: "all three", approval: pct(10), ret: RetentionMetrics{HighRiskStaff: 12, RetentionRate: pct(5)},
			want:    []Severity{SeverityCritical, SeverityWarning, SeverityCritical},
			metrics: []AlertMetric{MetricApprovalRate, MetricHighRiskStaff, MetricRetentionRate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := Evaluate(config.Defaults().Alerts, tt.approval, tt.ret)
			require.Len(t, alerts, len(tt.want))
			for i, a := range alerts {
				assert.Equal(t, tt.want[i], a.Type)
				assert.Equal(t, tt.metrics[i], a.Metric)
				assert.NotEmpty(t, a.Message)
			}
		})
	}
}

func TestEvaluate_UndefinedApprovalValue(t *testing.T) {
	alerts := Evaluate(config.Defaults().Alerts, model.NewPercent(0, 0), RetentionMetrics{RetentionRate: model.NewPercent(9, 10)})
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Type)
	assert.Equal(t, "0%", alerts[0].Value)
	assert.Equal(t, "50%", alerts[0].Threshold)
}

func TestEvaluate_HighRiskMessage(t *testing.T) {
	healthy := model.NewPercent(80, 100)
	alerts := Evaluate(config.Defaults().Alerts, healthy, RetentionMetrics{HighRiskStaff: 15, RetentionRate: healthy})
	require.Len(t, alerts, 1)
	assert.Equal(t, "15名", alerts[0].Value)
	assert.Equal(t, "15名", alerts[0].Threshold)
}

func TestActivityWarnings(t *testing.T) {
	s := summarize(t, config.Defaults())

	require.Len(t, s.ActivityWarnings, 2)
	suzuki := s.ActivityWarnings[0]
	assert.Equal(t, "鈴木", suzuki.StaffName)
	assert.Equal(t, 1, suzuki.ActivityDays)
	assert.Equal(t, []string{"月間活動日数が2日未満"}, suzuki.Reasons)

	takahashi := s.ActivityWarnings[1]
	assert.Equal(t, "高橋", takahashi.StaffName)
	assert.Len(t, takahashi.Reasons, 3)
}

func TestActivityWarnings_EmptyIsArray(t *testing.T) {
	settings := config.Defaults()
	settings.Alerts.Activity = config.ActivityMinimums{}
	s := summarize(t, settings)

	assert.NotNil(t, s.ActivityWarnings)
	assert.Empty(t, s.ActivityWarnings)
}

func TestCrossTabulate(t *testing.T) {
	month := aggregate.Build(testDataset())["2024-10"]
	got := CrossTabulate(month)

	assert.Equal(t, map[string]float64{"Bill One": 1, "Contract One": 1}, got.TaaanDeals["東京"])
	assert.Equal(t, map[string]float64{"Bill One": 1, "Contract One": 0}, got.TaaanDeals["大阪"])
	assert.Equal(t, map[string]float64{"Bill One": 1, "Contract One": 0}, got.ApprovedDeals["東京"])
	assert.Equal(t, map[string]float64{"Bill One": 6667, "Contract One": 3333}, got.TotalRevenue["東京"])
	assert.NotContains(t, got.TaaanDeals, model.Unspecified)
}

func TestCrossTabulate_NoDeals(t *testing.T) {
	ds := model.Dataset{Activities: []model.ActivityRecord{
		activity(1, day(2024, 10, 1), "A", "東京", "Bill One", 10, 1, 0),
	}}
	got := CrossTabulate(aggregate.Build(ds)["2024-10"])
	assert.Empty(t, got.TaaanDeals)
	assert.NotNil(t, got.TotalRevenue)
}

func TestRoundHalfUp(t *testing.T) {
	assert.InDelta(t, 1, roundHalfUp(0.5), 0)
	assert.InDelta(t, 0, roundHalfUp(0.49), 0)
	assert.InDelta(t, -1, roundHalfUp(-1.5), 0)
	assert.InDelta(t, 3, roundHalfUp(2.5), 0)
}

func TestNewRunLog(t *testing.T) {
	ds := testDataset()
	analysis := aggregate.NewAnalysis(ds, generated)
	ret := retention.Analyze(ds.Activities, config.Defaults().RiskScoring, generated)

	log := NewRunLog("2024-10", "out", nil, nil, analysis, ret, generated)
	assert.Equal(t, 3, log.Summary.TotalStaff)
	assert.Equal(t, 3, log.Summary.TotalDeals)
	assert.Equal(t, "33.33", log.Summary.ApprovalRate.String())

	b, err := json.Marshal(log)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"files_created":[]`)
	assert.NotContains(t, string(b), "files_failed")
}
