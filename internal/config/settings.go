package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPath is returned when a dotted settings path does not resolve.
var ErrInvalidPath = eris.New("config: invalid path")

// Settings is the analysis configuration passed to every engine component.
// It is a value: Apply returns a modified copy and never mutates its input.
type Settings struct {
	Alerts         AlertSettings          `json:"alerts" yaml:"alerts" mapstructure:"alerts"`
	RiskScoring    RiskScoring            `json:"risk_scoring" yaml:"risk_scoring" mapstructure:"risk_scoring"`
	MonthlySummary MonthlySummarySettings `json:"monthly_summary" yaml:"monthly_summary" mapstructure:"monthly_summary"`
	FileManagement FileManagement         `json:"file_management" yaml:"file_management" mapstructure:"file_management"`
	DataProcessing DataProcessing         `json:"data_processing" yaml:"data_processing" mapstructure:"data_processing"`
	Join           JoinSettings           `json:"join" yaml:"join" mapstructure:"join"`
}

// Threshold pairs a warning level with a critical level.
type Threshold struct {
	Warning  float64 `json:"warning_threshold" yaml:"warning_threshold" mapstructure:"warning_threshold"`
	Critical float64 `json:"critical_threshold" yaml:"critical_threshold" mapstructure:"critical_threshold"`
}

// AlertSettings holds the thresholds the monthly summary alerts on.
type AlertSettings struct {
	ApprovalRate  Threshold        `json:"approval_rate" yaml:"approval_rate" mapstructure:"approval_rate"`
	Retention     Threshold        `json:"retention" yaml:"retention" mapstructure:"retention"`
	HighRiskStaff Threshold        `json:"high_risk_staff" yaml:"high_risk_staff" mapstructure:"high_risk_staff"`
	Activity      ActivityMinimums `json:"activity" yaml:"activity" mapstructure:"activity"`
}

// ActivityMinimums are per-worker monthly floors below which a warning is raised.
type ActivityMinimums struct {
	MinCallsPerMonth float64 `json:"min_calls_per_month" yaml:"min_calls_per_month" mapstructure:"min_calls_per_month"`
	MinHoursPerMonth float64 `json:"min_hours_per_month" yaml:"min_hours_per_month" mapstructure:"min_hours_per_month"`
	MinActivityDays  int     `json:"min_activity_days" yaml:"min_activity_days" mapstructure:"min_activity_days"`
}

// RiskScoring configures the attrition risk score.
type RiskScoring struct {
	Weights    RiskWeights    `json:"weights" yaml:"weights" mapstructure:"weights"`
	Thresholds RiskThresholds `json:"thresholds" yaml:"thresholds" mapstructure:"thresholds"`
	Factors    RiskFactors    `json:"factors" yaml:"factors" mapstructure:"factors"`
}

// RiskWeights is the score contribution of each factor when it fires.
type RiskWeights struct {
	LowActivityRate        float64 `json:"low_activity_rate" yaml:"low_activity_rate" mapstructure:"low_activity_rate"`
	RecentInactivity       float64 `json:"recent_inactivity" yaml:"recent_inactivity" mapstructure:"recent_inactivity"`
	LowPerformance         float64 `json:"low_performance" yaml:"low_performance" mapstructure:"low_performance"`
	ShortTenureLowActivity float64 `json:"short_tenure_low_activity" yaml:"short_tenure_low_activity" mapstructure:"short_tenure_low_activity"`
	UnstableActivity       float64 `json:"unstable_activity" yaml:"unstable_activity" mapstructure:"unstable_activity"`
}

// RiskThresholds map a score to a risk level.
type RiskThresholds struct {
	HighRisk   float64 `json:"high_risk" yaml:"high_risk" mapstructure:"high_risk"`
	MediumRisk float64 `json:"medium_risk" yaml:"medium_risk" mapstructure:"medium_risk"`
}

// RiskFactors are the trigger conditions for each factor.
type RiskFactors struct {
	ActivityRateThreshold       float64 `json:"activity_rate_threshold" yaml:"activity_rate_threshold" mapstructure:"activity_rate_threshold"`
	RecentActivityDaysThreshold int     `json:"recent_activity_days_threshold" yaml:"recent_activity_days_threshold" mapstructure:"recent_activity_days_threshold"`
	AppointmentRateThreshold    float64 `json:"appointment_rate_threshold" yaml:"appointment_rate_threshold" mapstructure:"appointment_rate_threshold"`
	ShortTenureMonths           int     `json:"short_tenure_months" yaml:"short_tenure_months" mapstructure:"short_tenure_months"`
	MinActivityDaysShortTenure  int     `json:"min_activity_days_short_tenure" yaml:"min_activity_days_short_tenure" mapstructure:"min_activity_days_short_tenure"`
	ActivityVarianceThreshold   float64 `json:"activity_variance_threshold" yaml:"activity_variance_threshold" mapstructure:"activity_variance_threshold"`
}

// MonthlySummarySettings controls the monthly summary document.
type MonthlySummarySettings struct {
	TopStaffCount     int               `json:"top_staff_count" yaml:"top_staff_count" mapstructure:"top_staff_count"`
	EfficiencyMetrics EfficiencyMetrics `json:"efficiency_metrics" yaml:"efficiency_metrics" mapstructure:"efficiency_metrics"`
}

// EfficiencyMetrics toggles optional efficiency fields in performance slices.
type EfficiencyMetrics struct {
	ShowCallsPerHour        bool `json:"show_calls_per_hour" yaml:"show_calls_per_hour" mapstructure:"show_calls_per_hour"`
	ShowAppointmentsPerCall bool `json:"show_appointments_per_call" yaml:"show_appointments_per_call" mapstructure:"show_appointments_per_call"`
	ShowDealsPerAppointment bool `json:"show_deals_per_appointment" yaml:"show_deals_per_appointment" mapstructure:"show_deals_per_appointment"`
}

// FileManagement controls document placement and naming.
type FileManagement struct {
	FolderName      string     `json:"folder_name" yaml:"folder_name" mapstructure:"folder_name"`
	AllPeriodFolder string     `json:"all_period_folder" yaml:"all_period_folder" mapstructure:"all_period_folder"`
	FileNaming      FileNaming `json:"file_naming" yaml:"file_naming" mapstructure:"file_naming"`
}

// FileNaming holds the per-document filename prefixes.
type FileNaming struct {
	Summary   string `json:"summary" yaml:"summary" mapstructure:"summary"`
	Retention string `json:"retention" yaml:"retention" mapstructure:"retention"`
	Detailed  string `json:"detailed" yaml:"detailed" mapstructure:"detailed"`
	Basic     string `json:"basic" yaml:"basic" mapstructure:"basic"`
	Log       string `json:"log" yaml:"log" mapstructure:"log"`
}

// DataProcessing controls input interpretation.
type DataProcessing struct {
	Timezone string `json:"timezone" yaml:"timezone" mapstructure:"timezone"`
}

// JoinSettings controls the activity/deal/rejection join.
type JoinSettings struct {
	// ExternalRejectionProducts take their rejection reason from the
	// rejection log instead of the deal's inline reason.
	ExternalRejectionProducts []string `json:"external_rejection_products" yaml:"external_rejection_products" mapstructure:"external_rejection_products"`
}

// Defaults returns the built-in analysis settings.
func Defaults() Settings {
	return Settings{
		Alerts: AlertSettings{
			ApprovalRate:  Threshold{Warning: 60, Critical: 50},
			Retention:     Threshold{Warning: 30, Critical: 20},
			HighRiskStaff: Threshold{Warning: 10, Critical: 15},
			Activity: ActivityMinimums{
				MinCallsPerMonth: 5,
				MinHoursPerMonth: 1,
				MinActivityDays:  2,
			},
		},
		RiskScoring: RiskScoring{
			Weights: RiskWeights{
				LowActivityRate:        50,
				RecentInactivity:       10,
				LowPerformance:         40,
				ShortTenureLowActivity: 15,
				UnstableActivity:       10,
			},
			Thresholds: RiskThresholds{HighRisk: 50, MediumRisk: 30},
			Factors: RiskFactors{
				ActivityRateThreshold:       50,
				RecentActivityDaysThreshold: 5,
				AppointmentRateThreshold:    2,
				ShortTenureMonths:           3,
				MinActivityDaysShortTenure:  10,
				ActivityVarianceThreshold:   10,
			},
		},
		MonthlySummary: MonthlySummarySettings{
			TopStaffCount: 10,
			EfficiencyMetrics: EfficiencyMetrics{
				ShowCallsPerHour:        true,
				ShowAppointmentsPerCall: true,
				ShowDealsPerAppointment: true,
			},
		},
		FileManagement: FileManagement{
			FolderName:      "月次営業分析レポート",
			AllPeriodFolder: "インサイドセールス分析データ",
			FileNaming: FileNaming{
				Summary:   "月次サマリー_",
				Retention: "定着率分析_",
				Detailed:  "詳細分析_",
				Basic:     "基本分析_",
				Log:       "実行ログ_",
			},
		},
		DataProcessing: DataProcessing{Timezone: "Asia/Tokyo"},
		Join: JoinSettings{
			ExternalRejectionProducts: []string{"Bill One", "Bill One経費"},
		},
	}
}

// requiredSections must be present in an imported payload.
var requiredSections = []string{"alerts", "risk_scoring"}

// ValidationResult reports whether settings are internally consistent.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks that s is internally consistent. Violations are collected,
// never returned as an error.
func Validate(s Settings) ValidationResult {
	var errs []string

	// Higher is better: warning fires first, so it must sit at or above critical.
	higherBetter := []struct {
		name string
		t    Threshold
	}{
		{"alerts.approval_rate", s.Alerts.ApprovalRate},
		{"alerts.retention", s.Alerts.Retention},
	}
	for _, hb := range higherBetter {
		if hb.t.Warning < hb.t.Critical {
			errs = append(errs, fmt.Sprintf("%s.warning_threshold (%g) must be >= critical_threshold (%g)",
				hb.name, hb.t.Warning, hb.t.Critical))
		}
	}

	// High-risk staff is a count where lower is better.
	if s.Alerts.HighRiskStaff.Warning > s.Alerts.HighRiskStaff.Critical {
		errs = append(errs, fmt.Sprintf("alerts.high_risk_staff.warning_threshold (%g) must be <= critical_threshold (%g)",
			s.Alerts.HighRiskStaff.Warning, s.Alerts.HighRiskStaff.Critical))
	}

	if s.RiskScoring.Thresholds.HighRisk < s.RiskScoring.Thresholds.MediumRisk {
		errs = append(errs, fmt.Sprintf("risk_scoring.thresholds.high_risk (%g) must be >= medium_risk (%g)",
			s.RiskScoring.Thresholds.HighRisk, s.RiskScoring.Thresholds.MediumRisk))
	}

	weights := map[string]float64{
		"low_activity_rate":         s.RiskScoring.Weights.LowActivityRate,
		"recent_inactivity":         s.RiskScoring.Weights.RecentInactivity,
		"low_performance":           s.RiskScoring.Weights.LowPerformance,
		"short_tenure_low_activity": s.RiskScoring.Weights.ShortTenureLowActivity,
		"unstable_activity":         s.RiskScoring.Weights.UnstableActivity,
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if weights[name] < 0 {
			errs = append(errs, fmt.Sprintf("risk_scoring.weights.%s must be >= 0", name))
		}
	}

	if s.MonthlySummary.TopStaffCount <= 0 {
		errs = append(errs, "monthly_summary.top_staff_count must be > 0")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Get returns the value at a dotted path such as "alerts.retention.warning_threshold".
func Get(s Settings, path string) (any, error) {
	m, err := toMap(s)
	if err != nil {
		return nil, err
	}

	var cur any = m
	for _, seg := range splitPath(path) {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, eris.Wrapf(ErrInvalidPath, "config: %s", path)
		}
		cur, ok = node[seg]
		if !ok {
			return nil, eris.Wrapf(ErrInvalidPath, "config: %s", path)
		}
	}
	return cur, nil
}

// Apply returns a copy of s with the value at path replaced. Every segment of
// path must already exist; Apply never creates keys. String values are
// coerced to the target type, so "65" sets a numeric threshold.
func Apply(s Settings, path string, value any) (Settings, error) {
	m, err := toMap(s)
	if err != nil {
		return s, err
	}

	segs := splitPath(path)
	if len(segs) == 0 {
		return s, eris.Wrapf(ErrInvalidPath, "config: %q", path)
	}

	node := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			return s, eris.Wrapf(ErrInvalidPath, "config: %s", path)
		}
		node = next
	}
	leaf := segs[len(segs)-1]
	if _, ok := node[leaf]; !ok {
		return s, eris.Wrapf(ErrInvalidPath, "config: %s", path)
	}
	if _, isSection := node[leaf].(map[string]any); isSection {
		if _, ok := value.(map[string]any); !ok {
			return s, eris.Errorf("config: %s is a section and needs an object value", path)
		}
	}
	node[leaf] = value

	var out Settings
	if err := decode(m, &out, nil); err != nil {
		return s, eris.Wrapf(err, "config: set %s", path)
	}
	return out, nil
}

// Format selects the serialization used by Export and Import.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Export serializes s.
func Export(s Settings, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		out, err := yaml.Marshal(s)
		return out, eris.Wrap(err, "config: export yaml")
	case FormatJSON, "":
		out, err := json.MarshalIndent(s, "", "  ")
		return out, eris.Wrap(err, "config: export json")
	default:
		return nil, eris.Errorf("config: unsupported export format %q", format)
	}
}

// Import parses a serialized payload on top of the defaults. Malformed or
// inconsistent payloads produce a failed ValidationResult rather than an
// error; the returned Settings is only meaningful when the result is valid.
func Import(data []byte, format Format) (Settings, ValidationResult) {
	raw := map[string]any{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Settings{}, ValidationResult{Errors: []string{"invalid YAML format: " + err.Error()}}
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return Settings{}, ValidationResult{Errors: []string{"invalid JSON format: " + err.Error()}}
		}
	}

	var errs []string
	for _, section := range requiredSections {
		if _, ok := raw[section]; !ok {
			errs = append(errs, "missing required section: "+section)
		}
	}

	out := Defaults()
	if join, ok := raw["join"].(map[string]any); ok {
		if _, ok := join["external_rejection_products"]; ok {
			out.Join.ExternalRejectionProducts = nil
		}
	}
	var md mapstructure.Metadata
	if err := decode(raw, &out, &md); err != nil {
		errs = append(errs, err.Error())
	}
	sort.Strings(md.Unused)
	for _, key := range md.Unused {
		errs = append(errs, "unknown key: "+key)
	}

	res := Validate(out)
	res.Errors = append(errs, res.Errors...)
	res.Valid = len(res.Errors) == 0
	return out, res
}

// Flatten returns every leaf of s keyed by its dotted path.
func Flatten(s Settings) map[string]any {
	m, err := toMap(s)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenInto(out, key, sub)
			continue
		}
		out[key] = v
	}
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func toMap(s Settings) (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal settings")
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal settings")
	}
	return m, nil
}

func decode(input any, out *Settings, md *mapstructure.Metadata) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		Metadata:         md,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return eris.Wrap(err, "config: build decoder")
	}
	return dec.Decode(input)
}
