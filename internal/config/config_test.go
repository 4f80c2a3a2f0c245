package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "xlsx", cfg.Source.Kind)
	assert.Equal(t, "学生日報", cfg.Source.Sheets.Activity)
	assert.Equal(t, "activity", cfg.Source.Files.Activity)
	assert.Equal(t, 3, cfg.Source.MaxRetries)
	assert.Equal(t, "file", cfg.Sink.Driver)
	assert.Equal(t, "reports", cfg.Sink.Dir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, Defaults(), cfg.Settings)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	yaml := `
source:
  kind: csv
  path: ./exports
sink:
  driver: s3
  s3:
    bucket: sales-reports
log:
  level: debug
  format: console
settings:
  monthly_summary:
    top_staff_count: 5
  risk_scoring:
    thresholds:
      high_risk: 70
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Source.Kind)
	assert.Equal(t, "./exports", cfg.Source.Path)
	assert.Equal(t, "s3", cfg.Sink.Driver)
	assert.Equal(t, "sales-reports", cfg.Sink.S3.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Settings.MonthlySummary.TopStaffCount)
	assert.InDelta(t, 70, cfg.Settings.RiskScoring.Thresholds.HighRisk, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 30, cfg.Settings.RiskScoring.Thresholds.MediumRisk, 0.001)
	assert.Equal(t, []string{"Bill One", "Bill One経費"}, cfg.Settings.Join.ExternalRejectionProducts)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: postgres\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("SALESOPS_LOG_LEVEL", "error")
	t.Setenv("SALESOPS_SETTINGS_MONTHLY_SUMMARY_TOP_STAFF_COUNT", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Settings.MonthlySummary.TopStaffCount)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json info", LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", LogConfig{Level: "debug", Format: "console"}, false},
		{"bad level", LogConfig{Level: "loud", Format: "json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
}

func TestLoadSettingsFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	s := Defaults()
	s.MonthlySummary.TopStaffCount = 4
	require.NoError(t, WriteSettings("settings.json", s))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Settings.MonthlySummary.TopStaffCount)
}

func TestLoadSettingsFileInvalid(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	require.NoError(t, os.WriteFile("settings.json", []byte(`{"alerts": `), 0o644))

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON format")
}

func TestLoadBaseIgnoresSettingsFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	require.NoError(t, os.WriteFile("settings.json", []byte(`{"alerts": `), 0o644))

	cfg, err := LoadBase("")
	require.NoError(t, err)
	assert.Equal(t, "settings.json", cfg.SettingsFile)
	assert.Equal(t, Defaults(), cfg.Settings)
}

func TestWriteReadSettingsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s := Defaults()
	s.Alerts.Retention.Warning = 40

	require.NoError(t, WriteSettings(path, s))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "warning_threshold: 40")

	got, err := ReadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("a.YML"))
	assert.Equal(t, FormatYAML, FormatForPath("a.yaml"))
	assert.Equal(t, FormatJSON, FormatForPath("a.json"))
	assert.Equal(t, FormatJSON, FormatForPath("settings"))
}
