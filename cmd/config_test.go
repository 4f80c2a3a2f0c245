package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops-cli/internal/config"
)

func TestConfigGet(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	out, err := executeCommand(t, dir, "config", "get", "alerts.approval_rate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"warning_threshold":60,"critical_threshold":50}`, out)
}

func TestConfigGet_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := executeCommand(t, dir, "config", "get", "alerts.nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidPath)
}

func TestConfigSet_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	out, err := executeCommand(t, dir, "config", "set", "alerts.retention.warning_threshold", "45")
	require.NoError(t, err)
	assert.Contains(t, out, "alerts.retention.warning_threshold = 45")

	saved, err := config.ReadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.InDelta(t, 45, saved.Alerts.Retention.Warning, 1e-9)

	out, err = executeCommand(t, dir, "config", "get", "alerts.retention.warning_threshold")
	require.NoError(t, err)
	assert.JSONEq(t, `45`, out)
}

func TestConfigSet_ListValue(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := executeCommand(t, dir, "config", "set", "join.external_rejection_products", `["Bill One"]`)
	require.NoError(t, err)

	saved, err := config.ReadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bill One"}, saved.Join.ExternalRejectionProducts)
}

func TestConfigSet_UnknownPathNotCreated(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := executeCommand(t, dir, "config", "set", "alerts.brand_new.value", "1")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "settings.json"))
}

func TestConfigSet_RejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	out, err := executeCommand(t, dir, "config", "set", "alerts.approval_rate.warning_threshold", "40")
	require.Error(t, err)
	assert.Contains(t, out, "must be >= critical_threshold")
	assert.NoFileExists(t, filepath.Join(dir, "settings.json"))

	out, err = executeCommand(t, dir, "config", "get", "alerts.approval_rate.warning_threshold")
	require.NoError(t, err)
	assert.JSONEq(t, `60`, out)
}

func TestConfigReset_RecoversInvalidSettingsFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	s := config.Defaults()
	s.Alerts.ApprovalRate.Warning = 40
	require.NoError(t, config.WriteSettings(filepath.Join(dir, "settings.json"), s))

	_, err := executeCommand(t, dir, "config", "get", "alerts")
	require.Error(t, err, "an invalid settings file fails config loading")

	_, err = executeCommand(t, dir, "config", "reset")
	require.NoError(t, err)

	out, err := executeCommand(t, dir, "config", "get", "alerts.approval_rate.warning_threshold")
	require.NoError(t, err)
	assert.JSONEq(t, `60`, out)
}

func TestConfigImport_ReplacesInvalidSettingsFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{"alerts": [`), 0o644))

	good := filepath.Join(dir, "good.json")
	require.NoError(t, config.WriteSettings(good, config.Defaults()))

	out, err := executeCommand(t, dir, "config", "import", good)
	require.NoError(t, err)
	assert.Contains(t, out, "settings valid")

	saved, err := config.ReadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), saved)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
settings:
  alerts:
    approval_rate:
      warning_threshold: 40
      critical_threshold: 50
`)

	out, err := executeCommand(t, dir, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "alerts.approval_rate.warning_threshold")
}

func TestConfigExportImport(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	exported := filepath.Join(dir, "exported.yaml")
	_, err := executeCommand(t, dir, "config", "export", "--format", "yaml", "-o", exported)
	require.NoError(t, err)
	assert.FileExists(t, exported)

	out, err := executeCommand(t, dir, "config", "import", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "settings valid")

	saved, err := config.ReadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), saved)
}

func TestConfigExport_JSONStdout(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	out, err := executeCommand(t, dir, "config", "export", "--format", "json")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Contains(t, m, "risk_scoring")
}

func TestConfigImport_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"alerts": [`), 0o644))

	out, err := executeCommand(t, dir, "config", "import", bad)
	require.Error(t, err)
	assert.Contains(t, out, "invalid JSON format")
	assert.NoFileExists(t, filepath.Join(dir, "settings.json"))
}

func TestConfigReset(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := executeCommand(t, dir, "config", "set", "monthly_summary.top_staff_count", "3")
	require.NoError(t, err)

	out, err := executeCommand(t, dir, "config", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "reset")

	saved, err := config.ReadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), saved)
}

func TestConfigList(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	out, err := executeCommand(t, dir, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alerts.approval_rate.critical_threshold")
	assert.Contains(t, out, "Bill One, Bill One経費")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(65), parseValue("65"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, []any{"a"}, parseValue(`["a"]`))
	assert.Equal(t, "Asia/Tokyo", parseValue("Asia/Tokyo"))
}
