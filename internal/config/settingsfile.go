package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// FormatForPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadSettings imports the settings file at path. Invalid content is an error.
func ReadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, eris.Wrapf(err, "config: read settings %s", path)
	}
	s, res := Import(data, FormatForPath(path))
	if !res.Valid {
		return Settings{}, eris.Errorf("config: invalid settings %s: %s", path, strings.Join(res.Errors, "; "))
	}
	return s, nil
}

// WriteSettings exports s to path in the format implied by its extension.
func WriteSettings(path string, s Settings) error {
	data, err := Export(s, FormatForPath(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "config: create %s", dir)
		}
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "config: write settings %s", path)
}

// applySettingsFile replaces cfg.Settings with the settings file when one
// exists.
func applySettingsFile(cfg *Config) error {
	if cfg.SettingsFile == "" {
		return nil
	}
	if _, err := os.Stat(cfg.SettingsFile); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	s, err := ReadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}
	cfg.Settings = s
	return nil
}
