package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change analysis settings",
	Long:  "Commands for inspecting, changing, validating, exporting and importing the analysis settings. Changes are written to the settings file.",
}

var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the value at a dotted settings path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Get(cfg.Settings, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every settings path and its value",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatSettings(cmd.OutOrStdout(), config.Flatten(cfg.Settings))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Change one setting and save the settings file",
	Long:  "Values are parsed as JSON when possible (numbers, booleans, arrays) and used as plain strings otherwise.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		next, err := config.Apply(cfg.Settings, args[0], parseValue(args[1]))
		if err != nil {
			return err
		}
		if res := config.Validate(next); !res.Valid {
			printValidation(cmd.OutOrStdout(), res)
			return eris.Errorf("config set: %s: %d problems", args[0], len(res.Errors))
		}
		if err := saveSettings(next); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the current settings for consistency",
	RunE: func(cmd *cobra.Command, _ []string) error {
		res := config.Validate(cfg.Settings)
		printValidation(cmd.OutOrStdout(), res)
		if !res.Valid {
			return eris.Errorf("settings invalid: %d problems", len(res.Errors))
		}
		return nil
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current settings as JSON or YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		data, err := config.Export(cfg.Settings, config.Format(format))
		if err != nil {
			return err
		}
		if output == "" {
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		return eris.Wrapf(os.WriteFile(output, data, 0o644), "config export: write %s", output)
	},
}

var configImportCmd = &cobra.Command{
	Use:         "import <file>",
	Short:       "Import settings from a JSON or YAML file and save them",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipSettingsFile: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "config import: read %s", args[0])
		}

		format, _ := cmd.Flags().GetString("format")
		f := config.Format(format)
		if f == "" {
			f = config.FormatForPath(args[0])
		}

		s, res := config.Import(data, f)
		printValidation(cmd.OutOrStdout(), res)
		if !res.Valid {
			return eris.Errorf("config import: %d problems", len(res.Errors))
		}
		return saveSettings(s)
	},
}

var configResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Restore the default settings",
	Annotations: map[string]string{skipSettingsFile: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := saveSettings(config.Defaults()); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "settings reset to defaults")
		return nil
	},
}

func init() {
	configExportCmd.Flags().String("format", "json", "output format (json, yaml)")
	configExportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	configImportCmd.Flags().String("format", "", "input format (json, yaml); default from the file extension")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}

// saveSettings writes s to the settings file and makes it current.
func saveSettings(s config.Settings) error {
	if cfg.SettingsFile == "" {
		return eris.New("no settings_file configured")
	}
	if err := config.WriteSettings(cfg.SettingsFile, s); err != nil {
		return err
	}
	cfg.Settings = s
	zap.L().Info("settings saved", zap.String("path", cfg.SettingsFile))
	return nil
}

// parseValue decodes raw as JSON, falling back to the raw string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func printValidation(out io.Writer, res config.ValidationResult) {
	if res.Valid {
		_, _ = fmt.Fprintln(out, "settings valid")
		return
	}
	_, _ = fmt.Fprintln(out, "settings invalid:")
	for _, e := range res.Errors {
		_, _ = fmt.Fprintf(out, "  - %s\n", e)
	}
}

// formatSettings writes flattened settings sorted by path.
func formatSettings(out io.Writer, flat map[string]any) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		v := flat[k]
		if list, ok := v.([]any); ok {
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = fmt.Sprint(item)
			}
			v = strings.Join(parts, ", ")
		}
		_, _ = fmt.Fprintf(w, "%s\t%v\n", k, v)
	}
	_ = w.Flush()
}
