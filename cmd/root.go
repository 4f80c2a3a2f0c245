package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string
)

// skipSettingsFile marks commands that load config without the saved
// settings file.
const skipSettingsFile = "skip-settings-file"

var rootCmd = &cobra.Command{
	Use:   "salesops-cli",
	Short: "Monthly inside-sales analysis reports",
	Long:  "Reads the daily activity, deal, rejection and roster tables, folds them into monthly analyses, retention risk and summary reports, and writes JSON documents to a file, S3 or database sink.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		load := config.Load
		if cmd.Annotations[skipSettingsFile] == "true" {
			load = config.LoadBase
		}
		c, err := load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
