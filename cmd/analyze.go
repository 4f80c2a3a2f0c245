package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/pipeline"
	"github.com/sells-group/salesops-cli/internal/source"
	"github.com/sells-group/salesops-cli/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Generate the monthly report set",
	Long:  "Writes the basic analysis and retention documents for all periods, then the summary, retention, detailed, basic and run log documents for the selected month.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		period, _ := cmd.Flags().GetString("period")
		allMonths, _ := cmd.Flags().GetBool("all-months")

		if period != "" {
			if _, err := time.Parse("2006-01", period); err != nil {
				return eris.Errorf("analyze: period %q is not YYYY-MM", period)
			}
		}

		return runPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*model.Run, error) {
			return p.Analyze(ctx, pipeline.Options{Period: period, AllMonths: allMonths})
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Write the merged per-report view",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*model.Run, error) {
			return p.Merge(ctx)
		})
	},
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Write the staff retention and risk analysis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*model.Run, error) {
			return p.Retention(ctx)
		})
	},
}

func init() {
	analyzeCmd.Flags().String("period", "", "report month as YYYY-MM (default: latest month with activity)")
	analyzeCmd.Flags().Bool("all-months", false, "write the monthly report set for every month")
	analyzeCmd.MarkFlagsMutuallyExclusive("period", "all-months")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(retentionCmd)
}

// runPipeline wires the configured source, sink and store, runs fn and
// prints the run outcome.
func runPipeline(cmd *cobra.Command, fn func(context.Context, *pipeline.Pipeline) (*model.Run, error)) error {
	ctx := cmd.Context()

	if res := config.Validate(cfg.Settings); !res.Valid {
		return eris.Errorf("invalid settings: %s", strings.Join(res.Errors, "; "))
	}

	loader, err := source.New(cfg.Source)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	sink, err := store.OpenSink(ctx, cfg.Sink, st)
	if err != nil {
		return err
	}

	zap.L().Info("starting run",
		zap.String("command", cmd.Name()),
		zap.String("source", sourceLabel(cfg.Source)),
		zap.String("destination", sink.Location()),
	)

	p := pipeline.New(cfg.Settings, loader, sink, st, sourceLabel(cfg.Source))
	run, err := fn(ctx, p)
	if run != nil {
		formatRunOutcome(cmd.OutOrStdout(), run)
	}
	return err
}

// sourceLabel names the input for run records.
func sourceLabel(sc config.SourceConfig) string {
	if sc.URL != "" {
		return sc.URL
	}
	return sc.Path
}

// formatRunOutcome writes a short run summary to out.
func formatRunOutcome(out io.Writer, run *model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	if r := run.Result; r != nil {
		if len(r.Periods) > 0 {
			_, _ = fmt.Fprintf(w, "Periods:\t%s\n", strings.Join(r.Periods, ", "))
		}
		_, _ = fmt.Fprintf(w, "Records:\t%d activities, %d deals, %d rejections, %d workers\n",
			r.Activities, r.Deals, r.Rejections, r.Workers)
		if r.ParseFaults > 0 {
			_, _ = fmt.Fprintf(w, "Parse faults:\t%d\n", r.ParseFaults)
		}
		_, _ = fmt.Fprintf(w, "Documents:\t%d written\n", len(r.Documents))
		for _, f := range r.Failed {
			_, _ = fmt.Fprintf(w, "  failed:\t%s\n", f)
		}
	}
	_ = w.Flush()
}
