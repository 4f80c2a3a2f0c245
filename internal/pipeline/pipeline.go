// Package pipeline runs one report generation pass: load, normalize, fold,
// compose and write, recording the run and each phase in the run store.
package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/aggregate"
	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/join"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/normalize"
	"github.com/sells-group/salesops-cli/internal/report"
	"github.com/sells-group/salesops-cli/internal/retention"
	"github.com/sells-group/salesops-cli/internal/source"
	"github.com/sells-group/salesops-cli/internal/store"
)

// All-period document names.
const (
	MergedDocument    = "merged_sales_data.json"
	AnalysisDocument  = "sales_analysis_data.json"
	RetentionDocument = "staff_retention_analysis.json"
)

var (
	// ErrIncomplete is returned when a run wrote some but not all documents.
	ErrIncomplete = eris.New("pipeline: run incomplete")
	// ErrNoActivity is returned when no activity report carries a date.
	ErrNoActivity = eris.New("pipeline: no activity months")
)

// Options selects the report periods for Analyze.
type Options struct {
	// Period is a YYYY-MM month present in the analysis. Empty means the
	// latest month with dated activity; months holding only deals are not
	// picked by default.
	Period string
	// AllMonths writes the monthly set for every analysis month.
	AllMonths bool
}

// Pipeline runs one load → normalize → fold → compose → write pass per call.
type Pipeline struct {
	settings    config.Settings
	loader      source.Loader
	sink        store.Sink
	store       store.Store
	sourceLabel string
	now         func() time.Time
}

// New creates a Pipeline. sourceLabel is recorded on each run.
func New(settings config.Settings, loader source.Loader, sink store.Sink, st store.Store, sourceLabel string) *Pipeline {
	return &Pipeline{
		settings:    settings,
		loader:      loader,
		sink:        sink,
		store:       st,
		sourceLabel: sourceLabel,
		now:         time.Now,
	}
}

// execution tracks one run: its phases, written documents and failures.
type execution struct {
	p      *Pipeline
	ctx    context.Context
	run    *model.Run
	result *model.RunResult
	log    *zap.Logger
}

// start creates the run record and returns its execution.
func (p *Pipeline) start(ctx context.Context, mode, period string) (*execution, error) {
	run, err := p.store.CreateRun(ctx, period, p.sourceLabel)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return &execution{
		p:      p,
		ctx:    ctx,
		run:    run,
		result: &model.RunResult{Documents: []string{}, Phases: []model.PhaseResult{}},
		log: zap.L().With(
			zap.String("run_id", run.ID),
			zap.String("mode", mode),
			zap.String("source", p.sourceLabel),
		),
	}, nil
}

// phase runs fn as a named, persisted phase.
func (e *execution) phase(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
	phase, phaseErr := e.p.store.CreatePhase(e.ctx, e.run.ID, name)
	if phaseErr != nil {
		e.log.Warn("pipeline: failed to create phase record", zap.String("phase", name), zap.Error(phaseErr))
	}

	start := time.Now()
	pr, err := fn()
	if pr == nil {
		pr = &model.PhaseResult{}
	}
	pr.Name = name
	pr.Duration = time.Since(start).Milliseconds()

	if err != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = err.Error()
		e.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
			zap.Error(err),
		)
	} else {
		if pr.Status == "" {
			pr.Status = model.PhaseStatusComplete
		}
		e.log.Debug("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
		)
	}

	if phase != nil {
		if cpErr := e.p.store.CompletePhase(e.ctx, phase.ID, pr); cpErr != nil {
			e.log.Warn("pipeline: failed to complete phase record", zap.String("phase", name), zap.Error(cpErr))
		}
	}
	e.result.Phases = append(e.result.Phases, *pr)
	return pr
}

// load reads and normalizes the source tables.
func (e *execution) load() (model.Dataset, error) {
	var tables model.RawTables
	var loadErr error
	e.phase("load", func() (*model.PhaseResult, error) {
		tables, loadErr = e.p.loader.Load(e.ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"roster_rows":     len(tables.Roster),
			"rejections_rows": len(tables.Rejections),
			"deals_rows":      len(tables.Deals),
			"activity_rows":   len(tables.Activity),
		}}, nil
	})
	if loadErr != nil {
		return model.Dataset{}, eris.Wrap(loadErr, "pipeline: load")
	}

	var ds model.Dataset
	e.phase("normalize", func() (*model.PhaseResult, error) {
		n := normalize.New(normalize.LoadLocation(e.p.settings.DataProcessing.Timezone), e.p.now)
		ds = n.Dataset(tables)
		e.result.Activities = len(ds.Activities)
		e.result.Deals = len(ds.Deals)
		e.result.Rejections = len(ds.Rejections)
		e.result.Workers = len(ds.Roster)
		e.result.ParseFaults = n.Faults()
		if n.Faults() > 0 {
			e.log.Debug("pipeline: parse faults recovered", zap.Int("faults", n.Faults()))
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"activities":   len(ds.Activities),
			"deals":        len(ds.Deals),
			"rejections":   len(ds.Rejections),
			"workers":      len(ds.Roster),
			"parse_faults": n.Faults(),
		}}, nil
	})
	return ds, nil
}

// write encodes doc and hands it to the sink. Failures are recorded and
// reported but do not stop the run.
func (e *execution) write(folder, name string, doc any) bool {
	pr := e.phase("write:"+folder+"/"+name, func() (*model.PhaseResult, error) {
		if err := e.ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: write cancelled")
		}
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: encode %s", name)
		}
		if err := e.p.sink.WriteDocument(e.ctx, folder, name, body); err != nil {
			return nil, err
		}
		return &model.PhaseResult{Metadata: map[string]any{"bytes": len(body)}}, nil
	})
	if pr.Status == model.PhaseStatusFailed {
		e.result.Failed = append(e.result.Failed, folder+"/"+name)
		return false
	}
	e.result.Documents = append(e.result.Documents, folder+"/"+name)
	return true
}

// skip records a document that could not be produced.
func (e *execution) skip(folder, name string, reason error) {
	e.phase("write:"+folder+"/"+name, func() (*model.PhaseResult, error) {
		return nil, reason
	})
	e.result.Failed = append(e.result.Failed, folder+"/"+name)
}

// finish persists the final status and result. fatal is a run-level error.
func (e *execution) finish(start time.Time, fatal error) (*model.Run, error) {
	e.result.DurationMs = time.Since(start).Milliseconds()

	status := model.RunStatusComplete
	var err error
	switch {
	case fatal != nil:
		status = model.RunStatusFailed
		e.result.Error = fatal.Error()
		err = fatal
	case len(e.result.Failed) > 0 && len(e.result.Documents) == 0:
		status = model.RunStatusFailed
		err = eris.Wrapf(ErrIncomplete, "pipeline: all %d documents failed", len(e.result.Failed))
	case len(e.result.Failed) > 0:
		status = model.RunStatusPartial
		err = eris.Wrapf(ErrIncomplete, "pipeline: %d documents failed", len(e.result.Failed))
	}
	if err != nil && e.result.Error == "" {
		e.result.Error = err.Error()
	}

	// Recorded even when ctx is cancelled. When the result cannot be stored
	// the status alone is, so the run does not stay running.
	ctx := context.WithoutCancel(e.ctx)
	if updateErr := e.p.store.UpdateRunResult(ctx, e.run.ID, status, e.result); updateErr != nil {
		e.log.Warn("pipeline: failed to update run result", zap.Error(updateErr))
		if statusErr := e.p.store.UpdateRunStatus(ctx, e.run.ID, status); statusErr != nil {
			e.log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	e.run.Status = status
	e.run.Result = e.result
	e.log.Info("pipeline: run finished",
		zap.String("status", string(status)),
		zap.Int("documents", len(e.result.Documents)),
		zap.Int("failed", len(e.result.Failed)),
		zap.Int64("duration_ms", e.result.DurationMs),
	)
	return e.run, err
}

// Analyze produces the full monthly report set. With a single period it
// writes the basic analysis and retention documents to the all-period folder
// and the monthly set for that period. With AllMonths it also writes the
// merged view and repeats the monthly set for every month.
func (p *Pipeline) Analyze(ctx context.Context, opts Options) (*model.Run, error) {
	label := opts.Period
	if opts.AllMonths {
		label = "all"
	}
	e, err := p.start(ctx, "analyze", label)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	ds, err := e.load()
	if err != nil {
		return e.finish(start, err)
	}

	generatedAt := p.now()
	var analysis *aggregate.Analysis
	var ret *retention.Document
	e.phase("analyze", func() (*model.PhaseResult, error) {
		analysis = aggregate.NewAnalysis(ds, generatedAt)
		ret = retention.Analyze(ds.Activities, p.settings.RiskScoring, generatedAt)
		return &model.PhaseResult{Metadata: map[string]any{
			"months": analysis.Metadata.TotalMonths,
			"staff":  len(ret.StaffRetentionAnalysis),
		}}, nil
	})

	periods, err := selectPeriods(analysis.MonthlyAnalysis.Months(), activityMonths(ds.Activities), opts)
	if err != nil {
		return e.finish(start, err)
	}
	e.result.Periods = periods
	e.log.Info("pipeline: report periods selected", zap.Strings("periods", periods))

	fm := p.settings.FileManagement
	e.write(fm.AllPeriodFolder, AnalysisDocument, analysis)
	e.write(fm.AllPeriodFolder, RetentionDocument, ret)
	if opts.AllMonths {
		e.write(fm.AllPeriodFolder, MergedDocument, join.Compose(ds.Activities, ds.Deals, ds.Rejections, p.settings.Join))
	}

	composer := report.NewComposer(p.settings)
	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			return e.finish(start, eris.Wrap(err, "pipeline: analyze cancelled"))
		}
		p.writeMonthly(e, composer, ds, analysis, ret, period, generatedAt)
	}
	return e.finish(start, nil)
}

// writeMonthly writes the monthly document set for period: summary,
// retention, detailed, basic, then the run log naming what was written.
func (p *Pipeline) writeMonthly(e *execution, composer *report.Composer, ds model.Dataset, analysis *aggregate.Analysis, ret *retention.Document, period string, generatedAt time.Time) {
	fm := p.settings.FileManagement
	folder := fm.FolderName
	naming := fm.FileNaming

	detailed := aggregate.NewDetailed(ds, period, generatedAt)
	e.write(folder, "detailed_sales_analysis_"+period+".json", detailed)

	var created, failed []string
	track := func(name string, ok bool) {
		if ok {
			created = append(created, name)
		} else {
			failed = append(failed, name)
		}
	}

	summaryName := DocumentName(naming.Summary, period)
	summary, err := composer.Summarize(analysis, ret, period, generatedAt)
	if err != nil {
		e.skip(folder, summaryName, err)
		track(summaryName, false)
	} else {
		track(summaryName, e.write(folder, summaryName, summary))
	}

	retentionName := DocumentName(naming.Retention, period)
	track(retentionName, e.write(folder, retentionName, ret))
	detailedName := DocumentName(naming.Detailed, period)
	track(detailedName, e.write(folder, detailedName, detailed))
	basicName := DocumentName(naming.Basic, period)
	track(basicName, e.write(folder, basicName, analysis))

	runLog := report.NewRunLog(period, p.sink.Location(), created, failed, analysis, ret, p.now())
	e.write(folder, DocumentName(naming.Log, period), runLog)
}

// Merge writes only the merged per-report view.
func (p *Pipeline) Merge(ctx context.Context) (*model.Run, error) {
	e, err := p.start(ctx, "merge", "all")
	if err != nil {
		return nil, err
	}
	start := time.Now()

	ds, err := e.load()
	if err != nil {
		return e.finish(start, err)
	}

	var merged []join.CompositeReport
	e.phase("compose", func() (*model.PhaseResult, error) {
		merged = join.Compose(ds.Activities, ds.Deals, ds.Rejections, p.settings.Join)
		return &model.PhaseResult{Metadata: map[string]any{"reports": len(merged)}}, nil
	})
	e.write(p.settings.FileManagement.AllPeriodFolder, MergedDocument, merged)
	return e.finish(start, nil)
}

// Retention writes only the retention / risk document.
func (p *Pipeline) Retention(ctx context.Context) (*model.Run, error) {
	e, err := p.start(ctx, "retention", "all")
	if err != nil {
		return nil, err
	}
	start := time.Now()

	ds, err := e.load()
	if err != nil {
		return e.finish(start, err)
	}

	var ret *retention.Document
	e.phase("retention", func() (*model.PhaseResult, error) {
		ret = retention.Analyze(ds.Activities, p.settings.RiskScoring, p.now())
		return &model.PhaseResult{Metadata: map[string]any{
			"staff":     len(ret.StaffRetentionAnalysis),
			"high_risk": len(ret.RiskAnalysis.HighRiskStaff),
		}}, nil
	})
	e.write(p.settings.FileManagement.AllPeriodFolder, RetentionDocument, ret)
	return e.finish(start, nil)
}

// DocumentName joins a configured prefix and a period into a JSON filename.
func DocumentName(prefix, period string) string {
	return prefix + period + ".json"
}

// activityMonths returns the months with dated activity, ascending.
func activityMonths(activities []model.ActivityRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range activities {
		if m := model.MonthKey(a.Date); m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// selectPeriods resolves opts against the analysis months. The default period
// is the latest activity month.
func selectPeriods(months, active []string, opts Options) ([]string, error) {
	if len(active) == 0 {
		return nil, ErrNoActivity
	}
	switch {
	case opts.AllMonths:
		return months, nil
	case opts.Period == "":
		return []string{active[len(active)-1]}, nil
	case contains(months, opts.Period):
		return []string{opts.Period}, nil
	default:
		return nil, eris.Wrapf(report.ErrNoMonthData, "pipeline: period %s", opts.Period)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
