// Package pipeline runs one formatting job: parse a workbook into
// canonical records, apply post-filters, and drop NG-list matches.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gchange/internal/directory"
	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/ngmatch"
	"github.com/sells-group/gchange/internal/nglist"
	"github.com/sells-group/gchange/internal/reconcile"
)

// RunRecorder persists a summary of each run. store.Store satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *model.Run) error
}

// Input is one workbook to format.
type Input struct {
	// Source names the input in logs and run history.
	Source   string
	Workbook model.Workbook
	// Layout overrides detection unless empty or auto.
	Layout model.Layout
}

// Result is the outcome of one run.
type Result struct {
	RunID    string          `json:"run_id"`
	Source   string          `json:"source"`
	Layout   model.Layout    `json:"layout"`
	NGList   string          `json:"nglist,omitempty"`
	Filtered bool            `json:"filtered"`
	Total    int             `json:"total"`
	Kept     []model.Record  `json:"kept"`
	Excluded []model.Record  `json:"excluded"`
	Outcomes []model.Outcome `json:"-"`
}

// Pipeline is safe for concurrent use; each Run owns its records.
type Pipeline struct {
	provider nglist.Provider
	recorder RunRecorder
	opts     Options
}

// New creates a Pipeline. recorder may be nil.
func New(provider nglist.Provider, recorder RunRecorder, opts Options) *Pipeline {
	return &Pipeline{provider: provider, recorder: recorder, opts: opts}
}

// Options returns the options the pipeline was built with.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run formats in and filters it against the NG list named listName.
// An empty or "なし" listName skips filtering.
func (p *Pipeline) Run(ctx context.Context, in Input, listName string) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("source", in.Source), zap.String("nglist", listName))

	layout := in.Layout
	if layout == "" || layout == model.LayoutAuto {
		layout = reconcile.DetectLayout(in.Workbook)
	}

	records, err := p.records(in.Workbook, layout)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse %s", in.Source)
	}
	if p.opts.DropEmpty {
		records = dropLogged(records, ngmatch.DropEmptyRecords, "empty records", log)
	}
	if p.opts.DropDuplicatePhones {
		records = dropLogged(records, ngmatch.DropDuplicatePhones, "duplicate phones", log)
	}

	result := &Result{
		Source: in.Source,
		Layout: layout,
		Total:  len(records),
		Kept:   records,
	}

	if !nglist.IsNone(listName) {
		if err := p.filter(ctx, result, records, listName, log); err != nil {
			return nil, err
		}
	}
	if result.Excluded == nil {
		result.Excluded = []model.Record{}
	}

	result.RunID = uuid.New().String()
	p.record(ctx, result, log)

	log.Info("pipeline: run complete",
		zap.String("run_id", result.RunID),
		zap.String("layout", string(layout)),
		zap.Int("total", result.Total),
		zap.Int("kept", len(result.Kept)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// dropLogged applies a post-filter and logs how many records it removed.
func dropLogged(records []model.Record, drop func([]model.Record) []model.Record, what string, log *zap.Logger) []model.Record {
	out := drop(records)
	if n := len(records) - len(out); n > 0 {
		log.Info("pipeline: dropped "+what, zap.Int("dropped", n))
	}
	return out
}

func (p *Pipeline) records(wb model.Workbook, layout model.Layout) ([]model.Record, error) {
	if layout == model.LayoutTabular {
		return reconcile.Reconcile(wb)
	}
	return directory.ParseStrings(reconcile.FlatLines(wb), p.opts.Policy), nil
}

func (p *Pipeline) filter(ctx context.Context, result *Result, records []model.Record, listName string, log *zap.Logger) error {
	if p.provider == nil {
		return eris.Wrapf(ngmatch.ErrExclusionListNotFound, "pipeline: no nglist provider for %q", listName)
	}

	list, err := p.provider.Load(ctx, listName)
	if errors.Is(err, ngmatch.ErrExclusionListNotFound) && p.opts.OnMissingList == Unfiltered {
		log.Warn("pipeline: nglist not found, continuing unfiltered", zap.Error(err))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "pipeline: load nglist %q", listName)
	}

	res := ngmatch.Filter(records, list, p.opts.Match)
	result.NGList = listName
	result.Filtered = true
	result.Kept = res.Kept
	result.Excluded = res.Excluded
	result.Outcomes = res.Outcomes
	return nil
}

// record logs and continues on failure; history is best-effort.
func (p *Pipeline) record(ctx context.Context, result *Result, log *zap.Logger) {
	if p.recorder == nil {
		return
	}
	run := &model.Run{
		ID:        result.RunID,
		Source:    result.Source,
		NGList:    result.NGList,
		Layout:    result.Layout,
		Total:     result.Total,
		Kept:      len(result.Kept),
		Excluded:  len(result.Excluded),
		CreatedAt: time.Now().UTC(),
	}
	if err := p.recorder.RecordRun(ctx, run); err != nil {
		log.Warn("pipeline: failed to record run", zap.Error(err))
	}
}
