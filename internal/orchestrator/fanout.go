package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of one target after fan-out.
type Result struct {
	Target Target
	Report *Report
	// Err is non-nil if the analysis of Target failed.
	Err error
}

// AnalyzeFunc analyses a single target.
type AnalyzeFunc func(ctx context.Context, t Target) (*Report, error)

// FanOut runs analyses in parallel with a concurrency limit and collects
// their results. One failing target does not stop the others; a canceled
// context stops all of them.
type FanOut struct {
	limit      int
	onProgress func(ProgressEvent)
}

// NewFanOut creates a FanOut running at most limit analyses at once.
// onProgress is called synchronously from each goroutine; it may be nil.
func NewFanOut(limit int, onProgress func(ProgressEvent)) *FanOut {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &FanOut{
		limit:      limit,
		onProgress: onProgress,
	}
}

// Run calls fn for every target and returns one Result per target in
// input order. The returned error joins the per-target failures.
func (f *FanOut) Run(ctx context.Context, targets []Target, fn AnalyzeFunc) ([]Result, error) {
	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)

	for _, t := range targets {
		f.emit(ProgressEvent{
			Stage:  StageCollect,
			Target: t.String(),
			Status: ProgressPending,
		})
	}

	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Target: t, Err: err}
				return nil
			}
			report, err := fn(gctx, t)
			results[i] = Result{Target: t, Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Target, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// emit sends a progress event if a callback is registered.
func (f *FanOut) emit(ev ProgressEvent) {
	if f.onProgress != nil {
		f.onProgress(ev)
	}
}
