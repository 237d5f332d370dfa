package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dusk-indust/lineage/internal/collect"
	"github.com/dusk-indust/lineage/internal/diagram"
	"github.com/dusk-indust/lineage/internal/gateway"
	"github.com/dusk-indust/lineage/internal/prompt"
)

// Compile-time interface check.
var _ Analyzer = (*Pipeline)(nil)

// ErrOffline is returned by operations that need a model when none is
// available.
var ErrOffline = errors.New("orchestrator: no model available")

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and its collector.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAssembler replaces the built-in lineage prompt.
func WithAssembler(a *prompt.Assembler) Option {
	return func(p *Pipeline) {
		p.prompts = a
	}
}

// Pipeline implements Analyzer. It owns the collector, the prompt
// assembler and the gateway, and reports progress through a
// ProgressReporter.
type Pipeline struct {
	cfg       Config
	locator   Locator
	gw        gateway.Gateway
	collector *collect.Collector
	prompts   *prompt.Assembler
	progress  *ProgressReporter
	fanout    *FanOut
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline over loc. gw may be nil, which forces
// offline mode.
func NewPipeline(cfg Config, loc Locator, gw gateway.Gateway, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		locator:  loc,
		gw:       gw,
		progress: NewProgressReporter(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.collector = collect.New(loc, collect.WithMaxDepth(cfg.MaxDepth), collect.WithLogger(p.logger))
	p.fanout = NewFanOut(cfg.Concurrency, p.progress.Emit)
	return p
}

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan ProgressEvent {
	return p.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when the
// pipeline is no longer needed.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// Collect resolves t and returns its context document without calling
// the model.
func (p *Pipeline) Collect(ctx context.Context, t Target) (*collect.Routine, *collect.Document, error) {
	label := t.String()
	var (
		root *collect.Routine
		doc  *collect.Document
	)
	err := p.runStage(label, StageCollect, func() (string, error) {
		var err error
		if root, err = p.resolve(ctx, t); err != nil {
			return "", err
		}
		if doc, err = p.collector.Collect(ctx, root); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d routines", doc.Len()), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("collect %s: %w", label, err)
	}
	return root, doc, nil
}

// Analyze runs collect, prompt, model and extract for t. A response
// without a usable diagram is recorded on the report, not returned as an
// error.
func (p *Pipeline) Analyze(ctx context.Context, t Target) (*Report, error) {
	label := t.String()
	root, doc, err := p.Collect(ctx, t)
	if err != nil {
		return nil, err
	}
	r := &Report{Target: t, Root: *root, Document: doc}

	if p.offline() {
		_ = p.runStage(label, StageExtract, func() (string, error) {
			renderOffline(r)
			return "call graph", nil
		})
		countAnalysis(r)
		return r, nil
	}

	err = p.runStage(label, StagePrompt, func() (string, error) {
		var err error
		r.Prompt, err = p.prompts.Lineage(doc.String())
		return "", err
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", label, err)
	}

	err = p.runStage(label, StageModel, func() (string, error) {
		var err error
		r.Response, err = p.gw.Send(ctx, r.Prompt)
		return "", err
	})
	if err != nil {
		if !p.cfg.FallbackOnError || ctx.Err() != nil {
			return nil, fmt.Errorf("analyze %s: %w", label, err)
		}
		p.logger.Warn("model call failed, rendering call graph", "target", label, "error", err)
		renderOffline(r)
		countAnalysis(r)
		return r, nil
	}

	_ = p.runStage(label, StageExtract, func() (string, error) {
		r.Block, r.Diagram, r.DiagramErr = extractDiagram(r.Response)
		return "", r.DiagramErr
	})
	countAnalysis(r)
	return r, nil
}

// AnalyzeAll analyses every target concurrently. Each analysis has its own
// collection state. Results are in input order.
func (p *Pipeline) AnalyzeAll(ctx context.Context, targets []Target) ([]Result, error) {
	return p.fanout.Run(ctx, targets, p.Analyze)
}

// GenerateTests asks the model for unit tests of the routine at t and
// extracts the code from its reply. A reply without a fenced block is
// taken whole.
func (p *Pipeline) GenerateTests(ctx context.Context, t Target) (*TestReport, error) {
	if p.offline() {
		return nil, ErrOffline
	}
	label := t.String()
	root, doc, err := p.Collect(ctx, t)
	if err != nil {
		return nil, err
	}
	r := &TestReport{Target: t, Root: *root, Document: doc}

	_ = p.runStage(label, StagePrompt, func() (string, error) {
		r.Prompt = prompt.UnitTest(doc.String(), p.cfg.Tests)
		return "", nil
	})

	err = p.runStage(label, StageModel, func() (string, error) {
		var err error
		r.Response, err = p.gw.Send(ctx, r.Prompt)
		return "", err
	})
	if err != nil {
		return nil, fmt.Errorf("generate tests %s: %w", label, err)
	}

	_ = p.runStage(label, StageExtract, func() (string, error) {
		r.Code = diagram.ExtractCode(r.Response, codeLanguage(p.cfg.Tests.Language))
		return "", nil
	})
	return r, nil
}

func (p *Pipeline) offline() bool {
	return p.cfg.Capability == CapOffline || p.gw == nil
}

func (p *Pipeline) resolve(ctx context.Context, t Target) (*collect.Routine, error) {
	switch {
	case t.File != "":
		return p.locator.RoutineAt(ctx, t.File, t.Line)
	case t.Routine != "":
		return p.locator.Lookup(ctx, t.Routine)
	default:
		return nil, collect.ErrNoTarget
	}
}

// runStage brackets fn with progress events and the stage metric. fn
// returns an optional completion note.
func (p *Pipeline) runStage(target string, stage Stage, fn func() (string, error)) error {
	p.progress.Emit(ProgressEvent{Stage: stage, Target: target, Status: ProgressWorking})

	start := time.Now()
	note, err := fn()
	observeStage(stage, time.Since(start), err)

	if err != nil {
		p.logger.Debug("stage failed", "target", target, "stage", stage, "error", err)
		p.progress.Emit(ProgressEvent{Stage: stage, Target: target, Status: ProgressFailed, Message: err.Error()})
		return err
	}
	p.progress.Emit(ProgressEvent{Stage: stage, Target: target, Status: ProgressComplete, Message: note})
	return nil
}

func extractDiagram(response string) (diagram.Block, diagram.Repaired, error) {
	block, err := diagram.ExtractMermaid(response)
	if err != nil {
		return "", "", err
	}
	repaired, err := diagram.Repair(block)
	if err != nil {
		return block, "", err
	}
	return block, repaired, nil
}

// codeLanguage maps a test language setting to a fence info string.
func codeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "java"
	}
	return lang
}
