package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/lineage/internal/collect"
	"github.com/dusk-indust/lineage/internal/config"
	"github.com/dusk-indust/lineage/internal/diagram"
	"github.com/dusk-indust/lineage/internal/prompt"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeRoutine struct {
	file       string
	start, end int
	source     string
	calls      []string
	refs       []collect.Reference
}

// fakeLocator is an in-memory Locator keyed by routine ID. Routine names
// equal their IDs.
type fakeLocator struct {
	routines map[string]fakeRoutine
}

func (l *fakeLocator) routine(id string) collect.Routine {
	return collect.Routine{ID: id, Name: id, Kind: collect.KindMethod}
}

func (l *fakeLocator) SourceText(_ context.Context, r collect.Routine) (string, error) {
	fr, ok := l.routines[r.ID]
	if !ok {
		return "", collect.ErrUnresolved
	}
	return fr.source, nil
}

func (l *fakeLocator) Callees(_ context.Context, r collect.Routine) ([]collect.Routine, error) {
	var out []collect.Routine
	for _, id := range l.routines[r.ID].calls {
		out = append(out, l.routine(id))
	}
	return out, nil
}

func (l *fakeLocator) References(_ context.Context, r collect.Routine) ([]collect.Reference, error) {
	return l.routines[r.ID].refs, nil
}

func (l *fakeLocator) RoutineAt(_ context.Context, file string, line int) (*collect.Routine, error) {
	ids := make([]string, 0, len(l.routines))
	for id := range l.routines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fr := l.routines[id]
		if fr.file == file && fr.start <= line && line <= fr.end {
			r := l.routine(id)
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s:%d", collect.ErrNoTarget, file, line)
}

func (l *fakeLocator) Lookup(_ context.Context, target string) (*collect.Routine, error) {
	if _, ok := l.routines[target]; !ok {
		return nil, fmt.Errorf("%w: %s", collect.ErrNoTarget, target)
	}
	r := l.routine(target)
	return &r, nil
}

// newScenario builds A -> {B, C}, B -> A, with B referencing field f.
func newScenario() *fakeLocator {
	return &fakeLocator{routines: map[string]fakeRoutine{
		"A": {file: "Job.java", start: 1, end: 3, source: "void A() { B(); C(); }", calls: []string{"B", "C"}},
		"B": {file: "Job.java", start: 4, end: 6, source: "void B() { A(); use(f); }", calls: []string{"A"},
			refs: []collect.Reference{{Expr: "f", Symbol: collect.Symbol{ID: "f", Kind: collect.KindField, Declaration: "private int f;"}}}},
		"C": {file: "Job.java", start: 7, end: 9, source: "void C() {}"},
	}}
}

// fakeGateway records prompts and answers with a fixed reply or error.
type fakeGateway struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGateway) Send(ctx context.Context, p string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.reply, g.err
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, cfg Config, gw *fakeGateway, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	var p *Pipeline
	if gw == nil {
		p = NewPipeline(cfg, newScenario(), nil, opts...)
	} else {
		p = NewPipeline(cfg, newScenario(), gw, opts...)
	}
	t.Cleanup(p.Close)
	return p
}

// drain returns the events emitted so far.
func drain(ch <-chan ProgressEvent) []ProgressEvent {
	var out []ProgressEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

const mermaidReply = "1. Sources: none.\n\n" +
	"```mermaid\n" +
	"A-->B\n" +
	"B -- retry --> A\n" +
	"```\n" +
	"9. Risks: none."

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestPipeline_Analyze(t *testing.T) {
	gw := &fakeGateway{reply: mermaidReply}
	p := newTestPipeline(t, Config{Capability: CapModel}, gw)

	r, err := p.Analyze(context.Background(), Target{Routine: "A"})
	require.NoError(t, err)

	assert.Equal(t, "A", r.Root.ID)
	assert.Equal(t, []string{"A", "B", "C"}, r.Document.Routines())
	assert.False(t, r.Offline)

	require.Equal(t, 1, gw.calls())
	assert.Equal(t, gw.prompts[0], r.Prompt)
	assert.Equal(t, prompt.Lineage(r.Document.String()), r.Prompt)
	assert.Contains(t, r.Prompt, "// Reference: f -> private int f;")

	assert.Equal(t, mermaidReply, r.Response)
	assert.Equal(t, diagram.Block("A-->B\nB -- retry --> A"), r.Block)
	assert.Equal(t, diagram.Repaired("graph TD\n    A-->B\n    B -->|retry| A"), r.Diagram)
	assert.NoError(t, r.DiagramErr)
}

func TestPipeline_AnalyzeAtCursor(t *testing.T) {
	gw := &fakeGateway{reply: mermaidReply}
	p := newTestPipeline(t, Config{Capability: CapModel}, gw)

	r, err := p.Analyze(context.Background(), Target{File: "Job.java", Line: 5})
	require.NoError(t, err)
	assert.Equal(t, "B", r.Root.ID)
	assert.Equal(t, []string{"B", "A", "C"}, r.Document.Routines())

	_, err = p.Analyze(context.Background(), Target{File: "Job.java", Line: 42})
	require.ErrorIs(t, err, collect.ErrNoTarget)
	assert.Equal(t, 1, gw.calls(), "a failed lookup never reaches the model")
}

func TestPipeline_AnalyzeNoTarget(t *testing.T) {
	p := newTestPipeline(t, Config{Capability: CapModel}, &fakeGateway{reply: mermaidReply})

	_, err := p.Analyze(context.Background(), Target{})
	require.ErrorIs(t, err, collect.ErrNoTarget)

	_, err = p.Analyze(context.Background(), Target{Routine: "Z"})
	require.ErrorIs(t, err, collect.ErrNoTarget)
}

func TestPipeline_AnalyzeDiagramOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{name: "no block", reply: "The job reads a table and writes it back.", wantErr: diagram.ErrNotFound},
		{name: "empty block", reply: "```mermaid\n```", wantErr: diagram.ErrUnrepairable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, Config{Capability: CapModel}, &fakeGateway{reply: tt.reply})

			r, err := p.Analyze(context.Background(), Target{Routine: "A"})
			require.NoError(t, err, "a missing diagram does not fail the analysis")
			assert.ErrorIs(t, r.DiagramErr, tt.wantErr)
			assert.Empty(t, r.Diagram)
			assert.Equal(t, tt.reply, r.Response)

			var failed []ProgressEvent
			for _, ev := range drain(p.Progress()) {
				if ev.Status == ProgressFailed {
					failed = append(failed, ev)
				}
			}
			require.Len(t, failed, 1)
			assert.Equal(t, StageExtract, failed[0].Stage)
		})
	}
}

func TestPipeline_AnalyzeModelError(t *testing.T) {
	boom := errors.New("connection refused")
	p := newTestPipeline(t, Config{Capability: CapModel}, &fakeGateway{err: boom})

	r, err := p.Analyze(context.Background(), Target{Routine: "A"})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, r)
}

func TestPipeline_AnalyzeFallbackOnError(t *testing.T) {
	boom := errors.New("connection refused")
	p := newTestPipeline(t, Config{Capability: CapModel, FallbackOnError: true}, &fakeGateway{err: boom})

	r, err := p.Analyze(context.Background(), Target{Routine: "A"})
	require.NoError(t, err)
	assert.True(t, r.Offline)
	assert.NotEmpty(t, r.Prompt)
	assert.Equal(t, diagram.RenderCallGraph(r.Document), r.Diagram)
}

func TestPipeline_AnalyzeOffline(t *testing.T) {
	gw := &fakeGateway{reply: mermaidReply}
	p := newTestPipeline(t, Config{Capability: CapOffline}, gw)

	r, err := p.Analyze(context.Background(), Target{Routine: "A"})
	require.NoError(t, err)
	assert.Zero(t, gw.calls())
	assert.True(t, r.Offline)
	assert.Empty(t, r.Prompt)

	diag := string(r.Diagram)
	assert.True(t, strings.HasPrefix(diag, "graph TD\n"))
	assert.Contains(t, diag, `N0["A"]`)
	assert.Contains(t, diag, "N1 --> N0")

	// The rendered call graph is already in repaired form.
	again, err := diagram.Repair(diagram.Block(r.Diagram))
	require.NoError(t, err)
	assert.Equal(t, r.Diagram, again)
}

func TestPipeline_NilGatewayIsOffline(t *testing.T) {
	p := newTestPipeline(t, Config{Capability: CapModel}, nil)

	r, err := p.Analyze(context.Background(), Target{Routine: "C"})
	require.NoError(t, err)
	assert.True(t, r.Offline)

	_, err = p.GenerateTests(context.Background(), Target{Routine: "C"})
	require.ErrorIs(t, err, ErrOffline)
}

func TestPipeline_CustomTemplate(t *testing.T) {
	a, err := prompt.ParseAssembler("custom", "Explain the lineage of:\n{{.Code}}")
	require.NoError(t, err)
	gw := &fakeGateway{reply: mermaidReply}
	p := newTestPipeline(t, Config{Capability: CapModel}, gw, WithAssembler(a))

	r, err := p.Analyze(context.Background(), Target{Routine: "C"})
	require.NoError(t, err)
	assert.Equal(t, "Explain the lineage of:\n// Method: C\nvoid C() {}\n\n", r.Prompt)
}

func TestPipeline_ProgressEvents(t *testing.T) {
	p := newTestPipeline(t, Config{Capability: CapModel}, &fakeGateway{reply: mermaidReply})

	_, err := p.Analyze(context.Background(), Target{Routine: "A"})
	require.NoError(t, err)

	events := drain(p.Progress())
	var got []string
	for _, ev := range events {
		assert.Equal(t, "A", ev.Target)
		got = append(got, ev.Stage.String()+"/"+string(ev.Status))
	}
	assert.Equal(t, []string{
		"collect/working", "collect/complete",
		"prompt/working", "prompt/complete",
		"model/working", "model/complete",
		"extract/working", "extract/complete",
	}, got)
	assert.Equal(t, "3 routines", events[1].Message)
}

func TestPipeline_Collect(t *testing.T) {
	p := newTestPipeline(t, Config{Capability: CapOffline, MaxDepth: 1}, nil)

	root, doc, err := p.Collect(context.Background(), Target{Routine: "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", root.ID)
	assert.Equal(t, []string{"A", "B", "C"}, doc.Routines())
}

// ---------------------------------------------------------------------------
// GenerateTests
// ---------------------------------------------------------------------------

func TestPipeline_GenerateTests(t *testing.T) {
	settings := config.Default().Tests
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "fenced", reply: "Here you go:\n```java\nclass ATest {}\n```\nEnjoy.", want: "class ATest {}"},
		{name: "bare", reply: "  class ATest {}\n", want: "class ATest {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{reply: tt.reply}
			p := newTestPipeline(t, Config{Capability: CapModel, Tests: settings}, gw)

			r, err := p.GenerateTests(context.Background(), Target{Routine: "A"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Code)
			assert.Equal(t, prompt.UnitTest(r.Document.String(), settings), r.Prompt)
			assert.Contains(t, r.Prompt, "JUnit")
		})
	}
}

func TestPipeline_GenerateTestsModelError(t *testing.T) {
	boom := errors.New("HTTP 500")
	p := newTestPipeline(t, Config{Capability: CapModel, FallbackOnError: true}, &fakeGateway{err: boom})

	_, err := p.GenerateTests(context.Background(), Target{Routine: "A"})
	require.ErrorIs(t, err, boom)
}

func TestCodeLanguage(t *testing.T) {
	assert.Equal(t, "java", codeLanguage(""))
	assert.Equal(t, "java", codeLanguage(" Java "))
	assert.Equal(t, "scala", codeLanguage("Scala"))
}

// ---------------------------------------------------------------------------
// AnalyzeAll
// ---------------------------------------------------------------------------

func TestPipeline_AnalyzeAll(t *testing.T) {
	gw := &fakeGateway{reply: mermaidReply}
	p := newTestPipeline(t, Config{Capability: CapModel, Concurrency: 2}, gw)

	targets := []Target{{Routine: "A"}, {Routine: "missing"}, {File: "Job.java", Line: 8}}
	results, err := p.AnalyzeAll(context.Background(), targets)
	require.Error(t, err)
	assert.ErrorIs(t, err, collect.ErrNoTarget)
	assert.Contains(t, err.Error(), "missing")

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, targets[i], r.Target)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, []string{"A", "B", "C"}, results[0].Report.Document.Routines())
	assert.ErrorIs(t, results[1].Err, collect.ErrNoTarget)
	assert.Nil(t, results[1].Report)
	require.NoError(t, results[2].Err)
	assert.Equal(t, []string{"C"}, results[2].Report.Document.Routines())

	assert.Equal(t, 2, gw.calls())
}
