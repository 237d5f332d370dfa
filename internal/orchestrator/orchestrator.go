// Package orchestrator runs the lineage pipeline: collect the context of a
// routine, wrap it in a prompt, ask the model and repair the diagram it
// returns.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/lineage/internal/collect"
	"github.com/dusk-indust/lineage/internal/diagram"
)

// Stage identifies a pipeline stage.
type Stage int

const (
	StageCollect Stage = iota
	StagePrompt
	StageModel
	StageExtract
)

func (s Stage) String() string {
	names := [...]string{
		"collect",
		"prompt",
		"model",
		"extract",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Target selects the root routine of an analysis. File and Line take
// precedence; otherwise Routine is looked up by ID, qualified name or bare
// name.
type Target struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Routine string `json:"routine,omitempty"`
}

func (t Target) String() string {
	if t.File != "" {
		return fmt.Sprintf("%s:%d", t.File, t.Line)
	}
	return t.Routine
}

// Report is the outcome of one lineage analysis.
type Report struct {
	Target   Target
	Root     collect.Routine
	Document *collect.Document
	Prompt   string
	Response string
	Block    diagram.Block
	Diagram  diagram.Repaired
	// DiagramErr records why Diagram is empty. A missing or unrepairable
	// diagram does not fail the analysis.
	DiagramErr error
	// Offline is set when Diagram was rendered from the call graph instead
	// of asking the model.
	Offline bool
}

// TestReport is the outcome of one unit test generation.
type TestReport struct {
	Target   Target
	Root     collect.Routine
	Document *collect.Document
	Prompt   string
	Response string
	Code     string
}

// ProgressEvent is emitted to the user during pipeline execution.
type ProgressEvent struct {
	Stage   Stage
	Target  string
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a stage for one target.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Analyzer coordinates lineage analyses.
type Analyzer interface {
	// Analyze runs the whole pipeline for one target.
	Analyze(ctx context.Context, t Target) (*Report, error)

	// AnalyzeAll runs Analyze for every target concurrently.
	AnalyzeAll(ctx context.Context, targets []Target) ([]Result, error)

	// Progress returns a channel that emits progress events.
	Progress() <-chan ProgressEvent
}

// Locator is a symbol graph that can also map a cursor or a name to a
// routine. graph.StoreAdapter and gotypes.Graph both satisfy it.
type Locator interface {
	collect.SymbolGraph
	RoutineAt(ctx context.Context, filePath string, line int) (*collect.Routine, error)
	Lookup(ctx context.Context, target string) (*collect.Routine, error)
}
