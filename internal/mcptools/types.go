package mcptools

import (
	"github.com/dusk-indust/lineage/internal/collect"
	"github.com/dusk-indust/lineage/internal/graph"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// IndexRepositoryInput is the input for the index_repository MCP tool.
type IndexRepositoryInput struct {
	RepoPath    string   `json:"repoPath" jsonschema:"the absolute path to the repository to index"`
	Languages   []string `json:"languages,omitempty" jsonschema:"languages to index (default: all). Values: java, go, typescript, python, rust"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directory names to skip (e.g. target, node_modules)"`
	Persist     bool     `json:"persist,omitempty" jsonschema:"store the index on disk under the repository so later sessions can reuse it"`
}

// IndexRepositoryOutput is the result of the index_repository MCP tool.
type IndexRepositoryOutput struct {
	Stats     graph.GraphStats `json:"stats"`
	Persisted string           `json:"persisted,omitempty"`
}

// QuerySymbolsInput is the input for the query_symbols MCP tool.
type QuerySymbolsInput struct {
	Query string `json:"query" jsonschema:"search query for symbol names (substring match)"`
	Kind  string `json:"kind,omitempty" jsonschema:"filter by symbol kind: function, method, field, variable, type"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// QuerySymbolsOutput is the result of the query_symbols MCP tool.
type QuerySymbolsOutput struct {
	Symbols []graph.SymbolNode `json:"symbols"`
	Total   int                `json:"total"`
}

// GetDependenciesInput is the input for the get_dependencies MCP tool.
type GetDependenciesInput struct {
	NodeID    string `json:"nodeId" jsonschema:"routine ID (file:Qualified.name)"`
	Direction string `json:"direction,omitempty" jsonschema:"downstream (what it calls) or upstream (who calls it). Default: downstream"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"maximum traversal depth (default: 5)"`
}

// GetDependenciesOutput is the result of the get_dependencies MCP tool.
type GetDependenciesOutput struct {
	Chains []graph.DependencyChain `json:"chains"`
}

// TargetInput selects a root routine. File and line take precedence over
// routine.
type TargetInput struct {
	File     string `json:"file,omitempty" jsonschema:"source file path relative to the indexed repository"`
	Line     int    `json:"line,omitempty" jsonschema:"1-based line inside the routine"`
	Routine  string `json:"routine,omitempty" jsonschema:"routine ID, Type.method or bare name, used when file is empty"`
	MaxDepth int    `json:"maxDepth,omitempty" jsonschema:"bound on call depth below the root (default: unlimited)"`
}

// CollectContextOutput is the result of the collect_context MCP tool.
type CollectContextOutput struct {
	Root     collect.Routine `json:"root"`
	Routines []string        `json:"routines"`
	Edges    []collect.Edge  `json:"edges,omitempty"`
	Context  string          `json:"context"`
}

// AnalyzeLineageOutput is the result of the analyze_lineage MCP tool.
type AnalyzeLineageOutput struct {
	Root         collect.Routine `json:"root"`
	Routines     []string        `json:"routines"`
	Report       string          `json:"report,omitempty"`
	Diagram      string          `json:"diagram,omitempty"`
	DiagramError string          `json:"diagramError,omitempty"`
	Offline      bool            `json:"offline,omitempty"`
}

// CallDiagramOutput is the result of the call_diagram MCP tool.
type CallDiagramOutput struct {
	Root    collect.Routine `json:"root"`
	Diagram string          `json:"diagram"`
}

// ExtractDiagramInput is the input for the extract_diagram MCP tool.
type ExtractDiagramInput struct {
	Text string `json:"text" jsonschema:"free-form model output containing a mermaid fenced block"`
}

// ExtractDiagramOutput is the result of the extract_diagram MCP tool.
type ExtractDiagramOutput struct {
	Block string `json:"block"`
}

// RepairDiagramInput is the input for the repair_diagram MCP tool.
type RepairDiagramInput struct {
	Text    string `json:"text" jsonschema:"mermaid flowchart source, or model output when extract is set"`
	Extract bool   `json:"extract,omitempty" jsonschema:"extract the first mermaid fenced block from text before repairing"`
}

// RepairDiagramOutput is the result of the repair_diagram MCP tool.
type RepairDiagramOutput struct {
	Diagram string `json:"diagram"`
}
