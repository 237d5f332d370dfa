package graph

import (
	"context"
	"io"
	"sort"
)

// Store is the interface for the symbol graph backend.
// Implementations: KuzuStore (persistent), MemStore (in-process).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddFile(ctx context.Context, node FileNode) error
	AddSymbol(ctx context.Context, node SymbolNode) error
	AddEdge(ctx context.Context, edge Edge) error

	// Read operations. Missing nodes yield nil, nil.
	GetFile(ctx context.Context, path string) (*FileNode, error)
	GetSymbol(ctx context.Context, id string) (*SymbolNode, error)
	// SymbolAt returns the innermost routine in filePath enclosing line.
	SymbolAt(ctx context.Context, filePath string, line int) (*SymbolNode, error)
	QuerySymbols(ctx context.Context, query string, limit int) ([]SymbolNode, error)
	// Callees and References return the resolved CALLS and REFERENCES
	// edges leaving a routine, in source order.
	Callees(ctx context.Context, routineID string) ([]Edge, error)
	References(ctx context.Context, routineID string) ([]Edge, error)

	// Graph traversal over CALLS edges.
	GetDependencies(ctx context.Context, nodeID string, direction Direction, maxDepth int) ([]DependencyChain, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls dependency traversal direction.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"   // who calls this?
	DirectionDownstream Direction = "downstream" // what does this call?
)

// innermost picks the narrowest routine among candidates enclosing line.
func innermost(candidates []SymbolNode, line int) *SymbolNode {
	var best *SymbolNode
	for i := range candidates {
		s := &candidates[i]
		if !s.Kind.IsRoutine() || !s.Encloses(line) {
			continue
		}
		if best == nil || s.EndLine-s.StartLine < best.EndLine-best.StartLine {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// sortByOrdinal orders a routine's edges as they appear in its source.
func sortByOrdinal(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Ordinal < edges[j].Ordinal })
}
