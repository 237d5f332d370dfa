package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	files   map[string]FileNode
	symbols map[string]SymbolNode // key: symbol ID
	byFile  map[string][]string   // file path -> symbol IDs
	out     map[string][]Edge     // source ID -> outgoing edges
	in      map[string][]Edge     // target ID -> incoming edges
	edges   int
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		files:   make(map[string]FileNode),
		symbols: make(map[string]SymbolNode),
		byFile:  make(map[string][]string),
		out:     make(map[string][]Edge),
		in:      make(map[string][]Edge),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddFile stores a file node keyed by its path.
func (m *MemStore) AddFile(_ context.Context, node FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[node.Path] = node
	return nil
}

// AddSymbol stores a symbol node keyed by its ID.
func (m *MemStore) AddSymbol(_ context.Context, node SymbolNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.symbols[node.ID]; !exists {
		m.byFile[node.FilePath] = append(m.byFile[node.FilePath], node.ID)
	}
	m.symbols[node.ID] = node
	return nil
}

// AddEdge indexes an edge by both endpoints.
func (m *MemStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out[edge.SourceID] = append(m.out[edge.SourceID], edge)
	m.in[edge.TargetID] = append(m.in[edge.TargetID], edge)
	m.edges++
	return nil
}

// GetFile returns the file node for the given path, or nil if not found.
func (m *MemStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// GetSymbol returns the symbol with the given ID, or nil if not found.
func (m *MemStore) GetSymbol(_ context.Context, id string) (*SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.symbols[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// SymbolAt returns the innermost routine in filePath that spans line.
func (m *MemStore) SymbolAt(_ context.Context, filePath string, line int) (*SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byFile[filePath]
	candidates := make([]SymbolNode, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, m.symbols[id])
	}
	return innermost(candidates, line), nil
}

// QuerySymbols returns symbols whose name contains query (case-insensitive),
// ordered by ID, up to limit results. A limit <= 0 returns all matches.
func (m *MemStore) QuerySymbols(_ context.Context, query string, limit int) ([]SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowerQuery := strings.ToLower(query)
	var results []SymbolNode
	for _, sym := range m.symbols {
		if strings.Contains(strings.ToLower(sym.Name), lowerQuery) {
			results = append(results, sym)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Callees returns the CALLS edges leaving routineID in source order.
func (m *MemStore) Callees(_ context.Context, routineID string) ([]Edge, error) {
	return m.edgesFrom(routineID, EdgeKindCalls), nil
}

// References returns the REFERENCES edges leaving routineID in source order.
func (m *MemStore) References(_ context.Context, routineID string) ([]Edge, error) {
	return m.edgesFrom(routineID, EdgeKindReferences), nil
}

func (m *MemStore) edgesFrom(id string, kind EdgeKind) []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Edge
	for _, e := range m.out[id] {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	sortByOrdinal(out)
	return out
}

// GetDependencies performs a BFS over CALLS edges from nodeID in the given
// direction, up to maxDepth hops (10 when unset). It returns one
// DependencyChain per reachable routine.
func (m *MemStore) GetDependencies(_ context.Context, nodeID string, direction Direction, maxDepth int) ([]DependencyChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxDepth <= 0 {
		maxDepth = 10
	}

	// BFS state: each entry tracks the path from nodeID to the current node.
	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{nodeID: true}
	queue := []bfsEntry{{id: nodeID, path: []string{nodeID}}}
	var chains []DependencyChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			for _, nb := range m.neighbors(entry.id, direction) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, DependencyChain{
					Nodes: newPath,
					Depth: len(newPath) - 1,
				})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}

	return chains, nil
}

// neighbors returns routine IDs one CALLS hop away in the given direction.
func (m *MemStore) neighbors(id string, direction Direction) []string {
	var result []string
	switch direction {
	case DirectionDownstream:
		edges := append([]Edge(nil), m.out[id]...)
		sortByOrdinal(edges)
		for _, e := range edges {
			if e.Kind == EdgeKindCalls {
				result = append(result, e.TargetID)
			}
		}
	case DirectionUpstream:
		for _, e := range m.in[id] {
			if e.Kind == EdgeKindCalls {
				result = append(result, e.SourceID)
			}
		}
	}
	return result
}

// Stats returns counts of all node and edge types in the graph.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	routines := 0
	for _, s := range m.symbols {
		if s.Kind.IsRoutine() {
			routines++
		}
	}
	return &GraphStats{
		FileCount:    len(m.files),
		SymbolCount:  len(m.symbols),
		RoutineCount: routines,
		EdgeCount:    m.edges,
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
