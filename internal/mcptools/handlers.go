package mcptools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/lineage/internal/config"
	"github.com/dusk-indust/lineage/internal/diagram"
	"github.com/dusk-indust/lineage/internal/gateway"
	"github.com/dusk-indust/lineage/internal/graph"
	"github.com/dusk-indust/lineage/internal/orchestrator"
	"github.com/dusk-indust/lineage/internal/prompt"
)

// ErrNoIndex is returned by graph tools before a repository is indexed.
var ErrNoIndex = errors.New("no repository indexed; call index_repository first")

// LineageService holds the symbol graph and the model gateway used by the
// MCP tool handlers.
type LineageService struct {
	mu    sync.RWMutex
	store graph.Store

	parser    graph.Parser
	gw        gateway.Gateway
	pipeCfg   orchestrator.Config
	assembler *prompt.Assembler
	index     config.IndexConfig
	logger    *slog.Logger
}

// ServiceOption configures a LineageService.
type ServiceOption func(*LineageService)

// WithGateway sets the model used by analyze_lineage and the pipeline
// settings it runs with. Without it analyze_lineage renders the call graph.
func WithGateway(gw gateway.Gateway, cfg orchestrator.Config) ServiceOption {
	return func(s *LineageService) {
		s.gw = gw
		s.pipeCfg = cfg
	}
}

// WithAssembler replaces the built-in lineage prompt.
func WithAssembler(a *prompt.Assembler) ServiceOption {
	return func(s *LineageService) { s.assembler = a }
}

// WithIndexDefaults sets the languages, exclusions and on-disk location
// used when index_repository does not specify them.
func WithIndexDefaults(cfg config.IndexConfig) ServiceOption {
	return func(s *LineageService) { s.index = cfg }
}

// WithStore serves an existing index, for example one reopened from disk.
func WithStore(store graph.Store) ServiceOption {
	return func(s *LineageService) { s.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *LineageService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewLineageService creates a LineageService parsing with parser.
func NewLineageService(parser graph.Parser, opts ...ServiceOption) *LineageService {
	s := &LineageService{
		parser: parser,
		index:  config.Default().Index,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close releases the current index.
func (s *LineageService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// IndexRepository parses a repository into a fresh symbol graph and makes
// it the graph the other tools query.
func (s *LineageService) IndexRepository(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexRepositoryInput,
) (*mcp.CallToolResult, IndexRepositoryOutput, error) {
	if input.RepoPath == "" {
		return nil, IndexRepositoryOutput{}, fmt.Errorf("repoPath is required")
	}
	if info, err := os.Stat(input.RepoPath); err != nil || !info.IsDir() {
		return nil, IndexRepositoryOutput{}, fmt.Errorf("repoPath %s is not a directory", input.RepoPath)
	}

	langs := input.Languages
	if len(langs) == 0 {
		langs = s.index.Languages
	}
	exclude := input.ExcludeDirs
	if len(exclude) == 0 {
		exclude = s.index.ExcludeDirs
	}
	opts := []graph.IndexOption{graph.WithIndexLogger(s.logger), graph.WithExcludeDirs(exclude...)}
	if len(langs) > 0 {
		ls := make([]graph.Language, len(langs))
		for i, l := range langs {
			ls[i] = graph.Language(strings.ToLower(l))
		}
		opts = append(opts, graph.WithLanguages(ls...))
	}

	store, staged := s.openStore(input)
	stats, err := graph.NewIndexer(store, s.parser, opts...).Index(ctx, input.RepoPath)
	if err != nil {
		store.Close()
		return nil, IndexRepositoryOutput{}, fmt.Errorf("index %s: %w", input.RepoPath, err)
	}

	// The current index may be the database at the persisted path, so it is
	// closed before the staged one takes its place.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing previous index", "error", err)
		}
		s.store = nil
	}

	var persisted string
	if staged != "" {
		persisted = s.graphPath(input.RepoPath)
		store.Close()
		if err := publishGraph(staged, persisted); err != nil {
			return nil, IndexRepositoryOutput{}, fmt.Errorf("persist index: %w", err)
		}
		if store, err = graph.NewKuzuFileStore(persisted); err != nil {
			return nil, IndexRepositoryOutput{}, fmt.Errorf("reopen index: %w", err)
		}
	}
	s.store = store

	return nil, IndexRepositoryOutput{Stats: *stats, Persisted: persisted}, nil
}

func (s *LineageService) graphPath(repo string) string {
	return filepath.Join(repo, s.index.GraphDir)
}

// openStore returns a Kuzu database staged beside the repository's graph
// path, with the staging path, when persistence is requested and available.
// Otherwise it returns an in-memory store.
func (s *LineageService) openStore(input IndexRepositoryInput) (graph.Store, string) {
	if !input.Persist || s.index.GraphDir == "" {
		return graph.NewMemStore(), ""
	}
	staged := s.graphPath(input.RepoPath) + ".staging"
	if err := removeGraph(staged); err != nil {
		s.logger.Warn("cannot clear staged index", "path", staged, "error", err)
		return graph.NewMemStore(), ""
	}
	store, err := graph.NewKuzuFileStore(staged)
	if err != nil {
		s.logger.Warn("persisting index unavailable, keeping it in memory", "path", staged, "error", err)
		return graph.NewMemStore(), ""
	}
	return store, staged
}

// kuzuFiles are the suffixes of the files a Kuzu database at a path owns.
var kuzuFiles = []string{"", ".wal"}

func removeGraph(path string) error {
	for _, suffix := range kuzuFiles {
		if err := os.RemoveAll(path + suffix); err != nil {
			return err
		}
	}
	return nil
}

// publishGraph moves a closed database from staged to path, replacing
// whatever was there.
func publishGraph(staged, path string) error {
	if err := removeGraph(path); err != nil {
		return err
	}
	for _, suffix := range kuzuFiles {
		err := os.Rename(staged+suffix, path+suffix)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// QuerySymbols searches for symbols by name substring match.
func (s *LineageService) QuerySymbols(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QuerySymbolsInput,
) (*mcp.CallToolResult, QuerySymbolsOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, QuerySymbolsOutput{}, ErrNoIndex
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	symbols, err := s.store.QuerySymbols(ctx, input.Query, limit)
	if err != nil {
		return nil, QuerySymbolsOutput{}, fmt.Errorf("query symbols: %w", err)
	}

	// Filter by kind if specified.
	if input.Kind != "" {
		kind := graph.SymbolKind(strings.ToLower(input.Kind))
		filtered := symbols[:0]
		for _, sym := range symbols {
			if sym.Kind == kind {
				filtered = append(filtered, sym)
			}
		}
		symbols = filtered
	}

	return nil, QuerySymbolsOutput{
		Symbols: symbols,
		Total:   len(symbols),
	}, nil
}

// GetDependencies traverses the call graph from a routine.
func (s *LineageService) GetDependencies(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDependenciesInput,
) (*mcp.CallToolResult, GetDependenciesOutput, error) {
	if input.NodeID == "" {
		return nil, GetDependenciesOutput{}, fmt.Errorf("nodeId is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, GetDependenciesOutput{}, ErrNoIndex
	}

	direction := graph.DirectionDownstream
	if strings.EqualFold(input.Direction, "upstream") {
		direction = graph.DirectionUpstream
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	chains, err := s.store.GetDependencies(ctx, input.NodeID, direction, maxDepth)
	if err != nil {
		return nil, GetDependenciesOutput{}, fmt.Errorf("get dependencies: %w", err)
	}

	return nil, GetDependenciesOutput{Chains: chains}, nil
}

// CollectContext returns the transitive context document of a routine.
func (s *LineageService) CollectContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TargetInput,
) (*mcp.CallToolResult, CollectContextOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.pipeline(orchestrator.CapOffline, input.MaxDepth)
	if err != nil {
		return nil, CollectContextOutput{}, err
	}
	defer p.Close()

	root, doc, err := p.Collect(ctx, target(input))
	if err != nil {
		return nil, CollectContextOutput{}, err
	}
	return nil, CollectContextOutput{
		Root:     *root,
		Routines: doc.Routines(),
		Edges:    doc.Edges,
		Context:  doc.String(),
	}, nil
}

// AnalyzeLineage runs the full pipeline for a routine. Without a model
// the diagram is the routine's call graph.
func (s *LineageService) AnalyzeLineage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TargetInput,
) (*mcp.CallToolResult, AnalyzeLineageOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.pipeline(s.pipeCfg.Capability, input.MaxDepth)
	if err != nil {
		return nil, AnalyzeLineageOutput{}, err
	}
	defer p.Close()

	r, err := p.Analyze(ctx, target(input))
	if err != nil {
		return nil, AnalyzeLineageOutput{}, err
	}
	out := AnalyzeLineageOutput{
		Root:     r.Root,
		Routines: r.Document.Routines(),
		Report:   r.Response,
		Diagram:  string(r.Diagram),
		Offline:  r.Offline,
	}
	if r.DiagramErr != nil {
		out.DiagramError = r.DiagramErr.Error()
	}
	return nil, out, nil
}

// CallDiagram renders the call graph below a routine without asking the
// model.
func (s *LineageService) CallDiagram(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TargetInput,
) (*mcp.CallToolResult, CallDiagramOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.pipeline(orchestrator.CapOffline, input.MaxDepth)
	if err != nil {
		return nil, CallDiagramOutput{}, err
	}
	defer p.Close()

	r, err := p.Analyze(ctx, target(input))
	if err != nil {
		return nil, CallDiagramOutput{}, err
	}
	return nil, CallDiagramOutput{Root: r.Root, Diagram: string(r.Diagram)}, nil
}

// ExtractDiagram returns the first mermaid block in free-form text.
func (s *LineageService) ExtractDiagram(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ExtractDiagramInput,
) (*mcp.CallToolResult, ExtractDiagramOutput, error) {
	b, err := diagram.ExtractMermaid(input.Text)
	if err != nil {
		return nil, ExtractDiagramOutput{}, err
	}
	return nil, ExtractDiagramOutput{Block: string(b)}, nil
}

// RepairDiagram normalises mermaid flowchart source.
func (s *LineageService) RepairDiagram(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RepairDiagramInput,
) (*mcp.CallToolResult, RepairDiagramOutput, error) {
	var (
		r   diagram.Repaired
		err error
	)
	if input.Extract {
		r, err = diagram.ExtractAndRepair(input.Text)
	} else {
		r, err = diagram.Repair(diagram.Block(input.Text))
	}
	if err != nil {
		return nil, RepairDiagramOutput{}, err
	}
	return nil, RepairDiagramOutput{Diagram: string(r)}, nil
}

// pipeline builds a pipeline over the current index. Callers hold s.mu.
func (s *LineageService) pipeline(capability orchestrator.CapabilityLevel, maxDepth int) (*orchestrator.Pipeline, error) {
	if s.store == nil {
		return nil, ErrNoIndex
	}
	cfg := s.pipeCfg
	cfg.Capability = capability
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}
	opts := []orchestrator.Option{orchestrator.WithLogger(s.logger)}
	if s.assembler != nil {
		opts = append(opts, orchestrator.WithAssembler(s.assembler))
	}
	return orchestrator.NewPipeline(cfg, graph.NewStoreAdapter(s.store), s.gw, opts...), nil
}

func target(in TargetInput) orchestrator.Target {
	return orchestrator.Target{File: in.File, Line: in.Line, Routine: in.Routine}
}
