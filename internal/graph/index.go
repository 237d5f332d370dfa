package graph

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// IndexOption configures an Indexer.
type IndexOption func(*Indexer)

// WithLanguages restricts indexing to langs. No languages means all
// supported ones.
func WithLanguages(langs ...Language) IndexOption {
	return func(ix *Indexer) {
		if len(langs) == 0 {
			return
		}
		ix.languages = make(map[Language]bool, len(langs))
		for _, l := range langs {
			ix.languages[l] = true
		}
	}
}

// WithExcludeDirs skips directories with these base names.
func WithExcludeDirs(dirs ...string) IndexOption {
	return func(ix *Indexer) {
		for _, d := range dirs {
			ix.exclude[d] = true
		}
	}
}

// WithWorkers bounds the number of files parsed concurrently.
func WithWorkers(n int) IndexOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithIndexLogger sets the logger for skipped files and progress.
func WithIndexLogger(l *slog.Logger) IndexOption {
	return func(ix *Indexer) {
		if l != nil {
			ix.logger = l
		}
	}
}

// Indexer walks a repository, parses its source files and loads the
// resolved symbol graph into a Store.
type Indexer struct {
	store     Store
	parser    Parser
	languages map[Language]bool
	exclude   map[string]bool
	workers   int
	logger    *slog.Logger
}

// NewIndexer creates an Indexer writing into store.
func NewIndexer(store Store, parser Parser, opts ...IndexOption) *Indexer {
	ix := &Indexer{
		store:     store,
		parser:    parser,
		languages: make(map[Language]bool),
		exclude:   map[string]bool{".git": true},
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}
	for _, l := range SupportedLanguages {
		ix.languages[l] = true
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

type sourceFile struct {
	abs  string
	rel  string
	lang Language
}

// Index parses every supported file under root and returns graph statistics.
// Unreadable or unparseable files are skipped with a warning.
func (ix *Indexer) Index(ctx context.Context, root string) (*GraphStats, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	files, err := ix.discover(root)
	if err != nil {
		return nil, err
	}

	results := make([]*ParseResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(f.abs)
			if err != nil {
				ix.logger.Warn("skipping unreadable file", "path", f.rel, "error", err)
				return nil
			}
			res, err := ix.parser.Parse(gctx, f.rel, source, f.lang)
			if err != nil {
				ix.logger.Warn("skipping unparseable file", "path", f.rel, "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if err := ix.store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := ix.load(ctx, results); err != nil {
		return nil, err
	}

	stats, err := ix.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	ix.logger.Info("index built",
		"root", root,
		"files", stats.FileCount,
		"symbols", stats.SymbolCount,
		"edges", stats.EdgeCount,
	)
	return stats, nil
}

// discover lists the files to parse in walk order.
func (ix *Indexer) discover(root string) ([]sourceFile, error) {
	var files []sourceFile
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			if path != root && ix.exclude[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := LanguageForPath(path)
		if !ok || !ix.languages[lang] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, sourceFile{abs: path, rel: filepath.ToSlash(rel), lang: lang})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk: %w", walkErr)
	}
	return files, nil
}

// load resolves edges across all parsed files and writes the graph.
func (ix *Indexer) load(ctx context.Context, results []*ParseResult) error {
	var (
		symbols []SymbolNode
		edges   []Edge
	)
	for _, res := range results {
		if res == nil {
			continue
		}
		if err := ix.store.AddFile(ctx, res.File); err != nil {
			return fmt.Errorf("add file %s: %w", res.File.Path, err)
		}
		symbols = append(symbols, res.Symbols...)
		edges = append(edges, res.Edges...)
	}

	for _, sym := range symbols {
		if err := ix.store.AddSymbol(ctx, sym); err != nil {
			return fmt.Errorf("add symbol %s: %w", sym.ID, err)
		}
	}

	resolved := NewResolver(symbols).ResolveAll(edges)
	ix.logger.Debug("edges resolved", "raw", len(edges), "resolved", len(resolved))
	for _, edge := range resolved {
		if err := ix.store.AddEdge(ctx, edge); err != nil {
			return fmt.Errorf("add edge %s->%s: %w", edge.SourceID, edge.TargetID, err)
		}
	}
	return nil
}
