package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Option configures a Collector.
type Option func(*Collector)

// WithMaxDepth bounds how far below the root the walk descends. Zero means
// unlimited.
func WithMaxDepth(depth int) Option {
	return func(c *Collector) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for debug traces of the walk.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// Collector walks a SymbolGraph. It holds no per-walk state, so one
// Collector may serve concurrent Collect calls.
type Collector struct {
	graph    SymbolGraph
	maxDepth int
	logger   *slog.Logger
}

// New creates a Collector over g.
func New(g SymbolGraph, opts ...Option) *Collector {
	c := &Collector{graph: g, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// walk is the state of a single collection pass.
type walk struct {
	c       *Collector
	visited map[string]struct{}
	doc     *Document
}

// Collect walks the graph depth-first from root and returns the context
// document. Callees that cannot be resolved are skipped.
func (c *Collector) Collect(ctx context.Context, root *Routine) (*Document, error) {
	if root == nil || root.ID == "" {
		return nil, ErrNoTarget
	}

	src, err := c.graph.SourceText(ctx, *root)
	if errors.Is(err, ErrUnresolved) {
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, root.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("collect: source of %s: %w", root.ID, err)
	}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContext, root.ID)
	}

	w := &walk{
		c:       c,
		visited: make(map[string]struct{}),
		doc:     &Document{Root: *root},
	}
	if err := w.visit(ctx, *root, src, 0); err != nil {
		return nil, err
	}

	c.logger.Debug("context collected",
		"root", root.ID,
		"routines", len(w.doc.Entries),
		"edges", len(w.doc.Edges),
	)
	return w.doc, nil
}

func (w *walk) visit(ctx context.Context, r Routine, src string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Mark before descending so cycles terminate.
	w.visited[r.ID] = struct{}{}

	refs, err := w.c.graph.References(ctx, r)
	if err != nil && !errors.Is(err, ErrUnresolved) {
		return fmt.Errorf("collect: references of %s: %w", r.ID, err)
	}
	w.doc.Entries = append(w.doc.Entries, Entry{
		Routine:    r,
		Source:     src,
		References: refs,
		Depth:      depth,
	})

	callees, err := w.c.graph.Callees(ctx, r)
	if err != nil && !errors.Is(err, ErrUnresolved) {
		return fmt.Errorf("collect: callees of %s: %w", r.ID, err)
	}

	for _, callee := range callees {
		if callee.ID == "" {
			continue
		}
		if _, seen := w.visited[callee.ID]; seen {
			w.doc.Edges = append(w.doc.Edges, Edge{From: r.ID, To: callee.ID})
			continue
		}
		if w.c.maxDepth > 0 && depth+1 > w.c.maxDepth {
			continue
		}

		calleeSrc, err := w.c.graph.SourceText(ctx, callee)
		if errors.Is(err, ErrUnresolved) {
			w.c.logger.Debug("skipping unresolved callee", "caller", r.ID, "callee", callee.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("collect: source of %s: %w", callee.ID, err)
		}

		w.doc.Edges = append(w.doc.Edges, Edge{From: r.ID, To: callee.ID})
		if err := w.visit(ctx, callee, calleeSrc, depth+1); err != nil {
			return err
		}
	}
	return nil
}
