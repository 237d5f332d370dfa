package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/lineage/internal/collect"
)

var _ collect.SymbolGraph = (*StoreAdapter)(nil)

// StoreAdapter exposes a Store as a collect.SymbolGraph.
type StoreAdapter struct {
	store Store
}

// NewStoreAdapter wraps store.
func NewStoreAdapter(store Store) *StoreAdapter {
	return &StoreAdapter{store: store}
}

// SourceText returns the full text of the routine.
func (a *StoreAdapter) SourceText(ctx context.Context, r collect.Routine) (string, error) {
	sym, err := a.routine(ctx, r.ID)
	if err != nil {
		return "", err
	}
	return sym.Text, nil
}

// Callees returns the distinct resolved callees of r in call-site order.
func (a *StoreAdapter) Callees(ctx context.Context, r collect.Routine) ([]collect.Routine, error) {
	edges, err := a.store.Callees(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("callees of %s: %w", r.ID, err)
	}
	seen := make(map[string]bool, len(edges))
	var out []collect.Routine
	for _, e := range edges {
		if seen[e.TargetID] {
			continue
		}
		seen[e.TargetID] = true
		sym, err := a.store.GetSymbol(ctx, e.TargetID)
		if err != nil {
			return nil, fmt.Errorf("get symbol %s: %w", e.TargetID, err)
		}
		if sym == nil || !sym.Kind.IsRoutine() {
			continue
		}
		out = append(out, RoutineOf(*sym))
	}
	return out, nil
}

// References returns every field or variable use inside r in source order.
func (a *StoreAdapter) References(ctx context.Context, r collect.Routine) ([]collect.Reference, error) {
	edges, err := a.store.References(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("references of %s: %w", r.ID, err)
	}
	cache := make(map[string]*SymbolNode)
	var out []collect.Reference
	for _, e := range edges {
		sym, ok := cache[e.TargetID]
		if !ok {
			sym, err = a.store.GetSymbol(ctx, e.TargetID)
			if err != nil {
				return nil, fmt.Errorf("get symbol %s: %w", e.TargetID, err)
			}
			cache[e.TargetID] = sym
		}
		if sym == nil {
			continue
		}
		kind := collect.KindVariable
		if sym.Kind == SymbolKindField {
			kind = collect.KindField
		}
		out = append(out, collect.Reference{
			Expr: e.Expr,
			Symbol: collect.Symbol{
				ID:          sym.ID,
				Kind:        kind,
				Declaration: sym.Text,
			},
		})
	}
	return out, nil
}

// RoutineAt maps a cursor position to the innermost routine around it.
// It returns collect.ErrNoTarget when the line is outside every routine.
func (a *StoreAdapter) RoutineAt(ctx context.Context, filePath string, line int) (*collect.Routine, error) {
	sym, err := a.store.SymbolAt(ctx, filePath, line)
	if err != nil {
		return nil, fmt.Errorf("symbol at %s:%d: %w", filePath, line, err)
	}
	if sym == nil {
		return nil, fmt.Errorf("%w: no routine at %s:%d", collect.ErrNoTarget, filePath, line)
	}
	r := RoutineOf(*sym)
	return &r, nil
}

// Lookup finds a routine by ID, qualified name (Type.method) or bare name.
// Bare names must be unambiguous.
func (a *StoreAdapter) Lookup(ctx context.Context, target string) (*collect.Routine, error) {
	if sym, err := a.store.GetSymbol(ctx, target); err != nil {
		return nil, fmt.Errorf("get symbol %s: %w", target, err)
	} else if sym != nil && sym.Kind.IsRoutine() {
		r := RoutineOf(*sym)
		return &r, nil
	}

	name := target
	if i := strings.LastIndexByte(target, '.'); i >= 0 {
		name = target[i+1:]
	}
	cands, err := a.store.QuerySymbols(ctx, name, 0)
	if err != nil {
		return nil, fmt.Errorf("query symbols %s: %w", name, err)
	}

	var matches []SymbolNode
	for _, s := range cands {
		if !s.Kind.IsRoutine() {
			continue
		}
		if s.Name == target || s.QualifiedName() == target {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", collect.ErrNoTarget, target)
	case 1:
		r := RoutineOf(matches[0])
		return &r, nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return nil, fmt.Errorf("ambiguous routine %q: %s", target, strings.Join(ids, ", "))
}

func (a *StoreAdapter) routine(ctx context.Context, id string) (*SymbolNode, error) {
	sym, err := a.store.GetSymbol(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get symbol %s: %w", id, err)
	}
	if sym == nil || !sym.Kind.IsRoutine() {
		return nil, fmt.Errorf("%w: %s", collect.ErrUnresolved, id)
	}
	return sym, nil
}

// RoutineOf converts a routine symbol to the collector's view of it.
func RoutineOf(s SymbolNode) collect.Routine {
	kind := collect.KindFunction
	if s.Kind == SymbolKindMethod {
		kind = collect.KindMethod
	}
	return collect.Routine{ID: s.ID, Name: s.Name, Kind: kind}
}
