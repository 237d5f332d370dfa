// Package collect gathers the transitive source context reachable from a
// routine by walking a call/reference graph depth-first.
package collect

import (
	"context"
	"errors"
)

// RoutineKind classifies a callable unit.
type RoutineKind string

const (
	KindFunction RoutineKind = "function"
	KindMethod   RoutineKind = "method"
)

// SymbolKind classifies a referenced, non-callable symbol.
type SymbolKind string

const (
	KindField    SymbolKind = "field"
	KindVariable SymbolKind = "variable"
)

// Routine identifies a callable unit. ID is unique within one SymbolGraph.
type Routine struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Kind RoutineKind `json:"kind"`
}

// Symbol is a field or variable declaration.
type Symbol struct {
	ID          string     `json:"id"`
	Kind        SymbolKind `json:"kind"`
	Declaration string     `json:"declaration"`
}

// Reference is one occurrence of a symbol inside a routine body.
type Reference struct {
	Expr   string `json:"expr"`
	Symbol Symbol `json:"symbol"`
}

// SymbolGraph is the capability the collector walks. Implementations
// report callees and references in source order and drop call sites they
// cannot resolve.
type SymbolGraph interface {
	SourceText(ctx context.Context, r Routine) (string, error)
	Callees(ctx context.Context, r Routine) ([]Routine, error)
	References(ctx context.Context, r Routine) ([]Reference, error)
}

var (
	// ErrNoTarget is returned when the root routine is missing or unknown.
	ErrNoTarget = errors.New("collect: no target routine")
	// ErrEmptyContext is returned when the root resolves but has no source text.
	ErrEmptyContext = errors.New("collect: empty context")
	// ErrUnresolved is returned by SymbolGraph implementations for routines
	// they cannot locate.
	ErrUnresolved = errors.New("collect: routine not resolved")
)
