// Package gotypes implements collect.SymbolGraph over type-checked Go
// packages. Calls come from an SSA static call graph and references from
// go/types, so resolution is exact where the tree-sitter index guesses.
package gotypes

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/dusk-indust/lineage/internal/collect"
)

var _ collect.SymbolGraph = (*Graph)(nil)

// ErrNoPackages is returned when the patterns match no well-typed package.
var ErrNoPackages = errors.New("gotypes: no packages loaded")

// routine is one top-level function or method declaration.
type routine struct {
	collect.Routine
	file    string
	start   int
	end     int
	source  string
	callees []string
	refs    []collect.Reference
}

// Graph is an immutable call/reference graph of the loaded packages.
type Graph struct {
	root     string
	routines map[string]*routine
	byFile   map[string][]*routine
}

// Load type-checks the packages matched by patterns (default "./...")
// under dir and builds the graph.
func Load(ctx context.Context, dir string, patterns ...string) (*Graph, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("gotypes: resolve %s: %w", dir, err)
	}
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.LoadAllSyntax,
		Dir:     root,
		// Neutralize workspace and flag interference from the caller.
		Env: append(os.Environ(), "GOWORK=off", "GOFLAGS="),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("gotypes: load packages: %w", err)
	}

	var loaded []*packages.Package
	for _, p := range pkgs {
		if len(p.Errors) > 0 {
			for _, e := range p.Errors {
				slog.Warn("skipping package with errors", "package", p.PkgPath, "error", e.Msg)
			}
			continue
		}
		loaded = append(loaded, p)
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPackages, strings.Join(patterns, " "))
	}

	prog, _ := ssautil.AllPackages(loaded, ssa.InstantiateGenerics)
	prog.Build()
	cg := static.CallGraph(prog)

	b := &builder{
		root:  root,
		fset:  prog.Fset,
		prog:  prog,
		cg:    cg,
		decls: make(map[token.Pos]declaration),
		ids:   make(map[string]bool),
		funcs: make(map[*types.Func]*routine),
	}
	for _, p := range loaded {
		b.indexDecls(p)
	}
	for _, p := range loaded {
		b.addRoutines(p)
	}
	for fn, r := range b.funcs {
		r.callees = b.callees(fn)
	}

	g := &Graph{
		root:     root,
		routines: make(map[string]*routine, len(b.funcs)),
		byFile:   make(map[string][]*routine),
	}
	for _, r := range b.funcs {
		g.routines[r.ID] = r
		g.byFile[r.file] = append(g.byFile[r.file], r)
	}
	slog.Debug("go packages loaded", "root", root, "packages", len(loaded), "routines", len(g.routines))
	return g, nil
}

// SourceText returns the declaration text of r.
func (g *Graph) SourceText(_ context.Context, r collect.Routine) (string, error) {
	fn, ok := g.routines[r.ID]
	if !ok {
		return "", fmt.Errorf("%w: %s", collect.ErrUnresolved, r.ID)
	}
	return fn.source, nil
}

// Callees returns the distinct statically resolved callees of r in
// call-site order, including calls made from closures inside it.
func (g *Graph) Callees(_ context.Context, r collect.Routine) ([]collect.Routine, error) {
	fn, ok := g.routines[r.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", collect.ErrUnresolved, r.ID)
	}
	out := make([]collect.Routine, 0, len(fn.callees))
	for _, id := range fn.callees {
		out = append(out, g.routines[id].Routine)
	}
	return out, nil
}

// References returns the field and variable uses in r in source order.
func (g *Graph) References(_ context.Context, r collect.Routine) ([]collect.Reference, error) {
	fn, ok := g.routines[r.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", collect.ErrUnresolved, r.ID)
	}
	return fn.refs, nil
}

// RoutineAt maps a cursor position to the routine declared around it.
// filePath may be absolute or relative to the load directory.
func (g *Graph) RoutineAt(_ context.Context, filePath string, line int) (*collect.Routine, error) {
	rel := g.rel(filePath)
	for _, r := range g.byFile[rel] {
		if r.start <= line && line <= r.end {
			out := r.Routine
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: no routine at %s:%d", collect.ErrNoTarget, rel, line)
}

// Lookup finds a routine by ID, qualified name (Type.Method) or bare name.
func (g *Graph) Lookup(_ context.Context, target string) (*collect.Routine, error) {
	if r, ok := g.routines[target]; ok {
		out := r.Routine
		return &out, nil
	}
	var matches []*routine
	for _, r := range g.routines {
		qualified := r.ID[strings.LastIndexByte(r.ID, ':')+1:]
		if r.Name == target || qualified == target {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", collect.ErrNoTarget, target)
	case 1:
		out := matches[0].Routine
		return &out, nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return nil, fmt.Errorf("ambiguous routine %q: %s", target, strings.Join(ids, ", "))
}

// Len returns the number of routines in the graph.
func (g *Graph) Len() int { return len(g.routines) }

func (g *Graph) rel(path string) string {
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(g.root, path); err == nil {
			path = r
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// builder holds the state used while constructing a Graph.
type builder struct {
	root  string
	fset  *token.FileSet
	prog  *ssa.Program
	cg    *callgraph.Graph
	decls map[token.Pos]declaration
	ids   map[string]bool
	funcs map[*types.Func]*routine
}

// addRoutines records every function and method declared in p.
func (b *builder) addRoutines(p *packages.Package) {
	for _, file := range p.Syntax {
		src := b.source(file)
		for _, d := range file.Decls {
			fd, ok := d.(*ast.FuncDecl)
			if !ok || fd.Body == nil {
				continue
			}
			obj, ok := p.TypesInfo.Defs[fd.Name].(*types.Func)
			if !ok {
				continue
			}

			kind := collect.KindFunction
			if fd.Recv != nil {
				kind = collect.KindMethod
			}
			start := b.fset.Position(fd.Pos())
			end := b.fset.Position(fd.End())
			r := &routine{
				Routine: collect.Routine{
					ID:   b.uniqueID(b.relFile(start.Filename), funcQualifiedName(obj), start.Line),
					Name: obj.Name(),
					Kind: kind,
				},
				file:   b.relFile(start.Filename),
				start:  start.Line,
				end:    end.Line,
				source: b.span(src, fd.Pos(), fd.End()),
			}
			r.refs = b.references(p.TypesInfo, fd, src)
			b.funcs[obj] = r
		}
	}
}

// callees lists the routines fn calls, ordered by call site.
func (b *builder) callees(obj *types.Func) []string {
	fn := b.prog.FuncValue(obj)
	if fn == nil {
		return nil
	}

	var edges []*callgraph.Edge
	var gather func(f *ssa.Function)
	gather = func(f *ssa.Function) {
		if node := b.cg.Nodes[f]; node != nil {
			edges = append(edges, node.Out...)
		}
		for _, anon := range f.AnonFuncs {
			gather(anon)
		}
	}
	gather(fn)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Pos() < edges[j].Pos() })

	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		if e.Callee == nil || e.Callee.Func == nil {
			continue
		}
		callee := e.Callee.Func
		if origin := callee.Origin(); origin != nil {
			callee = origin
		}
		calleeObj, ok := callee.Object().(*types.Func)
		if !ok {
			continue
		}
		r, ok := b.funcs[calleeObj]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r.ID)
	}
	return out
}

// references lists the fields and variables used in fd's body. The
// receiver itself is not a reference; its fields are.
func (b *builder) references(info *types.Info, fd *ast.FuncDecl, src []byte) []collect.Reference {
	var recv types.Object
	if fd.Recv != nil && len(fd.Recv.List) > 0 && len(fd.Recv.List[0].Names) > 0 {
		recv = info.Defs[fd.Recv.List[0].Names[0]]
	}

	var refs []collect.Reference
	handled := make(map[*ast.Ident]bool)
	emit := func(id *ast.Ident, expr string) {
		v, ok := info.Uses[id].(*types.Var)
		if !ok || v == recv {
			return
		}
		d, ok := b.decls[v.Pos()]
		if !ok {
			return
		}
		refs = append(refs, collect.Reference{
			Expr:   expr,
			Symbol: collect.Symbol{ID: d.id, Kind: d.kind, Declaration: d.text},
		})
	}

	ast.Inspect(fd.Body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			if _, ok := info.Uses[n.Sel].(*types.Var); ok {
				emit(n.Sel, b.text(src, n))
				handled[n.Sel] = true
			}
		case *ast.Ident:
			if !handled[n] {
				emit(n, n.Name)
			}
		}
		return true
	})
	return refs
}

func (b *builder) uniqueID(file, qualified string, line int) string {
	id := file + ":" + qualified
	if b.ids[id] {
		id = fmt.Sprintf("%s@%d", id, line)
	}
	b.ids[id] = true
	return id
}

func (b *builder) relFile(abs string) string {
	if r, err := filepath.Rel(b.root, abs); err == nil {
		return filepath.ToSlash(r)
	}
	return filepath.ToSlash(abs)
}

// source returns the bytes of the file containing f.
func (b *builder) source(f *ast.File) []byte {
	tf := b.fset.File(f.Pos())
	if tf == nil {
		return nil
	}
	data, err := os.ReadFile(tf.Name())
	if err != nil {
		return nil
	}
	return data
}

func (b *builder) text(src []byte, n ast.Node) string {
	return b.span(src, n.Pos(), n.End())
}

// funcQualifiedName is Name for functions and Type.Name for methods,
// with pointers and type parameters stripped from the receiver.
func funcQualifiedName(fn *types.Func) string {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return fn.Name()
	}
	t := sig.Recv().Type()
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name() + "." + fn.Name()
	}
	return fn.Name()
}
