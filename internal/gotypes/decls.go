package gotypes

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/dusk-indust/lineage/internal/collect"
)

// declaration is the symbol a declaring identifier introduces.
type declaration struct {
	id   string
	kind collect.SymbolKind
	text string
}

// indexDecls records the declaration text of every struct field, package
// variable, parameter and local in p, keyed by the declaring identifier's
// position (which is what types.Var.Pos reports).
func (b *builder) indexDecls(p *packages.Package) {
	for _, file := range p.Syntax {
		src := b.source(file)
		rel := b.relFile(b.fset.Position(file.Pos()).Filename)

		for _, d := range file.Decls {
			switch d := d.(type) {
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch spec := spec.(type) {
					case *ast.TypeSpec:
						if st, ok := spec.Type.(*ast.StructType); ok {
							b.fields(rel, spec.Name.Name, st, src)
						}
					case *ast.ValueSpec:
						b.values(rel, "", d, spec, src)
					}
				}

			case *ast.FuncDecl:
				obj, ok := p.TypesInfo.Defs[d.Name]
				if !ok || obj == nil {
					continue
				}
				b.locals(rel, funcQualifiedNameOf(obj), d, src)
			}
		}
	}
}

func (b *builder) fields(rel, container string, st *ast.StructType, src []byte) {
	for _, f := range st.Fields.List {
		for _, name := range f.Names {
			b.declare(rel, container, name, collect.KindField, b.text(src, f))
		}
	}
}

func (b *builder) values(rel, container string, gd *ast.GenDecl, spec *ast.ValueSpec, src []byte) {
	var node ast.Node = spec
	if len(gd.Specs) == 1 && !gd.Lparen.IsValid() {
		node = gd
	}
	for _, name := range spec.Names {
		b.declare(rel, container, name, collect.KindVariable, b.text(src, node))
	}
}

// locals walks a function declaration, closures included.
func (b *builder) locals(rel, fn string, fd *ast.FuncDecl, src []byte) {
	ast.Inspect(fd, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.StructType:
			b.fields(rel, fn, n, src)
		case *ast.Field:
			for _, name := range n.Names {
				b.declare(rel, fn, name, collect.KindVariable, b.text(src, n))
			}
		case *ast.GenDecl:
			for _, spec := range n.Specs {
				if vs, ok := spec.(*ast.ValueSpec); ok {
					b.values(rel, fn, n, vs, src)
				}
			}
		case *ast.AssignStmt:
			if n.Tok != token.DEFINE {
				break
			}
			for _, lhs := range n.Lhs {
				if id, ok := lhs.(*ast.Ident); ok {
					b.declare(rel, fn, id, collect.KindVariable, b.text(src, n))
				}
			}
		case *ast.RangeStmt:
			if n.Tok != token.DEFINE {
				break
			}
			header := b.span(src, n.For, n.X.End())
			for _, e := range []ast.Expr{n.Key, n.Value} {
				if id, ok := e.(*ast.Ident); ok {
					b.declare(rel, fn, id, collect.KindVariable, header)
				}
			}
		}
		return true
	})
}

// declare records the first declaration seen at name's position. Blank
// identifiers and redeclarations in := statements are skipped.
func (b *builder) declare(rel, container string, name *ast.Ident, kind collect.SymbolKind, text string) {
	if name == nil || name.Name == "_" {
		return
	}
	if _, seen := b.decls[name.Pos()]; seen {
		return
	}
	qualified := name.Name
	if container != "" {
		qualified = container + "." + name.Name
	}
	b.decls[name.Pos()] = declaration{
		id:   b.uniqueID(rel, qualified, b.fset.Position(name.Pos()).Line),
		kind: kind,
		text: text,
	}
}

func (b *builder) span(src []byte, from, to token.Pos) string {
	start, end := b.fset.Position(from).Offset, b.fset.Position(to).Offset
	if src == nil || start < 0 || end > len(src) || start > end {
		return ""
	}
	return string(src[start:end])
}

func funcQualifiedNameOf(obj types.Object) string {
	if fn, ok := obj.(*types.Func); ok {
		return funcQualifiedName(fn)
	}
	return obj.Name()
}
