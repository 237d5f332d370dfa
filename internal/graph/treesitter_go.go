package graph

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// goRules maps the Go grammar onto the walker. Struct types are containers;
// methods take their container from the receiver type.
type goRules struct{}

func (goRules) container(n *tree_sitter.Node, _ []byte) (containerDecl, bool) {
	if n.Kind() != "type_spec" {
		return containerDecl{}, false
	}
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil || typeNode.Kind() != "struct_type" {
		return containerDecl{}, false
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return containerDecl{}, false
	}
	return containerDecl{name: nameNode, declares: true}, true
}

func (goRules) routine(n *tree_sitter.Node, src []byte) (routineDecl, bool) {
	switch n.Kind() {
	case "function_declaration":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return routineDecl{}, false
		}
		return routineDecl{name: nameNode}, true

	case "method_declaration":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return routineDecl{}, false
		}
		r := routineDecl{name: nameNode}
		params := childrenOfKind(n.ChildByFieldName("receiver"), "parameter_declaration")
		if len(params) == 0 {
			return r, true
		}
		recv := params[0]
		if name := recv.ChildByFieldName("name"); name != nil {
			r.self = name.Utf8Text(src)
		}
		if typeNode := recv.ChildByFieldName("type"); typeNode != nil {
			r.container = receiverTypeName(typeNode.Utf8Text(src))
		}
		return r, true
	}
	return routineDecl{}, false
}

// receiverTypeName turns "*Cache[K, V]" into "Cache".
func receiverTypeName(t string) string {
	t = strings.TrimLeft(strings.TrimSpace(t), "*")
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func (goRules) declarations(n *tree_sitter.Node, _ []byte) []decl {
	var out []decl
	switch n.Kind() {
	case "field_declaration":
		for _, name := range childrenOfKind(n, "field_identifier") {
			out = append(out, decl{name: name, text: n, field: true})
		}

	case "var_spec", "const_spec":
		text := n
		if p := n.Parent(); p != nil && p.NamedChildCount() == 1 &&
			(p.Kind() == "var_declaration" || p.Kind() == "const_declaration") {
			text = p
		}
		for _, name := range childrenOfKind(n, "identifier") {
			out = append(out, decl{name: name, text: text})
		}

	case "short_var_declaration":
		for _, name := range childrenOfKind(n.ChildByFieldName("left"), "identifier") {
			out = append(out, decl{name: name, text: n})
		}

	case "range_clause":
		for _, name := range childrenOfKind(n.ChildByFieldName("left"), "identifier") {
			out = append(out, decl{name: name, text: n})
		}

	case "parameter_declaration", "variadic_parameter_declaration":
		for _, name := range childrenOfKind(n, "identifier") {
			out = append(out, decl{name: name, text: n, param: true})
		}
	}
	return out
}

func (goRules) call(n *tree_sitter.Node, src []byte) (callSite, bool) {
	if n.Kind() != "call_expression" {
		return callSite{}, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return callSite{}, false
	}

	// Best-effort: only simple identifiers and selector expressions.
	switch fn.Kind() {
	case "identifier":
		return callSite{name: fn, expr: fn}, true
	case "selector_expression":
		field := fn.ChildByFieldName("field")
		operand := fn.ChildByFieldName("operand")
		if field == nil || operand == nil {
			return callSite{}, false
		}
		return callSite{
			name:     field,
			receiver: operand.Utf8Text(src),
			expr:     fn,
			consumed: fn,
		}, true
	}
	return callSite{}, false
}

func (goRules) member(n *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node, bool) {
	if n.Kind() != "selector_expression" {
		return nil, nil, false
	}
	field := n.ChildByFieldName("field")
	operand := n.ChildByFieldName("operand")
	if field == nil || operand == nil {
		return nil, nil, false
	}
	return field, operand, true
}

func (goRules) identifier(n *tree_sitter.Node) bool {
	return n.Kind() == "identifier"
}

func (goRules) exported(_ *tree_sitter.Node, name string, _ []byte) bool {
	return isGoExported(name)
}

// isGoExported returns true if the first rune of name is an uppercase letter.
func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
