package graph

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// rsRules maps the Rust grammar onto the walker. Structs declare containers
// and impl blocks reopen them, so methods and fields share a container.
type rsRules struct{}

func (rsRules) container(n *tree_sitter.Node, src []byte) (containerDecl, bool) {
	switch n.Kind() {
	case "struct_item", "enum_item", "union_item", "trait_item":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return containerDecl{name: nameNode, declares: true}, true
		}
	case "impl_item":
		typeNode := n.ChildByFieldName("type")
		if typeNode == nil {
			return containerDecl{}, false
		}
		if typeNode.Kind() == "generic_type" {
			if inner := typeNode.ChildByFieldName("type"); inner != nil {
				typeNode = inner
			}
		}
		return containerDecl{name: typeNode, label: typeNode.Utf8Text(src)}, true
	}
	return containerDecl{}, false
}

func (rsRules) routine(n *tree_sitter.Node, _ []byte) (routineDecl, bool) {
	if n.Kind() != "function_item" {
		return routineDecl{}, false
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return routineDecl{}, false
	}
	return routineDecl{name: nameNode, self: "self"}, true
}

func (rsRules) declarations(n *tree_sitter.Node, _ []byte) []decl {
	var out []decl
	switch n.Kind() {
	case "field_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, decl{name: name, text: n, field: true})
		}

	case "static_item", "const_item":
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, decl{name: name, text: n})
		}

	case "let_declaration", "for_expression":
		pattern := n.ChildByFieldName("pattern")
		if pattern == nil {
			return nil
		}
		text := n
		if n.Kind() == "for_expression" {
			text = pattern
		}
		if pattern.Kind() == "identifier" {
			return []decl{{name: pattern, text: text}}
		}
		for _, name := range childrenOfKind(pattern, "identifier") {
			out = append(out, decl{name: name, text: text})
		}

	case "parameter":
		if pattern := n.ChildByFieldName("pattern"); pattern != nil && pattern.Kind() == "identifier" {
			out = append(out, decl{name: pattern, text: n, param: true})
		}

	case "closure_parameters":
		for _, name := range childrenOfKind(n, "identifier") {
			out = append(out, decl{name: name, text: name, param: true})
		}
	}
	return out
}

func (rsRules) call(n *tree_sitter.Node, src []byte) (callSite, bool) {
	if n.Kind() != "call_expression" {
		return callSite{}, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return callSite{}, false
	}

	switch fn.Kind() {
	case "identifier":
		return callSite{name: fn, expr: fn}, true
	case "field_expression":
		field := fn.ChildByFieldName("field")
		value := fn.ChildByFieldName("value")
		if field == nil || value == nil {
			return callSite{}, false
		}
		return callSite{
			name:     field,
			receiver: value.Utf8Text(src),
			expr:     fn,
			consumed: fn,
		}, true
	case "scoped_identifier":
		name := fn.ChildByFieldName("name")
		if name == nil {
			return callSite{}, false
		}
		c := callSite{name: name, expr: fn, consumed: fn}
		// Self::new() resolves like a bare call inside the impl.
		if path := fn.ChildByFieldName("path"); path != nil && path.Utf8Text(src) != "Self" {
			c.receiver = path.Utf8Text(src)
		}
		return c, true
	}
	return callSite{}, false
}

func (rsRules) member(n *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node, bool) {
	if n.Kind() != "field_expression" {
		return nil, nil, false
	}
	field := n.ChildByFieldName("field")
	value := n.ChildByFieldName("value")
	if field == nil || value == nil {
		return nil, nil, false
	}
	return field, value, true
}

func (rsRules) identifier(n *tree_sitter.Node) bool {
	return n.Kind() == "identifier"
}

func (rsRules) exported(n *tree_sitter.Node, _ string, _ []byte) bool {
	return isRustPub(n)
}

// isRustPub checks if a node has a visibility_modifier child with "pub" text.
func isRustPub(node *tree_sitter.Node) bool {
	if node.ChildCount() == 0 {
		return false
	}
	first := node.Child(0)
	if first == nil {
		return false
	}
	return first.Kind() == "visibility_modifier"
}
