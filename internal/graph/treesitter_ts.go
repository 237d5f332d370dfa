package graph

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// tsRules maps the TypeScript grammar onto the walker. Arrow functions bound
// with const/let count as functions.
type tsRules struct{}

func (tsRules) container(n *tree_sitter.Node, _ []byte) (containerDecl, bool) {
	switch n.Kind() {
	case "class_declaration", "abstract_class_declaration", "class":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return containerDecl{name: nameNode, declares: true}, true
		}
	}
	return containerDecl{}, false
}

func (tsRules) routine(n *tree_sitter.Node, _ []byte) (routineDecl, bool) {
	switch n.Kind() {
	case "method_definition", "function_declaration", "generator_function_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return routineDecl{name: nameNode, self: "this"}, true
		}
	case "variable_declarator":
		nameNode := n.ChildByFieldName("name")
		value := n.ChildByFieldName("value")
		if nameNode == nil || value == nil || nameNode.Kind() != "identifier" {
			return routineDecl{}, false
		}
		switch value.Kind() {
		case "arrow_function", "function_expression", "function":
			return routineDecl{name: nameNode}, true
		}
	}
	return routineDecl{}, false
}

func (tsRules) declarations(n *tree_sitter.Node, _ []byte) []decl {
	switch n.Kind() {
	case "public_field_definition":
		if name := n.ChildByFieldName("name"); name != nil {
			return []decl{{name: name, text: n, field: true}}
		}

	case "variable_declarator":
		name := n.ChildByFieldName("name")
		if name == nil || name.Kind() != "identifier" {
			return nil
		}
		text := n
		if p := n.Parent(); p != nil && p.NamedChildCount() == 1 {
			text = p
		}
		return []decl{{name: name, text: text}}

	case "required_parameter", "optional_parameter":
		if name := n.ChildByFieldName("pattern"); name != nil && name.Kind() == "identifier" {
			return []decl{{name: name, text: n, param: true}}
		}
	}
	return nil
}

func (tsRules) call(n *tree_sitter.Node, src []byte) (callSite, bool) {
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
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		obj := fn.ChildByFieldName("object")
		if prop == nil || obj == nil {
			return callSite{}, false
		}
		return callSite{
			name:     prop,
			receiver: obj.Utf8Text(src),
			expr:     fn,
			consumed: fn,
		}, true
	}
	return callSite{}, false
}

func (tsRules) member(n *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node, bool) {
	if n.Kind() != "member_expression" {
		return nil, nil, false
	}
	prop := n.ChildByFieldName("property")
	obj := n.ChildByFieldName("object")
	if prop == nil || obj == nil {
		return nil, nil, false
	}
	return prop, obj, true
}

func (tsRules) identifier(n *tree_sitter.Node) bool {
	return n.Kind() == "identifier"
}

func (tsRules) exported(n *tree_sitter.Node, _ string, src []byte) bool {
	if mod := firstChildOfKind(n, "accessibility_modifier"); mod != nil {
		return mod.Utf8Text(src) == "public"
	}
	switch n.Kind() {
	case "method_definition", "public_field_definition":
		return true
	}
	return isTSExported(n)
}

// isTSExported checks if a node is exported by looking at whether its parent
// (or, for declarators, its grandparent) is an export_statement.
func isTSExported(node *tree_sitter.Node) bool {
	parent := node.Parent()
	for i := 0; parent != nil && i < 2; i++ {
		if parent.Kind() == "export_statement" {
			return true
		}
		parent = parent.Parent()
	}
	return false
}
