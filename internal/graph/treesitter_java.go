package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// javaRules maps the Java grammar onto the walker. Classes, interfaces,
// enums and records nest as containers; constructors are routines named
// after their class.
type javaRules struct{}

func (javaRules) container(n *tree_sitter.Node, _ []byte) (containerDecl, bool) {
	switch n.Kind() {
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return containerDecl{name: nameNode, declares: true}, true
		}
	}
	return containerDecl{}, false
}

func (javaRules) routine(n *tree_sitter.Node, _ []byte) (routineDecl, bool) {
	switch n.Kind() {
	case "method_declaration", "constructor_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return routineDecl{name: nameNode, self: "this", params: n.ChildByFieldName("parameters")}, true
		}
	}
	return routineDecl{}, false
}

func (javaRules) declarations(n *tree_sitter.Node, src []byte) []decl {
	var out []decl
	switch n.Kind() {
	case "field_declaration", "local_variable_declaration":
		declarators := childrenOfKind(n, "variable_declarator")
		for _, d := range declarators {
			if name := d.ChildByFieldName("name"); name != nil {
				out = append(out, decl{
					name:  name,
					text:  declText(n, d, len(declarators)),
					field: n.Kind() == "field_declaration",
				})
			}
		}

	case "enum_constant":
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, decl{name: name, text: n, field: true})
		}

	case "formal_parameter", "catch_formal_parameter", "resource":
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, decl{name: name, text: n, param: true})
		}

	case "enhanced_for_statement":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		d := decl{name: name, text: name}
		if typeNode := n.ChildByFieldName("type"); typeNode != nil {
			// Only the loop header; the body is not part of the declaration.
			d.label = typeNode.Utf8Text(src) + " " + name.Utf8Text(src)
		}
		out = append(out, d)

	case "spread_parameter":
		for _, d := range childrenOfKind(n, "variable_declarator") {
			if name := d.ChildByFieldName("name"); name != nil {
				out = append(out, decl{name: name, text: n, param: true})
			}
		}

	case "lambda_expression":
		params := n.ChildByFieldName("parameters")
		if params == nil {
			return nil
		}
		if params.Kind() == "identifier" {
			return []decl{{name: params, text: params, param: true}}
		}
		for _, name := range childrenOfKind(params, "identifier") {
			out = append(out, decl{name: name, text: name, param: true})
		}
	}
	return out
}

func (javaRules) call(n *tree_sitter.Node, src []byte) (callSite, bool) {
	switch n.Kind() {
	case "method_invocation":
		name := n.ChildByFieldName("name")
		if name == nil {
			return callSite{}, false
		}
		c := callSite{name: name, args: n.ChildByFieldName("arguments")}
		if obj := n.ChildByFieldName("object"); obj != nil {
			c.receiver = obj.Utf8Text(src)
		}
		return c, true

	case "object_creation_expression":
		typeNode := n.ChildByFieldName("type")
		if typeNode != nil && typeNode.Kind() == "generic_type" {
			typeNode = firstChildOfKind(typeNode, "type_identifier", "scoped_type_identifier")
		}
		if typeNode != nil && typeNode.Kind() == "scoped_type_identifier" {
			typeNode = lastChildOfKind(typeNode, "type_identifier")
		}
		if typeNode == nil || typeNode.Kind() != "type_identifier" {
			return callSite{}, false
		}
		return callSite{name: typeNode, expr: typeNode, args: n.ChildByFieldName("arguments")}, true
	}
	return callSite{}, false
}

func (javaRules) member(n *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node, bool) {
	if n.Kind() != "field_access" {
		return nil, nil, false
	}
	field := n.ChildByFieldName("field")
	obj := n.ChildByFieldName("object")
	if field == nil || obj == nil {
		return nil, nil, false
	}
	return field, obj, true
}

func (javaRules) identifier(n *tree_sitter.Node) bool {
	return n.Kind() == "identifier"
}

func (javaRules) exported(n *tree_sitter.Node, _ string, src []byte) bool {
	return hasChildOfKind(n, "modifiers", src, func(mods string) bool {
		return strings.Contains(mods, "public")
	})
}

func firstChildOfKind(n *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	if c := childrenOfKind(n, kinds...); len(c) > 0 {
		return c[0]
	}
	return nil
}

func lastChildOfKind(n *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	if c := childrenOfKind(n, kinds...); len(c) > 0 {
		return c[len(c)-1]
	}
	return nil
}
