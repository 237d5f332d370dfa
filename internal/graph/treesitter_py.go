package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// pyRules maps the Python grammar onto the walker. The first assignment to
// a name declares it; self.x assignments inside methods declare fields.
type pyRules struct{}

func (pyRules) container(n *tree_sitter.Node, _ []byte) (containerDecl, bool) {
	if n.Kind() != "class_definition" {
		return containerDecl{}, false
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return containerDecl{}, false
	}
	return containerDecl{name: nameNode, declares: true}, true
}

func (pyRules) routine(n *tree_sitter.Node, src []byte) (routineDecl, bool) {
	if n.Kind() != "function_definition" {
		return routineDecl{}, false
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return routineDecl{}, false
	}
	r := routineDecl{name: nameNode}
	// The first parameter is the receiver; the walker only honours it
	// for functions declared in a class body.
	if params := n.ChildByFieldName("parameters"); params != nil {
		if first := params.NamedChild(0); first != nil && first.Kind() == "identifier" {
			r.self = first.Utf8Text(src)
		}
	}
	return r, true
}

func (pyRules) declarations(n *tree_sitter.Node, src []byte) []decl {
	var out []decl
	switch n.Kind() {
	case "parameters", "lambda_parameters":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			p := n.NamedChild(i)
			if p == nil {
				continue
			}
			if name := pyParamName(p); name != nil {
				out = append(out, decl{name: name, text: p, param: true})
			}
		}

	case "assignment":
		left := n.ChildByFieldName("left")
		if left == nil {
			return nil
		}
		switch left.Kind() {
		case "identifier":
			out = append(out, decl{name: left, text: n})
		case "attribute":
			obj := left.ChildByFieldName("object")
			attr := left.ChildByFieldName("attribute")
			if obj != nil && attr != nil && obj.Kind() == "identifier" {
				out = append(out, decl{name: attr, text: n, receiver: obj.Utf8Text(src), at: left})
			}
		case "pattern_list", "tuple_pattern":
			for _, name := range childrenOfKind(left, "identifier") {
				out = append(out, decl{name: name, text: n})
			}
		}

	case "for_statement":
		left := n.ChildByFieldName("left")
		if left == nil {
			return nil
		}
		if left.Kind() == "identifier" {
			return []decl{{name: left, text: left}}
		}
		for _, name := range childrenOfKind(left, "identifier") {
			out = append(out, decl{name: name, text: left})
		}
	}
	return out
}

// pyParamName finds the bound name of a parameter node.
func pyParamName(p *tree_sitter.Node) *tree_sitter.Node {
	switch p.Kind() {
	case "identifier":
		return p
	case "default_parameter", "typed_default_parameter":
		return p.ChildByFieldName("name")
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		return firstChildOfKind(p, "identifier")
	}
	return nil
}

func (pyRules) call(n *tree_sitter.Node, src []byte) (callSite, bool) {
	if n.Kind() != "call" {
		return callSite{}, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return callSite{}, false
	}

	switch fn.Kind() {
	case "identifier":
		return callSite{name: fn, expr: fn}, true
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		obj := fn.ChildByFieldName("object")
		if attr == nil || obj == nil {
			return callSite{}, false
		}
		return callSite{
			name:     attr,
			receiver: obj.Utf8Text(src),
			expr:     fn,
			consumed: fn,
		}, true
	}
	return callSite{}, false
}

func (pyRules) member(n *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node, bool) {
	if n.Kind() != "attribute" {
		return nil, nil, false
	}
	attr := n.ChildByFieldName("attribute")
	obj := n.ChildByFieldName("object")
	if attr == nil || obj == nil {
		return nil, nil, false
	}
	return attr, obj, true
}

func (pyRules) identifier(n *tree_sitter.Node) bool {
	if n.Kind() != "identifier" {
		return false
	}
	// Keyword argument names are not uses of a variable.
	if p := n.Parent(); p != nil && p.Kind() == "keyword_argument" {
		if name := p.ChildByFieldName("name"); name != nil && name.Id() == n.Id() {
			return false
		}
	}
	return true
}

func (pyRules) exported(_ *tree_sitter.Node, name string, _ []byte) bool {
	return isPyExported(name)
}

// isPyExported returns true if the name does not start with an underscore.
func isPyExported(name string) bool {
	return !strings.HasPrefix(name, "_")
}
