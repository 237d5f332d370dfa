package graph

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// TreeSitterParser implements the Parser interface using tree-sitter grammars.
// A new tree-sitter parser is created per Parse call, so concurrent Parse
// calls are safe.
type TreeSitterParser struct {
	languages map[Language]*tree_sitter.Language
	rules     map[Language]rules
}

// NewTreeSitterParser creates a TreeSitterParser with Java, Go, TypeScript,
// Python and Rust grammars registered.
func NewTreeSitterParser() *TreeSitterParser {
	langs := map[Language]*tree_sitter.Language{
		LangJava:       tree_sitter.NewLanguage(tree_sitter_java.Language()),
		LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
		LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
		LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
	}

	r := map[Language]rules{
		LangJava:       javaRules{},
		LangGo:         goRules{},
		LangTypeScript: tsRules{},
		LangPython:     pyRules{},
		LangRust:       rsRules{},
	}

	return &TreeSitterParser{
		languages: langs,
		rules:     r,
	}
}

// Parse extracts symbols and relationships from a single source file.
func (p *TreeSitterParser) Parse(_ context.Context, path string, source []byte, lang Language) (*ParseResult, error) {
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	r, ok := p.rules[lang]
	if !ok {
		return nil, fmt.Errorf("no extractor for language: %s", lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	w := newWalker(r, source, path)
	cursor := tree.Walk()
	defer cursor.Close()
	w.walk(cursor, scope{})

	return &ParseResult{
		File: FileNode{
			Path:     path,
			Language: lang,
			LOC:      countLOC(source),
		},
		Symbols: w.symbols,
		Edges:   w.edges,
	}, nil
}

// SupportedLanguages returns the languages this parser can handle.
func (p *TreeSitterParser) SupportedLanguages() []Language {
	langs := make([]Language, 0, len(p.languages))
	for _, l := range SupportedLanguages {
		if _, ok := p.languages[l]; ok {
			langs = append(langs, l)
		}
	}
	return langs
}

// Close is a no-op because parsers are created per Parse call.
func (p *TreeSitterParser) Close() error {
	return nil
}

// countLOC counts the number of lines in source by counting newline bytes
// and adding one for the final line if the source is non-empty.
func countLOC(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	return bytes.Count(source, []byte{'\n'}) + 1
}

// ---------------------------------------------------------------------------
// Grammar rules
// ---------------------------------------------------------------------------

// rules tells the walker how one grammar spells the constructs it tracks.
// Every hook inspects a single node and reports nothing for unrelated kinds.
type rules interface {
	container(n *tree_sitter.Node, src []byte) (containerDecl, bool)
	routine(n *tree_sitter.Node, src []byte) (routineDecl, bool)
	declarations(n *tree_sitter.Node, src []byte) []decl
	call(n *tree_sitter.Node, src []byte) (callSite, bool)
	member(n *tree_sitter.Node) (name *tree_sitter.Node, receiver *tree_sitter.Node, ok bool)
	identifier(n *tree_sitter.Node) bool
	exported(n *tree_sitter.Node, name string, src []byte) bool
}

// containerDecl is a class, struct or impl block.
type containerDecl struct {
	name  *tree_sitter.Node
	label string // overrides the text of name
	// declares is false for blocks like Rust impls that reopen a type
	// declared elsewhere.
	declares bool
}

// routineDecl is a function, method or constructor.
type routineDecl struct {
	name *tree_sitter.Node
	// container overrides the lexical container (Go receiver types).
	container string
	// self is the name bound to the receiver inside a method body.
	self string
	// params is the parameter list, set by grammars that overload by arity.
	params *tree_sitter.Node
}

// decl is one name introduced by a field, variable or parameter declaration.
type decl struct {
	name  *tree_sitter.Node
	text  *tree_sitter.Node
	field bool
	// receiver is set for attribute assignments such as Python's self.x = v;
	// they only declare when the receiver is the method's self.
	receiver string
	// at is the node consumed by the declaration when it differs from name.
	at *tree_sitter.Node
	// label replaces the text of text when set.
	label string
	// param declarations only count inside a routine; outside one they
	// belong to signatures without bodies.
	param bool
}

// callSite is a call expression.
type callSite struct {
	name     *tree_sitter.Node
	receiver string
	// expr is the callee expression (e.g. "s.repo.Save").
	expr *tree_sitter.Node
	// consumed is a member-access node covered by the call.
	consumed *tree_sitter.Node
	// args is the argument list, set alongside routineDecl.params.
	args *tree_sitter.Node
}

// ---------------------------------------------------------------------------
// Walker
// ---------------------------------------------------------------------------

// scope is the lexical position of the walker.
type scope struct {
	container string
	routineID string
	routineQN string
	self      string
	ordinal   *int
}

type walker struct {
	rules   rules
	src     []byte
	path    string
	symbols []SymbolNode
	edges   []Edge
	ids     map[string]bool // every symbol ID handed out
	decls   map[string]bool // field and variable qualified IDs declared so far
	skip    map[uintptr]bool
}

func newWalker(r rules, src []byte, path string) *walker {
	return &walker{
		rules: r,
		src:   src,
		path:  path,
		ids:   make(map[string]bool),
		decls: make(map[string]bool),
		skip:  make(map[uintptr]bool),
	}
}

func (w *walker) walk(cursor *tree_sitter.TreeCursor, sc scope) {
	sc = w.visit(cursor.Node(), sc)

	if cursor.GotoFirstChild() {
		w.walk(cursor, sc)
		for cursor.GotoNextSibling() {
			w.walk(cursor, sc)
		}
		cursor.GotoParent()
	}
}

// visit records whatever n declares or uses and returns the scope for its
// children.
func (w *walker) visit(n *tree_sitter.Node, sc scope) scope {
	if c, ok := w.rules.container(n, w.src); ok {
		name := c.label
		if name == "" {
			name = w.text(c.name)
		}
		w.consume(c.name)
		sc = scope{container: qualify(sc.container, name)}
		if c.declares {
			w.addSymbol(n, name, SymbolKindType, parentOf(sc.container), false, n)
		}
		return sc
	}

	if r, ok := w.rules.routine(n, w.src); ok {
		return w.enterRoutine(n, r, sc)
	}

	for _, d := range w.rules.declarations(n, w.src) {
		w.declare(d, sc)
	}

	if sc.routineID == "" {
		return sc
	}

	if c, ok := w.rules.call(n, w.src); ok {
		name := w.text(c.name)
		expr := name
		if c.expr != nil {
			expr = w.text(c.expr)
		} else if c.receiver != "" {
			expr = c.receiver + "." + name
		}
		w.use(sc, EdgeKindCalls, name, c.receiver, expr, w.arity(c.args), n)
		w.consume(c.name)
		w.consume(c.consumed)
	}

	if w.skip[n.Id()] {
		return sc
	}

	if name, recv, ok := w.rules.member(n); ok {
		w.use(sc, EdgeKindReferences, w.text(name), w.text(recv), w.text(n), -1, n)
		w.consume(name)
		return sc
	}

	if w.rules.identifier(n) {
		if name := w.text(n); name != sc.self {
			w.use(sc, EdgeKindReferences, name, "", name, -1, n)
		}
	}
	return sc
}

func (w *walker) enterRoutine(n *tree_sitter.Node, r routineDecl, sc scope) scope {
	name := w.text(r.name)
	w.consume(r.name)

	container, kind := r.container, SymbolKindMethod
	switch {
	case container != "":
	case sc.routineQN != "":
		container, kind = sc.routineQN, SymbolKindFunction
	case sc.container != "":
		container = sc.container
	default:
		kind = SymbolKindFunction
	}

	sym := w.addSymbol(n, name, kind, container, false, n)
	w.symbols[len(w.symbols)-1].Params = w.arity(r.params)
	next := scope{
		container: sc.container,
		routineID: sym.ID,
		routineQN: sym.Scope(),
		ordinal:   new(int),
	}
	if r.container != "" {
		next.container = r.container
	}
	if kind == SymbolKindMethod {
		next.self = r.self
	}
	return next
}

func (w *walker) declare(d decl, sc scope) {
	name := w.text(d.name)
	if name == "" || name == "_" || name == sc.self {
		return
	}
	if d.param && sc.routineID == "" {
		return
	}

	var (
		kind      = SymbolKindVariable
		container = sc.container
		local     bool
	)
	switch {
	case d.receiver != "":
		// Attribute assignment: only self.x = v inside a method declares x.
		if sc.self == "" || d.receiver != sc.self {
			return
		}
		kind = SymbolKindField
	case d.field:
		kind = SymbolKindField
	case sc.routineID != "":
		container, local = sc.routineQN, true
	case sc.container != "":
		kind = SymbolKindField
	}

	id := symbolID(w.path, qualify(container, name))
	if w.decls[id] {
		// First declaration wins; later ones read as uses.
		return
	}
	w.decls[id] = true
	w.addSymbol(d.text, name, kind, container, local, d.text)
	if d.label != "" {
		w.symbols[len(w.symbols)-1].Text = d.label
	}
	if d.at != nil {
		w.consume(d.at)
	}
	w.consume(d.name)
}

// addSymbol records a symbol and its DEFINES edge. IDs that collide
// (overloads, a field sharing a method's name) get the start line appended.
func (w *walker) addSymbol(n *tree_sitter.Node, name string, kind SymbolKind, container string, local bool, textNode *tree_sitter.Node) SymbolNode {
	sym := SymbolNode{
		Name:      name,
		Kind:      kind,
		Container: container,
		Local:     local,
		Exported:  !local && w.rules.exported(n, name, w.src),
		FilePath:  w.path,
		StartLine: lineOf(n),
		EndLine:   int(n.EndPosition().Row) + 1,
		Text:      w.text(textNode),
	}
	sym.ID = symbolID(w.path, sym.QualifiedName())
	if w.ids[sym.ID] {
		sym.ID += "@" + strconv.Itoa(sym.StartLine)
	}
	w.ids[sym.ID] = true

	w.symbols = append(w.symbols, sym)
	w.edges = append(w.edges, Edge{
		SourceID: w.path,
		TargetID: sym.ID,
		Kind:     EdgeKindDefines,
	})
	return sym
}

// use records an unresolved CALLS or REFERENCES edge from the current routine.
func (w *walker) use(sc scope, kind EdgeKind, name, receiver, expr string, args int, at *tree_sitter.Node) {
	if name == "" {
		return
	}
	if receiver != "" && receiver == sc.self {
		receiver = SelfReceiver
	}
	*sc.ordinal++
	w.edges = append(w.edges, Edge{
		SourceID: sc.routineID,
		TargetID: name,
		Kind:     kind,
		Expr:     expr,
		Receiver: receiver,
		Line:     lineOf(at),
		Ordinal:  *sc.ordinal,
		Args:     args,
	})
}

// arity counts the entries of a parameter or argument list. It is -1 when
// the list is absent or ends in a variadic parameter.
func (w *walker) arity(list *tree_sitter.Node) int {
	if list == nil {
		return -1
	}
	count := 0
	for i := uint(0); i < list.NamedChildCount(); i++ {
		child := list.NamedChild(i)
		if child == nil {
			continue
		}
		switch kind := child.Kind(); {
		case strings.HasSuffix(kind, "comment"), kind == "receiver_parameter":
		case kind == "spread_parameter":
			return -1
		default:
			count++
		}
	}
	return count
}

func (w *walker) consume(n *tree_sitter.Node) {
	if n != nil {
		w.skip[n.Id()] = true
	}
}

func (w *walker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(w.src)
}

// ---------------------------------------------------------------------------
// Node helpers
// ---------------------------------------------------------------------------

func lineOf(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// childrenOfKind returns the direct children of n whose kind is in kinds.
func childrenOfKind(n *tree_sitter.Node, kinds ...string) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	var out []*tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		for _, k := range kinds {
			if child.Kind() == k {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// hasChildOfKind reports whether n has a direct child of the given kind
// whose text satisfies match (or any text when match is nil).
func hasChildOfKind(n *tree_sitter.Node, kind string, src []byte, match func(string) bool) bool {
	for _, c := range childrenOfKind(n, kind) {
		if match == nil || match(c.Utf8Text(src)) {
			return true
		}
	}
	return false
}

// declText returns the whole declaration statement when it declares a single
// name and the declarator otherwise.
func declText(stmt, declarator *tree_sitter.Node, declarators int) *tree_sitter.Node {
	if declarators == 1 {
		return stmt
	}
	return declarator
}

// parentOf strips the last segment from a qualified name.
func parentOf(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[:i]
		}
	}
	return ""
}
