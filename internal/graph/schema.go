package graph

import "strings"

// --- Enums ---

// SymbolKind classifies symbols within the code graph.
type SymbolKind string

const (
	SymbolKindFunction SymbolKind = "function"
	SymbolKindMethod   SymbolKind = "method"
	SymbolKindField    SymbolKind = "field"
	SymbolKindVariable SymbolKind = "variable"
	SymbolKindType     SymbolKind = "type"
)

// IsRoutine reports whether symbols of this kind can be called.
func (k SymbolKind) IsRoutine() bool {
	return k == SymbolKindFunction || k == SymbolKindMethod
}

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	// EdgeKindDefines links a file to a symbol declared in it.
	EdgeKindDefines EdgeKind = "DEFINES"
	// EdgeKindCalls links a routine to a routine it calls.
	EdgeKindCalls EdgeKind = "CALLS"
	// EdgeKindReferences links a routine to a field or variable it uses.
	EdgeKindReferences EdgeKind = "REFERENCES"
)

// Language identifies a programming language for parsing.
type Language string

const (
	LangGo         Language = "go"
	LangJava       Language = "java"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
)

// SupportedLanguages lists every language with an extractor.
var SupportedLanguages = []Language{LangJava, LangGo, LangTypeScript, LangPython, LangRust}

// extToLanguage maps file extensions to the language used to parse them.
var extToLanguage = map[string]Language{
	".java": LangJava,
	".go":   LangGo,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".py":   LangPython,
	".rs":   LangRust,
}

// LanguageForPath returns the language for a file name, if any.
func LanguageForPath(path string) (Language, bool) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", false
	}
	lang, ok := extToLanguage[strings.ToLower(path[i:])]
	return lang, ok
}

// --- Models ---

// FileNode represents a source file in the code graph.
type FileNode struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	LOC      int      `json:"loc"`
}

// SymbolNode is a routine, field, variable or type.
//
// Container is the qualified name of the enclosing class, struct, impl or,
// for locals and parameters, routine. Text is the full source of a routine
// or the declaration of a field or variable.
type SymbolNode struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Container string     `json:"container,omitempty"`
	Local     bool       `json:"local,omitempty"`
	Exported  bool       `json:"exported"`
	FilePath  string     `json:"filePath"`
	StartLine int        `json:"startLine"`
	EndLine   int        `json:"endLine"`
	Text      string     `json:"text,omitempty"`
	// Params is a routine's parameter count, or -1 when it is variadic or
	// its grammar does not overload by arity. Only the resolver reads it.
	Params int `json:"params,omitempty"`
}

// QualifiedName is Container.Name, or Name at top level.
func (s SymbolNode) QualifiedName() string {
	return qualify(s.Container, s.Name)
}

// Scope is the name the symbol's own locals are declared under. It matches
// QualifiedName except for overloads, whose IDs carry a line suffix.
func (s SymbolNode) Scope() string {
	return strings.TrimPrefix(s.ID, s.FilePath+":")
}

// Encloses reports whether line falls inside the symbol.
func (s SymbolNode) Encloses(line int) bool {
	return s.StartLine <= line && line <= s.EndLine
}

// SelfReceiver marks a use selected from the method's own receiver
// (this.x, self.x, or a Go receiver variable).
const SelfReceiver = "self"

// Edge represents a relationship between two nodes.
//
// Before resolution the TargetID of CALLS and REFERENCES edges is the bare
// name written at the use site; Receiver holds what it was selected from.
// Ordinal orders a routine's edges as they appear in source.
type Edge struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
	Expr     string   `json:"expr,omitempty"`
	Receiver string   `json:"receiver,omitempty"`
	Line     int      `json:"line,omitempty"`
	Ordinal  int      `json:"ordinal"`
	// Args is the argument count of a call, or -1 when unknown.
	Args int `json:"args,omitempty"`
}

// GraphStats summarizes a code intelligence graph.
type GraphStats struct {
	FileCount    int `json:"fileCount"`
	SymbolCount  int `json:"symbolCount"`
	RoutineCount int `json:"routineCount"`
	EdgeCount    int `json:"edgeCount"`
}

// DependencyChain is an ordered sequence of nodes forming a call path.
type DependencyChain struct {
	Nodes []string `json:"nodes"` // node IDs in order
	Depth int      `json:"depth"`
}

// symbolID produces the identifier for a symbol: "filePath:Qualified.Name".
func symbolID(filePath, qualified string) string {
	return filePath + ":" + qualified
}

func qualify(container, name string) string {
	if container == "" {
		return name
	}
	return container + "." + name
}
