package graph

import (
	"path/filepath"
	"strings"
)

// Resolver rewrites the raw names on CALLS and REFERENCES edges (as written
// at the use site) into symbol IDs. It is built once per index run from
// every symbol the parser produced, so calls may cross files.
//
// Calls resolve by the caller's container, then a container named like the
// receiver, then the caller's file, then a unique name across the
// repository. Uses resolve by walking out from the routine through its
// enclosing containers (locals, then fields, then file or package level
// variables), then a unique non-local name. Anything else is dropped.
type Resolver struct {
	byID        map[string]*SymbolNode
	members     map[string]map[string][]*SymbolNode // container -> name -> symbols
	byName      map[string][]*SymbolNode
	byLastLabel map[string][]string // last container segment -> containers
}

// NewResolver indexes symbols for resolution.
func NewResolver(symbols []SymbolNode) *Resolver {
	r := &Resolver{
		byID:        make(map[string]*SymbolNode, len(symbols)),
		members:     make(map[string]map[string][]*SymbolNode),
		byName:      make(map[string][]*SymbolNode),
		byLastLabel: make(map[string][]string),
	}
	for i := range symbols {
		s := &symbols[i]
		r.byID[s.ID] = s
		if s.Kind == SymbolKindType {
			continue
		}
		m, ok := r.members[s.Container]
		if !ok {
			m = make(map[string][]*SymbolNode)
			r.members[s.Container] = m
			if s.Container != "" {
				last := s.Container[strings.LastIndexByte(s.Container, '.')+1:]
				r.byLastLabel[last] = append(r.byLastLabel[last], s.Container)
			}
		}
		m[s.Name] = append(m[s.Name], s)
		r.byName[s.Name] = append(r.byName[s.Name], s)
	}
	return r
}

// ResolveEdge resolves a single CALLS or REFERENCES edge. Other edges pass
// through unchanged. It returns false when the target cannot be found.
func (r *Resolver) ResolveEdge(edge Edge) (Edge, bool) {
	var target *SymbolNode
	switch edge.Kind {
	case EdgeKindCalls:
		target = r.resolveCall(edge)
	case EdgeKindReferences:
		target = r.resolveUse(edge)
	default:
		return edge, true
	}
	if target == nil {
		return edge, false
	}
	edge.TargetID = target.ID
	return edge, true
}

// ResolveAll resolves a slice of edges, dropping unresolvable ones.
func (r *Resolver) ResolveAll(edges []Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if resolved, ok := r.ResolveEdge(e); ok {
			out = append(out, resolved)
		}
	}
	return out
}

func (r *Resolver) resolveCall(e Edge) *SymbolNode {
	caller, ok := r.byID[e.SourceID]
	if !ok {
		return nil
	}
	lang := languageOf(caller.FilePath)
	routines := func(s *SymbolNode) bool { return s.Kind.IsRoutine() && languageOf(s.FilePath) == lang }

	// Overloads are told apart by argument count; a call whose count fits
	// no candidate still resolves by name.
	if e.Args >= 0 {
		fits := func(s *SymbolNode) bool { return routines(s) && (s.Params < 0 || s.Params == e.Args) }
		if s := r.lookupCall(e, caller, fits); s != nil {
			return s
		}
	}
	return r.lookupCall(e, caller, routines)
}

func (r *Resolver) lookupCall(e Edge, caller *SymbolNode, keep func(*SymbolNode) bool) *SymbolNode {
	name := e.TargetID
	if e.Receiver == "" || e.Receiver == SelfReceiver {
		for c := caller.Container; ; c = parentOf(c) {
			if s := pick(r.members[c][name], caller.FilePath, keep); s != nil {
				return s
			}
			if c == "" {
				break
			}
		}
	} else if s := r.inNamedContainer(e.Receiver, name, caller.FilePath, keep); s != nil {
		return s
	}

	if s := pickSameFile(r.byName[name], caller.FilePath, keep); s != nil {
		return s
	}
	return pickUnique(r.byName[name], caller.FilePath, keep)
}

func (r *Resolver) resolveUse(e Edge) *SymbolNode {
	caller, ok := r.byID[e.SourceID]
	if !ok {
		return nil
	}
	name := e.TargetID
	lang := languageOf(caller.FilePath)
	values := func(s *SymbolNode) bool { return !s.Kind.IsRoutine() && languageOf(s.FilePath) == lang }

	if e.Receiver == "" || e.Receiver == SelfReceiver {
		// Locals live in the routine's own container and fields in the
		// enclosing ones. this.x skips the locals.
		start := caller.Scope()
		if e.Receiver == SelfReceiver {
			start = caller.Container
		}
		for c := start; ; c = parentOf(c) {
			if s := pick(r.members[c][name], caller.FilePath, values); s != nil {
				return s
			}
			if c == "" {
				break
			}
		}
	} else if s := r.inNamedContainer(e.Receiver, name, caller.FilePath, values); s != nil {
		return s
	}

	return pickUnique(r.byName[name], caller.FilePath, func(s *SymbolNode) bool {
		return values(s) && !s.Local
	})
}

// inNamedContainer handles static-style uses like Util.helper() or
// Config::MAX where the receiver names a container.
func (r *Resolver) inNamedContainer(receiver, name, file string, keep func(*SymbolNode) bool) *SymbolNode {
	label := receiver
	if i := strings.LastIndexAny(label, ".:"); i >= 0 {
		label = label[i+1:]
	}
	for _, c := range r.byLastLabel[label] {
		if s := pick(r.members[c][name], file, keep); s != nil {
			return s
		}
	}
	return nil
}

// pick chooses among candidates sharing a container: same file first, then
// same directory, then the only one left.
func pick(cands []*SymbolNode, file string, keep func(*SymbolNode) bool) *SymbolNode {
	if s := pickSameFile(cands, file, keep); s != nil {
		return s
	}
	return pickUnique(cands, file, keep)
}

func pickSameFile(cands []*SymbolNode, file string, keep func(*SymbolNode) bool) *SymbolNode {
	for _, s := range cands {
		if s.FilePath == file && keep(s) {
			return s
		}
	}
	return nil
}

// pickUnique returns the single kept candidate, preferring one in the same
// directory when several exist.
func pickUnique(cands []*SymbolNode, file string, keep func(*SymbolNode) bool) *SymbolNode {
	var kept []*SymbolNode
	for _, s := range cands {
		if keep(s) {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}

	dir := filepath.Dir(file)
	var same *SymbolNode
	for _, s := range kept {
		if filepath.Dir(s.FilePath) != dir {
			continue
		}
		if same != nil {
			return nil
		}
		same = s
	}
	return same
}

func languageOf(path string) Language {
	lang, _ := LanguageForPath(path)
	return lang
}
