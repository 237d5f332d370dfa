package diagram

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/lineage/internal/collect"
)

// RenderCallGraph produces a graph TD diagram of the routines in doc and
// the calls between them. Nodes appear in visit order; the root is styled.
// The output is already in repaired form.
func RenderCallGraph(doc *collect.Document) Repaired {
	nodeIDs := make(map[string]string, len(doc.Entries))
	getID := func(routineID string) string {
		if id, ok := nodeIDs[routineID]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", len(nodeIDs))
		nodeIDs[routineID] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString(DefaultDeclaration)

	for _, e := range doc.Entries {
		label := e.Routine.Name
		if label == "" {
			label = e.Routine.ID
		}
		fmt.Fprintf(&sb, "\n%s%s[\"%s\"]", indent, getID(e.Routine.ID), escapeLabel(label))
	}

	seen := make(map[collect.Edge]bool, len(doc.Edges))
	for _, edge := range doc.Edges {
		if seen[edge] {
			continue
		}
		seen[edge] = true
		fmt.Fprintf(&sb, "\n%s%s --> %s", indent, getID(edge.From), getID(edge.To))
	}

	if len(doc.Entries) > 0 {
		fmt.Fprintf(&sb, "\n%sstyle %s stroke-width:3px", indent, getID(doc.Entries[0].Routine.ID))
	}
	return Repaired(sb.String())
}

// escapeLabel keeps a label inside one quoted token.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, `'`)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
