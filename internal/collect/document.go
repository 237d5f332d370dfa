package collect

import "strings"

const (
	headerPrefix    = "// Method: "
	referencePrefix = "// Reference: "
)

// Entry is the collected context of one routine.
type Entry struct {
	Routine    Routine     `json:"routine"`
	Source     string      `json:"source"`
	References []Reference `json:"references,omitempty"`
	Depth      int         `json:"depth"`
}

// Edge is a resolved call from one collected routine to another.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Document is the ordered result of one collection pass. Each routine
// appears at most once, in first-visit order.
type Document struct {
	Root    Routine `json:"root"`
	Entries []Entry `json:"entries"`
	Edges   []Edge  `json:"edges,omitempty"`
}

// Len returns the number of routine entries.
func (d *Document) Len() int { return len(d.Entries) }

// Routines returns the routine IDs in visit order.
func (d *Document) Routines() []string {
	ids := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		ids[i] = e.Routine.ID
	}
	return ids
}

// Entry returns the entry for id, if collected.
func (d *Document) Entry(id string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Routine.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// String renders the document as the textual context sent to the model.
func (d *Document) String() string {
	var b strings.Builder
	for _, e := range d.Entries {
		e.writeTo(&b)
	}
	return b.String()
}

func (e Entry) writeTo(b *strings.Builder) {
	b.WriteString(headerPrefix)
	b.WriteString(e.Routine.Name)
	b.WriteByte('\n')
	b.WriteString(e.Source)
	b.WriteString("\n\n")
	for _, ref := range e.References {
		b.WriteString(ReferenceLine(ref))
		b.WriteByte('\n')
	}
}

// ReferenceLine formats a single reference occurrence.
func ReferenceLine(ref Reference) string {
	return referencePrefix + ref.Expr + " -> " + strings.TrimSpace(ref.Symbol.Declaration)
}
