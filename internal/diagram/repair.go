package diagram

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnrepairable is returned for empty or whitespace-only input.
var ErrUnrepairable = errors.New("diagram: nothing to repair")

// DefaultDeclaration is prepended when the input has no direction line.
const DefaultDeclaration = "graph TD"

const indent = "    "

// Repaired is diagram source that satisfies the structural rules below.
type Repaired string

// rule rewrites one trimmed content line. Every rule is idempotent.
type rule struct {
	name  string
	apply func(string) string
}

// rules run in this order on every content line.
var rules = []rule{
	{"inline-condition-edge", rewriteInlineConditions},
	{"label-inner-quotes", normalizeLabelQuotes},
	{"label-quoting", quoteLabels},
}

var declarationKeywords = []string{"graph", "flowchart"}

func isDeclaration(line string) bool {
	for _, kw := range declarationKeywords {
		rest, ok := strings.CutPrefix(line, kw)
		if !ok {
			continue
		}
		// The keyword must stand alone: graphData[...] is a node.
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == ';' {
			return true
		}
	}
	return false
}

// Repair normalises b into parseable flowchart source:
//   - a direction declaration heads the output, prepended if missing;
//   - content lines are trimmed, re-indented and blank lines dropped;
//   - each content line is passed through the rule pipeline.
//
// Repair(Repair(x)) == Repair(x).
func Repair(b Block) (Repaired, error) {
	var lines []string
	for _, raw := range strings.Split(string(b), "\n") {
		if l := strings.TrimSpace(raw); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return "", ErrUnrepairable
	}

	out := make([]string, 0, len(lines)+1)
	if isDeclaration(lines[0]) {
		out = append(out, lines[0])
		lines = lines[1:]
	} else {
		out = append(out, DefaultDeclaration)
	}

	for _, l := range lines {
		for _, r := range rules {
			l = r.apply(l)
		}
		out = append(out, indent+l)
	}
	return Repaired(strings.Join(out, "\n")), nil
}

// ExtractAndRepair pulls the first mermaid block out of text and repairs it.
func ExtractAndRepair(text string) (Repaired, error) {
	b, err := ExtractMermaid(text)
	if err != nil {
		return "", err
	}
	return Repair(b)
}

// inlineCondition matches `A -- cond --> B`. The leading group keeps the
// `--` from continuing another arrow or edge label. The condition may not
// start with an arrow head, nor contain pipes, dashes or brackets.
var inlineCondition = regexp.MustCompile(`(^|[^-<|])--\s*([^\s\-|>\[\]{}][^|\-\[\]{}]*?)\s*-->`)

// rewriteInlineConditions turns `A -- cond --> B` into `A -->|cond| B`.
// A rewrite can expose a new match, so it runs to a fixpoint; every pass
// removes two dashes.
func rewriteInlineConditions(line string) string {
	for {
		next := inlineCondition.ReplaceAllString(line, "${1}-->|${2}|")
		if next == line {
			return line
		}
		line = next
	}
}

// normalizeLabelQuotes turns double quotes nested in a node label into
// single quotes. A label that is already wholly quoted keeps its outer
// quotes.
func normalizeLabelQuotes(line string) string {
	return rewriteLabels(line, func(label string) string {
		if isWhollyQuoted(label) {
			return `"` + strings.ReplaceAll(label[1:len(label)-1], `"`, `'`) + `"`
		}
		return strings.ReplaceAll(label, `"`, `'`)
	})
}

// quoteLabels wraps unquoted `id[label]` and `id{label}` labels in quotes.
func quoteLabels(line string) string {
	return rewriteLabels(line, func(label string) string {
		if isWhollyQuoted(label) {
			return label
		}
		return `"` + label + `"`
	})
}

func isWhollyQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// rewriteLabels calls fn for the text of every `id[...]` and `id{...}`
// label on the line. Nested shapes such as `[[sub]]`, `[(db)]` and
// `{{hex}}` and empty labels are left alone.
func rewriteLabels(line string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(line) + 8)

	i := 0
	for i < len(line) {
		c := line[i]
		if (c == '[' || c == '{') && i > 0 && isIDByte(line[i-1]) {
			closer := byte(']')
			if c == '{' {
				closer = '}'
			}
			end := labelEnd(line, i+1, closer)
			if end < 0 {
				b.WriteString(line[i:])
				break
			}
			label := line[i+1 : end]
			b.WriteByte(c)
			if label == "" || strings.IndexByte("[({/\\", label[0]) >= 0 {
				b.WriteString(label)
			} else {
				b.WriteString(fn(label))
			}
			b.WriteByte(closer)
			i = end + 1
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// labelEnd returns the index of the byte closing a label that starts at
// start, or -1. A quoted label may contain the closer.
func labelEnd(line string, start int, closer byte) int {
	if start < len(line) && line[start] == '"' {
		if q := strings.IndexByte(line[start+1:], '"'); q >= 0 {
			after := start + 1 + q + 1
			if after < len(line) && line[after] == closer {
				return after
			}
		}
	}
	if j := strings.IndexByte(line[start:], closer); j >= 0 {
		return start + j
	}
	return -1
}

func isIDByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
