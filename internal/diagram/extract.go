// Package diagram locates fenced diagram blocks in model output and
// normalises Mermaid flowchart source so that it parses.
package diagram

import (
	"errors"
	"regexp"
	"strings"
	"sync"
)

// Kinds of fenced block the pipeline looks for.
const (
	KindMermaid = "mermaid"
	KindJava    = "java"
)

// ErrNotFound is returned when no fenced block of the requested kind exists
// and the caller asked for absence to be reported.
var ErrNotFound = errors.New("diagram: fenced block not found")

// Policy decides what Extract does when no matching block exists.
type Policy int

const (
	// ReportAbsence returns ErrNotFound.
	ReportAbsence Policy = iota
	// WholeInput returns the entire input, trimmed.
	WholeInput
)

// Block is raw text lifted out of a fenced block. It may be malformed.
type Block string

var (
	fenceMu    sync.Mutex
	fenceCache = map[string]*regexp.Regexp{}
)

// infoString matches what may follow the tag on an opening fence without
// being block content: a bare word, a {...} attribute list or key=value pairs.
var infoString = regexp.MustCompile(`^(?:[\w.+-]+|\{[^}]*\}|[\w-]+=(?:"[^"]*"|\S+)(?:\s+[\w-]+=(?:"[^"]*"|\S+))*)$`)

// fencePattern matches an opening fence tagged kind (case-insensitive) with
// the rest of its line, the interior, and the next closing fence.
func fencePattern(kind string) *regexp.Regexp {
	kind = strings.ToLower(kind)
	fenceMu.Lock()
	defer fenceMu.Unlock()
	if re, ok := fenceCache[kind]; ok {
		return re
	}
	re := regexp.MustCompile("(?is)```[ \\t]*" + regexp.QuoteMeta(kind) + "(?:[ \\t]+([^\\n]*))?\\r?\\n(.*?)```")
	fenceCache[kind] = re
	return re
}

// Extract returns the trimmed interior of the first fenced block tagged
// kind. Text after the tag on the opening line belongs to the block unless
// it reads as an info string. When there is no block, policy selects
// between ErrNotFound and the trimmed input.
func Extract(text, kind string, policy Policy) (Block, error) {
	if m := fencePattern(kind).FindStringSubmatch(text); m != nil {
		body := m[2]
		if head := strings.TrimSpace(m[1]); head != "" && !infoString.MatchString(head) {
			body = head + "\n" + body
		}
		return Block(strings.TrimSpace(body)), nil
	}
	if policy == WholeInput {
		return Block(strings.TrimSpace(text)), nil
	}
	return "", ErrNotFound
}

// ExtractMermaid returns the first mermaid block or ErrNotFound.
func ExtractMermaid(text string) (Block, error) {
	return Extract(text, KindMermaid, ReportAbsence)
}

// ExtractCode returns the first block tagged lang, falling back to the
// whole response when the model answered without a fence.
func ExtractCode(text, lang string) string {
	b, _ := Extract(text, lang, WholeInput)
	return string(b)
}
