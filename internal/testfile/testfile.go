// Package testfile writes generated unit tests into a project's test
// source tree.
package testfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Mode selects what Write does when the test file already exists.
type Mode int

const (
	// Overwrite replaces the existing file.
	Overwrite Mode = iota
	// Suffix writes <Class>1, <Class>2, ... using the first free name and
	// renames the class declaration to match.
	Suffix
	// Fail returns ErrExists.
	Fail
)

func (m Mode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Suffix:
		return "suffix"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Overwrite, Suffix, Fail} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Overwrite, fmt.Errorf("testfile: unknown mode %q (want overwrite, suffix or fail)", s)
}

// ErrExists is returned in Fail mode when the target file exists.
var ErrExists = errors.New("testfile: test file already exists")

const (
	mainRoot = "src/main/java"
	testRoot = "src/test/java"
	ext      = ".java"
)

// Dir returns the directory a test for sourcePath belongs in. Under a
// Maven layout that is src/test/java plus the package path; otherwise it
// is the source's own directory.
func Dir(sourcePath, pkg string) string {
	slashed := filepath.ToSlash(sourcePath)
	i := strings.Index(slashed, mainRoot)
	if i < 0 {
		return filepath.Dir(sourcePath)
	}
	dir := slashed[:i] + testRoot
	if pkg != "" {
		dir += "/" + strings.ReplaceAll(pkg, ".", "/")
	} else {
		// No package: mirror the source's location below src/main/java.
		rest := filepath.ToSlash(filepath.Dir(slashed[i+len(mainRoot):]))
		if rest != "/" && rest != "." {
			dir += rest
		}
	}
	return filepath.FromSlash(dir)
}

// Write stores content as <class>.java in Dir(sourcePath, pkg), creating
// directories as needed, and returns the path written.
func Write(sourcePath, pkg, class, content string, mode Mode) (string, error) {
	if class == "" {
		return "", errors.New("testfile: empty class name")
	}
	dir := Dir(sourcePath, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("testfile: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, class+ext)
	if exists(path) {
		switch mode {
		case Fail:
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		case Suffix:
			name := nextFree(dir, class)
			content = renameClass(content, class, name)
			path = filepath.Join(dir, name+ext)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("testfile: write %s: %w", path, err)
	}
	return path, nil
}

func nextFree(dir, class string) string {
	for n := 1; ; n++ {
		name := class + strconv.Itoa(n)
		if !exists(filepath.Join(dir, name+ext)) {
			return name
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func renameClass(content, from, to string) string {
	re := regexp.MustCompile(`\bclass\s+` + regexp.QuoteMeta(from) + `\b`)
	done := false
	return re.ReplaceAllStringFunc(content, func(m string) string {
		if done {
			return m
		}
		done = true
		return "class " + to
	})
}

var (
	packageDecl = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)
	classDecl   = regexp.MustCompile(`\bclass\s+(\w+)`)
)

// PackageOf returns the package declared in Java source, or "".
func PackageOf(src string) string {
	if m := packageDecl.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

// ClassOf returns the first class declared in Java source, or "".
func ClassOf(src string) string {
	if m := classDecl.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

// DefaultClass is the test class name for sourcePath: its base name plus
// "Test".
func DefaultClass(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "Test"
}
