package main

import (
	"path/filepath"
	"strings"

	"github.com/dusk-indust/lineage/internal/orchestrator"
	"github.com/dusk-indust/lineage/internal/testfile"
)

// sourceFile returns the project-relative file of the analysed routine.
// Routine IDs start with their file.
func sourceFile(t orchestrator.Target, r *orchestrator.TestReport) string {
	if t.File != "" {
		return t.File
	}
	file, _, _ := strings.Cut(r.Root.ID, ":")
	return file
}

// writeTests stores the generated tests next to the source's package in
// the test tree. The class name and package come from the generated code
// when it declares them.
func writeTests(project string, t orchestrator.Target, r *orchestrator.TestReport, mode testfile.Mode) (string, error) {
	src := filepath.Join(project, filepath.FromSlash(sourceFile(t, r)))
	class := testfile.ClassOf(r.Code)
	if class == "" {
		class = testfile.DefaultClass(src)
	}
	return testfile.Write(src, testfile.PackageOf(r.Code), class, r.Code, mode)
}
