//go:build e2e

package e2e

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/lineage/internal/orchestrator"
)

var update = flag.Bool("update", false, "update golden files")

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

// goldenCases name a root routine per fixture project. Each produces a
// context document and a call graph diagram.
var goldenCases = []struct {
	project string
	routine string
	golden  string
}{
	{"java_sales", "SalesJob.run", "java_sales_run"},
	{"py_pricer", "quote", "py_pricer_quote"},
	{"ts_cart", "Cart.total", "ts_cart_total"},
	{"rs_counter", "run", "rs_counter_run"},
	{"go_ledger", "Ledger.Report", "go_ledger_report"},
}

// runGolden analyses the case offline and returns its context document and
// diagram.
func runGolden(t *testing.T, project, routine string) (string, string) {
	t.Helper()
	p := newPipeline(t, orchestrator.Config{Capability: orchestrator.CapOffline}, indexFixture(t, project), nil)
	r, err := p.Analyze(context.Background(), orchestrator.Target{Routine: routine})
	require.NoError(t, err)
	return r.Document.String(), string(r.Diagram) + "\n"
}

// TestGolden compares offline analyses against golden files. If golden files
// do not exist, the test is skipped with a message to run with -update.
func TestGolden(t *testing.T) {
	for _, gc := range goldenCases {
		t.Run(gc.golden, func(t *testing.T) {
			contextPath := filepath.Join(goldenDir(), gc.golden+".context.txt")
			diagramPath := filepath.Join(goldenDir(), gc.golden+".mmd")

			wantContext, err := os.ReadFile(contextPath)
			if os.IsNotExist(err) {
				t.Skipf("golden file %s not found; run with -update to generate", contextPath)
				return
			}
			require.NoError(t, err)
			wantDiagram, err := os.ReadFile(diagramPath)
			require.NoError(t, err)

			gotContext, gotDiagram := runGolden(t, gc.project, gc.routine)
			assert.Equal(t, string(wantContext), gotContext, "context for %s does not match golden file", gc.routine)
			assert.Equal(t, string(wantDiagram), gotDiagram, "diagram for %s does not match golden file", gc.routine)
		})
	}
}

// TestUpdateGolden regenerates golden files from the current output.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}

	require.NoError(t, os.MkdirAll(goldenDir(), 0o755))

	for _, gc := range goldenCases {
		gotContext, gotDiagram := runGolden(t, gc.project, gc.routine)
		require.NoError(t, os.WriteFile(filepath.Join(goldenDir(), gc.golden+".context.txt"), []byte(gotContext), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(goldenDir(), gc.golden+".mmd"), []byte(gotDiagram), 0o644))
		t.Logf("updated %s", gc.golden)
	}
}
