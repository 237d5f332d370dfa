package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/lineage/internal/collect"
)

func TestStoreAdapter_CollectJava(t *testing.T) {
	s, _ := indexFixture(t, "java_sales")
	a := NewStoreAdapter(s)
	ctx := context.Background()

	root, err := a.Lookup(ctx, "SalesJob.run")
	require.NoError(t, err)
	assert.Equal(t, collect.KindMethod, root.Kind)

	doc, err := collect.New(a, collect.WithLogger(discardLogger())).Collect(ctx, root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		salesJob + ":SalesJob.run",
		salesJob + ":SalesJob.load",
		salesJob + ":SalesJob.enrich",
		cleaner + ":Cleaner.clean",
		salesJob + ":SalesJob.retry",
	}, doc.Routines())

	// retry -> enrich closes the cycle without revisiting enrich.
	assert.Contains(t, doc.Edges, collect.Edge{From: salesJob + ":SalesJob.retry", To: salesJob + ":SalesJob.enrich"})

	load, ok := doc.Entry(salesJob + ":SalesJob.load")
	require.True(t, ok)
	assert.Equal(t, 1, load.Depth)
	require.Len(t, load.References, 2)
	assert.Equal(t, "spark", load.References[0].Expr)
	assert.Equal(t, collect.KindField, load.References[0].Symbol.Kind)
	assert.Equal(t, "private final SparkSession spark;", load.References[0].Symbol.Declaration)

	text := doc.String()
	assert.Contains(t, text, "// Method: load\n")
	assert.Contains(t, text, "// Reference: SOURCE -> private static final String SOURCE = \"s3://raw/sales\";")
}

func TestStoreAdapter_LocalReferences(t *testing.T) {
	s, _ := indexFixture(t, "java_sales")
	a := NewStoreAdapter(s)

	refs, err := a.References(context.Background(), collect.Routine{ID: salesJob + ":SalesJob.run"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "raw", refs[0].Expr)
	assert.Equal(t, collect.KindVariable, refs[0].Symbol.Kind)
	assert.Equal(t, "Dataset<Row> raw = load();", refs[0].Symbol.Declaration)
}

func TestStoreAdapter_CalleesAreDistinct(t *testing.T) {
	s := NewMemStore()
	seedStore(t, s)
	ctx := context.Background()
	require.NoError(t, s.AddEdge(ctx, Edge{
		SourceID: "src/Job.java:Job.run", TargetID: "src/Job.java:Job.load", Kind: EdgeKindCalls, Ordinal: 9,
	}))

	callees, err := NewStoreAdapter(s).Callees(ctx, collect.Routine{ID: "src/Job.java:Job.run"})
	require.NoError(t, err)
	require.Len(t, callees, 2)
	assert.Equal(t, "load", callees[0].Name)
	assert.Equal(t, "enrich", callees[1].Name)
}

func TestStoreAdapter_SourceTextUnresolved(t *testing.T) {
	s := NewMemStore()
	seedStore(t, s)
	a := NewStoreAdapter(s)
	ctx := context.Background()

	_, err := a.SourceText(ctx, collect.Routine{ID: "src/Job.java:Job.missing"})
	require.ErrorIs(t, err, collect.ErrUnresolved)

	// Fields are not routines.
	_, err = a.SourceText(ctx, collect.Routine{ID: "src/Job.java:Job.source"})
	require.ErrorIs(t, err, collect.ErrUnresolved)

	src, err := a.SourceText(ctx, collect.Routine{ID: "src/Job.java:Job.load"})
	require.NoError(t, err)
	assert.Equal(t, "Dataset load() { ... }", src)
}

func TestStoreAdapter_RoutineAt(t *testing.T) {
	s, _ := indexFixture(t, "java_sales")
	a := NewStoreAdapter(s)
	ctx := context.Background()

	r, err := a.RoutineAt(ctx, salesJob, 29)
	require.NoError(t, err)
	assert.Equal(t, salesJob+":SalesJob.enrich", r.ID)

	_, err = a.RoutineAt(ctx, salesJob, 8)
	require.ErrorIs(t, err, collect.ErrNoTarget)
}

func TestStoreAdapter_Lookup(t *testing.T) {
	s, _ := indexFixture(t, "go_ledger")
	a := NewStoreAdapter(s)
	ctx := context.Background()

	byID, err := a.Lookup(ctx, "ledger.go:Ledger.Filter")
	require.NoError(t, err)
	assert.Equal(t, "Filter", byID.Name)

	byQualified, err := a.Lookup(ctx, "Ledger.Report")
	require.NoError(t, err)
	assert.Equal(t, "ledger.go:Ledger.Report", byQualified.ID)

	byName, err := a.Lookup(ctx, "Odd")
	require.NoError(t, err)
	assert.Equal(t, "parity.go:Odd", byName.ID)
	assert.Equal(t, collect.KindFunction, byName.Kind)

	_, err = a.Lookup(ctx, "Nope")
	require.ErrorIs(t, err, collect.ErrNoTarget)

	// A field is not a routine.
	_, err = a.Lookup(ctx, "threshold")
	require.ErrorIs(t, err, collect.ErrNoTarget)
}

func TestStoreAdapter_LookupAmbiguous(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	for _, f := range []string{"a.go", "b.go"} {
		require.NoError(t, s.AddSymbol(ctx, SymbolNode{
			ID: f + ":run", Name: "run", Kind: SymbolKindFunction, FilePath: f, StartLine: 1, EndLine: 3,
		}))
	}

	_, err := NewStoreAdapter(s).Lookup(ctx, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
	assert.NotErrorIs(t, err, collect.ErrNoTarget)
}
