package collect

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGraph is an in-memory SymbolGraph keyed by routine ID.
type fakeGraph struct {
	source  map[string]string
	calls   map[string][]string
	refs    map[string][]Reference
	failOn  string
	queried map[string]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		source:  map[string]string{},
		calls:   map[string][]string{},
		refs:    map[string][]Reference{},
		queried: map[string]int{},
	}
}

func (g *fakeGraph) routine(id string) Routine {
	return Routine{ID: id, Name: id, Kind: KindMethod}
}

func (g *fakeGraph) SourceText(_ context.Context, r Routine) (string, error) {
	if r.ID == g.failOn {
		return "", errors.New("boom")
	}
	src, ok := g.source[r.ID]
	if !ok {
		return "", ErrUnresolved
	}
	return src, nil
}

func (g *fakeGraph) Callees(_ context.Context, r Routine) ([]Routine, error) {
	g.queried[r.ID]++
	var out []Routine
	for _, id := range g.calls[r.ID] {
		out = append(out, g.routine(id))
	}
	return out, nil
}

func (g *fakeGraph) References(_ context.Context, r Routine) ([]Reference, error) {
	return g.refs[r.ID], nil
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestCollect_CycleWithReference(t *testing.T) {
	g := newFakeGraph()
	g.source["A"] = "void A() { B(); C(); }"
	g.source["B"] = "void B() { A(); use(f); }"
	g.source["C"] = "void C() {}"
	g.calls["A"] = []string{"B", "C"}
	g.calls["B"] = []string{"A"}
	g.refs["B"] = []Reference{{
		Expr:   "f",
		Symbol: Symbol{ID: "f", Kind: KindField, Declaration: "private int f;"},
	}}

	root := g.routine("A")
	doc, err := New(g).Collect(context.Background(), &root)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, doc.Routines())
	assert.Equal(t, 1, g.queried["A"], "A must be expanded exactly once")

	b, ok := doc.Entry("B")
	require.True(t, ok)
	require.Len(t, b.References, 1)
	assert.Equal(t, "f", b.References[0].Expr)

	text := doc.String()
	assert.Equal(t, 1, strings.Count(text, "// Method: A\n"))
	assert.Contains(t, text, "// Reference: f -> private int f;\n")
	assert.Less(t, strings.Index(text, "// Method: B"), strings.Index(text, "// Method: C"))
}

func TestCollect_RenderedEntryLayout(t *testing.T) {
	g := newFakeGraph()
	g.source["run"] = "void run() { x = 1; }"
	g.refs["run"] = []Reference{
		{Expr: "x", Symbol: Symbol{ID: "x", Kind: KindVariable, Declaration: "int x = 0;\n"}},
		{Expr: "x", Symbol: Symbol{ID: "x", Kind: KindVariable, Declaration: "int x = 0;"}},
	}

	root := g.routine("run")
	doc, err := New(g).Collect(context.Background(), &root)
	require.NoError(t, err)

	want := "// Method: run\n" +
		"void run() { x = 1; }\n\n" +
		"// Reference: x -> int x = 0;\n" +
		"// Reference: x -> int x = 0;\n"
	assert.Equal(t, want, doc.String())
}

func TestCollect_SelfRecursion(t *testing.T) {
	g := newFakeGraph()
	g.source["fact"] = "int fact(int n) { return n * fact(n-1); }"
	g.calls["fact"] = []string{"fact"}

	root := g.routine("fact")
	doc, err := New(g).Collect(context.Background(), &root)
	require.NoError(t, err)
	assert.Equal(t, []string{"fact"}, doc.Routines())
	assert.Equal(t, []Edge{{From: "fact", To: "fact"}}, doc.Edges)
}

func TestCollect_UnresolvedCalleeSkipped(t *testing.T) {
	g := newFakeGraph()
	g.source["A"] = "A"
	g.source["C"] = "C"
	g.calls["A"] = []string{"missing", "C", ""}

	root := g.routine("A")
	doc, err := New(g).Collect(context.Background(), &root)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, doc.Routines())
	assert.Equal(t, []Edge{{From: "A", To: "C"}}, doc.Edges)
}

func TestCollect_MaxDepth(t *testing.T) {
	g := newFakeGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.source[id] = id
	}
	g.calls["a"] = []string{"b"}
	g.calls["b"] = []string{"c"}
	g.calls["c"] = []string{"d"}

	root := g.routine("a")
	doc, err := New(g, WithMaxDepth(2)).Collect(context.Background(), &root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, doc.Routines())

	c, _ := doc.Entry("c")
	assert.Equal(t, 2, c.Depth)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestCollect_Errors(t *testing.T) {
	g := newFakeGraph()
	g.source["blank"] = "   \n\t"
	g.source["A"] = "A"
	g.source["B"] = "B"
	g.calls["A"] = []string{"B"}
	g.failOn = "B"

	tests := []struct {
		name string
		root *Routine
		want error
	}{
		{"nil root", nil, ErrNoTarget},
		{"empty id", &Routine{}, ErrNoTarget},
		{"unknown root", &Routine{ID: "nope"}, ErrNoTarget},
		{"blank source", &Routine{ID: "blank"}, ErrEmptyContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := New(g).Collect(context.Background(), tt.root)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("adapter failure aborts", func(t *testing.T) {
		root := g.routine("A")
		doc, err := New(g).Collect(context.Background(), &root)
		assert.Nil(t, doc)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoTarget)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestCollect_CanceledContext(t *testing.T) {
	g := newFakeGraph()
	g.source["A"] = "A"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := g.routine("A")
	_, err := New(g).Collect(ctx, &root)
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// reachable computes the routines reachable from root independently of the
// collector.
func reachable(g *fakeGraph, root string) map[string]bool {
	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.calls[cur] {
			if _, ok := g.source[next]; !ok || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}

func TestCollect_RandomCyclicGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		g := newFakeGraph()
		n := 1 + rng.Intn(25)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("r%d", i)
			g.source[ids[i]] = "body of " + ids[i]
		}

		for i := 0; i < n*2; i++ {
			from := ids[rng.Intn(n)]
			to := ids[rng.Intn(n)]
			g.calls[from] = append(g.calls[from], to)
		}
		// Plant a cycle of length 1..5 through the root.
		cycleLen := 1 + rng.Intn(5)
		prev := ids[0]
		for i := 1; i < cycleLen; i++ {
			next := ids[rng.Intn(n)]
			g.calls[prev] = append(g.calls[prev], next)
			prev = next
		}
		g.calls[prev] = append(g.calls[prev], ids[0])
		// Some dangling call sites.
		dangling := ids[rng.Intn(n)]
		g.calls[dangling] = append(g.calls[dangling], "ghost")

		root := g.routine(ids[0])
		doc, err := New(g).Collect(context.Background(), &root)
		require.NoError(t, err)

		want := reachable(g, ids[0])
		got := map[string]int{}
		for _, id := range doc.Routines() {
			got[id]++
		}
		assert.Len(t, got, len(want), "iteration %d", iter)
		for id, count := range got {
			assert.Equal(t, 1, count, "iteration %d: %s visited %d times", iter, id, count)
			assert.True(t, want[id], "iteration %d: %s is not reachable", iter, id)
		}
		assert.Equal(t, ids[0], doc.Routines()[0])
	}
}

func TestCollect_ConcurrentRootsIndependent(t *testing.T) {
	g := newFakeGraph()
	g.source["A"] = "A"
	g.source["B"] = "B"
	g.source["C"] = "C"
	g.calls["A"] = []string{"C"}
	g.calls["B"] = []string{"C"}

	c := New(g)
	ra, rb := g.routine("A"), g.routine("B")
	docA, err := c.Collect(context.Background(), &ra)
	require.NoError(t, err)
	docB, err := c.Collect(context.Background(), &rb)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, docA.Routines())
	assert.Equal(t, []string{"B", "C"}, docB.Routines())
}
