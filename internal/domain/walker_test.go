package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "rads.dev/pkg/rads/internal/model"
)

func regID(name, version string) m.PackageID {
	return m.PackageID{Name: name, Version: version, Source: m.Source{Kind: m.SourceRegistry, URL: "https://github.com/rust-lang/crates.io-index"}}
}

func newTestGraph(root m.PackageID, edges ...m.Edge) *m.Graph {
	g := m.NewGraph(root)
	g.AddPackage(&m.Package{ID: root})

	for _, e := range edges {
		g.AddPackage(&m.Package{ID: e.From})
		g.AddPackage(&m.Package{ID: e.To})
		g.AddEdge(e)
	}

	return g
}

func edge(from, to m.PackageID, kind m.DependencyKind) m.Edge {
	return m.Edge{From: from, To: to, Kind: kind}
}

func names(nodes []*m.DisplayNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID.Name)
	}

	return out
}

var (
	pkgA = regID("a", "1.0.0")
	pkgB = regID("b", "1.0.0")
	pkgC = regID("c", "1.0.0")
	pkgD = regID("d", "1.0.0")
	pkgE = regID("e", "1.0.0")
)

func diamond() *m.Graph {
	return newTestGraph(pkgA,
		edge(pkgA, pkgC, m.KindNormal),
		edge(pkgA, pkgB, m.KindNormal),
		edge(pkgB, pkgD, m.KindNormal),
		edge(pkgC, pkgD, m.KindNormal),
		edge(pkgD, pkgE, m.KindNormal),
	)
}

func TestWalker_Render_DiamondTruncatesSecondOccurrence(t *testing.T) {
	tree, err := NewWalker().Render(diamond(), pkgA, WalkOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"b", "c"}, names(tree.Children))

	underB := tree.Children[0].Children
	require.Len(t, underB, 1)
	assert.Equal(t, "d", underB[0].ID.Name)
	assert.False(t, underB[0].Truncated)
	assert.Equal(t, []string{"e"}, names(underB[0].Children))

	underC := tree.Children[1].Children
	require.Len(t, underC, 1)
	assert.Equal(t, "d", underC[0].ID.Name)
	assert.True(t, underC[0].Truncated)
	assert.Empty(t, underC[0].Children)
	assert.Equal(t, 2, underC[0].Depth)
}

func TestWalker_Render_AllExpandsRepeats(t *testing.T) {
	tree, err := NewWalker().Render(diamond(), pkgA, WalkOptions{All: true})
	require.NoError(t, err)

	underC := tree.Children[1].Children
	require.Len(t, underC, 1)
	assert.False(t, underC[0].Truncated)
	assert.Equal(t, []string{"e"}, names(underC[0].Children))
	assert.Equal(t, 7, tree.Count())
}

func TestWalker_Render_Deterministic(t *testing.T) {
	w := NewWalker()

	first, err := w.Render(diamond(), pkgA, WalkOptions{})
	require.NoError(t, err)

	second, err := w.Render(diamond(), pkgA, WalkOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWalker_Render_CycleIsTruncated(t *testing.T) {
	g := newTestGraph(pkgA,
		edge(pkgA, pkgB, m.KindNormal),
		edge(pkgB, pkgA, m.KindNormal),
		edge(pkgB, pkgB, m.KindNormal),
	)

	for _, all := range []bool{false, true} {
		tree, err := NewWalker().Render(g, pkgA, WalkOptions{All: all})
		require.NoError(t, err)

		require.Equal(t, []string{"b"}, names(tree.Children))

		b := tree.Children[0]
		require.Equal(t, []string{"a", "b"}, names(b.Children))
		assert.True(t, b.Children[0].Truncated)
		assert.True(t, b.Children[1].Truncated)
	}
}

func TestWalker_Render_DuplicateEdgesCollapse(t *testing.T) {
	g := newTestGraph(pkgA,
		edge(pkgA, pkgB, m.KindNormal),
		edge(pkgA, pkgB, m.KindBuild),
		edge(pkgA, pkgB, m.KindNormal),
		edge(pkgA, pkgC, m.KindDevelopment),
	)

	tree, err := NewWalker().Render(g, pkgA, WalkOptions{Kinds: m.KindSetAll})
	require.NoError(t, err)

	require.Equal(t, []string{"b", "c"}, names(tree.Children))
	assert.Equal(t, m.KindSetNormal|m.KindSetBuild, tree.Children[0].Kinds)
	assert.Equal(t, "normal,build", tree.Children[0].KindNames)
	assert.Equal(t, m.KindSetDev, tree.Children[1].Kinds)

	normalOnly, err := NewWalker().Render(g, pkgA, WalkOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"b"}, names(normalOnly.Children))
	assert.Equal(t, m.KindSetNormal, normalOnly.Children[0].Kinds)
	assert.Empty(t, normalOnly.Children[0].KindNames)
}

func TestWalker_Render_Invert(t *testing.T) {
	tree, err := NewWalker().Render(diamond(), pkgD, WalkOptions{Invert: true})
	require.NoError(t, err)

	require.Equal(t, []string{"b", "c"}, names(tree.Children))
	assert.Equal(t, []string{"a"}, names(tree.Children[0].Children))
	assert.True(t, tree.Children[1].Children[0].Truncated)
}

func TestWalker_Render_SortsByNameThenVersion(t *testing.T) {
	old := regID("foo", "1.9.0")
	newer := regID("foo", "1.10.0")
	local := m.PackageID{Name: "foo", Version: "1.9.0", Source: m.Source{Kind: m.SourcePath, URL: "/src/foo"}}
	bar := regID("bar", "2.0.0")

	g := newTestGraph(pkgA,
		edge(pkgA, newer, m.KindNormal),
		edge(pkgA, old, m.KindNormal),
		edge(pkgA, local, m.KindNormal),
		edge(pkgA, bar, m.KindNormal),
	)

	tree, err := NewWalker().Render(g, pkgA, WalkOptions{})
	require.NoError(t, err)

	got := make([]m.PackageID, 0, len(tree.Children))
	for _, c := range tree.Children {
		got = append(got, c.ID)
	}

	assert.Equal(t, []m.PackageID{bar, local, old, newer}, got)
}

func TestWalker_Render_MaxDepth(t *testing.T) {
	tree, err := NewWalker().Render(diamond(), pkgA, WalkOptions{MaxDepth: 1})
	require.NoError(t, err)

	require.Equal(t, []string{"b", "c"}, names(tree.Children))
	assert.Empty(t, tree.Children[0].Children)
	assert.Empty(t, tree.Children[1].Children)
	assert.False(t, tree.Children[1].Truncated)
}

func TestWalker_Render_UnknownRoot(t *testing.T) {
	_, err := NewWalker().Render(diamond(), regID("missing", "0.0.1"), WalkOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRootNotFound))
}

func TestWalker_Reachable_DoubleInversion(t *testing.T) {
	g := diamond()
	g.AddEdge(edge(pkgB, pkgE, m.KindDevelopment))

	inverted := m.NewGraph(pkgA)
	for _, p := range g.Packages {
		inverted.AddPackage(p)
	}

	for _, e := range g.Edges {
		inverted.AddEdge(m.Edge{From: e.To, To: e.From, Kind: e.Kind})
	}

	w := NewWalker()

	for _, kinds := range []m.KindSet{m.KindSetNormal, m.KindSetAll} {
		forward, err := w.Reachable(g, pkgA, WalkOptions{Kinds: kinds})
		require.NoError(t, err)

		back, err := w.Reachable(inverted, pkgA, WalkOptions{Kinds: kinds, Invert: true})
		require.NoError(t, err)

		assert.Equal(t, forward, back)
	}

	forward, err := w.Reachable(g, pkgA, WalkOptions{})
	require.NoError(t, err)
	assert.Len(t, forward, 5)

	dependents, err := w.Reachable(g, pkgD, WalkOptions{Invert: true})
	require.NoError(t, err)
	assert.Len(t, dependents, 4)
	assert.NotContains(t, dependents, pkgE.Key())
}
