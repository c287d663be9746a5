package algo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build constructs a snapshot from an edge list, registering nodes in the
// order they first appear plus any extras.
func build(edges [][2]string, extra ...string) *Snapshot {
	s := &Snapshot{
		Out: make(map[string][]string),
		In:  make(map[string][]string),
	}
	seen := make(map[string]bool)
	add := func(node string) {
		if !seen[node] {
			seen[node] = true
			s.Nodes = append(s.Nodes, node)
		}
	}
	for _, e := range edges {
		add(e[0])
		add(e[1])
		s.Out[e[0]] = append(s.Out[e[0]], e[1])
		s.In[e[1]] = append(s.In[e[1]], e[0])
	}
	for _, node := range extra {
		add(node)
	}
	return s
}

func TestShortestPath(t *testing.T) {
	s := build([][2]string{
		{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"},
	})

	tests := []struct {
		name   string
		source string
		target string
		want   []string
	}{
		{"direct beats long", "a", "c", []string{"a", "c"}},
		{"two hops", "a", "d", []string{"a", "c", "d"}},
		{"self", "a", "a", []string{"a"}},
		{"no path against direction", "d", "a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortestPath(s, tt.source, tt.target))
		})
	}
}

func TestAllSimplePaths(t *testing.T) {
	s := build([][2]string{
		{"a", "b"}, {"b", "d"}, {"a", "c"}, {"c", "d"},
	})

	paths := AllSimplePaths(s, "a", "d", 0)
	require.Len(t, paths, 2)
	assert.Contains(t, paths, []string{"a", "b", "d"})
	assert.Contains(t, paths, []string{"a", "c", "d"})

	// A length bound of 2 nodes excludes both three-node paths.
	assert.Empty(t, AllSimplePaths(s, "a", "d", 2))
}

func TestAllSimplePathsSkipsCycles(t *testing.T) {
	s := build([][2]string{
		{"a", "b"}, {"b", "a"}, {"b", "c"},
	})

	paths := AllSimplePaths(s, "a", "c", 0)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"a", "b", "c"}, paths[0])
}

func TestPageRank(t *testing.T) {
	// b and c both point at a; a should outrank them.
	s := build([][2]string{
		{"b", "a"}, {"c", "a"},
	})

	rank := PageRank(s, 0.85, 50)

	sum := 0.0
	for _, r := range rank {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "ranks must sum to 1")
	assert.Greater(t, rank["a"], rank["b"])
	assert.InDelta(t, rank["b"], rank["c"], 1e-9, "symmetric nodes rank equally")
}

func TestPageRankEmpty(t *testing.T) {
	s := build(nil)
	assert.Empty(t, PageRank(s, 0.85, 10))
}

func TestWeaklyConnectedComponents(t *testing.T) {
	s := build([][2]string{
		{"a", "b"}, {"b", "c"},
		{"x", "y"},
	}, "lonely")

	components := WeaklyConnectedComponents(s)
	require.Len(t, components, 3)
	assert.Equal(t, []string{"a", "b", "c"}, components[0], "largest first")
	assert.Equal(t, []string{"x", "y"}, components[1])
	assert.Equal(t, []string{"lonely"}, components[2])
}

func TestFindCycles(t *testing.T) {
	s := build([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"},
		{"d", "d"},
		{"x", "y"},
	})

	cycles := FindCycles(s)
	require.Len(t, cycles, 2)
	assert.Contains(t, cycles, []string{"a", "b", "c"})
	assert.Contains(t, cycles, []string{"d"})
}

func TestFindCyclesNone(t *testing.T) {
	s := build([][2]string{{"a", "b"}, {"b", "c"}})
	assert.Empty(t, FindCycles(s))
}

func TestIsDAG(t *testing.T) {
	dag := build([][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})
	assert.True(t, IsDAG(dag))

	cyclic := build([][2]string{{"a", "b"}, {"b", "a"}})
	assert.False(t, IsDAG(cyclic))

	selfLoop := build([][2]string{{"a", "a"}})
	assert.False(t, IsDAG(selfLoop))
}

func TestTransitiveReduction(t *testing.T) {
	// a->c is implied by a->b->c.
	s := build([][2]string{
		{"a", "b"}, {"b", "c"}, {"a", "c"},
	})

	reduced, ok := TransitiveReduction(s)
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, reduced["a"], "redundant a->c dropped")
	assert.Equal(t, []string{"c"}, reduced["b"])
}

func TestTransitiveReductionCyclic(t *testing.T) {
	s := build([][2]string{{"a", "b"}, {"b", "a"}})
	_, ok := TransitiveReduction(s)
	assert.False(t, ok)
}

func TestDegreeCentrality(t *testing.T) {
	s := build([][2]string{
		{"hub", "a"}, {"hub", "b"}, {"c", "hub"},
	})

	centrality := DegreeCentrality(s)
	require.NotEmpty(t, centrality)
	assert.Equal(t, "hub", centrality[0].Label)
	assert.Equal(t, 1, centrality[0].InDegree)
	assert.Equal(t, 2, centrality[0].OutDegree)
	assert.Equal(t, 3, centrality[0].Total)
	assert.InDelta(t, 3.0/6.0, centrality[0].Normalized, 1e-9)
}

func TestDensity(t *testing.T) {
	s := build([][2]string{{"a", "b"}, {"b", "a"}})
	assert.InDelta(t, 1.0, Density(s), 1e-9, "complete 2-node digraph")

	sparse := build([][2]string{{"a", "b"}}, "c")
	assert.InDelta(t, 1.0/6.0, Density(sparse), 1e-9)

	single := build(nil, "a")
	assert.Zero(t, Density(single))
}

func TestOrphans(t *testing.T) {
	s := build([][2]string{{"a", "b"}}, "c", "d")
	assert.Equal(t, []string{"c", "d"}, Orphans(s))
}

func TestSubgraph(t *testing.T) {
	s := build([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "d"}, {"x", "a"},
	})

	sub := Subgraph(s, "b", 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, sub.Nodes)
	assert.Equal(t, []string{"b"}, sub.Out["a"])
	assert.Equal(t, []string{"c"}, sub.Out["b"])
	assert.Empty(t, sub.Out["c"], "edge c->d excluded, d outside radius")

	center := Subgraph(s, "b", 0)
	assert.Equal(t, []string{"b"}, center.Nodes)
	assert.Empty(t, center.Out["b"])
}

func TestPageRankDanglingMass(t *testing.T) {
	// b is dangling; its rank must be redistributed, keeping the sum at 1.
	s := build([][2]string{{"a", "b"}})
	rank := PageRank(s, 0.85, 100)

	sum := 0.0
	for _, r := range rank {
		sum += r
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("rank sum = %v, want 1.0", sum)
	}
	assert.Greater(t, rank["b"], rank["a"])
}
