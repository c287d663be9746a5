// Package algo implements directed-graph algorithms over an immutable
// adjacency snapshot.
//
// Everything here is a pure function: take a Snapshot, return a value, touch
// no locks. Label resolution happens before the snapshot is taken; these
// functions only ever see canonical labels.
package algo

import (
	"sort"
)

// Snapshot is a point-in-time adjacency view of a directed graph. Nodes is in
// creation order; Out and In list neighbors in creation order too, which
// keeps traversal results deterministic.
type Snapshot struct {
	Nodes []string
	Out   map[string][]string
	In    map[string][]string
}

// Has reports whether label is a node in the snapshot.
func (s *Snapshot) Has(label string) bool {
	for _, n := range s.Nodes {
		if n == label {
			return true
		}
	}
	return false
}

// ShortestPath returns the fewest-hops directed path from source to target,
// inclusive of both endpoints, found by breadth-first search. Returns nil
// when no path exists. A node's shortest path to itself is [node].
func ShortestPath(s *Snapshot, source, target string) []string {
	if source == target {
		return []string{source}
	}

	prev := map[string]string{source: ""}
	queue := []string{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range s.Out[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == target {
				// Walk back to build the path.
				path := []string{target}
				for at := current; at != ""; at = prev[at] {
					path = append(path, at)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// AllSimplePaths returns every simple directed path from source to target
// with at most maxLen nodes. maxLen <= 0 means no bound. Paths come out in
// DFS order, which is deterministic given the snapshot's neighbor order.
func AllSimplePaths(s *Snapshot, source, target string, maxLen int) [][]string {
	var paths [][]string
	onPath := map[string]bool{source: true}
	path := []string{source}

	var dfs func(current string)
	dfs = func(current string) {
		if current == target {
			cp := make([]string, len(path))
			copy(cp, path)
			paths = append(paths, cp)
			return
		}
		if maxLen > 0 && len(path) >= maxLen {
			return
		}
		for _, next := range s.Out[current] {
			if onPath[next] {
				continue
			}
			onPath[next] = true
			path = append(path, next)
			dfs(next)
			path = path[:len(path)-1]
			onPath[next] = false
		}
	}
	dfs(source)
	return paths
}

// PageRank computes PageRank scores with the given damping factor over the
// given number of iterations. Dangling nodes distribute their rank uniformly.
// Scores sum to 1.
func PageRank(s *Snapshot, damping float64, iterations int) map[string]float64 {
	n := len(s.Nodes)
	if n == 0 {
		return map[string]float64{}
	}
	if damping <= 0 || damping >= 1 {
		damping = 0.85
	}
	if iterations <= 0 {
		iterations = 100
	}

	rank := make(map[string]float64, n)
	for _, node := range s.Nodes {
		rank[node] = 1.0 / float64(n)
	}

	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, n)
		base := (1 - damping) / float64(n)
		for _, node := range s.Nodes {
			next[node] = base
		}

		var dangling float64
		for _, node := range s.Nodes {
			out := s.Out[node]
			if len(out) == 0 {
				dangling += rank[node]
				continue
			}
			share := damping * rank[node] / float64(len(out))
			for _, target := range out {
				next[target] += share
			}
		}

		if dangling > 0 {
			spread := damping * dangling / float64(n)
			for _, node := range s.Nodes {
				next[node] += spread
			}
		}
		rank = next
	}
	return rank
}

// WeaklyConnectedComponents returns the weakly connected components, each
// sorted by creation order, largest component first (ties by first member).
func WeaklyConnectedComponents(s *Snapshot) [][]string {
	index := make(map[string]int, len(s.Nodes))
	for i, node := range s.Nodes {
		index[node] = i
	}

	visited := make(map[string]bool, len(s.Nodes))
	var components [][]string

	for _, start := range s.Nodes {
		if visited[start] {
			continue
		}
		var component []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)
			for _, next := range s.Out[current] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
			for _, next := range s.In[current] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Slice(component, func(a, b int) bool {
			return index[component[a]] < index[component[b]]
		})
		components = append(components, component)
	}

	sort.SliceStable(components, func(a, b int) bool {
		if len(components[a]) != len(components[b]) {
			return len(components[a]) > len(components[b])
		}
		return index[components[a][0]] < index[components[b][0]]
	})
	return components
}

// FindCycles returns the elementary cycles of the graph. Each cycle is
// reported once, rotated so its lexicographically smallest node comes first,
// without repeating the first node at the end.
func FindCycles(s *Snapshot) [][]string {
	var cycles [][]string
	seen := make(map[string]bool)

	onPath := make(map[string]bool)
	var path []string

	var dfs func(start, current string)
	dfs = func(start, current string) {
		onPath[current] = true
		path = append(path, current)

		for _, next := range s.Out[current] {
			if next == start {
				cycle := canonicalCycle(path)
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !onPath[next] {
				dfs(start, next)
			}
		}

		path = path[:len(path)-1]
		onPath[current] = false
	}

	for _, start := range s.Nodes {
		dfs(start, start)
	}
	return cycles
}

// canonicalCycle rotates a cycle so its smallest label leads.
func canonicalCycle(path []string) []string {
	minIdx := 0
	for i, node := range path {
		if node < path[minIdx] {
			minIdx = i
		}
	}
	cycle := make([]string, 0, len(path))
	cycle = append(cycle, path[minIdx:]...)
	cycle = append(cycle, path[:minIdx]...)
	return cycle
}

func cycleKey(cycle []string) string {
	key := ""
	for _, node := range cycle {
		key += node + "\x00"
	}
	return key
}

// IsDAG reports whether the graph has no directed cycles.
func IsDAG(s *Snapshot) bool {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(s.Nodes))

	var dfs func(node string) bool
	dfs = func(node string) bool {
		state[node] = inStack
		for _, next := range s.Out[node] {
			switch state[next] {
			case inStack:
				return false
			case unvisited:
				if !dfs(next) {
					return false
				}
			}
		}
		state[node] = done
		return true
	}

	for _, node := range s.Nodes {
		if state[node] == unvisited && !dfs(node) {
			return false
		}
	}
	return true
}

// TransitiveReduction returns the edges that survive transitive reduction:
// an edge u->v is redundant when v is reachable from u through some longer
// path. Only defined for DAGs; the bool is false for cyclic graphs.
func TransitiveReduction(s *Snapshot) (map[string][]string, bool) {
	if !IsDAG(s) {
		return nil, false
	}

	reduced := make(map[string][]string, len(s.Nodes))
	for _, u := range s.Nodes {
		for _, v := range s.Out[u] {
			if !reachableAvoiding(s, u, v) {
				reduced[u] = append(reduced[u], v)
			}
		}
	}
	return reduced, true
}

// reachableAvoiding reports whether v is reachable from u without using the
// direct edge u->v.
func reachableAvoiding(s *Snapshot, u, v string) bool {
	visited := map[string]bool{u: true}
	queue := []string{}
	for _, next := range s.Out[u] {
		if next == v {
			continue
		}
		if !visited[next] {
			visited[next] = true
			queue = append(queue, next)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == v {
			return true
		}
		for _, next := range s.Out[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Centrality holds a node's degree counts.
type Centrality struct {
	Label      string  `json:"label"`
	InDegree   int     `json:"in_degree"`
	OutDegree  int     `json:"out_degree"`
	Total      int     `json:"total"`
	Normalized float64 `json:"normalized"` // total / (2 * (n - 1))
}

// DegreeCentrality returns per-node degree centrality, sorted by total degree
// descending (ties by creation order).
func DegreeCentrality(s *Snapshot) []Centrality {
	n := len(s.Nodes)
	out := make([]Centrality, 0, n)
	for _, node := range s.Nodes {
		c := Centrality{
			Label:     node,
			InDegree:  len(s.In[node]),
			OutDegree: len(s.Out[node]),
		}
		c.Total = c.InDegree + c.OutDegree
		if n > 1 {
			c.Normalized = float64(c.Total) / float64(2*(n-1))
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Total > out[b].Total
	})
	return out
}

// Density returns edge count over the maximum possible for a simple directed
// graph, n*(n-1). Zero for graphs with fewer than two nodes. Self-loops count
// toward the edge total.
func Density(s *Snapshot) float64 {
	n := len(s.Nodes)
	if n < 2 {
		return 0
	}
	edges := 0
	for _, targets := range s.Out {
		edges += len(targets)
	}
	return float64(edges) / float64(n*(n-1))
}

// Orphans returns nodes with no edges in either direction, creation order.
func Orphans(s *Snapshot) []string {
	var out []string
	for _, node := range s.Nodes {
		if len(s.Out[node]) == 0 && len(s.In[node]) == 0 {
			out = append(out, node)
		}
	}
	return out
}

// Subgraph returns the nodes within depth hops of center (following edges in
// both directions) and the edges among them. Depth 0 is just the center.
func Subgraph(s *Snapshot, center string, depth int) *Snapshot {
	include := map[string]bool{center: true}
	frontier := []string{center}

	for d := 0; d < depth; d++ {
		var next []string
		for _, node := range frontier {
			for _, nb := range s.Out[node] {
				if !include[nb] {
					include[nb] = true
					next = append(next, nb)
				}
			}
			for _, nb := range s.In[node] {
				if !include[nb] {
					include[nb] = true
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}

	sub := &Snapshot{
		Out: make(map[string][]string),
		In:  make(map[string][]string),
	}
	for _, node := range s.Nodes {
		if !include[node] {
			continue
		}
		sub.Nodes = append(sub.Nodes, node)
		for _, tgt := range s.Out[node] {
			if include[tgt] {
				sub.Out[node] = append(sub.Out[node], tgt)
				sub.In[tgt] = append(sub.In[tgt], node)
			}
		}
	}
	return sub
}
