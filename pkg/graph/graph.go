// Package graph implements the resolved-mutation layer: a directed,
// in-memory graph whose every operation runs caller-supplied labels through
// tiered resolution before touching structure.
//
// The policy differs per operation on purpose:
//
//   - AddNode deduplicates by exact and normalized label only. Creation never
//     fuzzy-matches; "CacheLayer" must not silently merge into "CacheService".
//   - AddEdge, RemoveNode, RemoveEdge and the analysis entry points resolve
//     through all three tiers. A single fuzzy hit is used (and reported);
//     an ambiguous one is refused with candidates; no hit is a NotFoundError.
//   - FindNode is a search, so nothing it returns is an error: ambiguity
//     becomes a candidate list, no hit becomes an empty list.
//
// A Graph, its match.Cache and its match.Matcher belong to one session and
// share the cache instance: node creation writes labels into it, resolution
// reads them back.
package graph

import (
	"context"
	"sync"
	"time"

	"github.com/orneryd/munin/pkg/graph/algo"
	"github.com/orneryd/munin/pkg/match"
)

// Graph is a per-session directed graph with label-resolved mutations.
//
// Thread-safe at the session boundary: a single RWMutex guards all structure.
// Label resolution runs outside the lock (it may call an embedding provider),
// so a resolved label is re-checked for existence before use.
type Graph struct {
	mu sync.RWMutex

	nodes map[string]*Node
	order []string // labels in creation order

	out map[string]map[string]*Edge // source -> target -> edge
	in  map[string]map[string]*Edge // target -> source -> edge

	edgeCount int

	cache   *match.Cache
	matcher *match.Matcher

	hookMu sync.RWMutex
	hook   MutationHook
}

// New creates an empty graph resolving against cache through matcher. The
// cache must be the same instance the matcher reads from.
func New(cache *match.Cache, matcher *match.Matcher) *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		out:     make(map[string]map[string]*Edge),
		in:      make(map[string]map[string]*Edge),
		cache:   cache,
		matcher: matcher,
	}
}

// SetMutationHook installs the observer called after each mutation.
func (g *Graph) SetMutationHook(hook MutationHook) {
	g.hookMu.Lock()
	g.hook = hook
	g.hookMu.Unlock()
}

func (g *Graph) emit(event MutationEvent, payload map[string]interface{}) {
	g.hookMu.RLock()
	hook := g.hook
	g.hookMu.RUnlock()
	if hook != nil {
		hook(event, payload)
	}
}

// ============================================================================
// Mutations
// ============================================================================

// AddNode creates a node, or returns the existing one when label matches an
// existing node exactly or after normalization. Properties from props are
// merged into an existing node (new keys win).
func (g *Graph) AddNode(label, nodeType string, props map[string]interface{}) AddNodeResult {
	g.mu.Lock()

	canonical := label
	existing, ok := g.nodes[label]
	if !ok {
		if bucket := g.cache.LookupNormalized(match.Normalize(label)); len(bucket) > 0 {
			canonical = bucket[0]
			existing = g.nodes[canonical]
			ok = existing != nil
		}
	}

	if ok {
		if nodeType != "" && existing.Type == "" {
			existing.Type = nodeType
		}
		if len(props) > 0 {
			if existing.Properties == nil {
				existing.Properties = make(map[string]interface{}, len(props))
			}
			for k, v := range props {
				existing.Properties[k] = v
			}
		}
		g.mu.Unlock()
		return AddNodeResult{Node: existing, Created: false}
	}

	node := &Node{
		Label:      label,
		Type:       nodeType,
		Properties: props,
		CreatedAt:  time.Now(),
	}
	g.nodes[label] = node
	g.order = append(g.order, label)
	g.cache.Put(label)
	g.mu.Unlock()

	g.emit(EventNodeAdded, map[string]interface{}{
		"label": label,
		"type":  nodeType,
	})
	return AddNodeResult{Node: node, Created: true}
}

// AddEdge connects two existing nodes, resolving both endpoints through the
// full tiered matcher. Re-adding an edge for the same ordered pair overwrites
// its relation and properties. Self-loops are valid.
func (g *Graph) AddEdge(ctx context.Context, source, target, relation string, props map[string]interface{}) (AddEdgeResult, error) {
	srcLabel, srcExact, err := g.resolveExisting(ctx, source)
	if err != nil {
		return AddEdgeResult{}, err
	}
	tgtLabel, tgtExact, err := g.resolveExisting(ctx, target)
	if err != nil {
		return AddEdgeResult{}, err
	}

	g.mu.Lock()
	// Resolution ran unlocked; the nodes may have vanished since.
	if _, ok := g.nodes[srcLabel]; !ok {
		err := g.notFound(source)
		g.mu.Unlock()
		return AddEdgeResult{}, err
	}
	if _, ok := g.nodes[tgtLabel]; !ok {
		err := g.notFound(target)
		g.mu.Unlock()
		return AddEdgeResult{}, err
	}

	created := true
	if existing, ok := g.out[srcLabel][tgtLabel]; ok {
		existing.Relation = relation
		existing.Properties = props
		g.mu.Unlock()
		g.emit(EventEdgeAdded, map[string]interface{}{
			"source":   srcLabel,
			"target":   tgtLabel,
			"relation": relation,
		})
		return AddEdgeResult{
			Edge:          existing,
			Created:       false,
			SourceMatched: !srcExact,
			TargetMatched: !tgtExact,
		}, nil
	}

	edge := &Edge{
		Source:     srcLabel,
		Target:     tgtLabel,
		Relation:   relation,
		Properties: props,
		CreatedAt:  time.Now(),
	}
	if g.out[srcLabel] == nil {
		g.out[srcLabel] = make(map[string]*Edge)
	}
	if g.in[tgtLabel] == nil {
		g.in[tgtLabel] = make(map[string]*Edge)
	}
	g.out[srcLabel][tgtLabel] = edge
	g.in[tgtLabel][srcLabel] = edge
	g.edgeCount++
	g.mu.Unlock()

	g.emit(EventEdgeAdded, map[string]interface{}{
		"source":   srcLabel,
		"target":   tgtLabel,
		"relation": relation,
	})
	return AddEdgeResult{
		Edge:          edge,
		Created:       created,
		SourceMatched: !srcExact,
		TargetMatched: !tgtExact,
	}, nil
}

// RemoveNode deletes the node query resolves to, along with every edge
// touching it and its similarity-cache entry. Returns the canonical label
// removed.
func (g *Graph) RemoveNode(ctx context.Context, query string) (string, error) {
	label, _, err := g.resolveExisting(ctx, query)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	if _, ok := g.nodes[label]; !ok {
		err := g.notFound(query)
		g.mu.Unlock()
		return "", err
	}

	for tgt := range g.out[label] {
		delete(g.in[tgt], label)
		g.edgeCount--
	}
	delete(g.out, label)
	for src := range g.in[label] {
		delete(g.out[src], label)
		g.edgeCount--
	}
	delete(g.in, label)

	delete(g.nodes, label)
	for i, l := range g.order {
		if l == label {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.cache.Remove(label)
	g.mu.Unlock()

	g.emit(EventNodeRemoved, map[string]interface{}{"label": label})
	return label, nil
}

// RemoveEdge deletes the edge between the nodes source and target resolve to.
func (g *Graph) RemoveEdge(ctx context.Context, source, target string) (*Edge, error) {
	srcLabel, _, err := g.resolveExisting(ctx, source)
	if err != nil {
		return nil, err
	}
	tgtLabel, _, err := g.resolveExisting(ctx, target)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	edge, ok := g.out[srcLabel][tgtLabel]
	if !ok {
		g.mu.Unlock()
		return nil, &EdgeNotFoundError{Source: srcLabel, Target: tgtLabel}
	}
	delete(g.out[srcLabel], tgtLabel)
	delete(g.in[tgtLabel], srcLabel)
	g.edgeCount--
	g.mu.Unlock()

	g.emit(EventEdgeRemoved, map[string]interface{}{
		"source": srcLabel,
		"target": tgtLabel,
	})
	return edge, nil
}

// resolveExisting maps a query label to a canonical existing label, or fails
// with the policy-table errors. The bool reports an exact (tier 1) hit.
func (g *Graph) resolveExisting(ctx context.Context, query string) (string, bool, error) {
	result := g.matcher.Resolve(ctx, query)
	if result.Resolved() {
		return result.MatchedLabel, result.Exact, nil
	}
	if result.Ambiguous() {
		return "", false, &AmbiguousMatchError{Query: query, Candidates: result.Candidates}
	}
	g.mu.RLock()
	err := g.notFound(query)
	g.mu.RUnlock()
	return "", false, err
}

// ============================================================================
// Queries
// ============================================================================

// FindNode searches for query. Never errors: a resolved match is the sole
// result, an ambiguous match returns every candidate, no match returns an
// empty slice.
func (g *Graph) FindNode(ctx context.Context, query string) []FindResult {
	result := g.matcher.Resolve(ctx, query)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if result.Resolved() {
		node, ok := g.nodes[result.MatchedLabel]
		if !ok {
			return nil
		}
		return []FindResult{{Node: node, Similarity: result.Similarity, Exact: result.Exact}}
	}

	var out []FindResult
	for _, c := range result.Candidates {
		if node, ok := g.nodes[c.Label]; ok {
			out = append(out, FindResult{Node: node, Similarity: c.Similarity})
		}
	}
	return out
}

// Resolve maps query to a canonical existing label using the full tiered
// matcher, for callers that need a label before running analysis.
func (g *Graph) Resolve(ctx context.Context, query string) (string, error) {
	label, _, err := g.resolveExisting(ctx, query)
	return label, err
}

// GetNode returns the node with the given canonical label, without
// resolution.
func (g *Graph) GetNode(label string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[label]
	return node, ok
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.order))
	for _, label := range g.order {
		out = append(out, g.nodes[label])
	}
	return out
}

// Edges returns all edges, grouped by source in creation order.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0, g.edgeCount)
	for _, src := range g.order {
		for _, tgt := range g.order {
			if edge, ok := g.out[src][tgt]; ok {
				out = append(out, edge)
			}
		}
	}
	return out
}

// Outgoing returns the edges leaving label.
func (g *Graph) Outgoing(label string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0, len(g.out[label]))
	for _, tgt := range g.order {
		if edge, ok := g.out[label][tgt]; ok {
			out = append(out, edge)
		}
	}
	return out
}

// Incoming returns the edges arriving at label.
func (g *Graph) Incoming(label string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0, len(g.in[label]))
	for _, src := range g.order {
		if edge, ok := g.in[label][src]; ok {
			out = append(out, edge)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}

// Stats returns node/edge counts with per-type and per-relation breakdowns.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		NodeCount: len(g.nodes),
		EdgeCount: g.edgeCount,
		NodeTypes: make(map[string]int),
		Relations: make(map[string]int),
	}
	for _, node := range g.nodes {
		if node.Type != "" {
			stats.NodeTypes[node.Type]++
		}
	}
	for _, targets := range g.out {
		for _, edge := range targets {
			stats.Relations[edge.Relation]++
		}
	}
	return stats
}

// Snapshot captures the current structure as a plain adjacency form for the
// algorithms in pkg/graph/algo. Labels in the snapshot are canonical; the
// snapshot does not track later mutations.
func (g *Graph) Snapshot() *algo.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := &algo.Snapshot{
		Nodes: make([]string, len(g.order)),
		Out:   make(map[string][]string, len(g.order)),
		In:    make(map[string][]string, len(g.order)),
	}
	copy(snap.Nodes, g.order)

	for _, src := range g.order {
		for _, tgt := range g.order {
			if _, ok := g.out[src][tgt]; ok {
				snap.Out[src] = append(snap.Out[src], tgt)
				snap.In[tgt] = append(snap.In[tgt], src)
			}
		}
	}
	return snap
}

// RequireNodes returns an EmptyGraphError when the graph has no nodes, for
// analysis entry points.
func (g *Graph) RequireNodes(operation string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.nodes) == 0 {
		return &EmptyGraphError{Operation: operation}
	}
	return nil
}
