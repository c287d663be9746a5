package graph

import (
	"fmt"
	"strings"

	"github.com/orneryd/munin/pkg/match"
)

// ============================================================================
// Error Types
// ============================================================================
//
// Resolution failures carry enough structure for an agent to recover on its
// own: a NotFoundError shows what the graph does contain, an
// AmbiguousMatchError shows exactly which labels collided and how closely.

// NotFoundError reports a query label that resolved to nothing.
type NotFoundError struct {
	Query     string
	NodeCount int
	Examples  []string // up to 5 existing labels, creation order
}

func (e *NotFoundError) Error() string {
	if e.NodeCount == 0 {
		return fmt.Sprintf("node %q not found: the graph is empty", e.Query)
	}
	return fmt.Sprintf("node %q not found among %d nodes (examples: %s); try find_node to search",
		e.Query, e.NodeCount, strings.Join(e.Examples, ", "))
}

// AmbiguousMatchError reports a query that matched several labels too closely
// to pick one.
type AmbiguousMatchError struct {
	Query      string
	Candidates []match.Candidate
}

func (e *AmbiguousMatchError) Error() string {
	parts := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		parts[i] = fmt.Sprintf("%s (%.2f)", c.Label, c.Similarity)
	}
	return fmt.Sprintf("query %q is ambiguous between: %s; use a more specific label",
		e.Query, strings.Join(parts, ", "))
}

// EdgeNotFoundError reports a removal between two resolved endpoints that
// have no edge between them.
type EdgeNotFoundError struct {
	Source string
	Target string
}

func (e *EdgeNotFoundError) Error() string {
	return fmt.Sprintf("no edge from %q to %q", e.Source, e.Target)
}

// EmptyGraphError reports an analysis operation run against a graph with no
// nodes.
type EmptyGraphError struct {
	Operation string
}

func (e *EmptyGraphError) Error() string {
	return fmt.Sprintf("cannot run %s: the graph has no nodes", e.Operation)
}

// notFound builds a NotFoundError with example labels from the graph.
// Caller must hold at least a read lock.
func (g *Graph) notFound(query string) *NotFoundError {
	examples := g.order
	if len(examples) > 5 {
		examples = examples[:5]
	}
	out := make([]string, len(examples))
	copy(out, examples)
	return &NotFoundError{
		Query:     query,
		NodeCount: len(g.nodes),
		Examples:  out,
	}
}
