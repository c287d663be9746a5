// Package query answers loosely phrased questions about a graph by routing
// them through a fixed set of regex patterns.
//
// This is deliberately not a query language: the supported shapes are the
// handful an agent actually asks ("what depends on X", "path from X to Y",
// "cycles"), and anything else fails fast with the full pattern list so the
// agent can rephrase.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/orneryd/munin/pkg/graph"
	"github.com/orneryd/munin/pkg/graph/algo"
)

// Answer is a structured query result. Target labels are canonical: fuzzy
// resolution has already been applied to anything the caller named.
type Answer struct {
	Pattern string      `json:"pattern"`
	Summary string      `json:"summary"`
	Results interface{} `json:"results,omitempty"`
}

// UnknownPatternError reports a question no pattern matched.
type UnknownPatternError struct {
	Query string
}

func (e *UnknownPatternError) Error() string {
	return fmt.Sprintf("unrecognized question %q; supported patterns: %s",
		e.Query, strings.Join(SupportedPatterns(), "; "))
}

// SupportedPatterns lists the question shapes Ask understands.
func SupportedPatterns() []string {
	return []string{
		"what depends on X",
		"what does X depend on",
		"dependencies of X",
		"dependents of X",
		"shortest path from X to Y",
		"all paths from X to Y",
		"cycles",
		"most connected",
		"orphans",
		"components",
	}
}

var (
	reDependsOn    = regexp.MustCompile(`(?i)^\s*what depends on (.+?)\??\s*$`)
	reDependOnWhat = regexp.MustCompile(`(?i)^\s*what does (.+?) depend on\??\s*$`)
	reDependencies = regexp.MustCompile(`(?i)^\s*dependencies of (.+?)\??\s*$`)
	reDependents   = regexp.MustCompile(`(?i)^\s*dependents of (.+?)\??\s*$`)
	reAllPaths     = regexp.MustCompile(`(?i)^\s*all paths from (.+?) to (.+?)\??\s*$`)
	rePath         = regexp.MustCompile(`(?i)^\s*(?:shortest )?path from (.+?) to (.+?)\??\s*$`)
	reCycles       = regexp.MustCompile(`(?i)^\s*(?:find |any )?cycles\??\s*$`)
	reMostConn     = regexp.MustCompile(`(?i)^\s*(?:what is |which is )?(?:the )?most connected(?: node)?\??\s*$`)
	reOrphans      = regexp.MustCompile(`(?i)^\s*(?:find |list )?orphan(?:s|ed nodes)?\??\s*$`)
	reComponents   = regexp.MustCompile(`(?i)^\s*(?:connected )?components\??\s*$`)
)

// Ask answers a natural-language-ish question against g. Node names inside
// the question go through full label resolution, so "what depends on auth
// service" works against a node labeled "AuthService".
func Ask(ctx context.Context, g *graph.Graph, question string) (*Answer, error) {
	if err := g.RequireNodes("query"); err != nil {
		return nil, err
	}

	if m := reDependsOn.FindStringSubmatch(question); m != nil {
		return incomingAnswer(ctx, g, m[1], "what depends on X")
	}
	if m := reDependOnWhat.FindStringSubmatch(question); m != nil {
		return outgoingAnswer(ctx, g, m[1], "what does X depend on")
	}
	if m := reDependencies.FindStringSubmatch(question); m != nil {
		return outgoingAnswer(ctx, g, m[1], "dependencies of X")
	}
	if m := reDependents.FindStringSubmatch(question); m != nil {
		return incomingAnswer(ctx, g, m[1], "dependents of X")
	}
	if m := reAllPaths.FindStringSubmatch(question); m != nil {
		return allPathsAnswer(ctx, g, m[1], m[2])
	}
	if m := rePath.FindStringSubmatch(question); m != nil {
		return pathAnswer(ctx, g, m[1], m[2])
	}
	if reCycles.MatchString(question) {
		return cyclesAnswer(g), nil
	}
	if reMostConn.MatchString(question) {
		return mostConnectedAnswer(g), nil
	}
	if reOrphans.MatchString(question) {
		return orphansAnswer(g), nil
	}
	if reComponents.MatchString(question) {
		return componentsAnswer(g), nil
	}

	return nil, &UnknownPatternError{Query: question}
}

// Neighbor is one edge endpoint in a dependency answer.
type Neighbor struct {
	Label    string `json:"label"`
	Relation string `json:"relation"`
}

func incomingAnswer(ctx context.Context, g *graph.Graph, query, pattern string) (*Answer, error) {
	label, err := g.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	neighbors := []Neighbor{}
	for _, edge := range g.Incoming(label) {
		neighbors = append(neighbors, Neighbor{Label: edge.Source, Relation: edge.Relation})
	}
	return &Answer{
		Pattern: pattern,
		Summary: fmt.Sprintf("%d node(s) point at %s", len(neighbors), label),
		Results: neighbors,
	}, nil
}

func outgoingAnswer(ctx context.Context, g *graph.Graph, query, pattern string) (*Answer, error) {
	label, err := g.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	neighbors := []Neighbor{}
	for _, edge := range g.Outgoing(label) {
		neighbors = append(neighbors, Neighbor{Label: edge.Target, Relation: edge.Relation})
	}
	return &Answer{
		Pattern: pattern,
		Summary: fmt.Sprintf("%s points at %d node(s)", label, len(neighbors)),
		Results: neighbors,
	}, nil
}

func pathAnswer(ctx context.Context, g *graph.Graph, source, target string) (*Answer, error) {
	src, err := g.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}
	tgt, err := g.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	path := algo.ShortestPath(g.Snapshot(), src, tgt)
	if path == nil {
		return &Answer{
			Pattern: "shortest path from X to Y",
			Summary: fmt.Sprintf("no path from %s to %s", src, tgt),
		}, nil
	}
	return &Answer{
		Pattern: "shortest path from X to Y",
		Summary: fmt.Sprintf("path with %d node(s): %s", len(path), strings.Join(path, " -> ")),
		Results: path,
	}, nil
}

func allPathsAnswer(ctx context.Context, g *graph.Graph, source, target string) (*Answer, error) {
	src, err := g.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}
	tgt, err := g.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	paths := algo.AllSimplePaths(g.Snapshot(), src, tgt, 0)
	return &Answer{
		Pattern: "all paths from X to Y",
		Summary: fmt.Sprintf("%d path(s) from %s to %s", len(paths), src, tgt),
		Results: paths,
	}, nil
}

func cyclesAnswer(g *graph.Graph) *Answer {
	cycles := algo.FindCycles(g.Snapshot())
	return &Answer{
		Pattern: "cycles",
		Summary: fmt.Sprintf("%d cycle(s) found", len(cycles)),
		Results: cycles,
	}
}

func mostConnectedAnswer(g *graph.Graph) *Answer {
	centrality := algo.DegreeCentrality(g.Snapshot())
	top := centrality
	if len(top) > 5 {
		top = top[:5]
	}
	summary := "the graph has no nodes"
	if len(top) > 0 {
		summary = fmt.Sprintf("most connected: %s (%d edges)", top[0].Label, top[0].Total)
	}
	return &Answer{Pattern: "most connected", Summary: summary, Results: top}
}

func orphansAnswer(g *graph.Graph) *Answer {
	orphans := algo.Orphans(g.Snapshot())
	return &Answer{
		Pattern: "orphans",
		Summary: fmt.Sprintf("%d orphan node(s)", len(orphans)),
		Results: orphans,
	}
}

func componentsAnswer(g *graph.Graph) *Answer {
	components := algo.WeaklyConnectedComponents(g.Snapshot())
	return &Answer{
		Pattern: "components",
		Summary: fmt.Sprintf("%d weakly connected component(s)", len(components)),
		Results: components,
	}
}
