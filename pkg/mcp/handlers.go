package mcp

import (
	"context"
	"fmt"

	"github.com/orneryd/munin/pkg/export"
	"github.com/orneryd/munin/pkg/graph"
	"github.com/orneryd/munin/pkg/graph/algo"
	"github.com/orneryd/munin/pkg/knowledge"
	"github.com/orneryd/munin/pkg/query"
	"github.com/orneryd/munin/pkg/session"
)

// =============================================================================
// Tool Handlers
// =============================================================================
//
// Handlers that write take the session lazily via GetOrCreate; handlers that
// only read use Get so a typo'd graph name fails instead of materializing an
// empty graph.

// factOutcome reports what one applied fact did, canonical labels included.
type factOutcome struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
	Created  bool   `json:"created"`
}

// applyFacts adds each fact's nodes (dedup by exact/normalized label) and its
// edge. Because endpoints are created first, edge resolution hits the exact
// tier and never goes fuzzy here.
func applyFacts(ctx context.Context, sess *session.Session, facts []knowledge.Fact) ([]factOutcome, int, int, error) {
	outcomes := make([]factOutcome, 0, len(facts))
	nodesAdded, edgesAdded := 0, 0

	for _, f := range facts {
		src := sess.Graph.AddNode(f.Subject, f.SubjectType, nil)
		if src.Created {
			nodesAdded++
		}
		tgt := sess.Graph.AddNode(f.Object, f.ObjectType, nil)
		if tgt.Created {
			nodesAdded++
		}

		result, err := sess.Graph.AddEdge(ctx, src.Node.Label, tgt.Node.Label, f.Relation, nil)
		if err != nil {
			return outcomes, nodesAdded, edgesAdded, err
		}
		if result.Created {
			edgesAdded++
		}
		outcomes = append(outcomes, factOutcome{
			Source:   result.Edge.Source,
			Relation: result.Edge.Relation,
			Target:   result.Edge.Target,
			Created:  result.Created,
		})
	}
	return outcomes, nodesAdded, edgesAdded, nil
}

// parseFactArg converts one element of the add_facts "facts" array: either a
// [source, relation, target] triple or a {source, relation, target} object.
func parseFactArg(item interface{}) (knowledge.Fact, error) {
	switch v := item.(type) {
	case []interface{}:
		if len(v) != 3 {
			return knowledge.Fact{}, fmt.Errorf("fact triple must have 3 elements, got %d", len(v))
		}
		parts := make([]string, 3)
		for i, p := range v {
			s, ok := p.(string)
			if !ok || s == "" {
				return knowledge.Fact{}, fmt.Errorf("fact triple element %d must be a non-empty string", i)
			}
			parts[i] = s
		}
		return knowledge.Fact{Subject: parts[0], Relation: parts[1], Object: parts[2]}, nil
	case map[string]interface{}:
		f := knowledge.Fact{
			Subject:     getString(v, "source"),
			SubjectType: getString(v, "source_type"),
			Relation:    getString(v, "relation"),
			Object:      getString(v, "target"),
			ObjectType:  getString(v, "target_type"),
		}
		if f.Subject == "" || f.Relation == "" || f.Object == "" {
			return knowledge.Fact{}, fmt.Errorf("fact object requires source, relation, and target")
		}
		return f, nil
	default:
		return knowledge.Fact{}, fmt.Errorf("fact must be a triple or an object, got %T", item)
	}
}

func (s *Server) handleAddFacts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	items := getSlice(args, "facts")
	if len(items) == 0 {
		return nil, fmt.Errorf("facts is required and must be a non-empty array")
	}

	facts := make([]knowledge.Fact, 0, len(items))
	for i, item := range items {
		f, err := parseFactArg(item)
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		facts = append(facts, f)
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	outcomes, nodesAdded, edgesAdded, err := applyFacts(ctx, sess, facts)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"graph":       sess.Name,
		"facts":       outcomes,
		"nodes_added": nodesAdded,
		"edges_added": edgesAdded,
	}, nil
}

func (s *Server) handleAddKnowledge(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	text := getString(args, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	facts, parseErrs := knowledge.ParseDSL(text)
	if len(facts) == 0 && len(parseErrs) > 0 {
		return nil, fmt.Errorf("no facts parsed: %s", parseErrs[0].Error())
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	outcomes, nodesAdded, edgesAdded, err := applyFacts(ctx, sess, facts)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"graph":       sess.Name,
		"facts":       outcomes,
		"nodes_added": nodesAdded,
		"edges_added": edgesAdded,
	}
	if len(parseErrs) > 0 {
		result["parse_errors"] = parseErrs
	}
	return result, nil
}

func (s *Server) handleAddNodes(_ context.Context, args map[string]interface{}) (interface{}, error) {
	items := getSlice(args, "nodes")
	if len(items) == 0 {
		return nil, fmt.Errorf("nodes is required and must be a non-empty array")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))

	type nodeOutcome struct {
		Label   string `json:"label"`
		Created bool   `json:"created"`
	}
	outcomes := make([]nodeOutcome, 0, len(items))
	added := 0

	for i, item := range items {
		var label, nodeType string
		var props map[string]interface{}

		switch v := item.(type) {
		case string:
			label = v
		case map[string]interface{}:
			label = getString(v, "label")
			nodeType = getString(v, "type")
			props = getMap(v, "properties")
		default:
			return nil, fmt.Errorf("nodes[%d] must be a string or an object, got %T", i, item)
		}
		if label == "" {
			return nil, fmt.Errorf("nodes[%d]: label is required", i)
		}

		result := sess.Graph.AddNode(label, nodeType, props)
		if result.Created {
			added++
		}
		outcomes = append(outcomes, nodeOutcome{Label: result.Node.Label, Created: result.Created})
	}

	return map[string]interface{}{
		"graph":       sess.Name,
		"nodes":       outcomes,
		"nodes_added": added,
	}, nil
}

func (s *Server) handleAddRelationship(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	source, target := getString(args, "source"), getString(args, "target")
	relation := getString(args, "relation")
	if source == "" || target == "" || relation == "" {
		return nil, fmt.Errorf("source, target, and relation are required")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	result, err := sess.Graph.AddEdge(ctx, source, target, relation, getMap(args, "properties"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"graph":          sess.Name,
		"edge":           result.Edge,
		"created":        result.Created,
		"source_matched": result.SourceMatched,
		"target_matched": result.TargetMatched,
	}, nil
}

func (s *Server) handleFindNode(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	q := getString(args, "query")
	if q == "" {
		return nil, fmt.Errorf("query is required")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	results := sess.Graph.FindNode(ctx, q)
	return map[string]interface{}{
		"graph":   sess.Name,
		"query":   q,
		"results": results,
		"count":   len(results),
	}, nil
}

func (s *Server) handleListNodes(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess := s.store.GetOrCreate(getString(args, "graph"))

	typeFilter := getString(args, "type")
	limit := getInt(args, "limit", 100)

	nodes := []*graph.Node{}
	for _, node := range sess.Graph.Nodes() {
		if typeFilter != "" && node.Type != typeFilter {
			continue
		}
		nodes = append(nodes, node)
		if len(nodes) >= limit {
			break
		}
	}

	return map[string]interface{}{
		"graph": sess.Name,
		"nodes": nodes,
		"count": len(nodes),
		"total": sess.Graph.NodeCount(),
	}, nil
}

func (s *Server) handleListGraphs(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	infos := s.store.List()
	return map[string]interface{}{
		"graphs": infos,
		"count":  len(infos),
	}, nil
}

func (s *Server) handleDeleteGraph(_ context.Context, args map[string]interface{}) (interface{}, error) {
	name := getString(args, "graph")
	if name == "" {
		return nil, fmt.Errorf("graph is required")
	}
	deleted := s.store.Delete(name)
	return map[string]interface{}{
		"graph":   name,
		"deleted": deleted,
	}, nil
}

func (s *Server) handleGetGraphInfo(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.store.Get(getString(args, "graph"))
	if err != nil {
		return nil, err
	}
	stats := sess.Graph.Stats()
	return map[string]interface{}{
		"graph":      sess.Name,
		"created_at": sess.CreatedAt,
		"stats":      stats,
	}, nil
}

func (s *Server) handleForget(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	label := getString(args, "label")
	if label == "" {
		return nil, fmt.Errorf("label is required")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	removed, err := sess.Graph.RemoveNode(ctx, label)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"graph":   sess.Name,
		"removed": removed,
		"matched": removed != label,
	}, nil
}

func (s *Server) handleForgetRelationship(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	source, target := getString(args, "source"), getString(args, "target")
	if source == "" || target == "" {
		return nil, fmt.Errorf("source and target are required")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	edge, err := sess.Graph.RemoveEdge(ctx, source, target)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"graph":   sess.Name,
		"removed": edge,
	}, nil
}

// =============================================================================
// Analysis Handlers
// =============================================================================

// analysisSession supplies the session and guards against an empty graph.
func (s *Server) analysisSession(args map[string]interface{}, operation string) (*session.Session, error) {
	sess := s.store.GetOrCreate(getString(args, "graph"))
	if err := sess.Graph.RequireNodes(operation); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Server) handleShortestPath(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolShortestPath)
	if err != nil {
		return nil, err
	}

	src, err := sess.Graph.Resolve(ctx, getString(args, "source"))
	if err != nil {
		return nil, err
	}
	tgt, err := sess.Graph.Resolve(ctx, getString(args, "target"))
	if err != nil {
		return nil, err
	}

	path := algo.ShortestPath(sess.Graph.Snapshot(), src, tgt)
	return map[string]interface{}{
		"graph":  sess.Name,
		"source": src,
		"target": tgt,
		"path":   path,
		"found":  path != nil,
	}, nil
}

func (s *Server) handleAllPaths(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolAllPaths)
	if err != nil {
		return nil, err
	}

	src, err := sess.Graph.Resolve(ctx, getString(args, "source"))
	if err != nil {
		return nil, err
	}
	tgt, err := sess.Graph.Resolve(ctx, getString(args, "target"))
	if err != nil {
		return nil, err
	}

	maxLen := getInt(args, "max_length", 10)
	paths := algo.AllSimplePaths(sess.Graph.Snapshot(), src, tgt, maxLen)
	return map[string]interface{}{
		"graph":  sess.Name,
		"source": src,
		"target": tgt,
		"paths":  paths,
		"count":  len(paths),
	}, nil
}

func (s *Server) handlePageRank(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolPageRank)
	if err != nil {
		return nil, err
	}

	damping := getFloat64(args, "damping", 0.85)
	iterations := getInt(args, "iterations", 100)
	top := getInt(args, "top", 10)

	snap := sess.Graph.Snapshot()
	rank := algo.PageRank(snap, damping, iterations)

	type ranked struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	results := make([]ranked, 0, len(rank))
	for _, label := range snap.Nodes {
		results = append(results, ranked{Label: label, Score: rank[label]})
	}
	// Highest score first; creation order breaks ties.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	if len(results) > top {
		results = results[:top]
	}

	return map[string]interface{}{
		"graph":   sess.Name,
		"damping": damping,
		"ranks":   results,
	}, nil
}

func (s *Server) handleConnectedComponents(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolConnectedComponents)
	if err != nil {
		return nil, err
	}

	components := algo.WeaklyConnectedComponents(sess.Graph.Snapshot())
	return map[string]interface{}{
		"graph":      sess.Name,
		"components": components,
		"count":      len(components),
	}, nil
}

func (s *Server) handleFindCycles(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolFindCycles)
	if err != nil {
		return nil, err
	}

	cycles := algo.FindCycles(sess.Graph.Snapshot())
	return map[string]interface{}{
		"graph":  sess.Name,
		"cycles": cycles,
		"count":  len(cycles),
		"is_dag": len(cycles) == 0,
	}, nil
}

func (s *Server) handleTransitiveReduction(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolTransitiveReduction)
	if err != nil {
		return nil, err
	}

	snap := sess.Graph.Snapshot()
	reduced, ok := algo.TransitiveReduction(snap)
	if !ok {
		return nil, fmt.Errorf("transitive reduction requires an acyclic graph; run find_cycles to locate cycles")
	}

	edges := [][2]string{}
	removed := 0
	for _, src := range snap.Nodes {
		kept := make(map[string]bool, len(reduced[src]))
		for _, tgt := range reduced[src] {
			kept[tgt] = true
			edges = append(edges, [2]string{src, tgt})
		}
		for _, tgt := range snap.Out[src] {
			if !kept[tgt] {
				removed++
			}
		}
	}

	return map[string]interface{}{
		"graph":         sess.Name,
		"edges":         edges,
		"edges_removed": removed,
	}, nil
}

func (s *Server) handleDegreeCentrality(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolDegreeCentrality)
	if err != nil {
		return nil, err
	}

	centrality := algo.DegreeCentrality(sess.Graph.Snapshot())
	return map[string]interface{}{
		"graph":      sess.Name,
		"centrality": centrality,
	}, nil
}

func (s *Server) handleSubgraph(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sess, err := s.analysisSession(args, ToolSubgraph)
	if err != nil {
		return nil, err
	}

	center, err := sess.Graph.Resolve(ctx, getString(args, "center"))
	if err != nil {
		return nil, err
	}
	depth := getInt(args, "depth", 1)

	sub := algo.Subgraph(sess.Graph.Snapshot(), center, depth)

	edges := [][2]string{}
	for _, src := range sub.Nodes {
		for _, tgt := range sub.Out[src] {
			edges = append(edges, [2]string{src, tgt})
		}
	}

	return map[string]interface{}{
		"graph":  sess.Name,
		"center": center,
		"depth":  depth,
		"nodes":  sub.Nodes,
		"edges":  edges,
	}, nil
}

func (s *Server) handleAskGraph(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	question := getString(args, "question")
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	answer, err := query.Ask(ctx, sess.Graph, question)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"graph":  sess.Name,
		"answer": answer,
	}, nil
}

func (s *Server) handleDumpContext(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sess := s.store.GetOrCreate(getString(args, "graph"))
	return map[string]interface{}{
		"graph":   sess.Name,
		"context": query.DumpContext(sess.Name, sess.Graph),
	}, nil
}

// =============================================================================
// Import / Export Handlers
// =============================================================================

func (s *Server) handleImportGraph(_ context.Context, args map[string]interface{}) (interface{}, error) {
	format := getString(args, "format")
	data := getString(args, "data")
	if format == "" || data == "" {
		return nil, fmt.Errorf("format and data are required")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	result, err := export.Import(sess.Graph, export.Format(format), data)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"graph":       sess.Name,
		"nodes_added": result.NodesAdded,
		"edges_added": result.EdgesAdded,
	}, nil
}

func (s *Server) handleExportGraph(_ context.Context, args map[string]interface{}) (interface{}, error) {
	format := getString(args, "format")
	if format == "" {
		format = string(export.FormatJSON)
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	out, err := export.Export(sess.Graph, export.Format(format))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"graph":  sess.Name,
		"format": format,
		"data":   out,
	}, nil
}

func (s *Server) handleCreateFromMermaid(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	text := getString(args, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	facts, parseErrs := knowledge.ParseMermaid(text)
	if len(facts) == 0 {
		if len(parseErrs) > 0 {
			return nil, fmt.Errorf("no edges parsed: %s", parseErrs[0].Error())
		}
		return nil, fmt.Errorf("no edges found in mermaid text")
	}

	sess := s.store.GetOrCreate(getString(args, "graph"))
	outcomes, nodesAdded, edgesAdded, err := applyFacts(ctx, sess, facts)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"graph":       sess.Name,
		"facts":       outcomes,
		"nodes_added": nodesAdded,
		"edges_added": edgesAdded,
	}
	if len(parseErrs) > 0 {
		result["parse_errors"] = parseErrs
	}
	return result, nil
}
