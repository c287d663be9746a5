package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/munin/pkg/graph"
	"github.com/orneryd/munin/pkg/graph/algo"
)

// DumpContext renders a markdown summary of a graph, sized for pasting into
// an LLM context window: stats, nodes grouped by type, the relationship
// list, hubs, orphans, and any cycles.
func DumpContext(name string, g *graph.Graph) string {
	var b strings.Builder
	stats := g.Stats()

	fmt.Fprintf(&b, "# Graph: %s\n\n", name)
	fmt.Fprintf(&b, "%d nodes, %d edges\n\n", stats.NodeCount, stats.EdgeCount)

	if stats.NodeCount == 0 {
		b.WriteString("The graph is empty.\n")
		return b.String()
	}

	b.WriteString("## Nodes\n\n")
	byType := make(map[string][]string)
	for _, node := range g.Nodes() {
		typ := node.Type
		if typ == "" {
			typ = "untyped"
		}
		byType[typ] = append(byType[typ], node.Label)
	}
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Fprintf(&b, "- **%s**: %s\n", typ, strings.Join(byType[typ], ", "))
	}
	b.WriteString("\n")

	if stats.EdgeCount > 0 {
		b.WriteString("## Relationships\n\n")
		for _, edge := range g.Edges() {
			fmt.Fprintf(&b, "- %s %s %s\n", edge.Source, edge.Relation, edge.Target)
		}
		b.WriteString("\n")
	}

	snap := g.Snapshot()

	centrality := algo.DegreeCentrality(snap)
	var hubs []string
	for _, c := range centrality {
		if c.Total >= 2 {
			hubs = append(hubs, fmt.Sprintf("%s (%d)", c.Label, c.Total))
		}
		if len(hubs) == 5 {
			break
		}
	}
	if len(hubs) > 0 {
		fmt.Fprintf(&b, "## Hubs\n\n%s\n\n", strings.Join(hubs, ", "))
	}

	if orphans := algo.Orphans(snap); len(orphans) > 0 {
		fmt.Fprintf(&b, "## Orphans\n\n%s\n\n", strings.Join(orphans, ", "))
	}

	if cycles := algo.FindCycles(snap); len(cycles) > 0 {
		b.WriteString("## Cycles\n\n")
		for _, cycle := range cycles {
			fmt.Fprintf(&b, "- %s\n", strings.Join(cycle, " -> "))
		}
		b.WriteString("\n")
	}

	return b.String()
}
