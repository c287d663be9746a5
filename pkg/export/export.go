// Package export serializes graphs to interchange formats and merges
// serialized graphs back in.
//
// Export: JSON, DOT, CSV, Mermaid, GraphML. Import: JSON, DOT (the subset
// DOT export emits), CSV, GraphML. Import works purely on the labels in the
// payload; no fuzzy resolution happens here.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orneryd/munin/pkg/graph"
)

// Format names a supported interchange format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatDOT     Format = "dot"
	FormatCSV     Format = "csv"
	FormatMermaid Format = "mermaid"
	FormatGraphML Format = "graphml"
)

// ExportFormats lists the formats Export accepts.
func ExportFormats() []Format {
	return []Format{FormatJSON, FormatDOT, FormatCSV, FormatMermaid, FormatGraphML}
}

// ImportFormats lists the formats Import accepts.
func ImportFormats() []Format {
	return []Format{FormatJSON, FormatDOT, FormatCSV, FormatGraphML}
}

// Export serializes g in the named format.
func Export(g *graph.Graph, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return ExportJSON(g)
	case FormatDOT:
		return ExportDOT(g), nil
	case FormatCSV:
		return ExportCSV(g)
	case FormatMermaid:
		return ExportMermaid(g), nil
	case FormatGraphML:
		return ExportGraphML(g)
	default:
		return "", fmt.Errorf("unknown export format %q (supported: %v)", format, ExportFormats())
	}
}

// ImportResult counts what an import added.
type ImportResult struct {
	NodesAdded int `json:"nodes_added"`
	EdgesAdded int `json:"edges_added"`
}

// Import merges data in the named format into g. Existing nodes and edges
// are kept; colliding edges are overwritten per the graph's re-add rule.
func Import(g *graph.Graph, format Format, data string) (ImportResult, error) {
	switch format {
	case FormatJSON:
		return ImportJSON(g, data)
	case FormatDOT:
		return ImportDOT(g, data)
	case FormatCSV:
		return ImportCSV(g, data)
	case FormatGraphML:
		return ImportGraphML(g, data)
	default:
		return ImportResult{}, fmt.Errorf("unknown import format %q (supported: %v)", format, ImportFormats())
	}
}

// ============================================================================
// JSON
// ============================================================================

// Document is the JSON interchange shape.
type Document struct {
	Nodes []DocumentNode `json:"nodes"`
	Edges []DocumentEdge `json:"edges"`
}

type DocumentNode struct {
	Label      string                 `json:"label"`
	Type       string                 `json:"type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type DocumentEdge struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Relation   string                 `json:"relation"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Snapshot converts a graph to the interchange document.
func Snapshot(g *graph.Graph) Document {
	doc := Document{Nodes: []DocumentNode{}, Edges: []DocumentEdge{}}
	for _, node := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, DocumentNode{
			Label:      node.Label,
			Type:       node.Type,
			Properties: node.Properties,
		})
	}
	for _, edge := range g.Edges() {
		doc.Edges = append(doc.Edges, DocumentEdge{
			Source:     edge.Source,
			Target:     edge.Target,
			Relation:   edge.Relation,
			Properties: edge.Properties,
		})
	}
	return doc
}

// ExportJSON serializes the graph as an indented JSON document.
func ExportJSON(g *graph.Graph) (string, error) {
	data, err := json.MarshalIndent(Snapshot(g), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal graph: %w", err)
	}
	return string(data), nil
}

// ImportJSON merges a JSON document into g.
func ImportJSON(g *graph.Graph, data string) (ImportResult, error) {
	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return ImportResult{}, fmt.Errorf("invalid JSON document: %w", err)
	}
	return applyDocument(g, doc)
}

// applyDocument merges a document: nodes first, then edges between them.
func applyDocument(g *graph.Graph, doc Document) (ImportResult, error) {
	var result ImportResult
	for _, n := range doc.Nodes {
		if n.Label == "" {
			continue
		}
		if g.AddNode(n.Label, n.Type, n.Properties).Created {
			result.NodesAdded++
		}
	}
	for _, e := range doc.Edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		// Imported edges may reference nodes the document never declared.
		if g.AddNode(e.Source, "", nil).Created {
			result.NodesAdded++
		}
		if g.AddNode(e.Target, "", nil).Created {
			result.NodesAdded++
		}
		relation := e.Relation
		if relation == "" {
			relation = "relates_to"
		}
		added, err := g.AddEdge(context.Background(), e.Source, e.Target, relation, e.Properties)
		if err != nil {
			return result, fmt.Errorf("failed to import edge %s->%s: %w", e.Source, e.Target, err)
		}
		if added.Created {
			result.EdgesAdded++
		}
	}
	return result, nil
}

// ============================================================================
// DOT
// ============================================================================

// ExportDOT serializes the graph in Graphviz DOT syntax.
func ExportDOT(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, node := range g.Nodes() {
		if node.Type != "" {
			fmt.Fprintf(&b, "  %s [label=%s, type=%s];\n",
				dotQuote(node.Label), dotQuote(node.Label), dotQuote(node.Type))
		} else {
			fmt.Fprintf(&b, "  %s;\n", dotQuote(node.Label))
		}
	}
	for _, edge := range g.Edges() {
		fmt.Fprintf(&b, "  %s -> %s [label=%s];\n",
			dotQuote(edge.Source), dotQuote(edge.Target), dotQuote(edge.Relation))
	}
	b.WriteString("}\n")
	return b.String()
}

func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ImportDOT merges the DOT subset ExportDOT emits: node statements and
// "a" -> "b" [label="rel"] edge statements inside a digraph block.
func ImportDOT(g *graph.Graph, data string) (ImportResult, error) {
	doc := Document{}
	foundGraph := false

	for _, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ";"))
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "digraph") || strings.HasPrefix(line, "graph") {
			foundGraph = true
			continue
		}
		if line == "}" || strings.HasPrefix(line, "rankdir") {
			continue
		}

		if strings.Contains(line, "->") {
			parts := strings.SplitN(line, "->", 2)
			source := dotUnquote(strings.TrimSpace(parts[0]))
			rest := strings.TrimSpace(parts[1])
			relation := "relates_to"
			if idx := strings.Index(rest, "["); idx >= 0 {
				attrs := rest[idx:]
				rest = strings.TrimSpace(rest[:idx])
				if label, ok := dotAttr(attrs, "label"); ok {
					relation = label
				}
			}
			target := dotUnquote(rest)
			if source == "" || target == "" {
				continue
			}
			doc.Edges = append(doc.Edges, DocumentEdge{Source: source, Target: target, Relation: relation})
			continue
		}

		// Node statement, with or without attributes.
		nodeType := ""
		label := line
		if idx := strings.Index(line, "["); idx >= 0 {
			attrs := line[idx:]
			label = strings.TrimSpace(line[:idx])
			if typ, ok := dotAttr(attrs, "type"); ok {
				nodeType = typ
			}
		}
		if label = dotUnquote(label); label != "" {
			doc.Nodes = append(doc.Nodes, DocumentNode{Label: label, Type: nodeType})
		}
	}

	if !foundGraph {
		return ImportResult{}, fmt.Errorf("not a DOT document: no digraph block found")
	}
	return applyDocument(g, doc)
}

func dotUnquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}

// dotAttr pulls a single attribute value out of a [key=value, ...] block.
func dotAttr(attrs, key string) (string, bool) {
	idx := strings.Index(attrs, key+"=")
	if idx < 0 {
		return "", false
	}
	rest := attrs[idx+len(key)+1:]
	if strings.HasPrefix(rest, `"`) {
		if end := strings.Index(rest[1:], `"`); end >= 0 {
			return strings.ReplaceAll(rest[1:end+1], `\"`, `"`), true
		}
		return "", false
	}
	end := strings.IndexAny(rest, ",]")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// ============================================================================
// CSV
// ============================================================================

// ExportCSV serializes the graph as "source,relation,target" rows. Orphan
// nodes get a row with empty relation and target so they survive round
// trips.
func ExportCSV(g *graph.Graph) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write([]string{"source", "relation", "target"}); err != nil {
		return "", err
	}

	connected := make(map[string]bool)
	for _, edge := range g.Edges() {
		if err := w.Write([]string{edge.Source, edge.Relation, edge.Target}); err != nil {
			return "", err
		}
		connected[edge.Source] = true
		connected[edge.Target] = true
	}
	for _, node := range g.Nodes() {
		if !connected[node.Label] {
			if err := w.Write([]string{node.Label, "", ""}); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return b.String(), w.Error()
}

// ImportCSV merges "source,relation,target" rows into g. A header row is
// detected and skipped; rows with an empty relation declare a bare node.
func ImportCSV(g *graph.Graph, data string) (ImportResult, error) {
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("invalid CSV: %w", err)
	}

	doc := Document{}
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(row[0], "source") {
			continue
		}
		if len(row) < 3 || row[1] == "" || row[2] == "" {
			doc.Nodes = append(doc.Nodes, DocumentNode{Label: row[0]})
			continue
		}
		doc.Edges = append(doc.Edges, DocumentEdge{Source: row[0], Relation: row[1], Target: row[2]})
	}
	return applyDocument(g, doc)
}

// ============================================================================
// Mermaid
// ============================================================================

// ExportMermaid serializes the graph as a flowchart. Node ids are synthetic
// (n0, n1, ...) with display labels, so labels may contain any characters.
func ExportMermaid(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	ids := make(map[string]string)
	for i, node := range g.Nodes() {
		id := fmt.Sprintf("n%d", i)
		ids[node.Label] = id
		fmt.Fprintf(&b, "    %s[%s]\n", id, mermaidEscape(node.Label))
	}
	for _, edge := range g.Edges() {
		fmt.Fprintf(&b, "    %s -->|%s| %s\n",
			ids[edge.Source], mermaidEscape(edge.Relation), ids[edge.Target])
	}
	return b.String()
}

func mermaidEscape(s string) string {
	s = strings.ReplaceAll(s, "]", ")")
	s = strings.ReplaceAll(s, "[", "(")
	return strings.ReplaceAll(s, "|", "/")
}
