package export

import (
	"encoding/xml"
	"fmt"

	"github.com/orneryd/munin/pkg/graph"
)

// GraphML interchange, the minimal profile: one <graph> with <node> and
// <edge> elements, node type and edge relation carried as <data> keys.

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

const (
	graphmlXmlns = "http://graphml.graphdrawing.org/xmlns"
	keyNodeType  = "d0"
	keyEdgeRel   = "d1"
)

// ExportGraphML serializes the graph as a GraphML document. Node labels are
// the node ids.
func ExportGraphML(g *graph.Graph) (string, error) {
	doc := graphmlDoc{
		Xmlns: graphmlXmlns,
		Keys: []graphmlKey{
			{ID: keyNodeType, For: "node", Name: "type", Type: "string"},
			{ID: keyEdgeRel, For: "edge", Name: "relation", Type: "string"},
		},
		Graph: graphmlGraph{ID: "G", EdgeDefault: "directed"},
	}

	for _, node := range g.Nodes() {
		n := graphmlNode{ID: node.Label}
		if node.Type != "" {
			n.Data = append(n.Data, graphmlData{Key: keyNodeType, Value: node.Type})
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, n)
	}
	for _, edge := range g.Edges() {
		doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
			Source: edge.Source,
			Target: edge.Target,
			Data:   []graphmlData{{Key: keyEdgeRel, Value: edge.Relation}},
		})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal GraphML: %w", err)
	}
	return xml.Header + string(data) + "\n", nil
}

// ImportGraphML merges a GraphML document into g. Unknown <data> keys are
// ignored; documents written by other tools import with node ids as labels.
func ImportGraphML(g *graph.Graph, data string) (ImportResult, error) {
	var parsed graphmlDoc
	if err := xml.Unmarshal([]byte(data), &parsed); err != nil {
		return ImportResult{}, fmt.Errorf("invalid GraphML: %w", err)
	}

	// Map declared attr names to key ids so documents with different key
	// numbering still carry their types and relations across.
	typeKey, relKey := keyNodeType, keyEdgeRel
	for _, k := range parsed.Keys {
		switch {
		case k.For == "node" && k.Name == "type":
			typeKey = k.ID
		case k.For == "edge" && k.Name == "relation":
			relKey = k.ID
		}
	}

	doc := Document{}
	for _, n := range parsed.Graph.Nodes {
		node := DocumentNode{Label: n.ID}
		for _, d := range n.Data {
			if d.Key == typeKey {
				node.Type = d.Value
			}
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	for _, e := range parsed.Graph.Edges {
		edge := DocumentEdge{Source: e.Source, Target: e.Target, Relation: "relates_to"}
		for _, d := range e.Data {
			if d.Key == relKey && d.Value != "" {
				edge.Relation = d.Value
			}
		}
		doc.Edges = append(doc.Edges, edge)
	}
	return applyDocument(g, doc)
}
