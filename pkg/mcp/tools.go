// Tool definitions for the Munin MCP server.
package mcp

import (
	"encoding/json"
)

// Tool name constants, used as dispatch-table keys.
const (
	ToolAddFacts            = "add_facts"
	ToolAddKnowledge        = "add_knowledge"
	ToolAddNodes            = "add_nodes"
	ToolAddRelationship     = "add_relationship"
	ToolFindNode            = "find_node"
	ToolListNodes           = "list_nodes"
	ToolListGraphs          = "list_graphs"
	ToolDeleteGraph         = "delete_graph"
	ToolGetGraphInfo        = "get_graph_info"
	ToolForget              = "forget"
	ToolForgetRelationship  = "forget_relationship"
	ToolShortestPath        = "shortest_path"
	ToolAllPaths            = "all_paths"
	ToolPageRank            = "pagerank"
	ToolConnectedComponents = "connected_components"
	ToolFindCycles          = "find_cycles"
	ToolTransitiveReduction = "transitive_reduction"
	ToolDegreeCentrality    = "degree_centrality"
	ToolSubgraph            = "subgraph"
	ToolAskGraph            = "ask_graph"
	ToolDumpContext         = "dump_context"
	ToolImportGraph         = "import_graph"
	ToolExportGraph         = "export_graph"
	ToolCreateFromMermaid   = "create_from_mermaid"
)

// toolDef builds a Tool from an inline schema map.
func toolDef(name, description string, properties map[string]interface{}, required ...string) Tool {
	if required == nil {
		required = []string{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{Name: name, Description: description, InputSchema: schemaJSON}
}

// graphProp is the schema for the optional graph selector every tool takes.
func graphProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Named graph to operate on. Defaults to \"default\". Created lazily on first write.",
	}
}

// GetToolDefinitions returns all MCP tool definitions with JSON schemas.
//
// Every tool that names a node runs the label through tiered resolution
// (exact, then normalized, then embedding similarity), so callers can use
// approximate names. Responses always report the canonical labels actually
// used.
func GetToolDefinitions() []Tool {
	return []Tool{
		toolDef(ToolAddFacts,
			`Add subject-relation-object facts to the graph. Nodes are created as needed
(exact and normalized duplicates merge; creation never fuzzy-matches).

Examples:
- add_facts(facts=[["AuthService","depends_on","Database"]])
- add_facts(facts=[{"source":"WebApp","relation":"calls","target":"AuthService"}], graph="project-x")`,
			map[string]interface{}{
				"facts": map[string]interface{}{
					"type":        "array",
					"description": "Facts as [source, relation, target] triples or {source, relation, target} objects.",
					"items":       map[string]interface{}{},
				},
				"graph": graphProp(),
			}, "facts"),

		toolDef(ToolAddKnowledge,
			`Add facts in bulk from triple-per-line text. Each line is "Subject relation Object"
with shell-style quoting for multi-word labels, optional "label:type" hints, and
# comments.

Example:
- add_knowledge(text="AuthService:service depends_on Database:storage\n\"Web App\" calls AuthService")`,
			map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Triple-per-line knowledge text.",
				},
				"graph": graphProp(),
			}, "text"),

		toolDef(ToolAddNodes,
			`Add nodes without relationships. Accepts plain label strings or
{label, type, properties} objects. Duplicate labels (exact or normalized)
merge into the existing node.

Example:
- add_nodes(nodes=["AuthService", {"label":"Database","type":"storage"}])`,
			map[string]interface{}{
				"nodes": map[string]interface{}{
					"type":        "array",
					"description": "Labels or {label, type, properties} objects.",
					"items":       map[string]interface{}{},
				},
				"graph": graphProp(),
			}, "nodes"),

		toolDef(ToolAddRelationship,
			`Connect two EXISTING nodes. Unlike add_facts, endpoints are not created:
each is resolved through the full matcher (exact, normalized, then embedding
similarity), so approximate names work. A name matching nothing fails with
example labels; a name matching several nodes too closely fails with the
candidates. The response reports the canonical labels actually connected.

Example:
- add_relationship(source="auth service", target="user repo", relation="depends_on")`,
			map[string]interface{}{
				"source":   map[string]interface{}{"type": "string"},
				"target":   map[string]interface{}{"type": "string"},
				"relation": map[string]interface{}{"type": "string"},
				"properties": map[string]interface{}{
					"type":        "object",
					"description": "Freeform edge properties.",
				},
				"graph": graphProp(),
			}, "source", "target", "relation"),

		toolDef(ToolFindNode,
			`Search for a node by approximate name. Exact and normalized hits return the
single match at similarity 1.0; embedding hits return the match with its score;
ambiguous queries return every close candidate; no match returns an empty list.
Never an error.`,
			map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The label to search for.",
				},
				"graph": graphProp(),
			}, "query"),

		toolDef(ToolListNodes,
			`List nodes in creation order, optionally filtered by type.`,
			map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Only nodes of this type.",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum nodes returned.",
					"default":     100,
				},
				"graph": graphProp(),
			}),

		toolDef(ToolListGraphs,
			`List every named graph with node and edge counts.`,
			map[string]interface{}{}),

		toolDef(ToolDeleteGraph,
			`Delete a named graph and everything in it. Reports whether it existed.`,
			map[string]interface{}{
				"graph": map[string]interface{}{
					"type":        "string",
					"description": "The graph to delete.",
				},
			}, "graph"),

		toolDef(ToolGetGraphInfo,
			`Get stats for a graph: node/edge counts, node types, relation types.
Fails (rather than creating the graph) when it does not exist.`,
			map[string]interface{}{
				"graph": graphProp(),
			}),

		toolDef(ToolForget,
			`Remove a node and every edge touching it. The name is resolved like any
query; an ambiguous name is refused with the candidate list.`,
			map[string]interface{}{
				"label": map[string]interface{}{
					"type":        "string",
					"description": "The node to remove (approximate names allowed).",
				},
				"graph": graphProp(),
			}, "label"),

		toolDef(ToolForgetRelationship,
			`Remove the edge between two nodes. Endpoints are resolved like any query.`,
			map[string]interface{}{
				"source": map[string]interface{}{"type": "string"},
				"target": map[string]interface{}{"type": "string"},
				"graph":  graphProp(),
			}, "source", "target"),

		toolDef(ToolShortestPath,
			`Find the fewest-hops directed path between two nodes.`,
			map[string]interface{}{
				"source": map[string]interface{}{"type": "string"},
				"target": map[string]interface{}{"type": "string"},
				"graph":  graphProp(),
			}, "source", "target"),

		toolDef(ToolAllPaths,
			`Find every simple directed path between two nodes.`,
			map[string]interface{}{
				"source": map[string]interface{}{"type": "string"},
				"target": map[string]interface{}{"type": "string"},
				"max_length": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum nodes per path. 0 means unbounded.",
					"default":     10,
				},
				"graph": graphProp(),
			}, "source", "target"),

		toolDef(ToolPageRank,
			`Rank nodes by PageRank (damping 0.85 unless overridden).`,
			map[string]interface{}{
				"damping":    map[string]interface{}{"type": "number", "default": 0.85},
				"iterations": map[string]interface{}{"type": "integer", "default": 100},
				"top": map[string]interface{}{
					"type":        "integer",
					"description": "Return only the N highest-ranked nodes.",
					"default":     10,
				},
				"graph": graphProp(),
			}),

		toolDef(ToolConnectedComponents,
			`List weakly connected components, largest first.`,
			map[string]interface{}{
				"graph": graphProp(),
			}),

		toolDef(ToolFindCycles,
			`Find elementary cycles (circular dependency chains).`,
			map[string]interface{}{
				"graph": graphProp(),
			}),

		toolDef(ToolTransitiveReduction,
			`Compute the transitive reduction: the minimal edge set with the same
reachability. Only defined for acyclic graphs.`,
			map[string]interface{}{
				"graph": graphProp(),
			}),

		toolDef(ToolDegreeCentrality,
			`Rank nodes by degree (in + out edges).`,
			map[string]interface{}{
				"graph": graphProp(),
			}),

		toolDef(ToolSubgraph,
			`Extract the neighborhood around a node: everything within N hops,
following edges in both directions.`,
			map[string]interface{}{
				"center": map[string]interface{}{
					"type":        "string",
					"description": "The node at the middle (approximate names allowed).",
				},
				"depth": map[string]interface{}{
					"type":    "integer",
					"default": 1,
				},
				"graph": graphProp(),
			}, "center"),

		toolDef(ToolAskGraph,
			`Ask a question in plain words. Supported shapes: "what depends on X",
"what does X depend on", "dependencies/dependents of X", "(shortest) path
from X to Y", "all paths from X to Y", "cycles", "most connected",
"orphans", "components". Unknown phrasings fail with the pattern list.`,
			map[string]interface{}{
				"question": map[string]interface{}{"type": "string"},
				"graph":    graphProp(),
			}, "question"),

		toolDef(ToolDumpContext,
			`Render a markdown summary of the whole graph, sized for an LLM context
window: stats, nodes by type, relationships, hubs, orphans, cycles.`,
			map[string]interface{}{
				"graph": graphProp(),
			}),

		toolDef(ToolImportGraph,
			`Merge a serialized graph into this one. Formats: json, dot, csv, graphml.
Labels in the payload are used as-is (no fuzzy resolution).`,
			map[string]interface{}{
				"format": map[string]interface{}{
					"type": "string",
					"enum": []string{"json", "dot", "csv", "graphml"},
				},
				"data":  map[string]interface{}{"type": "string"},
				"graph": graphProp(),
			}, "format", "data"),

		toolDef(ToolExportGraph,
			`Serialize the graph. Formats: json, dot, csv, mermaid, graphml.`,
			map[string]interface{}{
				"format": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"json", "dot", "csv", "mermaid", "graphml"},
					"default": "json",
				},
				"graph": graphProp(),
			}),

		toolDef(ToolCreateFromMermaid,
			`Build graph facts from Mermaid flowchart text. Edge labels become
relations (default "relates_to"); node shape labels become node labels.

Example:
- create_from_mermaid(text="graph TD\n  auth[Auth Service] -->|uses| db[Postgres]")`,
			map[string]interface{}{
				"text":  map[string]interface{}{"type": "string"},
				"graph": graphProp(),
			}, "text"),
	}
}
