package graph

import (
	"time"
)

// Node is a labeled entity in the graph. The label is the node's identity;
// Type and Properties are freeform caller metadata.
type Node struct {
	Label      string                 `json:"label"`
	Type       string                 `json:"type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Edge is a directed, typed relationship between two nodes. At most one edge
// exists per ordered (Source, Target) pair.
type Edge struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Relation   string                 `json:"relation"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Stats summarizes a graph.
type Stats struct {
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	NodeTypes map[string]int `json:"node_types,omitempty"`
	Relations map[string]int `json:"relations,omitempty"`
}

// AddNodeResult reports what AddNode did.
type AddNodeResult struct {
	Node    *Node `json:"node"`
	Created bool  `json:"created"`
}

// AddEdgeResult reports the canonical endpoints AddEdge actually connected,
// which may differ from the query labels when fuzzy matching substituted.
type AddEdgeResult struct {
	Edge          *Edge `json:"edge"`
	Created       bool  `json:"created"`
	SourceMatched bool  `json:"source_matched"` // true when source was fuzzy-substituted
	TargetMatched bool  `json:"target_matched"`
}

// FindResult is one scored hit from FindNode.
type FindResult struct {
	Node       *Node   `json:"node"`
	Similarity float64 `json:"similarity"`
	Exact      bool    `json:"exact"`
}

// MutationEvent names a graph change for observers.
type MutationEvent string

const (
	EventNodeAdded   MutationEvent = "node_added"
	EventEdgeAdded   MutationEvent = "edge_added"
	EventNodeRemoved MutationEvent = "node_removed"
	EventEdgeRemoved MutationEvent = "edge_removed"
)

// MutationHook observes graph changes. Payload shape depends on the event;
// labels in it are always canonical. Called synchronously after the mutation
// commits, outside the graph lock.
type MutationHook func(event MutationEvent, payload map[string]interface{})
