package knowledge

import (
	"regexp"
	"strings"
)

// DefaultRelation is used for Mermaid edges with no label.
const DefaultRelation = "relates_to"

// nodeToken matches a Mermaid node reference: an id optionally followed by a
// shape with a display label, e.g. auth[Auth Service], db(Postgres),
// gate{Allowed?}.
var nodeToken = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*(?:\[([^\]]*)\]|\(([^)]*)\)|\{([^}]*)\})?$`)

// ParseMermaid extracts facts from Mermaid flowchart text:
//
//	graph TD
//	    auth[Auth Service] -->|depends on| db[(ignored shapes fall back to id)]
//	    auth --> cache
//	    web -- calls --> auth
//
// Display labels from node shapes become the fact labels; bare ids are used
// as-is. Edge labels become relations; unlabeled edges get DefaultRelation.
// Chains (a --> b --> c) produce one fact per hop. Header lines (graph,
// flowchart), %% comments, and unparseable lines are skipped or reported.
func ParseMermaid(text string) ([]Fact, []LineError) {
	var facts []Fact
	var errs []LineError
	labels := make(map[string]string) // node id -> display label

	resolve := func(token string) (string, bool) {
		m := nodeToken.FindStringSubmatch(strings.TrimSpace(token))
		if m == nil {
			return "", false
		}
		id := m[1]
		display := m[2] + m[3] + m[4]
		if display != "" {
			labels[id] = display
		}
		if known, ok := labels[id]; ok {
			return known, true
		}
		return id, true
	}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if line == "" || strings.HasPrefix(line, "%%") ||
			strings.HasPrefix(line, "```") {
			continue
		}
		first := strings.Fields(line)[0]
		if first == "graph" || first == "flowchart" || first == "subgraph" ||
			first == "end" || first == "direction" {
			continue
		}

		if !strings.Contains(line, "-->") {
			// Standalone node declaration registers a display label.
			if _, ok := resolve(line); !ok {
				errs = append(errs, LineError{Line: lineNo, Text: line, Message: "unrecognized mermaid syntax"})
			}
			continue
		}

		// Each segment between arrows is a node, possibly carrying edge
		// labels: a leading "|label|" belongs to the arrow arriving at it,
		// a trailing "-- label" to the arrow leaving it.
		segments := strings.Split(line, "-->")
		nodes := make([]string, len(segments))
		arriving := make([]string, len(segments))
		leaving := make([]string, len(segments))

		bad := false
		for j, seg := range segments {
			seg = strings.TrimSpace(seg)

			if strings.HasPrefix(seg, "|") {
				if end := strings.Index(seg[1:], "|"); end >= 0 {
					arriving[j] = strings.TrimSpace(seg[1 : end+1])
					seg = strings.TrimSpace(seg[end+2:])
				}
			}
			if idx := strings.Index(seg, "--"); idx >= 0 {
				leaving[j] = strings.TrimSpace(seg[idx+2:])
				seg = strings.TrimSpace(seg[:idx])
			}

			label, ok := resolve(seg)
			if !ok {
				bad = true
				break
			}
			nodes[j] = label
		}
		if bad {
			errs = append(errs, LineError{Line: lineNo, Text: line, Message: "unrecognized mermaid syntax"})
			continue
		}

		for j := 0; j < len(nodes)-1; j++ {
			relation := DefaultRelation
			if arriving[j+1] != "" {
				relation = arriving[j+1]
			} else if leaving[j] != "" {
				relation = leaving[j]
			}
			facts = append(facts, Fact{
				Subject:  nodes[j],
				Relation: relation,
				Object:   nodes[j+1],
			})
		}
	}
	return facts, errs
}
