// Package knowledge parses bulk-ingestion text formats into facts the graph
// layer can apply.
//
// Two formats are supported: a line-oriented triple DSL (one
// "Subject relation Object" per line, shell-style quoting) and Mermaid
// flowchart syntax.
package knowledge

import (
	"fmt"
	"strings"
)

// Fact is one parsed subject-relation-object triple. Types are optional
// hints attached with "label:type".
type Fact struct {
	Subject     string `json:"subject"`
	SubjectType string `json:"subject_type,omitempty"`
	Relation    string `json:"relation"`
	Object      string `json:"object"`
	ObjectType  string `json:"object_type,omitempty"`
}

// LineError reports a line that failed to parse. Parsing continues past it.
type LineError struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s (%q)", e.Line, e.Message, e.Text)
}

// ParseDSL parses triple-per-line knowledge text:
//
//	AuthService depends_on Database
//	"Auth Service" uses "Redis Cache"
//	AuthService:service runs_on Kubernetes:platform   # trailing comment
//
// Quoting follows shell rules: double or single quotes group words, and a
// quoted token may contain '#'. A '#' outside quotes starts a comment. Blank
// and comment-only lines are skipped. Lines that are not exactly three
// tokens are reported as errors; good lines still parse.
func ParseDSL(text string) ([]Fact, []LineError) {
	var facts []Fact
	var errs []LineError

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		tokens, err := splitShell(raw)
		if err != nil {
			errs = append(errs, LineError{Line: lineNo, Text: strings.TrimSpace(raw), Message: err.Error()})
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) != 3 {
			errs = append(errs, LineError{
				Line:    lineNo,
				Text:    strings.TrimSpace(raw),
				Message: fmt.Sprintf("expected 3 tokens (subject relation object), got %d", len(tokens)),
			})
			continue
		}

		subject, subjectType := splitTypeHint(tokens[0])
		object, objectType := splitTypeHint(tokens[2])
		if subject == "" || tokens[1] == "" || object == "" {
			errs = append(errs, LineError{
				Line:    lineNo,
				Text:    strings.TrimSpace(raw),
				Message: "empty subject, relation, or object",
			})
			continue
		}

		facts = append(facts, Fact{
			Subject:     subject,
			SubjectType: subjectType,
			Relation:    tokens[1],
			Object:      object,
			ObjectType:  objectType,
		})
	}
	return facts, errs
}

// splitTypeHint splits "label:type" into its parts. Only the last colon
// counts, so "http://x:service" keeps its URL intact.
func splitTypeHint(token string) (label, typ string) {
	idx := strings.LastIndex(token, ":")
	if idx <= 0 || idx == len(token)-1 {
		return token, ""
	}
	return token[:idx], token[idx+1:]
}

// splitShell tokenizes a line with shell-style quoting. A '#' outside quotes
// discards the rest of the line.
func splitShell(line string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false
	var quote rune // 0 when unquoted

	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == '#':
			flush()
			return tokens, nil
		case r == ' ' || r == '\t' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unclosed quote")
	}
	flush()
	return tokens, nil
}
