// Package match implements Munin's tiered label resolution: the machinery
// that lets an agent say "auth service" and land on the node actually named
// "AuthService".
//
// Resolution runs three tiers in order, stopping at the first hit:
//
//  1. Exact: the query string is a node label, byte for byte.
//  2. Normalized: lowercase + strip punctuation + drop whitespace. Catches
//     "Auth-Service" vs "auth service" vs "AuthService".
//  3. Embedding: cosine similarity over label embeddings. Catches genuine
//     paraphrases like "login controller" vs "AuthenticationController".
//
// The embedding tier carries an ambiguity guard: when several labels score
// within a narrow window of the best, resolution refuses to pick one and
// instead surfaces the candidates so the caller (usually an AI agent) can
// disambiguate.
//
// Resolve never returns an error. A failed lookup is an unresolved
// MatchResult, not a failure: the caller's policy decides what happens next.
package match

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a label for tier-2 matching: lowercase, strip
// everything that is not a letter, digit, or space, then drop the spaces.
//
// "Auth-Service", "auth service", and "AuthService" all normalize to
// "authservice".
func Normalize(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
