package match

import (
	"context"
	"sort"

	"github.com/orneryd/munin/pkg/embed"
	"github.com/orneryd/munin/pkg/math/vector"
)

// Default resolution thresholds. Tuned against mxbai-embed-large; other
// models may want different values via Config.
const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for the
	// embedding tier to consider a label a candidate.
	DefaultSimilarityThreshold = 0.75

	// DefaultAmbiguityWindow is how close to the top score another
	// candidate must be to make the match ambiguous.
	DefaultAmbiguityWindow = 0.05

	// DefaultMaxCandidates caps the candidate list reported on an
	// ambiguous or failed match.
	DefaultMaxCandidates = 5
)

// Config holds the tunable thresholds for the embedding tier.
type Config struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	AmbiguityWindow     float64 `yaml:"ambiguity_window"`
	MaxCandidates       int     `yaml:"max_candidates"`
}

// DefaultConfig returns the standard resolution thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		AmbiguityWindow:     DefaultAmbiguityWindow,
		MaxCandidates:       DefaultMaxCandidates,
	}
}

// Candidate is one scored alternative from the embedding tier.
type Candidate struct {
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
}

// MatchResult describes the outcome of resolving a query label.
//
// Resolved() distinguishes three shapes:
//   - resolved: MatchedLabel set; Exact and Similarity say how it was found
//   - ambiguous: MatchedLabel empty, multiple Candidates within the window
//   - no match: MatchedLabel empty, Candidates empty or below threshold
type MatchResult struct {
	Query        string      `json:"query"`
	MatchedLabel string      `json:"matched_label,omitempty"`
	Exact        bool        `json:"exact"`
	Similarity   float64     `json:"similarity"`
	Candidates   []Candidate `json:"candidates,omitempty"`
}

// Resolved reports whether the query landed on a single label.
func (r MatchResult) Resolved() bool {
	return r.MatchedLabel != ""
}

// Ambiguous reports whether the query matched several labels too closely to
// pick one.
func (r MatchResult) Ambiguous() bool {
	return r.MatchedLabel == "" && len(r.Candidates) > 1
}

// Matcher resolves query labels against a session's label cache.
//
// A Matcher never returns an error: provider outages and absent embedders
// degrade it to exact/normalized matching, and lookups that find nothing
// come back as unresolved results for the caller's policy to handle.
type Matcher struct {
	cache    *Cache
	embedder embed.Embedder
	config   Config
}

// NewMatcher creates a matcher over cache. embedder may be nil, which
// disables the embedding tier.
func NewMatcher(cache *Cache, embedder embed.Embedder, config Config) *Matcher {
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if config.AmbiguityWindow <= 0 {
		config.AmbiguityWindow = DefaultAmbiguityWindow
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = DefaultMaxCandidates
	}
	return &Matcher{
		cache:    cache,
		embedder: embedder,
		config:   config,
	}
}

// Resolve runs the three resolution tiers against the cached labels.
func (m *Matcher) Resolve(ctx context.Context, query string) MatchResult {
	result := MatchResult{Query: query}

	// Tier 1: exact.
	if m.cache.Has(query) {
		result.MatchedLabel = query
		result.Exact = true
		result.Similarity = 1.0
		return result
	}

	// Tier 2: normalized. Ties break toward the earliest created label.
	if bucket := m.cache.LookupNormalized(Normalize(query)); len(bucket) > 0 {
		result.MatchedLabel = bucket[0]
		result.Similarity = 1.0
		return result
	}

	// Tier 3: embedding cosine similarity.
	if m.embedder == nil {
		return result
	}

	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil || len(queryVec) == 0 {
		return result
	}

	var candidates []Candidate
	for _, label := range m.cache.Labels() {
		labelVec := m.cache.Embedding(ctx, m.embedder, label)
		if labelVec == nil {
			continue
		}
		sim := vector.CosineSimilarity(queryVec, labelVec)
		if sim >= m.config.SimilarityThreshold {
			candidates = append(candidates, Candidate{Label: label, Similarity: sim})
		}
	}

	if len(candidates) == 0 {
		return result
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > m.config.MaxCandidates {
		candidates = candidates[:m.config.MaxCandidates]
	}

	// Ambiguity guard: more than one candidate within the window of the
	// best score means we refuse to guess.
	best := candidates[0].Similarity
	inWindow := 0
	for _, c := range candidates {
		if best-c.Similarity <= m.config.AmbiguityWindow {
			inWindow++
		}
	}

	if inWindow > 1 {
		result.Candidates = candidates
		return result
	}

	result.MatchedLabel = candidates[0].Label
	result.Similarity = best
	return result
}

// Config returns the matcher's active thresholds.
func (m *Matcher) Config() Config {
	return m.config
}
