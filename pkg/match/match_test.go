package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder serves canned vectors from a map; unknown texts error.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return vec, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return 3 }
func (f *fixedEmbedder) Model() string   { return "fixed" }

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AuthService", "authservice"},
		{"auth service", "authservice"},
		{"Auth-Service", "authservice"},
		{"  Auth_Service!  ", "authservice"},
		{"auth   service", "authservice"},
		{"API-v2", "apiv2"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestCachePutRemove(t *testing.T) {
	cache := NewCache()

	cache.Put("AuthService")
	cache.Put("Database")
	cache.Put("AuthService") // duplicate, no-op

	assert.Equal(t, 2, cache.Len())
	assert.True(t, cache.Has("AuthService"))
	assert.Equal(t, []string{"AuthService", "Database"}, cache.Labels())

	cache.Remove("AuthService")
	assert.False(t, cache.Has("AuthService"))
	assert.Equal(t, []string{"Database"}, cache.Labels())

	// Removing an unknown label is harmless.
	cache.Remove("nope")
	assert.Equal(t, 1, cache.Len())
}

func TestCacheNormalizedCreationOrder(t *testing.T) {
	cache := NewCache()
	cache.Put("auth service")
	cache.Put("AuthService")

	bucket := cache.LookupNormalized("authservice")
	require.Equal(t, []string{"auth service", "AuthService"}, bucket,
		"normalized bucket must preserve creation order")

	cache.Remove("auth service")
	assert.Equal(t, []string{"AuthService"}, cache.LookupNormalized("authservice"))
}

func TestCacheEmbeddingMemoized(t *testing.T) {
	cache := NewCache()
	cache.Put("node")

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"node": {1, 0, 0},
	}}

	ctx := context.Background()
	vec := cache.Embedding(ctx, embedder, "node")
	require.Equal(t, []float32{1, 0, 0}, vec)

	// Second lookup is served from the cache even with a nil embedder.
	vec = cache.Embedding(ctx, nil, "node")
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestResolveExact(t *testing.T) {
	cache := NewCache()
	cache.Put("AuthService")

	m := NewMatcher(cache, nil, DefaultConfig())
	result := m.Resolve(context.Background(), "AuthService")

	assert.True(t, result.Resolved())
	assert.True(t, result.Exact)
	assert.Equal(t, "AuthService", result.MatchedLabel)
	assert.Equal(t, 1.0, result.Similarity)
}

func TestResolveNormalized(t *testing.T) {
	cache := NewCache()
	cache.Put("AuthService")

	m := NewMatcher(cache, nil, DefaultConfig())
	result := m.Resolve(context.Background(), "auth service")

	assert.True(t, result.Resolved())
	assert.False(t, result.Exact, "normalized matches are not exact")
	assert.Equal(t, "AuthService", result.MatchedLabel)
	assert.Equal(t, 1.0, result.Similarity)
}

func TestResolveNormalizedTieBreaksToOldest(t *testing.T) {
	cache := NewCache()
	cache.Put("auth-service")
	cache.Put("AuthService")

	m := NewMatcher(cache, nil, DefaultConfig())
	result := m.Resolve(context.Background(), "Auth Service")

	assert.Equal(t, "auth-service", result.MatchedLabel)
}

func TestResolveEmbedding(t *testing.T) {
	cache := NewCache()
	cache.Put("AuthenticationController")
	cache.Put("DatabasePool")

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"login controller":         {1, 0, 0},
		"AuthenticationController": {0.95, 0.05, 0},
		"DatabasePool":             {0, 1, 0},
	}}

	m := NewMatcher(cache, embedder, DefaultConfig())
	result := m.Resolve(context.Background(), "login controller")

	require.True(t, result.Resolved())
	assert.False(t, result.Exact)
	assert.Equal(t, "AuthenticationController", result.MatchedLabel)
	assert.Greater(t, result.Similarity, 0.75)
}

func TestResolveAmbiguous(t *testing.T) {
	cache := NewCache()
	cache.Put("UserService")
	cache.Put("UserServiceV2")

	// Both labels score nearly identically against the query.
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"user svc":      {1, 0, 0},
		"UserService":   {0.99, 0.1, 0},
		"UserServiceV2": {0.98, 0.12, 0},
	}}

	m := NewMatcher(cache, embedder, DefaultConfig())
	result := m.Resolve(context.Background(), "user svc")

	assert.False(t, result.Resolved())
	assert.True(t, result.Ambiguous())
	require.Len(t, result.Candidates, 2)
	assert.GreaterOrEqual(t, result.Candidates[0].Similarity, result.Candidates[1].Similarity,
		"candidates sorted by similarity descending")
}

func TestResolveBelowThreshold(t *testing.T) {
	cache := NewCache()
	cache.Put("DatabasePool")

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"weather report": {1, 0, 0},
		"DatabasePool":   {0, 1, 0},
	}}

	m := NewMatcher(cache, embedder, DefaultConfig())
	result := m.Resolve(context.Background(), "weather report")

	assert.False(t, result.Resolved())
	assert.False(t, result.Ambiguous())
	assert.Empty(t, result.Candidates)
}

func TestResolveNoEmbedderDegrades(t *testing.T) {
	cache := NewCache()
	cache.Put("AuthService")

	m := NewMatcher(cache, nil, DefaultConfig())
	result := m.Resolve(context.Background(), "login controller")

	assert.False(t, result.Resolved())
	assert.Empty(t, result.Candidates)
}

func TestResolveEmbedderFailureDegrades(t *testing.T) {
	cache := NewCache()
	cache.Put("AuthService")

	// Empty vector map: every Embed call errors.
	m := NewMatcher(cache, &fixedEmbedder{vectors: map[string][]float32{}}, DefaultConfig())
	result := m.Resolve(context.Background(), "login controller")

	assert.False(t, result.Resolved(), "provider failure must not panic or error")
}

func TestResolveMaxCandidates(t *testing.T) {
	cache := NewCache()
	vectors := map[string][]float32{"query": {1, 0, 0}}
	labels := []string{"A", "B", "C", "D", "E", "F", "G"}
	for i, l := range labels {
		cache.Put(l)
		// All close to the query, slightly decreasing.
		vectors[l] = []float32{1 - float32(i)*0.001, float32(i) * 0.001, 0}
	}

	m := NewMatcher(cache, &fixedEmbedder{vectors: vectors}, DefaultConfig())
	result := m.Resolve(context.Background(), "query")

	assert.True(t, result.Ambiguous())
	assert.LessOrEqual(t, len(result.Candidates), DefaultMaxCandidates)
}

func TestMatcherConfigDefaults(t *testing.T) {
	m := NewMatcher(NewCache(), nil, Config{})
	cfg := m.Config()
	assert.Equal(t, DefaultSimilarityThreshold, cfg.SimilarityThreshold)
	assert.Equal(t, DefaultAmbiguityWindow, cfg.AmbiguityWindow)
	assert.Equal(t, DefaultMaxCandidates, cfg.MaxCandidates)
}
