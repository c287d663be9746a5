package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/munin/pkg/graph"
	"github.com/orneryd/munin/pkg/match"
)

func newTestStore() *Store {
	return NewStore(match.DefaultConfig(), nil)
}

func TestGetOrCreateLazy(t *testing.T) {
	store := newTestStore()
	assert.Equal(t, 0, store.Len())

	sess := store.GetOrCreate("project-x")
	require.NotNil(t, sess)
	assert.Equal(t, "project-x", sess.Name)
	assert.Equal(t, 1, store.Len())

	again := store.GetOrCreate("project-x")
	assert.Same(t, sess, again, "same name returns same session")
}

func TestGetOrCreateDefault(t *testing.T) {
	store := newTestStore()
	sess := store.GetOrCreate("")
	assert.Equal(t, DefaultName, sess.Name)
	assert.Same(t, sess, store.GetOrCreate(DefaultName))
}

func TestGetDoesNotAutoCreate(t *testing.T) {
	store := newTestStore()
	store.GetOrCreate("exists")

	_, err := store.Get("missing")
	var nfErr *SessionNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing", nfErr.Name)
	assert.Equal(t, []string{"exists"}, nfErr.Existing)
	assert.Equal(t, 1, store.Len(), "failed read must not create a session")
}

func TestSessionsAreIsolated(t *testing.T) {
	store := newTestStore()
	a := store.GetOrCreate("a")
	b := store.GetOrCreate("b")

	a.Graph.AddNode("AuthService", "", nil)

	assert.Equal(t, 1, a.Graph.NodeCount())
	assert.Equal(t, 0, b.Graph.NodeCount())
	assert.Empty(t, b.Graph.FindNode(context.Background(), "auth service"),
		"labels must not leak across sessions")
}

func TestSessionSharesCacheWithMatcher(t *testing.T) {
	store := newTestStore()
	sess := store.GetOrCreate("s")

	sess.Graph.AddNode("AuthService", "", nil)

	// The matcher reads from the same cache the graph writes to.
	result := sess.Matcher.Resolve(context.Background(), "auth service")
	assert.Equal(t, "AuthService", result.MatchedLabel)
	assert.True(t, sess.Cache.Has("AuthService"))
}

func TestList(t *testing.T) {
	store := newTestStore()
	store.GetOrCreate("beta").Graph.AddNode("n", "", nil)
	store.GetOrCreate("alpha")

	infos := store.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name, "sorted by name")
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, 1, infos[1].NodeCount)
	assert.False(t, infos[0].CreatedAt.IsZero())
}

func TestDelete(t *testing.T) {
	store := newTestStore()
	store.GetOrCreate("doomed")

	assert.True(t, store.Delete("doomed"))
	assert.False(t, store.Delete("doomed"), "second delete reports missing")
	assert.Equal(t, 0, store.Len())

	// Recreating after delete starts empty.
	sess := store.GetOrCreate("doomed")
	assert.Equal(t, 0, sess.Graph.NodeCount())
}

func TestInfo(t *testing.T) {
	store := newTestStore()
	sess := store.GetOrCreate("s")
	sess.Graph.AddNode("a", "", nil)
	sess.Graph.AddNode("b", "", nil)
	_, err := sess.Graph.AddEdge(context.Background(), "a", "b", "uses", nil)
	require.NoError(t, err)

	info, err := store.Info("s")
	require.NoError(t, err)
	assert.Equal(t, 2, info.NodeCount)
	assert.Equal(t, 1, info.EdgeCount)

	_, err = store.Info("missing")
	var nfErr *SessionNotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestLastAccessedAdvances(t *testing.T) {
	store := newTestStore()
	sess := store.GetOrCreate("s")
	first := sess.LastAccessed()
	assert.False(t, first.IsZero())

	time.Sleep(time.Millisecond)
	store.GetOrCreate("s")
	assert.True(t, sess.LastAccessed().After(first))
}

func TestMutationHookReceivesSessionName(t *testing.T) {
	store := newTestStore()

	type event struct {
		session string
		kind    graph.MutationEvent
	}
	var mu sync.Mutex
	var events []event

	store.SetMutationHook(func(session string, kind graph.MutationEvent, payload map[string]interface{}) {
		mu.Lock()
		events = append(events, event{session, kind})
		mu.Unlock()
	})

	store.GetOrCreate("a").Graph.AddNode("n1", "", nil)
	store.GetOrCreate("b").Graph.AddNode("n2", "", nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, event{"a", graph.EventNodeAdded}, events[0])
	assert.Equal(t, event{"b", graph.EventNodeAdded}, events[1])
}

func TestMutationHookWiresExistingSessions(t *testing.T) {
	store := newTestStore()
	sess := store.GetOrCreate("early")

	var got string
	store.SetMutationHook(func(session string, _ graph.MutationEvent, _ map[string]interface{}) {
		got = session
	})

	sess.Graph.AddNode("n", "", nil)
	assert.Equal(t, "early", got, "hook applies to sessions created before it was set")
}

func TestConcurrentGetOrCreate(t *testing.T) {
	store := newTestStore()

	var wg sync.WaitGroup
	sessions := make([]*Session, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
	for i := 1; i < 20; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestSessionNotFoundErrorMessage(t *testing.T) {
	err := &SessionNotFoundError{Name: "x"}
	assert.Contains(t, err.Error(), "no sessions exist")

	err = &SessionNotFoundError{Name: "x", Existing: []string{"a", "b"}}
	assert.Contains(t, err.Error(), "a, b")
}
