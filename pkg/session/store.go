// Package session manages named, fully independent graphs.
//
// A session is a name ("default" when the caller never says otherwise) bound
// to one graph, one similarity cache, and one matcher. Sessions come into
// existence the first time they are written to; reads of unknown sessions
// fail rather than auto-create.
//
// All sessions share the process-wide embedding provider (pkg/embed), but
// nothing else: labels, vectors, and structure never leak between sessions.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/munin/pkg/embed"
	"github.com/orneryd/munin/pkg/graph"
	"github.com/orneryd/munin/pkg/match"
)

// DefaultName is the session used when the caller does not name one.
const DefaultName = "default"

// Session binds a named graph to its resolution machinery.
type Session struct {
	Name      string
	Graph     *graph.Graph
	Cache     *match.Cache
	Matcher   *match.Matcher
	CreatedAt time.Time

	lastAccess atomic.Int64 // unix nanos, updated on every store lookup
}

// LastAccessed returns when the session was last fetched from its store.
func (s *Session) LastAccessed() time.Time {
	return time.Unix(0, s.lastAccess.Load())
}

func (s *Session) touch() {
	s.lastAccess.Store(time.Now().UnixNano())
}

// Info summarizes a session for listings.
type Info struct {
	Name         string    `json:"name"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// SessionNotFoundError reports a read of a session that was never created.
type SessionNotFoundError struct {
	Name     string
	Existing []string
}

func (e *SessionNotFoundError) Error() string {
	if len(e.Existing) == 0 {
		return fmt.Sprintf("session %q not found: no sessions exist yet", e.Name)
	}
	return fmt.Sprintf("session %q not found (existing: %s)",
		e.Name, strings.Join(e.Existing, ", "))
}

// MutationHook observes changes across all sessions. The first argument is
// the session name; labels in the payload are canonical.
type MutationHook func(session string, event graph.MutationEvent, payload map[string]interface{})

// Store creates sessions lazily and hands out their graphs.
//
// The store lock guards only the session map; each graph carries its own
// lock, so operations on different sessions never contend.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	matchConfig match.Config
	hook        MutationHook
	logger      *zap.Logger
}

// NewStore creates an empty store. Graphs created by it use matchConfig for
// their matchers and the shared embedder from pkg/embed. logger may be nil.
func NewStore(matchConfig match.Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions:    make(map[string]*Session),
		matchConfig: matchConfig,
		logger:      logger,
	}
}

// SetMutationHook installs the observer wired into every session's graph,
// current and future.
func (s *Store) SetMutationHook(hook MutationHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
	for name, sess := range s.sessions {
		s.wireHook(name, sess)
	}
}

// wireHook connects a session's graph to the store hook. Caller holds s.mu.
func (s *Store) wireHook(name string, sess *Session) {
	hook := s.hook
	if hook == nil {
		sess.Graph.SetMutationHook(nil)
		return
	}
	sess.Graph.SetMutationHook(func(event graph.MutationEvent, payload map[string]interface{}) {
		hook(name, event, payload)
	})
}

// GetOrCreate returns the named session, creating it on first use. An empty
// name means DefaultName. Never fails.
func (s *Store) GetOrCreate(name string) *Session {
	if name == "" {
		name = DefaultName
	}

	s.mu.RLock()
	sess, ok := s.sessions[name]
	s.mu.RUnlock()
	if ok {
		sess.touch()
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[name]; ok {
		sess.touch()
		return sess
	}

	cache := match.NewCache()
	matcher := match.NewMatcher(cache, embed.Shared(), s.matchConfig)
	sess = &Session{
		Name:      name,
		Graph:     graph.New(cache, matcher),
		Cache:     cache,
		Matcher:   matcher,
		CreatedAt: time.Now(),
	}
	sess.touch()
	s.sessions[name] = sess
	s.wireHook(name, sess)

	s.logger.Info("session created", zap.String("session", name))
	return sess
}

// Get returns the named session without creating it.
func (s *Store) Get(name string) (*Session, error) {
	if name == "" {
		name = DefaultName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[name]
	if !ok {
		return nil, &SessionNotFoundError{Name: name, Existing: s.namesLocked()}
	}
	sess.touch()
	return sess, nil
}

// List returns summaries of every session, sorted by name.
func (s *Store) List() []Info {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, Info{
			Name:         sess.Name,
			NodeCount:    sess.Graph.NodeCount(),
			EdgeCount:    sess.Graph.EdgeCount(),
			CreatedAt:    sess.CreatedAt,
			LastAccessed: sess.LastAccessed(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Delete removes the named session and everything in it. Reports whether the
// session existed.
func (s *Store) Delete(name string) bool {
	if name == "" {
		name = DefaultName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[name]; !ok {
		return false
	}
	delete(s.sessions, name)
	s.logger.Info("session deleted", zap.String("session", name))
	return true
}

// Info returns stats for the named session, without creating it.
func (s *Store) Info(name string) (Info, error) {
	sess, err := s.Get(name)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:         sess.Name,
		NodeCount:    sess.Graph.NodeCount(),
		EdgeCount:    sess.Graph.EdgeCount(),
		CreatedAt:    sess.CreatedAt,
		LastAccessed: sess.LastAccessed(),
	}, nil
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// namesLocked returns sorted session names. Caller holds at least a read
// lock.
func (s *Store) namesLocked() []string {
	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
