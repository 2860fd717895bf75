package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/finplan/internal/metrics"
	cache "github.com/patrickmn/go-cache"
)

// Store keeps sessions in memory with a sliding TTL. Evicted sessions are
// wiped so their credentials do not outlive the session.
type Store struct {
	mu     sync.Mutex
	cache  *cache.Cache
	deps   *Deps
	logger *slog.Logger
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration, deps Deps) *Store {
	deps.withDefaults()
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	cleanup := ttl / 2
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}

	s := &Store{
		cache:  cache.New(ttl, cleanup),
		deps:   &deps,
		logger: deps.Logger,
	}
	s.cache.OnEvicted(func(key string, value interface{}) {
		if sess, ok := value.(*Session); ok {
			sess.wipe()
		}
		metrics.ActiveSessions.Dec()
		s.logger.Info("Session evicted", "session_id", key)
	})
	return s
}

// Get returns the session for id and refreshes its TTL.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*Session, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

// GetOrCreate returns the session for id, creating it on first use.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.getLocked(id); ok {
		return sess
	}
	// An expired entry may linger until the janitor runs; evict it first so
	// it is wiped and counted.
	s.cache.Delete(id)

	sess := New(id, s.deps)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	metrics.ActiveSessions.Inc()
	s.logger.Info("Session created", "session_id", id)
	return sess
}

// Delete ends a session immediately.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
}

// Len returns the number of live sessions, including expired ones not yet
// cleaned up.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Flush ends every session, e.g. on shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.cache.Items() {
		s.cache.Delete(id)
	}
}

// DeleteExpired evicts expired sessions now instead of waiting for the janitor.
func (s *Store) DeleteExpired() {
	s.cache.DeleteExpired()
}
