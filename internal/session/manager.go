// Package session keeps one dashboard store per browser session.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chemviz/dashboard/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxSessions limits concurrent sessions to bound memory use.
const DefaultMaxSessions = 100

// SessionMaxAge is how long an idle session is kept before cleanup.
const SessionMaxAge = 30 * time.Minute

// StoreFactory builds the store of a new session. ctx is cancelled when the
// session is removed.
type StoreFactory func(ctx context.Context) *store.Store

// SessionState is one browser session.
type SessionState struct {
	ID           string
	Store        *store.Store
	CreatedAt    time.Time
	LastAccessed time.Time

	clients int
	cancel  context.CancelFunc
}

// Manager handles active browser sessions.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	newStore    StoreFactory
	maxSessions int
	now         func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithMaxSessions sets the session capacity. Non-positive values keep the default.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager.
func NewManager(newStore StoreFactory, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*SessionState),
		newStore:    newStore,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the session for id, creating it when id is unknown.
// An unknown id that is a valid uuid is kept so a browser keeps its cookie
// after its session was cleaned up; anything else gets a fresh id.
func (m *Manager) GetOrCreate(id string) (*SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if state, ok := m.sessions[id]; ok {
		state.LastAccessed = now
		return state, false
	}

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	}
	m.evictIfFullLocked()

	ctx, cancel := context.WithCancel(context.Background())
	state := &SessionState{
		ID:           id,
		Store:        m.newStore(ctx),
		CreatedAt:    now,
		LastAccessed: now,
		cancel:       cancel,
	}
	m.sessions[id] = state
	log.Debug().Str("session", shortID(id)).Int("active", len(m.sessions)).Msg("session created")
	return state, true
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*SessionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	return state, ok
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = m.now()
	return true
}

// Attach records a live connection to the session. Sessions with live
// connections are never cleaned up. The returned func detaches.
func (m *Manager) Attach(id string) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return func() {}, false
	}
	state.clients++
	state.LastAccessed = m.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			state.clients--
			state.LastAccessed = m.now()
		})
	}, true
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions idle for longer than maxAge that have
// no live connection. It returns the number removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-maxAge)
	removed := 0
	for id, state := range m.sessions {
		if state.clients > 0 || !state.LastAccessed.Before(cutoff) {
			continue
		}
		m.removeLocked(id)
		removed++
		log.Info().Str("session", shortID(id)).
			Dur("idle", now.Sub(state.LastAccessed).Round(time.Second)).
			Msg("cleaned up idle session")
	}
	return removed
}

// Close removes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		m.removeLocked(id)
	}
}

// evictIfFullLocked frees one slot when at capacity, preferring the least
// recently used session without live connections.
func (m *Manager) evictIfFullLocked() {
	if len(m.sessions) < m.maxSessions {
		return
	}

	states := make([]*SessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		if (states[i].clients == 0) != (states[j].clients == 0) {
			return states[i].clients == 0
		}
		return states[i].LastAccessed.Before(states[j].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for _, s := range states[:toFree] {
		m.removeLocked(s.ID)
		log.Warn().Str("session", shortID(s.ID)).Msg("evicted session to stay under capacity")
	}
}

func (m *Manager) removeLocked(id string) {
	if state, ok := m.sessions[id]; ok {
		state.cancel()
		delete(m.sessions, id)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
