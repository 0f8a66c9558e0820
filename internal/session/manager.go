package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Manager tracks every active retrieval session. Thread-safe for
// concurrent MCP tool calls, same guarantee
// internal/memory.SessionBufferManager gives its callers.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// StartSession begins tracking a new session. Starting a session with an
// id that is already active resets it (matching
// start_conversation_session's "idempotent start" semantics in ).
func (m *Manager) StartSession(sessionID, projectID, description string) (Snapshot, error) {
	if sessionID == "" {
		return Snapshot{}, fmt.Errorf("session: session id cannot be empty")
	}
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:             sessionID,
		ProjectID:      projectID,
		Description:    description,
		CreatedAt:      now,
		LastActivity:   now,
		ShownMemoryIDs: make(map[string]struct{}),
	}
	m.sessions[sessionID] = s
	return s.snapshot(), nil
}

// EndSession stops tracking a session and returns its final state, or an
// error if the session was never started (or already ended).
func (m *Manager) EndSession(sessionID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Snapshot{}, fmt.Errorf("session: %s is not active", sessionID)
	}
	delete(m.sessions, sessionID)
	return s.snapshot(), nil
}

// ListSessions returns a snapshot of every active session.
func (m *Manager) ListSessions() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.snapshot())
	}
	return out
}

// GetSession returns a session's current snapshot, or false if it isn't
// active.
func (m *Manager) GetSession(sessionID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// TrackQuery records a query against a session's recent-queries ring,
// dropping the oldest entry once the ring exceeds recentQueryCap, and
// bumps last_activity. Returns an error if the session isn't active.
func (m *Manager) TrackQuery(sessionID, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session: %s is not active", sessionID)
	}
	s.RecentQueries = append(s.RecentQueries, query)
	if len(s.RecentQueries) > recentQueryCap {
		excess := len(s.RecentQueries) - recentQueryCap
		s.RecentQueries = s.RecentQueries[excess:]
	}
	s.LastActivity = time.Now()
	return nil
}

// MarkShown records that a set of memory/code-unit IDs were returned to
// the caller in this session, so a later retrieval can deduplicate
// against them.
func (m *Manager) MarkShown(sessionID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session: %s is not active", sessionID)
	}
	for _, id := range ids {
		s.ShownMemoryIDs[id] = struct{}{}
	}
	s.LastActivity = time.Now()
	return nil
}

// Shown returns the set of memory/code-unit IDs already shown in a
// session, or nil if the session isn't active.
func (m *Manager) Shown(sessionID string) map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make(map[string]struct{}, len(s.ShownMemoryIDs))
	for id := range s.ShownMemoryIDs {
		out[id] = struct{}{}
	}
	return out
}

// RecentQueries returns a session's current query ring, most recent last.
func (m *Manager) RecentQueries(sessionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]string(nil), s.RecentQueries...)
}

// ActiveCount returns the number of active sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ExpandQuery implements: it widens query with distinct tokens drawn
// from up to the 3 most recent prior queries in the session (most recent
// first), skipping tokens already present in query, and skipping any
// token whose addition would push the result past 2x query's rune
// length. If the session isn't active, query is returned unchanged.
func (m *Manager) ExpandQuery(sessionID, query string) string {
	m.mu.RLock()
	var history []string
	if s, ok := m.sessions[sessionID]; ok {
		history = append([]string(nil), s.RecentQueries...)
	}
	m.mu.RUnlock()

	if len(history) == 0 {
		return query
	}

	seen := make(map[string]struct{})
	for _, tok := range tokenize(query) {
		seen[strings.ToLower(tok)] = struct{}{}
	}

	maxLen := 2 * len([]rune(query))
	expanded := query
	used := 0
	for i := len(history) - 1; i >= 0 && used < 3; i-- {
		prior := history[i]
		if prior == query {
			continue
		}
		used++
		for _, tok := range tokenize(prior) {
			lower := strings.ToLower(tok)
			if _, ok := seen[lower]; ok {
				continue
			}
			seen[lower] = struct{}{}
			candidate := expanded + " " + tok
			if len([]rune(candidate)) > maxLen {
				continue
			}
			expanded = candidate
		}
	}
	return expanded
}

// tokenize splits on anything that isn't a letter, digit, or underscore.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return false
		default:
			return true
		}
	})
}
