// Package session implements the live retrieval-session tracker and
// its query expander: a bounded in-memory record of a session's
// recent queries and already-shown memory IDs, used to avoid repeating
// the same results across turns and to widen a query with recent context.
//
// Grounded on internal/memory/session_buffer.go's SessionBufferManager —
// that package buffers past-conversation turns for summarization, a
// different corpus, but the lifecycle shape (a mutex-guarded map keyed by
// session id, a bounded ring that drops the oldest entry once full, a
// per-session last-activity timestamp) is exactly what a live retrieval
// session needs too.
package session

import "time"

// recentQueryCap bounds the ring of recent queries per session.
const recentQueryCap = 10

// Session is one live retrieval session's tracked state.
type Session struct {
	ID             string
	ProjectID      string
	Description    string
	CreatedAt      time.Time
	LastActivity   time.Time
	RecentQueries  []string
	ShownMemoryIDs map[string]struct{}
}

// Snapshot is a read-only copy of a Session safe to hand to callers
// outside the Manager's lock.
type Snapshot struct {
	ID            string
	ProjectID     string
	Description   string
	CreatedAt     time.Time
	LastActivity  time.Time
	RecentQueries []string
	ShownCount    int
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:            s.ID,
		ProjectID:     s.ProjectID,
		Description:   s.Description,
		CreatedAt:     s.CreatedAt,
		LastActivity:  s.LastActivity,
		RecentQueries: append([]string(nil), s.RecentQueries...),
		ShownCount:    len(s.ShownMemoryIDs),
	}
}
