package entities

import (
	"time"

	"synapse/domain/core/valueobjects"
)

// SessionInactivityTimeout is the gap after which a session is
// considered ended: the next access after this much idle time starts a
// new session rather than extending the old one.
const SessionInactivityTimeout = 30 * time.Minute

// SessionAccess is one (node, cluster) access recorded within a
// session, in the order it happened.
type SessionAccess struct {
	NodeID     valueobjects.NodeID
	ClusterID  string
	AccessedAt time.Time
}

// Session groups a user's temporally contiguous sequence of node
// accesses, used to bound the "recent node window" similarity edges
// compare against and to derive engagement signals for the re-ranker.
type Session struct {
	ID      string
	UserID  string
	Start   time.Time
	End     *time.Time
	Accesses []SessionAccess
}

// NewSession starts a new session at t.
func NewSession(id, userID string, t time.Time) *Session {
	return &Session{ID: id, UserID: userID, Start: t}
}

// IsExpired reports whether now is past the inactivity timeout measured
// from the session's last access (or its start, if it has none yet).
func (s *Session) IsExpired(now time.Time) bool {
	last := s.Start
	if n := len(s.Accesses); n > 0 {
		last = s.Accesses[n-1].AccessedAt
	}
	return now.Sub(last) > SessionInactivityTimeout
}

// RecordAccess appends an access to the session.
func (s *Session) RecordAccess(nodeID valueobjects.NodeID, clusterID string, t time.Time) {
	s.Accesses = append(s.Accesses, SessionAccess{NodeID: nodeID, ClusterID: clusterID, AccessedAt: t})
}

// CloseAt closes the session at t.
func (s *Session) CloseAt(t time.Time) {
	s.End = &t
}

// RecentNodeIDs returns the last n distinct node IDs accessed in this
// session, most recent first, for use as the similarity-edge "recent
// node window".
func (s *Session) RecentNodeIDs(n int) []valueobjects.NodeID {
	seen := make(map[string]bool)
	out := make([]valueobjects.NodeID, 0, n)
	for i := len(s.Accesses) - 1; i >= 0 && len(out) < n; i-- {
		id := s.Accesses[i].NodeID
		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		out = append(out, id)
	}
	return out
}
