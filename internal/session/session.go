package session

import (
	"sync"
)

// Member is one connected participant, keyed by connection id in the roster.
type Member struct {
	Name   string
	UserID string
}

// Cursor is the last known pointer position for a connection. Never
// persisted; pruned when the owning connection leaves.
type Cursor struct {
	X    float64
	Y    float64
	Name string
}

// Session is the volatile presence state of one room: who is online right
// now and where their cursors are. The durable board remains the source of
// truth for strokes, chat and status.
type Session struct {
	CreatorID string

	members map[string]Member
	cursors map[string]Cursor
	mu      sync.RWMutex
}

func newSession() *Session {
	return &Session{
		members: make(map[string]Member),
		cursors: make(map[string]Cursor),
	}
}

// Add registers a connection in the roster.
func (s *Session) Add(connID string, m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[connID] = m
}

// Remove drops a connection and its cursor. Returns the remaining roster size.
func (s *Session) Remove(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, connID)
	delete(s.cursors, connID)
	return len(s.members)
}

// Member looks up a connection's roster entry.
func (s *Session) Member(connID string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[connID]
	return m, ok
}

// Members returns a snapshot of the roster.
func (s *Session) Members() map[string]Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]Member, len(s.members))
	for id, m := range s.members {
		snapshot[id] = m
	}
	return snapshot
}

// Size returns the current roster size.
func (s *Session) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// SetCursor records a connection's last known pointer position.
func (s *Session) SetCursor(connID string, c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[connID] = c
}

// Registry is the process-wide map of live room sessions. Entries are
// created lazily on first join and removed the instant a roster empties.
// Nothing here survives a restart; board content does.
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for a room, creating an empty one if the
// room has no live session yet.
func (r *Registry) GetOrCreate(roomID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[roomID]; ok {
		return s
	}
	s := newSession()
	r.sessions[roomID] = s
	return s
}

// Get returns the live session for a room, if any.
func (r *Registry) Get(roomID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

// Remove discards a room's session.
func (r *Registry) Remove(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, roomID)
}

// RoomCount returns the number of rooms with live sessions.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// MemberCount returns the number of connections across all rooms.
func (r *Registry) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, s := range r.sessions {
		total += s.Size()
	}
	return total
}
