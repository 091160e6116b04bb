package session

import (
	"errors"
	"sync"
)

// ErrNotFound is returned for operations on unknown session ids.
var ErrNotFound = errors.New("session not found")

// Store is the authoritative in-memory session map. All mutation funnels
// through Update under the store's lock; callers never hold *State across
// the lock boundary. Turns for a given session id must be serialized by
// the caller; the store guards memory, not turn ordering.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*State)}
}

// Create registers a fresh session opened with the system preamble.
// An existing session with the same id is replaced.
func (s *Store) Create(id, cameraID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := NewState(id)
	st.CameraID = cameraID
	s.sessions[id] = st
}

// Remove drops a session. Unknown ids are a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Update runs fn against the session's state under the store lock.
// fn must not retain the *State after returning.
func (s *Store) Update(id string, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	fn(st)
	return nil
}

// View runs fn against a deep copy of the session's state, outside any
// aliasing hazard. Mutations to the copy are discarded.
func (s *Store) View(id string, fn func(State)) error {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	cp := *st
	cp.Messages = append([]Message(nil), st.Messages...)
	if st.Vision != nil {
		v := *st.Vision
		cp.Vision = &v
	}
	s.mu.Unlock()
	fn(cp)
	return nil
}

// Active reports the session_active flag, or false for unknown ids.
func (s *Store) Active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	return ok && st.SessionActive
}
