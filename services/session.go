package services

import (
	"sync"

	"parley/errors"
)

// State is the per-connection lifecycle:
// Anonymous -> Authenticated -> InRoom, Closed terminal from anywhere.
// Leaving a room only happens by entering another or disconnecting.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateInRoom
	StateClosed
)

// Session is the ephemeral binding between one live connection and an
// authenticated identity plus current room. It holds only the
// username; the identity store stays authoritative for everything
// else, so an admin grant takes effect mid-session.
type Session struct {
	mu       sync.Mutex
	connID   string
	state    State
	username string
	roomID   string
}

func (s *Session) ConnID() string {
	return s.connID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the bound username, or ErrUnauthorized before
// authentication.
func (s *Session) Username() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAnonymous || s.state == StateClosed {
		return "", errors.ErrUnauthorized
	}
	return s.username, nil
}

// Room returns the current room id, if the session is in one.
func (s *Session) Room() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInRoom {
		return "", false
	}
	return s.roomID, true
}

func (s *Session) bind(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	if s.state == StateAnonymous {
		s.state = StateAuthenticated
	}
}

// enterRoom transitions to InRoom and returns the room left behind,
// if any.
func (s *Session) enterRoom(roomID string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = ""
	if s.state == StateInRoom {
		previous = s.roomID
	}
	s.roomID = roomID
	s.state = StateInRoom
	return previous
}

// close marks the session terminal and reports the room it was in.
func (s *Session) close() (roomID string, wasInRoom bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, wasInRoom = s.roomID, s.state == StateInRoom
	s.state = StateClosed
	s.roomID = ""
	return roomID, wasInRoom
}

// SessionManager owns every live session.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Connect creates an anonymous session for a new connection.
func (m *SessionManager) Connect(connID string) *Session {
	sess := &Session{connID: connID, state: StateAnonymous}
	m.mu.Lock()
	m.sessions[connID] = sess
	m.mu.Unlock()
	return sess
}

// Close removes the session and returns it for cleanup.
func (m *SessionManager) Close(connID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessions[connID]
	delete(m.sessions, connID)
	return sess
}

// ActiveUsernames lists the distinct authenticated usernames across
// live sessions.
func (m *SessionManager) ActiveUsernames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var names []string
	for _, sess := range m.sessions {
		username, err := sess.Username()
		if err != nil {
			continue
		}
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}
		names = append(names, username)
	}
	return names
}
