package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Flash message kinds.
const (
	FlashSuccess = "success"
	FlashFail    = "fail"
)

// ErrSessionNotFound is returned by a SessionStore for unknown or expired ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionData is what a SessionStore keeps per session id.
type SessionData struct {
	UserID   string              `json:"userId,omitempty"`
	Flash    map[string][]string `json:"flash,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

// SessionStore abstracts where session data lives (in-memory, Redis).
type SessionStore interface {
	Load(ctx context.Context, id string) (SessionData, error)
	Save(ctx context.Context, id string, data SessionData, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is the request-scoped view of a stored session.
type Session struct {
	mu      sync.Mutex
	id      string
	data    SessionData
	dirty   bool
	retired []string
}

func newSession(id string, data SessionData) *Session {
	return &Session{id: id, data: data}
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// UserID returns the logged in user id, or "".
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UserID
}

// Flash queues a one-shot message shown on the next render.
func (s *Session) Flash(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Flash == nil {
		s.data.Flash = make(map[string][]string)
	}
	s.data.Flash[kind] = append(s.data.Flash[kind], message)
	s.dirty = true
}

// DrainFlash returns and clears all queued messages. Both kinds are always
// present in the result.
func (s *Session) DrainFlash() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]string{
		FlashSuccess: {},
		FlashFail:    {},
	}
	for kind, msgs := range s.data.Flash {
		out[kind] = append(out[kind], msgs...)
	}
	if len(s.data.Flash) > 0 {
		s.data.Flash = nil
		s.dirty = true
	}
	return out
}

// SetRedirect remembers where to send the user after login.
func (s *Session) SetRedirect(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Redirect = path
	s.dirty = true
}

// TakeRedirect returns and clears the post-login redirect, defaulting to "/".
func (s *Session) TakeRedirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	redirect := s.data.Redirect
	if redirect == "" {
		return "/"
	}
	s.data.Redirect = ""
	s.dirty = true
	return redirect
}

// rotate switches to a fresh id and sets the user; the old id is deleted on save.
func (s *Session) rotate(newID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = append(s.retired, s.id)
	s.id = newID
	s.data.UserID = userID
	s.dirty = true
}

// snapshot returns what needs persisting.
func (s *Session) snapshot() (id string, data SessionData, dirty bool, retired []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.data, s.dirty, s.retired
}
