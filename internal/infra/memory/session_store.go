package memory

import (
	"context"
	"sync"
	"time"

	"quizzer/internal/auth"
)

// SessionStore is an in-memory implementation of auth.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	clock    func() time.Time
	sessions map[string]storedSession
}

type storedSession struct {
	data      auth.SessionData
	expiresAt time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Load(_ context.Context, id string) (auth.SessionData, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return auth.SessionData{}, auth.ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return auth.SessionData{}, auth.ErrSessionNotFound
	}
	return cloneSessionData(entry.data), nil
}

func (s *SessionStore) Save(_ context.Context, id string, data auth.SessionData, ttl time.Duration) error {
	entry := storedSession{data: cloneSessionData(data)}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func cloneSessionData(data auth.SessionData) auth.SessionData {
	out := data
	if data.Flash != nil {
		out.Flash = make(map[string][]string, len(data.Flash))
		for k, v := range data.Flash {
			out.Flash[k] = append([]string(nil), v...)
		}
	}
	return out
}
