package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizzer/internal/auth"
)

// SessionStore keeps login sessions in Redis so several server instances can
// share them. Each session is a JSON value under quizzer:session:{id}.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Load(ctx context.Context, id string) (auth.SessionData, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.SessionData{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.SessionData{}, fmt.Errorf("load session: %w", err)
	}
	var data auth.SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return auth.SessionData{}, fmt.Errorf("decode session: %w", err)
	}
	return data, nil
}

func (s *SessionStore) Save(ctx context.Context, id string, data auth.SessionData, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(id string) string {
	return "quizzer:session:" + id
}
