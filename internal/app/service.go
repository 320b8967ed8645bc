package app

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service contains the course, quiz and enrollment use cases.
type Service struct {
	store Store
	feeds FeedSource
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how new record ids are produced.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService wires the use cases. A nil feeds reads feeds from the store
// on every request.
func NewService(store Store, feeds FeedSource, opts ...Option) *Service {
	s := &Service{
		store: store,
		feeds: feeds,
		log:   slog.Default(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	if s.feeds == nil {
		s.feeds = uncachedFeeds{loader: NewStoreFeedLoader(store)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store to collaborators such as capability checks.
func (s *Service) Store() Store {
	return s.store
}
