package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizzer/internal/app"
	"quizzer/internal/domain"
)

// FeedLoader reads a course's quiz straight from Postgres and shapes it into
// the question feed. It is the read path behind the feed caches.
type FeedLoader struct {
	pool *pgxpool.Pool
}

func NewFeedLoader(pool *pgxpool.Pool) *FeedLoader {
	return &FeedLoader{pool: pool}
}

func (l *FeedLoader) LoadFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	var (
		quizID *string
		raw    []byte
	)
	err := l.pool.QueryRow(ctx,
		`SELECT c.quiz_id, q.questions FROM courses c LEFT JOIN quizzes q ON q.id = c.quiz_id WHERE c.id=$1`,
		courseID,
	).Scan(&quizID, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	if quizID == nil || *quizID == "" || raw == nil {
		return nil, domain.ErrQuizNotFound
	}
	var docs []questionDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return app.BuildFeed(domain.Quiz{ID: *quizID, Questions: questionsFromDocs(docs)}), nil
}
