package app

import (
	"context"
	"time"

	"quizzer/internal/domain"
)

// BuildFeed converts a stored quiz into the ordered, client-facing question
// feed. The correct option letter is included: the feed is the answer key
// the client runner scores against.
func BuildFeed(quiz domain.Quiz) []domain.QuestionView {
	feed := make([]domain.QuestionView, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		feed = append(feed, domain.QuestionView{
			QuestionID:    i + 1,
			Question:      q.Prompt,
			OptionA:       q.Options[0],
			OptionB:       q.Options[1],
			OptionC:       q.Options[2],
			OptionD:       q.Options[3],
			CorrectOption: q.CorrectLetter(),
		})
	}
	return feed
}

// StoreFeedLoader builds feeds straight from a Store.
type StoreFeedLoader struct {
	store Store
}

func NewStoreFeedLoader(store Store) *StoreFeedLoader {
	return &StoreFeedLoader{store: store}
}

func (l *StoreFeedLoader) LoadFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	course, err := l.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.HasQuiz() {
		return nil, domain.ErrQuizNotFound
	}
	quiz, err := l.store.GetQuiz(ctx, course.QuizID)
	if err != nil {
		return nil, err
	}
	return BuildFeed(quiz), nil
}

// uncachedFeeds adapts a loader to FeedSource without caching.
type uncachedFeeds struct {
	loader *StoreFeedLoader
}

func (u uncachedFeeds) GetFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	return u.loader.LoadFeed(ctx, courseID)
}

func (uncachedFeeds) Invalidate(context.Context, string) error { return nil }

// QuestionFeed returns the ordered question feed for a course's quiz.
func (s *Service) QuestionFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	feed, err := s.feeds.GetFeed(ctx, courseID)
	if err != nil {
		return nil, domain.Wrap("question feed", err)
	}
	if feed == nil {
		feed = []domain.QuestionView{}
	}
	return feed, nil
}

// Attempt is what a student needs to start a delivery session.
type Attempt struct {
	Course          domain.Course `json:"course"`
	Student         domain.User   `json:"student"`
	QuizName        string        `json:"quizName"`
	Topics          []string      `json:"topics"`
	DurationMinutes int           `json:"timeInMinutes"`
	QuestionCount   int           `json:"qnNum"`
	// StartedAt is set once a server-timed attempt has begun.
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// StartAttempt checks that the student may take the course quiz now: the
// student must be enrolled, the course must have a quiz and no score may be
// recorded yet.
func (s *Service) StartAttempt(ctx context.Context, courseID, studentID string) (Attempt, error) {
	const op = "take quiz"

	course, quiz, err := s.courseQuiz(ctx, courseID)
	if err != nil {
		return Attempt{}, domain.Wrap(op, err)
	}
	student, err := s.store.GetUser(ctx, studentID)
	if err != nil {
		return Attempt{}, domain.Wrap(op, err)
	}
	enrollment, err := s.store.FindEnrollment(ctx, studentID, courseID)
	if err != nil {
		return Attempt{}, domain.Wrap(op, err)
	}
	if enrollment.Attempted() {
		return Attempt{}, domain.Wrap(op, domain.ErrAlreadyAttempted)
	}

	return Attempt{
		Course:          course,
		Student:         student,
		QuizName:        quiz.Name,
		Topics:          quiz.Topics,
		DurationMinutes: quiz.DurationMinutes,
		QuestionCount:   len(quiz.Questions),
	}, nil
}

// BeginAttempt is StartAttempt for a server-timed session: it also records
// at as the attempt start. A start recorded earlier is kept, so the deadline
// of a resumed attempt does not move.
func (s *Service) BeginAttempt(ctx context.Context, courseID, studentID string, at time.Time) (Attempt, error) {
	attempt, err := s.StartAttempt(ctx, courseID, studentID)
	if err != nil {
		return Attempt{}, err
	}
	started, err := s.store.MarkAttemptStarted(ctx, studentID, courseID, at.UTC())
	if err != nil {
		return Attempt{}, domain.Wrap("take quiz", err)
	}
	attempt.StartedAt = &started
	return attempt, nil
}
