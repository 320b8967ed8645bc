// Package runner holds the client-side quiz delivery state machine shared by
// the terminal runner and the live websocket session.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quizzer/internal/domain"
)

// State is the phase a delivery session is in.
type State int

const (
	Loading State = iota
	Active
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadySubmitted = errors.New("score already submitted")
	ErrNotFinished      = errors.New("quiz is not finished")
	ErrNotActive        = errors.New("quiz is not active")
	ErrInvalidOption    = errors.New("invalid option")
	ErrFeedTimeout      = errors.New("timed out loading questions")
)

const noSelection = -1

// Session tracks one student's pass through a quiz feed. It is safe for
// concurrent use.
type Session struct {
	mu         sync.Mutex
	state      State
	feed       []domain.QuestionView
	selections []int
	current    int
	duration   time.Duration
	origin     time.Time
	deadline   time.Time
	submitted  bool
	err        error
}

// New returns a session in Loading that will run for duration once loaded.
func New(duration time.Duration) *Session {
	return &Session{state: Loading, duration: duration}
}

// Load starts the session with the fetched feed. An empty feed finishes
// immediately with a score of zero.
func (s *Session) Load(feed []domain.QuestionView, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loading {
		return fmt.Errorf("load in state %s", s.state)
	}
	s.feed = append([]domain.QuestionView(nil), feed...)
	s.selections = make([]int, len(feed))
	for i := range s.selections {
		s.selections[i] = noSelection
	}
	s.current = 0
	start := now
	if !s.origin.IsZero() {
		start = s.origin
	}
	s.deadline = start.Add(s.duration)
	if len(feed) == 0 {
		s.state = Finished
		return nil
	}
	s.state = Active
	return nil
}

// Anchor makes the deadline count from start instead of from the moment the
// feed loads. It is used to resume an attempt that began earlier.
func (s *Session) Anchor(start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Loading {
		s.origin = start
	}
}

// Fail moves a loading session to the terminal Failed state.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loading {
		return
	}
	s.state = Failed
	s.err = err
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the session failed, if it did.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Len is the number of questions in the feed.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feed)
}

// Current returns the question being shown and its index.
func (s *Session) Current() (int, domain.QuestionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return s.current, domain.QuestionView{}, false
	}
	return s.current, s.feed[s.current], true
}

// Select records option (0..3) as the answer to the current question.
func (s *Session) Select(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return ErrNotActive
	}
	if option < 0 || option >= domain.OptionCount {
		return ErrInvalidOption
	}
	s.selections[s.current] = option
	return nil
}

// Selected reports the recorded option for question i.
func (s *Session) Selected(i int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.selections) || s.selections[i] == noSelection {
		return noSelection, false
	}
	return s.selections[i], true
}

// Next moves forward; it is a no-op on the last question.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || s.current >= len(s.feed)-1 {
		return false
	}
	s.current++
	return true
}

// Prev moves back; it is a no-op on the first question.
func (s *Session) Prev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || s.current == 0 {
		return false
	}
	s.current--
	return true
}

// Tick finishes the session once the deadline has passed. It reports whether
// this call caused the transition.
func (s *Session) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || now.Before(s.deadline) {
		return false
	}
	s.state = Finished
	return true
}

// Finish ends an active session early.
func (s *Session) Finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return false
	}
	s.state = Finished
	return true
}

// Remaining is the time left before the deadline, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Loading:
		return s.duration
	case Active:
		if left := s.deadline.Sub(now); left > 0 {
			return left
		}
	}
	return 0
}

// Score is 10 points for every question whose selected letter matches the
// correct letter.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score()
}

func (s *Session) score() int {
	correct := 0
	for i, sel := range s.selections {
		if sel == noSelection {
			continue
		}
		if domain.OptionLetters[sel+1] == s.feed[i].CorrectOption {
			correct++
		}
	}
	return correct * domain.PointsPerQuestion
}

// Submission hands out the final score exactly once.
func (s *Session) Submission() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Finished {
		return 0, ErrNotFinished
	}
	if s.submitted {
		return 0, ErrAlreadySubmitted
	}
	s.submitted = true
	return s.score(), nil
}

// View is a point-in-time snapshot for rendering. It never carries the
// correct option.
type View struct {
	State     string   `json:"state"`
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Question  string   `json:"question,omitempty"`
	Options   []string `json:"options,omitempty"`
	Selected  int      `json:"selected"`
	Remaining int      `json:"remainingSeconds"`
	Score     *int     `json:"score,omitempty"`
}

// Snapshot renders the session at now.
func (s *Session) Snapshot(now time.Time) View {
	remaining := s.Remaining(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		State:     s.state.String(),
		Index:     s.current,
		Total:     len(s.feed),
		Selected:  noSelection,
		Remaining: int(remaining.Round(time.Second) / time.Second),
	}
	switch s.state {
	case Active:
		q := s.feed[s.current]
		v.Question = q.Question
		v.Options = []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
		v.Selected = s.selections[s.current]
	case Finished:
		score := s.score()
		v.Score = &score
	}
	return v
}

// FetchFunc loads a question feed.
type FetchFunc func(ctx context.Context) ([]domain.QuestionView, error)

// AwaitFeed runs fetch with an upper bound on how long the caller waits.
func AwaitFeed(ctx context.Context, timeout time.Duration, fetch FetchFunc) ([]domain.QuestionView, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		feed []domain.QuestionView
		err  error
	}
	done := make(chan result, 1)
	go func() {
		feed, err := fetch(ctx)
		done <- result{feed: feed, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, ErrFeedTimeout
		}
		return r.feed, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrFeedTimeout
		}
		return nil, ctx.Err()
	}
}

// Start awaits the feed and loads it, failing the session on error.
func (s *Session) Start(ctx context.Context, timeout time.Duration, fetch FetchFunc, now func() time.Time) error {
	feed, err := AwaitFeed(ctx, timeout, fetch)
	if err != nil {
		s.Fail(err)
		return err
	}
	return s.Load(feed, now())
}
