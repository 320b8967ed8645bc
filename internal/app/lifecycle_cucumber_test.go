//go:build cucumber

package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"quizzer/internal/app"
	"quizzer/internal/domain"
	"quizzer/internal/infra/memory"
	"quizzer/internal/runner"
)

// TestQuizLifecycleScenarios runs the quiz lifecycle feature scenarios.
func TestQuizLifecycleScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "quiz-lifecycle",
		ScenarioInitializer: InitializeLifecycleScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "quiz_lifecycle.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeLifecycleScenario wires the lifecycle steps.
func InitializeLifecycleScenario(ctx *godog.ScenarioContext) {
	state := &lifecycleState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^a teacher "([^"]+)" with a course "([^"]+)"$`, state.givenTeacherWithCourse)
	ctx.Step(`^the course quiz has questions "([^"]*)" with correct options "([^"]*)"$`, state.replaceQuiz)
	ctx.Step(`^the teacher replaces the quiz with questions "([^"]*)" with correct options "([^"]*)"$`, state.replaceQuiz)
	ctx.Step(`^a student "([^"]+)" enrolled in the course$`, state.givenEnrolledStudent)
	ctx.Step(`^the student answers "([^"]+)"$`, state.whenStudentAnswers)
	ctx.Step(`^the student submits the session score$`, state.whenStudentSubmitsSession)
	ctx.Step(`^the student submits a score of (\d+)$`, state.whenStudentSubmitsScore)
	ctx.Step(`^the student leaves and re-enrolls in the course$`, state.whenStudentReEnrolls)
	ctx.Step(`^the store holds (\d+) quiz records?$`, state.thenQuizCount)
	ctx.Step(`^the question feed has (\d+) questions?$`, state.thenFeedLength)
	ctx.Step(`^the recorded score is (\d+)$`, state.thenRecordedScore)
	ctx.Step(`^the submission fails with "([^"]+)"$`, state.thenSubmissionFails)
	ctx.Step(`^the enrollment is not attempted$`, state.thenNotAttempted)
}

type lifecycleState struct {
	ctx     context.Context
	store   *memory.Store
	service *app.Service
	teacher domain.User
	student domain.User
	course  domain.Course
	session *runner.Session
	lastErr error
}

func (s *lifecycleState) reset() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = app.NewService(s.store, memory.NewFeedCache(app.NewStoreFeedLoader(s.store), time.Minute), app.WithLogger(log))
	s.teacher, s.student, s.course = domain.User{}, domain.User{}, domain.Course{}
	s.session = nil
	s.lastErr = nil
}

func (s *lifecycleState) givenTeacherWithCourse(username, course string) error {
	teacher, err := s.service.Register(s.ctx, app.RegisterInput{Name: username, Username: username, Password: "pw", Occupation: "teacher"})
	if err != nil {
		return err
	}
	s.teacher = teacher
	s.course, err = s.service.CreateCourse(s.ctx, teacher.ID, app.CourseInput{Name: course, Code: strings.ToUpper(course)})
	return err
}

func (s *lifecycleState) replaceQuiz(questions, letters string) error {
	in := app.AuthoringInput{
		Topics:          []string{s.course.Name},
		Questions:       strings.Split(questions, ","),
		DurationMinutes: 5,
	}
	for i, letter := range strings.Split(letters, ",") {
		idx, err := letterIndex(letter)
		if err != nil {
			return err
		}
		in.Correct = append(in.Correct, idx+1)
		in.Options = append(in.Options, []string{
			fmt.Sprintf("q%d-a", i), fmt.Sprintf("q%d-b", i), fmt.Sprintf("q%d-c", i), fmt.Sprintf("q%d-d", i),
		})
	}
	_, err := s.service.ReplaceQuiz(s.ctx, s.course.ID, in)
	return err
}

func (s *lifecycleState) givenEnrolledStudent(username string) error {
	student, err := s.service.Register(s.ctx, app.RegisterInput{Name: username, Username: username, Password: "pw", Occupation: "student"})
	if err != nil {
		return err
	}
	s.student = student
	_, err = s.service.Enroll(s.ctx, student.ID, []string{s.course.ID})
	return err
}

func (s *lifecycleState) whenStudentAnswers(answers string) error {
	attempt, err := s.service.StartAttempt(s.ctx, s.course.ID, s.student.ID)
	if err != nil {
		return err
	}
	s.session = runner.New(time.Duration(attempt.DurationMinutes) * time.Minute)
	fetch := func(ctx context.Context) ([]domain.QuestionView, error) {
		return s.service.QuestionFeed(ctx, s.course.ID)
	}
	if err := s.session.Start(s.ctx, time.Second, fetch, time.Now); err != nil {
		return err
	}
	for i, letter := range strings.Split(answers, ",") {
		idx, err := letterIndex(letter)
		if err != nil {
			return err
		}
		if err := s.session.Select(idx); err != nil {
			return err
		}
		if i < s.session.Len()-1 && !s.session.Next() {
			return fmt.Errorf("could not move past question %d", i+1)
		}
	}
	s.session.Finish()
	return nil
}

func (s *lifecycleState) whenStudentSubmitsSession() error {
	if s.session == nil {
		return errors.New("no delivery session")
	}
	score, err := s.session.Submission()
	if err != nil {
		return err
	}
	_, s.lastErr = s.service.SubmitScore(s.ctx, s.course.ID, s.student.ID, score)
	return s.lastErr
}

func (s *lifecycleState) whenStudentSubmitsScore(score int) error {
	_, s.lastErr = s.service.SubmitScore(s.ctx, s.course.ID, s.student.ID, score)
	return nil
}

func (s *lifecycleState) whenStudentReEnrolls() error {
	if err := s.service.Unenroll(s.ctx, s.student.ID, s.course.ID); err != nil {
		return err
	}
	_, err := s.service.Enroll(s.ctx, s.student.ID, []string{s.course.ID})
	return err
}

func (s *lifecycleState) thenQuizCount(expected int) error {
	if got := s.store.QuizCount(); got != expected {
		return fmt.Errorf("expected %d quiz records, got %d", expected, got)
	}
	return nil
}

func (s *lifecycleState) thenFeedLength(expected int) error {
	feed, err := s.service.QuestionFeed(s.ctx, s.course.ID)
	if err != nil {
		return err
	}
	if len(feed) != expected {
		return fmt.Errorf("expected %d questions, got %d", expected, len(feed))
	}
	return nil
}

func (s *lifecycleState) thenRecordedScore(expected int) error {
	enrollment, err := s.store.FindEnrollment(s.ctx, s.student.ID, s.course.ID)
	if err != nil {
		return err
	}
	if enrollment.ScoredMarks != expected {
		return fmt.Errorf("expected score %d, got %d", expected, enrollment.ScoredMarks)
	}
	return nil
}

func (s *lifecycleState) thenSubmissionFails(message string) error {
	if s.lastErr == nil {
		return errors.New("expected the submission to fail")
	}
	if got := domain.PublicMessage(s.lastErr); got != message {
		return fmt.Errorf("expected %q, got %q", message, got)
	}
	return nil
}

func (s *lifecycleState) thenNotAttempted() error {
	return s.thenRecordedScore(domain.NotAttempted)
}

func letterIndex(letter string) (int, error) {
	for i, l := range domain.OptionLetters[1:] {
		if strings.EqualFold(strings.TrimSpace(letter), l) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown option letter %q", letter)
}
