package app

import (
	"context"
	"fmt"
	"strings"

	"quizzer/internal/domain"
)

// AuthoringInput carries the parallel arrays submitted by the quiz form.
type AuthoringInput struct {
	Topics          []string   `json:"topics"`
	Questions       []string   `json:"questions"`
	Options         [][]string `json:"options"`
	Correct         []int      `json:"correct"`
	DurationMinutes int        `json:"durationMinutes"`
}

// nonEmptyPrefix counts entries up to, not including, the first blank one.
func nonEmptyPrefix(values []string) int {
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			return i
		}
	}
	return len(values)
}

// BuildQuiz turns authoring input into a quiz for course. It does not assign
// an id and does not touch any store.
func BuildQuiz(course domain.Course, in AuthoringInput) (domain.Quiz, error) {
	const op = "build quiz"

	if in.DurationMinutes <= 0 {
		return domain.Quiz{}, domain.Validation(op, "duration must be a positive number of minutes")
	}

	topicCount := nonEmptyPrefix(in.Topics)
	questionCount := nonEmptyPrefix(in.Questions)

	if len(in.Options) < questionCount {
		return domain.Quiz{}, domain.Validation(op, fmt.Sprintf("expected options for %d questions, got %d", questionCount, len(in.Options)))
	}
	if len(in.Correct) < questionCount {
		return domain.Quiz{}, domain.Validation(op, fmt.Sprintf("expected correct answers for %d questions, got %d", questionCount, len(in.Correct)))
	}

	topics := make([]string, topicCount)
	copy(topics, in.Topics[:topicCount])

	questions := make([]domain.Question, 0, questionCount)
	for i := 0; i < questionCount; i++ {
		if len(in.Options[i]) != domain.OptionCount {
			return domain.Quiz{}, domain.Validation(op, fmt.Sprintf("question %d must have exactly %d options", i+1, domain.OptionCount))
		}
		correct := in.Correct[i]
		if correct < 1 || correct > domain.OptionCount {
			return domain.Quiz{}, domain.Validation(op, fmt.Sprintf("question %d has no valid correct option", i+1))
		}
		q := domain.Question{
			Prompt:        in.Questions[i],
			CorrectOption: correct,
		}
		copy(q.Options[:], in.Options[i])
		questions = append(questions, q)
	}

	return domain.Quiz{
		Name:            course.Name,
		Topics:          topics,
		DurationMinutes: in.DurationMinutes,
		Questions:       questions,
		CourseID:        course.ID,
	}, nil
}

// AuthoringInputFromQuiz is the inverse of BuildQuiz, used to prefill the edit form.
func AuthoringInputFromQuiz(quiz domain.Quiz) AuthoringInput {
	in := AuthoringInput{
		Topics:          append([]string(nil), quiz.Topics...),
		Questions:       make([]string, 0, len(quiz.Questions)),
		Options:         make([][]string, 0, len(quiz.Questions)),
		Correct:         make([]int, 0, len(quiz.Questions)),
		DurationMinutes: quiz.DurationMinutes,
	}
	for _, q := range quiz.Questions {
		in.Questions = append(in.Questions, q.Prompt)
		in.Options = append(in.Options, append([]string(nil), q.Options[:]...))
		in.Correct = append(in.Correct, q.CorrectOption)
	}
	return in
}

// ReplaceQuiz builds a quiz from in and installs it as the course's only quiz.
// Any previous quiz is deleted in the same store operation. Existing
// enrollment scores are left untouched.
func (s *Service) ReplaceQuiz(ctx context.Context, courseID string, in AuthoringInput) (domain.Quiz, error) {
	const op = "replace quiz"

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Quiz{}, domain.Wrap(op, err)
	}

	quiz, err := BuildQuiz(course, in)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.ID = s.newID()
	quiz.CreatedAt = s.now().UTC()

	previous, err := s.store.ReplaceQuiz(ctx, course.ID, quiz)
	if err != nil {
		return domain.Quiz{}, domain.Wrap(op, err)
	}
	if err := s.feeds.Invalidate(ctx, course.ID); err != nil {
		s.log.Warn("feed cache invalidation failed", "course", course.ID, "err", err)
	}

	s.log.Info("quiz replaced",
		"course", course.ID,
		"quiz", quiz.ID,
		"previous", previous,
		"questions", len(quiz.Questions),
	)
	return quiz, nil
}

// QuizForEdit returns the course's quiz in authoring shape.
func (s *Service) QuizForEdit(ctx context.Context, courseID string) (domain.Course, AuthoringInput, error) {
	course, quiz, err := s.courseQuiz(ctx, courseID)
	if err != nil {
		return domain.Course{}, AuthoringInput{}, domain.Wrap("edit quiz", err)
	}
	return course, AuthoringInputFromQuiz(quiz), nil
}

// courseQuiz resolves a course and its linked quiz.
func (s *Service) courseQuiz(ctx context.Context, courseID string) (domain.Course, domain.Quiz, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Course{}, domain.Quiz{}, err
	}
	if !course.HasQuiz() {
		return course, domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz, err := s.store.GetQuiz(ctx, course.QuizID)
	if err != nil {
		return course, domain.Quiz{}, err
	}
	return course, quiz, nil
}
