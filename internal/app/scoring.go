package app

import (
	"context"
	"fmt"

	"quizzer/internal/domain"
)

// ValidateScore checks that score is reachable on a quiz with questionCount questions.
func ValidateScore(score, questionCount int) error {
	const op = "submit score"
	switch {
	case score < 0:
		return domain.Validation(op, "score must not be negative")
	case score%domain.PointsPerQuestion != 0:
		return domain.Validation(op, fmt.Sprintf("score must be a multiple of %d", domain.PointsPerQuestion))
	case score > questionCount*domain.PointsPerQuestion:
		return domain.Validation(op, fmt.Sprintf("score must not exceed %d", questionCount*domain.PointsPerQuestion))
	}
	return nil
}

// SubmitScore records the final score of a student's single attempt.
func (s *Service) SubmitScore(ctx context.Context, courseID, studentID string, score int) (domain.Enrollment, error) {
	const op = "submit score"

	enrollment, err := s.store.FindEnrollment(ctx, studentID, courseID)
	if err != nil {
		return domain.Enrollment{}, domain.Wrap(op, err)
	}
	if enrollment.Attempted() {
		return domain.Enrollment{}, domain.Wrap(op, domain.ErrAlreadyAttempted)
	}

	_, quiz, err := s.courseQuiz(ctx, courseID)
	if err != nil {
		return domain.Enrollment{}, domain.Wrap(op, err)
	}
	if err := ValidateScore(score, len(quiz.Questions)); err != nil {
		return domain.Enrollment{}, err
	}

	at := s.now().UTC()
	if err := s.store.RecordScore(ctx, studentID, courseID, score, at); err != nil {
		return domain.Enrollment{}, domain.Wrap(op, err)
	}

	enrollment.ScoredMarks = score
	enrollment.ScoredAt = &at
	s.log.Info("score recorded", "course", courseID, "student", studentID, "score", score)
	return enrollment, nil
}
