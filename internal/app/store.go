package app

import (
	"context"
	"time"

	"quizzer/internal/domain"
)

// CourseStore persists courses.
type CourseStore interface {
	CreateCourse(ctx context.Context, course domain.Course) error
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
	UpdateCourse(ctx context.Context, course domain.Course) error
	// DeleteCourse removes the course together with its quiz and enrollments.
	DeleteCourse(ctx context.Context, courseID string) error
	ListCourses(ctx context.Context) ([]domain.CourseWithAuthor, error)
	ListCoursesByAuthor(ctx context.Context, authorID string) ([]domain.Course, error)
}

// QuizStore persists quizzes. A quiz only ever changes through ReplaceQuiz.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// ReplaceQuiz deletes the course's current quiz (if any), stores quiz and
	// links it to the course as one unit. It returns the id of the removed quiz.
	ReplaceQuiz(ctx context.Context, courseID string, quiz domain.Quiz) (string, error)
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
}

// EnrollmentStore persists per-student, per-course attempt records.
type EnrollmentStore interface {
	// Enroll creates the record and reports false when it already existed.
	Enroll(ctx context.Context, enrollment domain.Enrollment) (bool, error)
	Unenroll(ctx context.Context, studentID, courseID string) error
	FindEnrollment(ctx context.Context, studentID, courseID string) (domain.Enrollment, error)
	ListEnrollments(ctx context.Context, studentID string) ([]domain.TakenCourse, error)
	// MarkAttemptStarted records at as the start of an unscored attempt unless
	// one is already recorded, and returns the effective start.
	MarkAttemptStarted(ctx context.Context, studentID, courseID string, at time.Time) (time.Time, error)
	// RecordScore sets the score of a record that has not been scored yet.
	// It fails with ErrEnrollmentNotFound or ErrAlreadyAttempted.
	RecordScore(ctx context.Context, studentID, courseID string, score int, at time.Time) error
}

// Store is the persistent store collaborator.
type Store interface {
	CourseStore
	QuizStore
	UserStore
	EnrollmentStore
	// Reset wipes every collection; used by seeding.
	Reset(ctx context.Context) error
}

// FeedSource serves question feeds, usually through a cache.
type FeedSource interface {
	GetFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error)
	Invalidate(ctx context.Context, courseID string) error
}
