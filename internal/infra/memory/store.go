package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizzer/internal/domain"
)

// Store is an in-memory implementation of app.Store. Every method holds the
// store lock for its whole duration, so multi-record operations such as
// ReplaceQuiz are atomic.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	usernames   map[string]string
	courses     map[string]domain.Course
	courseOrder []string
	quizzes     map[string]domain.Quiz
	enrollments map[enrollmentKey]domain.Enrollment
	// per-student enrollment order
	taken map[string][]string
}

type enrollmentKey struct {
	student string
	course  string
}

func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = make(map[string]domain.User)
	s.usernames = make(map[string]string)
	s.courses = make(map[string]domain.Course)
	s.courseOrder = nil
	s.quizzes = make(map[string]domain.Quiz)
	s.enrollments = make(map[enrollmentKey]domain.Enrollment)
	s.taken = make(map[string][]string)
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// users

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernames[user.Username]; ok {
		return domain.ErrUsernameTaken
	}
	s.users[user.ID] = user
	s.usernames[user.Username] = user.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernames[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

// courses

func (s *Store) CreateCourse(_ context.Context, course domain.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[course.AuthorID]; !ok {
		return domain.ErrUserNotFound
	}
	s.courses[course.ID] = course
	s.courseOrder = append(s.courseOrder, course.ID)
	return nil
}

func (s *Store) GetCourse(_ context.Context, courseID string) (domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[courseID]
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return course, nil
}

func (s *Store) UpdateCourse(_ context.Context, course domain.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.courses[course.ID]
	if !ok {
		return domain.ErrCourseNotFound
	}
	// author and quiz links are not editable here
	current.Name = course.Name
	current.Code = course.Code
	current.PassingScore = course.PassingScore
	s.courses[course.ID] = current
	return nil
}

func (s *Store) DeleteCourse(_ context.Context, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, ok := s.courses[courseID]
	if !ok {
		return domain.ErrCourseNotFound
	}
	if course.HasQuiz() {
		delete(s.quizzes, course.QuizID)
	}
	delete(s.courses, courseID)
	s.courseOrder = removeID(s.courseOrder, courseID)
	for key := range s.enrollments {
		if key.course == courseID {
			delete(s.enrollments, key)
			s.taken[key.student] = removeID(s.taken[key.student], courseID)
		}
	}
	return nil
}

func (s *Store) ListCourses(_ context.Context) ([]domain.CourseWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CourseWithAuthor, 0, len(s.courseOrder))
	for _, id := range s.courseOrder {
		course := s.courses[id]
		out = append(out, domain.CourseWithAuthor{Course: course, Author: s.users[course.AuthorID]})
	}
	return out, nil
}

func (s *Store) ListCoursesByAuthor(_ context.Context, authorID string) ([]domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Course{}
	for _, id := range s.courseOrder {
		if course := s.courses[id]; course.AuthorID == authorID {
			out = append(out, course)
		}
	}
	return out, nil
}

// quizzes

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) ReplaceQuiz(_ context.Context, courseID string, quiz domain.Quiz) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, ok := s.courses[courseID]
	if !ok {
		return "", domain.ErrCourseNotFound
	}
	previous := course.QuizID
	if previous != "" {
		delete(s.quizzes, previous)
	}
	quiz.CourseID = courseID
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	course.QuizID = quiz.ID
	s.courses[courseID] = course
	return previous, nil
}

// QuizCount reports how many quiz records exist.
func (s *Store) QuizCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quizzes)
}

// enrollments

func (s *Store) Enroll(_ context.Context, enrollment domain.Enrollment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[enrollment.CourseID]; !ok {
		return false, domain.ErrCourseNotFound
	}
	key := enrollmentKey{student: enrollment.StudentID, course: enrollment.CourseID}
	if _, ok := s.enrollments[key]; ok {
		return false, nil
	}
	s.enrollments[key] = enrollment
	s.taken[enrollment.StudentID] = append(s.taken[enrollment.StudentID], enrollment.CourseID)
	return true, nil
}

func (s *Store) Unenroll(_ context.Context, studentID, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey{student: studentID, course: courseID}
	if _, ok := s.enrollments[key]; !ok {
		return domain.ErrEnrollmentNotFound
	}
	delete(s.enrollments, key)
	s.taken[studentID] = removeID(s.taken[studentID], courseID)
	return nil
}

func (s *Store) FindEnrollment(_ context.Context, studentID, courseID string) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollment, ok := s.enrollments[enrollmentKey{student: studentID, course: courseID}]
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return enrollment, nil
}

func (s *Store) ListEnrollments(_ context.Context, studentID string) ([]domain.TakenCourse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TakenCourse, 0, len(s.taken[studentID]))
	for _, courseID := range s.taken[studentID] {
		e := s.enrollments[enrollmentKey{student: studentID, course: courseID}]
		out = append(out, domain.TakenCourse{
			Course:      s.courses[courseID],
			ScoredMarks: e.ScoredMarks,
			EnrolledAt:  e.EnrolledAt,
			ScoredAt:    e.ScoredAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (s *Store) MarkAttemptStarted(_ context.Context, studentID, courseID string, at time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey{student: studentID, course: courseID}
	enrollment, ok := s.enrollments[key]
	if !ok {
		return time.Time{}, domain.ErrEnrollmentNotFound
	}
	if enrollment.Attempted() {
		return time.Time{}, domain.ErrAlreadyAttempted
	}
	if enrollment.StartedAt == nil {
		enrollment.StartedAt = &at
		s.enrollments[key] = enrollment
	}
	return *enrollment.StartedAt, nil
}

func (s *Store) RecordScore(_ context.Context, studentID, courseID string, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey{student: studentID, course: courseID}
	enrollment, ok := s.enrollments[key]
	if !ok {
		return domain.ErrEnrollmentNotFound
	}
	if enrollment.Attempted() {
		return domain.ErrAlreadyAttempted
	}
	enrollment.ScoredMarks = score
	enrollment.ScoredAt = &at
	s.enrollments[key] = enrollment
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Topics = append([]string(nil), q.Topics...)
	q.Questions = append([]domain.Question(nil), q.Questions...)
	return q
}
