package app

import (
	"context"
	"strings"
	"time"

	"quizzer/internal/domain"
)

// CourseInput is the course create/edit form.
type CourseInput struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	PassingScore int    `json:"passingScore"`
}

func (in CourseInput) validate(op string) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.Validation(op, "course name is required")
	case strings.TrimSpace(in.Code) == "":
		return domain.Validation(op, "course code is required")
	case in.PassingScore < 0:
		return domain.Validation(op, "passing score must not be negative")
	}
	return nil
}

// CreateCourse creates a course authored by authorID.
func (s *Service) CreateCourse(ctx context.Context, authorID string, in CourseInput) (domain.Course, error) {
	const op = "create course"
	if err := in.validate(op); err != nil {
		return domain.Course{}, err
	}
	author, err := s.store.GetUser(ctx, authorID)
	if err != nil {
		return domain.Course{}, domain.Wrap(op, err)
	}
	if author.Role != domain.RoleTeacher {
		return domain.Course{}, domain.Forbidden("You need to be a teacher to make a course", "/")
	}

	course := domain.Course{
		ID:           s.newID(),
		Name:         strings.TrimSpace(in.Name),
		Code:         strings.TrimSpace(in.Code),
		PassingScore: in.PassingScore,
		AuthorID:     author.ID,
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		return domain.Course{}, domain.Wrap(op, err)
	}
	s.log.Info("course created", "course", course.ID, "author", author.ID)
	return course, nil
}

// GetCourse returns a course with its quiz populated.
func (s *Service) GetCourse(ctx context.Context, courseID string) (domain.CourseDetail, error) {
	const op = "show course"
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return domain.CourseDetail{}, domain.Wrap(op, err)
	}
	detail := domain.CourseDetail{Course: course}
	if course.HasQuiz() {
		quiz, err := s.store.GetQuiz(ctx, course.QuizID)
		if err != nil {
			return domain.CourseDetail{}, domain.Wrap(op, err)
		}
		detail.Quiz = &quiz
	}
	return detail, nil
}

// UpdateCourse edits name, code and passing score.
func (s *Service) UpdateCourse(ctx context.Context, courseID string, in CourseInput) (domain.Course, error) {
	const op = "update course"
	if err := in.validate(op); err != nil {
		return domain.Course{}, err
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Course{}, domain.Wrap(op, err)
	}
	course.Name = strings.TrimSpace(in.Name)
	course.Code = strings.TrimSpace(in.Code)
	course.PassingScore = in.PassingScore
	if err := s.store.UpdateCourse(ctx, course); err != nil {
		return domain.Course{}, domain.Wrap(op, err)
	}
	return course, nil
}

// DeleteCourse removes a course, its quiz and its enrollment records.
func (s *Service) DeleteCourse(ctx context.Context, courseID string) error {
	const op = "delete course"
	if err := s.store.DeleteCourse(ctx, courseID); err != nil {
		return domain.Wrap(op, err)
	}
	if err := s.feeds.Invalidate(ctx, courseID); err != nil {
		s.log.Warn("feed cache invalidation failed", "course", courseID, "err", err)
	}
	s.log.Info("course deleted", "course", courseID)
	return nil
}

// EnrollableCourses lists every course the student has not enrolled in yet.
func (s *Service) EnrollableCourses(ctx context.Context, studentID string) ([]domain.CourseWithAuthor, error) {
	const op = "list courses"
	all, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, domain.Wrap(op, err)
	}
	taken, err := s.store.ListEnrollments(ctx, studentID)
	if err != nil {
		return nil, domain.Wrap(op, err)
	}
	skip := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		skip[t.Course.ID] = struct{}{}
	}
	courses := make([]domain.CourseWithAuthor, 0, len(all))
	for _, c := range all {
		if _, ok := skip[c.ID]; ok {
			continue
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// Enroll creates a not-yet-attempted enrollment for each course. Courses the
// student is already enrolled in are skipped. An unknown course id fails the
// whole request before anything is written. It returns how many records were
// created.
func (s *Service) Enroll(ctx context.Context, studentID string, courseIDs []string) (int, error) {
	const op = "enroll"
	if len(courseIDs) == 0 {
		return 0, domain.Validation(op, "select at least one course")
	}
	// check every course first so an unknown id leaves nothing behind
	for _, courseID := range courseIDs {
		if _, err := s.store.GetCourse(ctx, courseID); err != nil {
			return 0, domain.Wrap(op, err)
		}
	}
	created := 0
	for _, courseID := range courseIDs {
		ok, err := s.store.Enroll(ctx, domain.Enrollment{
			StudentID:   studentID,
			CourseID:    courseID,
			ScoredMarks: domain.NotAttempted,
			EnrolledAt:  s.now().UTC().Truncate(time.Millisecond),
		})
		if err != nil {
			return created, domain.Wrap(op, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// Unenroll deletes the student's record for a course; enrolling again starts
// a fresh, unattempted record.
func (s *Service) Unenroll(ctx context.Context, studentID, courseID string) error {
	if err := s.store.Unenroll(ctx, studentID, courseID); err != nil {
		return domain.Wrap("unenroll", err)
	}
	return nil
}
