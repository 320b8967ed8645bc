package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizzer/internal/domain"
)

// Store is a bun-backed implementation of app.Store. Multi-record writes run
// in a single transaction.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) Reset(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := tx.NewDelete().Model(tables[i]).Where("1 = 1").Exec(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
}

// users

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	exists, err := s.db.NewSelect().Model((*userRow)(nil)).Where("username = ?", user.Username).Exists(ctx)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if exists {
		return domain.ErrUsernameTaken
	}
	if _, err := s.db.NewInsert().Model(toUserRow(user)).Exec(ctx); err != nil {
		if isIntegrityViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	row := new(userRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", userID).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := new(userRow)
	if err := s.db.NewSelect().Model(row).Where("username = ?", username).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

// courses

func (s *Store) CreateCourse(ctx context.Context, course domain.Course) error {
	exists, err := s.db.NewSelect().Model((*userRow)(nil)).Where("id = ?", course.AuthorID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	row := &courseRow{
		ID:           course.ID,
		Name:         course.Name,
		Code:         course.Code,
		PassingScore: course.PassingScore,
		AuthorID:     course.AuthorID,
		QuizID:       course.QuizID,
		CreatedAt:    s.now(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (s *Store) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	row, err := getCourse(ctx, s.db, courseID)
	if err != nil {
		return domain.Course{}, err
	}
	return row.toDomain(), nil
}

func getCourse(ctx context.Context, db bun.IDB, courseID string) (*courseRow, error) {
	row := new(courseRow)
	if err := db.NewSelect().Model(row).Where("c.id = ?", courseID).Scan(ctx); err != nil {
		return nil, notFound(err, domain.ErrCourseNotFound)
	}
	return row, nil
}

func (s *Store) UpdateCourse(ctx context.Context, course domain.Course) error {
	res, err := s.db.NewUpdate().
		Model((*courseRow)(nil)).
		Set("name = ?", course.Name).
		Set("code = ?", course.Code).
		Set("passing_score = ?", course.PassingScore).
		Where("id = ?", course.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}

func (s *Store) DeleteCourse(ctx context.Context, courseID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getCourse(ctx, tx, courseID); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*quizRow)(nil)).Where("course_id = ?", courseID).Exec(ctx); err != nil {
			return fmt.Errorf("delete course quiz: %w", err)
		}
		if _, err := tx.NewDelete().Model((*enrollmentRow)(nil)).Where("course_id = ?", courseID).Exec(ctx); err != nil {
			return fmt.Errorf("delete course enrollments: %w", err)
		}
		if _, err := tx.NewDelete().Model((*courseRow)(nil)).Where("id = ?", courseID).Exec(ctx); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		return nil
	})
}

func (s *Store) ListCourses(ctx context.Context) ([]domain.CourseWithAuthor, error) {
	var rows []courseRow
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Author").
		OrderExpr("c.created_at ASC, c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	out := make([]domain.CourseWithAuthor, 0, len(rows))
	for i := range rows {
		item := domain.CourseWithAuthor{Course: rows[i].toDomain()}
		if rows[i].Author != nil {
			item.Author = rows[i].Author.toDomain()
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Store) ListCoursesByAuthor(ctx context.Context, authorID string) ([]domain.Course, error) {
	var rows []courseRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("c.author_id = ?", authorID).
		OrderExpr("c.created_at ASC, c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses by author: %w", err)
	}
	out := make([]domain.Course, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// quizzes

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := new(quizRow)
	if err := s.db.NewSelect().Model(row).Where("q.id = ?", quizID).Scan(ctx); err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ReplaceQuiz(ctx context.Context, courseID string, quiz domain.Quiz) (string, error) {
	var previous string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the no-op update takes the course row lock, so concurrent replaces
		// of one course run one after the other from here on
		res, err := tx.NewUpdate().
			Model((*courseRow)(nil)).
			Set("quiz_id = quiz_id").
			Where("id = ?", courseID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lock course: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrCourseNotFound
		}
		course, err := getCourse(ctx, tx, courseID)
		if err != nil {
			return err
		}
		previous = course.QuizID

		quiz.CourseID = courseID
		if _, err := tx.NewInsert().Model(toQuizRow(quiz)).Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		_, err = tx.NewUpdate().
			Model((*courseRow)(nil)).
			Set("quiz_id = ?", quiz.ID).
			Where("id = ?", courseID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("link quiz: %w", err)
		}
		// sweeps the previous quiz and anything left by an interrupted replace
		_, err = tx.NewDelete().
			Model((*quizRow)(nil)).
			Where("course_id = ?", courseID).
			Where("id <> ?", quiz.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete previous quiz: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// enrollments

func (s *Store) Enroll(ctx context.Context, enrollment domain.Enrollment) (bool, error) {
	if _, err := getCourse(ctx, s.db, enrollment.CourseID); err != nil {
		return false, err
	}
	row := &enrollmentRow{
		StudentID:   enrollment.StudentID,
		CourseID:    enrollment.CourseID,
		ScoredMarks: enrollment.ScoredMarks,
		EnrolledAt:  enrollment.EnrolledAt,
		ScoredAt:    enrollment.ScoredAt,
	}
	res, err := s.db.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("enroll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enroll: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Unenroll(ctx context.Context, studentID, courseID string) error {
	res, err := s.db.NewDelete().
		Model((*enrollmentRow)(nil)).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Store) FindEnrollment(ctx context.Context, studentID, courseID string) (domain.Enrollment, error) {
	row := new(enrollmentRow)
	err := s.db.NewSelect().
		Model(row).
		Where("e.student_id = ? AND e.course_id = ?", studentID, courseID).
		Scan(ctx)
	if err != nil {
		return domain.Enrollment{}, notFound(err, domain.ErrEnrollmentNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListEnrollments(ctx context.Context, studentID string) ([]domain.TakenCourse, error) {
	var rows []enrollmentRow
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Course").
		Where("e.student_id = ?", studentID).
		OrderExpr("e.enrolled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make([]domain.TakenCourse, 0, len(rows))
	for i := range rows {
		taken := domain.TakenCourse{
			ScoredMarks: rows[i].ScoredMarks,
			EnrolledAt:  rows[i].EnrolledAt,
			ScoredAt:    rows[i].ScoredAt,
		}
		if rows[i].Course != nil {
			taken.Course = rows[i].Course.toDomain()
		}
		out = append(out, taken)
	}
	return out, nil
}

// MarkAttemptStarted keeps the first recorded start: COALESCE never
// overwrites it.
func (s *Store) MarkAttemptStarted(ctx context.Context, studentID, courseID string, at time.Time) (time.Time, error) {
	res, err := s.db.NewUpdate().
		Model((*enrollmentRow)(nil)).
		Set("started_at = COALESCE(started_at, ?)", at).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Where("scored_marks = ?", domain.NotAttempted).
		Exec(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("mark attempt started: %w", err)
	}
	enrollment, err := s.FindEnrollment(ctx, studentID, courseID)
	if err != nil {
		return time.Time{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 || enrollment.StartedAt == nil {
		return time.Time{}, domain.ErrAlreadyAttempted
	}
	return *enrollment.StartedAt, nil
}

// RecordScore only updates a row still holding the not-attempted marker, so
// concurrent submissions cannot both win.
func (s *Store) RecordScore(ctx context.Context, studentID, courseID string, score int, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*enrollmentRow)(nil)).
		Set("scored_marks = ?", score).
		Set("scored_at = ?", at).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Where("scored_marks = ?", domain.NotAttempted).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.FindEnrollment(ctx, studentID, courseID); err != nil {
		return err
	}
	return domain.ErrAlreadyAttempted
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
