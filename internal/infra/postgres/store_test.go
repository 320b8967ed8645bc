package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"quizzer/internal/domain"
)

// newTestStore runs the store against an in-memory SQLite database; the
// queries it issues are portable between both dialects.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := CreateSchema(ctx, db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if err := CreateIndexes(ctx, db); err != nil {
		t.Fatalf("create indexes: %v", err)
	}

	store := NewStore(db)
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	if err := store.CreateUser(ctx, domain.User{ID: "t1", Username: "teach", Name: "Tess", Role: domain.RoleTeacher, CreatedAt: tick}); err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	if err := store.CreateUser(ctx, domain.User{ID: "s1", Username: "stud", Name: "Sam", Role: domain.RoleStudent, CreatedAt: tick}); err != nil {
		t.Fatalf("create student: %v", err)
	}
	if err := store.CreateCourse(ctx, domain.Course{ID: "c1", Name: "Math", Code: "M1", PassingScore: 10, AuthorID: "t1"}); err != nil {
		t.Fatalf("create course: %v", err)
	}
	return store
}

func sampleQuiz(id string) domain.Quiz {
	return domain.Quiz{
		ID:              id,
		Name:            "Math",
		Topics:          []string{"sums"},
		DurationMinutes: 5,
		Questions: []domain.Question{
			{Prompt: "2+2?", Options: [4]string{"4", "3", "5", "6"}, CorrectOption: 1},
			{Prompt: "3+3?", Options: [4]string{"5", "7", "6", "8"}, CorrectOption: 3},
		},
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateUser(ctx, domain.User{ID: "x", Username: "teach"}); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
	user, err := store.GetUserByUsername(ctx, "stud")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if user.ID != "s1" || user.Role != domain.RoleStudent {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestStoreReplaceQuiz(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	prev, err := store.ReplaceQuiz(ctx, "c1", sampleQuiz("q1"))
	if err != nil || prev != "" {
		t.Fatalf("first replace = (%q, %v)", prev, err)
	}
	prev, err = store.ReplaceQuiz(ctx, "c1", sampleQuiz("q2"))
	if err != nil || prev != "q1" {
		t.Fatalf("second replace = (%q, %v)", prev, err)
	}

	count, err := store.DB().NewSelect().Model((*quizRow)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("count quizzes: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one quiz row, got %d", count)
	}

	course, err := store.GetCourse(ctx, "c1")
	if err != nil || course.QuizID != "q2" {
		t.Fatalf("expected course linked to q2, got %+v, %v", course, err)
	}
	quiz, err := store.GetQuiz(ctx, "q2")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.CourseID != "c1" || len(quiz.Questions) != 2 || quiz.Questions[1].CorrectOption != 3 || quiz.Questions[1].Options[2] != "6" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if _, err := store.ReplaceQuiz(ctx, "nope", sampleQuiz("q3")); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
}

func TestStoreConcurrentReplaceQuizKeepsOneQuiz(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// left behind by an earlier replace that never linked it
	orphan := sampleQuiz("orphan")
	orphan.CourseID = "c1"
	if _, err := store.DB().NewInsert().Model(toQuizRow(orphan)).Exec(ctx); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.ReplaceQuiz(ctx, "c1", sampleQuiz(fmt.Sprintf("q%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
	}

	var ids []string
	if err := store.DB().NewSelect().Model((*quizRow)(nil)).Column("id").Scan(ctx, &ids); err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one quiz row, got %v", ids)
	}
	course, err := store.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if course.QuizID != ids[0] {
		t.Fatalf("course links %q but the remaining quiz is %q", course.QuizID, ids[0])
	}
}

func TestStoreEnrollAndScore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	enrolledAt := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	ok, err := store.Enroll(ctx, domain.Enrollment{StudentID: "s1", CourseID: "c1", ScoredMarks: domain.NotAttempted, EnrolledAt: enrolledAt})
	if err != nil || !ok {
		t.Fatalf("enroll = (%v, %v)", ok, err)
	}
	ok, err = store.Enroll(ctx, domain.Enrollment{StudentID: "s1", CourseID: "c1", ScoredMarks: domain.NotAttempted, EnrolledAt: enrolledAt})
	if err != nil || ok {
		t.Fatalf("duplicate enroll = (%v, %v)", ok, err)
	}
	if _, err := store.Enroll(ctx, domain.Enrollment{StudentID: "s1", CourseID: "nope"}); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}

	if err := store.RecordScore(ctx, "s1", "c1", 20, enrolledAt.Add(time.Hour)); err != nil {
		t.Fatalf("record score: %v", err)
	}
	if err := store.RecordScore(ctx, "s1", "c1", 10, enrolledAt.Add(2*time.Hour)); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	if err := store.RecordScore(ctx, "t1", "c1", 10, enrolledAt); !errors.Is(err, domain.ErrEnrollmentNotFound) {
		t.Fatalf("expected enrollment not found, got %v", err)
	}

	taken, err := store.ListEnrollments(ctx, "s1")
	if err != nil {
		t.Fatalf("list enrollments: %v", err)
	}
	if len(taken) != 1 || taken[0].ScoredMarks != 20 || taken[0].Course.Name != "Math" || taken[0].ScoredAt == nil {
		t.Fatalf("unexpected taken courses %+v", taken)
	}

	if err := store.Unenroll(ctx, "s1", "c1"); err != nil {
		t.Fatalf("unenroll: %v", err)
	}
	if err := store.Unenroll(ctx, "s1", "c1"); !errors.Is(err, domain.ErrEnrollmentNotFound) {
		t.Fatalf("expected enrollment not found, got %v", err)
	}
}

func TestStoreCoursesAndCascade(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateCourse(ctx, domain.Course{ID: "c2", Name: "Art", Code: "A1", AuthorID: "t1"}); err != nil {
		t.Fatalf("create course: %v", err)
	}
	if err := store.CreateCourse(ctx, domain.Course{ID: "c3", Name: "X", AuthorID: "ghost"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected author not found, got %v", err)
	}

	courses, err := store.ListCourses(ctx)
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 2 || courses[0].ID != "c1" || courses[1].ID != "c2" || courses[0].Author.Name != "Tess" {
		t.Fatalf("unexpected courses %+v", courses)
	}

	if err := store.UpdateCourse(ctx, domain.Course{ID: "c2", Name: "Fine Art", Code: "A2", PassingScore: 30}); err != nil {
		t.Fatalf("update: %v", err)
	}
	offered, err := store.ListCoursesByAuthor(ctx, "t1")
	if err != nil || len(offered) != 2 || offered[1].Name != "Fine Art" || offered[1].AuthorID != "t1" {
		t.Fatalf("unexpected offered %+v, %v", offered, err)
	}
	if err := store.UpdateCourse(ctx, domain.Course{ID: "nope"}); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}

	_, _ = store.ReplaceQuiz(ctx, "c1", sampleQuiz("q1"))
	_, _ = store.Enroll(ctx, domain.Enrollment{StudentID: "s1", CourseID: "c1", ScoredMarks: domain.NotAttempted})
	if err := store.DeleteCourse(ctx, "c1"); err != nil {
		t.Fatalf("delete course: %v", err)
	}
	if _, err := store.GetQuiz(ctx, "q1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz removed, got %v", err)
	}
	if _, err := store.FindEnrollment(ctx, "s1", "c1"); !errors.Is(err, domain.ErrEnrollmentNotFound) {
		t.Fatalf("expected enrollment removed, got %v", err)
	}
	if err := store.DeleteCourse(ctx, "c1"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	courses, err := store.ListCourses(ctx)
	if err != nil || len(courses) != 0 {
		t.Fatalf("expected no courses, got %+v, %v", courses, err)
	}
	if _, err := store.GetUser(ctx, "t1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected users wiped, got %v", err)
	}
}
