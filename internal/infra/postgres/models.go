package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"quizzer/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:",pk"`
	Username     string    `bun:",notnull,unique"`
	PasswordHash string    `bun:",notnull"`
	Name         string    `bun:",notnull"`
	Age          int       `bun:",notnull"`
	Role         string    `bun:",notnull"`
	CreatedAt    time.Time `bun:",notnull"`
}

type courseRow struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID           string    `bun:",pk"`
	Name         string    `bun:",notnull"`
	Code         string    `bun:",notnull"`
	PassingScore int       `bun:",notnull"`
	AuthorID     string    `bun:",notnull"`
	QuizID       string    `bun:",nullzero"`
	CreatedAt    time.Time `bun:",notnull"`

	Author *userRow `bun:"rel:belongs-to,join:author_id=id"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID              string        `bun:",pk"`
	CourseID        string        `bun:",notnull"`
	Name            string        `bun:",notnull"`
	Topics          []string      `bun:",notnull"`
	DurationMinutes int           `bun:",notnull"`
	Questions       []questionDoc `bun:",notnull"`
	CreatedAt       time.Time     `bun:",notnull"`
}

// questionDoc is the JSON shape of a question inside quizzes.questions.
type questionDoc struct {
	Prompt  string                     `json:"question"`
	Options [domain.OptionCount]string `json:"options"`
	Correct int                        `json:"correctOption"`
}

type enrollmentRow struct {
	bun.BaseModel `bun:"table:enrollments,alias:e"`

	StudentID   string     `bun:",pk"`
	CourseID    string     `bun:",pk"`
	ScoredMarks int        `bun:",notnull"`
	EnrolledAt  time.Time  `bun:",notnull"`
	StartedAt   *time.Time `bun:",nullzero"`
	ScoredAt    *time.Time `bun:",nullzero"`

	Course *courseRow `bun:"rel:belongs-to,join:course_id=id"`
}

var tables = []interface{}{
	(*userRow)(nil),
	(*courseRow)(nil),
	(*quizRow)(nil),
	(*enrollmentRow)(nil),
}

// CreateSchema creates every table the store needs if it does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes adds the lookup indexes used by listing queries.
func CreateIndexes(ctx context.Context, db bun.IDB) error {
	indexes := []struct {
		model  interface{}
		name   string
		column string
	}{
		{(*courseRow)(nil), "courses_author_id_idx", "author_id"},
		{(*quizRow)(nil), "quizzes_course_id_idx", "course_id"},
		{(*enrollmentRow)(nil), "enrollments_course_id_idx", "course_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// DropSchema removes every table, children first.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func toUserRow(u domain.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Age:          u.Age,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func (r *userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Name:         r.Name,
		Age:          r.Age,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

func (r *courseRow) toDomain() domain.Course {
	return domain.Course{
		ID:           r.ID,
		Name:         r.Name,
		Code:         r.Code,
		PassingScore: r.PassingScore,
		AuthorID:     r.AuthorID,
		QuizID:       r.QuizID,
	}
}

func toQuizRow(q domain.Quiz) *quizRow {
	docs := make([]questionDoc, 0, len(q.Questions))
	for _, question := range q.Questions {
		docs = append(docs, questionDoc{Prompt: question.Prompt, Options: question.Options, Correct: question.CorrectOption})
	}
	topics := q.Topics
	if topics == nil {
		topics = []string{}
	}
	return &quizRow{
		ID:              q.ID,
		CourseID:        q.CourseID,
		Name:            q.Name,
		Topics:          topics,
		DurationMinutes: q.DurationMinutes,
		Questions:       docs,
		CreatedAt:       q.CreatedAt,
	}
}

func (r *quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:              r.ID,
		Name:            r.Name,
		Topics:          r.Topics,
		DurationMinutes: r.DurationMinutes,
		Questions:       questionsFromDocs(r.Questions),
		CourseID:        r.CourseID,
		CreatedAt:       r.CreatedAt,
	}
}

func questionsFromDocs(docs []questionDoc) []domain.Question {
	out := make([]domain.Question, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Question{Prompt: d.Prompt, Options: d.Options, CorrectOption: d.Correct})
	}
	return out
}

func (r *enrollmentRow) toDomain() domain.Enrollment {
	return domain.Enrollment{
		StudentID:   r.StudentID,
		CourseID:    r.CourseID,
		ScoredMarks: r.ScoredMarks,
		EnrolledAt:  r.EnrolledAt,
		StartedAt:   r.StartedAt,
		ScoredAt:    r.ScoredAt,
	}
}
