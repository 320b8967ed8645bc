package mongo

import (
	"time"

	"quizzer/internal/domain"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	Name         string    `bson:"name"`
	Age          int       `bson:"age"`
	Role         string    `bson:"occupation"`
	CreatedAt    time.Time `bson:"created_at"`
}

type courseDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Code         string    `bson:"code"`
	PassingScore int       `bson:"passing_score"`
	AuthorID     string    `bson:"author_id"`
	QuizID       string    `bson:"quiz_id,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

type questionDoc struct {
	Prompt  string   `bson:"question"`
	Options []string `bson:"options"`
	Correct int      `bson:"correct_option"`
}

type quizDoc struct {
	ID              string        `bson:"_id"`
	CourseID        string        `bson:"course_id"`
	Name            string        `bson:"name"`
	Topics          []string      `bson:"topics"`
	DurationMinutes int           `bson:"duration"`
	Questions       []questionDoc `bson:"questions"`
	CreatedAt       time.Time     `bson:"created_at"`
}

type enrollmentDoc struct {
	ID          string     `bson:"_id"`
	StudentID   string     `bson:"student_id"`
	CourseID    string     `bson:"course_id"`
	ScoredMarks int        `bson:"scored_marks"`
	EnrolledAt  time.Time  `bson:"enrolled_at"`
	StartedAt   *time.Time `bson:"started_at,omitempty"`
	ScoredAt    *time.Time `bson:"scored_at,omitempty"`
}

func enrollmentID(studentID, courseID string) string {
	return studentID + ":" + courseID
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		Age:          d.Age,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt,
	}
}

func (d courseDoc) toDomain() domain.Course {
	return domain.Course{
		ID:           d.ID,
		Name:         d.Name,
		Code:         d.Code,
		PassingScore: d.PassingScore,
		AuthorID:     d.AuthorID,
		QuizID:       d.QuizID,
	}
}

func toQuizDoc(q domain.Quiz) quizDoc {
	questions := make([]questionDoc, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, questionDoc{
			Prompt:  question.Prompt,
			Options: question.Options[:],
			Correct: question.CorrectOption,
		})
	}
	topics := q.Topics
	if topics == nil {
		topics = []string{}
	}
	return quizDoc{
		ID:              q.ID,
		CourseID:        q.CourseID,
		Name:            q.Name,
		Topics:          topics,
		DurationMinutes: q.DurationMinutes,
		Questions:       questions,
		CreatedAt:       q.CreatedAt,
	}
}

func (d quizDoc) toDomain() domain.Quiz {
	questions := make([]domain.Question, 0, len(d.Questions))
	for _, qd := range d.Questions {
		var q domain.Question
		q.Prompt = qd.Prompt
		copy(q.Options[:], qd.Options)
		q.CorrectOption = qd.Correct
		questions = append(questions, q)
	}
	return domain.Quiz{
		ID:              d.ID,
		Name:            d.Name,
		Topics:          d.Topics,
		DurationMinutes: d.DurationMinutes,
		Questions:       questions,
		CourseID:        d.CourseID,
		CreatedAt:       d.CreatedAt,
	}
}

func (d enrollmentDoc) toDomain() domain.Enrollment {
	return domain.Enrollment{
		StudentID:   d.StudentID,
		CourseID:    d.CourseID,
		ScoredMarks: d.ScoredMarks,
		EnrolledAt:  d.EnrolledAt,
		StartedAt:   d.StartedAt,
		ScoredAt:    d.ScoredAt,
	}
}
