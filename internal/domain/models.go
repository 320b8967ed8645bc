package domain

import "time"

// Role is the occupation a user registered with.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// NotAttempted marks an enrollment whose quiz has not been taken yet.
const NotAttempted = -1

// PointsPerQuestion is awarded for every correctly answered question.
const PointsPerQuestion = 10

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// OptionLetters maps a stored correct option (1..4) to its display letter.
// Index 0 is intentionally blank.
var OptionLetters = [OptionCount + 1]string{"", "A", "B", "C", "D"}

// User is a registered teacher or student.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Role         Role      `json:"occupation"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Course is a teacher-owned unit with at most one quiz.
type Course struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	PassingScore int    `json:"passingScore"`
	AuthorID     string `json:"authorId"`
	QuizID       string `json:"quizId,omitempty"`
}

// HasQuiz reports whether a quiz is linked to the course.
func (c Course) HasQuiz() bool {
	return c.QuizID != ""
}

// Question is a single multiple-choice prompt with exactly four options.
type Question struct {
	Prompt        string              `json:"prompt"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption int                 `json:"correctOption"` // 1..4
}

// CorrectLetter returns the letter of the correct option, or "" when unset.
func (q Question) CorrectLetter() string {
	if q.CorrectOption < 1 || q.CorrectOption > OptionCount {
		return ""
	}
	return OptionLetters[q.CorrectOption]
}

// Quiz is an ordered, timed set of questions owned by one course.
type Quiz struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Topics          []string   `json:"topics"`
	DurationMinutes int        `json:"duration"`
	Questions       []Question `json:"questions"`
	CourseID        string     `json:"courseId"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// MaxScore is the best score a student can get on the quiz.
func (q Quiz) MaxScore() int {
	return len(q.Questions) * PointsPerQuestion
}

// Duration returns the time limit as a time.Duration.
func (q Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// Enrollment tracks a student's attempt status and score for one course.
type Enrollment struct {
	StudentID   string     `json:"studentId"`
	CourseID    string     `json:"courseId"`
	ScoredMarks int        `json:"scoredMarks"`
	EnrolledAt  time.Time  `json:"enrolledAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	ScoredAt    *time.Time `json:"scoredAt,omitempty"`
}

// Attempted reports whether a score has been recorded.
func (e Enrollment) Attempted() bool {
	return e.ScoredMarks != NotAttempted
}

// QuestionView is the client-facing shape of a question in the feed.
type QuestionView struct {
	QuestionID    int    `json:"questionId"`
	Question      string `json:"question"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectOption string `json:"correctOption"`
}

// Option returns the option text for a zero-based index.
func (v QuestionView) Option(idx int) string {
	switch idx {
	case 0:
		return v.OptionA
	case 1:
		return v.OptionB
	case 2:
		return v.OptionC
	case 3:
		return v.OptionD
	}
	return ""
}

// CourseWithAuthor is a course joined with its author.
type CourseWithAuthor struct {
	Course
	Author User `json:"author"`
}

// CourseDetail is a course joined with its quiz, if any.
type CourseDetail struct {
	Course
	Quiz *Quiz `json:"quiz,omitempty"`
}

// TakenCourse is an enrollment joined with its course.
type TakenCourse struct {
	Course      Course     `json:"course"`
	ScoredMarks int        `json:"scoredMarks"`
	EnrolledAt  time.Time  `json:"enrolledAt"`
	ScoredAt    *time.Time `json:"scoredAt,omitempty"`
}

// Profile is a user together with the courses they offer or take.
type Profile struct {
	User           User          `json:"user"`
	CoursesOffered []Course      `json:"coursesOffered"`
	CoursesTaken   []TakenCourse `json:"coursesTaken"`
}
