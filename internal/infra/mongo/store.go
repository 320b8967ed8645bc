package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizzer/internal/domain"
)

// Store is a MongoDB implementation of app.Store. Standalone servers have no
// multi-document transactions, so ReplaceQuiz links the new quiz with a
// compare-and-set on the course before deleting the old one, and undoes the
// insert if linking fails.
type Store struct {
	users       *mongo.Collection
	courses     *mongo.Collection
	quizzes     *mongo.Collection
	enrollments *mongo.Collection
	now         func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		users:       db.Collection("users"),
		courses:     db.Collection("courses"),
		quizzes:     db.Collection("quizzes"),
		enrollments: db.Collection("enrollments"),
		now:         time.Now,
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.courses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("courses index: %w", err)
	}
	if _, err := s.enrollments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "enrolled_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("enrollments index: %w", err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.enrollments, s.quizzes, s.courses, s.users} {
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("reset %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// users

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	doc := userDoc{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Age:          user.Age,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (domain.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return doc.toDomain(), nil
}

// courses

func (s *Store) CreateCourse(ctx context.Context, course domain.Course) error {
	if _, err := s.GetUser(ctx, course.AuthorID); err != nil {
		return err
	}
	doc := courseDoc{
		ID:           course.ID,
		Name:         course.Name,
		Code:         course.Code,
		PassingScore: course.PassingScore,
		AuthorID:     course.AuthorID,
		QuizID:       course.QuizID,
		CreatedAt:    s.now(),
	}
	if _, err := s.courses.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (s *Store) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var doc courseDoc
	if err := s.courses.FindOne(ctx, bson.M{"_id": courseID}).Decode(&doc); err != nil {
		return domain.Course{}, notFound(err, domain.ErrCourseNotFound)
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateCourse(ctx context.Context, course domain.Course) error {
	res, err := s.courses.UpdateOne(ctx, bson.M{"_id": course.ID}, bson.M{"$set": bson.M{
		"name":          course.Name,
		"code":          course.Code,
		"passing_score": course.PassingScore,
	}})
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}

// DeleteCourse removes children before the course so a failed call can be retried.
func (s *Store) DeleteCourse(ctx context.Context, courseID string) error {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return err
	}
	if _, err := s.quizzes.DeleteMany(ctx, bson.M{"course_id": courseID}); err != nil {
		return fmt.Errorf("delete course quiz: %w", err)
	}
	if _, err := s.enrollments.DeleteMany(ctx, bson.M{"course_id": courseID}); err != nil {
		return fmt.Errorf("delete course enrollments: %w", err)
	}
	if _, err := s.courses.DeleteOne(ctx, bson.M{"_id": courseID}); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

func (s *Store) ListCourses(ctx context.Context) ([]domain.CourseWithAuthor, error) {
	docs, err := s.findCourses(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	authorIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		authorIDs = append(authorIDs, d.AuthorID)
	}
	authors, err := s.usersByID(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	out := make([]domain.CourseWithAuthor, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.CourseWithAuthor{Course: d.toDomain(), Author: authors[d.AuthorID]})
	}
	return out, nil
}

func (s *Store) ListCoursesByAuthor(ctx context.Context, authorID string) ([]domain.Course, error) {
	docs, err := s.findCourses(ctx, bson.M{"author_id": authorID})
	if err != nil {
		return nil, fmt.Errorf("list courses by author: %w", err)
	}
	out := make([]domain.Course, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) findCourses(ctx context.Context, filter interface{}) ([]courseDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.courses.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []courseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) usersByID(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d.toDomain()
	}
	return out, nil
}

// quizzes

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var doc quizDoc
	if err := s.quizzes.FindOne(ctx, bson.M{"_id": quizID}).Decode(&doc); err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound)
	}
	return doc.toDomain(), nil
}

// replaceAttempts bounds how often ReplaceQuiz retries a link that lost to a
// concurrent replace of the same course.
const replaceAttempts = 8

func (s *Store) ReplaceQuiz(ctx context.Context, courseID string, quiz domain.Quiz) (string, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return "", err
	}
	quiz.CourseID = courseID
	if _, err := s.quizzes.InsertOne(ctx, toQuizDoc(quiz)); err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}

	for i := 0; i < replaceAttempts; i++ {
		course, err := s.GetCourse(ctx, courseID)
		if err != nil {
			return "", s.undoInsert(ctx, quiz.ID, err)
		}
		previous := course.QuizID

		// only swap the link if nobody replaced the quiz since we read it
		filter := bson.M{"_id": courseID, "quiz_id": previous}
		if previous == "" {
			filter["quiz_id"] = bson.M{"$in": bson.A{nil, ""}}
		}
		res, err := s.courses.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"quiz_id": quiz.ID}})
		if err != nil {
			return "", s.undoInsert(ctx, quiz.ID, fmt.Errorf("link quiz: %w", err))
		}
		if res.MatchedCount == 0 {
			continue
		}
		if previous != "" {
			if _, err := s.quizzes.DeleteOne(ctx, bson.M{"_id": previous}); err != nil {
				return previous, fmt.Errorf("delete previous quiz: %w", err)
			}
		}
		return previous, nil
	}
	return "", s.undoInsert(ctx, quiz.ID, domain.E(domain.KindConflict, "", "quiz is being replaced concurrently, try again"))
}

// undoInsert deletes a quiz that was never linked so the course keeps
// exactly one. A failed delete is carried on the returned error.
func (s *Store) undoInsert(ctx context.Context, quizID string, cause error) error {
	_, err := s.quizzes.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": quizID})
	if err == nil {
		return cause
	}
	undo := fmt.Errorf("undo quiz insert %s: %w", quizID, err)
	var de *domain.Error
	if errors.As(cause, &de) {
		joined := *de
		joined.Err = errors.Join(de.Err, undo)
		return &joined
	}
	return errors.Join(cause, undo)
}

// enrollments

func (s *Store) Enroll(ctx context.Context, enrollment domain.Enrollment) (bool, error) {
	if _, err := s.GetCourse(ctx, enrollment.CourseID); err != nil {
		return false, err
	}
	doc := enrollmentDoc{
		ID:          enrollmentID(enrollment.StudentID, enrollment.CourseID),
		StudentID:   enrollment.StudentID,
		CourseID:    enrollment.CourseID,
		ScoredMarks: enrollment.ScoredMarks,
		EnrolledAt:  enrollment.EnrolledAt,
		ScoredAt:    enrollment.ScoredAt,
	}
	if _, err := s.enrollments.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("enroll: %w", err)
	}
	return true, nil
}

func (s *Store) Unenroll(ctx context.Context, studentID, courseID string) error {
	res, err := s.enrollments.DeleteOne(ctx, bson.M{"_id": enrollmentID(studentID, courseID)})
	if err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Store) FindEnrollment(ctx context.Context, studentID, courseID string) (domain.Enrollment, error) {
	var doc enrollmentDoc
	if err := s.enrollments.FindOne(ctx, bson.M{"_id": enrollmentID(studentID, courseID)}).Decode(&doc); err != nil {
		return domain.Enrollment{}, notFound(err, domain.ErrEnrollmentNotFound)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListEnrollments(ctx context.Context, studentID string) ([]domain.TakenCourse, error) {
	opts := options.Find().SetSort(bson.D{{Key: "enrolled_at", Value: 1}})
	cur, err := s.enrollments.Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	var docs []enrollmentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	courseIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		courseIDs = append(courseIDs, d.CourseID)
	}
	courses := make(map[string]domain.Course, len(courseIDs))
	if len(courseIDs) > 0 {
		found, err := s.findCourses(ctx, bson.M{"_id": bson.M{"$in": courseIDs}})
		if err != nil {
			return nil, fmt.Errorf("list enrollments: %w", err)
		}
		for _, c := range found {
			courses[c.ID] = c.toDomain()
		}
	}

	out := make([]domain.TakenCourse, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.TakenCourse{
			Course:      courses[d.CourseID],
			ScoredMarks: d.ScoredMarks,
			EnrolledAt:  d.EnrolledAt,
			ScoredAt:    d.ScoredAt,
		})
	}
	return out, nil
}

// MarkAttemptStarted sets started_at only while it is unset, so the first
// start wins.
func (s *Store) MarkAttemptStarted(ctx context.Context, studentID, courseID string, at time.Time) (time.Time, error) {
	filter := bson.M{
		"_id":          enrollmentID(studentID, courseID),
		"scored_marks": domain.NotAttempted,
		"started_at":   nil,
	}
	if _, err := s.enrollments.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"started_at": at}}); err != nil {
		return time.Time{}, fmt.Errorf("mark attempt started: %w", err)
	}
	enrollment, err := s.FindEnrollment(ctx, studentID, courseID)
	if err != nil {
		return time.Time{}, err
	}
	if enrollment.Attempted() || enrollment.StartedAt == nil {
		return time.Time{}, domain.ErrAlreadyAttempted
	}
	return *enrollment.StartedAt, nil
}

// RecordScore matches only a record that still carries the not-attempted
// marker; the update is atomic per document.
func (s *Store) RecordScore(ctx context.Context, studentID, courseID string, score int, at time.Time) error {
	filter := bson.M{"_id": enrollmentID(studentID, courseID), "scored_marks": domain.NotAttempted}
	res, err := s.enrollments.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"scored_marks": score, "scored_at": at}})
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := s.FindEnrollment(ctx, studentID, courseID); err != nil {
		return err
	}
	return domain.ErrAlreadyAttempted
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel
	}
	return err
}
