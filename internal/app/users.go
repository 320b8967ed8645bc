package app

import (
	"context"
	"errors"
	"strings"

	"quizzer/internal/auth"
	"quizzer/internal/domain"
)

// RegisterInput is the registration form.
type RegisterInput struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Age        int    `json:"age"`
	Occupation string `json:"occupation"`
}

// Register creates a teacher or student account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	const op = "register"

	username := strings.TrimSpace(in.Username)
	name := strings.TrimSpace(in.Name)
	role := domain.Role(strings.ToLower(strings.TrimSpace(in.Occupation)))
	switch {
	case username == "":
		return domain.User{}, domain.Validation(op, "no username was given")
	case in.Password == "":
		return domain.User{}, domain.Validation(op, "no password was given")
	case name == "":
		return domain.User{}, domain.Validation(op, "no name was given")
	case in.Age < 0:
		return domain.User{}, domain.Validation(op, "age must not be negative")
	case !role.Valid():
		return domain.User{}, domain.Validation(op, "occupation must be teacher or student")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, domain.Wrap(op, err)
	}

	user := domain.User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Age:          in.Age,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return domain.User{}, domain.Wrap(op, err)
	}
	s.log.Info("user registered", "user", user.ID, "role", user.Role)
	return user, nil
}

// Authenticate resolves a username and password to a user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, domain.Wrap("login", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetUser looks a user up by id.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, domain.Wrap("get user", err)
	}
	return user, nil
}

// Profile returns the user with the courses they offer (teachers) or take
// (students), references resolved.
func (s *Service) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	const op = "profile"

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.Profile{}, domain.Wrap(op, err)
	}
	profile := domain.Profile{
		User:           user,
		CoursesOffered: []domain.Course{},
		CoursesTaken:   []domain.TakenCourse{},
	}

	switch user.Role {
	case domain.RoleTeacher:
		offered, err := s.store.ListCoursesByAuthor(ctx, user.ID)
		if err != nil {
			return domain.Profile{}, domain.Wrap(op, err)
		}
		profile.CoursesOffered = offered
	case domain.RoleStudent:
		taken, err := s.store.ListEnrollments(ctx, user.ID)
		if err != nil {
			return domain.Profile{}, domain.Wrap(op, err)
		}
		profile.CoursesTaken = taken
	}
	return profile, nil
}
