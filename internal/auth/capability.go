package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"quizzer/internal/domain"
)

// Capability is a single authorization predicate over the request and its
// principal. A nil principal means the request is anonymous.
type Capability func(r *http.Request, p *Principal) error

// ErrorWriter reports a failed capability check to the client.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// CourseLookup resolves courses for ownership checks.
type CourseLookup interface {
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
}

var errLoginRequired = &domain.Error{
	Kind:     domain.KindUnauthenticated,
	Message:  "You need to login first",
	Redirect: "/login",
}

// Authenticated requires a logged in user.
func Authenticated() Capability {
	return func(_ *http.Request, p *Principal) error {
		if p == nil {
			return errLoginRequired
		}
		return nil
	}
}

// Teacher requires the teacher role.
func Teacher() Capability {
	return hasRole(domain.RoleTeacher, "You need to be a teacher to make a course")
}

// Student requires the student role.
func Student() Capability {
	return hasRole(domain.RoleStudent, "You need to be a student to register for a course")
}

func hasRole(role domain.Role, message string) Capability {
	return func(_ *http.Request, p *Principal) error {
		if p == nil {
			return errLoginRequired
		}
		if p.Role != role {
			return domain.Forbidden(message, "/")
		}
		return nil
	}
}

// CourseAuthor requires the principal to be the author of the course named
// by the route variable param.
func CourseAuthor(courses CourseLookup, param string) Capability {
	return func(r *http.Request, p *Principal) error {
		if p == nil {
			return errLoginRequired
		}
		course, err := courses.GetCourse(r.Context(), mux.Vars(r)[param])
		if err != nil {
			return err
		}
		if course.AuthorID != p.ID {
			return domain.Forbidden("You need to be the creator of the course to edit it", "/profile")
		}
		return nil
	}
}

// Self requires the route variable param to equal the principal's id.
func Self(param string) Capability {
	return func(r *http.Request, p *Principal) error {
		if p == nil {
			return errLoginRequired
		}
		if mux.Vars(r)[param] != p.ID {
			return domain.Forbidden("You can take only your tests", "/profile")
		}
		return nil
	}
}

// Require composes capabilities into middleware; they are checked in order
// and the first failure is reported through onErr. An anonymous GET that
// fails remembers its URL so login can return there.
func Require(onErr ErrorWriter, caps ...Capability) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFrom(r.Context())
			for _, c := range caps {
				err := c(r, p)
				if err == nil {
					continue
				}
				if p == nil && r.Method == http.MethodGet {
					if sess := SessionFrom(r.Context()); sess != nil {
						sess.SetRedirect(r.URL.RequestURI())
					}
				}
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Check evaluates capabilities without wrapping a handler.
func Check(r *http.Request, caps ...Capability) error {
	p, _ := PrincipalFrom(r.Context())
	for _, c := range caps {
		if err := c(r, p); err != nil {
			return err
		}
	}
	return nil
}
