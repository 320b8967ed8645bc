package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"quizzer/internal/domain"
)

type courseMap map[string]domain.Course

func (c courseMap) GetCourse(_ context.Context, id string) (domain.Course, error) {
	course, ok := c[id]
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return course, nil
}

// route runs a request for path through a router that guards
// /course/{cid}/quiz/{sid} with caps, as principal p.
func route(p *Principal, path string, caps ...Capability) (int, error) {
	var reported error
	onErr := func(w http.ResponseWriter, r *http.Request, err error) {
		reported = err
		w.WriteHeader(domain.KindOf(err).StatusCode())
	}
	r := mux.NewRouter()
	r.Handle("/course/{cid}/quiz/{sid}", Require(onErr, caps...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := context.WithValue(req.Context(), sessionKey, newSession("s", SessionData{}))
	if p != nil {
		ctx = context.WithValue(ctx, principalKey, p)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	return rec.Code, reported
}

func TestRequireCapabilities(t *testing.T) {
	courses := courseMap{"c1": {ID: "c1", AuthorID: "t1"}}
	teacher := &Principal{ID: "t1", Role: domain.RoleTeacher}
	otherTeacher := &Principal{ID: "t2", Role: domain.RoleTeacher}
	student := &Principal{ID: "s1", Role: domain.RoleStudent}

	cases := []struct {
		name   string
		p      *Principal
		path   string
		caps   []Capability
		status int
	}{
		{"anonymous", nil, "/course/c1/quiz/s1", []Capability{Authenticated()}, http.StatusUnauthorized},
		{"teacher allowed", teacher, "/course/c1/quiz/s1", []Capability{Teacher()}, http.StatusNoContent},
		{"student not teacher", student, "/course/c1/quiz/s1", []Capability{Teacher()}, http.StatusForbidden},
		{"teacher not student", teacher, "/course/c1/quiz/s1", []Capability{Student()}, http.StatusForbidden},
		{"author", teacher, "/course/c1/quiz/x", []Capability{Teacher(), CourseAuthor(courses, "cid")}, http.StatusNoContent},
		{"not author", otherTeacher, "/course/c1/quiz/x", []Capability{Teacher(), CourseAuthor(courses, "cid")}, http.StatusForbidden},
		{"unknown course", teacher, "/course/zz/quiz/x", []Capability{CourseAuthor(courses, "cid")}, http.StatusNotFound},
		{"self", student, "/course/c1/quiz/s1", []Capability{Student(), Self("sid")}, http.StatusNoContent},
		{"someone else", student, "/course/c1/quiz/s2", []Capability{Student(), Self("sid")}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := route(tc.p, tc.path, tc.caps...)
			if status != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, status)
			}
		})
	}
}

func TestRequireStopsAtFirstFailure(t *testing.T) {
	courses := courseMap{"c1": {ID: "c1", AuthorID: "t1"}}
	student := &Principal{ID: "s1", Role: domain.RoleStudent}

	_, err := route(student, "/course/c1/quiz/s1", Teacher(), CourseAuthor(courses, "cid"))
	if domain.PublicMessage(err) != "You need to be a teacher to make a course" {
		t.Fatalf("expected role failure reported first, got %v", err)
	}
}

func TestRequireRemembersAnonymousGet(t *testing.T) {
	sess := newSession("s", SessionData{})
	r := mux.NewRouter()
	r.Handle("/course/{cid}/quiz/{sid}", Require(func(w http.ResponseWriter, r *http.Request, err error) {
		if !errors.Is(err, errLoginRequired) {
			t.Errorf("expected login required, got %v", err)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}, Authenticated())(http.NotFoundHandler()))

	req := httptest.NewRequest(http.MethodGet, "/course/c1/quiz/s1?x=1", nil)
	req = req.WithContext(context.WithValue(req.Context(), sessionKey, sess))
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := sess.TakeRedirect(); got != "/course/c1/quiz/s1?x=1" {
		t.Fatalf("expected remembered url, got %q", got)
	}
}

func TestCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := Check(req, Authenticated()); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	req = req.WithContext(context.WithValue(req.Context(), principalKey, &Principal{ID: "t1", Role: domain.RoleTeacher}))
	if err := Check(req, Authenticated(), Teacher()); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}
