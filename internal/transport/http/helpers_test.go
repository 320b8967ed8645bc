package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"quizzer/internal/app"
	"quizzer/internal/auth"
	"quizzer/internal/domain"
	"quizzer/internal/infra/memory"
)

const testPassword = "secret-pass"

type fixture struct {
	server  *httptest.Server
	handler *Handler
	service *app.Service
	store   *memory.Store
	teacher domain.User
	student domain.User
	course  domain.Course
}

// newFixture serves the full route tree over an in-memory store seeded with
// one teacher, one student and a two question course the student is
// enrolled in.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	service := app.NewService(store, nil, app.WithLogger(log))
	sessions := auth.NewManager(memory.NewSessionStore(), service, auth.ManagerConfig{Secret: "test-secret"}).WithLogger(log)
	handler := NewHandler(service, sessions, Options{Logger: log, FeedTimeout: time.Second})

	f := &fixture{handler: handler, service: service, store: store}
	f.teacher = f.register(t, "tess", "Tess", "teacher")
	f.student = f.register(t, "sam", "Sam", "student")

	course, err := service.CreateCourse(ctx, f.teacher.ID, app.CourseInput{Name: "Arithmetic", Code: "AR101", PassingScore: 10})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	f.course = course
	if _, err := service.ReplaceQuiz(ctx, course.ID, sampleAuthoring()); err != nil {
		t.Fatalf("replace quiz: %v", err)
	}
	if _, err := service.Enroll(ctx, f.student.ID, []string{course.ID}); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	f.server = httptest.NewServer(handler.Routes())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) register(t *testing.T, username, name, occupation string) domain.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), app.RegisterInput{
		Name:       name,
		Username:   username,
		Password:   testPassword,
		Occupation: occupation,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func sampleAuthoring() app.AuthoringInput {
	return app.AuthoringInput{
		Topics:    []string{"addition"},
		Questions: []string{"2+2?", "3+3?"},
		Options: [][]string{
			{"4", "3", "5", "6"},
			{"5", "7", "6", "8"},
		},
		Correct:         []int{1, 3},
		DurationMinutes: 1,
	}
}

// newClient returns a cookie-keeping client, logged in when username is set.
func (f *fixture) newClient(t *testing.T, username string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	c := &http.Client{Jar: jar, Timeout: 5 * time.Second}
	if username != "" {
		resp, _ := f.do(t, c, http.MethodPost, "/login", map[string]string{"username": username, "password": testPassword})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %s: status %d", username, resp.StatusCode)
		}
	}
	return c
}

// do sends body as JSON (when non-nil) and decodes the JSON response.
func (f *fixture) do(t *testing.T, c *http.Client, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp, out
}

func flashOf(body map[string]interface{}, kind string) []interface{} {
	flash, _ := body["flash"].(map[string]interface{})
	msgs, _ := flash[kind].([]interface{})
	return msgs
}
