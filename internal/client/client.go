// Package client talks to a running quizzer server on behalf of the terminal
// runner.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"quizzer/internal/app"
	"quizzer/internal/domain"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Principal is the logged in user as reported by the server.
type Principal struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client that keeps the session cookie between calls.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// Login authenticates and returns the principal the session now belongs to.
func (c *Client) Login(ctx context.Context, username, password string) (Principal, error) {
	var out struct {
		User Principal `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &out); err != nil {
		return Principal{}, err
	}
	return out.User, nil
}

// Attempt asks the server whether the student may take the course quiz now.
func (c *Client) Attempt(ctx context.Context, courseID, studentID string) (app.Attempt, error) {
	var out struct {
		Data app.Attempt `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, coursePath(courseID, "quiz", studentID), nil, &out); err != nil {
		return app.Attempt{}, err
	}
	return out.Data, nil
}

// Feed fetches the ordered question feed of a course.
func (c *Client) Feed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	var feed []domain.QuestionView
	if err := c.do(ctx, http.MethodGet, "/internalAPI/"+url.PathEscape(courseID), nil, &feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// SubmitScore records the final score of an attempt.
func (c *Client) SubmitScore(ctx context.Context, courseID, studentID string, score int) (domain.Enrollment, error) {
	var out struct {
		Data domain.Enrollment `json:"data"`
	}
	body := map[string]int{"score": score}
	if err := c.do(ctx, http.MethodPost, coursePath(courseID, "quiz", studentID), body, &out); err != nil {
		return domain.Enrollment{}, err
	}
	return out.Data, nil
}

func coursePath(courseID string, rest ...string) string {
	parts := []string{"/course", url.PathEscape(courseID)}
	for _, r := range rest {
		parts = append(parts, url.PathEscape(r))
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
