package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"quizzer/internal/auth"
	"quizzer/internal/domain"
)

const fallbackErrorMessage = "Oh No, Something Went Wrong!"

// page is the envelope every non-feed response is wrapped in.
type page struct {
	User  *auth.Principal     `json:"user"`
	Flash map[string][]string `json:"flash"`
	Data  interface{}         `json:"data,omitempty"`
}

type errorBody struct {
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// redirectTo is returned by form-style actions that would navigate next.
type redirectTo struct {
	Redirect string `json:"redirect"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// render writes data with the current user and the drained flash queue.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	p, _ := auth.PrincipalFrom(r.Context())
	h.renderAs(w, r, status, p, data)
}

func (h *Handler) renderAs(w http.ResponseWriter, r *http.Request, status int, p *auth.Principal, data interface{}) {
	out := page{User: p, Data: data}
	if sess := auth.SessionFrom(r.Context()); sess != nil {
		out.Flash = sess.DrainFlash()
	} else {
		out.Flash = map[string][]string{auth.FlashSuccess: {}, auth.FlashFail: {}}
	}
	writeJSON(w, status, out)
}

func flash(r *http.Request, kind, message string) {
	if sess := auth.SessionFrom(r.Context()); sess != nil {
		sess.Flash(kind, message)
	}
}

// writeError reports err with its status, queues it as a fail flash and
// logs failures nobody classified.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := kind.StatusCode()
	message := domain.PublicMessage(err)
	if kind == domain.KindUnhandled || message == "" {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		message = fallbackErrorMessage
	} else {
		h.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "err", err)
	}
	flash(r, auth.FlashFail, message)
	writeJSON(w, status, errorBody{Status: status, Message: message, Redirect: domain.RedirectOf(err)})
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(r *http.Request, op string, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return domain.Validation(op, "malformed request body")
	}
	return nil
}
