package http

import (
	"net/http"
	"strconv"
	"strings"

	"quizzer/internal/app"
	"quizzer/internal/auth"
	"quizzer/internal/domain"
)

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, nil)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	const op = "register"

	var in app.RegisterInput
	if isJSON(r) {
		if err := decodeJSON(r, op, &in); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		in = app.RegisterInput{
			Name:       r.FormValue("name"),
			Username:   r.FormValue("username"),
			Password:   r.FormValue("password"),
			Occupation: r.FormValue("occupation"),
		}
		if raw := strings.TrimSpace(r.FormValue("age")); raw != "" {
			age, err := strconv.Atoi(raw)
			if err != nil {
				h.writeError(w, r, domain.Validation(op, "age must be a number"))
				return
			}
			in.Age = age
		}
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sessions.Login(w, r, user)
	flash(r, auth.FlashSuccess, "Welcome to Quizzer!")
	h.renderAs(w, r, http.StatusCreated, &auth.Principal{ID: user.ID, Name: user.Name, Role: user.Role}, redirectTo{Redirect: "/"})
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if isJSON(r) {
		if err := decodeJSON(r, "login", &in); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		in = loginInput{Username: r.FormValue("username"), Password: r.FormValue("password")}
	}

	user, err := h.service.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sessions.Login(w, r, user)
	flash(r, auth.FlashSuccess, "Welcome back!")

	target := "/"
	if sess := auth.SessionFrom(r.Context()); sess != nil {
		target = sess.TakeRedirect()
	}
	h.renderAs(w, r, http.StatusOK, &auth.Principal{ID: user.ID, Name: user.Name, Role: user.Role}, redirectTo{Redirect: target})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w, r)
	flash(r, auth.FlashSuccess, "Bye!")
	h.renderAs(w, r, http.StatusOK, nil, redirectTo{Redirect: "/"})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	profile, err := h.service.Profile(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, profile)
}
