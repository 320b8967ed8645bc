package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"quizzer/internal/app"
	"quizzer/internal/auth"
	"quizzer/internal/domain"
)

func courseInput(r *http.Request, op string) (app.CourseInput, error) {
	var in app.CourseInput
	if isJSON(r) {
		err := decodeJSON(r, op, &in)
		return in, err
	}
	in.Name = r.FormValue("name")
	in.Code = r.FormValue("code")
	if raw := r.FormValue("passingScore"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return in, domain.Validation(op, "passing score must be a number")
		}
		in.PassingScore = score
	}
	return in, nil
}

func (h *Handler) createCourse(w http.ResponseWriter, r *http.Request) {
	in, err := courseInput(r, "create course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	course, err := h.service.CreateCourse(r.Context(), p.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, "Successfully created the course")
	h.render(w, r, http.StatusCreated, course)
}

// quizSummary describes a course quiz without its answers.
type quizSummary struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Topics          []string `json:"topics"`
	DurationMinutes int      `json:"duration"`
	QuestionCount   int      `json:"questionCount"`
}

type courseView struct {
	domain.Course
	Quiz *quizSummary `json:"quiz,omitempty"`
}

func (h *Handler) showCourse(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetCourse(r.Context(), mux.Vars(r)["cid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view := courseView{Course: detail.Course}
	if q := detail.Quiz; q != nil {
		view.Quiz = &quizSummary{
			ID:              q.ID,
			Name:            q.Name,
			Topics:          q.Topics,
			DurationMinutes: q.DurationMinutes,
			QuestionCount:   len(q.Questions),
		}
	}
	h.render(w, r, http.StatusOK, view)
}

func (h *Handler) updateCourse(w http.ResponseWriter, r *http.Request) {
	in, err := courseInput(r, "update course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	course, err := h.service.UpdateCourse(r.Context(), mux.Vars(r)["cid"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, "Successfully updated the course")
	h.render(w, r, http.StatusOK, course)
}

func (h *Handler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCourse(r.Context(), mux.Vars(r)["cid"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, "Successfully deleted the course")
	h.render(w, r, http.StatusOK, redirectTo{Redirect: "/profile"})
}

func (h *Handler) enrollable(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	courses, err := h.service.EnrollableCourses(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, courses)
}

type enrollInput struct {
	Courses []string `json:"courses"`
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var in enrollInput
	if isJSON(r) {
		if err := decodeJSON(r, "enroll", &in); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, r, domain.Validation("enroll", "malformed form"))
			return
		}
		in.Courses = formList(r, "courses", "courseSelected")
	}

	p, _ := auth.PrincipalFrom(r.Context())
	added, err := h.service.Enroll(r.Context(), p.ID, in.Courses)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, fmt.Sprintf("Successfully enrolled in %d course(s)", added))
	h.render(w, r, http.StatusOK, redirectTo{Redirect: "/profile"})
}

func (h *Handler) unenroll(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	if err := h.service.Unenroll(r.Context(), p.ID, mux.Vars(r)["cid"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, "Successfully left the course")
	h.render(w, r, http.StatusOK, redirectTo{Redirect: "/profile"})
}
