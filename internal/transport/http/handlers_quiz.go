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

// authoringInput reads the quiz form. Form posts carry parallel fields:
// topics, questions, options[i] (four per question), correct and duration.
// The legacy names topic, qn, op[i] (or op[i][]) and time are read too.
func authoringInput(r *http.Request) (app.AuthoringInput, error) {
	const op = "replace quiz"

	var in app.AuthoringInput
	if isJSON(r) {
		err := decodeJSON(r, op, &in)
		return in, err
	}
	if err := r.ParseForm(); err != nil {
		return in, domain.Validation(op, "malformed form")
	}
	in.Topics = formList(r, "topics", "topic")
	in.Questions = formList(r, "questions", "qn")
	for i := range in.Questions {
		in.Options = append(in.Options, formList(r,
			fmt.Sprintf("options[%d]", i),
			fmt.Sprintf("op[%d]", i),
			fmt.Sprintf("op[%d][]", i),
		))
	}
	for _, raw := range r.Form["correct"] {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return in, domain.Validation(op, "correct option must be a number")
		}
		in.Correct = append(in.Correct, n)
	}
	if raw := firstFormValue(r, "duration", "time"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return in, domain.Validation(op, "duration must be a number")
		}
		in.DurationMinutes = n
	}
	return in, nil
}

// formList returns the values of the first of names present in the parsed form.
func formList(r *http.Request, names ...string) []string {
	for _, name := range names {
		if values, ok := r.Form[name]; ok {
			return values
		}
	}
	return nil
}

func firstFormValue(r *http.Request, names ...string) string {
	if values := formList(r, names...); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (h *Handler) replaceQuiz(w http.ResponseWriter, r *http.Request) {
	in, err := authoringInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	quiz, err := h.service.ReplaceQuiz(r.Context(), mux.Vars(r)["cid"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, "Successfully saved the quiz")
	h.render(w, r, http.StatusCreated, quiz)
}

type quizEditView struct {
	Course domain.Course      `json:"course"`
	Quiz   app.AuthoringInput `json:"quiz"`
}

func (h *Handler) editQuiz(w http.ResponseWriter, r *http.Request) {
	course, in, err := h.service.QuizForEdit(r.Context(), mux.Vars(r)["cid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, quizEditView{Course: course, Quiz: in})
}

func (h *Handler) takeQuiz(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	attempt, err := h.service.StartAttempt(r.Context(), vars["cid"], vars["sid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, attempt)
}

type scoreInput struct {
	Score *int `json:"score"`
}

func (h *Handler) submitScore(w http.ResponseWriter, r *http.Request) {
	const op = "submit score"

	var in scoreInput
	if isJSON(r) {
		if err := decodeJSON(r, op, &in); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else if raw := r.FormValue("score"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, domain.Validation(op, "score must be a number"))
			return
		}
		in.Score = &n
	}
	if in.Score == nil {
		h.writeError(w, r, domain.Validation(op, "score is required"))
		return
	}

	vars := mux.Vars(r)
	enrollment, err := h.service.SubmitScore(r.Context(), vars["cid"], vars["sid"], *in.Score)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	flash(r, auth.FlashSuccess, "Your score has been recorded")
	h.render(w, r, http.StatusOK, enrollment)
}

// questionFeed serves the raw ordered feed, answers included.
func (h *Handler) questionFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.service.QuestionFeed(r.Context(), mux.Vars(r)["cid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}
