package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"quizzer/internal/app"
	"quizzer/internal/auth"
	"quizzer/internal/domain"
)

// Handler serves the quizzer HTTP API.
type Handler struct {
	service  *app.Service
	sessions *auth.Manager
	log      *slog.Logger
	live     *WSHandler
}

// Options tunes the HTTP layer.
type Options struct {
	Logger *slog.Logger
	// FeedTimeout bounds how long a live session waits for its questions.
	FeedTimeout time.Duration
}

func NewHandler(service *app.Service, sessions *auth.Manager, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		service:  service,
		sessions: sessions,
		log:      log,
	}
	h.live = NewWSHandler(service, h.writeError, WSOptions{FeedTimeout: opts.FeedTimeout, Logger: log})
	return h
}

// Routes builds the full middleware chain and router.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	courses := h.service.Store()

	guard := func(fn http.HandlerFunc, caps ...auth.Capability) http.Handler {
		return auth.Require(h.writeError, caps...)(fn)
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.logout).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/profile", guard(h.profile, auth.Authenticated())).Methods(http.MethodGet)

	r.Handle("/enroll", guard(h.enrollable, auth.Student())).Methods(http.MethodGet)
	r.Handle("/enroll", guard(h.enroll, auth.Student())).Methods(http.MethodPost)
	r.Handle("/enroll/{cid}", guard(h.unenroll, auth.Student())).Methods(http.MethodDelete)

	r.Handle("/course", guard(h.createCourse, auth.Teacher())).Methods(http.MethodPost)
	r.Handle("/course/{cid}", guard(h.showCourse, auth.Authenticated())).Methods(http.MethodGet)
	r.Handle("/course/{cid}", guard(h.updateCourse, auth.Teacher(), auth.CourseAuthor(courses, "cid"))).Methods(http.MethodPut)
	r.Handle("/course/{cid}", guard(h.deleteCourse, auth.Teacher(), auth.CourseAuthor(courses, "cid"))).Methods(http.MethodDelete)

	r.Handle("/course/{cid}/quiz", guard(h.replaceQuiz, auth.Teacher(), auth.CourseAuthor(courses, "cid"))).Methods(http.MethodPost)
	r.Handle("/course/{cid}/quiz/edit", guard(h.editQuiz, auth.Teacher(), auth.CourseAuthor(courses, "cid"))).Methods(http.MethodGet)
	r.Handle("/course/{cid}/quiz/{sid}", guard(h.takeQuiz, auth.Student(), auth.Self("sid"))).Methods(http.MethodGet)
	r.Handle("/course/{cid}/quiz/{sid}", guard(h.submitScore, auth.Student(), auth.Self("sid"))).Methods(http.MethodPost)
	r.Handle("/course/{cid}/quiz/{sid}/live", guard(h.live.ServeWS, auth.Student(), auth.Self("sid"))).Methods(http.MethodGet)

	// The feed is read by the quiz runner without a session.
	r.HandleFunc("/internalAPI/{cid}", h.questionFeed).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, domain.E(domain.KindNotFound, "", "Page Not Found"))
	})

	var chain http.Handler = r
	chain = h.recoverPanics(chain)
	chain = h.sessions.Middleware(chain)
	chain = logRequests(h.log)(chain)
	chain = methodOverride(chain)
	return chain
}
