package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"quizzer/internal/app"
	"quizzer/internal/auth"
	"quizzer/internal/domain"
	"quizzer/internal/runner"
)

// WSHandler runs a server-driven quiz attempt over a websocket: the server
// owns the clock and the selections and records the score when the attempt
// ends.
type WSHandler struct {
	service      *app.Service
	onErr        auth.ErrorWriter
	upgrader     websocket.Upgrader
	feedTimeout  time.Duration
	tickInterval time.Duration
	clock        func() time.Time
	log          *slog.Logger
}

type WSOptions struct {
	FeedTimeout  time.Duration
	TickInterval time.Duration
	Logger       *slog.Logger
}

func NewWSHandler(service *app.Service, onErr auth.ErrorWriter, opts WSOptions) *WSHandler {
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = 10 * time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		onErr:   onErr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		feedTimeout:  opts.FeedTimeout,
		tickInterval: opts.TickInterval,
		clock:        time.Now,
		log:          opts.Logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type submittedPayload struct {
	Score      int               `json:"score"`
	Enrollment domain.Enrollment `json:"enrollment"`
}

// ServeWS checks the attempt may start, upgrades the connection and drives a
// runner.Session from client messages and a ticker. The attempt start is
// stored, so reconnecting resumes the same deadline.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	courseID, studentID := vars["cid"], vars["sid"]

	attempt, err := h.service.BeginAttempt(r.Context(), courseID, studentID, h.clock())
	if err != nil {
		h.onErr(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	log := h.log.With("course", courseID, "student", studentID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("ws write error", "err", err)
				return
			}
		}
	}()

	emit := func(typ string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
		case <-writerDone:
		}
	}
	emitError := func(err error) {
		emit("error", errorPayload{Message: liveErrorMessage(err)})
	}

	session := runner.New(time.Duration(attempt.DurationMinutes) * time.Minute)
	if attempt.StartedAt != nil {
		session.Anchor(*attempt.StartedAt)
	}
	submit := func() {
		score, err := session.Submission()
		if err != nil {
			return
		}
		enrollment, err := h.service.SubmitScore(ctx, courseID, studentID, score)
		if err != nil {
			log.Warn("live score submission failed", "err", err)
			emitError(err)
			return
		}
		emit("submitted", submittedPayload{Score: score, Enrollment: enrollment})
	}

	fetch := func(ctx context.Context) ([]domain.QuestionView, error) {
		return h.service.QuestionFeed(ctx, courseID)
	}
	if err := session.Start(ctx, h.feedTimeout, fetch, h.clock); err != nil {
		emitError(err)
		emit("state", session.Snapshot(h.clock()))
		close(send)
		<-writerDone
		return
	}
	emit("attempt", attempt)
	// a resumed attempt may already be past its deadline
	if now := h.clock(); session.Tick(now) {
		emit("finished", session.Snapshot(now))
	} else {
		emit("question", session.Snapshot(now))
	}
	if session.State() == runner.Finished {
		submit()
	}

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := h.clock()
				if session.Tick(now) {
					emit("finished", session.Snapshot(now))
					submit()
					continue
				}
				if session.State() == runner.Active {
					emit("tick", session.Snapshot(now))
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit("error", errorPayload{Message: "invalid select payload"})
				continue
			}
			if err := session.Select(payload.Option); err != nil {
				emitError(err)
				continue
			}
			emit("question", session.Snapshot(h.clock()))
		case "next":
			session.Next()
			emit("question", session.Snapshot(h.clock()))
		case "prev":
			session.Prev()
			emit("question", session.Snapshot(h.clock()))
		case "finish", "submit":
			if session.Finish() {
				emit("finished", session.Snapshot(h.clock()))
			}
			submit()
		default:
			emit("error", errorPayload{Message: "unsupported message type"})
		}
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone
}

func liveErrorMessage(err error) string {
	switch {
	case errors.Is(err, runner.ErrInvalidOption),
		errors.Is(err, runner.ErrNotActive),
		errors.Is(err, runner.ErrFeedTimeout):
		return err.Error()
	}
	if msg := domain.PublicMessage(err); msg != "" {
		return msg
	}
	return fallbackErrorMessage
}
