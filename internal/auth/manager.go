package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"quizzer/internal/domain"
)

// UserLookup resolves the user stored in a session.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type ctxKey int

const (
	sessionKey ctxKey = iota
	principalKey
)

// SessionFrom returns the request session. It is nil outside Manager.Middleware.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// IsAuthenticated reports whether the request carries a logged in user.
func IsAuthenticated(r *http.Request) bool {
	_, ok := PrincipalFrom(r.Context())
	return ok
}

// ManagerConfig configures session cookies.
type ManagerConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager issues signed session cookies and attaches the session and
// principal to every request.
type Manager struct {
	store  SessionStore
	users  UserLookup
	secret []byte
	cookie string
	ttl    time.Duration
	secure bool
	now    func() time.Time
	log    *slog.Logger
}

func NewManager(store SessionStore, users UserLookup, cfg ManagerConfig) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "quizzer_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Manager{
		store:  store,
		users:  users,
		secret: []byte(cfg.Secret),
		cookie: cfg.CookieName,
		ttl:    cfg.TTL,
		secure: cfg.Secure,
		now:    time.Now,
		log:    slog.Default(),
	}
}

// WithLogger sets the logger used for session persistence failures.
func (m *Manager) WithLogger(log *slog.Logger) *Manager {
	m.log = log
	return m
}

// Middleware loads (or starts) the session, resolves the principal and
// persists session changes after the handler returns.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess := m.load(ctx, r)
		if sess == nil {
			sess = newSession(uuid.NewString(), SessionData{})
			m.setCookie(w, sess.ID())
		}
		ctx = context.WithValue(ctx, sessionKey, sess)

		if userID := sess.UserID(); userID != "" {
			user, err := m.users.GetUser(ctx, userID)
			switch {
			case err == nil:
				ctx = context.WithValue(ctx, principalKey, &Principal{ID: user.ID, Name: user.Name, Role: user.Role})
			case errors.Is(err, domain.ErrUserNotFound):
				sess.rotate(uuid.NewString(), "")
				m.setCookie(w, sess.ID())
			default:
				m.log.Error("session user lookup failed", "err", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
		m.persist(context.WithoutCancel(ctx), sess)
	})
}

// Login binds user to the request session under a fresh session id.
// It must be called before the response body is written.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, user domain.User) {
	sess := SessionFrom(r.Context())
	if sess == nil {
		return
	}
	sess.rotate(uuid.NewString(), user.ID)
	m.setCookie(w, sess.ID())
}

// Logout drops the user from the request session under a fresh session id.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	if sess == nil {
		return
	}
	sess.rotate(uuid.NewString(), "")
	m.setCookie(w, sess.ID())
}

func (m *Manager) load(ctx context.Context, r *http.Request) *Session {
	c, err := r.Cookie(m.cookie)
	if err != nil {
		return nil
	}
	id, err := m.parseToken(c.Value)
	if err != nil {
		return nil
	}
	data, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.log.Error("session load failed", "err", err)
		}
		return newSession(id, SessionData{})
	}
	return newSession(id, data)
}

func (m *Manager) persist(ctx context.Context, sess *Session) {
	id, data, dirty, retired := sess.snapshot()
	for _, old := range retired {
		if err := m.store.Delete(ctx, old); err != nil {
			m.log.Warn("session delete failed", "err", err)
		}
	}
	if !dirty {
		return
	}
	if err := m.store.Save(ctx, id, data, m.ttl); err != nil {
		m.log.Error("session save failed", "err", err)
	}
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	token, err := m.signToken(id)
	if err != nil {
		m.log.Error("session token signing failed", "err", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  m.now().Add(m.ttl),
		MaxAge:   int(m.ttl / time.Second),
	})
}

func (m *Manager) signToken(id string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ID == "" {
		return "", errors.New("invalid session token")
	}
	return claims.ID, nil
}
