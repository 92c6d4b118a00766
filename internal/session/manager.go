package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Options configures a Manager.
type Options struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Manager drives the anonymous -> authenticated -> anonymous lifecycle.
// The cookie holds an HS256 token whose jti is the server-side session key,
// so a forged or edited cookie is rejected before the store is consulted.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

// NewManager builds a Manager over st.
func NewManager(st Store, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.CookieName == "" {
		opts.CookieName = "airhome_session"
	}
	return &Manager{
		store:  st,
		secret: []byte(opts.Secret),
		ttl:    opts.TTL,
		cookie: opts.CookieName,
		secure: opts.Secure,
		now:    time.Now,
	}
}

// Begin creates a session for userID and sets the cookie on w.
func (m *Manager) Begin(ctx context.Context, w http.ResponseWriter, userID string) error {
	token, err := NewToken()
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	if err := m.store.SaveSession(ctx, token, userID, expiresAt); err != nil {
		return err
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        token,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Current returns the user id bound to the request's cookie, or
// ErrNoSession when there is none.
func (m *Manager) Current(ctx context.Context, r *http.Request) (string, error) {
	token, err := m.token(r)
	if err != nil {
		return "", err
	}
	return m.store.SessionUser(ctx, token)
}

// End deletes the server-side session, if any, and expires the cookie.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	token, err := m.token(r)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.store.DeleteSession(ctx, token)
}

func (m *Manager) token(r *http.Request) (string, error) {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(c.Value, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || claims.ID == "" {
		return "", ErrNoSession
	}
	return claims.ID, nil
}
