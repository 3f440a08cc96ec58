package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager issues and resolves session cookies.
type Manager struct {
	store  Store
	secret []byte
	opts   Options
}

func NewManager(store Store, secret string, opts Options) *Manager {
	return &Manager{store: store, secret: []byte(secret), opts: opts}
}

// Establish creates a session for p and sets its cookie on w.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, p Principal) error {
	id := uuid.NewString()
	if err := m.store.Save(ctx, id, p, m.opts.TTL); err != nil {
		return err
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.TTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Principal resolves the session cookie on r. It reports false for a
// missing, forged, expired or unknown session; err is only set when the
// store itself fails.
func (m *Manager) Principal(r *http.Request) (Principal, bool, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return Principal{}, false, nil
	}

	id, ok := m.sessionID(c.Value)
	if !ok {
		return Principal{}, false, nil
	}

	p, err := m.store.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, false, nil
	}
	if err != nil {
		return Principal{}, false, err
	}
	return p, true, nil
}

func (m *Manager) sessionID(tokenStr string) (string, bool) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.ID == "" {
		return "", false
	}
	return claims.ID, true
}
