// Package session binds opaque session ids to the authenticated principal.
//
// The browser holds a cookie whose value is an HS256 JWT carrying only the
// session id. The username lives server-side in a Store.
package session

import (
	"context"
	"errors"
	"time"
)

// Principal is the authenticated identity. Only the username is kept.
type Principal struct {
	Username string
}

// ErrNotFound is returned by Store.Load for unknown or expired ids.
var ErrNotFound = errors.New("session not found")

// Store persists sessions keyed by id. Expired entries behave as missing.
type Store interface {
	Save(ctx context.Context, id string, p Principal, ttl time.Duration) error
	Load(ctx context.Context, id string) (Principal, error)
	// DeleteExpired removes expired entries and reports how many went.
	DeleteExpired(ctx context.Context) (int64, error)
}

type ctxKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal attached by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
