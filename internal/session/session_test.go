package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission-intake/internal/testenv"
)

func testOptions() Options {
	return Options{CookieName: "sid", TTL: time.Hour}
}

// roundTrip establishes a session and returns a request carrying its cookie.
func roundTrip(t *testing.T, m *Manager, p Principal) *http.Request {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, m.Establish(context.Background(), rr, p))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.AddCookie(cookies[0])
	return req
}

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore(), "secret", testOptions())
	req := roundTrip(t, m, Principal{Username: "admin"})

	p, ok, err := m.Principal(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", p.Username)
}

func TestManager_NoCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(), "secret", testOptions())
	_, ok, err := m.Principal(httptest.NewRequest(http.MethodGet, "/api", nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	store := NewMemoryStore()
	issuer := NewManager(store, "other-secret", testOptions())
	req := roundTrip(t, issuer, Principal{Username: "admin"})

	m := NewManager(store, "secret", testOptions())
	_, ok, err := m.Principal(req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_RejectsUnsignedToken(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "known", Principal{Username: "admin"}, time.Hour))

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: "known"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: token})

	m := NewManager(store, "secret", testOptions())
	_, ok, err := m.Principal(req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_UnknownSession(t *testing.T) {
	m := NewManager(NewMemoryStore(), "secret", testOptions())
	req := roundTrip(t, m, Principal{Username: "admin"})

	// same secret, fresh store: the id is validly signed but unknown
	other := NewManager(NewMemoryStore(), "secret", testOptions())
	_, ok, err := other.Principal(req)
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Load(context.Context, string) (Principal, error) {
	return Principal{}, errors.New("db down")
}

func TestManager_StoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	m := NewManager(store, "secret", testOptions())
	req := roundTrip(t, m, Principal{Username: "admin"})

	_, ok, err := m.Principal(req)
	assert.False(t, ok)
	assert.EqualError(t, err, "db down")
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "a", Principal{Username: "admin"}, time.Minute))
	require.NoError(t, s.Save(ctx, "b", Principal{Username: "admin"}, time.Hour))

	p, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)

	now = now.Add(2 * time.Minute)
	_, err = s.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "c", Principal{Username: "admin"}, time.Second))
	now = now.Add(time.Minute)
	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Load(ctx, "b")
	assert.NoError(t, err)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Username: "admin"})
	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "admin", p.Username)
}

func TestRunPruner_StopsOnCancel(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPruner(ctx, NewMemoryStore(), time.Millisecond, logger)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestPostgresStore(t *testing.T) {
	conn := testenv.Postgres(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewPostgresStore(conn, logger)
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "live", Principal{Username: "admin"}, time.Hour))
	require.NoError(t, s.Save(ctx, "dead", Principal{Username: "admin"}, -time.Minute))

	p, err := s.Load(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)

	_, err = s.Load(ctx, "dead")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	m := NewManager(s, "secret", testOptions())
	req := roundTrip(t, m, Principal{Username: "admin"})
	p, ok, err := m.Principal(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", p.Username)
}
