// auth.go - Admin credential check, login handler and the session gate.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"submission-intake/internal/session"
)

const invalidCredentials = "Invalid username or password."

// AdminIdentity is the single configured admin principal.
type AdminIdentity struct {
	login    [sha256.Size]byte
	password [sha256.Size]byte
	username string
}

func NewAdminIdentity(login, password string) AdminIdentity {
	return AdminIdentity{
		login:    sha256.Sum256([]byte(login)),
		password: sha256.Sum256([]byte(password)),
		username: login,
	}
}

// Authenticate reports whether username and password equal the configured
// pair. Either value empty is a rejection.
func (a AdminIdentity) Authenticate(username, password string) (session.Principal, bool) {
	if username == "" || password == "" || a.username == "" {
		return session.Principal{}, false
	}
	u := sha256.Sum256([]byte(username))
	p := sha256.Sum256([]byte(password))
	uOK := hmac.Equal(u[:], a.login[:])
	pOK := hmac.Equal(p[:], a.password[:])
	if !uOK || !pOK {
		return session.Principal{}, false
	}
	return session.Principal{Username: a.username}, true
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts JSON, urlencoded and multipart bodies.
func readCredentials(r *http.Request) credentials {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var c credentials
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&c)
		return c
	}
	return credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
}

// handleLogin establishes a session on matching credentials. A mismatch
// still answers 200 with success false.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c := readCredentials(r)

	p, ok := s.admin.Authenticate(c.Username, c.Password)
	if !ok {
		s.metrics.logins.WithLabelValues(resultFailure).Inc()
		s.log(r.Context()).WithField("username", c.Username).Info("login rejected")
		writeJSON(w, http.StatusOK, envelope{Message: invalidCredentials})
		return
	}

	if err := s.sessions.Establish(r.Context(), w, p); err != nil {
		s.log(r.Context()).WithError(err).Error("establish session")
		internalError(w)
		return
	}

	s.metrics.logins.WithLabelValues(resultSuccess).Inc()
	s.log(r.Context()).WithField("username", p.Username).Info("login accepted")
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// requireSession answers 401 unless the request carries a live session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok, err := s.sessions.Principal(r)
		if err != nil {
			s.log(r.Context()).WithError(err).Error("load session")
			internalError(w)
			return
		}
		if !ok {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
	})
}
