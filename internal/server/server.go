package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"submission-intake/internal/session"
	"submission-intake/internal/submission"
	"submission-intake/internal/upload"
)

// Config holds everything the HTTP layer needs. Zero-valued optional
// fields get defaults in New.
type Config struct {
	Addr           string // e.g. ":3000"
	Admin          AdminIdentity
	Sessions       *session.Manager
	Submissions    submission.Store
	Receiver       *upload.Receiver
	Relocator      *upload.Relocator
	DB             Pinger
	StaticDir      string
	RequireLogin   bool
	MaxUploadBytes int64

	Logger         *logrus.Logger
	Registry       *prometheus.Registry
	TracerProvider trace.TracerProvider
}

type Server struct {
	httpServer *http.Server

	admin          AdminIdentity
	sessions       *session.Manager
	submissions    submission.Store
	receiver       *upload.Receiver
	relocator      *upload.Relocator
	db             Pinger
	maxUploadBytes int64

	logger  *logrus.Logger
	metrics *metrics
	tracer  trace.Tracer
}

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("server: missing dependency")

// New builds the server. Sessions, Submissions and Relocator are required.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("%w: Sessions", ErrMissingDependency)
	case cfg.Submissions == nil:
		return nil, fmt.Errorf("%w: Submissions", ErrMissingDependency)
	case cfg.Relocator == nil:
		return nil, fmt.Errorf("%w: Relocator", ErrMissingDependency)
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Receiver == nil {
		cfg.Receiver = upload.NewReceiver("")
	}

	s := &Server{
		admin:          cfg.Admin,
		sessions:       cfg.Sessions,
		submissions:    cfg.Submissions,
		receiver:       cfg.Receiver,
		relocator:      cfg.Relocator,
		db:             cfg.DB,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         cfg.Logger,
		metrics:        newMetrics(cfg.Registry),
		tracer:         cfg.TracerProvider.Tracer(tracerName),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.StaticDir, cfg.RequireLogin),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// routes wires middleware: requestID -> logging -> recover -> tracing ->
// security headers -> router.
func (s *Server) routes(staticDir string, requireLogin bool) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.tracingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Post("/login", s.handleLogin)

	r.Route("/api", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Group(func(r chi.Router) {
			if requireLogin {
				r.Use(s.requireSession)
			}
			r.Get("/", s.handleList)
		})
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
