package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/automaxprocs/maxprocs"

	"submission-intake/internal/config"
	"submission-intake/internal/db"
	"submission-intake/internal/mirror"
	"submission-intake/internal/server"
	"submission-intake/internal/session"
	"submission-intake/internal/submission"
	"submission-intake/internal/upload"
)

const (
	shutdownTimeout = 5 * time.Second
	pruneInterval   = time.Hour
)

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.UsesFallbackSecret() {
		logger.Warn("no secret configured, session cookies are signed with the built-in fallback secret")
	}

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Infof)); err != nil {
		return fmt.Errorf("set GOMAXPROCS: %w", err)
	}

	if cfg.Tracing.Enabled {
		tp, err := server.NewTracerProvider(os.Stderr)
		if err != nil {
			return fmt.Errorf("tracer: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(sctx); err != nil {
				logger.WithError(err).Warn("tracer shutdown")
			}
		}()
	}

	conn, err := db.OpenDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	logger.Info("running migrations")
	if err := db.RunMigrations(conn); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	sessions := newSessionStore(cfg, conn, logger)
	go session.RunPruner(ctx, sessions, pruneInterval, logger)

	if cfg.Mirror.Enabled() {
		client, err := mirror.NewClient(ctx, cfg.Mirror)
		if err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
		go mirror.New(client, cfg.Mirror, cfg.UploadDir, logger).Run(ctx)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(server.Config{
		Addr:  cfg.Addr(),
		Admin: server.NewAdminIdentity(cfg.Admin.Login, cfg.Admin.Password),
		Sessions: session.NewManager(sessions, cfg.Secret, session.Options{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		}),
		Submissions:    submission.NewPostgresStore(conn, logger),
		Receiver:       upload.NewReceiver(cfg.TempDir),
		Relocator:      upload.NewRelocator(cfg.UploadDir),
		DB:             conn,
		StaticDir:      cfg.StaticDir,
		RequireLogin:   cfg.RequireLogin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
		Registry:       reg,
		TracerProvider: otel.GetTracerProvider(),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":          cfg.Addr(),
			"require_login": cfg.RequireLogin,
			"session_store": cfg.Session.Store,
		}).Info("starting")
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newSessionStore(cfg *config.Config, conn *sql.DB, logger *logrus.Logger) session.Store {
	if cfg.Session.Store == config.SessionStoreMemory {
		return session.NewMemoryStore()
	}
	return session.NewPostgresStore(conn, logger)
}
