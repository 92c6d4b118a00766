package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airhome/internal/config"
	"airhome/internal/logging"
	"airhome/internal/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{}).Fatal(err, "load config")
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.SetGlobalLogger(logger)

	if err := run(cfg); err != nil {
		logger.Fatal(err, "airhome stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logging.FromContext(ctx)

	backend, backendSessions, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	sessionStore, closeSessions, err := openSessions(ctx, cfg.Session, backendSessions)
	if err != nil {
		return err
	}
	defer closeSessions()

	uploads, uploadDir, err := openUploads(ctx, cfg.Uploads)
	if err != nil {
		return err
	}

	svc := newServices(cfg, backend, uploads)
	if cfg.BootstrapDemo {
		if err := bootstrapDemoData(ctx, svc.users, svc.homes); err != nil {
			return err
		}
	}

	sessions := session.NewManager(sessionStore, session.Options{
		Secret:     cfg.Session.Secret,
		TTL:        cfg.Session.TTL,
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.Secure,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newHTTPHandler(cfg, svc, sessions, uploadDir),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Store.Backend).
			Str("sessions", cfg.Session.Backend).
			Str("uploads", cfg.Uploads.Backend).
			Msg("airhome listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
