package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"airhome/internal/config"
	"airhome/internal/logging"
)

const (
	pingTimeout    = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// openDatabase connects to postgres and waits up to cfg.ConnectWait for the
// instance to answer.
func openDatabase(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(max(1, cfg.MaxOpenConns/2))
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := waitForDatabase(ctx, db.PingContext, cfg.ConnectWait, cfg.MaxBackoff); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitForDatabase pings until it succeeds, ctx ends, or wait has elapsed.
// The delay between attempts doubles up to maxBackoff.
func waitForDatabase(ctx context.Context, ping func(context.Context) error, wait, maxBackoff time.Duration) error {
	deadline := time.Now().Add(wait)
	backoff := min(initialBackoff, maxBackoff)

	for {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil || time.Now().Add(backoff).After(deadline) {
			return fmt.Errorf("ping database: %w", err)
		}

		logging.FromContext(ctx).Warn().Err(err).Dur("retry_in", backoff).Msg("database not ready")
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("ping database: %w", err)
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
