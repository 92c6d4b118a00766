package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"airhome/internal/config"
	"airhome/internal/media"
	"airhome/internal/session"
	"airhome/internal/store"
	"airhome/internal/store/jsonfile"
	"airhome/internal/store/memory"
	"airhome/internal/store/mongo"
	"airhome/internal/store/orm"
	"airhome/internal/store/postgres"
)

// openBackend builds the configured storage backend. The postgres backend
// doubles as a session store and is returned as such when selected.
func openBackend(ctx context.Context, cfg config.StoreConfig) (store.Backend, session.Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil, nil
	case "jsonfile":
		s, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "postgres":
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		s := postgres.New(db)
		return s, s, nil
	case "mongo":
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "sqlite":
		s, err := orm.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openSessions picks the session store. The returned closer releases any
// connection it opened.
func openSessions(ctx context.Context, cfg config.SessionConfig, backendSessions session.Store) (session.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "memory":
		return session.NewMemoryStore(), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return session.NewRedisStore(client), client.Close, nil
	case "store":
		if backendSessions == nil {
			return nil, nil, fmt.Errorf("store backend cannot hold sessions")
		}
		return backendSessions, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// openUploads returns the photo uploader and, for local storage, the
// directory to serve under /uploads/.
func openUploads(ctx context.Context, cfg config.UploadsConfig) (media.Uploader, string, error) {
	switch cfg.Backend {
	case "local":
		l, err := media.NewLocal(cfg.Dir)
		if err != nil {
			return nil, "", err
		}
		return l, l.Dir(), nil
	case "s3":
		s, err := media.NewS3(ctx, media.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	default:
		return nil, "", fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
}
