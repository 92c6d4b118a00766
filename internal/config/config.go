// Package config loads runtime settings from env files and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Session SessionConfig
	Uploads UploadsConfig
	CORS    CORSConfig
	Logging LoggingConfig

	// BootstrapDemo seeds a demo host and a few homes on startup.
	BootstrapDemo bool
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and configures the storage backend
type StoreConfig struct {
	Backend       string // memory, jsonfile, postgres, mongo, sqlite
	DatabaseURL   string
	DataDir       string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
	Timeout       time.Duration

	// postgres pool and startup retry
	MaxOpenConns int
	ConnectWait  time.Duration
	MaxBackoff   time.Duration
}

// SessionConfig holds session cookie and storage settings
type SessionConfig struct {
	Backend       string // memory, redis, store
	Secret        string
	TTL           time.Duration
	CookieName    string
	Secure        bool
	RedisAddr     string
	RedisPassword string
}

// UploadsConfig selects where uploaded photos go
type UploadsConfig struct {
	Backend           string // local, s3
	Dir               string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicURL       string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Load reads config/local.env and .env when present, then the environment.
// Variables already set in the environment win over the files.
func Load() (*Config, error) {
	_ = godotenv.Load("config/local.env")
	_ = godotenv.Load(".env")
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}
	cfg := &Config{
		Server: ServerConfig{
			Port: e.number("PORT", 8080),
			Host: e.str("HOST", ""),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(e.str("STORE_BACKEND", "memory")),
			DatabaseURL:   e.str("DATABASE_URL", ""),
			DataDir:       e.str("DATA_DIR", "data"),
			MongoURI:      e.str("MONGO_URI", ""),
			MongoDatabase: e.str("MONGO_DATABASE", "airbnb"),
			SQLitePath:    e.str("SQLITE_PATH", "airhome.db"),
			Timeout:       e.duration("STORE_TIMEOUT", 5*time.Second),
			MaxOpenConns:  e.number("DB_MAX_OPEN_CONNS", 10),
			ConnectWait:   e.duration("DB_CONNECT_WAIT", 30*time.Second),
			MaxBackoff:    e.duration("DB_MAX_BACKOFF", 5*time.Second),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(e.str("SESSION_BACKEND", "memory")),
			Secret:        e.str("SESSION_SECRET", ""),
			TTL:           e.duration("SESSION_TTL", 24*time.Hour),
			CookieName:    e.str("SESSION_COOKIE", "airhome_session"),
			Secure:        e.flag("SESSION_SECURE", false),
			RedisAddr:     e.str("REDIS_ADDR", "localhost:6379"),
			RedisPassword: e.str("REDIS_PASSWORD", ""),
		},
		Uploads: UploadsConfig{
			Backend:           strings.ToLower(e.str("UPLOAD_BACKEND", "local")),
			Dir:               e.str("UPLOAD_DIR", "uploads"),
			S3Bucket:          e.str("S3_BUCKET", ""),
			S3Region:          e.str("S3_REGION", "us-east-1"),
			S3Endpoint:        e.str("S3_ENDPOINT", ""),
			S3AccessKeyID:     e.str("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: e.str("S3_SECRET_ACCESS_KEY", ""),
			S3PublicURL:       e.str("S3_PUBLIC_URL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseList(e.str("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(e.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(e.str("LOG_FORMAT", "json")),
		},
		BootstrapDemo: e.flag("BOOTSTRAP_DEMO", false),
	}

	if err := cfg.validate(e.problems); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	return c.validate(nil)
}

func (c *Config) validate(problems []string) error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, "PORT must be between 1 and 65535")
	}

	switch c.Store.Backend {
	case "memory":
	case "jsonfile":
		if c.Store.DataDir == "" {
			problems = append(problems, "DATA_DIR is required for the jsonfile backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres backend")
		}
		if c.Store.MaxOpenConns < 1 {
			problems = append(problems, "DB_MAX_OPEN_CONNS must be at least 1")
		}
		if c.Store.ConnectWait < 0 || c.Store.MaxBackoff <= 0 {
			problems = append(problems, "DB_CONNECT_WAIT must not be negative and DB_MAX_BACKOFF must be positive")
		}
	case "mongo":
		if c.Store.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required for the mongo backend")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH is required for the sqlite backend")
		}
	default:
		problems = append(problems, "STORE_BACKEND must be one of: memory, jsonfile, postgres, mongo, sqlite")
	}
	if c.Store.Timeout <= 0 {
		problems = append(problems, "STORE_TIMEOUT must be positive")
	}

	if len(c.Session.Secret) < 16 {
		problems = append(problems, "SESSION_SECRET must be at least 16 characters")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis session backend")
		}
	case "store":
		if c.Store.Backend != "postgres" {
			problems = append(problems, "SESSION_BACKEND=store requires STORE_BACKEND=postgres")
		}
	default:
		problems = append(problems, "SESSION_BACKEND must be one of: memory, redis, store")
	}

	switch c.Uploads.Backend {
	case "local":
		if c.Uploads.Dir == "" {
			problems = append(problems, "UPLOAD_DIR is required for local uploads")
		}
	case "s3":
		if c.Uploads.S3Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for s3 uploads")
		}
	default:
		problems = append(problems, "UPLOAD_BACKEND must be one of: local, s3")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		problems = append(problems, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		problems = append(problems, "LOG_FORMAT must be one of: json, console, text")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// env reads typed values and remembers the ones that failed to parse.
type env struct {
	get      func(string) string
	problems []string
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) number(key string, fallback int) int {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid %s: %q", key, raw))
		return fallback
	}
	return n
}

func (e *env) flag(key string, fallback bool) bool {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid %s: %q", key, raw))
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid %s: %q", key, raw))
		return fallback
	}
	return d
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
