package config

import (
	"strings"
	"testing"
	"time"
)

func lookup(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{"SESSION_SECRET": "0123456789abcdef"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.Server.Addr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr())
	}
	if cfg.Store.Backend != "memory" || cfg.Store.Timeout != 5*time.Second || cfg.Store.MongoDatabase != "airbnb" {
		t.Fatalf("unexpected store config %#v", cfg.Store)
	}
	if cfg.Session.TTL != 24*time.Hour || cfg.Session.CookieName != "airhome_session" {
		t.Fatalf("unexpected session config %#v", cfg.Session)
	}
	if cfg.Uploads.Backend != "local" || cfg.Uploads.Dir != "uploads" {
		t.Fatalf("unexpected uploads config %#v", cfg.Uploads)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"PORT":                 "9090",
		"HOST":                 "127.0.0.1",
		"STORE_BACKEND":        "Postgres",
		"DATABASE_URL":         "postgres://localhost/airhome",
		"STORE_TIMEOUT":        "2s",
		"DB_MAX_OPEN_CONNS":    "25",
		"DB_CONNECT_WAIT":      "1m",
		"SESSION_BACKEND":      "store",
		"SESSION_SECRET":       "0123456789abcdef",
		"SESSION_SECURE":       "true",
		"CORS_ALLOWED_ORIGINS": " https://a.example , ,https://b.example",
		"LOG_FORMAT":           "console",
		"BOOTSTRAP_DEMO":       "1",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr())
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.Timeout != 2*time.Second ||
		cfg.Store.MaxOpenConns != 25 || cfg.Store.ConnectWait != time.Minute || cfg.Store.MaxBackoff != 5*time.Second {
		t.Fatalf("unexpected store config %#v", cfg.Store)
	}
	if !cfg.Session.Secure || !cfg.BootstrapDemo {
		t.Fatalf("expected boolean flags to be parsed")
	}
	want := []string{"https://a.example", "https://b.example"}
	if strings.Join(cfg.CORS.AllowedOrigins, ",") != strings.Join(want, ",") {
		t.Fatalf("origins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
}

func TestFromEnvCollectsEveryProblem(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{
		"PORT":              "eighty",
		"STORE_BACKEND":     "postgres",
		"SESSION_SECRET":    "short",
		"SESSION_BACKEND":   "cookie",
		"UPLOAD_BACKEND":    "s3",
		"LOG_LEVEL":         "loud",
		"STORE_TIMEOUT":     "soon",
		"DB_MAX_OPEN_CONNS": "0",
	}))
	if err == nil {
		t.Fatal("expected an error")
	}

	for _, want := range []string{
		"invalid PORT",
		"invalid STORE_TIMEOUT",
		"DATABASE_URL is required",
		"DB_MAX_OPEN_CONNS must be at least 1",
		"SESSION_SECRET must be at least 16 characters",
		"SESSION_BACKEND must be one of",
		"S3_BUCKET is required",
		"LOG_LEVEL must be one of",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
}

func TestStoreSessionsNeedPostgres(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{
		"SESSION_SECRET":  "0123456789abcdef",
		"SESSION_BACKEND": "store",
	}))
	if err == nil || !strings.Contains(err.Error(), "requires STORE_BACKEND=postgres") {
		t.Fatalf("expected store session error, got %v", err)
	}
}
