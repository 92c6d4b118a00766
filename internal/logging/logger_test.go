package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Output: &buf})

	l.Zerolog().Info().Msg("dropped")
	l.Zerolog().Warn().Str("home_id", "7").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["message"] != "kept" || entry["home_id"] != "7" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	SetGlobalLogger(New(Config{Level: "debug", Output: &buf}))
	t.Cleanup(func() { log.Logger = previous })

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-9")
	if RequestID(ctx) != "req-1" {
		t.Fatalf("RequestID = %q", RequestID(ctx))
	}
	FromContext(ctx).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-9" {
		t.Fatalf("context fields missing: %v", entry)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "chatty", Output: &buf})
	l.Zerolog().Debug().Msg("hidden")
	l.Zerolog().Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
