package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func redactingLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if isSecretKey(a.Key) {
				a.Value = slog.StringValue("[redacted]")
			}
			return a
		},
	})
	return slog.New(handler)
}

func TestSecretRedaction(t *testing.T) {
	var buf bytes.Buffer
	log := redactingLogger(&buf, slog.LevelInfo)

	log.Info("starting",
		"prefunded_secret", "0xdeadbeef",
		"api_token", "tok-123",
		"rpc_url", "http://host:8545",
	)

	out := buf.String()
	if strings.Contains(out, "0xdeadbeef") || strings.Contains(out, "tok-123") {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "[redacted]") {
		t.Fatalf("expected redaction marker: %s", out)
	}
	if !strings.Contains(out, "http://host:8545") {
		t.Fatalf("non-secret attribute should survive: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := redactingLogger(&buf, parseLevel("warn"))

	log.Debug("noise")
	log.Info("still noise")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Fatalf("sub-level records should be dropped: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestIsSecretKey(t *testing.T) {
	secrets := []string{"prefunded_secret", "api_token", "private_key", "password", "PASSPHRASE"}
	for _, k := range secrets {
		if !isSecretKey(k) {
			t.Fatalf("%q should be treated as secret", k)
		}
	}
	for _, k := range []string{"rpc_url", "height", "state_root"} {
		if isSecretKey(k) {
			t.Fatalf("%q should not be treated as secret", k)
		}
	}
}

func TestNewReturnsLogger(t *testing.T) {
	if New() == nil {
		t.Fatal("New returned nil")
	}
	if NewWithLevel("debug") == nil {
		t.Fatal("NewWithLevel returned nil")
	}
}
