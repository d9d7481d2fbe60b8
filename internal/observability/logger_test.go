package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/duckmesh/askhr/internal/config"
)

func TestNewLoggerAddsTraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "askhr-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	logger := NewLogger(cfg, &buf).With(slog.String("component", "chat"))

	logger.InfoContext(ContextWithTraceID(context.Background(), "trace-42"), "chat_reply", slog.String("route", "chat"))
	logger.Info("no_trace")
	logger.Debug("filtered")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second line: %v", err)
	}
	if first["trace_id"] != "trace-42" || first["service"] != "askhr-api" || first["component"] != "chat" {
		t.Fatalf("first line = %v", first)
	}
	if _, ok := second["trace_id"]; ok {
		t.Fatalf("second line should not carry a trace id: %v", second)
	}
}
