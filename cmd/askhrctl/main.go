package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/duckmesh/askhr/internal/cli/askhrctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("ASKHR_CLI_TIMEOUT")), 10*time.Second)
	options := askhrctl.Options{
		BaseURL:  envOr("ASKHR_API_URL", "http://localhost:8080"),
		APIKey:   strings.TrimSpace(os.Getenv("ASKHR_API_KEY")),
		TenantID: strings.TrimSpace(os.Getenv("ASKHR_TENANT_ID")),
		UserID:   strings.TrimSpace(os.Getenv("ASKHR_USER_ID")),
		Timeout:  timeout,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := askhrctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid ASKHR_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
