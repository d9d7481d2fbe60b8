package askhrctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type capturedRequest struct {
	method, path, query string
	apiKey, tenant      string
	body                map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.apiKey = r.Header.Get("X-API-Key")
		captured.tenant = r.Header.Get("X-Tenant-ID")
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &captured.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestRunChatCommand(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"reply":"查询结果 - 去重数量: 3","route":"text2sql"}`)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"--api-key", "k1",
		"--tenant-id", "acme",
		"chat", "统计本月请假人数",
	}, Options{Stdout: &stdout, Stderr: &stderr, Timeout: 2 * time.Second})
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.method != http.MethodPost || got.path != "/v1/chat" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.apiKey != "k1" || got.tenant != "acme" || got.body["message"] != "统计本月请假人数" {
		t.Fatalf("captured = %+v", got)
	}
	if !strings.Contains(stdout.String(), `"route": "text2sql"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunHistoryCommandPassesLimit(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"messages":[]}`)
	code := Run(context.Background(), []string{"--base-url", srv.URL, "history", "--limit", "5"}, Options{})
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodGet || got.path != "/v1/chat/history" || got.query != "limit=5" {
		t.Fatalf("request = %s %s?%s", got.method, got.path, got.query)
	}
}

func TestRunClearHistoryCommand(t *testing.T) {
	srv, got := newServer(t, http.StatusNoContent, ``)
	code := Run(context.Background(), []string{"--base-url", srv.URL, "clear-history"}, Options{})
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodDelete || got.path != "/v1/chat/history" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
}

func TestRunAuditSummaryValidatesDate(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"entities":[]}`)
	code := Run(context.Background(), []string{"--base-url", srv.URL, "audit-summary", "--date", "2024-03-14"}, Options{})
	if code != ExitSuccess || got.query != "date=2024-03-14" {
		t.Fatalf("exit code = %d, query = %q", code, got.query)
	}

	var stderr bytes.Buffer
	code = Run(context.Background(), []string{"--base-url", srv.URL, "audit-summary", "--date", "14/03/2024"}, Options{Stderr: &stderr})
	if code != ExitUsage {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv, _ := newServer(t, http.StatusForbidden, `{"error_code":"FORBIDDEN"}`)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ready"}, Options{Stderr: &stderr})
	if code != ExitFailure {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 403") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{{"unknown"}, {}, {"chat"}, {"--no-such-flag", "health"}} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != ExitUsage {
			t.Fatalf("Run(%v) exit code = %d, stderr=%s", args, code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "Usage:") {
			t.Fatalf("Run(%v) expected usage output, got %s", args, stderr.String())
		}
	}
}
