// Package askhrctl is the operator command line for a running askhr API.
package askhrctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

type Options struct {
	BaseURL    string
	APIKey     string
	TenantID   string
	UserID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// usageError marks failures that happened before any request was sent.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

type runner struct {
	options Options
	client  *http.Client
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	if defaults.Stdout == nil {
		defaults.Stdout = io.Discard
	}
	if defaults.Stderr == nil {
		defaults.Stderr = io.Discard
	}
	defaults.BaseURL = firstNonEmpty(defaults.BaseURL, "http://localhost:8080")
	defaults.Timeout = durationOr(defaults.Timeout, 10*time.Second)

	r := &runner{options: defaults}
	root := r.newRootCmd()
	root.SetArgs(args)
	root.SetOut(defaults.Stdout)
	root.SetErr(defaults.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(defaults.Stderr, err)
		var usage usageError
		if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") || strings.Contains(err.Error(), "arg(s)") {
			_, _ = fmt.Fprintln(defaults.Stderr)
			_, _ = fmt.Fprint(defaults.Stderr, root.UsageString())
			return ExitUsage
		}
		return ExitFailure
	}
	return ExitSuccess
}

func (r *runner) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "askhrctl",
		Short:         "Operator CLI for the askhr API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return usageError{err: errors.New("a command is required")}
		},
		PersistentPreRun: func(*cobra.Command, []string) {
			r.client = r.options.HTTPClient
			if r.client == nil {
				r.client = &http.Client{Timeout: r.options.Timeout}
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&r.options.BaseURL, "base-url", r.options.BaseURL, "askhr API base URL")
	flags.StringVar(&r.options.APIKey, "api-key", r.options.APIKey, "API key for authenticated requests")
	flags.StringVar(&r.options.TenantID, "tenant-id", r.options.TenantID, "tenant id header (used when auth is disabled)")
	flags.StringVar(&r.options.UserID, "user-id", r.options.UserID, "user id header (used when auth is disabled)")
	flags.DurationVar(&r.options.Timeout, "timeout", r.options.Timeout, "HTTP timeout (e.g. 10s)")

	root.AddCommand(
		r.simpleCmd("health", "Check liveness", http.MethodGet, "/v1/health"),
		r.simpleCmd("ready", "Check readiness of dependencies", http.MethodGet, "/v1/ready"),
		r.simpleCmd("schema", "Show the HR schema the assistant can query", http.MethodGet, "/v1/schema"),
		r.simpleCmd("clear-history", "Delete the caller's chat history", http.MethodDelete, "/v1/chat/history"),
		r.newChatCmd(),
		r.newHistoryCmd(),
		r.newTranslateCmd(),
		r.newAuditSummaryCmd(),
	)
	return root
}

func (r *runner) simpleCmd(use, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.call(cmd, method, path, nil)
		},
	}
}

func (r *runner) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the assistant",
		Example: `  askhrctl chat 统计本月请假人数
  askhrctl --api-key k1 chat "我还有几天年假？"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.call(cmd, http.MethodPost, "/v1/chat", map[string]any{"message": strings.Join(args, " ")})
		},
	}
}

func (r *runner) newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the caller's recent chat messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.call(cmd, http.MethodGet, "/v1/chat/history?limit="+strconv.Itoa(limit), nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of messages")
	return cmd
}

func (r *runner) newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <prompt>",
		Short: "Translate a question into a structured query without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.call(cmd, http.MethodPost, "/v1/query/translate", map[string]any{"prompt": strings.Join(args, " ")})
		},
	}
}

func (r *runner) newAuditSummaryCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "audit-summary",
		Short: "Summarize one day of executed queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/v1/audit/summary"
			if strings.TrimSpace(date) != "" {
				if _, err := time.Parse(time.DateOnly, date); err != nil {
					return usageError{err: fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)}
				}
				path += "?date=" + url.QueryEscape(date)
			}
			return r.call(cmd, http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "UTC day to summarize (default today)")
	return cmd
}

func (r *runner) call(cmd *cobra.Command, method, path string, payload any) error {
	endpoint := strings.TrimRight(r.options.BaseURL, "/") + path
	code, body, err := r.doRequest(cmd.Context(), method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), pretty)
		return nil
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(body))
	}
	return nil
}

func (r *runner) doRequest(ctx context.Context, method, endpoint string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(r.options.APIKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if tenant := strings.TrimSpace(r.options.TenantID); tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	if user := strings.TrimSpace(r.options.UserID); user != "" {
		req.Header.Set("X-User-ID", user)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
