package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duckmesh/askhr/internal/audit"
	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/chat"
	"github.com/duckmesh/askhr/internal/config"
	"github.com/duckmesh/askhr/internal/engine"
	"github.com/duckmesh/askhr/internal/modelclient"
	"github.com/duckmesh/askhr/internal/nl2sql"
	"github.com/duckmesh/askhr/internal/observability"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
	"github.com/duckmesh/askhr/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

type ChatService interface {
	Chat(ctx context.Context, identity auth.Identity, message string) chat.Envelope
	History(ctx context.Context, identity auth.Identity, limit int) ([]session.Message, error)
	ClearHistory(ctx context.Context, identity auth.Identity) error
}

type QueryTranslator interface {
	Translate(ctx context.Context, utterance string, recent []modelclient.Message) nl2sql.Result
}

type QueryPreviewer interface {
	Preview(q query.StructuredQuery, identity auth.Identity) engine.Preview
}

type AuditSummarizer interface {
	Summarize(ctx context.Context, tenant string, day time.Time) ([]audit.Summary, error)
}

type Dependencies struct {
	Logger           *slog.Logger
	Readiness        ReadinessCheck
	AuthMiddleware   func(http.Handler) http.Handler
	DependencyTimout time.Duration
	Chat             ChatService
	Catalog          *schema.Catalog
	Translator       QueryTranslator
	Previewer        QueryPreviewer
	Audit            AuditSummarizer
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := map[string]http.HandlerFunc{
		"POST /v1/chat": func(w http.ResponseWriter, r *http.Request) {
			handleChat(deps, w, r)
		},
		"GET /v1/chat/history": func(w http.ResponseWriter, r *http.Request) {
			handleChatHistory(deps, w, r)
		},
		"DELETE /v1/chat/history": func(w http.ResponseWriter, r *http.Request) {
			handleClearChatHistory(deps, w, r)
		},
		"GET /v1/schema": func(w http.ResponseWriter, r *http.Request) {
			handleSchema(deps, w, r)
		},
		"POST /v1/query/translate": func(w http.ResponseWriter, r *http.Request) {
			handleTranslateQuery(deps, w, r)
		},
		"GET /v1/audit/summary": func(w http.ResponseWriter, r *http.Request) {
			handleAuditSummary(deps, w, r)
		},
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	switch {
	case deps.AuthMiddleware != nil:
		protectedHandler = deps.AuthMiddleware(protectedHandler)
	case cfg.Auth.Required:
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.RecoverMiddleware(deps.Logger), observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, observability.MetricsMiddleware)
	return chain(mux, middlewares...)
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// identityFromRequest returns the authenticated identity, or an unauthenticated one scoped by the
// X-Tenant-ID and X-User-ID headers when auth is not enforced. Unauthenticated callers can chat
// but every data query is denied by the permission validator.
func identityFromRequest(r *http.Request) (auth.Identity, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if strings.TrimSpace(identity.TenantID) == "" {
			return auth.Identity{}, errors.New("tenant context is required")
		}
		if identity.UserID == "" {
			identity.UserID = identity.TenantID
		}
		return identity, nil
	}
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if tenantID == "" {
		return auth.Identity{}, errors.New("tenant context is required")
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		userID = "anonymous"
	}
	return auth.Identity{TenantID: tenantID, UserID: userID}, nil
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

const maxRequestBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	payload := map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	}
	if len(extra) > 0 {
		payload["context"] = extra
	}
	writeJSON(w, status, payload)
}
