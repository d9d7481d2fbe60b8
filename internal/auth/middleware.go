package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/duckmesh/askhr/internal/observability"
)

const HeaderAPIKey = "X-API-Key"

type identityContextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

// rejection is the reason label of a refused credential.
type rejection string

const (
	rejectMissing rejection = "missing_key"
	rejectInvalid rejection = "invalid_key"
)

// Middleware resolves the caller from its API key and rejects the request when there is none.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return authenticate(logger, validator, true)
}

// OptionalMiddleware lets requests without an API key through unauthenticated; a key that is
// present must still be valid.
func OptionalMiddleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return authenticate(logger, validator, false)
}

func authenticate(logger *slog.Logger, validator APIKeyValidator, required bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, scheme := credential(r)
			if key == "" {
				if required {
					refuse(w, r, logger, rejectMissing, scheme)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := validator.Validate(r.Context(), key)
			if !ok || !identity.Authenticated {
				refuse(w, r, logger, rejectInvalid, scheme)
				return
			}
			observability.AnnotateRequest(r.Context(),
				slog.String("tenant_id", identity.TenantID),
				slog.String("user_id", identity.UserID),
			)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// credential returns the API key and the header it came from. X-API-Key wins over an
// Authorization bearer token; the scheme name is matched case-insensitively.
func credential(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key, "api_key"
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ""
	}
	return strings.TrimSpace(token), "bearer"
}

func refuse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason rejection, scheme string) {
	observability.ObserveAuthFailure(string(reason))
	logger.WarnContext(r.Context(), "authentication_failed",
		slog.String("reason", string(reason)),
		slog.String("scheme", scheme),
		slog.String("path", r.URL.Path),
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="askhr"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    MessageUnauthenticated,
		"reason":     reason,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
