package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantdb/tenantdb/internal/observability"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// WithIdentity attaches the authenticated key owner to ctx.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// Middleware rejects requests without a valid API key. Project scope is not
// checked here; handlers compare the identity against the project in the path.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := extractAPIKey(r)
			if apiKey == "" {
				writeUnauthorized(w, r, "missing API key", "missing_key")
				return
			}

			identity, ok := validator.Validate(r.Context(), apiKey)
			if !ok {
				logger.WarnContext(r.Context(), "api key rejected",
					slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
					slog.String("method", r.Method),
					slog.String("route", observability.RouteLabel(r.URL.Path)),
				)
				writeUnauthorized(w, r, "invalid API key", "invalid_key")
				return
			}

			logger.DebugContext(r.Context(), "api key accepted",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("owner", identity.Owner),
			)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// extractAPIKey reads X-API-Key, then an Authorization bearer token. The
// scheme name is case-insensitive.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message, reason string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tenantdb"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"context":    map[string]any{"reason": reason},
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
