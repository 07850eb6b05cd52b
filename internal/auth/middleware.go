package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/casedesk/casedesk/internal/observability"
)

var ErrForbidden = errors.New("api key lacks the required role")

type contextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// RejectFunc writes an auth failure. code is UNAUTHORIZED or FORBIDDEN.
type RejectFunc func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Guard admits requests that carry a valid key holding Role.
type Guard struct {
	Validator APIKeyValidator
	Role      string
	Logger    *slog.Logger
	Reject    RejectFunc
}

func (g Guard) Wrap(next http.Handler) http.Handler {
	reject := g.Reject
	if reject == nil {
		reject = writeRejection
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := observability.WithTrace(r.Context(), g.Logger)

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			reject(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing API key")
			return
		}
		identity, ok := g.Validator.Validate(r.Context(), apiKey)
		if !ok {
			logger.WarnContext(r.Context(), "authentication failed", slog.String("path", r.URL.Path))
			reject(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
			return
		}
		if g.Role != "" && !identity.HasRole(g.Role) {
			logger.WarnContext(r.Context(), "authorization failed",
				slog.String("key_id", identity.KeyID),
				slog.String("role", g.Role),
			)
			reject(w, r, http.StatusForbidden, "FORBIDDEN", ErrForbidden.Error())
			return
		}

		logger.DebugContext(r.Context(), "authenticated request", slog.String("key_id", identity.KeyID))
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole checks the identity attached by Guard. Requests without one
// pass, since mounting Guard is what makes auth mandatory.
func RequireRole(ctx context.Context, role string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.HasRole(role) {
		return nil
	}
	return ErrForbidden
}

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

func writeRejection(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
