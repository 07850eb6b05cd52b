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

	"github.com/casedesk/casedesk/internal/auth"
	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/observability"
)

const defaultReadinessTimeout = 2 * time.Second

// Asker answers one natural-language question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// ReadinessCheck is one named dependency probe behind GET /v1/ready.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Dependencies struct {
	Logger *slog.Logger
	Relay  Asker
	// Keys guards POST /chat when auth is required by configuration.
	Keys             auth.APIKeyValidator
	Readiness        []ReadinessCheck
	ReadinessTimeout time.Duration
	UI               http.Handler
}

type server struct {
	cfg  config.Config
	deps Dependencies
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.ReadinessTimeout <= 0 {
		deps.ReadinessTimeout = defaultReadinessTimeout
	}
	s := &server{cfg: cfg, deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/ready", s.handleReady)
	mux.Handle("GET /v1/metrics", promhttp.Handler())
	mux.Handle("POST /chat", s.chatHandler())
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	var handler http.Handler = mux
	if deps.Logger != nil {
		handler = observability.LoggingMiddleware(deps.Logger)(handler)
	}
	handler = observability.MetricsMiddleware(handler)
	return observability.TraceMiddleware(handler)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": s.cfg.Service.Name})
}

// handleReady runs every probe, even after a failure, so the response names
// all broken dependencies at once.
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.deps.ReadinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Readiness))
	ready := true
	for _, check := range s.deps.Readiness {
		if check.Probe == nil {
			continue
		}
		if err := check.Probe(ctx); err != nil {
			checks[check.Name] = err.Error()
			ready = false
			continue
		}
		checks[check.Name] = "ok"
	}
	if !ready {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "one or more dependencies are unavailable", true, map[string]any{"checks": checks})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}

func (s *server) chatHandler() http.Handler {
	chat := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleChat(s.deps, w, r)
	})
	if !s.cfg.Auth.Required {
		return chat
	}
	if s.deps.Keys == nil {
		if s.deps.Logger != nil {
			s.deps.Logger.Error("auth required but no api keys configured")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_NOT_CONFIGURED", "auth is required by configuration but no key validator is set", false, nil)
		})
	}
	return auth.Guard{
		Validator: s.deps.Keys,
		Role:      auth.RoleChatUser,
		Logger:    s.deps.Logger,
		Reject: func(w http.ResponseWriter, r *http.Request, status int, code, message string) {
			writeError(r.Context(), w, status, code, message, false, nil)
		},
	}.Wrap(chat)
}

func CheckAPIKey(cfg config.Config) ReadinessCheck {
	return ReadinessCheck{Name: "model_credential", Probe: func(_ context.Context) error {
		return cfg.AI.RequireAPIKey()
	}}
}

// CheckObjectStoreConfig only matters when a dataset object is attached.
func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return ReadinessCheck{Name: "object_store", Probe: func(_ context.Context) error {
		if strings.TrimSpace(cfg.Store.DatasetObject) == "" {
			return nil
		}
		switch {
		case cfg.ObjectStore.Endpoint == "":
			return errors.New("object store endpoint is not configured")
		case cfg.ObjectStore.Bucket == "":
			return errors.New("object store bucket is not configured")
		}
		return nil
	}}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorEnvelope struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Context   map[string]any `json:"context"`
	TraceID   string         `json:"trace_id"`
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, errorEnvelope{
		ErrorCode: code,
		Message:   message,
		Retryable: retryable,
		Context:   extra,
		TraceID:   observability.TraceIDFromContext(ctx),
	})
}
