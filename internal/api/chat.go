package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/casedesk/casedesk/internal/auth"
	"github.com/casedesk/casedesk/internal/observability"
	"github.com/casedesk/casedesk/internal/relay"
)

const maxChatBodyBytes = 1 << 20

type chatRequest struct {
	UserInput *string `json:"user_input"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RELAY_NOT_CONFIGURED", "query relay is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleChatUser); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if request.UserInput == nil || strings.TrimSpace(*request.UserInput) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "USER_INPUT_REQUIRED", "user_input is required", false, nil)
		return
	}

	answer, err := deps.Relay.Ask(r.Context(), *request.UserInput)
	if err != nil {
		if errors.Is(err, relay.ErrEmptyQuestion) {
			writeError(r.Context(), w, http.StatusBadRequest, "USER_INPUT_REQUIRED", err.Error(), false, nil)
			return
		}
		observability.WithTrace(r.Context(), deps.Logger).ErrorContext(r.Context(), "query agent failed", slog.Any("error", err))
		writeError(r.Context(), w, http.StatusInternalServerError, "AGENT_FAILED", "query agent failed", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}
