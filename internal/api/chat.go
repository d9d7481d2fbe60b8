package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/duckmesh/askhr/internal/observability"
	"github.com/duckmesh/askhr/internal/session"
)

type chatRequest struct {
	Message string `json:"message"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	envelope := deps.Chat.Chat(r.Context(), identity, req.Message)
	observability.AnnotateRequest(r.Context(),
		slog.String("chat_route", string(envelope.Route)),
		slog.String("correlation_id", envelope.CorrelationID),
	)
	writeJSON(w, http.StatusOK, envelope)
}

func handleChatHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}

	limit := session.DefaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	messages, err := deps.Chat.History(r.Context(), identity, limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "failed to load chat history", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func handleClearChatHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := deps.Chat.ClearHistory(r.Context(), identity); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "failed to clear chat history", true, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
