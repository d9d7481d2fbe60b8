package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/duckmesh/askhr/internal/auth"
)

type translateRequest struct {
	Prompt string `json:"prompt"`
}

type entitySummary struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description,omitempty"`
	SupportsCrud bool     `json:"supportsCrud"`
	Fields       []string `json:"fields"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema catalog is not configured", false, nil)
		return
	}
	entities := deps.Catalog.Entities()
	summaries := make([]entitySummary, 0, len(entities))
	for _, entity := range entities {
		fields := entity.PublicFields()
		names := make([]string, len(fields))
		for i, field := range fields {
			names[i] = field.Name
		}
		summaries = append(summaries, entitySummary{
			Name:         entity.Name,
			DisplayName:  entity.DisplayName,
			Description:  entity.Description,
			SupportsCrud: entity.SupportsCrud,
			Fields:       names,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities":    summaries,
		"description": deps.Catalog.Describe(),
	})
}

// handleTranslateQuery translates a prompt and previews it for the caller without executing it.
func handleTranslateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}

	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}

	result := deps.Translator.Translate(r.Context(), req.Prompt, nil)
	if !result.Success || result.Query == nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "TRANSLATE_FAILED", result.ErrorMessage, false, nil)
		return
	}

	response := map[string]any{
		"query":       result.Query,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if deps.Previewer != nil {
		response["preview"] = deps.Previewer.Preview(*result.Query, identity)
	}
	writeJSON(w, http.StatusOK, response)
}

func handleAuditSummary(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Audit == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AUDIT_NOT_CONFIGURED", "query audit is not configured", false, nil)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if !identity.HasPermission(auth.CapabilityHRAdmin) {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "hr:admin capability is required", false, nil)
		return
	}

	day := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DATE", "date must be formatted as YYYY-MM-DD", false, nil)
			return
		}
		day = parsed
	}

	summaries, err := deps.Audit.Summarize(r.Context(), identity.TenantID, day)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "audit_summary_failed", "tenant_id", identity.TenantID, "error", err)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_SUMMARY_FAILED", "failed to summarize query audit", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": identity.TenantID,
		"date":      day.Format(time.DateOnly),
		"entities":  summaries,
	})
}
