package engine

import (
	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/query"
)

// Preview is what Execute would run for a query, without touching the store.
type Preview struct {
	Valid          bool                  `json:"valid"`
	Query          query.StructuredQuery `json:"query"`
	GeneratedQuery string                `json:"generatedQuery,omitempty"`
	Warnings       []string              `json:"warnings,omitempty"`
	ErrorCode      string                `json:"errorCode,omitempty"`
	ErrorMessage   string                `json:"errorMessage,omitempty"`
}

// Preview runs both validators for identity and renders the query that would execute.
func (e *Engine) Preview(q query.StructuredQuery, identity auth.Identity) Preview {
	e.ensureDefaults()
	p := e.Policies.Current()
	checked := e.Security.ValidateWith(q, p)
	if !checked.Valid {
		failed := validationFailure(checked.Errors, checked.Warnings)
		return Preview{Query: q, Warnings: failed.Warnings, ErrorCode: failed.ErrorCode, ErrorMessage: failed.ErrorMessage}
	}
	permitted := e.Permissions.ValidateWith(checked.Corrected, identity, p)
	if !permitted.Valid {
		failed := validationFailure(permitted.Errors, checked.Warnings)
		return Preview{Query: checked.Corrected, Warnings: failed.Warnings, ErrorCode: failed.ErrorCode, ErrorMessage: failed.ErrorMessage}
	}
	return Preview{
		Valid:          true,
		Query:          permitted.Filtered,
		GeneratedQuery: e.render(permitted.Filtered, permitted.RequiredFilters, p),
		Warnings:       append(append([]string(nil), checked.Warnings...), permitted.Warnings...),
	}
}
