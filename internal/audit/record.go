// Package audit keeps a trail of executed structured queries. Records are buffered in memory,
// written as parquet batches per tenant and UTC day, and summarized with duckdb.
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/engine"
	"github.com/duckmesh/askhr/internal/store"
)

// Record is one executed query as stored in a parquet batch.
type Record struct {
	ID               string `parquet:"id"`
	TenantID         string `parquet:"tenant_id"`
	UserID           string `parquet:"user_id"`
	Entity           string `parquet:"entity"`
	Operation        string `parquet:"operation"`
	Aggregation      string `parquet:"aggregation"`
	Success          bool   `parquet:"success"`
	ErrorCode        string `parquet:"error_code"`
	RowCount         int64  `parquet:"row_count"`
	AffectedRows     int64  `parquet:"affected_rows"`
	DurationMs       int64  `parquet:"duration_ms"`
	GeneratedQuery   string `parquet:"generated_query"`
	Warnings         string `parquet:"warnings"`
	OriginalText     string `parquet:"original_text"`
	ExecutedAtUnixMs int64  `parquet:"executed_at_unix_ms"`
}

func (r Record) ExecutedAt() time.Time {
	return time.UnixMilli(r.ExecutedAtUnixMs).UTC()
}

// FromExecution flattens an engine execution. The executed query is the permission-filtered one,
// so row-scope conditions show up in GeneratedQuery.
func FromExecution(execution engine.Execution) Record {
	result := execution.Result
	return Record{
		ID:               uuid.NewString(),
		TenantID:         PathTenant(execution.Identity.TenantID),
		UserID:           execution.Identity.UserID,
		Entity:           execution.Query.TargetEntity,
		Operation:        string(result.Operation),
		Aggregation:      string(result.Aggregation),
		Success:          result.Success,
		ErrorCode:        result.ErrorCode,
		RowCount:         int64(result.RowCount),
		AffectedRows:     int64(result.AffectedRows),
		DurationMs:       result.Duration.Milliseconds(),
		GeneratedQuery:   result.GeneratedQuery,
		Warnings:         strings.Join(result.Warnings, "\n"),
		OriginalText:     execution.Query.OriginalText,
		ExecutedAtUnixMs: execution.StartedAt.UTC().UnixMilli(),
	}
}

// PathTenant returns the tenant id used in object keys. Ids that are not safe path components
// are replaced by their tenant key.
func PathTenant(tenant string) string {
	tenant = strings.TrimSpace(tenant)
	if tenant != "" && len(tenant) <= 128 && safeComponent(tenant) {
		return tenant
	}
	return store.TenantKey(tenant).String()
}

func safeComponent(value string) bool {
	for i, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case i > 0 && (r == '.' || r == '_' || r == '-'):
		default:
			return false
		}
	}
	return true
}
