package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/askhr/internal/storage"
)

// Summary aggregates one day of audit records per entity and operation.
type Summary struct {
	Entity        string  `json:"entity"`
	Operation     string  `json:"operation"`
	Queries       int64   `json:"queries"`
	Failures      int64   `json:"failures"`
	Rows          int64   `json:"rows"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

const summarySQL = `SELECT entity, operation,
	COUNT(*) AS queries,
	CAST(SUM(CASE WHEN success THEN 0 ELSE 1 END) AS BIGINT) AS failures,
	CAST(SUM(row_count + affected_rows) AS BIGINT) AS row_total,
	AVG(duration_ms) AS avg_duration_ms
FROM read_parquet(%s)
GROUP BY entity, operation
ORDER BY queries DESC, entity, operation`

// Reader queries audit batches straight from the object store with an in-process duckdb.
type Reader struct {
	Store storage.ObjectStore
}

func NewReader(store storage.ObjectStore) *Reader {
	return &Reader{Store: store}
}

// Summarize returns per-entity statistics for tenant on the UTC day of day. A day without
// batches yields an empty result.
func (r *Reader) Summarize(ctx context.Context, tenant string, day time.Time) ([]Summary, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	prefix, err := storage.AuditPrefix(PathTenant(tenant), day)
	if err != nil {
		return nil, err
	}
	objects, err := r.Store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list audit batches: %w", err)
	}
	if len(objects) == 0 {
		return []Summary{}, nil
	}

	workDir, err := os.MkdirTemp("", "askhr-audit-")
	if err != nil {
		return nil, fmt.Errorf("create audit temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths := make([]string, 0, len(objects))
	for index, object := range objects {
		localPath := filepath.Join(workDir, fmt.Sprintf("batch_%d.parquet", index))
		if err := r.download(ctx, object.Key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(summarySQL, quoteStringArray(localPaths)))
	if err != nil {
		return nil, fmt.Errorf("summarize audit batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Summary{}
	for rows.Next() {
		var item Summary
		if err := rows.Scan(&item.Entity, &item.Operation, &item.Queries, &item.Failures, &item.Rows, &item.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scan audit summary: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit summary: %w", err)
	}
	return out, nil
}

func (r *Reader) download(ctx context.Context, key, localPath string) error {
	reader, err := r.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %q: %w", localPath, err)
	}
	return file.Close()
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
