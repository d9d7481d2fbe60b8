package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duckmesh/askhr/internal/storage"
)

type RetentionConfig struct {
	// KeepDays is the number of UTC days of batches kept, today included.
	KeepDays int
	Interval time.Duration
}

type RetentionSummary struct {
	ObjectsScanned int `json:"objects_scanned"`
	ObjectsDeleted int `json:"objects_deleted"`
	Failures       int `json:"failures"`
}

// Pruner deletes audit batches whose date partition fell out of the retention window.
type Pruner struct {
	Store  storage.ObjectStore
	Config RetentionConfig
	Logger *slog.Logger
	Clock  func() time.Time
}

func (p *Pruner) ensureDefaults() {
	if p.Config.Interval <= 0 {
		p.Config.Interval = time.Hour
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
}

func (p *Pruner) Run(ctx context.Context) error {
	p.ensureDefaults()
	ticker := time.NewTicker(p.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := p.PruneOnce(ctx)
			if err != nil {
				if p.Logger != nil {
					p.Logger.ErrorContext(ctx, "audit_retention_failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if p.Logger != nil && summary.ObjectsDeleted > 0 {
				p.Logger.InfoContext(ctx, "audit_retention_completed", slog.Any("summary", summary))
			}
		}
	}
}

// PruneOnce makes one pass over every tenant. Keys that do not look like audit batches are left
// alone. A non-positive KeepDays keeps everything.
func (p *Pruner) PruneOnce(ctx context.Context) (RetentionSummary, error) {
	p.ensureDefaults()
	if p.Store == nil {
		return RetentionSummary{}, fmt.Errorf("object store is required")
	}
	if p.Config.KeepDays <= 0 {
		return RetentionSummary{}, nil
	}

	now := p.Clock().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1-p.Config.KeepDays)

	objects, err := p.Store.List(ctx, storage.AuditRootPrefix)
	if err != nil {
		return RetentionSummary{}, fmt.Errorf("list audit batches: %w", err)
	}
	summary := RetentionSummary{ObjectsScanned: len(objects)}
	var expired []string
	for _, object := range objects {
		if _, day, ok := storage.ParseAuditPath(object.Key); ok && day.Before(cutoff) {
			expired = append(expired, object.Key)
		}
	}
	if len(expired) == 0 {
		return summary, nil
	}

	if batch, ok := p.Store.(storage.BatchDeleter); ok {
		deleted, err := batch.DeleteBatch(ctx, expired)
		summary.ObjectsDeleted = deleted
		summary.Failures = len(expired) - deleted
		return summary, err
	}

	var errs []error
	for _, key := range expired {
		if err := p.Store.Delete(ctx, key); err != nil {
			summary.Failures++
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		summary.ObjectsDeleted++
	}
	return summary, errors.Join(errs...)
}
