package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/engine"
	"github.com/duckmesh/askhr/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	// MaxPending caps the records kept in memory while uploads fail. Oldest records are dropped first.
	MaxPending int
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.MaxPending < c.BatchSize {
		c.MaxPending = c.BatchSize * 10
	}
	return c
}

// Writer buffers executed queries and uploads them as parquet batches. It implements
// engine.Observer.
type Writer struct {
	store  storage.ObjectStore
	cfg    WriterConfig
	logger *slog.Logger

	mu      sync.Mutex
	pending []Record
	dropped int64
	wake    chan struct{}
}

func NewWriter(store storage.ObjectStore, cfg WriterConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

func (w *Writer) QueryExecuted(_ context.Context, execution engine.Execution) {
	if w.enqueue(FromExecution(execution)) {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// enqueue buffers records and reports whether a full batch is waiting.
func (w *Writer) enqueue(records ...Record) bool {
	w.mu.Lock()
	w.pending = append(w.pending, records...)
	if over := len(w.pending) - w.cfg.MaxPending; over > 0 {
		w.pending = append([]Record(nil), w.pending[over:]...)
		w.dropped += int64(over)
	}
	full := len(w.pending) >= w.cfg.BatchSize
	w.mu.Unlock()
	return full
}

// Pending returns the number of buffered records.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Dropped returns the number of records discarded because the buffer was full.
func (w *Writer) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Run flushes on every interval tick and whenever a batch fills up. On cancellation it makes a
// final flush bounded by the flush interval.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.FlushInterval)
			w.flushAndLog(finalCtx)
			cancel()
			return nil
		case <-ticker.C:
			w.flushAndLog(ctx)
		case <-w.wake:
			w.flushAndLog(ctx)
		}
	}
}

func (w *Writer) flushAndLog(ctx context.Context) {
	if err := w.Flush(ctx); err != nil {
		w.logger.ErrorContext(ctx, "audit_flush_failed",
			slog.Any("error", err),
			slog.Int("pending", w.Pending()),
		)
	}
}

type batchKey struct {
	tenant string
	day    string
}

// Flush uploads every buffered record, one object per tenant and UTC day. Batches that fail to
// upload go back to the buffer.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	records := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(records) == 0 {
		return nil
	}

	batches := map[batchKey][]Record{}
	var keys []batchKey
	for _, record := range records {
		key := batchKey{tenant: record.TenantID, day: record.ExecutedAt().Format(time.DateOnly)}
		if _, ok := batches[key]; !ok {
			keys = append(keys, key)
		}
		batches[key] = append(batches[key], record)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tenant != keys[j].tenant {
			return keys[i].tenant < keys[j].tenant
		}
		return keys[i].day < keys[j].day
	})

	var errs []error
	for _, key := range keys {
		batch := batches[key]
		if err := w.upload(ctx, batch); err != nil {
			// Requeued batches wait for the next tick.
			w.enqueue(batch...)
			errs = append(errs, fmt.Errorf("tenant %s day %s: %w", key.tenant, key.day, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) upload(ctx context.Context, batch []Record) error {
	encoded, err := EncodeRecords(batch)
	if err != nil {
		return err
	}
	key, err := storage.BuildAuditPath(batch[0].TenantID, encoded.MinExecutedAt, uuid.New())
	if err != nil {
		return err
	}
	opts := storage.PutOptions{
		ContentType: parquetContentType,
		Metadata: map[string]string{
			"askhr-tenant":  batch[0].TenantID,
			"askhr-records": strconv.FormatInt(encoded.RecordCount, 10),
		},
	}
	if _, err := w.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), opts); err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "audit_batch_written",
		slog.String("key", key),
		slog.Int64("records", encoded.RecordCount),
	)
	return nil
}
