package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duckmesh/askhr/internal/storage"
)

func seedObjects(t *testing.T, store *memoryStore, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if _, err := store.Put(context.Background(), key, bytes.NewReader([]byte("x")), 1, storage.PutOptions{}); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}
}

func TestPruneOnceDeletesBatchesOutsideWindow(t *testing.T) {
	store := newMemoryStore()
	seedObjects(t, store,
		"audit/tenant=acme/date=2024-02-27/b1.parquet",
		"audit/tenant=acme/date=2024-02-28/b2.parquet",
		"audit/tenant=globex/date=2024-02-01/b3.parquet",
		"audit/tenant=acme/date=2024-03-01/b4.parquet",
		"audit/README",
	)

	pruner := &Pruner{
		Store:  store,
		Config: RetentionConfig{KeepDays: 3},
		Clock:  func() time.Time { return time.Date(2024, time.March, 1, 15, 0, 0, 0, time.UTC) },
	}
	summary, err := pruner.PruneOnce(context.Background())
	if err != nil {
		t.Fatalf("PruneOnce() error = %v", err)
	}
	if summary.ObjectsScanned != 5 || summary.ObjectsDeleted != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	keys := store.keys()
	want := []string{
		"audit/README",
		"audit/tenant=acme/date=2024-02-28/b2.parquet",
		"audit/tenant=acme/date=2024-03-01/b4.parquet",
	}
	if len(keys) != len(want) {
		t.Fatalf("remaining keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("remaining keys = %v", keys)
		}
	}
}

func TestPruneOnceKeepsEverythingWithoutRetention(t *testing.T) {
	store := newMemoryStore()
	seedObjects(t, store, "audit/tenant=acme/date=2000-01-01/b1.parquet")

	summary, err := (&Pruner{Store: store}).PruneOnce(context.Background())
	if err != nil || summary.ObjectsDeleted != 0 || len(store.keys()) != 1 {
		t.Fatalf("summary = %+v, err = %v, keys = %v", summary, err, store.keys())
	}
}

func TestPruneOnceReportsDeleteFailures(t *testing.T) {
	store := newMemoryStore()
	store.deleteErr = errors.New("access denied")
	seedObjects(t, store, "audit/tenant=acme/date=2000-01-01/b1.parquet")

	summary, err := (&Pruner{Store: store, Config: RetentionConfig{KeepDays: 30}}).PruneOnce(context.Background())
	if err == nil || summary.Failures != 1 {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
}

type batchStore struct {
	*memoryStore
	batches [][]string
}

func (b *batchStore) DeleteBatch(ctx context.Context, keys []string) (int, error) {
	b.batches = append(b.batches, keys)
	for _, key := range keys {
		if err := b.Delete(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func TestPruneOnceUsesBatchDeleteWhenAvailable(t *testing.T) {
	store := &batchStore{memoryStore: newMemoryStore()}
	seedObjects(t, store.memoryStore,
		"audit/tenant=acme/date=2024-01-01/b1.parquet",
		"audit/tenant=acme/date=2024-01-02/b2.parquet",
		"audit/tenant=acme/date=2024-03-01/b3.parquet",
	)

	pruner := &Pruner{
		Store:  store,
		Config: RetentionConfig{KeepDays: 7},
		Clock:  func() time.Time { return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC) },
	}
	summary, err := pruner.PruneOnce(context.Background())
	if err != nil {
		t.Fatalf("PruneOnce() error = %v", err)
	}
	if len(store.batches) != 1 || len(store.batches[0]) != 2 || summary.ObjectsDeleted != 2 {
		t.Fatalf("batches = %v, summary = %+v", store.batches, summary)
	}
	if keys := store.keys(); len(keys) != 1 || keys[0] != "audit/tenant=acme/date=2024-03-01/b3.parquet" {
		t.Fatalf("remaining keys = %v", keys)
	}
}
