//go:build integration

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/duckmesh/askhr/internal/storage"
)

func TestAuditObjectRoundTripAgainstMinIO(t *testing.T) {
	endpoint := envOr("ASKHR_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("ASKHR_TEST_S3_ENDPOINT is not set")
	}

	cfg := Config{
		Endpoint:         endpoint,
		Region:           envOr("ASKHR_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("ASKHR_TEST_S3_BUCKET", "askhr-it"),
		AccessKeyID:      envOr("ASKHR_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("ASKHR_TEST_S3_SECRET_KEY", "miniostorage"),
		UseSSL:           false,
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
		ExpireAfterDays:  30,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := "audit/tenant=acme/date=2024-03-01/"
	batches := map[string][]byte{
		day + "a.parquet": []byte("askhr-integration-a"),
		day + "b.parquet": []byte("askhr-integration-bb"),
	}
	for key, payload := range batches {
		opts := storage.PutOptions{
			ContentType: "application/vnd.apache.parquet",
			Metadata:    map[string]string{"askhr-tenant": "acme"},
		}
		if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), opts); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	listed, err := store.List(ctx, day)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 2 || listed[0].Key != day+"a.parquet" || listed[1].Size != int64(len(batches[day+"b.parquet"])) {
		t.Fatalf("List() = %+v", listed)
	}

	reader, err := store.Get(ctx, day+"a.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil || !bytes.Equal(body, batches[day+"a.parquet"]) {
		t.Fatalf("Get() body = %q, %v", body, err)
	}

	deleted, err := store.DeleteBatch(ctx, []string{day + "a.parquet", day + "b.parquet", day + "never-written.parquet"})
	if err != nil || deleted != 3 {
		t.Fatalf("DeleteBatch() = %d, %v", deleted, err)
	}
	if remaining, err := store.List(ctx, day); err != nil || len(remaining) != 0 {
		t.Fatalf("List() after DeleteBatch = %+v, %v", remaining, err)
	}
	if _, err := store.Get(ctx, day+"a.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrObjectNotFound", err)
	}
	if err := store.Delete(ctx, day+"a.parquet"); err != nil {
		t.Fatalf("Delete() of missing object error = %v", err)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
