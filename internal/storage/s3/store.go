// Package s3 archives audit batches in S3-compatible object storage through minio-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/duckmesh/askhr/internal/storage"
)

const expiryRuleID = "askhr-audit-expiry"

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
	// AutoCreateBucket creates a missing bucket on startup.
	AutoCreateBucket bool
	// ExpireAfterDays installs a bucket lifecycle rule that expires objects under Prefix. Zero
	// leaves the bucket's lifecycle untouched.
	ExpireAfterDays int
}

// objectAPI is the slice of the S3 API the archive needs. Keys passed to it are bucket-absolute.
type objectAPI interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	DeleteMany(ctx context.Context, bucket string, keys []string) map[string]error
	List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
	SetExpiry(ctx context.Context, bucket, prefix string, days int) error
}

// Store is a storage.ObjectStore rooted at a prefix of one bucket.
type Store struct {
	api    objectAPI
	bucket string
	keys   keyspace
}

var (
	_ storage.ObjectStore  = (*Store)(nil)
	_ storage.BatchDeleter = (*Store)(nil)
)

func New(ctx context.Context, cfg Config) (*Store, error) {
	host, secure, err := endpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	store, err := newStore(strings.TrimSpace(cfg.Bucket), cfg.Prefix, minioAPI{client: client})
	if err != nil {
		return nil, err
	}
	if err := store.prepare(ctx, cfg); err != nil {
		return nil, err
	}
	return store, nil
}

func newStore(bucket, prefix string, api objectAPI) (*Store, error) {
	if api == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &Store{api: api, bucket: bucket, keys: newKeyspace(prefix)}, nil
}

// prepare creates the bucket and installs the expiry rule when the configuration asks for it.
func (s *Store) prepare(ctx context.Context, cfg Config) error {
	if cfg.AutoCreateBucket {
		exists, err := s.api.BucketExists(ctx, s.bucket)
		if err != nil {
			return fmt.Errorf("check bucket %q: %w", s.bucket, err)
		}
		if !exists {
			if err := s.api.CreateBucket(ctx, s.bucket, strings.TrimSpace(cfg.Region)); err != nil {
				return fmt.Errorf("create bucket %q: %w", s.bucket, err)
			}
		}
	}
	if cfg.ExpireAfterDays > 0 {
		if err := s.api.SetExpiry(ctx, s.bucket, s.keys.listing(""), cfg.ExpireAfterDays); err != nil {
			return fmt.Errorf("set expiry on bucket %q: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	full, err := s.keys.object(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.Put(ctx, s.bucket, full, body, size, opts)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put object %q: %w", key, err)
	}
	info.Key = s.keys.relative(info.Key)
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := s.keys.object(key)
	if err != nil {
		return nil, err
	}
	body, err := s.api.Get(ctx, s.bucket, full)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return nil, storage.ErrObjectNotFound
	case err != nil:
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	return body, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	full, err := s.keys.object(key)
	if err != nil {
		return err
	}
	if err := s.api.Delete(ctx, s.bucket, full); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

// DeleteBatch removes keys in one request. Duplicate keys count once.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var (
		batch []string
		seen  = make(map[string]string, len(keys))
	)
	for _, key := range keys {
		full, err := s.keys.object(key)
		if err != nil {
			return 0, err
		}
		if _, dup := seen[full]; !dup {
			seen[full] = key
			batch = append(batch, full)
		}
	}

	failed := s.api.DeleteMany(ctx, s.bucket, batch)
	var errs []error
	for _, full := range batch {
		if err, ok := failed[full]; ok {
			errs = append(errs, fmt.Errorf("delete object %q: %w", seen[full], err))
		}
	}
	return len(batch) - len(errs), errors.Join(errs...)
}

func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if strings.Contains(prefix, "..") {
		return nil, fmt.Errorf("invalid object prefix: %q", prefix)
	}
	full := s.keys.listing(prefix)
	objects, err := s.api.List(ctx, s.bucket, full)
	if err != nil {
		return nil, fmt.Errorf("list objects %q: %w", full, err)
	}
	for i := range objects {
		objects[i].Key = s.keys.relative(objects[i].Key)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// HealthCheck reports whether the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

// keyspace maps store-relative keys to bucket-absolute ones under a fixed root.
type keyspace struct {
	root string
}

func newKeyspace(prefix string) keyspace {
	root := path.Clean("/" + strings.TrimSpace(prefix))
	return keyspace{root: strings.TrimPrefix(root, "/")}
}

// object validates a relative key and returns its bucket-absolute form. Keys may not climb out of
// the root.
func (k keyspace) object(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if trimmed == "" {
		return "", errors.New("object key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return path.Join(k.root, cleaned), nil
}

// listing returns the bucket-absolute prefix for a relative one, keeping a trailing slash.
func (k keyspace) listing(prefix string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if trimmed == "" {
		if k.root == "" {
			return ""
		}
		return k.root + "/"
	}
	full := path.Join(k.root, trimmed)
	if strings.HasSuffix(trimmed, "/") {
		full += "/"
	}
	return full
}

func (k keyspace) relative(full string) string {
	if k.root == "" {
		return full
	}
	return strings.TrimPrefix(strings.TrimPrefix(full, k.root), "/")
}

// endpoint splits a configured endpoint into the host minio-go expects and whether to use TLS. An
// explicit scheme overrides useSSL.
func endpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("s3 endpoint %q has no host", raw)
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported s3 endpoint scheme %q", parsed.Scheme)
	}
}

type minioAPI struct {
	client *minio.Client
}

func (m minioAPI) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	uploaded, err := m.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType:    opts.ContentType,
		UserMetadata:   opts.Metadata,
		SendContentMd5: true,
	})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return storage.ObjectInfo{Key: uploaded.Key, Size: uploaded.Size, ETag: uploaded.ETag, LastModified: uploaded.LastModified}, nil
}

func (m minioAPI) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	object, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts reading.
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		return nil, notFound(err)
	}
	return object, nil
}

func (m minioAPI) Delete(ctx context.Context, bucket, key string) error {
	return notFound(m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
}

func (m minioAPI) DeleteMany(ctx context.Context, bucket string, keys []string) map[string]error {
	queue := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		queue <- minio.ObjectInfo{Key: key}
	}
	close(queue)

	failed := map[string]error{}
	for outcome := range m.client.RemoveObjects(ctx, bucket, queue, minio.RemoveObjectsOptions{}) {
		if err := notFound(outcome.Err); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			failed[outcome.ObjectName] = err
		}
	}
	return failed
}

func (m minioAPI) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	for item := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if item.Err != nil {
			return nil, notFound(item.Err)
		}
		objects = append(objects, storage.ObjectInfo{Key: item.Key, Size: item.Size, ETag: item.ETag, LastModified: item.LastModified})
	}
	return objects, nil
}

func (m minioAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.client.BucketExists(ctx, bucket)
}

func (m minioAPI) CreateBucket(ctx context.Context, bucket, region string) error {
	return m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (m minioAPI) SetExpiry(ctx context.Context, bucket, prefix string, days int) error {
	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         expiryRuleID,
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: prefix},
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	return m.client.SetBucketLifecycle(ctx, bucket, rules)
}

// notFound maps S3 missing-key and missing-bucket responses to storage.ErrObjectNotFound.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
