// Package s3 mirrors cache artifacts to an S3-compatible bucket through
// minio-go.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/duckllm/duckllm/internal/config"
	"github.com/duckllm/duckllm/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// bucket is one S3 bucket with object names already resolved. Missing
// objects surface as storage.ErrObjectNotFound.
type bucket interface {
	upload(ctx context.Context, name string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	open(ctx context.Context, name string) (io.ReadCloser, error)
	head(ctx context.Context, name string) (storage.ObjectInfo, error)
}

// Mirror implements storage.ObjectStore on top of a bucket. Every key is
// placed under the configured prefix.
type Mirror struct {
	bucket bucket
	prefix []string
}

// New connects to the configured endpoint and, when AutoCreateBucket is set,
// creates the bucket if it does not exist yet.
func New(ctx context.Context, cfg config.MirrorConfig) (*Mirror, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	api, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	b := &minioBucket{api: api, name: name}
	if cfg.AutoCreateBucket {
		if err := b.create(ctx, region); err != nil {
			return nil, err
		}
	}
	return newMirror(b, cfg.Prefix), nil
}

func newMirror(b bucket, prefix string) *Mirror {
	return &Mirror{bucket: b, prefix: segments(prefix)}
}

func (m *Mirror) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	name, err := m.objectName(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = parquetContentType
	}
	info, err := m.bucket.upload(ctx, name, body, size, contentType)
	return info, wrap("upload", name, err)
}

func (m *Mirror) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := m.objectName(key)
	if err != nil {
		return nil, err
	}
	body, err := m.bucket.open(ctx, name)
	if err != nil {
		return nil, wrap("download", name, err)
	}
	return body, nil
}

func (m *Mirror) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	name, err := m.objectName(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := m.bucket.head(ctx, name)
	return info, wrap("stat", name, err)
}

// objectName joins the prefix and key. Empty and "." segments are dropped;
// ".." is refused outright so keys can never climb out of the prefix.
func (m *Mirror) objectName(key string) (string, error) {
	parts := segments(key)
	if len(parts) == 0 {
		return "", fmt.Errorf("object key is required")
	}
	for _, part := range parts {
		if part == ".." {
			return "", fmt.Errorf("invalid object key: %q", key)
		}
	}
	return strings.Join(append(append([]string(nil), m.prefix...), parts...), "/"), nil
}

func segments(raw string) []string {
	var out []string
	for _, part := range strings.Split(strings.TrimSpace(raw), "/") {
		part = strings.TrimSpace(part)
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

// wrap keeps ErrObjectNotFound bare so callers can compare it directly.
func wrap(op, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case err == storage.ErrObjectNotFound:
		return err
	default:
		return fmt.Errorf("%s %q: %w", op, name, err)
	}
}

// splitEndpoint turns the configured endpoint into the host minio expects.
// A bare host[:port] follows useSSL; an http or https scheme overrides it.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	secure := useSSL
	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		switch strings.ToLower(scheme) {
		case "https":
			secure = true
		case "http":
			secure = false
		default:
			return "", false, fmt.Errorf("unsupported endpoint scheme %q", scheme)
		}
		raw = strings.TrimSuffix(rest, "/")
	}
	if raw == "" {
		return "", false, fmt.Errorf("mirror endpoint is required")
	}
	if strings.Contains(raw, "/") {
		return "", false, fmt.Errorf("mirror endpoint %q must not carry a path", raw)
	}
	return raw, secure, nil
}

type minioBucket struct {
	api  *minio.Client
	name string
}

func (b *minioBucket) create(ctx context.Context, region string) error {
	exists, err := b.api.BucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.name, err)
	}
	if exists {
		return nil
	}
	if err := b.api.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", b.name, err)
	}
	return nil
}

func (b *minioBucket) upload(ctx context.Context, name string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	res, err := b.api.PutObject(ctx, b.name, name, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return storage.ObjectInfo{Key: res.Key, Size: res.Size, ETag: res.ETag}, nil
}

// open stats the object before handing it out; GetObject itself is lazy and
// would only report a missing key on the first read.
func (b *minioBucket) open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := b.api.GetObject(ctx, b.name, name, minio.GetObjectOptions{})
	if err == nil {
		_, err = obj.Stat()
		if err != nil {
			_ = obj.Close()
		}
	}
	if err != nil {
		return nil, notFound(err)
	}
	return obj, nil
}

func (b *minioBucket) head(ctx context.Context, name string) (storage.ObjectInfo, error) {
	st, err := b.api.StatObject(ctx, b.name, name, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return storage.ObjectInfo{Key: st.Key, Size: st.Size, ETag: st.ETag, LastModified: st.LastModified}, nil
}

func notFound(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	default:
		return err
	}
}
