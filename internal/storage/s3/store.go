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

	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/storage"
)

type client interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error)
	Copy(ctx context.Context, bucket, srcKey, dstKey string) (storage.ObjectInfo, error)
	List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

// Store keeps dataset objects in one S3 bucket under an optional prefix.
type Store struct {
	client client
	bucket string
	keys   keyspace
}

func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	store := &Store{
		client: mc,
		bucket: strings.TrimSpace(cfg.Bucket),
		keys:   newKeyspace(cfg.Prefix),
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func NewWithClient(bucket, prefix string, c client) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Store{client: c, bucket: strings.TrimSpace(bucket), keys: newKeyspace(prefix)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	normalized, err := s.keys.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.Put(ctx, s.bucket, normalized, body, size, opts)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put object %q: %w", normalized, err)
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	normalized, err := s.keys.resolve(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Get(ctx, s.bucket, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object %q: %w", normalized, err)
	}
	return reader, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	normalized, err := s.keys.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.Stat(ctx, s.bucket, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return storage.ObjectInfo{}, fmt.Errorf("stat object %q: %w", normalized, err)
	}
	return info, nil
}

// Exists reports whether key is present. Missing buckets count as absent.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Copy duplicates srcKey to dstKey inside the bucket without moving the bytes
// through this process. Publishing a dataset version as latest uses it.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) (storage.ObjectInfo, error) {
	src, err := s.keys.resolve(srcKey)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	dst, err := s.keys.resolve(dstKey)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.Copy(ctx, s.bucket, src, dst)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return storage.ObjectInfo{}, fmt.Errorf("copy object %q to %q: %w", src, dst, err)
	}
	info.Key = s.keys.relative(info.Key)
	return info, nil
}

// List returns the objects under prefix, keys relative to the store prefix,
// sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	normalized, err := s.keys.resolve(prefix)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(prefix, "/") {
		normalized += "/"
	}
	objects, err := s.client.List(ctx, s.bucket, normalized)
	if err != nil {
		return nil, fmt.Errorf("list objects under %q: %w", normalized, err)
	}
	for i := range objects {
		objects[i].Key = s.keys.relative(objects[i].Key)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	normalized, err := s.keys.resolve(key)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, s.bucket, normalized); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		return fmt.Errorf("delete object %q: %w", normalized, err)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// keyspace maps dataset keys to bucket keys under a fixed prefix.
type keyspace string

func newKeyspace(prefix string) keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if cleaned := path.Clean(prefix); cleaned != "." {
		return keyspace(cleaned)
	}
	return ""
}

// resolve rejects empty keys and keys that would climb out of the prefix.
func (k keyspace) resolve(key string) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	if k == "" {
		return cleaned, nil
	}
	return string(k) + "/" + cleaned, nil
}

func (k keyspace) relative(full string) string {
	if k == "" {
		return full
	}
	return strings.TrimPrefix(full, string(k)+"/")
}

func newMinioClient(cfg config.ObjectStoreConfig) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	clientImpl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioClient{client: clientImpl}, nil
}

// parseEndpoint accepts host[:port] or a URL. An https URL forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint URL: %w", err)
	}
	switch {
	case parsed.Host == "":
		return "", false, fmt.Errorf("endpoint host is required")
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	uploadInfo, err := m.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{Key: uploadInfo.Key, Size: uploadInfo.Size, ETag: uploadInfo.ETag}, nil
}

func (m *minioClient) Copy(ctx context.Context, bucket, srcKey, dstKey string) (storage.ObjectInfo, error) {
	uploadInfo, err := m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: bucket, Object: srcKey},
	)
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{Key: uploadInfo.Key, Size: uploadInfo.Size, ETag: uploadInfo.ETag, LastModified: uploadInfo.LastModified}, nil
}

func (m *minioClient) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, mapMinioErr(obj.Err)
		}
		out = append(out, storage.ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	return out, nil
}

func (m *minioClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapMinioErr(err)
	}
	return obj, nil
}

func (m *minioClient) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	obj, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified}, nil
}

func (m *minioClient) Delete(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioErr(err)
	}
	return nil
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapMinioErr(err)
	}
	return exists, nil
}

func (m *minioClient) CreateBucket(ctx context.Context, bucket, region string) error {
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return mapMinioErr(err)
	}
	return nil
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, err.Error())
	}
	return err
}
