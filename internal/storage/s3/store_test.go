package s3

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "casedesk/prod", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	_, err = store.Put(context.Background(), "/datasets/cases/latest.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastPutBucket)
	}
	if fake.lastPutKey != "casedesk/prod/datasets/cases/latest.parquet" {
		t.Fatalf("key = %q", fake.lastPutKey)
	}
}

func TestPutPassesMetadata(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	opts := storage.PutOptions{ContentType: storage.ParquetContentType, Metadata: map[string]string{"rows": "500"}}
	if _, err := store.Put(context.Background(), "datasets/cases/latest.parquet", bytes.NewBufferString("abc"), 3, opts); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutOptions.ContentType != storage.ParquetContentType || fake.lastPutOptions.Metadata["rows"] != "500" {
		t.Fatalf("options = %+v", fake.lastPutOptions)
	}
}

func TestCopyNormalizesBothKeys(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "casedesk", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	info, err := store.Copy(context.Background(), "/datasets/cases/date=2026-01-02/cases-1-101010.parquet", "datasets/cases/latest.parquet")
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	want := [2]string{"casedesk/datasets/cases/date=2026-01-02/cases-1-101010.parquet", "casedesk/datasets/cases/latest.parquet"}
	if fake.lastCopy != want {
		t.Fatalf("copy = %v, want %v", fake.lastCopy, want)
	}
	if info.Key != "datasets/cases/latest.parquet" {
		t.Fatalf("info.Key = %q", info.Key)
	}

	fake.copyErr = storage.ErrObjectNotFound
	if _, err := store.Copy(context.Background(), "missing", "dst"); err != storage.ErrObjectNotFound {
		t.Fatalf("Copy() error = %v, want ErrObjectNotFound", err)
	}
}

func TestListStripsPrefixAndSorts(t *testing.T) {
	fake := &fakeClient{listed: []storage.ObjectInfo{
		{Key: "casedesk/datasets/cases/latest.parquet"},
		{Key: "casedesk/datasets/cases/date=2026-01-02/cases-1-101010.parquet"},
	}}
	store, err := NewWithClient("bucket-a", "casedesk", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	objects, err := store.List(context.Background(), "datasets/cases/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.lastListPrefix != "casedesk/datasets/cases/" {
		t.Fatalf("prefix = %q", fake.lastListPrefix)
	}
	if len(objects) != 2 || objects[0].Key != "datasets/cases/date=2026-01-02/cases-1-101010.parquet" || objects[1].Key != "datasets/cases/latest.parquet" {
		t.Fatalf("objects = %+v", objects)
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	_, err = store.Put(context.Background(), "../secrets.txt", bytes.NewBufferString("x"), 1, storage.PutOptions{})
	if err == nil {
		t.Fatal("expected path traversal validation error")
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	fake := &fakeClient{deleteErr: storage.ErrObjectNotFound}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.Delete(context.Background(), "datasets/cases/missing.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestExistsMapsNotFound(t *testing.T) {
	fake := &fakeClient{statErr: storage.ErrObjectNotFound}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	exists, err := store.Exists(context.Background(), "datasets/cases/latest.parquet")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Fatal("Exists() = true, want false")
	}

	fake.statErr = nil
	exists, err = store.Exists(context.Background(), "datasets/cases/latest.parquet")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v", exists, err)
	}
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	if _, err := New(context.Background(), config.ObjectStoreConfig{Bucket: "b"}); err == nil {
		t.Fatal("expected endpoint error")
	}
	if _, err := New(context.Background(), config.ObjectStoreConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected bucket error")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		useSSL   bool
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{raw: "https://minio.example.com", endpoint: "minio.example.com", secure: true},
		{raw: "http://localhost:9000", useSSL: true, endpoint: "localhost:9000", secure: true},
		{raw: "localhost:9000", endpoint: "localhost:9000"},
		{raw: "ftp://minio.example.com", wantErr: true},
		{raw: "https://", wantErr: true},
		{raw: "  ", wantErr: true},
	}
	for _, tc := range tests {
		endpoint, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil || endpoint != tc.endpoint || secure != tc.secure {
			t.Fatalf("parseEndpoint(%q) = %q, %v, %v", tc.raw, endpoint, secure, err)
		}
	}
}

func TestKeyspaceResolve(t *testing.T) {
	keys := newKeyspace(" /casedesk/prod/ ")
	tests := map[string]string{
		"datasets/cases/latest.parquet":  "casedesk/prod/datasets/cases/latest.parquet",
		"//datasets/./cases/x.parquet":   "casedesk/prod/datasets/cases/x.parquet",
		"datasets/../datasets/a.parquet": "casedesk/prod/datasets/a.parquet",
	}
	for in, want := range tests {
		got, err := keys.resolve(in)
		if err != nil || got != want {
			t.Fatalf("resolve(%q) = %q, %v; want %q", in, got, err, want)
		}
		if keys.relative(got) != path.Clean(strings.TrimLeft(in, "/")) {
			t.Fatalf("relative(%q) = %q", got, keys.relative(got))
		}
	}
	for _, bad := range []string{"", "/", "..", "../x", "a/../../x"} {
		if _, err := keys.resolve(bad); err == nil {
			t.Fatalf("resolve(%q) expected error", bad)
		}
	}
	if newKeyspace("/") != "" {
		t.Fatal("root prefix should collapse to empty keyspace")
	}
}

type fakeClient struct {
	lastPutBucket      string
	lastPutKey         string
	bucketExists       bool
	createBucketCalled bool
	deleteErr          error
	statErr            error
	lastPutOptions     storage.PutOptions
	lastCopy           [2]string
	copyErr            error
	listed             []storage.ObjectInfo
	lastListPrefix     string
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.lastPutBucket = bucket
	f.lastPutKey = key
	f.lastPutOptions = opts
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) Copy(_ context.Context, _, srcKey, dstKey string) (storage.ObjectInfo, error) {
	if f.copyErr != nil {
		return storage.ObjectInfo{}, f.copyErr
	}
	f.lastCopy = [2]string{srcKey, dstKey}
	return storage.ObjectInfo{Key: dstKey, Size: 10}, nil
}

func (f *fakeClient) List(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.lastListPrefix = prefix
	return append([]storage.ObjectInfo(nil), f.listed...), nil
}

func (f *fakeClient) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
