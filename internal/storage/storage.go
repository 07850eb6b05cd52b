package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
	// Metadata is stored alongside the object as user metadata.
	Metadata map[string]string
}

// ObjectStore holds dataset files.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

const ParquetContentType = "application/vnd.apache.parquet"

// UploadFile puts the local parquet file at localPath under key.
func UploadFile(ctx context.Context, store ObjectStore, key, localPath string, metadata map[string]string) (ObjectInfo, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("open %q: %w", localPath, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %q: %w", localPath, err)
	}
	info, err := store.Put(ctx, key, file, stat.Size(), PutOptions{ContentType: ParquetContentType, Metadata: metadata})
	if err != nil {
		return ObjectInfo{}, err
	}
	return info, nil
}

// DownloadFile copies the object under key to localPath.
func DownloadFile(ctx context.Context, store ObjectStore, key, localPath string) error {
	reader, err := store.Get(ctx, key)
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
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %q: %w", localPath, err)
	}
	return nil
}
