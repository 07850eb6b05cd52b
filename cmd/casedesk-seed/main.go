package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/casedesk/casedesk/internal/bootstrap"
	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/dataset"
	"github.com/casedesk/casedesk/internal/observability"
	"github.com/casedesk/casedesk/internal/schema"
	"github.com/casedesk/casedesk/internal/storage"
	s3store "github.com/casedesk/casedesk/internal/storage/s3"
)

func main() {
	os.Exit(run())
}

func run() int {
	count := flag.Int("count", 500, "number of demo cases to generate")
	seed := flag.Int64("seed", 1, "generator seed")
	out := flag.String("out", "cases.parquet", "local parquet output path")
	upload := flag.Bool("upload", false, "upload the parquet file to the object store")
	load := flag.Bool("load", false, "load the parquet file into the duckdb case store")
	list := flag.Bool("list", false, "list uploaded dataset versions and exit")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		return 1
	}
	cfg, err := config.LoadFromEnv("casedesk-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *list {
		if err := listDatasets(ctx, cfg, os.Stdout); err != nil {
			logger.Error("failed to list datasets", slog.Any("error", err))
			return 1
		}
		return 0
	}
	if *count <= 0 {
		logger.Error("count must be > 0", slog.Int("count", *count))
		return 1
	}

	records := dataset.NewGenerator(*seed).Generate(*count)
	if err := dataset.WriteParquetFile(*out, records); err != nil {
		logger.Error("failed to write dataset", slog.Any("error", err))
		return 1
	}
	logger.Info("dataset written", slog.String("path", *out), slog.Int("rows", len(records)), slog.Int64("seed", *seed))

	if *upload {
		if err := uploadDataset(ctx, cfg, logger, *out, *seed, len(records)); err != nil {
			logger.Error("failed to upload dataset", slog.Any("error", err))
			return 1
		}
	}
	if *load {
		if cfg.Store.Driver != config.StoreDriverDuckDB {
			logger.Error("load requires the duckdb store driver", slog.String("driver", cfg.Store.Driver))
			return 1
		}
		db, err := bootstrap.OpenStore(ctx, cfg)
		if err != nil {
			logger.Error("failed to open case store", slog.Any("error", err))
			return 1
		}
		defer func() { _ = db.Close() }()
		rows, err := dataset.LoadIntoStore(ctx, db, *out)
		if err != nil {
			logger.Error("failed to load dataset", slog.Any("error", err))
			return 1
		}
		logger.Info("dataset loaded", slog.String("dsn", cfg.Store.DSN), slog.Int64("rows", rows))
	}
	return 0
}

func uploadDataset(ctx context.Context, cfg config.Config, logger *slog.Logger, path string, seed int64, rows int) error {
	store, err := s3store.New(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	generatedAt := time.Now().UTC()
	versioned, err := storage.BuildDatasetPath(schema.TableName, generatedAt, seed)
	if err != nil {
		return err
	}
	latest, err := storage.LatestDatasetPath(schema.TableName)
	if err != nil {
		return err
	}
	replaced, err := store.Exists(ctx, latest)
	if err != nil {
		return err
	}

	info, err := storage.UploadFile(ctx, store, versioned, path, map[string]string{
		"seed":         strconv.FormatInt(seed, 10),
		"rows":         strconv.Itoa(rows),
		"generated-at": generatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	logger.Info("dataset uploaded", slog.String("bucket", cfg.ObjectStore.Bucket), slog.String("key", info.Key), slog.Int64("size", info.Size))

	if _, err := store.Copy(ctx, versioned, latest); err != nil {
		return err
	}
	logger.Info("dataset published", slog.String("key", latest), slog.Bool("replaced", replaced))
	logger.Info("set CASEDESK_DATASET_OBJECT to serve it", slog.String("value", latest))
	return nil
}

func listDatasets(ctx context.Context, cfg config.Config, out io.Writer) error {
	store, err := s3store.New(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	objects, err := store.List(ctx, "datasets/"+schema.TableName+"/")
	if err != nil {
		return err
	}
	for _, object := range objects {
		_, _ = fmt.Fprintf(out, "%s\t%d\t%s\n", object.Key, object.Size, object.LastModified.Format(time.RFC3339))
	}
	return nil
}
