// Package bootstrap wires the relay and conversation stores from a Config.
// Every front-end binary builds its collaborators here.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casedesk/casedesk/internal/agent"
	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/conversation"
	historypostgres "github.com/casedesk/casedesk/internal/conversation/postgres"
	"github.com/casedesk/casedesk/internal/nl2sql"
	"github.com/casedesk/casedesk/internal/query/sqlengine"
	"github.com/casedesk/casedesk/internal/relay"
	"github.com/casedesk/casedesk/internal/schema"
	"github.com/casedesk/casedesk/internal/sqldb"
	s3store "github.com/casedesk/casedesk/internal/storage/s3"
)

// Runtime owns the case store handle and the relay built on top of it.
type Runtime struct {
	Relay  *relay.Relay
	Engine *sqlengine.Engine

	closers []func() error
}

func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.AI.RequireAPIKey(); err != nil {
		return nil, err
	}
	if cfg.Store.DatasetObject != "" && cfg.Store.Driver != config.StoreDriverDuckDB {
		return nil, fmt.Errorf("CASEDESK_DATASET_OBJECT requires the %s store driver", config.StoreDriverDuckDB)
	}

	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{closers: []func() error{db.Close}}

	engine := sqlengine.NewEngine(db)
	rt.Engine = engine
	rt.closers = append(rt.closers, engine.Close)

	if key := strings.TrimSpace(cfg.Store.DatasetObject); key != "" {
		objectStore, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		if err := engine.AttachParquet(ctx, objectStore, key, schema.TableName); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("attach dataset: %w", err)
		}
		logger.Info("dataset attached", slog.String("object", key), slog.String("view", schema.TableName))
	}

	llm, err := nl2sql.NewOpenAIClient(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("initialize model client: %w", err)
	}
	sqlAgent, err := agent.New(engine, llm, llm, agent.Config{
		RowLimit:   cfg.Agent.RowLimit,
		SampleRows: cfg.Agent.SampleRows,
	}, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Relay, err = relay.New(sqlAgent)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func OpenStore(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open case store: %w", err)
	}
	return db, nil
}

// Histories hands out one History per session id.
type Histories struct {
	forSession  func(sessionID string) conversation.History
	healthCheck func(ctx context.Context) error
	close       func() error
}

func NewHistories(ctx context.Context, cfg config.Config) (*Histories, error) {
	switch cfg.History.Driver {
	case config.HistoryDriverMemory:
		return &Histories{
			forSession: func(string) conversation.History { return conversation.NewMemory() },
		}, nil
	case config.HistoryDriverPostgres:
		db, err := sqldb.Open(ctx, sqldb.Config{
			Driver:          config.StoreDriverPostgres,
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open history db: %w", err)
		}
		store := historypostgres.NewStore(db)
		return &Histories{
			forSession:  store.ForSession,
			healthCheck: store.HealthCheck,
			close:       db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.History.Driver)
	}
}

func (h *Histories) ForSession(sessionID string) conversation.History {
	return h.forSession(sessionID)
}

func (h *Histories) HealthCheck(ctx context.Context) error {
	if h.healthCheck == nil {
		return nil
	}
	return h.healthCheck(ctx)
}

func (h *Histories) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}
