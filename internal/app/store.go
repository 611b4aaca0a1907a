package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/invoicer/internal/invoices"
	"github.com/odyssey-erp/invoicer/internal/platform/db"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
	"github.com/odyssey-erp/invoicer/internal/platform/rdb"
)

// RedisOptions returns the connection settings shared by the store and asynq.
func (c *Config) RedisOptions() rdb.Options {
	return rdb.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// OpenBackend connects the configured key-value backend. The returned close
// func releases its connections.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (kv.Backend, func(), error) {
	switch cfg.KVDriver {
	case DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return kv.NewMemoryStore(), func() {}, nil
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		store := kv.NewPostgresStore(pool, cfg.KVTable, cfg.KVNamespace)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("postgres store ready", slog.String("table", cfg.KVTable))
		return store, pool.Close, nil
	case DriverRedis:
		client, err := rdb.New(ctx, cfg.RedisOptions())
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis store ready", slog.String("addr", cfg.RedisAddr), slog.String("namespace", cfg.KVNamespace))
		return kv.NewRedisStore(client, cfg.KVNamespace), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown KV_DRIVER %q", cfg.KVDriver)
	}
}

// NewInvoiceService builds the invoice service over backend.
func NewInvoiceService(cfg *Config, backend kv.Backend, logger *slog.Logger, recorder invoices.Recorder) *invoices.Service {
	repo := invoices.NewRepository(backend, invoices.RepositoryOptions{
		Sequencer: backend,
		Numbering: cfg.Numbering(),
	})
	return invoices.NewService(repo, logger, recorder)
}
