package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/searchsync/internal/backend/bleveidx"
	"github.com/kailas-cloud/searchsync/internal/backend/redisearch"
	"github.com/kailas-cloud/searchsync/internal/backend/sonicidx"
	"github.com/kailas-cloud/searchsync/internal/catalog"
	"github.com/kailas-cloud/searchsync/internal/config"
	dbredis "github.com/kailas-cloud/searchsync/internal/db/redis"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	logpkg "github.com/kailas-cloud/searchsync/internal/logger"
	"github.com/kailas-cloud/searchsync/internal/metrics"
	"github.com/kailas-cloud/searchsync/internal/usecase/health"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
	"github.com/kailas-cloud/searchsync/internal/version"
)

// app is the composition root shared by all commands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *gorm.DB
	reg      *index.Registry
	backends *indexing.Backends
	closers  []func() error
}

// newApp loads configuration and opens the database. Backends are opened
// separately by commands that need them.
func newApp() (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if options.Config != "" {
		cfg, err = config.LoadFile(options.Config)
	} else {
		cfg, err = config.Load(options.Env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if options.LogLevel != "" {
		level = options.LogLevel
	}
	logger, err := logpkg.NewLogger(options.Env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting searchsync",
		zap.String("build", version.String()),
		zap.String("env", options.Env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("backends", len(cfg.Search.Backends)),
	)

	db, err := catalog.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	reg := index.NewRegistry(logger.Named("registry"))
	if err := catalog.Register(reg); err != nil {
		return nil, err
	}

	// Register metrics explicitly (no init())
	metrics.RegisterIndexingMetrics()
	metrics.RegisterHTTPMetrics()

	return &app{cfg: cfg, logger: logger, db: db, reg: reg}, nil
}

// openBackends connects every configured search backend in declaration order.
func (a *app) openBackends(ctx context.Context) error {
	entries := make([]indexing.Named, 0, len(a.cfg.Search.Backends))
	for _, bc := range a.cfg.Search.Backends {
		b, closer, err := buildBackend(ctx, bc, a.reg, a.logger.With(zap.String("backend", bc.Name)))
		if err != nil {
			return fmt.Errorf("backend %s: %w", bc.Name, err)
		}
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
		entries = append(entries, indexing.Named{Name: bc.Name, Backend: b, Manual: bc.Manual})
		a.logger.Info("Search backend ready",
			zap.String("backend", bc.Name),
			zap.String("type", bc.Type),
			zap.Bool("manual", bc.Manual),
		)
	}

	backends, err := indexing.NewBackends(entries...)
	if err != nil {
		return err
	}
	a.backends = backends
	return nil
}

func buildBackend(
	ctx context.Context, bc config.BackendConfig, reg *index.Registry, logger *zap.Logger,
) (indexing.Backend, func() error, error) {
	switch bc.Type {
	case config.BackendRedis:
		store, err := dbredis.NewStore(dbredis.Config{
			Addrs:       bc.Redis.Addrs,
			Username:    bc.Redis.Username,
			Password:    bc.Redis.Password,
			DB:          bc.Redis.DB,
			ClientName:  bc.Redis.ClientName,
			DialTimeout: time.Duration(bc.Redis.DialTimeout) * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(bc.Redis.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, nil, err
		}
		closer := func() error {
			store.Close()
			return nil
		}
		return redisearch.New(store, reg, bc.IndexPrefix, logger), closer, nil

	case config.BackendBleve:
		b := bleveidx.New(bc.Bleve.Dir, bc.IndexPrefix, reg, logger)
		return b, b.Close, nil

	case config.BackendSonic:
		b, err := sonicidx.New(sonicidx.TCPDialer(bc.Sonic.Host, bc.Sonic.Port, bc.Sonic.Password), reg, bc.IndexPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend type %q", bc.Type)
	}
}

// pingers returns the backends that report reachability.
func (a *app) pingers() map[string]health.Pinger {
	out := make(map[string]health.Pinger)
	for _, nb := range a.backends.All() {
		if p, ok := nb.Backend.(indexing.Pinger); ok {
			out[nb.Name] = p
		}
	}
	return out
}

// close releases backends and the database.
func (a *app) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// dbPinger adapts gorm to health.Pinger.
type dbPinger struct {
	db *gorm.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
