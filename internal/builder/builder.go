package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/park285/checkora/internal/archive"
	"github.com/park285/checkora/internal/config"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/httpapi"
	"github.com/park285/checkora/internal/msgcat"
	"github.com/park285/checkora/internal/render"
	"github.com/park285/checkora/internal/service/play"
	"github.com/park285/checkora/internal/session"
)

const connectTimeout = 5 * time.Second

type Deps struct {
	Service    *play.Service
	HTTP       *httpapi.Server
	Engine     engine.Client
	EngineName string
	Store      session.Store
	Archive    archive.Repository
	Catalog    *msgcat.Catalog

	closers []func() error
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (deps *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Deps{}
	defer func() {
		if err != nil {
			if cerr := d.Close(); cerr != nil {
				err = multierror.Append(err, cerr)
			}
		}
	}()

	d.Engine, d.EngineName, err = newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Sessions: Redis when configured, process memory otherwise.
	if cfg.RedisURL != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		rdb, rerr := session.OpenRedis(cctx, cfg.RedisURL)
		cancel()
		if rerr != nil {
			return nil, fmt.Errorf("init session store: %w", rerr)
		}
		store := session.NewRedisStore(rdb, cfg.SessionTTL())
		d.Store = store
		d.closers = append(d.closers, store.Close)
	} else {
		logger.Warn("session_store_in_memory", zap.String("reason", "REDIS_URL not set"))
		d.Store = session.NewMemoryStore(cfg.SessionTTL())
	}

	// Archive: Postgres when configured.
	if cfg.DatabaseURL != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		db, derr := archive.OpenPostgres(cctx, cfg.DatabaseURL, archive.PoolConfig{})
		if derr == nil {
			d.closers = append(d.closers, db.Close)
			derr = archive.EnsureSchema(cctx, db)
		}
		cancel()
		if derr != nil {
			return nil, fmt.Errorf("init game archive: %w", derr)
		}
		d.Archive = archive.NewRepository(db)
	} else {
		logger.Warn("game_archive_in_memory", zap.String("reason", "DATABASE_URL not set"))
		d.Archive = archive.NewMemoryRepository()
	}

	d.Catalog, err = msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	d.Service, err = play.NewService(d.Engine, d.Store, d.Archive, render.NewPNGRenderer(), d.Catalog, play.Config{
		StartingSeconds:   cfg.ClockStartSec,
		PersistQueryCache: cfg.PersistQueryCache,
		HistoryLimit:      cfg.HistoryLimit,
	}, logger)
	if err != nil {
		return nil, err
	}

	d.HTTP = httpapi.New(d.Service, httpapi.Config{
		SessionCookie:  cfg.SessionCookie,
		SessionTTL:     cfg.SessionTTL(),
		RequestTimeout: cfg.EngineTimeout() * 3,
		EngineName:     d.EngineName,
	}, logger)

	logger.Info("checkora_ready",
		zap.String("engine", d.EngineName),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
	)
	return d, nil
}

func newEngine(cfg *config.AppConfig, logger *zap.Logger) (engine.Client, string, error) {
	switch strings.ToLower(cfg.EngineMode) {
	case config.EngineModeProcess:
		proc, err := engine.NewProcess(engine.ProcessConfig{
			Path:     cfg.EnginePath,
			Timeout:  cfg.EngineTimeout(),
			MaxProcs: cfg.EngineMaxProcs,
			Logger:   logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("init engine: %w", err)
		}
		return proc, config.EngineModeProcess, nil
	case config.EngineModeLibrary:
		return engine.NewLibrary(logger), config.EngineModeLibrary, nil
	default:
		return nil, "", fmt.Errorf("unsupported engine mode %q", cfg.EngineMode)
	}
}

// Close releases every opened backend and reports all failures together.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var result *multierror.Error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	d.closers = nil
	return result.ErrorOrNil()
}
