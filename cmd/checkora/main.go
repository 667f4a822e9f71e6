package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/checkora/internal/builder"
	appcfg "github.com/park285/checkora/internal/config"
	"github.com/park285/checkora/internal/obslog"
)

func main() {
	logger, err := obslog.InitFromEnv()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := builder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init error", zap.Error(err))
	}

	srv := &fasthttp.Server{
		Handler:            deps.HTTP.Handler(),
		Name:               "checkora",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       cfg.EngineTimeout()*3 + 5*time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: 64 << 10,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr), zap.String("engine", deps.EngineName))
		errCh <- srv.ListenAndServe(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("http_serve_failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := deps.Close(); err != nil {
		logger.Warn("close_failed", zap.Error(err))
	}
}
