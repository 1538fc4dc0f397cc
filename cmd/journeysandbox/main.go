package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jask/idojourney/internal/config"
	"github.com/jask/idojourney/internal/logging"
	"github.com/jask/idojourney/internal/sandbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewConsole(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	script, err := sandbox.LoadScript(cfg.Sandbox.Script)
	if err != nil {
		logger.Fatal("load script", zap.String("path", cfg.Sandbox.Script), zap.Error(err))
	}

	var store sandbox.Store = sandbox.NewMemoryStore()
	if cfg.Sandbox.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Sandbox.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis", zap.String("addr", cfg.Sandbox.RedisAddr), zap.Error(err))
		}
		store = sandbox.NewRedisStore(rdb)
	}

	tokens, err := sandbox.NewTokenIssuer(cfg.Sandbox.TokenSecret, cfg.Sandbox.TokenTTL)
	if err != nil {
		logger.Fatal("tokens", zap.Error(err))
	}
	if cfg.Sandbox.TokenSecret == "" {
		logger.Warn("no sandbox.token_secret configured, state tokens will not survive a restart")
	}

	engine := sandbox.NewEngine(script, store, tokens, cfg.Sandbox.TokenTTL, logger)
	srv := &http.Server{
		Addr:              cfg.Sandbox.Addr,
		Handler:           sandbox.NewServer(engine, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("journey sandbox listening", zap.String("addr", cfg.Sandbox.Addr), zap.Int("journeys", len(script.Journeys)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
