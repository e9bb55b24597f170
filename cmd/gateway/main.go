// Package main is the entry point for the taskhive websocket gateway.
// The gateway subscribes to the task event bus and fans events out to
// authenticated websocket clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/taskhive/taskhive-api/internal/config"
	"github.com/taskhive/taskhive-api/internal/gateway"
	"github.com/taskhive/taskhive-api/internal/platform/logger"
	redisPlatform "github.com/taskhive/taskhive-api/internal/platform/redis"
	"github.com/taskhive/taskhive-api/internal/service/auth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("gateway configuration loaded",
		"port", cfg.Gateway.Port,
		"send_queue_size", cfg.Gateway.SendQueueSize)

	client, err := redisPlatform.NewClient(cfg.Cache.RedisURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("error closing redis client", "error", err)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	tokens, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	bus := redisPlatform.NewBus(client, cfg.Cache.OpTimeout())

	srv, err := gateway.NewServer(bus, tokens, cfg.Gateway.SendQueueSize, log)
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	defer srv.Stop()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/ws", srv)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", "error", err)
		}
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: r,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting gateway", "port", cfg.Gateway.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("gateway server failed", "error", err)
			cancel()
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown signal received")
	case <-ctx.Done():
		log.Info("gateway context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown failed: %w", err)
	}

	log.Info("gateway shutdown completed")
	return nil
}
