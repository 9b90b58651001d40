package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lamntk20699/nft-music-marketplace/internal/logging"
	"github.com/lamntk20699/nft-music-marketplace/internal/refresh"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found, using environment", "err", err)
	}

	cfg, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	closer, err := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		slog.Error("Failed to set up logging", "err", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig) error {
	ctx := context.Background()

	events := musicmarket.NewBroadcaster()
	sink := musicmarket.MultiSink{musicmarket.NewLoggingEventSink(slog.Default()), events}

	app, cleanup, err := cfg.BuildApp(ctx, sink)
	if err != nil {
		return err
	}
	defer cleanup()

	router, err := newRouter(cfg, app, events)
	if err != nil {
		return err
	}

	var refresher *refresh.Service
	if cfg.RefreshSchedule != "" {
		refresher = refresh.NewService(slog.Default(), app)
		if err := refresher.Schedule(cfg.RefreshSchedule); err != nil {
			return err
		}
		refresher.Start()
	}

	if _, unresolved, err := app.LoadMarket(ctx); err != nil {
		slog.Warn("Initial market load failed", "err", err)
	} else if unresolved > 0 {
		slog.Warn("Some tokens could not be resolved", "unresolved", unresolved)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Music marketplace starting", "port", cfg.Port, "env", cfg.Environment,
			"database", cfg.DatabaseType, "storage", cfg.DefaultStorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if refresher != nil {
		if err := refresher.Stop(shutdownCtx); err != nil {
			slog.Warn("Refresh job did not stop in time", "err", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server exiting")
	return nil
}
