package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/lamntk20699/nft-music-marketplace/internal/logging"
	"github.com/lamntk20699/nft-music-marketplace/internal/mcp"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/config"
	"github.com/mark3labs/mcp-go/server"
)

// Config holds the MCP transport settings. The marketplace itself is configured
// through the same variables as marketd.
type Config struct {
	Host      string `env:"MCP_HOST" env-default:"localhost"`
	Port      uint16 `env:"MCP_PORT" env-default:"8000"`
	BaseUrl   string `env:"MCP_BASE_URL" env-default:"http://localhost:8000"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

func main() {
	var mode = flag.String("mode", "stdio", "Server mode: 'stdio', 'sse', or 'http'")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found or error loading it, using default values", "err", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	// stdout carries the stdio transport, so logs go to stderr
	if _, err := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Stdout: os.Stderr}); err != nil {
		slog.Error("Failed to set up logging", "err", err)
		os.Exit(1)
	}

	marketConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load marketplace configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, cleanup, err := marketConfig.BuildApp(ctx, musicmarket.NewLoggingEventSink(slog.Default()))
	if err != nil {
		slog.Error("Failed to create marketplace", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	s := server.NewMCPServer(
		"Music Marketplace Mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	handler := mcp.NewMarketHandler(app)
	handler.RegisterTools(s)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	switch *mode {
	case "sse":
		sseServer := server.NewSSEServer(s, server.WithBaseURL(cfg.BaseUrl))
		slog.Info("Starting SSE server", "base url", cfg.BaseUrl)
		if err := sseServer.Start(addr); err != nil {
			slog.Error("Failed to start SSE server", "err", err)
			os.Exit(-1)
		}
	case "http":
		httpServer := server.NewStreamableHTTPServer(s)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil {
			slog.Error("Server error", "err", err)
			os.Exit(-1)
		}
	default:
		slog.Info("Starting in stdio mode")
		if err := server.ServeStdio(s); err != nil {
			slog.Error("Failed to start stdio server", "err", err)
			os.Exit(-1)
		}
	}
}
