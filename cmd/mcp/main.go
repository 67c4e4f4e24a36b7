package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/handwritten-notes/internal/adapters/mcp"
	"github.com/kirillkom/handwritten-notes/internal/bootstrap"
	"github.com/kirillkom/handwritten-notes/internal/config"
	"github.com/kirillkom/handwritten-notes/internal/observability/logging"
)

const serviceName = "notes-mcp"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol stream.
	logger := logging.Setup(os.Stderr, serviceName, cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		ClientName: "handwritten-notes-mcp",
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("mcp_stdio_serving", "provider", app.Vision.Name(), "version", version)
	if err := mcpadapter.NewServer(app.ProcessUC, version).ServeStdio(); err != nil {
		logger.Error("mcp_stdio_error", "error", err)
		app.Close()
		os.Exit(1)
	}
}
