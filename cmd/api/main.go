package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/handwritten-notes/internal/adapters/http"
	mcpadapter "github.com/kirillkom/handwritten-notes/internal/adapters/mcp"
	"github.com/kirillkom/handwritten-notes/internal/bootstrap"
	"github.com/kirillkom/handwritten-notes/internal/config"
	"github.com/kirillkom/handwritten-notes/internal/observability/logging"
	"github.com/kirillkom/handwritten-notes/internal/observability/metrics"
)

const serviceName = "notes-api"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stdout, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		ClientName:      "handwritten-notes-api",
		Observer:        httpMetrics,
		BreakerObserver: httpMetrics.RecordBreakerState,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	routerOptions := httpadapter.RouterOptions{
		Provider: app.Vision.Name(),
		Stats:    app.Stats,
		Metrics:  httpMetrics,
		Observer: httpMetrics,
	}
	if cfg.MCPHTTPEnabled {
		routerOptions.MCPHandler = mcpadapter.NewServer(app.ProcessUC, version).HTTPHandler()
	}
	router := httpadapter.NewRouter(cfg, app.ProcessUC, routerOptions).Handler()

	visionTimeout := time.Duration(cfg.VisionTimeoutSeconds) * time.Second
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      visionTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		logger.Info("api_listening",
			"addr", server.Addr,
			"provider", app.Vision.Name(),
			"mcp_http", cfg.MCPHTTPEnabled,
			"max_connections", cfg.APIMaxConnections,
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
