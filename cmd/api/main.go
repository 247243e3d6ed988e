package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/personal-ai-assistant/internal/adapters/httpapi"
	"github.com/kirillkom/personal-ai-assistant/internal/adapters/mcpserver"
	"github.com/kirillkom/personal-ai-assistant/internal/bootstrap"
	"github.com/kirillkom/personal-ai-assistant/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router, err := httpapi.NewRouter(app.Pipeline, app.Logger, app.Metrics, "tax-case-qa")
	if err != nil {
		log.Fatalf("router error: %v", err)
	}
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.QueryDeadline + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      app.Metrics.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		app.Logger.Info("api_listening", "addr", cfg.HTTPAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	go func() {
		app.Logger.Info("metrics_listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	var mcpSSE *server.SSEServer
	if cfg.MCPEnabled {
		mcpSrv := mcpserver.New(app.Pipeline, app.Logger)
		app.Logger.Info("mcp_listening", "addr", cfg.MCPAddr)
		mcpSSE = mcpserver.ServeSSE(mcpSrv, cfg.MCPAddr)
	}

	if invalidator := app.CacheInvalidator(); invalidator != nil {
		go func() {
			if err := invalidator.SubscribeFlush(ctx, app.FlushCaches); err != nil {
				app.Logger.Error("cache_invalidate_subscribe_failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	app.Logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api_shutdown_error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("metrics_shutdown_error", "error", err)
	}
	if mcpSSE != nil {
		if err := mcpSSE.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("mcp_shutdown_error", "error", err)
		}
	}
}
