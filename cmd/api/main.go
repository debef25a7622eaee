package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kemingtech/catalog-assistant/internal/adapters/http"
	"github.com/kemingtech/catalog-assistant/internal/bootstrap"
	"github.com/kemingtech/catalog-assistant/internal/config"
	"github.com/kemingtech/catalog-assistant/internal/observability/logging"
	"github.com/kemingtech/catalog-assistant/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("api", "error").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.IngestUC,
		app.QueryUC,
		app.Repo,
		app.Index,
		serverMetrics,
		logger,
		httpadapter.Options{
			Service:        "api",
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
		},
	).Handler()

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// streaming responses stay open well past typical request time
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", "error", err)
	}
}
