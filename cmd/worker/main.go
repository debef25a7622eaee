package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kemingtech/catalog-assistant/internal/bootstrap"
	"github.com/kemingtech/catalog-assistant/internal/config"
	"github.com/kemingtech/catalog-assistant/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("worker", "error").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentStored(ctx, func(handlerCtx context.Context, sourceID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		return app.ProcessUC.ProcessBySourceID(processCtx, sourceID)
	})
	if err != nil {
		logger.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
