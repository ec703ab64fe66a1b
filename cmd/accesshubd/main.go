// Command accesshubd serves the accesshub session engine over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/accesshub/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting accesshubd",
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.Version),
	)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.NewApp(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
