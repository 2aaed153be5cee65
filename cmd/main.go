package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/pricewatch-bot/pricewatch/internal/app"
	"github.com/pricewatch-bot/pricewatch/internal/config"
	"github.com/pricewatch-bot/pricewatch/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	// Create application logger with proper configuration
	appLogger, err := logger.NewLogger(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	// Log build info
	appLogger.Info("Build info",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := application.Run(); err != nil {
		appLogger.Fatal("application exited with error", zap.Error(err))
	}
}
