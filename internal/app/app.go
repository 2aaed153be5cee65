package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pricewatch-bot/pricewatch/internal/bot"
	"github.com/pricewatch-bot/pricewatch/internal/config"
	"github.com/pricewatch-bot/pricewatch/internal/fetch"
	"github.com/pricewatch-bot/pricewatch/internal/monitor"
	"github.com/pricewatch-bot/pricewatch/internal/notify"
	"github.com/pricewatch-bot/pricewatch/internal/server"
	"github.com/pricewatch-bot/pricewatch/internal/store"
	"github.com/pricewatch-bot/pricewatch/internal/telemetry"
)

// App wires together the store, fetcher, monitor, Telegram front-end and the
// admin HTTP server.
type App struct {
	config    *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     store.Store
	monitor   *monitor.Monitor
	bot       *bot.Bot // nil when no Telegram token is configured
	server    *http.Server
}

func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(logger)
	if err != nil {
		return nil, err
	}

	// Use the factory to create the store backend
	factory := store.NewFactory(logger)
	st, err := factory.CreateStore(store.Config{
		Type: cfg.Store.Type,
		Path: cfg.Store.Path,
		DSN:  cfg.Store.DSN,
	})
	if err != nil {
		return nil, err
	}

	// Fetcher with retry decoration
	amazonFetcher := fetch.NewAmazonFetcher(fetch.Options{
		Timeout:           cfg.Fetch.Timeout,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	}, logger)
	fetcher := fetch.NewRetryingFetcher(amazonFetcher, fetch.RetryPolicy{
		Attempts: cfg.Fetch.MaxRetries,
		WaitMin:  cfg.Fetch.RetryWaitMin,
		WaitMax:  cfg.Fetch.RetryWaitMax,
	}, logger)

	// Telegram is optional: without a token the monitor still records
	// history, it just has nobody to tell.
	var notifier notify.Notifier = notify.NopNotifier{}
	var tgBot *bot.Bot
	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
		}
		notifier = notify.NewTelegramNotifier(api, logger)
		tgBot = bot.New(api, st, fetcher, logger)
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, notifications and bot commands are disabled")
	}

	mon, err := monitor.New(monitor.Config{
		ScanInterval:     cfg.Monitor.ScanInterval,
		MaxConcurrent:    cfg.Monitor.MaxConcurrent,
		NotifyFirstPrice: cfg.Monitor.NotifyFirstPrice,
	}, st, fetcher, notifier, tel.Meter, logger)
	if err != nil {
		return nil, err
	}

	adminServer := server.New(st, logger)
	httpServer := adminServer.CreateServer(":"+cfg.Admin.Port, tel.Handler())

	return &App{
		config:    cfg,
		logger:    logger,
		telemetry: tel,
		store:     st,
		monitor:   mon,
		bot:       tgBot,
		server:    httpServer,
	}, nil
}

// start launches the monitor, the bot and the admin server.
func (app *App) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.monitor.Run(ctx)
	}()

	if app.bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.bot.Run(ctx)
		}()
	}

	go func() {
		app.logger.Info("starting admin server", zap.String("addr", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("admin server failed", zap.Error(err))
		}
	}()
}

// stop gracefully shuts down the admin server and closes the store.
func (app *App) stop() error {
	app.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Admin.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("admin server forced to shutdown", zap.Error(err))
		firstErr = err
	}
	if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("telemetry shutdown failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := app.store.Close(); err != nil {
		app.logger.Error("failed to close store", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	app.logger.Info("shutdown complete")
	return firstErr
}

// Run starts everything and blocks until a shutdown signal arrives.
func (app *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	app.start(ctx, &wg)

	// Wait for shutdown signal
	<-ctx.Done()
	stop()

	// Let the monitor finish its in-flight pass and the bot drain
	wg.Wait()

	return app.stop()
}
