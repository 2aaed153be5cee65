package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/pricewatch-bot/pricewatch/internal/fetch"
	"github.com/pricewatch-bot/pricewatch/internal/notify"
	"github.com/pricewatch-bot/pricewatch/internal/store"
)

// BaselinePrice seeds the history of a product that has never been scanned,
// so the first real observation always has something to compare against.
const BaselinePrice = "999,99 €"

// Config controls the scan loop.
type Config struct {
	ScanInterval     time.Duration
	MaxConcurrent    int
	NotifyFirstPrice bool
}

// Monitor periodically re-checks every tracked product, records price history
// and notifies owners about changes. Passes never overlap; within a pass at
// most MaxConcurrent product checks are in flight.
type Monitor struct {
	cfg      Config
	store    store.Store
	fetcher  fetch.Fetcher
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *metrics
}

func New(cfg Config, st store.Store, fetcher fetch.Fetcher, notifier notify.Notifier, meter metric.Meter, logger *zap.Logger) (*Monitor, error) {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Hour
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}

	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger.Named("monitor"),
		metrics:  m,
	}, nil
}

// Run blocks until ctx is cancelled, scanning once immediately and then once
// per interval. A pass is always awaited before the timer resumes.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started",
		zap.Duration("interval", m.cfg.ScanInterval),
		zap.Int("max_concurrent", m.cfg.MaxConcurrent))

	m.runPass(ctx)

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-ticker.C:
			m.runPass(ctx)
		}
	}
}

// runPass guards ScanAll so an unexpected failure never kills the loop.
func (m *Monitor) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("scan pass panicked", zap.Any("panic", r))
		}
	}()

	if err := m.ScanAll(ctx); err != nil {
		m.logger.Error("scan pass failed", zap.Error(err))
	}
}

// ScanAll runs one scan pass over a snapshot of all tracked products.
// Products added mid-pass are picked up on the next pass.
func (m *Monitor) ScanAll(ctx context.Context) error {
	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	m.metrics.passes.Add(ctx, 1)
	m.logger.Info("scan pass started", zap.Int("products", len(products)))

	var wg sync.WaitGroup

	// Limit concurrent checks to keep pressure on the site bounded
	semaphore := make(chan struct{}, m.cfg.MaxConcurrent)

	for _, product := range products {
		wg.Add(1)
		go func(p store.Product) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("product check panicked",
						zap.Int64("product_id", p.ID), zap.Any("panic", r))
				}
			}()

			// Acquire semaphore to limit concurrency
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			m.checkProduct(ctx, p)
		}(product)
	}

	wg.Wait()
	m.logger.Info("scan pass finished", zap.Int("products", len(products)))
	return nil
}

// checkProduct runs fetch -> compare -> persist -> notify for one product.
// Failures are logged and skipped; the product is retried on the next pass.
func (m *Monitor) checkProduct(ctx context.Context, p store.Product) {
	m.metrics.inFlight.Add(ctx, 1)
	defer m.metrics.inFlight.Add(ctx, -1)

	name, price, err := m.fetcher.FetchProduct(ctx, p.URL)
	if err != nil {
		m.metrics.fetchFailures.Add(ctx, 1)
		m.logger.Warn("fetch failed, product skipped until next pass",
			zap.Int64("product_id", p.ID),
			zap.String("url", p.URL),
			zap.Error(err))
		return
	}

	lastPrice, found, err := m.store.LastPrice(ctx, p.ID)
	if err != nil {
		m.logger.Error("failed to read last price",
			zap.Int64("product_id", p.ID), zap.Error(err))
		return
	}

	firstObservation := !found
	if firstObservation {
		lastPrice = BaselinePrice
		if err := m.store.AppendHistory(ctx, p.ID, lastPrice); err != nil {
			m.logger.Error("failed to seed baseline price",
				zap.Int64("product_id", p.ID), zap.Error(err))
			return
		}
	}

	if price == lastPrice {
		return
	}

	if err := m.store.AppendHistory(ctx, p.ID, price); err != nil {
		m.logger.Error("failed to append history",
			zap.Int64("product_id", p.ID), zap.Error(err))
		return
	}
	if err := m.store.SetCurrentPrice(ctx, p.ID, price); err != nil {
		m.logger.Error("failed to update current price",
			zap.Int64("product_id", p.ID), zap.Error(err))
		return
	}

	m.metrics.priceChanges.Add(ctx, 1)
	m.logger.Info("price change recorded",
		zap.Int64("product_id", p.ID),
		zap.String("old", lastPrice),
		zap.String("new", price))

	if firstObservation && !m.cfg.NotifyFirstPrice {
		return
	}

	// prefer the stored name when the page lost its title markup
	if name == fetch.NameUnavailable && p.Name != "" {
		name = p.Name
	}

	change := notify.PriceChange{
		Name:     name,
		URL:      p.URL,
		NewPrice: price,
		OldPrice: lastPrice,
	}
	if err := m.notifier.Notify(ctx, p.UserID, change); err != nil {
		m.logger.Warn("notification delivery failed",
			zap.Int64("user_id", p.UserID), zap.Error(err))
	}
}
