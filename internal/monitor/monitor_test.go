package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/pricewatch-bot/pricewatch/internal/notify"
	"github.com/pricewatch-bot/pricewatch/internal/store"
)

// fakeFetcher serves canned results per URL and tracks peak concurrency.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetchResult

	delay          time.Duration
	inFlight       atomic.Int32
	peakInFlight   atomic.Int32
	totalFetches   atomic.Int32
}

type fetchResult struct {
	name  string
	price string
	err   error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: make(map[string]fetchResult)}
}

func (f *fakeFetcher) set(url, name, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = fetchResult{name: name, price: price}
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = fetchResult{err: err}
}

func (f *fakeFetcher) FetchProduct(ctx context.Context, url string) (string, string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peakInFlight.Load()
		if n <= peak || f.peakInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	f.totalFetches.Add(1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	res, ok := f.results[url]
	f.mu.Unlock()
	if !ok {
		return "", "", errors.New("no canned result")
	}
	return res.name, res.price, res.err
}

// recordingNotifier collects every delivered notification.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
}

type recordedNotification struct {
	userID int64
	change notify.PriceChange
}

func (r *recordingNotifier) Notify(ctx context.Context, userID int64, change notify.PriceChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedNotification{userID: userID, change: change})
	return nil
}

func (r *recordingNotifier) all() []recordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedNotification, len(r.calls))
	copy(out, r.calls)
	return out
}

func newTestMonitor(t *testing.T, cfg Config, st store.Store, fetcher *fakeFetcher, notifier notify.Notifier) *Monitor {
	t.Helper()
	m, err := New(cfg, st, fetcher, notifier, noop.NewMeterProvider().Meter("test"), zap.NewNop())
	require.NoError(t, err)
	return m
}

// seed inserts a product whose price is already established, so later passes
// only see genuine changes.
func seedProduct(t *testing.T, st store.Store, userID int64, url, name, price string) store.Product {
	t.Helper()
	ctx := context.Background()
	p := store.Product{UserID: userID, URL: url, Name: name, Price: price}
	_, err := st.AddProduct(ctx, &p)
	require.NoError(t, err)
	require.NoError(t, st.AppendHistory(ctx, p.ID, price))
	return p
}

func TestScanAll_UnchangedPriceIsNoOp(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	p := seedProduct(t, st, 100, "https://amazon.de/dp/1", "Keyboard", "49,99 €")
	fetcher.set(p.URL, "Keyboard", "49,99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(context.Background()))

	entries, err := st.HistoryByProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no new history row for an unchanged price")
	require.Empty(t, notifier.all())
}

func TestScanAll_ChangedPriceRecordsAndNotifies(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	p := seedProduct(t, st, 100, "https://amazon.de/dp/1", "Keyboard", "49,99 €")
	fetcher.set(p.URL, "Keyboard", "39,99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(context.Background()))

	entries, err := st.HistoryByProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "39,99 €", entries[1].Price)

	products, err := st.ProductsByUser(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, "39,99 €", products[0].Price, "current price follows the last history row")

	calls := notifier.all()
	require.Len(t, calls, 1)
	require.EqualValues(t, 100, calls[0].userID)
	require.Equal(t, "39,99 €", calls[0].change.NewPrice)
	require.Equal(t, "49,99 €", calls[0].change.OldPrice)
	require.Equal(t, p.URL, calls[0].change.URL)
}

func TestScanAll_FormattingDifferenceCountsAsChange(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	p := seedProduct(t, st, 100, "https://amazon.de/dp/1", "Keyboard", "49,99 €")
	// prices are opaque strings, no numeric tolerance
	fetcher.set(p.URL, "Keyboard", "49.99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(context.Background()))

	require.Len(t, notifier.all(), 1)
}

func TestScanAll_FirstObservationSeedsBaselineAndNotifies(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	ctx := context.Background()
	p := store.Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard"}
	_, err := st.AddProduct(ctx, &p)
	require.NoError(t, err)
	fetcher.set(p.URL, "Keyboard", "19,99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(ctx))

	entries, err := st.HistoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, BaselinePrice, entries[0].Price, "baseline sentinel seeded first")
	require.Equal(t, "19,99 €", entries[1].Price)

	calls := notifier.all()
	require.Len(t, calls, 1)
	require.Equal(t, BaselinePrice, calls[0].change.OldPrice)
	require.Equal(t, "19,99 €", calls[0].change.NewPrice)
}

func TestScanAll_FirstObservationSilentWhenConfigured(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	ctx := context.Background()
	p := store.Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard"}
	_, err := st.AddProduct(ctx, &p)
	require.NoError(t, err)
	fetcher.set(p.URL, "Keyboard", "19,99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: false}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(ctx))

	entries, err := st.HistoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2, "history is still seeded and recorded")
	require.Empty(t, notifier.all(), "but the first price is silent")

	// a real change afterwards notifies as usual
	fetcher.set(p.URL, "Keyboard", "17,99 €")
	require.NoError(t, m.ScanAll(ctx))
	require.Len(t, notifier.all(), 1)
}

func TestScanAll_ConcurrencyCeiling(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	fetcher.delay = 10 * time.Millisecond
	notifier := &recordingNotifier{}

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		p := store.Product{UserID: 100, URL: fmt.Sprintf("https://amazon.de/dp/%02d", i), Name: "Item"}
		_, err := st.AddProduct(ctx, &p)
		require.NoError(t, err)
		fetcher.set(p.URL, "Item", "9,99 €")
	}

	m := newTestMonitor(t, Config{MaxConcurrent: 5, NotifyFirstPrice: false}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(ctx))

	require.EqualValues(t, 50, fetcher.totalFetches.Load(), "every product checked")
	require.LessOrEqual(t, fetcher.peakInFlight.Load(), int32(5),
		"never more than the ceiling in flight")
}

func TestScanAll_OneFailureDoesNotBlockOthers(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	broken := seedProduct(t, st, 100, "https://amazon.de/dp/broken", "Broken", "10,00 €")
	healthy := seedProduct(t, st, 100, "https://amazon.de/dp/healthy", "Healthy", "20,00 €")

	fetcher.fail(broken.URL, errors.New("connection refused"))
	fetcher.set(healthy.URL, "Healthy", "15,00 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(context.Background()))

	brokenHistory, err := st.HistoryByProduct(context.Background(), broken.ID)
	require.NoError(t, err)
	require.Len(t, brokenHistory, 1, "failed fetch writes nothing")

	healthyHistory, err := st.HistoryByProduct(context.Background(), healthy.ID)
	require.NoError(t, err)
	require.Len(t, healthyHistory, 2, "the healthy product is still updated")

	calls := notifier.all()
	require.Len(t, calls, 1)
	require.Equal(t, healthy.URL, calls[0].change.URL)
}

func TestScanAll_ConsecutiveIdenticalPassesAreIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	p := seedProduct(t, st, 100, "https://amazon.de/dp/1", "Keyboard", "49,99 €")
	fetcher.set(p.URL, "Keyboard", "39,99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)

	require.NoError(t, m.ScanAll(context.Background()))
	require.NoError(t, m.ScanAll(context.Background()))

	entries, err := st.HistoryByProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2, "the second identical pass writes nothing")
	require.Len(t, notifier.all(), 1, "and notifies nothing")
}

func TestScanAll_SentinelNameFallsBackToStoredName(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	p := seedProduct(t, st, 100, "https://amazon.de/dp/1", "Keyboard", "49,99 €")
	fetcher.set(p.URL, "name unavailable", "39,99 €")

	m := newTestMonitor(t, Config{NotifyFirstPrice: true}, st, fetcher, notifier)
	require.NoError(t, m.ScanAll(context.Background()))

	calls := notifier.all()
	require.Len(t, calls, 1)
	require.Equal(t, "Keyboard", calls[0].change.Name)
}

func TestRun_ScansImmediatelyAndStopsOnCancel(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := newFakeFetcher()
	notifier := &recordingNotifier{}

	p := seedProduct(t, st, 100, "https://amazon.de/dp/1", "Keyboard", "49,99 €")
	fetcher.set(p.URL, "Keyboard", "49,99 €")

	m := newTestMonitor(t, Config{ScanInterval: time.Hour, NotifyFirstPrice: true}, st, fetcher, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return fetcher.totalFetches.Load() == 1
	}, time.Second, 5*time.Millisecond, "first pass runs without waiting for the interval")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancellation")
	}
}

type panicFetcher struct{}

func (panicFetcher) FetchProduct(ctx context.Context, url string) (string, string, error) {
	panic("fetcher blew up")
}

func TestRunPass_ContainsPanics(t *testing.T) {
	st := store.NewInMemoryStore()
	notifier := &recordingNotifier{}

	ctx := context.Background()
	p := store.Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard"}
	_, err := st.AddProduct(ctx, &p)
	require.NoError(t, err)

	m, err := New(Config{}, st, panicFetcher{}, notifier, noop.NewMeterProvider().Meter("test"), zap.NewNop())
	require.NoError(t, err)

	require.NotPanics(t, func() {
		m.runPass(ctx)
	})
}
