package monitor

import "go.opentelemetry.io/otel/metric"

type metrics struct {
	passes        metric.Int64Counter
	fetchFailures metric.Int64Counter
	priceChanges  metric.Int64Counter
	inFlight      metric.Int64UpDownCounter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	passes, err := meter.Int64Counter("pricewatch_scan_passes_total",
		metric.WithDescription("Completed scan passes"))
	if err != nil {
		return nil, err
	}

	fetchFailures, err := meter.Int64Counter("pricewatch_fetch_failures_total",
		metric.WithDescription("Product fetches that exhausted all retries"))
	if err != nil {
		return nil, err
	}

	priceChanges, err := meter.Int64Counter("pricewatch_price_changes_total",
		metric.WithDescription("Detected price changes"))
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter("pricewatch_inflight_fetches",
		metric.WithDescription("Product checks currently in flight"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		passes:        passes,
		fetchFailures: fetchFailures,
		priceChanges:  priceChanges,
		inFlight:      inFlight,
	}, nil
}
