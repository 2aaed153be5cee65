package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Telemetry bundles the metric pipeline: an OpenTelemetry meter whose data is
// scraped through the Prometheus handler.
type Telemetry struct {
	Meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	logger.Info("telemetry initialized")

	return &Telemetry{
		Meter:    provider.Meter("pricewatch"),
		provider: provider,
	}, nil
}

// Handler serves the scrape endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
