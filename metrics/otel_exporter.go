package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marcelsud/plop-reliability/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	gatherer      prometheus.Gatherer

	// OTel meters and instruments
	meter             metric.Meter
	storeEnabledGauge metric.Int64ObservableGauge
	storeHealthyGauge metric.Int64ObservableGauge
	poolConnsGauge    metric.Int64ObservableGauge
	deliveries        metric.Int64Counter
	deliveryLatency   metric.Float64Histogram
	skips             metric.Int64Counter
	rateLimit         metric.Int64Counter
}

// ExporterOption configures an OTelExporter
type ExporterOption func(*exporterConfig)

type exporterConfig struct {
	registry *prometheus.Registry
}

// WithRegistry exports into registry instead of the Prometheus default registry
func WithRegistry(registry *prometheus.Registry) ExporterOption {
	return func(c *exporterConfig) { c.registry = registry }
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector, opts ...ExporterOption) (*OTelExporter, error) {
	var cfg exporterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var promOpts []otelprom.Option
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if cfg.registry != nil {
		promOpts = append(promOpts, otelprom.WithRegisterer(cfg.registry))
		gatherer = cfg.registry
	}

	exporter, err := otelprom.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	if cfg.registry == nil {
		otel.SetMeterProvider(meterProvider)
	}

	meter := meterProvider.Meter(
		"plop-reliability",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		gatherer:      gatherer,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.storeEnabledGauge, err = oe.meter.Int64ObservableGauge(
		"store.enabled",
		metric.WithDescription("1 when the backing store is configured"),
		metric.WithInt64Callback(oe.observeStoreEnabled),
	)
	if err != nil {
		return fmt.Errorf("creating store enabled gauge: %w", err)
	}

	oe.storeHealthyGauge, err = oe.meter.Int64ObservableGauge(
		"store.healthy",
		metric.WithDescription("1 while the backing store has not failed in this process"),
		metric.WithInt64Callback(oe.observeStoreHealthy),
	)
	if err != nil {
		return fmt.Errorf("creating store healthy gauge: %w", err)
	}

	oe.poolConnsGauge, err = oe.meter.Int64ObservableGauge(
		"store.pool.connections",
		metric.WithDescription("Backing store connections by state"),
		metric.WithUnit("{connections}"),
		metric.WithInt64Callback(oe.observePool),
	)
	if err != nil {
		return fmt.Errorf("creating pool gauge: %w", err)
	}

	oe.deliveries, err = oe.meter.Int64Counter(
		"webhook.deliveries",
		metric.WithDescription("Webhook delivery attempts by terminal status"),
		metric.WithUnit("{deliveries}"),
	)
	if err != nil {
		return fmt.Errorf("creating deliveries counter: %w", err)
	}

	oe.deliveryLatency, err = oe.meter.Float64Histogram(
		"webhook.delivery.duration",
		metric.WithDescription("Outbound webhook request latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return fmt.Errorf("creating delivery latency histogram: %w", err)
	}

	oe.skips, err = oe.meter.Int64Counter(
		"webhook.skips",
		metric.WithDescription("Delivery tasks skipped without a record"),
		metric.WithUnit("{tasks}"),
	)
	if err != nil {
		return fmt.Errorf("creating skips counter: %w", err)
	}

	oe.rateLimit, err = oe.meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by outcome"),
		metric.WithUnit("{decisions}"),
	)
	if err != nil {
		return fmt.Errorf("creating rate limit counter: %w", err)
	}

	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// observeStoreEnabled is a callback that reports the enabled flag
func (oe *OTelExporter) observeStoreEnabled(ctx context.Context, observer metric.Int64Observer) error {
	observer.Observe(boolInt(oe.collector.GetStoreState(ctx).Enabled))
	return nil
}

// observeStoreHealthy is a callback that reports the healthy flag
func (oe *OTelExporter) observeStoreHealthy(ctx context.Context, observer metric.Int64Observer) error {
	observer.Observe(boolInt(oe.collector.GetStoreState(ctx).Healthy))
	return nil
}

// observePool is a callback that reports pool connections
func (oe *OTelExporter) observePool(ctx context.Context, observer metric.Int64Observer) error {
	pool, ok := oe.collector.GetPoolStats(ctx)
	if !ok {
		return nil
	}

	observer.Observe(int64(pool.TotalConns), metric.WithAttributes(attribute.String("state", "total")))
	observer.Observe(int64(pool.IdleConns), metric.WithAttributes(attribute.String("state", "idle")))
	observer.Observe(int64(pool.StaleConns), metric.WithAttributes(attribute.String("state", "stale")))

	return nil
}

// RecordDelivery implements webhook.Recorder
func (oe *OTelExporter) RecordDelivery(ctx context.Context, status webhook.Status, httpStatus int, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("webhook.status", status.String()),
		attribute.String("http.status_class", statusClass(httpStatus)),
	)
	oe.deliveries.Add(ctx, 1, attrs)
	oe.deliveryLatency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

// RecordSkip implements webhook.Recorder
func (oe *OTelExporter) RecordSkip(ctx context.Context, reason string) {
	oe.skips.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRateLimit counts one limiter decision; outcome is allowed, denied or disabled
func (oe *OTelExporter) RecordRateLimit(ctx context.Context, outcome string) {
	oe.rateLimit.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// statusClass buckets a status code as 2xx..5xx, or none without a response
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "none"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	if oe.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(oe.gatherer, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}

var _ webhook.Recorder = (*OTelExporter)(nil)
