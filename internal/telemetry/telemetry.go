// Package telemetry sets up the OpenTelemetry meter provider. When metrics
// are disabled every instrument falls through to the no-op global provider.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const serviceName = "offsync"

type Config struct {
	Enabled        bool
	OTLPEndpoint   string
	OTLPInsecure   bool
	MetricInterval time.Duration
	ServiceName    string
}

// Provider manages the meter provider (metrics only).
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
}

// NewProvider installs an OTLP/HTTP meter provider as the global one.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = serviceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	exporter, err := otlpmetrichttp.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithView(drainDurationView()),
	)
	otel.SetMeterProvider(mp)

	return &Provider{meterProvider: mp}, nil
}

// exporterOptions leaves the endpoint to OTEL_EXPORTER_OTLP_* and the
// exporter default when cfg.OTLPEndpoint is empty.
func exporterOptions(cfg Config) []otlpmetrichttp.Option {
	var opts []otlpmetrichttp.Option
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.OTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

// Shutdown flushes pending metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter: %w", err)
	}
	return nil
}

// Meter returns a meter with the given name.
func (p *Provider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p.meterProvider == nil {
		return otel.Meter(name, opts...)
	}
	return p.meterProvider.Meter(name, opts...)
}

// Drains range from a few milliseconds for an empty queue to many seconds
// when requests time out.
func drainDurationView() sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Name: "offsync.engine.drain.duration", Kind: sdkmetric.InstrumentKindHistogram},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
		}},
	)
}
