// Copyright 2026 The Coursely Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/coursely/coursely/internal/observability/tracing"
)

// Config holds metrics configuration
type Config struct {
	Enabled        bool
	ServiceVersion string

	// Reader replaces the OTLP periodic reader. Used by tests.
	Reader sdkmetric.Reader
}

// LookupBucketsMs covers fast cache-warm lookups up to the 2s lookup timeout.
var LookupBucketsMs = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000}

// Meter is the instrument factory for the access metrics.
type Meter struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

// New builds the meter provider and installs it globally. Metrics are pushed
// over OTLP HTTP on the interval and endpoint set by the standard
// OTEL_METRIC_EXPORT_INTERVAL and OTEL_EXPORTER_OTLP_* variables. When
// disabled, the instruments come from a noop provider and record nothing.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}, nil
	}

	reader := cfg.Reader
	if reader == nil {
		exporter, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter)
	}

	res, err := tracing.NewResource(ctx, serviceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return &Meter{
		meter:    provider.Meter(serviceName),
		provider: provider,
	}, nil
}

// FromMeter wraps an existing meter, typically one bound to a test reader.
func FromMeter(m metric.Meter) *Meter {
	return &Meter{meter: m}
}

// Shutdown flushes pending metrics and stops the reader.
func (m *Meter) Shutdown(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Shutdown(ctx)
	}
	return nil
}

// CreateCounter registers a monotonically increasing counter
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	c, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return c, nil
}

// CreateHistogram registers a histogram with explicit bucket boundaries
func (m *Meter) CreateHistogram(name, description, unit string, buckets []float64) (metric.Float64Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit(unit),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := m.meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return h, nil
}
