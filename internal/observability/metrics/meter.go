// Copyright 2026 The OpenTrusty Authors
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config holds metrics configuration
type Config struct {
	Enabled        bool
	Insecure       bool
	ExportInterval time.Duration
	Resource       *resource.Resource
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

// New creates a meter. When metrics are disabled every instrument is a no-op.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: noop.NewMeterProvider().Meter(serviceName),
		}, nil
	}

	var opts []otlpmetrichttp.Option
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	}
	if cfg.Resource != nil {
		providerOpts = append(providerOpts, sdkmetric.WithResource(cfg.Resource))
	}
	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)

	return &Meter{
		meter:    provider.Meter(serviceName),
		provider: provider,
	}, nil
}

// NewWithProvider builds a Meter on an existing provider (tests use a manual reader).
func NewWithProvider(provider metric.MeterProvider, serviceName string) *Meter {
	return &Meter{meter: provider.Meter(serviceName)}
}

// Shutdown flushes and stops the exporter.
func (m *Meter) Shutdown(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Shutdown(ctx)
	}
	return nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Instruments groups the counters recorded by the request pipeline.
type Instruments struct {
	TenantLookups  metric.Int64Counter
	TenantMismatch metric.Int64Counter
	AuthFailures   metric.Int64Counter
}

// NewInstruments registers the pipeline counters on m.
func (m *Meter) NewInstruments() (*Instruments, error) {
	lookups, err := m.CreateCounter("tenant.directory.lookups", "Store lookups by slug, by result")
	if err != nil {
		return nil, err
	}
	mismatch, err := m.CreateCounter("auth.tenant_mismatch", "Valid tokens presented on another store's host")
	if err != nil {
		return nil, err
	}
	failures, err := m.CreateCounter("auth.failures", "Rejected authentication attempts, by reason")
	if err != nil {
		return nil, err
	}
	return &Instruments{
		TenantLookups:  lookups,
		TenantMismatch: mismatch,
		AuthFailures:   failures,
	}, nil
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	m := noop.NewMeterProvider().Meter("noop")
	lookups, _ := m.Int64Counter("tenant.directory.lookups")
	mismatch, _ := m.Int64Counter("auth.tenant_mismatch")
	failures, _ := m.Int64Counter("auth.failures")
	return &Instruments{
		TenantLookups:  lookups,
		TenantMismatch: mismatch,
		AuthFailures:   failures,
	}
}
