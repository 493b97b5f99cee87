// Copyright 2025 Tom Barlow
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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns the meter provider backing a Collector and its Prometheus
// exposure.
type Provider struct {
	mp        *sdkmetric.MeterProvider
	collector *Collector
	server    *http.Server
}

// NewProvider creates a meter provider with a Prometheus exporter and a
// collector registered on it.
func NewProvider() (*Provider, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	collector, err := NewCollector(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	return &Provider{mp: mp, collector: collector}, nil
}

// Collector returns the trace observer recording into this provider.
func (p *Provider) Collector() *Collector {
	return p.collector
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
// The OpenTelemetry prometheus exporter registers with the default registry,
// so promhttp.Handler() exposes everything recorded here.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts an HTTP server exposing /metrics on addr. It returns once the
// listener is running; the server stops when Shutdown is called.
func (p *Provider) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// ErrServerClosed after Shutdown is the normal path
		_ = p.server.ListenAndServe()
	}()
}

// Shutdown stops the metrics server (if running) and the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return p.mp.Shutdown(ctx)
}
