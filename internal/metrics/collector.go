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

// Package metrics collects OpenTelemetry metrics from tracer activity and
// serves them over a Prometheus endpoint.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/strand/pkg/trace"
)

// Collector implements trace.Observer, counting entity creation and context
// transitions. Notifications arrive synchronously from the tracer, so every
// recording path is cheap: one counter add, no locks beyond the gauge.
type Collector struct {
	meter metric.Meter

	transactionsTotal metric.Int64Counter
	callsEnteredTotal metric.Int64Counter
	callsExitedTotal  metric.Int64Counter

	activeCalls   int64
	activeCallsMu sync.RWMutex
}

var _ trace.Observer = (*Collector)(nil)

// NewCollector creates a metrics collector using the given meter provider.
func NewCollector(meterProvider metric.MeterProvider) (*Collector, error) {
	meter := meterProvider.Meter("strand")

	c := &Collector{meter: meter}

	var err error

	c.transactionsTotal, err = meter.Int64Counter(
		"strand_transactions_total",
		metric.WithDescription("Total number of transactions started"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, err
	}

	c.callsEnteredTotal, err = meter.Int64Counter(
		"strand_calls_entered_total",
		metric.WithDescription("Total number of call context entries"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	c.callsExitedTotal, err = meter.Int64Counter(
		"strand_calls_exited_total",
		metric.WithDescription("Total number of call context exits"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"strand_active_calls",
		metric.WithDescription("Number of calls currently in context"),
		metric.WithUnit("{call}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			c.activeCallsMu.RLock()
			active := c.activeCalls
			c.activeCallsMu.RUnlock()
			observer.Observe(active)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// TransactionStarted records a new transaction.
func (c *Collector) TransactionStarted(tx *trace.Transaction) {
	c.transactionsTotal.Add(context.Background(), 1)
}

// CallEntered records a call entering context.
func (c *Collector) CallEntered(call *trace.Call) {
	attrs := callAttributes(call)
	c.callsEnteredTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))

	c.activeCallsMu.Lock()
	c.activeCalls++
	c.activeCallsMu.Unlock()
}

// CallExited records a call leaving context.
func (c *Collector) CallExited(call *trace.Call) {
	attrs := callAttributes(call)
	c.callsExitedTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))

	c.activeCallsMu.Lock()
	if c.activeCalls > 0 {
		c.activeCalls--
	}
	c.activeCallsMu.Unlock()
}

func callAttributes(call *trace.Call) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("transaction", int64(call.Segment().Transaction().ID())),
		attribute.Int64("segment", int64(call.Segment().ID())),
	}
}
