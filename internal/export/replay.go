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

package export

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	apitrace "go.opentelemetry.io/otel/trace"

	"github.com/tombee/strand/pkg/errors"
	"github.com/tombee/strand/pkg/trace"
)

const instrumentationName = "github.com/tombee/strand"

// Replayer converts completed trace trees into OpenTelemetry spans. The
// entity hierarchy maps directly: transaction -> root span, segment -> child
// span, call -> leaf span. Timestamps come from entity creation times, so a
// replayed trace keeps the original ordering.
type Replayer struct {
	provider *sdktrace.TracerProvider
	tracer   apitrace.Tracer
}

// NewReplayer creates a Replayer that writes through the given exporter
// synchronously.
func NewReplayer(exporter sdktrace.SpanExporter, serviceName, serviceVersion string) (*Replayer, error) {
	if exporter == nil {
		return nil, &errors.ExportError{Exporter: "replay", Message: "exporter is required"}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, &errors.ExportError{Exporter: "replay", Message: "failed to create resource", Cause: err}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(exporter),
	)

	return &Replayer{
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
	}, nil
}

// Replay exports the given transaction trees as spans.
func (r *Replayer) Replay(ctx context.Context, transactions []*trace.Transaction) error {
	for _, txn := range transactions {
		if txn == nil {
			continue
		}
		r.replayTransaction(ctx, txn)
	}

	if err := r.provider.ForceFlush(ctx); err != nil {
		return &errors.ExportError{Exporter: "replay", Message: "flush failed", Cause: err}
	}
	return nil
}

// Shutdown flushes any pending spans and releases resources.
func (r *Replayer) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *Replayer) replayTransaction(ctx context.Context, txn *trace.Transaction) {
	name := fmt.Sprintf("transaction T%d", txn.ID())
	txnCtx, span := r.tracer.Start(ctx, name,
		apitrace.WithTimestamp(txn.CreatedAt()),
		apitrace.WithAttributes(
			attribute.Int64("strand.transaction.id", int64(txn.ID())),
			attribute.String("strand.transaction.value", fmt.Sprintf("%v", txn.Value())),
		),
	)

	end := txn.CreatedAt()
	for _, seg := range txn.Segments() {
		if segEnd := r.replaySegment(txnCtx, txn, seg); segEnd.After(end) {
			end = segEnd
		}
	}

	span.End(apitrace.WithTimestamp(end))
}

func (r *Replayer) replaySegment(ctx context.Context, txn *trace.Transaction, seg *trace.Segment) time.Time {
	name := fmt.Sprintf("segment T%dS%d", txn.ID(), seg.ID())
	segCtx, span := r.tracer.Start(ctx, name,
		apitrace.WithTimestamp(seg.CreatedAt()),
		apitrace.WithAttributes(
			attribute.Int64("strand.segment.id", int64(seg.ID())),
			attribute.String("strand.segment.value", fmt.Sprintf("%v", seg.Value())),
		),
	)

	end := seg.CreatedAt()
	for _, call := range seg.Calls() {
		_, callSpan := r.tracer.Start(segCtx, call.String(),
			apitrace.WithTimestamp(call.CreatedAt()),
			apitrace.WithAttributes(
				attribute.Int64("strand.call.id", int64(call.ID())),
				attribute.String("strand.call", call.String()),
			),
		)
		callSpan.End(apitrace.WithTimestamp(call.CreatedAt()))

		if call.CreatedAt().After(end) {
			end = call.CreatedAt()
		}
	}

	span.End(apitrace.WithTimestamp(end))
	return end
}
