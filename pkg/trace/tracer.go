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

package trace

import (
	"log/slog"
	"sync/atomic"

	"github.com/tombee/strand/pkg/errors"
)

// Handler is the signature shared by every proxied function. Arguments and
// result are opaque to the tracer; errors returned by the handler propagate to
// whatever invoked the proxy, unchanged in identity.
type Handler func(args ...any) (any, error)

// RequestValue is the opaque payload a Producer creates for each new
// transaction. It must be able to seed the transaction's root segment.
type RequestValue interface {
	// RootSegmentValue returns the value used for the transaction's root
	// segment.
	RootSegmentValue() any
}

// Producer creates request values for new transactions. It is the external
// collaborator that decides what a transaction actually represents (for
// example an HTTP request). It must not fail silently: returning a nil value
// without an error is treated as a construction error all the same.
type Producer interface {
	Produce() (RequestValue, error)
}

// ProducerFunc adapts a plain function to the Producer interface.
type ProducerFunc func() (RequestValue, error)

// Produce implements Producer.
func (f ProducerFunc) Produce() (RequestValue, error) { return f() }

// Observer receives notifications about tracer activity. It feeds nothing back
// into control flow; implementations typically count entities and context
// transitions for metrics.
type Observer interface {
	TransactionStarted(tx *Transaction)
	CallEntered(call *Call)
	CallExited(call *Call)
}

// Wrapping labels. Each proxy kind records two independent boundary layers so
// the logs can tell "the proxy was built/invoked" apart from "a context was
// actually entered".
const (
	labelTransactionOuter = "T outer"
	labelTransactionInner = "T inner"
	labelSegmentOuter     = "S outer"
	labelSegmentInner     = "S inner"
	labelCallbackOuter    = "C outer"
	labelCallbackInner    = "C inner"
)

// Tracer orchestrates context propagation. It creates entities, drives the
// Context through matched Enter/Exit pairs around synchronous handler
// invocations, and reports every step to the Recorder.
//
// The Tracer assumes the single-threaded cooperative execution model: chains
// overlap by temporal interleaving, never by parallel execution, and the
// Context is expected to provide re-entrant-safe save/restore semantics.
type Tracer struct {
	producer Producer
	context  Context
	recorder *Recorder
	logger   *slog.Logger
	observer Observer

	lastTransactionID atomic.Uint64
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithRecorder sets the Recorder observing this tracer. By default every
// Tracer gets its own empty Recorder; pass one explicitly to share it or to
// inspect it after the fact.
func WithRecorder(r *Recorder) Option {
	return func(t *Tracer) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithLogger sets the structured logger. Tracer activity is logged at debug
// level; the default logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithObserver sets an Observer notified of entity creation and context
// transitions.
func WithObserver(o Observer) Option {
	return func(t *Tracer) {
		t.observer = o
	}
}

// New creates a Tracer. The request-value producer and the Context are both
// required; construction fails immediately without them.
func New(producer Producer, context Context, opts ...Option) (*Tracer, error) {
	if producer == nil {
		return nil, &errors.ConstructionError{Entity: "tracer", Argument: "producer"}
	}
	if context == nil {
		return nil, &errors.ConstructionError{Entity: "tracer", Argument: "context"}
	}

	t := &Tracer{
		producer: producer,
		context:  context,
		recorder: NewRecorder(),
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Recorder returns the Recorder observing this tracer.
func (t *Tracer) Recorder() *Recorder {
	return t.recorder
}

// TransactionProxy wraps a handler that originates a new request. Each
// invocation of the returned handler creates a brand-new Transaction through
// the producer, a root Segment under it seeded with the request value's root
// segment value, and a Call tracking the handler; it then enters the resulting
// State, invokes the handler synchronously, exits, and returns the handler's
// result.
//
// The outer wrapping tokens bracket proxy construction; the inner layer
// brackets each invocation.
func (t *Tracer) TransactionProxy(handler Handler) (Handler, error) {
	if handler == nil {
		return nil, &errors.ConstructionError{Entity: "transaction proxy", Argument: "handler"}
	}

	t.recorder.TraceWrapping(DirectionEnter, labelTransactionOuter)
	defer t.recorder.TraceWrapping(DirectionExit, labelTransactionOuter)

	return t.recorder.WrapExecution(labelTransactionInner, func(args ...any) (any, error) {
		value, err := t.producer.Produce()
		if err != nil {
			return nil, &errors.ConstructionError{Entity: "transaction", Cause: err}
		}
		if value == nil {
			return nil, &errors.ConstructionError{Entity: "transaction", Argument: "value"}
		}

		tx, err := NewTransaction(t.lastTransactionID.Add(1), value)
		if err != nil {
			return nil, err
		}
		t.recorder.TraceCreation(KindTransaction)
		t.logger.Debug("transaction started", "transaction_id", tx.ID())
		if t.observer != nil {
			t.observer.TransactionStarted(tx)
		}

		segment, err := tx.AddSegment(value.RootSegmentValue())
		if err != nil {
			return nil, err
		}
		t.recorder.TraceCreation(KindSegment)

		call, err := segment.AddCall(handler)
		if err != nil {
			return nil, err
		}
		t.recorder.TraceCreation(KindCall)

		state, err := NewState(tx, segment, call)
		if err != nil {
			return nil, err
		}

		return t.invoke(state, handler, args)
	}), nil
}

// SegmentProxy wraps a handler that attaches as a subsidiary operation of
// whatever Transaction is active when the returned handler is invoked. With no
// active State the handler runs as-is: no entities, no context transitions.
// A transaction is never fabricated implicitly. With an active State a new
// Segment is created under the existing Transaction, reusing the active
// segment's value, plus a Call tracking the handler; the handler then runs
// inside the resulting State.
func (t *Tracer) SegmentProxy(handler Handler) (Handler, error) {
	if handler == nil {
		return nil, &errors.ConstructionError{Entity: "segment proxy", Argument: "handler"}
	}

	t.recorder.TraceWrapping(DirectionEnter, labelSegmentOuter)
	defer t.recorder.TraceWrapping(DirectionExit, labelSegmentOuter)

	return t.recorder.WrapExecution(labelSegmentInner, func(args ...any) (any, error) {
		state := t.context.Current()
		if state == nil {
			return handler(args...)
		}

		segment, err := state.Transaction().AddSegment(state.Segment().Value())
		if err != nil {
			return nil, err
		}
		t.recorder.TraceCreation(KindSegment)

		call, err := segment.AddCall(handler)
		if err != nil {
			return nil, err
		}
		t.recorder.TraceCreation(KindCall)

		next, err := NewState(state.Transaction(), segment, call)
		if err != nil {
			return nil, err
		}

		return t.invoke(next, handler, args)
	}), nil
}

// CallbackProxy wraps a deferred callback that will run later, possibly after
// the chain that registered it has exited context. The current State is read
// at construction time: with none, the handler is returned unwrapped, since
// there is no chain to resume. With an active State a Call is created
// immediately under the current Segment, recording the registration, and the
// returned handler builds a fresh State from the captured transaction and
// segment on every invocation.
//
// This captured State is what lets a callback registered during one chain
// correctly resume that chain's context even when another chain is active by
// the time it fires.
func (t *Tracer) CallbackProxy(handler Handler) (Handler, error) {
	if handler == nil {
		return nil, &errors.ConstructionError{Entity: "callback proxy", Argument: "handler"}
	}

	state := t.context.Current()
	if state == nil {
		return handler, nil
	}

	t.recorder.TraceWrapping(DirectionEnter, labelCallbackOuter)
	defer t.recorder.TraceWrapping(DirectionExit, labelCallbackOuter)

	call, err := state.Segment().AddCall(handler)
	if err != nil {
		return nil, err
	}
	t.recorder.TraceCreation(KindCall)
	t.logger.Debug("callback registered", "call", call.String())

	return t.recorder.WrapExecution(labelCallbackInner, func(args ...any) (any, error) {
		next, err := NewState(state.Transaction(), state.Segment(), call)
		if err != nil {
			return nil, err
		}

		return t.invoke(next, handler, args)
	}), nil
}

// invoke runs handler inside state. Enter and the matching Exit are emitted
// from this stack frame, wrapping the single synchronous handler invocation.
// The exit is deferred so the context slot and the recorder stay consistent
// even when the handler returns an error or panics.
func (t *Tracer) invoke(state *State, handler Handler, args []any) (any, error) {
	t.enter(state)
	defer t.exit(state)

	return handler(args...)
}

func (t *Tracer) enter(state *State) {
	t.context.Enter(state)
	t.recorder.TraceCall(DirectionEnter, state.Call())
	t.logger.Debug("entered call", "call", state.Call().String())
	if t.observer != nil {
		t.observer.CallEntered(state.Call())
	}
}

func (t *Tracer) exit(state *State) {
	t.recorder.TraceCall(DirectionExit, state.Call())
	t.context.Exit(state)
	t.logger.Debug("exited call", "call", state.Call().String())
	if t.observer != nil {
		t.observer.CallExited(state.Call())
	}
}
