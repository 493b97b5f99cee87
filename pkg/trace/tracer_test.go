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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stranderrors "github.com/tombee/strand/pkg/errors"
)

// stubValue is the request value used throughout the tracer tests.
type stubValue struct {
	root any
}

func (v stubValue) RootSegmentValue() any { return v.root }

func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *ScopeStack) {
	t.Helper()

	stack := NewScopeStack()
	producer := ProducerFunc(func() (RequestValue, error) {
		return stubValue{root: "web"}, nil
	})

	tracer, err := New(producer, stack, opts...)
	require.NoError(t, err)

	return tracer, stack
}

func TestNewTracerValidation(t *testing.T) {
	stack := NewScopeStack()
	producer := ProducerFunc(func() (RequestValue, error) {
		return stubValue{root: "web"}, nil
	})

	_, err := New(nil, stack)
	assert.True(t, stranderrors.IsConstruction(err))

	_, err = New(producer, nil)
	assert.True(t, stranderrors.IsConstruction(err))
}

func TestProxiesRejectNilHandler(t *testing.T) {
	tracer, _ := newTestTracer(t)

	_, err := tracer.TransactionProxy(nil)
	assert.True(t, stranderrors.IsConstruction(err))

	_, err = tracer.SegmentProxy(nil)
	assert.True(t, stranderrors.IsConstruction(err))

	_, err = tracer.CallbackProxy(nil)
	assert.True(t, stranderrors.IsConstruction(err))
}

func TestTransactionProxyDirectCall(t *testing.T) {
	tracer, stack := newTestTracer(t)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)

	result, err := proxied()
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	recorder := tracer.Recorder()
	assert.Equal(t, []string{"->T1S1C1", "<-T1S1C1"}, recorder.CallTrace())
	assert.Equal(t, []string{"+T", "+S", "+C"}, recorder.Creations())
	assert.Equal(t, []string{
		"->T outer", "<-T outer",
		"->T inner", "<-T inner",
	}, recorder.Wrappings())
	assert.Equal(t, []string{
		"->T outer",
		"<-T outer",
		"->T inner",
		"+T",
		"+S",
		"+C",
		"->T1S1C1",
		"<-T1S1C1",
		"<-T inner",
	}, recorder.Verbose())

	assert.Equal(t, 0, stack.Depth())
}

// Each invocation gets its own brand-new transaction with a fresh ID.
func TestTransactionProxyCreatesTransactionPerInvocation(t *testing.T) {
	tracer, _ := newTestTracer(t)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, err = proxied()
	require.NoError(t, err)
	_, err = proxied()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"->T1S1C1", "<-T1S1C1",
		"->T2S1C1", "<-T2S1C1",
	}, tracer.Recorder().CallTrace())
	assert.Equal(t, []string{"+T", "+S", "+C", "+T", "+S", "+C"}, tracer.Recorder().Creations())
}

func TestTransactionProxyPassesArguments(t *testing.T) {
	tracer, _ := newTestTracer(t)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	require.NoError(t, err)

	result, err := proxied(20, 22)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestTransactionProxyProducerFailure(t *testing.T) {
	stack := NewScopeStack()
	tracer, err := New(ProducerFunc(func() (RequestValue, error) {
		return nil, assert.AnError
	}), stack)
	require.NoError(t, err)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		t.Fatal("handler must not run without a transaction")
		return nil, nil
	})
	require.NoError(t, err)

	_, err = proxied()
	require.Error(t, err)
	assert.True(t, stranderrors.IsConstruction(err))

	// No degenerate transaction is created.
	assert.Empty(t, tracer.Recorder().Creations())
	assert.Empty(t, tracer.Recorder().CallTrace())
	assert.Equal(t, 0, stack.Depth())
}

// A producer returning nil without an error fails just as loudly.
func TestTransactionProxyNilRequestValue(t *testing.T) {
	stack := NewScopeStack()
	tracer, err := New(ProducerFunc(func() (RequestValue, error) {
		return nil, nil
	}), stack)
	require.NoError(t, err)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, err = proxied()
	assert.True(t, stranderrors.IsConstruction(err))
}

func TestSegmentProxyPassthroughWithoutContext(t *testing.T) {
	tracer, stack := newTestTracer(t)

	proxied, err := tracer.SegmentProxy(func(args ...any) (any, error) {
		return "untracked", nil
	})
	require.NoError(t, err)

	result, err := proxied()
	require.NoError(t, err)
	assert.Equal(t, "untracked", result)

	recorder := tracer.Recorder()
	assert.Empty(t, recorder.Creations())
	assert.Empty(t, recorder.CallTrace())
	// The boundary crossings are still visible: a transaction is just never
	// fabricated.
	assert.Equal(t, []string{
		"->S outer", "<-S outer",
		"->S inner", "<-S inner",
	}, recorder.Wrappings())
	assert.Equal(t, 0, stack.Depth())
}

func TestSegmentProxyAttachesToActiveTransaction(t *testing.T) {
	tracer, stack := newTestTracer(t)

	segmented, err := tracer.SegmentProxy(func(args ...any) (any, error) {
		return "downstream", nil
	})
	require.NoError(t, err)

	var root *Transaction
	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		root = stack.Current().Transaction()
		return segmented()
	})
	require.NoError(t, err)

	result, err := proxied()
	require.NoError(t, err)
	assert.Equal(t, "downstream", result)

	recorder := tracer.Recorder()
	assert.Equal(t, []string{
		"->T1S1C1",
		"->T1S2C1",
		"<-T1S2C1",
		"<-T1S1C1",
	}, recorder.CallTrace())
	assert.Equal(t, []string{"+T", "+S", "+C", "+S", "+C"}, recorder.Creations())

	// The new segment reuses the active segment's value under the existing
	// transaction.
	require.NotNil(t, root)
	segments := root.Segments()
	require.Len(t, segments, 2)
	assert.Equal(t, segments[0].Value(), segments[1].Value())
	assert.Equal(t, 0, stack.Depth())
}

func TestCallbackProxyUnwrappedWithoutContext(t *testing.T) {
	tracer, _ := newTestTracer(t)

	handler := func(args ...any) (any, error) {
		return "bare", nil
	}

	proxied, err := tracer.CallbackProxy(handler)
	require.NoError(t, err)

	result, err := proxied()
	require.NoError(t, err)
	assert.Equal(t, "bare", result)

	// Completely unwrapped: invoking the returned callable produces no trace
	// tokens of any kind.
	recorder := tracer.Recorder()
	assert.Empty(t, recorder.CallTrace())
	assert.Empty(t, recorder.Creations())
	assert.Empty(t, recorder.Wrappings())
	assert.Empty(t, recorder.Verbose())
}

// A transaction handler registers a deferred callback and returns before it
// runs. The transaction's enter/exit pair completes first; the callback's pair
// still references the original transaction and segment.
func TestCallbackProxyResumesCapturedContext(t *testing.T) {
	tracer, stack := newTestTracer(t)

	var deferred Handler
	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		var err error
		deferred, err = tracer.CallbackProxy(func(args ...any) (any, error) {
			return "later", nil
		})
		return nil, err
	})
	require.NoError(t, err)

	_, err = proxied()
	require.NoError(t, err)
	require.NotNil(t, deferred)
	assert.Equal(t, 0, stack.Depth())

	result, err := deferred()
	require.NoError(t, err)
	assert.Equal(t, "later", result)

	assert.Equal(t, []string{
		"->T1S1C1",
		"<-T1S1C1",
		"->T1S1C2",
		"<-T1S1C2",
	}, tracer.Recorder().CallTrace())
	// The callback's call was created at registration time, inside the
	// transaction's run.
	assert.Equal(t, []string{"+T", "+S", "+C", "+C"}, tracer.Recorder().Creations())
	assert.Equal(t, 0, stack.Depth())
}

// A callback registered during chain A resumes A's context even while chain B
// is active: each callback carries its own captured State instead of reading
// the shared slot.
func TestCallbackProxyIgnoresInterleavedChains(t *testing.T) {
	tracer, stack := newTestTracer(t)

	var deferred Handler
	chainA, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		var err error
		deferred, err = tracer.CallbackProxy(func(args ...any) (any, error) {
			return nil, nil
		})
		return nil, err
	})
	require.NoError(t, err)

	_, err = chainA()
	require.NoError(t, err)

	chainB, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		// Chain B is active when A's callback fires.
		return deferred()
	})
	require.NoError(t, err)

	_, err = chainB()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"->T1S1C1",
		"<-T1S1C1",
		"->T2S1C1",
		"->T1S1C2",
		"<-T1S1C2",
		"<-T2S1C1",
	}, tracer.Recorder().CallTrace())
	assert.Equal(t, 0, stack.Depth())
}

// Two independent chains interleaved in time never share a transaction ID and
// stay internally nested regardless of ordering.
func TestOverlappingChainsStayIsolated(t *testing.T) {
	tracer, stack := newTestTracer(t)

	startChain := func() Handler {
		var deferred Handler
		proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
			var err error
			deferred, err = tracer.CallbackProxy(func(args ...any) (any, error) {
				return nil, nil
			})
			return nil, err
		})
		require.NoError(t, err)

		_, err = proxied()
		require.NoError(t, err)
		return deferred
	}

	callbackA := startChain()
	callbackB := startChain()

	// Resume in the opposite order from registration.
	_, err := callbackB()
	require.NoError(t, err)
	_, err = callbackA()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"->T1S1C1", "<-T1S1C1",
		"->T2S1C1", "<-T2S1C1",
		"->T2S1C2", "<-T2S1C2",
		"->T1S1C2", "<-T1S1C2",
	}, tracer.Recorder().CallTrace())
	assert.Equal(t, 0, stack.Depth())
}

// Handler errors propagate unchanged, and the matching exit still runs so the
// context slot is restored on fault paths.
func TestHandlerErrorStillExits(t *testing.T) {
	tracer, stack := newTestTracer(t)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		return nil, assert.AnError
	})
	require.NoError(t, err)

	_, err = proxied()
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, []string{"->T1S1C1", "<-T1S1C1"}, tracer.Recorder().CallTrace())
	assert.Equal(t, 0, stack.Depth())
}

func TestHandlerPanicStillExits(t *testing.T) {
	tracer, stack := newTestTracer(t)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		panic("handler exploded")
	})
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = proxied() //nolint:errcheck
	})

	assert.Equal(t, []string{"->T1S1C1", "<-T1S1C1"}, tracer.Recorder().CallTrace())
	assert.Equal(t, 0, stack.Depth())
}

type countingObserver struct {
	transactions int
	entered      int
	exited       int
}

func (o *countingObserver) TransactionStarted(tx *Transaction) { o.transactions++ }
func (o *countingObserver) CallEntered(call *Call)             { o.entered++ }
func (o *countingObserver) CallExited(call *Call)              { o.exited++ }

func TestObserverNotifications(t *testing.T) {
	observer := &countingObserver{}
	tracer, _ := newTestTracer(t, WithObserver(observer))

	segmented, err := tracer.SegmentProxy(func(args ...any) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	proxied, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		return segmented()
	})
	require.NoError(t, err)

	_, err = proxied()
	require.NoError(t, err)

	assert.Equal(t, 1, observer.transactions)
	assert.Equal(t, 2, observer.entered)
	assert.Equal(t, 2, observer.exited)
}
