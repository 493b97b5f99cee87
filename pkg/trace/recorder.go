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
	"sync"
)

// Direction tokens for call-trace and wrapping entries.
const (
	// DirectionEnter marks entering a call or crossing into a wrapping layer.
	DirectionEnter = "->"

	// DirectionExit marks exiting a call or leaving a wrapping layer.
	DirectionExit = "<-"
)

// Entity kind names passed to TraceCreation. Only the first letter appears in
// the creation log.
const (
	KindTransaction = "Transaction"
	KindSegment     = "Segment"
	KindCall        = "Call"
)

// Recorder is the passive observer of tracer activity. It appends
// human-readable tokens to four ordered logs: call-trace entries for context
// entries and exits, creation entries for new entities, wrapping entries for
// proxy boundary crossings, and a verbose log preserving the interleaved order
// of all three.
//
// The Recorder knows nothing about correctness rules; it only appends. Its
// output is the primary artifact the interleaving tests assert against.
type Recorder struct {
	mu        sync.Mutex
	callTrace []string
	creations []string
	wrappings []string
	verbose   []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// TraceCall appends direction + the call's canonical identity (for example
// "->T1S1C1") to the call-trace and verbose logs.
func (r *Recorder) TraceCall(direction string, call *Call) {
	token := direction + call.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.callTrace = append(r.callTrace, token)
	r.verbose = append(r.verbose, token)
}

// TraceCreation appends "+" plus the first letter of kind (for example "+T")
// to the creation and verbose logs.
func (r *Recorder) TraceCreation(kind string) {
	token := "+" + kind[:1]

	r.mu.Lock()
	defer r.mu.Unlock()
	r.creations = append(r.creations, token)
	r.verbose = append(r.verbose, token)
}

// TraceWrapping appends direction + label (for example "->T outer") to the
// wrapping and verbose logs. Labels identify which proxy kind and which of its
// two wrapping layers is crossing, so nested wrapping can be told apart from
// nested execution.
func (r *Recorder) TraceWrapping(direction, label string) {
	token := direction + label

	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrappings = append(r.wrappings, token)
	r.verbose = append(r.verbose, token)
}

// WrapExecution returns a handler that brackets every invocation of fn with
// wrapping tokens for label. The bracketing is unconditional: it records that
// the proxy's boundary was crossed independently of whether the wrapped
// handler goes on to enter a trace context.
func (r *Recorder) WrapExecution(label string, fn Handler) Handler {
	return func(args ...any) (any, error) {
		r.TraceWrapping(DirectionEnter, label)
		defer r.TraceWrapping(DirectionExit, label)

		return fn(args...)
	}
}

// CallTrace returns a copy of the call-trace log.
func (r *Recorder) CallTrace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.callTrace...)
}

// Creations returns a copy of the creation log.
func (r *Recorder) Creations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.creations...)
}

// Wrappings returns a copy of the wrapping log.
func (r *Recorder) Wrappings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.wrappings...)
}

// Verbose returns a copy of the combined log, preserving the interleaved
// order in which call-trace, creation, and wrapping tokens were recorded.
func (r *Recorder) Verbose() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.verbose...)
}
