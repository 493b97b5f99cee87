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

// Package trace implements the execution-context propagation core of the
// strand tracing agent.
//
// A Transaction represents one logical request; Segments are its subsidiary
// operations, and Calls are individual tracked invocations of handlers within
// a Segment. The three form a strict immutable tree with sequential IDs
// assigned per parent.
//
// The Tracer wraps handler functions through three proxy constructors:
//
//   - TransactionProxy for handlers that originate a new request,
//   - SegmentProxy for handlers attaching to whatever Transaction is active,
//   - CallbackProxy for deferred callbacks that must later resume the context
//     captured when they were registered.
//
// Every proxy brackets the wrapped handler's synchronous invocation with a
// matched Enter/Exit pair on the Context, so nested and temporally interleaved
// chains never corrupt each other's bookkeeping: a callback carries its own
// captured State rather than trusting whatever happens to be active when it
// eventually fires.
//
// The Recorder observes every creation, context transition, and wrapping
// boundary crossing and appends human-readable tokens to ordered logs. It is
// the mechanism by which interleaving correctness is tested.
package trace
