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
	"fmt"
	"sync"
	"time"

	"github.com/tombee/strand/pkg/errors"
)

// Transaction is the root of one trace tree, representing a single logical
// request. Its identity and value are fixed at construction; the only mutation
// it ever sees is the append-only growth of its segment list.
type Transaction struct {
	id        uint64
	value     any
	createdAt time.Time

	mu       sync.Mutex
	segments []*Segment
}

// NewTransaction creates a Transaction with the given tracer-scoped ID and
// opaque request value. Both are required.
func NewTransaction(id uint64, value any) (*Transaction, error) {
	if id == 0 {
		return nil, &errors.ConstructionError{Entity: "transaction", Argument: "id"}
	}
	if value == nil {
		return nil, &errors.ConstructionError{Entity: "transaction", Argument: "value"}
	}

	return &Transaction{
		id:        id,
		value:     value,
		createdAt: time.Now(),
	}, nil
}

// ID returns the transaction's tracer-scoped sequential identifier.
func (t *Transaction) ID() uint64 { return t.id }

// Value returns the opaque payload representing the real-world request.
func (t *Transaction) Value() any { return t.value }

// CreatedAt returns when the transaction was constructed.
func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

// AddSegment creates a new Segment under this transaction. Segment IDs are
// sequential starting at 1 and are never reused, even when a created segment
// is discarded without ever being entered into context.
func (t *Transaction) AddSegment(value any) (*Segment, error) {
	if value == nil {
		return nil, &errors.ConstructionError{Entity: "segment", Argument: "value"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	segment := &Segment{
		id:          uint64(len(t.segments) + 1),
		transaction: t,
		value:       value,
		createdAt:   time.Now(),
	}
	t.segments = append(t.segments, segment)

	return segment, nil
}

// Segments returns a snapshot of the segments created so far, in creation
// order.
func (t *Transaction) Segments() []*Segment {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// SegmentCount returns the number of segments created under this transaction.
func (t *Transaction) SegmentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}

// Segment is one subsidiary operation within a Transaction, for example a
// single downstream call. It belongs to exactly one Transaction, fixed at
// creation.
type Segment struct {
	id          uint64
	transaction *Transaction
	value       any
	createdAt   time.Time

	mu    sync.Mutex
	calls []*Call
}

// ID returns the segment's transaction-scoped sequential identifier.
func (s *Segment) ID() uint64 { return s.id }

// Transaction returns the owning transaction. The reference is navigational
// only; the transaction owns the segment, never the reverse.
func (s *Segment) Transaction() *Transaction { return s.transaction }

// Value returns the opaque payload describing the subsidiary operation.
func (s *Segment) Value() any { return s.value }

// CreatedAt returns when the segment was constructed.
func (s *Segment) CreatedAt() time.Time { return s.createdAt }

// AddCall creates a new Call under this segment, tracking the given handler or
// callable value. Call IDs are sequential starting at 1 and never reused.
func (s *Segment) AddCall(value any) (*Call, error) {
	if value == nil {
		return nil, &errors.ConstructionError{Entity: "call", Argument: "value"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	call := &Call{
		id:        uint64(len(s.calls) + 1),
		segment:   s,
		value:     value,
		createdAt: time.Now(),
	}
	s.calls = append(s.calls, call)

	return call, nil
}

// Calls returns a snapshot of the calls created so far, in creation order.
func (s *Segment) Calls() []*Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of calls created under this segment.
func (s *Segment) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Call is one tracked invocation of a specific handler within a Segment. It
// belongs to exactly one Segment, fixed at creation.
type Call struct {
	id        uint64
	segment   *Segment
	value     any
	createdAt time.Time
}

// ID returns the call's segment-scoped sequential identifier.
func (c *Call) ID() uint64 { return c.id }

// Segment returns the owning segment. Navigational only.
func (c *Call) Segment() *Segment { return c.segment }

// Value returns the handler or callable being tracked.
func (c *Call) Value() any { return c.value }

// CreatedAt returns when the call was constructed.
func (c *Call) CreatedAt() time.Time { return c.createdAt }

// String returns the call's canonical textual identity, combining the IDs of
// its ancestors and itself: "T1S2C3" is the third call of the second segment
// of the first transaction.
func (c *Call) String() string {
	return fmt.Sprintf("T%dS%dC%d", c.segment.transaction.id, c.segment.id, c.id)
}
