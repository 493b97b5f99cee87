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
	"github.com/tombee/strand/pkg/errors"
)

// State is an immutable snapshot of the currently active transaction, segment,
// and call. A fresh State is created for every context entry and never mutated
// afterwards; deferred callbacks carry the State captured at registration time
// instead of reading whatever is globally active when they fire.
type State struct {
	transaction *Transaction
	segment     *Segment
	call        *Call
	full        bool
}

// NewState creates a fully-populated State from the given triple. All three
// entities are required; the context layer may hold partial placeholders of
// its own, but every State produced by this package is full.
func NewState(transaction *Transaction, segment *Segment, call *Call) (*State, error) {
	if transaction == nil {
		return nil, &errors.ConstructionError{Entity: "state", Argument: "transaction"}
	}
	if segment == nil {
		return nil, &errors.ConstructionError{Entity: "state", Argument: "segment"}
	}
	if call == nil {
		return nil, &errors.ConstructionError{Entity: "state", Argument: "call"}
	}

	return &State{
		transaction: transaction,
		segment:     segment,
		call:        call,
		full:        true,
	}, nil
}

// Transaction returns the active transaction.
func (s *State) Transaction() *Transaction { return s.transaction }

// Segment returns the active segment.
func (s *State) Segment() *Segment { return s.segment }

// Call returns the active call.
func (s *State) Call() *Call { return s.call }

// Full reports whether this State carries a complete triple. It is true for
// every State produced by the Tracer, distinguishing them from any partial
// placeholder a context implementation might otherwise hold.
func (s *State) Full() bool { return s.full }
