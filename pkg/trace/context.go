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

// Context is the contract for the single shared slot holding the currently
// active State. The Tracer only ever drives it through matched Enter/Exit
// pairs emitted from the same stack frame, so implementations must save the
// previously active State on Enter and restore it on the matching Exit.
//
// Behavior when Exit receives a State that does not match the most recent
// Enter is unspecified; the Tracer never does that.
type Context interface {
	// Current returns the active State, or nil when no chain is executing.
	// It is side-effect-free.
	Current() *State

	// Enter makes state the active State, saving whatever was previously
	// active for the matching Exit.
	Enter(state *State)

	// Exit restores whatever was active immediately before the matching
	// Enter of state.
	Exit(state *State)
}

// ScopeStack is the reference Context implementation: an explicit stack owned
// by whoever constructed it. There is no package-level ambient slot; a caller
// that wants one chain's context keeps one ScopeStack for that chain.
type ScopeStack struct {
	mu    sync.Mutex
	stack []*State
}

// NewScopeStack creates an empty ScopeStack.
func NewScopeStack() *ScopeStack {
	return &ScopeStack{}
}

// Current returns the most recently entered State, or nil when the stack is
// empty.
func (s *ScopeStack) Current() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// Enter pushes state onto the stack, preserving the caller's prior State
// underneath it.
func (s *ScopeStack) Enter(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stack = append(s.stack, state)
}

// Exit pops the most recent entry, restoring the State that was active before
// the matching Enter. The argument is accepted for contract symmetry; matched
// pairing is the caller's responsibility.
func (s *ScopeStack) Exit(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stack) == 0 {
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// Depth returns the number of States currently saved. Useful in tests for
// asserting that every Enter found its matching Exit.
func (s *ScopeStack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}
