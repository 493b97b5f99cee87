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
)

func makeState(t *testing.T, txID uint64) *State {
	t.Helper()

	tx, err := NewTransaction(txID, "request")
	require.NoError(t, err)
	segment, err := tx.AddSegment("op")
	require.NoError(t, err)
	call, err := segment.AddCall("handler")
	require.NoError(t, err)
	state, err := NewState(tx, segment, call)
	require.NoError(t, err)

	return state
}

func TestScopeStackStartsEmpty(t *testing.T) {
	stack := NewScopeStack()

	assert.Nil(t, stack.Current())
	assert.Equal(t, 0, stack.Depth())
}

func TestScopeStackEnterExit(t *testing.T) {
	stack := NewScopeStack()
	state := makeState(t, 1)

	stack.Enter(state)
	assert.Same(t, state, stack.Current())
	assert.Equal(t, 1, stack.Depth())

	stack.Exit(state)
	assert.Nil(t, stack.Current())
	assert.Equal(t, 0, stack.Depth())
}

// Nested enters must restore the caller's prior state on each matching exit.
func TestScopeStackNesting(t *testing.T) {
	stack := NewScopeStack()
	outer := makeState(t, 1)
	inner := makeState(t, 2)

	stack.Enter(outer)
	stack.Enter(inner)
	assert.Same(t, inner, stack.Current())

	stack.Exit(inner)
	assert.Same(t, outer, stack.Current())

	stack.Exit(outer)
	assert.Nil(t, stack.Current())
}

func TestScopeStackExitWhenEmpty(t *testing.T) {
	stack := NewScopeStack()

	// Unmatched exit must not panic; pairing is the caller's contract.
	stack.Exit(makeState(t, 1))
	assert.Nil(t, stack.Current())
}
