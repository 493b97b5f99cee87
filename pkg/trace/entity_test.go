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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stranderrors "github.com/tombee/strand/pkg/errors"
)

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), tx.ID())
	assert.Equal(t, "request", tx.Value())
	assert.False(t, tx.CreatedAt().IsZero())
	assert.Equal(t, 0, tx.SegmentCount())
}

func TestNewTransactionValidation(t *testing.T) {
	_, err := NewTransaction(0, "request")
	require.Error(t, err)
	assert.True(t, stranderrors.IsConstruction(err))

	_, err = NewTransaction(1, nil)
	require.Error(t, err)
	assert.True(t, stranderrors.IsConstruction(err))
}

func TestSegmentIDsAreSequential(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		segment, err := tx.AddSegment(fmt.Sprintf("op-%d", i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), segment.ID())
		assert.Same(t, tx, segment.Transaction())
	}

	assert.Equal(t, 5, tx.SegmentCount())
	assert.Len(t, tx.Segments(), 5)
}

func TestCallIDsAreSequential(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)
	segment, err := tx.AddSegment("op")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		call, err := segment.AddCall("handler")
		require.NoError(t, err)
		assert.Equal(t, uint64(i), call.ID())
		assert.Same(t, segment, call.Segment())
	}

	assert.Equal(t, 3, segment.CallCount())
}

// IDs keep advancing even when earlier children are discarded without ever
// being entered into context.
func TestIDsAreNeverReused(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)

	first, err := tx.AddSegment("discarded")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID())

	second, err := tx.AddSegment("kept")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID())
}

func TestAddSegmentValidation(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)

	_, err = tx.AddSegment(nil)
	require.Error(t, err)
	assert.True(t, stranderrors.IsConstruction(err))
	assert.Equal(t, 0, tx.SegmentCount())
}

func TestAddCallValidation(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)
	segment, err := tx.AddSegment("op")
	require.NoError(t, err)

	_, err = segment.AddCall(nil)
	require.Error(t, err)
	assert.True(t, stranderrors.IsConstruction(err))
	assert.Equal(t, 0, segment.CallCount())
}

func TestCallIdentityRoundTrip(t *testing.T) {
	tx, err := NewTransaction(7, "request")
	require.NoError(t, err)

	for s := 1; s <= 3; s++ {
		segment, err := tx.AddSegment("op")
		require.NoError(t, err)

		for c := 1; c <= 3; c++ {
			call, err := segment.AddCall("handler")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("T7S%dC%d", s, c), call.String())
		}
	}
}

func TestNewStateRequiresFullTriple(t *testing.T) {
	tx, err := NewTransaction(1, "request")
	require.NoError(t, err)
	segment, err := tx.AddSegment("op")
	require.NoError(t, err)
	call, err := segment.AddCall("handler")
	require.NoError(t, err)

	state, err := NewState(tx, segment, call)
	require.NoError(t, err)
	assert.True(t, state.Full())
	assert.Same(t, tx, state.Transaction())
	assert.Same(t, segment, state.Segment())
	assert.Same(t, call, state.Call())

	_, err = NewState(nil, segment, call)
	assert.True(t, stranderrors.IsConstruction(err))
	_, err = NewState(tx, nil, call)
	assert.True(t, stranderrors.IsConstruction(err))
	_, err = NewState(tx, segment, nil)
	assert.True(t, stranderrors.IsConstruction(err))
}
