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

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/strand/internal/store"
	"github.com/tombee/strand/pkg/trace"
)

func TestTransactionsTree(t *testing.T) {
	txn, err := trace.NewTransaction(1, "GET /orders")
	require.NoError(t, err)
	seg, err := txn.AddSegment("root")
	require.NoError(t, err)
	_, err = seg.AddCall("handler")
	require.NoError(t, err)
	_, err = seg.AddCall("callback")
	require.NoError(t, err)

	r := &Renderer{Width: 100}
	out := r.Transactions([]*trace.Transaction{txn})

	assert.Contains(t, out, "Transaction T1")
	assert.Contains(t, out, "GET /orders")
	assert.Contains(t, out, "Segment S1")
	assert.Contains(t, out, "T1S1C1")
	assert.Contains(t, out, "T1S1C2")

	// Last call uses the closing branch glyph
	assert.Contains(t, out, "└── ")
}

func TestRecordIncludesLogs(t *testing.T) {
	record := &store.TraceRecord{
		ID:        "abc-123",
		Name:      "demo",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Transactions: []store.TransactionRecord{
			{
				ID:    1,
				Value: "request",
				Segments: []store.SegmentRecord{
					{ID: 1, Value: "root", Calls: []store.CallRecord{{ID: 1, Value: "handler"}}},
				},
			},
		},
		Logs: store.LogRecord{
			CallTrace: []string{"->T1S1C1", "<-T1S1C1"},
			Creations: []string{"+T", "+S", "+C"},
		},
	}

	r := &Renderer{Width: 100}
	out := r.Record(record)

	assert.Contains(t, out, "abc-123")
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "T1S1C1")
	assert.Contains(t, out, "->T1S1C1")
	assert.Contains(t, out, "+T +S +C")
	assert.Contains(t, out, "(empty)")
}

func TestRecorderLogs(t *testing.T) {
	txn, err := trace.NewTransaction(1, "request")
	require.NoError(t, err)
	seg, err := txn.AddSegment("root")
	require.NoError(t, err)
	call, err := seg.AddCall("handler")
	require.NoError(t, err)

	rec := trace.NewRecorder()
	rec.TraceCreation(trace.KindTransaction)
	rec.TraceCall(trace.DirectionEnter, call)
	rec.TraceCall(trace.DirectionExit, call)

	r := &Renderer{Width: 100}
	out := r.RecorderLogs(rec)

	assert.Contains(t, out, "call trace: ->T1S1C1 <-T1S1C1")
	assert.Contains(t, out, "creations: +T")
	assert.Contains(t, out, "verbose: +T ->T1S1C1 <-T1S1C1")
}

func TestSummaries(t *testing.T) {
	r := &Renderer{Width: 100}

	empty := r.Summaries(nil)
	assert.Contains(t, empty, "no traces stored")

	out := r.Summaries([]store.TraceSummary{
		{
			ID:               "11111111-2222-3333-4444-555555555555",
			Name:             "checkout",
			TransactionCount: 2,
			CallCount:        5,
			CreatedAt:        time.Now(),
		},
	})
	assert.Contains(t, out, "checkout")
	assert.Contains(t, out, "11111111-2222-3333-4444-555555555555")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("x", 80)
	got := truncate(long, 10)
	assert.Len(t, []rune(got), 10)
	assert.True(t, strings.HasSuffix(got, "…"))
}
