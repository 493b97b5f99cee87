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

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/strand/pkg/errors"
	"github.com/tombee/strand/pkg/trace"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(Config{Path: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// buildSession creates a small but realistic session: one transaction with
// two segments, the second holding two calls, plus recorder tokens.
func buildSession(t *testing.T) ([]*trace.Transaction, *trace.Recorder) {
	t.Helper()

	txn, err := trace.NewTransaction(1, map[string]any{"url": "/checkout"})
	require.NoError(t, err)

	seg1, err := txn.AddSegment("root")
	require.NoError(t, err)
	call1, err := seg1.AddCall("handler")
	require.NoError(t, err)

	seg2, err := txn.AddSegment("db-query")
	require.NoError(t, err)
	_, err = seg2.AddCall("query")
	require.NoError(t, err)
	call3, err := seg2.AddCall("retry")
	require.NoError(t, err)

	rec := trace.NewRecorder()
	rec.TraceCreation(trace.KindTransaction)
	rec.TraceCreation(trace.KindSegment)
	rec.TraceCall(trace.DirectionEnter, call1)
	rec.TraceCall(trace.DirectionEnter, call3)
	rec.TraceCall(trace.DirectionExit, call3)
	rec.TraceCall(trace.DirectionExit, call1)
	rec.TraceWrapping(trace.DirectionEnter, "T outer")
	rec.TraceWrapping(trace.DirectionExit, "T outer")

	return []*trace.Transaction{txn}, rec
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	var storeErr *errors.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "open", storeErr.Op)
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transactions, rec := buildSession(t)
	id, err := s.Save(ctx, "checkout", transactions, rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "checkout", record.Name)
	require.Len(t, record.Transactions, 1)

	txn := record.Transactions[0]
	assert.Equal(t, uint64(1), txn.ID)
	assert.JSONEq(t, `{"url":"/checkout"}`, txn.Value)
	require.Len(t, txn.Segments, 2)

	assert.Equal(t, "root", txn.Segments[0].Value)
	require.Len(t, txn.Segments[0].Calls, 1)
	assert.Equal(t, "db-query", txn.Segments[1].Value)
	require.Len(t, txn.Segments[1].Calls, 2)
	assert.Equal(t, uint64(2), txn.Segments[1].Calls[1].ID)

	assert.Equal(t, []string{"->T1S1C1", "->T1S2C2", "<-T1S2C2", "<-T1S1C1"}, record.Logs.CallTrace)
	assert.Equal(t, []string{"+T", "+S"}, record.Logs.Creations)
	assert.Equal(t, []string{"->T outer", "<-T outer"}, record.Logs.Wrappings)
	assert.Len(t, record.Logs.Verbose, 8)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "no-such-trace")
	require.Error(t, err)

	var notFound *errors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "trace", notFound.Resource)
}

func TestSaveWithoutRecorder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transactions, _ := buildSession(t)
	id, err := s.Save(ctx, "bare", transactions, nil)
	require.NoError(t, err)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, record.Logs.CallTrace)
	assert.Empty(t, record.Logs.Verbose)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transactions, rec := buildSession(t)
	first, err := s.Save(ctx, "first", transactions, rec)
	require.NoError(t, err)

	more, rec2 := buildSession(t)
	second, err := s.Save(ctx, "second", more, rec2)
	require.NoError(t, err)

	summaries, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	ids := []string{summaries[0].ID, summaries[1].ID}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
	assert.Equal(t, 1, summaries[0].TransactionCount)
	assert.Equal(t, 3, summaries[0].CallCount)

	limited, err := s.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListSinceFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transactions, rec := buildSession(t)
	_, err := s.Save(ctx, "old", transactions, rec)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	summaries, err := s.List(ctx, Filter{Since: &future})
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transactions, rec := buildSession(t)
	id, err := s.Save(ctx, "stale", transactions, rec)
	require.NoError(t, err)

	count, err := s.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = s.Get(ctx, id)
	var notFound *errors.NotFoundError
	require.ErrorAs(t, err, &notFound)

	// Entity rows must be gone too
	var remaining int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM calls").Scan(&remaining))
	assert.Zero(t, remaining)
}

func TestFileBackedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.db")
	s, err := New(Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	transactions, rec := buildSession(t)
	id, err := s.Save(context.Background(), "persisted", transactions, rec)
	require.NoError(t, err)

	record, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", record.Name)
}
