// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package r2dbc

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRwTx is a hand-rolled double for rwTransaction: enough to drive the
// transaction manager's state transitions without a live Spanner session.
// updateResults lets a test script canned rows-updated counts, one per
// Update call, to replay spec section 8's literal DML scenarios.
type fakeRwTx struct {
	committed  bool
	rolledBack bool
	commitErr  error

	updateResults []int64
	updateCalls   []spanner.Statement
	batchResult   []int64
}

func (f *fakeRwTx) Commit(context.Context) (time.Time, error) {
	f.committed = true
	return time.Time{}, f.commitErr
}

func (f *fakeRwTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

func (f *fakeRwTx) Update(_ context.Context, stmt spanner.Statement) (int64, error) {
	f.updateCalls = append(f.updateCalls, stmt)
	if len(f.updateResults) == 0 {
		return 0, nil
	}
	n := f.updateResults[0]
	f.updateResults = f.updateResults[1:]
	return n, nil
}

func (f *fakeRwTx) BatchUpdate(context.Context, []spanner.Statement) ([]int64, error) {
	return f.batchResult, nil
}

func (f *fakeRwTx) QueryWithOptions(context.Context, spanner.Statement, spanner.QueryOptions) *spanner.RowIterator {
	return nil
}

type fakeRoTx struct {
	closed bool
}

func (f *fakeRoTx) Close() { f.closed = true }

func (f *fakeRoTx) QueryWithOptions(context.Context, spanner.Statement, spanner.QueryOptions) *spanner.RowIterator {
	return nil
}

func TestTransactionManager_ExclusionRules(t *testing.T) {
	tests := []struct {
		name       string
		setupState txState
		begin      func(tm *transactionManager) error
	}{
		{"readwrite-over-readwrite", txReadWrite, func(tm *transactionManager) error {
			_, err := tm.beginTransaction()
			return err
		}},
		{"readonly-over-readwrite", txReadWrite, func(tm *transactionManager) error {
			_, err := tm.beginReadonlyTransaction(spanner.StrongRead())
			return err
		}},
		{"readwrite-over-readonly", txReadOnly, func(tm *transactionManager) error {
			_, err := tm.beginTransaction()
			return err
		}},
		{"readonly-over-readonly", txReadOnly, func(tm *transactionManager) error {
			_, err := tm.beginReadonlyTransaction(spanner.StrongRead())
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := &transactionManager{state: tt.setupState}
			err := tt.begin(tm)
			require.Error(t, err)
			kind, ok := IsTransactionInProgress(err)
			assert.True(t, ok)
			if tt.setupState == txReadWrite {
				assert.Equal(t, "read-write", kind)
			} else {
				assert.Equal(t, "read-only", kind)
			}
		})
	}
}

func TestTransactionManager_CommitReadWriteClearsToIdle(t *testing.T) {
	fake := &fakeRwTx{}
	tm := &transactionManager{state: txReadWrite, rwTx: fake, dispatcher: inlineDispatcher{}}
	_, err := tm.commitTransaction().Get(context.Background())
	require.NoError(t, err)
	assert.True(t, fake.committed)
	assert.Equal(t, txIdle, tm.state)
	assert.Nil(t, tm.rwTx)
}

func TestTransactionManager_RollbackReadWriteClearsToIdle(t *testing.T) {
	fake := &fakeRwTx{}
	tm := &transactionManager{state: txReadWrite, rwTx: fake, dispatcher: inlineDispatcher{}}
	_, err := tm.rollbackTransaction().Get(context.Background())
	require.NoError(t, err)
	assert.True(t, fake.rolledBack)
	assert.Equal(t, txIdle, tm.state)
}

func TestTransactionManager_CommitReadOnlyClosesHandle(t *testing.T) {
	fake := &fakeRoTx{}
	tm := &transactionManager{state: txReadOnly, roTx: fake, dispatcher: inlineDispatcher{}}
	_, err := tm.commitTransaction().Get(context.Background())
	require.NoError(t, err)
	assert.True(t, fake.closed)
	assert.Equal(t, txIdle, tm.state)
}

func TestTransactionManager_CommitWhileIdleNoops(t *testing.T) {
	tm := &transactionManager{state: txIdle, dispatcher: inlineDispatcher{}}
	_, err := tm.commitTransaction().Get(context.Background())
	assert.NoError(t, err)
}

func TestTransactionManager_ClearTransactionManagerRollsBackOpenReadWrite(t *testing.T) {
	fake := &fakeRwTx{}
	tm := &transactionManager{state: txReadWrite, rwTx: fake}
	tm.clearTransactionManager()
	assert.True(t, fake.rolledBack)
	assert.Equal(t, txIdle, tm.state)
}

func TestTransactionManager_RunInTransactionRequiresReadWriteState(t *testing.T) {
	tm := &transactionManager{state: txIdle}
	err := tm.runInTransaction(func(rwTransaction) error { return nil })
	assert.Error(t, err)
}

func TestTransactionManager_GetReadContextByState(t *testing.T) {
	rw := &fakeRwTx{}
	tm := &transactionManager{state: txReadWrite, rwTx: rw}
	assert.Equal(t, readContext(rw), tm.getReadContext())

	ro := &fakeRoTx{}
	tm = &transactionManager{state: txReadOnly, roTx: ro}
	assert.Equal(t, readContext(ro), tm.getReadContext())
}

func TestTransactionManager_IsInTransactionHelpers(t *testing.T) {
	tm := &transactionManager{state: txReadWrite}
	assert.True(t, tm.isInTransaction())
	assert.True(t, tm.isInReadWriteTransaction())
	assert.False(t, tm.isInReadonlyTransaction())

	tm = &transactionManager{state: txReadOnly}
	assert.True(t, tm.isInReadonlyTransaction())
	assert.False(t, tm.isInReadWriteTransaction())

	tm = &transactionManager{state: txIdle}
	assert.False(t, tm.isInTransaction())
}
