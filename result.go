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
	"sync/atomic"

	"github.com/ttomsu/cloud-spanner-r2dbc/lazy"
)

// Result pairs a rows-updated count with an optional lazy row sequence,
// mirroring the Java adapter's SpannerResult. RowsUpdated is cached: every
// caller observes the same outcome. Rows, when present, is cold and may
// only be consumed once -- ranging over it a second time returns
// ErrAlreadyConsumed instead of silently re-running the query against a
// possibly different snapshot.
type Result struct {
	rowsUpdated lazy.Value[int64]
	rows        lazy.Sequence[Row]
	hasRows     bool
	consumed    atomic.Bool
}

// NewResult builds a Result from a lazy row sequence and a lazy
// rows-updated value, mirroring the Java adapter's public
// `SpannerResult(Flux<SpannerRow>, Mono<Integer>)` constructor. rows may
// be nil, in which case the Result behaves as pure DML: Rows and Map
// both yield nothing.
func NewResult(rows lazy.Sequence[Row], rowsUpdated lazy.Value[int64]) *Result {
	r := &Result{rowsUpdated: rowsUpdated.Cached()}
	if rows != nil {
		r.hasRows = true
		r.rows = rows
	}
	return r
}

// newDMLResult builds a Result for a single DML statement: no row
// sequence, just a cached rows-updated value.
func newDMLResult(rowsUpdated lazy.Value[int64]) *Result {
	return NewResult(nil, rowsUpdated)
}

// newQueryResult builds a Result for a SELECT: rowsUpdated always
// resolves to 0, and rows streams the query's rows exactly once.
func newQueryResult(rows lazy.Sequence[Row]) *Result {
	zero := lazy.NewValue[int64](inlineDispatcher{}, func(context.Context) (int64, error) {
		return 0, nil
	})
	return NewResult(rows, zero)
}

// RowsUpdated returns the cached rows-updated count. Safe to call more
// than once; every call observes the same outcome.
func (r *Result) RowsUpdated(ctx context.Context) (int64, error) {
	return r.rowsUpdated.Get(ctx)
}

// ErrAlreadyConsumed is returned by Rows (and by Map) when the result's
// row sequence has already been ranged over once.
var ErrAlreadyConsumed = newInvalidExecutionStateError("result rows have already been consumed")

// Rows returns the result's row sequence. The rows may be ranged over
// exactly once per Result; any later range, whether over the same
// sequence or one from another Rows call, immediately yields
// ErrAlreadyConsumed. A pure DML Result has no rows: ranging over it
// yields nothing.
func (r *Result) Rows() lazy.Sequence[Row] {
	if !r.hasRows {
		return func(yield func(Row, error) bool) {}
	}
	return func(yield func(Row, error) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			yield(Row{}, ErrAlreadyConsumed)
			return
		}
		r.rows(yield)
	}
}

// Map transforms each row through f, receiving the row and its metadata,
// mirroring SpannerResult#map(BiFunction<Row, RowMetadata, T>). If the
// Result carries no row sequence (pure DML), Map yields nothing.
func Map[T any](r *Result, f func(Row, RowMetadata) T) lazy.Sequence[T] {
	if !r.hasRows {
		return func(yield func(T, error) bool) {}
	}
	rows := r.Rows()
	return func(yield func(T, error) bool) {
		rows(func(row Row, err error) bool {
			if err != nil {
				var zero T
				return yield(zero, err)
			}
			return yield(f(row, newRowMetadata(row.native)), nil)
		})
	}
}

// inlineDispatcher runs fn on the calling goroutine. It backs the
// zero-cost rowsUpdated==0 value a SELECT Result always carries -- there
// is no blocking work to hand off to the worker pool for it.
type inlineDispatcher struct{}

func (inlineDispatcher) Go(fn func()) { fn() }
