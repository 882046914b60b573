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

// Package lazy adapts the synchronous, blocking primitives of the Cloud
// Spanner client library into cold, cancellation-aware values and
// sequences. It has no Spanner-specific knowledge: it wraps plain
// functions and a small cursor interface, so the same two bridges serve
// every Spanner call site in the adapter package.
package lazy

import (
	"context"
	"sync"
)

// Dispatcher runs fn on whatever worker pool backs it. Value.Get and
// Rows hand their work to a Dispatcher, so that callback execution stays
// bounded by the connection's configured worker-pool size, the way the
// Java adapter dispatches every future callback on its ExecutorService.
// The one exception is Cached, whose single underlying execution runs on
// a bare goroutine while the Get that waits on it goes through the
// Dispatcher.
type Dispatcher interface {
	Go(fn func())
}

// Supplier produces a single T, blocking until it resolves, fails, or ctx
// is cancelled. It plays the role the Java adapter gives to a
// `Supplier<ApiFuture<T>>`: the function itself is the cold, repeatable
// unit of work, and ctx is how a caller requests cancellation (mirroring
// ApiFuture#cancel(true) — an Accepted Go idiom for "cancel with
// interruption" is a context whose cancellation the blocking client call
// already observes).
type Supplier[T any] func(ctx context.Context) (T, error)

// Value is a cold, single-valued, cancellable computation. Calling Get
// invokes the underlying Supplier anew every time: Value is not memoized
// unless wrapped with Cached.
type Value[T any] struct {
	dispatcher Dispatcher
	supplier   Supplier[T]
}

// NewValue builds a Value that, each time it is subscribed to via Get,
// dispatches supplier onto d and waits for it to resolve or for ctx to
// be cancelled.
func NewValue[T any](d Dispatcher, supplier Supplier[T]) Value[T] {
	return Value[T]{dispatcher: d, supplier: supplier}
}

type valueOutcome[T any] struct {
	val T
	err error
}

// Get subscribes to the value: it dispatches the supplier and blocks
// until a result is available or ctx is done. Cancelling ctx does not
// guarantee the underlying work stopped — only that Get returns promptly
// with ctx.Err() and no further signal follows.
func (v Value[T]) Get(ctx context.Context) (T, error) {
	out := make(chan valueOutcome[T], 1)
	v.dispatcher.Go(func() {
		val, err := v.supplier(ctx)
		out <- valueOutcome[T]{val: val, err: err}
	})
	select {
	case o := <-out:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cached returns a Value that runs the underlying supplier at most once:
// the first Get call triggers execution, and every subsequent Get
// (including concurrent ones) observes the same outcome. This is the
// primitive Result.RowsUpdated is built on, matching the Java adapter's
// `Mono<Integer> rowsUpdated` which is explicitly `.cache()`d.
func (v Value[T]) Cached() Value[T] {
	// The first Get starts the single underlying execution, which runs
	// with context.Background(): no caller's ctx can cancel the shared
	// computation, a cancelled ctx only makes that caller's Get return
	// early. The execution itself runs on a bare goroutine,
	// never through v.dispatcher.Go: re-entering the same bounded pool
	// from a supplier it already occupies a worker in deadlocks a
	// thread_pool_size == 1 connection, since the one worker would be
	// waiting on itself.
	var start sync.Once
	done := make(chan struct{})
	var out valueOutcome[T]
	run := func() {
		start.Do(func() {
			go func() {
				val, err := v.supplier(context.Background())
				out = valueOutcome[T]{val: val, err: err}
				close(done)
			}()
		})
	}
	return Value[T]{
		dispatcher: v.dispatcher,
		supplier: func(ctx context.Context) (T, error) {
			run()
			select {
			case <-done:
				return out.val, out.err
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			}
		},
	}
}
