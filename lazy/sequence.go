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

package lazy

import "context"

// Cursor is the minimal shape this package needs from a native,
// paged result cursor: something that blocks until it can report either
// a value, end-of-stream, or a terminal error, and something that can be
// told to stop early.
//
// The source AsyncResultSet callback is driven by a three-way
// CallbackResponse (DONE / NOT_READY / OK): Go's cloud.google.com/go/spanner
// RowIterator has no NOT_READY state because its Next is blocking, not
// callback-driven, so a Cursor implementation never needs to report "not
// ready yet" -- Next simply does not return until it has an answer. The
// DONE/OK/error trichotomy is preserved below.
type Cursor[T any] interface {
	// Next blocks until a value is available, the cursor is exhausted
	// (done=true, err=nil), or a terminal error occurs.
	Next(ctx context.Context) (value T, done bool, err error)
	// Cancel stops the underlying native cursor. It is safe to call more
	// than once.
	Cancel()
}

type sequenceItem[T any] struct {
	val T
	err error
}

// Sequence is a cold, cancellable sequence of T produced by draining a
// Cursor[T] on a Dispatcher. Ranging over Sequence (it is a
// func(func(T, error) bool)) subscribes: each range installs a fresh
// drain of the cursor, mirroring Flux.create's cold semantics. Breaking
// out of the range loop cancels the underlying cursor; no further items
// are ever delivered after that, or after a terminal error.
type Sequence[T any] func(yield func(T, error) bool)

// Rows builds a Sequence by draining cur on d. The three-way contract
// from the source design is preserved: DONE completes the sequence with
// no error, OK emits one item and continues, and any error encountered
// while advancing terminates the sequence with that error. Cancelling
// ctx or breaking the consuming range loop invokes cur.Cancel(); no item
// is emitted after that point, and a cancelled ctx ends the sequence
// silently rather than with an error. The drain is handed to d from its
// own goroutine, so a d that runs fn synchronously does not block the
// consumer.
func Rows[T any](ctx context.Context, d Dispatcher, cur Cursor[T]) Sequence[T] {
	return func(yield func(T, error) bool) {
		items := make(chan sequenceItem[T])
		stop := make(chan struct{})
		defer close(stop)
		defer cur.Cancel()

		go d.Go(func() {
			defer close(items)
			for {
				val, done, err := cur.Next(ctx)
				if err != nil {
					select {
					case items <- sequenceItem[T]{err: err}:
					case <-stop:
					}
					return
				}
				if done {
					return
				}
				select {
				case items <- sequenceItem[T]{val: val}:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		})

		for {
			select {
			case it, ok := <-items:
				if !ok || ctx.Err() != nil {
					return
				}
				if it.err != nil {
					var zero T
					yield(zero, it.err)
					return
				}
				if !yield(it.val, nil) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
