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

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sliceCursor replays a fixed slice of values, then reports done. It
// mirrors a paged RowIterator driven purely in memory.
type sliceCursor struct {
	vals      []int
	i         int
	cancelled bool
	failAt    int // -1 disables
	failErr   error
}

func (c *sliceCursor) Next(context.Context) (int, bool, error) {
	if c.failAt >= 0 && c.i == c.failAt {
		return 0, false, c.failErr
	}
	if c.i >= len(c.vals) {
		return 0, true, nil
	}
	v := c.vals[c.i]
	c.i++
	return v, false, nil
}

func (c *sliceCursor) Cancel() { c.cancelled = true }

func TestRows_YieldsAllThenCompletes(t *testing.T) {
	cur := &sliceCursor{vals: []int{1, 2, 3}, failAt: -1}
	seq := Rows[int](context.Background(), inlineDispatcher{}, cur)

	var got []int
	for v, err := range seq {
		assert.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, cur.cancelled, "Rows must always cancel the cursor on exit")
}

func TestRows_TerminatesOnCursorError(t *testing.T) {
	boom := errors.New("boom")
	cur := &sliceCursor{vals: []int{1, 2, 3}, failAt: 1, failErr: boom}
	seq := Rows[int](context.Background(), inlineDispatcher{}, cur)

	var got []int
	var lastErr error
	for v, err := range seq {
		if err != nil {
			lastErr = err
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1}, got)
	assert.ErrorIs(t, lastErr, boom)
}

func TestRows_BreakingRangeCancelsCursor(t *testing.T) {
	cur := &sliceCursor{vals: []int{1, 2, 3, 4, 5}, failAt: -1}
	seq := Rows[int](context.Background(), inlineDispatcher{}, cur)

	var got []int
	for v, err := range seq {
		assert.NoError(t, err)
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, got)
	assert.True(t, cur.cancelled)
}

func TestRows_CancelledContextTerminatesSequence(t *testing.T) {
	// A context cancelled before the range even starts must not hang the
	// consumer, and must leave the cursor cancelled either way -- whether
	// the producer or the consumer observes ctx.Done() first is a race,
	// so this only asserts the sequence terminates promptly and cleans up.
	cur := &sliceCursor{vals: []int{1, 2, 3}, failAt: -1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq := Rows[int](ctx, goDispatcher{}, cur)
	count := 0
	for range seq {
		count++
	}
	assert.LessOrEqual(t, count, 3)
	assert.True(t, cur.cancelled)
}
