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
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// executor is the fixed-size worker pool every bridge callback and every
// autocommit statement is dispatched on, mirroring the Java adapter's
// `Executors.newFixedThreadPool(config.getThreadPoolSize())`. It is the
// only place native-thread (goroutine) parallelism is introduced by this
// package; the transaction manager itself assumes a serialized caller.
type executor struct {
	mu       sync.Mutex
	pool     *pool.Pool
	shutdown bool
}

func newExecutor(size int) *executor {
	return &executor{pool: pool.New().WithMaxGoroutines(size)}
}

// Go implements lazy.Dispatcher. Submitting to a shut-down executor runs
// fn synchronously on the caller's goroutine rather than panicking; no
// error is reported for it.
func (e *executor) Go(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		fn()
		return
	}
	e.pool.Go(fn)
}

// shutdownNow waits for in-flight work to finish and refuses further
// submissions. It is idempotent.
func (e *executor) shutdownNow() {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	e.mu.Unlock()
	e.pool.Wait()
}

// isShutdown reports whether shutdownNow has already run.
func (e *executor) isShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}
