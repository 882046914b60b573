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

// Package r2dbc is a reactive-style connection adapter for Google Cloud
// Spanner. It bridges the synchronous/blocking Spanner client library into
// a cancellation-aware streaming API: a [Conn] owns a Spanner database
// handle, a worker pool, and a transaction state machine, and exposes
// statement execution as cold, lazily-subscribed values and sequences
// (see package lazy) instead of eagerly executed calls.
//
// One Conn corresponds to one logical Spanner connection. Connection
// pooling, SQL parsing and credential resolution are the responsibility
// of callers; this package consumes already-resolved configuration and
// already-built statements.
package r2dbc
