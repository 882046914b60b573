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
	"io"
	"log/slog"
	"runtime"

	"google.golang.org/api/option"
)

// Config is the resolved, immutable connection configuration consumed by
// NewConn. Building a Config from a connection string, resolving
// credentials, and assembling option.ClientOption values are the
// responsibility of the caller; this package never parses a DSN.
type Config struct {
	// Project, Instance and Database identify the Spanner database this
	// connection talks to.
	Project  string
	Instance string
	Database string

	// ThreadPoolSize bounds the worker pool used to dispatch every bridge
	// callback and every autocommit statement. Zero selects
	// runtime.NumCPU(), mirroring the Java adapter's default.
	ThreadPoolSize int

	// OptimizerVersion, if non-empty, is carried into the QueryOptions
	// used for every statement executed by the resulting Conn.
	OptimizerVersion string

	// ClientOptions are forwarded verbatim to spanner.NewClientWithConfig
	// and to the database-admin client constructor. Credential material
	// (CredentialsFile, GoogleCredentials, OAuthToken) is expected to
	// already be encoded here by the caller, e.g. via
	// option.WithCredentialsFile or option.WithTokenSource.
	ClientOptions []option.ClientOption

	// Logger receives structured diagnostics from the connection. A
	// noop logger is used if nil.
	Logger *slog.Logger
}

func (c Config) threadPoolSize() int {
	if c.ThreadPoolSize > 0 {
		return c.ThreadPoolSize
	}
	return runtime.NumCPU()
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return noopLogger
}

// LevelNotice is the level this package uses for chatty-but-not-Info
// diagnostics (read-write transaction begin, connection close), one step below
// slog.LevelInfo so it stays quiet against a caller's default logger.
const LevelNotice = slog.LevelInfo - 1

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
