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
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrClosed names use of a Conn after Close. Conn's methods do not check
// whether the connection is closed and never return it.
var ErrClosed = errors.New("r2dbc: connection is closed")

// txStateName is the stable, testable label for a transaction-manager
// state, used in TransactionInProgressError messages.
type txStateName string

const (
	txStateReadWrite txStateName = "read-write"
	txStateReadOnly  txStateName = "read-only"
)

// TransactionInProgressError is returned synchronously by beginTransaction
// or beginReadonlyTransaction when a transaction of the given kind is
// already active on the connection. Nesting is never allowed.
type TransactionInProgressError struct {
	// Kind is "read-write" or "read-only", naming the transaction that is
	// already in progress.
	Kind string
}

func (e *TransactionInProgressError) Error() string {
	return e.Kind
}

func newTransactionInProgressError(kind txStateName) error {
	return &TransactionInProgressError{Kind: string(kind)}
}

// InvalidExecutionStateError is returned when a statement is routed
// against a transaction state that forbids it (DML in a read-only
// transaction, or DML outside a transaction with autocommit disabled).
// The state is checked, and the error returned, when the statement's lazy
// value is subscribed to, not when RunDmlStatement or RunBatchDml is
// called.
type InvalidExecutionStateError struct {
	Message string
}

func (e *InvalidExecutionStateError) Error() string {
	return e.Message
}

func newInvalidExecutionStateError(format string, args ...any) error {
	return &InvalidExecutionStateError{Message: fmt.Sprintf(format, args...)}
}

// invalidArgument mirrors driver.go's extractConnectorConfig: synchronous
// configuration errors surface as ordinary Spanner errors so that callers
// can keep using spanner.ErrCode/status.Code uniformly regardless of
// whether the error originated in this adapter or in the Spanner client.
func invalidArgument(format string, args ...any) error {
	return spanner.ToSpannerError(status.Errorf(codes.InvalidArgument, format, args...))
}

// IsTransactionInProgress reports whether err is a TransactionInProgressError,
// and if so, which kind of transaction was already active.
func IsTransactionInProgress(err error) (kind string, ok bool) {
	var tErr *TransactionInProgressError
	if errors.As(err, &tErr) {
		return tErr.Kind, true
	}
	return "", false
}
