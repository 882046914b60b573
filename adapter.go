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
	"fmt"
	"log/slog"
	"sync/atomic"

	"cloud.google.com/go/spanner"
	adminapi "cloud.google.com/go/spanner/admin/database/apiv1"
	adminpb "cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/api/iterator"

	"github.com/ttomsu/cloud-spanner-r2dbc/lazy"
)

// Conn is the per-connection adapter described in spec section 4.E. It
// owns a shared Spanner database client, a shared database-admin client,
// an owned worker pool, and an exclusively owned transaction manager, and
// routes every statement to the right Spanner primitive based on
// statement kind and current transaction state.
type Conn struct {
	config      Config
	client      *spanner.Client
	adminClient *adminapi.DatabaseAdminClient
	executor    *executor
	txManager   *transactionManager
	logger      *slog.Logger

	autoCommit atomic.Bool
	closed     atomic.Bool
}

// NewConn constructs a Conn from a resolved Config. The returned Conn
// owns the worker pool it creates; Close releases it.
func NewConn(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Project == "" || cfg.Instance == "" || cfg.Database == "" {
		return nil, invalidArgument("project, instance and database are all required, got %q/%q/%q", cfg.Project, cfg.Instance, cfg.Database)
	}
	client, err := spanner.NewClientWithConfig(ctx, databasePath(cfg), spanner.ClientConfig{}, cfg.ClientOptions...)
	if err != nil {
		return nil, err
	}
	adminClient, err := adminapi.NewDatabaseAdminClient(ctx, cfg.ClientOptions...)
	if err != nil {
		client.Close()
		return nil, err
	}

	ex := newExecutor(cfg.threadPoolSize())
	c := &Conn{
		config:      cfg,
		client:      client,
		adminClient: adminClient,
		executor:    ex,
		logger:      cfg.logger(),
	}
	c.txManager = newTransactionManager(client, ex, c.logger)
	c.autoCommit.Store(true)
	return c, nil
}

func databasePath(cfg Config) string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", cfg.Project, cfg.Instance, cfg.Database)
}

// withTransactionManager swaps in a transaction manager built against a
// test double. It exists purely as a test seam, the same role the Java
// adapter's @VisibleForTesting setTxnManager plays.
func (c *Conn) withTransactionManager(tm *transactionManager) {
	c.txManager = tm
}

// BeginTransaction starts a read-write transaction. See
// transactionManager.beginTransaction for the exclusion rules.
func (c *Conn) BeginTransaction() (lazy.Value[struct{}], error) {
	return c.txManager.beginTransaction()
}

// BeginReadonlyTransaction starts a read-only transaction with the given
// staleness bound. See transactionManager.beginReadonlyTransaction for
// the exclusion rules.
func (c *Conn) BeginReadonlyTransaction(bound spanner.TimestampBound) (lazy.Value[struct{}], error) {
	return c.txManager.beginReadonlyTransaction(bound)
}

// CommitTransaction commits whatever transaction is currently active, or
// no-ops if the connection is idle.
func (c *Conn) CommitTransaction() lazy.Value[struct{}] {
	return c.txManager.commitTransaction()
}

// Rollback rolls back whatever transaction is currently active, or
// no-ops if the connection is idle.
func (c *Conn) Rollback() lazy.Value[struct{}] {
	return c.txManager.rollbackTransaction()
}

// Close releases the transaction manager's native handles and shuts down
// the worker pool. It is idempotent: a second Close is a no-op, addressing
// the double-release hazard the source design flags as an open question.
func (c *Conn) Close() lazy.Value[struct{}] {
	return lazy.NewValue[struct{}](inlineDispatcher{}, func(ctx context.Context) (struct{}, error) {
		if !c.closed.CompareAndSwap(false, true) {
			return struct{}{}, nil
		}
		c.logger.Log(ctx, LevelNotice, "closing connection")
		c.txManager.clearTransactionManager()
		c.executor.shutdownNow()
		return struct{}{}, nil
	})
}

// HealthCheck runs SELECT 1 through the ordinary select path (the same
// one any query uses, not a bespoke ping) and reports whether it
// succeeded. It never fails: Spanner errors are logged and turned into
// a false result, mirroring the source design's onErrorResume.
func (c *Conn) HealthCheck() lazy.Value[bool] {
	// The supplier itself runs inline, not on c.executor: it blocks
	// ranging over a Sequence whose drain goroutine is dispatched onto
	// that same pool (runSelectInto -> lazy.Rows), and occupying a worker
	// here as well would starve that drain on a thread_pool_size == 1
	// connection.
	return lazy.NewValue[bool](inlineDispatcher{}, func(ctx context.Context) (bool, error) {
		if c.executor.isShutdown() || c.closed.Load() {
			return false, nil
		}
		seq := c.runSelectInto(ctx, c.txManager.getReadContext(), NewStatement("SELECT 1"))
		sawRow := false
		for _, err := range seq {
			if err != nil {
				c.logger.Warn("Cloud Spanner healthcheck failed", "error", err)
				return false, nil
			}
			sawRow = true
		}
		return sawRow, nil
	})
}

// LocalHealthcheck is a cheap, local-only liveness check: it never talks
// to Spanner, it only reports whether the worker pool is still running.
func (c *Conn) LocalHealthcheck() lazy.Value[bool] {
	return lazy.NewValue[bool](inlineDispatcher{}, func(context.Context) (bool, error) {
		return !c.executor.isShutdown() && !c.closed.Load(), nil
	})
}

// IsAutoCommit reports the current autocommit flag.
func (c *Conn) IsAutoCommit() bool {
	return c.autoCommit.Load()
}

// SetAutoCommit changes the autocommit flag. If a transaction is active
// and the value is actually changing, the active transaction is
// committed first.
func (c *Conn) SetAutoCommit(autoCommit bool) lazy.Value[struct{}] {
	return lazy.NewValue[struct{}](inlineDispatcher{}, func(ctx context.Context) (struct{}, error) {
		if c.autoCommit.Load() != autoCommit && c.txManager.isInTransaction() {
			if _, err := c.txManager.commitTransaction().Get(ctx); err != nil {
				return struct{}{}, err
			}
		}
		c.autoCommit.Store(autoCommit)
		return struct{}{}, nil
	})
}

// RunSelectStatement streams the rows of a SELECT statement. If a
// read-write transaction is active, the query runs inside it; otherwise
// it runs against whatever read context the transaction manager
// currently exposes (a read-only transaction, or a fresh single-use
// snapshot).
func (c *Conn) RunSelectStatement(ctx context.Context, stmt Statement) lazy.Sequence[Row] {
	return func(yield func(Row, error) bool) {
		if c.txManager.isInReadWriteTransaction() {
			err := c.txManager.runInTransaction(func(tx rwTransaction) error {
				c.runSelectInto(ctx, tx, stmt)(yield)
				return nil
			})
			if err != nil {
				yield(Row{}, err)
			}
			return
		}
		c.runSelectInto(ctx, c.txManager.getReadContext(), stmt)(yield)
	}
}

func (c *Conn) runSelectInto(ctx context.Context, rc readContext, stmt Statement) lazy.Sequence[Row] {
	it := rc.QueryWithOptions(ctx, stmt.native(), c.spannerQueryOptions())
	cur := &rowIteratorCursor{it: it}
	return lazy.Rows[Row](ctx, c.executor, cur)
}

// dmlTransaction is the common surface *spanner.ReadWriteStmtBasedTransaction
// and *spanner.ReadWriteTransaction share, letting runBatchDmlInternal
// route to either a caller-managed or an autocommit-managed transaction
// through the same code path, mirroring the Java adapter's single
// `Function<TransactionContext, ApiFuture<T>>` parameter.
type dmlTransaction interface {
	Update(ctx context.Context, stmt spanner.Statement) (int64, error)
	BatchUpdate(ctx context.Context, stmts []spanner.Statement) ([]int64, error)
}

func runBatchDmlInternal[T any](c *Conn, ctx context.Context, op func(tx dmlTransaction) (T, error)) (T, error) {
	var zero T
	if c.txManager.isInReadonlyTransaction() {
		return zero, newInvalidExecutionStateError("Cannot run DML statements in a readonly transaction.")
	}
	if !c.IsAutoCommit() && !c.txManager.isInReadWriteTransaction() {
		return zero, newInvalidExecutionStateError("Cannot run DML statements outside of a transaction when autocommit is set to false.")
	}
	if c.txManager.isInReadWriteTransaction() {
		var result T
		err := c.txManager.runInTransaction(func(tx rwTransaction) error {
			var err error
			result, err = op(tx)
			return err
		})
		return result, err
	}
	var result T
	_, err := c.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		var err error
		result, err = op(txn)
		return err
	})
	return result, err
}

// RunDmlStatement executes a single DML statement and reports its
// updated-row count. Outside any transaction it uses an autocommit
// read-write transaction; see runBatchDmlInternal for the full routing
// rules.
func (c *Conn) RunDmlStatement(stmt Statement) *Result {
	native := stmt.native()
	rowsUpdated := lazy.NewValue(c.executor, func(ctx context.Context) (int64, error) {
		return runBatchDmlInternal(c, ctx, func(tx dmlTransaction) (int64, error) {
			return tx.Update(ctx, native)
		})
	})
	return newDMLResult(rowsUpdated)
}

// RunBatchDml executes a batch of DML statements and reports each
// statement's updated-row count, in order.
func (c *Conn) RunBatchDml(stmts []Statement) lazy.Value[[]int64] {
	natives := make([]spanner.Statement, len(stmts))
	for i, s := range stmts {
		natives[i] = s.native()
	}
	return lazy.NewValue(c.executor, func(ctx context.Context) ([]int64, error) {
		return runBatchDmlInternal(c, ctx, func(tx dmlTransaction) ([]int64, error) {
			return tx.BatchUpdate(ctx, natives)
		})
	})
}

// RunDdlStatement applies a single DDL statement through the
// database-admin client. DDL does not participate in transactions and
// never affects the transaction manager's state.
func (c *Conn) RunDdlStatement(ddl string) lazy.Value[struct{}] {
	return lazy.NewValue[struct{}](c.executor, func(ctx context.Context) (struct{}, error) {
		op, err := c.adminClient.UpdateDatabaseDdl(ctx, &adminpb.UpdateDatabaseDdlRequest{
			Database:   databasePath(c.config),
			Statements: []string{ddl},
		})
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, op.Wait(ctx)
	})
}

// QueryOptions returns the immutable query options (currently just the
// optimizer version, if one was configured) applied to every statement
// run by this connection.
func (c *Conn) QueryOptions() *sppb.ExecuteSqlRequest_QueryOptions {
	return c.spannerQueryOptions().Options
}

func (c *Conn) spannerQueryOptions() spanner.QueryOptions {
	opts := &sppb.ExecuteSqlRequest_QueryOptions{}
	if c.config.OptimizerVersion != "" {
		opts.OptimizerVersion = c.config.OptimizerVersion
	}
	return spanner.QueryOptions{Options: opts}
}

// rowIteratorCursor adapts a *spanner.RowIterator to lazy.Cursor[Row].
// The source design's three-way DONE/NOT_READY/OK callback collapses to
// DONE/OK/error here because RowIterator.Next is blocking rather than
// callback-driven: see the doc comment on lazy.Cursor for why NOT_READY
// has no Go analogue.
type rowIteratorCursor struct {
	it rowIterator
}

func (c *rowIteratorCursor) Next(context.Context) (Row, bool, error) {
	row, err := c.it.Next()
	if err == iterator.Done {
		return Row{}, true, nil
	}
	if err != nil {
		return Row{}, false, err
	}
	return newRow(row), false, nil
}

func (c *rowIteratorCursor) Cancel() {
	c.it.Stop()
}
