// executor.go runs sandbox-approved SQL and collects structured results.
//
// Only statements that already passed sandbox.Validate reach Execute;
// the executor itself never inspects or rewrites SQL and never
// interpolates values into the statement text — everything is bound
// positionally, with the tenant key always at $1.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/storeql/storeql/logger"
)

// ErrQueryTimeout marks an execution that exceeded the statement
// timeout, as opposed to any other execution failure. The orchestrator
// surfaces a specific "try a simpler question" message for it.
var ErrQueryTimeout = errors.New("query exceeded the statement timeout")

// pgQueryCanceled is the SQLSTATE Postgres reports when
// statement_timeout cancels a query.
const pgQueryCanceled = "57014"

// QueryExecutionResult is the structured outcome of one query.
type QueryExecutionResult struct {
	// Columns preserves the result's column order; Rows maps are
	// unordered by nature.
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"rowCount"`
	DurationMs int64            `json:"durationMs"`
	Truncated  bool             `json:"truncated"`
}

// poolQuerier is the slice of pgxpool.Pool the executor needs; tests
// substitute a fake.
type poolQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor runs validated SQL on the read-only pool.
type Executor struct {
	pool poolQuerier
	log  *logger.Logger
}

// NewExecutor creates an executor over the warehouse pool.
func NewExecutor(d *DB, log *logger.Logger) *Executor {
	return &Executor{pool: d.Pool, log: log.With("component", "executor")}
}

// Execute runs sql with the given positional args ($1 is always the
// tenant key) and collects up to limit rows. Rows is never nil; an
// empty result set is an empty slice. Truncated reports whether the
// result filled the LIMIT the sandbox applied.
func (e *Executor) Execute(ctx context.Context, sql string, limit int, args ...any) (*QueryExecutionResult, error) {
	start := time.Now()

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	columns, collected, err := collectRows(rows)
	if err != nil {
		return nil, classifyError(err)
	}

	res := &QueryExecutionResult{
		Columns:    columns,
		Rows:       collected,
		RowCount:   len(collected),
		DurationMs: time.Since(start).Milliseconds(),
		Truncated:  limit > 0 && len(collected) >= limit,
	}
	e.log.Debug("query executed", "rows", res.RowCount, "duration_ms", res.DurationMs, "truncated", res.Truncated)
	return res, nil
}

// collectRows drains a pgx result into column-keyed maps, keeping the
// column order alongside.
func collectRows(rows pgx.Rows) ([]string, []map[string]any, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	collected := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, collected, nil
}

// classifyError distinguishes "query took too long" from every other
// execution failure.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled {
		return fmt.Errorf("%w: %s", ErrQueryTimeout, pgErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrQueryTimeout, err)
	}
	return fmt.Errorf("query execution: %w", err)
}
