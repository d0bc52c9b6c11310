package db

import (
	"context"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeql/storeql/logger"
)

// fakeRows implements pgx.Rows over canned values.
type fakeRows struct {
	columns []string
	values  [][]any
	pos     int
	err     error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Scan(dest ...any) error                       { return errors.New("not implemented") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}
func (r *fakeRows) Next() bool {
	if r.pos < len(r.values) {
		r.pos++
		return true
	}
	return false
}
func (r *fakeRows) Values() ([]any, error) { return r.values[r.pos-1], nil }

type fakePool struct {
	rows pgx.Rows
	err  error
	sql  string
	args []any
}

func (p *fakePool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.sql = sql
	p.args = args
	if p.err != nil {
		return nil, p.err
	}
	return p.rows, nil
}

func newTestExecutor(pool poolQuerier) *Executor {
	return &Executor{pool: pool, log: logger.NewNop()}
}

func TestExecuteCollectsRowsInOrder(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{
		columns: []string{"product_name", "revenue"},
		values: [][]any{
			{"Widget", "1200.00"},
			{"Gadget", "800.50"},
		},
	}}
	e := newTestExecutor(pool)

	res, err := e.Execute(context.Background(), "SELECT product_name, revenue FROM x WHERE store_id = $1 LIMIT 100", 100, "store-a")
	require.NoError(t, err)

	assert.Equal(t, []string{"product_name", "revenue"}, res.Columns)
	require.Equal(t, 2, res.RowCount)
	assert.Equal(t, "Widget", res.Rows[0]["product_name"])
	assert.Equal(t, "800.50", res.Rows[1]["revenue"])
	assert.False(t, res.Truncated)
	assert.Equal(t, []any{"store-a"}, pool.args)
}

func TestExecuteEmptyResultIsEmptySlice(t *testing.T) {
	e := newTestExecutor(&fakePool{rows: &fakeRows{columns: []string{"total"}}})

	res, err := e.Execute(context.Background(), "SELECT total FROM orders WHERE store_id = $1 LIMIT 100", 100, "store-a")
	require.NoError(t, err)

	assert.NotNil(t, res.Rows)
	assert.Len(t, res.Rows, 0)
	assert.Equal(t, 0, res.RowCount)
}

func TestExecuteTruncationFlag(t *testing.T) {
	rows := &fakeRows{
		columns: []string{"total"},
		values:  [][]any{{1}, {2}, {3}},
	}
	e := newTestExecutor(&fakePool{rows: rows})

	res, err := e.Execute(context.Background(), "SELECT total FROM orders WHERE store_id = $1 LIMIT 3", 3, "store-a")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
}

func TestExecuteClassifiesStatementTimeout(t *testing.T) {
	e := newTestExecutor(&fakePool{err: &pgconn.PgError{
		Code:    pgQueryCanceled,
		Message: "canceling statement due to statement timeout",
	}})

	_, err := e.Execute(context.Background(), "SELECT 1 WHERE store_id = $1 LIMIT 100", 100, "store-a")
	assert.ErrorIs(t, err, ErrQueryTimeout)
}

func TestExecuteClassifiesDeadline(t *testing.T) {
	e := newTestExecutor(&fakePool{err: context.DeadlineExceeded})

	_, err := e.Execute(context.Background(), "SELECT 1 WHERE store_id = $1 LIMIT 100", 100, "store-a")
	assert.ErrorIs(t, err, ErrQueryTimeout)
}

func TestExecuteOtherErrorsAreNotTimeouts(t *testing.T) {
	e := newTestExecutor(&fakePool{err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}})

	_, err := e.Execute(context.Background(), "SELECT 1 WHERE store_id = $1 LIMIT 100", 100, "store-a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQueryTimeout)
}
