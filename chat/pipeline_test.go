package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeql/storeql/ai"
	"github.com/storeql/storeql/db"
	"github.com/storeql/storeql/logger"
	"github.com/storeql/storeql/ratelimit"
	"github.com/storeql/storeql/store"
)

type fakeProvider struct {
	reply string
	err   error

	gotPrompt   string
	gotQuestion string
}

func (f *fakeProvider) GenerateQuery(ctx context.Context, prompt, question string) (string, error) {
	f.gotPrompt = prompt
	f.gotQuestion = question
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type fakeSchema struct {
	err error
}

func (f *fakeSchema) SchemaContext(ctx context.Context, storeID string) (*store.SchemaContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.SchemaContext{StoreID: storeID, Currency: "USD", TotalOrders: 10}, nil
}

type fakeExecutor struct {
	result *db.QueryExecutionResult
	err    error

	gotSQL   string
	gotLimit int
	gotArgs  []any
}

func (f *fakeExecutor) Execute(ctx context.Context, sql string, limit int, args ...any) (*db.QueryExecutionResult, error) {
	f.gotSQL = sql
	f.gotLimit = limit
	f.gotArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLimiter struct {
	err   error
	calls int
}

func (f *fakeLimiter) Allow(ctx context.Context, storeID string) error {
	f.calls++
	return f.err
}

const revenueReply = `{
  "sql": "SELECT SUM(total_amount) AS total_revenue FROM orders WHERE store_id = $1 LIMIT 100",
  "explanation": "Total revenue across all orders.",
  "chartSpec": null
}`

func revenueResult() *db.QueryExecutionResult {
	return &db.QueryExecutionResult{
		Columns:    []string{"total_revenue"},
		Rows:       []map[string]any{{"total_revenue": "45250.00"}},
		RowCount:   1,
		DurationMs: 12,
	}
}

func newTestPipeline(p *fakeProvider, s *fakeSchema, e *fakeExecutor, l *fakeLimiter) *Pipeline {
	return NewPipeline(p, s, e, l, logger.NewNop())
}

func TestAskHappyPathScalar(t *testing.T) {
	provider := &fakeProvider{reply: revenueReply}
	executor := &fakeExecutor{result: revenueResult()}
	limiter := &fakeLimiter{}
	p := newTestPipeline(provider, &fakeSchema{}, executor, limiter)

	resp, err := p.Ask(context.Background(), "store-a", "What is my total revenue?")
	require.NoError(t, err)

	assert.Equal(t, "Total revenue across all orders.", resp.Answer)
	assert.Equal(t, "SELECT SUM(total_amount) AS total_revenue FROM orders WHERE store_id = $1 LIMIT 100", resp.SQL)
	// Rows pass through verbatim.
	assert.Equal(t, []map[string]any{{"total_revenue": "45250.00"}}, resp.Rows)
	assert.Equal(t, 1, resp.RowCount)
	// No chart spec means no chart config.
	assert.Nil(t, resp.ChartSpec)
	assert.Nil(t, resp.ChartConfig)

	// The executor received the tenant id as the only parameter.
	assert.Equal(t, []any{"store-a"}, executor.gotArgs)
	assert.Equal(t, 100, executor.gotLimit)
	assert.Equal(t, 1, limiter.calls)
	assert.Equal(t, "What is my total revenue?", provider.gotQuestion)
	assert.Contains(t, provider.gotPrompt, "# Warehouse schema")
}

func TestAskBuildsChart(t *testing.T) {
	reply := `{
	  "sql": "SELECT p.name AS product_name, SUM(oi.quantity) AS units FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE oi.store_id = $1 GROUP BY p.name ORDER BY units DESC LIMIT 5",
	  "explanation": "Top products by units sold.",
	  "chartSpec": {"type": "BAR", "title": "Top products", "dataKey": "units", "labelKey": "product_name"}
	}`
	executor := &fakeExecutor{result: &db.QueryExecutionResult{
		Columns:  []string{"product_name", "units"},
		Rows:     []map[string]any{{"product_name": "Widget", "units": int64(40)}},
		RowCount: 1,
	}}
	p := newTestPipeline(&fakeProvider{reply: reply}, &fakeSchema{}, executor, &fakeLimiter{})

	resp, err := p.Ask(context.Background(), "store-a", "What are my top products?")
	require.NoError(t, err)

	require.NotNil(t, resp.ChartSpec)
	assert.Equal(t, "bar", resp.ChartSpec.Type)
	assert.Equal(t, "Top products", resp.ChartSpec.Title)
	require.NotNil(t, resp.ChartConfig)
	require.NotNil(t, resp.ChartConfig.Config)
	assert.Equal(t, []float64{40}, resp.ChartConfig.Config.Datasets[0].Data)
}

func TestAskEmptyQuestion(t *testing.T) {
	limiter := &fakeLimiter{}
	p := newTestPipeline(&fakeProvider{}, &fakeSchema{}, &fakeExecutor{}, limiter)

	_, err := p.Ask(context.Background(), "store-a", "   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// Rejected before any quota is spent.
	assert.Equal(t, 0, limiter.calls)
}

func TestAskInvalidStoreID(t *testing.T) {
	p := newTestPipeline(&fakeProvider{}, &fakeSchema{}, &fakeExecutor{}, &fakeLimiter{})

	_, err := p.Ask(context.Background(), "store a; --", "revenue?")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAskRateLimited(t *testing.T) {
	limiter := &fakeLimiter{err: &ratelimit.RateLimitError{RetryAfter: 30 * time.Second}}
	provider := &fakeProvider{reply: revenueReply}
	p := newTestPipeline(provider, &fakeSchema{}, &fakeExecutor{}, limiter)

	_, err := p.Ask(context.Background(), "store-a", "revenue?")
	var rerr *ratelimit.RateLimitError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 30, rerr.RetryAfterSeconds())
	// The AI is never consulted for a rejected request.
	assert.Empty(t, provider.gotQuestion)
}

func TestAskProviderFailure(t *testing.T) {
	p := newTestPipeline(&fakeProvider{err: errors.New("upstream 500")}, &fakeSchema{}, &fakeExecutor{}, &fakeLimiter{})

	_, err := p.Ask(context.Background(), "store-a", "revenue?")
	var aerr *AIError
	require.ErrorAs(t, err, &aerr)
	// The user-facing message never echoes the upstream error.
	assert.NotContains(t, err.Error(), "upstream 500")
}

func TestAskUnparseableReply(t *testing.T) {
	p := newTestPipeline(&fakeProvider{reply: "I cannot answer that."}, &fakeSchema{}, &fakeExecutor{}, &fakeLimiter{})

	_, err := p.Ask(context.Background(), "store-a", "revenue?")
	var aerr *AIError
	require.ErrorAs(t, err, &aerr)
}

func TestAskSandboxRejection(t *testing.T) {
	reply := `{
	  "sql": "DELETE FROM orders WHERE store_id = $1",
	  "explanation": "Removing orders.",
	  "chartSpec": null
	}`
	executor := &fakeExecutor{}
	p := newTestPipeline(&fakeProvider{reply: reply}, &fakeSchema{}, executor, &fakeLimiter{})

	_, err := p.Ask(context.Background(), "store-a", "delete everything")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Violations)
	// Nothing reaches the database.
	assert.Empty(t, executor.gotSQL)
}

func TestAskQueryTimeout(t *testing.T) {
	p := newTestPipeline(
		&fakeProvider{reply: revenueReply},
		&fakeSchema{},
		&fakeExecutor{err: db.ErrQueryTimeout},
		&fakeLimiter{},
	)

	_, err := p.Ask(context.Background(), "store-a", "revenue?")
	var aerr *AIError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, db.ErrQueryTimeout)
}

func TestAskExecutorFailurePassesThrough(t *testing.T) {
	dbErr := errors.New("connection reset")
	p := newTestPipeline(
		&fakeProvider{reply: revenueReply},
		&fakeSchema{},
		&fakeExecutor{err: dbErr},
		&fakeLimiter{},
	)

	_, err := p.Ask(context.Background(), "store-a", "revenue?")
	require.Error(t, err)
	var aerr *AIError
	assert.False(t, errors.As(err, &aerr))
	assert.ErrorIs(t, err, dbErr)
}

func TestAskAppendsLimitToUnlimitedSQL(t *testing.T) {
	reply := `{
	  "sql": "SELECT status, COUNT(*) AS n FROM orders WHERE store_id = $1 GROUP BY status",
	  "explanation": "Orders by status.",
	  "chartSpec": null
	}`
	executor := &fakeExecutor{result: &db.QueryExecutionResult{
		Columns:  []string{"status", "n"},
		Rows:     []map[string]any{},
		RowCount: 0,
	}}
	p := newTestPipeline(&fakeProvider{reply: reply}, &fakeSchema{}, executor, &fakeLimiter{})

	_, err := p.Ask(context.Background(), "store-a", "orders by status")
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) AS n FROM orders WHERE store_id = $1 GROUP BY status LIMIT 100", executor.gotSQL)
	assert.Equal(t, 100, executor.gotLimit)
}
