// Package chat composes the natural-language query pipeline: admission,
// schema context, prompt assembly, AI completion, SQL sandboxing, query
// execution and chart mapping.
//
// Design decisions:
//   - Stages run strictly sequentially within a request and any failure
//     short-circuits the rest; nothing is retried here. Retry policy,
//     if any, belongs to the caller.
//   - Collaborators sit behind narrow interfaces so the pipeline is
//     testable with fakes and stores no cross-request state of its own.
//     The only shared state lives in the rate limiter's counter store
//     and the pgx pool, both namespaced by store id.
//   - Admission is charged on attempt, not on success: a question that
//     later fails sandbox validation still consumed quota.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/storeql/storeql/ai"
	"github.com/storeql/storeql/chart"
	"github.com/storeql/storeql/db"
	"github.com/storeql/storeql/logger"
	"github.com/storeql/storeql/sandbox"
	"github.com/storeql/storeql/store"
)

// SchemaSource provides per-store metadata for prompt grounding.
type SchemaSource interface {
	SchemaContext(ctx context.Context, storeID string) (*store.SchemaContext, error)
}

// Executor runs sandbox-approved SQL.
type Executor interface {
	Execute(ctx context.Context, sql string, limit int, args ...any) (*db.QueryExecutionResult, error)
}

// Limiter admits or rejects a request before expensive work starts.
type Limiter interface {
	Allow(ctx context.Context, storeID string) error
}

// ChartMeta echoes the accepted chart intent back to the caller.
type ChartMeta struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// ChatResponse is the result of one answered question.
type ChatResponse struct {
	Answer      string           `json:"answer"`
	SQL         string           `json:"sql"`
	Rows        []map[string]any `json:"rows"`
	RowCount    int              `json:"rowCount"`
	DurationMs  int64            `json:"durationMs"`
	ChartSpec   *ChartMeta       `json:"chartSpec"`
	ChartConfig *chart.Result    `json:"chartConfig"`
}

// Pipeline is the orchestrator behind Ask.
type Pipeline struct {
	provider ai.Provider
	schema   SchemaSource
	executor Executor
	limiter  Limiter
	log      *logger.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(provider ai.Provider, schema SchemaSource, executor Executor, limiter Limiter, log *logger.Logger) *Pipeline {
	return &Pipeline{
		provider: provider,
		schema:   schema,
		executor: executor,
		limiter:  limiter,
		log:      log.With("component", "chat"),
	}
}

// Ask answers one free-text question about one store's data. It either
// succeeds once or fails once; no partial results are returned.
func (p *Pipeline) Ask(ctx context.Context, storeID string, question string) (*ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Message: "question must not be empty"}
	}
	if err := store.ValidateID(storeID); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	// Admission gate first: quota is spent before any expensive work.
	if err := p.limiter.Allow(ctx, storeID); err != nil {
		return nil, err
	}

	sc, err := p.schema.SchemaContext(ctx, storeID)
	if err != nil {
		return nil, err
	}

	prompt := ai.BuildPrompt(*sc)

	raw, err := p.provider.GenerateQuery(ctx, prompt, question)
	if err != nil {
		p.log.Error("AI completion failed", "store_id", storeID, "provider", p.provider.Name(), "error", err)
		return nil, &AIError{Cause: err}
	}

	result, err := ai.ParseQueryResult(raw)
	if err != nil {
		p.log.Error("AI reply unusable", "store_id", storeID, "provider", p.provider.Name(), "error", err)
		return nil, &AIError{Cause: err}
	}

	verdict := sandbox.Validate(result.SQL)
	if !verdict.Valid {
		p.log.Warn("AI SQL rejected by sandbox", "store_id", storeID, "violations", verdict.Errors)
		return nil, &ValidationError{Message: "generated SQL failed validation", Violations: verdict.Errors}
	}

	// The tenant key is bound by the server, never taken from the AI.
	result.Params = []any{storeID}

	execRes, err := p.executor.Execute(ctx, verdict.SQL, verdict.Limit, result.Params...)
	if err != nil {
		if errors.Is(err, db.ErrQueryTimeout) {
			p.log.Warn("query exceeded statement timeout", "store_id", storeID, "sql", verdict.SQL)
			return nil, &AIError{Cause: err}
		}
		return nil, err
	}

	resp := &ChatResponse{
		Answer:      result.Explanation,
		SQL:         verdict.SQL,
		Rows:        execRes.Rows,
		RowCount:    execRes.RowCount,
		DurationMs:  execRes.DurationMs,
		ChartConfig: chart.Build(result.ChartSpec, execRes),
	}
	if resp.Answer == "" {
		resp.Answer = "Here are the results for your question."
	}
	if result.ChartSpec != nil {
		resp.ChartSpec = &ChartMeta{Type: result.ChartSpec.Type, Title: result.ChartSpec.Title}
	}

	p.log.Info("question answered",
		"store_id", storeID,
		"rows", resp.RowCount,
		"duration_ms", resp.DurationMs,
		"chart", resp.ChartSpec != nil,
	)
	return resp, nil
}
