// Package store computes per-store metadata for grounding AI prompts.
//
// The schema context is recomputed on every request: freshness matters
// more than latency here, and the aggregates are cheap store-scoped
// reads. Nothing is cached or persisted.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeql/storeql/db"
	"github.com/storeql/storeql/logger"
)

// idPattern is the canonical store identifier format. Anything else is
// rejected before any I/O happens.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateID checks that storeID matches the canonical identifier
// format.
func ValidateID(storeID string) error {
	if !idPattern.MatchString(storeID) {
		return fmt.Errorf("invalid store id %q", storeID)
	}
	return nil
}

// SchemaContext is the live per-store metadata injected into the AI
// prompt. Owned transiently by one request; never persisted.
type SchemaContext struct {
	StoreID           string
	Currency          string
	TotalOrders       int64
	TotalProducts     int64
	TotalCustomers    int64
	TotalCategories   int64
	EarliestOrderDate *time.Time
	LatestOrderDate   *time.Time
}

// Provider computes SchemaContext from the warehouse.
type Provider struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewProvider creates a schema context provider over the warehouse pool.
func NewProvider(d *db.DB, log *logger.Logger) *Provider {
	return &Provider{pool: d.Pool, log: log.With("component", "schema_context")}
}

// SchemaContext gathers the store's aggregates. Every read is scoped to
// the requesting store; an unknown store yields zero counts, not an
// error.
func (p *Provider) SchemaContext(ctx context.Context, storeID string) (*SchemaContext, error) {
	if err := ValidateID(storeID); err != nil {
		return nil, err
	}

	sc := &SchemaContext{StoreID: storeID, Currency: "USD"}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"orders", &sc.TotalOrders},
		{"products", &sc.TotalProducts},
		{"customers", &sc.TotalCustomers},
		{"categories", &sc.TotalCategories},
	}
	for _, c := range counts {
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE store_id = $1", c.table)
		if err := p.pool.QueryRow(ctx, q, storeID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	err := p.pool.QueryRow(ctx,
		"SELECT MIN(created_at), MAX(created_at) FROM orders WHERE store_id = $1",
		storeID,
	).Scan(&sc.EarliestOrderDate, &sc.LatestOrderDate)
	if err != nil {
		return nil, fmt.Errorf("order date range: %w", err)
	}

	// Most recent order decides the display currency; USD when the
	// store has no orders yet.
	var currency *string
	err = p.pool.QueryRow(ctx,
		"SELECT currency FROM orders WHERE store_id = $1 ORDER BY created_at DESC LIMIT 1",
		storeID,
	).Scan(&currency)
	if err == nil && currency != nil && *currency != "" {
		sc.Currency = *currency
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store currency: %w", err)
	}

	p.log.Debug("schema context computed",
		"store_id", storeID,
		"orders", sc.TotalOrders,
		"products", sc.TotalProducts,
		"customers", sc.TotalCustomers,
	)
	return sc, nil
}
