package ai

import (
	"context"
	"strings"
	"time"
)

// Placeholder is a mock AI provider for development. It answers every
// question with a canned revenue query so the full pipeline (sandbox,
// executor, chart mapper) can run without credentials.
type Placeholder struct{}

var _ Provider = (*Placeholder)(nil)

func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

func (p *Placeholder) Name() string {
	return "placeholder"
}

func (p *Placeholder) GenerateQuery(ctx context.Context, prompt string, question string) (string, error) {
	// Simulate network latency
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "product"):
		return `{
  "sql": "SELECT oi.product_name, ROUND(SUM(oi.total), 2) AS revenue FROM order_items oi JOIN orders o ON o.order_id = oi.order_id AND o.store_id = $1 WHERE oi.store_id = $1 AND o.status = 'completed' GROUP BY oi.product_name ORDER BY revenue DESC LIMIT 10",
  "explanation": "Your top products by completed-order revenue.",
  "chartSpec": {"type": "bar", "title": "Top products by revenue", "xLabel": "Product", "yLabel": "Revenue", "dataKey": "revenue", "labelKey": "product_name"}
}`, nil
	default:
		return `{
  "sql": "SELECT ROUND(SUM(o.total), 2) AS total_revenue FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' LIMIT 1",
  "explanation": "Your total revenue across all completed orders.",
  "chartSpec": null
}`, nil
	}
}
