// prompts.go assembles the instruction text for the AI collaborator.
//
// BuildPrompt is deterministic and side-effect-free: the same schema
// context always produces byte-identical prompt text, so prompt output
// is reproducible and testable independent of any provider.
//
// The prompt concatenates, in fixed order: the static warehouse schema
// catalogue, the live per-store metadata, the versioned safety rules,
// the machine-readable response contract, and the worked example
// library.
package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/storeql/storeql/store"
)

// promptVersion tags the safety-rule text so prompt changes are
// traceable in logs.
const promptVersion = "2026-02"

const schemaDescription = `# Warehouse schema (PostgreSQL)

All tables are multi-tenant: every row carries a store_id column and every
query must filter on it.

## orders
- order_id bigint, primary key
- store_id text
- order_number text, human-facing order reference
- status text, one of: completed, processing, pending, cancelled, refunded
- total numeric, grand total including tax and shipping
- subtotal numeric, item total before discounts
- discount_total numeric
- shipping_total numeric
- tax_total numeric
- currency text, ISO 4217 code
- customer_id bigint, references customers
- created_at timestamptz

## order_items
- order_item_id bigint, primary key
- store_id text
- order_id bigint, references orders
- product_id bigint, references products
- product_name text, denormalized product name at purchase time
- quantity integer
- subtotal numeric
- total numeric, line total after discounts

## products
- product_id bigint, primary key
- store_id text
- name text
- sku text
- price numeric, current list price
- stock_quantity integer
- category_id bigint, references categories
- created_at timestamptz

## customers
- customer_id bigint, primary key
- store_id text
- email_hash text, pre-hashed identifier. PII: must never be selected.
- city text
- country text, ISO 3166-1 alpha-2 code
- orders_count integer
- total_spent numeric
- first_order_at timestamptz
- created_at timestamptz

## categories
- category_id bigint, primary key
- store_id text
- name text`

const safetyRules = `# Safety rules (version ` + promptVersion + `)

1. Every table you reference must be filtered by store_id = $1. The $1
   parameter is the requesting store's id and is bound by the server.
2. Generate exactly one SELECT statement. Never generate INSERT, UPDATE,
   DELETE, DDL, or any other statement type.
3. Always include a LIMIT clause of at most 1000 rows. Use LIMIT 100 when
   the user does not ask for a specific number.
4. Every JOIN condition must also carry the store_id = $1 filter for the
   joined table.
5. Never select raw PII columns. In particular, customers.email_hash must
   never appear in a select list.
6. Round monetary values to 2 decimals with ROUND(expr, 2).
7. Include a meaningful ORDER BY so results are stable and useful.
8. Alias tables (o for orders, oi for order_items, p for products, c for
   customers, cat for categories) and qualify every column.
9. Do not use semicolons, SQL comments, UNION, or common table expressions.
10. Only use the tables and columns listed in the schema above.`

const responseContract = `# Response format

Reply with a single JSON object and nothing else. The object must have
exactly these three fields:

{
  "sql": "the SELECT statement, using $1 for the store id",
  "explanation": "one or two sentences describing the result in plain language",
  "chartSpec": null or {
    "type": "bar" | "line" | "pie" | "doughnut" | "table",
    "title": "chart title",
    "xLabel": "optional x axis label",
    "yLabel": "optional y axis label",
    "dataKey": "result column holding the numeric values",
    "labelKey": "result column holding the labels"
  }
}

Use chartSpec only when a chart genuinely helps; otherwise set it to null.`

// promptExample is one worked question -> SQL pair used purely as
// in-context guidance.
type promptExample struct {
	Question string
	SQL      string
}

// exampleLibrary spans the four question categories the assistant sees
// most: revenue, product, customer and order analytics.
var exampleLibrary = []promptExample{
	// Revenue
	{
		"What is my total revenue?",
		"SELECT ROUND(SUM(o.total), 2) AS total_revenue FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' LIMIT 1",
	},
	{
		"What was my revenue last month?",
		"SELECT ROUND(SUM(o.total), 2) AS revenue FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' AND o.created_at >= date_trunc('month', now()) - interval '1 month' AND o.created_at < date_trunc('month', now()) LIMIT 1",
	},
	{
		"Show monthly revenue for the last 12 months",
		"SELECT to_char(date_trunc('month', o.created_at), 'YYYY-MM') AS month, ROUND(SUM(o.total), 2) AS revenue FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' AND o.created_at >= now() - interval '12 months' GROUP BY month ORDER BY month LIMIT 12",
	},
	{
		"How much revenue came from shipping fees this year?",
		"SELECT ROUND(SUM(o.shipping_total), 2) AS shipping_revenue FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' AND o.created_at >= date_trunc('year', now()) LIMIT 1",
	},
	{
		"How much did I lose to refunds this quarter?",
		"SELECT ROUND(SUM(o.total), 2) AS refunded_total FROM orders o WHERE o.store_id = $1 AND o.status = 'refunded' AND o.created_at >= date_trunc('quarter', now()) LIMIT 1",
	},
	{
		"What is my average order value?",
		"SELECT ROUND(AVG(o.total), 2) AS average_order_value FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' LIMIT 1",
	},
	{
		"Compare weekday revenue",
		"SELECT to_char(o.created_at, 'Day') AS weekday, ROUND(SUM(o.total), 2) AS revenue FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' GROUP BY weekday, EXTRACT(isodow FROM o.created_at) ORDER BY EXTRACT(isodow FROM o.created_at) LIMIT 7",
	},

	// Products
	{
		"What are my top 10 products by revenue?",
		"SELECT oi.product_name, ROUND(SUM(oi.total), 2) AS revenue FROM order_items oi JOIN orders o ON o.order_id = oi.order_id AND o.store_id = $1 WHERE oi.store_id = $1 AND o.status = 'completed' GROUP BY oi.product_name ORDER BY revenue DESC LIMIT 10",
	},
	{
		"Which products sold the most units last week?",
		"SELECT oi.product_name, SUM(oi.quantity) AS units_sold FROM order_items oi JOIN orders o ON o.order_id = oi.order_id AND o.store_id = $1 WHERE oi.store_id = $1 AND o.status = 'completed' AND o.created_at >= now() - interval '7 days' GROUP BY oi.product_name ORDER BY units_sold DESC LIMIT 10",
	},
	{
		"Which products are low on stock?",
		"SELECT p.name, p.sku, p.stock_quantity FROM products p WHERE p.store_id = $1 AND p.stock_quantity < 10 ORDER BY p.stock_quantity ASC LIMIT 25",
	},
	{
		"What is my revenue by category?",
		"SELECT cat.name AS category, ROUND(SUM(oi.total), 2) AS revenue FROM order_items oi JOIN products p ON p.product_id = oi.product_id AND p.store_id = $1 JOIN categories cat ON cat.category_id = p.category_id AND cat.store_id = $1 JOIN orders o ON o.order_id = oi.order_id AND o.store_id = $1 WHERE oi.store_id = $1 AND o.status = 'completed' GROUP BY cat.name ORDER BY revenue DESC LIMIT 20",
	},
	{
		"Which products have never sold?",
		"SELECT p.name, p.sku, p.price FROM products p WHERE p.store_id = $1 AND NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.store_id = $1 AND oi.product_id = p.product_id) ORDER BY p.name LIMIT 100",
	},
	{
		"What's the average line total per product?",
		"SELECT oi.product_name, ROUND(AVG(oi.total), 2) AS avg_line_total FROM order_items oi WHERE oi.store_id = $1 GROUP BY oi.product_name ORDER BY avg_line_total DESC LIMIT 25",
	},

	// Customers
	{
		"Who are my top customers by lifetime spend?",
		"SELECT c.customer_id, c.city, c.country, ROUND(c.total_spent, 2) AS total_spent FROM customers c WHERE c.store_id = $1 ORDER BY c.total_spent DESC LIMIT 10",
	},
	{
		"How many new customers did I get this month?",
		"SELECT COUNT(*) AS new_customers FROM customers c WHERE c.store_id = $1 AND c.created_at >= date_trunc('month', now()) LIMIT 1",
	},
	{
		"What countries do my customers come from?",
		"SELECT c.country, COUNT(*) AS customers FROM customers c WHERE c.store_id = $1 GROUP BY c.country ORDER BY customers DESC LIMIT 25",
	},
	{
		"How many repeat customers do I have?",
		"SELECT COUNT(*) AS repeat_customers FROM customers c WHERE c.store_id = $1 AND c.orders_count > 1 LIMIT 1",
	},
	{
		"What is the average customer lifetime value?",
		"SELECT ROUND(AVG(c.total_spent), 2) AS avg_lifetime_value FROM customers c WHERE c.store_id = $1 AND c.orders_count > 0 LIMIT 1",
	},
	{
		"Which cities ordered the most last month?",
		"SELECT c.city, COUNT(o.order_id) AS orders FROM orders o JOIN customers c ON c.customer_id = o.customer_id AND c.store_id = $1 WHERE o.store_id = $1 AND o.status = 'completed' AND o.created_at >= date_trunc('month', now()) - interval '1 month' AND o.created_at < date_trunc('month', now()) GROUP BY c.city ORDER BY orders DESC LIMIT 10",
	},

	// Orders
	{
		"How many orders did I get today?",
		"SELECT COUNT(*) AS orders_today FROM orders o WHERE o.store_id = $1 AND o.created_at >= date_trunc('day', now()) LIMIT 1",
	},
	{
		"Show my order counts by status",
		"SELECT o.status, COUNT(*) AS orders FROM orders o WHERE o.store_id = $1 GROUP BY o.status ORDER BY orders DESC LIMIT 10",
	},
	{
		"What are my 20 most recent orders?",
		"SELECT o.order_number, o.status, ROUND(o.total, 2) AS total, o.created_at FROM orders o WHERE o.store_id = $1 ORDER BY o.created_at DESC LIMIT 20",
	},
	{
		"What's my largest order ever?",
		"SELECT o.order_number, ROUND(o.total, 2) AS total, o.created_at FROM orders o WHERE o.store_id = $1 ORDER BY o.total DESC LIMIT 1",
	},
	{
		"How many orders were cancelled this month?",
		"SELECT COUNT(*) AS cancelled_orders FROM orders o WHERE o.store_id = $1 AND o.status = 'cancelled' AND o.created_at >= date_trunc('month', now()) LIMIT 1",
	},
	{
		"Show daily order counts for the past two weeks",
		"SELECT to_char(date_trunc('day', o.created_at), 'YYYY-MM-DD') AS day, COUNT(*) AS orders FROM orders o WHERE o.store_id = $1 AND o.created_at >= now() - interval '14 days' GROUP BY day ORDER BY day LIMIT 14",
	},
	{
		"What's the average discount on completed orders?",
		"SELECT ROUND(AVG(o.discount_total), 2) AS avg_discount FROM orders o WHERE o.store_id = $1 AND o.status = 'completed' LIMIT 1",
	},
}

// BuildPrompt assembles the full instruction text for one request.
func BuildPrompt(sc store.SchemaContext) string {
	var sb strings.Builder

	sb.WriteString("You are a retail analytics SQL assistant. You translate a store owner's\n")
	sb.WriteString("question into a single safe PostgreSQL SELECT statement over their own\n")
	sb.WriteString("sales data.\n\n")

	sb.WriteString(schemaDescription)
	sb.WriteString("\n\n")

	sb.WriteString("# This store\n\n")
	sb.WriteString(fmt.Sprintf("- currency: %s\n", sc.Currency))
	sb.WriteString(fmt.Sprintf("- orders: %d\n", sc.TotalOrders))
	sb.WriteString(fmt.Sprintf("- products: %d\n", sc.TotalProducts))
	sb.WriteString(fmt.Sprintf("- customers: %d\n", sc.TotalCustomers))
	sb.WriteString(fmt.Sprintf("- categories: %d\n", sc.TotalCategories))
	sb.WriteString(fmt.Sprintf("- earliest order: %s\n", formatDate(sc.EarliestOrderDate)))
	sb.WriteString(fmt.Sprintf("- latest order: %s\n\n", formatDate(sc.LatestOrderDate)))

	sb.WriteString(safetyRules)
	sb.WriteString("\n\n")

	sb.WriteString(responseContract)
	sb.WriteString("\n\n")

	sb.WriteString("# Examples\n")
	for i, ex := range exampleLibrary {
		sb.WriteString(fmt.Sprintf("\n%d. Q: %s\n   SQL: %s\n", i+1, ex.Question, ex.SQL))
	}

	return sb.String()
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "none"
	}
	return t.UTC().Format("2006-01-02")
}
