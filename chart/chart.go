// Package chart turns an AI-declared chart intent plus executed rows
// into a renderable configuration.
//
// Build is a pure function: the spec is only honored after its dataKey
// and labelKey are cross-checked against the actual result columns.
// Anything inconsistent yields nil and the chat response falls back to
// a plain text answer plus the raw row table.
package chart

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/storeql/storeql/ai"
	"github.com/storeql/storeql/db"
)

// palette is the deterministic color cycle; colors are assigned by
// index so the same result always renders the same way.
var palette = []string{
	"#36a2eb", "#ff6384", "#4bc0c0", "#ff9f40",
	"#9966ff", "#ffcd56", "#c9cbcf", "#2ecc71",
}

// Dataset is one numeric series of a chart.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
}

// Config is a renderable chart: labels plus one or more numeric
// datasets with axis and legend metadata.
type Config struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	XLabel   string    `json:"xLabel,omitempty"`
	YLabel   string    `json:"yLabel,omitempty"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Table is the tabular alternative: headers in column order and rows as
// ordered value arrays.
type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

// Result is either a chart Config or a Table, never both.
type Result struct {
	Config *Config
	Table  *Table
}

// MarshalJSON emits whichever variant is set, so the API field is a
// single object rather than a wrapper.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Config != nil {
		return json.Marshal(r.Config)
	}
	if r.Table != nil {
		return json.Marshal(r.Table)
	}
	return []byte("null"), nil
}

// Build maps the declared chart spec onto the executed rows. Returns
// nil when spec is nil, rows are empty, the chart type is unknown, or
// the declared keys do not exist as result columns.
func Build(spec *ai.ChartSpec, res *db.QueryExecutionResult) *Result {
	if spec == nil || res == nil || len(res.Rows) == 0 {
		return nil
	}

	switch spec.Type {
	case "table":
		return &Result{Table: buildTable(res)}
	case "bar", "line", "pie", "doughnut":
		cfg := buildConfig(spec, res)
		if cfg == nil {
			return nil
		}
		return &Result{Config: cfg}
	default:
		return nil
	}
}

func buildTable(res *db.QueryExecutionResult) *Table {
	t := &Table{Headers: res.Columns, Rows: make([][]any, 0, len(res.Rows))}
	for _, row := range res.Rows {
		values := make([]any, len(res.Columns))
		for i, col := range res.Columns {
			values[i] = row[col]
		}
		t.Rows = append(t.Rows, values)
	}
	return t
}

func buildConfig(spec *ai.ChartSpec, res *db.QueryExecutionResult) *Config {
	first := res.Rows[0]
	if _, ok := first[spec.DataKey]; !ok {
		return nil
	}
	if _, ok := first[spec.LabelKey]; !ok {
		return nil
	}

	labels := make([]string, 0, len(res.Rows))
	data := make([]float64, 0, len(res.Rows))
	for _, row := range res.Rows {
		labels = append(labels, stringify(row[spec.LabelKey]))
		data = append(data, coerceNumber(row[spec.DataKey]))
	}

	return &Config{
		Type:   spec.Type,
		Title:  spec.Title,
		XLabel: spec.XLabel,
		YLabel: spec.YLabel,
		Labels: labels,
		Datasets: []Dataset{{
			Label:           spec.Title,
			Data:            data,
			BackgroundColor: colorsFor(spec.Type, len(data), 0),
		}},
	}
}

// colorsFor assigns palette colors: segment charts color every slice,
// axis charts use one color per dataset.
func colorsFor(chartType string, points int, datasetIndex int) []string {
	if chartType == "pie" || chartType == "doughnut" {
		colors := make([]string, points)
		for i := range colors {
			colors[i] = palette[i%len(palette)]
		}
		return colors
	}
	return []string{palette[datasetIndex%len(palette)]}
}

// coerceNumber parses numeric-looking values; anything unparseable
// counts as zero rather than breaking the whole chart.
func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	case fmt.Stringer:
		f, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
