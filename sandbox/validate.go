// Package sandbox is the admission-control layer for AI-generated SQL.
//
// Design decisions:
//   - Validate is a pure string transformation plus an error list; it
//     never touches the database or the network, so the full rule set
//     is unit-testable in isolation.
//   - Rules are pattern-based, not a SQL parser. The goal is rejecting
//     unsafe statements, not understanding SQL grammar.
//   - Violations are collected rather than short-circuited, except for
//     empty input and non-ASCII content, where later keyword checks
//     would be meaningless or unreliable.
//   - The blocklists are static and versioned; a fixture test asserts
//     their exact contents so silent edits show up in review.
package sandbox

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is appended when a query declares no LIMIT.
	DefaultLimit = 100

	// MaxLimit caps any declared LIMIT.
	MaxLimit = 1000
)

// ForbiddenKeywords are rejected as whole words, case-insensitively.
// Covers data mutation, execution and statement-scope verbs.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE", "COPY",
	"SET", "RESET", "CALL", "RETURNING",
}

// DangerousFunctions are engine functions that reach outside the query:
// filesystem access, process control, configuration mutation,
// cross-database linking and large-object I/O.
var DangerousFunctions = []string{
	"pg_read_file", "pg_read_binary_file", "pg_ls_dir", "pg_stat_file",
	"pg_sleep", "pg_terminate_backend", "pg_cancel_backend",
	"pg_reload_conf", "pg_rotate_logfile", "set_config",
	"dblink", "dblink_exec", "dblink_connect",
	"lo_import", "lo_export",
}

// Result is the outcome of validating one SQL string.
type Result struct {
	// Valid is true iff Errors is empty.
	Valid bool

	// SQL is the normalized statement: trailing semicolon stripped and
	// LIMIT appended or capped. Populated even when invalid.
	SQL string

	// Limit is the LIMIT the normalized statement carries. The executor
	// uses it to detect truncated result sets.
	Limit int

	// Errors lists every rule violation in evaluation order.
	Errors []string
}

var (
	reWithPrefix   = regexp.MustCompile(`(?i)^\s*WITH\b`)
	reSelectInto   = regexp.MustCompile(`(?i)\bINTO\b`)
	reUnion        = regexp.MustCompile(`(?i)\bUNION\b`)
	reTenantFilter = regexp.MustCompile(`(?i)\bstore_id\s*=\s*\$1\b`)
	reLimitWord    = regexp.MustCompile(`(?i)\bLIMIT\b`)
	reLimitValue   = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)

	reForbiddenKeyword  map[string]*regexp.Regexp
	reDangerousFunction map[string]*regexp.Regexp
)

func init() {
	reForbiddenKeyword = make(map[string]*regexp.Regexp, len(ForbiddenKeywords))
	for _, kw := range ForbiddenKeywords {
		reForbiddenKeyword[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	reDangerousFunction = make(map[string]*regexp.Regexp, len(DangerousFunctions))
	for _, fn := range DangerousFunctions {
		reDangerousFunction[fn] = regexp.MustCompile(`(?i)\b` + fn + `\b`)
	}
}

// Validate applies the admission rules to one untrusted SQL string and
// returns the normalized statement plus every violation found.
func Validate(sql string) Result {
	res := Result{}

	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		res.Errors = append(res.Errors, "empty SQL statement")
		return res
	}

	// Non-ASCII input can smuggle keywords past the whole-word checks
	// below (homoglyphs), so nothing after this point is trustworthy.
	for _, r := range trimmed {
		if r > 127 {
			res.Errors = append(res.Errors, fmt.Sprintf("non-ASCII character %q is not allowed", r))
			res.SQL = trimmed
			return res
		}
	}

	// One trailing semicolon is tolerated; any other semicolon means a
	// second statement is riding along.
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		res.Errors = append(res.Errors, "multiple SQL statements are not allowed")
	}

	// Comments hide payloads from pattern checks.
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		res.Errors = append(res.Errors, "SQL comments are not allowed")
	}

	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		res.Errors = append(res.Errors, "only SELECT statements are allowed")
	}
	if reWithPrefix.MatchString(trimmed) {
		res.Errors = append(res.Errors, "WITH (common table expression) statements are not allowed")
	}
	if reSelectInto.MatchString(trimmed) {
		res.Errors = append(res.Errors, "SELECT ... INTO is not allowed")
	}

	for _, kw := range ForbiddenKeywords {
		if reForbiddenKeyword[kw].MatchString(trimmed) {
			res.Errors = append(res.Errors, fmt.Sprintf("forbidden keyword: %s", kw))
		}
	}
	for _, fn := range DangerousFunctions {
		if reDangerousFunction[fn].MatchString(trimmed) {
			res.Errors = append(res.Errors, fmt.Sprintf("dangerous function: %s", fn))
		}
	}

	// UNION is the classic vector for pulling other tenants' rows into
	// an otherwise scoped result.
	if reUnion.MatchString(trimmed) {
		res.Errors = append(res.Errors, "UNION is not allowed")
	}

	// The tenant filter must be an equality against the first bound
	// parameter. The substring "store_id" appearing elsewhere (alias,
	// select list) does not count.
	if !reTenantFilter.MatchString(trimmed) {
		res.Errors = append(res.Errors, "missing tenant isolation filter (store_id = $1)")
	}

	res.SQL, res.Limit = normalizeLimit(trimmed)
	res.Valid = len(res.Errors) == 0
	return res
}

// normalizeLimit appends the default LIMIT when absent and caps a
// declared LIMIT at MaxLimit. Returns the rewritten SQL and the limit
// the statement now carries.
func normalizeLimit(sql string) (string, int) {
	matches := reLimitValue.FindAllStringSubmatchIndex(sql, -1)
	if len(matches) == 0 {
		if reLimitWord.MatchString(sql) {
			// LIMIT without a literal number (e.g. LIMIT ALL): leave it
			// alone rather than appending a second clause; the statement
			// has already been rejected if anything else is off.
			return sql, MaxLimit
		}
		return sql + " LIMIT " + strconv.Itoa(DefaultLimit), DefaultLimit
	}

	// Only the last LIMIT applies to the top-level statement.
	m := matches[len(matches)-1]
	numStart, numEnd := m[2], m[3]
	n, err := strconv.Atoi(sql[numStart:numEnd])
	if err != nil || n > MaxLimit {
		return sql[:numStart] + strconv.Itoa(MaxLimit) + sql[numEnd:], MaxLimit
	}
	return sql, n
}
