package query

import (
	"strconv"
	"strings"
)

// Result is the outcome of one executed query: the generated row id (0
// unless the query was an insert returning an "id" column), the query as
// submitted, the final substituted SQL, the returned rows, and the backend
// error text (empty means success). Immutable after construction.
type Result struct {
	id    int64
	query Query
	final string
	rows  []map[string]string
	err   string
}

// NewResult builds a successful Result from a backend response. Insert-id
// extraction fires only when the submitted query text begins with INSERT
// and a column literally named "id" is present.
func NewResult(q Query, final string, columns []string, values [][]string) *Result {
	r := &Result{query: q, final: final}

	isInsert := strings.HasPrefix(q.Text, "INSERT")

	for _, rowValues := range values {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i >= len(rowValues) {
				break
			}
			row[col] = rowValues[i]
			if isInsert && col == "id" {
				if id, err := strconv.ParseInt(rowValues[i], 10, 64); err == nil {
					r.id = id
				}
			}
		}
		r.rows = append(r.rows, row)
	}

	return r
}

// ErrorResult builds a failed Result carrying the backend's error text plus
// both query strings for diagnostics.
func ErrorResult(q Query, final, errText string) *Result {
	return &Result{query: q, final: final, err: errText}
}

// Rows returns the number of returned rows.
func (r *Result) Rows() int {
	return len(r.rows)
}

// Get returns the value of the named column in the given row, or "" when
// the row or column does not exist.
func (r *Result) Get(row int, column string) string {
	if row < 0 || row >= len(r.rows) {
		return ""
	}
	return r.rows[row][column]
}

// Has reports whether the named column exists in the given row.
func (r *Result) Has(row int, column string) bool {
	if row < 0 || row >= len(r.rows) {
		return false
	}
	_, ok := r.rows[row][column]
	return ok
}

// OK reports whether the query succeeded.
func (r *Result) OK() bool {
	return r.err == ""
}

// Err returns the backend error text, empty on success.
func (r *Result) Err() string {
	return r.err
}

// InsertID returns the generated row id, 0 if the query was not an insert.
func (r *Result) InsertID() int64 {
	return r.id
}

// Query returns the query as originally submitted.
func (r *Result) Query() Query {
	return r.query
}

// FinalQuery returns the fully substituted SQL sent to the backend.
func (r *Result) FinalQuery() string {
	return r.final
}
