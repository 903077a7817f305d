// Package query provides the safe query-building layer: SQL templates with
// @name@ placeholders, literal escaping, and result construction.
//
// Substitution is literal, case-sensitive substring replacement performed
// once per parameter across the whole template. Parameter names must not
// collide with unrelated @...@ substrings in the template; this replacement
// is the sole SQL-injection defense, so every caller-supplied string value
// must be set with the escape flag enabled.
package query

import "strings"

// Param is one named substitution value for a Query template.
type Param struct {
	Value  string
	Escape bool
}

// Escaper escapes text for embedding between single quotes in a statement.
type Escaper func(string) string

// Query is a SQL template plus its named parameters. It is a value type;
// equality via Equal is used by the dispatcher to detect whether the queue
// head still matches the request it just executed.
type Query struct {
	Text   string
	params map[string]Param
}

// New returns a Query for the given template text.
func New(text string) Query {
	return Query{Text: text}
}

// Set binds a parameter that will be escaped and single-quoted on Build.
// Use for every caller-supplied string value.
func (q *Query) Set(name, value string) {
	q.set(name, Param{Value: value, Escape: true})
}

// SetRaw binds a parameter substituted verbatim, without quoting. Only for
// pre-validated values such as formatted numerics.
func (q *Query) SetRaw(name, value string) {
	q.set(name, Param{Value: value, Escape: false})
}

func (q *Query) set(name string, p Param) {
	if q.params == nil {
		q.params = make(map[string]Param)
	}
	q.params[name] = p
}

// Params returns the number of bound parameters.
func (q Query) Params() int {
	return len(q.params)
}

// Build produces the final SQL string by replacing every @name@ occurrence
// with either the escaped, single-quoted value or the raw value.
func (q Query) Build(esc Escaper) string {
	out := q.Text
	for name, p := range q.params {
		repl := p.Value
		if p.Escape {
			repl = "'" + esc(p.Value) + "'"
		}
		out = strings.ReplaceAll(out, "@"+name+"@", repl)
	}
	return out
}

// Equal reports whether two queries have the same template text and the
// same parameter bindings.
func (q Query) Equal(o Query) bool {
	if q.Text != o.Text || len(q.params) != len(o.params) {
		return false
	}
	for name, p := range q.params {
		op, ok := o.params[name]
		if !ok || op != p {
			return false
		}
	}
	return true
}
