package sqlconn

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/query"
)

// Schema helpers synthesize DDL/DML text from the cached column set of a
// table. They execute synchronously on the caller's goroutine and are meant
// for single-goroutine schema bootstrap, not the async query path.

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sqlType(k query.Kind) string {
	if k == query.Int {
		return "BIGINT"
	}
	return "TEXT"
}

func sortedColumns(data query.Data) []string {
	cols := make([]string, 0, len(data))
	for col := range data {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// CreateTable returns the statements needed to bring table up to date with
// the columns in data: a CREATE TABLE when the table is unknown to the
// backend, otherwise one ALTER TABLE per missing column. May return nothing.
func (c *Connection) CreateTable(table string, data query.Data) []query.Query {
	known := c.schema[table]
	if known == nil {
		known = make(map[string]bool)
		c.schema[table] = known
	}

	if len(known) == 0 {
		logging.Op().Debug("fetching columns", "connection", c.name, "table", table)

		q := query.New(`SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = @table@`)
		q.Set("table", table)
		columns := c.RunQuery(q)
		for i := 0; i < columns.Rows(); i++ {
			known[columns.Get(i, "column_name")] = true
		}
	}

	var queries []query.Query

	if len(known) == 0 {
		var sb strings.Builder
		sb.WriteString("CREATE TABLE " + ident(table) + " (")
		sb.WriteString(`"id" BIGSERIAL PRIMARY KEY, "timestamp" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP`)
		for _, col := range sortedColumns(data) {
			known[col] = true
			sb.WriteString(", " + ident(col) + " " + sqlType(data[col].Kind))
		}
		sb.WriteString(")")

		queries = append(queries, query.New(sb.String()))
		queries = append(queries, query.New(
			"CREATE INDEX "+ident(table+"_timestamp_idx")+" ON "+ident(table)+` ("timestamp")`))
		return queries
	}

	for _, col := range sortedColumns(data) {
		if known[col] {
			continue
		}
		known[col] = true
		queries = append(queries, query.New(
			"ALTER TABLE "+ident(table)+" ADD COLUMN "+ident(col)+" "+sqlType(data[col].Kind)))
	}

	return queries
}

// BuildInsert generates an upsert for the given row id. Known columns absent
// from data are written as NULL so the row is fully specified. Postgres does
// not report insert ids, so RETURNING id is appended and the Result's
// insert-id extraction picks it up.
func (c *Connection) BuildInsert(table string, id int64, data query.Data) query.Query {
	for col := range c.schema[table] {
		if col != "id" && col != "timestamp" && !data.Has(col) {
			data.SetText(col, "")
		}
	}

	cols := sortedColumns(data)

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + ident(table) + ` ("id"`)
	for _, col := range cols {
		sb.WriteString(", " + ident(col))
	}
	sb.WriteString(") VALUES (" + strconv.FormatInt(id, 10))
	for _, col := range cols {
		sb.WriteString(", @" + col + "@")
	}
	sb.WriteString(`) ON CONFLICT ("id") DO UPDATE SET `)
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ident(col) + " = EXCLUDED." + ident(col))
	}
	sb.WriteString(" RETURNING id")

	q := query.New(sb.String())
	for _, col := range cols {
		f := data[col]
		if f.Value == "" {
			q.SetRaw(col, "NULL")
		} else {
			q.Set(col, f.Value)
		}
	}
	return q
}

// GetTables returns a query listing tables whose names start with prefix.
func (c *Connection) GetTables(prefix string) query.Query {
	q := query.New(`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE @prefix@`)
	q.Set("prefix", prefix+"%")
	return q
}

// FromUnixtime returns a SQL snippet converting a Unix timestamp to a
// Postgres timestamp.
func (c *Connection) FromUnixtime(t int64) string {
	return "to_timestamp(" + strconv.FormatInt(t, 10) + ")"
}
