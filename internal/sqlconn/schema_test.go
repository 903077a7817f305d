package sqlconn

import (
	"strings"
	"testing"

	"github.com/oriys/quasar/internal/query"
)

func TestCreateTableUnknownTable(t *testing.T) {
	fb := &fakeBackend{rowset: &Rowset{Columns: []string{"column_name"}}}
	c, err := New(testConfig(), fb)
	if err != nil {
		t.Fatal(err)
	}

	data := query.Data{}
	data.SetText("email", "alice")
	data.SetInt("visits", 3)

	queries := c.CreateTable("accounts", data)
	if len(queries) != 2 {
		t.Fatalf("got %d queries, want CREATE TABLE plus index", len(queries))
	}

	wantCreate := `CREATE TABLE "accounts" ("id" BIGSERIAL PRIMARY KEY, "timestamp" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP, "email" TEXT, "visits" BIGINT)`
	if queries[0].Text != wantCreate {
		t.Errorf("create = %q\nwant %q", queries[0].Text, wantCreate)
	}
	wantIndex := `CREATE INDEX "accounts_timestamp_idx" ON "accounts" ("timestamp")`
	if queries[1].Text != wantIndex {
		t.Errorf("index = %q\nwant %q", queries[1].Text, wantIndex)
	}

	// The column fetch ran exactly once.
	if len(fb.execs) != 1 {
		t.Fatalf("backend saw %d statements during column fetch", len(fb.execs))
	}
	if want := `table_name = 'accounts'`; !strings.Contains(fb.execs[0], want) {
		t.Errorf("column fetch = %q, want it to filter on %q", fb.execs[0], want)
	}
}

func TestCreateTableAddsMissingColumns(t *testing.T) {
	fb := &fakeBackend{rowset: &Rowset{
		Columns: []string{"column_name"},
		Values:  [][]string{{"id"}, {"timestamp"}, {"email"}},
	}}
	c, err := New(testConfig(), fb)
	if err != nil {
		t.Fatal(err)
	}

	data := query.Data{}
	data.SetText("email", "alice")
	data.SetInt("age", 30)

	queries := c.CreateTable("accounts", data)
	if len(queries) != 1 {
		t.Fatalf("got %d queries, want one ALTER TABLE", len(queries))
	}
	want := `ALTER TABLE "accounts" ADD COLUMN "age" BIGINT`
	if queries[0].Text != want {
		t.Errorf("alter = %q, want %q", queries[0].Text, want)
	}

	// The column set is cached: a second call sees "age" as known and the
	// fetch does not run again.
	execsBefore := len(fb.execs)
	if more := c.CreateTable("accounts", data); len(more) != 0 {
		t.Errorf("second CreateTable emitted %d queries", len(more))
	}
	if len(fb.execs) != execsBefore {
		t.Error("column fetch ran again for a cached table")
	}
}

func TestBuildInsert(t *testing.T) {
	fb := &fakeBackend{rowset: &Rowset{
		Columns: []string{"column_name"},
		Values:  [][]string{{"id"}, {"timestamp"}, {"email"}, {"note"}},
	}}
	c, err := New(testConfig(), fb)
	if err != nil {
		t.Fatal(err)
	}
	c.CreateTable("accounts", query.Data{})

	data := query.Data{}
	data.SetText("email", "alice")

	q := c.BuildInsert("accounts", 7, data)
	wantText := `INSERT INTO "accounts" ("id", "email", "note") VALUES (7, @email@, @note@) ON CONFLICT ("id") DO UPDATE SET "email" = EXCLUDED."email", "note" = EXCLUDED."note" RETURNING id`
	if q.Text != wantText {
		t.Errorf("text = %q\nwant %q", q.Text, wantText)
	}

	built := q.Build(query.EscapeLiteral)
	want := `INSERT INTO "accounts" ("id", "email", "note") VALUES (7, 'alice', NULL) ON CONFLICT ("id") DO UPDATE SET "email" = EXCLUDED."email", "note" = EXCLUDED."note" RETURNING id`
	if built != want {
		t.Errorf("built = %q\nwant %q", built, want)
	}
}

func TestGetTables(t *testing.T) {
	fb := &fakeBackend{}
	c, err := New(testConfig(), fb)
	if err != nil {
		t.Fatal(err)
	}

	q := c.GetTables("acct_")
	built := q.Build(query.EscapeLiteral)
	if want := `tablename LIKE 'acct_%'`; !strings.Contains(built, want) {
		t.Errorf("built = %q, want it to contain %q", built, want)
	}
}

func TestFromUnixtime(t *testing.T) {
	fb := &fakeBackend{}
	c, err := New(testConfig(), fb)
	if err != nil {
		t.Fatal(err)
	}

	if got := c.FromUnixtime(1700000000); got != "to_timestamp(1700000000)" {
		t.Errorf("FromUnixtime = %q", got)
	}
}
