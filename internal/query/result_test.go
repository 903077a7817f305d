package query

import "testing"

func TestNewResultRows(t *testing.T) {
	q := New("SELECT id, email, display FROM accounts")
	r := NewResult(q, q.Text,
		[]string{"id", "email", "display"},
		[][]string{
			{"1", "alice@example.com", "Alice"},
			{"2", "bob@example.com", "Bob"},
		})

	if !r.OK() {
		t.Fatalf("OK = false, err = %q", r.Err())
	}
	if r.Rows() != 2 {
		t.Fatalf("Rows = %d, want 2", r.Rows())
	}
	if got := r.Get(0, "email"); got != "alice@example.com" {
		t.Errorf("Get(0, email) = %q", got)
	}
	if got := r.Get(1, "display"); got != "Bob" {
		t.Errorf("Get(1, display) = %q", got)
	}
	if got := r.Get(5, "email"); got != "" {
		t.Errorf("Get out of range = %q, want empty", got)
	}
	if got := r.Get(0, "missing"); got != "" {
		t.Errorf("Get missing column = %q, want empty", got)
	}
	if r.Has(0, "missing") {
		t.Error("Has(missing) = true")
	}
	if !r.Has(1, "id") {
		t.Error("Has(id) = false")
	}
}

func TestInsertIDExtraction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		columns []string
		values  [][]string
		want    int64
	}{
		{
			name:    "insert returning id",
			text:    `INSERT INTO t ("id") VALUES (7) RETURNING id`,
			columns: []string{"id"},
			values:  [][]string{{"7"}},
			want:    7,
		},
		{
			name:    "select with id column",
			text:    "SELECT id FROM t",
			columns: []string{"id"},
			values:  [][]string{{"7"}},
			want:    0,
		},
		{
			name:    "insert without id column",
			text:    "INSERT INTO t (a) VALUES (1)",
			columns: []string{"a"},
			values:  [][]string{{"1"}},
			want:    0,
		},
		{
			name:    "insert with non-numeric id",
			text:    "INSERT INTO t (id) VALUES ('x') RETURNING id",
			columns: []string{"id"},
			values:  [][]string{{"x"}},
			want:    0,
		},
	}
	for _, tt := range tests {
		r := NewResult(New(tt.text), tt.text, tt.columns, tt.values)
		if got := r.InsertID(); got != tt.want {
			t.Errorf("%s: InsertID = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestErrorResult(t *testing.T) {
	q := New("SELECT 1")
	r := ErrorResult(q, "SELECT 1", "relation does not exist")

	if r.OK() {
		t.Error("OK = true for failed result")
	}
	if r.Err() != "relation does not exist" {
		t.Errorf("Err = %q", r.Err())
	}
	if r.Rows() != 0 {
		t.Errorf("Rows = %d, want 0", r.Rows())
	}
	if r.FinalQuery() != "SELECT 1" {
		t.Errorf("FinalQuery = %q", r.FinalQuery())
	}
	if !r.Query().Equal(q) {
		t.Error("Query does not round-trip")
	}
}
