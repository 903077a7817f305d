package query

import "testing"

func TestBuildEscapesAndQuotes(t *testing.T) {
	q := New("a=@x@")
	q.Set("x", "'; DROP TABLE t; --")

	got := q.Build(EscapeLiteral)
	want := "a='''; DROP TABLE t; --'"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestBuildRawSubstitution(t *testing.T) {
	q := New("SELECT * FROM t LIMIT @n@")
	q.SetRaw("n", "5")

	got := q.Build(EscapeLiteral)
	if got != "SELECT * FROM t LIMIT 5" {
		t.Errorf("Build = %q, want unquoted numeric", got)
	}
}

func TestBuildIsCaseSensitive(t *testing.T) {
	q := New("SELECT @U@ FROM t WHERE u=@u@")
	q.Set("u", "alice")

	got := q.Build(EscapeLiteral)
	want := "SELECT @U@ FROM t WHERE u='alice'"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestBuildReplacesEveryOccurrence(t *testing.T) {
	q := New("@v@ @v@ @v@")
	q.Set("v", "x")

	got := q.Build(EscapeLiteral)
	if got != "'x' 'x' 'x'" {
		t.Errorf("Build = %q, want all occurrences replaced", got)
	}
}

func TestBuildMultipleParams(t *testing.T) {
	q := New("INSERT INTO t (a, b) VALUES (@a@, @b@)")
	q.Set("a", "one")
	q.SetRaw("b", "2")

	if q.Params() != 2 {
		t.Errorf("Params = %d, want 2", q.Params())
	}
	got := q.Build(EscapeLiteral)
	want := "INSERT INTO t (a, b) VALUES ('one', 2)"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestEqual(t *testing.T) {
	base := New("SELECT 1 WHERE a=@a@")
	base.Set("a", "v")

	same := New("SELECT 1 WHERE a=@a@")
	same.Set("a", "v")

	otherText := New("SELECT 2 WHERE a=@a@")
	otherText.Set("a", "v")

	otherValue := New("SELECT 1 WHERE a=@a@")
	otherValue.Set("a", "w")

	otherFlag := New("SELECT 1 WHERE a=@a@")
	otherFlag.SetRaw("a", "v")

	extraParam := New("SELECT 1 WHERE a=@a@")
	extraParam.Set("a", "v")
	extraParam.Set("b", "v")

	tests := []struct {
		name  string
		other Query
		want  bool
	}{
		{"identical", same, true},
		{"different text", otherText, false},
		{"different value", otherValue, false},
		{"different escape flag", otherFlag, false},
		{"extra parameter", extraParam, false},
	}
	for _, tt := range tests {
		if got := base.Equal(tt.other); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEqualNoParams(t *testing.T) {
	a := New("SELECT 1")
	b := New("SELECT 1")
	if !a.Equal(b) {
		t.Error("queries with no params and same text should be equal")
	}
}

func TestEscapeLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"o'brien", "o''brien"},
		{"''", "''''"},
		{"a\x00b", "ab"},
		{"", ""},
		{`back\slash`, `back\slash`},
	}
	for _, tt := range tests {
		if got := EscapeLiteral(tt.in); got != tt.want {
			t.Errorf("EscapeLiteral(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
