package query

import "strings"

// EscapeLiteral escapes text for use inside a single-quoted Postgres string
// literal: single quotes are doubled and NUL bytes removed (Postgres cannot
// store them in text values). Quote doubling is sufficient with
// standard_conforming_strings, the server default since 9.1.
//
// Best effort by contract: it never fails and never drops data beyond NULs.
func EscapeLiteral(text string) string {
	if strings.ContainsRune(text, 0) {
		text = strings.ReplaceAll(text, "\x00", "")
	}
	return strings.ReplaceAll(text, "'", "''")
}
