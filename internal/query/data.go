package query

import "strconv"

// Kind is the storage type of a Data column.
type Kind int

const (
	Text Kind = iota
	Int
)

// Field is one column value destined for the schema helpers.
type Field struct {
	Value string
	Kind  Kind
}

// Data carries named column values for CreateTable and BuildInsert.
type Data map[string]Field

// SetText sets a text column value.
func (d Data) SetText(column, value string) {
	d[column] = Field{Value: value, Kind: Text}
}

// SetInt sets an integer column value.
func (d Data) SetInt(column string, value int64) {
	d[column] = Field{Value: strconv.FormatInt(value, 10), Kind: Int}
}

// Has reports whether the column is present.
func (d Data) Has(column string) bool {
	_, ok := d[column]
	return ok
}
