// Package dataset provides the in-memory table model for ballot-request
// records and its CSV codec.
//
// The upstream schema is not fixed: every record is a flat mapping from
// field name to string value. A field that is absent from a record and a
// field holding the empty string are both treated as null, which matches
// how the dataset round-trips through CSV.
package dataset

import (
	"sort"
)

// Record is one ballot-request application row.
type Record map[string]string

// Get returns the value of a field. ok is false when the field is null
// (absent or empty).
func (r Record) Get(field string) (string, bool) {
	v, present := r[field]
	if !present || v == "" {
		return "", false
	}
	return v, true
}

// Null reports whether the field is null in this record.
func (r Record) Null(field string) bool {
	_, ok := r.Get(field)
	return !ok
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered collection of records with a stable column order.
//
// Columns are discovered as records are appended: a record introducing
// fields the table has not seen extends Columns. New fields within one
// record are added in sorted order so that tables built from the same
// rows are identical regardless of map iteration order.
type Table struct {
	Columns []string
	Rows    []Record

	seen map[string]bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{seen: make(map[string]bool)}
}

// NewTableWithColumns creates an empty table with a fixed initial column order.
func NewTableWithColumns(columns []string) *Table {
	t := NewTable()
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append adds a record, extending the column set with any unseen fields.
func (t *Table) Append(r Record) {
	var fresh []string
	for field := range r {
		if !t.seen[field] {
			fresh = append(fresh, field)
		}
	}
	sort.Strings(fresh)
	for _, field := range fresh {
		t.addColumn(field)
	}
	t.Rows = append(t.Rows, r)
}

// AddColumn registers a new column at the end of the column order.
// Existing rows are not modified; the column is null until set.
func (t *Table) AddColumn(name string) {
	t.addColumn(name)
}

func (t *Table) addColumn(name string) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if t.seen[name] {
		return
	}
	t.seen[name] = true
	t.Columns = append(t.Columns, name)
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.seen[name]
}

// HasColumns reports whether the table has all of the named columns.
func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if !t.seen[n] {
			return false
		}
	}
	return true
}

// InsertColumnAfter registers a new column placed directly after an
// existing one. If after is not a known column, the new column is placed
// last. Existing rows are not modified; the column is null until set.
func (t *Table) InsertColumnAfter(after, name string) {
	if t.seen[name] {
		return
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	t.seen[name] = true

	for i, c := range t.Columns {
		if c == after {
			cols := make([]string, 0, len(t.Columns)+1)
			cols = append(cols, t.Columns[:i+1]...)
			cols = append(cols, name)
			cols = append(cols, t.Columns[i+1:]...)
			t.Columns = cols
			return
		}
	}
	t.Columns = append(t.Columns, name)
}

// Filter returns a new table containing the rows for which keep returns
// true. The column order is preserved.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := NewTableWithColumns(t.Columns)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Equal reports whether two tables have identical columns, row counts,
// and cell values. Null cells compare equal regardless of representation.
func (t *Table) Equal(other *Table) bool {
	if other == nil || len(t.Columns) != len(other.Columns) || len(t.Rows) != len(other.Rows) {
		return false
	}
	for i, c := range t.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	for i, r := range t.Rows {
		for _, c := range t.Columns {
			av, aok := r.Get(c)
			bv, bok := other.Rows[i].Get(c)
			if aok != bok || av != bv {
				return false
			}
		}
	}
	return true
}
