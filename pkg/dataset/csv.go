package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes the table with a header row. Null cells are written as
// empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j, col := range t.Columns {
			row[j] = r[col] // absent key yields "" which is the null cell
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV. Empty cells become null
// fields (the key is not set on the record).
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := NewTableWithColumns(header)
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", t.Len()+1, err)
		}

		rec := make(Record, len(header))
		for j, col := range header {
			if j < len(fields) && fields[j] != "" {
				rec[col] = fields[j]
			}
		}
		t.Rows = append(t.Rows, rec)
	}

	return t, nil
}
