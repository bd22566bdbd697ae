package core

import (
	"context"
	"io"
	"log/slog"
)

// Column is one column of a table. Rows[i] is the cell in row i.
type Column struct {
	Header *string
	Rows   []Value
}

// HeaderText returns the header or "" when none was extracted.
func (c *Column) HeaderText() string {
	if c.Header == nil {
		return ""
	}
	return *c.Header
}

// deleteContents overwrites every cell with the deleted sentinel and marks
// the header. The column keeps its index and length.
func (c *Column) deleteContents() {
	header := deletedMarker
	c.Header = &header
	for i := range c.Rows {
		c.Rows[i] = Deleted()
	}
}

// Table is a column-major container of parsed cells. All columns have the
// same length.
type Table struct {
	Columns    []Column
	Delimiters Delimiters

	// BytesRead is the raw size of the parsed source.
	BytesRead int64
}

// NewTable parses src into a table. Empty delimiters are guessed.
func NewTable(ctx context.Context, src io.ReadSeeker, d Delimiters) (*Table, error) {
	tok, err := NewTokenizer(ctx, src, d)
	if err != nil {
		return nil, err
	}

	rows, err := tok.Rows(ctx)
	if err != nil {
		return nil, err
	}

	t, err := TableFromRows(rows)
	if err != nil {
		return nil, err
	}
	t.Delimiters = tok.Delimiters()
	t.BytesRead = tok.BytesRead
	return t, nil
}

// TableFromRows builds a table from row-major values. Every row must have
// as many fields as the first one.
func TableFromRows(rows [][]Value) (*Table, error) {
	t := &Table{}
	for i, fields := range rows {
		if i == 0 {
			t.Columns = make([]Column, len(fields))
			for j := range t.Columns {
				t.Columns[j].Rows = make([]Value, 0, len(rows))
			}
		}
		if len(fields) != len(t.Columns) {
			slog.Error("columns inconsistent",
				"first_row_fields", len(t.Columns),
				"row", i,
				"row_fields", len(fields),
			)
			return nil, &ParseError{Row: i, Err: ErrUnstableColumnCount}
		}
		for j, f := range fields {
			t.Columns[j].Rows = append(t.Columns[j].Rows, f)
		}
	}
	return t, nil
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Rows)
}

// Rows returns a row-major copy of the cells.
func (t *Table) Rows() [][]Value {
	rows := make([][]Value, t.RowCount())
	for i := range rows {
		row := make([]Value, len(t.Columns))
		for j := range t.Columns {
			row[j] = t.Columns[j].Rows[i]
		}
		rows[i] = row
	}
	return rows
}

// Headers returns every column header ("" where none is set), or nil if no
// column has a header.
func (t *Table) Headers() []string {
	var found bool
	headers := make([]string, len(t.Columns))
	for i := range t.Columns {
		if t.Columns[i].Header != nil {
			found = true
		}
		headers[i] = t.Columns[i].HeaderText()
	}
	if !found {
		return nil
	}
	return headers
}

// cell is a value with its table position.
type cell struct {
	pos   Position
	value Value
}

// cells flattens the table row by row.
func (t *Table) cells() []cell {
	out := make([]cell, 0, t.RowCount()*len(t.Columns))
	for r := 0; r < t.RowCount(); r++ {
		for c := range t.Columns {
			out = append(out, cell{pos: Position{Row: r, Col: c}, value: t.Columns[c].Rows[r]})
		}
	}
	return out
}

// columnByName returns the index of the first column whose header is name.
func (t *Table) columnByName(name string) (int, bool) {
	for i := range t.Columns {
		if h := t.Columns[i].Header; h != nil && *h == name {
			return i, true
		}
	}
	return 0, false
}
