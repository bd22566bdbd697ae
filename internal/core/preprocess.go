package core

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
)

// Preprocessor mutates a table in place before comparison. Implementations
// are the types declared in this file.
type Preprocessor interface {
	Apply(t *Table) error
	String() string
	isPreprocessor()
}

type (
	// ExtractHeaders moves row 0 of every column into the column header.
	ExtractHeaders struct{}

	// DeleteColumnByNumber blanks the column at the zero-based index.
	DeleteColumnByNumber int

	// DeleteColumnByName blanks every column with the given header.
	DeleteColumnByName string

	// DeleteRowByNumber blanks the row at the zero-based index.
	DeleteRowByNumber int

	// DeleteRowByRegex blanks every row in which any cell matches.
	DeleteRowByRegex string

	// SortByColumnName sorts all rows descending by the named numeric column.
	SortByColumnName string

	// SortByColumnNumber sorts all rows descending by the numeric column at
	// the zero-based index.
	SortByColumnNumber int
)

func (ExtractHeaders) isPreprocessor()       {}
func (DeleteColumnByNumber) isPreprocessor() {}
func (DeleteColumnByName) isPreprocessor()   {}
func (DeleteRowByNumber) isPreprocessor()    {}
func (DeleteRowByRegex) isPreprocessor()     {}
func (SortByColumnName) isPreprocessor()     {}
func (SortByColumnNumber) isPreprocessor()   {}

func (ExtractHeaders) String() string         { return "ExtractHeaders" }
func (p DeleteColumnByNumber) String() string { return fmt.Sprintf("DeleteColumnByNumber(%d)", int(p)) }
func (p DeleteColumnByName) String() string   { return fmt.Sprintf("DeleteColumnByName(%q)", string(p)) }
func (p DeleteRowByNumber) String() string    { return fmt.Sprintf("DeleteRowByNumber(%d)", int(p)) }
func (p DeleteRowByRegex) String() string     { return fmt.Sprintf("DeleteRowByRegex(%q)", string(p)) }
func (p SortByColumnName) String() string     { return fmt.Sprintf("SortByColumnName(%q)", string(p)) }
func (p SortByColumnNumber) String() string   { return fmt.Sprintf("SortByColumnNumber(%d)", int(p)) }

// Apply pops the first cell of every column into its header. A non-String
// header cell is kept as its text and logged.
func (ExtractHeaders) Apply(t *Table) error {
	for i := range t.Columns {
		col := &t.Columns[i]
		if len(col.Rows) == 0 {
			return fmt.Errorf("extract headers: column %d is empty: %w", i, ErrInvalidAccess)
		}
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		first := col.Rows[0]
		col.Rows = col.Rows[1:]

		title, ok := AsString(first)
		if !ok {
			slog.Warn("first entry in column was not a string", "column", i, "value", first.String())
			title = first.Text()
		}
		col.Header = &title
	}
	return nil
}

// Apply blanks the column. An index outside the table is ignored.
func (p DeleteColumnByNumber) Apply(t *Table) error {
	if int(p) < 0 || int(p) >= len(t.Columns) {
		slog.Debug("delete column: no such column", "column", int(p))
		return nil
	}
	t.Columns[int(p)].deleteContents()
	return nil
}

// Apply blanks all matching columns. An unknown name is ignored.
func (p DeleteColumnByName) Apply(t *Table) error {
	for i := range t.Columns {
		if h := t.Columns[i].Header; h != nil && *h == string(p) {
			t.Columns[i].deleteContents()
		}
	}
	return nil
}

// Apply blanks every cell of the row.
func (p DeleteRowByNumber) Apply(t *Table) error {
	row := int(p)
	if row < 0 || row >= t.RowCount() {
		return fmt.Errorf("delete row %d of %d: %w", row, t.RowCount(), ErrInvalidAccess)
	}
	for i := range t.Columns {
		t.Columns[i].Rows[row] = Deleted()
	}
	return nil
}

// Apply blanks every row with at least one cell matching the expression.
func (p DeleteRowByRegex) Apply(t *Table) error {
	re, err := regexp.Compile(string(p))
	if err != nil {
		return fmt.Errorf("delete rows by %q: %w: %v", string(p), ErrRegexCompilation, err)
	}

	for row := 0; row < t.RowCount(); row++ {
		matched := false
		for i := range t.Columns {
			if re.MatchString(t.Columns[i].Rows[row].Text()) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for i := range t.Columns {
			t.Columns[i].Rows[row] = Deleted()
		}
	}
	return nil
}

// Apply sorts by the first column with the given header.
func (p SortByColumnName) Apply(t *Table) error {
	idx, ok := t.columnByName(string(p))
	if !ok {
		return fmt.Errorf("sort by column %q: no such column: %w", string(p), ErrInvalidAccess)
	}
	return sortByColumn(t, idx)
}

// Apply sorts by the column at the index.
func (p SortByColumnNumber) Apply(t *Table) error {
	idx := int(p)
	if idx < 0 || idx >= len(t.Columns) {
		return fmt.Errorf("sort by column %d of %d: %w", idx, len(t.Columns), ErrInvalidAccess)
	}
	return sortByColumn(t, idx)
}

// sortByColumn computes one stable descending permutation from column idx
// and applies it to every column.
func sortByColumn(t *Table, idx int) error {
	master := t.Columns[idx].Rows
	keys := make([]float32, len(master))
	for i, v := range master {
		q, ok := AsQuantity(v)
		if !ok {
			return fmt.Errorf("sort by column %d: row %d is %s: %w", idx, i, v.String(), ErrUnexpectedValue)
		}
		keys[i] = q.Value
	}

	perm := make([]int, len(keys))
	for i := range perm {
		perm[i] = i
	}
	// Descending; NaN sorts after every number so the order stays total.
	sort.SliceStable(perm, func(a, b int) bool {
		ka, kb := keys[perm[a]], keys[perm[b]]
		if isNaN(ka) {
			return false
		}
		return isNaN(kb) || ka > kb
	})

	for c := range t.Columns {
		rows := t.Columns[c].Rows
		sorted := make([]Value, len(rows))
		for i, from := range perm {
			sorted[i] = rows[from]
		}
		t.Columns[c].Rows = sorted
	}
	return nil
}

// ApplyAll runs preprocessors in order and stops at the first failure.
func ApplyAll(t *Table, preprocessors []Preprocessor) error {
	for _, p := range preprocessors {
		if err := p.Apply(t); err != nil {
			return fmt.Errorf("preprocess %s: %w", p, err)
		}
	}
	return nil
}
