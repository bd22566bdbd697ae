package core

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
)

// Position is a zero-based cell coordinate within a parsed table.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Mode decides whether two quantities are equal enough. Implementations are
// Absolute, Relative and Ignore.
type Mode interface {
	InTolerance(nominal, actual Quantity) bool
	String() string
	isMode()
}

type (
	// Absolute passes when |nominal - actual| <= tolerance and units match.
	Absolute float32

	// Relative passes when |(nominal - actual) / nominal| <= tolerance and
	// units match.
	Relative float32

	// Ignore always passes.
	Ignore struct{}
)

func (Absolute) isMode() {}
func (Relative) isMode() {}
func (Ignore) isMode()   {}

func (m Absolute) String() string { return "Absolute (tol: " + formatFloat(float32(m)) + ")" }
func (m Relative) String() string { return "Relative (tol: " + formatFloat(float32(m)) + ")" }
func (Ignore) String() string     { return "Ignored" }

func (m Absolute) InTolerance(nominal, actual Quantity) bool {
	if bothNaN(nominal, actual) {
		return true
	}
	return sameUnit(nominal.Unit, actual.Unit) && withinTolerance(nominal.Value, actual.Value, float32(m), false)
}

func (m Relative) InTolerance(nominal, actual Quantity) bool {
	if bothNaN(nominal, actual) {
		return true
	}
	return sameUnit(nominal.Unit, actual.Unit) && withinTolerance(nominal.Value, actual.Value, float32(m), true)
}

func (Ignore) InTolerance(Quantity, Quantity) bool { return true }

func bothNaN(a, b Quantity) bool {
	return isNaN(a.Value) && isNaN(b.Value)
}

// withinTolerance applies the numeric half of a mode. A zero difference
// always passes; a zero tolerance rejects any difference. A relative check
// against a nominal of 0 yields a non-finite ratio and fails.
func withinTolerance(nominal, actual, tolerance float32, relative bool) bool {
	if nominal == actual {
		return true
	}
	if tolerance == 0 {
		return false
	}
	diff := secureDiff(nominal, actual)
	if relative {
		diff = float32(math.Abs(float64(diff / nominal)))
	}
	return diff <= tolerance
}

// DiffKind names a DiffType variant.
type DiffKind string

const (
	KindUnequalStrings      DiffKind = "unequal_strings"
	KindOutOfTolerance      DiffKind = "out_of_tolerance"
	KindDifferentValueTypes DiffKind = "different_value_types"
	KindUnequalHeader       DiffKind = "unequal_header"
)

// DiffType is one discrepancy between nominal and actual. Implementations
// are UnequalStrings, OutOfTolerance, DifferentValueTypes and UnequalHeader.
type DiffType interface {
	Kind() DiffKind
	String() string
	isDiff()
}

// UnequalStrings: both cells are strings with different text.
type UnequalStrings struct {
	Nominal  string
	Actual   string
	Position Position
}

// OutOfTolerance: both cells are quantities and Mode rejected them.
type OutOfTolerance struct {
	Nominal  Quantity
	Actual   Quantity
	Mode     Mode
	Position Position
}

// DifferentValueTypes: one cell is a quantity and the other a string.
type DifferentValueTypes struct {
	Nominal  Value
	Actual   Value
	Position Position
}

// UnequalHeader: both tables have headers and column Col differs.
type UnequalHeader struct {
	Nominal string
	Actual  string
	Col     int
}

func (UnequalStrings) isDiff()      {}
func (OutOfTolerance) isDiff()      {}
func (DifferentValueTypes) isDiff() {}
func (UnequalHeader) isDiff()       {}

func (UnequalStrings) Kind() DiffKind      { return KindUnequalStrings }
func (OutOfTolerance) Kind() DiffKind      { return KindOutOfTolerance }
func (DifferentValueTypes) Kind() DiffKind { return KindDifferentValueTypes }
func (UnequalHeader) Kind() DiffKind       { return KindUnequalHeader }

func (d UnequalStrings) String() string {
	return fmt.Sprintf("Line: %d, Col: %d -- Different strings -- Expected %s, Found %s",
		d.Position.Row, d.Position.Col, d.Nominal, d.Actual)
}

func (d OutOfTolerance) String() string {
	return fmt.Sprintf("Line: %d, Col: %d -- Out of tolerance -- Expected %s, Found %s, Mode %s",
		d.Position.Row, d.Position.Col, d.Nominal, d.Actual, d.Mode)
}

func (d DifferentValueTypes) String() string {
	return fmt.Sprintf("Line: %d, Col: %d -- Different value types -- Expected %s, Found %s",
		d.Position.Row, d.Position.Col, d.Nominal, d.Actual)
}

func (d UnequalHeader) String() string {
	return fmt.Sprintf("Col: %d -- Different header strings -- Expected %s, Found %s", d.Col, d.Nominal, d.Actual)
}

// diffJSON is the wire form shared by every DiffType.
type diffJSON struct {
	Kind     DiffKind  `json:"kind"`
	Position *Position `json:"position,omitempty"`
	Col      *int      `json:"col,omitempty"`
	Nominal  any       `json:"nominal"`
	Actual   any       `json:"actual"`
	Mode     string    `json:"mode,omitempty"`
	Message  string    `json:"message"`
}

func (d UnequalStrings) MarshalJSON() ([]byte, error) {
	return json.Marshal(diffJSON{Kind: d.Kind(), Position: &d.Position, Nominal: d.Nominal, Actual: d.Actual, Message: d.String()})
}

func (d OutOfTolerance) MarshalJSON() ([]byte, error) {
	return json.Marshal(diffJSON{Kind: d.Kind(), Position: &d.Position, Nominal: d.Nominal, Actual: d.Actual, Mode: d.Mode.String(), Message: d.String()})
}

func (d DifferentValueTypes) MarshalJSON() ([]byte, error) {
	return json.Marshal(diffJSON{Kind: d.Kind(), Position: &d.Position, Nominal: valueJSON(d.Nominal), Actual: valueJSON(d.Actual), Message: d.String()})
}

func (d UnequalHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(diffJSON{Kind: d.Kind(), Col: &d.Col, Nominal: d.Nominal, Actual: d.Actual, Message: d.String()})
}

func valueJSON(v Value) any {
	switch v := v.(type) {
	case Quantity:
		return map[string]any{"quantity": v}
	case String:
		return map[string]any{"string": string(v)}
	}
	return nil
}

// DiffPosition returns the cell position of d, or false for header diffs.
func DiffPosition(d DiffType) (Position, bool) {
	switch d := d.(type) {
	case UnequalStrings:
		return d.Position, true
	case OutOfTolerance:
		return d.Position, true
	case DifferentValueTypes:
		return d.Position, true
	}
	return Position{}, false
}

// Diff compares two tables cell by cell in row-major order. Cells are paired
// by their index in that order; when one table has more cells the surplus is
// ignored. Header differences are reported first when both tables carry
// headers.
func Diff(nominal, actual *Table, cfg CompareConfig) ([]DiffType, error) {
	var exclude *regexp.Regexp
	if cfg.ExcludeFieldRegex != "" {
		re, err := regexp.Compile(cfg.ExcludeFieldRegex)
		if err != nil {
			return nil, fmt.Errorf("exclude field regex %q: %w: %v", cfg.ExcludeFieldRegex, ErrRegexCompilation, err)
		}
		exclude = re
	}

	diffs := compareHeaders(nominal, actual)

	nomCells := nominal.cells()
	actCells := actual.cells()
	n := min(len(nomCells), len(actCells))
	for i := 0; i < n; i++ {
		diffs = append(diffs, compareValues(nomCells[i].value, actCells[i].value, nomCells[i].pos, cfg.Modes, exclude)...)
	}
	return diffs, nil
}

func compareHeaders(nominal, actual *Table) []DiffType {
	var diffs []DiffType
	n := min(len(nominal.Columns), len(actual.Columns))
	for c := 0; c < n; c++ {
		nh, ah := nominal.Columns[c].Header, actual.Columns[c].Header
		if nh != nil && ah != nil && *nh != *ah {
			diffs = append(diffs, UnequalHeader{Nominal: *nh, Actual: *ah, Col: c})
		}
	}
	return diffs
}

// compareValues compares one aligned cell pair.
func compareValues(nominal, actual Value, pos Position, modes []Mode, exclude *regexp.Regexp) []DiffType {
	switch nom := nominal.(type) {
	case Quantity:
		act, ok := actual.(Quantity)
		if !ok {
			break
		}
		var diffs []DiffType
		for _, m := range modes {
			if !m.InTolerance(nom, act) {
				diffs = append(diffs, OutOfTolerance{Nominal: nom, Actual: act, Mode: m, Position: pos})
			}
		}
		return diffs

	case String:
		act, ok := actual.(String)
		if !ok {
			break
		}
		if exclude != nil && exclude.MatchString(string(nom)) {
			return nil
		}
		if nom != act {
			return []DiffType{UnequalStrings{Nominal: string(nom), Actual: string(act), Position: pos}}
		}
		return nil
	}

	return []DiffType{DifferentValueTypes{Nominal: nominal, Actual: actual, Position: pos}}
}
