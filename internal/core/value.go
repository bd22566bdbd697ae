package core

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// deletedMarker is the text stored in cells and headers removed by a preprocessor.
const deletedMarker = "DELETED"

// Value is a single parsed table cell. The only implementations are Quantity
// and String.
type Value interface {
	// String renders the value for reports: quantities as "<value> <unit>",
	// strings quoted with single ticks.
	String() string

	// Text is the raw textual form used for regex matching.
	Text() string

	isValue()
}

// Quantity is a numeric cell with an optional unit.
type Quantity struct {
	Value float32
	Unit  *string
}

// String is a non-numeric cell.
type String string

func (Quantity) isValue() {}
func (String) isValue()   {}

// NewQuantity builds a Quantity; an empty unit means no unit.
func NewQuantity(value float32, unit string) Quantity {
	q := Quantity{Value: value}
	if unit != "" {
		q.Unit = &unit
	}
	return q
}

func (q Quantity) String() string {
	if unit := q.UnitString(); unit != "" {
		return formatFloat(q.Value) + " " + unit
	}
	return formatFloat(q.Value)
}

func (q Quantity) Text() string { return q.String() }

// UnitString returns the unit or "" when there is none.
func (q Quantity) UnitString() string {
	if q.Unit == nil {
		return ""
	}
	return *q.Unit
}

// MarshalJSON encodes non-finite values as strings since JSON has no NaN.
func (q Quantity) MarshalJSON() ([]byte, error) {
	var v any = q.Value
	if math.IsNaN(float64(q.Value)) || math.IsInf(float64(q.Value), 0) {
		v = formatFloat(q.Value)
	}
	return json.Marshal(struct {
		Value any     `json:"value"`
		Unit  *string `json:"unit,omitempty"`
	}{v, q.Unit})
}

func (s String) String() string { return "'" + string(s) + "'" }

func (s String) Text() string { return string(s) }

// Deleted returns the sentinel written over removed cells.
func Deleted() Value { return String(deletedMarker) }

// ParseValue converts raw field text into a Value. It never fails: anything
// that is not "<number>" or "<number> <unit>" becomes a String.
//
// decimalSeparator is replaced with '.' before parsing; 0 disables the
// substitution.
func ParseValue(raw string, decimalSeparator rune) Value {
	field := raw
	if decimalSeparator != 0 && decimalSeparator != '.' {
		field = strings.ReplaceAll(field, string(decimalSeparator), ".")
	}

	parts := strings.Split(strings.TrimSpace(field), " ")
	if len(parts) == 1 || len(parts) == 2 {
		if f, ok := parseFloat32(parts[0]); ok {
			q := Quantity{Value: f}
			if len(parts) == 2 {
				unit := parts[1]
				q.Unit = &unit
			}
			return q
		}
	}

	return String(strings.TrimSpace(raw))
}

// parseFloat32 accepts out-of-range input as +-Inf or 0.
func parseFloat32(s string) (float32, bool) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return float32(f), true
}

// AsQuantity returns the Quantity held by v, if any.
func AsQuantity(v Value) (Quantity, bool) {
	q, ok := v.(Quantity)
	return q, ok
}

// AsString returns the text held by v if it is a String.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// Equal reports whether two values are identical. NaN equals NaN.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Quantity:
		bv, ok := b.(Quantity)
		if !ok {
			return false
		}
		if !sameUnit(av.Unit, bv.Unit) {
			return false
		}
		if isNaN(av.Value) && isNaN(bv.Value) {
			return true
		}
		return av.Value == bv.Value
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	}
	return false
}

func sameUnit(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func isNaN(f float32) bool { return f != f }

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// secureDiff returns the distance between a and b after moving both bounds
// one ulp towards each other, so values that differ only by float noise do
// not exceed a tolerance equal to their nominal distance.
func secureDiff(a, b float32) float32 {
	lo, hi := min(a, b), max(a, b)
	up := float32(math.Inf(1))
	down := float32(math.Inf(-1))
	loUp := math.Nextafter32(lo, up)
	hiDown := math.Nextafter32(hi, down)
	return math.Nextafter32(hiDown-loUp, down)
}
