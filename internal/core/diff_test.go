package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		nominal Quantity
		actual  Quantity
		want    bool
	}{
		{name: "absolute inside", mode: Absolute(0.1), nominal: NewQuantity(1, ""), actual: NewQuantity(1.05, ""), want: true},
		{name: "absolute outside", mode: Absolute(0.1), nominal: NewQuantity(1, ""), actual: NewQuantity(1.2, ""), want: false},
		{name: "absolute zero tolerance equal", mode: Absolute(0), nominal: NewQuantity(3, ""), actual: NewQuantity(3, ""), want: true},
		{name: "absolute zero tolerance differs", mode: Absolute(0), nominal: NewQuantity(3, ""), actual: NewQuantity(3.0001, ""), want: false},
		{name: "relative inside", mode: Relative(0.1), nominal: NewQuantity(100, ""), actual: NewQuantity(105, ""), want: true},
		{name: "relative outside", mode: Relative(0.01), nominal: NewQuantity(100, ""), actual: NewQuantity(105, ""), want: false},
		{name: "relative zero nominal", mode: Relative(0.5), nominal: NewQuantity(0, ""), actual: NewQuantity(0.1, ""), want: false},
		{name: "unit mismatch", mode: Absolute(10), nominal: NewQuantity(1, "mm"), actual: NewQuantity(1, "m"), want: false},
		{name: "unit missing on one side", mode: Absolute(10), nominal: NewQuantity(1, ""), actual: NewQuantity(1, "m"), want: false},
		{name: "infinities equal", mode: Absolute(0.1), nominal: NewQuantity(float32(math.Inf(1)), ""), actual: NewQuantity(float32(math.Inf(1)), ""), want: true},
		{name: "ignore", mode: Ignore{}, nominal: NewQuantity(1, "mm"), actual: NewQuantity(1000, "km"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.InTolerance(tt.nominal, tt.actual))
		})
	}
}

func TestModes_NaN(t *testing.T) {
	nan := NewQuantity(float32(math.NaN()), "")
	for _, m := range []Mode{Absolute(0), Relative(0), Absolute(1)} {
		assert.True(t, m.InTolerance(nan, nan), "%s", m)
		assert.False(t, m.InTolerance(nan, NewQuantity(1, "")), "%s", m)
	}
}

func TestModes_ToleranceMonotonic(t *testing.T) {
	nominal, actual := NewQuantity(10, ""), NewQuantity(10.4, "")
	passed := false
	for _, tol := range []float32{0, 0.1, 0.3, 0.5, 1, 10} {
		ok := Absolute(tol).InTolerance(nominal, actual)
		if passed {
			assert.True(t, ok, "tolerance %v failed after a smaller one passed", tol)
		}
		passed = passed || ok
	}
	assert.True(t, passed)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "Absolute (tol: 0.5)", Absolute(0.5).String())
	assert.Equal(t, "Relative (tol: 0.1)", Relative(0.1).String())
	assert.Equal(t, "Ignored", Ignore{}.String())
}

func TestDiff_Identity(t *testing.T) {
	input := "name,value\nfoo,1.5 mm\nbar,nan\n"
	cfg := CompareConfig{Modes: []Mode{Absolute(0), Relative(0)}}

	diffs, err := Diff(mustTable(t, input), mustTable(t, input), cfg)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiff_Kinds(t *testing.T) {
	nominal := mustTable(t, "a,1.0,x\nb,2.0 mm,3\n")
	actual := mustTable(t, "z,1.5,x\nb,2.0 m,y\n")
	cfg := CompareConfig{Modes: []Mode{Absolute(0.1)}}

	diffs, err := Diff(nominal, actual, cfg)
	require.NoError(t, err)
	require.Len(t, diffs, 4)

	assert.Equal(t, UnequalStrings{Nominal: "a", Actual: "z", Position: Position{Row: 0, Col: 0}}, diffs[0])

	oot, ok := diffs[1].(OutOfTolerance)
	require.True(t, ok)
	assert.Equal(t, Position{Row: 0, Col: 1}, oot.Position)
	assert.Equal(t, Absolute(0.1), oot.Mode)

	oot, ok = diffs[2].(OutOfTolerance)
	require.True(t, ok, "unit mismatch is out of tolerance")
	assert.Equal(t, Position{Row: 1, Col: 1}, oot.Position)

	dvt, ok := diffs[3].(DifferentValueTypes)
	require.True(t, ok)
	assert.Equal(t, Position{Row: 1, Col: 2}, dvt.Position)
}

func TestDiff_OneDiffPerFailingMode(t *testing.T) {
	nominal := mustTable(t, "100\n")
	actual := mustTable(t, "110\n")
	cfg := CompareConfig{Modes: []Mode{Absolute(1), Relative(0.5), Relative(0.01), Ignore{}}}

	diffs, err := Diff(nominal, actual, cfg)
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, Absolute(1), diffs[0].(OutOfTolerance).Mode)
	assert.Equal(t, Relative(0.01), diffs[1].(OutOfTolerance).Mode)
}

func TestDiff_NoModesAcceptsAnyQuantity(t *testing.T) {
	diffs, err := Diff(mustTable(t, "1\n"), mustTable(t, "2 mm\n"), CompareConfig{})
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiff_ExcludeFieldRegex(t *testing.T) {
	nominal := mustTable(t, "Date: 2020,foo\n")
	actual := mustTable(t, "Date: 2024,bar\n")

	diffs, err := Diff(nominal, actual, CompareConfig{ExcludeFieldRegex: "^Date"})
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, Position{Row: 0, Col: 1}, diffs[0].(UnequalStrings).Position)

	_, err = Diff(nominal, actual, CompareConfig{ExcludeFieldRegex: "["})
	assert.True(t, errors.Is(err, ErrRegexCompilation))
}

func TestDiff_TruncatesToShorterTable(t *testing.T) {
	nominal := mustTable(t, "1\n2\n3\n")
	actual := mustTable(t, "1\n5\n")

	diffs, err := Diff(nominal, actual, CompareConfig{Modes: []Mode{Absolute(0)}})
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	pos, ok := DiffPosition(diffs[0])
	require.True(t, ok)
	assert.Equal(t, Position{Row: 1, Col: 0}, pos)
}

func TestDiff_DeletedCellsMatch(t *testing.T) {
	nominal := mustTable(t, "Time,Value\n1,5\n")
	actual := mustTable(t, "Time,Value\n99,5\n")
	cfg := CompareConfig{
		Modes:         []Mode{Absolute(0)},
		Preprocessing: []Preprocessor{ExtractHeaders{}, DeleteColumnByName("Time")},
	}
	require.NoError(t, ApplyAll(nominal, cfg.Preprocessing))
	require.NoError(t, ApplyAll(actual, cfg.Preprocessing))

	diffs, err := Diff(nominal, actual, cfg)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiff_HeadersFirst(t *testing.T) {
	nominal := mustTable(t, "a,b\n1,2\n")
	actual := mustTable(t, "a,c\n1,3\n")
	require.NoError(t, ExtractHeaders{}.Apply(nominal))
	require.NoError(t, ExtractHeaders{}.Apply(actual))

	diffs, err := Diff(nominal, actual, CompareConfig{Modes: []Mode{Absolute(0)}})
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, UnequalHeader{Nominal: "b", Actual: "c", Col: 1}, diffs[0])
	_, ok := DiffPosition(diffs[0])
	assert.False(t, ok)
	assert.Equal(t, KindOutOfTolerance, diffs[1].Kind())
}

func TestDiffString(t *testing.T) {
	tests := []struct {
		name string
		diff DiffType
		want string
	}{
		{
			name: "strings",
			diff: UnequalStrings{Nominal: "a", Actual: "b", Position: Position{Row: 1, Col: 2}},
			want: "Line: 1, Col: 2 -- Different strings -- Expected a, Found b",
		},
		{
			name: "tolerance",
			diff: OutOfTolerance{Nominal: NewQuantity(1, "mm"), Actual: NewQuantity(2, "mm"), Mode: Absolute(0.5), Position: Position{Row: 0, Col: 3}},
			want: "Line: 0, Col: 3 -- Out of tolerance -- Expected 1 mm, Found 2 mm, Mode Absolute (tol: 0.5)",
		},
		{
			name: "value types",
			diff: DifferentValueTypes{Nominal: NewQuantity(1, ""), Actual: String("x"), Position: Position{Row: 4, Col: 0}},
			want: "Line: 4, Col: 0 -- Different value types -- Expected 1, Found 'x'",
		},
		{
			name: "header",
			diff: UnequalHeader{Nominal: "a", Actual: "b", Col: 2},
			want: "Col: 2 -- Different header strings -- Expected a, Found b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.diff.String())
		})
	}
}

func TestDiffJSON(t *testing.T) {
	data, err := json.Marshal(OutOfTolerance{
		Nominal:  NewQuantity(1, "mm"),
		Actual:   NewQuantity(2, "mm"),
		Mode:     Relative(0.1),
		Position: Position{Row: 2, Col: 1},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "out_of_tolerance",
		"position": {"row": 2, "col": 1},
		"nominal": {"value": 1, "unit": "mm"},
		"actual": {"value": 2, "unit": "mm"},
		"mode": "Relative (tol: 0.1)",
		"message": "Line: 2, Col: 1 -- Out of tolerance -- Expected 1 mm, Found 2 mm, Mode Relative (tol: 0.1)"
	}`, string(data))

	data, err = json.Marshal(DifferentValueTypes{Nominal: String("x"), Actual: NewQuantity(3, ""), Position: Position{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "different_value_types",
		"position": {"row": 0, "col": 0},
		"nominal": {"string": "x"},
		"actual": {"quantity": {"value": 3}},
		"message": "Line: 0, Col: 0 -- Different value types -- Expected 'x', Found 3"
	}`, string(data))
}
