package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvcompare/internal/core"
)

func sampleRun() *Run {
	run := NewRun(SourceCLI)
	run.NominalDir = "nominal"
	run.ActualDir = "actual"
	run.Rules = []RuleResult{
		{
			Name:           "tables <csv>",
			Kind:           "CSV",
			PatternInclude: "**/*.csv",
			Files: []FileResult{
				{Nominal: "nominal/a.csv", Actual: "actual/a.csv", RelativePath: "a.csv", Diffs: []core.DiffType{}},
				{
					Nominal:      "nominal/b.csv",
					Actual:       "actual/b.csv",
					RelativePath: "b.csv",
					IsError:      true,
					Headers:      []string{"Name", "Value"},
					NominalRows:  1,
					ActualRows:   1,
					Diffs: []core.DiffType{
						core.UnequalHeader{Nominal: "Value", Actual: "Val", Col: 1},
						core.UnequalStrings{Nominal: "<x>", Actual: "y", Position: core.Position{Row: 1, Col: 0}},
						core.OutOfTolerance{
							Nominal:  core.NewQuantity(1, "m"),
							Actual:   core.NewQuantity(2, "m"),
							Mode:     core.Absolute(0.5),
							Position: core.Position{Row: 1, Col: 1},
						},
					},
				},
			},
		},
		{
			Name:           "blobs",
			Kind:           "Hash",
			PatternInclude: "*.bin",
			Files: []FileResult{{
				Nominal:      "nominal/c.bin",
				Actual:       "actual/c.bin",
				RelativePath: "c.bin",
				IsError:      true,
				Hash:         &HashDetail{Function: "Sha256", Nominal: "aa", Actual: "bb"},
			}},
		},
	}
	run.Finish()
	return run
}

func TestRunFinish(t *testing.T) {
	run := sampleRun()
	assert.False(t, run.AllOkay)

	files, failed := run.Counts()
	assert.Equal(t, 3, files)
	assert.Equal(t, 2, failed)

	ok := NewRun(SourceAPI)
	ok.Rules = []RuleResult{{Name: "r", Files: []FileResult{{RelativePath: "a"}}}}
	ok.Finish()
	assert.True(t, ok.AllOkay)

	broken := NewRun(SourceAPI)
	broken.Rules = []RuleResult{{Name: "r", Error: "nominal folder missing"}}
	broken.Finish()
	assert.False(t, broken.AllOkay)
}

func TestHashDetail(t *testing.T) {
	same := &HashDetail{Function: "Sha256", Nominal: "ab", Actual: "ab"}
	assert.True(t, same.Match())

	diff := &HashDetail{Function: "Sha256", Nominal: "ab", Actual: "cd"}
	assert.False(t, diff.Match())
	assert.Equal(t, "Nominal file's hash is 'ab' actual is 'cd'", diff.String())
}

func TestFailed(t *testing.T) {
	res := Failed("n", "a", &core.RowCountError{Nominal: 1, Actual: 2})
	assert.True(t, res.IsError)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, core.MapError(&core.RowCountError{}).Code, res.ErrorCode)
}

func TestWriteJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	run := sampleRun()

	path, err := WriteJSON(dir, run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, JSONFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		ID      string `json:"id"`
		AllOkay bool   `json:"all_okay"`
		Rules   []struct {
			Name  string `json:"name"`
			Files []struct {
				RelativePath string `json:"relative_path"`
				Diffs        []struct {
					Kind    string `json:"kind"`
					Message string `json:"message"`
				} `json:"diffs"`
				Hash *HashDetail `json:"hash"`
			} `json:"files"`
		} `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, run.ID.String(), decoded.ID)
	assert.False(t, decoded.AllOkay)
	require.Len(t, decoded.Rules, 2)
	diffs := decoded.Rules[0].Files[1].Diffs
	require.Len(t, diffs, 3)
	assert.Equal(t, string(core.KindUnequalHeader), diffs[0].Kind)
	assert.Equal(t, string(core.KindOutOfTolerance), diffs[2].Kind)
	assert.Contains(t, diffs[2].Message, "Out of tolerance")
	assert.Equal(t, "bb", decoded.Rules[1].Files[0].Hash.Actual)
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	run := sampleRun()

	index, err := WriteHTML(context.Background(), dir, run)
	require.NoError(t, err)

	data, err := os.ReadFile(index)
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "<!doctype html>")
	assert.Contains(t, page, "tables &lt;csv&gt;")
	assert.Contains(t, page, `href="files/0_1.html"`)
	assert.Contains(t, page, `href="files/1_0.html"`)
	assert.NotContains(t, page, `href="files/0_0.html"`)

	_, err = os.Stat(filepath.Join(dir, "files", "0_0.html"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	data, err = os.ReadFile(filepath.Join(dir, "files", "0_1.html"))
	require.NoError(t, err)
	detail := string(data)
	assert.Contains(t, detail, "Back to overview")
	assert.Contains(t, detail, "&lt;x&gt;")
	assert.Contains(t, detail, "1 (Value)")
	assert.Contains(t, detail, string(core.KindOutOfTolerance))

	data, err = os.ReadFile(filepath.Join(dir, "files", "1_0.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Nominal file&#39;s hash is")
}

func TestColumnLabel(t *testing.T) {
	headers := []string{"a", "b"}
	assert.Equal(t, "1 (b)", columnLabel("1", headers))
	assert.Equal(t, "5", columnLabel("5", headers))
	assert.Equal(t, "", columnLabel("", headers))
	assert.Equal(t, "0", columnLabel("0", nil))
}

func renderString(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(ctx, &sb))
	return sb.String()
}

func TestPage_WrapsChildren(t *testing.T) {
	body := templ.Raw("<p>body</p>")

	out := renderString(t, templ.WithChildren(context.Background(), body), page("A & B", ".."))
	assert.Contains(t, out, "<title>A &amp; B</title>")
	assert.Contains(t, out, `<a href="../index.html">Back to overview</a>`)
	assert.Contains(t, out, "</h1><p>body</p></body>")

	out = renderString(t, templ.WithChildren(context.Background(), body), page("Top", "."))
	assert.NotContains(t, out, "Back to overview")
}

func TestStatus(t *testing.T) {
	assert.Equal(t, `<span class="fail">FAILED</span>`, renderString(t, context.Background(), status(true)))
	assert.Equal(t, `<span class="ok">OK</span>`, renderString(t, context.Background(), status(false)))
}

func TestDiffRow(t *testing.T) {
	headers := []string{"id", "Value"}
	tests := []struct {
		name string
		diff core.DiffType
		row  string
		col  string
	}{
		{"header", core.UnequalHeader{Nominal: "Value", Actual: "Val", Col: 1}, "header", "1 (Value)"},
		{"cell", core.UnequalStrings{Nominal: "a", Actual: "b", Position: core.Position{Row: 4, Col: 0}}, "4", "0 (id)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.row, diffRowLabel(tt.diff))
			out := renderString(t, context.Background(), diffRow(2, tt.diff, headers))
			assert.True(t, strings.HasPrefix(out, "<tr><td>3</td>"), out)
			assert.Contains(t, out, "<td>"+tt.col+"</td>")
		})
	}
}

func TestFilePage_ErrorCode(t *testing.T) {
	file := &FileResult{Nominal: "n.csv", Actual: "a.csv", IsError: true, Error: "bad <row>", ErrorCode: "CSV002"}
	out := renderString(t, context.Background(), filePage(file))
	assert.Contains(t, out, `<p class="fail">[CSV002] bad &lt;row&gt;</p>`)
	assert.NotContains(t, out, "Differences")
}
