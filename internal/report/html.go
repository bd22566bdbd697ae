package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvcompare/internal/core"
)

//go:generate templ generate

// HTMLIndexFile is the entry page of the HTML report.
const HTMLIndexFile = "index.html"

const filesDir = "files"

const styleTag = `<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.6em; text-align: left; }
th { background: #f4f4f4; }
.ok { color: #1a7f37; }
.fail { color: #cf222e; }
code { font-size: 0.9em; }
</style>`

const timestampLayout = "2006-01-02 15:04:05 MST"

// WriteHTML renders the run as a static site below dir: index.html with one
// table per rule, plus files/<rule>_<file>.html for every pair that failed.
// It returns the path of index.html.
func WriteHTML(ctx context.Context, dir string, run *Run) (string, error) {
	if err := os.MkdirAll(filepath.Join(dir, filesDir), 0o755); err != nil {
		return "", fmt.Errorf("create report folder: %w", err)
	}

	for ri := range run.Rules {
		rule := &run.Rules[ri]
		for fi := range rule.Files {
			file := &rule.Files[fi]
			if !file.IsError {
				continue
			}
			path := filepath.Join(dir, filePageName(ri, fi))
			title := rule.Name + ": " + file.RelativePath
			if err := renderFile(ctx, path, page(title, ".."), filePage(file)); err != nil {
				return "", err
			}
		}
	}

	index := filepath.Join(dir, HTMLIndexFile)
	if err := renderFile(ctx, index, page("Comparison report", "."), indexPage(run)); err != nil {
		return "", err
	}
	return index, nil
}

func filePageName(rule, file int) string {
	return filesDir + "/" + strconv.Itoa(rule) + "_" + strconv.Itoa(file) + ".html"
}

// renderFile writes layout to path with body as its children.
func renderFile(ctx context.Context, path string, layout, body templ.Component) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := layout.Render(templ.WithChildren(ctx, body), f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func overviewURL(root string) templ.SafeURL {
	return templ.URL(root + "/" + HTMLIndexFile)
}

func runCounts(run *Run) string {
	files, failed := run.Counts()
	return fmt.Sprintf("%d compared, %d failed", files, failed)
}

func rowCounts(file *FileResult) string {
	return fmt.Sprintf("%d nominal, %d actual", file.NominalRows, file.ActualRows)
}

func fileError(file *FileResult) string {
	if file.ErrorCode != "" {
		return "[" + file.ErrorCode + "] " + file.Error
	}
	return file.Error
}

func fileSummary(file *FileResult) string {
	switch {
	case file.Error != "":
		return "comparison failed"
	case file.Hash != nil:
		if file.Hash.Match() {
			return "hashes match"
		}
		return "hashes differ"
	default:
		return strconv.Itoa(len(file.Diffs))
	}
}

func diffRowLabel(d core.DiffType) string {
	if pos, ok := core.DiffPosition(d); ok {
		return strconv.Itoa(pos.Row)
	}
	if _, ok := d.(core.UnequalHeader); ok {
		return "header"
	}
	return ""
}

func diffColumn(d core.DiffType) string {
	if pos, ok := core.DiffPosition(d); ok {
		return strconv.Itoa(pos.Col)
	}
	if header, ok := d.(core.UnequalHeader); ok {
		return strconv.Itoa(header.Col)
	}
	return ""
}

// columnLabel appends the header name to a column index when known.
func columnLabel(col string, headers []string) string {
	i, err := strconv.Atoi(col)
	if err != nil || i >= len(headers) {
		return col
	}
	return col + " (" + headers[i] + ")"
}
