// Package report holds the result model of a comparison run and writes it
// as JSON and as a static HTML site.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvcompare/internal/core"
)

// Run is the outcome of comparing two folders against a rules file, or of a
// single API comparison.
type Run struct {
	ID         uuid.UUID     `json:"id"`
	Source     string        `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	NominalDir string        `json:"nominal_dir,omitempty"`
	ActualDir  string        `json:"actual_dir,omitempty"`
	Rules      []RuleResult  `json:"rules"`
	AllOkay    bool          `json:"all_okay"`
}

// Run sources.
const (
	SourceCLI = "cli"
	SourceAPI = "api"
)

// NewRun starts a run with a fresh ID.
func NewRun(source string) *Run {
	return &Run{
		ID:        uuid.New(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the duration and computes AllOkay.
func (r *Run) Finish() {
	r.Duration = time.Since(r.StartedAt)
	r.AllOkay = true
	for i := range r.Rules {
		if r.Rules[i].IsError() {
			r.AllOkay = false
		}
	}
}

// Counts returns the number of compared file pairs and how many failed.
func (r *Run) Counts() (files, failed int) {
	for i := range r.Rules {
		for j := range r.Rules[i].Files {
			files++
			if r.Rules[i].Files[j].IsError {
				failed++
			}
		}
	}
	return files, failed
}

// RuleResult groups the file results of one rule.
type RuleResult struct {
	Name           string       `json:"name"`
	Kind           string       `json:"kind"`
	PatternInclude string       `json:"pattern_include"`
	PatternExclude string       `json:"pattern_exclude,omitempty"`
	Error          string       `json:"error,omitempty"`
	Files          []FileResult `json:"files"`
}

// IsError reports whether the rule failed or any of its files differ.
func (r *RuleResult) IsError() bool {
	if r.Error != "" {
		return true
	}
	for i := range r.Files {
		if r.Files[i].IsError {
			return true
		}
	}
	return false
}

// FileResult is the outcome of one nominal/actual pair.
type FileResult struct {
	Nominal      string          `json:"nominal"`
	Actual       string          `json:"actual"`
	RelativePath string          `json:"relative_path"`
	IsError      bool            `json:"is_error"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	Diffs        []core.DiffType `json:"diffs"`
	Headers      []string        `json:"headers,omitempty"`
	NominalRows  int             `json:"nominal_rows,omitempty"`
	ActualRows   int             `json:"actual_rows,omitempty"`
	BytesRead    int64           `json:"bytes_read,omitempty"`
	Hash         *HashDetail     `json:"hash,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
}

// HashDetail holds both digests of a hash comparison.
type HashDetail struct {
	Function string `json:"function"`
	Nominal  string `json:"nominal"`
	Actual   string `json:"actual"`
}

// Match reports whether both digests are equal.
func (h *HashDetail) Match() bool {
	return h.Nominal == h.Actual
}

func (h *HashDetail) String() string {
	if h.Match() {
		return fmt.Sprintf("%s digests match: %s", h.Function, h.Nominal)
	}
	return fmt.Sprintf("Nominal file's hash is '%s' actual is '%s'", h.Nominal, h.Actual)
}

// FromCompareResult converts an engine result for reporting.
func FromCompareResult(nominal, actual string, res *core.Result) FileResult {
	return FileResult{
		Nominal:     nominal,
		Actual:      actual,
		IsError:     res.IsError(),
		Diffs:       res.Diffs,
		Headers:     res.Headers,
		NominalRows: res.NominalRows,
		ActualRows:  res.ActualRows,
		BytesRead:   res.BytesRead,
		Duration:    res.Duration,
	}
}

// Failed builds the result of a pair that could not be compared.
func Failed(nominal, actual string, err error) FileResult {
	return FileResult{
		Nominal:   nominal,
		Actual:    actual,
		IsError:   true,
		Error:     err.Error(),
		ErrorCode: core.MapError(err).Code,
	}
}
