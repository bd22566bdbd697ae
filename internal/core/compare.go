package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JonMunkholm/csvcompare/internal/logging"
)

// CompareConfig configures one CSV file-pair comparison.
type CompareConfig struct {
	// Delimiters are guessed per file when empty.
	Delimiters Delimiters

	// Modes are all applied to every pair of quantities.
	Modes []Mode

	// ExcludeFieldRegex skips string pairs whose nominal text matches.
	ExcludeFieldRegex string

	// Preprocessing runs on both tables, in order, before diffing.
	Preprocessing []Preprocessor

	// RequireEqualRowCount fails the comparison when the preprocessed tables
	// differ in row count instead of comparing the overlapping cells.
	RequireEqualRowCount bool
}

// Result is the outcome of comparing one file pair.
type Result struct {
	Diffs []DiffType

	// Headers of the nominal table after preprocessing, if any.
	Headers []string

	NominalRows int
	ActualRows  int

	NominalDelimiters Delimiters
	ActualDelimiters  Delimiters

	BytesRead int64
	Duration  time.Duration
}

// IsError reports whether any difference was found.
func (r *Result) IsError() bool {
	return len(r.Diffs) > 0
}

// CompareReaders parses, preprocesses and diffs two sources. The work is
// synchronous; ctx is only checked between phases.
func CompareReaders(ctx context.Context, nominal, actual io.ReadSeeker, cfg CompareConfig) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(ctx)

	nomTable, err := NewTable(ctx, nominal, cfg.Delimiters)
	if err != nil {
		return nil, fmt.Errorf("parse nominal: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	actTable, err := NewTable(ctx, actual, cfg.Delimiters)
	if err != nil {
		return nil, fmt.Errorf("parse actual: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := ApplyAll(nomTable, cfg.Preprocessing); err != nil {
		return nil, fmt.Errorf("nominal: %w", err)
	}
	if err := ApplyAll(actTable, cfg.Preprocessing); err != nil {
		return nil, fmt.Errorf("actual: %w", err)
	}

	if cfg.RequireEqualRowCount && nomTable.RowCount() != actTable.RowCount() {
		return nil, &RowCountError{Nominal: nomTable.RowCount(), Actual: actTable.RowCount()}
	}
	if nomTable.RowCount() != actTable.RowCount() {
		logger.Warn("tables differ in row count, comparing overlapping cells",
			"nominal_rows", nomTable.RowCount(),
			"actual_rows", actTable.RowCount(),
		)
	}

	diffs, err := Diff(nomTable, actTable, cfg)
	if err != nil {
		return nil, err
	}
	for _, d := range diffs {
		logger.Debug("difference", "detail", d.String())
	}

	return &Result{
		Diffs:             diffs,
		Headers:           nomTable.Headers(),
		NominalRows:       nomTable.RowCount(),
		ActualRows:        actTable.RowCount(),
		NominalDelimiters: nomTable.Delimiters,
		ActualDelimiters:  actTable.Delimiters,
		BytesRead:         nomTable.BytesRead + actTable.BytesRead,
		Duration:          time.Since(start),
	}, nil
}

// ComparePaths opens both files and compares them with CompareReaders.
func ComparePaths(ctx context.Context, nominalPath, actualPath string, cfg CompareConfig) (*Result, error) {
	nominal, err := os.Open(nominalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	defer nominal.Close()

	actual, err := os.Open(actualPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	defer actual.Close()

	logging.WithFields(ctx, "nominal", nominalPath, "actual", actualPath).Info("comparing csv files")
	return CompareReaders(ctx, nominal, actual, cfg)
}
