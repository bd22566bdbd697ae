// Package core implements the tabular CSV comparison engine.
//
// It turns loosely formatted delimited text into typed tables, reshapes them
// with preprocessors and reports positioned differences between a nominal
// and an actual table. It has no knowledge of rules files, folders, reports
// or HTTP; those layers call [ComparePaths] or [CompareReaders].
//
// # Architecture
//
// The package is organized leaf-first:
//
//   - Values: every cell is a [Quantity] (number plus optional unit) or a
//     [String]. [ParseValue] never fails; anything non-numeric degrades to a
//     String.
//   - Format guessing: [GuessDelimiters] infers the field delimiter and the
//     decimal separator when none are configured.
//   - Tokenizer: [Tokenizer] handles backslash escapes, quoted literals with
//     embedded newlines and doubled quotes, and CRLF/BOM normalisation.
//   - Tables: [Table] stores cells column by column; [Preprocessor] values
//     such as [ExtractHeaders] or [SortByColumnNumber] mutate it in place.
//   - Diff: [Diff] pairs cells in row-major order and emits [DiffType]
//     values under the configured [Mode] list.
//
// # Comparing Two Files
//
//	res, err := core.ComparePaths(ctx, "nominal/a.csv", "actual/a.csv", core.CompareConfig{
//	    Modes:         []core.Mode{core.Absolute(0.01), core.Relative(0.05)},
//	    Preprocessing: []core.Preprocessor{core.ExtractHeaders{}},
//	})
//	if err != nil {
//	    return err
//	}
//	for _, d := range res.Diffs {
//	    fmt.Println(d)
//	}
//
// # Concurrency
//
// A comparison is synchronous and owns its tables. Independent file pairs
// share no state and may be compared on separate goroutines.
//
// # Error Handling
//
// Failures wrap the sentinel errors in errors.go and are mapped to
// user-facing messages with [MapError]:
//
//   - CSV001-CSV005: parse and preprocessing errors
//   - RULE001-RULE002: rules and regex errors
//   - FILE001-FILE003: file access errors
//   - CMP001-CMP004: comparison scheduling errors
package core
