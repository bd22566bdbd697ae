package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for table parsing, preprocessing and comparison. Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	ErrUnexpectedValue     = errors.New("unexpected value")
	ErrInvalidAccess       = errors.New("invalid access")
	ErrRegexCompilation    = errors.New("regex compilation failed")
	ErrFileAccess          = errors.New("file access failed")
	ErrUnterminatedLiteral = errors.New("unterminated literal")
	ErrUnstableColumnCount = errors.New("unstable column count")
	ErrUnequalRowCount     = errors.New("unequal row count")
	ErrTokenizerConsumed   = errors.New("tokenizer already consumed")
)

// ParseError locates a structural failure at a raw row of the input.
type ParseError struct {
	Row int
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RowCountError reports the row counts of both tables when they must match.
type RowCountError struct {
	Nominal int
	Actual  int
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("%v: nominal has %d rows, actual has %d", ErrUnequalRowCount, e.Nominal, e.Actual)
}

func (e *RowCountError) Unwrap() error {
	return ErrUnequalRowCount
}
