package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "unterminated literal maps correctly",
			err:         fmt.Errorf("parse nominal: %w", &ParseError{Row: 3, Err: ErrUnterminatedLiteral}),
			wantCode:    "CSV001",
			wantMessage: "A quoted field was never closed",
		},
		{
			name:        "unstable column count maps correctly",
			err:         &ParseError{Row: 1, Err: ErrUnstableColumnCount},
			wantCode:    "CSV002",
			wantMessage: "Rows have different numbers of fields",
		},
		{
			name:        "row count error maps correctly",
			err:         &RowCountError{Nominal: 3, Actual: 4},
			wantCode:    "CSV003",
			wantMessage: "Nominal and actual have different row counts",
		},
		{
			name:        "invalid access maps correctly",
			err:         fmt.Errorf("preprocess DeleteRowByNumber(9): %w", ErrInvalidAccess),
			wantCode:    "CSV005",
			wantMessage: "A preprocessing step referenced a missing row or column",
		},
		{
			name:        "regex maps correctly",
			err:         fmt.Errorf("exclude field regex: %w", ErrRegexCompilation),
			wantCode:    "RULE001",
			wantMessage: "A regular expression in the rules could not be compiled",
		},
		{
			name:        "file access maps correctly",
			err:         fmt.Errorf("%w: open a.csv: no such file or directory", ErrFileAccess),
			wantCode:    "FILE001",
			wantMessage: "A file could not be opened",
		},
		{
			name:        "deadline maps correctly",
			err:         fmt.Errorf("compare a.csv: %w", context.DeadlineExceeded),
			wantCode:    "CMP003",
			wantMessage: "The comparison took too long",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("UNTERMINATED LITERAL in row 2"),
			wantCode:    "CSV001",
			wantMessage: "A quoted field was never closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrFileAccess)

	expected := "A file could not be opened (Code: FILE001). Check that the file exists and is readable"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrUnexpectedValue,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := &ParseError{Row: 0, Err: ErrUnstableColumnCount}
		userErr := NewUserError(techErr)

		if userErr.Error() != "Rows have different numbers of fields" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, ErrUnstableColumnCount) {
			t.Error("Unwrap() should return original error")
		}
	})
}
