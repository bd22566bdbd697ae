// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When a comparison fails, the CLI summary and the HTTP API both show the code
// so a failing run can be diagnosed from its report alone.
//
// Error codes are grouped by category:
//
// # Parse Errors (CSV001-CSV099)
//
//	CSV001 - Unterminated literal: A quoted field was never closed
//	         Action: Check the file for a missing closing quote
//	         Patterns: "unterminated literal"
//
//	CSV002 - Unstable column count: Rows have different numbers of fields
//	         Action: Check the field delimiter or fix the malformed row
//	         Patterns: "unstable column count"
//
//	CSV003 - Unequal row count: Nominal and actual have different row counts
//	         Action: Compare the files by hand or disable require_equal_row_count
//	         Patterns: "unequal row count"
//
//	CSV004 - Unexpected value: A numeric column contains text
//	         Action: Sort by a column that only holds numbers
//	         Patterns: "unexpected value"
//
//	CSV005 - Invalid access: A preprocessing step referenced a missing row or column
//	         Action: Check column names and indices in the rules file
//	         Patterns: "invalid access"
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Invalid regex: A regular expression in the rules could not be compiled
//	          Action: Fix the exclude_field_regex or DeleteRowByRegex pattern
//	          Patterns: "regex compilation failed"
//
//	RULE002 - Invalid rules: The rules file could not be read or is invalid
//	          Action: Run "csvcompare schema" and validate the rules file
//	          Patterns: "invalid rules"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File access: A file could not be opened
//	          Action: Check that the file exists and is readable
//	          Patterns: "file access failed"
//
//	FILE002 - File too large: Upload exceeds the configured size limit
//	          Action: Compare large files with the CLI instead
//	          Patterns: "file too large"
//
//	FILE003 - No file: A required upload was missing
//	          Action: Send both the nominal and the actual file
//	          Patterns: "no file provided"
//
//	FILE004 - Invalid form: The upload is not a valid multipart form
//	          Action: Send the files as multipart/form-data fields
//	          Patterns: "invalid upload form"
//
// # Comparison Errors (CMP001-CMP099)
//
//	CMP001 - Busy: All comparison slots are in use
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent comparisons"
//
//	CMP002 - Cancelled: The comparison was cancelled
//	         Action: Start the comparison again
//	         Patterns: "context canceled"
//
//	CMP003 - Timed out: The comparison took too long
//	         Action: Raise COMPARE_PAIR_TIMEOUT or split the files
//	         Patterns: "context deadline exceeded"
//
//	CMP004 - Run not found: No run with this ID is recorded
//	         Action: List runs to find a valid ID
//	         Patterns: "run not found"
//
//	CMP005 - Invalid run ID: The run ID is not a UUID
//	         Action: List runs to find a valid ID
//	         Patterns: "invalid run id"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - An unexpected error occurred
//	         Action: Please try again or check the logs
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the associated patterns to understand what triggered it
//  3. If ERR000, check application logs for the original technical error
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Parse Errors (CSV001-CSV005)
	// =========================================================================
	{
		pattern: "unterminated literal",
		msg: UserMessage{
			Message: "A quoted field was never closed",
			Action:  "Check the file for a missing closing quote",
			Code:    "CSV001",
		},
	},
	{
		pattern: "unstable column count",
		msg: UserMessage{
			Message: "Rows have different numbers of fields",
			Action:  "Check the field delimiter or fix the malformed row",
			Code:    "CSV002",
		},
	},
	{
		pattern: "unequal row count",
		msg: UserMessage{
			Message: "Nominal and actual have different row counts",
			Action:  "Compare the files by hand or disable require_equal_row_count",
			Code:    "CSV003",
		},
	},
	{
		pattern: "unexpected value",
		msg: UserMessage{
			Message: "A numeric column contains text",
			Action:  "Sort by a column that only holds numbers",
			Code:    "CSV004",
		},
	},
	{
		pattern: "invalid access",
		msg: UserMessage{
			Message: "A preprocessing step referenced a missing row or column",
			Action:  "Check column names and indices in the rules file",
			Code:    "CSV005",
		},
	},

	// =========================================================================
	// Rule Errors (RULE001-RULE002)
	// =========================================================================
	{
		pattern: "regex compilation failed",
		msg: UserMessage{
			Message: "A regular expression in the rules could not be compiled",
			Action:  "Fix the exclude_field_regex or DeleteRowByRegex pattern",
			Code:    "RULE001",
		},
	},
	{
		pattern: "invalid rules",
		msg: UserMessage{
			Message: "The rules file could not be read or is invalid",
			Action:  `Run "csvcompare schema" and validate the rules file`,
			Code:    "RULE002",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE004)
	// =========================================================================
	{
		pattern: "file access failed",
		msg: UserMessage{
			Message: "A file could not be opened",
			Action:  "Check that the file exists and is readable",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "Upload exceeds the configured size limit",
			Action:  "Compare large files with the CLI instead",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "A required file was not uploaded",
			Action:  "Send both the nominal and the actual file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid upload form",
		msg: UserMessage{
			Message: "The upload is not a valid multipart form",
			Action:  "Send the files as multipart/form-data fields",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Comparison Errors (CMP001-CMP005)
	// =========================================================================
	{
		pattern: "too many concurrent comparisons",
		msg: UserMessage{
			Message: "All comparison slots are in use",
			Action:  "Please wait a moment and try again",
			Code:    "CMP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The comparison was cancelled",
			Action:  "Start the comparison again",
			Code:    "CMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The comparison took too long",
			Action:  "Raise COMPARE_PAIR_TIMEOUT or split the files",
			Code:    "CMP003",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "No run with this ID is recorded",
			Action:  "List runs to find a valid ID",
			Code:    "CMP004",
		},
	},
	{
		pattern: "invalid run id",
		msg: UserMessage{
			Message: "The run ID is not valid",
			Action:  "List runs to find a valid ID",
			Code:    "CMP005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("parse nominal: %w", ErrUnterminatedLiteral)
//	msg := MapError(err)
//	// msg.Code == "CSV001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
//
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
