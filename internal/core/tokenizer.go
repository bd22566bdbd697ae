package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csvcompare/internal/logging"
)

const (
	escapeChar = '\\'
	quoteChar  = '"'
	newLine    = '\n'
)

type specialKind int

const (
	specialNone specialKind = iota
	specialFieldStop
	specialNewLine
	specialQuote
)

// Tokenizer turns a delimited-text source into rows of values. It reads the
// whole source once; construct a new Tokenizer to parse again.
type Tokenizer struct {
	src        io.ReadSeeker
	delimiters Delimiters
	consumed   bool

	// BytesRead is the size of the raw source after Rows returned.
	BytesRead int64
}

// NewTokenizer prepares a tokenizer for src. Empty delimiters are guessed
// from the data first, which rewinds src afterwards.
func NewTokenizer(ctx context.Context, src io.ReadSeeker, d Delimiters) (*Tokenizer, error) {
	if d.IsEmpty() {
		guessed, err := GuessDelimiters(ctx, src)
		if err != nil {
			return nil, err
		}
		d = guessed
	}
	return &Tokenizer{src: src, delimiters: d}, nil
}

// Delimiters returns the delimiters in effect, guessed or configured.
func (t *Tokenizer) Delimiters() Delimiters {
	return t.delimiters
}

// Rows reads the remaining source and returns its rows. Trailing blank rows
// are dropped. An unterminated quoted literal fails the whole parse.
func (t *Tokenizer) Rows(ctx context.Context) ([][]Value, error) {
	if t.consumed {
		return nil, ErrTokenizerConsumed
	}
	t.consumed = true

	normalized, counter := NormalizeSource(t.src)
	data, err := io.ReadAll(normalized)
	t.BytesRead = counter.BytesRead
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	logging.FromContext(ctx).Debug("tokenizing",
		"delimiters", t.delimiters.String(),
		"bytes", counter.BytesRead,
	)

	fields, err := tokenize(string(data), t.delimiters.FieldDelimiter)
	if err != nil {
		return nil, err
	}

	rows := make([][]Value, len(fields))
	for i, raw := range fields {
		row := make([]Value, len(raw))
		for j, f := range raw {
			row[j] = ParseValue(f, t.delimiters.DecimalSeparator)
		}
		rows[i] = row
	}
	return rows, nil
}

// tokenize splits input into rows of raw field text. sep == 0 disables field
// splitting so every line is a single field.
func tokenize(input string, sep rune) ([][]string, error) {
	var (
		rows    [][]string
		row     []string
		pending bool // a separator was seen, so a (possibly empty) field follows
		pos     int
	)

	endRow := func() {
		rows = append(rows, row)
		row = nil
		pending = false
	}

	for {
		rest := input[pos:]
		kind, at := nextSpecial(rest, sep)

		switch kind {
		case specialNone:
			if rest != "" || pending {
				row = append(row, rest)
			}
			if row != nil {
				endRow()
			}
			return trimTrailingRows(rows), nil

		case specialFieldStop:
			row = append(row, rest[:at])
			pending = true
			pos += at + utf8.RuneLen(sep)

		case specialNewLine:
			row = append(row, strings.TrimSpace(rest[:at]))
			endRow()
			pos += at + 1

		case specialQuote:
			lit, err := scanLiteral(rest, at, sep)
			if err != nil {
				return nil, &ParseError{Row: len(rows), Err: err}
			}
			row = append(row, lit.field)
			pos += lit.consumed
			switch {
			case lit.endsRow:
				endRow()
			case lit.atEOF:
				endRow()
				return trimTrailingRows(rows), nil
			default:
				pending = true
			}
		}
	}
}

// literal is a quoted field plus any text that follows it up to the next
// separator.
type literal struct {
	field    string
	consumed int  // bytes of rest used, including the terminating separator or newline
	endsRow  bool // a newline came before the next separator
	atEOF    bool
}

// scanLiteral reads the quoted literal opening at rest[open]. A doubled
// quote inside the literal is an embedded quote.
func scanLiteral(rest string, open int, sep rune) (literal, error) {
	i := open + 1
	var closeEnd int
	for {
		j := findUnescaped(rest[i:], quoteChar)
		if j < 0 {
			return literal{}, ErrUnterminatedLiteral
		}
		q := i + j
		if q+1 < len(rest) && rest[q+1] == quoteChar {
			i = q + 2
			continue
		}
		closeEnd = q + 1
		break
	}

	tail := rest[closeEnd:]
	lineEnd := findUnescaped(tail, newLine)
	fieldEnd := -1
	if sep != 0 {
		fieldEnd = findUnescaped(tail, sep)
	}

	switch {
	case lineEnd >= 0 && (fieldEnd < 0 || lineEnd < fieldEnd):
		return literal{
			field:    strings.TrimSpace(rest[:closeEnd+lineEnd]),
			consumed: closeEnd + lineEnd + 1,
			endsRow:  true,
		}, nil
	case fieldEnd >= 0:
		return literal{
			field:    rest[:closeEnd+fieldEnd],
			consumed: closeEnd + fieldEnd + utf8.RuneLen(sep),
		}, nil
	default:
		return literal{field: rest, consumed: len(rest), atEOF: true}, nil
	}
}

// nextSpecial finds the first unescaped quote, newline or field separator.
func nextSpecial(s string, sep rune) (specialKind, int) {
	kind, at := specialNone, -1
	consider := func(k specialKind, i int) {
		if i >= 0 && (at < 0 || i < at) {
			kind, at = k, i
		}
	}
	consider(specialQuote, findUnescaped(s, quoteChar))
	consider(specialNewLine, findUnescaped(s, newLine))
	if sep != 0 {
		consider(specialFieldStop, findUnescaped(s, sep))
	}
	return kind, at
}

// findUnescaped returns the byte offset of the first target in s that is not
// directly preceded by a backslash, or -1.
func findUnescaped(s string, target rune) int {
	offset := 0
	for offset <= len(s) {
		i := strings.IndexRune(s[offset:], target)
		if i < 0 {
			return -1
		}
		at := offset + i
		if at > 0 && s[at-1] == escapeChar {
			offset = at + utf8.RuneLen(target)
			continue
		}
		return at
	}
	return -1
}

// trimTrailingRows drops trailing rows that are empty or hold one empty field.
func trimTrailingRows(rows [][]string) [][]string {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		if len(last) == 0 || (len(last) == 1 && last[0] == "") {
			rows = rows[:len(rows)-1]
			continue
		}
		break
	}
	return rows
}
