package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/JonMunkholm/csvcompare/internal/logging"
)

// Delimiters configures how a source is split into fields and how decimal
// numbers are written. A zero rune means "unknown"; when both are zero the
// tokenizer guesses them from the data.
type Delimiters struct {
	FieldDelimiter   rune
	DecimalSeparator rune
}

// IsEmpty reports whether neither delimiter is configured.
func (d Delimiters) IsEmpty() bool {
	return d.FieldDelimiter == 0 && d.DecimalSeparator == 0
}

func (d Delimiters) String() string {
	return fmt.Sprintf("field=%s decimal=%s", runeName(d.FieldDelimiter), runeName(d.DecimalSeparator))
}

func runeName(r rune) string {
	if r == 0 {
		return "none"
	}
	return fmt.Sprintf("%q", r)
}

// fieldSeparatorPattern finds a ',' or '|' directly after a word character.
// Word characters include any Unicode letter or digit, so "Maß,Wert" counts.
var fieldSeparatorPattern = regexp.MustCompile(`[\p{L}\p{N}_]([,|])[\W\w]`)

// decimalPatterns is keyed by the chosen field separator (0 = unknown).
var decimalPatterns = map[rune]*regexp.Regexp{
	0:   regexp.MustCompile(`\d([,.])\d`),
	',': regexp.MustCompile(`\d([.])\d`),
	'.': regexp.MustCompile(`\d([,])\d`),
	';': regexp.MustCompile(`\d([,.])\d`),
	'|': regexp.MustCompile(`\d([,.])\d`),
}

// GuessLine infers the field and decimal separator from a single line.
// fieldHint, if non-zero, is kept as the field separator.
//
// The decimal separator is the candidate (',' or '.', minus the field
// separator) seen most often between two digits; on a tie '.' wins.
func GuessLine(line string, fieldHint rune) (field, decimal rune) {
	field = fieldHint
	if field == 0 {
		if strings.ContainsRune(line, ';') {
			field = ';'
		} else if m := fieldSeparatorPattern.FindStringSubmatch(line); m != nil {
			field = rune(m[1][0])
		}
	}

	pattern, ok := decimalPatterns[field]
	if !ok {
		pattern = decimalPatterns[0]
	}

	counts := map[rune]int{}
	for _, m := range pattern.FindAllStringSubmatch(line, -1) {
		counts[rune(m[1][0])]++
	}

	switch {
	case counts['.'] == 0 && counts[','] == 0:
		decimal = 0
	case counts[','] > counts['.']:
		decimal = ','
	default:
		decimal = '.'
	}
	return field, decimal
}

// GuessDelimiters scans r line by line until both separators are known or
// the input is exhausted, then rewinds r to its start.
func GuessDelimiters(ctx context.Context, r io.ReadSeeker) (Delimiters, error) {
	logger := logging.FromContext(ctx)

	var d Delimiters
	normalized, _ := NormalizeSource(r)
	reader := bufio.NewReader(normalized)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			field, decimal := GuessLine(strings.TrimSuffix(line, "\n"), d.FieldDelimiter)
			d.FieldDelimiter = field
			if decimal != 0 {
				d.DecimalSeparator = decimal
			}
			if d.FieldDelimiter != 0 && d.DecimalSeparator != 0 {
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Delimiters{}, fmt.Errorf("guess delimiters: %w", err)
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Delimiters{}, fmt.Errorf("guess delimiters: rewind: %w", err)
	}

	if d.FieldDelimiter == 0 {
		logger.Warn("could not guess field delimiter, reading one field per row")
	}
	logger.Info("guessed csv delimiters",
		"field_delimiter", runeName(d.FieldDelimiter),
		"decimal_separator", runeName(d.DecimalSeparator),
	)
	return d, nil
}
