package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		sep   rune
		want  [][]string
	}{
		{
			name:  "plain fields",
			input: "bla,blubb,2.0",
			sep:   ',',
			want:  [][]string{{"bla", "blubb", "2.0"}},
		},
		{
			name:  "separator inside literal",
			input: `bla,"bla,bla",2.0`,
			sep:   ',',
			want:  [][]string{{"bla", `"bla,bla"`, "2.0"}},
		},
		{
			name:  "literal spanning lines",
			input: "a,\"b\nc\",d\ne,f,g",
			sep:   ',',
			want:  [][]string{{"a", "\"b\nc\"", "d"}, {"e", "f", "g"}},
		},
		{
			name:  "doubled quotes",
			input: `"""Scene""=>""Mesh 1"""`,
			sep:   ',',
			want:  [][]string{{`"""Scene""=>""Mesh 1"""`}},
		},
		{
			name:  "literal ends line",
			input: "a,\"b\"\nc,d",
			sep:   ',',
			want:  [][]string{{"a", `"b"`}, {"c", "d"}},
		},
		{
			name:  "escaped separator",
			input: `a\,b,c`,
			sep:   ',',
			want:  [][]string{{`a\,b`, "c"}},
		},
		{
			name:  "escaped quote",
			input: `\"x,y`,
			sep:   ',',
			want:  [][]string{{`\"x`, "y"}},
		},
		{
			name:  "trailing empty field",
			input: "a,b,\n",
			sep:   ',',
			want:  [][]string{{"a", "b", ""}},
		},
		{
			name:  "empty last column keeps rows rectangular",
			input: "id,note\n1,\n2,x\n",
			sep:   ',',
			want:  [][]string{{"id", "note"}, {"1", ""}, {"2", "x"}},
		},
		{
			name:  "trailing blank lines",
			input: "bla\n2.0\n\n",
			sep:   0,
			want:  [][]string{{"bla"}, {"2.0"}},
		},
		{
			name:  "last field trimmed at newline",
			input: "a; b \nc;d",
			sep:   ';',
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "no separator means single field",
			input: "a,b\nc,d",
			sep:   0,
			want:  [][]string{{"a,b"}, {"c,d"}},
		},
		{
			name:  "empty input",
			input: "",
			sep:   ',',
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tokenize(tt.input, tt.sep)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tokenize(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestTokenize_UnterminatedLiteral(t *testing.T) {
	_, err := tokenize("a,b\nbla,\"unterminated", ',')
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnterminatedLiteral))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Row)
}

func TestTokenizer_Rows(t *testing.T) {
	ctx := context.Background()
	tok, err := NewTokenizer(ctx, strings.NewReader("name;value\nfoo;1,5 mm\n"), Delimiters{})
	require.NoError(t, err)
	assert.Equal(t, Delimiters{FieldDelimiter: ';', DecimalSeparator: ','}, tok.Delimiters())

	rows, err := tok.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, Equal(String("name"), rows[0][0]))
	assert.True(t, Equal(NewQuantity(1.5, "mm"), rows[1][1]))
	assert.Equal(t, int64(len("name;value\nfoo;1,5 mm\n")), tok.BytesRead)

	_, err = tok.Rows(ctx)
	assert.ErrorIs(t, err, ErrTokenizerConsumed)
}

func TestTokenizer_ConfiguredDelimitersSkipGuessing(t *testing.T) {
	ctx := context.Background()
	tok, err := NewTokenizer(ctx, strings.NewReader("a;b,c\n"), Delimiters{FieldDelimiter: ','})
	require.NoError(t, err)

	rows, err := tok.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, Equal(String("a;b"), rows[0][0]))
	assert.True(t, Equal(String("c"), rows[0][1]))
}

func TestTokenizer_Normalisation(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("a,b\r\n1,2\r\n")
	require.NoError(t, err)

	inputs := map[string]string{
		"crlf":     "a,b\r\n1,2\r\n",
		"utf8 bom": "\xef\xbb\xbfa,b\n1,2\n",
		"utf16 le": utf16,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tok, err := NewTokenizer(ctx, strings.NewReader(input), Delimiters{FieldDelimiter: ',', DecimalSeparator: '.'})
			require.NoError(t, err)

			rows, err := tok.Rows(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 2)

			want := [][]Value{
				{String("a"), String("b")},
				{NewQuantity(1, ""), NewQuantity(2, "")},
			}
			for i := range want {
				for j := range want[i] {
					assert.True(t, Equal(want[i][j], rows[i][j]), "cell %d,%d = %s", i, j, rows[i][j])
				}
			}
			assert.Equal(t, int64(len(input)), tok.BytesRead)
		})
	}
}
