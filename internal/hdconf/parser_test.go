package hdconf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHeader = `# N2 EDM header
name = "degauss";
EOLidentifier = "0xDEADBEEF";
runNo = 2;
cycNo = 8;
firstTimeStamp = 1577836800000000000L;
lastTimeStamp : 1577836860000000000;   // no suffix, promoted to 64 bits
lastWrite = 0x15E7E3C2A7B10000L;
/* columns follow
   in order */
columns = {
  column_000 = { columnName = "timestamp"; columnDescription = "ns"; columnDataType = "uint64"; };
  column_001 = { columnName = "I" "coil"; columnDescription = "A"; columnDataType = "double"; };
};
gains = [ 1.5, 2.0, -3e2 ];
flags = ( true, "x", { nested = 1; } );
`

func TestParseSampleHeader(t *testing.T) {
	doc, err := Parse(sampleHeader)
	require.NoError(t, err)

	name, ok := doc.LookupString("name")
	require.True(t, ok)
	assert.Equal(t, "degauss", name)

	eol, ok := doc.LookupString("EOLidentifier")
	require.True(t, ok)
	assert.Equal(t, "0xDEADBEEF", eol)

	run, ok := doc.LookupInt("runNo")
	require.True(t, ok)
	assert.Equal(t, int32(2), run)

	first, ok := doc.LookupInt64("firstTimeStamp")
	require.True(t, ok)
	assert.Equal(t, int64(1577836800000000000), first)

	last, ok := doc.LookupInt64("lastTimeStamp")
	require.True(t, ok)
	assert.Equal(t, int64(1577836860000000000), last)
	assert.Equal(t, KindInt64, doc.Lookup("lastTimeStamp").Kind)

	_, ok = doc.LookupInt("lastTimeStamp")
	assert.False(t, ok, "64-bit value must not fit an int lookup")

	lw, ok := doc.LookupInt64("lastWrite")
	require.True(t, ok)
	assert.Equal(t, int64(0x15E7E3C2A7B10000), lw)

	assert.Equal(t, 2, doc.Lookup("columns").Len())
	col, ok := doc.LookupString("columns/column_001/columnName")
	require.True(t, ok)
	assert.Equal(t, "Icoil", col, "adjacent strings concatenate")

	typ, ok := doc.LookupString("columns.column_000.columnDataType")
	require.True(t, ok)
	assert.Equal(t, "uint64", typ)

	g, ok := doc.Lookup("gains[2]").AsFloat()
	require.True(t, ok)
	assert.Equal(t, -300.0, g)

	nested, ok := doc.LookupInt("flags.[2].nested")
	require.True(t, ok)
	assert.Equal(t, int32(1), nested)

	_, ok = doc.LookupString("columns/column_002/columnName")
	assert.False(t, ok)
}

func TestParseErrorsCarryLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"missing assign", "a = 1;\nb 2;", 2},
		{"unterminated string", "a = \"abc;\n", 1},
		{"duplicate", "a = 1;\n\na = 2;", 3},
		{"mixed array", "a = [1, \"x\"];", 1},
		{"unterminated comment", "a = 1;\n/* never closed", 2},
		{"bad token", "a = @;", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "expected SyntaxError, got %T", err)
			assert.Equal(t, tt.line, se.Line)
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "absent_000.hd"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteThenParse(t *testing.T) {
	root := Group("",
		String("name", "coils \"main\""),
		String("EOLidentifier", "0xDEADBEEF"),
		Int("runNo", 12),
		Int64("firstTimeStamp", 1577836800000000000),
		&Setting{Name: "mask", Kind: KindInt, Int: 255, Format: FormatHex},
		Float("gain", 2),
		Bool("enabled", true),
		Group("columns",
			Group("column_000",
				String("columnName", "timestamp"),
				String("columnDescription", ""),
				String("columnDataType", "uint64"),
			),
		),
	)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, root))
	assert.Contains(t, buf.String(), "firstTimeStamp = 1577836800000000000L;")
	assert.Contains(t, buf.String(), "mask = 0xFF;")

	doc, err := Parse(buf.String())
	require.NoError(t, err)

	name, _ := doc.LookupString("name")
	assert.Equal(t, `coils "main"`, name)
	mask, _ := doc.LookupInt("mask")
	assert.Equal(t, int32(255), mask)
	gain, _ := doc.Lookup("gain").AsFloat()
	assert.Equal(t, 2.0, gain)
	enabled, _ := doc.Lookup("enabled").AsBool()
	assert.True(t, enabled)
	desc, ok := doc.LookupString("columns/column_000/columnDescription")
	assert.True(t, ok)
	assert.Equal(t, "", desc)
}

func TestLexerTokens(t *testing.T) {
	l := NewLexer("a=0x1FL; b:-2.5e3, c=TRUE")
	var types []TokenType
	for {
		tok := l.NextToken()
		types = append(types, tok.Type)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	assert.Equal(t, []TokenType{
		TokenName, TokenAssign, TokenHex64, TokenSemicolon,
		TokenName, TokenAssign, TokenFloat, TokenComma,
		TokenName, TokenAssign, TokenBool, TokenEOF,
	}, types)
}
