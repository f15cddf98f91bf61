package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, input string) []Token {
	t.Helper()
	l := New("test.pas", input)
	tokens := l.Tokenize()
	require.NotEmpty(t, tokens)
	require.Equal(t, EOF, tokens[len(tokens)-1].Type)
	return tokens[:len(tokens)-1]
}

func TestTokenizeHelloWorld(t *testing.T) {
	tokens := tokenize(t, "program hello; begin writeln('Hello, world!'); end.")

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{KEYWORD, "program"},
		{NAMEDTOKEN, "hello"},
		{SEMICOLON, ";"},
		{KEYWORD, "begin"},
		{NAMEDTOKEN, "writeln"},
		{LPAREN, "("},
		{STRING, "Hello, world!"},
		{RPAREN, ")"},
		{SEMICOLON, ";"},
		{KEYWORD, "end"},
		{DOT, "."},
	}
	require.Len(t, tokens, len(expected))
	for i, want := range expected {
		assert.Equal(t, want.typ, tokens[i].Type, "token %d", i)
		assert.Equal(t, want.literal, tokens[i].Literal, "token %d", i)
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	tokens := tokenize(t, "PROGRAM Begin WHILE Repeat")
	for _, tok := range tokens {
		assert.Equal(t, KEYWORD, tok.Type, tok.Literal)
	}
	assert.Equal(t, "program", tokens[0].Literal)
	assert.Equal(t, "PROGRAM", tokens[0].Text())
}

func TestIdentifiersCanonicalizeToLowerCase(t *testing.T) {
	tokens := tokenize(t, "MyVariable")
	require.Len(t, tokens, 1)
	assert.Equal(t, NAMEDTOKEN, tokens[0].Type)
	assert.Equal(t, "myvariable", tokens[0].Literal)
	assert.Equal(t, "MyVariable", tokens[0].Text())
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input   string
		literal string
	}{
		{"42", "42"},
		{"3.14", "3.14"},
		{"0", "0"},
	}
	for _, tt := range tests {
		tokens := tokenize(t, tt.input)
		require.Len(t, tokens, 1, tt.input)
		assert.Equal(t, NUMBER, tokens[0].Type)
		assert.Equal(t, tt.literal, tokens[0].Literal)
	}
}

func TestRangeDoesNotSwallowDots(t *testing.T) {
	tokens := tokenize(t, "1..3")
	require.Len(t, tokens, 4)
	assert.Equal(t, NUMBER, tokens[0].Type)
	assert.Equal(t, DOT, tokens[1].Type)
	assert.Equal(t, DOT, tokens[2].Type)
	assert.Equal(t, NUMBER, tokens[3].Type)
}

func TestStringEscapes(t *testing.T) {
	tokens := tokenize(t, "'it''s'")
	require.Len(t, tokens, 1)
	assert.Equal(t, STRING, tokens[0].Type)
	assert.Equal(t, "it's", tokens[0].Literal)
}

func TestSingleByteLiteralIsChar(t *testing.T) {
	tokens := tokenize(t, "'a'")
	require.Len(t, tokens, 1)
	assert.Equal(t, CHAR, tokens[0].Type)
	assert.Equal(t, "a", tokens[0].Literal)
}

func TestEscapedString(t *testing.T) {
	tokens := tokenize(t, "#13#10")
	require.Len(t, tokens, 1)
	assert.Equal(t, ESCAPED_STRING, tokens[0].Type)
	assert.Equal(t, "#13#10", tokens[0].Literal)
}

func TestCommentsAreSkipped(t *testing.T) {
	tokens := tokenize(t, "a { comment } b (* other *) c // line\nd")
	require.Len(t, tokens, 4)
	for i, want := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, want, tokens[i].Literal)
	}
}

func TestNestedBraceComment(t *testing.T) {
	tokens := tokenize(t, "a { outer { inner } still outer } b")
	require.Len(t, tokens, 2)
	assert.Equal(t, "a", tokens[0].Literal)
	assert.Equal(t, "b", tokens[1].Literal)
}

func TestDirectiveSurvivesAsToken(t *testing.T) {
	tokens := tokenize(t, "{$ifdef WINDOWS} x {$endif}")
	require.Len(t, tokens, 3)
	assert.Equal(t, DIRECTIVE, tokens[0].Type)
	assert.Equal(t, "{$ifdef windows}", tokens[0].Literal)
	assert.Equal(t, NAMEDTOKEN, tokens[1].Type)
	assert.Equal(t, DIRECTIVE, tokens[2].Type)
}

func TestSpanRoundTrip(t *testing.T) {
	input := "program Demo;\nvar X: integer;\nbegin\n  X := 42;\nend."
	l := New("demo.pas", input)
	for _, tok := range l.Tokenize() {
		if tok.Type == EOF {
			continue
		}
		assert.Equal(t, input[tok.Span.Offset:tok.Span.Offset+tok.Span.Length], tok.Text())
	}
}

func TestSpanRowCol(t *testing.T) {
	tokens := tokenize(t, "a\n  b")
	require.Len(t, tokens, 2)
	assert.Equal(t, 1, tokens[0].Span.Row())
	assert.Equal(t, 1, tokens[0].Span.Col())
	assert.Equal(t, 2, tokens[1].Span.Row())
	assert.Equal(t, 3, tokens[1].Span.Col())
	assert.Equal(t, "  b", tokens[1].Span.SourceLine())
}

func TestUnterminatedStringRecoversAtNextLine(t *testing.T) {
	l := New("test.pas", "a := 'oops\nb := 1;")
	tokens := l.Tokenize()
	require.NotEmpty(t, l.Errors())
	assert.Contains(t, l.Errors()[0].Message, "unterminated string")

	var literals []string
	for _, tok := range tokens {
		if tok.Type == NAMEDTOKEN {
			literals = append(literals, tok.Literal)
		}
	}
	assert.Contains(t, literals, "b")
}

func TestTokenizeIsDeterministic(t *testing.T) {
	input := "program x; var i: integer; begin i := 1 + 2 * 3; writeln(i); end."
	first := New("x.pas", input).Tokenize()
	second := New("x.pas", input).Tokenize()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("token streams differ (-first +second):\n%s", diff)
	}
}

func TestNormalizeStripsBOM(t *testing.T) {
	src := Normalize(append([]byte{0xEF, 0xBB, 0xBF}, []byte("program x;")...))
	assert.Equal(t, "program x;", string(src))
}
