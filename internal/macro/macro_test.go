package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirthx-compiler/wirthx/internal/lexer"
)

func filter(t *testing.T, symbols Symbols, input string) ([]string, *Parser) {
	t.Helper()
	tokens := lexer.New("test.pas", input).Tokenize()
	p := New(symbols)
	out := p.ParseFile(tokens)

	var names []string
	for _, tok := range out {
		if tok.Type == lexer.NAMEDTOKEN {
			names = append(names, tok.Literal)
		}
	}
	return names, p
}

func TestIfdefDropsInactiveBranch(t *testing.T) {
	names, p := filter(t, Symbols{"unix": true},
		"{$ifdef UNIX} posix {$endif} {$ifdef WINDOWS} win {$endif} always")
	assert.Empty(t, p.Errors())
	assert.Equal(t, []string{"posix", "always"}, names)
}

func TestElseBranch(t *testing.T) {
	names, p := filter(t, Symbols{},
		"{$ifdef WINDOWS} win {$else} other {$endif}")
	assert.Empty(t, p.Errors())
	assert.Equal(t, []string{"other"}, names)
}

func TestIfndef(t *testing.T) {
	names, p := filter(t, Symbols{"windows": true},
		"{$ifndef WINDOWS} other {$else} win {$endif}")
	assert.Empty(t, p.Errors())
	assert.Equal(t, []string{"win"}, names)
}

func TestNestedConditionals(t *testing.T) {
	names, p := filter(t, Symbols{"a": true},
		"{$ifdef A} one {$ifdef B} two {$endif} three {$endif} four")
	assert.Empty(t, p.Errors())
	assert.Equal(t, []string{"one", "three", "four"}, names)
}

func TestInactiveOuterSuppressesInnerDefine(t *testing.T) {
	_, p := filter(t, Symbols{},
		"{$ifdef MISSING} {$define X} {$endif} {$ifdef X} leak {$endif}")
	assert.Empty(t, p.Errors())
	assert.False(t, p.Symbols()["x"])
}

func TestDefineAndUndefInFileOrder(t *testing.T) {
	names, p := filter(t, Symbols{},
		"{$define FLAG} {$ifdef FLAG} one {$endif} {$undef FLAG} {$ifdef FLAG} two {$endif}")
	assert.Empty(t, p.Errors())
	assert.Equal(t, []string{"one"}, names)
}

func TestUnbalancedEndif(t *testing.T) {
	_, p := filter(t, Symbols{}, "{$endif}")
	require.NotEmpty(t, p.Errors())
	assert.Contains(t, p.Errors()[0].Message, "endif")
}

func TestMissingEndif(t *testing.T) {
	_, p := filter(t, Symbols{}, "{$ifdef A} x")
	require.NotEmpty(t, p.Errors())
	assert.Contains(t, p.Errors()[0].Message, "missing {$endif}")
}

func TestUnknownDirective(t *testing.T) {
	_, p := filter(t, Symbols{}, "{$frobnicate}")
	require.NotEmpty(t, p.Errors())
	assert.Contains(t, p.Errors()[0].Message, "unknown compiler directive")
}

func TestEOFAlwaysSurvives(t *testing.T) {
	tokens := lexer.New("test.pas", "{$ifdef A} x {$endif}").Tokenize()
	out := New(Symbols{}).ParseFile(tokens)
	require.NotEmpty(t, out)
	assert.Equal(t, lexer.EOF, out[len(out)-1].Type)
}
