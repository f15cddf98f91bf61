package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
)

const mathUnit = `
unit m;
interface
function inc(x: integer): integer;
implementation
function inc(x: integer): integer;
begin
  inc := x + 1;
end;
end.
`

func writeUnit(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func parseFileWithCache(t *testing.T, path string, cache *UnitCache) *Parser {
	t.Helper()
	source, err := os.ReadFile(path)
	require.NoError(t, err)
	tokens := lexer.New(path, string(source)).Tokenize()
	pre := macro.New(macro.Symbols{})
	p := New([]string{rtlDir}, path, pre.Symbols(), pre.ParseFile(tokens), cache)
	unit, err := p.ParseFile()
	require.NoError(t, err)
	require.NotNil(t, unit)
	return p
}

func TestUnitImportMergesExports(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "m.pas", mathUnit)
	program := writeUnit(t, dir, "p.pas",
		"program p; uses m; begin writeln(inc(41)); end.")

	cache := NewUnitCache()
	p := parseFileWithCache(t, program, cache)

	assert.True(t, p.isFunctionDeclared("inc"))

	unitPath, err := filepath.Abs(filepath.Join(dir, "m.pas"))
	require.NoError(t, err)
	_, cached := cache.Lookup(unitPath)
	assert.True(t, cached, "m.pas should be cached")
}

func TestUnitParsesExactlyOncePerCompilation(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "m.pas", mathUnit)
	// both units name m; the cache must hold a single entry for it
	writeUnit(t, dir, "a.pas", `
unit a;
interface
uses m;
function twice(x: integer): integer;
implementation
function twice(x: integer): integer;
begin
  twice := inc(inc(x)) - 2 + x;
end;
end.
`)
	program := writeUnit(t, dir, "p.pas",
		"program p; uses a, m; begin writeln(twice(2)); end.")

	cache := NewUnitCache()
	parseFileWithCache(t, program, cache)

	unitPath, _ := filepath.Abs(filepath.Join(dir, "m.pas"))
	_, cached := cache.Lookup(unitPath)
	assert.True(t, cached)
	// m.pas, a.pas and the implicit system.pas
	assert.Equal(t, 3, cache.Len())
}

func TestCircularImportIsRejected(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "x.pas", "unit x;\ninterface\nuses y;\nimplementation\nend.\n")
	writeUnit(t, dir, "y.pas", "unit y;\ninterface\nuses x;\nimplementation\nend.\n")
	program := writeUnit(t, dir, "p.pas", "program p; uses x; begin end.")

	source, err := os.ReadFile(program)
	require.NoError(t, err)
	tokens := lexer.New(program, string(source)).Tokenize()
	pre := macro.New(macro.Symbols{})
	p := New([]string{rtlDir}, program, pre.Symbols(), pre.ParseFile(tokens), NewUnitCache())
	_, err = p.ParseFile()
	require.Error(t, err)

	found := false
	for _, d := range p.Diagnostics().All() {
		if strings.Contains(d.Message, "circular unit reference") {
			found = true
		}
	}
	assert.True(t, found, "expected a circular unit reference diagnostic")
}

func TestMissingUnitDiagnostic(t *testing.T) {
	dir := t.TempDir()
	program := writeUnit(t, dir, "p.pas", "program p; uses nothere; begin end.")

	source, err := os.ReadFile(program)
	require.NoError(t, err)
	tokens := lexer.New(program, string(source)).Tokenize()
	pre := macro.New(macro.Symbols{})
	p := New([]string{rtlDir}, program, pre.Symbols(), pre.ParseFile(tokens), NewUnitCache())
	_, err = p.ParseFile()
	require.Error(t, err)
	assert.Contains(t, p.Diagnostics().All()[0].Message, "not a valid unit")
}

func TestSourceDirectoryShadowsRTL(t *testing.T) {
	local := t.TempDir()
	other := t.TempDir()
	// the file next to the program wins over any RTL directory copy
	writeUnit(t, local, "m.pas", mathUnit)
	writeUnit(t, other, "m.pas", "unit m;\ninterface\nimplementation\nend.\n")
	program := writeUnit(t, local, "p.pas",
		"program p; uses m; begin writeln(inc(1)); end.")

	source, err := os.ReadFile(program)
	require.NoError(t, err)
	tokens := lexer.New(program, string(source)).Tokenize()
	pre := macro.New(macro.Symbols{})
	cache := NewUnitCache()
	p := New([]string{other, rtlDir}, program, pre.Symbols(), pre.ParseFile(tokens), cache)
	_, err = p.ParseFile()
	require.NoError(t, err)

	assert.True(t, p.isFunctionDeclared("inc"))
	shadowed, _ := filepath.Abs(filepath.Join(other, "m.pas"))
	_, cached := cache.Lookup(shadowed)
	assert.False(t, cached, "the RTL copy must not be consulted")
}
