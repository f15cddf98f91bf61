package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
	"github.com/wirthx-compiler/wirthx/internal/parser"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

func parseUnit(t *testing.T, source string) *ast.Unit {
	t.Helper()
	tokens := lexer.New("test.pas", source).Tokenize()
	pre := macro.New(macro.Symbols{})
	p := parser.New([]string{"../../rtl"}, "test.pas", pre.Symbols(), pre.ParseFile(tokens), nil)
	unit, err := p.ParseFile()
	require.NoError(t, err)
	require.NotNil(t, unit)
	return unit
}

func checkSource(t *testing.T, source string) error {
	t.Helper()
	return Check(parseUnit(t, source))
}

func TestAcceptsWellTypedProgram(t *testing.T) {
	err := checkSource(t, `
program ok;
var i, total: integer;
begin
  total := 0;
  for i := 1 to 10 do
    total := total + i;
  writeln(total);
end.`)
	assert.NoError(t, err)
}

func TestRejectsStringIntoInteger(t *testing.T) {
	err := checkSource(t, `
program bad;
var i: integer;
begin
  i := 'nope';
end.`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can not assign")
}

func TestAcceptsIntegerWidening(t *testing.T) {
	err := checkSource(t, `
program ok;
var small: byte; wide: int64;
begin
  small := 1;
  wide := 1;
  wide := wide + 1;
end.`)
	assert.NoError(t, err)
}

func TestRejectsBooleanArithmetic(t *testing.T) {
	err := checkSource(t, `
program bad;
var b: boolean; i: integer;
begin
  i := b + 1;
end.`)
	require.Error(t, err)
}

func TestConditionMustBeBoolean(t *testing.T) {
	err := checkSource(t, `
program bad;
var i: integer;
begin
  while i do
    i := i - 1;
end.`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a boolean")
}

func TestIfConditionComparisonIsBoolean(t *testing.T) {
	err := checkSource(t, `
program ok;
var i: integer;
begin
  if i < 10 then
    i := i + 1;
end.`)
	assert.NoError(t, err)
}

func TestStringConcatenationWithChar(t *testing.T) {
	err := checkSource(t, `
program ok;
var s: string;
begin
  s := 'ab';
  s := s + 'cd';
  s := s + 'c';
end.`)
	assert.NoError(t, err)
}

func TestCharLiteralAssignsToString(t *testing.T) {
	err := checkSource(t, `
program ok;
var s: string;
begin
  s := 'b';
end.`)
	assert.NoError(t, err)
}

func TestCaseArmTypeMustMatch(t *testing.T) {
	err := checkSource(t, `
program bad;
var i: integer;
begin
  case i of
    'a': writeln(1);
  end;
end.`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case selector")
}

func TestCaseOverStringsWithCharArms(t *testing.T) {
	err := checkSource(t, `
program ok;
var s: string;
begin
  s := 'b';
  case s of
    'a': writeln(1);
    'b': writeln(2);
  else
    writeln(3);
  end;
end.`)
	assert.NoError(t, err)
}

func TestCaseRangeArmOverInteger(t *testing.T) {
	err := checkSource(t, `
program ok;
type small = 1..5;
var i: integer;
begin
  i := 2;
  case i of
    small: writeln(1);
    9: writeln(2);
  end;
end.`)
	assert.NoError(t, err)
}

func TestFunctionCallResolution(t *testing.T) {
	err := checkSource(t, `
program ok;
function double(x: integer): integer;
begin
  double := x * 2;
end;
var i: integer;
begin
  i := double(21);
end.`)
	assert.NoError(t, err)
}

func TestEnvResolvesTypes(t *testing.T) {
	unit := parseUnit(t, `
program t;
var i: integer; s: string; d: double;
begin
  i := 1;
end.`)
	env := NewEnv(unit)

	def, ok := env.LookupVar("i")
	require.True(t, ok)
	assert.True(t, def.Type.Equal(&types.Integer{Bits: 32}))

	typ, err := env.TypeOf(&ast.BinaryExpr{
		Op:  ast.OpPlus,
		Lhs: &ast.IntLiteral{Value: 1, Bits: 32},
		Rhs: &ast.IntLiteral{Value: 2, Bits: 64},
	})
	require.NoError(t, err)
	assert.True(t, typ.Equal(&types.Integer{Bits: 64}), "widening picks the wider side")
}

func TestTypeOfReflexive(t *testing.T) {
	unit := parseUnit(t, `
program t;
var i: integer;
begin
  i := 1;
end.`)
	env := NewEnv(unit)
	expr := &ast.VariableAccess{Tok: lexer.Token{Literal: "i"}, Name: "i"}

	first, err := env.TypeOf(expr)
	require.NoError(t, err)
	second, err := env.TypeOf(expr)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestRecordFieldResolution(t *testing.T) {
	err := checkSource(t, `
program ok;
type tpoint = record
  x, y: integer;
end;
var p: tpoint;
begin
  p.x := 1;
  p.y := p.x + 1;
end.`)
	assert.NoError(t, err)
}

func TestUnknownFieldRejected(t *testing.T) {
	err := checkSource(t, `
program bad;
type tpoint = record
  x: integer;
end;
var p: tpoint;
begin
  p.z := 1;
end.`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no field named")
}
