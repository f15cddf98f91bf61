package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// rtlDir points at the runtime library shipped with the repository so
// the implicit system import resolves during tests.
const rtlDir = "../../rtl"

func parseSource(t *testing.T, source string) (*ast.Unit, *Parser) {
	t.Helper()
	tokens := lexer.New("test.pas", source).Tokenize()
	pre := macro.New(macro.Symbols{"unix": true})
	p := New([]string{rtlDir}, "test.pas", pre.Symbols(), pre.ParseFile(tokens), nil)
	unit, err := p.ParseFile()
	require.NoError(t, err)
	require.NotNil(t, unit)
	return unit, p
}

func parseError(t *testing.T, source string) *Parser {
	t.Helper()
	tokens := lexer.New("test.pas", source).Tokenize()
	pre := macro.New(macro.Symbols{})
	p := New([]string{rtlDir}, "test.pas", pre.Symbols(), pre.ParseFile(tokens), nil)
	_, err := p.ParseFile()
	require.Error(t, err)
	return p
}

func mainStatements(t *testing.T, unit *ast.Unit) []ast.Stmt {
	t.Helper()
	require.NotNil(t, unit.Block)
	return unit.Block.Statements
}

func TestParseHelloWorld(t *testing.T) {
	unit, _ := parseSource(t, "program hello; begin writeln('Hello, world!'); end.")

	assert.Equal(t, ast.UnitProgram, unit.Kind)
	assert.Equal(t, "hello", unit.Name)

	stmts := mainStatements(t, unit)
	require.Len(t, stmts, 1)
	call, ok := stmts[0].(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, "writeln", call.Name)
	assert.True(t, call.System)
	require.Len(t, call.Args, 1)
	str, ok := call.Args[0].(*ast.StringLiteral)
	require.True(t, ok)
	assert.Equal(t, "Hello, world!", str.Value)
}

func TestParseProgramParams(t *testing.T) {
	unit, _ := parseSource(t, "program hello(input, output); begin end.")
	require.Len(t, unit.ProgramParams, 2)
	assert.Equal(t, "input", unit.ProgramParams[0].Literal)
	assert.Equal(t, "output", unit.ProgramParams[1].Literal)
}

func TestParseForLoopSum(t *testing.T) {
	unit, _ := parseSource(t,
		"program s; var i,total:integer; begin total:=0; for i:=1 to 10 do total:=total+i; writeln(total); end.")

	stmts := mainStatements(t, unit)
	require.Len(t, stmts, 3)

	forStmt, ok := stmts[1].(*ast.ForStmt)
	require.True(t, ok)
	assert.Equal(t, "i", forStmt.Variable.Literal)
	assert.Equal(t, 1, forStmt.Step)

	start, ok := forStmt.Start.(*ast.IntLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(1), start.Value)
	end, ok := forStmt.End.(*ast.IntLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(10), end.Value)

	require.Len(t, forStmt.Body, 1)
	assign, ok := forStmt.Body[0].(*ast.Assignment)
	require.True(t, ok)
	sum, ok := assign.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpPlus, sum.Op)
}

func TestParseDownto(t *testing.T) {
	unit, _ := parseSource(t,
		"program s; var i:integer; begin for i:=10 downto 1 do writeln(i); end.")
	forStmt := mainStatements(t, unit)[0].(*ast.ForStmt)
	assert.Equal(t, -1, forStmt.Step)
}

func TestParsePrecedence(t *testing.T) {
	unit, _ := parseSource(t,
		"program s; var a:integer; begin a := 1 + 2 * 3; end.")
	assign := mainStatements(t, unit)[0].(*ast.Assignment)

	sum, ok := assign.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpPlus, sum.Op)

	product, ok := sum.Rhs.(*ast.BinaryExpr)
	require.True(t, ok, "multiplication binds into the right operand")
	assert.Equal(t, ast.OpMul, product.Op)
}

func TestParseParenthesisedExpression(t *testing.T) {
	unit, _ := parseSource(t,
		"program s; var a:integer; begin a := (1 + 2) * 3; end.")
	assign := mainStatements(t, unit)[0].(*ast.Assignment)
	require.IsType(t, &ast.BinaryExpr{}, assign.Value)
}

func TestParseComparisonOperators(t *testing.T) {
	tests := []struct {
		source string
		op     ast.CmpOperator
	}{
		{"a = 1", ast.CmpEquals},
		{"a <> 1", ast.CmpNotEquals},
		{"a < 1", ast.CmpLess},
		{"a <= 1", ast.CmpLessEqual},
		{"a > 1", ast.CmpGreater},
		{"a >= 1", ast.CmpGreaterEqual},
	}
	for _, tt := range tests {
		unit, _ := parseSource(t,
			"program s; var a:integer; begin if "+tt.source+" then writeln(1); end.")
		ifStmt := mainStatements(t, unit)[0].(*ast.IfStmt)
		cmp, ok := ifStmt.Cond.(*ast.Comparison)
		require.True(t, ok, tt.source)
		assert.Equal(t, tt.op, cmp.Op, tt.source)
	}
}

func TestParseWhileRepeatBreak(t *testing.T) {
	unit, _ := parseSource(t, `
program s;
var i:integer;
begin
  i := 0;
  while i < 10 do
  begin
    i := i + 1;
    if i = 5 then break;
  end;
  repeat
    i := i - 1;
  until i = 0;
end.`)

	stmts := mainStatements(t, unit)
	require.Len(t, stmts, 3)
	require.IsType(t, &ast.WhileStmt{}, stmts[1])
	require.IsType(t, &ast.RepeatStmt{}, stmts[2])

	whileBody := stmts[1].(*ast.WhileStmt).Body[0].(*ast.Block)
	ifStmt := whileBody.Statements[1].(*ast.IfStmt)
	require.IsType(t, &ast.BreakStmt{}, ifStmt.Then[0])
}

func TestParseCaseOverStrings(t *testing.T) {
	unit, _ := parseSource(t,
		"program c; var s:string; begin s:='b'; case s of 'a': writeln(1); 'b': writeln(2); else writeln(3); end; end.")

	caseStmt := mainStatements(t, unit)[1].(*ast.CaseStmt)
	require.Len(t, caseStmt.Arms, 2)
	require.Len(t, caseStmt.Else, 1)
}

func TestParseCaseOverNamedRange(t *testing.T) {
	unit, _ := parseSource(t, `
program c;
type small = 1..5;
var x: integer;
begin
  x := 3;
  case x of
    small: writeln(1);
    7: writeln(2);
  end;
end.`)

	caseStmt := mainStatements(t, unit)[1].(*ast.CaseStmt)
	require.Len(t, caseStmt.Arms, 2)
	ref, ok := caseStmt.Arms[0].Selector.(*ast.TypeRef)
	require.True(t, ok)
	rangeType, ok := ref.Type.(*types.ValueRange)
	require.True(t, ok)
	assert.Equal(t, int64(1), rangeType.Low)
	assert.Equal(t, int64(5), rangeType.High)
}

func TestParseTypeSections(t *testing.T) {
	unit, _ := parseSource(t, `
program t;
type
  trange = 1..10;
  tcolor = (red, green = 5, blue);
  tpoint = record
    x, y: integer;
  end;
  parr = array[1..3] of integer;
  dyn = array of integer;
var p: tpoint;
begin
  p.x := 1;
end.`)

	rangeType, ok := unit.Types.Lookup("trange")
	require.True(t, ok)
	require.IsType(t, &types.ValueRange{}, rangeType)

	colorType, ok := unit.Types.Lookup("tcolor")
	require.True(t, ok)
	enum := colorType.(*types.Enum)
	require.Len(t, enum.Values, 3)
	green, _ := enum.ValueOf("green")
	assert.Equal(t, int64(5), green)
	blue, _ := enum.ValueOf("blue")
	assert.Equal(t, int64(6), blue)

	pointType, ok := unit.Types.Lookup("tpoint")
	require.True(t, ok)
	record := pointType.(*types.Record)
	require.Len(t, record.Fields, 2)
	assert.Equal(t, 0, record.FieldIndex("x"))
	assert.Equal(t, 1, record.FieldIndex("y"))

	arrType, ok := unit.Types.Lookup("parr")
	require.True(t, ok)
	fixed := arrType.(*types.FixedArray)
	assert.Equal(t, int64(1), fixed.Low)
	assert.Equal(t, int64(3), fixed.High)

	dynType, ok := unit.Types.Lookup("dyn")
	require.True(t, ok)
	require.IsType(t, &types.DynArray{}, dynType)
}

func TestParseFunctionDefinition(t *testing.T) {
	unit, _ := parseSource(t, `
program f;
function add(a, b: integer): integer;
begin
  add := a + b;
end;
procedure touch(var x: integer);
begin
  x := 1;
end;
begin
  writeln(add(1, 2));
end.`)

	var add, touch *ast.FunctionDefinition
	for _, fn := range unit.Functions {
		switch fn.Name {
		case "add":
			add = fn
		case "touch":
			touch = fn
		}
	}
	require.NotNil(t, add)
	require.Len(t, add.Params, 2)
	assert.False(t, add.Params[0].ByReference)
	assert.Equal(t, "add(integer32,integer32)", add.Signature())
	require.NotNil(t, add.ReturnType)
	require.NotNil(t, add.Body)

	require.NotNil(t, touch)
	require.Len(t, touch.Params, 1)
	assert.True(t, touch.Params[0].ByReference)
	assert.Nil(t, touch.ReturnType)
}

func TestParseExternalFunction(t *testing.T) {
	unit, _ := parseSource(t, `
program e;
function puts(s: pinteger): integer; external 'c' name 'puts';
begin
end.`)

	var puts *ast.FunctionDefinition
	for _, fn := range unit.Functions {
		if fn.Name == "puts" {
			puts = fn
		}
	}
	require.NotNil(t, puts)
	assert.True(t, puts.External())
	assert.Equal(t, "c", puts.LibName)
	assert.Equal(t, "puts", puts.ExternalName)
	assert.Equal(t, []string{"c"}, unit.LibsToLink())
}

func TestParseConstAndVarInitializers(t *testing.T) {
	unit, _ := parseSource(t, `
program i;
const limit = 10;
var total: integer = 5;
begin
  total := limit;
end.`)

	require.NotNil(t, unit.Block)
	names := map[string]ast.VariableDefinition{}
	for _, def := range unit.Block.Variables {
		names[def.Name] = def
	}
	require.Contains(t, names, "limit")
	assert.True(t, names["limit"].Constant)
	require.Contains(t, names, "total")
	require.NotNil(t, names["total"].Value)
}

func TestParsePointerAndDereference(t *testing.T) {
	unit, _ := parseSource(t, `
program p;
var v: ^integer; x: integer;
begin
  v := @x;
  v^ := 42;
  x := v^;
end.`)

	stmts := mainStatements(t, unit)
	require.Len(t, stmts, 3)

	addr := stmts[0].(*ast.Assignment)
	require.IsType(t, &ast.AddressOf{}, addr.Value)

	deref := stmts[1].(*ast.Assignment)
	assert.True(t, deref.Dereference)

	load := stmts[2].(*ast.Assignment)
	access := load.Value.(*ast.VariableAccess)
	assert.True(t, access.Dereference)
}

func TestParseEscapedStringConcatenatesAtParseTime(t *testing.T) {
	unit, _ := parseSource(t,
		"program e; begin writeln('line'#13#10); end.")
	call := mainStatements(t, unit)[0].(*ast.CallExpr)
	str := call.Args[0].(*ast.StringLiteral)
	assert.Equal(t, "line\r\n", str.Value)
}

func TestParseErrorUnknownVariable(t *testing.T) {
	p := parseError(t, "program b; begin x := 1; end.")
	require.True(t, p.Diagnostics().HasErrors())
	found := false
	for _, d := range p.Diagnostics().All() {
		if assert.ObjectsAreEqual(true, d.Severity.String() == "error") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseErrorMissingReturnType(t *testing.T) {
	p := parseError(t, "program b; function f(); begin end; begin end.")
	assert.True(t, p.Diagnostics().HasErrors())
}

func TestParseErrorRedeclaration(t *testing.T) {
	p := parseError(t, "program b; var x: integer; var x: integer; begin x := 1; end.")
	assert.True(t, p.Diagnostics().HasErrors())
}

func TestDiagnosticsCarryPosition(t *testing.T) {
	p := parseError(t, "program b; begin\n  x := 1;\nend.")
	require.NotEmpty(t, p.Diagnostics().All())
	d := p.Diagnostics().All()[0]
	assert.Equal(t, 2, d.Token.Span.Row())
}
