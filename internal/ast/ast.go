// Package ast defines the abstract syntax tree. Nodes are plain data: each
// compiler pass (sema, codegen) dispatches over the sum with a type switch
// and carries its own state, so the tree stays free of pass machinery.
package ast

import (
	"strings"

	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// Node is implemented by every AST node.
type Node interface {
	// Token returns the token the node hangs off, used for diagnostics.
	Token() lexer.Token
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// ---- literals ----

// IntLiteral is an integer constant; Bits is 32 or 64 depending on the
// magnitude of the value.
type IntLiteral struct {
	Tok   lexer.Token
	Value int64
	Bits  int
}

// RealLiteral is a floating-point constant.
type RealLiteral struct {
	Tok   lexer.Token
	Value float64
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Tok   lexer.Token
	Value bool
}

// CharLiteral is a single-byte constant.
type CharLiteral struct {
	Tok   lexer.Token
	Value byte
}

// StringLiteral is a quoted (or escaped #N#M) string constant.
type StringLiteral struct {
	Tok   lexer.Token
	Value string
}

// NilLiteral is the nil pointer.
type NilLiteral struct {
	Tok lexer.Token
}

// ---- access expressions ----

// VariableAccess reads a variable; Dereference follows a trailing '^'.
type VariableAccess struct {
	Tok         lexer.Token
	Name        string
	Dereference bool
}

// FieldAccess reads record field Field of variable Tok.
type FieldAccess struct {
	Tok   lexer.Token
	Field lexer.Token
}

// ArrayAccess reads element Index of array/string variable Tok.
type ArrayAccess struct {
	Tok   lexer.Token
	Index Expr
}

// AddressOf takes the address of a variable (@x).
type AddressOf struct {
	Tok  lexer.Token
	Name string
}

// EnumAccess names an enum tag; the defining type is resolved at parse time.
type EnumAccess struct {
	Tok  lexer.Token
	Type *types.Enum
}

// ---- operators ----

// Operator is an arithmetic operator.
type Operator int

const (
	OpPlus Operator = iota
	OpMinus
	OpMul
	OpDiv  // '/'
	OpIDiv // div
	OpMod  // mod
)

var operatorNames = map[Operator]string{
	OpPlus: "+", OpMinus: "-", OpMul: "*", OpDiv: "/", OpIDiv: "div", OpMod: "mod",
}

func (op Operator) String() string { return operatorNames[op] }

// BinaryExpr is Lhs op Rhs.
type BinaryExpr struct {
	Tok      lexer.Token
	Op       Operator
	Lhs, Rhs Expr
}

// CmpOperator is a comparison predicate.
type CmpOperator int

const (
	CmpEquals CmpOperator = iota
	CmpNotEquals
	CmpLess
	CmpLessEqual
	CmpGreater
	CmpGreaterEqual
)

var cmpNames = map[CmpOperator]string{
	CmpEquals: "=", CmpNotEquals: "<>", CmpLess: "<", CmpLessEqual: "<=",
	CmpGreater: ">", CmpGreaterEqual: ">=",
}

func (op CmpOperator) String() string { return cmpNames[op] }

// Comparison is Lhs op Rhs yielding a boolean.
type Comparison struct {
	Tok      lexer.Token
	Op       CmpOperator
	Lhs, Rhs Expr
}

// LogicOperator is a boolean connective.
type LogicOperator int

const (
	LogicAnd LogicOperator = iota
	LogicOr
	LogicNot
)

// LogicalExpr combines boolean operands; for LogicNot only Rhs is set.
type LogicalExpr struct {
	Tok      lexer.Token
	Op       LogicOperator
	Lhs, Rhs Expr
}

// Minus negates its operand.
type Minus struct {
	Tok     lexer.Token
	Operand Expr
}

// TypeRef wraps a type where the grammar allows one as an expression, such
// as a range-typed case arm selector.
type TypeRef struct {
	Tok  lexer.Token
	Type types.Type
}

// ArrayInit is a bracketed element list initializing a fixed array.
type ArrayInit struct {
	Tok      lexer.Token
	Elements []Expr
}

// CallExpr calls a user function or, when System is set, one of the
// built-in routines lowered inline by the code generator.
type CallExpr struct {
	Tok    lexer.Token
	Name   string
	Args   []Expr
	System bool
}

// ---- statements ----

// Assignment stores Value into the named variable; Dereference stores
// through the pointer it holds.
type Assignment struct {
	Tok         lexer.Token
	Name        string
	Dereference bool
	Value       Expr
}

// FieldAssignment stores Value into record field Field of variable Tok.
type FieldAssignment struct {
	Tok   lexer.Token
	Field lexer.Token
	Value Expr
}

// ArrayAssignment stores Value into element Index of variable Tok.
type ArrayAssignment struct {
	Tok   lexer.Token
	Index Expr
	Value Expr
}

// IfStmt branches on Cond.
type IfStmt struct {
	Tok  lexer.Token
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// WhileStmt loops while Cond holds.
type WhileStmt struct {
	Tok  lexer.Token
	Cond Expr
	Body []Stmt
}

// RepeatStmt runs Body at least once, until Cond holds.
type RepeatStmt struct {
	Tok  lexer.Token
	Cond Expr
	Body []Stmt
}

// ForStmt is "for v := Start to/downto End do"; Step is +1 or -1.
type ForStmt struct {
	Tok      lexer.Token
	Variable lexer.Token
	Start    Expr
	End      Expr
	Step     int
	Body     []Stmt
}

// ForEachStmt is "for v in expr do" over a range-typed expression.
type ForEachStmt struct {
	Tok      lexer.Token
	Variable lexer.Token
	Source   Expr
	Body     []Stmt
}

// CaseArm is one selector of a case statement; the selector is a constant
// expression or a TypeRef naming a value range.
type CaseArm struct {
	Selector Expr
	Body     Stmt
}

// CaseStmt dispatches on Selector.
type CaseStmt struct {
	Tok      lexer.Token
	Selector Expr
	Arms     []CaseArm
	Else     []Stmt
}

// BreakStmt leaves the innermost loop.
type BreakStmt struct {
	Tok lexer.Token
}

// Block is a begin..end span plus the declarations preceding it.
type Block struct {
	Tok        lexer.Token
	Variables  []VariableDefinition
	Statements []Stmt
}

// ---- declarations ----

// VariableDefinition declares one variable or constant.
type VariableDefinition struct {
	Name     string
	Tok      lexer.Token
	Type     types.Type
	Scope    int
	Value    Expr // optional initializer
	Constant bool
	// Alias marks the phantom result slot: a function's own name aliases
	// "result" inside its body.
	Alias string
	// Builtin binds the variable to a pre-installed IR global such as the
	// stdin/stdout/stderr handles.
	Builtin string
}

// Parameter is one formal function parameter.
type Parameter struct {
	Name        string
	Tok         lexer.Token
	Type        types.Type
	ByReference bool
}

// Attribute is a function attribute.
type Attribute int

const (
	// AttrInline requests inlining in release builds.
	AttrInline Attribute = iota
)

// FunctionDefinition is a procedure or function, possibly external-only.
type FunctionDefinition struct {
	Tok          lexer.Token
	Name         string
	ExternalName string
	LibName      string
	Params       []Parameter
	ReturnType   types.Type // nil for procedures
	Body         *Block     // nil for external declarations
	Attributes   []Attribute
}

// HasAttribute reports whether the definition carries the attribute.
func (f *FunctionDefinition) HasAttribute(a Attribute) bool {
	for _, attr := range f.Attributes {
		if attr == a {
			return true
		}
	}
	return false
}

// External reports whether the function is an external declaration.
func (f *FunctionDefinition) External() bool { return f.Body == nil }

// Signature keys overload resolution: the lower-cased name followed by the
// canonical parameter type names.
func (f *FunctionDefinition) Signature() string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Type.TypeName()
	}
	return strings.ToLower(f.Name) + "(" + strings.Join(names, ",") + ")"
}

// CallSignature builds the signature key for a call with the given
// argument types.
func CallSignature(name string, args []types.Type) string {
	names := make([]string, len(args))
	for i, t := range args {
		names[i] = t.TypeName()
	}
	return strings.ToLower(name) + "(" + strings.Join(names, ",") + ")"
}

// UnitKind distinguishes programs from library units.
type UnitKind int

const (
	UnitProgram UnitKind = iota
	UnitLibrary
)

// Unit is one translation unit: a program with a main block, or a library
// unit with interface/implementation sections.
type Unit struct {
	Tok           lexer.Token
	Kind          UnitKind
	Name          string
	ProgramParams []lexer.Token // program foo(input, output);
	Functions     []*FunctionDefinition
	Types         *types.Registry
	Block         *Block // main block (programs) — nil for units
	Init          *Block // initialization section — nil if absent
}

// FindFunction resolves a callee first by exact call signature, then by
// bare name; external overloads match by name only.
func (u *Unit) FindFunction(signature, name string) *FunctionDefinition {
	for _, f := range u.Functions {
		if f.Signature() == signature {
			return f
		}
	}
	for _, f := range u.Functions {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// LibsToLink collects the distinct external library names of the unit's
// functions, in first-appearance order.
func (u *Unit) LibsToLink() []string {
	seen := map[string]bool{}
	var libs []string
	for _, f := range u.Functions {
		if f.LibName != "" && !seen[f.LibName] {
			seen[f.LibName] = true
			libs = append(libs, f.LibName)
		}
	}
	return libs
}

// ---- interface plumbing ----

func (n *IntLiteral) Token() lexer.Token      { return n.Tok }
func (n *RealLiteral) Token() lexer.Token     { return n.Tok }
func (n *BoolLiteral) Token() lexer.Token     { return n.Tok }
func (n *CharLiteral) Token() lexer.Token     { return n.Tok }
func (n *StringLiteral) Token() lexer.Token   { return n.Tok }
func (n *NilLiteral) Token() lexer.Token      { return n.Tok }
func (n *VariableAccess) Token() lexer.Token  { return n.Tok }
func (n *FieldAccess) Token() lexer.Token     { return n.Tok }
func (n *ArrayAccess) Token() lexer.Token     { return n.Tok }
func (n *AddressOf) Token() lexer.Token       { return n.Tok }
func (n *EnumAccess) Token() lexer.Token      { return n.Tok }
func (n *BinaryExpr) Token() lexer.Token      { return n.Tok }
func (n *Comparison) Token() lexer.Token      { return n.Tok }
func (n *LogicalExpr) Token() lexer.Token     { return n.Tok }
func (n *Minus) Token() lexer.Token           { return n.Tok }
func (n *TypeRef) Token() lexer.Token         { return n.Tok }
func (n *ArrayInit) Token() lexer.Token       { return n.Tok }
func (n *CallExpr) Token() lexer.Token        { return n.Tok }
func (n *Assignment) Token() lexer.Token      { return n.Tok }
func (n *FieldAssignment) Token() lexer.Token { return n.Tok }
func (n *ArrayAssignment) Token() lexer.Token { return n.Tok }
func (n *IfStmt) Token() lexer.Token          { return n.Tok }
func (n *WhileStmt) Token() lexer.Token       { return n.Tok }
func (n *RepeatStmt) Token() lexer.Token      { return n.Tok }
func (n *ForStmt) Token() lexer.Token         { return n.Tok }
func (n *ForEachStmt) Token() lexer.Token     { return n.Tok }
func (n *CaseStmt) Token() lexer.Token        { return n.Tok }
func (n *BreakStmt) Token() lexer.Token       { return n.Tok }
func (n *Block) Token() lexer.Token           { return n.Tok }
func (n *Unit) Token() lexer.Token            { return n.Tok }

func (n *IntLiteral) exprNode()     {}
func (n *RealLiteral) exprNode()    {}
func (n *BoolLiteral) exprNode()    {}
func (n *CharLiteral) exprNode()    {}
func (n *StringLiteral) exprNode()  {}
func (n *NilLiteral) exprNode()     {}
func (n *VariableAccess) exprNode() {}
func (n *FieldAccess) exprNode()    {}
func (n *ArrayAccess) exprNode()    {}
func (n *AddressOf) exprNode()      {}
func (n *EnumAccess) exprNode()     {}
func (n *BinaryExpr) exprNode()     {}
func (n *Comparison) exprNode()     {}
func (n *LogicalExpr) exprNode()    {}
func (n *Minus) exprNode()          {}
func (n *TypeRef) exprNode()        {}
func (n *ArrayInit) exprNode()      {}
func (n *CallExpr) exprNode()       {}

func (n *CallExpr) stmtNode()        {}
func (n *Assignment) stmtNode()      {}
func (n *FieldAssignment) stmtNode() {}
func (n *ArrayAssignment) stmtNode() {}
func (n *IfStmt) stmtNode()          {}
func (n *WhileStmt) stmtNode()       {}
func (n *RepeatStmt) stmtNode()      {}
func (n *ForStmt) stmtNode()         {}
func (n *ForEachStmt) stmtNode()     {}
func (n *CaseStmt) stmtNode()        {}
func (n *BreakStmt) stmtNode()       {}
func (n *Block) stmtNode()           {}
