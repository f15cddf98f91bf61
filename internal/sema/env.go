// Package sema resolves expression types and enforces the static rules of
// the language. The code generator shares its Env for type resolution.
package sema

import (
	"fmt"
	"strings"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// Error is a semantic error anchored to a token.
type Error struct {
	Token   lexer.Token
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Token.Span.Position(), e.Message)
}

func errorf(tok lexer.Token, format string, args ...any) *Error {
	return &Error{Token: tok, Message: fmt.Sprintf(format, args...)}
}

// Env is the name environment of one lowering scope: the unit's globals,
// plus the current function's parameters and locals when inside one.
type Env struct {
	Unit     *ast.Unit
	Function *ast.FunctionDefinition
	parent   *Env
	vars     map[string]*ast.VariableDefinition
	params   map[string]*ast.Parameter
}

// NewEnv builds the global environment of a unit.
func NewEnv(unit *ast.Unit) *Env {
	env := &Env{
		Unit:   unit,
		vars:   make(map[string]*ast.VariableDefinition),
		params: make(map[string]*ast.Parameter),
	}
	if unit.Block != nil {
		for i := range unit.Block.Variables {
			def := &unit.Block.Variables[i]
			env.vars[strings.ToLower(def.Name)] = def
		}
	}
	for i, paramTok := range unit.ProgramParams {
		handle := [3]string{"stdin", "stdout", "stderr"}[min(i, 2)]
		env.vars[paramTok.Literal] = &ast.VariableDefinition{
			Name:    paramTok.Literal,
			Tok:     paramTok,
			Type:    &types.File{},
			Builtin: handle,
		}
	}
	return env
}

// EnterFunction derives the environment of a function body.
func (e *Env) EnterFunction(f *ast.FunctionDefinition) *Env {
	child := &Env{
		Unit:     e.Unit,
		Function: f,
		parent:   e,
		vars:     make(map[string]*ast.VariableDefinition),
		params:   make(map[string]*ast.Parameter),
	}
	for i := range f.Params {
		param := &f.Params[i]
		child.params[strings.ToLower(param.Name)] = param
	}
	if f.Body != nil {
		for i := range f.Body.Variables {
			def := &f.Body.Variables[i]
			child.vars[strings.ToLower(def.Name)] = def
			if def.Alias != "" {
				child.vars[strings.ToLower(def.Alias)] = def
			}
		}
	}
	return child
}

// LookupVar resolves a variable by name through the scope chain.
func (e *Env) LookupVar(name string) (*ast.VariableDefinition, bool) {
	name = strings.ToLower(name)
	for env := e; env != nil; env = env.parent {
		if def, ok := env.vars[name]; ok {
			return def, true
		}
	}
	return nil, false
}

// LookupParam resolves a parameter of the current function.
func (e *Env) LookupParam(name string) (*ast.Parameter, bool) {
	name = strings.ToLower(name)
	for env := e; env != nil; env = env.parent {
		if param, ok := env.params[name]; ok {
			return param, true
		}
	}
	return nil, false
}

// typeOfName resolves a bare name to its declared type.
func (e *Env) typeOfName(tok lexer.Token, name string) (types.Type, error) {
	if def, ok := e.LookupVar(name); ok {
		return def.Type, nil
	}
	if param, ok := e.LookupParam(name); ok {
		return param.Type, nil
	}
	return nil, errorf(tok, "unknown variable %s!", tok.Text())
}

// TypeOf resolves the semantic type of an expression.
func (e *Env) TypeOf(expr ast.Expr) (types.Type, error) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return &types.Integer{Bits: n.Bits}, nil
	case *ast.RealLiteral:
		return &types.Real{Bits: 64}, nil
	case *ast.BoolLiteral:
		return &types.Boolean{}, nil
	case *ast.CharLiteral:
		return &types.Character{}, nil
	case *ast.StringLiteral:
		return &types.String{}, nil
	case *ast.NilLiteral:
		return &types.Pointer{}, nil
	case *ast.EnumAccess:
		return n.Type, nil
	case *ast.TypeRef:
		return n.Type, nil

	case *ast.VariableAccess:
		t, err := e.typeOfName(n.Tok, n.Name)
		if err != nil {
			return nil, err
		}
		if n.Dereference {
			ptr, ok := t.(*types.Pointer)
			if !ok {
				return nil, errorf(n.Tok, "the variable %s is not a pointer!", n.Tok.Text())
			}
			if ptr.Base == nil {
				return &types.Unknown{}, nil
			}
			return ptr.Base, nil
		}
		return t, nil

	case *ast.FieldAccess:
		base, err := e.typeOfName(n.Tok, n.Tok.Literal)
		if err != nil {
			return nil, err
		}
		record, ok := baseRecord(base)
		if !ok {
			return nil, errorf(n.Tok, "the variable %s is not a record!", n.Tok.Text())
		}
		index := record.FieldIndex(n.Field.Literal)
		if index < 0 {
			return nil, errorf(n.Field, "the record has no field named %s!", n.Field.Text())
		}
		return record.Fields[index].Type, nil

	case *ast.ArrayAccess:
		base, err := e.typeOfName(n.Tok, n.Tok.Literal)
		if err != nil {
			return nil, err
		}
		switch t := base.(type) {
		case *types.FixedArray:
			return t.Element, nil
		case *types.DynArray:
			return t.Element, nil
		case *types.String:
			return &types.Character{}, nil
		}
		return nil, errorf(n.Tok, "the variable %s can not be indexed!", n.Tok.Text())

	case *ast.AddressOf:
		t, err := e.typeOfName(n.Tok, n.Name)
		if err != nil {
			return nil, err
		}
		return &types.Pointer{Base: t}, nil

	case *ast.Minus:
		return e.TypeOf(n.Operand)

	case *ast.BinaryExpr:
		return e.typeOfBinary(n)

	case *ast.Comparison, *ast.LogicalExpr:
		return &types.Boolean{}, nil

	case *ast.ArrayInit:
		if len(n.Elements) == 0 {
			return &types.Unknown{}, nil
		}
		element, err := e.TypeOf(n.Elements[0])
		if err != nil {
			return nil, err
		}
		return &types.FixedArray{Low: 0, High: int64(len(n.Elements) - 1), Element: element}, nil

	case *ast.CallExpr:
		return e.typeOfCall(n)
	}
	return &types.Unknown{}, nil
}

func baseRecord(t types.Type) (*types.Record, bool) {
	switch tt := t.(type) {
	case *types.Record:
		return tt, true
	case *types.Pointer:
		if record, ok := tt.Base.(*types.Record); ok {
			return record, true
		}
	}
	return nil, false
}

func (e *Env) typeOfBinary(n *ast.BinaryExpr) (types.Type, error) {
	lhs, err := e.TypeOf(n.Lhs)
	if err != nil {
		return nil, err
	}
	rhs, err := e.TypeOf(n.Rhs)
	if err != nil {
		return nil, err
	}

	// string concatenation: string+string and string+char
	if _, ok := lhs.(*types.String); ok && n.Op == ast.OpPlus {
		switch rhs.(type) {
		case *types.String, *types.Character:
			return &types.String{}, nil
		}
	}

	// '/' yields a real even over integer operands
	if n.Op == ast.OpDiv && types.IsInteger(lhs) && types.IsInteger(rhs) {
		return &types.Real{Bits: 64}, nil
	}

	// mixed integer widths widen to the wider side
	if types.IsInteger(lhs) && types.IsInteger(rhs) {
		if types.IntegerBits(lhs) >= types.IntegerBits(rhs) {
			return lhs, nil
		}
		return rhs, nil
	}
	// a single/double mismatch widens to double
	lReal, lOK := lhs.(*types.Real)
	rReal, rOK := rhs.(*types.Real)
	if lOK && rOK {
		if lReal.Bits >= rReal.Bits {
			return lhs, nil
		}
		return rhs, nil
	}
	return lhs, nil
}

func (e *Env) typeOfCall(n *ast.CallExpr) (types.Type, error) {
	if n.System {
		return e.typeOfSystemCall(n)
	}

	argTypes := make([]types.Type, len(n.Args))
	for i, arg := range n.Args {
		t, err := e.TypeOf(arg)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}
	def := e.Unit.FindFunction(ast.CallSignature(n.Name, argTypes), n.Name)
	if def == nil {
		return nil, errorf(n.Tok, "a function with the name '%s' is not yet defined!", n.Tok.Text())
	}
	if def.ReturnType == nil {
		return &types.Unknown{}, nil
	}
	return def.ReturnType, nil
}

func (e *Env) typeOfSystemCall(n *ast.CallExpr) (types.Type, error) {
	switch strings.ToLower(n.Name) {
	case "low", "high", "length":
		return &types.Integer{Bits: 64}, nil
	case "ord":
		if len(n.Args) == 1 {
			return e.TypeOf(n.Args[0])
		}
		return &types.Integer{Bits: 32}, nil
	case "chr":
		return &types.Character{}, nil
	case "pchar":
		return &types.Pointer{Base: &types.Character{}}, nil
	case "new":
		if len(n.Args) == 1 {
			t, err := e.TypeOf(n.Args[0])
			if err != nil {
				return nil, err
			}
			if ptr, ok := t.(*types.Pointer); ok && ptr.Base != nil {
				return ptr.Base, nil
			}
		}
		return &types.Unknown{}, nil
	case "exit":
		if len(n.Args) == 1 {
			return e.TypeOf(n.Args[0])
		}
		return &types.Unknown{}, nil
	}
	return &types.Unknown{}, nil
}
