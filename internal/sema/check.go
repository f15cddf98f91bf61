package sema

import (
	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// Check verifies the static rules over a whole unit: assignment and
// operand compatibility, boolean conditions, case-arm types, and call
// resolvability. The first violation is returned as a *Error.
func Check(unit *ast.Unit) error {
	env := NewEnv(unit)

	for _, f := range unit.Functions {
		if f.Body == nil {
			continue
		}
		fnEnv := env.EnterFunction(f)
		if err := checkStmts(fnEnv, f.Body.Statements); err != nil {
			return err
		}
	}
	if unit.Block != nil {
		if err := checkStmts(env, unit.Block.Statements); err != nil {
			return err
		}
	}
	if unit.Init != nil {
		if err := checkStmts(env, unit.Init.Statements); err != nil {
			return err
		}
	}
	return nil
}

func checkStmts(env *Env, stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if err := checkStmt(env, stmt); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(env *Env, stmt ast.Stmt) error {
	switch n := stmt.(type) {
	case *ast.Block:
		return checkStmts(env, n.Statements)

	case *ast.Assignment:
		varType, err := env.TypeOf(&ast.VariableAccess{Tok: n.Tok, Name: n.Name, Dereference: n.Dereference})
		if err != nil {
			return err
		}
		valueType, err := checkExpr(env, n.Value)
		if err != nil {
			return err
		}
		if !assignable(varType, valueType) && !charLiteralIntoString(varType, n.Value) {
			return errorf(n.Tok, "can not assign a value of type %s to the variable %s of type %s!",
				valueType.TypeName(), n.Tok.Text(), varType.TypeName())
		}
		return nil

	case *ast.FieldAssignment:
		fieldType, err := env.TypeOf(&ast.FieldAccess{Tok: n.Tok, Field: n.Field})
		if err != nil {
			return err
		}
		valueType, err := checkExpr(env, n.Value)
		if err != nil {
			return err
		}
		if !assignable(fieldType, valueType) {
			return errorf(n.Field, "can not assign a value of type %s to the field %s of type %s!",
				valueType.TypeName(), n.Field.Text(), fieldType.TypeName())
		}
		return nil

	case *ast.ArrayAssignment:
		elementType, err := env.TypeOf(&ast.ArrayAccess{Tok: n.Tok, Index: n.Index})
		if err != nil {
			return err
		}
		if _, err := checkExpr(env, n.Index); err != nil {
			return err
		}
		valueType, err := checkExpr(env, n.Value)
		if err != nil {
			return err
		}
		if !assignable(elementType, valueType) {
			return errorf(n.Tok, "can not assign a value of type %s to an element of type %s!",
				valueType.TypeName(), elementType.TypeName())
		}
		return nil

	case *ast.IfStmt:
		if err := checkCondition(env, n.Cond); err != nil {
			return err
		}
		if err := checkStmts(env, n.Then); err != nil {
			return err
		}
		return checkStmts(env, n.Else)

	case *ast.WhileStmt:
		if err := checkCondition(env, n.Cond); err != nil {
			return err
		}
		return checkStmts(env, n.Body)

	case *ast.RepeatStmt:
		if err := checkStmts(env, n.Body); err != nil {
			return err
		}
		return checkCondition(env, n.Cond)

	case *ast.ForStmt:
		if _, err := checkExpr(env, n.Start); err != nil {
			return err
		}
		if _, err := checkExpr(env, n.End); err != nil {
			return err
		}
		return checkStmts(env, n.Body)

	case *ast.ForEachStmt:
		sourceType, err := checkExpr(env, n.Source)
		if err != nil {
			return err
		}
		switch sourceType.(type) {
		case *types.ValueRange, *types.FixedArray, *types.DynArray, *types.String:
		default:
			return errorf(n.Tok, "the type %s can not be iterated!", sourceType.TypeName())
		}
		return checkStmts(env, n.Body)

	case *ast.CaseStmt:
		return checkCase(env, n)

	case *ast.BreakStmt:
		return nil

	case *ast.CallExpr:
		_, err := checkExpr(env, n)
		return err
	}
	return nil
}

func checkCondition(env *Env, cond ast.Expr) error {
	if cond == nil {
		return &Error{Message: "the condition is not a boolean expression!"}
	}
	t, err := checkExpr(env, cond)
	if err != nil {
		return err
	}
	if _, ok := t.(*types.Boolean); !ok {
		return errorf(cond.Token(), "the condition is not a boolean expression!")
	}
	return nil
}

func checkCase(env *Env, n *ast.CaseStmt) error {
	selectorType, err := checkExpr(env, n.Selector)
	if err != nil {
		return err
	}
	for _, arm := range n.Arms {
		armType, err := env.TypeOf(arm.Selector)
		if err != nil {
			return err
		}
		if !caseArmMatches(selectorType, armType) && !charLiteralIntoString(selectorType, arm.Selector) {
			return errorf(arm.Selector.Token(), "the case selector type %s does not match the expression type %s!",
				armType.TypeName(), selectorType.TypeName())
		}
		if arm.Body != nil {
			if err := checkStmt(env, arm.Body); err != nil {
				return err
			}
		}
	}
	return checkStmts(env, n.Else)
}

// caseArmMatches accepts equal types, integer arms of any width over an
// integer selector, and a range-typed arm over any integer-like selector.
func caseArmMatches(selector, arm types.Type) bool {
	if selector.Equal(arm) {
		return true
	}
	if _, ok := arm.(*types.ValueRange); ok {
		return types.IsInteger(selector)
	}
	_, selInt := selector.(*types.Integer)
	_, armInt := arm.(*types.Integer)
	return selInt && armInt
}

// checkExpr validates an expression and returns its type.
func checkExpr(env *Env, expr ast.Expr) (types.Type, error) {
	switch n := expr.(type) {
	case *ast.BinaryExpr:
		lhs, err := checkExpr(env, n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := checkExpr(env, n.Rhs)
		if err != nil {
			return nil, err
		}
		if !binaryCompatible(n.Op, lhs, rhs) {
			return nil, errorf(n.Tok, "the types %s and %s are not compatible for the operator %s!",
				lhs.TypeName(), rhs.TypeName(), n.Op)
		}
		return env.TypeOf(n)

	case *ast.Comparison:
		lhs, err := checkExpr(env, n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := checkExpr(env, n.Rhs)
		if err != nil {
			return nil, err
		}
		if !comparable(lhs, rhs) {
			return nil, errorf(n.Tok, "the types %s and %s can not be compared!",
				lhs.TypeName(), rhs.TypeName())
		}
		return &types.Boolean{}, nil

	case *ast.LogicalExpr:
		if n.Lhs != nil {
			if err := checkCondition(env, n.Lhs); err != nil {
				return nil, err
			}
		}
		if err := checkCondition(env, n.Rhs); err != nil {
			return nil, err
		}
		return &types.Boolean{}, nil

	case *ast.Minus:
		return checkExpr(env, n.Operand)

	case *ast.CallExpr:
		for _, arg := range n.Args {
			if _, err := checkExpr(env, arg); err != nil {
				return nil, err
			}
		}
		return env.TypeOf(n)

	case *ast.ArrayAccess:
		if _, err := checkExpr(env, n.Index); err != nil {
			return nil, err
		}
		return env.TypeOf(n)
	}

	return env.TypeOf(expr)
}

// binaryCompatible implements the operand rule: both sides share a numeric
// type, or both are strings; string+char counts as concatenation.
func binaryCompatible(op ast.Operator, lhs, rhs types.Type) bool {
	if _, ok := lhs.(*types.String); ok && op == ast.OpPlus {
		switch rhs.(type) {
		case *types.String, *types.Character:
			return true
		}
		return false
	}
	if types.IsInteger(lhs) && types.IsInteger(rhs) {
		// boolean is integer-backed but takes no part in arithmetic
		_, lBool := lhs.(*types.Boolean)
		_, rBool := rhs.(*types.Boolean)
		return !lBool && !rBool
	}
	_, lReal := lhs.(*types.Real)
	_, rReal := rhs.(*types.Real)
	return lReal && rReal
}

// comparable accepts equal types and numeric pairs related by implicit
// width or precision widening. Pointers compare against nil and integers.
func comparable(lhs, rhs types.Type) bool {
	if lhs.Equal(rhs) {
		return true
	}
	if types.IsInteger(lhs) && types.IsInteger(rhs) {
		return true
	}
	_, lReal := lhs.(*types.Real)
	_, rReal := rhs.(*types.Real)
	if lReal && rReal {
		return true
	}
	_, lPtr := lhs.(*types.Pointer)
	_, rPtr := rhs.(*types.Pointer)
	if lPtr && (rPtr || types.IsInteger(rhs)) {
		return true
	}
	if rPtr && types.IsInteger(lhs) {
		return true
	}
	_, lStr := lhs.(*types.String)
	_, rStr := rhs.(*types.String)
	return lStr && rStr
}

// charLiteralIntoString accepts a single-quoted single-byte literal where
// a string is expected; the code generator widens it to a one-character
// string. Char-typed values stay incompatible.
func charLiteralIntoString(target types.Type, value ast.Expr) bool {
	if _, isString := target.(*types.String); !isString {
		return false
	}
	_, isCharLiteral := value.(*ast.CharLiteral)
	return isCharLiteral
}

// assignable implements the assignment rule: strict type equality with the
// only relaxations being integer width widening, real precision widening,
// range/integer interchange, and nil into any pointer.
func assignable(lhs, rhs types.Type) bool {
	if lhs.Equal(rhs) {
		return true
	}
	if types.IsInteger(lhs) && types.IsInteger(rhs) {
		// boolean is integer-backed but does not mix with arithmetic types
		_, lBool := lhs.(*types.Boolean)
		_, rBool := rhs.(*types.Boolean)
		return lBool == rBool
	}
	_, lReal := lhs.(*types.Real)
	_, rReal := rhs.(*types.Real)
	if lReal && (rReal || types.IsInteger(rhs)) {
		return true
	}
	if ptr, ok := lhs.(*types.Pointer); ok {
		if other, ok := rhs.(*types.Pointer); ok {
			return ptr.Base == nil || other.Base == nil || ptr.Base.Equal(other.Base)
		}
	}
	if _, ok := lhs.(*types.DynArray); ok {
		if _, ok := rhs.(*types.FixedArray); ok {
			return true
		}
	}
	if fixed, ok := lhs.(*types.FixedArray); ok {
		if other, ok := rhs.(*types.FixedArray); ok {
			return fixed.Element.Equal(other.Element) && fixed.Len() >= other.Len()
		}
	}
	if _, ok := lhs.(*types.Unknown); ok {
		return true
	}
	return false
}
