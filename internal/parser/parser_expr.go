package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
)

// parseNumber consumes a NUMBER token and classifies it: a '.' makes it a
// real constant, otherwise the literal's magnitude picks a 32- or 64-bit
// integer.
func (p *Parser) parseNumber() ast.Expr {
	p.consume(lexer.NUMBER)
	tok := p.current()
	if strings.Contains(tok.Literal, ".") {
		value, _ := strconv.ParseFloat(tok.Literal, 64)
		return &ast.RealLiteral{Tok: tok, Value: value}
	}

	value, _ := strconv.ParseInt(tok.Literal, 10, 64)
	bits := 32
	if value > 0 && 1+int(math.Log2(float64(value))) > 32 {
		bits = 64
	}
	return &ast.IntLiteral{Tok: tok, Value: value, Bits: bits}
}

// parseEscapedString decodes a "#N#M..." token; every decimal is one byte.
// A single byte is a char constant.
func (p *Parser) parseEscapedString(tok lexer.Token) ast.Expr {
	var out strings.Builder
	for _, part := range strings.Split(tok.Literal, "#") {
		if part == "" {
			continue
		}
		code, _ := strconv.Atoi(part)
		out.WriteByte(byte(code))
	}
	if out.Len() == 1 {
		return &ast.CharLiteral{Tok: tok, Value: out.String()[0]}
	}
	return &ast.StringLiteral{Tok: tok, Value: out.String()}
}

// parseToken parses one primary expression.
func (p *Parser) parseToken(scope int) ast.Expr {
	switch {
	case p.canConsume(lexer.NUMBER):
		return p.parseNumber()
	case p.canConsume(lexer.STRING):
		p.consume(lexer.STRING)
		str := &ast.StringLiteral{Tok: p.current(), Value: p.current().Literal}
		// an adjacent escaped literal concatenates at parse time
		for p.tryConsume(lexer.ESCAPED_STRING) {
			suffix := p.parseEscapedString(p.current())
			switch s := suffix.(type) {
			case *ast.StringLiteral:
				str.Value += s.Value
			case *ast.CharLiteral:
				str.Value += string(s.Value)
			}
		}
		return str
	case p.canConsume(lexer.CHAR):
		p.consume(lexer.CHAR)
		return &ast.CharLiteral{Tok: p.current(), Value: p.current().Literal[0]}
	case p.canConsume(lexer.ESCAPED_STRING):
		p.consume(lexer.ESCAPED_STRING)
		return p.parseEscapedString(p.current())
	case p.canConsume(lexer.AT):
		p.consume(lexer.AT)
		p.consume(lexer.NAMEDTOKEN)
		return &ast.AddressOf{Tok: p.current(), Name: p.current().Literal}
	case p.canConsume(lexer.NAMEDTOKEN):
		if p.canConsumeAt(lexer.LPAREN, 2) {
			return p.parseFunctionCall(scope)
		}
		return p.parseVariableAccess(scope)
	case p.tryConsumeKeyword("true"):
		return &ast.BoolLiteral{Tok: p.current(), Value: true}
	case p.tryConsumeKeyword("false"):
		return &ast.BoolLiteral{Tok: p.current(), Value: false}
	case p.tryConsumeKeyword("nil"):
		return &ast.NilLiteral{Tok: p.current()}
	case p.canConsume(lexer.MINUS) && (p.canConsumeAt(lexer.NAMEDTOKEN, 2) || p.canConsumeAt(lexer.NUMBER, 2)):
		p.consume(lexer.MINUS)
		tok := p.current()
		return &ast.Minus{Tok: tok, Operand: p.parseToken(scope)}
	}
	return nil
}

// parseVariableAccess parses a named access: plain variable (with optional
// '^' dereference), array element, record field, or enum tag.
func (p *Parser) parseVariableAccess(scope int) ast.Expr {
	p.consume(lexer.NAMEDTOKEN)
	tok := p.current()

	if p.canConsume(lexer.LBRACKET) {
		if !p.isVarDefined(tok.Literal, scope) {
			p.errorf(tok, "A variable with the name '%s' is not yet defined!", tok.Text())
			return nil
		}
		p.consume(lexer.LBRACKET)
		index := p.parseExpression(scope)
		p.consume(lexer.RBRACKET)
		return &ast.ArrayAccess{Tok: tok, Index: index}
	}
	if p.canConsume(lexer.DOT) {
		p.consume(lexer.DOT)
		p.consume(lexer.NAMEDTOKEN)
		field := p.current()
		if !p.isVarDefined(tok.Literal, scope) {
			p.errorf(tok, "A variable with the name '%s' is not yet defined!", tok.Text())
			return nil
		}
		return &ast.FieldAccess{Tok: tok, Field: field}
	}

	if enum, ok := p.types.EnumWithKey(tok.Literal); ok {
		return &ast.EnumAccess{Tok: tok, Type: enum}
	}
	if !p.isVarDefined(tok.Literal, scope) {
		p.errorf(tok, "A variable with the name '%s' is not yet defined!", tok.Text())
		return nil
	}
	dereference := p.tryConsume(lexer.CARET)
	return &ast.VariableAccess{Tok: tok, Name: tok.Literal, Dereference: dereference}
}

// parseConstantAccess parses a reference valid in constant position: an
// enum tag or a previously defined constant.
func (p *Parser) parseConstantAccess(scope int) ast.Expr {
	p.consume(lexer.NAMEDTOKEN)
	tok := p.current()

	if enum, ok := p.types.EnumWithKey(tok.Literal); ok {
		return &ast.EnumAccess{Tok: tok, Type: enum}
	}
	if !p.isConstDefined(tok.Literal, scope) {
		p.errorf(tok, "A constant with the name '%s' is not yet defined!", tok.Text())
		return nil
	}
	dereference := p.tryConsume(lexer.CARET)
	return &ast.VariableAccess{Tok: tok, Name: tok.Literal, Dereference: dereference}
}

// parseRangeElement parses a constant usable as a range bound or case-arm
// selector.
func (p *Parser) parseRangeElement(scope int) ast.Expr {
	switch {
	case p.canConsume(lexer.NUMBER):
		return p.parseNumber()
	case p.canConsume(lexer.STRING):
		p.consume(lexer.STRING)
		return &ast.StringLiteral{Tok: p.current(), Value: p.current().Literal}
	case p.canConsume(lexer.CHAR):
		p.consume(lexer.CHAR)
		return &ast.CharLiteral{Tok: p.current(), Value: p.current().Literal[0]}
	case p.canConsume(lexer.ESCAPED_STRING):
		p.consume(lexer.ESCAPED_STRING)
		return p.parseEscapedString(p.current())
	case p.canConsume(lexer.NAMEDTOKEN):
		return p.parseConstantAccess(scope)
	case p.tryConsumeKeyword("true"):
		return &ast.BoolLiteral{Tok: p.current(), Value: true}
	case p.tryConsumeKeyword("false"):
		return &ast.BoolLiteral{Tok: p.current(), Value: false}
	case p.canConsume(lexer.MINUS) && p.canConsumeAt(lexer.NAMEDTOKEN, 2):
		p.consume(lexer.MINUS)
		access := p.parseConstantAccess(scope)
		if access == nil {
			return nil
		}
		if value := p.constValue(access.Token().Literal); value != nil {
			return &ast.Minus{Tok: p.current(), Operand: value}
		}
		return nil
	case p.canConsume(lexer.MINUS) && p.canConsumeAt(lexer.NUMBER, 2):
		p.consume(lexer.MINUS)
		tok := p.current()
		return &ast.Minus{Tok: tok, Operand: p.parseNumber()}
	}
	return nil
}

// parseRangeElementOrType parses a case-arm selector: a type reference
// (value ranges dispatch as interval checks) or a constant.
func (p *Parser) parseRangeElementOrType(scope int) ast.Expr {
	if t, ok := p.parseVariableType(scope, false, ""); ok {
		return &ast.TypeRef{Tok: p.current(), Type: t}
	}
	return p.parseRangeElement(scope)
}

// parseFunctionCall parses "name(arg, ...)"; built-in routines become
// system calls resolved by name alone.
func (p *Parser) parseFunctionCall(scope int) ast.Expr {
	p.consume(lexer.NAMEDTOKEN)
	nameTok := p.current()
	name := nameTok.Literal
	system := IsKnownSystemCall(name)
	if !system && !p.isFunctionDeclared(name) {
		p.errorf(p.current(), "a function with the name '%s' is not yet defined!", nameTok.Text())
	}

	var args []ast.Expr
	p.consume(lexer.LPAREN)
	for {
		if arg := p.parseExpression(scope); arg != nil {
			args = append(args, arg)
		} else if !p.tryConsume(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RPAREN)

	return &ast.CallExpr{Tok: nameTok, Name: name, Args: args, System: system}
}

// systemCalls are the built-in routines the code generator lowers inline.
// They resolve case-insensitively by name, never by signature.
var systemCalls = []string{
	"writeln", "write", "printf", "exit", "halt", "low", "high",
	"setlength", "length", "pchar", "new", "strdispose", "assert",
	"assignfile", "readln", "closefile", "reset", "rewrite", "ord", "chr",
}

// IsKnownSystemCall reports whether the name is a built-in routine.
func IsKnownSystemCall(name string) bool {
	name = strings.ToLower(name)
	for _, call := range systemCalls {
		if call == name {
			return true
		}
	}
	return false
}

// parseExpression parses a full expression: a base expression possibly
// combined with the logical operators, which bind loosest.
func (p *Parser) parseExpression(scope int) ast.Expr {
	if p.tryConsumeKeyword("not") {
		tok := p.current()
		rhs := p.parseExpression(scope)
		return p.parseLogical(scope, &ast.LogicalExpr{Tok: tok, Op: ast.LogicNot, Rhs: rhs})
	}

	lhs := p.parseBaseExpression(scope, nil, true)
	return p.parseLogical(scope, lhs)
}

func (p *Parser) parseLogical(scope int, lhs ast.Expr) ast.Expr {
	if lhs == nil {
		return nil
	}
	for {
		switch {
		case p.tryConsumeKeyword("and"):
			tok := p.current()
			rhs := p.parseExpression(scope)
			lhs = &ast.LogicalExpr{Tok: tok, Op: ast.LogicAnd, Lhs: lhs, Rhs: rhs}
		case p.tryConsumeKeyword("or"):
			tok := p.current()
			rhs := p.parseExpression(scope)
			lhs = &ast.LogicalExpr{Tok: tok, Op: ast.LogicOr, Lhs: lhs, Rhs: rhs}
		default:
			return lhs
		}
	}
}

// checkLhsExists flags a missing operand as a fatal parse error: the
// diagnostic is recorded and the parse of the file is abandoned.
func (p *Parser) checkLhsExists(lhs ast.Expr, tok lexer.Token) {
	if lhs == nil {
		p.errorf(tok, "unexpected token %s!", tok.Type)
		panic(abortParse{})
	}
}

// parseBaseExpression parses chains of the arithmetic operators and, when
// includeCompare is set, the comparison operators. Multiplicative chains
// following an additive operator are folded into the right operand first so
// the usual precedence holds.
func (p *Parser) parseBaseExpression(scope int, origLhs ast.Expr, includeCompare bool) ast.Expr {
	lhs := origLhs
	if lhs == nil {
		lhs = p.parseToken(scope)
	}

	for {
		switch {
		case p.tryConsume(lexer.PLUS):
			lhs = p.parseAdditive(scope, lhs, ast.OpPlus)
		case p.tryConsume(lexer.MINUS):
			lhs = p.parseAdditive(scope, lhs, ast.OpMinus)
		case p.tryConsume(lexer.MUL):
			tok := p.current()
			p.checkLhsExists(lhs, tok)
			rhs := p.parseToken(scope)
			lhs = &ast.BinaryExpr{Tok: tok, Op: ast.OpMul, Lhs: lhs, Rhs: rhs}
		case p.tryConsume(lexer.DIV):
			tok := p.current()
			p.checkLhsExists(lhs, tok)
			rhs := p.parseToken(scope)
			lhs = &ast.BinaryExpr{Tok: tok, Op: ast.OpDiv, Lhs: lhs, Rhs: rhs}
		case p.canConsumeKeyword("mod"):
			tok := p.peek(1)
			p.checkLhsExists(lhs, tok)
			p.consumeKeyword("mod")
			rhs := p.parseToken(scope)
			lhs = &ast.BinaryExpr{Tok: tok, Op: ast.OpMod, Lhs: lhs, Rhs: rhs}
		case p.canConsumeKeyword("div"):
			tok := p.peek(1)
			p.checkLhsExists(lhs, tok)
			p.consumeKeyword("div")
			rhs := p.parseToken(scope)
			lhs = &ast.BinaryExpr{Tok: tok, Op: ast.OpIDiv, Lhs: lhs, Rhs: rhs}
		case p.canConsume(lexer.LPAREN):
			p.consume(lexer.LPAREN)
			inner := p.parseExpression(scope)
			p.consume(lexer.RPAREN)
			if binOp, ok := lhs.(*ast.BinaryExpr); ok {
				// the parenthesised expression completes the pending
				// operator's right-hand side
				lhs = &ast.BinaryExpr{Tok: binOp.Tok, Op: binOp.Op, Lhs: binOp.Lhs, Rhs: inner}
			} else {
				lhs = inner
			}
		case includeCompare && p.canConsumeComparison():
			lhs = p.parseComparison(scope, lhs)
		default:
			return lhs
		}
	}
}

// parseAdditive finishes "lhs +/- rhs", folding a following multiplicative
// chain into rhs first.
func (p *Parser) parseAdditive(scope int, lhs ast.Expr, op ast.Operator) ast.Expr {
	tok := p.current()
	p.checkLhsExists(lhs, tok)
	rhs := p.parseToken(scope)
	if p.canConsume(lexer.MUL) || p.canConsume(lexer.DIV) ||
		p.canConsumeKeyword("mod") || p.canConsumeKeyword("div") ||
		p.canConsume(lexer.LPAREN) {
		rhs = p.parseBaseExpression(scope, rhs, false)
	}
	return &ast.BinaryExpr{Tok: tok, Op: op, Lhs: lhs, Rhs: rhs}
}

func (p *Parser) canConsumeComparison() bool {
	return p.canConsume(lexer.EQUAL) || p.canConsume(lexer.LESS) ||
		p.canConsume(lexer.GREATER) ||
		(p.canConsume(lexer.BANG) && p.canConsumeAt(lexer.EQUAL, 2))
}

func (p *Parser) parseComparison(scope int, lhs ast.Expr) ast.Expr {
	switch {
	case p.tryConsume(lexer.GREATER):
		tok := p.current()
		p.checkLhsExists(lhs, tok)
		op := ast.CmpGreater
		if p.tryConsume(lexer.EQUAL) {
			op = ast.CmpGreaterEqual
		}
		rhs := p.parseBaseExpression(scope, nil, true)
		return &ast.Comparison{Tok: tok, Op: op, Lhs: lhs, Rhs: rhs}
	case p.tryConsume(lexer.LESS):
		tok := p.current()
		p.checkLhsExists(lhs, tok)
		op := ast.CmpLess
		if p.tryConsume(lexer.EQUAL) {
			op = ast.CmpLessEqual
		} else if p.tryConsume(lexer.GREATER) {
			op = ast.CmpNotEquals
		}
		rhs := p.parseBaseExpression(scope, nil, true)
		return &ast.Comparison{Tok: tok, Op: op, Lhs: lhs, Rhs: rhs}
	case p.canConsume(lexer.BANG) && p.canConsumeAt(lexer.EQUAL, 2):
		p.consume(lexer.BANG)
		p.consume(lexer.EQUAL)
		tok := p.current()
		p.checkLhsExists(lhs, tok)
		rhs := p.parseBaseExpression(scope, nil, true)
		return &ast.Comparison{Tok: tok, Op: ast.CmpNotEquals, Lhs: lhs, Rhs: rhs}
	default:
		p.consume(lexer.EQUAL)
		tok := p.current()
		p.checkLhsExists(lhs, tok)
		rhs := p.parseBaseExpression(scope, nil, true)
		return &ast.Comparison{Tok: tok, Op: ast.CmpEquals, Lhs: lhs, Rhs: rhs}
	}
}
