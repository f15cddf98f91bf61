package parser

import (
	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// parseTypeDefinitions parses a "type" section: a run of "name = type ;"
// entries interned into the unit's registry.
func (p *Parser) parseTypeDefinitions(scope int) {
	for p.tryConsume(lexer.NAMEDTOKEN) {
		typeName := p.current().Literal
		p.consume(lexer.EQUAL)
		if t, ok := p.parseVariableType(scope, true, typeName); ok {
			p.types.Define(typeName, t)
			p.consume(lexer.SEMICOLON)
		}
	}
}

// parseVariableType parses a type denotation: a named type (optionally
// behind '^'), an array, a record, a file, an enum, or a value range. When
// the denotation cannot be recognised the parser backtracks to its entry
// position and returns false; includeErrors controls whether that failure
// is diagnosed.
func (p *Parser) parseVariableType(scope int, includeErrors bool, typeName string) (types.Type, bool) {
	start := p.pos
	isPointer := p.tryConsume(lexer.CARET)

	switch {
	case p.tryConsumeKeyword("array"):
		t, ok := p.parseArray(scope)
		return p.wrapPointer(t, isPointer), ok

	case p.tryConsumeKeyword("record"):
		var fields []types.Field
		for !p.canConsumeKeyword("end") && p.hasNext() {
			for _, def := range p.parseVariableDefinitions(scope) {
				fields = append(fields, types.Field{Name: def.Name, Type: def.Type})
			}
		}
		p.consumeKeyword("end")
		return p.wrapPointer(&types.Record{Name: typeName, Fields: fields}, isPointer), true

	case p.tryConsumeKeyword("file"):
		var element types.Type
		if p.tryConsumeKeyword("of") {
			p.consume(lexer.NAMEDTOKEN)
			element, _ = p.types.Lookup(p.current().Literal)
		}
		return p.wrapPointer(&types.File{Element: element}, isPointer), true

	case p.canConsume(lexer.NAMEDTOKEN) || p.canConsume(lexer.MINUS) ||
		(p.canConsume(lexer.NUMBER) && p.canConsumeAt(lexer.DOT, 2)):
		// "lo..hi" written with literal, named or negated constants
		if p.canConsumeAt(lexer.DOT, 2) || p.canConsumeAt(lexer.DOT, 3) {
			low, lowOK := p.constIntValue(p.parseRangeElement(scope))
			p.consume(lexer.DOT)
			p.consume(lexer.DOT)
			high, highOK := p.constIntValue(p.parseRangeElement(scope))
			if lowOK && highOK {
				return &types.ValueRange{Name: typeName, Low: low, High: high}, true
			}
			p.pos = start
			return nil, false
		}

		p.consume(lexer.NAMEDTOKEN)
		internalName := p.current().Literal
		internal, ok := p.types.Lookup(internalName)
		if !ok {
			if includeErrors {
				p.errorf(p.current(), "The type %s could not be determined!", p.current().Text())
			}
			p.pos = start
			return nil, false
		}
		return p.wrapPointer(internal, isPointer), true

	case p.tryConsume(lexer.LPAREN):
		if p.canConsume(lexer.NAMEDTOKEN) {
			return p.parseEnum(typeName), true
		}
		if p.canConsume(lexer.NUMBER) {
			low, _ := p.constIntValue(p.parseNumber())
			p.consume(lexer.DOT)
			p.consume(lexer.DOT)
			high, _ := p.constIntValue(p.parseNumber())
			p.consume(lexer.RPAREN)
			return &types.ValueRange{Name: typeName, Low: low, High: high}, true
		}
	}

	p.pos = start
	return nil, false
}

func (p *Parser) wrapPointer(t types.Type, isPointer bool) types.Type {
	if isPointer && t != nil {
		return &types.Pointer{Base: t}
	}
	return t
}

// parseEnum parses "(name [= int] {, name [= int]})" after the opening
// parenthesis. Unassigned tags continue counting from the last value.
func (p *Parser) parseEnum(typeName string) *types.Enum {
	enum := &types.Enum{Name: typeName}
	var nextValue int64
	for p.canConsume(lexer.NAMEDTOKEN) {
		p.next()
		name := p.current().Literal
		if p.tryConsume(lexer.EQUAL) {
			if value, ok := p.constIntValue(p.parseNumber()); ok {
				nextValue = value
			}
		}
		enum.Values = append(enum.Values, types.EnumValue{Name: name, Value: nextValue})
		p.tryConsume(lexer.COMMA)
		nextValue++
	}
	p.consume(lexer.RPAREN)
	return enum
}

// parseArray parses "[lo..hi] of element" or "of element" after the array
// keyword; a missing bounds clause makes it dynamic.
func (p *Parser) parseArray(scope int) (types.Type, bool) {
	isFixed := p.tryConsume(lexer.LBRACKET)
	var low, high int64
	if isFixed {
		lowNode := p.parseToken(scope)
		if value, ok := p.constIntValue(lowNode); ok {
			low = value
		}
		p.consume(lexer.DOT)
		p.consume(lexer.DOT)
		highNode := p.parseToken(scope)
		if value, ok := p.constIntValue(highNode); ok {
			high = value
		}
		p.consume(lexer.RBRACKET)
	}
	p.consumeKeyword("of")
	p.consume(lexer.NAMEDTOKEN)
	element, ok := p.types.Lookup(p.current().Literal)
	if !ok {
		p.errorf(p.current(), "The type %s could not be determined!", p.current().Text())
		return nil, false
	}

	if isFixed {
		return &types.FixedArray{Low: low, High: high, Element: element}, true
	}
	return &types.DynArray{Element: element}, true
}

// constIntValue evaluates a parse-time constant expression: an integer
// literal, a negation of one, a defined constant, or an enum tag.
func (p *Parser) constIntValue(expr ast.Expr) (int64, bool) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return e.Value, true
	case *ast.CharLiteral:
		return int64(e.Value), true
	case *ast.Minus:
		if value, ok := p.constIntValue(e.Operand); ok {
			return -value, true
		}
	case *ast.VariableAccess:
		if value := p.constValue(e.Name); value != nil {
			return p.constIntValue(value)
		}
	case *ast.EnumAccess:
		if value, ok := e.Type.ValueOf(e.Tok.Literal); ok {
			return value, true
		}
	}
	return 0, false
}
