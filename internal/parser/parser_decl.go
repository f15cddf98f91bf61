package parser

import (
	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// parseConstantDefinitions parses an optional "const" section into the
// surrounding declaration list.
func (p *Parser) parseConstantDefinitions(scope int, variables *[]ast.VariableDefinition) {
	if !p.tryConsumeKeyword("const") {
		return
	}
	for !p.canConsume(lexer.KEYWORD) && p.hasNext() {
		if def, ok := p.parseConstantDefinition(scope); ok {
			*variables = append(*variables, def)
			p.defineVar(def)
		}
	}
}

// parseConstantDefinition parses "name [: type] = expr ;".
func (p *Parser) parseConstantDefinition(scope int) (ast.VariableDefinition, bool) {
	p.consume(lexer.NAMEDTOKEN)
	nameTok := p.current()
	name := nameTok.Literal

	var varType types.Type
	typeName := ""
	if p.tryConsume(lexer.COLON) {
		p.consume(lexer.NAMEDTOKEN)
		typeName = p.current().Literal
		varType, _ = p.types.Lookup(typeName)
	}

	p.consume(lexer.EQUAL)
	value := p.parseToken(scope)
	if varType == nil && value != nil {
		varType = p.literalType(value)
	}

	p.consume(lexer.SEMICOLON)

	if p.isVarDefined(name, scope) {
		p.errorf(nameTok, "A variable or constant with the name %s was allready defined!", nameTok.Text())
		return ast.VariableDefinition{}, false
	}
	if varType == nil {
		p.errorf(nameTok, "A type %s of the variable %s could not be determined!", typeName, nameTok.Text())
		return ast.VariableDefinition{}, false
	}

	return ast.VariableDefinition{
		Name:     name,
		Tok:      nameTok,
		Type:     varType,
		Scope:    scope,
		Value:    value,
		Constant: true,
	}, true
}

// parseVariableDefinitions parses one "a, b, c : type [= init] ;" group.
func (p *Parser) parseVariableDefinitions(scope int) []ast.VariableDefinition {
	var names []lexer.Token
	for {
		p.consume(lexer.NAMEDTOKEN)
		names = append(names, p.current())
		if !p.tryConsume(lexer.COMMA) {
			break
		}
	}

	var varType types.Type
	typeName := ""
	if p.tryConsume(lexer.COLON) {
		isPointer := p.tryConsume(lexer.CARET)
		switch {
		case p.tryConsume(lexer.NAMEDTOKEN):
			typeName = p.current().Literal
			varType, _ = p.types.Lookup(typeName)
		case p.tryConsumeKeyword("file"):
			typeName = "file"
			var element types.Type
			if p.tryConsumeKeyword("of") {
				p.consume(lexer.NAMEDTOKEN)
				element, _ = p.types.Lookup(p.current().Literal)
			}
			varType = &types.File{Element: element}
		case p.tryConsumeKeyword("array"):
			typeName = "array"
			varType, _ = p.parseArray(scope)
		case p.tryConsumeKeyword("record"):
			typeName = "record"
			var fields []types.Field
			for !p.canConsumeKeyword("end") && p.hasNext() {
				for _, def := range p.parseVariableDefinitions(scope) {
					fields = append(fields, types.Field{Name: def.Name, Type: def.Type})
				}
			}
			p.consumeKeyword("end")
			varType = &types.Record{Fields: fields}
		}
		if isPointer && varType != nil {
			varType = &types.Pointer{Base: varType}
		}
	}

	var value ast.Expr
	if _, isArray := varType.(*types.FixedArray); isArray {
		if p.tryConsume(lexer.EQUAL) {
			value = p.parseArrayConstructor(scope)
		}
	} else if p.tryConsume(lexer.EQUAL) {
		value = p.parseToken(scope)
		if varType == nil && value != nil {
			varType = p.literalType(value)
		}
	}

	p.consume(lexer.SEMICOLON)

	var result []ast.VariableDefinition
	for _, nameTok := range names {
		if p.isVarDefined(nameTok.Literal, scope) {
			p.errorf(nameTok, "A variable or constant with the name %s was allready defined!", nameTok.Text())
			return nil
		}
		if varType == nil {
			p.errorf(nameTok, "A type %s of the variable %s could not be determined!", typeName, nameTok.Text())
			return nil
		}
		result = append(result, ast.VariableDefinition{
			Name:  nameTok.Literal,
			Tok:   nameTok,
			Type:  varType,
			Scope: scope,
			Value: value,
		})
	}
	return result
}

// parseArrayConstructor parses "[e1, e2, ...]".
func (p *Parser) parseArrayConstructor(scope int) ast.Expr {
	p.consume(lexer.LBRACKET)
	startTok := p.current()
	var elements []ast.Expr
	for !p.canConsume(lexer.RBRACKET) && p.hasNext() {
		if element := p.parseToken(scope); element != nil {
			elements = append(elements, element)
		}
		p.tryConsume(lexer.COMMA)
	}
	p.consume(lexer.RBRACKET)
	return &ast.ArrayInit{Tok: startTok, Elements: elements}
}

// literalType infers the type of a parse-time constant initializer.
func (p *Parser) literalType(expr ast.Expr) types.Type {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return &types.Integer{Bits: e.Bits}
	case *ast.RealLiteral:
		return &types.Real{Bits: 64}
	case *ast.BoolLiteral:
		return &types.Boolean{}
	case *ast.CharLiteral:
		return &types.Character{}
	case *ast.StringLiteral:
		return &types.String{}
	case *ast.NilLiteral:
		return &types.Pointer{}
	case *ast.Minus:
		return p.literalType(e.Operand)
	case *ast.EnumAccess:
		return e.Type
	case *ast.VariableAccess:
		for _, def := range p.vars {
			if def.Name == e.Name {
				return def.Type
			}
		}
	}
	return nil
}

// parseParameters parses the formal parameter list including the
// parentheses. Reference parameters are flagged with a leading "var".
func (p *Parser) parseParameters(scope int) []ast.Parameter {
	var params []ast.Parameter
	p.consume(lexer.LPAREN)
	for !p.tryConsume(lexer.RPAREN) {
		byReference := p.tryConsumeKeyword("var")

		var names []lexer.Token
		for {
			p.consume(lexer.NAMEDTOKEN)
			names = append(names, p.current())
			if !p.tryConsume(lexer.COMMA) {
				break
			}
		}

		p.consume(lexer.COLON)
		var paramType types.Type
		switch {
		case p.canConsume(lexer.NAMEDTOKEN):
			p.next()
			typeTok := p.current()
			t, ok := p.types.Lookup(typeTok.Literal)
			if !ok {
				p.errorf(typeTok, "A type %s of the variable %s could not be determined!",
					typeTok.Text(), names[0].Text())
				continue
			}
			paramType = t
		case p.tryConsumeKeyword("file"):
			paramType = &types.File{}
		default:
			p.errorf(p.peek(1), "For the parameter definition %s there is a type missing", names[0].Text())
			continue
		}

		for _, nameTok := range names {
			if p.isVarDefined(nameTok.Literal, scope) {
				p.errorf(nameTok, "A variable with the name %s was allready defined!", nameTok.Text())
				continue
			}
			params = append(params, ast.Parameter{
				Name:        nameTok.Literal,
				Tok:         nameTok,
				Type:        paramType,
				ByReference: byReference,
			})
		}
		p.tryConsume(lexer.SEMICOLON)
	}
	return params
}

// parseFunctionHeader parses the shared head of declarations and
// definitions: name, parameters, return type, and the trailing
// external/inline clauses.
type functionHeader struct {
	tok          lexer.Token
	name         string
	externalName string
	libName      string
	params       []ast.Parameter
	returnType   types.Type
	attributes   []ast.Attribute
	external     bool
}

func (p *Parser) parseFunctionHeader(scope int, isFunction bool) functionHeader {
	p.consume(lexer.NAMEDTOKEN)
	h := functionHeader{tok: p.current(), name: p.current().Literal}
	h.externalName = h.name
	p.funcNames = append(p.funcNames, h.name)

	h.params = p.parseParameters(scope)

	if isFunction {
		if !p.tryConsume(lexer.COLON) {
			p.errorf(p.current(), "the return type for the function \"%s\" is missing.", h.tok.Text())
			panic(abortParse{})
		}
		p.consume(lexer.NAMEDTOKEN)
		typeName := p.current().Literal
		t, ok := p.types.Lookup(typeName)
		if !ok {
			p.errorf(p.current(), "A return type %s of function could not be determined!", p.current().Text())
		} else {
			h.returnType = t
		}
	}
	p.consume(lexer.SEMICOLON)

	switch {
	case p.tryConsumeKeyword("external"):
		h.external = true
		if p.tryConsume(lexer.STRING) || p.tryConsume(lexer.CHAR) {
			h.libName = p.current().Literal
		}
		if p.tryConsumeKeyword("name") {
			p.consume(lexer.STRING)
			h.externalName = p.current().Literal
		}
		p.tryConsume(lexer.SEMICOLON)
	case p.tryConsumeKeyword("inline"):
		h.attributes = append(h.attributes, ast.AttrInline)
		p.consume(lexer.SEMICOLON)
	}
	return h
}

// parseFunctionDeclaration parses an interface-section subprogram head with
// no body.
func (p *Parser) parseFunctionDeclaration(scope int, isFunction bool) *ast.FunctionDefinition {
	h := p.parseFunctionHeader(scope, isFunction)
	return &ast.FunctionDefinition{
		Tok:          h.tok,
		Name:         h.name,
		ExternalName: h.externalName,
		LibName:      h.libName,
		Params:       h.params,
		ReturnType:   h.returnType,
		Attributes:   h.attributes,
	}
}

// parseFunctionDefinition parses a subprogram with its body (or an
// external-only definition).
func (p *Parser) parseFunctionDefinition(scope int, isFunction bool) *ast.FunctionDefinition {
	h := p.parseFunctionHeader(scope, isFunction)

	// parameters and the result slot are visible while the body parses
	for _, param := range h.params {
		p.defineVar(ast.VariableDefinition{
			Name:  param.Name,
			Tok:   param.Tok,
			Type:  param.Type,
			Scope: scope,
		})
	}
	if isFunction && h.returnType != nil {
		p.defineVar(ast.VariableDefinition{Name: h.name, Tok: h.tok, Type: h.returnType, Scope: scope})
		p.defineVar(ast.VariableDefinition{Name: "result", Tok: h.tok, Type: h.returnType, Scope: scope})
	}

	def := &ast.FunctionDefinition{
		Tok:          h.tok,
		Name:         h.name,
		ExternalName: h.externalName,
		LibName:      h.libName,
		Params:       h.params,
		ReturnType:   h.returnType,
		Attributes:   h.attributes,
	}

	if !h.external {
		body := p.parseBlock(scope + 1)
		p.consume(lexer.SEMICOLON)
		if isFunction {
			body.Variables = append(body.Variables, ast.VariableDefinition{
				Name:  h.name,
				Tok:   h.tok,
				Type:  h.returnType,
				Alias: "result",
			})
		}
		def.Body = body

		for _, local := range body.Variables {
			p.removeVar(local.Name)
			if local.Alias != "" {
				p.removeVar(local.Alias)
			}
		}
	}

	for _, param := range h.params {
		p.removeVar(param.Name)
	}
	if isFunction {
		p.removeVar(h.name)
		p.removeVar("result")
	}
	return def
}
