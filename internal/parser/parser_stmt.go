package parser

import (
	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
)

// parseBlock parses the declarations preceding a begin..end span and the
// statements inside it.
func (p *Parser) parseBlock(scope int) *ast.Block {
	var variables []ast.VariableDefinition

	p.parseConstantDefinitions(scope, &variables)

	if p.tryConsumeKeyword("var") {
		for !p.canConsumeKeyword("begin") && p.hasNext() {
			defs := p.parseVariableDefinitions(scope)
			if len(defs) == 0 {
				break
			}
			for _, def := range defs {
				variables = append(variables, def)
				p.defineVar(def)
			}
		}
	}

	p.consumeKeyword("begin")
	beginTok := p.current()
	var statements []ast.Stmt
	for !p.tryConsumeKeyword("end") {
		if stmt := p.parseStatement(scope, true); stmt != nil {
			statements = append(statements, stmt)
		} else {
			panic(abortParse{})
		}
	}

	return &ast.Block{Tok: beginTok, Variables: variables, Statements: statements}
}

// parseStatement parses one statement; withSemicolon controls whether the
// trailing semicolon is required (single-statement branches leave it to
// their parent).
func (p *Parser) parseStatement(scope int, withSemicolon bool) ast.Stmt {
	var result ast.Stmt
	switch {
	case p.canConsume(lexer.NAMEDTOKEN):
		if p.canConsumeAt(lexer.LPAREN, 2) {
			call, _ := p.parseFunctionCall(scope).(*ast.CallExpr)
			result = call
		} else {
			result = p.parseVariableAssignment(scope)
		}
		if withSemicolon {
			p.consume(lexer.SEMICOLON)
		}
	case p.canConsume(lexer.KEYWORD):
		result = p.parseKeyword(scope, withSemicolon)
	}
	if result == nil {
		p.errorf(p.peek(1), "unexpected token found %s!", p.peek(1).Type)
	}
	return result
}

// parseVariableAssignment parses the three assignment forms: plain (with
// optional dereference), field, and array element.
func (p *Parser) parseVariableAssignment(scope int) ast.Stmt {
	p.consume(lexer.NAMEDTOKEN)
	nameTok := p.current()
	name := nameTok.Literal
	dereference := p.tryConsume(lexer.CARET)

	switch {
	case p.canConsume(lexer.COLON):
		p.consume(lexer.COLON)
		if !p.tryConsume(lexer.EQUAL) {
			p.errorf(nameTok, "missing assignment for variable!")
			return nil
		}
		if !p.isVarDefined(name, scope) {
			p.errorf(nameTok, "The variable %s is not yet declared!", nameTok.Text())
		}
		value := p.parseExpression(scope)
		return &ast.Assignment{Tok: nameTok, Name: name, Dereference: dereference, Value: value}

	case p.canConsume(lexer.DOT):
		p.consume(lexer.DOT)
		p.consume(lexer.NAMEDTOKEN)
		field := p.current()
		p.consume(lexer.COLON)
		if !p.tryConsume(lexer.EQUAL) {
			p.errorf(nameTok, "missing assignment for variable!")
			return nil
		}
		if !p.isVarDefined(name, scope) {
			p.errorf(nameTok, "The variable %s is not yet declared!", nameTok.Text())
			return nil
		}
		value := p.parseExpression(scope)
		return &ast.FieldAssignment{Tok: nameTok, Field: field, Value: value}

	default:
		p.consume(lexer.LBRACKET)
		index := p.parseExpression(scope)
		p.consume(lexer.RBRACKET)
		p.consume(lexer.COLON)
		if !p.tryConsume(lexer.EQUAL) {
			p.errorf(nameTok, "missing assignment for variable!")
			return nil
		}
		if !p.isVarDefined(name, scope) {
			p.errorf(nameTok, "The variable %s is not yet declared!", nameTok.Text())
			return nil
		}
		value := p.parseExpression(scope)
		return &ast.ArrayAssignment{Tok: nameTok, Index: index, Value: value}
	}
}

// parseKeyword parses the keyword-led statements.
func (p *Parser) parseKeyword(scope int, withSemicolon bool) ast.Stmt {
	switch {
	case p.tryConsumeKeyword("if"):
		return p.parseIf(scope, withSemicolon)
	case p.tryConsumeKeyword("for"):
		return p.parseFor(scope, withSemicolon)
	case p.tryConsumeKeyword("while"):
		return p.parseWhile(scope, withSemicolon)
	case p.tryConsumeKeyword("repeat"):
		return p.parseRepeat(scope, withSemicolon)
	case p.tryConsumeKeyword("break"):
		tok := p.current()
		if withSemicolon {
			p.tryConsume(lexer.SEMICOLON)
		}
		return &ast.BreakStmt{Tok: tok}
	case p.tryConsumeKeyword("case"):
		return p.parseCase(scope, withSemicolon)
	case p.canConsumeKeyword("begin"):
		return p.parseBlock(scope + 1)
	}

	p.errorf(p.peek(1), "unexpected keyword found %s!", p.peek(1).Text())
	return nil
}

// parseBranchBody parses either a nested block or a single statement as a
// branch body.
func (p *Parser) parseBranchBody(scope int, withSemicolon bool) []ast.Stmt {
	if p.canConsumeKeyword("begin") {
		block := p.parseBlock(scope + 1)
		if withSemicolon {
			p.tryConsume(lexer.SEMICOLON)
		}
		return []ast.Stmt{block}
	}
	if stmt := p.parseStatement(scope, withSemicolon); stmt != nil {
		return []ast.Stmt{stmt}
	}
	return nil
}

func (p *Parser) parseIf(scope int, withSemicolon bool) ast.Stmt {
	ifTok := p.current()
	condition := p.parseExpression(scope)
	p.consumeKeyword("then")

	blockIf := p.canConsumeKeyword("begin")
	var thenStmts, elseStmts []ast.Stmt
	if blockIf {
		thenStmts = []ast.Stmt{p.parseBlock(scope + 1)}
		p.tryConsume(lexer.SEMICOLON)
	} else {
		thenStmts = p.parseBranchBody(scope, false)
	}

	if p.tryConsumeKeyword("else") {
		if p.canConsumeKeyword("begin") {
			elseStmts = []ast.Stmt{p.parseBlock(scope + 1)}
			p.tryConsume(lexer.SEMICOLON)
		} else {
			elseStmts = p.parseBranchBody(scope, true)
		}
	} else if !blockIf && withSemicolon {
		p.consume(lexer.SEMICOLON)
	}

	return &ast.IfStmt{Tok: ifTok, Cond: condition, Then: thenStmts, Else: elseStmts}
}

func (p *Parser) parseFor(scope int, withSemicolon bool) ast.Stmt {
	forTok := p.current()
	p.consume(lexer.NAMEDTOKEN)
	loopVar := p.current()

	if p.tryConsumeKeyword("in") {
		source := p.parseBaseExpression(scope+1, nil, true)
		p.consumeKeyword("do")
		body := p.parseLoopBody(scope, withSemicolon)
		return &ast.ForEachStmt{Tok: forTok, Variable: loopVar, Source: source, Body: body}
	}

	p.consume(lexer.COLON)
	p.consume(lexer.EQUAL)
	start := p.parseBaseExpression(scope+1, nil, true)

	step := 0
	switch {
	case p.tryConsumeKeyword("to"):
		step = 1
	case p.tryConsumeKeyword("downto"):
		step = -1
	default:
		p.errorf(p.peek(1), "expected keyword 'to' or 'downto' but found %s!", p.peek(1).Text())
		panic(abortParse{})
	}
	end := p.parseBaseExpression(scope+1, nil, true)

	p.consumeKeyword("do")
	body := p.parseLoopBody(scope, withSemicolon)
	return &ast.ForStmt{Tok: forTok, Variable: loopVar, Start: start, End: end, Step: step, Body: body}
}

func (p *Parser) parseLoopBody(scope int, withSemicolon bool) []ast.Stmt {
	if p.canConsumeKeyword("begin") {
		block := p.parseBlock(scope + 1)
		if withSemicolon {
			p.tryConsume(lexer.SEMICOLON)
		}
		return []ast.Stmt{block}
	}
	if stmt := p.parseStatement(scope, withSemicolon); stmt != nil {
		return []ast.Stmt{stmt}
	}
	return nil
}

func (p *Parser) parseWhile(scope int, withSemicolon bool) ast.Stmt {
	whileTok := p.current()
	condition := p.parseExpression(scope + 1)
	p.consumeKeyword("do")

	var body []ast.Stmt
	if !p.canConsumeKeyword("begin") {
		if stmt := p.parseStatement(scope, true); stmt != nil {
			body = append(body, stmt)
		}
	} else {
		body = append(body, p.parseBlock(scope+1))
		if withSemicolon {
			p.consume(lexer.SEMICOLON)
		}
	}
	return &ast.WhileStmt{Tok: whileTok, Cond: condition, Body: body}
}

func (p *Parser) parseRepeat(scope int, withSemicolon bool) ast.Stmt {
	repeatTok := p.current()

	var body []ast.Stmt
	if !p.canConsumeKeyword("begin") {
		for !p.canConsumeKeyword("until") && p.hasNext() {
			if stmt := p.parseStatement(scope, true); stmt != nil {
				body = append(body, stmt)
			} else {
				break
			}
		}
	} else {
		body = append(body, p.parseBlock(scope+1))
		p.tryConsume(lexer.SEMICOLON)
	}

	p.consumeKeyword("until")
	condition := p.parseExpression(scope + 1)
	if withSemicolon {
		p.tryConsume(lexer.SEMICOLON)
	}
	return &ast.RepeatStmt{Tok: repeatTok, Cond: condition, Body: body}
}

func (p *Parser) parseCase(scope int, withSemicolon bool) ast.Stmt {
	caseTok := p.current()
	selector := p.parseToken(scope)
	if selector == nil {
		p.errorf(caseTok, "expected a variable name but found %s!", caseTok.Text())
	}
	p.consumeKeyword("of")

	var arms []ast.CaseArm
	for {
		armSelector := p.parseRangeElementOrType(scope)
		if armSelector == nil {
			break
		}
		p.consume(lexer.COLON)
		body := p.parseStatement(scope, true)
		arms = append(arms, ast.CaseArm{Selector: armSelector, Body: body})
	}

	var elseStmts []ast.Stmt
	if p.tryConsumeKeyword("else") {
		if !p.canConsumeKeyword("begin") {
			if stmt := p.parseStatement(scope, true); stmt != nil {
				elseStmts = append(elseStmts, stmt)
			}
			p.consumeKeyword("end")
		} else {
			// the else block's own end closes the case statement
			elseStmts = append(elseStmts, p.parseBlock(scope+1))
		}
	} else {
		p.consumeKeyword("end")
	}
	if withSemicolon {
		p.tryConsume(lexer.SEMICOLON)
	}

	return &ast.CaseStmt{Tok: caseTok, Selector: selector, Arms: arms, Else: elseStmts}
}
