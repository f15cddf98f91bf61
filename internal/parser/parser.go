// Package parser turns a token stream into a typed AST. It is a hand
// written recursive-descent parser with two tokens of lookahead; imported
// units are resolved recursively through a per-compilation unit cache.
package parser

import (
	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/diag"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// Parser parses one source file.
type Parser struct {
	rtlDirs []string
	path    string
	tokens  []lexer.Token
	pos     int

	diags     *diag.List
	types     *types.Registry
	vars      []ast.VariableDefinition
	funcNames []string
	decls     []*ast.FunctionDefinition
	defs      []*ast.FunctionDefinition
	defines   macro.Symbols
	cache     *UnitCache

	includeSystem bool
}

// New creates a parser for the given pre-processed token stream. rtlDirs
// are searched for imported units after the file's own directory; the cache
// is shared across every parser of one compilation.
func New(rtlDirs []string, path string, defines macro.Symbols, tokens []lexer.Token, cache *UnitCache) *Parser {
	if cache == nil {
		cache = NewUnitCache()
	}
	return &Parser{
		rtlDirs:       rtlDirs,
		path:          path,
		tokens:        tokens,
		diags:         &diag.List{},
		types:         types.NewRegistry(),
		defines:       defines,
		cache:         cache,
		includeSystem: true,
	}
}

// Diagnostics returns the diagnostics collected so far, imported units
// included.
func (p *Parser) Diagnostics() *diag.List { return p.diags }

// abortParse unwinds the current file's parse on a fatal error; ParseFile
// recovers it. The diagnostics already carry the failure.
type abortParse struct{}

// ParseFile parses a whole file as a program or a library unit.
func (p *Parser) ParseFile() (unit *ast.Unit, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(abortParse); !ok {
				panic(r)
			}
			unit = nil
			err = firstError(p.diags)
		}
	}()

	switch {
	case p.current().Is("program"):
		return p.parseProgram()
	case p.current().Is("unit"):
		return p.parseUnit()
	}

	p.errorf(p.current(), "expected 'program' or 'unit' but found %s!", p.current().Type)
	panic(abortParse{})
}

func firstError(l *diag.List) error {
	for _, d := range l.All() {
		if d.Severity == diag.Error {
			return d
		}
	}
	return nil
}

// ---- token helpers ----

func (p *Parser) current() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) next() lexer.Token {
	if p.hasNext() {
		p.pos++
	}
	return p.current()
}

func (p *Parser) hasNext() bool { return p.pos+1 < len(p.tokens) }

func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

// canConsume reports whether the next token has the given type.
func (p *Parser) canConsume(t lexer.TokenType) bool { return p.canConsumeAt(t, 1) }

// canConsumeAt looks n tokens ahead.
func (p *Parser) canConsumeAt(t lexer.TokenType, n int) bool {
	return p.pos+n < len(p.tokens) && p.tokens[p.pos+n].Type == t
}

// tryConsume advances over the next token when it has the given type.
func (p *Parser) tryConsume(t lexer.TokenType) bool {
	if p.canConsume(t) {
		p.pos++
		return true
	}
	return false
}

// consume requires the next token to have the given type; a mismatch is a
// fatal parse error.
func (p *Parser) consume(t lexer.TokenType) {
	if p.tryConsume(t) {
		return
	}
	p.errorf(p.peek(1), "expected token '%s' but found %s!", t, p.peek(1).Type)
	panic(abortParse{})
}

func (p *Parser) canConsumeKeyword(word string) bool {
	return p.canConsume(lexer.KEYWORD) && p.peek(1).Literal == word
}

func (p *Parser) tryConsumeKeyword(word string) bool {
	if p.canConsumeKeyword(word) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) consumeKeyword(word string) {
	if p.tryConsumeKeyword(word) {
		return
	}
	p.errorf(p.peek(1), "expected keyword '%s' but found %s!", word, p.peek(1).Text())
	panic(abortParse{})
}

// ---- diagnostics ----

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	p.diags.Addf(diag.PhaseParse, diag.Error, tok, format, args...)
}

func (p *Parser) hasError() bool { return p.diags.HasErrors() }

// ---- known variables ----

func (p *Parser) defineVar(def ast.VariableDefinition) {
	p.vars = append(p.vars, def)
}

func (p *Parser) isVarDefined(name string, scope int) bool {
	for _, def := range p.vars {
		if def.Name == name && def.Scope <= scope {
			return true
		}
	}
	return false
}

func (p *Parser) isConstDefined(name string, scope int) bool {
	for _, def := range p.vars {
		if def.Name == name && def.Scope <= scope && def.Constant {
			return true
		}
	}
	return false
}

func (p *Parser) constValue(name string) ast.Expr {
	for _, def := range p.vars {
		if def.Name == name && def.Constant {
			return def.Value
		}
	}
	return nil
}

// removeVar drops the first known definition with the given name; used to
// unwind a function's locals and parameters after its body parsed.
func (p *Parser) removeVar(name string) {
	for i, def := range p.vars {
		if def.Name == name {
			p.vars = append(p.vars[:i], p.vars[i+1:]...)
			return
		}
	}
}

func (p *Parser) isFunctionDeclared(name string) bool {
	for _, f := range p.defs {
		if f.Name == name {
			return true
		}
	}
	for _, known := range p.funcNames {
		if known == name {
			return true
		}
	}
	return false
}

// ---- units and programs ----

// parseProgram parses "program name [(params)] ; decls main-block ."
func (p *Parser) parseProgram() (*ast.Unit, error) {
	p.consume(lexer.NAMEDTOKEN)
	nameTok := p.current()
	unitName := p.current().Literal

	var programParams []lexer.Token
	if p.tryConsume(lexer.LPAREN) {
		for p.canConsume(lexer.NAMEDTOKEN) {
			p.consume(lexer.NAMEDTOKEN)
			paramTok := p.current()
			programParams = append(programParams, paramTok)
			p.defineVar(ast.VariableDefinition{
				Name:    paramTok.Literal,
				Tok:     paramTok,
				Type:    &types.File{},
				Scope:   0,
				Builtin: stdHandleFor(len(programParams) - 1),
			})
			p.tryConsume(lexer.COMMA)
		}
		p.consume(lexer.RPAREN)
	}
	p.consume(lexer.SEMICOLON)

	// every program implicitly imports the system unit
	if unitName != "system" {
		p.importUnit(p.tokens[0], "system.pas", false)
	}

	var block *ast.Block
	var variables []ast.VariableDefinition
	const scope = 0
	for p.hasNext() {
		switch {
		case p.tryConsumeKeyword("type"):
			p.parseTypeDefinitions(scope)
		case p.canConsumeKeyword("const"):
			p.parseConstantDefinitions(scope, &variables)
		case p.tryConsumeKeyword("var"):
			for !p.canConsume(lexer.KEYWORD) && p.hasNext() {
				defs := p.parseVariableDefinitions(scope)
				if len(defs) == 0 {
					break
				}
				for _, def := range defs {
					variables = append(variables, def)
					p.defineVar(def)
				}
			}
		case p.tryConsumeKeyword("uses"):
			p.parseUsesClause()
		case p.tryConsumeKeyword("procedure"):
			p.defs = append(p.defs, p.parseFunctionDefinition(scope, false))
		case p.tryConsumeKeyword("function"):
			p.defs = append(p.defs, p.parseFunctionDefinition(scope, true))
		case p.canConsumeKeyword("begin"):
			block = p.parseBlock(scope)
			p.consume(lexer.DOT)
		case p.tryConsume(lexer.EOF):
			goto done
		default:
			p.errorf(p.peek(1), "unexpected token found %s!", p.peek(1).Type)
			goto done
		}
	}
done:
	if p.hasError() {
		panic(abortParse{})
	}
	if block != nil {
		block.Variables = append(variables, block.Variables...)
	}

	return &ast.Unit{
		Tok:           nameTok,
		Kind:          ast.UnitProgram,
		Name:          unitName,
		ProgramParams: programParams,
		Functions:     p.defs,
		Types:         p.types,
		Block:         block,
	}, nil
}

// parseUnit parses "unit name ; interface ... implementation ...
// [initialization ...] end ."
func (p *Parser) parseUnit() (*ast.Unit, error) {
	p.consume(lexer.NAMEDTOKEN)
	nameTok := p.current()
	unitName := p.current().Literal
	p.consume(lexer.SEMICOLON)

	var initBlock *ast.Block
	for p.hasNext() {
		switch {
		case p.tryConsumeKeyword("interface"):
			p.parseInterfaceSection()
		case p.tryConsumeKeyword("implementation"):
			p.parseImplementationSection()
		case p.tryConsumeKeyword("initialization"):
			initBlock = p.parseInitialization()
		case p.tryConsumeKeyword("end"):
			p.consume(lexer.DOT)
			p.consume(lexer.EOF)
			goto done
		case p.tryConsume(lexer.EOF):
			goto done
		default:
			p.errorf(p.peek(1), "unexpected token found %s!", p.peek(1).Type)
			goto done
		}
	}
done:
	if p.hasError() {
		panic(abortParse{})
	}

	// interface declarations without a body keep their external surface
	for _, declaration := range p.decls {
		found := false
		for _, def := range p.defs {
			if def.Signature() == declaration.Signature() {
				found = true
				break
			}
		}
		if !found {
			p.defs = append(p.defs, declaration)
		}
	}

	return &ast.Unit{
		Tok:       nameTok,
		Kind:      ast.UnitLibrary,
		Name:      unitName,
		Functions: p.defs,
		Types:     p.types,
		Init:      initBlock,
	}, nil
}

func (p *Parser) parseInterfaceSection() {
	if p.tryConsumeKeyword("uses") {
		p.parseUsesClause()
	}

	for !p.canConsumeKeyword("implementation") && p.hasNext() {
		switch {
		case p.tryConsumeKeyword("type"):
			p.parseTypeDefinitions(0)
		case p.tryConsumeKeyword("procedure"):
			p.decls = append(p.decls, p.parseFunctionDeclaration(0, false))
		case p.tryConsumeKeyword("function"):
			p.decls = append(p.decls, p.parseFunctionDeclaration(0, true))
		default:
			p.errorf(p.peek(1), "unexpected token found %s!", p.peek(1).Type)
			return
		}
	}
}

func (p *Parser) parseImplementationSection() {
	if p.tryConsumeKeyword("uses") {
		p.parseUsesClause()
	}

	for !p.canConsumeKeyword("end") && !p.canConsumeKeyword("initialization") && p.hasNext() {
		switch {
		case p.tryConsumeKeyword("type"):
			p.parseTypeDefinitions(0)
		case p.tryConsumeKeyword("procedure"):
			p.defs = append(p.defs, p.parseFunctionDefinition(0, false))
		case p.tryConsumeKeyword("function"):
			p.defs = append(p.defs, p.parseFunctionDefinition(0, true))
		default:
			p.errorf(p.peek(1), "unexpected token found %s!", p.peek(1).Type)
			return
		}
	}
}

// parseInitialization reads the statement list between "initialization"
// and the unit's final "end".
func (p *Parser) parseInitialization() *ast.Block {
	tok := p.current()
	var statements []ast.Stmt
	for !p.canConsumeKeyword("end") && p.hasNext() {
		if stmt := p.parseStatement(0, true); stmt != nil {
			statements = append(statements, stmt)
		} else if p.hasError() {
			panic(abortParse{})
		}
	}
	return &ast.Block{Tok: tok, Statements: statements}
}

func (p *Parser) parseUsesClause() {
	for {
		p.consume(lexer.NAMEDTOKEN)
		filename := p.current().Literal + ".pas"
		p.importUnit(p.current(), filename, p.includeSystem)
		if !p.tryConsume(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.SEMICOLON)
}

// stdHandleFor maps a program parameter position to the standard file
// handle it aliases: input, output, error, in declaration order.
func stdHandleFor(index int) string {
	switch index {
	case 0:
		return "stdin"
	case 1:
		return "stdout"
	default:
		return "stderr"
	}
}
