// Package macro implements the conditional-compilation pass that runs
// between the lexer and the parser. It interprets {$define}/{$ifdef}-style
// directives against a symbol table and drops every token inside an
// inactive branch.
package macro

import (
	"strings"

	"github.com/wirthx-compiler/wirthx/internal/lexer"
)

// Symbols is the macro symbol table: defined names mapped to true. The
// compiler seeds it with the platform names (WINDOWS, UNIX, the
// architecture) before the pass runs; directives update it in file order.
type Symbols map[string]bool

// Error is a malformed or unknown directive.
type Error struct {
	Message string
	Span    lexer.Span
}

func (e Error) Error() string { return e.Span.Position() + ": " + e.Message }

// Parser filters one token stream.
type Parser struct {
	symbols Symbols
	errors  []Error
}

// New creates a pre-processor over the given symbol table. The table is
// mutated as define/undef directives are seen.
func New(symbols Symbols) *Parser {
	if symbols == nil {
		symbols = Symbols{}
	}
	return &Parser{symbols: symbols}
}

// Symbols returns the symbol table with every define/undef applied.
func (p *Parser) Symbols() Symbols { return p.symbols }

// Errors returns the directive errors collected by ParseFile.
func (p *Parser) Errors() []Error { return p.errors }

// branch is one open conditional: taken reports whether the active arm has
// matched yet, live whether tokens currently pass through.
type branch struct {
	taken bool
	live  bool
}

// ParseFile evaluates directives and returns the tokens of active branches,
// in order. Non-directive tokens pass through untouched.
func (p *Parser) ParseFile(tokens []lexer.Token) []lexer.Token {
	var out []lexer.Token
	var stack []branch

	active := func() bool {
		for _, b := range stack {
			if !b.live {
				return false
			}
		}
		return true
	}

	for _, tok := range tokens {
		if tok.Type != lexer.DIRECTIVE {
			if active() || tok.Type == lexer.EOF {
				out = append(out, tok)
			}
			continue
		}

		name, arg := splitDirective(tok.Literal)
		switch name {
		case "define":
			if active() {
				p.symbols[arg] = true
			}
		case "undef":
			if active() {
				delete(p.symbols, arg)
			}
		case "ifdef":
			cond := active() && p.symbols[arg]
			stack = append(stack, branch{taken: cond, live: cond})
		case "ifndef":
			cond := active() && !p.symbols[arg]
			stack = append(stack, branch{taken: cond, live: cond})
		case "else":
			if len(stack) == 0 {
				p.addError(tok, "{$else} without a matching {$ifdef}")
				continue
			}
			top := &stack[len(stack)-1]
			top.live = !top.taken
			top.taken = true
		case "endif":
			if len(stack) == 0 {
				p.addError(tok, "{$endif} without a matching {$ifdef}")
				continue
			}
			stack = stack[:len(stack)-1]
		default:
			p.addError(tok, "unknown compiler directive {$"+name+"}")
		}
	}

	for range stack {
		p.errors = append(p.errors, Error{Message: "missing {$endif}", Span: tokens[len(tokens)-1].Span})
	}
	return out
}

// splitDirective takes the lower-cased "{$name arg}" text of a directive
// token apart.
func splitDirective(text string) (name, arg string) {
	text = strings.TrimSuffix(strings.TrimPrefix(text, "{$"), "}")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.ToLower(fields[1])
}

func (p *Parser) addError(tok lexer.Token, message string) {
	p.errors = append(p.errors, Error{Message: message, Span: tok.Span})
}
