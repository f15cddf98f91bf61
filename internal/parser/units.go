package parser

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/diag"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
)

// UnitCache holds the fully-parsed units of one compilation, keyed by
// absolute file path, so every unit parses exactly once however many uses
// clauses name it. The cache belongs to the driver; a load stack detects
// and rejects import cycles.
type UnitCache struct {
	mu        sync.Mutex
	units     map[string]*ast.Unit
	loadStack []string
}

// NewUnitCache creates an empty cache.
func NewUnitCache() *UnitCache {
	return &UnitCache{units: make(map[string]*ast.Unit)}
}

// Lookup returns the cached unit for an absolute path.
func (c *UnitCache) Lookup(path string) (*ast.Unit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	unit, ok := c.units[path]
	return unit, ok
}

// Store caches a parsed unit.
func (c *UnitCache) Store(path string, unit *ast.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[path] = unit
}

// Len returns the number of cached units.
func (c *UnitCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}

// enter pushes a path on the load stack, reporting false on a cycle.
func (c *UnitCache) enter(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, open := range c.loadStack {
		if open == path {
			return false
		}
	}
	c.loadStack = append(c.loadStack, path)
	return true
}

func (c *UnitCache) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadStack = c.loadStack[:len(c.loadStack)-1]
}

// resolveUnitPath finds the unit file: first relative to the importing
// file's directory, then in each configured RTL directory, in order.
func (p *Parser) resolveUnitPath(filename string) (string, bool) {
	candidates := append([]string{filepath.Dir(p.path)}, p.rtlDirs...)
	for _, dir := range candidates {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return candidate, true
			}
			return abs, true
		}
	}
	return "", false
}

// importUnit resolves a uses-clause entry, parsing the unit through the
// shared cache and merging its exported types and functions into the
// importer. Existing entries are never overwritten.
func (p *Parser) importUnit(tok lexer.Token, filename string, includeSystem bool) {
	path, found := p.resolveUnitPath(filename)
	if !found {
		p.errorf(tok, "%s is not a valid unit", filename)
		return
	}

	unit, cached := p.cache.Lookup(path)
	if !cached {
		if !p.cache.enter(path) {
			p.errorf(tok, "circular unit reference involving %s", filename)
			return
		}
		defer p.cache.leave()

		source, err := os.ReadFile(path)
		if err != nil {
			p.errorf(tok, "%s is not a valid unit", path)
			return
		}

		lex := lexer.New(path, string(lexer.Normalize(source)))
		tokens := lex.Tokenize()
		for _, lexErr := range lex.Errors() {
			p.diags.Add(diag.Diagnostic{
				Severity: diag.Error,
				Phase:    diag.PhaseLex,
				Token:    lexer.Token{Span: lexErr.Span},
				Message:  lexErr.Message,
			})
		}
		pre := macro.New(cloneSymbols(p.defines))
		filtered := pre.ParseFile(tokens)

		nested := New(p.rtlDirs, path, pre.Symbols(), filtered, p.cache)
		nested.includeSystem = includeSystem
		parsed, _ := nested.ParseFile()
		p.diags.Merge(nested.Diagnostics())
		if parsed == nil || p.hasError() {
			return
		}
		p.cache.Store(path, parsed)
		unit = parsed
	}

	p.types.Merge(unit.Types)

	for _, def := range unit.Functions {
		exists := false
		for _, known := range p.defs {
			if known.Signature() == def.Signature() {
				exists = true
				break
			}
		}
		if !exists {
			p.defs = append(p.defs, def)
			p.funcNames = append(p.funcNames, def.Name)
		}
	}
}

func cloneSymbols(symbols macro.Symbols) macro.Symbols {
	out := make(macro.Symbols, len(symbols))
	for name, value := range symbols {
		out[name] = value
	}
	return out
}
