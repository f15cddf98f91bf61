// Package diag is the diagnostic model shared by every compiler phase:
// severities, accumulation, and rendering for the terminal and for the
// JSON-RPC boundary.
package diag

import (
	"fmt"

	"github.com/wirthx-compiler/wirthx/internal/lexer"
)

// Severity ranks a diagnostic.
type Severity int

const (
	// Error prevents code generation.
	Error Severity = iota
	// Warn flags suspicious but accepted code.
	Warn
	// Hint is advisory.
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warn:
		return "warning"
	default:
		return "hint"
	}
}

// Phase names the compiler phase that raised a diagnostic.
type Phase string

const (
	PhaseLex       Phase = "lexer"
	PhaseMacro     Phase = "macro"
	PhaseParse     Phase = "parser"
	PhaseTypecheck Phase = "typecheck"
	PhaseCodegen   Phase = "codegen"
	PhaseLink      Phase = "link"
)

// Diagnostic is one message anchored to a source token.
type Diagnostic struct {
	Severity Severity
	Phase    Phase
	Token    lexer.Token
	Message  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Token.Span.Position(), d.Severity, d.Message)
}

// List accumulates diagnostics in the order phases reach the offending
// constructs.
type List struct {
	diags []Diagnostic
}

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) { l.diags = append(l.diags, d) }

// Addf builds and appends a diagnostic.
func (l *List) Addf(phase Phase, sev Severity, tok lexer.Token, format string, args ...any) {
	l.Add(Diagnostic{Severity: sev, Phase: phase, Token: tok, Message: fmt.Sprintf(format, args...)})
}

// All returns the collected diagnostics.
func (l *List) All() []Diagnostic { return l.diags }

// Len returns the number of diagnostics.
func (l *List) Len() int { return len(l.diags) }

// HasErrors reports whether any collected diagnostic is fatal. Phases check
// this at entry and skip themselves when an earlier phase failed.
func (l *List) HasErrors() bool {
	for _, d := range l.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Merge appends every diagnostic of other, preserving order. Used when an
// imported unit's parser hands its messages to the importer.
func (l *List) Merge(other *List) {
	l.diags = append(l.diags, other.diags...)
}
