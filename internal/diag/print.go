package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Print renders every diagnostic as a file:row:col header, the offending
// source line, and a caret under the span.
func (l *List) Print(w io.Writer, withColor bool) {
	prev := color.NoColor
	if !withColor {
		color.NoColor = true
	}
	defer func() { color.NoColor = prev }()

	for _, d := range l.diags {
		printDiagnostic(w, d)
	}
}

func printDiagnostic(w io.Writer, d Diagnostic) {
	label := red("error")
	switch d.Severity {
	case Warn:
		label = yellow("warning")
	case Hint:
		label = cyan("hint")
	}

	span := d.Token.Span
	fmt.Fprintf(w, "%s: %s: %s\n", bold(span.Position()), label, d.Message)
	if span.File == nil {
		return
	}

	line := span.SourceLine()
	fmt.Fprintf(w, "  %s\n", line)

	caret := strings.Builder{}
	for i := 0; i < span.Col()-1; i++ {
		if i < len(line) && line[i] == '\t' {
			caret.WriteByte('\t')
		} else {
			caret.WriteByte(' ')
		}
	}
	width := span.Length
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(w, "  %s%s\n", caret.String(), red(strings.Repeat("^", width)))
}
