// Package driver orchestrates the compilation phases: lex, macro
// pre-process, parse (with unit resolution), typecheck, IR generation,
// object emission and linking. Each phase is skipped once an earlier one
// reported a fatal diagnostic.
package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/wirthx-compiler/wirthx/internal/codegen"
	"github.com/wirthx-compiler/wirthx/internal/diag"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
	"github.com/wirthx-compiler/wirthx/internal/parser"
	"github.com/wirthx-compiler/wirthx/internal/sema"
)

// Options configure one compiler invocation.
type Options struct {
	RTLDirectories  []string
	OutputDirectory string
	Mode            codegen.BuildMode
	PrintLLVMIR     bool
	RunProgram      bool
	ColorOutput     bool
	Defines         []string
}

// Result reports what a compilation produced.
type Result struct {
	ObjectFile string
	Executable string
	// ExitCode is the compiled program's exit code when RunProgram is set.
	ExitCode int
}

// Compile drives the whole pipeline for one source file. Diagnostics
// render to errorStream; the executed program's output goes to
// outputStream.
func Compile(opts Options, inputPath string, errorStream, outputStream io.Writer) (*Result, error) {
	source, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file '%s': %w", inputPath, err)
	}

	lex := lexer.New(inputPath, string(lexer.Normalize(source)))
	tokens := lex.Tokenize()

	diags := &diag.List{}
	for _, lexErr := range lex.Errors() {
		diags.Add(diag.Diagnostic{
			Severity: diag.Error,
			Phase:    diag.PhaseLex,
			Token:    lexer.Token{Span: lexErr.Span},
			Message:  lexErr.Message,
		})
	}

	pre := macro.New(platformSymbols(opts.Defines))
	tokens = pre.ParseFile(tokens)
	for _, macroErr := range pre.Errors() {
		diags.Add(diag.Diagnostic{
			Severity: diag.Error,
			Phase:    diag.PhaseMacro,
			Token:    lexer.Token{Span: macroErr.Span},
			Message:  macroErr.Message,
		})
	}

	if diags.HasErrors() {
		diags.Print(errorStream, opts.ColorOutput)
		return nil, fmt.Errorf("compilation of %s failed", inputPath)
	}

	// the unit cache lives for exactly one compilation
	cache := parser.NewUnitCache()
	p := parser.New(opts.RTLDirectories, inputPath, pre.Symbols(), tokens, cache)
	unit, parseErr := p.ParseFile()
	diags.Merge(p.Diagnostics())
	if parseErr != nil || diags.HasErrors() {
		diags.Print(errorStream, opts.ColorOutput)
		return nil, fmt.Errorf("compilation of %s failed", inputPath)
	}
	if diags.Len() > 0 {
		diags.Print(errorStream, opts.ColorOutput)
	}

	if err := sema.Check(unit); err != nil {
		printPhaseError(errorStream, diags, diag.PhaseTypecheck, err)
		return nil, err
	}

	ctx := codegen.NewContext(unit, codegen.Options{Mode: opts.Mode})
	defer ctx.Dispose()
	if err := ctx.Generate(); err != nil {
		printPhaseError(errorStream, diags, diag.PhaseCodegen, err)
		return nil, err
	}

	if opts.PrintLLVMIR {
		fmt.Fprintln(os.Stderr, ctx.IR())
	}
	if err := ctx.Verify(); err != nil {
		fmt.Fprintln(errorStream, err)
		return nil, err
	}

	outputDir := opts.OutputDirectory
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	result := &Result{
		ObjectFile: filepath.Join(outputDir, unit.Name+".o"),
		Executable: filepath.Join(outputDir, executableName(unit.Name)),
	}
	if err := ctx.EmitObjectFile(result.ObjectFile); err != nil {
		return nil, err
	}
	fmt.Fprintf(outputStream, "Wrote %s\n", result.ObjectFile)

	flags := linkFlags(unit.LibsToLink(), opts.Mode)
	if err := linkModules(errorStream, result.Executable, flags, []string{result.ObjectFile}); err != nil {
		return nil, err
	}

	if opts.RunProgram {
		code, err := runExecutable(outputStream, errorStream, result.Executable)
		if err != nil {
			fmt.Fprintln(errorStream, "program could not be executed!")
			return nil, err
		}
		result.ExitCode = code
	}
	return result, nil
}

func printPhaseError(w io.Writer, diags *diag.List, phase diag.Phase, err error) {
	switch e := err.(type) {
	case *sema.Error:
		diags.Add(diag.Diagnostic{Severity: diag.Error, Phase: phase, Token: e.Token, Message: e.Message})
	case *codegen.Error:
		diags.Add(diag.Diagnostic{Severity: diag.Error, Phase: phase, Token: e.Token, Message: e.Message})
	default:
		fmt.Fprintln(w, err)
		return
	}
	diags.Print(w, true)
}

// platformSymbols seeds the macro table with the platform names before
// user defines apply.
func platformSymbols(defines []string) macro.Symbols {
	symbols := macro.Symbols{}
	if runtime.GOOS == "windows" {
		symbols["windows"] = true
	} else {
		symbols["unix"] = true
	}
	symbols[runtime.GOARCH] = true
	for _, name := range defines {
		symbols[strings.ToLower(name)] = true
	}
	return symbols
}

func executableName(unitName string) string {
	if runtime.GOOS == "windows" {
		return unitName + ".exe"
	}
	return unitName
}
