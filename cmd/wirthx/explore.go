package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/macro"
	"github.com/wirthx-compiler/wirthx/internal/parser"
)

// runExplore is the interactive type explorer: each line is parsed as a
// tiny program around the entered expression, and the resulting
// diagnostics (or the lexed token kinds) are shown. History lives for the
// session only.
func runExplore(rtlDirs []string) {
	fmt.Printf("%s %s - type explorer\n", bold("wirthx"), Version)
	fmt.Println("Enter a declaration or expression, :quit to exit")
	fmt.Println()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(">>> ")
		if err != nil {
			fmt.Println("\nGoodbye!")
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case ":quit", ":q":
			fmt.Println("Goodbye!")
			return
		case ":help", ":h":
			fmt.Println("Commands:")
			fmt.Println("  :help, :h   Show this help")
			fmt.Println("  :quit, :q   Exit the explorer")
			fmt.Println("  :lex <src>  Show the token kinds of a line")
			continue
		}

		if rest, ok := strings.CutPrefix(input, ":lex "); ok {
			showTokens(rest)
			continue
		}

		checkSnippet(input, rtlDirs)
	}
}

func showTokens(source string) {
	lex := lexer.New("<explore>", source)
	for _, tok := range lex.Tokenize() {
		if tok.Type == lexer.EOF {
			break
		}
		fmt.Printf("  %s %q\n", cyan(tok.Type.String()), tok.Text())
	}
	for _, lexErr := range lex.Errors() {
		fmt.Fprintf(os.Stderr, "  %s %s\n", red("•"), lexErr.Message)
	}
}

// checkSnippet wraps the input in a minimal program and runs it through
// the real lexer and parser, reporting the diagnostics.
func checkSnippet(input string, rtlDirs []string) {
	source := "program explore;\nbegin\n" + input + "\nend.\n"
	if strings.HasPrefix(strings.ToLower(input), "var ") ||
		strings.HasPrefix(strings.ToLower(input), "type ") ||
		strings.HasPrefix(strings.ToLower(input), "const ") {
		source = "program explore;\n" + input + "\nbegin\nend.\n"
	}

	lex := lexer.New("<explore>", source)
	tokens := lex.Tokenize()
	pre := macro.New(macro.Symbols{})
	p := parser.New(rtlDirs, "<explore>.pas", pre.Symbols(), pre.ParseFile(tokens), nil)
	_, err := p.ParseFile()

	if p.Diagnostics().Len() == 0 && err == nil {
		fmt.Printf("%s parsed\n", green("✓"))
		return
	}
	p.Diagnostics().Print(os.Stderr, true)
}
