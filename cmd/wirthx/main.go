package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/wirthx-compiler/wirthx/internal/codegen"
	"github.com/wirthx-compiler/wirthx/internal/config"
	"github.com/wirthx-compiler/wirthx/internal/driver"
)

var (
	// Version info - set by ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	// Color output
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

// repeatableFlag collects every occurrence of a repeated string flag.
type repeatableFlag []string

func (f *repeatableFlag) String() string { return strings.Join(*f, ",") }
func (f *repeatableFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	var rtlDirs repeatableFlag
	var (
		runFlag     = flag.Bool("run", false, "Execute the built binary after linking")
		debugFlag   = flag.Bool("debug", false, "Build without optimizations (default)")
		releaseFlag = flag.Bool("release", false, "Build with optimizations")
		outputFlag  = flag.String("output", "", "Output directory for the object file and executable")
		llvmIRFlag  = flag.Bool("llvm-ir", false, "Dump LLVM IR to standard error after codegen")
		lspFlag     = flag.Bool("lsp", false, "Language-server mode (not served by this binary; exits with an error)")
		exploreFlag = flag.Bool("explore", false, "Start the interactive type explorer")
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
	)
	flag.Var(&rtlDirs, "rtl", "Additional RTL directory (repeatable)")
	flag.BoolVar(versionFlag, "v", false, "Print version information")
	flag.BoolVar(helpFlag, "h", false, "Show help")
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag {
		printHelp()
		return
	}
	if *lspFlag {
		fmt.Fprintf(os.Stderr, "%s: the language server runs through the lsp front-end binary\n", red("Error"))
		os.Exit(1)
	}
	if *exploreFlag {
		runExplore(append(rtlDirs, defaultRTLDirectories()...))
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "%s: missing input file\n", red("Error"))
		printHelp()
		os.Exit(1)
	}
	inputPath := flag.Arg(0)

	if !strings.HasSuffix(inputPath, ".pas") {
		fmt.Fprintf(os.Stderr, "%s: file should have a .pas extension\n", color.YellowString("Warning"))
	}

	cfg, err := config.Load(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	opts := driver.Options{
		RTLDirectories:  append(append([]string{}, cfg.RTLDirectories...), rtlDirs...),
		OutputDirectory: cfg.OutputDirectory,
		Mode:            codegen.Debug,
		PrintLLVMIR:     *llvmIRFlag,
		RunProgram:      *runFlag,
		ColorOutput:     true,
		Defines:         cfg.Defines,
	}
	if len(opts.RTLDirectories) == 0 {
		opts.RTLDirectories = defaultRTLDirectories()
	}
	if cfg.BuildMode == "release" || *releaseFlag {
		opts.Mode = codegen.Release
	}
	if *debugFlag {
		opts.Mode = codegen.Debug
	}
	if *outputFlag != "" {
		opts.OutputDirectory = *outputFlag
	}

	result, err := driver.Compile(opts, inputPath, os.Stderr, os.Stdout)
	if err != nil {
		os.Exit(1)
	}

	if *runFlag {
		os.Exit(result.ExitCode)
	}
	fmt.Printf("%s Built %s\n", green("✓"), result.Executable)
}

// defaultRTLDirectories looks for the rtl directory next to the compiler
// binary, then in the working directory.
func defaultRTLDirectories() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, strings.TrimSuffix(exe, "wirthx")+"rtl")
	}
	dirs = append(dirs, "rtl")
	return dirs
}

func printVersion() {
	fmt.Printf("wirthx %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("wirthx - an ahead-of-time Pascal compiler"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  wirthx [flags] <file.pas>")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Printf("  %s             Execute the built binary after linking\n", cyan("--run"))
	fmt.Printf("  %s / %s  Build-mode switch\n", cyan("--debug"), cyan("--release"))
	fmt.Printf("  %s <path>      Additional RTL directory (repeatable)\n", cyan("--rtl"))
	fmt.Printf("  %s <path>   Output directory (object + executable)\n", cyan("--output"))
	fmt.Printf("  %s         Dump IR to standard error after codegen\n", cyan("--llvm-ir"))
	fmt.Printf("  %s         Start the interactive type explorer\n", cyan("--explore"))
	fmt.Printf("  %s             Language-server mode (not served by this binary; exits with an error)\n", cyan("--lsp"))
	fmt.Printf("  %s, %s    Print version information\n", cyan("--version"), cyan("-v"))
	fmt.Printf("  %s, %s       Show this help message\n", cyan("--help"), cyan("-h"))
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s      # Compile\n", cyan("wirthx hello.pas"))
	fmt.Printf("  %s  # Compile and run\n", cyan("wirthx --run hello.pas"))
}
