package driver

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/wirthx-compiler/wirthx/internal/codegen"
)

// linkFlags collects the -l flags for the unit's external libraries plus
// the debug-mode sanitizer switches.
func linkFlags(libs []string, mode codegen.BuildMode) []string {
	flags := []string{"-lc"}
	for _, lib := range libs {
		if lib == "c" {
			continue
		}
		flags = append(flags, "-l"+lib)
	}
	if mode == codegen.Debug && runtime.GOOS != "windows" {
		flags = append(flags, "-fsanitize=address", "-fno-omit-frame-pointer")
	}
	return flags
}

// linkModules links the object files into an executable with the system C
// compiler.
func linkModules(errorStream io.Writer, executable string, flags, objectFiles []string) error {
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}

	args := append([]string{"-o", executable}, objectFiles...)
	args = append(args, flags...)

	cmd := exec.Command(cc, args...)
	cmd.Stderr = errorStream
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("linking %s failed: %w", executable, err)
	}
	return nil
}

// runExecutable executes the produced binary and returns its exit code.
func runExecutable(outputStream, errorStream io.Writer, executable string) (int, error) {
	cmd := exec.Command(executable)
	cmd.Stdout = outputStream
	cmd.Stderr = errorStream
	cmd.Stdin = os.Stdin
	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, err
	}
	return 0, nil
}
