package driver

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wirthx-compiler/wirthx/internal/codegen"
)

func TestPlatformSymbolsSeedOSAndArch(t *testing.T) {
	symbols := platformSymbols(nil)
	if runtime.GOOS == "windows" {
		assert.True(t, symbols["windows"])
	} else {
		assert.True(t, symbols["unix"])
	}
	assert.True(t, symbols[runtime.GOARCH])
}

func TestPlatformSymbolsLowerCaseUserDefines(t *testing.T) {
	symbols := platformSymbols([]string{"TESTING"})
	assert.True(t, symbols["testing"])
}

func TestExecutableName(t *testing.T) {
	name := executableName("demo")
	if runtime.GOOS == "windows" {
		assert.Equal(t, "demo.exe", name)
	} else {
		assert.Equal(t, "demo", name)
	}
}

func TestLinkFlagsCollectExternalLibs(t *testing.T) {
	flags := linkFlags([]string{"c", "m"}, codegen.Release)
	assert.Contains(t, flags, "-lc")
	assert.Contains(t, flags, "-lm")

	count := 0
	for _, flag := range flags {
		if flag == "-lc" {
			count++
		}
	}
	assert.Equal(t, 1, count, "-lc appears once")
}

func TestDebugModeAddsSanitizer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no sanitizer flags on windows")
	}
	flags := linkFlags(nil, codegen.Debug)
	assert.Contains(t, flags, "-fsanitize=address")
	assert.NotContains(t, linkFlags(nil, codegen.Release), "-fsanitize=address")
}
