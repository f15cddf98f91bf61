package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsZeroConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "prog.pas"))
	require.NoError(t, err)
	assert.Empty(t, cfg.RTLDirectories)
	assert.Empty(t, cfg.BuildMode)
}

func TestLoadResolvesRelativeRTLPaths(t *testing.T) {
	dir := t.TempDir()
	content := "rtl:\n  - mylib\n  - /abs/rtl\ndefines:\n  - TESTING\nbuildMode: release\noutput: out\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(filepath.Join(dir, "prog.pas"))
	require.NoError(t, err)

	require.Len(t, cfg.RTLDirectories, 2)
	assert.Equal(t, filepath.Join(dir, "mylib"), cfg.RTLDirectories[0])
	assert.Equal(t, "/abs/rtl", cfg.RTLDirectories[1])
	assert.Equal(t, []string{"TESTING"}, cfg.Defines)
	assert.Equal(t, "release", cfg.BuildMode)
	assert.Equal(t, "out", cfg.OutputDirectory)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(":\n  - ]["), 0o644))
	_, err := Load(filepath.Join(dir, "prog.pas"))
	assert.Error(t, err)
}
