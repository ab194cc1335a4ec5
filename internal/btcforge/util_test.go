package btcforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'v29.1'", shellQuote("v29.1"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}

func TestIsExecutableFile(t *testing.T) {
	dir := t.TempDir()

	exe := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	assert.True(t, isExecutableFile(exe))

	plain := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))
	assert.False(t, isExecutableFile(plain))

	assert.False(t, isExecutableFile(dir), "directories are not executables")
	assert.False(t, isExecutableFile(filepath.Join(dir, "absent")))
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, isDir(dir))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.False(t, isDir(file))
	assert.False(t, isDir(filepath.Join(dir, "absent")))
}
