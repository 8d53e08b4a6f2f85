package sysinfo

import (
	"errors"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostname_NeverEmpty(t *testing.T) {
	assert.NotEmpty(t, Hostname())
}

func TestHostname_FallsBackToUnknown(t *testing.T) {
	stubs := gostub.Stub(&osHostname, func() (string, error) {
		return "", errors.New("no hostname")
	})
	defer stubs.Reset()

	assert.Equal(t, "unknown", Hostname())
}

func TestFullCommandLine_JoinsArgs(t *testing.T) {
	assert.NotEmpty(t, FullCommandLine())
}

func TestCheckFileExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("hi"), 0o644))
	require.NoError(t, fs.MkdirAll("/dir", 0o755))

	assert.True(t, CheckFileExists(fs, "/a.txt"))
	assert.False(t, CheckFileExists(fs, "/dir"))
	assert.False(t, CheckFileExists(fs, "/missing"))
}

func TestCheckDirectoryExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("hi"), 0o644))

	assert.True(t, CheckDirectoryExists(fs, "/dir"))
	assert.False(t, CheckDirectoryExists(fs, "/a.txt"))
	assert.False(t, CheckDirectoryExists(fs, "/missing"))
}

func TestIsExecutable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/script.sh", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plain.txt", []byte("hi"), 0o644))

	assert.True(t, IsExecutable(fs, "/script.sh"))
	assert.False(t, IsExecutable(fs, "/plain.txt"))
	assert.False(t, IsExecutable(fs, "/missing"))
}

func TestIsTextFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/text.pipe", []byte("echo hi\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/binary.bin", []byte{0x00, 0x01, 0xff, 0x02}, 0o644))

	assert.True(t, IsTextFile(fs, "/text.pipe"))
	assert.False(t, IsTextFile(fs, "/binary.bin"))
	assert.False(t, IsTextFile(fs, "/missing"))
}

func TestLooksLikePipeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pipeline.pipe", []byte("echo hi\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/script.sh", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/binary.bin", []byte{0x00, 0x01}, 0o644))

	assert.True(t, LooksLikePipeFile(fs, "/pipeline.pipe"))
	assert.False(t, LooksLikePipeFile(fs, "/script.sh"), "executables are not pipe files")
	assert.False(t, LooksLikePipeFile(fs, "/binary.bin"), "binary content is not a pipe file")
	assert.False(t, LooksLikePipeFile(fs, "/missing"))
}
