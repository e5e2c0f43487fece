package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := newRootCmd()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"up", "down", "steps", "goto", "version", "force", "create", "list"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("path"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestCreateAndList(t *testing.T) {
	dir := t.TempDir()

	create := newRootCmd()
	create.SetArgs([]string{"--path", dir, "--log-level", "error", "create", "Add voice tags"})
	require.NoError(t, create.Execute())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	var out bytes.Buffer
	list := newRootCmd()
	list.SetOut(&out)
	list.SetArgs([]string{"--path", dir, "--log-level", "error", "list"})
	require.NoError(t, list.Execute())
	assert.Contains(t, out.String(), "_add_voice_tags")
}

func TestDown_RequiresConfirm(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--path", t.TempDir(), "--log-level", "error", "down"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--confirm")
}

func TestSteps_RejectsNonNumeric(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--path", t.TempDir(), "--log-level", "error", "steps", "two"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid step count")
}

func TestResolveMigrationsPath(t *testing.T) {
	dir := t.TempDir()
	got, err := resolveMigrationsPath(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = resolveMigrationsPath("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
