package console

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal"
)

func TestNewConsoleCommand(t *testing.T) {
	cmd := NewConsoleCommand()

	assert.Equal(t, "console", cmd.Use)
	assert.True(t, cmd.HasAlias("c"))
	assert.NotNil(t, cmd.Flags().Lookup("command"))
	assert.NotNil(t, cmd.Flags().Lookup("debug"))
	assert.False(t, cmd.HasSubCommands())
}

func TestConsoleCommand_SingleLine(t *testing.T) {
	dir := t.TempDir()
	old := internal.ConfigPathOverride
	t.Cleanup(func() { internal.ConfigPathOverride = old })
	internal.ConfigPathOverride = filepath.Join(dir, "config.json")
	t.Setenv("DISPATCHKIT_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("DISPATCHKIT_CONSOLE_COLOR", "false")

	cmd := NewConsoleCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", "greet World"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "World")
}
