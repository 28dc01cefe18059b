package history

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal"
	"github.com/sipeed/dispatchkit/pkg/history"
)

func seed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := internal.ConfigPathOverride
	t.Cleanup(func() { internal.ConfigPathOverride = old })
	internal.ConfigPathOverride = filepath.Join(dir, "config.json")

	dbPath := filepath.Join(dir, "history.db")
	t.Setenv("DISPATCHKIT_HISTORY_PATH", dbPath)

	store, err := history.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Record(ctx, history.Entry{
		ID: "old", Commander: "steve", Line: "greet World", Pattern: "greet",
		Outcome: "success", At: now.Add(-60 * 24 * time.Hour),
	}))
	require.NoError(t, store.Record(ctx, history.Entry{
		ID: "new", Commander: "alex", Line: "ban Steve", Pattern: "admin ban",
		Outcome: "unauthorized", At: now,
	}))
	return dbPath
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewHistoryCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestHistoryCommand_Recent(t *testing.T) {
	seed(t)

	out := run(t)
	assert.Contains(t, out, "COMMANDER")
	assert.Contains(t, out, "greet World")
	assert.Contains(t, out, "unauthorized")

	out = run(t, "-n", "1")
	assert.Contains(t, out, "ban Steve")
	assert.NotContains(t, out, "greet World")
}

func TestHistoryCommand_StatsAndPrune(t *testing.T) {
	seed(t)

	out := run(t, "stats")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "unauthorized")

	out = run(t, "prune", "--older-than", "720h")
	assert.Equal(t, "Removed 1 entries\n", out)

	out = run(t)
	assert.NotContains(t, out, "greet World")
}

func TestPrintEntries_Empty(t *testing.T) {
	var out bytes.Buffer
	printEntries(&out, nil)
	assert.Equal(t, "No dispatches recorded.\n", out.String())
}
