package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/pkg/hooks"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Record(ctx, Entry{
		ID: "1", Commander: "alex", Line: "greet World", Pattern: "greet",
		Outcome: "success", Actions: 1, Duration: time.Millisecond, At: base,
	}))
	require.NoError(t, s.Record(ctx, Entry{
		ID: "2", Commander: "steve", Line: "kick alex", Pattern: "kick",
		Outcome: "unauthorized", Error: "unauthorized", At: base.Add(time.Second),
	}))
	require.NoError(t, s.Record(ctx, Entry{
		ID: "3", Commander: "op", Line: "risky", Pattern: "risky",
		Outcome: "success", Actions: 2, Failures: []string{"boom"}, At: base.Add(2 * time.Second),
	}))

	list, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].ID)
	assert.Equal(t, []string{"boom"}, list[0].Failures)
	assert.Equal(t, "2", list[1].ID)
	assert.Empty(t, list[1].Failures)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, time.Millisecond, all[2].Duration)
	assert.Equal(t, base.UnixNano(), all[2].At.UnixNano())

	counts, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"success": 2, "unauthorized": 1}, counts)

	n, err := s.Prune(ctx, base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_Subscribe(t *testing.T) {
	s := openTemp(t)
	reg := hooks.NewHookRegistry()
	s.Subscribe(reg)

	ctx := context.Background()
	reg.TriggerDispatched(ctx, &hooks.DispatchedEvent{
		DispatchID: "abc",
		Commander:  "alex",
		Tokens:     []string{"greet", "World"},
		Pattern:    "greet",
		Outcome:    "success",
		Actions:    1,
		At:         time.Now(),
	})

	list, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "greet World", list[0].Line)
	assert.Equal(t, "alex", list[0].Commander)
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), Entry{ID: "x", At: time.Now()}))
	list, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
