package tree

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/pkg/command"
)

func mustVerify(t *testing.T, b *command.Builder) *command.Verified {
	t.Helper()
	v, err := command.Verify(b)
	require.NoError(t, err)
	return v
}

func adminTree(t *testing.T) *Tree {
	t.Helper()
	tr := New()
	_, err := tr.Insert(nil, mustVerify(t, command.Named("admin", "Admin tools").
		Subcommand(command.Named("ban", "Ban").
			Subcommand(command.Named("ip", "Ban an address"))).
		Subcommand(command.Named("pardon", "Pardon").Aliases("unban"))))
	require.NoError(t, err)
	_, err = tr.Insert(nil, mustVerify(t, command.Named("greet", "Greet").Aliases("hi")))
	require.NoError(t, err)
	return tr
}

func TestResolve_DescendsToSubcommand(t *testing.T) {
	tr := adminTree(t)

	m, err := tr.Resolve([]string{"admin", "ban", "Steve"})
	require.NoError(t, err)
	assert.Equal(t, "ban", m.Node.Command().Name())
	assert.Equal(t, []string{"admin", "ban"}, m.Path)
	assert.Equal(t, "admin ban", m.Pattern())
	assert.Equal(t, []string{"Steve"}, m.Remaining)
}

func TestResolve_StopsAtFirstNonChild(t *testing.T) {
	tr := adminTree(t)

	m, err := tr.Resolve([]string{"admin", "Steve", "ban"})
	require.NoError(t, err)
	assert.Equal(t, "admin", m.Node.Command().Name())
	assert.Equal(t, []string{"Steve", "ban"}, m.Remaining)

	m, err = tr.Resolve([]string{"admin", "ban", "ip", "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "ban", "ip"}, m.Path)
	assert.Equal(t, []string{"1.2.3.4"}, m.Remaining)
}

func TestResolve_TokensExhausted(t *testing.T) {
	tr := adminTree(t)

	m, err := tr.Resolve([]string{"greet"})
	require.NoError(t, err)
	assert.Empty(t, m.Remaining)
	assert.True(t, m.Node.IsRoot())
}

func TestResolve_Aliases(t *testing.T) {
	tr := adminTree(t)

	m, err := tr.Resolve([]string{"hi", "World"})
	require.NoError(t, err)
	assert.Equal(t, []string{"greet"}, m.Path)

	m, err = tr.Resolve([]string{"admin", "unban", "Steve"})
	require.NoError(t, err)
	assert.Equal(t, "admin pardon", m.Pattern())
}

func TestResolve_NotFound(t *testing.T) {
	tr := adminTree(t)

	_, err := tr.Resolve([]string{"nope"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = tr.Resolve(nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolve_Deterministic(t *testing.T) {
	tr := adminTree(t)
	tokens := []string{"admin", "ban", "Steve", "griefing"}

	first, err := tr.Resolve(tokens)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := tr.Resolve(tokens)
		require.NoError(t, err)
		assert.Same(t, first.Node, again.Node)
		assert.Equal(t, first.Remaining, again.Remaining)
	}
}

func TestResolve_RemainingIsACopy(t *testing.T) {
	tr := adminTree(t)
	tokens := []string{"greet", "World"}

	m, err := tr.Resolve(tokens)
	require.NoError(t, err)
	m.Remaining[0] = "changed"
	assert.Equal(t, "World", tokens[1])
}

func TestInsert_RootConflict(t *testing.T) {
	tr := adminTree(t)
	original, ok := tr.Lookup("greet")
	require.True(t, ok)

	_, err := tr.Insert(nil, mustVerify(t, command.Named("greet", "Second greet")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistrationConflict))

	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "greet", ce.Label)

	_, err = tr.Insert(nil, mustVerify(t, command.Named("wave", "Wave").Aliases("hi")))
	assert.True(t, errors.Is(err, ErrRegistrationConflict), "alias collisions conflict too")

	still, ok := tr.Lookup("greet")
	require.True(t, ok)
	assert.Same(t, original, still)
	assert.Equal(t, 2, tr.Len())
}

func TestInsert_ChildUnderExistingParent(t *testing.T) {
	tr := adminTree(t)
	admin, ok := tr.Lookup("admin")
	require.True(t, ok)

	kick, err := tr.Insert(admin, mustVerify(t, command.Named("kick", "Kick")))
	require.NoError(t, err)
	assert.Same(t, admin, kick.Parent())
	assert.Equal(t, []string{"admin", "kick"}, kick.Path())

	_, err = tr.Insert(admin, mustVerify(t, command.Named("ban", "Another ban")))
	assert.True(t, errors.Is(err, ErrDuplicateSubcommand))
	assert.True(t, errors.Is(err, command.ErrValidation))
	assert.Len(t, tr.Children(admin), 3)

	_, err = tr.Insert(nil, mustVerify(t, command.Named("admin", "Another admin")))
	assert.True(t, errors.Is(err, ErrRegistrationConflict))
	assert.False(t, errors.Is(err, command.ErrValidation))
}

func TestSiblingNamesAreDistinct(t *testing.T) {
	tr := adminTree(t)

	assertDistinct := func(siblings []*Node) {
		seen := map[string]bool{}
		for _, c := range siblings {
			for _, l := range c.Command().Labels() {
				assert.False(t, seen[l], "label %q repeated", l)
				seen[l] = true
			}
		}
	}

	assertDistinct(tr.Roots())
	tr.Walk(func(n *Node, _ int) bool {
		assertDistinct(n.children)
		return true
	})
}

func TestWalkAndReset(t *testing.T) {
	tr := adminTree(t)

	var visited []string
	tr.Walk(func(n *Node, depth int) bool {
		visited = append(visited, fmt.Sprintf("%d:%s", depth, n.Command().Name()))
		return n.Command().Name() != "ban"
	})
	assert.Equal(t, []string{"0:admin", "1:ban", "1:pardon", "0:greet"}, visited)

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	_, err := tr.Resolve([]string{"greet"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConcurrentInsertAndResolve(t *testing.T) {
	tr := New()
	_, err := tr.Insert(nil, mustVerify(t, command.Named("base", "Base")))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("cmd%d", i%16)
			v, err := command.Verify(command.Named(name, "generated"))
			if err != nil {
				errs <- err
				return
			}
			if _, err := tr.Insert(nil, v); err != nil && !errors.Is(err, ErrRegistrationConflict) {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := tr.Resolve([]string{"base", "x"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.Equal(t, 17, tr.Len(), "each name is registered exactly once")
}
