package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/permission"
)

func newConsole(t *testing.T) (*Console, *engine.Engine, *bytes.Buffer) {
	t.Helper()
	e := engine.New()
	cfg := config.DefaultConfig().Console
	cfg.Color = false
	c := New(e, cfg, nil)
	e.AddRegistrar(c)

	ctx := context.Background()
	_, err := e.Register(ctx, command.Named("greet", "Say hello").
		Aliases("hi").
		Argument(command.NewArgument("name", "who", command.String)).
		Action("say", 0, func(_ context.Context, _ permission.Commander, args command.Args) (any, error) {
			return "Hello, " + command.Get[string](args, "name"), nil
		}))
	require.NoError(t, err)
	_, err = e.Register(ctx, command.Named("admin", "Admin").
		Subcommand(command.Named("ban", "Ban")).
		Subcommand(command.Named("secret", "Hidden").Property(command.Hidden())))
	require.NoError(t, err)
	_, err = e.Register(ctx, command.Named("async", "Async").
		Property(command.Async()).
		Action("a", 0, func(context.Context, permission.Commander, command.Args) (any, error) {
			return "async done", nil
		}))
	require.NoError(t, err)

	var out bytes.Buffer
	c.SetOutput(&out)
	return c, e, &out
}

func TestServe(t *testing.T) {
	c, _, out := newConsole(t)

	input := strings.NewReader("greet World\n\nwarp\nasync\nexit\ngreet Ignored\n")
	require.NoError(t, c.Serve(context.Background(), input))

	text := out.String()
	assert.Contains(t, text, "Hello, World\n")
	assert.Contains(t, text, `Unknown command "warp"`)
	assert.Contains(t, text, "async done")
	assert.NotContains(t, text, "Ignored")
}

func TestCompleter(t *testing.T) {
	c, _, _ := newConsole(t)

	candidates, length := c.Do([]rune("gr"), 2)
	require.Len(t, candidates, 1)
	assert.Equal(t, "eet ", string(candidates[0]))
	assert.Equal(t, 2, length)

	candidates, _ = c.Do([]rune("admin "), 6)
	var names []string
	for _, cand := range candidates {
		names = append(names, string(cand))
	}
	assert.Contains(t, names, "ban ")
	assert.NotContains(t, names, "secret ")
}

func TestName(t *testing.T) {
	c, _, _ := newConsole(t)
	assert.Equal(t, "console", c.Name())
}

func TestAnnounce(t *testing.T) {
	c, _, out := newConsole(t)
	c.Announce("Steve was kicked by console")
	assert.Equal(t, "Steve was kicked by console\n", out.String())
}
