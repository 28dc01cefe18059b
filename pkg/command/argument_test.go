package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/rule"
)

func TestArgumentParse_TypeThenRules(t *testing.T) {
	arg := NewArgument("sides", "die sides", Int, rule.Range(2, 100))

	v, err := arg.Parse("20")
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = arg.Parse("twenty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid int")

	_, err = arg.Parse("1")
	require.Error(t, err)
	var fe *rule.FailureError
	assert.True(t, errors.As(err, &fe))
}

func TestOptionalDefault(t *testing.T) {
	arg := Optional("sides", "die sides", Int, 6)
	assert.Equal(t, 6, arg.Default())
	assert.Equal(t, "int", arg.TypeName())

	assert.Equal(t, "", NewArgument("name", "d", String).Default())
}

func TestBuiltinTypes(t *testing.T) {
	b, err := Bool.Parse("yes")
	require.NoError(t, err)
	assert.True(t, b)

	b, err = Bool.Parse("false")
	require.NoError(t, err)
	assert.False(t, b)

	d, err := Duration.Parse("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	id := uuid.New()
	got, err := UUID.Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Word.Parse("two words")
	assert.Error(t, err)

	f, err := Float.Parse("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	n, err := Int64.Parse("9000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(9000000000), n)
}

func TestEnum(t *testing.T) {
	mode := Enum("Survival", "Creative")
	assert.Equal(t, "enum(Survival|Creative)", mode.Name())

	v, err := mode.Parse("creative")
	require.NoError(t, err)
	assert.Equal(t, "Creative", v)

	_, err = mode.Parse("hardcore")
	assert.Error(t, err)
}

func TestArgsAccessors(t *testing.T) {
	args := NewArgs(
		Value{ID: "name", Raw: "World", Value: "World"},
		Value{ID: "times", Raw: "", Value: 3, Defaulted: true},
	)

	assert.Equal(t, 2, args.Len())
	assert.Equal(t, "World", Get[string](args, "name"))
	assert.Equal(t, 3, Get[int](args, "times"))
	assert.Equal(t, 0, Get[int](args, "missing"))

	_, ok := Lookup[int](args, "name")
	assert.False(t, ok, "wrong type is not found")

	v, ok := args.Lookup("times")
	require.True(t, ok)
	assert.True(t, v.Defaulted)
	assert.Equal(t, "name", args.At(0).ID)

	values := args.Values()
	values[0].ID = "mutated"
	assert.Equal(t, "name", args.At(0).ID)
}

func TestCaptureAndPredicates(t *testing.T) {
	c := NewCapture()
	c.Record("a", Succeeded(1))
	c.Record("b", Failed(errors.New("boom")))

	assert.Equal(t, []string{"a", "b"}, c.IDs())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"b"}, c.Failures())

	r, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, r.Value)

	results := c.Results()
	assert.False(t, AllSucceeded(results))
	assert.False(t, AllFailed(results))
	assert.True(t, AnyFailed(results))
	assert.True(t, Always(results))

	assert.False(t, AllSucceeded(nil))
	assert.False(t, AllFailed(nil))
	assert.True(t, AllSucceeded([]Result{Succeeded(nil)}))
	assert.True(t, AllFailed([]Result{Failed(errors.New("x"))}))
}

func TestDispatchInfo(t *testing.T) {
	info := NewDispatchInfo(nil, "greet", []string{"World"})
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, []string{"greet", "World"}, info.Tokens())

	other := NewDispatchInfo(nil, "greet", nil)
	assert.NotEqual(t, info.ID, other.ID)
}

func TestActionRun(t *testing.T) {
	ok := NewAction("ok", 0, func(context.Context, permission.Commander, Args) (any, error) {
		return "done", nil
	})
	res := ok.Run(context.Background(), nil, Args{})
	assert.True(t, res.OK())
	assert.Equal(t, "done", res.Value)

	bad := NewAction("bad", 0, func(context.Context, permission.Commander, Args) (any, error) {
		return nil, errors.New("nope")
	})
	res = bad.Run(context.Background(), nil, Args{})
	assert.Equal(t, StatusFailure, res.Status)
	assert.EqualError(t, res.Err, "nope")
}
