package rule

import (
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_ThreadsValueThroughRules(t *testing.T) {
	rules := []Rule{TrimSpace(), Lowercase(), OneOf("steve", "alex")}

	out, err := Chain(rules, "  STEVE ")
	require.NoError(t, err)
	assert.Equal(t, "steve", out)
}

func TestChain_FirstFailureShortCircuits(t *testing.T) {
	called := false
	spy := New("spy", func(s string) string {
		called = true
		return s
	}, func(string) Verdict { return Pass() })

	_, err := Chain([]Rule{MinLength(5), spy}, "abc")
	require.Error(t, err)

	var fe *FailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "min-length[5]", fe.Rule)
	assert.Equal(t, 0, fe.Index)
	assert.Equal(t, "must be at least 5 characters", fe.Reason)
	assert.False(t, called, "rules after a failure must not run")
}

func TestChain_IsOrderSensitive(t *testing.T) {
	forward := []Rule{Lowercase(), OneOf("abc")}
	reversed := []Rule{OneOf("abc"), Lowercase()}

	_, errForward := Chain(forward, "ABC")
	_, errReversed := Chain(reversed, "ABC")

	assert.NoError(t, errForward)
	assert.Error(t, errReversed)
}

func TestChain_TypeMismatchFailsFast(t *testing.T) {
	_, err := Chain([]Rule{Range(1, 10)}, "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects int, got string")
}

func TestChain_TransformChangesType(t *testing.T) {
	atoi := Transform("atoi", strconv.Atoi)

	out, err := Chain([]Rule{TrimSpace(), atoi, Range(1, 6)}, " 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, out)

	_, err = Chain([]Rule{atoi}, "four")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atoi")
}

func TestChain_Empty(t *testing.T) {
	out, err := Chain(nil, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		input any
		ok    bool
	}{
		{"range inside", Range(1, 10), 10, true},
		{"range outside", Range(1, 10), 11, false},
		{"min float", Min(0.5), 0.25, false},
		{"max length", MaxLength(3), "abcd", false},
		{"max length unicode", MaxLength(2), "äö", true},
		{"not blank", NotBlank(), "   ", false},
		{"matches", Matches(regexp.MustCompile(`^[a-z_]+$`)), "steve_01", false},
		{"matches ok", Matches(regexp.MustCompile(`^[a-z_]+$`)), "steve", true},
		{"one of int", OneOf(1, 2, 3), 2, true},
		{"cron valid", CronExpr(), "*/5 * * * *", true},
		{"cron invalid", CronExpr(), "every tuesday", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verdict := tt.rule.Apply(tt.input)
			if tt.ok {
				assert.Equal(t, Success, verdict.Status, verdict.Reason)
			} else {
				assert.Equal(t, Failure, verdict.Status)
				assert.NotEmpty(t, verdict.Reason)
			}
		})
	}
}

func TestCustomInterpretation(t *testing.T) {
	// The function produces a count; the interpretation decides.
	words := New("two-words", func(s string) int {
		return len(regexp.MustCompile(`\s+`).Split(s, -1))
	}, func(n int) Verdict {
		if n != 2 {
			return Fail("expected 2 words, got %d", n)
		}
		return Pass()
	})

	out, verdict := words.Apply("hello world")
	assert.Equal(t, Success, verdict.Status)
	assert.Equal(t, 2, out)

	_, verdict = words.Apply("hello")
	assert.Equal(t, "expected 2 words, got 1", verdict.Reason)
}

func TestZeroRule(t *testing.T) {
	_, verdict := Rule{name: "empty"}.Apply("x")
	assert.Equal(t, Failure, verdict.Status)
}
