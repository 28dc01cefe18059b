package rule

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/adhocore/gronx"
)

// outcome is the internal output of Check and Transform: the value passed
// on to the next rule plus the error the interpretation step reports.
type outcome[T any] struct {
	value T
	err   error
}

func interpretOutcome[T any](o outcome[T]) Verdict {
	if o.err != nil {
		return Verdict{Status: Failure, Reason: o.err.Error()}
	}
	return Pass()
}

func unwrapOutcome[T any](v any) any {
	return v.(outcome[T]).value
}

// Check keeps the value unchanged and fails with reason when pred is false.
func Check[T any](name string, pred func(T) bool, reason string) Rule {
	r := New(name,
		func(v T) outcome[T] {
			if !pred(v) {
				return outcome[T]{value: v, err: errors.New(reason)}
			}
			return outcome[T]{value: v}
		},
		interpretOutcome[T],
	)
	r.unwrap = unwrapOutcome[T]
	return r
}

// Transform maps I to O. An error from fn is the failure reason.
func Transform[I, O any](name string, fn func(I) (O, error)) Rule {
	r := New(name,
		func(v I) outcome[O] {
			out, err := fn(v)
			return outcome[O]{value: out, err: err}
		},
		interpretOutcome[O],
	)
	r.unwrap = unwrapOutcome[O]
	return r
}

// Range accepts values within [lo, hi].
func Range[T cmp.Ordered](lo, hi T) Rule {
	return Check(fmt.Sprintf("range[%v,%v]", lo, hi), func(v T) bool {
		return v >= lo && v <= hi
	}, fmt.Sprintf("must be between %v and %v", lo, hi))
}

// Min accepts values >= lo.
func Min[T cmp.Ordered](lo T) Rule {
	return Check(fmt.Sprintf("min[%v]", lo), func(v T) bool {
		return v >= lo
	}, fmt.Sprintf("must be at least %v", lo))
}

// MinLength accepts strings with at least n characters.
func MinLength(n int) Rule {
	return Check(fmt.Sprintf("min-length[%d]", n), func(s string) bool {
		return utf8.RuneCountInString(s) >= n
	}, fmt.Sprintf("must be at least %d characters", n))
}

// MaxLength accepts strings with at most n characters.
func MaxLength(n int) Rule {
	return Check(fmt.Sprintf("max-length[%d]", n), func(s string) bool {
		return utf8.RuneCountInString(s) <= n
	}, fmt.Sprintf("must be at most %d characters", n))
}

// NotBlank rejects empty and whitespace-only strings.
func NotBlank() Rule {
	return Check("not-blank", func(s string) bool {
		return strings.TrimSpace(s) != ""
	}, "must not be blank")
}

// Matches accepts strings matching re.
func Matches(re *regexp.Regexp) Rule {
	return Check("matches["+re.String()+"]", re.MatchString,
		fmt.Sprintf("must match %s", re.String()))
}

// OneOf accepts only the listed values.
func OneOf[T comparable](values ...T) Rule {
	allowed := slices.Clone(values)
	return Check(fmt.Sprintf("one-of%v", allowed), func(v T) bool {
		return slices.Contains(allowed, v)
	}, fmt.Sprintf("must be one of %v", allowed))
}

// Lowercase maps a string to lower case.
func Lowercase() Rule {
	return Transform("lowercase", func(s string) (string, error) {
		return strings.ToLower(s), nil
	})
}

// TrimSpace strips surrounding whitespace.
func TrimSpace() Rule {
	return Transform("trim-space", func(s string) (string, error) {
		return strings.TrimSpace(s), nil
	})
}

// CronExpr accepts strings that are valid cron expressions.
func CronExpr() Rule {
	g := gronx.New()
	return Check("cron", func(s string) bool {
		return g.IsValid(s)
	}, "must be a valid cron expression")
}
