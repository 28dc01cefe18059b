// Package rule implements composable validation and transformation rules
// applied to a single parsed argument value.
//
// A Rule pairs a function with an interpretation step. The function maps
// its input to an output; the interpretation classifies that output as a
// success or a failure with a reason. Rules chain: the output of one rule is
// the input of the next.
package rule

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch is reported when a rule receives a value of a type it was
// not declared for.
var ErrTypeMismatch = errors.New("rule: input type mismatch")

type Status int

const (
	Success Status = iota
	Failure
)

func (s Status) String() string {
	if s == Success {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Verdict is the outcome of interpreting a rule's output.
type Verdict struct {
	Status Status
	Reason string
}

func Pass() Verdict { return Verdict{Status: Success} }

func Fail(format string, args ...any) Verdict {
	return Verdict{Status: Failure, Reason: fmt.Sprintf(format, args...)}
}

// Rule is a type-erased rule. Build one with New, Check or Transform.
type Rule struct {
	name      string
	apply     func(any) (any, error)
	interpret func(any) Verdict
	// unwrap maps the function output to the value handed to the next rule.
	unwrap func(any) any
}

// Name identifies the rule in failure messages.
func (r Rule) Name() string { return r.name }

// New builds a rule from a function and its interpretation. The input is
// asserted to I before fn runs; a value of any other type fails fast with
// ErrTypeMismatch instead of being coerced.
func New[I, O any](name string, fn func(I) O, interpret func(O) Verdict) Rule {
	return Rule{
		name: name,
		apply: func(v any) (any, error) {
			in, ok := v.(I)
			if !ok {
				var want I
				return nil, fmt.Errorf("%w: %s expects %T, got %T", ErrTypeMismatch, name, want, v)
			}
			return fn(in), nil
		},
		interpret: func(v any) Verdict {
			return interpret(v.(O))
		},
	}
}

// Apply runs the rule's function on v and then interprets the output.
func (r Rule) Apply(v any) (any, Verdict) {
	if r.apply == nil {
		return v, Fail("rule %q has no function", r.name)
	}
	out, err := r.apply(v)
	if err != nil {
		return nil, Verdict{Status: Failure, Reason: err.Error()}
	}
	verdict := r.interpret(out)
	if r.unwrap != nil {
		out = r.unwrap(out)
	}
	return out, verdict
}

// FailureError carries the rule that stopped a chain and its reason.
type FailureError struct {
	Rule   string
	Reason string
	Index  int
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("rule %s failed: %s", e.Rule, e.Reason)
}

// Chain evaluates rules strictly in order, threading each output into the
// next rule. The first failure stops the chain.
func Chain(rules []Rule, candidate any) (any, error) {
	value := candidate
	for i, r := range rules {
		out, verdict := r.Apply(value)
		if verdict.Status == Failure {
			return nil, &FailureError{Rule: r.name, Reason: verdict.Reason, Index: i}
		}
		value = out
	}
	return value, nil
}
