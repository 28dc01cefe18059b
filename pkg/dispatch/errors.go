package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/feedback"
	"github.com/sipeed/dispatchkit/pkg/permission"
)

// Every dispatch failure wraps one of these sentinels.
var (
	ErrNotFound      = errors.New("command not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrArgumentCount = errors.New("argument count mismatch")
	ErrArgumentParse = errors.New("argument parse failure")
	ErrActionFault   = errors.New("action fault")
	ErrRateLimited   = errors.New("rate limited")
	ErrCancelled     = errors.New("dispatch cancelled")
)

var errParserPanic = errors.New("parser panicked")

type NotFoundError struct {
	Label string
}

func (e *NotFoundError) Error() string {
	if e.Label == "" {
		return ErrNotFound.Error() + ": empty command line"
	}
	return fmt.Sprintf("%s: %q", ErrNotFound, e.Label)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) Feedback() (feedback.Category, []any) {
	return feedback.CommandNotFound, []any{e.Label}
}

// UnauthorizedError names the first tier the commander failed.
type UnauthorizedError struct {
	Command   string
	Commander string
	Tier      permission.Tier
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s: %s may not run %q (requires %s)", ErrUnauthorized, e.Commander, e.Command, e.Tier)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

func (e *UnauthorizedError) Feedback() (feedback.Category, []any) {
	return feedback.Unauthorized, []any{e.Command, e.Tier.String()}
}

type CountMismatchError struct {
	Command  string
	Usage    string
	Expected int
	Actual   int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: %q expects %d argument(s), got %d", ErrArgumentCount, e.Command, e.Expected, e.Actual)
}

func (e *CountMismatchError) Unwrap() error { return ErrArgumentCount }

func (e *CountMismatchError) Feedback() (feedback.Category, []any) {
	return feedback.ArgumentCountMismatch, []any{e.Expected, e.Actual, e.Usage}
}

// ParseError identifies the argument and raw token that failed. Cause is the
// type or rule failure.
type ParseError struct {
	Command  string
	Argument string
	Raw      string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q argument %q (%q): %v", ErrArgumentParse, e.Command, e.Argument, e.Raw, e.Cause)
}

func (e *ParseError) Unwrap() []error { return []error{ErrArgumentParse, e.Cause} }

func (e *ParseError) Feedback() (feedback.Category, []any) {
	return feedback.ArgumentParseFailure, []any{e.Argument, e.Raw, e.Cause}
}

// FaultError is an action that panicked. It is recorded in the capture as
// the action's failure; when the command does not catch faults it is also
// returned from the dispatch together with the partial capture.
type FaultError struct {
	Command string
	Action  string
	Value   any
	Capture *command.Capture
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: %q action %q: %v", ErrActionFault, e.Command, e.Action, e.Value)
}

func (e *FaultError) Unwrap() error { return ErrActionFault }

func (e *FaultError) Feedback() (feedback.Category, []any) {
	return feedback.ActionFault, []any{e.Command, e.Value}
}

type RateLimitedError struct {
	Command    string
	Commander  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: %s on %q, retry in %s", ErrRateLimited, e.Commander, e.Command, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

func (e *RateLimitedError) Feedback() (feedback.Category, []any) {
	return feedback.RateLimited, []any{e.RetryAfter.Round(100 * time.Millisecond)}
}

// CancelledError is returned when a before-dispatch hook rejects the line.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return ErrCancelled.Error()
	}
	return ErrCancelled.Error() + ": " + e.Reason
}

func (e *CancelledError) Unwrap() error { return ErrCancelled }

func (e *CancelledError) Feedback() (feedback.Category, []any) {
	return feedback.DispatchCancelled, []any{e.Reason}
}

// Outcome classifies a dispatch error for logs and history.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrArgumentCount):
		return "argument-count"
	case errors.Is(err, ErrArgumentParse):
		return "argument-parse"
	case errors.Is(err, ErrActionFault):
		return "action-fault"
	case errors.Is(err, ErrRateLimited):
		return "rate-limited"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
