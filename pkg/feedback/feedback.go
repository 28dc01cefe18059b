// Package feedback maps dispatch outcomes to user-facing messages. The core
// picks a category and positional arguments; the templates come from
// configuration.
package feedback

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Category names one kind of user-facing message.
type Category string

const (
	CommandNotFound       Category = "command-not-found"
	Unauthorized          Category = "unauthorized"
	ArgumentCountMismatch Category = "argument-count-mismatch"
	ArgumentParseFailure  Category = "argument-parse-failure"
	ActionFault           Category = "action-fault"
	RateLimited           Category = "rate-limited"
	DispatchCancelled     Category = "dispatch-cancelled"
	Success               Category = "success"
)

// Reportable is implemented by errors that know which message to show.
type Reportable interface {
	Feedback() (Category, []any)
}

// Templates maps a category to a message with positional placeholders
// {0}, {1}, ...
type Templates map[Category]string

// Default returns the built-in templates.
func Default() Templates {
	return Templates{
		CommandNotFound:       "Unknown command \"{0}\". Type \"help\" for a list of commands.",
		Unauthorized:          "You do not have permission to run \"{0}\" (requires {1}).",
		ArgumentCountMismatch: "Wrong number of arguments: expected {0}, got {1}. Usage: {2}",
		ArgumentParseFailure:  "Invalid value \"{1}\" for {0}: {2}",
		ActionFault:           "Command \"{0}\" failed: {1}",
		RateLimited:           "You are doing that too often. Try again in {0}.",
		DispatchCancelled:     "Command rejected: {0}",
		Success:               "{0}",
	}
}

var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// Formatter renders categories through a template set. It is safe for
// concurrent use.
type Formatter struct {
	mu        sync.RWMutex
	templates Templates
}

// NewFormatter layers overrides on top of the default templates.
func NewFormatter(overrides Templates) *Formatter {
	t := Default()
	maps.Copy(t, overrides)
	return &Formatter{templates: t}
}

// Set replaces the template of one category.
func (f *Formatter) Set(c Category, template string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[c] = template
}

func (f *Formatter) Template(c Category) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.templates[c]
	return t, ok
}

// Format substitutes args into the category's template. Placeholders
// without a matching argument are left as they are. An unknown category
// falls back to the category name followed by the arguments.
func (f *Formatter) Format(c Category, args ...any) string {
	tmpl, ok := f.Template(c)
	if !ok {
		return strings.TrimSuffix(fmt.Sprintln(append([]any{string(c) + ":"}, args...)...), "\n")
	}
	return Render(tmpl, args...)
}

// Render substitutes {n} placeholders in tmpl.
func Render(tmpl string, args ...any) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		i, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || i >= len(args) {
			return m
		}
		return fmt.Sprint(args[i])
	})
}

// Message renders err when it is, or wraps, a Reportable, and its plain
// text otherwise.
func (f *Formatter) Message(err error) (Category, string) {
	var r Reportable
	if errors.As(err, &r) {
		c, args := r.Feedback()
		return c, f.Format(c, args...)
	}
	return ActionFault, err.Error()
}
