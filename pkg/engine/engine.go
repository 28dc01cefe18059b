// DispatchKit - command definition and dispatch engine
// License: MIT
//
// Copyright (c) 2026 DispatchKit contributors

// Package engine ties the command tree, the attribute handler and the
// dispatch executor together. Every entry point takes an *Engine; there is
// no process-wide instance.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/shlex"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/dispatch"
	"github.com/sipeed/dispatchkit/pkg/feedback"
	"github.com/sipeed/dispatchkit/pkg/handler"
	"github.com/sipeed/dispatchkit/pkg/hooks"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/ratelimit"
	"github.com/sipeed/dispatchkit/pkg/tree"
)

// ErrEmptyLine is returned for a line with no tokens.
var ErrEmptyLine = errors.New("empty command line")

type Engine struct {
	tree     *tree.Tree
	hooks    *hooks.HookRegistry
	handler  *handler.Handler
	executor *dispatch.Executor
	limiter  *ratelimit.Limiter
	feedback *feedback.Formatter
}

type Option func(*Engine)

func WithHooks(r *hooks.HookRegistry) Option {
	return func(e *Engine) { e.hooks = r }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithFeedback layers templates over the default feedback messages.
func WithFeedback(t feedback.Templates) Option {
	return func(e *Engine) { e.feedback = feedback.NewFormatter(t) }
}

// New builds an engine with an empty tree.
func New(opts ...Option) *Engine {
	e := &Engine{tree: tree.New()}
	for _, opt := range opts {
		opt(e)
	}
	if e.hooks == nil {
		e.hooks = hooks.NewHookRegistry()
	}
	if e.limiter == nil {
		e.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if e.feedback == nil {
		e.feedback = feedback.NewFormatter(nil)
	}
	e.handler = handler.New(e.tree, e.hooks)
	e.executor = dispatch.New(e.tree, dispatch.WithHooks(e.hooks), dispatch.WithLimiter(e.limiter))
	return e
}

func (e *Engine) Tree() *tree.Tree              { return e.tree }
func (e *Engine) Hooks() *hooks.HookRegistry    { return e.hooks }
func (e *Engine) Handler() *handler.Handler     { return e.handler }
func (e *Engine) Executor() *dispatch.Executor  { return e.executor }
func (e *Engine) Limiter() *ratelimit.Limiter   { return e.limiter }
func (e *Engine) Feedback() *feedback.Formatter { return e.feedback }

// AddRegistrar adds a host callback for new root commands.
func (e *Engine) AddRegistrar(r handler.Registrar) {
	e.handler.AddRegistrar(r)
}

// Register verifies b and adds it as a new root command.
func (e *Engine) Register(ctx context.Context, b *command.Builder) (*command.Verified, error) {
	return e.handler.Process(ctx, nil, b, true)
}

// RegisterAll registers every builder and joins the failures.
func (e *Engine) RegisterAll(ctx context.Context, builders ...*command.Builder) error {
	var errs []error
	for _, b := range builders {
		if _, err := e.Register(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterUnder adds b as a subcommand of the command at path.
func (e *Engine) RegisterUnder(ctx context.Context, path []string, b *command.Builder) (*command.Verified, error) {
	parent, ok := e.tree.Lookup(path...)
	if !ok {
		return nil, fmt.Errorf("register under %v: %w", path, tree.ErrNotFound)
	}
	return e.handler.Process(ctx, parent, b, true)
}

// Info tokenizes line into dispatch information for c.
func Info(c permission.Commander, line string) (command.DispatchInfo, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return command.DispatchInfo{}, err
	}
	if len(tokens) == 0 {
		return command.DispatchInfo{}, ErrEmptyLine
	}
	return command.NewDispatchInfo(c, tokens[0], tokens[1:]), nil
}

// Prepare resolves, authorizes and parses line. Hosts run the returned
// invocation inline, or on a goroutine when it is async.
func (e *Engine) Prepare(ctx context.Context, c permission.Commander, line string) (*dispatch.Invocation, error) {
	info, err := Info(c, line)
	if err != nil {
		return nil, err
	}
	return e.executor.Prepare(ctx, info)
}

// Dispatch runs prepared dispatch information to completion.
func (e *Engine) Dispatch(ctx context.Context, info command.DispatchInfo) (*command.Capture, error) {
	return e.executor.Dispatch(ctx, info)
}

// Handle tokenizes line and dispatches it synchronously.
func (e *Engine) Handle(ctx context.Context, c permission.Commander, line string) (*command.Capture, error) {
	info, err := Info(c, line)
	if err != nil {
		return nil, err
	}
	return e.Dispatch(ctx, info)
}

// Describe renders a dispatch error through the feedback templates.
func (e *Engine) Describe(err error) string {
	_, msg := e.feedback.Message(err)
	return msg
}

// Reset drops every command and rate-limit bucket.
func (e *Engine) Reset() {
	e.tree.Reset()
	e.limiter.Reset()
	logger.InfoC("engine", "Command tree reset")
}

// Tokenize splits line on whitespace. Single and double quotes group words
// and a backslash escapes the next character. A token starting with # begins
// a comment that runs to the end of the line.
func Tokenize(line string) ([]string, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return tokens, nil
}
