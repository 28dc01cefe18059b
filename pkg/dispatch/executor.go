// Package dispatch runs a tokenized command line against a command tree:
// resolve, authorize, parse, execute and report.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/hooks"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/ratelimit"
	"github.com/sipeed/dispatchkit/pkg/tree"
)

type Executor struct {
	tree    *tree.Tree
	hooks   *hooks.HookRegistry
	limiter *ratelimit.Limiter
}

type Option func(*Executor)

// WithHooks fires before-dispatch and dispatched hooks from r.
func WithHooks(r *hooks.HookRegistry) Option {
	return func(e *Executor) { e.hooks = r }
}

// WithLimiter enforces rate-limit properties through l. Without a limiter
// the property is ignored.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Executor) { e.limiter = l }
}

func New(t *tree.Tree, opts ...Option) *Executor {
	e := &Executor{tree: t}
	for _, opt := range opts {
		opt(e)
	}
	if e.hooks == nil {
		e.hooks = hooks.NewHookRegistry()
	}
	return e
}

// Invocation is a dispatch that passed resolution, authorization and
// argument parsing and is ready to execute. It is private to one dispatch.
type Invocation struct {
	executor *Executor
	info     command.DispatchInfo
	tokens   []string
	match    tree.Match
	usage    string
	args     command.Args
	started  time.Time
}

func (inv *Invocation) Info() command.DispatchInfo { return inv.info }
func (inv *Invocation) Match() tree.Match          { return inv.match }
func (inv *Invocation) Command() *command.Verified { return inv.match.Node.Command() }
func (inv *Invocation) Args() command.Args         { return inv.args }
func (inv *Invocation) Usage() string              { return inv.usage }

// Async reports whether the host should run the invocation off its main
// loop.
func (inv *Invocation) Async() bool { return inv.Command().Async() }

// Dispatch prepares and runs info in one call.
func (e *Executor) Dispatch(ctx context.Context, info command.DispatchInfo) (*command.Capture, error) {
	inv, err := e.Prepare(ctx, info)
	if err != nil {
		return nil, err
	}
	return inv.Run(ctx)
}

// Prepare runs the resolve, authorize and parse stages. Every failure is
// terminal and no action runs.
func (e *Executor) Prepare(ctx context.Context, info command.DispatchInfo) (*Invocation, error) {
	started := time.Now()
	tokens := info.Tokens()

	before := &hooks.BeforeDispatchEvent{
		DispatchID: info.ID,
		Commander:  commanderName(info.Commander),
		Tokens:     tokens,
	}
	e.hooks.TriggerBeforeDispatch(ctx, before)
	if before.Cancel {
		err := &CancelledError{Reason: before.CancelReason}
		e.finish(ctx, info, tokens, "", nil, err, started)
		return nil, err
	}
	tokens = before.Tokens

	inv, err := e.prepare(info, tokens, started)
	if err != nil {
		pattern := ""
		if inv != nil {
			pattern = inv.match.Pattern()
		}
		logger.DebugCF("dispatch", "Dispatch rejected",
			map[string]any{
				"id":      info.ID,
				"line":    strings.Join(tokens, " "),
				"outcome": Outcome(err),
				"error":   err.Error(),
			})
		e.finish(ctx, info, tokens, pattern, nil, err, started)
		return nil, err
	}
	return inv, nil
}

// prepare returns the partial invocation alongside an error once resolution
// succeeded, so the caller can report the matched pattern.
func (e *Executor) prepare(info command.DispatchInfo, tokens []string, started time.Time) (*Invocation, error) {
	if len(tokens) == 0 || tokens[0] == "" {
		return nil, &NotFoundError{}
	}

	// RESOLVE
	match, err := e.tree.Resolve(tokens)
	if err != nil {
		return nil, &NotFoundError{Label: tokens[0]}
	}
	inv := &Invocation{
		executor: e,
		info:     info,
		tokens:   tokens,
		match:    match,
		started:  started,
	}
	cmd := match.Node.Command()
	pattern := match.Pattern()

	// AUTHORIZE
	ok, failed, err := permission.AuthorizeAll(cmd.Permissions(), info.Commander)
	if err != nil {
		return inv, fmt.Errorf("authorize %q: %w", pattern, err)
	}
	if !ok {
		return inv, &UnauthorizedError{Command: pattern, Commander: info.Commander.Name(), Tier: failed}
	}

	// PARSE
	inv.usage = usageLine(match)
	args, err := parseArguments(cmd, pattern, inv.usage, match.Remaining)
	if err != nil {
		return inv, err
	}
	inv.args = args

	if spec, limited := cmd.RateLimit(); limited && e.limiter != nil {
		key := ratelimit.Key(pattern, info.Commander.Name())
		if allowed, retry := e.limiter.Allow(key, spec.Every, spec.Burst); !allowed {
			return inv, &RateLimitedError{Command: pattern, Commander: info.Commander.Name(), RetryAfter: retry}
		}
	}

	return inv, nil
}

func usageLine(m tree.Match) string {
	line := m.Node.Command().UsageLine()
	if len(m.Path) > 1 {
		line = strings.Join(m.Path[:len(m.Path)-1], " ") + " " + line
	}
	return line
}

// Run executes the actions in ascending precedence and then fires every
// trigger whose predicate holds over the ordered results.
//
// A returned error is recorded as that action's failure and the next action
// still runs. A panic is recorded as a *FaultError; unless the command
// catches faults it also stops the remaining actions, skips the triggers
// and is returned together with the partial capture.
func (inv *Invocation) Run(ctx context.Context) (*command.Capture, error) {
	cmd := inv.Command()
	pattern := inv.match.Pattern()
	catch := cmd.Has(command.PropCatchFaults)
	capture := command.NewCapture()

	// EXECUTE
	for _, action := range cmd.Actions() {
		result, fault := runAction(ctx, action, inv.info.Commander, inv.args)
		if fault != nil {
			fault.Command = pattern
			fault.Capture = capture
			capture.Record(action.Identifier(), command.Failed(fault))
			logger.ErrorCF("dispatch", "Action panicked",
				map[string]any{
					"id":           inv.info.ID,
					"command":      pattern,
					"action":       action.Identifier(),
					"panic":        fmt.Sprintf("%v", fault.Value),
					"catch_faults": catch,
				})
			if !catch {
				inv.executor.finish(ctx, inv.info, inv.tokens, pattern, capture, fault, inv.started)
				return capture, fault
			}
			continue
		}
		capture.Record(action.Identifier(), result)
	}

	// REPORT
	results := capture.Results()
	for _, trigger := range cmd.Triggers() {
		if !trigger.Holds(results) {
			continue
		}
		fireTrigger(ctx, trigger, inv.info, capture)
	}

	inv.executor.finish(ctx, inv.info, inv.tokens, pattern, capture, nil, inv.started)
	return capture, nil
}

func runAction(ctx context.Context, a *command.Action, c permission.Commander, args command.Args) (result command.Result, fault *FaultError) {
	defer func() {
		if r := recover(); r != nil {
			logger.DebugCF("dispatch", "Recovered action panic",
				map[string]any{
					"action": a.Identifier(),
					"stack":  string(debug.Stack()),
				})
			fault = &FaultError{Action: a.Identifier(), Value: r}
		}
	}()
	return a.Run(ctx, c, args), nil
}

func fireTrigger(ctx context.Context, t *command.Trigger, info command.DispatchInfo, capture *command.Capture) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("dispatch", "Trigger panicked",
				map[string]any{
					"id":      info.ID,
					"trigger": t.Identifier(),
					"panic":   fmt.Sprintf("%v", r),
				})
		}
	}()
	t.Fire(ctx, info, capture)
}

func (e *Executor) finish(ctx context.Context, info command.DispatchInfo, tokens []string, pattern string, capture *command.Capture, err error, started time.Time) {
	event := &hooks.DispatchedEvent{
		DispatchID: info.ID,
		Commander:  commanderName(info.Commander),
		Tokens:     tokens,
		Pattern:    pattern,
		Outcome:    Outcome(err),
		Duration:   time.Since(started),
		At:         started,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if capture != nil {
		event.Actions = capture.Len()
		event.Failures = capture.Failures()
	}

	if err == nil {
		logger.InfoCF("dispatch", "Command dispatched",
			map[string]any{
				"id":        info.ID,
				"command":   pattern,
				"commander": event.Commander,
				"actions":   event.Actions,
				"failures":  len(event.Failures),
				"duration":  event.Duration.String(),
			})
	}
	e.hooks.TriggerDispatched(ctx, event)
}

func commanderName(c permission.Commander) string {
	if c == nil {
		return ""
	}
	return c.Name()
}
