// Package console runs commands typed into an interactive terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/hosts"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/tree"
)

type Console struct {
	engine *engine.Engine
	cfg    config.ConsoleConfig
	user   *hosts.User

	mu  sync.Mutex // serializes output from async commands
	out io.Writer

	ok   *color.Color
	fail *color.Color

	completer atomic.Pointer[readline.PrefixCompleter]
	pending   sync.WaitGroup
}

// New creates a console acting as user. The console user is an operator
// with every permission unless the caller passes another one.
func New(e *engine.Engine, cfg config.ConsoleConfig, user *hosts.User) *Console {
	if user == nil {
		user = hosts.NewUser(cfg.Name, true, "*")
	}
	c := &Console{
		engine: e,
		cfg:    cfg,
		user:   user,
		out:    os.Stdout,
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
	}
	if !cfg.Color {
		c.ok.DisableColor()
		c.fail.DisableColor()
	}
	c.refreshCompleter()
	return c
}

// SetOutput redirects replies, for tests and embedding.
func (c *Console) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

func (c *Console) Name() string { return "console" }

// RegisterCommand refreshes tab completion for a new root command.
func (c *Console) RegisterCommand(_ context.Context, node *tree.Node) error {
	c.refreshCompleter()
	logger.DebugCF("console", "Completion updated",
		map[string]any{"command": node.Command().Name()})
	return nil
}

func (c *Console) refreshCompleter() {
	c.completer.Store(Completer(c.engine.Tree()))
}

// Do implements readline.AutoCompleter over the current command tree.
func (c *Console) Do(line []rune, pos int) ([][]rune, int) {
	return c.completer.Load().Do(line, pos)
}

// Completer builds a prefix completer from every visible command.
func Completer(t *tree.Tree) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, root := range t.Roots() {
		if root.Command().Hidden() {
			continue
		}
		items = append(items, completerItems(t, root)...)
	}
	return readline.NewPrefixCompleter(items...)
}

func completerItems(t *tree.Tree, n *tree.Node) []readline.PrefixCompleterInterface {
	var children []readline.PrefixCompleterInterface
	for _, child := range t.Children(n) {
		if child.Command().Hidden() {
			continue
		}
		children = append(children, completerItems(t, child)...)
	}
	var items []readline.PrefixCompleterInterface
	for _, label := range n.Command().Labels() {
		items = append(items, readline.PcItem(label, children...))
	}
	return items
}

// Handle dispatches one line and prints the reply. Async commands print
// when they finish.
func (c *Console) Handle(ctx context.Context, line string) {
	c.pending.Add(1)
	hosts.Execute(ctx, c.engine, c.user, line, func(lines []hosts.Line) {
		defer c.pending.Done()
		c.print(lines)
	})
}

// Announce prints a broadcast message.
func (c *Console) Announce(text string) {
	c.print([]hosts.Line{{OK: true, Text: text}})
}

// Wait blocks until every async command has replied.
func (c *Console) Wait() {
	c.pending.Wait()
}

func (c *Console) print(lines []hosts.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		if l.OK {
			c.ok.Fprintln(c.out, l.Text)
		} else {
			c.fail.Fprintln(c.out, l.Text)
		}
	}
}

// Run reads lines until EOF, interrupt, exit or ctx is done. HistoryFile is
// used as given, so callers expand "~" first.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.cfg.Prompt,
		HistoryFile:     c.cfg.HistoryFile,
		HistoryLimit:    500,
		AutoComplete:    c,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		logger.WarnCF("console", "Readline unavailable, falling back to plain input",
			map[string]any{"error": err.Error()})
		return c.Serve(ctx, os.Stdin)
	}
	defer rl.Close()

	logger.SetOutput(rl.Stderr())
	defer logger.SetOutput(os.Stderr)

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				c.Wait()
				return nil
			}
			return fmt.Errorf("console: %w", err)
		}
		if done := c.dispatch(ctx, line); done {
			c.Wait()
			return nil
		}
	}
}

// Serve reads lines from r without line editing.
func (c *Console) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if done := c.dispatch(ctx, scanner.Text()); done {
			break
		}
	}
	c.Wait()
	return scanner.Err()
}

func (c *Console) dispatch(ctx context.Context, line string) (exit bool) {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return false
	case "exit", "quit":
		return true
	}
	c.Handle(ctx, input)
	return false
}
