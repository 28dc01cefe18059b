// Package hosts holds what every host adapter shares: a generic commander,
// async-aware execution and reply rendering.
package hosts

import (
	"context"
	"fmt"
	"strings"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/logger"
)

// User is a commander built from host configuration.
type User struct {
	ID          string
	Operator    bool
	Permissions map[string]bool
}

func NewUser(id string, operator bool, permissions ...string) *User {
	u := &User{ID: id, Operator: operator, Permissions: make(map[string]bool, len(permissions))}
	for _, p := range permissions {
		u.Permissions[p] = true
	}
	return u
}

func (u *User) Name() string                   { return u.ID }
func (u *User) IsOperator() bool               { return u.Operator }
func (u *User) HasPermission(node string) bool { return u.Permissions[node] || u.Permissions["*"] }

// Line is one rendered reply line.
type Line struct {
	OK   bool
	Text string
}

// Render turns a dispatch outcome into reply lines: one per action result
// that produced a value or failed, or the feedback message of err.
func Render(e *engine.Engine, capture *command.Capture, err error) []Line {
	var lines []Line
	if capture != nil {
		for _, id := range capture.IDs() {
			r, _ := capture.Get(id)
			switch {
			case !r.OK():
				lines = append(lines, Line{Text: r.Err.Error()})
			case r.Value != nil:
				lines = append(lines, Line{OK: true, Text: fmt.Sprint(r.Value)})
			}
		}
	}
	if err != nil {
		lines = append(lines, Line{Text: e.Describe(err)})
	}
	return lines
}

// Text joins rendered lines.
func Text(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, "\n")
}

// Execute prepares line and runs it. Async commands run on their own
// goroutine and Execute returns at once; reply is called exactly once with
// the outcome either way.
func Execute(ctx context.Context, e *engine.Engine, c *User, line string, reply func([]Line)) {
	inv, err := e.Prepare(ctx, c, line)
	if err != nil {
		reply(Render(e, nil, err))
		return
	}

	run := func() {
		capture, err := inv.Run(ctx)
		reply(Render(e, capture, err))
	}
	if inv.Async() {
		logger.DebugCF("hosts", "Running command off the main loop",
			map[string]any{"command": inv.Match().Pattern(), "commander": c.Name()})
		go run()
		return
	}
	run()
}
