// Package builtin provides the demo command set shipped with the
// dispatchkit binary.
package builtin

import (
	"context"
	"math/rand/v2"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/engine"
)

// Announcer broadcasts a message to everyone connected to a host.
type Announcer func(msg string)

// Set holds the state shared by the demo commands.
type Set struct {
	Bans      *BanList
	Schedules *Schedules
	Announce  Announcer
	// Roll returns a number in [1, n].
	Roll func(n int) int
}

func NewSet() *Set {
	return &Set{
		Bans:      NewBanList(),
		Schedules: NewSchedules(),
		Announce:  func(string) {},
		Roll:      func(n int) int { return rand.IntN(n) + 1 },
	}
}

// Builders returns every demo command. help needs the engine's tree.
func (s *Set) Builders(e *engine.Engine) []*command.Builder {
	return []*command.Builder{
		Help(e.Tree()),
		Greet(),
		s.Admin(),
		s.Kick(),
		s.Dice(),
		s.Schedule(),
	}
}

// Register adds every demo command to e.
func (s *Set) Register(ctx context.Context, e *engine.Engine) error {
	return e.RegisterAll(ctx, s.Builders(e)...)
}
