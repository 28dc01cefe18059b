package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/rule"
)

// Dice rolls one or more dice. Bad values fall back to a single d6.
func (s *Set) Dice() *command.Builder {
	return command.Named("roll", "Roll dice").
		Aliases("dice").
		Argument(command.Optional("sides", "sides per die", command.Int, 6, rule.Range(2, 100))).
		Argument(command.Optional("times", "number of dice", command.Int, 1, rule.Range(1, 10))).
		Property(command.IgnoreNonPresent()).
		Property(command.IgnoreNull()).
		Property(command.RateLimit(0, 0)).
		Action("roll", 0, func(_ context.Context, c permission.Commander, args command.Args) (any, error) {
			sides := command.Get[int](args, "sides")
			times := command.Get[int](args, "times")
			total := 0
			rolls := make([]string, 0, times)
			for i := 0; i < times; i++ {
				n := s.Roll(sides)
				total += n
				rolls = append(rolls, fmt.Sprint(n))
			}
			if times == 1 {
				return fmt.Sprintf("%s rolled %d (d%d).", c.Name(), total, sides), nil
			}
			return fmt.Sprintf("%s rolled %s = %d (%dd%d).", c.Name(), strings.Join(rolls, "+"), total, times, sides), nil
		})
}
