package builtin

import (
	"context"
	"fmt"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/permission"
)

func (s *Set) Kick() *command.Builder {
	return command.Named("kick", "Kick a player").
		Aliases("k").
		Argument(playerArg()).
		Requires(permission.Operator()).
		Action("kick", 0, func(_ context.Context, _ permission.Commander, args command.Args) (any, error) {
			return fmt.Sprintf("Kicked %s.", command.Get[string](args, "player")), nil
		}).
		Trigger(command.OnSuccess("announce-kick", func(_ context.Context, info command.DispatchInfo, _ *command.Capture) {
			s.Announce(fmt.Sprintf("%s was kicked by %s", info.Args[0], info.Commander.Name()))
		}))
}
