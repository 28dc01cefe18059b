package builtin

import (
	"context"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/rule"
)

func Greet() *command.Builder {
	return command.Named("greet", "Say hello").
		Aliases("hi", "hello").
		Argument(command.NewArgument("name", "who to greet", command.String,
			rule.TrimSpace(), rule.NotBlank(), rule.MaxLength(64))).
		Property(command.GreedyLast()).
		Action("greet", 0, func(_ context.Context, _ permission.Commander, args command.Args) (any, error) {
			return "Hello, " + command.Get[string](args, "name") + "!", nil
		})
}
