package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/tree"
)

// Help lists visible commands, or describes the command at the given path.
func Help(t *tree.Tree) *command.Builder {
	return command.Named("help", "List commands or describe one").
		Aliases("?").
		Argument(command.NewArgument("topic", "command path", command.String)).
		Property(command.IgnoreNonPresent()).
		Property(command.GreedyLast()).
		Action("help", 0, func(_ context.Context, _ permission.Commander, args command.Args) (any, error) {
			topic := strings.Fields(command.Get[string](args, "topic"))
			if len(topic) == 0 {
				return Overview(t), nil
			}
			node, ok := t.Lookup(topic...)
			if !ok || node.Command().Hidden() {
				return nil, fmt.Errorf("no help for %q", strings.Join(topic, " "))
			}
			return Describe(node), nil
		})
}

// Overview renders one line per visible root command.
func Overview(t *tree.Tree) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, n := range t.Roots() {
		cmd := n.Command()
		if cmd.Hidden() {
			continue
		}
		fmt.Fprintf(&b, "  %-28s %s\n", cmd.UsageLine(), cmd.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Describe renders a command with its aliases, arguments and subcommands.
func Describe(n *tree.Node) string {
	cmd := n.Command()
	var b strings.Builder
	prefix := strings.Join(n.Path()[:len(n.Path())-1], " ")
	usage := cmd.UsageLine()
	if prefix != "" {
		usage = prefix + " " + usage
	}
	fmt.Fprintf(&b, "%s\n  %s\n", usage, cmd.Description())
	if aliases := cmd.Aliases(); len(aliases) > 0 {
		fmt.Fprintf(&b, "Aliases: %s\n", strings.Join(aliases, ", "))
	}
	if tiers := cmd.Permissions(); len(tiers) > 0 {
		names := make([]string, 0, len(tiers))
		for _, t := range tiers {
			names = append(names, t.String())
		}
		fmt.Fprintf(&b, "Requires: %s\n", strings.Join(names, ", "))
	}
	for _, a := range cmd.Arguments() {
		fmt.Fprintf(&b, "  %-12s %-10s %s\n", a.Identifier(), a.TypeName(), a.Description())
	}
	for _, sub := range cmd.Subcommands() {
		if sub.Hidden() {
			continue
		}
		fmt.Fprintf(&b, "  %-23s %s\n", sub.UsageLine(), sub.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}
