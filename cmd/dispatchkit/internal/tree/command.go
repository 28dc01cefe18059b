package tree

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal"
	"github.com/sipeed/dispatchkit/pkg/config"
	cmdtree "github.com/sipeed/dispatchkit/pkg/tree"
)

func NewTreeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the registered command tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultConfig()
			cfg.History.Enabled = false

			rt, err := internal.NewRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.RegisterBuiltins(context.Background()); err != nil {
				return err
			}

			printTree(cmd.OutOrStdout(), rt.Engine.Tree(), all)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include hidden commands")

	return cmd
}

func printTree(w io.Writer, t *cmdtree.Tree, all bool) {
	t.Walk(func(n *cmdtree.Node, depth int) bool {
		cmd := n.Command()
		if cmd.Hidden() && !all {
			return false
		}
		label := cmd.Name()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			label += " (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "%s%-*s %s\n", strings.Repeat("  ", depth), 24-2*depth, label, cmd.Description())
		return true
	})
}
