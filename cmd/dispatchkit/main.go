// DispatchKit - command definition and dispatch engine
// License: MIT
//
// Copyright (c) 2026 DispatchKit contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal"
	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal/console"
	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal/history"
	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal/serve"
	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal/tree"
	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal/version"
)

func NewDispatchKitCommand() *cobra.Command {
	short := fmt.Sprintf("%s dispatchkit - command definition and dispatch engine v%s", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:           "dispatchkit",
		Short:         short,
		Example:       "dispatchkit console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&internal.ConfigPathOverride, "config", "", "Path to config.json")

	cmd.AddCommand(
		console.NewConsoleCommand(),
		serve.NewServeCommand(),
		tree.NewTreeCommand(),
		history.NewHistoryCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewDispatchKitCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
