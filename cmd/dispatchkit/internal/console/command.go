package console

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal"
	"github.com/sipeed/dispatchkit/pkg/hosts/console"
	"github.com/sipeed/dispatchkit/pkg/logger"
)

func NewConsoleCommand() *cobra.Command {
	var (
		line  string
		debug bool
	)

	cmd := &cobra.Command{
		Use:     "console",
		Aliases: []string{"c"},
		Short:   "Run commands from an interactive prompt",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return consoleCmd(cmd, line, debug)
		},
	}

	cmd.Flags().StringVarP(&line, "command", "c", "", "Run a single command line and exit")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func consoleCmd(cmd *cobra.Command, line string, debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
	}

	rt, err := internal.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	consoleCfg := cfg.Console
	consoleCfg.HistoryFile = cfg.ConsoleHistoryPath()
	host := console.New(rt.Engine, consoleCfg, nil)
	host.SetOutput(cmd.OutOrStdout())
	rt.Engine.AddRegistrar(host)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.RegisterBuiltins(ctx, host.Announce); err != nil {
		return err
	}

	if line != "" {
		host.Handle(ctx, line)
		host.Wait()
		return nil
	}

	go rt.Set.RunReminders(ctx, 0)
	return host.Run(ctx)
}
