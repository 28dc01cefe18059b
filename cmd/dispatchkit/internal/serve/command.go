package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/dispatchkit/cmd/dispatchkit/internal"
	"github.com/sipeed/dispatchkit/pkg/builtin"
	"github.com/sipeed/dispatchkit/pkg/hosts/telegram"
	"github.com/sipeed/dispatchkit/pkg/hosts/websocket"
	"github.com/sipeed/dispatchkit/pkg/logger"
)

// Rate limit buckets idle this long are dropped.
const bucketIdle = 10 * time.Minute

func NewServeCommand() *cobra.Command {
	var (
		debug            bool
		noTelegram       bool
		reminderInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Serve commands over WebSocket and Telegram",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serveCmd(debug, noTelegram, reminderInterval)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noTelegram, "no-telegram", false, "Do not start the Telegram bot even if enabled")
	cmd.Flags().DurationVar(&reminderInterval, "reminder-interval", time.Minute, "How often scheduled reminders are checked")

	return cmd
}

func serveCmd(debug, noTelegram bool, reminderInterval time.Duration) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws := websocket.New(rt.Engine, cfg.WebSocket)
	announcers := []builtin.Announcer{ws.Announce}

	var bot *telegram.Bot
	if cfg.Telegram.Enabled && !noTelegram {
		bot, err = telegram.New(rt.Engine, cfg.Telegram)
		if err != nil {
			return err
		}
		rt.Engine.AddRegistrar(bot)
		announcers = append(announcers, bot.Announce)
	}

	if err := rt.RegisterBuiltins(ctx, announcers...); err != nil {
		return err
	}

	if err := ws.Start(ctx); err != nil {
		return fmt.Errorf("start websocket: %w", err)
	}
	if bot != nil {
		if err := bot.Start(ctx); err != nil {
			return fmt.Errorf("start telegram: %w", err)
		}
	}

	go rt.Set.RunReminders(ctx, reminderInterval)
	go rt.Engine.Limiter().RunCleanup(ctx, time.Minute, bucketIdle)

	fmt.Printf("%s dispatchkit serving on ws://%s:%d%s\n", internal.Logo, cfg.WebSocket.Host, cfg.WebSocket.Port, cfg.WebSocket.Path)
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()
	fmt.Println("\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if bot != nil {
		_ = bot.Stop(shutdownCtx)
	}
	return ws.Stop(shutdownCtx)
}
