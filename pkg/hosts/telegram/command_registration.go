package telegram

import (
	"context"
	"regexp"
	"time"

	"github.com/mymmrac/telego"

	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/tree"
)

var commandRegistrationBackoff = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	10 * time.Minute,
}

// Telegram accepts 1-32 lowercase letters, digits and underscores.
var botCommandName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

const maxDescription = 256

func (b *Bot) Name() string { return "telegram" }

// RegisterCommand adds a root command to the bot's command menu. Hidden
// commands and names Telegram cannot show are skipped.
func (b *Bot) RegisterCommand(_ context.Context, node *tree.Node) error {
	cmd := node.Command()
	if cmd.Hidden() || !botCommandName.MatchString(cmd.Name()) {
		logger.DebugCF("telegram", "Command not added to bot menu", map[string]any{
			"command": cmd.Name(),
		})
		return nil
	}

	desc := []rune(cmd.Description())
	if len(desc) > maxDescription {
		desc = desc[:maxDescription]
	}

	b.mu.Lock()
	b.commands = append(b.commands, telego.BotCommand{
		Command:     cmd.Name(),
		Description: string(desc),
	})
	b.mu.Unlock()

	b.scheduleRegistration()
	return nil
}

// Commands returns the menu entries collected so far.
func (b *Bot) Commands() []telego.BotCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]telego.BotCommand(nil), b.commands...)
}

// RegisterCommands replaces the bot's command menu.
func (b *Bot) RegisterCommands(ctx context.Context, cmds []telego.BotCommand) error {
	return b.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: cmds,
	})
}

// scheduleRegistration pushes the current menu once the bot is running.
// A newer schedule replaces a pending one.
func (b *Bot) scheduleRegistration() {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	b.mu.Lock()
	if !b.running || !b.cfg.RegisterCommands || len(b.commands) == 0 {
		b.mu.Unlock()
		return
	}
	if b.commandRegCancel != nil {
		b.commandRegCancel()
	}
	ctx := b.runCtx
	cmds := append([]telego.BotCommand(nil), b.commands...)
	b.mu.Unlock()

	b.startCommandRegistration(ctx, cmds)
}

func (b *Bot) startCommandRegistration(ctx context.Context, cmds []telego.BotCommand) {
	if len(cmds) == 0 {
		return
	}

	register := b.registerFunc
	if register == nil {
		register = b.RegisterCommands
	}

	regCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.commandRegCancel = cancel
	b.mu.Unlock()

	go func() {
		attempt := 0
		for {
			err := register(regCtx, cmds)
			if err == nil {
				logger.InfoCF("telegram", "Telegram commands registered", map[string]any{
					"count": len(cmds),
				})
				return
			}
			if regCtx.Err() != nil {
				return
			}

			delay := commandRegistrationBackoff[min(attempt, len(commandRegistrationBackoff)-1)]
			logger.WarnCF("telegram", "Telegram command registration failed; will retry", map[string]any{
				"error":       err.Error(),
				"retry_after": delay.String(),
			})
			attempt++

			select {
			case <-regCtx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}
