// Package telegram serves the command engine as a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"

	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/hosts"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/utils"
)

// Telegram rejects messages over 4096 characters.
const messageLimit = 4000

type Bot struct {
	engine *engine.Engine
	cfg    config.TelegramConfig
	bot    *telego.Bot

	mu       sync.Mutex
	commands []telego.BotCommand
	chats    map[int64]struct{}
	running  bool
	runCtx   context.Context

	regMu            sync.Mutex
	commandRegCancel context.CancelFunc
	registerFunc     func(context.Context, []telego.BotCommand) error
	sendFunc         func(ctx context.Context, chatID int64, replyTo int, text string) error
}

func New(e *engine.Engine, cfg config.TelegramConfig) (*Bot, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return newBot(e, cfg, bot), nil
}

func newBot(e *engine.Engine, cfg config.TelegramConfig, bot *telego.Bot) *Bot {
	return &Bot{
		engine: e,
		cfg:    cfg,
		bot:    bot,
		chats:  make(map[int64]struct{}),
	}
}

func (b *Bot) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	updates, err := b.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	b.mu.Lock()
	b.running = true
	b.runCtx = ctx
	b.mu.Unlock()

	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": b.bot.Username(),
	})

	b.scheduleRegistration()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					return
				}
				if update.Message != nil {
					b.handleMessage(ctx, *update.Message)
				}
			}
		}
	}()

	return nil
}

func (b *Bot) Stop(context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot...")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	if b.commandRegCancel != nil {
		b.commandRegCancel()
		b.commandRegCancel = nil
	}
	return nil
}

// Announce posts text to every chat that has sent the bot a command.
func (b *Bot) Announce(text string) {
	b.mu.Lock()
	chats := make([]int64, 0, len(b.chats))
	for id := range b.chats {
		chats = append(chats, id)
	}
	ctx := b.runCtx
	b.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, id := range chats {
		if err := b.send(ctx, id, 0, text); err != nil {
			logger.WarnCF("telegram", "Announcement not delivered", map[string]any{
				"chat_id": id,
				"error":   err.Error(),
			})
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message telego.Message) {
	username := ""
	if b.bot != nil {
		username = b.bot.Username()
	}
	line, ok := commandLine(message.Text, username)
	if !ok || message.From == nil {
		return
	}

	b.mu.Lock()
	b.chats[message.Chat.ID] = struct{}{}
	b.mu.Unlock()

	user := b.commander(message.From)
	logger.DebugCF("telegram", "Received command", map[string]any{
		"chat_id":   message.Chat.ID,
		"commander": user.Name(),
		"line":      line,
	})

	chatID, messageID := message.Chat.ID, message.MessageID
	hosts.Execute(ctx, b.engine, user, line, func(lines []hosts.Line) {
		for _, chunk := range utils.ChunkLines(hosts.Text(lines), messageLimit) {
			if err := b.send(ctx, chatID, messageID, chunk); err != nil {
				logger.ErrorCF("telegram", "Failed to send reply", map[string]any{
					"chat_id": chatID,
					"error":   err.Error(),
				})
				return
			}
		}
	})
}

// commander maps a Telegram user to a commander. Operators are matched by
// numeric ID or by username.
func (b *Bot) commander(from *telego.User) *hosts.User {
	id := strconv.FormatInt(from.ID, 10)
	operator := slices.Contains(b.cfg.Operators, id) ||
		(from.Username != "" && slices.ContainsFunc(b.cfg.Operators, func(op string) bool {
			return strings.EqualFold(strings.TrimPrefix(op, "@"), from.Username)
		}))

	name := id
	if from.Username != "" {
		name = from.Username
	}
	return hosts.NewUser(name, operator, b.cfg.Permissions...)
}

func (b *Bot) send(ctx context.Context, chatID int64, replyTo int, text string) error {
	if b.sendFunc != nil {
		return b.sendFunc(ctx, chatID, replyTo, text)
	}
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}
	_, err := b.bot.SendMessage(ctx, params)
	return err
}

// commandLine turns "/ban@MyBot Steve" into "ban Steve". Messages that are
// not commands, or are addressed to another bot, are rejected.
func commandLine(text, botUsername string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if name, target, found := strings.Cut(head, "@"); found {
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return "", false
		}
		head = name
	}
	if head == "" {
		return "", false
	}
	if rest = strings.TrimSpace(rest); rest != "" {
		return head + " " + rest, true
	}
	return head, true
}
