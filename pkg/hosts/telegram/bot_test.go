package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/permission"
)

type sent struct {
	chatID  int64
	replyTo int
	text    string
}

type outbox struct {
	mu       sync.Mutex
	messages []sent
}

func (o *outbox) send(_ context.Context, chatID int64, replyTo int, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, sent{chatID, replyTo, text})
	return nil
}

func (o *outbox) all() []sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sent(nil), o.messages...)
}

func newTestBot(t *testing.T, cfg config.TelegramConfig) (*Bot, *outbox) {
	t.Helper()
	e := engine.New()
	b := newBot(e, cfg, nil)
	out := &outbox{}
	b.sendFunc = out.send
	b.registerFunc = func(context.Context, []telego.BotCommand) error { return nil }
	e.AddRegistrar(b)

	ctx := context.Background()
	_, err := e.Register(ctx, command.Named("greet", "Say hello").
		Argument(command.NewArgument("name", "who", command.String)).
		Property(command.GreedyLast()).
		Action("say", 0, func(_ context.Context, _ permission.Commander, args command.Args) (any, error) {
			return "Hello, " + command.Get[string](args, "name"), nil
		}))
	require.NoError(t, err)
	_, err = e.Register(ctx, command.Named("shutdown", "Stop everything").
		Requires(permission.Operator()).
		Action("stop", 0, func(_ context.Context, c permission.Commander, _ command.Args) (any, error) {
			return "bye " + c.Name(), nil
		}))
	require.NoError(t, err)
	_, err = e.Register(ctx, command.Named("debugdump", "Internal").Property(command.Hidden()))
	require.NoError(t, err)
	_, err = e.Register(ctx, command.Named("Mixed", "Upper case name"))
	require.NoError(t, err)
	return b, out
}

func message(text, username string, userID int64) telego.Message {
	return telego.Message{
		MessageID: 42,
		Chat:      telego.Chat{ID: 1001},
		From:      &telego.User{ID: userID, Username: username},
		Text:      text,
	}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/greet World", "greet World", true},
		{"/greet@DispatchBot  World ", "greet World", true},
		{"/greet@dispatchbot", "greet", true},
		{"/greet@OtherBot World", "", false},
		{"greet World", "", false},
		{"/", "", false},
		{"/@DispatchBot", "", false},
	}
	for _, tt := range tests {
		got, ok := commandLine(tt.text, "DispatchBot")
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestRegisterCommand_CollectsVisibleNames(t *testing.T) {
	b, _ := newTestBot(t, config.TelegramConfig{RegisterCommands: true})

	cmds := b.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "greet", cmds[0].Command)
	assert.Equal(t, "Say hello", cmds[0].Description)
	assert.Equal(t, "shutdown", cmds[1].Command)
}

func TestHandleMessage_RepliesToSender(t *testing.T) {
	b, out := newTestBot(t, config.TelegramConfig{})

	b.handleMessage(context.Background(), message("/greet Big World", "steve", 7))
	b.handleMessage(context.Background(), message("just chatting", "steve", 7))

	msgs := out.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1001), msgs[0].chatID)
	assert.Equal(t, 42, msgs[0].replyTo)
	assert.Equal(t, "Hello, Big World", msgs[0].text)
}

func TestHandleMessage_Operators(t *testing.T) {
	b, out := newTestBot(t, config.TelegramConfig{
		Operators: config.FlexibleStringSlice{"7", "@Alex"},
	})
	ctx := context.Background()

	b.handleMessage(ctx, message("/shutdown", "steve", 7))
	b.handleMessage(ctx, message("/shutdown", "alex", 8))
	b.handleMessage(ctx, message("/shutdown", "notch", 9))

	msgs := out.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, "bye steve", msgs[0].text)
	assert.Equal(t, "bye alex", msgs[1].text)
	assert.Contains(t, msgs[2].text, "permission")
}

func TestAnnounce_ReachesKnownChats(t *testing.T) {
	b, out := newTestBot(t, config.TelegramConfig{})
	b.handleMessage(context.Background(), message("/greet you", "steve", 7))

	b.Announce("Steve was kicked by alex")

	msgs := out.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, sent{chatID: 1001, text: "Steve was kicked by alex"}, msgs[1])
}

func TestStartCommandRegistration_DoesNotBlock(t *testing.T) {
	b := newBot(engine.New(), config.TelegramConfig{}, nil)
	started := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.registerFunc = func(context.Context, []telego.BotCommand) error {
		select {
		case started <- struct{}{}:
		default:
		}
		return errors.New("temporary failure")
	}

	b.startCommandRegistration(ctx, []telego.BotCommand{{Command: "help", Description: "Help"}})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("registration did not start asynchronously")
	}
}

func TestStartCommandRegistration_RetriesUntilSuccessThenStops(t *testing.T) {
	b := newBot(engine.New(), config.TelegramConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	origBackoff := commandRegistrationBackoff
	commandRegistrationBackoff = []time.Duration{5 * time.Millisecond}
	defer func() { commandRegistrationBackoff = origBackoff }()

	var attempts atomic.Int32
	b.registerFunc = func(context.Context, []telego.BotCommand) error {
		if attempts.Add(1) < 3 {
			return errors.New("temporary failure")
		}
		return nil
	}

	b.startCommandRegistration(ctx, []telego.BotCommand{{Command: "help", Description: "Help"}})

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stable := attempts.Load()
	time.Sleep(30 * time.Millisecond)
	if attempts.Load() != stable {
		t.Fatalf("expected retries to stop after success, got %d -> %d", stable, attempts.Load())
	}
}

func TestStartCommandRegistration_StopsAfterCancel(t *testing.T) {
	b := newBot(engine.New(), config.TelegramConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	origBackoff := commandRegistrationBackoff
	commandRegistrationBackoff = []time.Duration{5 * time.Millisecond}
	defer func() { commandRegistrationBackoff = origBackoff }()

	var attempts atomic.Int32
	b.registerFunc = func(context.Context, []telego.BotCommand) error {
		attempts.Add(1)
		return errors.New("still failing")
	}

	b.startCommandRegistration(ctx, []telego.BotCommand{{Command: "help", Description: "Help"}})
	require.Eventually(t, func() bool { return attempts.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	stable := attempts.Load()
	time.Sleep(30 * time.Millisecond)
	if attempts.Load() != stable {
		t.Fatalf("expected retries to stop after cancel, got %d -> %d", stable, attempts.Load())
	}
}

func TestHandleMessage_SplitsLongReplies(t *testing.T) {
	b, out := newTestBot(t, config.TelegramConfig{})
	long := strings.Repeat("a line of output\n", 400)
	_, err := b.engine.Register(context.Background(), command.Named("dump", "Print a lot").
		Action("dump", 0, func(context.Context, permission.Commander, command.Args) (any, error) {
			return long, nil
		}))
	require.NoError(t, err)

	b.handleMessage(context.Background(), message("/dump", "steve", 7))

	msgs := out.all()
	require.Greater(t, len(msgs), 1)
	var total int
	for _, m := range msgs {
		assert.LessOrEqual(t, len([]rune(m.text)), messageLimit)
		total += len(m.text)
	}
	assert.Greater(t, total, 6000)
}
