package builtin

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/rule"
)

const (
	PermBan    = "dispatchkit.admin.ban"
	PermPardon = "dispatchkit.admin.pardon"
)

var playerName = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// Ban is one entry of the ban list.
type Ban struct {
	Player string
	Reason string
	By     string
	At     time.Time
}

// BanList is safe for concurrent use.
type BanList struct {
	mu   sync.RWMutex
	bans map[string]Ban
}

func NewBanList() *BanList {
	return &BanList{bans: make(map[string]Ban)}
}

// Add returns false when player is already banned.
func (l *BanList) Add(b Ban) bool {
	key := strings.ToLower(b.Player)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bans[key]; ok {
		return false
	}
	l.bans[key] = b
	return true
}

func (l *BanList) Remove(player string) bool {
	key := strings.ToLower(player)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bans[key]; !ok {
		return false
	}
	delete(l.bans, key)
	return true
}

func (l *BanList) Banned(player string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.bans[strings.ToLower(player)]
	return ok
}

// List returns bans sorted by player.
func (l *BanList) List() []Ban {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Ban, 0, len(l.bans))
	for _, b := range l.bans {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Ban) int { return strings.Compare(a.Player, b.Player) })
	return out
}

// banned is the ban action's result. Hosts print it as the reply.
type banned string

func (b banned) String() string { return fmt.Sprintf("Banned %s.", string(b)) }

func playerArg() *command.Argument {
	return command.NewArgument("player", "player name", command.Word,
		rule.Matches(playerName))
}

// Admin is the admin command with ban, pardon and list subcommands.
func (s *Set) Admin() *command.Builder {
	ban := command.Named("ban", "Ban a player").
		Argument(playerArg()).
		Argument(command.Optional("reason", "why", command.String, "no reason given")).
		Property(command.IgnoreNonPresent()).
		Property(command.GreedyLast()).
		Requires(permission.Standard(PermBan)).
		Action("ban", 0, func(_ context.Context, c permission.Commander, args command.Args) (any, error) {
			player := command.Get[string](args, "player")
			if !s.Bans.Add(Ban{
				Player: player,
				Reason: command.Get[string](args, "reason"),
				By:     c.Name(),
				At:     time.Now(),
			}) {
				return nil, fmt.Errorf("%s is already banned", player)
			}
			return banned(player), nil
		}).
		Trigger(command.OnSuccess("announce-ban", func(_ context.Context, info command.DispatchInfo, capture *command.Capture) {
			r, ok := capture.Get("ban")
			if !ok {
				return
			}
			if player, ok := r.Value.(banned); ok {
				s.Announce(fmt.Sprintf("%s was banned by %s", string(player), info.Commander.Name()))
			}
		}))

	pardon := command.Named("pardon", "Lift a ban").
		Aliases("unban").
		Argument(playerArg()).
		Requires(permission.Standard(PermPardon)).
		Action("pardon", 0, func(_ context.Context, _ permission.Commander, args command.Args) (any, error) {
			player := command.Get[string](args, "player")
			if !s.Bans.Remove(player) {
				return nil, fmt.Errorf("%s is not banned", player)
			}
			return fmt.Sprintf("Pardoned %s.", player), nil
		})

	list := command.Named("list", "Show the ban list").
		Action("list", 0, func(context.Context, permission.Commander, command.Args) (any, error) {
			bans := s.Bans.List()
			if len(bans) == 0 {
				return "Nobody is banned.", nil
			}
			lines := make([]string, 0, len(bans))
			for _, b := range bans {
				lines = append(lines, fmt.Sprintf("%s (%s, by %s)", b.Player, b.Reason, b.By))
			}
			return strings.Join(lines, "\n"), nil
		})

	return command.Named("admin", "Administration tools").
		Action("usage", 0, func(context.Context, permission.Commander, command.Args) (any, error) {
			return "Usage: admin <ban|pardon|list>", nil
		}).
		Subcommand(ban).
		Subcommand(pardon).
		Subcommand(list)
}
