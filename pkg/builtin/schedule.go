package builtin

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/permission"
	"github.com/sipeed/dispatchkit/pkg/rule"
)

// Reminder is a message repeated on a cron schedule.
type Reminder struct {
	ID      string
	Expr    string
	Message string
	Owner   string
	Next    time.Time
}

// Schedules stores reminders. Delivering them is left to the host.
type Schedules struct {
	mu        sync.Mutex
	reminders []Reminder
	now       func() time.Time
}

func NewSchedules() *Schedules {
	return &Schedules{now: time.Now}
}

func (s *Schedules) Add(expr, message, owner string) (Reminder, error) {
	next, err := gronx.NextTickAfter(expr, s.now(), false)
	if err != nil {
		return Reminder{}, fmt.Errorf("schedule %q: %w", expr, err)
	}
	r := Reminder{
		ID:      uuid.NewString()[:8],
		Expr:    expr,
		Message: message,
		Owner:   owner,
		Next:    next,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
	return r, nil
}

// List returns the reminders ordered by next run.
func (s *Schedules) List() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.reminders)
	slices.SortFunc(out, func(a, b Reminder) int { return a.Next.Compare(b.Next) })
	return out
}

// Due returns the reminders whose next run is not after now and advances
// each of them to its following tick.
func (s *Schedules) Due(now time.Time) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Reminder
	for i, r := range s.reminders {
		if r.Next.After(now) {
			continue
		}
		due = append(due, r)
		if next, err := gronx.NextTickAfter(r.Expr, now, false); err == nil {
			s.reminders[i].Next = next
		}
	}
	return due
}

// RunReminders announces due reminders every interval until ctx is done.
func (s *Set) RunReminders(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.deliverDue(now)
		}
	}
}

func (s *Set) deliverDue(now time.Time) int {
	due := s.Schedules.Due(now)
	for _, r := range due {
		s.Announce(fmt.Sprintf("Reminder from %s: %s", r.Owner, r.Message))
	}
	return len(due)
}

func (s *Set) Schedule() *command.Builder {
	return command.Named("schedule", "Repeat a message on a cron schedule").
		With(command.Usage(`schedule "<cron expr>" <message>`)).
		Argument(command.NewArgument("expr", "five-field cron expression", command.String,
			rule.TrimSpace(), rule.CronExpr())).
		Argument(command.NewArgument("message", "text to repeat", command.String, rule.NotBlank())).
		Property(command.GreedyLast()).
		Property(command.Async()).
		Action("schedule", 0, func(_ context.Context, c permission.Commander, args command.Args) (any, error) {
			r, err := s.Schedules.Add(command.Get[string](args, "expr"), command.Get[string](args, "message"), c.Name())
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Scheduled %s, next at %s.", r.ID, r.Next.Format(time.RFC1123)), nil
		}).
		Subcommand(command.Named("list", "Show scheduled messages").
			Action("list", 0, func(context.Context, permission.Commander, command.Args) (any, error) {
				reminders := s.Schedules.List()
				if len(reminders) == 0 {
					return "Nothing scheduled.", nil
				}
				lines := make([]string, 0, len(reminders))
				for _, r := range reminders {
					lines = append(lines, fmt.Sprintf("%s  %-15s %s", r.ID, r.Expr, r.Message))
				}
				return strings.Join(lines, "\n"), nil
			}))
}
