package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/sipeed/dispatchkit/pkg/permission"
)

// DispatchInfo is what a host hands to the core for one invocation.
type DispatchInfo struct {
	ID        string
	Commander permission.Commander
	Label     string
	Args      []string
}

// NewDispatchInfo builds dispatch information with a fresh ID.
func NewDispatchInfo(c permission.Commander, label string, args []string) DispatchInfo {
	return DispatchInfo{
		ID:        uuid.NewString(),
		Commander: c,
		Label:     label,
		Args:      append([]string(nil), args...),
	}
}

// Tokens returns the label followed by the raw arguments.
func (d DispatchInfo) Tokens() []string {
	tokens := make([]string, 0, len(d.Args)+1)
	tokens = append(tokens, d.Label)
	return append(tokens, d.Args...)
}

// Predicate decides from the ordered action results whether a trigger fires.
type Predicate func(results []Result) bool

// AllSucceeded holds when there was at least one action and none failed.
func AllSucceeded(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}

// AllFailed holds when there was at least one action and none succeeded.
func AllFailed(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.OK() {
			return false
		}
	}
	return true
}

func AnyFailed(results []Result) bool {
	for _, r := range results {
		if !r.OK() {
			return true
		}
	}
	return false
}

func Always([]Result) bool { return true }

type TriggerFunc func(ctx context.Context, info DispatchInfo, capture *Capture)

// Trigger fires once per dispatch, after every action has run, when its
// predicate holds.
type Trigger struct {
	id   string
	when Predicate
	fire TriggerFunc
}

func NewTrigger(id string, when Predicate, fire TriggerFunc) *Trigger {
	return &Trigger{id: id, when: when, fire: fire}
}

func OnSuccess(id string, fire TriggerFunc) *Trigger {
	return NewTrigger(id, AllSucceeded, fire)
}

func OnFailure(id string, fire TriggerFunc) *Trigger {
	return NewTrigger(id, AllFailed, fire)
}

func (t *Trigger) Identifier() string { return t.id }
func (t *Trigger) Kind() Kind         { return KindTrigger }
func (t *Trigger) sealed()            {}

// Holds evaluates the predicate against the ordered action results.
func (t *Trigger) Holds(results []Result) bool {
	return t.when(results)
}

func (t *Trigger) Fire(ctx context.Context, info DispatchInfo, capture *Capture) {
	t.fire(ctx, info, capture)
}
