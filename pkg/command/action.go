package command

import (
	"context"

	"github.com/sipeed/dispatchkit/pkg/permission"
)

// ActionFunc runs one action. The commander and args are read-only inputs;
// the returned value is recorded on success.
type ActionFunc func(ctx context.Context, c permission.Commander, args Args) (any, error)

// Action is an executable step of a command. Lower precedence runs first;
// ties keep declaration order.
type Action struct {
	id         string
	precedence int
	run        ActionFunc
}

func NewAction(id string, precedence int, run ActionFunc) *Action {
	return &Action{id: id, precedence: precedence, run: run}
}

func (a *Action) Identifier() string { return a.id }
func (a *Action) Kind() Kind         { return KindAction }
func (a *Action) sealed()            {}

func (a *Action) Precedence() int { return a.precedence }

// Run calls the action function and wraps its outcome. Panics are left to
// the caller, which decides whether they abort the dispatch.
func (a *Action) Run(ctx context.Context, c permission.Commander, args Args) Result {
	v, err := a.run(ctx, c, args)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(v)
}

type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Result is the outcome of one action.
type Result struct {
	Status Status
	Value  any
	Err    error
}

func Succeeded(v any) Result { return Result{Status: StatusSuccess, Value: v} }

func Failed(err error) Result { return Result{Status: StatusFailure, Err: err} }

func (r Result) OK() bool { return r.Status == StatusSuccess }
