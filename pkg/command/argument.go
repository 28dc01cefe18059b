package command

import (
	"fmt"

	"github.com/sipeed/dispatchkit/pkg/rule"
)

// Argument declares one positional runtime input.
type Argument struct {
	id          string
	description string
	typeName    string
	parse       func(string) (any, error)
	def         any
	rules       []rule.Rule
}

// NewArgument declares an argument whose default is the zero value of T.
func NewArgument[T any](id, description string, typ Type[T], rules ...rule.Rule) *Argument {
	var zero T
	return Optional(id, description, typ, zero, rules...)
}

// Optional declares an argument with an explicit default, used when the
// command tolerates a missing or unparseable token.
func Optional[T any](id, description string, typ Type[T], def T, rules ...rule.Rule) *Argument {
	a := &Argument{
		id:          id,
		description: description,
		def:         def,
		rules:       append([]rule.Rule(nil), rules...),
	}
	if typ != nil {
		a.typeName = typ.Name()
		a.parse = func(raw string) (any, error) {
			return typ.Parse(raw)
		}
	}
	return a
}

func (a *Argument) Identifier() string { return a.id }
func (a *Argument) Kind() Kind         { return KindArgument }
func (a *Argument) sealed()            {}

func (a *Argument) Description() string { return a.description }
func (a *Argument) TypeName() string    { return a.typeName }
func (a *Argument) Default() any        { return a.def }

func (a *Argument) Rules() []rule.Rule {
	return append([]rule.Rule(nil), a.rules...)
}

// Parse converts raw with the argument's type and then runs the rule chain
// on the typed candidate.
func (a *Argument) Parse(raw string) (any, error) {
	if a.parse == nil {
		return nil, fmt.Errorf("argument %q has no type", a.id)
	}
	candidate, err := a.parse(raw)
	if err != nil {
		return nil, fmt.Errorf("not a valid %s: %w", a.typeName, err)
	}
	return rule.Chain(a.rules, candidate)
}

// Value is one parsed argument handed to actions.
type Value struct {
	ID        string
	Raw       string
	Value     any
	Defaulted bool
}

// Args is the ordered list of parsed arguments of one dispatch. It is
// read-only once built.
type Args struct {
	values []Value
}

func NewArgs(values ...Value) Args {
	return Args{values: append([]Value(nil), values...)}
}

func (a Args) Len() int { return len(a.values) }

func (a Args) At(i int) Value { return a.values[i] }

func (a Args) Values() []Value {
	return append([]Value(nil), a.values...)
}

func (a Args) Lookup(id string) (Value, bool) {
	for _, v := range a.values {
		if v.ID == id {
			return v, true
		}
	}
	return Value{}, false
}

// Lookup returns the argument id as T.
func Lookup[T any](a Args, id string) (T, bool) {
	v, ok := a.Lookup(id)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.Value.(T)
	return t, ok
}

// Get returns the argument id as T, or the zero value.
func Get[T any](a Args, id string) T {
	t, _ := Lookup[T](a, id)
	return t
}
