package command

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/sipeed/dispatchkit/pkg/permission"
)

// ErrValidation is the sentinel behind every structural validation error.
var ErrValidation = errors.New("structural validation failed")

type Reason string

const (
	ReasonDefinitionMissing   Reason = "definition-missing"
	ReasonDuplicateIdentifier Reason = "duplicate-identifier"
	ReasonDuplicateSubcommand Reason = "duplicate-subcommand"
	ReasonMalformed           Reason = "malformed"
)

// ValidationError reports why a builder could not be verified.
type ValidationError struct {
	Command    string
	Reason     Reason
	Identifier string
	Detail     string
}

func (e *ValidationError) Error() string {
	cmd := e.Command
	if cmd == "" {
		cmd = "<unnamed>"
	}
	msg := fmt.Sprintf("command %q: %s", cmd, e.Reason)
	if e.Identifier != "" {
		msg += fmt.Sprintf(" %q", e.Identifier)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Verified is the immutable, validated form of a command. Its buffers are
// separated by attribute kind; actions are sorted by precedence.
type Verified struct {
	name        string
	description string
	usage       string
	aliases     []string
	actions     []*Action
	arguments   []*Argument
	definitions []*Definition
	properties  []*Property
	permissions []permission.Tier
	triggers    []*Trigger
	subcommands []*Verified
}

func (v *Verified) Name() string        { return v.name }
func (v *Verified) Description() string { return v.description }

func (v *Verified) Aliases() []string { return slices.Clone(v.aliases) }

// Labels returns the name followed by every alias.
func (v *Verified) Labels() []string {
	return append([]string{v.name}, v.aliases...)
}

// Matches reports whether label is the command's name or one of its aliases.
func (v *Verified) Matches(label string) bool {
	return label == v.name || slices.Contains(v.aliases, label)
}

func (v *Verified) Actions() []*Action             { return slices.Clone(v.actions) }
func (v *Verified) Arguments() []*Argument         { return slices.Clone(v.arguments) }
func (v *Verified) Definitions() []*Definition     { return slices.Clone(v.definitions) }
func (v *Verified) Properties() []*Property        { return slices.Clone(v.properties) }
func (v *Verified) Permissions() []permission.Tier { return slices.Clone(v.permissions) }
func (v *Verified) Triggers() []*Trigger           { return slices.Clone(v.triggers) }
func (v *Verified) Subcommands() []*Verified       { return slices.Clone(v.subcommands) }

func (v *Verified) Property(key PropertyKey) (*Property, bool) {
	for _, p := range v.properties {
		if p.key == key {
			return p, true
		}
	}
	return nil, false
}

func (v *Verified) Has(key PropertyKey) bool {
	_, ok := v.Property(key)
	return ok
}

func (v *Verified) Async() bool  { return v.Has(PropAsync) }
func (v *Verified) Hidden() bool { return v.Has(PropHidden) }

// RateLimit returns the declared rate limit, if the property is present.
func (v *Verified) RateLimit() (RateLimitSpec, bool) {
	p, ok := v.Property(PropRateLimit)
	if !ok {
		return RateLimitSpec{}, false
	}
	spec, _ := p.value.(RateLimitSpec)
	return spec, true
}

// UsageLine is the declared usage, or one generated from the arguments and
// subcommands.
func (v *Verified) UsageLine() string {
	if v.usage != "" {
		return v.usage
	}
	parts := []string{v.name}
	optional := v.Has(PropIgnoreNonPresent)
	for _, a := range v.arguments {
		if optional {
			parts = append(parts, "["+a.id+"]")
		} else {
			parts = append(parts, "<"+a.id+">")
		}
	}
	if len(v.subcommands) > 0 {
		names := make([]string, 0, len(v.subcommands))
		for _, s := range v.subcommands {
			names = append(names, s.name)
		}
		parts = append(parts, "<"+strings.Join(names, "|")+">")
	}
	return strings.Join(parts, " ")
}

// Verify checks b against the structural invariants and compiles it, and
// every nested subcommand, into a Verified command. Nothing is returned
// unless the whole subtree is valid.
func Verify(b *Builder) (*Verified, error) {
	if b == nil {
		return nil, &ValidationError{Reason: ReasonMalformed, Detail: "nil builder"}
	}

	v := &Verified{}
	name := b.Name()
	fail := func(reason Reason, id, detail string) (*Verified, error) {
		return nil, &ValidationError{Command: name, Reason: reason, Identifier: id, Detail: detail}
	}

	var (
		names, descriptions int
		executables         = make(map[string]Kind)
		subBuilders         []*Builder
	)

	for i, attr := range b.attrs {
		if isNilAttribute(attr) {
			return fail(ReasonMalformed, "", fmt.Sprintf("attribute %d is nil", i))
		}
		id := attr.Identifier()
		if strings.TrimSpace(id) == "" {
			return fail(ReasonMalformed, "", fmt.Sprintf("%s attribute %d has a blank identifier", attr.Kind(), i))
		}

		switch attr.Kind() {
		case KindDefinition:
			d := attr.(*Definition)
			switch d.role {
			case RoleName:
				names++
				if names > 1 {
					return fail(ReasonDuplicateIdentifier, "name", "more than one name definition")
				}
				if strings.TrimSpace(d.value) == "" {
					return fail(ReasonMalformed, "name", "name must not be blank")
				}
				if strings.ContainsAny(d.value, " \t\n") {
					return fail(ReasonMalformed, "name", "name must be a single token")
				}
				v.name = d.value
			case RoleDescription:
				descriptions++
				if descriptions > 1 {
					return fail(ReasonDuplicateIdentifier, "description", "more than one description definition")
				}
				if strings.TrimSpace(d.value) == "" {
					return fail(ReasonMalformed, "description", "description must not be blank")
				}
				v.description = d.value
			case RoleAlias:
				if strings.TrimSpace(d.value) == "" || strings.ContainsAny(d.value, " \t\n") {
					return fail(ReasonMalformed, id, "alias must be a single non-blank token")
				}
				if slices.Contains(v.aliases, d.value) {
					return fail(ReasonDuplicateIdentifier, id, "alias declared twice")
				}
				v.aliases = append(v.aliases, d.value)
			case RoleUsage:
				v.usage = d.value
			case RoleSubcommand:
				if d.sub == nil {
					return fail(ReasonMalformed, id, "subcommand without builder")
				}
				subBuilders = append(subBuilders, d.sub)
			}
			v.definitions = append(v.definitions, d)

		case KindArgument:
			a := attr.(*Argument)
			if prev, dup := executables[id]; dup {
				return fail(ReasonDuplicateIdentifier, id, "already used by an "+prev.String())
			}
			if a.parse == nil {
				return fail(ReasonMalformed, id, "argument has no type")
			}
			executables[id] = KindArgument
			v.arguments = append(v.arguments, a)

		case KindAction:
			a := attr.(*Action)
			if prev, dup := executables[id]; dup {
				return fail(ReasonDuplicateIdentifier, id, "already used by an "+prev.String())
			}
			if a.precedence < 0 {
				return fail(ReasonMalformed, id, "precedence must not be negative")
			}
			if a.run == nil {
				return fail(ReasonMalformed, id, "action has no function")
			}
			executables[id] = KindAction
			v.actions = append(v.actions, a)

		case KindProperty:
			p := attr.(*Property)
			if !v.Has(p.key) {
				v.properties = append(v.properties, p)
			}

		case KindPermission:
			p := attr.(*Permission)
			v.permissions = append(v.permissions, p.tier)

		case KindTrigger:
			t := attr.(*Trigger)
			if t.when == nil || t.fire == nil {
				return fail(ReasonMalformed, id, "trigger needs a predicate and a callback")
			}
			v.triggers = append(v.triggers, t)

		default:
			return fail(ReasonMalformed, id, "unknown attribute kind "+attr.Kind().String())
		}
	}

	if names == 0 {
		return fail(ReasonDefinitionMissing, "name", "")
	}
	if descriptions == 0 {
		return fail(ReasonDefinitionMissing, "description", "")
	}

	v.permissions = permission.Dedupe(v.permissions)

	sort.SliceStable(v.actions, func(i, j int) bool {
		return v.actions[i].precedence < v.actions[j].precedence
	})

	taken := make(map[string]string)
	for _, sb := range subBuilders {
		sub, err := Verify(sb)
		if err != nil {
			return nil, fmt.Errorf("subcommand of %q: %w", name, err)
		}
		for _, label := range sub.Labels() {
			if owner, dup := taken[label]; dup {
				return fail(ReasonDuplicateSubcommand, label, fmt.Sprintf("already used by subcommand %q", owner))
			}
			taken[label] = sub.name
		}
		v.subcommands = append(v.subcommands, sub)
	}

	return v, nil
}

// isNilAttribute also catches typed nil pointers stored in the interface.
func isNilAttribute(attr Attribute) bool {
	switch a := attr.(type) {
	case nil:
		return true
	case *Argument:
		return a == nil
	case *Action:
		return a == nil
	case *Trigger:
		return a == nil
	case *Property:
		return a == nil
	case *Definition:
		return a == nil
	case *Permission:
		return a == nil
	}
	return false
}
