// Package permission resolves permission tiers against a commander, the
// entity issuing a command.
package permission

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a tier is checked against a nil commander.
var ErrInvalidInput = errors.New("permission: invalid input")

// Commander is the host-provided view of whoever issued a command.
type Commander interface {
	Name() string
	HasPermission(node string) bool
	IsOperator() bool
}

// Family groups tiers by how they are resolved.
type Family int

const (
	FamilyGlobal Family = iota
	FamilyOperator
	FamilyStandard
)

func (f Family) String() string {
	switch f {
	case FamilyGlobal:
		return "global"
	case FamilyOperator:
		return "operator"
	case FamilyStandard:
		return "standard"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Tier is a single permission check. The zero value is the Global tier.
type Tier struct {
	family Family
	node   string
	parent *Tier
}

// Global always passes.
func Global() Tier {
	return Tier{family: FamilyGlobal}
}

// Operator passes when the commander reports the operator flag.
func Operator() Tier {
	return Tier{family: FamilyOperator}
}

// Standard checks a named permission node against the commander.
func Standard(node string) Tier {
	return Tier{family: FamilyStandard, node: node}
}

// WithParent returns a copy of t that delegates to parent. Only Standard
// tiers consult their parent; Global and Operator resolve on their own.
func (t Tier) WithParent(parent Tier) Tier {
	p := parent
	t.parent = &p
	return t
}

func (t Tier) Family() Family { return t.family }

// Node returns the permission string of a Standard tier.
func (t Tier) Node() string { return t.node }

// Parent returns the tier t delegates to, if any.
func (t Tier) Parent() (Tier, bool) {
	if t.parent == nil {
		return Tier{}, false
	}
	return *t.parent, true
}

// Equal reports whether two tiers resolve identically: same family, same
// permission node and equal parents.
func (t Tier) Equal(o Tier) bool {
	if t.family != o.family || t.node != o.node {
		return false
	}
	if (t.parent == nil) != (o.parent == nil) {
		return false
	}
	if t.parent == nil {
		return true
	}
	return t.parent.Equal(*o.parent)
}

func (t Tier) String() string {
	s := t.family.String()
	if t.family == FamilyStandard {
		s += "(" + t.node + ")"
	}
	if t.parent != nil {
		s += "<-" + t.parent.String()
	}
	return s
}

// HasPermission resolves tier against c.
//
// A Standard tier with a parent delegates entirely to that parent: an
// Operator parent checks the operator flag, a Global parent passes and a
// Standard parent is resolved recursively. Without a parent the tier's own
// node is checked.
func HasPermission(tier Tier, c Commander) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("%w: nil commander", ErrInvalidInput)
	}
	return resolve(tier, c), nil
}

func resolve(tier Tier, c Commander) bool {
	switch tier.family {
	case FamilyGlobal:
		return true
	case FamilyOperator:
		return c.IsOperator()
	case FamilyStandard:
		if tier.parent != nil {
			return resolve(*tier.parent, c)
		}
		return c.HasPermission(tier.node)
	default:
		return false
	}
}

// AuthorizeAll reports whether c satisfies every tier. The first failing
// tier is returned so callers can name it. An empty list authorizes.
func AuthorizeAll(tiers []Tier, c Commander) (bool, Tier, error) {
	if c == nil {
		return false, Tier{}, fmt.Errorf("%w: nil commander", ErrInvalidInput)
	}
	for _, tier := range tiers {
		if !resolve(tier, c) {
			return false, tier, nil
		}
	}
	return true, Tier{}, nil
}

// Dedupe drops tiers equal to an earlier tier, keeping declaration order.
func Dedupe(tiers []Tier) []Tier {
	out := make([]Tier, 0, len(tiers))
	for _, tier := range tiers {
		seen := false
		for _, kept := range out {
			if kept.Equal(tier) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, tier)
		}
	}
	return out
}
