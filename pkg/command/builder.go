package command

import "github.com/sipeed/dispatchkit/pkg/permission"

// Builder accumulates the ordered, unverified attributes of one command.
// It is not part of the command tree; the attribute handler compiles it into
// a Verified command.
type Builder struct {
	attrs []Attribute
}

func NewBuilder(attrs ...Attribute) *Builder {
	return &Builder{attrs: append([]Attribute(nil), attrs...)}
}

// Named starts a builder with the two mandatory definitions.
func Named(name, description string) *Builder {
	return NewBuilder(Name(name), Description(description))
}

// With appends attributes in declaration order.
func (b *Builder) With(attrs ...Attribute) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

func (b *Builder) Aliases(aliases ...string) *Builder {
	for _, a := range aliases {
		b.attrs = append(b.attrs, Alias(a))
	}
	return b
}

func (b *Builder) Argument(arg *Argument) *Builder {
	return b.With(arg)
}

func (b *Builder) Action(id string, precedence int, run ActionFunc) *Builder {
	return b.With(NewAction(id, precedence, run))
}

func (b *Builder) Requires(tiers ...permission.Tier) *Builder {
	for _, t := range tiers {
		b.attrs = append(b.attrs, Requires(t))
	}
	return b
}

func (b *Builder) Trigger(t *Trigger) *Builder {
	return b.With(t)
}

func (b *Builder) Property(p *Property) *Builder {
	return b.With(p)
}

func (b *Builder) Subcommand(sub *Builder) *Builder {
	return b.With(Subcommand(sub))
}

// Attributes returns a copy of the accumulated attributes.
func (b *Builder) Attributes() []Attribute {
	if b == nil {
		return nil
	}
	return append([]Attribute(nil), b.attrs...)
}

// Name returns the value of the first name definition, if any.
func (b *Builder) Name() string {
	if b == nil {
		return ""
	}
	for _, a := range b.attrs {
		if d, ok := a.(*Definition); ok && d != nil && d.role == RoleName {
			return d.value
		}
	}
	return ""
}
