package command

// Role says what a Definition describes.
type Role int

const (
	RoleName Role = iota
	RoleDescription
	RoleAlias
	RoleUsage
	RoleSubcommand
)

func (r Role) String() string {
	switch r {
	case RoleName:
		return "name"
	case RoleDescription:
		return "description"
	case RoleAlias:
		return "alias"
	case RoleUsage:
		return "usage"
	case RoleSubcommand:
		return "subcommand"
	default:
		return "unknown"
	}
}

// Definition carries identification metadata, or a nested subcommand.
type Definition struct {
	role  Role
	value string
	sub   *Builder
}

func Name(name string) *Definition {
	return &Definition{role: RoleName, value: name}
}

func Description(description string) *Definition {
	return &Definition{role: RoleDescription, value: description}
}

func Alias(alias string) *Definition {
	return &Definition{role: RoleAlias, value: alias}
}

// Usage overrides the generated usage line.
func Usage(usage string) *Definition {
	return &Definition{role: RoleUsage, value: usage}
}

// Subcommand nests a not-yet-verified command under the one being built.
func Subcommand(b *Builder) *Definition {
	return &Definition{role: RoleSubcommand, sub: b}
}

func (d *Definition) Identifier() string {
	switch d.role {
	case RoleAlias:
		return "alias:" + d.value
	case RoleSubcommand:
		if name := d.sub.Name(); name != "" {
			return "subcommand:" + name
		}
	}
	return d.role.String()
}

func (d *Definition) Kind() Kind { return KindDefinition }
func (d *Definition) sealed()    {}

func (d *Definition) Role() Role    { return d.role }
func (d *Definition) Value() string { return d.value }

// Builder returns the nested builder of a subcommand definition.
func (d *Definition) Builder() *Builder { return d.sub }
