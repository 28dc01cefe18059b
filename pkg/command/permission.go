package command

import "github.com/sipeed/dispatchkit/pkg/permission"

// Permission attaches a permission tier to a command. Every tier declared on
// a command must be satisfied before any action runs.
type Permission struct {
	tier permission.Tier
}

func Requires(tier permission.Tier) *Permission {
	return &Permission{tier: tier}
}

func (p *Permission) Identifier() string { return "permission:" + p.tier.String() }
func (p *Permission) Kind() Kind         { return KindPermission }
func (p *Permission) sealed()            {}

func (p *Permission) Tier() permission.Tier { return p.tier }
