// Package command holds the building blocks of a command definition: the
// attribute model, the builder that accumulates attributes, and the verified
// command the attribute handler compiles them into.
package command

import "fmt"

// Kind tags an attribute. The set is closed; code that separates or verifies
// attributes switches over it.
type Kind int

const (
	KindAction Kind = iota
	KindArgument
	KindDefinition
	KindProperty
	KindTrigger
	KindPermission
)

var kindNames = [...]string{
	KindAction:     "action",
	KindArgument:   "argument",
	KindDefinition: "definition",
	KindProperty:   "property",
	KindTrigger:    "trigger",
	KindPermission: "permission",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Attribute is one immutable building block of a command. Only the types in
// this package implement it.
type Attribute interface {
	Identifier() string
	Kind() Kind
	sealed()
}
