// Package tree stores verified commands as a rooted, multi-level tree and
// resolves tokenized command lines against it.
package tree

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sipeed/dispatchkit/pkg/command"
)

var (
	// ErrNotFound is returned when no root matches the first token.
	ErrNotFound = errors.New("command not found")
	// ErrRegistrationConflict is returned when a root label is already taken.
	ErrRegistrationConflict = errors.New("registration conflict")
	// ErrDuplicateSubcommand is returned when a child label is already taken.
	ErrDuplicateSubcommand = errors.New("duplicate subcommand")
)

// ConflictError names the label that collided on insertion.
type ConflictError struct {
	Label  string
	Parent string
	err    error
}

func (e *ConflictError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("%s: root command %q is already registered", e.err, e.Label)
	}
	return fmt.Sprintf("%s: %q already has a subcommand %q", e.err, e.Parent, e.Label)
}

// Unwrap reports a duplicate subcommand as a validation failure too, the
// same kind Verify returns for duplicates inside one builder.
func (e *ConflictError) Unwrap() []error {
	if e.Parent == "" {
		return []error{e.err}
	}
	return []error{e.err, command.ErrValidation}
}

// Node wraps one verified command. Nodes are never removed individually.
type Node struct {
	cmd      *command.Verified
	parent   *Node
	children []*Node
}

func (n *Node) Command() *command.Verified { return n.cmd }

// Parent returns nil for root nodes.
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) IsRoot() bool { return n.parent == nil }

// Path returns the names from the root down to n.
func (n *Node) Path() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.parent {
		path = append(path, cur.cmd.Name())
	}
	slices.Reverse(path)
	return path
}

// Match is the result of resolving a token sequence.
type Match struct {
	Node      *Node
	Path      []string
	Remaining []string
}

// Pattern is the matched path joined by spaces, e.g. "admin ban".
func (m Match) Pattern() string {
	return strings.Join(m.Path, " ")
}

// Tree is safe for concurrent use. Insertions take the write lock; lookups
// share the read lock, so a resolution never observes a half-linked node.
type Tree struct {
	mu    sync.RWMutex
	roots []*Node
}

func New() *Tree {
	return &Tree{}
}

// Insert links v, and its whole subcommand subtree, under parent. A nil
// parent registers v as a new root. Labels (name and aliases) must be unique
// among siblings.
func (t *Tree) Insert(parent *Node, v *command.Verified) (*Node, error) {
	if v == nil {
		return nil, errors.New("tree: nil command")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	siblings := t.roots
	if parent != nil {
		siblings = parent.children
	}
	if label, ok := collides(siblings, v); ok {
		if parent == nil {
			return nil, &ConflictError{Label: label, err: ErrRegistrationConflict}
		}
		return nil, &ConflictError{Label: label, Parent: parent.cmd.Name(), err: ErrDuplicateSubcommand}
	}

	node := build(parent, v)
	if parent == nil {
		t.roots = append(t.roots, node)
	} else {
		parent.children = append(parent.children, node)
	}
	return node, nil
}

func collides(siblings []*Node, v *command.Verified) (string, bool) {
	for _, label := range v.Labels() {
		for _, s := range siblings {
			if s.cmd.Matches(label) {
				return label, true
			}
		}
	}
	return "", false
}

func build(parent *Node, v *command.Verified) *Node {
	node := &Node{cmd: v, parent: parent}
	for _, sub := range v.Subcommands() {
		node.children = append(node.children, build(node, sub))
	}
	return node
}

// Resolve finds the root matching tokens[0] and then greedily descends while
// the next token names a child. Every token not consumed is returned as
// Remaining.
func (t *Tree) Resolve(tokens []string) (Match, error) {
	if len(tokens) == 0 {
		return Match{}, fmt.Errorf("%w: empty command line", ErrNotFound)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	node := find(t.roots, tokens[0])
	if node == nil {
		return Match{}, fmt.Errorf("%w: %q", ErrNotFound, tokens[0])
	}

	path := []string{node.cmd.Name()}
	i := 1
	for ; i < len(tokens); i++ {
		child := find(node.children, tokens[i])
		if child == nil {
			break
		}
		node = child
		path = append(path, child.cmd.Name())
	}

	return Match{
		Node:      node,
		Path:      path,
		Remaining: slices.Clone(tokens[i:]),
	}, nil
}

func find(nodes []*Node, label string) *Node {
	for _, n := range nodes {
		if n.cmd.Matches(label) {
			return n
		}
	}
	return nil
}

// Lookup walks an exact path of labels.
func (t *Tree) Lookup(path ...string) (*Node, bool) {
	if len(path) == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	node := find(t.roots, path[0])
	for _, label := range path[1:] {
		if node == nil {
			return nil, false
		}
		node = find(node.children, label)
	}
	return node, node != nil
}

// Roots returns a snapshot of the root nodes in registration order.
func (t *Tree) Roots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.roots)
}

// Children returns a snapshot of n's children.
func (t *Tree) Children(n *Node) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(n.children)
}

// Walk visits every node depth-first in registration order. Returning false
// from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, root := range t.roots {
		walk(root, 0, fn)
	}
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		walk(c, depth+1, fn)
	}
}

// Len returns the number of root commands.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.roots)
}

// Reset drops every command.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roots = nil
}
