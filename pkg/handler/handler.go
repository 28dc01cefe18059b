// Package handler turns command builders into verified commands and links
// them into a command tree.
package handler

import (
	"context"
	"sync"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/hooks"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/tree"
)

// Registrar installs a new root command into a host's native command table.
// Routing matching input back into dispatch is the host's job.
type Registrar interface {
	Name() string
	RegisterCommand(ctx context.Context, node *tree.Node) error
}

// RegistrarFunc adapts a function into a Registrar.
type RegistrarFunc func(ctx context.Context, node *tree.Node) error

func (f RegistrarFunc) Name() string { return "func" }

func (f RegistrarFunc) RegisterCommand(ctx context.Context, node *tree.Node) error {
	return f(ctx, node)
}

type Handler struct {
	tree  *tree.Tree
	hooks *hooks.HookRegistry

	mu         sync.RWMutex
	registrars []Registrar
}

// New returns a handler inserting into t. hooks may be nil.
func New(t *tree.Tree, h *hooks.HookRegistry) *Handler {
	if h == nil {
		h = hooks.NewHookRegistry()
	}
	return &Handler{tree: t, hooks: h}
}

func (h *Handler) Tree() *tree.Tree { return h.tree }

// AddRegistrar adds a host callback run for every new root command.
func (h *Handler) AddRegistrar(r Registrar) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registrars = append(h.registrars, r)
}

// Process verifies b and links the result under parent, or as a new root
// when parent is nil. The whole subcommand subtree is verified before
// anything is inserted, so a failing command leaves the tree untouched.
//
// With registerIfRoot set, a new root is also handed to every registrar.
// Registrar failures are logged; the command stays in the tree and remains
// dispatchable.
func (h *Handler) Process(ctx context.Context, parent *tree.Node, b *command.Builder, registerIfRoot bool) (*command.Verified, error) {
	v, err := command.Verify(b)
	if err != nil {
		logger.WarnCF("handler", "Command rejected",
			map[string]any{
				"command": b.Name(),
				"error":   err.Error(),
			})
		return nil, err
	}

	node, err := h.tree.Insert(parent, v)
	if err != nil {
		logger.WarnCF("handler", "Command not inserted",
			map[string]any{
				"command": v.Name(),
				"error":   err.Error(),
			})
		return nil, err
	}

	logger.DebugCF("handler", "Command registered",
		map[string]any{
			"path":        node.Path(),
			"aliases":     v.Aliases(),
			"arguments":   len(v.Arguments()),
			"actions":     len(v.Actions()),
			"subcommands": len(v.Subcommands()),
		})

	if node.IsRoot() && registerIfRoot {
		h.register(ctx, node)
	}

	h.hooks.TriggerCommandRegistered(ctx, &hooks.CommandRegisteredEvent{
		Path:        node.Path(),
		Description: v.Description(),
		Aliases:     v.Aliases(),
		Subcommands: len(v.Subcommands()),
		Root:        node.IsRoot(),
	})

	return v, nil
}

func (h *Handler) register(ctx context.Context, node *tree.Node) {
	h.mu.RLock()
	registrars := h.registrars
	h.mu.RUnlock()

	for _, r := range registrars {
		if err := r.RegisterCommand(ctx, node); err != nil {
			logger.ErrorCF("handler", "Host registration failed",
				map[string]any{
					"command":   node.Command().Name(),
					"registrar": r.Name(),
					"error":     err.Error(),
				})
		}
	}
}
