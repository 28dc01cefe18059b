// DispatchKit - command definition and dispatch engine
// License: MIT
//
// Copyright (c) 2026 DispatchKit contributors

package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/sipeed/dispatchkit/pkg/logger"
)

// HookHandler is the callback signature for all hooks.
type HookHandler[T any] func(ctx context.Context, event *T) error

// HookRegistration tracks a handler with its priority and name.
type HookRegistration[T any] struct {
	Handler  HookHandler[T]
	Priority int // Lower = runs first
	Name     string
}

// HookRegistry manages engine-wide lifecycle hooks. Per-command reactions
// belong in command triggers; hooks observe every command.
type HookRegistry struct {
	commandRegistered []HookRegistration[CommandRegisteredEvent]
	beforeDispatch    []HookRegistration[BeforeDispatchEvent]
	dispatched        []HookRegistration[DispatchedEvent]
	mu                sync.RWMutex
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// insertSorted inserts a registration into a new slice sorted by priority.
// Always allocates a new backing array so concurrent readers of the old slice are safe.
func insertSorted[T any](slice []HookRegistration[T], reg HookRegistration[T]) []HookRegistration[T] {
	i := 0
	for i < len(slice) && slice[i].Priority <= reg.Priority {
		i++
	}
	result := make([]HookRegistration[T], len(slice)+1)
	copy(result, slice[:i])
	result[i] = reg
	copy(result[i+1:], slice[i:])
	return result
}

func (r *HookRegistry) OnCommandRegistered(name string, priority int, handler HookHandler[CommandRegisteredEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandRegistered = insertSorted(r.commandRegistered, HookRegistration[CommandRegisteredEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *HookRegistry) OnBeforeDispatch(name string, priority int, handler HookHandler[BeforeDispatchEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeDispatch = insertSorted(r.beforeDispatch, HookRegistration[BeforeDispatchEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *HookRegistry) OnDispatched(name string, priority int, handler HookHandler[DispatchedEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = insertSorted(r.dispatched, HookRegistration[DispatchedEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

// triggerVoid runs all handlers concurrently and waits for completion.
// Handlers MUST NOT mutate the event — it is shared across goroutines.
// Errors are logged but do not propagate to the caller.
func triggerVoid[T any](ctx context.Context, hooks []HookRegistration[T], event *T, hookName string) {
	if len(hooks) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, h := range hooks {
		wg.Add(1)
		go func(reg HookRegistration[T]) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorCF("hooks", "Hook panic",
						map[string]any{
							"hook":    hookName,
							"handler": reg.Name,
							"panic":   fmt.Sprintf("%v", r),
						})
				}
			}()
			if err := reg.Handler(ctx, event); err != nil {
				logger.WarnCF("hooks", "Hook error",
					map[string]any{
						"hook":    hookName,
						"handler": reg.Name,
						"error":   err.Error(),
					})
			}
		}(h)
	}
	wg.Wait()
}

// triggerModifying runs handlers sequentially by priority, stopping if Cancel is set.
func triggerModifying[T any](ctx context.Context, hooks []HookRegistration[T], event *T, hookName string, cancelCheck func(*T) bool) {
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorCF("hooks", "Hook panic",
						map[string]any{
							"hook":    hookName,
							"handler": h.Name,
							"panic":   fmt.Sprintf("%v", r),
						})
				}
			}()
			if err := h.Handler(ctx, event); err != nil {
				logger.WarnCF("hooks", "Hook error",
					map[string]any{
						"hook":    hookName,
						"handler": h.Name,
						"error":   err.Error(),
					})
			}
		}()
		if cancelCheck(event) {
			logger.InfoCF("hooks", "Hook canceled operation",
				map[string]any{
					"hook":    hookName,
					"handler": h.Name,
				})
			return
		}
	}
}

// TriggerCommandRegistered fires all command_registered handlers concurrently.
// Handlers must not mutate the event.
func (r *HookRegistry) TriggerCommandRegistered(ctx context.Context, event *CommandRegisteredEvent) {
	r.mu.RLock()
	hooks := r.commandRegistered
	r.mu.RUnlock()
	triggerVoid(ctx, hooks, event, "command_registered")
}

func (r *HookRegistry) TriggerBeforeDispatch(ctx context.Context, event *BeforeDispatchEvent) {
	r.mu.RLock()
	hooks := r.beforeDispatch
	r.mu.RUnlock()
	triggerModifying(ctx, hooks, event, "before_dispatch", func(e *BeforeDispatchEvent) bool {
		return e.Cancel
	})
}

// TriggerDispatched fires all dispatched handlers concurrently.
// Handlers must not mutate the event.
func (r *HookRegistry) TriggerDispatched(ctx context.Context, event *DispatchedEvent) {
	r.mu.RLock()
	hooks := r.dispatched
	r.mu.RUnlock()
	triggerVoid(ctx, hooks, event, "dispatched")
}
