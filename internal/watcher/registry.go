// Package watcher routes cast steps to the effect handlers registered for
// their step type.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/cast"
)

var (
	ErrUnknownStep      = errors.New("watcher: no handler for step type")
	ErrDuplicateHandler = errors.New("watcher: handler already registered")
	ErrEmptyStepType    = errors.New("watcher: step type must not be empty")
	ErrNilHandler       = errors.New("watcher: handler must not be nil")
)

// Handler applies the effects of one step.
type Handler interface {
	Handle(ctx context.Context, block *cast.Block) error
}

type HandlerFunc func(ctx context.Context, block *cast.Block) error

func (f HandlerFunc) Handle(ctx context.Context, block *cast.Block) error {
	return f(ctx, block)
}

// PanicError carries a panic recovered from a handler.
type PanicError struct {
	Step  ability.StepType
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("watcher: handler for %q panicked: %v", e.Step, e.Value)
}

// Registry maps step types to handlers. Registration is safe while
// dispatching.
type Registry struct {
	mu       sync.RWMutex
	handlers map[ability.StepType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ability.StepType]Handler)}
}

func (r *Registry) Register(step ability.StepType, handler Handler) error {
	if strings.TrimSpace(string(step)) == "" {
		return ErrEmptyStepType
	}
	if handler == nil {
		return ErrNilHandler
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[step]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, step)
	}
	r.handlers[step] = handler
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(step ability.StepType, handler Handler) {
	if err := r.Register(step, handler); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(step ability.StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[step]
	return ok
}

// Types lists the registered step types in sorted order.
func (r *Registry) Types() []ability.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]ability.StepType, 0, len(r.handlers))
	for step := range r.handlers {
		types = append(types, step)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Dispatch runs the handler registered for step. An interrupt notification
// without a handler is ignored.
func (r *Registry) Dispatch(ctx context.Context, step ability.StepType, block *cast.Block) (err error) {
	r.mu.RLock()
	handler, ok := r.handlers[step]
	r.mu.RUnlock()
	if !ok {
		if step == ability.StepInterrupt {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Step: step, Value: recovered}
		}
	}()
	return handler.Handle(ctx, block)
}

var _ cast.Dispatcher = (*Registry)(nil)
