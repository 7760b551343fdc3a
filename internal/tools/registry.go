// Package tools holds the handlers the model may invoke mid-turn.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// NotFoundResult is returned for names with no registered handler.
const NotFoundResult = "Error: Function not implemented."

// Handler executes one tool invocation and returns the result text.
type Handler func(ctx context.Context, inv domain.ToolInvocation) (string, error)

type entry struct {
	decl    domain.ToolDeclaration
	handler Handler
}

// Registry stores tool handlers keyed by tool name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a handler together with its declaration.
func (r *Registry) Register(decl domain.ToolDeclaration, h Handler) error {
	if decl.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[decl.Name]; exists {
		return fmt.Errorf("handler already registered for %s", decl.Name)
	}
	r.entries[decl.Name] = entry{decl: decl, handler: h}
	r.order = append(r.order, decl.Name)
	return nil
}

// MustRegister adds a handler or panics.
func (r *Registry) MustRegister(decl domain.ToolDeclaration, h Handler) {
	if err := r.Register(decl, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for name. Unknown names get NotFound, so the
// second return value only tells whether a real handler was found.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return NotFound, false
	}
	return e.handler, true
}

// Declarations lists every registered tool in registration order.
func (r *Registry) Declarations() []domain.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].decl)
	}
	return out
}

// NotFound answers invocations of unknown tools.
func NotFound(ctx context.Context, inv domain.ToolInvocation) (string, error) {
	return NotFoundResult, nil
}

type userKey struct{}

// WithUser attaches the calling user's name to ctx for handlers with side
// effects.
func WithUser(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, userKey{}, name)
}

// UserFrom returns the user attached by WithUser.
func UserFrom(ctx context.Context) string {
	name, _ := ctx.Value(userKey{}).(string)
	return name
}
