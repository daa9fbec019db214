package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// OperatorFunc is the executable body of a registered operator.
type OperatorFunc func(ctx context.Context, call *OperatorCall) (any, error)

// OperatorCall is what an operator receives at invocation: its data-only
// arguments and the mutable delegate binding. Binding mutations travel back
// to the submitter inside the operator result.
type OperatorCall struct {
	Args    map[string]any
	Binding map[string]any
}

// Registry holds the named operators a worker can execute for one session.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]OperatorFunc
}

// NewRegistry creates an empty operator registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]OperatorFunc)}
}

// Register records an operator under name, replacing any previous entry.
func (r *Registry) Register(name string, fn OperatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = fn
}

// Resolve looks up a registered operator.
func (r *Registry) Resolve(name string) (OperatorFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("operator %q is not registered", name)
	}
	return fn, nil
}

// Provider resolves the operator registry for a session. Submitter-defined
// operators must be registered on every worker before tasks of that session
// arrive.
type Provider interface {
	RegistryFor(sessionID uuid.UUID) (*Registry, error)
}

// StaticProvider serves one registry for every session.
type StaticProvider struct {
	registry *Registry
}

// NewStaticProvider wraps a single registry as a Provider.
func NewStaticProvider(r *Registry) *StaticProvider {
	return &StaticProvider{registry: r}
}

// RegistryFor returns the wrapped registry regardless of session.
func (p *StaticProvider) RegistryFor(uuid.UUID) (*Registry, error) {
	return p.registry, nil
}
