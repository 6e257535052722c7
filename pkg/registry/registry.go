// Package registry maps (scope, name) addresses to handlers.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const logPrefix = "registry:registry"

// Handler answers one message. Returning an error (or panicking) is a handler
// execution failure; returning result.Failure is a business failure; any
// other value is a Success payload.
type Handler func(ctx context.Context, req any, sender transport.Sender) (any, error)

type address struct {
	scope string
	name  string
}

// Registry is an append-only handler table. At most one handler may be
// registered per (scope, name).
type Registry struct {
	mu       sync.RWMutex
	handlers map[address]Handler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[address]Handler)}
}

// Register stores h under (scope, name). A second registration for the same
// address fails with *msgerr.ConfigurationError and leaves the first in place.
func (r *Registry) Register(scope, name string, h Handler) error {
	if h == nil {
		return fmt.Errorf("%s - handler for %s/%s is nil", logPrefix, scope, name)
	}
	key := address{scope: scope, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[key]; exists {
		return &msgerr.ConfigurationError{Scope: scope, Name: name}
	}
	r.handlers[key] = h

	slog.Debug(fmt.Sprintf("%s - registered %s/%s", logPrefix, scope, name))
	return nil
}

// Lookup returns the handler registered under (scope, name).
func (r *Registry) Lookup(scope, name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[address{scope: scope, name: name}]
	return h, ok
}

// Names returns the sorted names registered in scope.
func (r *Registry) Names(scope string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0)
	for key := range r.handlers {
		if key.scope == scope {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}

// Scopes returns the sorted scopes that have at least one handler.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range r.handlers {
		seen[key.scope] = struct{}{}
	}
	scopes := make([]string, 0, len(seen))
	for s := range seen {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}
