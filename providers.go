package dircd

import (
	"sync"

	"github.com/google/uuid"
)

// ProviderHandle identifies a registered provider instance. It carries
// a generation id alongside the name so a stale handle held by an
// extension that outlived a provider's re-registration fails lookups
// instead of silently resolving to a newer, unrelated instance.
type ProviderHandle struct {
	Name       string
	generation uuid.UUID
}

// Valid reports whether the handle has been initialized.
func (h ProviderHandle) Valid() bool {
	return h.generation != uuid.Nil
}

type providerEntry struct {
	generation uuid.UUID
	value      any
}

// ProviderRegistry is a named registry of service implementations
// (account/services integration, an operator password backend, a ban
// list backend) that extensions can look up by name without the core
// server package importing the extension's types.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]providerEntry
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]providerEntry)}
}

// Register installs a provider under name, replacing anything
// previously registered there, and returns a handle scoped to this
// specific registration.
func (r *ProviderRegistry) Register(name string, value any) ProviderHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := uuid.New()
	r.providers[name] = providerEntry{generation: gen, value: value}
	return ProviderHandle{Name: name, generation: gen}
}

// Deregister removes whatever is currently registered under name. It
// does not check the caller's handle, so any holder's handle to that
// slot becomes stale immediately.
func (r *ProviderRegistry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// Lookup resolves a handle back to its provider value. It fails if the
// slot was re-registered (or removed) since the handle was issued.
func (r *ProviderRegistry) Lookup(h ProviderHandle) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.providers[h.Name]
	if !ok || entry.generation != h.generation {
		return nil, false
	}
	return entry.value, true
}

// LookupByName resolves a provider by name regardless of generation,
// for callers without a handle (eg a command handler looking up
// "services/account" fresh on every invocation).
func (r *ProviderRegistry) LookupByName(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.providers[name]
	if !ok {
		return nil, false
	}
	return entry.value, true
}
