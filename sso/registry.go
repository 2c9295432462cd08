package sso

import (
	"fmt"
	"sync"
)

// ProviderID is a provider's position in its registry. IDs are referenced by
// persisted configuration and stored user records and never change once
// issued.
type ProviderID int

// Entry is a registered provider together with its id.
type Entry struct {
	ID       ProviderID
	Provider Provider
}

// Registry is an append-only list of providers. A provider's index is its
// ProviderID. Entries are never removed or reordered.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	byName    map[string]ProviderID
	sealed    bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ProviderID)}
}

// Register appends p and returns its id.
func (r *Registry) Register(p Provider) (ProviderID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return 0, fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, p.Name())
	}
	if id, exists := r.byName[p.Name()]; exists {
		return 0, fmt.Errorf("%w: %q already registered with id %d", ErrDuplicateProvider, p.Name(), id)
	}

	id := ProviderID(len(r.providers))
	r.providers = append(r.providers, p)
	r.byName[p.Name()] = id
	return id, nil
}

// MustRegister is like Register but panics on error. It is meant for
// startup code registering a fixed provider table.
func (r *Registry) MustRegister(p Provider) ProviderID {
	id, err := r.Register(p)
	if err != nil {
		panic(err)
	}
	return id
}

// Lookup returns the provider registered under id.
func (r *Registry) Lookup(id ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || int(id) >= len(r.providers) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownProvider, id)
	}
	return r.providers[id], nil
}

// LookupName returns the provider registered under name and its id.
func (r *Registry) LookupName(name string) (Provider, ProviderID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return r.providers[id], id, nil
}

// Entries returns all providers in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, len(r.providers))
	for i, p := range r.providers {
		entries[i] = Entry{ID: ProviderID(i), Provider: p}
	}
	return entries
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Seal ends the registration phase. Later calls to Register fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
