package algfetch

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Provider is a source of algorithm implementations.
//
// Query must return the same slice contents for an operation for as long as
// the provider stays registered; the index of an Algorithm within it is part
// of the implementation's identity. Retain and Release bracket the lifetime
// of every Method Object built from the provider.
type Provider interface {
	Name() string
	Query(op Operation) []Algorithm
	// Retain takes a provider-level reference. An error means the provider
	// can no longer hand out implementations.
	Retain() error
	Release()
}

// Algorithm is one implementation advertised by a provider.
type Algorithm struct {
	// Names lists the canonical name first, then aliases.
	Names []string
	// Properties is the definition string matched against queries,
	// e.g. "provider=default,fips=yes".
	Properties  string
	Description string
	Dispatch    Dispatch
}

// Registry is an ordered set of providers. Registration order is the search
// order used by fetch and enumeration. A zero Registry is ready to use.
type Registry struct {
	mu    sync.RWMutex
	provs []Provider
	epoch atomic.Uint64
}

// NewRegistry registers ps in order.
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends p to the search order.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("algfetch: nil provider")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("algfetch: provider name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.provs {
		if q.Name() == name {
			return fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
		}
	}
	r.provs = append(r.provs, p)
	r.epoch.Add(1)
	return nil
}

// Unregister removes the named provider. Live methods built from it stay
// usable until released.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.provs {
		if p.Name() == name {
			r.provs = append(r.provs[:i:i], r.provs[i+1:]...)
			r.epoch.Add(1)
			return true
		}
	}
	return false
}

func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.provs {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Providers returns a snapshot in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.provs...)
}

// Epoch changes every time the provider set changes.
func (r *Registry) Epoch() uint64 { return r.epoch.Load() }
