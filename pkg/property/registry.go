// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package property

import (
	"fmt"
	"sync"
)

// Registry is the ordered set of properties a device exposes.
type Registry struct {
	mu    sync.RWMutex
	props []*Property
	byID  map[string]*Property
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Property)}
}

// Add registers p. Property ids are unique within a registry.
func (r *Registry) Add(p *Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProperty, p.ID())
	}
	r.props = append(r.props, p)
	r.byID[p.ID()] = p
	return nil
}

// Get returns the property with the given id.
func (r *Registry) Get(id string) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, id)
	}
	return p, nil
}

// All returns the properties in registration order.
func (r *Registry) All() []*Property {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Property, len(r.props))
	copy(out, r.props)
	return out
}

// Len returns the number of registered properties.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.props)
}

// Snapshot returns the current values of the set properties visible on
// every surface in vis. VisibilityNone selects every property.
func (r *Registry) Snapshot(vis Visibility) map[string]any {
	out := make(map[string]any)
	for _, p := range r.All() {
		if !p.Visibility().Includes(vis) {
			continue
		}
		if v := p.Value(); v != nil {
			out[p.ID()] = v
		}
	}
	return out
}
