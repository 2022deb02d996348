// Package registry holds the catalogue of inference backends and resolves
// capability tags to ordered candidate lists.
package registry

import (
	"slices"
	"sync"
	"sync/atomic"

	"aegisd/pkg/types"
)

// Registry is the model catalogue. Mutations are serialized by a mutex and
// publish a fresh immutable snapshot; lookups read the snapshot without
// locking so routing never contends with registration traffic.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[[]types.Model]
}

// New builds a registry from the configured catalogue.
// Duplicate ids fail registration one by one.
func New(models []types.Model) (*Registry, error) {
	r := &Registry{}
	empty := make([]types.Model, 0)
	r.snap.Store(&empty)
	for _, m := range models {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a model to the catalogue.
func (r *Registry) Register(m types.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.snap.Load()
	for _, existing := range cur {
		if existing.ID == m.ID {
			return ErrDuplicateModel(m.ID)
		}
	}
	next := make([]types.Model, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, m)
	r.snap.Store(&next)
	return nil
}

// Unregister removes a model. In-flight allocations referencing it are the
// scheduler's business and stay untouched until released.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.snap.Load()
	idx := -1
	for i, m := range cur {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrModelNotFound(id)
	}
	next := make([]types.Model, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	r.snap.Store(&next)
	return nil
}

// Get returns the model with the given id.
func (r *Registry) Get(id string) (types.Model, bool) {
	for _, m := range *r.snap.Load() {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}

// List returns the current catalogue.
func (r *Registry) List() []types.Model {
	cur := *r.snap.Load()
	out := make([]types.Model, len(cur))
	copy(out, cur)
	return out
}

// Resolve returns the ordered candidate list for a capability: local
// backends first, then remote, each group by ascending cost class then
// descending throughput class. An empty result is not an error; callers must
// handle absence explicitly.
func (r *Registry) Resolve(capability string) []types.Model {
	var out []types.Model
	for _, m := range *r.snap.Load() {
		if slices.Contains(m.Capabilities, capability) {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b types.Model) int {
		if a.Locality != b.Locality {
			if a.Locality == types.LocalityLocal {
				return -1
			}
			return 1
		}
		if a.CostClass != b.CostClass {
			return a.CostClass - b.CostClass
		}
		return b.ThroughputClass - a.ThroughputClass
	})
	return out
}
