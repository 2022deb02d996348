package supervisor

import (
	"fmt"
	"sort"

	"aegisd/pkg/types"
)

// RegisterService admits one service: validates the descriptor, wires its
// dependency edges (atomically; a cycle rolls the whole registration back)
// and hands it to the guardian.
func (s *Supervisor) RegisterService(desc types.ServiceDescriptor) error {
	if desc.ID == "" {
		return ErrInvalid("service id is required")
	}
	if desc.HealthURL == "" {
		return ErrInvalid(fmt.Sprintf("service %s: health_url is required", desc.ID))
	}
	if s.graph.Has(desc.ID) {
		return ErrInvalid(fmt.Sprintf("service %s already registered", desc.ID))
	}
	for _, dep := range desc.DependsOn {
		if !s.graph.Has(dep) {
			return ErrInvalid(fmt.Sprintf("service %s depends on unknown service %s", desc.ID, dep))
		}
	}

	ctrl, err := s.controls.For(desc.Control)
	if err != nil {
		return ErrInvalid(fmt.Sprintf("service %s: %v", desc.ID, err))
	}

	s.graph.AddVertex(desc.ID)
	for _, dep := range desc.DependsOn {
		if err := s.graph.AddEdge(desc.ID, dep); err != nil {
			s.graph.RemoveVertex(desc.ID)
			return err
		}
	}

	s.mu.Lock()
	s.controllers[desc.ID] = ctrl
	s.descriptors[desc.ID] = desc
	s.mu.Unlock()
	s.guardian.Add(desc, ctrl)
	return nil
}

// DeregisterService removes a service, its probe loop and its edges. Any
// memory held by the service's model is released back to the ledger.
func (s *Supervisor) DeregisterService(id string) error {
	if !s.graph.Has(id) {
		return ErrNotFound(id)
	}
	s.guardian.Remove(id)
	s.graph.RemoveVertex(id)
	s.mu.Lock()
	delete(s.controllers, id)
	delete(s.descriptors, id)
	s.mu.Unlock()
	if s.sched.Holds(id) {
		s.sched.Release(id)
	}
	return nil
}

// ResetService clears a failed service's restart budget so automatic
// recovery resumes.
func (s *Supervisor) ResetService(id string) error {
	if !s.guardian.Reset(id) {
		return ErrNotFound(id)
	}
	return nil
}

// Services returns every registered service with its live health, sorted by id.
func (s *Supervisor) Services() []types.ServiceStatus {
	s.mu.Lock()
	descs := make([]types.ServiceDescriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		descs = append(descs, d)
	}
	s.mu.Unlock()
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })

	out := make([]types.ServiceStatus, 0, len(descs))
	for _, d := range descs {
		rec, _ := s.guardian.Record(d.ID)
		out = append(out, types.ServiceStatus{
			Descriptor:       d,
			Health:           rec,
			EffectiveHealthy: s.graph.IsHealthy(d.ID),
		})
	}
	return out
}

// Service returns one registered service's status.
func (s *Supervisor) Service(id string) (types.ServiceStatus, error) {
	s.mu.Lock()
	d, ok := s.descriptors[id]
	s.mu.Unlock()
	if !ok {
		return types.ServiceStatus{}, ErrNotFound(id)
	}
	rec, _ := s.guardian.Record(id)
	return types.ServiceStatus{
		Descriptor:       d,
		Health:           rec,
		EffectiveHealthy: s.graph.IsHealthy(id),
	}, nil
}
