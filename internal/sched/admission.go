package sched

import (
	"aegisd/internal/events"
)

// Request runs one admission pass for modelID.
//
// Admission policy: grant when the request fits free budget; otherwise, when
// the requester outranks the lowest-priority resident model, evict exactly
// one victim (lowest priority, ties broken by longest idle) and retry once;
// otherwise queue FIFO within priority tier. Reject outright only when the
// request alone exceeds the total budget and can never be satisfied.
func (s *Scheduler) Request(modelID string, sizeMB int64, priority int) (Decision, error) {
	dec, _, err := s.request(modelID, sizeMB, priority)
	return dec, err
}

// request is Request plus the concrete queue entry on a Queued decision, so
// Acquire waits on its own waiter instead of re-finding one by id.
func (s *Scheduler) request(modelID string, sizeMB int64, priority int) (Decision, *waiter, error) {
	if sizeMB <= 0 {
		return Rejected, nil, ErrAllocation(modelID, sizeMB, s.budgetMB)
	}
	s.mu.Lock()
	if sizeMB > s.budgetMB {
		s.mu.Unlock()
		s.publish(events.AllocRejected, modelID, map[string]any{"size_mb": sizeMB, "budget_mb": s.budgetMB})
		schedRejects.Inc()
		return Rejected, nil, ErrAllocation(modelID, sizeMB, s.budgetMB)
	}

	// Idempotent for a resident owner: refresh idle time and keep the grant.
	if a := s.allocs[modelID]; a != nil {
		a.lastUsed = s.now()
		s.mu.Unlock()
		return Granted, nil, nil
	}

	// A model already waiting gets one queue entry, shared by every caller:
	// admitting the same id twice would double-count the ledger.
	if w := s.findWaiter(modelID); w != nil {
		s.mu.Unlock()
		return Queued, w, nil
	}

	granted, victim := s.tryAdmit(modelID, sizeMB, priority)
	if granted {
		s.mu.Unlock()
		s.afterEvict(victim)
		s.publish(events.AllocGranted, modelID, map[string]any{"size_mb": sizeMB, "priority": priority})
		return Granted, nil, nil
	}

	w := &waiter{
		id:       modelID,
		sizeMB:   sizeMB,
		priority: priority,
		enqueued: s.now(),
		grant:    make(chan struct{}),
	}
	s.queue = append(s.queue, w)
	depth := len(s.queue)
	schedQueueDepth.Set(float64(depth))
	s.mu.Unlock()
	s.afterEvict(victim)
	s.publish(events.AllocQueued, modelID, map[string]any{"size_mb": sizeMB, "priority": priority, "depth": depth})
	return Queued, w, nil
}

// tryAdmit attempts one admission under the lock. It returns the evicted
// victim id, if any, so the caller can run eviction side effects unlocked.
func (s *Scheduler) tryAdmit(modelID string, sizeMB int64, priority int) (bool, string) {
	// Already resident: keep the existing allocation, never re-add its size.
	if a := s.allocs[modelID]; a != nil {
		a.lastUsed = s.now()
		return true, ""
	}
	if s.allocMB+sizeMB <= s.budgetMB {
		s.admit(modelID, sizeMB, priority)
		return true, ""
	}

	victim := s.pickVictim()
	if victim == nil || victim.priority >= priority {
		return false, ""
	}
	delete(s.allocs, victim.id)
	s.allocMB -= victim.sizeMB
	s.evictions++
	schedEvictions.Inc()
	schedAllocatedMB.Set(float64(s.allocMB))

	if s.allocMB+sizeMB <= s.budgetMB {
		s.admit(modelID, sizeMB, priority)
		return true, victim.id
	}
	return false, victim.id
}

func (s *Scheduler) admit(modelID string, sizeMB int64, priority int) {
	s.allocs[modelID] = &allocation{
		id:       modelID,
		sizeMB:   sizeMB,
		priority: priority,
		lastUsed: s.now(),
	}
	s.allocMB += sizeMB
	schedAllocatedMB.Set(float64(s.allocMB))
}

// pickVictim selects the lowest-priority resident allocation, ties broken by
// longest idle time.
func (s *Scheduler) pickVictim() *allocation {
	var victim *allocation
	for _, a := range s.allocs {
		if victim == nil ||
			a.priority < victim.priority ||
			(a.priority == victim.priority && a.lastUsed.Before(victim.lastUsed)) {
			victim = a
		}
	}
	return victim
}

func (s *Scheduler) afterEvict(victimID string) {
	if victimID == "" {
		return
	}
	if s.onEvict != nil {
		s.onEvict(victimID)
	}
	s.publish(events.AllocEvicted, victimID, nil)
}

func (s *Scheduler) publish(name, subject string, fields map[string]any) {
	s.publisher.Publish(events.Event{Name: name, Subject: subject, At: s.now(), Fields: fields})
}
