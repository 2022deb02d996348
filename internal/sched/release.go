package sched

import (
	"aegisd/internal/events"
)

// Release frees modelID's allocation and retries the queued list in
// priority-then-FIFO order. Draining stops at the first waiter that still
// does not fit, so a large request cannot be starved by smaller latecomers.
func (s *Scheduler) Release(modelID string) {
	s.mu.Lock()
	a := s.allocs[modelID]
	if a == nil {
		s.mu.Unlock()
		return
	}
	delete(s.allocs, modelID)
	s.allocMB -= a.sizeMB
	schedAllocatedMB.Set(float64(s.allocMB))
	granted, victims := s.drainQueue()
	schedQueueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	for _, v := range victims {
		s.afterEvict(v)
	}
	for _, w := range granted {
		s.publish(events.AllocGranted, w.id, map[string]any{"size_mb": w.sizeMB, "priority": w.priority, "queued": true})
	}
	s.publish(events.AllocReleased, modelID, map[string]any{"size_mb": a.sizeMB})
}

// drainQueue grants queued requests while they fit, best waiter first. The
// granted waiters are returned so their events can be published after the
// lock is dropped; a slow event sink must never stall ledger callers.
// Caller holds the lock.
func (s *Scheduler) drainQueue() (granted []*waiter, victims []string) {
	for {
		w := s.pickWaiter()
		if w == nil {
			return granted, victims
		}
		ok, victim := s.tryAdmit(w.id, w.sizeMB, s.effectivePriority(w))
		if victim != "" {
			victims = append(victims, victim)
		}
		if !ok {
			return granted, victims
		}
		w.granted = true
		close(w.grant)
		s.removeWaiter(w)
		granted = append(granted, w)
	}
}

// pickWaiter selects the queued request with the highest effective priority;
// the arrival-ordered scan breaks ties FIFO. Caller holds the lock.
func (s *Scheduler) pickWaiter() *waiter {
	var best *waiter
	bestPrio := 0
	for _, w := range s.queue {
		p := s.effectivePriority(w)
		if best == nil || p > bestPrio {
			best = w
			bestPrio = p
		}
	}
	return best
}

// effectivePriority ages a queued request one tier per aging interval waited.
func (s *Scheduler) effectivePriority(w *waiter) int {
	waited := s.now().Sub(w.enqueued)
	return w.priority + int(waited/s.aging)
}
