package sched

import (
	"context"

	"aegisd/internal/events"
)

// Acquire is the blocking admission path used by the router: it runs one
// admission pass and, when queued, waits for a grant until ctx expires. On
// expiry the pending entry is removed (or, if a grant raced the deadline,
// released) and a timeout-typed failure returned, so nothing blocks
// indefinitely and no partial reservation leaks.
func (s *Scheduler) Acquire(ctx context.Context, modelID string, sizeMB int64, priority int) error {
	dec, w, err := s.request(modelID, sizeMB, priority)
	switch dec {
	case Granted:
		return nil
	case Rejected:
		return err
	}

	select {
	case <-w.grant:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	if w.granted {
		// The grant raced the deadline; hand the memory back.
		s.mu.Unlock()
		s.Release(modelID)
		return ErrTimeout("allocation wait", modelID)
	}
	s.removeWaiter(w)
	schedQueueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()
	s.publish(events.AllocRejected, modelID, map[string]any{"reason": "deadline"})
	return ErrTimeout("allocation wait", modelID)
}

func (s *Scheduler) findWaiter(modelID string) *waiter {
	for _, w := range s.queue {
		if w.id == modelID {
			return w
		}
	}
	return nil
}

func (s *Scheduler) removeWaiter(target *waiter) {
	for i, w := range s.queue {
		if w == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}
