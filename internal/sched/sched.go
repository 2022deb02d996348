package sched

import (
	"sync"
	"time"

	"aegisd/internal/events"
	"aegisd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultAgingInterval = 30 * time.Second
)

// Decision is the outcome of an admission request.
type Decision string

const (
	Granted  Decision = "granted"
	Queued   Decision = "queued"
	Rejected Decision = "rejected"
)

// allocation is one resident claim on the accelerator budget. It is owned by
// the model instance that requested it until released or evicted.
type allocation struct {
	id       string
	sizeMB   int64
	priority int
	lastUsed time.Time
}

// waiter is a queued admission request.
type waiter struct {
	id       string
	sizeMB   int64
	priority int
	enqueued time.Time
	granted  bool
	grant    chan struct{} // closed on grant
}

// Config holds scheduler tunables.
type Config struct {
	BudgetMB int64
	// AgingInterval raises a queued request's effective priority one tier
	// per elapsed interval so sustained high-priority traffic cannot starve
	// low-priority waiters. Zero applies the package default.
	AgingInterval time.Duration
	Publisher     events.Publisher
	// OnEvict is invoked, outside the ledger lock, for every evicted model.
	OnEvict func(modelID string)
}

// Scheduler arbitrates the fixed accelerator memory budget. Every ledger
// mutation goes through one mutex; the budget invariant (allocated sum never
// exceeds BudgetMB) holds at all observable points.
type Scheduler struct {
	mu        sync.Mutex
	budgetMB  int64
	allocMB   int64
	allocs    map[string]*allocation
	queue     []*waiter // arrival order; selection is priority-then-FIFO
	aging     time.Duration
	publisher events.Publisher
	onEvict   func(string)
	evictions uint64

	now func() time.Time // test seam
}

// New constructs a Scheduler from Config.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		budgetMB:  cfg.BudgetMB,
		allocs:    make(map[string]*allocation),
		aging:     cfg.AgingInterval,
		publisher: cfg.Publisher,
		onEvict:   cfg.OnEvict,
		now:       time.Now,
	}
	if s.aging <= 0 {
		s.aging = defaultAgingInterval
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	return s
}

// Touch refreshes the idle clock of a resident allocation.
func (s *Scheduler) Touch(modelID string) {
	s.mu.Lock()
	if a := s.allocs[modelID]; a != nil {
		a.lastUsed = s.now()
	}
	s.mu.Unlock()
}

// Holds reports whether modelID currently owns an allocation.
func (s *Scheduler) Holds(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocs[modelID] != nil
}

// Status returns the ledger view for /status.
func (s *Scheduler) Status() types.LedgerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := types.LedgerStatus{
		BudgetMB:       s.budgetMB,
		AllocatedMB:    s.allocMB,
		QueueLen:       len(s.queue),
		EvictionsTotal: s.evictions,
	}
	st.Allocations = make([]types.AllocationStatus, 0, len(s.allocs))
	for _, a := range s.allocs {
		st.Allocations = append(st.Allocations, types.AllocationStatus{
			ModelID:      a.id,
			SizeMB:       a.sizeMB,
			Priority:     a.priority,
			LastUsedUnix: a.lastUsed.Unix(),
		})
	}
	return st
}
