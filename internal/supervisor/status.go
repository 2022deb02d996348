package supervisor

import (
	"time"

	"aegisd/pkg/types"
)

// Status builds the full /status response.
func (s *Supervisor) Status() types.StatusResponse {
	s.mu.Lock()
	report := s.bootReport
	s.mu.Unlock()

	now := time.Now()
	return types.StatusResponse{
		Services:         s.Services(),
		Ledger:           s.sched.Status(),
		Boot:             report,
		EscalationsTotal: s.guardian.Escalations(),
		UptimeSeconds:    int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
}

// Ledger exposes the memory scheduler view on its own.
func (s *Supervisor) Ledger() types.LedgerStatus {
	return s.sched.Status()
}
