package guardian

import (
	"context"
	"sync/atomic"
	"time"

	"aegisd/internal/events"
)

const defaultHeartbeatFactor = 4

// MetaGuardian watches the guardian's heartbeat and restarts it when stale.
// It is deliberately one level deep: nothing watches the meta-guardian, its
// loop is trivial enough to trust.
type MetaGuardian struct {
	guardian  *Guardian
	factor    int
	publisher events.Publisher
	restarts  atomic.Int64
}

// NewMeta wires a meta-guardian to g. factor is the staleness multiplier
// applied to the probe interval; zero means the default.
func NewMeta(g *Guardian, factor int, pub events.Publisher) *MetaGuardian {
	if factor <= 0 {
		factor = defaultHeartbeatFactor
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &MetaGuardian{guardian: g, factor: factor, publisher: pub}
}

// Run checks the heartbeat once per probe interval until ctx is cancelled.
func (m *MetaGuardian) Run(ctx context.Context) {
	interval := m.guardian.ProbeInterval()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.check(interval)
		}
	}
}

// Restarts returns how many times the guardian was restarted.
func (m *MetaGuardian) Restarts() int { return int(m.restarts.Load()) }

func (m *MetaGuardian) check(interval time.Duration) {
	stale := time.Since(m.guardian.Heartbeat())
	if stale <= time.Duration(m.factor)*interval {
		return
	}
	m.guardian.Stop()
	m.guardian.Start()
	m.restarts.Add(1)
	guardianRestarts.Inc()
	m.publisher.Publish(events.Event{
		Name:   events.GuardianRestart,
		Fields: map[string]any{"stale_for_ms": stale.Milliseconds()},
	})
}
