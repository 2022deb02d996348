package guardian

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"aegisd/internal/events"
	"aegisd/pkg/types"
)

// Prober checks a single health endpoint. Implementations must respect the
// context deadline.
type Prober interface {
	Probe(ctx context.Context, target string) error
}

type httpProber struct {
	client *http.Client
}

// NewHTTPProber returns a Prober that issues GET requests and treats any
// 2xx status as healthy. Timeouts come from the caller's context.
func NewHTTPProber() Prober {
	return &httpProber{client: &http.Client{}}
}

func (p *httpProber) Probe(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe %s: status %d", target, resp.StatusCode)
	}
	return nil
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target string) error

func (f ProberFunc) Probe(ctx context.Context, target string) error { return f(ctx, target) }

func (g *Guardian) startLoop(svc *service) {
	ctx, cancel := context.WithCancel(g.ctx)
	svc.cancel = cancel
	g.wg.Add(1)
	go g.probeLoop(ctx, svc.desc.ID)
}

// probeLoop drives one service. The first probe fires immediately so boot
// waits converge fast; subsequent probes follow the configured interval.
func (g *Guardian) probeLoop(ctx context.Context, id string) {
	defer g.wg.Done()
	t := time.NewTicker(g.cfg.ProbeInterval)
	defer t.Stop()
	g.probeOnce(ctx, id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.probeOnce(ctx, id)
		}
	}
}

func (g *Guardian) probeOnce(ctx context.Context, id string) {
	g.beat()

	g.mu.Lock()
	svc := g.services[id]
	if svc == nil {
		g.mu.Unlock()
		return
	}
	target := svc.desc.HealthURL
	state := svc.state
	g.mu.Unlock()

	if state == types.StateStopped {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
	err := g.prober.Probe(pctx, target)
	cancel()

	if err == nil {
		g.observeSuccess(id)
		return
	}
	g.observeFailure(ctx, id, err)
}

func (g *Guardian) observeSuccess(id string) {
	g.mu.Lock()
	svc := g.services[id]
	if svc == nil {
		g.mu.Unlock()
		return
	}
	svc.lastProbe = time.Now()
	// Failed is terminal: a service that starts answering again still waits
	// for an operator reset before it is trusted.
	if svc.state == types.StateFailed {
		g.mu.Unlock()
		return
	}
	recovered := svc.state != types.StateHealthy
	svc.failures = 0
	svc.restarts = 0
	svc.state = types.StateHealthy
	g.mu.Unlock()

	if g.graph != nil {
		g.graph.SetProbe(id, true)
	}
	if recovered {
		fields := map[string]any{}
		if g.graph != nil {
			if deps := g.graph.BlockedDependents(id); len(deps) > 0 {
				fields["dependents_unblocked"] = deps
			}
		}
		g.publisher.Publish(events.Event{Name: events.ServiceHealthy, Subject: id, Fields: fields})
	}
	probeResults.WithLabelValues(id, "ok").Inc()
}

func (g *Guardian) observeFailure(ctx context.Context, id string, cause error) {
	g.mu.Lock()
	svc := g.services[id]
	if svc == nil {
		g.mu.Unlock()
		return
	}
	svc.lastProbe = time.Now()
	svc.failures++
	if g.graph != nil {
		g.graph.SetProbe(id, false)
	}
	probeResults.WithLabelValues(id, "fail").Inc()

	if svc.state == types.StateFailed {
		g.mu.Unlock()
		return
	}

	if svc.restarts >= svc.maxAttempts() {
		// Restart budget exhausted. Exactly one escalation per episode.
		svc.state = types.StateFailed
		already := svc.escalated
		svc.escalated = true
		failures := svc.failures
		g.mu.Unlock()
		if !already {
			g.escalations.Add(1)
			escalationsTotal.Inc()
			g.publisher.Publish(events.Event{
				Name:    events.Escalation,
				Subject: id,
				Fields:  map[string]any{"error": cause.Error(), "consecutive_failures": failures},
			})
			g.publisher.Publish(events.Event{Name: events.ServiceFailed, Subject: id})
		}
		return
	}

	svc.restarts++
	attempt := svc.restarts
	wait := svc.backoff() << (attempt - 1)
	ctrl := svc.ctrl
	wasDegraded := svc.state == types.StateDegraded
	svc.state = types.StateDegraded
	g.mu.Unlock()

	if !wasDegraded {
		g.publisher.Publish(events.Event{
			Name:    events.ServiceDegraded,
			Subject: id,
			Fields:  map[string]any{"error": cause.Error()},
		})
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(wait):
	}
	restartsTotal.WithLabelValues(id).Inc()
	g.publisher.Publish(events.Event{
		Name:    events.ServiceRestart,
		Subject: id,
		Fields:  map[string]any{"attempt": attempt, "backoff_ms": wait.Milliseconds()},
	})
	if err := ctrl.Restart(ctx); err != nil {
		// The next probe will count this as a further failure.
		return
	}
}
