package guardian

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"aegisd/internal/events"
	"aegisd/internal/graph"
	"aegisd/pkg/types"
)

type fakeController struct {
	starts   atomic.Int64
	stops    atomic.Int64
	restarts atomic.Int64
}

func (c *fakeController) Start(ctx context.Context) error   { c.starts.Add(1); return nil }
func (c *fakeController) Stop(ctx context.Context) error    { c.stops.Add(1); return nil }
func (c *fakeController) Kill(ctx context.Context) error    { return nil }
func (c *fakeController) Restart(ctx context.Context) error { c.restarts.Add(1); return nil }

func testConfig(p Prober, pub events.Publisher, g *graph.Graph) Config {
	return Config{
		ProbeInterval: 10 * time.Millisecond,
		ProbeTimeout:  50 * time.Millisecond,
		Graph:         g,
		Publisher:     pub,
		Prober:        p,
	}
}

func descriptor(id string, maxAttempts int) types.ServiceDescriptor {
	return types.ServiceDescriptor{
		ID:        id,
		Kind:      types.KindBackend,
		HealthURL: "http://127.0.0.1:1/healthz",
		Restart: types.RestartPolicy{
			MaxAttempts: maxAttempts,
			Backoff:     types.Duration(time.Millisecond),
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestProbeSuccessMarksHealthy(t *testing.T) {
	pub := events.NewMemoryPublisher()
	ok := ProberFunc(func(ctx context.Context, target string) error { return nil })
	g := New(testConfig(ok, pub, nil))
	g.Add(descriptor("llm", 3), &fakeController{})
	g.Start()
	defer g.Stop()

	waitFor(t, time.Second, func() bool {
		rec, found := g.Record("llm")
		return found && rec.State == types.StateHealthy
	})
	rec, _ := g.Record("llm")
	if rec.ConsecutiveFailures != 0 || rec.RestartAttempts != 0 {
		t.Fatalf("healthy record should carry zeroed counters, got %+v", rec)
	}
	if got := pub.Named(events.ServiceHealthy); len(got) == 0 {
		t.Fatalf("expected a %s event", events.ServiceHealthy)
	}
}

func TestFailureDegradesAndRestartsWithBackoff(t *testing.T) {
	pub := events.NewMemoryPublisher()
	fail := ProberFunc(func(ctx context.Context, target string) error {
		return errors.New("connection refused")
	})
	ctrl := &fakeController{}
	g := New(testConfig(fail, pub, nil))
	g.Add(descriptor("vectordb", 5), ctrl)
	g.Start()
	defer g.Stop()

	waitFor(t, time.Second, func() bool {
		rec, found := g.Record("vectordb")
		return found && rec.State == types.StateDegraded && ctrl.restarts.Load() >= 1
	})
	if got := pub.Named(events.ServiceDegraded); len(got) != 1 {
		t.Fatalf("expected exactly one %s event on the healthy->degraded edge, got %d",
			events.ServiceDegraded, len(got))
	}
}

func TestRestartBudgetExhaustionEscalatesOnce(t *testing.T) {
	pub := events.NewMemoryPublisher()
	fail := ProberFunc(func(ctx context.Context, target string) error {
		return errors.New("connection refused")
	})
	ctrl := &fakeController{}
	g := New(testConfig(fail, pub, nil))
	g.Add(descriptor("llm", 2), ctrl)
	g.Start()
	defer g.Stop()

	waitFor(t, 2*time.Second, func() bool {
		rec, _ := g.Record("llm")
		return rec.State == types.StateFailed
	})
	if got := ctrl.restarts.Load(); got != 2 {
		t.Fatalf("restart budget is 2, controller saw %d restarts", got)
	}

	// Let several more failing probes land: no further restarts, one alert.
	time.Sleep(50 * time.Millisecond)
	if got := ctrl.restarts.Load(); got != 2 {
		t.Fatalf("failed service must stop auto-restarting, saw %d restarts", got)
	}
	if got := pub.Named(events.Escalation); len(got) != 1 {
		t.Fatalf("expected exactly one escalation, got %d", len(got))
	}
	if got := g.Escalations(); got != 1 {
		t.Fatalf("Escalations() = %d, want 1", got)
	}
}

func TestFailedIsTerminalUntilReset(t *testing.T) {
	var healthy atomic.Bool
	p := ProberFunc(func(ctx context.Context, target string) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("no answer")
	})
	g := New(testConfig(p, nil, nil))
	g.Add(descriptor("embedder", 1), &fakeController{})
	g.Start()
	defer g.Stop()

	waitFor(t, time.Second, func() bool {
		rec, _ := g.Record("embedder")
		return rec.State == types.StateFailed
	})

	// Service comes back on its own, but failed is sticky.
	healthy.Store(true)
	time.Sleep(50 * time.Millisecond)
	rec, _ := g.Record("embedder")
	if rec.State != types.StateFailed {
		t.Fatalf("failed must persist until an operator reset, got %s", rec.State)
	}

	if !g.Reset("embedder") {
		t.Fatal("Reset returned false for a known service")
	}
	waitFor(t, time.Second, func() bool {
		rec, _ := g.Record("embedder")
		return rec.State == types.StateHealthy
	})
}

func TestResetUnknownService(t *testing.T) {
	g := New(testConfig(ProberFunc(func(context.Context, string) error { return nil }), nil, nil))
	if g.Reset("ghost") {
		t.Fatal("Reset of an unregistered service should report false")
	}
}

func TestProbeFeedsDependencyGraph(t *testing.T) {
	dg := graph.New()
	dg.AddVertex("vectordb")
	dg.AddVertex("rag")
	if err := dg.AddEdge("rag", "vectordb"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	var dbUp atomic.Bool
	dbUp.Store(true)
	p := ProberFunc(func(ctx context.Context, target string) error {
		if dbUp.Load() {
			return nil
		}
		return errors.New("down")
	})
	g := New(testConfig(p, nil, dg))
	g.Add(descriptor("vectordb", 5), &fakeController{})
	g.Add(descriptor("rag", 5), &fakeController{})
	g.Start()
	defer g.Stop()

	waitFor(t, time.Second, func() bool { return dg.IsHealthy("rag") })

	dbUp.Store(false)
	waitFor(t, time.Second, func() bool { return !dg.IsHealthy("rag") })
}

func TestMetaGuardianRestartsStalledGuardian(t *testing.T) {
	pub := events.NewMemoryPublisher()
	g := New(testConfig(ProberFunc(func(context.Context, string) error { return nil }), pub, nil))
	g.Start()
	g.Stop() // heartbeat freezes here

	m := NewMeta(g, 2, pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return g.Running() })
	if m.Restarts() < 1 {
		t.Fatalf("meta-guardian restarts = %d, want >= 1", m.Restarts())
	}
	if got := pub.Named(events.GuardianRestart); len(got) == 0 {
		t.Fatalf("expected a %s event", events.GuardianRestart)
	}
	g.Stop()
}

func TestRemoveStopsProbing(t *testing.T) {
	var probes atomic.Int64
	p := ProberFunc(func(ctx context.Context, target string) error {
		probes.Add(1)
		return nil
	})
	g := New(testConfig(p, nil, nil))
	g.Add(descriptor("llm", 3), &fakeController{})
	g.Start()
	defer g.Stop()

	waitFor(t, time.Second, func() bool { return probes.Load() >= 2 })
	g.Remove("llm")
	settled := probes.Load()
	time.Sleep(50 * time.Millisecond)
	if got := probes.Load(); got > settled+1 {
		t.Fatalf("probes continued after Remove: %d -> %d", settled, got)
	}
}
