// Package guardian probes every registered service independently of request
// traffic, issues bounded automatic restarts with backoff, and escalates
// exactly once when a restart budget is exhausted. A minimal meta-guardian
// watches the guardian's own heartbeat.
package guardian

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"aegisd/internal/control"
	"aegisd/internal/events"
	"aegisd/internal/graph"
	"aegisd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 2 * time.Second
	defaultMaxAttempts   = 3
	defaultBackoff       = 500 * time.Millisecond
)

// Config holds guardian tunables.
type Config struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	Graph         *graph.Graph
	Publisher     events.Publisher
	Prober        Prober
}

// service is one supervised entry: descriptor, controller, live record.
type service struct {
	desc      types.ServiceDescriptor
	ctrl      control.Controller
	cancel    context.CancelFunc
	state     types.ServiceState
	lastProbe time.Time
	failures  int
	restarts  int
	escalated bool
}

func (s *service) maxAttempts() int {
	if s.desc.Restart.MaxAttempts > 0 {
		return s.desc.Restart.MaxAttempts
	}
	return defaultMaxAttempts
}

func (s *service) backoff() time.Duration {
	if d := s.desc.Restart.Backoff.Std(); d > 0 {
		return d
	}
	return defaultBackoff
}

// Guardian runs one probe loop per registered service. Each loop has its own
// timeout so one hung probe never delays the others.
type Guardian struct {
	cfg       Config
	graph     *graph.Graph
	publisher events.Publisher
	prober    Prober

	mu       sync.Mutex
	services map[string]*service
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	heartbeat   atomic.Int64 // unix nanos of the latest tick
	escalations atomic.Uint64
}

// New constructs a Guardian from Config.
func New(cfg Config) *Guardian {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Prober == nil {
		cfg.Prober = NewHTTPProber()
	}
	return &Guardian{
		cfg:       cfg,
		graph:     cfg.Graph,
		publisher: cfg.Publisher,
		prober:    cfg.Prober,
		services:  make(map[string]*service),
	}
}

// Add registers a service and starts its probe loop when the guardian runs.
func (g *Guardian) Add(desc types.ServiceDescriptor, ctrl control.Controller) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ctrl == nil {
		ctrl = control.NopController{}
	}
	svc := &service{desc: desc, ctrl: ctrl, state: types.StateUnknown}
	g.services[desc.ID] = svc
	if g.running {
		g.startLoop(svc)
	}
}

// Remove stops a service's probe loop and drops its record.
func (g *Guardian) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if svc := g.services[id]; svc != nil && svc.cancel != nil {
		svc.cancel()
	}
	delete(g.services, id)
}

// Start launches probe loops for every registered service. Restartable:
// Stop followed by Start resumes probing with records intact.
func (g *Guardian) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.running = true
	g.beat()
	for _, svc := range g.services {
		g.startLoop(svc)
	}
	// Dedicated heartbeat tick so an idle guardian still reads as alive.
	g.wg.Add(1)
	go g.heartbeatLoop(g.ctx)
}

// Stop cancels all probe loops and waits for them to exit.
func (g *Guardian) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.cancel()
	g.mu.Unlock()
	g.wg.Wait()
}

// Running reports whether probe loops are live.
func (g *Guardian) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Heartbeat returns the time of the guardian's latest tick.
func (g *Guardian) Heartbeat() time.Time {
	return time.Unix(0, g.heartbeat.Load())
}

// Escalations returns the number of escalation alerts emitted since start.
func (g *Guardian) Escalations() uint64 { return g.escalations.Load() }

// ProbeInterval exposes the configured interval for the meta-guardian.
func (g *Guardian) ProbeInterval() time.Duration { return g.cfg.ProbeInterval }

// MarkBooting is called by the boot sequencer when it starts a service.
func (g *Guardian) MarkBooting(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if svc := g.services[id]; svc != nil {
		svc.state = types.StateBooting
	}
}

// MarkStopped is called by the boot sequencer after a service is torn down.
func (g *Guardian) MarkStopped(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if svc := g.services[id]; svc != nil {
		svc.state = types.StateStopped
	}
	if g.graph != nil {
		g.graph.SetProbe(id, false)
	}
}

// Reset clears a failed service's counters so automatic recovery resumes.
// The failed state is terminal until this manual reset.
func (g *Guardian) Reset(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	svc := g.services[id]
	if svc == nil {
		return false
	}
	svc.failures = 0
	svc.restarts = 0
	svc.escalated = false
	svc.state = types.StateUnknown
	return true
}

// Record returns the health record for one service.
func (g *Guardian) Record(id string) (types.HealthRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	svc := g.services[id]
	if svc == nil {
		return types.HealthRecord{}, false
	}
	return recordOf(svc), true
}

// Records returns health records for all registered services.
func (g *Guardian) Records() []types.HealthRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]types.HealthRecord, 0, len(g.services))
	for _, svc := range g.services {
		out = append(out, recordOf(svc))
	}
	return out
}

func recordOf(svc *service) types.HealthRecord {
	rec := types.HealthRecord{
		ServiceID:           svc.desc.ID,
		State:               svc.state,
		ConsecutiveFailures: svc.failures,
		RestartAttempts:     svc.restarts,
	}
	if !svc.lastProbe.IsZero() {
		rec.LastProbeUnix = svc.lastProbe.Unix()
	}
	return rec
}

func (g *Guardian) beat() {
	g.heartbeat.Store(time.Now().UnixNano())
	guardianHeartbeat.SetToCurrentTime()
}

func (g *Guardian) heartbeatLoop(ctx context.Context) {
	defer g.wg.Done()
	t := time.NewTicker(g.cfg.ProbeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.beat()
		}
	}
}
