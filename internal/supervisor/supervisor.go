// Package supervisor assembles the resource supervisor: model registry,
// memory scheduler, dependency graph, health guardian, router and boot
// sequencer, wired to one event stream.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aegisd/internal/activity"
	"aegisd/internal/alert"
	"aegisd/internal/boot"
	"aegisd/internal/common/fsutil"
	"aegisd/internal/config"
	"aegisd/internal/control"
	"aegisd/internal/events"
	"aegisd/internal/graph"
	"aegisd/internal/guardian"
	"aegisd/internal/registry"
	"aegisd/internal/router"
	"aegisd/internal/sched"
	"aegisd/pkg/types"
)

// Options carries optional collaborators, mainly test seams.
type Options struct {
	Logger zerolog.Logger
	// ExtraSinks receive every event in addition to the activity recorder
	// and the alert notifier (e.g. the websocket hub).
	ExtraSinks []events.Publisher
	// Prober overrides the HTTP health prober.
	Prober guardian.Prober
	// Controls overrides the controller factory.
	Controls *control.Factory
	// Dispatchers overrides router dispatch, for tests.
	Dispatchers func(m types.Model) router.Dispatcher
}

// Supervisor owns every subsystem and mediates all mutations.
type Supervisor struct {
	log      zerolog.Logger
	registry *registry.Registry
	graph    *graph.Graph
	sched    *sched.Scheduler
	guardian *guardian.Guardian
	meta     *guardian.MetaGuardian
	router   *router.Router
	boot     *boot.Sequencer
	recorder *activity.Recorder
	store    *activity.Store
	controls *control.Factory

	mu          sync.Mutex
	controllers map[string]control.Controller
	descriptors map[string]types.ServiceDescriptor
	bootReport  *types.BootReport

	started    time.Time
	metaCancel context.CancelFunc
}

// New assembles a Supervisor from a validated config.
func New(cfg config.Config, opts Options) (*Supervisor, error) {
	reg, err := registry.New(cfg.Models)
	if err != nil {
		return nil, err
	}

	var store *activity.Store
	if cfg.Activity.DBPath != "" {
		dbPath, err := fsutil.ExpandHome(cfg.Activity.DBPath)
		if err != nil {
			return nil, err
		}
		store, err = activity.OpenStore(dbPath)
		if err != nil {
			return nil, err
		}
	}
	recorder := activity.NewRecorder(activity.NewLog(cfg.Activity.Size), store)

	sinks := events.FanOut{recorder, alert.New(cfg.Alerts.WebhookURL, opts.Logger)}
	for _, extra := range opts.ExtraSinks {
		sinks = append(sinks, extra)
	}

	controls := opts.Controls
	if controls == nil {
		controls = control.NewFactory()
	}

	s := &Supervisor{
		log:         opts.Logger,
		registry:    reg,
		graph:       graph.New(),
		recorder:    recorder,
		store:       store,
		controls:    controls,
		controllers: make(map[string]control.Controller),
		descriptors: make(map[string]types.ServiceDescriptor),
		started:     time.Now(),
	}

	s.sched = sched.New(sched.Config{
		BudgetMB:      cfg.Memory.BudgetMB,
		AgingInterval: cfg.Memory.AgingInterval.Std(),
		Publisher:     sinks,
		OnEvict:       s.onEvict,
	})

	s.guardian = guardian.New(guardian.Config{
		ProbeInterval: cfg.Guardian.ProbeInterval.Std(),
		ProbeTimeout:  cfg.Guardian.ProbeTimeout.Std(),
		Graph:         s.graph,
		Publisher:     sinks,
		Prober:        opts.Prober,
	})
	s.meta = guardian.NewMeta(s.guardian, cfg.Guardian.HeartbeatFactor, sinks)

	s.router = router.New(router.Config{
		Registry:    s.registry,
		Graph:       s.graph,
		Sched:       s.sched,
		Publisher:   sinks,
		Dispatchers: opts.Dispatchers,
	})

	s.boot = boot.New(boot.Config{
		Graph:        s.graph,
		Guardian:     s.guardian,
		Publisher:    sinks,
		StageTimeout: cfg.Boot.StageTimeout.Std(),
		DrainTimeout: cfg.Boot.DrainTimeout.Std(),
		Controllers:  s.controllerFor,
	})

	for _, desc := range cfg.Services {
		if err := s.RegisterService(desc); err != nil {
			s.closeStore()
			return nil, err
		}
	}
	for _, e := range cfg.Edges {
		if err := s.graph.AddEdge(e.Dependent, e.DependsOn); err != nil {
			s.closeStore()
			return nil, err
		}
	}
	return s, nil
}

// Start launches the guardian probe loops and the meta-guardian watchdog.
func (s *Supervisor) Start() {
	s.guardian.Start()
	ctx, cancel := context.WithCancel(context.Background())
	s.metaCancel = cancel
	go s.meta.Run(ctx)
}

// Close stops background loops and releases the audit store.
func (s *Supervisor) Close() {
	if s.metaCancel != nil {
		s.metaCancel()
	}
	s.guardian.Stop()
	s.closeStore()
}

func (s *Supervisor) closeStore() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// Route dispatches one request through the fallback router.
func (s *Supervisor) Route(ctx context.Context, req types.RouteRequest) (*types.RouteResponse, error) {
	return s.router.Route(ctx, req)
}

// Boot runs the staged startup and records the report.
func (s *Supervisor) Boot(ctx context.Context) (*types.BootReport, error) {
	report, err := s.boot.Boot(ctx)
	s.mu.Lock()
	s.bootReport = report
	s.mu.Unlock()
	return report, err
}

// Shutdown stops services in reverse boot order.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.boot.Shutdown(ctx)
}

// Ready reports whether the supervisor can serve traffic: the last boot
// completed and the guardian is probing.
func (s *Supervisor) Ready() bool {
	s.mu.Lock()
	report := s.bootReport
	s.mu.Unlock()
	if report == nil || !report.Completed {
		return false
	}
	return s.guardian.Running()
}

// Models lists the registry catalogue.
func (s *Supervisor) Models() []types.Model { return s.registry.List() }

// Activity returns recent supervisor events, newest first.
func (s *Supervisor) Activity(ctx context.Context, limit int) []events.Event {
	return s.recorder.Recent(ctx, limit)
}

// onEvict stops an evicted backend's process if the supervisor controls one.
// Runs outside the ledger lock.
func (s *Supervisor) onEvict(modelID string) {
	s.mu.Lock()
	ctrl := s.controllers[modelID]
	s.mu.Unlock()
	if ctrl == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctrl.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Str("model", modelID).Msg("evicted backend did not stop cleanly")
	}
}

func (s *Supervisor) controllerFor(id string) control.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl := s.controllers[id]; ctrl != nil {
		return ctrl
	}
	return control.NopController{}
}
