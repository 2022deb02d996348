// Package boot runs dependency-ordered startup and reverse-ordered shutdown.
// Stages come from the dependency graph's topological layering; services in
// a stage start concurrently, stages run strictly in order, and a stage that
// fails to converge aborts the whole boot.
package boot

import (
	"context"
	"sync"
	"time"

	"aegisd/internal/control"
	"aegisd/internal/events"
	"aegisd/internal/graph"
	"aegisd/internal/guardian"
	"aegisd/pkg/types"
)

const (
	defaultStageTimeout = 60 * time.Second
	defaultDrainTimeout = 10 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// Config wires the sequencer's collaborators.
type Config struct {
	Graph        *graph.Graph
	Guardian     *guardian.Guardian
	Publisher    events.Publisher
	StageTimeout time.Duration
	DrainTimeout time.Duration
	// PollInterval is how often stage convergence is re-checked. Zero applies
	// the package default; tests shrink it.
	PollInterval time.Duration
	// Controllers resolves the controller for a service id.
	Controllers func(id string) control.Controller
}

// Sequencer boots and shuts down the registered services.
type Sequencer struct {
	graph       *graph.Graph
	guardian    *guardian.Guardian
	publisher   events.Publisher
	stageLimit  time.Duration
	drainLimit  time.Duration
	poll        time.Duration
	controllers func(id string) control.Controller
}

// New constructs a Sequencer from Config.
func New(cfg Config) *Sequencer {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Controllers == nil {
		cfg.Controllers = func(string) control.Controller { return control.NopController{} }
	}
	return &Sequencer{
		graph:       cfg.Graph,
		guardian:    cfg.Guardian,
		publisher:   cfg.Publisher,
		stageLimit:  cfg.StageTimeout,
		drainLimit:  cfg.DrainTimeout,
		poll:        cfg.PollInterval,
		controllers: cfg.Controllers,
	}
}

// Boot starts every stage in order and waits for it to converge. The first
// stage that misses its timeout aborts the boot: later stages are never
// started, and the error names the services that failed to become healthy.
func (s *Sequencer) Boot(ctx context.Context) (*types.BootReport, error) {
	started := time.Now()
	report := &types.BootReport{StartedUnix: started.Unix()}
	plan := s.graph.BootPlan()

	for i, stage := range plan {
		stageStart := time.Now()
		s.publisher.Publish(events.Event{
			Name:   events.BootStage,
			Fields: map[string]any{"stage": i, "services": stage},
		})

		s.startStage(ctx, stage)
		unhealthy := s.awaitStage(ctx, stage)

		report.Stages = append(report.Stages, types.StageReport{
			Stage:      i,
			Services:   stage,
			Unhealthy:  unhealthy,
			DurationMS: time.Since(stageStart).Milliseconds(),
		})

		if len(unhealthy) > 0 {
			blocked := s.blockedBy(unhealthy)
			s.publisher.Publish(events.Event{
				Name:   events.BootAborted,
				Fields: map[string]any{"stage": i, "unhealthy": unhealthy, "blocked": blocked},
			})
			bootsTotal.WithLabelValues("aborted").Inc()
			return report, ErrBootAborted(i, unhealthy, blocked)
		}
	}

	report.Completed = true
	bootsTotal.WithLabelValues("completed").Inc()
	s.publisher.Publish(events.Event{
		Name:   events.BootDone,
		Fields: map[string]any{"stages": len(plan), "duration_ms": time.Since(started).Milliseconds()},
	})
	return report, nil
}

// Shutdown stops services stage by stage in reverse boot order. Each service
// gets the drain timeout to stop gracefully before it is killed.
func (s *Sequencer) Shutdown(ctx context.Context) {
	plan := s.graph.BootPlan()
	for i := len(plan) - 1; i >= 0; i-- {
		stage := plan[i]
		s.publisher.Publish(events.Event{
			Name:   events.ShutdownStage,
			Fields: map[string]any{"stage": i, "services": stage},
		})
		var wg sync.WaitGroup
		for _, id := range stage {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				s.stopOne(ctx, id)
			}(id)
		}
		wg.Wait()
	}
}

func (s *Sequencer) startStage(ctx context.Context, stage []string) {
	var wg sync.WaitGroup
	for _, id := range stage {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if s.guardian != nil {
				s.guardian.MarkBooting(id)
			}
			// Start errors surface as the service never converging.
			_ = s.controllers(id).Start(ctx)
		}(id)
	}
	wg.Wait()
}

// awaitStage polls until every service in the stage is healthy or the stage
// timeout elapses. Returns the ids still unhealthy, sorted by stage order.
func (s *Sequencer) awaitStage(ctx context.Context, stage []string) []string {
	deadline := time.Now().Add(s.stageLimit)
	for {
		unhealthy := stage[:0:0]
		for _, id := range stage {
			if !s.graph.IsHealthy(id) {
				unhealthy = append(unhealthy, id)
			}
		}
		if len(unhealthy) == 0 {
			return nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return unhealthy
		}
		select {
		case <-ctx.Done():
		case <-time.After(s.poll):
		}
	}
}

func (s *Sequencer) stopOne(ctx context.Context, id string) {
	ctrl := s.controllers(id)
	dctx, cancel := context.WithTimeout(ctx, s.drainLimit)
	err := ctrl.Stop(dctx)
	cancel()
	if err != nil {
		// Graceful stop missed the drain window; force it.
		_ = ctrl.Kill(ctx)
	}
	if s.guardian != nil {
		s.guardian.MarkStopped(id)
	}
}

func (s *Sequencer) blockedBy(unhealthy []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, id := range unhealthy {
		for _, dep := range s.graph.BlockedDependents(id) {
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				out = append(out, dep)
			}
		}
	}
	return out
}
