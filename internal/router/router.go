// Package router resolves capabilities to backends and dispatches requests
// with strict-sequential fallback: each candidate is tried at most once, in
// order, and the first success wins.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aegisd/internal/events"
	"aegisd/internal/graph"
	"aegisd/internal/registry"
	"aegisd/internal/sched"
	"aegisd/pkg/types"
)

const defaultDispatchTimeout = 30 * time.Second

// Config wires the router's collaborators.
type Config struct {
	Registry        *registry.Registry
	Graph           *graph.Graph
	Sched           *sched.Scheduler
	Publisher       events.Publisher
	DispatchTimeout time.Duration
	// Dispatchers overrides dispatcher selection, mainly for tests. When nil
	// the locality of the model decides: OpenAI SDK for remote backends,
	// plain HTTP for local ones.
	Dispatchers func(m types.Model) Dispatcher
}

// Router routes requests across the registry with health-aware fallback.
type Router struct {
	registry   *registry.Registry
	graph      *graph.Graph
	sched      *sched.Scheduler
	publisher  events.Publisher
	timeout    time.Duration
	dispatcher func(m types.Model) Dispatcher
}

// New constructs a Router from Config.
func New(cfg Config) *Router {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = defaultDispatchTimeout
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Dispatchers == nil {
		cfg.Dispatchers = defaultDispatcher
	}
	return &Router{
		registry:   cfg.Registry,
		graph:      cfg.Graph,
		sched:      cfg.Sched,
		publisher:  cfg.Publisher,
		timeout:    cfg.DispatchTimeout,
		dispatcher: cfg.Dispatchers,
	}
}

// Route picks the first viable candidate for req and dispatches to it.
// Candidates that are unhealthy are skipped without touching the memory
// ledger; candidates that fail admission or dispatch are recorded and the
// next one is tried. When every candidate is exhausted the error carries
// the full attempt trail.
func (r *Router) Route(ctx context.Context, req types.RouteRequest) (*types.RouteResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	candidates, err := r.candidates(req)
	if err != nil {
		return nil, err
	}

	if d := req.Deadline.Std(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var attempts []types.RouteAttempt
	for _, m := range candidates {
		if !r.healthy(m) {
			attempts = append(attempts, types.RouteAttempt{Backend: m.ID, Reason: "unhealthy"})
			r.fallback(requestID, m.ID, "unhealthy")
			continue
		}

		if m.Locality == types.LocalityLocal {
			if err := r.sched.Acquire(ctx, m.ID, m.EstMemMB, req.Priority); err != nil {
				attempts = append(attempts, types.RouteAttempt{Backend: m.ID, Reason: fmt.Sprintf("memory: %v", err)})
				r.fallback(requestID, m.ID, "memory")
				if ctx.Err() != nil {
					break
				}
				continue
			}
			r.sched.Touch(m.ID)
		}

		result, err := r.dispatchOne(ctx, m, req)
		if err != nil {
			attempts = append(attempts, types.RouteAttempt{Backend: m.ID, Reason: fmt.Sprintf("dispatch: %v", err)})
			r.fallback(requestID, m.ID, "dispatch")
			routeFailures.WithLabelValues(m.ID).Inc()
			if ctx.Err() != nil {
				break
			}
			continue
		}

		latency := time.Since(start)
		routesTotal.WithLabelValues(m.ID).Inc()
		routeLatency.WithLabelValues(m.ID).Observe(latency.Seconds())
		attempts = append(attempts, types.RouteAttempt{Backend: m.ID})
		return &types.RouteResponse{
			RequestID:   requestID,
			BackendUsed: m.ID,
			Cost:        m.CostClass,
			LatencyMS:   latency.Milliseconds(),
			Result:      result,
			Attempts:    attempts,
		}, nil
	}

	routeExhausted.Inc()
	return nil, ErrBackendUnavailable(req.Capability, attempts)
}

// candidates returns the ordered list of models to try. An explicit fallback
// chain wins over registry ordering; chain entries that are unknown or do
// not support the capability are dropped.
func (r *Router) candidates(req types.RouteRequest) ([]types.Model, error) {
	if len(req.FallbackChain) == 0 {
		resolved := r.registry.Resolve(req.Capability)
		if len(resolved) == 0 {
			return nil, ErrNoBackend(req.Capability)
		}
		return resolved, nil
	}

	var out []types.Model
	for _, id := range req.FallbackChain {
		m, ok := r.registry.Get(id)
		if !ok || !m.Supports(req.Capability) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, ErrNoBackend(req.Capability)
	}
	return out, nil
}

// healthy consults the dependency graph. Models without a backing service
// vertex (typically remote APIs) are assumed reachable; dispatch failures
// cover the rest.
func (r *Router) healthy(m types.Model) bool {
	if r.graph == nil || !r.graph.Has(m.ID) {
		return true
	}
	return r.graph.IsHealthy(m.ID)
}

func (r *Router) dispatchOne(ctx context.Context, m types.Model, req types.RouteRequest) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.dispatcher(m).Dispatch(dctx, m, req)
}

func (r *Router) fallback(requestID, backend, reason string) {
	r.publisher.Publish(events.Event{
		Name:    events.RouteFallback,
		Subject: backend,
		Fields:  map[string]any{"request_id": requestID, "reason": reason},
	})
}
