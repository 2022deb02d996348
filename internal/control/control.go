// Package control starts, stops and restarts supervised services. Each
// registered service picks one controller implementation via its ControlSpec:
// an HTTP control server, a docker container, a spawned command, or none.
package control

import (
	"context"
	"fmt"

	"aegisd/pkg/types"
)

// Controller drives one service's process lifecycle. Implementations must
// honour ctx deadlines on every call.
type Controller interface {
	// Start launches the service. Starting an already running service is
	// not an error.
	Start(ctx context.Context) error
	// Stop requests a graceful stop.
	Stop(ctx context.Context) error
	// Kill forces termination after a graceful stop did not finish.
	Kill(ctx context.Context) error
	// Restart stops (gracefully when possible) and starts the service.
	Restart(ctx context.Context) error
}

// Factory builds controllers from control specs. The docker client is shared
// across controllers and dialed lazily on first use.
type Factory struct {
	docker *dockerClient
}

func NewFactory() *Factory { return &Factory{docker: newDockerClient()} }

// For returns the controller for one service descriptor.
func (f *Factory) For(spec types.ControlSpec) (Controller, error) {
	switch spec.Type {
	case "", "none":
		return NopController{}, nil
	case "http":
		if spec.URL == "" {
			return nil, fmt.Errorf("http control requires url")
		}
		return newHTTPController(spec.URL), nil
	case "docker":
		if spec.Container == "" {
			return nil, fmt.Errorf("docker control requires container")
		}
		return newDockerController(f.docker, spec.Container), nil
	case "exec":
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("exec control requires command")
		}
		return newExecController(spec.Command), nil
	default:
		return nil, fmt.Errorf("unknown control type: %s", spec.Type)
	}
}

// NopController is used for services the supervisor observes but does not
// manage (externally started clients).
type NopController struct{}

func (NopController) Start(context.Context) error   { return nil }
func (NopController) Stop(context.Context) error    { return nil }
func (NopController) Kill(context.Context) error    { return nil }
func (NopController) Restart(context.Context) error { return nil }
