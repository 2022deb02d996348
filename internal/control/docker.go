package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/client"
)

// dockerClient wraps a lazily-dialed engine client shared by all docker
// controllers, so supervisors without container-backed services never touch
// the docker socket.
type dockerClient struct {
	mu  sync.Mutex
	cli *client.Client
}

func newDockerClient() *dockerClient { return &dockerClient{} }

// get dials the engine on first use, honouring DOCKER_HOST et al.
func (d *dockerClient) get() (*client.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cli != nil {
		return d.cli, nil
	}
	c, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	d.cli = c
	return c, nil
}

// dockerController manages a service running as an engine container.
type dockerController struct {
	shared    *dockerClient
	container string
}

func newDockerController(shared *dockerClient, container string) *dockerController {
	return &dockerController{shared: shared, container: container}
}

func (c *dockerController) Start(ctx context.Context) error {
	cli, err := c.shared.get()
	if err != nil {
		return err
	}
	if _, err := cli.ContainerStart(ctx, c.container, client.ContainerStartOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("container %q not found", c.container)
		}
		return fmt.Errorf("start container %q: %w", c.container, err)
	}
	return nil
}

func (c *dockerController) Stop(ctx context.Context) error {
	cli, err := c.shared.get()
	if err != nil {
		return err
	}
	if _, err := cli.ContainerStop(ctx, c.container, client.ContainerStopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil // already gone
		}
		return fmt.Errorf("stop container %q: %w", c.container, err)
	}
	return nil
}

func (c *dockerController) Kill(ctx context.Context) error {
	cli, err := c.shared.get()
	if err != nil {
		return err
	}
	zero := 0
	if _, err := cli.ContainerStop(ctx, c.container, client.ContainerStopOptions{Timeout: &zero}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("kill container %q: %w", c.container, err)
	}
	return nil
}

func (c *dockerController) Restart(ctx context.Context) error {
	cli, err := c.shared.get()
	if err != nil {
		return err
	}
	if _, err := cli.ContainerRestart(ctx, c.container, client.ContainerRestartOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("container %q not found", c.container)
		}
		return fmt.Errorf("restart container %q: %w", c.container, err)
	}
	return nil
}
