package control

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// execController spawns the service as a local child process.
type execController struct {
	command []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

func newExecController(command []string) *execController {
	return &execController{command: command}
}

func (c *execController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil && c.cmd.ProcessState == nil {
		return nil // already running
	}
	cmd := exec.Command(c.command[0], c.command[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child so a crashed service does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	c.cmd = cmd
	return nil
}

func (c *execController) Stop(ctx context.Context) error {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	// Best-effort: platform-specific; on Unix send SIGTERM.
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for cmd.ProcessState == nil {
			time.Sleep(20 * time.Millisecond)
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(ctx.Err(), cmd.Process.Kill())
	}
}

func (c *execController) Kill(ctx context.Context) error {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func (c *execController) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		_ = c.Kill(ctx)
	}
	return c.Start(ctx)
}
