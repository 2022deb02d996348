package control

import (
	"context"
	"fmt"
	"net/http"
)

// httpController manages a service through its lightweight HTTP control
// server: POST /start, /stop, /kill, /restart.
type httpController struct {
	baseURL string
	client  *http.Client
}

func newHTTPController(baseURL string) *httpController {
	// Timeout deliberately zero: every call carries a ctx deadline.
	return &httpController{baseURL: baseURL, client: &http.Client{Timeout: 0}}
}

func (c *httpController) post(ctx context.Context, action string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", action, c.baseURL, resp.StatusCode)
	}
	return nil
}

func (c *httpController) Start(ctx context.Context) error { return c.post(ctx, "start") }
func (c *httpController) Stop(ctx context.Context) error  { return c.post(ctx, "stop") }
func (c *httpController) Kill(ctx context.Context) error  { return c.post(ctx, "kill") }

func (c *httpController) Restart(ctx context.Context) error {
	// Prefer a dedicated restart action; fall back to stop+start for
	// control servers that only expose the two.
	if err := c.post(ctx, "restart"); err == nil {
		return nil
	}
	if err := c.post(ctx, "stop"); err != nil {
		return err
	}
	return c.post(ctx, "start")
}
