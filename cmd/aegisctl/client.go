package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aegisd/pkg/types"
)

// client is a thin wrapper over the aegisd HTTP API.
type client struct {
	server string
	http   http.Client
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.server + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *client) post(path string, body []byte, out any) error {
	resp, err := c.http.Post(c.server+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *client) postJSON(path string, v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.post(path, b, out)
}

func (c *client) del(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.server+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr types.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// activityEvent mirrors the /activity entries without importing internal packages.
type activityEvent struct {
	Name    string         `json:"name"`
	Subject string         `json:"subject,omitempty"`
	At      time.Time      `json:"at"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func parseDuration(s string) (types.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return types.Duration(d), nil
}

func printStatus(w io.Writer, st types.StatusResponse) {
	fmt.Fprintf(w, "uptime: %s  escalations: %d\n", (time.Duration(st.UptimeSeconds) * time.Second).String(), st.EscalationsTotal)
	fmt.Fprintf(w, "memory: %d/%d MB allocated, queue=%d, evictions=%d\n",
		st.Ledger.AllocatedMB, st.Ledger.BudgetMB, st.Ledger.QueueLen, st.Ledger.EvictionsTotal)
	for _, a := range st.Ledger.Allocations {
		fmt.Fprintf(w, "  resident %-20s %6dMB prio=%d\n", a.ModelID, a.SizeMB, a.Priority)
	}
	if st.Boot != nil {
		state := "aborted"
		if st.Boot.Completed {
			state = "completed"
		}
		fmt.Fprintf(w, "boot: %s, %d stages\n", state, len(st.Boot.Stages))
	}
	for _, s := range st.Services {
		fmt.Fprintf(w, "service %-20s %s\n", s.Descriptor.ID, s.Health.State)
	}
}
