// Package alert forwards escalation events to an operator webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"aegisd/internal/events"
)

const (
	maxAttempts    = 3
	attemptTimeout = 5 * time.Second
	retryDelay     = time.Second
)

// Notifier posts escalation and guardian-restart events to a webhook URL.
// Delivery runs in a goroutine so a slow webhook never blocks the guardian;
// failures are retried a few times and then logged and dropped.
type Notifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// New builds a Notifier. An empty URL disables delivery.
func New(url string, log zerolog.Logger) *Notifier {
	return &Notifier{url: url, client: &http.Client{}, log: log}
}

// Publish implements events.Publisher.
func (n *Notifier) Publish(e events.Event) {
	if n.url == "" {
		return
	}
	switch e.Name {
	case events.Escalation, events.GuardianRestart, events.BootAborted:
	default:
		return
	}
	go n.deliver(e)
}

func (n *Notifier) deliver(e events.Event) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = n.post(body); err == nil {
			return
		}
		if attempt < maxAttempts {
			time.Sleep(retryDelay * time.Duration(attempt))
		}
	}
	n.log.Warn().Err(err).Str("event", e.Name).Str("subject", e.Subject).
		Msg("alert webhook delivery failed")
}

func (n *Notifier) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
