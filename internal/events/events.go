// Package events carries supervisor lifecycle events to interested sinks:
// the websocket stream, the activity log, and the escalation webhook.
package events

import "time"

// Well-known event names.
const (
	AllocGranted    = "alloc_granted"
	AllocQueued     = "alloc_queued"
	AllocRejected   = "alloc_rejected"
	AllocReleased   = "alloc_released"
	AllocEvicted    = "alloc_evicted"
	ServiceHealthy  = "service_healthy"
	ServiceDegraded = "service_degraded"
	ServiceFailed   = "service_failed"
	ServiceRestart  = "service_restart"
	Escalation      = "escalation"
	GuardianRestart = "guardian_restart"
	BootStage       = "boot_stage"
	BootDone        = "boot_done"
	BootAborted     = "boot_aborted"
	ShutdownStage   = "shutdown_stage"
	RouteFallback   = "route_fallback"
)

// Event is one supervisor lifecycle event. Minimal and stable: name plus the
// subject id and optional fields via key/values.
type Event struct {
	Name    string         `json:"name"`
	Subject string         `json:"subject,omitempty"`
	At      time.Time      `json:"at"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// NopPublisher is the default; it drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// FanOut forwards each event to every sink in order.
type FanOut []Publisher

func (f FanOut) Publish(e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(e)
		}
	}
}
