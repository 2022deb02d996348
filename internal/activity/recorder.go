package activity

import (
	"context"
	"time"

	"aegisd/internal/events"
)

// Recorder is an event sink feeding the ring and, when configured, the
// SQLite store. Store writes happen inline; they are single-row inserts on a
// local database and losing them on error is acceptable.
type Recorder struct {
	log   *Log
	store *Store
}

// NewRecorder wires a recorder; store may be nil for memory-only operation.
func NewRecorder(log *Log, store *Store) *Recorder {
	return &Recorder{log: log, store: store}
}

// Publish implements events.Publisher.
func (r *Recorder) Publish(e events.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	r.log.Add(e)
	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = r.store.Append(ctx, e)
		cancel()
	}
}

// Recent prefers the persistent store, falling back to the ring.
func (r *Recorder) Recent(ctx context.Context, limit int) []events.Event {
	if r.store != nil {
		if out, err := r.store.Recent(ctx, limit); err == nil {
			return out
		}
	}
	out := r.log.List()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
