// Package activity keeps a bounded in-memory trail of supervisor events,
// optionally mirrored to a SQLite audit store.
package activity

import (
	"sync"

	"aegisd/internal/events"
)

const defaultSize = 200

// Log is a fixed-size ring of recent events.
type Log struct {
	mu   sync.RWMutex
	buf  []events.Event
	next int
	full bool
}

// NewLog allocates a ring of the given size; non-positive sizes get the default.
func NewLog(size int) *Log {
	if size <= 0 {
		size = defaultSize
	}
	return &Log{buf: make([]events.Event, size)}
}

// Add records one event, overwriting the oldest entry when full.
func (l *Log) Add(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = e
	l.next++
	if l.next >= len(l.buf) {
		l.next = 0
		l.full = true
	}
}

// List returns the retained events, newest first.
func (l *Log) List() []events.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.full && l.next == 0 {
		return nil
	}

	var out []events.Event
	if l.full {
		out = make([]events.Event, 0, len(l.buf))
		out = append(out, l.buf[l.next:]...)
		out = append(out, l.buf[:l.next]...)
	} else {
		out = append([]events.Event(nil), l.buf[:l.next]...)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
