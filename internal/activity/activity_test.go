package activity

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"aegisd/internal/events"
)

func TestLogNewestFirst(t *testing.T) {
	l := NewLog(10)
	for i := 0; i < 3; i++ {
		l.Add(events.Event{Name: fmt.Sprintf("e%d", i)})
	}
	got := l.List()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Name != "e2" || got[2].Name != "e0" {
		t.Fatalf("order = %v", got)
	}
}

func TestLogWrapsWhenFull(t *testing.T) {
	l := NewLog(4)
	for i := 0; i < 7; i++ {
		l.Add(events.Event{Name: fmt.Sprintf("e%d", i)})
	}
	got := l.List()
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Name != "e6" || got[3].Name != "e3" {
		t.Fatalf("ring should keep the newest four: %v", got)
	}
}

func TestLogEmpty(t *testing.T) {
	if got := NewLog(4).List(); got != nil {
		t.Fatalf("empty log should list nil, got %v", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	e := events.Event{
		Name:    events.Escalation,
		Subject: "vectordb",
		At:      time.Now().UTC().Truncate(time.Second),
		Fields:  map[string]any{"error": "connection refused"},
	}
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Name != events.Escalation || got[0].Subject != "vectordb" {
		t.Fatalf("record = %+v", got[0])
	}
	if got[0].Fields["error"] != "connection refused" {
		t.Fatalf("fields = %v", got[0].Fields)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, events.Event{Name: fmt.Sprintf("e%d", i), At: time.Now()}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d after reopen, want 3", len(got))
	}
	if got[0].Name != "e2" {
		t.Fatalf("newest first, got %v", got)
	}
}

func TestRecorderStampsAndFans(t *testing.T) {
	l := NewLog(8)
	r := NewRecorder(l, nil)
	r.Publish(events.Event{Name: events.AllocEvicted, Subject: "llama-8b"})

	got := r.Recent(context.Background(), 10)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].At.IsZero() {
		t.Fatal("recorder should stamp missing timestamps")
	}
}
