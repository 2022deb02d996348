package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"aegisd/internal/events"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHubStreamsEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewMux(&fakeService{}, hub))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := events.Event{Name: events.Escalation, Subject: "vectordb", At: time.Now().UTC()}
	hub.Publish(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != want.Name || got.Subject != want.Subject {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHubDropsClosedSubscribers(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewMux(&fakeService{}, hub))
	defer srv.Close()

	conn := dialHub(t, srv)
	conn.Close()

	// The read-drain goroutine unregisters on error; publishing to a closed
	// conn removes it as well.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		hub.Publish(events.Event{Name: events.ServiceHealthy, Subject: "x"})
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never dropped, have %d", hub.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
