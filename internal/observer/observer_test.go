package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
)

func TestRecorderAndFanout(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := Fanout{a, nil, b, LogSink{Log: logging.Noop()}}

	sink.Notify("Drone", "Drone heading to: P")
	sink.Notify("Drone", "Drone picked up: P")

	for _, r := range []*Recorder{a, b} {
		got := r.Messages()
		if len(got) != 2 || got[0] != "Drone heading to: P" || got[1] != "Drone picked up: P" {
			t.Fatalf("messages = %v", got)
		}
		n := r.Notifications()
		if n[0].Seq != 1 || n[1].Seq != 2 || n[0].Agent != "Drone" {
			t.Fatalf("notifications = %#v", n)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestHubStreamsNotifications(t *testing.T) {
	hub := NewHub(logging.Noop())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Clients() == 1 })

	hub.Notify("Drone", "Drone dropped off: P")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var n Notification
	if err := json.Unmarshal(msg, &n); err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	if n.Agent != "Drone" || n.Message != "Drone dropped off: P" || n.Seq != 1 {
		t.Fatalf("notification = %#v", n)
	}

	hub.Close()
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to close after hub.Close")
	}
}

func TestHubDropsWhenNoClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Notify("Drone", "nobody listening")
	if hub.Clients() != 0 || hub.Dropped() != 0 {
		t.Fatalf("clients=%d dropped=%d", hub.Clients(), hub.Dropped())
	}
}
