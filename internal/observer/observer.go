// Package observer fans delivery lifecycle notifications out to logs,
// in-memory recorders and websocket subscribers.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
)

// Notification is a single message emitted by an agent.
type Notification struct {
	Seq     uint64    `json:"seq"`
	Agent   string    `json:"agent"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Sink is anything that accepts notifications.
type Sink interface {
	Notify(agent, message string)
}

// Fanout forwards each notification to every sink in order.
type Fanout []Sink

func (f Fanout) Notify(agent, message string) {
	for _, s := range f {
		if s != nil {
			s.Notify(agent, message)
		}
	}
}

// Recorder keeps every notification in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Notification
	now     func() time.Time
}

// NewRecorder constructs an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) Notify(agent, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Notification{
		Seq:     uint64(len(r.entries) + 1),
		Agent:   agent,
		Message: message,
		Time:    r.now().UTC(),
	})
}

// Notifications returns a snapshot of everything recorded so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.entries...)
}

// Messages returns just the message text, oldest first.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, n := range r.entries {
		out = append(out, n.Message)
	}
	return out
}

// LogSink writes notifications to a structured logger at info level.
type LogSink struct {
	Log logging.Logger
}

func (s LogSink) Notify(agent, message string) {
	if s.Log == nil {
		return
	}
	s.Log.Info(context.Background(), message, logging.String("agent", agent))
}
