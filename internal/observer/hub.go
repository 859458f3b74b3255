package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
)

const (
	clientBuffer = 256
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Hub streams notifications to websocket subscribers. Notify never blocks
// the simulation loop: slow clients drop messages once their buffer fills.
type Hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uint64]chan []byte
	nextID  atomic.Uint64
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewHub constructs a hub with no subscribers.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log:     log,
		clients: make(map[uint64]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Notify encodes the notification once and queues it for every client.
func (h *Hub) Notify(agent, message string) {
	b, err := json.Marshal(Notification{
		Seq:     h.seq.Add(1),
		Agent:   agent,
		Message: message,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		h.log.Warn(context.Background(), "encode notification failed", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) register() (uint64, chan []byte) {
	id := h.nextID.Add(1)
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

// Handler upgrades the request to a websocket and streams notifications
// until either side disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			h.log.Debug(r.Context(), "websocket upgrade failed", logging.Err(err))
			return
		}
		defer conn.Close()

		id, out := h.register()
		defer h.unregister(id)
		h.log.Debug(r.Context(), "observer connected", logging.Int("client", int(id)))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
							time.Now().Add(time.Second))
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop only detects disconnects; clients send nothing meaningful.
		go func() {
			for {
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		<-writeErr
		h.log.Debug(r.Context(), "observer disconnected", logging.Int("client", int(id)))
	}
}
