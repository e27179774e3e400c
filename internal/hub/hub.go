package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ViewVisitor = "visitor"
	ViewAdmin   = "admin"
	ViewTicket  = "ticket"
)

var ErrUnknownView = errors.New("unknown view")

// MountFunc starts producing frames for a view and returns the function that
// stops it. publish may be called from any goroutine until stop returns.
type MountFunc func(publish func(payload []byte)) (stop func())

type Client struct {
	ID   string
	Send chan []byte
	view string
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{ID: uuid.NewString(), Send: make(chan []byte, buffer)}
}

type mount struct {
	subscribers int
	last        []byte
	stop        func()
}

// Hub fans view frames out to subscribed clients. A view is mounted while it
// has at least one subscriber and its latest frame is replayed to clients
// that join later.
type Hub struct {
	mu      sync.Mutex
	logger  *slog.Logger
	clients map[string]*Client
	views   map[string]MountFunc
	active  map[string]*mount
}

type SubscribeMessage struct {
	Action   string `json:"action"`
	View     string `json:"view"`
	TicketID string `json:"ticket_id,omitempty"`
}

type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Client),
		views:   make(map[string]MountFunc),
		active:  make(map[string]*mount),
	}
}

// Handle registers the producer for a view. Call before serving clients.
func (h *Hub) Handle(view string, fn MountFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views[view] = fn
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	stop := h.leaveLocked(client)
	delete(h.clients, client.ID)
	close(client.Send)
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Subscribe moves the client to view, mounting it if nobody watched it yet.
func (h *Hub) Subscribe(client *Client, view string) error {
	h.mu.Lock()
	fn, ok := h.views[view]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownView
	}
	if client.view == view {
		h.mu.Unlock()
		return nil
	}
	stopOld := h.leaveLocked(client)

	m, running := h.active[view]
	if !running {
		m = &mount{}
		h.active[view] = m
	}
	m.subscribers++
	client.view = view
	if m.last != nil {
		h.sendLocked(client, m.last)
	}
	h.mu.Unlock()

	if stopOld != nil {
		stopOld()
	}
	if running {
		return nil
	}

	stop := fn(h.publisher(view, m))
	h.mu.Lock()
	if h.active[view] == m {
		m.stop = stop
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()
	// Everyone left while the view was starting.
	stop()
	return nil
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	stop := h.leaveLocked(client)
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Subscribers reports how many clients watch view.
func (h *Hub) Subscribers(view string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.active[view]; ok {
		return m.subscribers
	}
	return 0
}

// leaveLocked detaches the client from its view and returns the view's stop
// function when it was the last subscriber. The caller runs it unlocked.
func (h *Hub) leaveLocked(client *Client) func() {
	view := client.view
	if view == "" {
		return nil
	}
	client.view = ""
	m, ok := h.active[view]
	if !ok {
		return nil
	}
	m.subscribers--
	if m.subscribers > 0 {
		return nil
	}
	delete(h.active, view)
	return m.stop
}

func (h *Hub) publisher(view string, m *mount) func([]byte) {
	return func(payload []byte) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.active[view] != m {
			return
		}
		m.last = payload
		for _, client := range h.clients {
			if client.view == view {
				h.sendLocked(client, payload)
			}
		}
	}
}

func (h *Hub) sendLocked(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		h.logger.Warn("drop message for client", "client_id", client.ID, "view", client.view)
	}
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}

// Encode wraps a frame for the wire.
func Encode(kind string, payload any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Payload: raw, CreatedAt: at})
}
