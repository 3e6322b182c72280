package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"marketplace-chat/internal/observer"
	"marketplace-chat/pkg/logger"
)

// StreamMessage is written to clients for every coalesced change. Clients
// refetch the topic's data over HTTP.
type StreamMessage struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ClientCounter observes connects and disconnects.
type ClientCounter interface {
	StreamClients(delta int)
}

// Hub tracks connected clients and fans out change notifications.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *logger.Logger
	counter ClientCounter

	register   chan *Client
	unregister chan *Client
	// done is closed once Run has returned.
	done chan struct{}
}

func NewHub(l *logger.Logger) *Hub {
	if l == nil {
		l = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		logger:     l.Named("stream"),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) SetCounter(c ClientCounter) {
	h.counter = c
}

// Run owns client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register adds client. After Run has stopped the client is shut down instead.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		client.shutdown()
		return
	default:
	}
	select {
	case h.register <- client:
	case <-h.done:
		client.shutdown()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case <-h.done:
		client.shutdown()
		return
	default:
	}
	select {
	case h.unregister <- client:
	case <-h.done:
		client.shutdown()
	}
}

// Broadcast sends payload to every client subscribed to topic.
func (h *Hub) Broadcast(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.Wants(topic) && !c.SendMessage(payload) {
			h.logger.Warnf("stream client %s is slow, dropped %s", c.ID, topic)
		}
	}
}

// Forward relays every change drained from sub until ctx is done.
func (h *Hub) Forward(ctx context.Context, sub *observer.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.C():
			for _, ch := range sub.Drain() {
				payload, err := json.Marshal(StreamMessage{Type: "change", Topic: ch.Topic, Version: ch.Version})
				if err != nil {
					continue
				}
				h.Broadcast(ch.Topic, payload)
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	if h.counter != nil {
		h.counter.StreamClients(1)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
	}
	client.shutdown()
	h.mu.Unlock()
	if ok && h.counter != nil {
		h.counter.StreamClients(-1)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.shutdown()
		delete(h.clients, id)
		if h.counter != nil {
			h.counter.StreamClients(-1)
		}
	}
}
