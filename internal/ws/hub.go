package ws

import (
	"sync"

	"github.com/rs/zerolog"
)

type message struct {
	topic string
	data  []byte
}

// Hub fans messages out to the sockets subscribed to a topic. Topics are
// user ids: a user only ever receives the state of their own workspace.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan message
	unregister chan *Client
	done       chan struct{}
	stopped    bool
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan message, 1024),
		unregister: make(chan *Client, 128),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.unregister:
			if client == nil {
				continue
			}
			h.remove(client)

		case msg := <-h.broadcast:
			h.mutex.RLock()
			targets := make([]*Client, 0, len(h.clients[msg.topic]))
			for c := range h.clients[msg.topic] {
				targets = append(targets, c)
			}
			h.mutex.RUnlock()

			for _, client := range targets {
				select {
				case client.send <- msg.data:
				default:
					// slow reader
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	set := h.clients[client.topic]
	if _, ok := set[client]; ok {
		delete(set, client)
		close(client.send)
		if len(set) == 0 {
			delete(h.clients, client.topic)
		}
	}
	total := len(set)
	h.mutex.Unlock()
	h.logger.Debug().Str("topic", client.topic).Int("clients", total).Msg("ws disconnected")
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for topic, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, topic)
	}
}

// Register subscribes client to its topic. After Stop the client is refused
// and its queue closed, so its WritePump exits.
func (h *Hub) Register(client *Client) bool {
	if h == nil || client == nil {
		return false
	}
	h.mutex.Lock()
	if h.stopped {
		h.mutex.Unlock()
		close(client.send)
		return false
	}
	set, ok := h.clients[client.topic]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[client.topic] = set
	}
	set[client] = true
	total := len(set)
	h.mutex.Unlock()
	h.logger.Debug().Str("topic", client.topic).Int("clients", total).Msg("ws connected")
	return true
}

func (h *Hub) Unregister(client *Client) {
	if h == nil {
		return
	}
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues data for every socket on topic. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(topic string, data []byte) {
	if h == nil {
		return
	}
	select {
	case h.broadcast <- message{topic: topic, data: data}:
	default:
		h.logger.Warn().Str("topic", topic).Msg("ws broadcast dropped: buffer full")
	}
}

// ClientCount returns the sockets on topic, or all sockets for "".
func (h *Hub) ClientCount(topic string) int {
	if h == nil {
		return 0
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if topic != "" {
		return len(h.clients[topic])
	}
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Stop ends Run and closes every socket's queue.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mutex.Lock()
		h.stopped = true
		h.mutex.Unlock()
		close(h.done)
	})
}
