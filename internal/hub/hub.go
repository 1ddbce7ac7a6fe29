package hub

import (
	"encoding/json"
	"sync"

	"github.com/elviDev/ls-internet-radio-sub002/internal/config"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// Hub manages all WebSocket connections and their broadcast rooms.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // broadcastID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// RoomMessage is a payload fanned out to every client in a broadcast.
type RoomMessage struct {
	BroadcastID string
	Message     []byte
	Exclude     string // client id to skip
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		config:     cfg,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	l := log.L()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(log.FieldConnectionID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for broadcastID, roomClients := range h.rooms {
					delete(roomClients, client.ID)
					if len(roomClients) == 0 {
						delete(h.rooms, broadcastID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Debug().Str(log.FieldConnectionID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if roomClients, ok := h.rooms[msg.BroadcastID]; ok {
				for clientID, client := range roomClients {
					if clientID == msg.Exclude {
						continue
					}
					select {
					case client.Send <- msg.Message:
					default:
						// Send buffer full; drop the slow client.
						go h.removeClient(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom subscribes a client to a broadcast's fan-out.
func (h *Hub) JoinRoom(client *Client, broadcastID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[broadcastID]; !ok {
		h.rooms[broadcastID] = make(map[string]*Client)
	}
	h.rooms[broadcastID][client.ID] = client
	log.L().Info().
		Str(log.FieldConnectionID, client.ID).
		Str(log.FieldBroadcastID, broadcastID).
		Msg("client joined broadcast")
}

// LeaveRoom unsubscribes a client from a broadcast's fan-out.
func (h *Hub) LeaveRoom(client *Client, broadcastID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[broadcastID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, broadcastID)
		}
	}
	log.L().Info().
		Str(log.FieldConnectionID, client.ID).
		Str(log.FieldBroadcastID, broadcastID).
		Msg("client left broadcast")
}

// BroadcastToRoom sends a message to every client in a broadcast.
func (h *Hub) BroadcastToRoom(broadcastID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &RoomMessage{
		BroadcastID: broadcastID,
		Message:     data,
		Exclude:     exclude,
	}
	return nil
}

// SendToClient sends a message to one connection. Unknown ids are a
// no-op; the target may have disconnected already.
func (h *Hub) SendToClient(connectionID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}

	select {
	case client.Send <- data:
	default:
		go h.removeClient(client)
	}
	return nil
}

// RoomClientCount returns how many clients a broadcast currently has.
func (h *Hub) RoomClientCount(broadcastID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if roomClients, ok := h.rooms[broadcastID]; ok {
		return len(roomClients)
	}
	return 0
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}
