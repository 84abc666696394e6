package sse

import (
	"encoding/json"
	"sync"

	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/google/uuid"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Client struct {
	ID       string
	UserID   uuid.UUID
	Projects map[uuid.UUID]bool
	Send     chan []byte
}

func NewClient(userID uuid.UUID, projectID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Projects: map[uuid.UUID]bool{projectID: true},
		Send:     make(chan []byte, 256),
	}
}

type ProjectMessage struct {
	ProjectID uuid.UUID
	Event     Event
	// DropUser, when set, is unsubscribed from the project after delivery.
	DropUser uuid.UUID
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *ProjectMessage
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ProjectMessage, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Event)
			if err != nil {
				logger.Error().Err(err).Str("type", msg.Event.Type).Msg("failed to encode sharing event")
				continue
			}
			h.mu.Lock()
			for _, client := range h.clients {
				if !client.Projects[msg.ProjectID] {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// Client buffer full, skip
				}
				if msg.DropUser != uuid.Nil && client.UserID == msg.DropUser {
					delete(client.Projects, msg.ProjectID)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribed reports whether the client still receives events for the project.
func (h *Hub) Subscribed(clientID string, projectID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return ok && client.Projects[projectID]
}

// Publish queues an event for every subscriber of the project.
func (h *Hub) Publish(projectID uuid.UUID, eventType string, data any) {
	h.broadcast <- &ProjectMessage{
		ProjectID: projectID,
		Event:     Event{Type: eventType, Data: data},
	}
}

// PublishRevocation delivers the event, then stops sending the project's
// events to the user's open streams.
func (h *Hub) PublishRevocation(projectID, userID uuid.UUID, eventType string, data any) {
	h.broadcast <- &ProjectMessage{
		ProjectID: projectID,
		Event:     Event{Type: eventType, Data: data},
		DropUser:  userID,
	}
}
