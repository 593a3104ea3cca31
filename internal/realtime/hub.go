package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Client represents a single websocket client connection.
// The actual network conn is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event is a change notification pushed to every client watching a project.
type Event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId"`
	EntityID  string    `json:"entityId"`
	Data      any       `json:"data,omitempty"`
	At        time.Time `json:"at"`
}

// Event types
const (
	BacklogItemCreated    = "backlog_item_created"
	BacklogItemUpdated    = "backlog_item_updated"
	BacklogItemDeleted    = "backlog_item_deleted"
	BacklogItemConverted  = "backlog_item_converted"
	BacklogItemClassified = "backlog_item_classified"
	SprintCreated         = "sprint_created"
	SprintStarted         = "sprint_started"
	SprintClosed          = "sprint_closed"
	SprintItemsChanged    = "sprint_items_changed"
	BoardStatusChanged    = "board_status_changed"
	ImpedimentCreated     = "impediment_created"
	ImpedimentUpdated     = "impediment_updated"
)

// Publisher is what services use to announce committed changes.
type Publisher interface {
	Publish(evt Event)
}

// Publish sends evt through p when p is non-nil.
func Publish(p Publisher, eventType, projectID, entityID string, data any) {
	if p == nil {
		return
	}
	p.Publish(Event{
		Type:      eventType,
		ProjectID: projectID,
		EntityID:  entityID,
		Data:      data,
		At:        time.Now().UTC(),
	})
}

// Hub maintains websocket clients per project and fans events out to them.
type Hub struct {
	mu                 sync.RWMutex
	projectIdToClients map[string]map[Client]struct{}
}

func NewHub() *Hub {
	return &Hub{projectIdToClients: make(map[string]map[Client]struct{})}
}

var hubInstance *Hub
var once sync.Once

// GetHub returns a singleton hub instance.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = NewHub()
	})
	return hubInstance
}

// Register adds a client under a project ID.
func (h *Hub) Register(projectID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.projectIdToClients[projectID]; !ok {
		h.projectIdToClients[projectID] = make(map[Client]struct{})
	}
	h.projectIdToClients[projectID][client] = struct{}{}
}

// Unregister removes a client; if the project has no more clients, cleans up map.
func (h *Hub) Unregister(projectID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.projectIdToClients[projectID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.projectIdToClients, projectID)
		}
	}
}

// Subscribers returns the number of clients watching a project.
func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projectIdToClients[projectID])
}

// Broadcast sends a raw message to all clients of a project.
func (h *Hub) Broadcast(projectID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.projectIdToClients[projectID] {
		// a failed write is cleaned up by the handler's reader loop
		_ = c.Send(message)
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("marshal realtime event", "type", evt.Type, "err", err)
		return
	}
	h.Broadcast(evt.ProjectID, payload)
}
