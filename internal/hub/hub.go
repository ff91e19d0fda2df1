package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dimitrije/querydraft/internal/events"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/google/uuid"
)

// Client is one live transport connection. The transport owns the write
// side of Send; the hub closes it on Unregister.
type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte

	binding *models.ConnectionBinding
}

// Hub is the connection registry. A connection is bound to at most one
// session at a time, and broadcasts reach every connection bound to the
// target session.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	sessions map[uuid.UUID]map[string]*Client

	now    func() time.Time
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		sessions: make(map[uuid.UUID]map[string]*Client),
		now:      time.Now,
		logger:   logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// Unregister removes the client and closes its Send channel. The returned
// binding, if any, is what the connection was attached to.
func (h *Hub) Unregister(client *Client) (models.ConnectionBinding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return models.ConnectionBinding{}, false
	}

	binding, bound := h.unbindLocked(client)
	delete(h.clients, client.ID)
	close(client.Send)

	return binding, bound
}

func (h *Hub) Bind(connectionID string, userID, sessionID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return fmt.Errorf("connection %s: %w", connectionID, services.ErrNotFound)
	}
	if client.UserID != userID {
		return fmt.Errorf("connection belongs to another user: %w", services.ErrPermissionDenied)
	}

	if client.binding != nil && client.binding.SessionID == sessionID {
		return nil
	}
	h.unbindLocked(client)

	client.binding = &models.ConnectionBinding{
		ConnectionID: connectionID,
		UserID:       userID,
		SessionID:    sessionID,
		ConnectedAt:  h.now(),
	}

	bound, ok := h.sessions[sessionID]
	if !ok {
		bound = make(map[string]*Client)
		h.sessions[sessionID] = bound
	}
	bound[connectionID] = client

	return nil
}

func (h *Hub) Unbind(connectionID string) (models.ConnectionBinding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return models.ConnectionBinding{}, false
	}
	return h.unbindLocked(client)
}

// UnbindUser detaches every connection userID has bound to sessionID and
// returns their ids.
func (h *Hub) UnbindUser(sessionID, userID uuid.UUID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var ids []string
	for id, client := range h.sessions[sessionID] {
		if client.UserID == userID {
			h.unbindLocked(client)
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Hub) unbindLocked(client *Client) (models.ConnectionBinding, bool) {
	if client.binding == nil {
		return models.ConnectionBinding{}, false
	}

	binding := *client.binding
	client.binding = nil

	if bound, ok := h.sessions[binding.SessionID]; ok {
		delete(bound, client.ID)
		if len(bound) == 0 {
			delete(h.sessions, binding.SessionID)
		}
	}

	return binding, true
}

func (h *Hub) Binding(connectionID string) (models.ConnectionBinding, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connectionID]
	if !ok || client.binding == nil {
		return models.ConnectionBinding{}, false
	}
	return *client.binding, true
}

func (h *Hub) SessionConnections(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Broadcast delivers e to every connection bound to sessionID and returns
// how many accepted it. Connections with a full buffer miss the event.
func (h *Hub) Broadcast(sessionID uuid.UUID, e events.Event) int {
	data, err := events.Encode(sessionID, h.now(), e)
	if err != nil {
		h.logger.Error("failed to encode event", "type", e.Type(), "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.sessions[sessionID] {
		select {
		case client.Send <- data:
			delivered++
		default:
			h.logger.Warn("dropping event for slow connection",
				"connection_id", client.ID, "session_id", sessionID, "type", e.Type())
		}
	}
	return delivered
}

func (h *Hub) SendEvent(connectionID string, sessionID uuid.UUID, e events.Event) bool {
	data, err := events.Encode(sessionID, h.now(), e)
	if err != nil {
		h.logger.Error("failed to encode event", "type", e.Type(), "error", err)
		return false
	}
	return h.send(connectionID, data)
}

// SendJSON queues a direct reply for one connection.
func (h *Hub) SendJSON(connectionID string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal reply", "error", err)
		return false
	}
	return h.send(connectionID, data)
}

func (h *Hub) send(connectionID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return false
	}

	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// Close unregisters every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.sessions = make(map[uuid.UUID]map[string]*Client)
}
