package handlers

import (
	"log/slog"

	"github.com/dimitrije/querydraft/internal/hub"
	"github.com/dimitrije/querydraft/internal/middleware"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// SSEHandler streams a session's events to read-only observers. Observers
// are bound to the session in the registry but never become participants.
type SSEHandler struct {
	hub              HubInterface
	sessions         SessionManagerInterface
	workspaceService WorkspaceServiceInterface
	logger           *slog.Logger
}

func NewSSEHandler(hub HubInterface, sessions SessionManagerInterface, workspaceService WorkspaceServiceInterface, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{
		hub:              hub,
		sessions:         sessions,
		workspaceService: workspaceService,
		logger:           logger,
	}
}

func (h *SSEHandler) Connect(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.BadRequest("invalid session id")
		return
	}

	if err := canObserve(c.Request.Context(), h.sessions, h.workspaceService, sessionID, userID); err != nil {
		respondError(c, err, "failed to load session")
		return
	}

	client := &hub.Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, syncSendBuffer),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if err := h.hub.Bind(client.ID, userID, sessionID); err != nil {
		respondError(c, err, "failed to subscribe")
		return
	}

	sseCtx := c.SSE()

	if err := sseCtx.SendJSON(map[string]string{
		"type":       "connected",
		"client_id":  client.ID,
		"session_id": sessionID.String(),
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				h.logger.Debug("sse send failed", "client_id", client.ID, "error", err)
				return
			}
		case <-done:
			return
		}
	}
}
