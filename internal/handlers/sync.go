package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dimitrije/querydraft/internal/events"
	"github.com/dimitrije/querydraft/internal/hub"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/dimitrije/querydraft/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/websocket"
)

const (
	syncPingInterval   = 30 * time.Second
	syncWriteTimeout   = 10 * time.Second
	syncReadTimeout    = 60 * time.Second
	syncCleanupTimeout = 5 * time.Second
	syncSendBuffer     = 256
)

// SyncHandler is the websocket edge of a session. Connecting joins the
// session, closing the socket leaves it.
type SyncHandler struct {
	hub               HubInterface
	sessions          SessionManagerInterface
	permissionService PermissionServiceInterface
	jwtService        *services.JWTService
	logger            *slog.Logger
}

func NewSyncHandler(hub HubInterface, sessions SessionManagerInterface, permissionService PermissionServiceInterface, jwtService *services.JWTService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		hub:               hub,
		sessions:          sessions,
		permissionService: permissionService,
		jwtService:        jwtService,
		logger:            logger,
	}
}

func (h *SyncHandler) Connect(c *drift.Context) {
	// Extract and validate JWT before upgrading
	token := c.QueryParam("token")
	if token == "" {
		c.Unauthorized("token is required")
		return
	}

	claims, err := h.jwtService.ValidateAccessToken(token)
	if err != nil {
		c.Unauthorized("invalid token")
		return
	}

	sessionID, err := uuid.Parse(c.QueryParam("session_id"))
	if err != nil {
		c.BadRequest("invalid session_id")
		return
	}

	ctx := c.Request.Context()

	allowed, err := h.permissionService.HasPermission(ctx, claims.UserID, models.CapabilityQueryData)
	if err != nil {
		c.InternalServerError("failed to check permissions")
		return
	}
	if !allowed {
		c.Forbidden("missing capability " + models.CapabilityQueryData)
		return
	}

	client := &hub.Client{
		ID:     uuid.NewString(),
		UserID: claims.UserID,
		Send:   make(chan []byte, syncSendBuffer),
	}
	h.hub.Register(client)

	// Join before upgrading so refusals are plain HTTP errors.
	membership, err := h.sessions.Join(ctx, sessionID, claims.UserID, client.ID)
	if err != nil {
		h.hub.Unregister(client)
		respondError(c, err, "failed to join session")
		return
	}

	conn, err := websocket.Upgrade(c)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session_id", sessionID, "user_id", claims.UserID, "error", err)
		h.disconnect(client)
		return
	}

	connected := dto.ConnectedFrame{
		Type:      "connected",
		ClientID:  client.ID,
		SessionID: sessionID,
		UserID:    claims.UserID,
		Role:      string(membership.Role),
		Text:      membership.Text,
		Version:   membership.Version,
	}
	_ = conn.WriteJSON(connected)

	h.logger.Info("websocket connected", "client_id", client.ID, "session_id", sessionID, "user_id", claims.UserID)

	done := make(chan struct{})
	go h.writePump(conn, client, done)

	// Read pump (blocks until disconnect)
	defer func() {
		close(done)
		h.disconnect(client)
		h.logger.Info("websocket disconnected", "client_id", client.ID, "session_id", sessionID, "user_id", claims.UserID)
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(syncReadTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var msg dto.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, sessionID, "", "VALIDATION_ERROR", "invalid message format")
			continue
		}

		if !h.dispatch(ctx, client, sessionID, msg) {
			return
		}
	}
}

// dispatch handles one client frame and reports whether the connection
// should stay open.
func (h *SyncHandler) dispatch(ctx context.Context, client *hub.Client, sessionID uuid.UUID, msg dto.ClientMessage) bool {
	switch msg.Action {
	case "edit":
		h.handleEdit(ctx, client, sessionID, msg)
	case "cursor":
		h.handleCursor(ctx, client, sessionID, msg)
	case "heartbeat":
		h.handleHeartbeat(ctx, client, sessionID)
	case "status":
		h.handleStatus(ctx, client, sessionID)
	case "leave":
		return !h.handleLeave(ctx, client, sessionID)
	case "ping":
		h.hub.SendJSON(client.ID, map[string]string{"type": "pong"})
	default:
		h.sendError(client, sessionID, msg.Action, "VALIDATION_ERROR", "unknown action")
	}
	return true
}

func (h *SyncHandler) handleEdit(ctx context.Context, client *hub.Client, sessionID uuid.UUID, msg dto.ClientMessage) {
	if msg.Position == nil {
		h.sendError(client, sessionID, "edit", "VALIDATION_ERROR", "position is required")
		return
	}

	kind := models.EditKind(strings.ToUpper(msg.Kind))
	result, err := h.sessions.ProcessEdit(ctx, sessionID, client.UserID, kind, *msg.Position, msg.Content)
	switch {
	case err == nil:
		h.hub.SendJSON(client.ID, map[string]any{
			"type":        "edit_applied",
			"new_version": result.NewVersion,
		})
	case errors.Is(err, services.ErrConflictDetected):
		h.hub.SendJSON(client.ID, map[string]any{
			"type":      "edit_rejected",
			"code":      "CONFLICT_DETECTED",
			"conflicts": result.Conflicts,
		})
	default:
		h.sendServiceError(client, sessionID, "edit", err)
	}
}

func (h *SyncHandler) handleCursor(ctx context.Context, client *hub.Client, sessionID uuid.UUID, msg dto.ClientMessage) {
	if msg.Position == nil {
		h.sendError(client, sessionID, "cursor", "VALIDATION_ERROR", "position is required")
		return
	}

	if err := h.sessions.Cursor(ctx, sessionID, client.UserID, *msg.Position); err != nil {
		h.sendServiceError(client, sessionID, "cursor", err)
	}
}

func (h *SyncHandler) handleHeartbeat(ctx context.Context, client *hub.Client, sessionID uuid.UUID) {
	at, err := h.sessions.Heartbeat(ctx, sessionID, client.UserID)
	if err != nil {
		h.sendServiceError(client, sessionID, "heartbeat", err)
		return
	}

	h.hub.SendJSON(client.ID, map[string]string{
		"type":      "heartbeat_ack",
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	})
}

func (h *SyncHandler) handleStatus(ctx context.Context, client *hub.Client, sessionID uuid.UUID) {
	status, err := h.sessions.GetStatus(ctx, sessionID)
	if err != nil {
		h.sendServiceError(client, sessionID, "status", err)
		return
	}

	h.hub.SendJSON(client.ID, map[string]any{
		"type":   "status",
		"status": status,
	})
}

// handleLeave reports whether the participant left.
func (h *SyncHandler) handleLeave(ctx context.Context, client *hub.Client, sessionID uuid.UUID) bool {
	if err := h.sessions.Leave(ctx, sessionID, client.UserID); err != nil {
		h.sendServiceError(client, sessionID, "leave", err)
		return false
	}

	h.hub.SendJSON(client.ID, map[string]string{
		"type":       "left",
		"session_id": sessionID.String(),
	})
	return true
}

func (h *SyncHandler) sendServiceError(client *hub.Client, sessionID uuid.UUID, action string, err error) {
	_, code := errorCode(err)
	if code == "INTERNAL_ERROR" {
		h.logger.Error("session action failed", "action", action, "session_id", sessionID, "user_id", client.UserID, "error", err)
	}
	h.sendError(client, sessionID, action, code, errorMessage(err, "internal error"))
}

func (h *SyncHandler) sendError(client *hub.Client, sessionID uuid.UUID, action, code, message string) {
	h.hub.SendEvent(client.ID, sessionID, events.Error{
		Code:      code,
		Message:   message,
		RefAction: action,
	})
}

// disconnect runs the implicit leave for a dropped connection and releases
// it from the registry.
func (h *SyncHandler) disconnect(client *hub.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), syncCleanupTimeout)
	defer cancel()

	if err := h.sessions.Disconnect(ctx, client.ID); err != nil {
		h.logger.Warn("implicit leave failed", "client_id", client.ID, "user_id", client.UserID, "error", err)
	}
	h.hub.Unregister(client)
}

func (h *SyncHandler) writePump(conn *websocket.Conn, client *hub.Client, done <-chan struct{}) {
	ticker := time.NewTicker(syncPingInterval)
	defer ticker.Stop()
	defer func() {
		if err := conn.Close(websocket.CloseNormalClosure, ""); err != nil {
			h.logger.Debug("websocket close error", "client_id", client.ID, "error", err)
		}
	}()

	write := func(msg []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(syncWriteTimeout))
		return conn.WriteText(string(msg)) == nil
	}

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok || !write(msg) {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(nil); err != nil {
				return
			}
		case <-done:
			// flush what is already queued, e.g. the reply to leave
			for {
				select {
				case msg, ok := <-client.Send:
					if !ok || !write(msg) {
						return
					}
				default:
					return
				}
			}
		}
	}
}
