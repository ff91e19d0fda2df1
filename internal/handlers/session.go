package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dimitrije/querydraft/internal/middleware"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SessionHandler struct {
	sessions         SessionManagerInterface
	workspaceService WorkspaceServiceInterface
	presence         PresenceReader
	logger           *slog.Logger
}

// NewSessionHandler builds the REST side of sessions. presence may be nil
// when the Redis mirror is disabled.
func NewSessionHandler(sessions SessionManagerInterface, workspaceService WorkspaceServiceInterface, presence PresenceReader, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:         sessions,
		workspaceService: workspaceService,
		presence:         presence,
		logger:           logger,
	}
}

func (h *SessionHandler) Create(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.BadRequest("invalid workspace id")
		return
	}

	var req dto.CreateSessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	sessionID := uuid.New()
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), sessionID, workspaceID, userID, req.InitialText)
	if err != nil {
		respondError(c, err, "failed to create session")
		return
	}

	_ = c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *SessionHandler) Status(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	sessionID, ok := h.authorizeSession(c, userID)
	if !ok {
		return
	}

	status, err := h.sessions.GetStatus(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err, "failed to get session status")
		return
	}

	_ = c.JSON(http.StatusOK, status)
}

func (h *SessionHandler) Presence(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	if h.presence == nil {
		c.NotFound("presence mirror is disabled")
		return
	}

	sessionID, ok := h.authorizeSession(c, userID)
	if !ok {
		return
	}

	online, err := h.presence.Online(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to read presence", "session_id", sessionID, "error", err)
		c.InternalServerError("failed to read presence")
		return
	}

	_ = c.JSON(http.StatusOK, dto.PresenceResponse{SessionID: sessionID, OnlineUsers: online})
}

func (h *SessionHandler) UserStats(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	ctx := c.Request.Context()

	stats, err := h.sessions.UserStats(ctx, userID)
	if err != nil {
		respondError(c, err, "failed to get user stats")
		return
	}

	workspaces, err := h.workspaceService.GetUserWorkspaces(ctx, userID)
	if err != nil {
		c.InternalServerError("failed to get workspaces")
		return
	}
	stats.TotalWorkspaces = len(workspaces)

	_ = c.JSON(http.StatusOK, stats)
}

// authorizeSession resolves :sessionId and checks that userID belongs to the
// session's workspace. It writes the error response itself.
func (h *SessionHandler) authorizeSession(c *drift.Context, userID uuid.UUID) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.BadRequest("invalid session id")
		return uuid.Nil, false
	}

	if err := canObserve(c.Request.Context(), h.sessions, h.workspaceService, sessionID, userID); err != nil {
		respondError(c, err, "failed to load session")
		return uuid.Nil, false
	}
	return sessionID, true
}

// canObserve reports whether userID may read sessionID: the session exists
// and the user is a member of its workspace.
func canObserve(ctx context.Context, sessions SessionManagerInterface, workspaces WorkspaceServiceInterface, sessionID, userID uuid.UUID) error {
	session, err := sessions.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = workspaces.GetMemberRole(ctx, session.WorkspaceID, userID)
	return err
}

func toSessionResponse(s *models.Session) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:           s.ID,
		WorkspaceID:  s.WorkspaceID,
		CreatorID:    s.CreatorID,
		Text:         s.Text,
		Version:      s.Version,
		State:        string(s.State),
		CreatedAt:    s.CreatedAt,
		Participants: make([]dto.ParticipantResponse, len(s.Participants)),
	}
	for i, p := range s.Participants {
		resp.Participants[i] = dto.ParticipantResponse{
			UserID:       p.UserID,
			Role:         string(p.Role),
			Status:       string(p.Status),
			JoinedAt:     p.JoinedAt,
			LastActivity: p.LastActivity,
		}
	}
	return resp
}
