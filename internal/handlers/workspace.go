package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dimitrije/querydraft/internal/middleware"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type WorkspaceHandler struct {
	workspaceService WorkspaceServiceInterface
	logger           *slog.Logger
}

func NewWorkspaceHandler(workspaceService WorkspaceServiceInterface, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
		logger:           logger,
	}
}

func (h *WorkspaceHandler) Create(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateWorkspaceRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	workspace, err := h.workspaceService.Create(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("failed to create workspace", "user_id", userID, "error", err)
		respondError(c, err, "failed to create workspace")
		return
	}

	_ = c.JSON(http.StatusCreated, toWorkspaceResponse(workspace))
}

func (h *WorkspaceHandler) List(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	workspaces, err := h.workspaceService.GetUserWorkspaces(c.Request.Context(), userID)
	if err != nil {
		c.InternalServerError("failed to get workspaces")
		return
	}

	response := make([]dto.WorkspaceResponse, len(workspaces))
	for i := range workspaces {
		response[i] = toWorkspaceResponse(&workspaces[i])
	}

	_ = c.JSON(http.StatusOK, response)
}

// Get is visible to members only. Everyone else sees 404.
func (h *WorkspaceHandler) Get(c *drift.Context) {
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

	ctx := c.Request.Context()

	if _, err := h.workspaceService.GetMemberRole(ctx, workspaceID, userID); err != nil {
		c.NotFound("workspace not found")
		return
	}

	workspace, err := h.workspaceService.GetByID(ctx, workspaceID)
	if err != nil {
		respondError(c, err, "failed to get workspace")
		return
	}

	_ = c.JSON(http.StatusOK, toWorkspaceResponse(workspace))
}

func (h *WorkspaceHandler) Invite(c *drift.Context) {
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

	var req dto.InviteMemberRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.UserID == uuid.Nil {
		c.BadRequest("user_id is required")
		return
	}

	role := models.WorkspaceRole(req.Role)
	if req.Role == "" {
		role = models.WorkspaceRoleMember
	}

	member, err := h.workspaceService.Invite(c.Request.Context(), workspaceID, userID, req.UserID, role)
	if err != nil {
		respondError(c, err, "failed to invite member")
		return
	}

	h.logger.Info("member invited", "workspace_id", workspaceID, "user_id", member.UserID, "role", member.Role, "invited_by", userID)

	_ = c.JSON(http.StatusCreated, toMemberResponse(*member))
}

func toWorkspaceResponse(w *models.Workspace) dto.WorkspaceResponse {
	resp := dto.WorkspaceResponse{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		OwnerID:     w.OwnerID,
		Status:      w.Status,
		CreatedAt:   w.CreatedAt,
	}
	for _, m := range w.Members {
		resp.Members = append(resp.Members, toMemberResponse(m))
	}
	return resp
}

func toMemberResponse(m models.WorkspaceMember) dto.WorkspaceMemberResponse {
	return dto.WorkspaceMemberResponse{
		UserID:    m.UserID,
		Role:      string(m.Role),
		JoinedAt:  m.JoinedAt,
		InvitedBy: m.InvitedBy,
	}
}
