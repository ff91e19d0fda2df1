package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/querydraft/internal/events"
	"github.com/dimitrije/querydraft/internal/hub"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
)

// WorkspaceServiceInterface defines the methods used by handlers from WorkspaceService
type WorkspaceServiceInterface interface {
	Create(ctx context.Context, ownerID uuid.UUID, name, description string) (*models.Workspace, error)
	Invite(ctx context.Context, workspaceID, inviterID, userID uuid.UUID, role models.WorkspaceRole) (*models.WorkspaceMember, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
	GetMemberRole(ctx context.Context, workspaceID, userID uuid.UUID) (models.WorkspaceRole, error)
	GetUserWorkspaces(ctx context.Context, userID uuid.UUID) ([]models.Workspace, error)
}

// PermissionServiceInterface is the identity store's capability check
type PermissionServiceInterface interface {
	HasPermission(ctx context.Context, userID uuid.UUID, capability string) (bool, error)
}

// SessionManagerInterface defines the methods used by handlers from collab.Manager
type SessionManagerInterface interface {
	CreateSession(ctx context.Context, sessionID, workspaceID, creatorID uuid.UUID, initialText string) (*models.Session, error)
	Session(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	Join(ctx context.Context, sessionID, userID uuid.UUID, connectionID string) (*models.Membership, error)
	Leave(ctx context.Context, sessionID, userID uuid.UUID) error
	Disconnect(ctx context.Context, connectionID string) error
	ProcessEdit(ctx context.Context, sessionID, userID uuid.UUID, kind models.EditKind, position int, content string) (models.EditResult, error)
	Cursor(ctx context.Context, sessionID, userID uuid.UUID, position int) error
	Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) (time.Time, error)
	GetStatus(ctx context.Context, sessionID uuid.UUID) (*models.SessionStatus, error)
	UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
}

// HubInterface defines the connection registry methods used by the transport handlers
type HubInterface interface {
	Register(client *hub.Client)
	Unregister(client *hub.Client) (models.ConnectionBinding, bool)
	Bind(connectionID string, userID, sessionID uuid.UUID) error
	SendJSON(connectionID string, v any) bool
	SendEvent(connectionID string, sessionID uuid.UUID, e events.Event) bool
}

// PresenceReader reads the Redis presence mirror
type PresenceReader interface {
	Online(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}
