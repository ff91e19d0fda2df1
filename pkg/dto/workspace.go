package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type InviteMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

type WorkspaceMemberResponse struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      string     `json:"role"`
	JoinedAt  time.Time  `json:"joined_at"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
}

type WorkspaceResponse struct {
	ID          uuid.UUID                 `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	OwnerID     uuid.UUID                 `json:"owner_id"`
	Status      string                    `json:"status"`
	CreatedAt   time.Time                 `json:"created_at"`
	Members     []WorkspaceMemberResponse `json:"members,omitempty"`
}
