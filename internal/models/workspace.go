package models

import (
	"time"

	"github.com/google/uuid"
)

type WorkspaceRole string

const (
	WorkspaceRoleAdmin  WorkspaceRole = "ADMIN"
	WorkspaceRoleMember WorkspaceRole = "MEMBER"
	WorkspaceRoleViewer WorkspaceRole = "VIEWER"
)

func (r WorkspaceRole) Valid() bool {
	switch r {
	case WorkspaceRoleAdmin, WorkspaceRoleMember, WorkspaceRoleViewer:
		return true
	}
	return false
}

const WorkspaceStatusActive = "ACTIVE"

type Workspace struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OwnerID     uuid.UUID         `json:"owner_id"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Members     []WorkspaceMember `json:"members,omitempty"`
}

type WorkspaceMember struct {
	UserID    uuid.UUID     `json:"user_id"`
	Role      WorkspaceRole `json:"role"`
	JoinedAt  time.Time     `json:"joined_at"`
	InvitedBy *uuid.UUID    `json:"invited_by,omitempty"`
}

// ParticipantRole maps a workspace role onto the role a member takes when
// joining one of its sessions.
func (r WorkspaceRole) ParticipantRole() ParticipantRole {
	if r == WorkspaceRoleViewer {
		return ParticipantRoleViewer
	}
	return ParticipantRoleCollaborator
}
