package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionActive   SessionState = "ACTIVE"
	SessionInactive SessionState = "INACTIVE"
)

type ParticipantRole string

const (
	ParticipantRoleOwner        ParticipantRole = "OWNER"
	ParticipantRoleCollaborator ParticipantRole = "COLLABORATOR"
	ParticipantRoleViewer       ParticipantRole = "VIEWER"
)

func (r ParticipantRole) CanEdit() bool {
	return r == ParticipantRoleOwner || r == ParticipantRoleCollaborator
}

type ParticipantStatus string

const (
	ParticipantOnline  ParticipantStatus = "ONLINE"
	ParticipantOffline ParticipantStatus = "OFFLINE"
)

type Participant struct {
	UserID       uuid.UUID         `json:"user_id"`
	Role         ParticipantRole   `json:"role"`
	Status       ParticipantStatus `json:"status"`
	JoinedAt     time.Time         `json:"joined_at"`
	LastActivity time.Time         `json:"last_activity"`
}

// Membership is a participant together with the draft as it stood when the
// participant's connection was bound. Broadcasts seen on that connection
// all carry later versions.
type Membership struct {
	Participant
	Text    string `json:"text"`
	Version int64  `json:"version"`
}

// Session is a point-in-time copy of a collaboration session.
type Session struct {
	ID             uuid.UUID     `json:"id"`
	WorkspaceID    uuid.UUID     `json:"workspace_id"`
	CreatorID      uuid.UUID     `json:"creator_id"`
	Text           string        `json:"text"`
	Version        int64         `json:"version"`
	State          SessionState  `json:"state"`
	CreatedAt      time.Time     `json:"created_at"`
	LastModified   time.Time     `json:"last_modified"`
	LastModifiedBy *uuid.UUID    `json:"last_modified_by,omitempty"`
	Participants   []Participant `json:"participants"`
}

type SessionStatus struct {
	SessionID        uuid.UUID    `json:"session_id"`
	State            SessionState `json:"state"`
	Text             string       `json:"text"`
	Version          int64        `json:"version"`
	ParticipantCount int          `json:"participant_count"`
	OnlineUsers      []uuid.UUID  `json:"online_users"`
	LastModified     time.Time    `json:"last_modified"`
	LastModifiedBy   *uuid.UUID   `json:"last_modified_by,omitempty"`
}

type ConnectionBinding struct {
	ConnectionID string    `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
	SessionID    uuid.UUID `json:"session_id"`
	ConnectedAt  time.Time `json:"connected_at"`
}

type UserStats struct {
	UserID          uuid.UUID `json:"user_id"`
	TotalSessions   int       `json:"total_sessions"`
	ActiveSessions  int       `json:"active_sessions"`
	TotalWorkspaces int       `json:"total_workspaces"`
	Collaborations  int       `json:"collaborations"`
	RetainedEdits   int       `json:"retained_edits"`
}
