package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	SessionID   *uuid.UUID `json:"session_id,omitempty"`
	InitialText string     `json:"initial_text"`
}

type ParticipantResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActivity time.Time `json:"last_activity"`
}

type SessionResponse struct {
	ID           uuid.UUID             `json:"id"`
	WorkspaceID  uuid.UUID             `json:"workspace_id"`
	CreatorID    uuid.UUID             `json:"creator_id"`
	Text         string                `json:"text"`
	Version      int64                 `json:"version"`
	State        string                `json:"state"`
	CreatedAt    time.Time             `json:"created_at"`
	Participants []ParticipantResponse `json:"participants"`
}

type PresenceResponse struct {
	SessionID   uuid.UUID   `json:"session_id"`
	OnlineUsers []uuid.UUID `json:"online_users"`
}
