package dto

import "github.com/google/uuid"

// ClientMessage is a frame sent by a websocket client.
type ClientMessage struct {
	Action   string `json:"action"`
	Kind     string `json:"kind,omitempty"`
	Position *int   `json:"position,omitempty"`
	Content  string `json:"content,omitempty"`
}

type ConnectedFrame struct {
	Type      string    `json:"type"`
	ClientID  string    `json:"client_id"`
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Version   int64     `json:"version"`
}
