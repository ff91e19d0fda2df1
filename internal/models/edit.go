package models

import (
	"time"

	"github.com/google/uuid"
)

type EditKind string

const (
	EditInsert  EditKind = "INSERT"
	EditDelete  EditKind = "DELETE"
	EditReplace EditKind = "REPLACE"
)

type EditOperation struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Kind        EditKind  `json:"kind"`
	Position    int       `json:"position"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	BaseVersion int64     `json:"base_version"`
}

const ConflictConcurrentEdit = "CONCURRENT_EDIT"

type Conflict struct {
	Type        string    `json:"type"`
	Position    int       `json:"position"`
	UserID      uuid.UUID `json:"user_id"`
	OperationID uuid.UUID `json:"operation_id"`
}

type EditResult struct {
	Success    bool       `json:"success"`
	NewText    string     `json:"new_text,omitempty"`
	NewVersion int64      `json:"new_version,omitempty"`
	Conflicts  []Conflict `json:"conflicts,omitempty"`
}

// CommittedEdit is what leaves the process once an edit is applied.
type CommittedEdit struct {
	SessionID   uuid.UUID     `json:"session_id"`
	WorkspaceID uuid.UUID     `json:"workspace_id"`
	Operation   EditOperation `json:"operation"`
	Version     int64         `json:"version"`
	Text        string        `json:"text"`
	CommittedAt time.Time     `json:"committed_at"`
}
