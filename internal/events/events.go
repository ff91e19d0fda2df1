// Package events defines the messages fanned out to every connection bound
// to a session.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
)

type Type string

const (
	TypeUserJoined   Type = "USER_JOINED"
	TypeUserLeft     Type = "USER_LEFT"
	TypeQueryEdited  Type = "QUERY_EDITED"
	TypeCursorUpdate Type = "CURSOR_UPDATE"
	TypeError        Type = "ERROR"
)

var ErrUnknownType = errors.New("unknown event type")

// Event is implemented only by the types in this package.
type Event interface {
	Type() Type
	sealed()
}

type UserJoined struct {
	UserID uuid.UUID              `json:"user_id"`
	Role   models.ParticipantRole `json:"role"`
}

type UserLeft struct {
	UserID uuid.UUID `json:"user_id"`
}

type QueryEdited struct {
	Operation  models.EditOperation `json:"operation"`
	NewText    string               `json:"new_text"`
	NewVersion int64                `json:"new_version"`
}

type CursorUpdate struct {
	UserID   uuid.UUID `json:"user_id"`
	Position int       `json:"position"`
}

// Error is sent to a single connection, never broadcast.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RefAction string `json:"ref_action,omitempty"`
}

func (UserJoined) Type() Type   { return TypeUserJoined }
func (UserLeft) Type() Type     { return TypeUserLeft }
func (QueryEdited) Type() Type  { return TypeQueryEdited }
func (CursorUpdate) Type() Type { return TypeCursorUpdate }
func (Error) Type() Type        { return TypeError }

func (UserJoined) sealed()   {}
func (UserLeft) sealed()     {}
func (QueryEdited) sealed()  {}
func (CursorUpdate) sealed() {}
func (Error) sealed()        {}

// Envelope is the wire frame for an event.
type Envelope struct {
	Type      Type            `json:"type"`
	SessionID uuid.UUID       `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func Encode(sessionID uuid.UUID, at time.Time, e Event) ([]byte, error) {
	switch e.(type) {
	case UserJoined, UserLeft, QueryEdited, CursorUpdate, Error:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, e)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.Type(), err)
	}

	return json.Marshal(Envelope{
		Type:      e.Type(),
		SessionID: sessionID,
		Timestamp: at.UTC(),
		Data:      data,
	})
}

func Decode(b []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch env.Type {
	case TypeUserJoined:
		e, err = decodeAs[UserJoined](env.Data)
	case TypeUserLeft:
		e, err = decodeAs[UserLeft](env.Data)
	case TypeQueryEdited:
		e, err = decodeAs[QueryEdited](env.Data)
	case TypeCursorUpdate:
		e, err = decodeAs[CursorUpdate](env.Data)
	case TypeError:
		e, err = decodeAs[Error](env.Data)
	default:
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return env, nil, err
	}

	return env, e, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", v.Type(), err)
	}
	return v, nil
}
