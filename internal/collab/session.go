package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/dimitrije/querydraft/internal/events"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/google/uuid"
)

var errSessionClosed = fmt.Errorf("session closed: %w", services.ErrNotFound)

type reply[T any] struct {
	value T
	err   error
}

// replyTo is buffered with room for one reply so the session goroutine
// never waits on a caller that gave up.
type replyTo[T any] chan reply[T]

func newReply[T any]() replyTo[T] { return make(replyTo[T], 1) }

// respond keeps the first reply and discards any later one.
func (r replyTo[T]) respond(v T, err error) {
	select {
	case r <- reply[T]{value: v, err: err}:
	default:
	}
}

func (r replyTo[T]) ok(v T) { r.respond(v, nil) }
func (r replyTo[T]) fail(err error) {
	var zero T
	r.respond(zero, err)
}

type command interface {
	fail(err error)
}

type joinCmd struct {
	userID       uuid.UUID
	role         models.ParticipantRole
	connectionID string
	replyTo[models.Membership]
}

type leaveCmd struct {
	userID uuid.UUID
	replyTo[struct{}]
}

type editCmd struct {
	userID   uuid.UUID
	kind     models.EditKind
	position int
	content  string
	replyTo[models.EditResult]
}

type cursorCmd struct {
	userID   uuid.UUID
	position int
	replyTo[struct{}]
}

type heartbeatCmd struct {
	userID uuid.UUID
	replyTo[time.Time]
}

type snapshotCmd struct {
	replyTo[models.Session]
}

type userStatsCmd struct {
	userID uuid.UUID
	replyTo[sessionUserStats]
}

type sessionUserStats struct {
	participant bool
	online      bool
	shared      bool
	edits       int
}

// session owns all mutable state of one collaboration session. Only the
// run goroutine touches the fields below the mailbox.
type session struct {
	id          uuid.UUID
	workspaceID uuid.UUID
	creatorID   uuid.UUID
	createdAt   time.Time

	mailbox chan command
	quit    chan struct{}
	done    chan struct{}
	m       *Manager

	text           string
	version        int64
	state          models.SessionState
	lastModified   time.Time
	lastModifiedBy *uuid.UUID
	roster         *roster
	log            *editLog
}

func newSession(m *Manager, id, workspaceID, creatorID uuid.UUID, text string) *session {
	now := m.clock.Now()
	s := &session{
		id:           id,
		workspaceID:  workspaceID,
		creatorID:    creatorID,
		createdAt:    now,
		mailbox:      make(chan command, m.opts.MailboxSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		m:            m,
		text:         text,
		state:        models.SessionActive,
		lastModified: now,
		roster:       newRoster(),
		log:          newEditLog(m.opts.EditLogSize),
	}
	s.roster.add(models.Participant{
		UserID:       creatorID,
		Role:         models.ParticipantRoleOwner,
		Status:       models.ParticipantOnline,
		JoinedAt:     now,
		LastActivity: now,
	})
	return s
}

func (s *session) run() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.mailbox:
			s.handle(cmd)
		case <-s.quit:
			return
		}
	}
}

func (s *session) stop() {
	close(s.quit)
	<-s.done
}

func (s *session) handle(cmd command) {
	defer func() {
		if r := recover(); r != nil {
			s.m.logger.Error("session command panicked", "session_id", s.id, "command", fmt.Sprintf("%T", cmd), "panic", r)
			cmd.fail(fmt.Errorf("%w: %v", services.ErrInternal, r))
		}
	}()

	switch c := cmd.(type) {
	case joinCmd:
		s.join(c)
	case leaveCmd:
		s.leave(c)
	case editCmd:
		s.edit(c)
	case cursorCmd:
		s.cursor(c)
	case heartbeatCmd:
		s.heartbeat(c)
	case snapshotCmd:
		c.ok(s.snapshot())
	case userStatsCmd:
		c.ok(s.userStats(c.userID))
	default:
		cmd.fail(fmt.Errorf("%w: unhandled command %T", services.ErrInternal, cmd))
	}
}

// ask queues cmd and waits for its reply.
func ask[T any](ctx context.Context, s *session, cmd command, out replyTo[T]) (T, error) {
	var zero T

	select {
	case s.mailbox <- cmd:
	case <-s.quit:
		return zero, errSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-out:
		return r.value, r.err
	case <-s.done:
		select {
		case r := <-out:
			return r.value, r.err
		default:
			return zero, errSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *session) join(c joinCmd) {
	now := s.m.clock.Now()

	p, exists := s.roster.get(c.userID)
	if !exists && s.roster.len() >= s.m.opts.Capacity {
		c.fail(fmt.Errorf("session %s has %d participants: %w", s.id, s.roster.len(), services.ErrCapacityExceeded))
		return
	}

	if c.connectionID != "" {
		if err := s.m.conns.Bind(c.connectionID, c.userID, s.id); err != nil {
			c.fail(err)
			return
		}
	}

	if exists {
		p.Status = models.ParticipantOnline
		p.LastActivity = now
	} else {
		p = s.roster.add(models.Participant{
			UserID:       c.userID,
			Role:         c.role,
			Status:       models.ParticipantOnline,
			JoinedAt:     now,
			LastActivity: now,
		})
	}
	s.state = models.SessionActive

	s.m.conns.Broadcast(s.id, events.UserJoined{UserID: p.UserID, Role: p.Role})
	s.m.presence.Touch(s.id, p.UserID)

	s.m.logger.Debug("participant joined", "session_id", s.id, "user_id", p.UserID, "rejoin", exists)
	c.ok(models.Membership{Participant: *p, Text: s.text, Version: s.version})
}

func (s *session) leave(c leaveCmd) {
	p, ok := s.roster.get(c.userID)
	if !ok {
		c.fail(fmt.Errorf("user %s is not a participant: %w", c.userID, services.ErrNotFound))
		return
	}

	if p.Status == models.ParticipantOnline {
		p.Status = models.ParticipantOffline
		p.LastActivity = s.m.clock.Now()

		if len(s.roster.online()) == 0 {
			s.state = models.SessionInactive
		}

		s.m.conns.Broadcast(s.id, events.UserLeft{UserID: c.userID})
		s.m.presence.Remove(s.id, c.userID)
	}

	s.m.conns.UnbindUser(s.id, c.userID)

	s.m.logger.Debug("participant left", "session_id", s.id, "user_id", c.userID, "state", s.state)
	c.ok(struct{}{})
}

func (s *session) edit(c editCmd) {
	if s.state != models.SessionActive {
		c.fail(fmt.Errorf("session %s is not active: %w", s.id, services.ErrNotFound))
		return
	}

	p, ok := s.roster.get(c.userID)
	if !ok || !p.Role.CanEdit() {
		c.fail(fmt.Errorf("user %s cannot edit: %w", c.userID, services.ErrPermissionDenied))
		return
	}

	now := s.m.clock.Now()

	if conflicts := detectConflicts(s.log, c.userID, c.position, now, s.m.opts.ConflictWindow, s.m.opts.ConflictDistance); len(conflicts) > 0 {
		s.m.logger.Info("edit rejected", "session_id", s.id, "user_id", c.userID, "position", c.position, "conflicting_user", conflicts[0].UserID)
		c.respond(models.EditResult{Success: false, Conflicts: conflicts}, services.ErrConflictDetected)
		return
	}

	text, err := applyEdit(s.text, c.kind, c.position, c.content)
	if err != nil {
		c.fail(err)
		return
	}

	op := models.EditOperation{
		ID:          uuid.New(),
		UserID:      c.userID,
		Kind:        c.kind,
		Position:    c.position,
		Content:     c.content,
		Timestamp:   now,
		BaseVersion: s.version,
	}

	userID := c.userID
	s.text = text
	s.version++
	s.lastModified = now
	s.lastModifiedBy = &userID
	s.log.append(op)
	p.LastActivity = now

	s.m.conns.Broadcast(s.id, events.QueryEdited{Operation: op, NewText: text, NewVersion: s.version})

	if !s.m.publisher.Publish(models.CommittedEdit{
		SessionID:   s.id,
		WorkspaceID: s.workspaceID,
		Operation:   op,
		Version:     s.version,
		Text:        text,
		CommittedAt: now,
	}) {
		s.m.logger.Warn("edit feed is full, dropping committed edit", "session_id", s.id, "version", s.version)
	}

	c.ok(models.EditResult{Success: true, NewText: text, NewVersion: s.version})
}

func (s *session) cursor(c cursorCmd) {
	if _, ok := s.roster.get(c.userID); !ok {
		c.fail(fmt.Errorf("user %s is not a participant: %w", c.userID, services.ErrPermissionDenied))
		return
	}

	s.m.conns.Broadcast(s.id, events.CursorUpdate{UserID: c.userID, Position: c.position})
	c.ok(struct{}{})
}

func (s *session) heartbeat(c heartbeatCmd) {
	p, ok := s.roster.get(c.userID)
	if !ok {
		c.fail(fmt.Errorf("user %s is not a participant: %w", c.userID, services.ErrNotFound))
		return
	}

	now := s.m.clock.Now()
	p.LastActivity = now
	if p.Status == models.ParticipantOnline {
		s.m.presence.Touch(s.id, c.userID)
	}
	c.ok(now)
}

func (s *session) snapshot() models.Session {
	var lastModifiedBy *uuid.UUID
	if s.lastModifiedBy != nil {
		id := *s.lastModifiedBy
		lastModifiedBy = &id
	}
	return models.Session{
		ID:             s.id,
		WorkspaceID:    s.workspaceID,
		CreatorID:      s.creatorID,
		Text:           s.text,
		Version:        s.version,
		State:          s.state,
		CreatedAt:      s.createdAt,
		LastModified:   s.lastModified,
		LastModifiedBy: lastModifiedBy,
		Participants:   s.roster.list(),
	}
}

func (s *session) userStats(userID uuid.UUID) sessionUserStats {
	p, ok := s.roster.get(userID)
	if !ok {
		return sessionUserStats{}
	}
	return sessionUserStats{
		participant: true,
		online:      s.state == models.SessionActive && p.Status == models.ParticipantOnline,
		shared:      s.roster.len() > 1,
		edits:       s.log.countBy(userID),
	}
}
