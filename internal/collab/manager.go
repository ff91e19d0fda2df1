package collab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dimitrije/querydraft/internal/events"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/google/uuid"
)

type WorkspaceDirectory interface {
	GetMemberRole(ctx context.Context, workspaceID, userID uuid.UUID) (models.WorkspaceRole, error)
}

// ConnectionRegistry binds transport connections to sessions and fans
// events out to them.
type ConnectionRegistry interface {
	Bind(connectionID string, userID, sessionID uuid.UUID) error
	Unbind(connectionID string) (models.ConnectionBinding, bool)
	UnbindUser(sessionID, userID uuid.UUID) []string
	Broadcast(sessionID uuid.UUID, e events.Event) int
}

// EditPublisher receives every committed edit. Publish must not block.
type EditPublisher interface {
	Publish(edit models.CommittedEdit) bool
}

// PresenceRecorder mirrors who is online. Calls must not block.
type PresenceRecorder interface {
	Touch(sessionID, userID uuid.UUID)
	Remove(sessionID, userID uuid.UUID)
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithPublisher(p EditPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithPresence(p PresenceRecorder) Option {
	return func(m *Manager) { m.presence = p }
}

// Manager owns every live session. Each session runs on its own goroutine
// and processes commands one at a time, so no lock spans sessions.
type Manager struct {
	sessions sync.Map // uuid.UUID -> *session

	workspaces WorkspaceDirectory
	conns      ConnectionRegistry
	publisher  EditPublisher
	presence   PresenceRecorder
	clock      Clock
	opts       Options
	logger     *slog.Logger

	// guards closed against CreateSession starting sessions during Close
	mu     sync.RWMutex
	closed bool
}

func NewManager(workspaces WorkspaceDirectory, conns ConnectionRegistry, opts Options, logger *slog.Logger, options ...Option) *Manager {
	m := &Manager{
		workspaces: workspaces,
		conns:      conns,
		publisher:  noopPublisher{},
		presence:   noopPresence{},
		clock:      realClock{},
		opts:       opts.withDefaults(),
		logger:     logger,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// CreateSession starts a session with the creator as its ONLINE owner.
// Creating an id that already exists returns the existing session.
func (m *Manager) CreateSession(ctx context.Context, sessionID, workspaceID, creatorID uuid.UUID, initialText string) (*models.Session, error) {
	if sessionID == uuid.Nil || workspaceID == uuid.Nil || creatorID == uuid.Nil {
		return nil, fmt.Errorf("%w: session, workspace and creator ids are required", services.ErrValidation)
	}

	role, err := m.workspaces.GetMemberRole(ctx, workspaceID, creatorID)
	if err != nil {
		return nil, err
	}
	if role == models.WorkspaceRoleViewer {
		return nil, fmt.Errorf("workspace viewers cannot start sessions: %w", services.ErrPermissionDenied)
	}

	s, loaded, err := m.startSession(sessionID, workspaceID, creatorID, initialText)
	if err != nil {
		return nil, err
	}

	if loaded {
		if s.workspaceID != workspaceID {
			return nil, fmt.Errorf("%w: session %s belongs to another workspace", services.ErrValidation, sessionID)
		}
	} else {
		m.presence.Touch(sessionID, creatorID)
		m.logger.Info("session created", "session_id", sessionID, "workspace_id", workspaceID, "creator_id", creatorID)
	}

	out := newReply[models.Session]()
	snap, err := ask(ctx, s, snapshotCmd{out}, out)
	return snapshotResult(snap, err)
}

// startSession returns the session stored under sessionID, starting a new
// one if there is none. A closed manager starts nothing.
func (m *Manager) startSession(sessionID, workspaceID, creatorID uuid.UUID, initialText string) (*session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false, fmt.Errorf("session manager is closed: %w", services.ErrNotFound)
	}

	candidate := newSession(m, sessionID, workspaceID, creatorID, initialText)
	actual, loaded := m.sessions.LoadOrStore(sessionID, candidate)
	s := actual.(*session)
	if !loaded {
		go s.run()
	}
	return s, loaded, nil
}

func (m *Manager) lookup(sessionID uuid.UUID) (*session, error) {
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, services.ErrNotFound)
	}
	return v.(*session), nil
}

// Join adds userID to the session, or marks an existing participant ONLINE
// again. A non-empty connectionID is bound to the session before USER_JOINED
// is broadcast, and the returned text and version are read in the same step.
func (m *Manager) Join(ctx context.Context, sessionID, userID uuid.UUID, connectionID string) (*models.Membership, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	role := models.ParticipantRoleOwner
	if userID != s.creatorID {
		wsRole, err := m.workspaces.GetMemberRole(ctx, s.workspaceID, userID)
		if err != nil {
			return nil, err
		}
		role = wsRole.ParticipantRole()
	}

	out := newReply[models.Membership]()
	p, err := ask(ctx, s, joinCmd{userID: userID, role: role, connectionID: connectionID, replyTo: out}, out)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *Manager) Leave(ctx context.Context, sessionID, userID uuid.UUID) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	out := newReply[struct{}]()
	_, err = ask(ctx, s, leaveCmd{userID: userID, replyTo: out}, out)
	return err
}

// Disconnect treats a dropped connection as a Leave of its bound user.
// Unbound connections are ignored.
func (m *Manager) Disconnect(ctx context.Context, connectionID string) error {
	binding, ok := m.conns.Unbind(connectionID)
	if !ok {
		return nil
	}
	return m.Leave(ctx, binding.SessionID, binding.UserID)
}

// ProcessEdit applies one INSERT or DELETE. A rejected edit returns both
// the conflict report and ErrConflictDetected.
func (m *Manager) ProcessEdit(ctx context.Context, sessionID, userID uuid.UUID, kind models.EditKind, position int, content string) (models.EditResult, error) {
	if err := validateEdit(kind, position); err != nil {
		return models.EditResult{}, err
	}

	s, err := m.lookup(sessionID)
	if err != nil {
		return models.EditResult{}, err
	}

	out := newReply[models.EditResult]()
	return ask(ctx, s, editCmd{userID: userID, kind: kind, position: position, content: content, replyTo: out}, out)
}

func (m *Manager) Cursor(ctx context.Context, sessionID, userID uuid.UUID, position int) error {
	if position < 0 {
		return fmt.Errorf("%w: position must not be negative", services.ErrValidation)
	}

	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	out := newReply[struct{}]()
	_, err = ask(ctx, s, cursorCmd{userID: userID, position: position, replyTo: out}, out)
	return err
}

// Heartbeat refreshes the participant's lastActivity and returns the time
// recorded.
func (m *Manager) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) (time.Time, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return time.Time{}, err
	}

	out := newReply[time.Time]()
	return ask(ctx, s, heartbeatCmd{userID: userID, replyTo: out}, out)
}

func (m *Manager) Session(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	out := newReply[models.Session]()
	snap, err := ask(ctx, s, snapshotCmd{out}, out)
	return snapshotResult(snap, err)
}

func (m *Manager) GetStatus(ctx context.Context, sessionID uuid.UUID) (*models.SessionStatus, error) {
	snap, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	online := make([]uuid.UUID, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		if p.Status == models.ParticipantOnline {
			online = append(online, p.UserID)
		}
	}

	return &models.SessionStatus{
		SessionID:        snap.ID,
		State:            snap.State,
		Text:             snap.Text,
		Version:          snap.Version,
		ParticipantCount: len(snap.Participants),
		OnlineUsers:      online,
		LastModified:     snap.LastModified,
		LastModifiedBy:   snap.LastModifiedBy,
	}, nil
}

// UserStats aggregates the user's participation over all live sessions.
// TotalWorkspaces is left for the caller to fill in.
func (m *Manager) UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats := &models.UserStats{UserID: userID}

	var firstErr error
	m.sessions.Range(func(_, v any) bool {
		s := v.(*session)
		out := newReply[sessionUserStats]()
		st, err := ask(ctx, s, userStatsCmd{userID: userID, replyTo: out}, out)
		if err != nil {
			if ctx.Err() != nil {
				firstErr = ctx.Err()
				return false
			}
			return true
		}
		if !st.participant {
			return true
		}
		stats.TotalSessions++
		if st.online {
			stats.ActiveSessions++
		}
		if st.shared {
			stats.Collaborations++
		}
		stats.RetainedEdits += st.edits
		return true
	})

	if firstErr != nil {
		return nil, firstErr
	}
	return stats, nil
}

func (m *Manager) SessionCount() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops every session goroutine. Later calls, CreateSession
// included, fail with ErrNotFound.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	m.sessions.Range(func(k, v any) bool {
		v.(*session).stop()
		m.sessions.Delete(k)
		return true
	})
}

func snapshotResult(snap models.Session, err error) (*models.Session, error) {
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.CommittedEdit) bool { return true }

type noopPresence struct{}

func (noopPresence) Touch(uuid.UUID, uuid.UUID)  {}
func (noopPresence) Remove(uuid.UUID, uuid.UUID) {}
