package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dimitrije/querydraft/internal/events"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newClient(id string, userID uuid.UUID) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Send:   make(chan []byte, 256),
	}
}

func receive(t *testing.T, client *Client) events.Event {
	t.Helper()
	select {
	case msg := <-client.Send:
		_, e, err := events.Decode(msg)
		require.NoError(t, err)
		return e
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func assertNothing(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected message: %s", msg)
	default:
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	client := newClient("client-1", uuid.New())

	hub.Register(client)

	hub.mu.RLock()
	_, exists := hub.clients[client.ID]
	hub.mu.RUnlock()
	assert.True(t, exists)

	_, bound := hub.Unregister(client)
	assert.False(t, bound)

	_, ok := <-client.Send
	assert.False(t, ok, "send channel should be closed")

	// second unregister is a no-op
	_, bound = hub.Unregister(client)
	assert.False(t, bound)
}

func TestHub_Broadcast_OnlyBoundSession(t *testing.T) {
	hub := newTestHub()
	sessionA := uuid.New()
	sessionB := uuid.New()

	alice := newClient("alice", uuid.New())
	bob := newClient("bob", uuid.New())
	carol := newClient("carol", uuid.New())
	for _, c := range []*Client{alice, bob, carol} {
		hub.Register(c)
	}

	require.NoError(t, hub.Bind("alice", alice.UserID, sessionA))
	require.NoError(t, hub.Bind("bob", bob.UserID, sessionA))
	require.NoError(t, hub.Bind("carol", carol.UserID, sessionB))

	delivered := hub.Broadcast(sessionA, events.CursorUpdate{UserID: alice.UserID, Position: 3})

	assert.Equal(t, 2, delivered)
	assert.Equal(t, events.TypeCursorUpdate, receive(t, alice).Type())
	assert.Equal(t, events.TypeCursorUpdate, receive(t, bob).Type())
	assertNothing(t, carol)
}

func TestHub_Broadcast_DropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	sessionID := uuid.New()

	slow := &Client{ID: "slow", UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.Register(slow)
	require.NoError(t, hub.Bind("slow", slow.UserID, sessionID))

	assert.Equal(t, 1, hub.Broadcast(sessionID, events.UserLeft{UserID: uuid.New()}))
	assert.Equal(t, 0, hub.Broadcast(sessionID, events.UserLeft{UserID: uuid.New()}))
	assert.Len(t, slow.Send, 1)
}

func TestHub_Broadcast_PreservesOrder(t *testing.T) {
	hub := newTestHub()
	sessionID := uuid.New()
	client := newClient("c", uuid.New())
	hub.Register(client)
	require.NoError(t, hub.Bind("c", client.UserID, sessionID))

	for i := 1; i <= 5; i++ {
		hub.Broadcast(sessionID, events.QueryEdited{NewVersion: int64(i)})
	}

	for i := 1; i <= 5; i++ {
		e := receive(t, client)
		edited, ok := e.(events.QueryEdited)
		require.True(t, ok)
		assert.Equal(t, int64(i), edited.NewVersion)
	}
}

func TestHub_Bind_Errors(t *testing.T) {
	hub := newTestHub()
	client := newClient("c", uuid.New())
	hub.Register(client)

	err := hub.Bind("missing", client.UserID, uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)

	err = hub.Bind("c", uuid.New(), uuid.New())
	assert.ErrorIs(t, err, services.ErrPermissionDenied)
}

func TestHub_Bind_MovesBetweenSessions(t *testing.T) {
	hub := newTestHub()
	first := uuid.New()
	second := uuid.New()
	client := newClient("c", uuid.New())
	hub.Register(client)

	require.NoError(t, hub.Bind("c", client.UserID, first))
	require.NoError(t, hub.Bind("c", client.UserID, second))

	assert.Equal(t, 0, hub.SessionConnections(first))
	assert.Equal(t, 1, hub.SessionConnections(second))

	binding, ok := hub.Binding("c")
	require.True(t, ok)
	assert.Equal(t, second, binding.SessionID)
}

func TestHub_Unbind(t *testing.T) {
	hub := newTestHub()
	sessionID := uuid.New()
	client := newClient("c", uuid.New())
	hub.Register(client)
	require.NoError(t, hub.Bind("c", client.UserID, sessionID))

	binding, ok := hub.Unbind("c")

	require.True(t, ok)
	assert.Equal(t, sessionID, binding.SessionID)
	assert.Equal(t, client.UserID, binding.UserID)
	assert.Equal(t, 0, hub.Broadcast(sessionID, events.UserLeft{UserID: client.UserID}))

	_, ok = hub.Unbind("c")
	assert.False(t, ok)
}

func TestHub_UnbindUser(t *testing.T) {
	hub := newTestHub()
	sessionID := uuid.New()
	userID := uuid.New()

	laptop := newClient("laptop", userID)
	phone := newClient("phone", userID)
	other := newClient("other", uuid.New())
	for _, c := range []*Client{laptop, phone, other} {
		hub.Register(c)
		require.NoError(t, hub.Bind(c.ID, c.UserID, sessionID))
	}

	ids := hub.UnbindUser(sessionID, userID)

	assert.ElementsMatch(t, []string{"laptop", "phone"}, ids)
	assert.Equal(t, 1, hub.SessionConnections(sessionID))
}

func TestHub_UnregisterReturnsBinding(t *testing.T) {
	hub := newTestHub()
	sessionID := uuid.New()
	client := newClient("c", uuid.New())
	hub.Register(client)
	require.NoError(t, hub.Bind("c", client.UserID, sessionID))

	binding, ok := hub.Unregister(client)

	require.True(t, ok)
	assert.Equal(t, sessionID, binding.SessionID)
	assert.Equal(t, 0, hub.SessionConnections(sessionID))
}

func TestHub_SendJSON(t *testing.T) {
	hub := newTestHub()
	client := newClient("c", uuid.New())
	hub.Register(client)

	ok := hub.SendJSON("c", map[string]string{"type": "heartbeat_ack"})
	require.True(t, ok)

	var reply map[string]string
	require.NoError(t, json.Unmarshal(<-client.Send, &reply))
	assert.Equal(t, "heartbeat_ack", reply["type"])

	assert.False(t, hub.SendJSON("missing", map[string]string{}))
}

func TestHub_Close(t *testing.T) {
	hub := newTestHub()
	client := newClient("c", uuid.New())
	hub.Register(client)

	hub.Close()

	_, ok := <-client.Send
	assert.False(t, ok)

	_, bound := hub.Unregister(client)
	assert.False(t, bound)
}
