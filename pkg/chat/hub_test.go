package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/chat"
	"github.com/VampireTeeth/chatrelay/pkg/domain"
)

// recorder is an outbound handle that captures deliveries.
type recorder struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (r *recorder) Send(_ context.Context, message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("receiver gone")
	}
	r.messages = append(r.messages, string(message))
	return nil
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func newTestHub(t *testing.T) *chat.Hub {
	t.Helper()

	hub := chat.NewHub(chat.HubOptions{
		Logger: logging.New(logging.Config{Level: "error", Format: "text"}),
	})
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { hub.Stop() })

	return hub
}

// flush issues a serialized query so that all previously enqueued
// commands are known to be applied when it returns.
func flush(t *testing.T, hub *chat.Hub) {
	t.Helper()
	_, err := hub.ListRooms(context.Background())
	require.NoError(t, err)
}

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	const sessions = 32
	ids := make(chan string, sessions)

	var wg sync.WaitGroup
	for range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := hub.Register(ctx, &recorder{})
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate session id %q", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, sessions)

	members, err := hub.Members(ctx, chat.DefaultRoom)
	require.NoError(t, err)
	assert.Len(t, members, sessions)
}

func TestRegisterNotifiesExistingMembersOnly(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	_, err := hub.Register(ctx, a)
	require.NoError(t, err)

	b := &recorder{}
	_, err = hub.Register(ctx, b)
	require.NoError(t, err)
	flush(t, hub)

	assert.Equal(t, []string{chat.NoticeJoined}, a.received())
	assert.Empty(t, b.received(), "the joining session must not be notified about itself")
}

func TestJoinRoomMovesMembership(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	aID, err := hub.Register(ctx, a)
	require.NoError(t, err)

	b := &recorder{}
	bID, err := hub.Register(ctx, b)
	require.NoError(t, err)

	require.NoError(t, hub.JoinRoom(ctx, aID, "lobby"))

	mainMembers, err := hub.Members(ctx, chat.DefaultRoom)
	require.NoError(t, err)
	lobbyMembers, err := hub.Members(ctx, "lobby")
	require.NoError(t, err)

	assert.Equal(t, []string{bID}, mainMembers, "joiner must be gone from its previous room")
	assert.Equal(t, []string{aID}, lobbyMembers)
	assert.Contains(t, b.received(), chat.NoticeLeft)

	rooms, err := hub.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{chat.DefaultRoom, "lobby"}, rooms)
}

func TestJoinRoomUnknownSessionIsNoOp(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	_, err := hub.Register(ctx, a)
	require.NoError(t, err)

	require.NoError(t, hub.JoinRoom(ctx, "no-such-session", "lobby"))

	rooms, err := hub.ListRooms(ctx)
	require.NoError(t, err)
	assert.NotContains(t, rooms, "lobby", "a raced join must not create the room")
	assert.Empty(t, a.received())
}

func TestRouteMessageNoSelfEcho(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	aID, err := hub.Register(ctx, a)
	require.NoError(t, err)

	b := &recorder{}
	_, err = hub.Register(ctx, b)
	require.NoError(t, err)

	require.NoError(t, hub.RouteMessage(ctx, aID, chat.DefaultRoom, "Alice: Hello"))
	flush(t, hub)

	assert.Contains(t, b.received(), "Alice: Hello")
	assert.NotContains(t, a.received(), "Alice: Hello")
}

func TestRouteMessageSkipsUnreachableMembers(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	aID, err := hub.Register(ctx, a)
	require.NoError(t, err)

	gone := &recorder{fail: true}
	_, err = hub.Register(ctx, gone)
	require.NoError(t, err)

	c := &recorder{}
	_, err = hub.Register(ctx, c)
	require.NoError(t, err)

	require.NoError(t, hub.RouteMessage(ctx, aID, chat.DefaultRoom, "still here?"))
	flush(t, hub)

	assert.Contains(t, c.received(), "still here?")

	// The unreachable member is still registered; cleanup belongs to its
	// own deregistration, never to delivery.
	members, err := hub.Members(ctx, chat.DefaultRoom)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestDeregisterIsIdempotent(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	aID, err := hub.Register(ctx, a)
	require.NoError(t, err)

	b := &recorder{}
	bID, err := hub.Register(ctx, b)
	require.NoError(t, err)

	require.NoError(t, hub.Deregister(ctx, aID))
	require.NoError(t, hub.Deregister(ctx, aID))
	flush(t, hub)

	members, err := hub.Members(ctx, chat.DefaultRoom)
	require.NoError(t, err)
	assert.Equal(t, []string{bID}, members)

	var notices int
	for _, msg := range b.received() {
		if msg == chat.NoticeDisconnected {
			notices++
		}
	}
	assert.Equal(t, 1, notices, "double deregistration must notify once")
}

func TestDeregisterRemovesFromJoinedRoom(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	a := &recorder{}
	aID, err := hub.Register(ctx, a)
	require.NoError(t, err)

	b := &recorder{}
	bID, err := hub.Register(ctx, b)
	require.NoError(t, err)
	require.NoError(t, hub.JoinRoom(ctx, bID, "lobby"))

	require.NoError(t, hub.JoinRoom(ctx, aID, "lobby"))
	require.NoError(t, hub.Deregister(ctx, aID))
	flush(t, hub)

	lobbyMembers, err := hub.Members(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{bID}, lobbyMembers)
	assert.Contains(t, b.received(), chat.NoticeDisconnected)

	// Empty rooms persist.
	rooms, err := hub.ListRooms(ctx)
	require.NoError(t, err)
	assert.Contains(t, rooms, "lobby")
}

func TestStoppedHubRejectsCommands(t *testing.T) {
	hub := chat.NewHub(chat.HubOptions{
		Logger: logging.New(logging.Config{Level: "error", Format: "text"}),
	})
	require.NoError(t, hub.Start(context.Background()))
	require.NoError(t, hub.Stop())

	ctx := context.Background()

	_, err := hub.Register(ctx, &recorder{})
	assert.ErrorIs(t, err, domain.ErrHubStopped)

	assert.ErrorIs(t, hub.Deregister(ctx, "x"), domain.ErrHubStopped)
	assert.ErrorIs(t, hub.JoinRoom(ctx, "x", "lobby"), domain.ErrHubStopped)
	assert.ErrorIs(t, hub.RouteMessage(ctx, "x", "lobby", "hi"), domain.ErrHubStopped)

	_, err = hub.ListRooms(ctx)
	assert.ErrorIs(t, err, domain.ErrHubStopped)
}
