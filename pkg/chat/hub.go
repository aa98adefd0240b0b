// Package chat implements the relay core: the hub that owns all session
// and room state, and the parser that turns inbound text lines into
// commands. The hub serializes every mutation through a single command
// queue consumed by one goroutine, so concurrent connect, disconnect, and
// join traffic never needs shared-memory locking.
package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/xid"

	"github.com/VampireTeeth/chatrelay/internal/eventbus"
	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/domain"
)

// DefaultRoom is the room every session is placed in at registration.
const DefaultRoom = "Main"

// Notices broadcast by the hub on membership changes.
const (
	NoticeJoined       = "Someone joined"
	NoticeLeft         = "Someone left"
	NoticeDisconnected = "Someone disconnected"
)

// HubOptions represents hub configuration options
type HubOptions struct {
	Logger   *logging.Logger
	EventBus eventbus.Bus
	// QueueSize bounds the command queue. Zero means the default.
	QueueSize int
}

const defaultQueueSize = 256

// Hub is the single owner of the session and room tables. All access goes
// through the command queue; the run loop is the only code that touches
// the maps. Commands from one caller are applied in issue order.
type Hub struct {
	sessions map[string]*session
	rooms    map[string]map[string]struct{}

	commands chan hubCommand
	logger   *logging.Logger
	eventBus eventbus.Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// session is the hub's bookkeeping entry for one registered session. The
// outbound handle is a send capability only; the connection's own
// goroutines keep ownership of the transport.
type session struct {
	outbound domain.Outbound
	room     string
}

// NewHub creates a new hub. Start must be called before any command is
// issued.
func NewHub(opts HubOptions) *Hub {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}

	return &Hub{
		sessions: make(map[string]*session),
		rooms:    map[string]map[string]struct{}{DefaultRoom: {}},
		commands: make(chan hubCommand, queueSize),
		logger:   logger,
		eventBus: opts.EventBus,
	}
}

// Start implements domain.Hub-style lifecycle: it spawns the run loop.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.run()
	h.logger.Info("hub started")
	return nil
}

// Stop stops the run loop. Commands issued afterwards fail with
// domain.ErrHubStopped.
func (h *Hub) Stop() error {
	h.cancel()
	h.wg.Wait()
	h.logger.Info("hub stopped")
	return nil
}

// run is the single consumer of the command queue.
func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case cmd := <-h.commands:
			cmd.apply(h)
		}
	}
}

// enqueue submits a command to the run loop. The buffered channel
// preserves FIFO order per caller.
func (h *Hub) enqueue(ctx context.Context, cmd hubCommand) error {
	if h.ctx.Err() != nil {
		// The queue still has capacity after Stop, but nothing consumes
		// it anymore.
		return domain.ErrHubStopped
	}

	select {
	case h.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return domain.ErrHubStopped
	}
}

// Register allocates a fresh session id, places the session in the
// default room, and notifies the room's other members.
func (h *Hub) Register(ctx context.Context, outbound domain.Outbound) (string, error) {
	reply := make(chan string, 1)
	if err := h.enqueue(ctx, registerCommand{outbound: outbound, reply: reply}); err != nil {
		return "", err
	}

	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-h.ctx.Done():
		return "", domain.ErrHubStopped
	}
}

// Deregister removes the session from the table and from every room it
// occupied. It is idempotent: the close path and the heartbeat timeout
// path may both deregister the same id.
func (h *Hub) Deregister(ctx context.Context, id string) error {
	return h.enqueue(ctx, deregisterCommand{id: id})
}

// JoinRoom moves the session into room, creating the room if needed.
// Unknown ids are ignored; a deregistration and a join may race.
func (h *Hub) JoinRoom(ctx context.Context, id, room string) error {
	return h.enqueue(ctx, joinCommand{id: id, room: room})
}

// ListRooms returns all known room names, including empty ones, sorted
// for stable output.
func (h *Hub) ListRooms(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.enqueue(ctx, listRoomsCommand{reply: reply}); err != nil {
		return nil, err
	}

	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, domain.ErrHubStopped
	}
}

// Members returns the ids currently joined to room. The query goes through
// the command queue, so it never observes a half-applied membership change.
func (h *Hub) Members(ctx context.Context, room string) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.enqueue(ctx, membersCommand{room: room, reply: reply}); err != nil {
		return nil, err
	}

	select {
	case members := <-reply:
		return members, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, domain.ErrHubStopped
	}
}

// RouteMessage delivers text to every member of room except id.
func (h *Hub) RouteMessage(ctx context.Context, id, room, text string) error {
	return h.enqueue(ctx, routeCommand{id: id, room: room, text: text})
}

type hubCommand interface {
	apply(h *Hub)
}

type registerCommand struct {
	outbound domain.Outbound
	reply    chan string
}

func (c registerCommand) apply(h *Hub) {
	id := xid.New().String()

	h.sessions[id] = &session{outbound: c.outbound, room: DefaultRoom}
	h.room(DefaultRoom)[id] = struct{}{}

	h.deliver(DefaultRoom, NoticeJoined, id)
	h.publish(eventbus.EventSessionConnected, id, DefaultRoom)
	h.logger.Info("session registered", "session_id", id, "total_sessions", len(h.sessions))

	c.reply <- id
}

type deregisterCommand struct {
	id string
}

func (c deregisterCommand) apply(h *Hub) {
	if _, ok := h.sessions[c.id]; !ok {
		// Already gone; the close and timeout paths race here.
		return
	}
	delete(h.sessions, c.id)

	var left []string
	for name, members := range h.rooms {
		if _, ok := members[c.id]; ok {
			delete(members, c.id)
			left = append(left, name)
		}
	}

	for _, name := range left {
		h.deliver(name, NoticeDisconnected, c.id)
		h.publish(eventbus.EventSessionDisconnected, c.id, name)
	}

	h.logger.Info("session deregistered", "session_id", c.id, "total_sessions", len(h.sessions))
}

type joinCommand struct {
	id   string
	room string
}

func (c joinCommand) apply(h *Hub) {
	sess, ok := h.sessions[c.id]
	if !ok {
		// Raced with a deregistration; nothing to do.
		return
	}

	if members, ok := h.rooms[sess.room]; ok {
		if _, ok := members[c.id]; ok {
			delete(members, c.id)
			h.deliver(sess.room, NoticeLeft, c.id)
		}
	}

	h.room(c.room)[c.id] = struct{}{}
	sess.room = c.room

	h.deliver(c.room, NoticeJoined, c.id)
	h.logger.Debug("session joined room", "session_id", c.id, "room", c.room)
}

type listRoomsCommand struct {
	reply chan []string
}

func (c listRoomsCommand) apply(h *Hub) {
	rooms := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)
	c.reply <- rooms
}

type membersCommand struct {
	room  string
	reply chan []string
}

func (c membersCommand) apply(h *Hub) {
	members := make([]string, 0, len(h.rooms[c.room]))
	for id := range h.rooms[c.room] {
		members = append(members, id)
	}
	sort.Strings(members)
	c.reply <- members
}

type routeCommand struct {
	id   string
	room string
	text string
}

func (c routeCommand) apply(h *Hub) {
	h.deliver(c.room, c.text, c.id)
}

// room returns the member set for name, creating the room on first
// reference. Rooms are never deleted; empty rooms stay listable.
func (h *Hub) room(name string) map[string]struct{} {
	members, ok := h.rooms[name]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[name] = members
		h.publish(eventbus.EventRoomCreated, "", name)
		h.logger.Info("room created", "room", name)
	}
	return members
}

// deliver sends text to every member of room except skipID. Send failures
// mean the member is already gone; its own deregistration reconciles the
// tables, never the delivery path.
func (h *Hub) deliver(room, text, skipID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}

	for id := range members {
		if id == skipID {
			continue
		}
		sess, ok := h.sessions[id]
		if !ok {
			continue
		}
		if err := sess.outbound.Send(h.ctx, []byte(text)); err != nil {
			h.logger.Debug("dropping undeliverable message",
				"session_id", id,
				"room", room,
				"error", err,
			)
		}
	}
}

func (h *Hub) publish(eventType eventbus.EventType, sessionID, room string) {
	if h.eventBus == nil {
		return
	}
	h.eventBus.PublishAsync(eventbus.NewEvent(eventType, sessionID, room))
}
