package domain

import "context"

// Outbound is the hub's handle for delivering messages to a session. The
// hub holds only this send capability; the connection's own goroutines
// remain the sole owner of the underlying transport, so the hub's table
// entry can be dropped independently of connection teardown order.
type Outbound interface {
	Send(ctx context.Context, message []byte) error
}

// Hub is the serialized owner of all session and room state. Commands
// issued by a single caller are applied in the order they were issued;
// commands from different callers may interleave.
type Hub interface {
	// Register assigns a fresh session id, places the session in the
	// default room, and returns the id.
	Register(ctx context.Context, outbound Outbound) (string, error)

	// Deregister removes the session from the table and from every room
	// it occupied. Unknown ids are ignored; the close and timeout paths
	// may both deregister the same session.
	Deregister(ctx context.Context, id string) error

	// JoinRoom moves the session into room, creating it if needed.
	// Unknown ids are ignored.
	JoinRoom(ctx context.Context, id, room string) error

	// ListRooms returns all known room names, including empty ones.
	ListRooms(ctx context.Context) ([]string, error)

	// Members returns the session ids currently joined to room.
	Members(ctx context.Context, room string) ([]string, error)

	// RouteMessage delivers text to every member of room except id.
	RouteMessage(ctx context.Context, id, room, text string) error
}
