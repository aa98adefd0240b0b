package chat

import "strings"

// Command is the parsed form of one inbound text line.
type Command interface {
	isCommand()
}

// Broadcast relays text to every other member of the sender's room.
type Broadcast struct {
	Text string
}

// ListRooms requests the names of all known rooms.
type ListRooms struct{}

// Join moves the sender into the named room.
type Join struct {
	Room string
}

// SetName changes the sender's display name. It never reaches the hub;
// the name is session-local state.
type SetName struct {
	Name string
}

// Invalid reports a malformed command line back to the sender only.
type Invalid struct {
	Reason string
}

func (Broadcast) isCommand() {}
func (ListRooms) isCommand() {}
func (Join) isCommand()      {}
func (SetName) isCommand()   {}
func (Invalid) isCommand()   {}

// ParseCommand maps one raw text line to a command. It is a pure function
// with no side effects; command errors are reported to the originating
// connection only and never reach the hub.
func ParseCommand(text string) Command {
	line := strings.TrimSpace(text)
	if !strings.HasPrefix(line, "/") {
		return Broadcast{Text: line}
	}

	parts := strings.SplitN(line, " ", 2)
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	switch parts[0] {
	case "/list":
		return ListRooms{}
	case "/join":
		if arg == "" {
			return Invalid{Reason: "room name is required"}
		}
		return Join{Room: arg}
	case "/name":
		if arg == "" {
			return Invalid{Reason: "name is required"}
		}
		return SetName{Name: arg}
	default:
		return Invalid{Reason: "unknown command: " + parts[0]}
	}
}
