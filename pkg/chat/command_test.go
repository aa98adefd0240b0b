package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/VampireTeeth/chatrelay/pkg/chat"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want chat.Command
	}{
		{
			name: "plain text becomes a broadcast",
			text: "hello everyone",
			want: chat.Broadcast{Text: "hello everyone"},
		},
		{
			name: "surrounding whitespace is trimmed",
			text: "  hi there \n",
			want: chat.Broadcast{Text: "hi there"},
		},
		{
			name: "list command",
			text: "/list",
			want: chat.ListRooms{},
		},
		{
			name: "join with room name",
			text: "/join lobby",
			want: chat.Join{Room: "lobby"},
		},
		{
			name: "join keeps spaces inside the room name",
			text: "/join the lobby",
			want: chat.Join{Room: "the lobby"},
		},
		{
			name: "join without argument",
			text: "/join",
			want: chat.Invalid{Reason: "room name is required"},
		},
		{
			name: "join with blank argument",
			text: "/join   ",
			want: chat.Invalid{Reason: "room name is required"},
		},
		{
			name: "name with argument",
			text: "/name Alice",
			want: chat.SetName{Name: "Alice"},
		},
		{
			name: "name without argument",
			text: "/name",
			want: chat.Invalid{Reason: "name is required"},
		},
		{
			name: "unknown command reports the command word only",
			text: "/frobnicate all the things",
			want: chat.Invalid{Reason: "unknown command: /frobnicate"},
		},
		{
			name: "bare slash is unknown",
			text: "/",
			want: chat.Invalid{Reason: "unknown command: /"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chat.ParseCommand(tt.text))
		})
	}
}
