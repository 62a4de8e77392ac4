package dircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{
			name: "valid message",
			msg: Message{
				Source:   "irc.someserver.net",
				Command:  CmdPrivMsg,
				Params:   []string{"nick1!someuser@irc.somehost.org"},
				Trailing: "I am the server",
			},
			expected: ":irc.someserver.net PRIVMSG nick1!someuser@irc.somehost.org :I am the server\r\n",
		},
		{
			name: "numeric code message",
			msg: Message{
				Source:   "irc.someserver.net",
				Code:     ReplyWelcome,
				Params:   []string{"nick1!someuser@irc.somehost.org"},
				Trailing: "Welcome to the server",
			},
			expected: ":irc.someserver.net 001 nick1!someuser@irc.somehost.org :Welcome to the server\r\n",
		},
		{
			name: "message with tags",
			msg: Message{
				Tags:     map[string]string{"time": "2023-01-01T00:00:00.000Z", "msgid": "abc123"},
				Source:   "irc.someserver.net",
				Command:  CmdPrivMsg,
				Params:   []string{"#chan"},
				Trailing: "hello",
			},
			expected: "@msgid=abc123;time=2023-01-01T00:00:00.000Z :irc.someserver.net PRIVMSG #chan :hello\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.msg.Render())
			assert.Equal(t, tt.expected, tt.msg.String())
		})
	}
}

func TestMessageDebug(t *testing.T) {
	msg := Message{
		Source:   "irc.someserver.net",
		Code:     ReplyWelcome,
		Params:   []string{"nick1!someuser@irc.somehost.org"},
		Trailing: "Welcome to the server",
	}
	assert.JSONEq(t,
		`{"source":"irc.someserver.net","code":1,"params":["nick1!someuser@irc.somehost.org"],"trailing":"Welcome to the server"}`,
		msg.Debug(),
	)
}

func TestMessageScrub(t *testing.T) {
	msg := Message{
		Tags:     map[string]string{"a": "b"},
		Source:   "src",
		Command:  CmdPing,
		Code:     1,
		Params:   []string{"x"},
		Trailing: "y",
	}
	msg.Scrub()
	assert.Equal(t, Message{}, msg)
}
