package dircd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreircd/dircd/casemap"
)

// newTestConn builds a registered-looking connection backed by an
// in-memory pipe, with no read/write loops running so the write queue
// can be inspected directly.
func newTestConn(t *testing.T, server *Server, nick string) *Conn {
	t.Helper()

	client, serverSide := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		serverSide.Close()
	})

	conn := NewConn(server, serverSide)
	conn.user.SetNick(nick)
	conn.user.SetName(nick)
	conn.user.SetHostname("host.example")
	return conn
}

func joinTestChannel(server *Server, name string, conns ...*Conn) *Channel {
	table := casemap.ForMapping(server.Casemap())
	channel := NewChannel(name, 1000)
	server.Channels.Set(casemap.Key(name, table), channel)

	for _, conn := range conns {
		channel.AddMember(conn.user, casemap.Key(conn.user.Nick(), table), 1000)
		conn.channels.Set(name, channel)
	}
	return channel
}

func TestNeighborSetDeduplicatesSharedChannels(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	alice := newTestConn(t, server, "alice")
	bob := newTestConn(t, server, "bob")

	// Bob shares two channels with Alice; he must appear once.
	joinTestChannel(server, "#one", alice, bob)
	joinTestChannel(server, "#two", alice, bob)

	set := ComputeNeighbors(alice.user, alice.channels, false, casemap.ForMapping(server.Casemap()))
	assert.Equal(t, 1, set.Len())

	msg := msgPool.New()
	msg.Source = alice.user.Hostmask()
	msg.Command = CmdQuit
	msg.Trailing = "bye"
	set.Send(msg)
	msgPool.Recycle(msg)

	assert.Len(t, bob.writeQueue, 1, "bob receives the broadcast exactly once")
	assert.Empty(t, alice.writeQueue, "the sender is excluded")
}

func TestChannelSendExcludesSender(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	alice := newTestConn(t, server, "alice")
	bob := newTestConn(t, server, "bob")
	channel := joinTestChannel(server, "#test", alice, bob)

	table := casemap.ForMapping(server.Casemap())

	msg := msgPool.New()
	msg.Source = alice.user.Hostmask()
	msg.Command = CmdPrivMsg
	msg.Params = []string{"#test"}
	msg.Trailing = "hi"
	channel.Send(msg, casemap.Key("alice", table))
	msgPool.Recycle(msg)

	assert.Len(t, bob.writeQueue, 1)
	assert.Empty(t, alice.writeQueue)
}
