package dircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreircd/dircd/casemap"
)

func TestNickChangeRekeysMemberships(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	table := casemap.ForMapping(server.Casemap())

	alice := newTestConn(t, server, "alice")
	bob := newTestConn(t, server, "bob")
	channel := joinTestChannel(server, "#test", alice, bob)

	alice.user.SetRegBit(RegGotNick | RegGotUser)
	server.Nicks.Set(casemap.Key("alice", table), alice.user)

	HandleNick(&MessageContext{Conn: alice, Msg: &Message{
		Command: CmdNick,
		Params:  []string{"alicia"},
	}})

	assert.Equal(t, "alicia", alice.user.Nick())

	_, ok := server.Nicks.Get(casemap.Key("alice", table))
	assert.False(t, ok, "old nick leaves the nick index")
	renamed, ok := server.Nicks.Get(casemap.Key("alicia", table))
	require.True(t, ok)
	assert.Same(t, alice.user, renamed)

	_, ok = channel.Member(casemap.Key("alice", table))
	assert.False(t, ok, "membership no longer keyed under the old nick")
	member, ok := channel.Member(casemap.Key("alicia", table))
	require.True(t, ok, "membership rekeyed under the new nick")
	assert.Same(t, alice.user, member.User())
}

func TestNickChangeKeepsChannelAccess(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	table := casemap.ForMapping(server.Casemap())

	alice := newTestConn(t, server, "alice")
	bob := newTestConn(t, server, "bob")
	channel := joinTestChannel(server, "#test", alice, bob)

	alice.user.SetRegBit(RegGotNick | RegGotUser)
	server.Nicks.Set(casemap.Key("alice", table), alice.user)

	HandleNick(&MessageContext{Conn: alice, Msg: &Message{
		Command: CmdNick,
		Params:  []string{"alicia"},
	}})

	// The renamed user can still operate on the channel: a PART must
	// find the membership, announce to both members, and remove it.
	HandlePart(&MessageContext{Conn: alice, Msg: &Message{
		Command: CmdPart,
		Params:  []string{"#test"},
	}})

	assert.Equal(t, 1, channel.MemberCount())
	_, ok := channel.Member(casemap.Key("bob", table))
	assert.True(t, ok)
	assert.Zero(t, alice.channels.Length())
}
