package dircd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreircd/dircd/casemap"
)

func TestSetCasemapRebuildsNickIndex(t *testing.T) {
	server, err := NewServer(WithCasemap(casemap.ASCII))
	assert.NoError(t, err)

	asciiTable := casemap.ForMapping(casemap.ASCII)
	alice := &User{nick: "Alice", uid: "001AAAAAA"}
	server.Nicks.Set(casemap.Key(alice.Nick(), asciiTable), alice)

	server.SetCasemap(casemap.RFC1459)
	assert.Equal(t, casemap.RFC1459, server.Casemap())

	rfcTable := casemap.ForMapping(casemap.RFC1459)
	got, ok := server.Nicks.Get(casemap.Key("alice", rfcTable))
	assert.True(t, ok)
	assert.Same(t, alice, got)
}

func TestSetCasemapRenamesCollidingNick(t *testing.T) {
	server, err := NewServer(WithCasemap(casemap.ASCII))
	assert.NoError(t, err)

	asciiTable := casemap.ForMapping(casemap.ASCII)

	// Under ASCII these two nicks are distinct; RFC1459 folds [] and {}
	// together, so one of them becomes ambiguous once rekeyed.
	alice := &User{nick: "a[b]", uid: "001AAAAAA"}
	bob := &User{nick: "a{b}", uid: "001BBBBBB"}
	server.Nicks.Set(casemap.Key(alice.Nick(), asciiTable), alice)
	server.Nicks.Set(casemap.Key(bob.Nick(), asciiTable), bob)

	server.SetCasemap(casemap.RFC1459)

	renamed := 0
	if alice.Nick() == alice.UID() {
		renamed++
	}
	if bob.Nick() == bob.UID() {
		renamed++
	}
	assert.Equal(t, 1, renamed, "exactly one of the colliding nicks is renamed to its UID")
	assert.Equal(t, 2, server.Nicks.Length())
}

func TestChannelRekeyMembers(t *testing.T) {
	channel := NewChannel("#test", 1)
	asciiTable := casemap.ForMapping(casemap.ASCII)

	alice := &User{nick: "a[b]"}
	channel.AddMember(alice, casemap.Key(alice.Nick(), asciiTable), 1)

	rfcTable := casemap.ForMapping(casemap.RFC1459)
	channel.RekeyMembers(rfcTable)

	_, ok := channel.Member(casemap.Key("a{b}", rfcTable))
	assert.True(t, ok)
}
