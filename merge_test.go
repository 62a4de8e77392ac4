package dircd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreircd/dircd/casemap"
)

func TestMergeChannelPeerLoses(t *testing.T) {
	table := casemap.ForMapping(casemap.RFC1459)

	local := NewChannel("#test", 100)
	local.AddMode(CModeNoExternal)
	local.BanList.Set("*!*@evil.example", ListEntry{Setter: "op!op@host", SetAt: 50})

	alice := &User{nick: "alice"}
	local.AddMember(alice, "alice", 100)

	peerUser := &User{nick: "bob"}
	snap := ChannelSnapshot{
		CreatedAt:   200, // younger than local: peer loses
		Modes:       CModeTopicLock,
		Members:     map[string]*User{"bob": peerUser},
		MemberRanks: map[string]uint8{"bob": RankOp},
	}

	outcome := MergeChannel(local, snap, table)

	assert.Equal(t, MergeWeWin, outcome)
	assert.Equal(t, int64(100), local.CreatedAt())
	assert.True(t, local.ModeIsSet(CModeNoExternal))
	assert.False(t, local.ModeIsSet(CModeTopicLock))

	bobMember, ok := local.Member("bob")
	assert.True(t, ok)
	assert.Equal(t, RankNone, bobMember.Rank(), "peer ranks are dropped when peer loses")
}

func TestMergeChannelWeLose(t *testing.T) {
	table := casemap.ForMapping(casemap.RFC1459)

	local := NewChannel("#test", 500)
	local.AddMode(CModeNoExternal)

	alice := &User{nick: "alice"}
	aliceMember := local.AddMember(alice, "alice", 500)
	aliceMember.AddRank(RankOp)

	peerUser := &User{nick: "bob"}
	snap := ChannelSnapshot{
		CreatedAt:   100, // older than local: we lose
		Modes:       CModeTopicLock,
		Members:     map[string]*User{"bob": peerUser},
		MemberRanks: map[string]uint8{"alice": RankVoice, "bob": RankOp},
	}

	outcome := MergeChannel(local, snap, table)

	assert.Equal(t, MergeWeLose, outcome)
	assert.Equal(t, int64(100), local.CreatedAt())
	assert.False(t, local.ModeIsSet(CModeNoExternal), "local modes are cleared when we lose")
	assert.True(t, local.ModeIsSet(CModeTopicLock), "peer modes are adopted when we lose")
	assert.Equal(t, RankVoice, aliceMember.Rank(), "local prefix ranks are dropped then re-set from the peer's view")

	bobMember, ok := local.Member("bob")
	assert.True(t, ok)
	assert.Equal(t, RankOp, bobMember.Rank())
}

func TestMergeChannelUnion(t *testing.T) {
	table := casemap.ForMapping(casemap.RFC1459)

	local := NewChannel("#test", 300)
	local.AddMode(CModeNoExternal)
	local.BanList.Set("*!*@spammer.example", ListEntry{Setter: "op!op@host", SetAt: 10})

	alice := &User{nick: "alice"}
	aliceMember := local.AddMember(alice, "alice", 300) // first member: auto-grants RankOwner|RankOp
	aliceMember.AddRank(RankVoice)

	peerUser := &User{nick: "bob"}
	snap := ChannelSnapshot{
		CreatedAt: 300, // tied: union
		Modes:     CModeTopicLock,
		BanList:   map[string]ListEntry{"*!*@other.example": {Setter: "peer-op!x@y", SetAt: 20}},
		Members:   map[string]*User{"bob": peerUser},
		MemberRanks: map[string]uint8{
			"alice": RankOp,
			"bob":   RankVoice,
		},
	}

	outcome := MergeChannel(local, snap, table)

	assert.Equal(t, MergeUnion, outcome)
	assert.Equal(t, int64(300), local.CreatedAt())
	assert.True(t, local.ModeIsSet(CModeNoExternal))
	assert.True(t, local.ModeIsSet(CModeTopicLock))
	assert.Equal(t, 2, local.BanList.Length(), "ban lists are unioned, not replaced")
	assert.Equal(t, RankOwner|RankOp|RankVoice, aliceMember.Rank(), "ranks union rather than replace, founder rank untouched")

	bobMember, ok := local.Member("bob")
	assert.True(t, ok)
	assert.Equal(t, RankVoice, bobMember.Rank())
}
