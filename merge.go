package dircd

import (
	"strconv"

	"github.com/coreircd/dircd/casemap"
)

// allPrefixRanks is every prefix-mode rank bit, used to drop all ranks
// from a membership when we lose a timestamp merge.
const allPrefixRanks = RankVoice | RankHalfOp | RankOp | RankAdmin | RankOwner

// ChannelSnapshot is the peer-introduced state of a channel carried by
// a state-introduction burst, per the timestamp reconciliation
// algorithm (spec §4.7). The wire format that produces one is out of
// scope here; the federation layer is expected to resolve peer UIDs
// to local *User objects (via the UID index, §3) before building this.
type ChannelSnapshot struct {
	CreatedAt int64

	Modes uint64
	Key   string
	Limit int

	BanList    map[string]ListEntry
	ExceptList map[string]ListEntry
	InviteList map[string]ListEntry

	// Members holds peer-side users not yet locally joined, keyed by
	// nick (folded internally under the active casemap). MemberRanks
	// holds the peer's view of every member's rank bitset (both
	// already-local and peer-only members), also keyed by nick.
	Members     map[string]*User
	MemberRanks map[string]uint8
}

// MergeOutcome reports which branch of the timestamp reconciliation
// algorithm a MergeChannel call took.
type MergeOutcome int

const (
	// MergeWeWin means our creation timestamp was older (lower): the
	// peer's modes and membership ranks are discarded, our state stays
	// authoritative, and only the peer's users are introduced as plain
	// (no-rank) members.
	MergeWeWin MergeOutcome = iota
	// MergeWeLose means the peer's creation timestamp was older: our
	// modes are cleared, all local prefix ranks are dropped, and the
	// peer's timestamp, modes, and lists are adopted wholesale.
	MergeWeLose
	// MergeUnion means both sides carried the same creation timestamp:
	// modes, lists, and membership ranks are unioned per field.
	MergeUnion
)

// MergeChannel reconciles a channel's authoritative state against a
// peer's introduction of the same channel name, per the timestamp
// merge algorithm in spec §4.7. It is the only function in this
// package allowed to rewrite a Channel's modes, lists, creation
// timestamp, or membership ranks from a non-local event.
func MergeChannel(channel *Channel, snap ChannelSnapshot, table *casemap.Table) MergeOutcome {
	channel.Lock()
	defer channel.Unlock()

	switch {
	case snap.CreatedAt > channel.createdAt:
		introducePeerMembers(channel, snap, table)
		return MergeWeWin

	case snap.CreatedAt < channel.createdAt:
		channel.createdAt = snap.CreatedAt
		channel.modes = snap.Modes
		channel.key = snap.Key
		channel.limit = snap.Limit
		channel.BanList = listSetFrom(snap.BanList)
		channel.ExceptList = listSetFrom(snap.ExceptList)
		channel.InviteList = listSetFrom(snap.InviteList)

		for _, m := range channel.members {
			m.DelRank(allPrefixRanks)
		}
		introducePeerMembers(channel, snap, table)
		applyPeerRanks(channel, snap.MemberRanks, table)
		return MergeWeLose

	default:
		channel.modes |= snap.Modes
		if lexicographicallyGreater(snap.Key, channel.key) {
			channel.key = snap.Key
		}
		if lexicographicallyGreater(strconv.Itoa(snap.Limit), strconv.Itoa(channel.limit)) {
			channel.limit = snap.Limit
		}
		mergeListInto(channel.BanList, snap.BanList, table)
		mergeListInto(channel.ExceptList, snap.ExceptList, table)
		mergeListInto(channel.InviteList, snap.InviteList, table)

		introducePeerMembers(channel, snap, table)
		applyPeerRanks(channel, snap.MemberRanks, table)
		return MergeUnion
	}
}

// introducePeerMembers adds a Membership with no ranks for every
// peer-introduced user not already present locally. Callers must hold
// channel's lock.
func introducePeerMembers(channel *Channel, snap ChannelSnapshot, table *casemap.Table) {
	for nick, user := range snap.Members {
		folded := casemap.Key(nick, table)
		if _, exists := channel.members[folded]; !exists {
			channel.members[folded] = NewMembership(user, channel, snap.CreatedAt)
		}
	}
}

// applyPeerRanks unions the peer's view of each member's rank bitset
// onto whatever Membership already exists locally for that nick.
// Callers must hold channel's lock.
func applyPeerRanks(channel *Channel, ranks map[string]uint8, table *casemap.Table) {
	for nick, rank := range ranks {
		if m, ok := channel.members[casemap.Key(nick, table)]; ok {
			m.AddRank(rank)
		}
	}
}

// listSetFrom builds a fresh ListSet from a plain map, used when
// adopting a peer's lists wholesale (we lost the merge).
func listSetFrom(entries map[string]ListEntry) ListSet {
	set := NewListSet()
	for mask, entry := range entries {
		set.Set(mask, entry)
	}
	return set
}

// mergeListInto unions a peer's list entries into dest, skipping any
// mask that already has a casemap-equal entry on our side.
func mergeListInto(dest ListSet, src map[string]ListEntry, table *casemap.Table) {
	existing := dest.Keys()
	for mask, entry := range src {
		dup := false
		for _, have := range existing {
			if casemap.Equal(have, mask, table) {
				dup = true
				break
			}
		}
		if !dup {
			dest.Set(mask, entry)
		}
	}
}

// lexicographicallyGreater reports whether b is a non-empty string
// that sorts after a, used for the "lexicographically-greater value
// wins" rule applied to parameter modes during an equal-timestamp
// merge.
func lexicographicallyGreater(b, a string) bool {
	return b != EMPTY && b > a
}
