/*
   Copyright (c) 2020, btnmasher
   All rights reserved.

   Redistribution and use in source and binary forms, with or without modification, are permitted provided that
   the following conditions are met:

   1. Redistributions of source code must retain the above copyright notice, this list of conditions and the
      following disclaimer.

   2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and
      the following disclaimer in the documentation and/or other materials provided with the distribution.

   3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or
      promote products derived from this software without specific prior written permission.

   THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED
   WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A
   PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR
   ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED
   TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
   HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
   NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
   POSSIBILITY OF SUCH DAMAGE.
*/

package dircd

import (
	"sync"

	"github.com/coreircd/dircd/casemap"
)

// Channel represents an IRC channel: its topic, modes, and membership.
type Channel struct {
	sync.RWMutex

	name      string
	topic     string
	topicSet  string // hostmask of the last user to set the topic
	topicTime int64
	createdAt int64

	modes uint64
	key   string
	limit int

	members map[string]*Membership // casefolded nick -> membership

	BanList    ListSet   // mask -> ListEntry{setter, set-time}
	ExceptList ListSet   // ban-exception mask -> ListEntry{setter, set-time}
	InviteList ListSet   // invite-exception mask -> ListEntry{setter, set-time}
	InviteOnce StringSet // one-shot /INVITE exemptions, cleared on join

	ext extensionBag
}

// Extension satisfies Extensible.
func (channel *Channel) Extension(key string) (any, bool) {
	return channel.ext.Extension(key)
}

// SetExtension satisfies Extensible.
func (channel *Channel) SetExtension(key string, value any) {
	channel.ext.SetExtension(key, value)
}

// NewChannel initializes an empty Channel with the given name.
func NewChannel(cname string, createdAt int64) *Channel {
	return &Channel{
		name:       cname,
		createdAt:  createdAt,
		members:    make(map[string]*Membership),
		BanList:    NewListSet(),
		ExceptList: NewListSet(),
		InviteList: NewListSet(),
		InviteOnce: NewStringSet(),
	}
}

// Name returns the name of the channel in a currency safe manner.
func (channel *Channel) Name() string {
	channel.RLock()
	defer channel.RUnlock()

	return channel.name
}

// SetName sets the name of the channel in a currency safe manner.
func (channel *Channel) SetName(new string) {
	channel.Lock()
	defer channel.Unlock()

	channel.name = new
}

// Topic returns the topic, its setter hostmask, and the time it was
// set, in a concurrency-safe manner.
func (channel *Channel) Topic() (topic, setter string, when int64) {
	channel.RLock()
	defer channel.RUnlock()

	return channel.topic, channel.topicSet, channel.topicTime
}

// SetTopic sets the channel topic, recording who set it and when.
func (channel *Channel) SetTopic(topic, setter string, when int64) {
	channel.Lock()
	defer channel.Unlock()

	channel.topic = topic
	channel.topicSet = setter
	channel.topicTime = when
}

// CreatedAt returns the unix timestamp the channel was created.
func (channel *Channel) CreatedAt() int64 {
	channel.RLock()
	defer channel.RUnlock()

	return channel.createdAt
}

// Key returns the channel's +k key, empty if unset.
func (channel *Channel) Key() string {
	channel.RLock()
	defer channel.RUnlock()

	return channel.key
}

// SetKey sets the channel's +k key.
func (channel *Channel) SetKey(key string) {
	channel.Lock()
	defer channel.Unlock()

	channel.key = key
}

// Limit returns the channel's +l user limit, 0 if unset.
func (channel *Channel) Limit() int {
	channel.RLock()
	defer channel.RUnlock()

	return channel.limit
}

// SetLimit sets the channel's +l user limit.
func (channel *Channel) SetLimit(limit int) {
	channel.Lock()
	defer channel.Unlock()

	channel.limit = limit
}

// Mode returns the channel's simple/param mode bitset.
func (channel *Channel) Mode() uint64 {
	channel.RLock()
	defer channel.RUnlock()

	return channel.modes
}

// AddMode sets the given mode bits on the channel.
func (channel *Channel) AddMode(cmode uint64) {
	channel.Lock()
	defer channel.Unlock()

	channel.modes |= cmode
}

// DelMode clears the given mode bits on the channel.
func (channel *Channel) DelMode(cmode uint64) {
	channel.Lock()
	defer channel.Unlock()

	channel.modes &^= cmode
}

// ModeIsSet reports whether the given mode bit is currently set.
func (channel *Channel) ModeIsSet(cmode uint64) bool {
	channel.RLock()
	defer channel.RUnlock()

	return channel.modes&cmode == cmode
}

// Member returns the Membership for a casefolded nick, if joined.
func (channel *Channel) Member(foldedNick string) (*Membership, bool) {
	channel.RLock()
	defer channel.RUnlock()

	m, ok := channel.members[foldedNick]
	return m, ok
}

// MemberCount returns the number of users currently joined.
func (channel *Channel) MemberCount() int {
	channel.RLock()
	defer channel.RUnlock()

	return len(channel.members)
}

// ForEachMember calls do for every current Membership. do must not
// mutate the channel's membership map.
func (channel *Channel) ForEachMember(do func(*Membership)) {
	channel.RLock()
	defer channel.RUnlock()

	for _, m := range channel.members {
		do(m)
	}
}

// AddMember records a new Membership for user, giving ranks to the
// channel's very first member (the founder).
func (channel *Channel) AddMember(user *User, foldedNick string, joined int64) *Membership {
	channel.Lock()
	defer channel.Unlock()

	m := NewMembership(user, channel, joined)
	if len(channel.members) == 0 {
		m.AddRank(RankOwner | RankOp)
	}
	channel.members[foldedNick] = m
	return m
}

// RemoveMember drops a user's Membership from the channel.
func (channel *Channel) RemoveMember(foldedNick string) {
	channel.Lock()
	defer channel.Unlock()

	delete(channel.members, foldedNick)
}

// ChangeMemberKey moves one membership from its old folded-nick key to
// a new one, called when a joined user changes nick. A no-op if the
// user isn't a member.
func (channel *Channel) ChangeMemberKey(oldFolded, newFolded string) {
	channel.Lock()
	defer channel.Unlock()

	if m, ok := channel.members[oldFolded]; ok {
		delete(channel.members, oldFolded)
		channel.members[newFolded] = m
	}
}

// RekeyMembers rebuilds the membership map's keys under a new casemap
// table, called after a server-wide casemap change. Caller must have
// already resolved any nick collisions (eg by renaming to UID) so two
// members never fold to the same key here.
func (channel *Channel) RekeyMembers(table *casemap.Table) {
	channel.Lock()
	defer channel.Unlock()

	rebuilt := make(map[string]*Membership, len(channel.members))
	for _, m := range channel.members {
		rebuilt[casemap.Key(m.User().Nick(), table)] = m
	}
	channel.members = rebuilt
}

// Send writes msg to every current member's connection except the one
// whose folded nick matches exclude. Each recipient gets its own
// rendered buffer, since Conn.Write takes ownership of what it's given.
func (channel *Channel) Send(msg *Message, exclude string) {
	channel.RLock()
	defer channel.RUnlock()

	for nick, m := range channel.members {
		if nick == exclude {
			continue
		}
		m.User().conn.Write(msg.RenderBuffer())
	}
}

// Names returns the prefixed nick list for NAMES/JOIN replies, in the
// rank-to-prefix form used by channel.Membership.Prefix.
func (channel *Channel) Names(multiPrefix bool) []string {
	return channel.VisibleNames(nil, multiPrefix)
}

// VisibleNames returns the member list as seen by viewer. On an
// auditorium (+u) channel, unranked members are hidden from unranked
// viewers; ranked members are always shown, and a viewer always sees
// themself. A nil viewer (or any ranked one) sees everyone.
func (channel *Channel) VisibleNames(viewer *Membership, multiPrefix bool) []string {
	hideUnranked := channel.ModeIsSet(CModeAuditorium) &&
		viewer != nil && viewer.Rank() == RankNone

	channel.RLock()
	defer channel.RUnlock()

	names := make([]string, 0, len(channel.members))
	for _, m := range channel.members {
		if hideUnranked && m.Rank() == RankNone && m != viewer {
			continue
		}
		if multiPrefix {
			names = append(names, m.AllPrefixes()+m.User().Nick())
		} else {
			names = append(names, m.Prefix()+m.User().Nick())
		}
	}
	return names
}

// VisibleMembers calls do for every Membership the viewer may see,
// applying the same auditorium filtering as VisibleNames.
func (channel *Channel) VisibleMembers(viewer *Membership, do func(*Membership)) {
	hideUnranked := channel.ModeIsSet(CModeAuditorium) &&
		viewer != nil && viewer.Rank() == RankNone

	channel.RLock()
	defer channel.RUnlock()

	for _, m := range channel.members {
		if hideUnranked && m.Rank() == RankNone && m != viewer {
			continue
		}
		do(m)
	}
}
