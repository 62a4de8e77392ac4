package dircd

import (
	"sync/atomic"

	"github.com/coreircd/dircd/casemap"
)

// sentMark is a monotonically increasing counter used to de-duplicate
// broadcast fan-out: each outbound message gets the next value, and
// every connection remembers the last mark it was sent, so a user who
// shares several channels with the sender is only written to once.
var sentMark uint64

// nextMark returns a fresh, process-unique broadcast mark.
func nextMark() uint64 {
	return atomic.AddUint64(&sentMark, 1)
}

// NeighborSet computes the set of connections that share at least one
// channel with user, for server-wide notices that should only reach
// people who can "see" the source (eg QUIT, NICK, AWAY).
type NeighborSet struct {
	conns map[*Conn]struct{}
}

// ComputeNeighbors walks every channel the user is joined to and
// collects the distinct set of member connections, excluding the
// user's own connection unless includeSelf is set. Membership is
// checked under table, the server's active casemap, the same lowering
// every other nick-keyed index uses.
func ComputeNeighbors(user *User, channels ChanMap, includeSelf bool, table *casemap.Table) *NeighborSet {
	set := &NeighborSet{conns: make(map[*Conn]struct{})}
	folded := casemap.Key(user.Nick(), table)

	channels.ForEach(func(_ string, ch *Channel) error {
		if _, joined := ch.Member(folded); !joined {
			return nil
		}
		ch.ForEachMember(func(m *Membership) {
			other := m.User()
			if !includeSelf && other == user {
				return
			}
			set.conns[other.conn] = struct{}{}
		})
		return nil
	})

	return set
}

// Send writes msg to every connection in the set exactly once, using a
// fresh broadcast mark so connections that appear via more than one
// path (shouldn't happen within a single set, but guards the caller
// merging sets) aren't written to twice.
func (s *NeighborSet) Send(msg *Message) {
	if len(s.conns) == 0 {
		return
	}

	mark := nextMark()
	for conn := range s.conns {
		if atomic.SwapUint64(&conn.lastSentMark, mark) == mark {
			continue
		}
		conn.Write(msg.RenderBuffer())
	}
}

// Len returns the number of distinct connections in the set.
func (s *NeighborSet) Len() int {
	return len(s.conns)
}
