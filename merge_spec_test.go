package dircd_test

import (
	. "github.com/coreircd/dircd"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreircd/dircd/casemap"
)

var _ = Describe("MergeChannel", func() {

	var (
		table *casemap.Table
		local *Channel
		alice *User
	)

	BeforeEach(func() {
		table = casemap.ForMapping(casemap.RFC1459)
		local = NewChannel("#arena", 2000)
		alice = &User{}
		alice.SetNick("alice")
		local.AddMember(alice, casemap.Key("alice", table), 2000)
	})

	Context("when the peer's channel is older", func() {
		It("adopts the peer's timestamp and drops local ranks", func() {
			bob := &User{}
			bob.SetNick("bob")

			outcome := MergeChannel(local, ChannelSnapshot{
				CreatedAt:   1000,
				Members:     map[string]*User{"bob": bob},
				MemberRanks: map[string]uint8{"bob": RankOp},
			}, table)

			Expect(outcome).To(Equal(MergeWeLose))
			Expect(local.CreatedAt()).To(Equal(int64(1000)))

			founder, ok := local.Member(casemap.Key("alice", table))
			Expect(ok).To(BeTrue())
			Expect(founder.Rank()).To(Equal(RankNone))

			peer, ok := local.Member(casemap.Key("bob", table))
			Expect(ok).To(BeTrue())
			Expect(peer.HasRank(RankOp)).To(BeTrue())
		})
	})

	Context("when the peer's channel is newer", func() {
		It("keeps local state and strips the peer's ranks", func() {
			bob := &User{}
			bob.SetNick("bob")

			outcome := MergeChannel(local, ChannelSnapshot{
				CreatedAt:   3000,
				Members:     map[string]*User{"bob": bob},
				MemberRanks: map[string]uint8{"bob": RankOp},
			}, table)

			Expect(outcome).To(Equal(MergeWeWin))
			Expect(local.CreatedAt()).To(Equal(int64(2000)))

			founder, ok := local.Member(casemap.Key("alice", table))
			Expect(ok).To(BeTrue())
			Expect(founder.HasRank(RankOwner)).To(BeTrue())

			peer, ok := local.Member(casemap.Key("bob", table))
			Expect(ok).To(BeTrue())
			Expect(peer.Rank()).To(Equal(RankNone))
		})
	})

	Context("when both timestamps are equal", func() {
		It("unions ranks across both sides", func() {
			outcome := MergeChannel(local, ChannelSnapshot{
				CreatedAt:   2000,
				MemberRanks: map[string]uint8{"alice": RankVoice},
			}, table)

			Expect(outcome).To(Equal(MergeUnion))

			founder, ok := local.Member(casemap.Key("alice", table))
			Expect(ok).To(BeTrue())
			Expect(founder.HasRank(RankOwner)).To(BeTrue(), "local rank survives")
			Expect(founder.HasRank(RankVoice)).To(BeTrue(), "peer rank unioned in")
		})
	})
})
