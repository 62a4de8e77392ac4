package dircd_test

import (
	. "github.com/coreircd/dircd"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Message", func() {

	Describe("recycling a message", func() {
		It("scrubs the message of any state", func() {
			msg := &Message{
				Tags:     map[string]string{"time": "x"},
				Source:   "irc.someserver.org",
				Code:     ReplyWelcome,
				Command:  CmdPrivMsg,
				Params:   []string{"somenick"},
				Trailing: "I am the server.",
			}

			msg.Scrub()

			Expect(msg.Tags).Should(BeNil())
			Expect(msg.Source).Should(Equal(""))
			Expect(msg.Code).Should(Equal(ReplyNone))
			Expect(msg.Command).Should(Equal(""))
			Expect(msg.Params).Should(BeNil())
			Expect(msg.Trailing).Should(Equal(""))
		})
	})

	Describe("rendering a message with tags", func() {
		It("prefixes the wire form with a sorted tag list", func() {
			msg := &Message{
				Tags:    map[string]string{"b": "2", "a": "1"},
				Command: CmdPing,
			}
			Expect(msg.Render()).Should(Equal("@a=1;b=2 PING\r\n"))
		})
	})
})
