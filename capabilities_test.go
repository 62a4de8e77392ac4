package dircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapStateReqAcksKnown(t *testing.T) {
	caps := []capValue{{name: "sasl", value: "PLAIN"}, {name: "multi-prefix"}}
	state := NewCapState()

	ack, nak := state.Req("sasl multi-prefix", caps)

	assert.ElementsMatch(t, []string{"sasl", "multi-prefix"}, ack)
	assert.Empty(t, nak)
	assert.True(t, state.Has("sasl"))
	assert.True(t, state.Has("multi-prefix"))
}

func TestCapStateReqIsAtomic(t *testing.T) {
	caps := []capValue{{name: "sasl", value: "PLAIN"}, {name: "multi-prefix"}}
	state := NewCapState()

	// One unknown capability NAKs the entire request and leaves the
	// known ones untouched.
	ack, nak := state.Req("sasl multi-prefix bogus-cap", caps)

	assert.Empty(t, ack)
	assert.ElementsMatch(t, []string{"sasl", "multi-prefix", "bogus-cap"}, nak)
	assert.False(t, state.Has("sasl"))
	assert.False(t, state.Has("multi-prefix"))
	assert.False(t, state.Has("bogus-cap"))
}

func TestCapStateReqRemovesOnDash(t *testing.T) {
	caps := []capValue{{name: "away-notify"}}
	state := NewCapState()
	state.Enabled["away-notify"] = true

	ack, nak := state.Req("-away-notify", caps)

	assert.Equal(t, []string{"-away-notify"}, ack)
	assert.Empty(t, nak)
	assert.False(t, state.Has("away-notify"))
}

func TestCapStateLSVersionGating(t *testing.T) {
	caps := []capValue{{name: "sasl", value: "PLAIN"}}
	state := NewCapState()

	assert.Equal(t, "sasl", state.LS(301, caps))
	assert.Equal(t, "sasl=PLAIN", state.LS(302, caps))
}

func TestServerAdvertisedCapsIncludesDynamic(t *testing.T) {
	server, err := NewServer()
	assert.NoError(t, err)

	server.AnnounceCapability("sts", "port=6697", true)

	var found bool
	for _, cp := range server.AdvertisedCaps() {
		if cp.name == "sts" {
			found = true
			assert.Equal(t, "port=6697", cp.value)
		}
	}
	assert.True(t, found)

	server.AnnounceCapability("sts", "", false)
	for _, cp := range server.AdvertisedCaps() {
		assert.NotEqual(t, "sts", cp.name)
	}
}
