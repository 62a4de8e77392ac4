package casemap_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreircd/dircd/casemap"
)

func TestEqualCongruence(t *testing.T) {
	tbl := casemap.ForMapping(casemap.RFC1459)

	tests := []struct {
		a, b  string
		equal bool
	}{
		{"Alice", "alice", true},
		{"Guest[1]", "guest{1}", true},
		{"Guest~", "guest^", true},
		{"Bob", "Bobby", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.equal, casemap.Equal(tt.a, tt.b, tbl), "%s vs %s", tt.a, tt.b)
		if tt.equal {
			assert.Equal(t, casemap.Key(tt.a, tbl), casemap.Key(tt.b, tbl))
		}
	}
}

func TestStrictRFC1459NoTildeFold(t *testing.T) {
	tbl := casemap.ForMapping(casemap.StrictRFC1459)
	assert.False(t, casemap.Equal("Guest~", "guest^", tbl))
	assert.True(t, casemap.Equal("Guest[1]", "guest{1}", tbl))
}

func TestGlob(t *testing.T) {
	tbl := casemap.ForMapping(casemap.ASCII)

	assert.True(t, casemap.Glob("*!*@banned.example", "nick!user@banned.example", tbl))
	assert.False(t, casemap.Glob("*!*@banned.example", "nick!user@other.example", tbl))
	assert.True(t, casemap.Glob("a?c", "abc", tbl))
	assert.False(t, casemap.Glob("a?c", "abbc", tbl))
}

func TestMatchCIDR(t *testing.T) {
	assert.True(t, casemap.MatchCIDR("10.0.0.0/8", net.ParseIP("10.1.2.3")))
	assert.False(t, casemap.MatchCIDR("10.0.0.0/8", net.ParseIP("11.1.2.3")))
	assert.True(t, casemap.MatchCIDR("192.168.1.1", net.ParseIP("192.168.1.1")))
}

func TestPortParser(t *testing.T) {
	ports, err := casemap.PortParser("6667,6697-6699", false)
	assert.NoError(t, err)
	assert.Equal(t, []int{6667, 6697, 6698, 6699}, ports)

	_, err = casemap.PortParser("6667,6660-6670", true)
	assert.ErrorIs(t, err, casemap.ErrPortOverlap)
}

func TestTokenStream(t *testing.T) {
	ts := casemap.NewTokenStream("#test hello :this is trailing")
	var got []string
	for {
		tok, ok := ts.Next()
		if !ok {
			break
		}
		got = append(got, tok)
	}
	assert.Equal(t, []string{"#test", "hello", "this is trailing"}, got)
}
