package dircd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXInfoBuilderEntriesAndTypes(t *testing.T) {
	b := NewXInfoBuilder()
	b.String("NAME", "PING").UInt("COUNT", 3).Save()
	b.String("NAME", "NICK").UInt("COUNT", 7).Save()

	assert.False(t, b.Empty())
	assert.Equal(t, []string{" NAME PING COUNT 3", " NAME NICK COUNT 7"}, b.lines)
	assert.Equal(t, " NAME string COUNT uint", b.typeTokens())
}

func TestBuiltinXInfoProvidersRegistered(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	provider, ok := server.Providers.LookupByName("XINFO/UPTIME")
	require.True(t, ok)

	xinfo, ok := provider.(XInfoProvider)
	require.True(t, ok)

	b := NewXInfoBuilder()
	xinfo.XInfo(nil, b)
	require.False(t, b.Empty())
	assert.True(t, strings.Contains(b.lines[0], "STARTUP"))
}

func TestXInfoUnknownTopicReplies772(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	conn := newTestConn(t, server, "alice")
	conn.ReplyNoSuchXInfoTopic("BOGUS")

	require.Len(t, conn.writeQueue, 1)
	buf := <-conn.writeQueue
	assert.Equal(t, ":irc.localhost.net 772 alice BOGUS :No such XINFO topic available\r\n", buf.String())
	bufPool.Recycle(buf)
}
