package dircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardReplyWithCapability(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	conn := newTestConn(t, server, "alice")
	conn.capState.Enabled["standard-replies"] = true

	conn.ReplyFail(CmdRehash, "INVALID_CASEMAP", "unknown casemapping: klingon")

	require.Len(t, conn.writeQueue, 1)
	buf := <-conn.writeQueue
	assert.Equal(t, ":irc.localhost.net FAIL REHASH INVALID_CASEMAP :unknown casemapping: klingon\r\n", buf.String())
	bufPool.Recycle(buf)
}

func TestStandardReplyFallsBackToNotice(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	conn := newTestConn(t, server, "alice")

	conn.ReplyWarn(CmdKLine, "DUPLICATE_ENTRY", "matching line already exists")

	require.Len(t, conn.writeQueue, 1)
	buf := <-conn.writeQueue
	assert.Equal(t, ":irc.localhost.net NOTICE * :KLINE: matching line already exists\r\n", buf.String())
	bufPool.Recycle(buf)
}
