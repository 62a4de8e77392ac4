package dircd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreircd/dircd/casemap"
)

func TestChannelDBRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.db")

	source, err := NewServer()
	require.NoError(t, err)

	table := casemap.ForMapping(source.Casemap())

	channel := NewChannel("#keep", 1234)
	channel.AddMode(CModeTopicLock | CModeNoExternal | CModePermanent)
	channel.SetKey("hunter2")
	channel.AddMode(CModeKey)
	channel.SetLimit(25)
	channel.AddMode(CModeLimit)
	channel.SetTopic("welcome back", "alice!a@host.example", 5678)
	source.Channels.Set(casemap.Key("#keep", table), channel)

	bare := NewChannel("#bare", 4321)
	source.Channels.Set(casemap.Key("#bare", table), bare)

	require.NoError(t, source.SaveChannelDB(path))

	restored, err := NewServer()
	require.NoError(t, err)
	require.NoError(t, restored.LoadChannelDB(path))

	loaded, ok := restored.Channels.Get(casemap.Key("#keep", table))
	require.True(t, ok)
	assert.Equal(t, int64(1234), loaded.CreatedAt())
	assert.True(t, loaded.ModeIsSet(CModeTopicLock))
	assert.True(t, loaded.ModeIsSet(CModeNoExternal))
	assert.True(t, loaded.ModeIsSet(CModePermanent))
	assert.True(t, loaded.ModeIsSet(CModeKey))
	assert.Equal(t, "hunter2", loaded.Key())
	assert.True(t, loaded.ModeIsSet(CModeLimit))
	assert.Equal(t, 25, loaded.Limit())

	topic, setter, when := loaded.Topic()
	assert.Equal(t, "welcome back", topic)
	assert.Equal(t, "alice!a@host.example", setter)
	assert.Equal(t, int64(5678), when)

	plain, ok := restored.Channels.Get(casemap.Key("#bare", table))
	require.True(t, ok)
	assert.Equal(t, int64(4321), plain.CreatedAt())
}

func TestLoadChannelDBMissingFileIsNotAnError(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	assert.NoError(t, server.LoadChannelDB(filepath.Join(t.TempDir(), "nope.db")))
}

func TestLoadChannelDBRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.db")
	require.NoError(t, os.WriteFile(path, []byte("VERSION 1\nCHAN #x 1 +\n"), 0o600))

	server, err := NewServer()
	require.NoError(t, err)

	assert.Error(t, server.LoadChannelDB(path))
}
