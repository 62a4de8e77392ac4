package dircd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreircd/dircd/casemap"
)

func TestXLineExpirySweep(t *testing.T) {
	registry := NewXLineRegistry()

	line := NewXLine(XLineK, "*@banned.example", "go away", "oper", 60*time.Second)
	require.NoError(t, registry.Add(line))

	// Present for the whole [set, set+duration) window.
	assert.NotNil(t, registry.MatchHostmask(XLineK, "user@banned.example", casemap.RFC1459))
	registry.Sweep(line.SetAt + 59)
	assert.NotNil(t, registry.MatchHostmask(XLineK, "user@banned.example", casemap.RFC1459))

	// Gone after the first sweep past the deadline.
	registry.Sweep(line.SetAt + 60)
	assert.Nil(t, registry.MatchHostmask(XLineK, "user@banned.example", casemap.RFC1459))
}

func TestXLinePermanentSurvivesSweep(t *testing.T) {
	registry := NewXLineRegistry()
	require.NoError(t, registry.Add(NewXLine(XLineQ, "root*", "reserved", "oper", 0)))

	registry.Sweep(time.Now().Unix() + 1<<30)
	assert.NotNil(t, registry.MatchGlob(XLineQ, "rootkit", casemap.RFC1459))
}

func TestXLineDuplicateAddFails(t *testing.T) {
	registry := NewXLineRegistry()
	require.NoError(t, registry.Add(NewXLine(XLineG, "*!*@spam.example", "spam", "oper", 0)))

	err := registry.Add(NewXLine(XLineG, "*!*@spam.example", "still spam", "other", 0))
	assert.ErrorIs(t, err, ErrXLineExists)
}

func TestXLinePersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlines.db")

	source := NewXLineRegistry()
	require.NoError(t, source.Add(NewXLine(XLineZ, "203.0.113.0/24", "bad subnet", "oper", 30*time.Minute)))
	require.NoError(t, source.Add(NewXLine(XLineQ, "services*", "reserved nick", "oper", 0)))
	require.NoError(t, source.SavePersistent(path))

	restored := NewXLineRegistry()
	require.NoError(t, restored.LoadPersistent(path))

	zlines := restored.List(XLineZ)
	require.Len(t, zlines, 1)
	assert.Equal(t, "203.0.113.0/24", zlines[0].Mask)
	assert.Equal(t, "bad subnet", zlines[0].Reason)
	assert.Equal(t, zlines[0].SetAt+1800, zlines[0].Expires)

	qlines := restored.List(XLineQ)
	require.Len(t, qlines, 1)
	assert.Zero(t, qlines[0].Expires)
}
