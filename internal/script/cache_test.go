package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha1HexKnownVector(t *testing.T) {
	// sha1("") is the well-known empty-string digest.
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Sha1Hex(""))
}

func TestLoadThenGetRoundTrip(t *testing.T) {
	c := NewCache()
	digest := c.Load("return 1")

	body, ok := c.Get(digest)
	require.True(t, ok)
	assert.Equal(t, "return 1", body)
	assert.Equal(t, Sha1Hex("return 1"), digest)
}

func TestGetMissing(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("0000000000000000000000000000000000000000")
	assert.False(t, ok)
}

func TestExistsPreservesOrder(t *testing.T) {
	c := NewCache()
	d1 := c.Load("return 1")
	d2 := c.Load("return 2")

	flags := c.Exists([]string{d1, "deadbeef", d2})
	require.Len(t, flags, 3)
	assert.True(t, flags[0])
	assert.False(t, flags[1])
	assert.True(t, flags[2])
}

func TestFlushClearsCache(t *testing.T) {
	c := NewCache()
	digest := c.Load("return 1")
	c.Flush()

	_, ok := c.Get(digest)
	assert.False(t, ok)
}

func TestErrNoScriptToken(t *testing.T) {
	err := ErrNoScript()
	assert.Contains(t, err.Error(), "NOSCRIPT")
}

func TestErrNotBusyToken(t *testing.T) {
	err := ErrNotBusy()
	assert.Contains(t, err.Error(), "NOTBUSY")
}
