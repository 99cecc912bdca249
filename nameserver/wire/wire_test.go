package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRegisterAs(t *testing.T) {
	req := EncodeRegisterAs("server1")
	tag, name, ok := DecodeRequest(req)
	require.True(t, ok)
	assert.Equal(t, TagRegisterAs, tag)
	assert.Equal(t, "server1", name)
}

func TestEncodeDecodeWhoIs(t *testing.T) {
	req := EncodeWhoIs("server1")
	tag, name, ok := DecodeRequest(req)
	require.True(t, ok)
	assert.Equal(t, TagWhoIs, tag)
	assert.Equal(t, "server1", name)
}

func TestDecodeRequestEmptyBufferIsNotOk(t *testing.T) {
	_, _, ok := DecodeRequest(nil)
	assert.False(t, ok)
}

func TestEncodeDecodeWhoIsReply(t *testing.T) {
	reply := EncodeWhoIsReply(7)
	tid, ok := DecodeWhoIsReply(reply)
	require.True(t, ok)
	assert.Equal(t, 7, tid)
}

func TestDecodeWhoIsReplyShortBufferIsNotOk(t *testing.T) {
	_, ok := DecodeWhoIsReply([]byte{1, 2})
	assert.False(t, ok)
}

func TestTruncated(t *testing.T) {
	buf := make([]byte, 10)
	assert.True(t, Truncated(buf, 4))
	assert.False(t, Truncated(buf, 10))
}
