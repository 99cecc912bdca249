package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeWordRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, -2, 2147483647, -2147483648}
	for _, v := range cases {
		got := DecodeWord(EncodeWord(v))
		assert.Equal(t, v, got)
	}
}

func TestEncodeWordNeverLooksPositiveHuge(t *testing.T) {
	// The whole point of EncodeWord/DecodeWord is that a negative value
	// round-trips through a 32-bit pattern instead of sign-extending into
	// a 64-bit uintptr that would read as a huge positive number.
	w := EncodeWord(-1)
	assert.Equal(t, uintptr(0xFFFFFFFF), w)
}
