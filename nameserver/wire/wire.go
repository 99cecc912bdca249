// Package wire defines the name server's request/reply byte encoding: an
// opaque-to-the-kernel protocol carried over ordinary Send/Receive/Reply
// calls. Encoding uses explicit binary.LittleEndian field access rather
// than an unsafe struct overlay, since the name server only ever deals
// with a byte-string arena, not a fixed C layout.
package wire

import "encoding/binary"

// Tag identifies a name server request.
type Tag byte

const (
	TagRegisterAs Tag = 0
	TagWhoIs      Tag = 1
)

// EncodeRegisterAs builds a RegisterAs request: tag byte followed by the
// raw name bytes, no terminator.
func EncodeRegisterAs(name string) []byte {
	return encodeRequest(TagRegisterAs, name)
}

// EncodeWhoIs builds a WhoIs request.
func EncodeWhoIs(name string) []byte {
	return encodeRequest(TagWhoIs, name)
}

func encodeRequest(tag Tag, name string) []byte {
	buf := make([]byte, 1+len(name))
	buf[0] = byte(tag)
	copy(buf[1:], name)
	return buf
}

// DecodeRequest splits a request buffer into its tag and name. ok is
// false for an empty buffer (no tag byte at all), which the caller should
// treat the same as an unrecognized tag.
func DecodeRequest(req []byte) (tag Tag, name string, ok bool) {
	if len(req) == 0 {
		return 0, "", false
	}
	return Tag(req[0]), string(req[1:]), true
}

// EncodeWhoIsReply encodes a found tid as the little-endian machine-word
// reply; a not-found WhoIs reply is simply an empty slice (nil works).
func EncodeWhoIsReply(tid int) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(tid))
	return buf
}

// DecodeWhoIsReply reverses EncodeWhoIsReply. ok is false for an empty
// reply (no registration under that name) or a short one.
func DecodeWhoIsReply(reply []byte) (tid int, ok bool) {
	if len(reply) < 4 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(reply)), true
}

// Truncated reports whether n (bytes actually transferred, as every SRR
// call returns) is smaller than the caller's buffer — truncation is never
// an ABI error, only a length comparison the caller must make itself. The
// name server client helpers in nameserver.go do not call it.
func Truncated(buf []byte, n int) bool {
	return n < len(buf)
}
