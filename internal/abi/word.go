package abi

// EncodeWord and DecodeWord convert between a signed 32-bit ABI value (a
// syscall argument or return that may be negative, e.g. priority or an
// error code) and the uintptr register word it travels in. Round-tripping
// through the 32-bit pattern keeps a negative value from becoming a huge
// positive uintptr on a 64-bit host, matching what the real 32-bit ARM
// register would hold.
func EncodeWord(v int32) uintptr {
	return uintptr(uint32(v))
}

// DecodeWord reverses EncodeWord.
func DecodeWord(w uintptr) int32 {
	return int32(uint32(w))
}
