// Package wire implements the fixed-width on-wire encodings shared by
// every frame the relay parses: the 8-byte<->12-char address codec and
// the userId generator.
package wire

import "encoding/base64"

// AddrLen is the width of a raw little-endian userId on the wire.
const AddrLen = 8

// AddrB64Len is the width of a base64-encoded address field in a text
// frame (AddrLen bytes, standard alphabet, '=' padded).
const AddrB64Len = 12

// EncodeAddr transcodes the 8 raw bytes in src to their 12-character
// base64 representation. src must be exactly AddrLen bytes.
func EncodeAddr(src []byte) string {
	return base64.StdEncoding.EncodeToString(src[:AddrLen])
}

// DecodeAddr decodes the AddrB64Len-byte prefix of src into dst, which
// must be at least AddrLen bytes long. Malformed base64 yields whatever
// partial bytes the standard decoder recovers and never writes past
// dst[:AddrLen] — callers that pass invalid text-frame prefixes get
// truncated, not overrun, output.
func DecodeAddr(dst []byte, src []byte) {
	if len(src) < AddrB64Len {
		return
	}
	// 12 unpadded characters decode to 9 bytes, so the scratch buffer
	// has room for one more than AddrLen; copy below keeps only AddrLen.
	var buf [AddrLen + 1]byte
	n, err := base64.StdEncoding.Decode(buf[:], src[:AddrB64Len])
	if err != nil && n == 0 {
		return
	}
	copy(dst[:AddrLen], buf[:n])
}
