package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf16"
)

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// IteratedSHA256 applies SHA256 iteratively n times to produce a derived hash.
// Used for IP hashing in network enrichment.
func IteratedSHA256(input string, iterations int) string {
	data := []byte(input)
	for range iterations {
		h := sha256.Sum256(data)
		data = h[:]
	}
	return hex.EncodeToString(data)
}

// HashIP hashes an IP address with a salt using 5000 iterations of SHA256.
func HashIP(ip, salt string) string {
	return IteratedSHA256(salt+ip, 5000)
}

// Rolling computes the 32-bit rolling hash used for device fingerprints:
//
//	h = (h << 5) - h + c
//
// over the UTF-16 code units of s, wrapping at every step. This is NOT a
// cryptographic hash and collisions are expected.
func Rolling(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}

// RollingHex returns |Rolling(s)| as lowercase hex, zero-padded to at least
// 8 digits. The absolute value of math.MinInt32 renders as "80000000".
func RollingHex(s string) string {
	v := int64(Rolling(s))
	if v < 0 {
		v = -v
	}
	return fmt.Sprintf("%08x", v)
}
