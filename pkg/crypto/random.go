package crypto

import (
	"crypto/subtle"
)

// ConstantTimeCompare compares two byte slices in constant time.
// Returns true if the slices are equal, false otherwise.
// This prevents timing attacks when comparing secrets.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// checkLen reports whether len(b) == want without branching on the value.
func checkLen(b []byte, want int) bool {
	return subtle.ConstantTimeEq(int32(len(b)), int32(want)) == 1
}

// isAllZero reports whether b is all zero bytes, in constant time.
func isAllZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return subtle.ConstantTimeByteEq(acc, 0) == 1
}

// Zeroize securely erases sensitive data from memory by overwriting with zeros.
// This should be called on sensitive keys and secrets when they are no longer needed.
//
// Note: The Go runtime may have already copied the data. For maximum
// security, consider using memory protections at the OS level.
func Zeroize(b []byte) {
	clear(b)
}

// ZeroizeMultiple securely erases multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
