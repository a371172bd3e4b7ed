//go:build !fips
// +build !fips

// Package crypto implements cryptographic primitives for quantum-call.
//
// This file is compiled when the "fips" build tag is NOT specified.
// In standard mode, all supported algorithms are available.
package crypto

import "github.com/sara-star-quant/quantum-call/internal/constants"

// FIPSMode reports whether the binary was built in FIPS mode.
// When false, all supported algorithms (AES-256-GCM and ChaCha20-Poly1305) are available.
func FIPSMode() bool { return false }

// SupportedCipherSuites returns the frame AEADs a Suite may be configured with.
func SupportedCipherSuites() []constants.CipherSuite {
	return []constants.CipherSuite{
		constants.CipherSuiteAES256GCM,
		constants.CipherSuiteChaCha20Poly1305,
	}
}
