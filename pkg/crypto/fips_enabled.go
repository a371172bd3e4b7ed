//go:build fips
// +build fips

// Package crypto implements cryptographic primitives for quantum-call.
//
// This file is compiled when the "fips" build tag is specified.
// In FIPS mode, only FIPS 140-3 approved algorithms are available.
package crypto

import "github.com/sara-star-quant/quantum-call/internal/constants"

// FIPSMode reports whether the binary was built in FIPS mode.
// When true, only FIPS 140-3 approved algorithms (AES-256-GCM) are available.
func FIPSMode() bool { return true }

// SupportedCipherSuites returns the frame AEADs a Suite may be configured with.
// In FIPS mode, only AES-256-GCM is available.
func SupportedCipherSuites() []constants.CipherSuite {
	return []constants.CipherSuite{constants.CipherSuiteAES256GCM}
}
