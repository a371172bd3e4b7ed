package crypto_test

import (
	"testing"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
)

// TestFIPSModeCipherSuites checks that the build mode and the allowed frame
// ciphers agree. Run with -tags fips to exercise the restricted set.
func TestFIPSModeCipherSuites(t *testing.T) {
	suites := crypto.SupportedCipherSuites()
	if len(suites) == 0 {
		t.Fatal("No supported cipher suites")
	}

	for _, cs := range suites {
		if crypto.FIPSMode() && !cs.IsFIPSApproved() {
			t.Errorf("%s offered in FIPS mode", cs)
		}
	}

	if !crypto.FIPSMode() && len(suites) != 2 {
		t.Errorf("Standard mode should offer both suites, got %v", suites)
	}

	_, err := crypto.Init(crypto.WithCipherSuite(constants.CipherSuiteChaCha20Poly1305))
	if crypto.FIPSMode() && err == nil {
		t.Error("ChaCha20-Poly1305 must be rejected in FIPS mode")
	}
	if !crypto.FIPSMode() && err != nil {
		t.Errorf("ChaCha20-Poly1305 should be allowed in standard mode: %v", err)
	}
}

// TestFIPSModeConsistency verifies that FIPSMode returns the same value on multiple calls.
func TestFIPSModeConsistency(t *testing.T) {
	first := crypto.FIPSMode()
	for i := 0; i < 100; i++ {
		if crypto.FIPSMode() != first {
			t.Errorf("FIPSMode() returned inconsistent values")
		}
	}
}
