// post.go implements the Power-On Self-Tests (POST).
//
// POST is production code, not test code. Every Suite runs it from Init
// before any key is generated, which catches corrupted binaries or a broken
// primitive before a single call is placed. Results are computed once per
// process and cached.
//
// Known Answer Tests (KAT):
//   - SHA-256: FIPS 180-2 "abc"
//   - HKDF-SHA256: RFC 5869 test case 1
//   - AES-256-GCM: fixed key, zero nonce
//   - ChaCha20-Poly1305: same inputs, skipped in FIPS builds
//   - X25519: RFC 7748 section 6.1
//   - ML-KEM-1024: deterministic key pair, encapsulate/decapsulate agreement
//
// In FIPS mode, a POST failure panics. Otherwise Init returns ErrSelfTestFailed.
package crypto

import (
	"bytes"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"golang.org/x/crypto/hkdf"

	"github.com/sara-star-quant/quantum-call/internal/constants"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// KAT vectors
var (
	postKATSHAInput    = []byte("abc")
	postKATSHAExpected = mustHex("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")

	postKATHKDFIKM      = mustHex("0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
	postKATHKDFSalt     = mustHex("000102030405060708090a0b0c")
	postKATHKDFInfo     = mustHex("f0f1f2f3f4f5f6f7f8f9")
	postKATHKDFPRK      = mustHex("077709362c2e32df0ddc3f0dc47bba6390b6c73bb50f9c3122ec844ad7c2b3e5")
	postKATHKDFExpected = mustHex("3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865")

	postKATAEADKey       = mustHex("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	postKATAEADNonce     = mustHex("000000000000000000000000")
	postKATAEADPlaintext = []byte("POST-KAT-TEST")
	postKATAESExpected   = mustHex("5a48b3005aeb1b0a8cd6767b8cded311eb6185c16343d286e3541e9d98")
	postKATChaExpected   = mustHex("40a9ff609a53490c94c20e5b7a69a6139796413115a0ed39f2f015e011")

	postKATX25519AlicePriv = mustHex("77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a")
	postKATX25519BobPub    = mustHex("de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f")
	postKATX25519Shared    = mustHex("4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742")

	postKATMLKEMSeed = mustHex(
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" +
			"fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
	postKATMLKEMEncapSeed = mustHex("a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5")
)

// POSTResult contains the results of the Power-On Self-Tests.
type POSTResult struct {
	Passed       bool
	SHA256Passed bool
	HKDFPassed   bool
	AEADPassed   bool
	X25519Passed bool
	MLKEMPassed  bool
	Errors       []string
}

var (
	postResult     *POSTResult
	postResultOnce sync.Once
)

// RunPOST executes the Power-On Self-Tests and returns the results.
// Safe to call multiple times; the tests only run once per process.
func RunPOST() *POSTResult {
	postResultOnce.Do(func() {
		r := &POSTResult{Passed: true}

		record := func(name string, err error) bool {
			if err != nil {
				r.Passed = false
				r.Errors = append(r.Errors, fmt.Sprintf("%s KAT failed: %v", name, err))
				return false
			}
			return true
		}

		r.SHA256Passed = record("SHA-256", runSHA256KAT())
		r.HKDFPassed = record("HKDF", runHKDFKAT())
		r.AEADPassed = record("AEAD", runAEADKAT())
		r.X25519Passed = record("X25519", runX25519KAT())
		r.MLKEMPassed = record("ML-KEM", runMLKEMKAT())

		if FIPSMode() && !r.Passed {
			panic(fmt.Sprintf("FIPS POST failed: %v", r.Errors))
		}

		postResult = r
	})

	return postResult
}

func runSHA256KAT() error {
	sum := sha256.Sum256(postKATSHAInput)
	if !bytes.Equal(sum[:], postKATSHAExpected) {
		return fmt.Errorf("digest mismatch: got %x, want %x", sum, postKATSHAExpected)
	}
	return nil
}

func runHKDFKAT() error {
	prk := hkdf.Extract(sha256.New, postKATHKDFIKM, postKATHKDFSalt)
	if !bytes.Equal(prk, postKATHKDFPRK) {
		return fmt.Errorf("PRK mismatch: got %x, want %x", prk, postKATHKDFPRK)
	}

	okm := make([]byte, len(postKATHKDFExpected))
	if _, err := hkdf.Expand(sha256.New, prk, postKATHKDFInfo).Read(okm); err != nil {
		return fmt.Errorf("expand failed: %w", err)
	}
	if !bytes.Equal(okm, postKATHKDFExpected) {
		return fmt.Errorf("OKM mismatch: got %x, want %x", okm, postKATHKDFExpected)
	}
	return nil
}

func runAEADKAT() error {
	expected := map[constants.CipherSuite][]byte{
		constants.CipherSuiteAES256GCM:        postKATAESExpected,
		constants.CipherSuiteChaCha20Poly1305: postKATChaExpected,
	}

	for _, cs := range SupportedCipherSuites() {
		a, err := newAEAD(cs, postKATAEADKey)
		if err != nil {
			return fmt.Errorf("%s: %w", cs, err)
		}

		ct, err := a.SealWithNonce(nil, postKATAEADNonce, postKATAEADPlaintext, nil)
		if err != nil {
			return fmt.Errorf("%s seal: %w", cs, err)
		}
		if !bytes.Equal(ct, expected[cs]) {
			return fmt.Errorf("%s encrypt mismatch: got %x, want %x", cs, ct, expected[cs])
		}

		pt, err := a.OpenWithNonce(nil, postKATAEADNonce, ct, nil)
		if err != nil {
			return fmt.Errorf("%s open: %w", cs, err)
		}
		if !bytes.Equal(pt, postKATAEADPlaintext) {
			return fmt.Errorf("%s decrypt mismatch", cs)
		}
	}
	return nil
}

func runX25519KAT() error {
	priv, err := ecdh.X25519().NewPrivateKey(postKATX25519AlicePriv)
	if err != nil {
		return err
	}
	pub, err := ecdh.X25519().NewPublicKey(postKATX25519BobPub)
	if err != nil {
		return err
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return err
	}
	if !bytes.Equal(shared, postKATX25519Shared) {
		return fmt.Errorf("shared secret mismatch: got %x, want %x", shared, postKATX25519Shared)
	}
	return nil
}

// runMLKEMKAT checks that a deterministic key pair decapsulates what it
// encapsulated, with correct sizes throughout.
func runMLKEMKAT() error {
	kp, err := newMLKEMKeyPairFromSeed(postKATMLKEMSeed)
	if err != nil {
		return err
	}

	if n := len(kp.PublicKeyBytes()); n != constants.MLKEMPublicKeySize {
		return fmt.Errorf("public key size mismatch: got %d, want %d", n, constants.MLKEMPublicKeySize)
	}
	if n := len(kp.SecretKeyBytes()); n != constants.MLKEMPrivateKeySize {
		return fmt.Errorf("secret key size mismatch: got %d, want %d", n, constants.MLKEMPrivateKeySize)
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss1 := make([]byte, mlkem1024.SharedKeySize)
	kp.EncapsulationKey.key.EncapsulateTo(ct, ss1, postKATMLKEMEncapSeed)

	ss2 := make([]byte, mlkem1024.SharedKeySize)
	kp.DecapsulationKey.key.DecapsulateTo(ss2, ct)

	if !bytes.Equal(ss1, ss2) {
		return fmt.Errorf("shared secret mismatch after decapsulation")
	}
	if isAllZero(ss1) {
		return fmt.Errorf("shared secret is all zeros")
	}
	return nil
}
