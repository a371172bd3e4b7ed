// aead.go implements Authenticated Encryption with Associated Data (AEAD)
// for media frames.
//
// Two algorithms are available:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs (default)
//   - ChaCha20-Poly1305: fast without AES hardware, excluded from FIPS builds
//
// Both use a 256-bit key, a 96-bit nonce and a 128-bit tag, so the frame
// wire format does not depend on the selected suite.
//
// CRITICAL: Nonce reuse completely breaks security. The nonce is supplied by
// the caller; pkg/frame builds it from a sender prefix and a strictly
// increasing counter so no (key, nonce) pair repeats.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// AEAD is a keyed authenticated cipher with caller-provided nonces.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite
}

// NewAEAD creates the suite's configured AEAD keyed with key.
func (s *Suite) NewAEAD(key []byte) (*AEAD, error) {
	if err := s.check("NewAEAD"); err != nil {
		return nil, err
	}
	return newAEAD(s.cipherSuite, key)
}

func newAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrInvalidKeySize)
	}
	if !isCipherSuiteAllowed(suite) {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrUnsupportedCipherSuite)
	}

	var (
		aeadCipher cipher.AEAD
		err        error
	)

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, berr := aes.NewCipher(key)
		if berr != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", berr)
		}
		aeadCipher, err = cipher.NewGCM(block)

	case constants.CipherSuiteChaCha20Poly1305:
		aeadCipher, err = chacha20poly1305.New(key)

	default:
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrUnsupportedCipherSuite)
	}
	if err != nil {
		return nil, qerrors.NewCryptoError("NewAEAD", err)
	}

	return &AEAD{cipher: aeadCipher, suite: suite}, nil
}

// SealWithNonce encrypts plaintext and appends ciphertext || tag to dst.
//
// WARNING: The caller is responsible for ensuring nonce uniqueness.
func (a *AEAD) SealWithNonce(dst, nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.ErrInvalidNonce
	}
	return a.cipher.Seal(dst, nonce, plaintext, additionalData), nil
}

// OpenWithNonce verifies and decrypts ciphertext || tag, appending the
// plaintext to dst.
func (a *AEAD) OpenWithNonce(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.ErrInvalidNonce
	}
	if len(ciphertext) < constants.AESTagSize {
		return nil, qerrors.ErrCiphertextTooShort
	}

	plaintext, err := a.cipher.Open(dst, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the authentication tag size in bytes.
func (a *AEAD) Overhead() int {
	return a.cipher.Overhead()
}

// NonceSize returns the required nonce size in bytes.
func (a *AEAD) NonceSize() int {
	return a.cipher.NonceSize()
}
