// x25519.go implements X25519 Elliptic Curve Diffie-Hellman operations.
//
// X25519 (RFC 7748) is an elliptic curve Diffie-Hellman function using Curve25519.
// It provides approximately 128 bits of security against classical computers.
//
// Note: X25519 is NOT quantum-resistant. In the hybrid agreement it provides
// defense-in-depth and keeps the call secret if ML-KEM is broken.
package crypto

import (
	"crypto/ecdh"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// X25519KeyPair represents an ephemeral X25519 key pair.
type X25519KeyPair struct {
	// PublicKey is the public component for sharing
	PublicKey *ecdh.PublicKey

	// PrivateKey is the secret component
	PrivateKey *ecdh.PrivateKey
}

// GenerateX25519KeyPair generates a new X25519 key pair from the suite's
// random source.
func (s *Suite) GenerateX25519KeyPair() (*X25519KeyPair, error) {
	if err := s.check("X25519KeyPair.Generate"); err != nil {
		return nil, err
	}

	privateKey, err := ecdh.X25519().GenerateKey(s.random)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519KeyPair.Generate", qerrors.ErrKeyGenerationFailed)
	}

	kp := &X25519KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}

	if s.pairwiseTest {
		if err := s.pairwiseX25519(kp); err != nil {
			return nil, err
		}
	}

	return kp, nil
}

// NewX25519KeyPairFromBytes creates an X25519 key pair from a 32-byte private key.
// This is deterministic: the same private key bytes always produce the same key pair.
func (s *Suite) NewX25519KeyPairFromBytes(privateKeyBytes []byte) (*X25519KeyPair, error) {
	if err := s.check("X25519KeyPair.FromBytes"); err != nil {
		return nil, err
	}
	if !checkLen(privateKeyBytes, constants.X25519PrivateKeySize) {
		return nil, qerrors.NewCryptoError("X25519KeyPair.FromBytes", qerrors.ErrInvalidKeyMaterial)
	}

	privateKey, err := ecdh.X25519().NewPrivateKey(privateKeyBytes)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519KeyPair.FromBytes", qerrors.ErrInvalidKeyMaterial)
	}

	return &X25519KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// X25519 performs X25519 Diffie-Hellman shared secret computation.
//
// The result must never be used directly as a key; it is folded into the
// master secret through HKDF. A low-order peer key that yields the all-zero
// output is rejected.
func (s *Suite) X25519(privateKey *ecdh.PrivateKey, peerPublic *ecdh.PublicKey) ([]byte, error) {
	if err := s.check("X25519"); err != nil {
		return nil, err
	}
	if privateKey == nil || peerPublic == nil {
		return nil, qerrors.NewCryptoError("X25519", qerrors.ErrInvalidKeyMaterial)
	}

	sharedSecret, err := privateKey.ECDH(peerPublic)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519", qerrors.ErrInvalidKeyMaterial)
	}
	if isAllZero(sharedSecret) {
		return nil, qerrors.NewCryptoError("X25519", qerrors.ErrInvalidKeyMaterial)
	}

	return sharedSecret, nil
}

// ParseX25519PublicKey parses an X25519 public key from its encoded form.
func (s *Suite) ParseX25519PublicKey(data []byte) (*ecdh.PublicKey, error) {
	if err := s.check("ParseX25519PublicKey"); err != nil {
		return nil, err
	}
	if !checkLen(data, constants.X25519PublicKeySize) {
		return nil, qerrors.NewCryptoError("ParseX25519PublicKey", qerrors.ErrInvalidKeyMaterial)
	}

	publicKey, err := ecdh.X25519().NewPublicKey(data)
	if err != nil {
		return nil, qerrors.NewCryptoError("ParseX25519PublicKey", qerrors.ErrInvalidKeyMaterial)
	}

	return publicKey, nil
}

// PublicKeyBytes returns the encoded bytes of the public key.
func (kp *X25519KeyPair) PublicKeyBytes() []byte {
	return kp.PublicKey.Bytes()
}

// PrivateKeyBytes returns the encoded bytes of the private key.
// Warning: Handle with care - this exposes the secret key material.
func (kp *X25519KeyPair) PrivateKeyBytes() []byte {
	return kp.PrivateKey.Bytes()
}

// Zeroize drops the key material.
func (kp *X25519KeyPair) Zeroize() {
	// ecdh.PrivateKey doesn't expose its backing array; dropping the
	// reference is the best available.
	kp.PrivateKey = nil
	kp.PublicKey = nil
}
