// Package hybrid implements the hybrid post-quantum key agreement between the
// two peers of a call.
//
// The agreement combines:
//   - X25519 (classical elliptic curve Diffie-Hellman)
//   - ML-KEM-1024 (post-quantum lattice-based KEM)
//
// # Security Model
//
// The call secret stays confidential if EITHER X25519 OR ML-KEM-1024 is
// secure: both raw secrets are folded together by HKDF, so an attacker has to
// recover both to learn the master secret.
//
// # Protocol
//
// Roles are asymmetric. Only the initiator owns a KEM key pair; the responder
// encapsulates against it, which avoids a second KEM round trip.
//
//	Initiator:
//	  (sk_x, pk_x) ← X25519.KeyGen()
//	  (sk_m, pk_m) ← ML-KEM-1024.KeyGen()
//	  send pk_x, pk_m
//
//	Responder:
//	  (sk_r, pk_r) ← X25519.KeyGen()            ephemeral, erased after use
//	  K_x ← X25519.DH(sk_r, pk_x)
//	  (ct, K_m) ← ML-KEM-1024.Encaps(pk_m)
//	  send pk_r, ct
//
//	Initiator:
//	  K_x ← X25519.DH(sk_x, pk_r)
//	  K_m ← ML-KEM-1024.Decaps(sk_m, ct)
//
// Both sides end with KeyAgreementResult{K_x, K_m}, which must be folded into
// the master secret (crypto.Suite.DeriveMasterSecret) and zeroized at once.
//
// Key agreement is one-shot. Any failure is fatal to the call attempt and is
// reported as ErrInvalidKeyMaterial without size or cause detail.
package hybrid

import (
	"crypto/subtle"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
)

// --- Role-tagged public material ---
//
// Each public value gets its own nominal type so that mixing up initiator and
// responder material is a compile error rather than a silent SAS mismatch.

// InitiatorECDHPublicKey is the initiator's X25519 public key.
type InitiatorECDHPublicKey [constants.X25519PublicKeySize]byte

// ResponderECDHPublicKey is the responder's ephemeral X25519 public key.
type ResponderECDHPublicKey [constants.X25519PublicKeySize]byte

// InitiatorKEMPublicKey is the initiator's ML-KEM-1024 encapsulation key.
type InitiatorKEMPublicKey [constants.MLKEMPublicKeySize]byte

// KEMCiphertext is the responder's ML-KEM-1024 ciphertext.
type KEMCiphertext [constants.MLKEMCiphertextSize]byte

// InitiatorPublicKeys is what the initiator sends to the responder.
type InitiatorPublicKeys struct {
	ECDH InitiatorECDHPublicKey
	KEM  InitiatorKEMPublicKey
}

// EncapsulationMaterial is what the responder sends back. It is public, but
// its authenticity is exactly what the SAS comparison verifies.
type EncapsulationMaterial struct {
	ECDH       ResponderECDHPublicKey
	Ciphertext KEMCiphertext
}

// KeyAgreementResult holds the two raw shared secrets. It must never be
// transmitted and must be zeroized right after the master secret is derived.
type KeyAgreementResult struct {
	ECDHSecret [constants.X25519SharedSecretSize]byte
	KEMSecret  [constants.MLKEMSharedSecretSize]byte
}

// HybridKeyPair is the initiator's ephemeral key material for one call.
type HybridKeyPair struct {
	ecdh   *crypto.X25519KeyPair
	kem    *crypto.MLKEMKeyPair
	public InitiatorPublicKeys
}

// GenerateHybridKeyPair creates the initiator's X25519 and ML-KEM-1024 key
// pairs. The responder never calls this.
func GenerateHybridKeyPair(s *crypto.Suite) (*HybridKeyPair, error) {
	ecdhKP, err := s.GenerateX25519KeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("Hybrid.GenerateKeyPair", err)
	}

	kemKP, err := s.GenerateMLKEMKeyPair()
	if err != nil {
		ecdhKP.Zeroize()
		return nil, qerrors.NewCryptoError("Hybrid.GenerateKeyPair", err)
	}

	kp := &HybridKeyPair{ecdh: ecdhKP, kem: kemKP}
	copy(kp.public.ECDH[:], ecdhKP.PublicKeyBytes())
	copy(kp.public.KEM[:], kemKP.PublicKeyBytes())

	return kp, nil
}

// PublicKeys returns the material to send to the responder.
func (kp *HybridKeyPair) PublicKeys() InitiatorPublicKeys {
	return kp.public
}

// Zeroize drops the private halves of both key pairs.
func (kp *HybridKeyPair) Zeroize() {
	if kp == nil {
		return
	}
	if kp.ecdh != nil {
		kp.ecdh.Zeroize()
		kp.ecdh = nil
	}
	if kp.kem != nil {
		kp.kem.Zeroize()
		kp.kem = nil
	}
}

// InitiatorAgree completes the agreement on the initiator side using its own
// key pair and the responder's material.
func InitiatorAgree(s *crypto.Suite, kp *HybridKeyPair, m EncapsulationMaterial) (*KeyAgreementResult, error) {
	const op = "Hybrid.InitiatorAgree"

	if kp == nil || kp.ecdh == nil || kp.kem == nil {
		return nil, qerrors.NewCryptoError(op, qerrors.ErrInvalidKeyMaterial)
	}

	peer, err := s.ParseX25519PublicKey(m.ECDH[:])
	if err != nil {
		return nil, qerrors.NewCryptoError(op, err)
	}

	ecdhSecret, err := s.X25519(kp.ecdh.PrivateKey, peer)
	if err != nil {
		return nil, qerrors.NewCryptoError(op, err)
	}
	defer crypto.Zeroize(ecdhSecret)

	kemSecret, err := s.MLKEMDecapsulate(kp.kem.DecapsulationKey, m.Ciphertext[:])
	if err != nil {
		return nil, qerrors.NewCryptoError(op, err)
	}
	defer crypto.Zeroize(kemSecret)

	r := &KeyAgreementResult{}
	copy(r.ECDHSecret[:], ecdhSecret)
	copy(r.KEMSecret[:], kemSecret)
	return r, nil
}

// ResponderAgree runs the responder side against the initiator's public keys.
// A fresh ephemeral X25519 key pair is generated and its private half is
// dropped before returning.
func ResponderAgree(s *crypto.Suite, peer InitiatorPublicKeys) (*EncapsulationMaterial, *KeyAgreementResult, error) {
	const op = "Hybrid.ResponderAgree"

	peerECDH, err := s.ParseX25519PublicKey(peer.ECDH[:])
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(op, err)
	}
	peerKEM, err := s.ParseMLKEMPublicKey(peer.KEM[:])
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(op, err)
	}

	ephemeral, err := s.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(op, err)
	}
	defer ephemeral.Zeroize()

	ecdhSecret, err := s.X25519(ephemeral.PrivateKey, peerECDH)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(op, err)
	}
	defer crypto.Zeroize(ecdhSecret)

	ct, kemSecret, err := s.MLKEMEncapsulate(peerKEM)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(op, err)
	}
	defer crypto.Zeroize(kemSecret)

	m := &EncapsulationMaterial{}
	copy(m.ECDH[:], ephemeral.PublicKeyBytes())
	copy(m.Ciphertext[:], ct)

	r := &KeyAgreementResult{}
	copy(r.ECDHSecret[:], ecdhSecret)
	copy(r.KEMSecret[:], kemSecret)

	return m, r, nil
}

// DeriveMasterSecret folds the result into the call's master secret and
// zeroizes the raw secrets, whether or not derivation succeeds.
func (r *KeyAgreementResult) DeriveMasterSecret(s *crypto.Suite) (crypto.MasterSecret, error) {
	defer r.Zeroize()
	return s.DeriveMasterSecret(r.ECDHSecret[:], r.KEMSecret[:])
}

// Zeroize erases both raw secrets.
func (r *KeyAgreementResult) Zeroize() {
	if r == nil {
		return
	}
	clear(r.ECDHSecret[:])
	clear(r.KEMSecret[:])
}

// --- Parsing from wire bytes ---

func parseFixed(op string, dst, src []byte) error {
	if subtle.ConstantTimeEq(int32(len(src)), int32(len(dst))) != 1 {
		return qerrors.NewCryptoError(op, qerrors.ErrInvalidKeyMaterial)
	}
	copy(dst, src)
	return nil
}

// ParseInitiatorECDHPublicKey validates and converts wire bytes.
func ParseInitiatorECDHPublicKey(b []byte) (InitiatorECDHPublicKey, error) {
	var k InitiatorECDHPublicKey
	err := parseFixed("Hybrid.ParseInitiatorECDH", k[:], b)
	return k, err
}

// ParseResponderECDHPublicKey validates and converts wire bytes.
func ParseResponderECDHPublicKey(b []byte) (ResponderECDHPublicKey, error) {
	var k ResponderECDHPublicKey
	err := parseFixed("Hybrid.ParseResponderECDH", k[:], b)
	return k, err
}

// ParseInitiatorKEMPublicKey validates and converts wire bytes.
func ParseInitiatorKEMPublicKey(b []byte) (InitiatorKEMPublicKey, error) {
	var k InitiatorKEMPublicKey
	err := parseFixed("Hybrid.ParseInitiatorKEM", k[:], b)
	return k, err
}

// ParseKEMCiphertext validates and converts wire bytes.
func ParseKEMCiphertext(b []byte) (KEMCiphertext, error) {
	var c KEMCiphertext
	err := parseFixed("Hybrid.ParseKEMCiphertext", c[:], b)
	return c, err
}
