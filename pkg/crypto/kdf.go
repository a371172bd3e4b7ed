// kdf.go implements hashing and key derivation with SHA-256 and HKDF
// (RFC 5869).
//
// Key schedule of a call:
//
//	prk    = HKDF-Extract(salt = 0^32, ikm = ecdhSecret || kemSecret)
//	master = HKDF-Expand(prk, "QuantumCall-v1-Master-Secret", 32)
//
//	prk'     = HKDF-Extract(salt = "QuantumCall-v1-Frame-Salt", ikm = master)
//	frameKey = HKDF-Expand(prk', "QuantumCall-v1-Frame-Encryption-Key", 32)
//
// The master secret feeds the SAS; only the frame key touches media. The two
// derivations use different salts and labels so neither output reveals the other.
package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// MasterSecret is the 32-byte secret both peers derive from the hybrid agreement.
type MasterSecret [constants.MasterSecretSize]byte

// FrameKey is the 32-byte AEAD key used by the frame transform.
type FrameKey [constants.FrameKeySize]byte

// Zeroize erases the master secret.
func (m *MasterSecret) Zeroize() { clear(m[:]) }

// Zeroize erases the frame key.
func (k *FrameKey) Zeroize() { clear(k[:]) }

// IsZero reports whether the key is unset.
func (k *FrameKey) IsZero() bool { return isAllZero(k[:]) }

// Hash returns SHA-256 over the concatenation of parts.
func (s *Suite) Hash(parts ...[]byte) ([constants.HashSize]byte, error) {
	var out [constants.HashSize]byte
	if err := s.check("Hash"); err != nil {
		return out, err
	}

	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	h.Sum(out[:0])
	return out, nil
}

// HKDFExtract runs HKDF-Extract with SHA-256. An empty salt is replaced by
// HashSize zero bytes, as RFC 5869 specifies.
func (s *Suite) HKDFExtract(salt, ikm []byte) ([]byte, error) {
	if err := s.check("HKDFExtract"); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		salt = make([]byte, constants.HashSize)
	}
	return hkdf.Extract(sha256.New, ikm, salt), nil
}

// HKDFExpand runs HKDF-Expand with SHA-256 to exactly n bytes.
func (s *Suite) HKDFExpand(prk, info []byte, n int) ([]byte, error) {
	if err := s.check("HKDFExpand"); err != nil {
		return nil, err
	}
	if n <= 0 || n > 255*constants.HashSize {
		return nil, qerrors.NewCryptoError("HKDFExpand", qerrors.ErrInvalidKeySize)
	}

	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, qerrors.NewCryptoError("HKDFExpand", err)
	}
	return out, nil
}

// DeriveMasterSecret folds the two raw shared secrets into the call's master
// secret. The caller remains responsible for zeroizing its inputs.
func (s *Suite) DeriveMasterSecret(ecdhSecret, kemSecret []byte) (MasterSecret, error) {
	var master MasterSecret
	if err := s.check("DeriveMasterSecret"); err != nil {
		return master, err
	}
	if !checkLen(ecdhSecret, constants.X25519SharedSecretSize) || !checkLen(kemSecret, constants.MLKEMSharedSecretSize) {
		return master, qerrors.NewCryptoError("DeriveMasterSecret", qerrors.ErrInvalidKeyMaterial)
	}

	ikm := make([]byte, 0, len(ecdhSecret)+len(kemSecret))
	ikm = append(ikm, ecdhSecret...)
	ikm = append(ikm, kemSecret...)
	defer Zeroize(ikm)

	prk, err := s.HKDFExtract(make([]byte, constants.HashSize), ikm)
	if err != nil {
		return master, err
	}
	defer Zeroize(prk)

	okm, err := s.HKDFExpand(prk, []byte(constants.LabelMasterSecret), constants.MasterSecretSize)
	if err != nil {
		return master, err
	}
	copy(master[:], okm)
	Zeroize(okm)

	return master, nil
}

// DeriveFrameKey derives the frame encryption key from the master secret.
func (s *Suite) DeriveFrameKey(master MasterSecret) (FrameKey, error) {
	var key FrameKey
	if err := s.check("DeriveFrameKey"); err != nil {
		return key, err
	}

	prk, err := s.HKDFExtract([]byte(constants.SaltFrameKey), master[:])
	if err != nil {
		return key, err
	}
	defer Zeroize(prk)

	okm, err := s.HKDFExpand(prk, []byte(constants.LabelFrameKey), constants.FrameKeySize)
	if err != nil {
		return key, err
	}
	copy(key[:], okm)
	Zeroize(okm)

	return key, nil
}
