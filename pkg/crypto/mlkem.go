// mlkem.go implements the ML-KEM-1024 key encapsulation mechanism wrapper.
//
// ML-KEM (Module-Lattice-based Key-Encapsulation Mechanism) is standardized in
// NIST FIPS 203. Its security rests on the Module Learning With Errors problem.
//
// Security Level: NIST Category 5 (equivalent to AES-256 against quantum adversaries)
package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// MLKEMPublicKey wraps an ML-KEM-1024 public key
type MLKEMPublicKey struct {
	key *mlkem1024.PublicKey
}

// MLKEMPrivateKey wraps an ML-KEM-1024 private key
type MLKEMPrivateKey struct {
	key *mlkem1024.PrivateKey
}

// MLKEMKeyPair represents an ML-KEM-1024 key pair for post-quantum key encapsulation.
type MLKEMKeyPair struct {
	// EncapsulationKey is the public key used by the peer to encapsulate
	EncapsulationKey *MLKEMPublicKey

	// DecapsulationKey is the private key used to decapsulate
	DecapsulationKey *MLKEMPrivateKey
}

// GenerateMLKEMKeyPair generates a new ML-KEM-1024 key pair.
func (s *Suite) GenerateMLKEMKeyPair() (*MLKEMKeyPair, error) {
	if err := s.check("MLKEMKeyPair.Generate"); err != nil {
		return nil, err
	}

	pk, sk, err := mlkem1024.GenerateKeyPair(s.random)
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEMKeyPair.Generate", qerrors.ErrKeyGenerationFailed)
	}

	kp := &MLKEMKeyPair{
		EncapsulationKey: &MLKEMPublicKey{key: pk},
		DecapsulationKey: &MLKEMPrivateKey{key: sk},
	}

	if s.pairwiseTest {
		if err := s.pairwiseMLKEM(kp); err != nil {
			return nil, err
		}
	}

	return kp, nil
}

// newMLKEMKeyPairFromSeed generates an ML-KEM-1024 key pair from a 64-byte seed.
// The same seed always produces the same key pair. Used by the self-tests.
func newMLKEMKeyPairFromSeed(seed []byte) (*MLKEMKeyPair, error) {
	if len(seed) != constants.MLKEMSeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}

	pk, sk, err := mlkem1024.GenerateKeyPair(&deterministicReader{data: seed})
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEMKeyPair.FromSeed", err)
	}

	return &MLKEMKeyPair{
		EncapsulationKey: &MLKEMPublicKey{key: pk},
		DecapsulationKey: &MLKEMPrivateKey{key: sk},
	}, nil
}

// deterministicReader provides deterministic "randomness" from a seed
type deterministicReader struct {
	data   []byte
	offset int
}

func (r *deterministicReader) Read(p []byte) (n int, err error) {
	n = copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

// MLKEMEncapsulate performs key encapsulation against the peer's public key.
//
// Returns the 1568-byte ciphertext to send and the 32-byte local shared secret.
func (s *Suite) MLKEMEncapsulate(ek *MLKEMPublicKey) (ciphertext, sharedSecret []byte, err error) {
	if err := s.check("MLKEMEncapsulate"); err != nil {
		return nil, nil, err
	}
	if ek == nil || ek.key == nil {
		return nil, nil, qerrors.NewCryptoError("MLKEMEncapsulate", qerrors.ErrInvalidKeyMaterial)
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)

	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if err := s.Random(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError("MLKEMEncapsulate", err)
	}
	defer Zeroize(seed)

	ek.key.EncapsulateTo(ct, ss, seed)

	return ct, ss, nil
}

// MLKEMDecapsulate performs key decapsulation using ML-KEM-1024.
//
// Decapsulation uses implicit rejection: a tampered ciphertext of the right
// length yields a pseudorandom secret rather than an error, so tampering
// surfaces later as a SAS mismatch instead of a distinguishable failure.
func (s *Suite) MLKEMDecapsulate(dk *MLKEMPrivateKey, ciphertext []byte) ([]byte, error) {
	if err := s.check("MLKEMDecapsulate"); err != nil {
		return nil, err
	}
	if dk == nil || dk.key == nil {
		return nil, qerrors.NewCryptoError("MLKEMDecapsulate", qerrors.ErrInvalidKeyMaterial)
	}
	if !checkLen(ciphertext, constants.MLKEMCiphertextSize) {
		return nil, qerrors.NewCryptoError("MLKEMDecapsulate", qerrors.ErrInvalidKeyMaterial)
	}

	ss := make([]byte, mlkem1024.SharedKeySize)
	dk.key.DecapsulateTo(ss, ciphertext)

	return ss, nil
}

// ParseMLKEMPublicKey parses an ML-KEM-1024 public key from its encoded form.
func (s *Suite) ParseMLKEMPublicKey(data []byte) (*MLKEMPublicKey, error) {
	if err := s.check("ParseMLKEMPublicKey"); err != nil {
		return nil, err
	}
	if !checkLen(data, constants.MLKEMPublicKeySize) {
		return nil, qerrors.NewCryptoError("ParseMLKEMPublicKey", qerrors.ErrInvalidKeyMaterial)
	}

	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(data); err != nil {
		return nil, qerrors.NewCryptoError("ParseMLKEMPublicKey", qerrors.ErrInvalidKeyMaterial)
	}

	return &MLKEMPublicKey{key: pk}, nil
}

// Bytes returns the encoded bytes of the public key.
func (pk *MLKEMPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	buf := make([]byte, mlkem1024.PublicKeySize)
	pk.key.Pack(buf)
	return buf
}

// Bytes returns the encoded private key.
// Warning: Handle with care - this exposes the secret key material.
func (sk *MLKEMPrivateKey) Bytes() []byte {
	if sk == nil || sk.key == nil {
		return nil
	}
	buf := make([]byte, mlkem1024.PrivateKeySize)
	sk.key.Pack(buf)
	return buf
}

// PublicKeyBytes returns the encoded bytes of the encapsulation key.
func (kp *MLKEMKeyPair) PublicKeyBytes() []byte {
	return kp.EncapsulationKey.Bytes()
}

// SecretKeyBytes returns the encoded bytes of the decapsulation key.
func (kp *MLKEMKeyPair) SecretKeyBytes() []byte {
	return kp.DecapsulationKey.Bytes()
}

// Zeroize drops the key material.
func (kp *MLKEMKeyPair) Zeroize() {
	// CIRCL doesn't expose direct zeroization, so we clear our references.
	kp.DecapsulationKey = nil
	kp.EncapsulationKey = nil
}
