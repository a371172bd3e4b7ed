// Package constants defines security parameters and protocol constants for
// quantum-call.
//
// Parameter sets are fixed. Nothing here is negotiated between peers: both
// sides of a call must be built with the same values or their key agreement,
// SAS and frame transform will disagree.
package constants

// Product identification
const (
	// ProductName prefixes every domain separation label.
	ProductName = "QuantumCall"

	// ProtocolLabel is the versioned product label used in key derivation.
	ProtocolLabel = ProductName + "-v1"
)

// ML-KEM-1024 Parameters (NIST FIPS 203)
const (
	// MLKEMPublicKeySize is the size of ML-KEM-1024 encapsulation key in bytes
	MLKEMPublicKeySize = 1568

	// MLKEMPrivateKeySize is the size of ML-KEM-1024 decapsulation key in bytes
	MLKEMPrivateKeySize = 3168

	// MLKEMCiphertextSize is the size of ML-KEM-1024 ciphertext in bytes
	MLKEMCiphertextSize = 1568

	// MLKEMSharedSecretSize is the size of the shared secret from ML-KEM in bytes
	MLKEMSharedSecretSize = 32

	// MLKEMSeedSize is the size of the deterministic key generation seed
	MLKEMSeedSize = 64
)

// X25519 Parameters (RFC 7748)
const (
	// X25519PublicKeySize is the size of X25519 public key in bytes
	X25519PublicKeySize = 32

	// X25519PrivateKeySize is the size of X25519 private key in bytes
	X25519PrivateKeySize = 32

	// X25519SharedSecretSize is the size of the X25519 shared secret in bytes
	X25519SharedSecretSize = 32
)

// Symmetric Encryption Parameters (AES-256-GCM)
const (
	// AESKeySize is the size of AES-256 keys in bytes
	AESKeySize = 32

	// AESNonceSize is the size of AES-GCM nonce in bytes (96 bits)
	AESNonceSize = 12

	// AESTagSize is the size of AES-GCM authentication tag in bytes
	AESTagSize = 16
)

// Key Derivation Parameters (HKDF-SHA256)
const (
	// HashSize is the SHA-256 digest size in bytes
	HashSize = 32

	// MasterSecretSize is the size of the derived master secret
	MasterSecretSize = 32

	// FrameKeySize is the size of the derived frame encryption key
	FrameKeySize = AESKeySize

	// LabelMasterSecret is the HKDF-Expand info for the master secret.
	LabelMasterSecret = ProtocolLabel + "-Master-Secret"

	// LabelFrameKey is the HKDF-Expand info for the frame encryption key.
	LabelFrameKey = ProtocolLabel + "-Frame-Encryption-Key"

	// SaltFrameKey is the HKDF-Extract salt for the frame encryption key.
	// The master secret derivation uses an all-zero salt instead.
	SaltFrameKey = ProtocolLabel + "-Frame-Salt"
)

// SAS Parameters
const (
	// SASBase32Length is the number of base32 characters shown to the user
	SASBase32Length = 4

	// SASBase32Bits is the number of digest bits covered by the base32 form
	SASBase32Bits = SASBase32Length * 5

	// SASNumericDigits is the number of decimal digits in the numeric form
	SASNumericDigits = 4

	// SASWordListSize is the number of entries in each word list
	SASWordListSize = 256
)

// Frame Transform Parameters
const (
	// FrameNoncePrefixSize is the sender-identity part of a frame nonce
	FrameNoncePrefixSize = 4

	// FrameCounterSize is the counter part of a frame nonce
	FrameCounterSize = AESNonceSize - FrameNoncePrefixSize

	// FrameOverhead is what encryption adds to every frame
	FrameOverhead = AESNonceSize + AESTagSize

	// NoncePrefixInitiator marks nonces produced by the initiator's encoder.
	NoncePrefixInitiator uint32 = 0x00000001

	// NoncePrefixResponder marks nonces produced by the responder's encoder.
	NoncePrefixResponder uint32 = 0x00000002

	// MaxFrameCounter is the last usable counter value for one key and sender.
	MaxFrameCounter uint64 = 1<<64 - 1

	// MaxFrameSize bounds a single media frame handed to the transform
	MaxFrameSize = 1 << 20
)

// Message Size Limits
const (
	// MaxMessageSize is the maximum size of a single signaling message
	MaxMessageSize = 65536
)

// CipherSuite identifiers
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for frame encryption
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for frame encryption
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}

// IsFIPSApproved returns true if the cipher suite is FIPS 140-3 approved.
// Currently only AES-256-GCM is FIPS approved; ChaCha20-Poly1305 is not.
func (cs CipherSuite) IsFIPSApproved() bool {
	return cs == CipherSuiteAES256GCM
}
