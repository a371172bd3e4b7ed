// Package sas generates the Short Authentication String that both peers read
// aloud to detect a man-in-the-middle.
//
// Construction:
//
//	d = SHA-256(master || initiatorECDH || responderECDH || initiatorKEM || ciphertext)
//
//	base32  = top 20 bits of d, 4 RFC 4648 symbols, most significant first
//	words   = evenWords[d[0]] + " " + oddWords[d[1]]
//	numeric = (d[0]<<8 | d[1]) mod 10000, zero-padded to 4 digits
//
// An attacker who substitutes a public key in transit changes d, so the codes
// differ with probability about 1 - 2^-20 (base32) or 1 - 2^-16 (words).
//
// The input order is fixed by role, not by who computes it. Transcript uses
// the role-tagged types from pkg/hybrid so the order cannot be swapped at a
// call site without a type error.
package sas

import (
	"crypto/subtle"
	"fmt"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/hybrid"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Transcript is the public material of one completed exchange.
type Transcript struct {
	InitiatorECDH hybrid.InitiatorECDHPublicKey
	ResponderECDH hybrid.ResponderECDHPublicKey
	InitiatorKEM  hybrid.InitiatorKEMPublicKey
	Ciphertext    hybrid.KEMCiphertext
}

// NewTranscript assembles a transcript from the two messages of an exchange.
func NewTranscript(initiator hybrid.InitiatorPublicKeys, responder hybrid.EncapsulationMaterial) Transcript {
	return Transcript{
		InitiatorECDH: initiator.ECDH,
		ResponderECDH: responder.ECDH,
		InitiatorKEM:  initiator.KEM,
		Ciphertext:    responder.Ciphertext,
	}
}

// SAS is the human-comparable code in its three renderings. It is not secret.
type SAS struct {
	Base32  string `json:"base32"`
	Words   string `json:"words"`
	Numeric string `json:"numeric"`
}

// Generate computes the SAS for a master secret and transcript.
func Generate(s *crypto.Suite, master crypto.MasterSecret, t Transcript) (SAS, error) {
	digest, err := s.Hash(
		master[:],
		t.InitiatorECDH[:],
		t.ResponderECDH[:],
		t.InitiatorKEM[:],
		t.Ciphertext[:],
	)
	if err != nil {
		return SAS{}, err
	}
	return FromDigest(digest), nil
}

// FromDigest renders a SAS from a SHA-256 digest.
func FromDigest(d [constants.HashSize]byte) SAS {
	return SAS{
		Base32:  encodeBase32(d),
		Words:   evenWords[d[0]] + " " + oddWords[d[1]],
		Numeric: fmt.Sprintf("%0*d", constants.SASNumericDigits, (uint32(d[0])<<8|uint32(d[1]))%10000),
	}
}

func encodeBase32(d [constants.HashSize]byte) string {
	v := uint32(d[0])<<12 | uint32(d[1])<<4 | uint32(d[2])>>4

	out := make([]byte, constants.SASBase32Length)
	for i := range out {
		shift := uint(constants.SASBase32Bits - 5*(i+1))
		out[i] = base32Alphabet[(v>>shift)&0x1f]
	}
	return string(out)
}

// Equal reports whether all three renderings match, in constant time.
func (a SAS) Equal(b SAS) bool {
	eq := subtle.ConstantTimeCompare([]byte(a.Base32), []byte(b.Base32))
	eq &= subtle.ConstantTimeCompare([]byte(a.Words), []byte(b.Words))
	eq &= subtle.ConstantTimeCompare([]byte(a.Numeric), []byte(b.Numeric))
	return eq == 1
}

// IsZero reports whether the SAS has not been computed.
func (a SAS) IsZero() bool {
	return a == SAS{}
}

func (a SAS) String() string {
	return a.Base32 + " · " + a.Words + " · " + a.Numeric
}
