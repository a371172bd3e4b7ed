// Package protocol defines the signaling payloads exchanged by two call
// peers during key agreement.
//
// Protocol Version: 1.0
//
// Key agreement takes one round trip over an untrusted signaling channel:
//
//	Initiator                              Responder
//	    |                                      |
//	    | -------- InitiatorMaterial --------> |
//	    |                                      |
//	    | <------- ResponderMaterial --------- |
//	    |                                      |
//	    |   === both peers display the SAS === |
//	    |                                      |
//	    | <------------ Hangup --------------> |  (optional, on reject)
//
// Payloads are JSON envelopes with base64 binary fields:
//
//	{"v":"1.0","type":"initiator","body":{"ecdhPublicKey":"...","kemPublicKey":"..."}}
//	{"v":"1.0","type":"responder","body":{"ecdhPublicKey":"...","kemCiphertext":"..."}}
//	{"v":"1.0","type":"hangup","body":{"reason":"sas-rejected"}}
//
// The envelope carries no authentication of its own; the SAS comparison is
// what detects tampering.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sara-star-quant/quantum-call/internal/constants"
)

// Version represents the protocol version.
type Version struct {
	Major uint8
	Minor uint8
}

// Current is the current protocol version.
var Current = Version{Major: 1, Minor: 0}

// ParseVersion parses a "major.minor" version string.
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("protocol: malformed version %q", s)
	}
	ma, err := strconv.ParseUint(major, 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("protocol: malformed version %q", s)
	}
	mi, err := strconv.ParseUint(minor, 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("protocol: malformed version %q", s)
	}
	return Version{Major: uint8(ma), Minor: uint8(mi)}, nil
}

// IsCompatible returns true if this version is compatible with another version.
// Versions are compatible if they have the same major version.
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major
}

// String returns a string representation of the version.
func (v Version) String() string {
	return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor))
}

// ProtocolID is the protocol identifier used for domain separation.
const ProtocolID = constants.ProtocolLabel
