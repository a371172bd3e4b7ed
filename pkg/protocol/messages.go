package protocol

import (
	"github.com/sara-star-quant/quantum-call/pkg/hybrid"
)

// MessageType identifies the variant carried by an envelope.
type MessageType string

// Signaling message types.
const (
	// MessageTypeInitiator carries the initiator's public keys.
	MessageTypeInitiator MessageType = "initiator"
	// MessageTypeResponder carries the responder's public key and KEM ciphertext.
	MessageTypeResponder MessageType = "responder"
	// MessageTypeHangup ends the call attempt.
	MessageTypeHangup MessageType = "hangup"
)

// String returns the wire name of the message type.
func (mt MessageType) String() string {
	return string(mt)
}

// Message is one of InitiatorMaterial, ResponderMaterial or Hangup.
type Message interface {
	Type() MessageType
	isMessage()
}

// InitiatorMaterial is sent by the initiator to open key agreement.
type InitiatorMaterial struct {
	ECDHPublicKey hybrid.InitiatorECDHPublicKey
	KEMPublicKey  hybrid.InitiatorKEMPublicKey
}

// NewInitiatorMaterial wraps the initiator's public keys.
func NewInitiatorMaterial(pk hybrid.InitiatorPublicKeys) *InitiatorMaterial {
	return &InitiatorMaterial{ECDHPublicKey: pk.ECDH, KEMPublicKey: pk.KEM}
}

// Type implements Message.
func (*InitiatorMaterial) Type() MessageType { return MessageTypeInitiator }
func (*InitiatorMaterial) isMessage()        {}

// PublicKeys returns the material as hybrid public keys.
func (m *InitiatorMaterial) PublicKeys() hybrid.InitiatorPublicKeys {
	return hybrid.InitiatorPublicKeys{ECDH: m.ECDHPublicKey, KEM: m.KEMPublicKey}
}

// ResponderMaterial is the responder's reply.
type ResponderMaterial struct {
	ECDHPublicKey hybrid.ResponderECDHPublicKey
	KEMCiphertext hybrid.KEMCiphertext
}

// NewResponderMaterial wraps the responder's encapsulation output.
func NewResponderMaterial(m hybrid.EncapsulationMaterial) *ResponderMaterial {
	return &ResponderMaterial{ECDHPublicKey: m.ECDH, KEMCiphertext: m.Ciphertext}
}

// Type implements Message.
func (*ResponderMaterial) Type() MessageType { return MessageTypeResponder }
func (*ResponderMaterial) isMessage()        {}

// Encapsulation returns the material as hybrid encapsulation output.
func (m *ResponderMaterial) Encapsulation() hybrid.EncapsulationMaterial {
	return hybrid.EncapsulationMaterial{ECDH: m.ECDHPublicKey, Ciphertext: m.KEMCiphertext}
}

// Hangup reasons.
const (
	HangupSASRejected = "sas-rejected"
	HangupClosed      = "closed"
	HangupFailed      = "failed"
)

// Hangup tells the peer to abandon the call. Reason is informational and
// never carries internal error detail.
type Hangup struct {
	Reason string
}

// Type implements Message.
func (*Hangup) Type() MessageType { return MessageTypeHangup }
func (*Hangup) isMessage()        {}
