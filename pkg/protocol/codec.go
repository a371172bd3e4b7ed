// codec.go implements serialization and deserialization of signaling messages.
//
// Envelope:
//
//	{
//	  "v":    "1.0",             protocol version, major must match
//	  "type": "initiator",       "initiator" | "responder" | "hangup"
//	  "body": { ... }            variant fields
//	}
//
// Binary fields use standard base64 with padding. Every decode failure is
// reported as ErrInvalidMessage (or ErrUnsupportedVersion, ErrMessageTooLarge)
// wrapped in a ProtocolError; the offending input is never echoed back.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/hybrid"
)

type envelope struct {
	Version string          `json:"v"`
	Type    MessageType     `json:"type"`
	Body    json.RawMessage `json:"body"`
}

type initiatorBody struct {
	ECDHPublicKey string `json:"ecdhPublicKey"`
	KEMPublicKey  string `json:"kemPublicKey"`
}

type responderBody struct {
	ECDHPublicKey string `json:"ecdhPublicKey"`
	KEMCiphertext string `json:"kemCiphertext"`
}

type hangupBody struct {
	Reason string `json:"reason,omitempty"`
}

// maxHangupReason bounds the informational hangup reason.
const maxHangupReason = 64

// Codec provides message serialization and deserialization.
type Codec struct {
	maxSize int
}

// NewCodec creates a new protocol codec. maxSize bounds encoded envelopes;
// zero selects constants.MaxMessageSize.
func NewCodec(maxSize int) *Codec {
	if maxSize <= 0 {
		maxSize = constants.MaxMessageSize
	}
	return &Codec{maxSize: maxSize}
}

var defaultCodec = NewCodec(0)

// Encode serializes m with the default codec.
func Encode(m Message) ([]byte, error) {
	return defaultCodec.Encode(m)
}

// Decode deserializes data with the default codec.
func Decode(data []byte) (Message, error) {
	return defaultCodec.Decode(data)
}

func encodeError(err error) error {
	return qerrors.NewProtocolError("encode", err)
}

func decodeError(err error) error {
	return qerrors.NewProtocolError("decode", err)
}

// Encode serializes a message into its JSON envelope.
func (c *Codec) Encode(m Message) ([]byte, error) {
	var body any
	switch msg := m.(type) {
	case *InitiatorMaterial:
		body = initiatorBody{
			ECDHPublicKey: base64.StdEncoding.EncodeToString(msg.ECDHPublicKey[:]),
			KEMPublicKey:  base64.StdEncoding.EncodeToString(msg.KEMPublicKey[:]),
		}
	case *ResponderMaterial:
		body = responderBody{
			ECDHPublicKey: base64.StdEncoding.EncodeToString(msg.ECDHPublicKey[:]),
			KEMCiphertext: base64.StdEncoding.EncodeToString(msg.KEMCiphertext[:]),
		}
	case *Hangup:
		if len(msg.Reason) > maxHangupReason {
			return nil, encodeError(qerrors.ErrInvalidMessage)
		}
		body = hangupBody{Reason: msg.Reason}
	default:
		return nil, encodeError(qerrors.ErrInvalidMessage)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, encodeError(qerrors.ErrInvalidMessage)
	}
	data, err := json.Marshal(envelope{
		Version: Current.String(),
		Type:    m.Type(),
		Body:    raw,
	})
	if err != nil {
		return nil, encodeError(qerrors.ErrInvalidMessage)
	}
	if len(data) > c.maxSize {
		return nil, encodeError(qerrors.ErrMessageTooLarge)
	}
	return data, nil
}

// Decode parses an envelope and returns the concrete message variant.
func (c *Codec) Decode(data []byte) (Message, error) {
	if len(data) > c.maxSize {
		return nil, decodeError(qerrors.ErrMessageTooLarge)
	}

	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}

	v, err := ParseVersion(env.Version)
	if err != nil {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}
	if !Current.IsCompatible(v) {
		return nil, decodeError(qerrors.ErrUnsupportedVersion)
	}
	if len(env.Body) == 0 {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}

	switch env.Type {
	case MessageTypeInitiator:
		return decodeInitiator(env.Body)
	case MessageTypeResponder:
		return decodeResponder(env.Body)
	case MessageTypeHangup:
		return decodeHangup(env.Body)
	default:
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}
}

func decodeInitiator(raw []byte) (Message, error) {
	var body initiatorBody
	if err := strictUnmarshal(raw, &body); err != nil {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}

	ecdh, err := decodeField(body.ECDHPublicKey, hybrid.ParseInitiatorECDHPublicKey)
	if err != nil {
		return nil, err
	}
	kem, err := decodeField(body.KEMPublicKey, hybrid.ParseInitiatorKEMPublicKey)
	if err != nil {
		return nil, err
	}
	return &InitiatorMaterial{ECDHPublicKey: ecdh, KEMPublicKey: kem}, nil
}

func decodeResponder(raw []byte) (Message, error) {
	var body responderBody
	if err := strictUnmarshal(raw, &body); err != nil {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}

	ecdh, err := decodeField(body.ECDHPublicKey, hybrid.ParseResponderECDHPublicKey)
	if err != nil {
		return nil, err
	}
	ct, err := decodeField(body.KEMCiphertext, hybrid.ParseKEMCiphertext)
	if err != nil {
		return nil, err
	}
	return &ResponderMaterial{ECDHPublicKey: ecdh, KEMCiphertext: ct}, nil
}

func decodeHangup(raw []byte) (Message, error) {
	var body hangupBody
	if err := strictUnmarshal(raw, &body); err != nil {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}
	if len(body.Reason) > maxHangupReason {
		return nil, decodeError(qerrors.ErrInvalidMessage)
	}
	return &Hangup{Reason: body.Reason}, nil
}

// decodeField base64-decodes s and converts it to a fixed-size key type.
func decodeField[T any](s string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return zero, decodeError(qerrors.ErrInvalidMessage)
	}
	v, err := parse(b)
	if err != nil {
		return zero, decodeError(qerrors.ErrInvalidMessage)
	}
	return v, nil
}

// strictUnmarshal rejects unknown fields and trailing data.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return qerrors.ErrInvalidMessage
	}
	return nil
}
