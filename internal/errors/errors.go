// Package errors defines custom error types for quantum-call.
// These errors provide detailed information for debugging while maintaining
// security by not leaking key material or distinguishable failure causes
// in error messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for initialization
var (
	// ErrNotInitialized indicates a primitive was used before the crypto suite
	// finished its initialization step
	ErrNotInitialized = errors.New("crypto: suite not initialized")

	// ErrSelfTestFailed indicates the power-on self-tests did not pass
	ErrSelfTestFailed = errors.New("crypto: self-test failed")
)

// Sentinel errors for cryptographic operations
var (
	// ErrInvalidKeyMaterial indicates a key, public key or ciphertext has the
	// wrong length or is otherwise unusable. It deliberately carries no detail.
	ErrInvalidKeyMaterial = errors.New("crypto: invalid key material")

	// ErrInvalidKeySize indicates that a symmetric key has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrKeyGenerationFailed indicates that key generation failed
	ErrKeyGenerationFailed = errors.New("crypto: key generation failed")

	// ErrPairwiseTestFailed indicates a freshly generated key pair is inconsistent
	ErrPairwiseTestFailed = errors.New("crypto: pairwise consistency test failed")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD authentication/decryption failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrInvalidNonce indicates the nonce size is incorrect
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")

	// ErrNonceExhausted indicates the frame counter reached its limit
	ErrNonceExhausted = errors.New("aead: nonce space exhausted")

	// ErrUnsupportedCipherSuite indicates an unsupported cipher suite
	ErrUnsupportedCipherSuite = errors.New("aead: unsupported cipher suite")
)

// Sentinel errors for the frame transform
var (
	// ErrFrameTooShort indicates a frame is shorter than its codec header
	ErrFrameTooShort = errors.New("frame: too short for header")

	// ErrFrameTooLarge indicates a frame exceeds MaxFrameSize
	ErrFrameTooLarge = errors.New("frame: too large")

	// ErrEncoderHalted indicates an encoder stopped after nonce exhaustion
	ErrEncoderHalted = errors.New("frame: encoder halted")

	// ErrWorkerStopped indicates a frame worker is no longer running
	ErrWorkerStopped = errors.New("frame: worker stopped")
)

// Sentinel errors for protocol and session operations
var (
	// ErrInvalidMessage indicates a signaling message is malformed
	ErrInvalidMessage = errors.New("protocol: invalid message")

	// ErrUnexpectedMessage indicates a well-formed message arrived in the wrong state
	ErrUnexpectedMessage = errors.New("protocol: unexpected message")

	// ErrUnsupportedVersion indicates an unsupported protocol version
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrHandshakeFailed is the generic error surfaced for any key agreement failure
	ErrHandshakeFailed = errors.New("session: connection failed")

	// ErrInvalidState indicates an operation is not allowed in the current state
	ErrInvalidState = errors.New("session: invalid state")

	// ErrSASRejected indicates a user rejected the short authentication string
	ErrSASRejected = errors.New("session: SAS rejected")

	// ErrRemoteHangup indicates the peer ended the call
	ErrRemoteHangup = errors.New("session: remote hangup")

	// ErrSessionClosed indicates the session has been torn down
	ErrSessionClosed = errors.New("session: closed")
)

// Sentinel errors for signaling transport
var (
	// ErrChannelClosed indicates the signaling channel has been closed
	ErrChannelClosed = errors.New("signaling: channel closed")

	// ErrPeerExists indicates the peer id is already connected to the room
	ErrPeerExists = errors.New("signaling: peer already connected")

	// ErrRoomFull indicates a relay room already has two peers
	ErrRoomFull = errors.New("signaling: room full")
)

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol error with additional context
type ProtocolError struct {
	Phase string // Protocol phase (e.g., "decode", "handshake")
	Err   error  // Underlying error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// FrameError records why a single frame was dropped. It never carries frame
// contents.
type FrameError struct {
	Direction string // "encode" or "decode"
	Counter   uint64 // frame counter at the time of failure, if known
	Err       error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s #%d: %v", e.Direction, e.Counter, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// NewFrameError creates a new FrameError
func NewFrameError(direction string, counter uint64, err error) *FrameError {
	return &FrameError{Direction: direction, Counter: counter, Err: err}
}

// IsFatal reports whether err must end the call attempt rather than drop
// a single frame.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrInvalidKeyMaterial) ||
		errors.Is(err, ErrHandshakeFailed) ||
		errors.Is(err, ErrSASRejected) ||
		errors.Is(err, ErrNonceExhausted) ||
		errors.Is(err, ErrEncoderHalted)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
