package frame

import (
	"encoding/binary"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// NonceSequence produces the per-frame AEAD nonces for one sending
// direction.
//
// Layout (12 bytes, big-endian):
//
//	+----------------+--------------------------------+
//	| prefix (4)     | counter (8)                    |
//	+----------------+--------------------------------+
//
// The prefix identifies the sender (constants.NoncePrefixInitiator or
// constants.NoncePrefixResponder), so both peers can encrypt under the same
// frame key without ever producing the same nonce. The counter starts at 0
// and is incremented only after a nonce has been written out.
//
// Not safe for concurrent use; a sequence belongs to exactly one encoder.
type NonceSequence struct {
	prefix  uint32
	counter uint64
	limit   uint64
}

// NewNonceSequence creates a sequence for prefix. Counter values 0 through
// limit-1 are usable; limit 0 selects constants.MaxFrameCounter.
func NewNonceSequence(prefix uint32, limit uint64) *NonceSequence {
	if limit == 0 {
		limit = constants.MaxFrameCounter
	}
	return &NonceSequence{prefix: prefix, limit: limit}
}

// Next writes the next nonce into dst, which must hold AESNonceSize bytes,
// and advances the counter. Once the limit is reached it returns
// ErrNonceExhausted and leaves dst untouched.
func (n *NonceSequence) Next(dst []byte) error {
	if len(dst) < constants.AESNonceSize {
		return qerrors.ErrInvalidNonce
	}
	if n.counter >= n.limit {
		return qerrors.ErrNonceExhausted
	}

	binary.BigEndian.PutUint32(dst[:constants.FrameNoncePrefixSize], n.prefix)
	binary.BigEndian.PutUint64(dst[constants.FrameNoncePrefixSize:constants.AESNonceSize], n.counter)
	n.counter++
	return nil
}

// Counter returns the counter value the next nonce will carry.
func (n *NonceSequence) Counter() uint64 {
	return n.counter
}

// Prefix returns the sender prefix.
func (n *NonceSequence) Prefix() uint32 {
	return n.prefix
}

// Reset rewinds the counter to zero. Only valid together with a key change.
func (n *NonceSequence) Reset() {
	n.counter = 0
}

// counterOf extracts the counter from a wire nonce for diagnostics.
func counterOf(nonce []byte) uint64 {
	if len(nonce) < constants.AESNonceSize {
		return 0
	}
	return binary.BigEndian.Uint64(nonce[constants.FrameNoncePrefixSize:constants.AESNonceSize])
}
