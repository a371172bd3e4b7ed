package frame

import (
	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
)

// Option configures an Encoder or Decoder.
type Option func(*options)

type options struct {
	counterLimit uint64
	pool         *BufferPool
}

// WithCounterLimit caps the number of frames an encoder may protect under
// one key. Zero means constants.MaxFrameCounter.
func WithCounterLimit(limit uint64) Option {
	return func(o *options) {
		o.counterLimit = limit
	}
}

// WithBufferPool sets the pool output frames are taken from.
func WithBufferPool(p *BufferPool) Option {
	return func(o *options) {
		if p != nil {
			o.pool = p
		}
	}
}

// withPool sets the pool as given. A nil pool makes the transform allocate
// every output frame at its exact size.
func withPool(p *BufferPool) Option {
	return func(o *options) {
		o.pool = p
	}
}

func buildOptions(opts []Option) options {
	o := options{pool: defaultPool}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// keyState holds the frame key and enable flag of one Encoder or Decoder.
// A key is installed at most once. Once retired by Disable no key can be
// installed again; a new call builds new transforms.
type keyState struct {
	suite   *crypto.Suite
	aead    *crypto.AEAD
	enabled bool
	retired bool
}

func (k *keyState) setKey(key crypto.FrameKey, enabled bool) error {
	if k.aead != nil || k.retired {
		return qerrors.ErrInvalidState
	}
	if key.IsZero() {
		return qerrors.ErrInvalidKeyMaterial
	}
	aead, err := k.suite.NewAEAD(key[:])
	if err != nil {
		return err
	}
	k.aead = aead
	k.enabled = enabled
	return nil
}

func (k *keyState) setEnabled(enabled bool) error {
	if k.aead == nil {
		return qerrors.ErrInvalidState
	}
	k.enabled = enabled
	return nil
}

func (k *keyState) active() bool {
	return k.aead != nil && k.enabled
}

func (k *keyState) retire() {
	k.aead = nil
	k.enabled = false
	k.retired = true
}

// Encoder encrypts outbound frames.
//
// Output frame layout:
//
//	+-----------------+------------+----------------------+---------+
//	| header (clear)  | nonce (12) | ciphertext           | tag (16)|
//	+-----------------+------------+----------------------+---------+
//
// The header length is determined by the HeaderRule. While no key is
// installed, or encryption is disabled, frames pass through unchanged.
//
// An Encoder is owned by a single goroutine.
type Encoder struct {
	keys   keyState
	rule   HeaderRule
	nonces *NonceSequence
	pool   *BufferPool
	halted bool
}

// NewEncoder creates an encoder that writes nonces with the given sender
// prefix (constants.NoncePrefixInitiator or constants.NoncePrefixResponder).
func NewEncoder(s *crypto.Suite, rule HeaderRule, prefix uint32, opts ...Option) *Encoder {
	o := buildOptions(opts)
	if rule == nil {
		rule = None
	}
	return &Encoder{
		keys:   keyState{suite: s},
		rule:   rule,
		nonces: NewNonceSequence(prefix, o.counterLimit),
		pool:   o.pool,
	}
}

// SetKey installs the frame key. enabled controls whether frames are
// encrypted immediately. An Encoder accepts one key for its lifetime: a
// second SetKey, or any SetKey after Disable, fails with ErrInvalidState.
func (e *Encoder) SetKey(key crypto.FrameKey, enabled bool) error {
	return e.keys.setKey(key, enabled)
}

// SetEnabled switches encryption on or off under the installed key. The
// frame counter carries on from where it stopped, so no nonce is reused.
// It fails with ErrInvalidState when no key is installed.
func (e *Encoder) SetEnabled(enabled bool) error {
	return e.keys.setEnabled(enabled)
}

// Disable clears the key, resets the frame counter and lifts a halt.
// Subsequent frames pass through. Disable is final: the Encoder never
// accepts another key.
func (e *Encoder) Disable() {
	e.keys.retire()
	e.nonces.Reset()
	e.halted = false
}

// Active reports whether frames are currently being encrypted.
func (e *Encoder) Active() bool {
	return e.keys.active() && !e.halted
}

// Halted reports whether the frame counter has been exhausted.
func (e *Encoder) Halted() bool {
	return e.halted
}

// Counter returns the counter the next encrypted frame will carry.
func (e *Encoder) Counter() uint64 {
	return e.nonces.Counter()
}

// Transform encrypts frame and returns the protected frame, or frame
// itself when encryption is inactive. On error the frame must be dropped.
func (e *Encoder) Transform(frame []byte) ([]byte, error) {
	out, _, err := e.transform(frame)
	return out, err
}

// Release returns a frame produced by Transform to the buffer pool.
func (e *Encoder) Release(frame []byte) {
	e.pool.Put(frame)
}

// passes reports whether frame would be forwarded unchanged.
func (e *Encoder) passes([]byte) bool {
	return !e.halted && !e.keys.active()
}

func (e *Encoder) transform(frame []byte) (out []byte, encrypted bool, err error) {
	if e.halted {
		return nil, false, qerrors.NewFrameError("encode", e.nonces.Counter(), qerrors.ErrEncoderHalted)
	}
	if !e.keys.active() {
		return frame, false, nil
	}
	if len(frame) > constants.MaxFrameSize {
		return nil, false, qerrors.NewFrameError("encode", e.nonces.Counter(), qerrors.ErrFrameTooLarge)
	}

	hl, err := e.rule.HeaderLen(frame)
	if err != nil {
		return nil, false, qerrors.NewFrameError("encode", e.nonces.Counter(), err)
	}

	counter := e.nonces.Counter()
	size := len(frame) + constants.FrameOverhead
	buf := e.pool.Get(size)

	copy(buf, frame[:hl])
	nonce := buf[hl : hl+constants.AESNonceSize]
	if err := e.nonces.Next(nonce); err != nil {
		e.pool.Put(buf)
		if qerrors.Is(err, qerrors.ErrNonceExhausted) {
			e.halted = true
		}
		return nil, false, qerrors.NewFrameError("encode", counter, err)
	}

	out, err = e.keys.aead.SealWithNonce(buf[:hl+constants.AESNonceSize], nonce, frame[hl:], nil)
	if err != nil {
		e.pool.Put(buf)
		return nil, false, qerrors.NewFrameError("encode", counter, err)
	}
	return out, true, nil
}

// Decoder decrypts inbound frames produced by a peer Encoder using the
// same frame key and HeaderRule.
//
// Frames too short to carry a nonce and tag after the header pass through
// unchanged, as do all frames while decryption is inactive. This keeps
// media flowing while the two peers switch encryption on at slightly
// different moments.
type Decoder struct {
	keys keyState
	rule HeaderRule
	pool *BufferPool
}

// NewDecoder creates a decoder.
func NewDecoder(s *crypto.Suite, rule HeaderRule, opts ...Option) *Decoder {
	o := buildOptions(opts)
	if rule == nil {
		rule = None
	}
	return &Decoder{
		keys: keyState{suite: s},
		rule: rule,
		pool: o.pool,
	}
}

// SetKey installs the frame key. See Encoder.SetKey.
func (d *Decoder) SetKey(key crypto.FrameKey, enabled bool) error {
	return d.keys.setKey(key, enabled)
}

// SetEnabled switches decryption on or off under the installed key.
func (d *Decoder) SetEnabled(enabled bool) error {
	return d.keys.setEnabled(enabled)
}

// Disable clears the key. Subsequent frames pass through and no key can be
// installed again.
func (d *Decoder) Disable() {
	d.keys.retire()
}

// Active reports whether frames are currently being decrypted.
func (d *Decoder) Active() bool {
	return d.keys.active()
}

// Transform decrypts frame and returns header || plaintext, or frame itself
// when it is passed through. On error the frame must be dropped.
func (d *Decoder) Transform(frame []byte) ([]byte, error) {
	out, _, err := d.transform(frame)
	return out, err
}

// Release returns a frame produced by Transform to the buffer pool.
func (d *Decoder) Release(frame []byte) {
	d.pool.Put(frame)
}

// passes reports whether frame would be forwarded unchanged.
func (d *Decoder) passes(frame []byte) bool {
	if !d.keys.active() {
		return true
	}
	hl, err := d.rule.HeaderLen(frame)
	return err != nil || len(frame)-hl < constants.FrameOverhead
}

func (d *Decoder) transform(frame []byte) (out []byte, decrypted bool, err error) {
	if !d.keys.active() {
		return frame, false, nil
	}
	if len(frame) > constants.MaxFrameSize+constants.FrameOverhead {
		return nil, false, qerrors.NewFrameError("decode", 0, qerrors.ErrFrameTooLarge)
	}

	hl, err := d.rule.HeaderLen(frame)
	if err != nil || len(frame)-hl < constants.FrameOverhead {
		return frame, false, nil
	}

	nonce := frame[hl : hl+constants.AESNonceSize]
	ciphertext := frame[hl+constants.AESNonceSize:]

	buf := d.pool.Get(len(frame) - constants.FrameOverhead)
	copy(buf, frame[:hl])

	out, err = d.keys.aead.OpenWithNonce(buf[:hl], nonce, ciphertext, nil)
	if err != nil {
		d.pool.Put(buf)
		return nil, false, qerrors.NewFrameError("decode", counterOf(nonce), qerrors.ErrAuthenticationFailed)
	}
	return out, true, nil
}
