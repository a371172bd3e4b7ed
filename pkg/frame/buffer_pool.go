package frame

import (
	"sync"

	"github.com/sara-star-quant/quantum-call/internal/constants"
)

// BufferPool provides pooled byte slices for transformed frames.
//
// Size classes follow typical media frames: audio packets and delta video
// frames fit the small class, most key frames the medium class.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// Frame buffer size class thresholds. Each class leaves room for the
// nonce and tag added by encryption.
const (
	smallFrameBufferSize  = 2*1024 + constants.FrameOverhead
	mediumFrameBufferSize = 64*1024 + constants.FrameOverhead
	largeFrameBufferSize  = constants.MaxFrameSize + constants.FrameOverhead
)

// defaultPool is shared by encoders and decoders created without
// WithBufferPool.
var defaultPool = NewBufferPool()

// NewBufferPool creates a new frame buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: sync.Pool{
			New: func() any {
				buf := make([]byte, smallFrameBufferSize)
				return &buf
			},
		},
		medium: sync.Pool{
			New: func() any {
				buf := make([]byte, mediumFrameBufferSize)
				return &buf
			},
		},
		large: sync.Pool{
			New: func() any {
				buf := make([]byte, largeFrameBufferSize)
				return &buf
			},
		},
	}
}

// Get returns a buffer of length size. Buffers above the largest class are
// allocated directly, as is every buffer from a nil pool.
func (p *BufferPool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	if p == nil {
		return make([]byte, size)
	}

	var bufPtr *[]byte

	switch {
	case size <= smallFrameBufferSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= mediumFrameBufferSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= largeFrameBufferSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	return (*bufPtr)[:size]
}

// Put zeroes buf and returns it to its size class. Buffers that did not
// come from the pool are ignored. Put on a nil pool does nothing.
func (p *BufferPool) Put(buf []byte) {
	bufCap := cap(buf)
	if p == nil || bufCap == 0 {
		return
	}

	// Decrypted media must not linger in pooled memory.
	buf = buf[:bufCap]
	clear(buf)

	switch bufCap {
	case smallFrameBufferSize:
		p.small.Put(&buf)
	case mediumFrameBufferSize:
		p.medium.Put(&buf)
	case largeFrameBufferSize:
		p.large.Put(&buf)
	}
}
