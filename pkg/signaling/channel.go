// Package signaling carries key agreement payloads between two call peers.
//
// The signaling path is untrusted. Payloads are opaque here: the relay never
// parses them, and peers authenticate the exchange afterwards by comparing
// the SAS.
//
// Three transports are provided:
//   - NewPipe: an in-memory, ordered pair of channels for tests and demos
//   - Dial: a websocket client that joins a room on a relay Server
//   - Server: the relay itself, forwarding between the two peers of a room
//     and holding messages in a Mailbox while a peer is offline
package signaling

import (
	"context"
	"sync"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// Channel is one peer's end of a signaling connection. Messages are
// delivered in order and intact, or not at all.
type Channel interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// pipeBuffer is the number of messages a pipe end holds before Send blocks.
const pipeBuffer = 16

type pipeEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   *sync.Once
}

// NewPipe returns two connected in-memory channels. Closing either end
// closes both.
func NewPipe() (Channel, Channel) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &pipeEnd{in: ba, out: ab, closed: closed, once: once}
	b := &pipeEnd{in: ab, out: ba, closed: closed, once: once}
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, data []byte) error {
	if len(data) > constants.MaxMessageSize {
		return qerrors.ErrMessageTooLarge
	}
	select {
	case <-p.closed:
		return qerrors.ErrChannelClosed
	default:
	}

	msg := append([]byte(nil), data...)
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return qerrors.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}

	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		return nil, qerrors.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
