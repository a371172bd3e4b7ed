package frame

import (
	"context"

	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
)

// Observer receives per-frame events from a Worker.
// metrics.SessionObserver implements it.
type Observer interface {
	// OnEncrypt is called before an outbound frame is encrypted. The returned
	// function receives the result; a non-nil error means the frame was
	// dropped.
	OnEncrypt(ctx context.Context, frameLen int) (context.Context, func(error))

	// OnDecrypt is called before an inbound frame is decrypted.
	OnDecrypt(ctx context.Context, frameLen int) (context.Context, func(error))

	// OnPassThrough is called for a frame forwarded unchanged.
	OnPassThrough(outbound bool)
}

var _ Observer = (*metrics.SessionObserver)(nil)

// logObserver is used when a Worker has no Observer. It only logs drops.
type logObserver struct {
	logger *metrics.Logger
}

func (o logObserver) OnEncrypt(ctx context.Context, _ int) (context.Context, func(error)) {
	return ctx, func(err error) { o.dropped("encode", err) }
}

func (o logObserver) OnDecrypt(ctx context.Context, _ int) (context.Context, func(error)) {
	return ctx, func(err error) { o.dropped("decode", err) }
}

func (logObserver) OnPassThrough(bool) {}

func (o logObserver) dropped(direction string, err error) {
	if err == nil {
		return
	}
	if qerrors.Is(err, qerrors.ErrNonceExhausted) {
		o.logger.Error("frame counter exhausted, encoder halted")
		return
	}
	o.logger.Warn("frame dropped", metrics.Fields{
		"direction": direction,
		"error":     err,
	})
}
