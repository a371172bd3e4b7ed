package metrics

import (
	"context"
	"time"

	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// SessionObserver records metrics, traces and logs for one call. It
// satisfies both session.Observer and frame.Observer.
type SessionObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	role      string
	attrs     map[string]interface{}
}

// SessionObserverConfig configures a session observer.
type SessionObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	Room      string
	Peer      string
	Role      string // "initiator" or "responder"
}

// NewSessionObserver creates a new session observer.
func NewSessionObserver(cfg SessionObserverConfig) *SessionObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	fields := Fields{"role": cfg.Role}
	if cfg.Room != "" {
		fields["room"] = cfg.Room
	}
	if cfg.Peer != "" {
		fields["peer"] = cfg.Peer
	}

	return &SessionObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("session").With(fields),
		role:      cfg.Role,
		attrs:     CallAttributes{Room: cfg.Room, Peer: cfg.Peer, Role: cfg.Role}.Map(),
	}
}

// OnSessionStart should be called when a call attempt begins.
func (o *SessionObserver) OnSessionStart() {
	o.collector.SessionStarted()
	o.logger.Info("session started")
}

// OnSessionEnd should be called once when a call is torn down.
func (o *SessionObserver) OnSessionEnd() {
	o.collector.SessionEnded()
	o.logger.Info("session ended")
}

// OnSessionFailed should be called when key agreement fails. err may carry
// internal detail; it is logged but never returned to the peer.
func (o *SessionObserver) OnSessionFailed(err error) {
	o.collector.SessionFailed()
	o.logger.Error("session failed", Fields{"error": err})
}

// OnHandshakeStart returns a context and completion function for key
// agreement tracing.
func (o *SessionObserver) OnHandshakeStart(ctx context.Context) (context.Context, func(error)) {
	spanName := SpanHandshakeInitiator
	if o.role == "responder" {
		spanName = SpanHandshakeResponder
	}

	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, spanName, WithSpanKind(SpanKindClient), WithAttributes(o.attrs))

	o.logger.Debug("handshake started")

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordHandshakeLatency(duration)

		if err != nil {
			o.logger.Error("handshake failed", Fields{
				"error":    err,
				"duration": duration.String(),
			})
		} else {
			o.logger.Info("handshake completed", Fields{
				"duration": duration.String(),
			})
		}

		endSpan(err)
	}
}

// OnSASDecision records the user's verdict on the short authentication
// string.
func (o *SessionObserver) OnSASDecision(accepted bool) {
	_, endSpan := o.tracer.StartSpan(context.Background(), SpanSASDecision,
		WithAttributes(o.attrs), WithAttributes(map[string]interface{}{AttrSASAccepted: accepted}))

	if accepted {
		o.collector.RecordSASAccepted()
		o.logger.Info("SAS accepted")
		endSpan(nil)
		return
	}

	o.collector.RecordSASRejected()
	o.logger.Warn("SAS rejected")
	endSpan(qerrors.ErrSASRejected)
}

// OnProtocolError records a malformed or unexpected signaling message.
func (o *SessionObserver) OnProtocolError(err error) {
	o.collector.RecordProtocolError()
	o.logger.Warn("protocol error", Fields{"error": err})
}

// OnEncrypt records an outbound frame. The returned function is called with
// the transform result; a non-nil error means the frame was dropped.
func (o *SessionObserver) OnEncrypt(ctx context.Context, frameLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanFrameEncrypt, o.frameAttrs(frameLen))

	return ctx, func(err error) {
		o.collector.RecordEncryptLatency(time.Since(start))

		if err != nil {
			o.dropped("encode", err)
		} else {
			o.collector.RecordFrameEncrypted(frameLen)
		}

		endSpan(err)
	}
}

// OnDecrypt records an inbound frame.
func (o *SessionObserver) OnDecrypt(ctx context.Context, frameLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanFrameDecrypt, o.frameAttrs(frameLen))

	return ctx, func(err error) {
		o.collector.RecordDecryptLatency(time.Since(start))

		if err != nil {
			o.dropped("decode", err)
		} else {
			o.collector.RecordFrameDecrypted(frameLen)
		}

		endSpan(err)
	}
}

// OnPassThrough records a frame forwarded unchanged.
func (o *SessionObserver) OnPassThrough(outbound bool) {
	o.collector.RecordFramePassedThrough(outbound)
}

func (o *SessionObserver) frameAttrs(frameLen int) SpanOption {
	return func(c *spanConfig) {
		WithAttributes(o.attrs)(c)
		c.attributes[AttrFrameBytes] = frameLen
	}
}

func (o *SessionObserver) dropped(direction string, err error) {
	o.collector.RecordFrameDropped()

	switch {
	case qerrors.Is(err, qerrors.ErrAuthenticationFailed):
		o.collector.RecordAuthFailure()
	case qerrors.Is(err, qerrors.ErrNonceExhausted):
		o.collector.RecordNonceExhausted()
		o.logger.Error("frame counter exhausted, encoder halted")
		return
	}

	o.logger.Warn("frame dropped", Fields{
		"direction": direction,
		"error":     err,
	})
}

// Logger returns the observer's logger for custom logging.
func (o *SessionObserver) Logger() *Logger {
	return o.logger
}
