package session

import (
	"context"

	"github.com/sara-star-quant/quantum-call/pkg/frame"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
)

// Observer provides hooks for call lifecycle, metrics, and tracing.
// Implementations should be lightweight. If an Observer also implements
// frame.Observer it is handed to both frame workers.
type Observer interface {
	OnSessionStart()
	OnSessionEnd()
	OnSessionFailed(err error)
	OnHandshakeStart(ctx context.Context) (context.Context, func(error))
	OnSASDecision(accepted bool)
	OnProtocolError(err error)
}

// ObserverFactory builds a per-session observer.
type ObserverFactory func(role Role) Observer

var (
	_ Observer       = (*metrics.SessionObserver)(nil)
	_ frame.Observer = (*metrics.SessionObserver)(nil)
)

func observerFromConfig(cfg Config) Observer {
	if cfg.ObserverFactory != nil {
		if o := cfg.ObserverFactory(cfg.Role); o != nil {
			return o
		}
	}
	if cfg.Observer != nil {
		return cfg.Observer
	}
	return metrics.NewSessionObserver(metrics.SessionObserverConfig{
		Logger: cfg.Logger,
		Role:   cfg.Role.String(),
	})
}

// NopObserver discards all events. Frame workers fall back to their own
// drop logging when given a NopObserver.
type NopObserver struct{}

func (NopObserver) OnSessionStart()           {}
func (NopObserver) OnSessionEnd()             {}
func (NopObserver) OnSessionFailed(error)     {}
func (NopObserver) OnSASDecision(bool)        {}
func (NopObserver) OnProtocolError(error)     {}

func (NopObserver) OnHandshakeStart(ctx context.Context) (context.Context, func(error)) {
	return ctx, func(error) {}
}
