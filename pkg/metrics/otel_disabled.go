//go:build !otel

package metrics

import (
	"context"
	"errors"
)

// ErrOTelNotBuilt is returned by NewOTelTracer in builds without the otel
// tag.
var ErrOTelNotBuilt = errors.New("metrics: OpenTelemetry support not built in (build with -tags otel)")

// OTelTracer is unavailable without the otel build tag.
type OTelTracer struct{}

// NewOTelTracer always fails with ErrOTelNotBuilt.
func NewOTelTracer(string) (*OTelTracer, error) {
	return nil, ErrOTelNotBuilt
}

// StartSpan returns ctx unchanged.
func (*OTelTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// OTelEnabled reports whether the binary was built with the otel tag.
func OTelEnabled() bool { return false }
