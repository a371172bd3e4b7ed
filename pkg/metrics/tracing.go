package metrics

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Tracer starts spans around call operations. NoOpTracer, MemoryTracer and
// the OpenTelemetry adapter implement it.
type Tracer interface {
	// StartSpan starts a span as a child of any span in ctx. The returned
	// function ends it; a non-nil error marks the span failed.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder ends a span.
type SpanEnder func(err error)

// SpanOption configures a span.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]interface{}
}

func newSpanConfig(opts []SpanOption) spanConfig {
	cfg := spanConfig{kind: SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// SpanKind says which side of an exchange a span covers. Peers start
// client spans for the handshake; the relay starts server spans.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

// WithAttributes adds attributes to the span. Later options override
// earlier ones key by key.
func WithAttributes(attrs map[string]interface{}) SpanOption {
	return func(c *spanConfig) {
		if c.attributes == nil {
			c.attributes = make(map[string]interface{}, len(attrs))
		}
		maps.Copy(c.attributes, attrs)
	}
}

// Span names.
const (
	SpanHandshakeInitiator = "call.handshake.initiator"
	SpanHandshakeResponder = "call.handshake.responder"
	SpanSASDecision        = "call.sas.decision"
	SpanFrameEncrypt       = "call.frame.encrypt"
	SpanFrameDecrypt       = "call.frame.decrypt"
	SpanRelayForward       = "relay.forward"
)

// Attribute keys.
const (
	AttrRoom        = "call.room"
	AttrPeer        = "call.peer"
	AttrRole        = "call.role"
	AttrSASAccepted = "sas.accepted"
	AttrFrameBytes  = "frame.bytes"
)

// CallAttributes identifies the call a span belongs to.
type CallAttributes struct {
	Room string
	Peer string
	Role string
}

// Map returns the non-empty attributes keyed by AttrRoom, AttrPeer and
// AttrRole.
func (a CallAttributes) Map() map[string]interface{} {
	m := make(map[string]interface{}, 3)
	if a.Room != "" {
		m[AttrRoom] = a.Room
	}
	if a.Peer != "" {
		m[AttrPeer] = a.Peer
	}
	if a.Role != "" {
		m[AttrRole] = a.Role
	}
	return m
}

// NoOpTracer discards every span.
type NoOpTracer struct{}

// StartSpan returns ctx unchanged.
func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// Span is a finished span kept by MemoryTracer.
type Span struct {
	ID         uint64
	ParentID   uint64 // zero for a root span
	Name       string
	Kind       SpanKind
	Attributes map[string]interface{}
	Start      time.Time
	Duration   time.Duration
	Err        error
}

// MemoryTracer keeps the most recent finished spans in memory. It backs
// the "simple" tracing mode and tests.
type MemoryTracer struct {
	limit  int
	nextID atomic.Uint64

	mu    sync.Mutex
	spans []Span
}

// DefaultSpanLimit bounds a MemoryTracer created with a limit of zero.
const DefaultSpanLimit = 4096

// NewMemoryTracer creates a tracer that keeps at most limit spans, dropping
// the oldest first.
func NewMemoryTracer(limit int) *MemoryTracer {
	if limit <= 0 {
		limit = DefaultSpanLimit
	}
	return &MemoryTracer{limit: limit}
}

type memorySpanKey struct{}

// StartSpan starts a span.
func (t *MemoryTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)
	span := Span{
		ID:         t.nextID.Add(1),
		Name:       name,
		Kind:       cfg.kind,
		Attributes: cfg.attributes,
		Start:      time.Now(),
	}
	if parent, ok := ctx.Value(memorySpanKey{}).(uint64); ok {
		span.ParentID = parent
	}

	var once sync.Once
	return context.WithValue(ctx, memorySpanKey{}, span.ID), func(err error) {
		once.Do(func() {
			span.Duration = time.Since(span.Start)
			span.Err = err
			t.record(span)
		})
	}
}

func (t *MemoryTracer) record(s Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.spans) == t.limit {
		copy(t.spans, t.spans[1:])
		t.spans = t.spans[:len(t.spans)-1]
	}
	t.spans = append(t.spans, s)
}

// Spans returns the finished spans, oldest first.
func (t *MemoryTracer) Spans() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Span(nil), t.spans...)
}

// Find returns the finished spans with the given name.
func (t *MemoryTracer) Find(name string) []Span {
	var out []Span
	for _, s := range t.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Reset discards all finished spans.
func (t *MemoryTracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = nil
}

type tracerBox struct{ Tracer }

var globalTracer atomic.Value

func init() {
	globalTracer.Store(tracerBox{NoOpTracer{}})
}

// SetTracer replaces the process-wide tracer. nil restores NoOpTracer.
func SetTracer(t Tracer) {
	if t == nil {
		t = NoOpTracer{}
	}
	globalTracer.Store(tracerBox{t})
}

// GetTracer returns the process-wide tracer.
func GetTracer() Tracer {
	return globalTracer.Load().(tracerBox).Tracer
}

// StartSpan starts a span on the process-wide tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, opts...)
}
