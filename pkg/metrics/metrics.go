package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from call sessions, frame workers and the
// signaling relay.
type Collector struct {
	// Session metrics
	sessionsActive   atomic.Uint64
	sessionsTotal    atomic.Uint64
	sessionsFailed   atomic.Uint64
	handshakeLatency *LatencyHistogram

	// SAS decisions
	sasAccepted atomic.Uint64
	sasRejected atomic.Uint64

	// Frame metrics
	framesEncrypted  atomic.Uint64
	framesDecrypted  atomic.Uint64
	framesPassedOut  atomic.Uint64
	framesPassedIn   atomic.Uint64
	framesDropped    atomic.Uint64
	bytesEncrypted   atomic.Uint64
	bytesDecrypted   atomic.Uint64
	authFailures     atomic.Uint64
	nonceExhaustions atomic.Uint64

	// Signaling metrics
	messagesRelayed atomic.Uint64
	messagesQueued  atomic.Uint64
	protocolErrors  atomic.Uint64

	// Per-frame transform latency
	encryptLatency *LatencyHistogram
	decryptLatency *LatencyHistogram

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewLatencyHistogram(time.Millisecond, HandshakeBounds),
		encryptLatency:   NewLatencyHistogram(time.Microsecond, FrameBounds),
		decryptLatency:   NewLatencyHistogram(time.Microsecond, FrameBounds),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// --- Session Metrics ---

// SessionStarted increments active and total session counters.
func (c *Collector) SessionStarted() {
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionEnded decrements active session counter.
func (c *Collector) SessionEnded() {
	for {
		current := c.sessionsActive.Load()
		if current == 0 {
			return
		}
		if c.sessionsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// SessionFailed records a failed key agreement.
func (c *Collector) SessionFailed() {
	c.sessionsFailed.Add(1)
}

// RecordHandshakeLatency records a key agreement duration.
func (c *Collector) RecordHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(d)
}

// RecordSASAccepted counts a user confirming the SAS.
func (c *Collector) RecordSASAccepted() {
	c.sasAccepted.Add(1)
}

// RecordSASRejected counts a user rejecting the SAS.
func (c *Collector) RecordSASRejected() {
	c.sasRejected.Add(1)
}

// --- Frame Metrics ---

// RecordFrameEncrypted counts an encrypted outbound frame.
func (c *Collector) RecordFrameEncrypted(n int) {
	c.framesEncrypted.Add(1)
	c.bytesEncrypted.Add(uint64(n))
}

// RecordFrameDecrypted counts a decrypted inbound frame.
func (c *Collector) RecordFrameDecrypted(n int) {
	c.framesDecrypted.Add(1)
	c.bytesDecrypted.Add(uint64(n))
}

// RecordFramePassedThrough counts a frame forwarded unchanged.
// outbound selects the direction.
func (c *Collector) RecordFramePassedThrough(outbound bool) {
	if outbound {
		c.framesPassedOut.Add(1)
		return
	}
	c.framesPassedIn.Add(1)
}

// RecordFrameDropped counts a frame that was discarded.
func (c *Collector) RecordFrameDropped() {
	c.framesDropped.Add(1)
}

// RecordAuthFailure counts an inbound frame that failed authentication.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Add(1)
}

// RecordNonceExhausted counts an encoder halted by its frame counter.
func (c *Collector) RecordNonceExhausted() {
	c.nonceExhaustions.Add(1)
}

// --- Signaling Metrics ---

// RecordMessageRelayed counts a signaling message forwarded to a live peer.
func (c *Collector) RecordMessageRelayed() {
	c.messagesRelayed.Add(1)
}

// RecordMessageQueued counts a signaling message stored for an absent peer.
func (c *Collector) RecordMessageQueued() {
	c.messagesQueued.Add(1)
}

// RecordProtocolError increments protocol error counter.
func (c *Collector) RecordProtocolError() {
	c.protocolErrors.Add(1)
}

// --- Performance Metrics ---

// RecordEncryptLatency records frame encryption latency.
func (c *Collector) RecordEncryptLatency(d time.Duration) {
	c.encryptLatency.Observe(d)
}

// RecordDecryptLatency records frame decryption latency.
func (c *Collector) RecordDecryptLatency(d time.Duration) {
	c.decryptLatency.Observe(d)
}

// --- Snapshot ---

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Session metrics
	SessionsActive uint64
	SessionsTotal  uint64
	SessionsFailed uint64
	SASAccepted    uint64
	SASRejected    uint64

	// Frame metrics
	FramesEncrypted      uint64
	FramesDecrypted      uint64
	FramesPassedOutbound uint64
	FramesPassedInbound  uint64
	FramesDropped        uint64
	BytesEncrypted       uint64
	BytesDecrypted       uint64
	AuthFailures         uint64
	NonceExhaustions     uint64

	// Signaling metrics
	MessagesRelayed uint64
	MessagesQueued  uint64
	ProtocolErrors  uint64

	// Latency summaries; handshakes in milliseconds, frames in microseconds
	HandshakeLatency LatencySummary
	EncryptLatency   LatencySummary
	DecryptLatency   LatencySummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:            time.Now(),
		Uptime:               time.Since(c.createdAt),
		SessionsActive:       c.sessionsActive.Load(),
		SessionsTotal:        c.sessionsTotal.Load(),
		SessionsFailed:       c.sessionsFailed.Load(),
		SASAccepted:          c.sasAccepted.Load(),
		SASRejected:          c.sasRejected.Load(),
		FramesEncrypted:      c.framesEncrypted.Load(),
		FramesDecrypted:      c.framesDecrypted.Load(),
		FramesPassedOutbound: c.framesPassedOut.Load(),
		FramesPassedInbound:  c.framesPassedIn.Load(),
		FramesDropped:        c.framesDropped.Load(),
		BytesEncrypted:       c.bytesEncrypted.Load(),
		BytesDecrypted:       c.bytesDecrypted.Load(),
		AuthFailures:         c.authFailures.Load(),
		NonceExhaustions:     c.nonceExhaustions.Load(),
		MessagesRelayed:      c.messagesRelayed.Load(),
		MessagesQueued:       c.messagesQueued.Load(),
		ProtocolErrors:       c.protocolErrors.Load(),
		HandshakeLatency:     c.handshakeLatency.Summary(),
		EncryptLatency:       c.encryptLatency.Summary(),
		DecryptLatency:       c.decryptLatency.Summary(),
		Labels:               c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	for _, v := range []*atomic.Uint64{
		&c.sessionsActive, &c.sessionsTotal, &c.sessionsFailed,
		&c.sasAccepted, &c.sasRejected,
		&c.framesEncrypted, &c.framesDecrypted, &c.framesPassedOut, &c.framesPassedIn,
		&c.framesDropped, &c.bytesEncrypted, &c.bytesDecrypted,
		&c.authFailures, &c.nonceExhaustions,
		&c.messagesRelayed, &c.messagesQueued, &c.protocolErrors,
	} {
		v.Store(0)
	}
	c.handshakeLatency.Reset()
	c.encryptLatency.Reset()
	c.decryptLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		if globalCollector == nil {
			globalCollector = NewCollector(Labels{"instance": "default"})
		}
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollectorOnce.Do(func() {})
	globalCollector = c
}
