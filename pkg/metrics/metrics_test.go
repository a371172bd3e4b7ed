package metrics

import (
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	labels := Labels{"instance": "test"}
	c := NewCollector(labels)

	if c == nil {
		t.Fatal("expected non-nil collector")
	}

	snap := c.Snapshot()
	if snap.Labels["instance"] != "test" {
		t.Errorf("expected label instance=test, got %v", snap.Labels)
	}
}

func TestCollectorSessionMetrics(t *testing.T) {
	c := NewCollector(nil)

	// Test session start
	c.SessionStarted()
	c.SessionStarted()
	snap := c.Snapshot()
	if snap.SessionsActive != 2 {
		t.Errorf("expected 2 active sessions, got %d", snap.SessionsActive)
	}
	if snap.SessionsTotal != 2 {
		t.Errorf("expected 2 total sessions, got %d", snap.SessionsTotal)
	}

	// Test session end
	c.SessionEnded()
	snap = c.Snapshot()
	if snap.SessionsActive != 1 {
		t.Errorf("expected 1 active session, got %d", snap.SessionsActive)
	}
	if snap.SessionsTotal != 2 {
		t.Errorf("expected 2 total sessions, got %d", snap.SessionsTotal)
	}

	// Test session failed
	c.SessionFailed()
	snap = c.Snapshot()
	if snap.SessionsFailed != 1 {
		t.Errorf("expected 1 failed session, got %d", snap.SessionsFailed)
	}
}

func TestCollectorSASMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordSASAccepted()
	c.RecordSASAccepted()
	c.RecordSASRejected()

	snap := c.Snapshot()
	if snap.SASAccepted != 2 {
		t.Errorf("expected 2 SAS accepted, got %d", snap.SASAccepted)
	}
	if snap.SASRejected != 1 {
		t.Errorf("expected 1 SAS rejected, got %d", snap.SASRejected)
	}
}

func TestCollectorFrameMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordFrameEncrypted(1000)
	c.RecordFrameEncrypted(500)
	c.RecordFrameDecrypted(2000)
	c.RecordFramePassedThrough(true)
	c.RecordFramePassedThrough(false)
	c.RecordFramePassedThrough(false)
	c.RecordFrameDropped()
	c.RecordAuthFailure()
	c.RecordNonceExhausted()

	snap := c.Snapshot()
	if snap.FramesEncrypted != 2 || snap.BytesEncrypted != 1500 {
		t.Errorf("expected 2 frames / 1500 bytes encrypted, got %d / %d", snap.FramesEncrypted, snap.BytesEncrypted)
	}
	if snap.FramesDecrypted != 1 || snap.BytesDecrypted != 2000 {
		t.Errorf("expected 1 frame / 2000 bytes decrypted, got %d / %d", snap.FramesDecrypted, snap.BytesDecrypted)
	}
	if snap.FramesPassedOutbound != 1 || snap.FramesPassedInbound != 2 {
		t.Errorf("expected 1 outbound / 2 inbound pass-through, got %d / %d", snap.FramesPassedOutbound, snap.FramesPassedInbound)
	}
	if snap.FramesDropped != 1 {
		t.Errorf("expected 1 dropped frame, got %d", snap.FramesDropped)
	}
	if snap.AuthFailures != 1 {
		t.Errorf("expected 1 auth failure, got %d", snap.AuthFailures)
	}
	if snap.NonceExhaustions != 1 {
		t.Errorf("expected 1 nonce exhaustion, got %d", snap.NonceExhaustions)
	}
}

func TestCollectorSignalingMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordMessageRelayed()
	c.RecordMessageQueued()
	c.RecordMessageQueued()
	c.RecordProtocolError()

	snap := c.Snapshot()
	if snap.MessagesRelayed != 1 {
		t.Errorf("expected 1 relayed message, got %d", snap.MessagesRelayed)
	}
	if snap.MessagesQueued != 2 {
		t.Errorf("expected 2 queued messages, got %d", snap.MessagesQueued)
	}
	if snap.ProtocolErrors != 1 {
		t.Errorf("expected 1 protocol error, got %d", snap.ProtocolErrors)
	}
}

func TestCollectorLatencyMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordHandshakeLatency(100 * time.Millisecond)
	c.RecordHandshakeLatency(200 * time.Millisecond)
	c.RecordEncryptLatency(10 * time.Microsecond)
	c.RecordDecryptLatency(15 * time.Microsecond)

	snap := c.Snapshot()
	if snap.HandshakeLatency.Count != 2 {
		t.Errorf("expected 2 handshake latency observations, got %d", snap.HandshakeLatency.Count)
	}
	if snap.HandshakeLatency.Mean != 150 {
		t.Errorf("expected mean handshake latency 150ms, got %.2f", snap.HandshakeLatency.Mean)
	}
	if snap.HandshakeLatency.Unit != "ms" || snap.EncryptLatency.Unit != "us" {
		t.Errorf("unexpected units %q / %q", snap.HandshakeLatency.Unit, snap.EncryptLatency.Unit)
	}
	if snap.EncryptLatency.Mean != 10 {
		t.Errorf("expected mean encrypt latency 10us, got %.2f", snap.EncryptLatency.Mean)
	}
	if snap.EncryptLatency.Count != 1 {
		t.Errorf("expected 1 encrypt latency observation, got %d", snap.EncryptLatency.Count)
	}
	if snap.DecryptLatency.Count != 1 {
		t.Errorf("expected 1 decrypt latency observation, got %d", snap.DecryptLatency.Count)
	}
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector(nil)

	c.SessionStarted()
	c.RecordFrameEncrypted(1000)
	c.RecordFrameDropped()

	snap := c.Snapshot()
	if snap.SessionsActive != 1 || snap.BytesEncrypted != 1000 {
		t.Fatal("metrics not recorded")
	}

	c.Reset()

	snap = c.Snapshot()
	if snap.SessionsActive != 0 {
		t.Errorf("expected 0 active sessions after reset, got %d", snap.SessionsActive)
	}
	if snap.BytesEncrypted != 0 {
		t.Errorf("expected 0 bytes encrypted after reset, got %d", snap.BytesEncrypted)
	}
	if snap.FramesDropped != 0 {
		t.Errorf("expected 0 dropped frames after reset, got %d", snap.FramesDropped)
	}
}

func TestCollectorUptime(t *testing.T) {
	c := NewCollector(nil)
	time.Sleep(10 * time.Millisecond)

	snap := c.Snapshot()
	if snap.Uptime < 10*time.Millisecond {
		t.Errorf("expected uptime >= 10ms, got %v", snap.Uptime)
	}
}

func TestGlobalCollector(t *testing.T) {
	// Get global collector
	g := Global()
	if g == nil {
		t.Fatal("expected non-nil global collector")
	}

	// Should return same instance
	g2 := Global()
	if g != g2 {
		t.Error("expected same global collector instance")
	}

	custom := NewCollector(Labels{"custom": "true"})
	SetGlobal(custom)
	defer SetGlobal(g)

	if Global() != custom {
		t.Error("expected SetGlobal to replace the global collector")
	}
}

func TestCollectorConcurrency(t *testing.T) {
	c := NewCollector(nil)

	// Run concurrent operations
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.SessionStarted()
				c.RecordFrameEncrypted(j)
				c.RecordHandshakeLatency(time.Duration(j) * time.Millisecond)
				c.SessionEnded()
			}
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	snap := c.Snapshot()
	if snap.SessionsTotal != 1000 {
		t.Errorf("expected 1000 total sessions, got %d", snap.SessionsTotal)
	}
	if snap.SessionsActive != 0 {
		t.Errorf("expected 0 active sessions, got %d", snap.SessionsActive)
	}
}
