package session_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/frame"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/protocol"
	"github.com/sara-star-quant/quantum-call/pkg/session"
	"github.com/sara-star-quant/quantum-call/pkg/signaling"
)

type peers struct {
	alice, bob *session.Session
	collector  *metrics.Collector
}

func newPeers(t *testing.T, a, b session.Channel, rule frame.HeaderRule) peers {
	t.Helper()
	s := crypto.MustInit()
	collector := metrics.NewCollector(nil)
	factory := func(role session.Role) session.Observer {
		return metrics.NewSessionObserver(metrics.SessionObserverConfig{
			Collector: collector,
			Tracer:    metrics.NoOpTracer{},
			Logger:    metrics.NullLogger(),
			Role:      role.String(),
		})
	}

	alice, err := session.New(session.Config{
		Suite:           s,
		Role:            session.RoleInitiator,
		Channel:         a,
		HeaderRule:      rule,
		ObserverFactory: factory,
		Logger:          metrics.NullLogger(),
	})
	if err != nil {
		t.Fatalf("New(initiator) failed: %v", err)
	}
	bob, err := session.New(session.Config{
		Suite:           s,
		Role:            session.RoleResponder,
		Channel:         b,
		HeaderRule:      rule,
		ObserverFactory: factory,
		Logger:          metrics.NullLogger(),
	})
	if err != nil {
		t.Fatalf("New(responder) failed: %v", err)
	}
	t.Cleanup(func() {
		_ = alice.Close()
		_ = bob.Close()
	})
	return peers{alice: alice, bob: bob, collector: collector}
}

// handshake runs key agreement on both sides and returns the responder's
// error.
func handshake(t *testing.T, p peers) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bobErr := make(chan error, 1)
	go func() { bobErr <- p.bob.Handshake(ctx) }()

	if err := p.alice.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.alice.Handshake(ctx); err != nil {
		t.Fatalf("initiator Handshake failed: %v", err)
	}
	if err := <-bobErr; err != nil {
		t.Fatalf("responder Handshake failed: %v", err)
	}
}

func run(t *testing.T, s *session.Session) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func transfer(t *testing.T, from, to *frame.Worker, in []byte) (wire, out []byte) {
	t.Helper()
	from.In <- in
	wire = recvFrame(t, from.Out)
	to.In <- wire
	out = recvFrame(t, to.Out)
	return wire, out
}

func recvFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatal("worker output closed")
		}
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestCallEndToEnd(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.Fixed(1))

	handshake(t, p)

	sasA, err := p.alice.SAS()
	if err != nil {
		t.Fatalf("SAS failed: %v", err)
	}
	sasB, err := p.bob.SAS()
	if err != nil {
		t.Fatalf("SAS failed: %v", err)
	}
	if !sasA.Equal(sasB) {
		t.Fatalf("SAS mismatch: %s vs %s", sasA, sasB)
	}
	if p.alice.State() != session.StateAwaitingConfirmation {
		t.Errorf("state = %v, want AwaitingConfirmation", p.alice.State())
	}

	if err := p.alice.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := p.bob.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	doneA := run(t, p.alice)
	doneB := run(t, p.bob)

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	in := append([]byte{0x10}, payload...)

	// Alice to Bob.
	wire, out := transfer(t, p.alice.Outbound(), p.bob.Inbound(), in)
	if len(wire) != len(in)+constants.FrameOverhead {
		t.Errorf("wire length = %d, want %d", len(wire), len(in)+constants.FrameOverhead)
	}
	if wire[0] != 0x10 {
		t.Errorf("header byte = %#x, want 0x10", wire[0])
	}
	if bytes.Contains(wire, payload) {
		t.Error("payload visible on the wire")
	}
	if !bytes.Equal(out, in) {
		t.Errorf("Bob decoded %x, want %x", out, in)
	}

	// Bob to Alice uses the other nonce prefix.
	wire2, out2 := transfer(t, p.bob.Outbound(), p.alice.Inbound(), in)
	if !bytes.Equal(out2, in) {
		t.Errorf("Alice decoded %x, want %x", out2, in)
	}
	if bytes.Equal(wire[1:1+constants.AESNonceSize], wire2[1:1+constants.AESNonceSize]) {
		t.Error("both directions used the same nonce")
	}

	if !p.alice.Outbound().Active() || !p.bob.Inbound().Active() {
		t.Error("workers should be active after Accept")
	}

	_ = p.alice.Close()
	_ = p.bob.Close()
	for _, done := range []<-chan error{doneA, doneB} {
		if err := <-done; err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	}

	snap := p.collector.Snapshot()
	if snap.SASAccepted != 2 {
		t.Errorf("SASAccepted = %d, want 2", snap.SASAccepted)
	}
	if snap.FramesEncrypted != 2 || snap.FramesDecrypted != 2 {
		t.Errorf("frames encrypted/decrypted = %d/%d, want 2/2", snap.FramesEncrypted, snap.FramesDecrypted)
	}
	if p.alice.State() != session.StateClosed {
		t.Errorf("state after Close = %v", p.alice.State())
	}
}

func TestPassThroughBeforeAccept(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	done := run(t, p.alice)

	in := []byte("clear media")
	p.alice.Outbound().In <- in
	if out := recvFrame(t, p.alice.Outbound().Out); !bytes.Equal(out, in) {
		t.Errorf("pass-through changed frame: %x", out)
	}

	_ = p.alice.Close()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestRejectHangsUp(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	handshake(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.alice.Reject(ctx); !errors.Is(err, qerrors.ErrSASRejected) {
		t.Fatalf("Reject error = %v, want ErrSASRejected", err)
	}
	if p.alice.State() != session.StateClosed {
		t.Errorf("initiator state = %v, want Closed", p.alice.State())
	}

	if err := p.bob.AwaitHangup(ctx); !errors.Is(err, qerrors.ErrRemoteHangup) {
		t.Fatalf("AwaitHangup error = %v, want ErrRemoteHangup", err)
	}
	if p.bob.State() != session.StateClosed {
		t.Errorf("responder state = %v, want Closed", p.bob.State())
	}

	if err := a.Send(ctx, []byte("late")); !errors.Is(err, qerrors.ErrChannelClosed) {
		t.Errorf("Send after Reject = %v, want ErrChannelClosed", err)
	}

	if err := p.alice.Accept(); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("Accept after Reject = %v, want ErrInvalidState", err)
	}
	if snap := p.collector.Snapshot(); snap.SASRejected != 1 {
		t.Errorf("SASRejected = %d, want 1", snap.SASRejected)
	}
}

// tamperChannel flips a bit of the KEM ciphertext in every ResponderMaterial
// it receives.
type tamperChannel struct {
	session.Channel
}

func (c tamperChannel) Receive(ctx context.Context) ([]byte, error) {
	data, err := c.Channel.Receive(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return data, nil
	}
	if rm, ok := msg.(*protocol.ResponderMaterial); ok {
		rm.KEMCiphertext[0] ^= 0x01
		return protocol.Encode(rm)
	}
	return data, nil
}

func TestTamperedMaterialChangesSAS(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, tamperChannel{a}, b, frame.None)

	handshake(t, p)

	sasA, _ := p.alice.SAS()
	sasB, _ := p.bob.SAS()
	if sasA.Equal(sasB) {
		t.Fatal("tampered key agreement produced matching SAS")
	}
}

func TestHandshakeFailures(t *testing.T) {
	hangup, _ := protocol.Encode(&protocol.Hangup{Reason: protocol.HangupClosed})
	responder, _ := protocol.Encode(&protocol.ResponderMaterial{})

	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{"malformed", []byte("{not json"), qerrors.ErrHandshakeFailed},
		{"unexpected type", responder, qerrors.ErrHandshakeFailed},
		{"hangup", hangup, qerrors.ErrRemoteHangup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := signaling.NewPipe()
			defer a.Close()
			p := newPeers(t, a, b, frame.None)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := a.Send(ctx, tt.payload); err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			err := p.bob.Handshake(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Handshake error = %v, want %v", err, tt.wantErr)
			}
			if p.bob.State() != session.StateFailed {
				t.Errorf("state = %v, want Failed", p.bob.State())
			}
			if _, err := p.bob.SAS(); !errors.Is(err, qerrors.ErrInvalidState) {
				t.Errorf("SAS after failure = %v, want ErrInvalidState", err)
			}
			if err := p.bob.Run(ctx); !errors.Is(err, qerrors.ErrSessionClosed) {
				t.Errorf("Run after failure = %v, want ErrSessionClosed", err)
			}
		})
	}
}

func TestHandshakeFailureNotifiesPeer(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Send(ctx, []byte("{not json")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := p.bob.Handshake(ctx); !errors.Is(err, qerrors.ErrHandshakeFailed) {
		t.Fatalf("Handshake error = %v, want ErrHandshakeFailed", err)
	}

	data, err := a.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	h, ok := msg.(*protocol.Hangup)
	if !ok || h.Reason != protocol.HangupFailed {
		t.Fatalf("expected Hangup{%q}, got %#v", protocol.HangupFailed, msg)
	}
}

func TestPeerFailureUnblocksHandshake(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The responder fails on a garbage message before the initiator starts.
	if err := a.Send(ctx, []byte("{not json")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := p.bob.Handshake(ctx); !errors.Is(err, qerrors.ErrHandshakeFailed) {
		t.Fatalf("responder Handshake error = %v, want ErrHandshakeFailed", err)
	}

	if err := p.alice.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.alice.Handshake(ctx); !errors.Is(err, qerrors.ErrRemoteHangup) {
		t.Fatalf("initiator Handshake error = %v, want ErrRemoteHangup", err)
	}
	if p.alice.State() != session.StateFailed {
		t.Errorf("initiator state = %v, want Failed", p.alice.State())
	}

	// A remote hangup is not echoed: only the initiator's material is
	// waiting on the responder's side.
	data, err := b.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg, err := protocol.Decode(data); err != nil || msg.Type() != protocol.MessageTypeInitiator {
		t.Fatalf("expected InitiatorMaterial, got %v (%v)", msg, err)
	}
	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	if _, err := b.Receive(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected no further messages, got %v", err)
	}
}

func TestHandshakeCorruptInitiatorKey(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// An all-zero X25519 key is a low-order point and must be refused.
	data, err := protocol.Encode(&protocol.InitiatorMaterial{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := a.Send(ctx, data); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := p.bob.Handshake(ctx); !errors.Is(err, qerrors.ErrHandshakeFailed) {
		t.Fatalf("Handshake error = %v, want ErrHandshakeFailed", err)
	}
}

func TestHandshakeContextCancel(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := p.bob.Handshake(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Handshake error = %v, want DeadlineExceeded", err)
	}
	if p.bob.State() != session.StateFailed {
		t.Errorf("state = %v, want Failed", p.bob.State())
	}
}

func TestInvalidTransitions(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)
	ctx := context.Background()

	if err := p.bob.Start(ctx); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("responder Start = %v, want ErrInvalidState", err)
	}
	if err := p.alice.Handshake(ctx); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("Handshake before Start = %v, want ErrInvalidState", err)
	}
	if err := p.alice.Accept(); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("Accept before handshake = %v, want ErrInvalidState", err)
	}
	if err := p.alice.Reject(ctx); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("Reject before handshake = %v, want ErrInvalidState", err)
	}
	if _, err := p.alice.SAS(); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("SAS before handshake = %v, want ErrInvalidState", err)
	}

	if err := p.alice.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.alice.Start(ctx); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("second Start = %v, want ErrInvalidState", err)
	}
	if p.alice.State() != session.StateAwaitingPeer {
		t.Errorf("state = %v, want AwaitingPeer", p.alice.State())
	}
}

func TestCloseIdempotent(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	done := run(t, p.alice)
	// Give Run a moment to start.
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := p.alice.Close(); err != nil {
			t.Fatalf("Close #%d failed: %v", i, err)
		}
	}
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if err := p.alice.Run(context.Background()); !errors.Is(err, qerrors.ErrSessionClosed) {
		t.Errorf("Run after Close = %v, want ErrSessionClosed", err)
	}
	if err := p.alice.Start(context.Background()); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("Start after Close = %v, want ErrInvalidState", err)
	}

	snap := p.collector.Snapshot()
	if snap.SessionsActive != 1 {
		// bob is still open
		t.Errorf("SessionsActive = %d, want 1", snap.SessionsActive)
	}
}

func TestRunTwice(t *testing.T) {
	a, b := signaling.NewPipe()
	defer a.Close()
	p := newPeers(t, a, b, frame.None)

	done := run(t, p.alice)
	time.Sleep(10 * time.Millisecond)

	if err := p.alice.Run(context.Background()); !errors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("second Run = %v, want ErrInvalidState", err)
	}
	_ = p.alice.Close()
	<-done
}

func TestNewValidation(t *testing.T) {
	a, _ := signaling.NewPipe()
	defer a.Close()
	s := crypto.MustInit()

	tests := []struct {
		name string
		cfg  session.Config
	}{
		{"nil suite", session.Config{Channel: a}},
		{"nil channel", session.Config{Suite: s}},
		{"bad role", session.Config{Suite: s, Channel: a, Role: session.Role(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := session.New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStateAndRoleStrings(t *testing.T) {
	states := map[session.State]string{
		session.StateNew:                  "New",
		session.StateAwaitingPeer:         "AwaitingPeer",
		session.StateAwaitingConfirmation: "AwaitingConfirmation",
		session.StateActive:               "Active",
		session.StateClosed:               "Closed",
		session.StateFailed:               "Failed",
		session.State(99):                 "Unknown",
	}
	for st, want := range states {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", st, st.String(), want)
		}
	}

	if session.RoleInitiator.NoncePrefix() == session.RoleResponder.NoncePrefix() {
		t.Error("roles must use distinct nonce prefixes")
	}
	if session.RoleInitiator.String() != "initiator" || session.RoleResponder.String() != "responder" {
		t.Error("unexpected role names")
	}
}

func BenchmarkHandshake(b *testing.B) {
	s := crypto.MustInit()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ca, cb := signaling.NewPipe()
		alice, _ := session.New(session.Config{Suite: s, Role: session.RoleInitiator, Channel: ca, Observer: session.NopObserver{}, Logger: metrics.NullLogger()})
		bob, _ := session.New(session.Config{Suite: s, Role: session.RoleResponder, Channel: cb, Observer: session.NopObserver{}, Logger: metrics.NullLogger()})

		errc := make(chan error, 1)
		go func() { errc <- bob.Handshake(ctx) }()
		if err := alice.Start(ctx); err != nil {
			b.Fatal(err)
		}
		if err := alice.Handshake(ctx); err != nil {
			b.Fatal(err)
		}
		if err := <-errc; err != nil {
			b.Fatal(err)
		}
		_ = alice.Close()
		_ = bob.Close()
		_ = ca.Close()
	}
}
