// Package integration provides end-to-end tests for quantum-call: key
// agreement over real signaling transports, SAS comparison and encrypted
// media frames in both directions.
package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/frame"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/session"
	"github.com/sara-star-quant/quantum-call/pkg/signaling"
)

func newSession(t *testing.T, s *crypto.Suite, role session.Role, ch session.Channel, rule frame.HeaderRule) *session.Session {
	t.Helper()
	sess, err := session.New(session.Config{
		Suite:      s,
		Role:       role,
		Channel:    ch,
		HeaderRule: rule,
		Observer:   session.NopObserver{},
		Logger:     metrics.NullLogger(),
	})
	if err != nil {
		t.Fatalf("Failed to create %s session: %v", role, err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// agree runs key agreement on both sessions concurrently.
func agree(t *testing.T, initiator, responder *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var initErr, respErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		if initErr = initiator.Start(ctx); initErr != nil {
			return
		}
		initErr = initiator.Handshake(ctx)
	}()
	go func() {
		defer wg.Done()
		respErr = responder.Handshake(ctx)
	}()
	wg.Wait()

	if initErr != nil {
		t.Fatalf("Initiator handshake failed: %v", initErr)
	}
	if respErr != nil {
		t.Fatalf("Responder handshake failed: %v", respErr)
	}
}

func confirm(t *testing.T, a, b *session.Session) {
	t.Helper()
	sasA, err := a.SAS()
	if err != nil {
		t.Fatalf("SAS failed: %v", err)
	}
	sasB, err := b.SAS()
	if err != nil {
		t.Fatalf("SAS failed: %v", err)
	}
	if !sasA.Equal(sasB) {
		t.Fatalf("SAS mismatch: %s vs %s", sasA, sasB)
	}
	if err := a.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := b.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
}

func runSessions(t *testing.T, sessions ...*session.Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}(s)
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func sendFrame(t *testing.T, from, to *session.Session, in []byte) []byte {
	t.Helper()
	timeout := time.After(5 * time.Second)

	select {
	case from.Outbound().In <- in:
	case <-timeout:
		t.Fatal("timed out queueing outbound frame")
	}
	var wire []byte
	select {
	case wire = <-from.Outbound().Out:
	case <-timeout:
		t.Fatal("timed out waiting for encrypted frame")
	}
	wire = bytes.Clone(wire)

	select {
	case to.Inbound().In <- wire:
	case <-timeout:
		t.Fatal("timed out queueing inbound frame")
	}
	select {
	case out := <-to.Inbound().Out:
		return out
	case <-timeout:
		t.Fatal("timed out waiting for decrypted frame")
	}
	return nil
}

func startRelay(t *testing.T) string {
	t.Helper()
	relay := signaling.NewServer(signaling.ServerConfig{
		Collector: metrics.NewCollector(nil),
		Logger:    metrics.NullLogger(),
	})
	ts := httptest.NewServer(relay.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func dial(t *testing.T, base, room, peer string) *signaling.WSChannel {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := signaling.Dial(ctx, base, room, peer)
	if err != nil {
		t.Fatalf("Dial(%s) failed: %v", peer, err)
	}
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// TestCallOverPipe verifies a complete call over the in-memory transport
// with VP8 payload headers left in the clear.
func TestCallOverPipe(t *testing.T) {
	s := crypto.MustInit()
	a, b := signaling.NewPipe()
	defer func() { _ = a.Close() }()

	alice := newSession(t, s, session.RoleInitiator, a, frame.VP8Payload{})
	bob := newSession(t, s, session.RoleResponder, b, frame.VP8Payload{})

	agree(t, alice, bob)
	confirm(t, alice, bob)
	runSessions(t, alice, bob)

	keyFrame := append(make([]byte, 10), bytes.Repeat([]byte{0xab}, 500)...)
	interFrame := append([]byte{0x01, 0x02, 0x03}, bytes.Repeat([]byte{0xcd}, 120)...)

	for i, in := range [][]byte{keyFrame, interFrame, interFrame} {
		if out := sendFrame(t, alice, bob, in); !bytes.Equal(out, in) {
			t.Errorf("frame %d: alice→bob mismatch", i)
		}
		if out := sendFrame(t, bob, alice, in); !bytes.Equal(out, in) {
			t.Errorf("frame %d: bob→alice mismatch", i)
		}
	}
}

// TestCallThroughRelay runs the same call over websocket signaling.
func TestCallThroughRelay(t *testing.T) {
	s := crypto.MustInit()
	base := startRelay(t)

	chA := dial(t, base, "relay-call", "alice")
	chB := dial(t, base, "relay-call", "bob")

	alice := newSession(t, s, session.RoleInitiator, chA, frame.OpusTOC)
	bob := newSession(t, s, session.RoleResponder, chB, frame.OpusTOC)

	agree(t, alice, bob)
	confirm(t, alice, bob)
	runSessions(t, alice, bob)

	in := append([]byte{0xfc}, []byte("twenty milliseconds of opus")...)
	if out := sendFrame(t, alice, bob, in); !bytes.Equal(out, in) {
		t.Errorf("Data mismatch: got %x, want %x", out, in)
	}
}

// TestResponderJoinsLate verifies that initiator material sent before the
// responder connects is held by the relay and delivered on join.
func TestResponderJoinsLate(t *testing.T) {
	s := crypto.MustInit()
	base := startRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	chA := dial(t, base, "late-room", "alice")
	alice := newSession(t, s, session.RoleInitiator, chA, frame.None)
	if err := alice.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Give the relay time to queue the message.
	time.Sleep(50 * time.Millisecond)

	chB := dial(t, base, "late-room", "bob")
	bob := newSession(t, s, session.RoleResponder, chB, frame.None)

	errc := make(chan error, 1)
	go func() { errc <- alice.Handshake(ctx) }()
	if err := bob.Handshake(ctx); err != nil {
		t.Fatalf("Responder handshake failed: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Initiator handshake failed: %v", err)
	}

	confirm(t, alice, bob)
}

// TestManInTheMiddleDetected puts an active attacker between the peers. Both
// key agreements succeed, but the SAS each victim sees differs.
func TestManInTheMiddleDetected(t *testing.T) {
	s := crypto.MustInit()

	aliceCh, malloryA := signaling.NewPipe()
	malloryB, bobCh := signaling.NewPipe()
	defer func() { _ = aliceCh.Close() }()
	defer func() { _ = bobCh.Close() }()

	alice := newSession(t, s, session.RoleInitiator, aliceCh, frame.None)
	mallory1 := newSession(t, s, session.RoleResponder, malloryA, frame.None)
	mallory2 := newSession(t, s, session.RoleInitiator, malloryB, frame.None)
	bob := newSession(t, s, session.RoleResponder, bobCh, frame.None)

	agree(t, alice, mallory1)
	agree(t, mallory2, bob)

	sasAlice, _ := alice.SAS()
	sasBob, _ := bob.SAS()
	if sasAlice.Equal(sasBob) {
		t.Fatal("attacker went undetected: victims see the same SAS")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := alice.Reject(ctx); !errors.Is(err, qerrors.ErrSASRejected) {
		t.Fatalf("Reject error = %v", err)
	}
	if alice.Outbound().Active() || alice.Inbound().Active() {
		t.Error("rejected session must not enable encryption")
	}
}

// TestDifferentCipherSuites runs a call with each supported frame cipher.
func TestDifferentCipherSuites(t *testing.T) {
	for _, cs := range crypto.SupportedCipherSuites() {
		t.Run(cs.String(), func(t *testing.T) {
			s := crypto.MustInit(crypto.WithCipherSuite(cs))
			a, b := signaling.NewPipe()
			defer func() { _ = a.Close() }()

			alice := newSession(t, s, session.RoleInitiator, a, frame.Fixed(2))
			bob := newSession(t, s, session.RoleResponder, b, frame.Fixed(2))

			agree(t, alice, bob)
			confirm(t, alice, bob)
			runSessions(t, alice, bob)

			in := []byte{0xaa, 0xbb, 'm', 'e', 'd', 'i', 'a'}
			out := sendFrame(t, alice, bob, in)
			if !bytes.Equal(out, in) {
				t.Errorf("Data mismatch with %s", cs)
			}
		})
	}
}

// TestConcurrentCalls runs several independent calls through one relay.
func TestConcurrentCalls(t *testing.T) {
	s := crypto.MustInit()
	base := startRelay(t)

	const calls = 4
	var wg sync.WaitGroup
	errs := make(chan error, calls)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			room := fmt.Sprintf("room-%d", i)
			chA, err := signaling.Dial(ctx, base, room, "alice")
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = chA.Close() }()
			chB, err := signaling.Dial(ctx, base, room, "bob")
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = chB.Close() }()

			cfg := session.Config{Suite: s, Observer: session.NopObserver{}, Logger: metrics.NullLogger()}
			cfg.Role, cfg.Channel = session.RoleInitiator, chA
			alice, err := session.New(cfg)
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = alice.Close() }()
			cfg.Role, cfg.Channel = session.RoleResponder, chB
			bob, err := session.New(cfg)
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = bob.Close() }()

			bobErr := make(chan error, 1)
			go func() { bobErr <- bob.Handshake(ctx) }()
			if err := alice.Start(ctx); err != nil {
				errs <- err
				return
			}
			if err := alice.Handshake(ctx); err != nil {
				errs <- err
				return
			}
			if err := <-bobErr; err != nil {
				errs <- err
				return
			}

			sasA, _ := alice.SAS()
			sasB, _ := bob.SAS()
			if !sasA.Equal(sasB) {
				errs <- fmt.Errorf("room %d: SAS mismatch", i)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("call failed: %v", err)
	}
}

// TestFrameOverhead verifies the on-wire expansion of an encrypted frame.
func TestFrameOverhead(t *testing.T) {
	s := crypto.MustInit()
	a, b := signaling.NewPipe()
	defer func() { _ = a.Close() }()

	alice := newSession(t, s, session.RoleInitiator, a, frame.None)
	bob := newSession(t, s, session.RoleResponder, b, frame.None)

	agree(t, alice, bob)
	confirm(t, alice, bob)
	runSessions(t, alice, bob)

	in := make([]byte, 1200)
	alice.Outbound().In <- in
	select {
	case wire := <-alice.Outbound().Out:
		if len(wire) != len(in)+constants.FrameOverhead {
			t.Errorf("wire length = %d, want %d", len(wire), len(in)+constants.FrameOverhead)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}
