package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/frame"
	"github.com/sara-star-quant/quantum-call/pkg/session"
	"github.com/sara-star-quant/quantum-call/pkg/signaling"
)

type demoOptions struct {
	frames    int
	size      int
	header    string
	relay     string
	reject    bool
	verbose   bool
	logLevel  string
	logFormat string
	tracing   string
}

func runDemo(opts demoOptions) {
	collector, observerFactory, logger, err := setupObservability(opts.logLevel, opts.logFormat, opts.tracing, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rule, err := frame.ParseHeaderRule(opts.header)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	suite, err := crypto.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: crypto init failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Quantum-Call Demo                                   ║")
	fmt.Println("║      Hybrid key agreement: X25519 + ML-KEM-1024          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if opts.verbose {
		fmt.Println("Security Properties:")
		fmt.Println("  • Post-Quantum: ML-KEM-1024 (NIST Category 5)")
		fmt.Println("  • Classical: X25519 (128-bit)")
		fmt.Println("  • Hybrid: Secure if EITHER algorithm is secure")
		fmt.Printf("  • Frame cipher: %s\n", suite.CipherSuite())
		fmt.Printf("  • Header rule: %s\n", rule.Name())
		fmt.Println()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chA, chB, err := demoChannels(ctx, opts.relay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = chA.Close() }()
	defer func() { _ = chB.Close() }()

	newSession := func(role session.Role, ch signaling.Channel) *session.Session {
		s, err := session.New(session.Config{
			Suite:           suite,
			Role:            role,
			Channel:         ch,
			HeaderRule:      rule,
			ObserverFactory: observerFactory,
			Logger:          logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return s
	}
	alice := newSession(session.RoleInitiator, chA)
	bob := newSession(session.RoleResponder, chB)
	defer func() { _ = alice.Close() }()
	defer func() { _ = bob.Close() }()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bob.Handshake(gctx) })
	g.Go(func() error {
		if err := alice.Start(gctx); err != nil {
			return err
		}
		return alice.Handshake(gctx)
	})
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: key agreement failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Key agreement complete (%v)\n\n", time.Since(start).Round(time.Microsecond))

	sasA, _ := alice.SAS()
	sasB, _ := bob.SAS()
	fmt.Println("Short Authentication String:")
	fmt.Printf("  Alice: %s\n", sasA)
	fmt.Printf("  Bob:   %s\n", sasB)
	if !sasA.Equal(sasB) {
		fmt.Println("⚠ SAS mismatch: the exchange was tampered with")
	}
	fmt.Println()

	if opts.reject {
		fmt.Println("Bob rejects the SAS...")
		if err := bob.Reject(ctx); !errors.Is(err, qerrors.ErrSASRejected) {
			fmt.Fprintf(os.Stderr, "Error: Reject: %v\n", err)
			os.Exit(1)
		}
		if err := alice.AwaitHangup(ctx); errors.Is(err, qerrors.ErrRemoteHangup) {
			fmt.Println("✓ Alice received hangup; no frame key was installed")
		} else {
			fmt.Fprintf(os.Stderr, "Error: AwaitHangup: %v\n", err)
		}
		return
	}

	if err := alice.Accept(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Accept: %v\n", err)
		os.Exit(1)
	}
	if err := bob.Accept(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Accept: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Both peers accepted; frame encryption enabled")
	fmt.Println()

	stop := runSessions(alice, bob)

	sent := 0
	for i := 0; i < opts.frames; i++ {
		for _, dir := range []struct {
			name     string
			from, to *session.Session
		}{
			{"Alice → Bob", alice, bob},
			{"Bob → Alice", bob, alice},
		} {
			in, err := demoFrame(suite, rule, i, opts.size)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			wire, out, err := relayFrame(ctx, dir.from.Outbound(), dir.to.Inbound(), in)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: frame %d: %v\n", i, err)
				os.Exit(1)
			}
			if !bytes.Equal(in, out) {
				fmt.Fprintf(os.Stderr, "Error: frame %d corrupted\n", i)
				os.Exit(1)
			}
			sent++
			if opts.verbose {
				fmt.Printf("[%s] #%d %d → %d bytes  wire %s…\n",
					dir.name, i, len(in), len(wire), hex.EncodeToString(wire[:min(len(wire), 16)]))
			}
		}
	}

	stop()

	snap := collector.Snapshot()
	fmt.Printf("✓ %d frames round-tripped\n\n", sent)
	fmt.Println("Statistics:")
	fmt.Printf("  Frames encrypted: %d\n", snap.FramesEncrypted)
	fmt.Printf("  Frames decrypted: %d\n", snap.FramesDecrypted)
	fmt.Printf("  Frames dropped: %d\n", snap.FramesDropped)
	fmt.Printf("  Bytes encrypted: %d\n", snap.BytesEncrypted)
	if opts.verbose {
		fmt.Printf("  Encrypt latency mean/p99: %.1fµs / %.1fµs\n", snap.EncryptLatency.Mean, snap.EncryptLatency.P99)
		fmt.Printf("  Handshake: %.1fms\n", snap.HandshakeLatency.Max)
	}
}

func demoChannels(ctx context.Context, relay string) (signaling.Channel, signaling.Channel, error) {
	if relay == "" {
		a, b := signaling.NewPipe()
		return a, b, nil
	}

	room := fmt.Sprintf("demo-%d", time.Now().UnixNano())
	a, err := signaling.Dial(ctx, relay, room, "alice")
	if err != nil {
		return nil, nil, err
	}
	b, err := signaling.Dial(ctx, relay, room, "bob")
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	fmt.Printf("✓ Joined relay room %s\n", room)
	return a, b, nil
}

// demoFrame builds a frame whose leading bytes satisfy rule, followed by a
// random payload.
func demoFrame(s *crypto.Suite, rule frame.HeaderRule, i, size int) ([]byte, error) {
	var header []byte
	switch {
	case rule.Name() == frame.RuleVP8Payload && i == 0:
		header = make([]byte, 10) // key frame, P bit clear
	case rule.Name() == frame.RuleVP8Payload:
		header = []byte{0x01, 0x00, 0x00} // inter frame
	case rule.Name() == frame.RuleVP8Descriptor:
		header = []byte{0x10}
	case rule.Name() == frame.RuleOpusTOC:
		header = []byte{0xfc}
	case strings.HasPrefix(rule.Name(), "fixed:"):
		n, err := rule.HeaderLen(make([]byte, 1<<10))
		if err != nil {
			return nil, err
		}
		header = bytes.Repeat([]byte{0x10}, n)
	}

	payload := make([]byte, size)
	if err := s.Random(payload); err != nil {
		return nil, err
	}
	return append(header, payload...), nil
}

// runSessions runs the frame workers of both sessions. The returned
// function stops them and waits for both Run calls to return.
func runSessions(alice, bob *session.Session) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs errgroup.Group
	runs.Go(func() error { return alice.Run(ctx) })
	runs.Go(func() error { return bob.Run(ctx) })
	return func() {
		cancel()
		_ = runs.Wait()
	}
}

func relayFrame(ctx context.Context, from, to *frame.Worker, in []byte) (wire, out []byte, err error) {
	select {
	case from.In <- in:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case wire = <-from.Out:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	// Session workers allocate every output frame, so wire stays valid
	// after the peer decodes it.
	select {
	case to.In <- wire:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case out = <-to.Out:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	return wire, out, nil
}
