package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/frame"
	"github.com/sara-star-quant/quantum-call/pkg/hybrid"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/session"
	"github.com/sara-star-quant/quantum-call/pkg/signaling"
)

func runBench(handshakes int, framesTest bool, sizeStr, durationStr, cipher string) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Quantum-Call Benchmark                              ║")
	fmt.Println("║      Hybrid key agreement: X25519 + ML-KEM-1024          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if handshakes == 0 && !framesTest {
		fmt.Println("No benchmarks specified. Use --handshakes or --frames")
		fmt.Println("Run 'quantum-call bench --help' for usage")
		os.Exit(1)
	}

	cs, err := parseCipher(cipher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	suite, err := crypto.Init(crypto.WithCipherSuite(cs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: crypto init failed: %v\n", err)
		os.Exit(1)
	}

	if handshakes > 0 {
		benchHandshakes(suite, handshakes)
		fmt.Println()
	}

	if framesTest {
		size := parseSize(sizeStr)
		duration := parseDuration(durationStr)
		benchFrames(suite, int(size), duration)
	}
}

func benchHandshakes(suite *crypto.Suite, count int) {
	fmt.Printf("Benchmarking Key Agreement (%d iterations)\n", count)
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println("Transport: in-memory signaling pipe")
	fmt.Println()

	durations := make([]time.Duration, count)
	errors := 0
	ctx := context.Background()

	startTime := time.Now()
	for i := 0; i < count; i++ {
		handshakeStart := time.Now()
		if err := oneHandshake(ctx, suite); err != nil {
			errors++
			durations[i] = 0
			continue
		}
		durations[i] = time.Since(handshakeStart)

		// Progress indicator every 10% (or every iteration if count < 10)
		step := count / 10
		if step == 0 {
			step = 1
		}
		if (i+1)%step == 0 || i == count-1 {
			fmt.Printf("Progress: %d/%d (%.0f%%)\r", i+1, count, float64(i+1)/float64(count)*100)
		}
	}
	fmt.Println()

	totalTime := time.Since(startTime)
	printHandshakeResults(count, count-errors, errors, totalTime, durations)
}

func oneHandshake(ctx context.Context, suite *crypto.Suite) error {
	a, b := signaling.NewPipe()
	defer func() { _ = a.Close() }()

	cfg := session.Config{Suite: suite, Observer: session.NopObserver{}, Logger: metrics.NullLogger()}

	cfg.Role, cfg.Channel = session.RoleInitiator, a
	alice, err := session.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = alice.Close() }()

	cfg.Role, cfg.Channel = session.RoleResponder, b
	bob, err := session.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = bob.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bob.Handshake(gctx) })
	g.Go(func() error {
		if err := alice.Start(gctx); err != nil {
			return err
		}
		return alice.Handshake(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := alice.Accept(); err != nil {
		return err
	}
	return bob.Accept()
}

func printHandshakeResults(total, successful, failed int, totalTime time.Duration, durations []time.Duration) {
	if failed == total {
		fmt.Fprintf(os.Stderr, "All key agreements failed\n")
		os.Exit(1)
	}

	var sum, min, max time.Duration
	min = time.Hour // Initialize to large value

	for _, d := range durations {
		if d == 0 {
			continue
		}
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	avg := sum / time.Duration(successful)

	fmt.Println("\nResults:")
	fmt.Printf("  Total key agreements: %d\n", total)
	fmt.Printf("  Successful: %d\n", successful)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Total time: %v\n", totalTime)
	fmt.Println()
	fmt.Println("Key Agreement Performance (both peers, one process):")
	fmt.Printf("  Average: %v\n", avg)
	fmt.Printf("  Minimum: %v\n", min)
	fmt.Printf("  Maximum: %v\n", max)
	fmt.Printf("  Throughput: %.2f calls/sec\n", float64(successful)/totalTime.Seconds())
	fmt.Println()

	printHandshakeRating(avg)
}

func printHandshakeRating(avg time.Duration) {
	if avg < 2*time.Millisecond {
		fmt.Println("✓ Performance: Excellent (< 2ms avg)")
	} else if avg < 5*time.Millisecond {
		fmt.Println("✓ Performance: Good (< 5ms avg)")
	} else if avg < 10*time.Millisecond {
		fmt.Println("⚠ Performance: Acceptable (< 10ms avg)")
	} else {
		fmt.Println("⚠ Performance: Slow (> 10ms avg)")
	}
}

// benchFrames encrypts and decrypts frames of one size back to back with a
// key from a real key agreement.
func benchFrames(suite *crypto.Suite, size int, duration time.Duration) {
	fmt.Printf("Benchmarking Frame Transform\n")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Frame size: %s, duration: %v\n", formatSize(int64(size)), duration)
	fmt.Printf("Cipher: %s\n\n", suite.CipherSuite())

	key, err := benchFrameKey(suite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	enc := frame.NewEncoder(suite, frame.OpusTOC, session.RoleInitiator.NoncePrefix())
	dec := frame.NewDecoder(suite, frame.OpusTOC)
	if err := enc.SetKey(key, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := dec.SetKey(key, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	key.Zeroize()
	defer enc.Disable()
	defer dec.Disable()

	in := make([]byte, size+1)
	in[0] = 0xfc
	_ = suite.Random(in[1:])

	var (
		frames  int64
		bytes   int64
		encTime time.Duration
		decTime time.Duration
	)

	start := time.Now()
	lastProgress := start
	for time.Since(start) < duration {
		t0 := time.Now()
		wire, err := enc.Transform(in)
		t1 := time.Now()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encrypt error: %v\n", err)
			break
		}
		out, err := dec.Transform(wire)
		t2 := time.Now()
		enc.Release(wire)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Decrypt error: %v\n", err)
			break
		}
		dec.Release(out)

		encTime += t1.Sub(t0)
		decTime += t2.Sub(t1)
		frames++
		bytes += int64(len(in))

		if time.Since(lastProgress) >= time.Second {
			mbps := float64(bytes) / time.Since(start).Seconds() / 1024 / 1024
			fmt.Printf("Progress: %d frames (%.1f MB/s)\r", frames, mbps)
			lastProgress = time.Now()
		}
	}

	printFrameResults(frames, bytes, encTime, decTime)
}

func benchFrameKey(suite *crypto.Suite) (crypto.FrameKey, error) {
	kp, err := hybrid.GenerateHybridKeyPair(suite)
	if err != nil {
		return crypto.FrameKey{}, err
	}
	defer kp.Zeroize()

	_, result, err := hybrid.ResponderAgree(suite, kp.PublicKeys())
	if err != nil {
		return crypto.FrameKey{}, err
	}
	master, err := result.DeriveMasterSecret(suite)
	if err != nil {
		return crypto.FrameKey{}, err
	}
	defer master.Zeroize()
	return suite.DeriveFrameKey(master)
}

func printFrameResults(frames, totalBytes int64, encTime, decTime time.Duration) {
	fmt.Println()
	fmt.Println("\nResults:")
	fmt.Printf("  Frames: %d\n", frames)
	fmt.Printf("  Data: %s\n", formatSize(totalBytes))
	if frames == 0 {
		return
	}
	fmt.Printf("  Encrypt: %v/frame\n", encTime/time.Duration(frames))
	fmt.Printf("  Decrypt: %v/frame\n", decTime/time.Duration(frames))
	fmt.Println()

	encMBps := float64(totalBytes) / encTime.Seconds() / 1024 / 1024
	decMBps := float64(totalBytes) / decTime.Seconds() / 1024 / 1024
	fmt.Printf("Encrypt Throughput: %.2f MB/s (%.2f Mbps)\n", encMBps, encMBps*8)
	fmt.Printf("Decrypt Throughput: %.2f MB/s (%.2f Mbps)\n", decMBps, decMBps*8)

	printThroughputRating((encMBps + decMBps) / 2)
}

func printThroughputRating(avgMBps float64) {
	fmt.Println()
	if avgMBps > 500 {
		fmt.Println("✓ Performance: Excellent (> 500 MB/s)")
	} else if avgMBps > 200 {
		fmt.Println("✓ Performance: Good (> 200 MB/s)")
	} else if avgMBps > 50 {
		fmt.Println("✓ Performance: Acceptable (> 50 MB/s)")
	} else {
		fmt.Println("⚠ Performance: May need optimization (< 50 MB/s)")
	}
}

func parseSize(s string) int64 {
	// Simple parser for sizes like "160", "1KB", "64KB"
	var value int64
	var unit string
	_, _ = fmt.Sscanf(s, "%d%s", &value, &unit)

	switch unit {
	case "KB", "kb", "K", "k":
		return value * 1024
	case "MB", "mb", "M", "m":
		return value * 1024 * 1024
	default:
		return value
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %s\n", s)
		os.Exit(1)
	}
	return d
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}
