// Package quantumcall provides end-to-end encrypted calls keyed by a hybrid
// X25519 + ML-KEM-1024 key agreement.
//
// Two peers exchange public key material over an untrusted signaling channel,
// derive a shared master secret, and read a short authentication string (SAS)
// aloud to each other. Once both sides accept the SAS, every media frame is
// encrypted with AES-256-GCM while its codec header stays in the clear so
// that media servers can still route it.
//
// # Quick Start
//
// A call over the relay:
//
//	import (
//	    "github.com/sara-star-quant/quantum-call/pkg/crypto"
//	    "github.com/sara-star-quant/quantum-call/pkg/session"
//	    "github.com/sara-star-quant/quantum-call/pkg/signaling"
//	)
//
//	suite := crypto.MustInit()
//	ch, _ := signaling.Dial(ctx, "ws://relay:8443", "room-1", "alice")
//	sess, _ := session.New(session.Config{Suite: suite, Role: session.RoleInitiator, Channel: ch})
//
//	_ = sess.Start(ctx)
//	_ = sess.Handshake(ctx)
//	code, _ := sess.SAS()
//	fmt.Println(code.Words) // compare with the other side
//	_ = sess.Accept()
//
//	go sess.Run(ctx)
//	sess.Outbound().In <- frame
//
// # Package Structure
//
//   - pkg/crypto: ML-KEM-1024, X25519, HKDF-SHA256 and AEAD primitives
//   - pkg/hybrid: Two-party hybrid key agreement and master secret derivation
//   - pkg/sas: Short authentication string over the key agreement transcript
//   - pkg/frame: Per-frame encryption that preserves codec headers
//   - pkg/protocol: Signaling message envelope and encoding
//   - pkg/signaling: Signaling channels, relay server and offline mailbox
//   - pkg/session: Call state machine tying the pieces together
//   - pkg/metrics: Logging, tracing, metrics and health endpoints
//   - internal/constants: Sizes, labels and protocol constants
//   - internal/errors: Sentinel errors shared across packages
//
// # Security Properties
//
//   - Post-quantum security: ML-KEM-1024 (NIST Category 5)
//   - Classical security: X25519 ECDH
//   - Hybrid guarantee: the master secret stays secret if either exchange does
//   - Forward secrecy: key material is ephemeral and zeroized after use
//   - Active attack detection: a relay that substitutes keys changes the SAS
//   - Nonce separation: each direction uses its own nonce prefix
//
// # Testing
//
//	go test ./...                                 # All tests
//	go test -fuzz=FuzzDecodeFrame ./test/fuzz/    # Fuzz tests
//	go test ./test/integration/                   # End-to-end calls
//	go test -bench=. ./test/benchmark             # Benchmarks
//
// # References
//
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - RFC 7748: Elliptic Curves for Security
//   - RFC 5869: HMAC-based Extract-and-Expand Key Derivation Function (HKDF)
package quantumcall
