// Package crypto provides the cryptographic primitives for quantum-call:
// X25519, ML-KEM-1024, SHA-256, HKDF-SHA256 and AES-256-GCM.
//
// All primitives hang off a *Suite, which is the explicit initialization
// handle. A Suite is only usable after Init has run the power-on self-tests;
// every method on a nil or uninitialized Suite fails with ErrNotInitialized.
// Two Suites never share mutable state, so sessions can be isolated from each
// other and tests can inject a deterministic random source.
package crypto

import (
	"crypto/rand"
	"io"
	"sync/atomic"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// Suite is an initialized set of primitives.
type Suite struct {
	ready atomic.Bool

	random       io.Reader
	pairwiseTest bool
	cipherSuite  constants.CipherSuite
	post         *POSTResult
}

// Option configures a Suite.
type Option func(*Suite)

// WithRandom sets the randomness source used for key generation and KEM
// encapsulation. Only tests should override the default crypto/rand reader.
func WithRandom(r io.Reader) Option {
	return func(s *Suite) {
		s.random = r
	}
}

// WithPairwiseTest enables a pairwise consistency test on every generated
// key pair. It is always on in FIPS mode.
func WithPairwiseTest(enabled bool) Option {
	return func(s *Suite) {
		s.pairwiseTest = enabled
	}
}

// WithCipherSuite selects the frame AEAD. Both peers must be configured with
// the same suite; it is never negotiated.
func WithCipherSuite(cs constants.CipherSuite) Option {
	return func(s *Suite) {
		s.cipherSuite = cs
	}
}

// Init runs the power-on self-tests and returns a ready Suite.
func Init(opts ...Option) (*Suite, error) {
	s := &Suite{
		random:       rand.Reader,
		pairwiseTest: FIPSMode(),
		cipherSuite:  constants.CipherSuiteAES256GCM,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !isCipherSuiteAllowed(s.cipherSuite) {
		return nil, qerrors.NewCryptoError("Init", qerrors.ErrUnsupportedCipherSuite)
	}

	s.post = RunPOST()
	if !s.post.Passed {
		return nil, qerrors.NewCryptoError("Init", qerrors.ErrSelfTestFailed)
	}

	s.ready.Store(true)
	return s, nil
}

// MustInit is like Init but panics on failure. Intended for tests and
// program start-up.
func MustInit(opts ...Option) *Suite {
	s, err := Init(opts...)
	if err != nil {
		panic("crypto: " + err.Error())
	}
	return s
}

// Ready reports whether the suite completed initialization.
func (s *Suite) Ready() bool {
	return s != nil && s.ready.Load()
}

// CipherSuite returns the configured frame AEAD.
func (s *Suite) CipherSuite() constants.CipherSuite {
	if s == nil {
		return constants.CipherSuiteAES256GCM
	}
	return s.cipherSuite
}

// SelfTest returns the power-on self-test result the suite was built with.
func (s *Suite) SelfTest() *POSTResult {
	if s == nil {
		return nil
	}
	return s.post
}

func (s *Suite) check(op string) error {
	if !s.Ready() {
		return qerrors.NewCryptoError(op, qerrors.ErrNotInitialized)
	}
	return nil
}

// Random fills b from the suite's randomness source.
func (s *Suite) Random(b []byte) error {
	if err := s.check("Random"); err != nil {
		return err
	}
	if _, err := io.ReadFull(s.random, b); err != nil {
		return qerrors.NewCryptoError("Random", err)
	}
	return nil
}

func isCipherSuiteAllowed(cs constants.CipherSuite) bool {
	for _, allowed := range SupportedCipherSuites() {
		if cs == allowed {
			return true
		}
	}
	return false
}
