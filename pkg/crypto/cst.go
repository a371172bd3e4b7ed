// cst.go implements Conditional Self-Tests (CST).
//
// Conditional Self-Tests run during specific operations rather than at
// initialization. A Suite built WithPairwiseTest(true), which is the default
// in FIPS mode, checks each generated key pair for consistency before handing
// it out:
//
//   - X25519: DH against a fresh test key pair in both directions must agree
//     and must not be all zero.
//   - ML-KEM: encapsulating to the new key and decapsulating must agree.
//
// In FIPS mode, a CST failure panics. Otherwise the error is returned and the
// key pair is discarded.
package crypto

import (
	"fmt"

	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// --- Pairwise Consistency Tests ---

func (s *Suite) pairwiseX25519(kp *X25519KeyPair) error {
	return s.cstResult("X25519", pairwiseCheckX25519(s, kp))
}

func (s *Suite) pairwiseMLKEM(kp *MLKEMKeyPair) error {
	return s.cstResult("ML-KEM", pairwiseCheckMLKEM(s, kp))
}

func (s *Suite) cstResult(alg string, err error) error {
	if err == nil {
		return nil
	}
	if FIPSMode() {
		panic(fmt.Sprintf("FIPS CST failed: %s pairwise consistency test: %v", alg, err))
	}
	return qerrors.NewCryptoError(alg+".PairwiseTest", fmt.Errorf("%w: %v", qerrors.ErrPairwiseTestFailed, err))
}

func pairwiseCheckX25519(s *Suite, kp *X25519KeyPair) error {
	if kp == nil || kp.PrivateKey == nil || kp.PublicKey == nil {
		return fmt.Errorf("invalid key pair")
	}

	test, err := s.unpairedX25519()
	if err != nil {
		return fmt.Errorf("test key pair: %w", err)
	}

	secret1, err := s.X25519(kp.PrivateKey, test.PublicKey)
	if err != nil {
		return fmt.Errorf("DH operation 1: %w", err)
	}
	defer Zeroize(secret1)

	secret2, err := s.X25519(test.PrivateKey, kp.PublicKey)
	if err != nil {
		return fmt.Errorf("DH operation 2: %w", err)
	}
	defer Zeroize(secret2)

	if !ConstantTimeCompare(secret1, secret2) {
		return fmt.Errorf("shared secrets do not match")
	}
	return nil
}

func pairwiseCheckMLKEM(s *Suite, kp *MLKEMKeyPair) error {
	if kp == nil || kp.EncapsulationKey == nil || kp.DecapsulationKey == nil {
		return fmt.Errorf("invalid key pair")
	}

	ct, ss1, err := s.MLKEMEncapsulate(kp.EncapsulationKey)
	if err != nil {
		return fmt.Errorf("encapsulation: %w", err)
	}
	defer Zeroize(ss1)

	ss2, err := s.MLKEMDecapsulate(kp.DecapsulationKey, ct)
	if err != nil {
		return fmt.Errorf("decapsulation: %w", err)
	}
	defer Zeroize(ss2)

	if !ConstantTimeCompare(ss1, ss2) {
		return fmt.Errorf("shared secrets do not match")
	}
	if isAllZero(ss1) {
		return fmt.Errorf("shared secret is all zeros")
	}
	return nil
}

// unpairedX25519 generates a key pair without recursing into the pairwise test.
func (s *Suite) unpairedX25519() (*X25519KeyPair, error) {
	priv := make([]byte, 32)
	defer Zeroize(priv)
	if err := s.Random(priv); err != nil {
		return nil, err
	}
	return s.NewX25519KeyPairFromBytes(priv)
}
