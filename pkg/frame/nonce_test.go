package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

func TestNonceSequenceLayout(t *testing.T) {
	seq := NewNonceSequence(constants.NoncePrefixResponder, 0)

	nonce := make([]byte, constants.AESNonceSize)
	if err := seq.Next(nonce); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	want := []byte{0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(nonce, want) {
		t.Errorf("first nonce = %x, want %x", nonce, want)
	}

	if err := seq.Next(nonce); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	want[11] = 1
	if !bytes.Equal(nonce, want) {
		t.Errorf("second nonce = %x, want %x", nonce, want)
	}
	if counterOf(nonce) != 1 {
		t.Errorf("counterOf = %d, want 1", counterOf(nonce))
	}
}

func TestNonceSequenceUnique(t *testing.T) {
	a := NewNonceSequence(constants.NoncePrefixInitiator, 0)
	b := NewNonceSequence(constants.NoncePrefixResponder, 0)

	seen := make(map[string]bool)
	nonce := make([]byte, constants.AESNonceSize)
	for i := 0; i < 1000; i++ {
		for _, seq := range []*NonceSequence{a, b} {
			if err := seq.Next(nonce); err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if seen[string(nonce)] {
				t.Fatalf("nonce %x repeated", nonce)
			}
			seen[string(nonce)] = true
		}
	}
}

func TestNonceSequenceExhaustion(t *testing.T) {
	seq := NewNonceSequence(constants.NoncePrefixInitiator, 3)
	nonce := make([]byte, constants.AESNonceSize)

	for i := 0; i < 3; i++ {
		if err := seq.Next(nonce); err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
	}

	before := append([]byte(nil), nonce...)
	if err := seq.Next(nonce); !errors.Is(err, qerrors.ErrNonceExhausted) {
		t.Fatalf("expected ErrNonceExhausted, got %v", err)
	}
	if !bytes.Equal(nonce, before) {
		t.Error("exhausted Next must not write a nonce")
	}

	seq.Reset()
	if err := seq.Next(nonce); err != nil {
		t.Fatalf("Next after Reset failed: %v", err)
	}
}

func TestNonceSequenceShortBuffer(t *testing.T) {
	seq := NewNonceSequence(constants.NoncePrefixInitiator, 0)
	if err := seq.Next(make([]byte, 8)); !errors.Is(err, qerrors.ErrInvalidNonce) {
		t.Errorf("expected ErrInvalidNonce, got %v", err)
	}
	if seq.Counter() != 0 {
		t.Error("failed Next must not advance the counter")
	}
}
