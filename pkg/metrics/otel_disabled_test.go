//go:build !otel

package metrics

import (
	"errors"
	"testing"
)

func TestOTelTracerNotBuilt(t *testing.T) {
	if OTelEnabled() {
		t.Fatal("OTelEnabled should be false without the otel tag")
	}
	tr, err := NewOTelTracer("quantum-call")
	if !errors.Is(err, ErrOTelNotBuilt) {
		t.Fatalf("expected ErrOTelNotBuilt, got %v", err)
	}
	if tr != nil {
		t.Error("expected nil tracer")
	}
}
