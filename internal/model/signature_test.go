package model

import (
	"bytes"
	"testing"
)

func TestSignatureBytesLayout(t *testing.T) {
	var sig Signature
	for i := range sig.R {
		sig.R[i] = 0x11
		sig.S[i] = 0x22
	}
	sig.V = 28

	b := sig.Bytes()
	if len(b) != 65 {
		t.Fatalf("expected 65 bytes, got %d", len(b))
	}
	if !bytes.Equal(b[:32], sig.R[:]) {
		t.Fatalf("r mismatch")
	}
	if !bytes.Equal(b[32:64], sig.S[:]) {
		t.Fatalf("s mismatch")
	}
	if b[64] != 28 {
		t.Fatalf("v mismatch: %d", b[64])
	}
}
