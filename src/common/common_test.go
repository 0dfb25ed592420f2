package common

import (
	"math/rand"
	"strings"
	"testing"
)

func TestHasZeroPrefix(t *testing.T) {
	if !HasZeroPrefix("00ab", 2) {
		t.Fatal("00ab should have 2 leading zeros")
	}
	if HasZeroPrefix("0a0b", 2) {
		t.Fatal("0a0b should not have 2 leading zeros")
	}
	if HasZeroPrefix("0", 2) {
		t.Fatal("short string cannot satisfy prefix")
	}
	if !HasZeroPrefix("ff", 0) {
		t.Fatal("zero difficulty is always satisfied")
	}
}

func TestIDGeneratorDeterministic(t *testing.T) {
	a := NewIDGenerator(rand.New(rand.NewSource(7)))
	b := NewIDGenerator(rand.New(rand.NewSource(7)))

	for i := 0; i < 5; i++ {
		x, y := a.Next("T"), b.Next("T")
		if x != y {
			t.Fatalf("ids diverged: %s != %s", x, y)
		}
		if !strings.HasPrefix(x, "T-") {
			t.Fatalf("missing prefix: %s", x)
		}
	}
}

func TestIsSimErr(t *testing.T) {
	err := NewSimErr("Block", InvalidProof, "abc")
	if !IsSimErr(err, InvalidProof) {
		t.Fatal("expected InvalidProof")
	}
	if IsSimErr(err, HashMismatch) {
		t.Fatal("unexpected HashMismatch")
	}
}

func TestEncodeSortsMapKeys(t *testing.T) {
	in := map[string]int{"zeta": 1, "alpha": 2, "mu": 3}

	first, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(first)
	if !(strings.Index(s, "alpha") < strings.Index(s, "mu") && strings.Index(s, "mu") < strings.Index(s, "zeta")) {
		t.Fatalf("keys are not sorted: %s", s)
	}

	for i := 0; i < 10; i++ {
		again, _ := Encode(in)
		if string(again) != s {
			t.Fatalf("encoding is not stable: %s vs %s", again, s)
		}
	}

	var out map[string]int
	if err := Decode(first, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 3 || out["alpha"] != 2 || out["zeta"] != 1 {
		t.Fatalf("unexpected decoded map %v", out)
	}
}
