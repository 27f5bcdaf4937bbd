package featurize

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestHashingEmpty(t *testing.T) {
	h, err := NewHashing(16, 3)
	if err != nil {
		t.Fatal(err)
	}

	features := h.Features([]string{"", "   "})
	if len(features) != 32 {
		t.Fatalf("features: want(32) have(%v)", len(features))
	}
	for i, f := range features {
		if f != 0 {
			t.Errorf("features[%v]: want(0) have(%v)", i, f)
		}
	}
}

func TestHashingNormalized(t *testing.T) {
	h, err := NewHashing(32, 7)
	if err != nil {
		t.Fatal(err)
	}

	texts := []string{"go north", "Go  North", "open the door"}
	features := h.Features(texts)

	for i := range texts {
		row := features[i*32 : (i+1)*32]
		if norm := floats.Norm(row, 2); math.Abs(norm-1) > 1e-12 {
			t.Errorf("row %v: want unit norm have %v", i, norm)
		}
	}

	// Case and whitespace are ignored
	if !floats.Equal(features[:32], features[32:64]) {
		t.Errorf("features: case or whitespace changed the features")
	}
}

func TestHashingBuckets(t *testing.T) {
	tokens := []string{"a", "go", "north", "go north", "ünïcödé", "door 42"}
	for _, dims := range []int{1, 3, 16, 1000} {
		h, err := NewHashing(dims, 11)
		if err != nil {
			t.Fatal(err)
		}
		again, _ := NewHashing(dims, 11)

		for _, token := range tokens {
			b := h.bucket(token)
			if b < 0 || b >= dims {
				t.Errorf("bucket(%q): %v out of range [0, %v)", token, b, dims)
			}
			if b2 := again.bucket(token); b2 != b {
				t.Errorf("bucket(%q): same seed gave buckets %v and %v",
					token, b, b2)
			}
		}
	}
}

func TestHashingInvalidDims(t *testing.T) {
	if _, err := NewHashing(0, 0); err == nil {
		t.Error("newHashing: expected error for zero dims")
	}
}

func BenchmarkHashing(b *testing.B) {
	h, _ := NewHashing(128, 0)
	texts := []string{"you are in a dark room with a locked door to the north"}

	for i := 0; i < b.N; i++ {
		h.Features(texts)
	}
}
