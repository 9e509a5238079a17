package quant

import (
	"math"
	"testing"
)

func TestTCQEncode_EmptyInput(t *testing.T) {
	r := TCQEncode(nil, 1.0, 0.1, 2.0)
	if len(r.Indices) != 0 {
		t.Errorf("TCQEncode(nil) returned %d indices, want 0", len(r.Indices))
	}
}

func TestTCQEncode_IndexCountMatchesInput(t *testing.T) {
	coeffs := []float64{1.2, -3.4, 0.1, 5.6, -0.2, 2.2}
	r := TCQEncode(coeffs, 0.5, 0.05, 4.0)
	if len(r.Indices) != len(coeffs) {
		t.Fatalf("got %d indices, want %d", len(r.Indices), len(coeffs))
	}
}

func TestTCQEncode_DistortionAndRateNonNegative(t *testing.T) {
	coeffs := []float64{10, -20, 30, -40, 5}
	r := TCQEncode(coeffs, 2.0, 0.1, 4.0)
	if r.Distortion < 0 {
		t.Errorf("Distortion = %v, want >= 0", r.Distortion)
	}
	if r.RateBits < 0 {
		t.Errorf("RateBits = %v, want >= 0", r.RateBits)
	}
}

func TestTCQEncode_SingleCoefficient(t *testing.T) {
	r := TCQEncode([]float64{7.0}, 1.0, 0.1, 2.0)
	if len(r.Indices) != 1 {
		t.Fatalf("got %d indices, want 1", len(r.Indices))
	}
	// With a single stage there is no predecessor, so the reported
	// distortion must equal the squared error of the chosen index alone.
	recon := float64(r.Indices[0]) * 1.0
	want := (7.0 - recon) * (7.0 - recon)
	if math.Abs(r.Distortion-want) > 1e-9 {
		t.Errorf("Distortion = %v, want %v", r.Distortion, want)
	}
}

func TestTCQEncode_ZeroCoefficientsQuantizeNearZero(t *testing.T) {
	coeffs := make([]float64, 8)
	r := TCQEncode(coeffs, 1.0, 0.1, 2.0)
	for i, q := range r.Indices {
		if q < -1 || q > 1 {
			t.Errorf("Indices[%d] = %d, want in {-1,0,1} for all-zero input", i, q)
		}
	}
}

func TestTCQEncode_PruneThresholdBelowOneIsClamped(t *testing.T) {
	coeffs := []float64{1, 2, 3, 4}
	// A threshold under 1 would prune every predecessor at some stages;
	// the search must still produce a full, valid index sequence.
	r := TCQEncode(coeffs, 1.0, 0.1, 0.0)
	if len(r.Indices) != len(coeffs) {
		t.Fatalf("got %d indices, want %d", len(r.Indices), len(coeffs))
	}
}
