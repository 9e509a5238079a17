//go:build highway

package dwt

// This file wires github.com/ajroetker/go-highway's hwy/contrib/wavelet
// package in as an alternate SIMD fast path alongside the hand-written
// platform-specific lifting in dwt_amd64.go/dwt_arm64.go/dwt_generic.go.
// It is opt-in via the "highway" build tag: the hand-written path remains
// the default so existing benchmarks and golden outputs are unaffected.
//
// go-highway's own doc.go notes its 9/7 transform uses standard K
// normalization rather than JPEG 2000's 2/K convention; HighwayForward2D97
// and HighwayInverse2D97 below apply the compensating scale at the call
// boundary instead of inside the hot loop.

import (
	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
	"github.com/ajroetker/go-highway/hwy/contrib/wavelet"
)

// k97Norm is the squared ratio between go-highway's internal 9/7
// normalization and JPEG 2000's 2/K convention (k97/k97Inv are defined in
// dwt.go).
const k97Norm = k97 * k97

var zeroPhase wavelet.PhaseFunc = func(level int) (int, int) { return 0, 0 }

// HighwayForward2D53 decomposes img in place using go-highway's vectorized
// CDF 5/3 kernel instead of the scalar Forward2D53 lifting loop.
func HighwayForward2D53(img *hwyimage.Image[int32], levels int) {
	wavelet.Analyze2D_53(img, levels, zeroPhase)
}

// HighwayInverse2D53 is the synthesis counterpart of HighwayForward2D53.
func HighwayInverse2D53(img *hwyimage.Image[int32], levels int) {
	wavelet.Synthesize2D_53(img, levels, zeroPhase)
}

// HighwayForward2D97 decomposes img using go-highway's vectorized CDF 9/7
// kernel, rescaling afterwards to match JPEG 2000's 2/K normalization.
func HighwayForward2D97(img *hwyimage.Image[float64], levels int) {
	wavelet.Analyze2D_97(img, levels, zeroPhase)
	rescale2D(img, 1/k97Norm)
}

// HighwayInverse2D97 is the synthesis counterpart of HighwayForward2D97.
func HighwayInverse2D97(img *hwyimage.Image[float64], levels int) {
	rescale2D(img, k97Norm)
	wavelet.Synthesize2D_97(img, levels, zeroPhase)
}

func rescale2D(img *hwyimage.Image[float64], factor float64) {
	h := img.Height()
	for y := 0; y < h; y++ {
		row := img.RowSlice(y)
		for x := range row {
			row[x] *= factor
		}
	}
}
