package dwt

import "fmt"

// Boundary selects the extension mode used by the arbitrary-kernel
// convolution path at signal edges.
type Boundary int

const (
	// BoundarySymmetric mirrors with the edge sample repeated:
	// extended(-k-1) = extended(k), extended(N+k) = extended(N-1-k).
	BoundarySymmetric Boundary = iota
	// BoundaryPeriodic wraps modulo N.
	BoundaryPeriodic
	// BoundaryZero pads with zeros outside [0, N).
	BoundaryZero
)

// KernelID tags the well-known kernels so the engine can dispatch to a
// dedicated lifting implementation instead of generic convolution; per
// DESIGN NOTES §9, modeled as a tagged variant rather than open
// sub-typing.
type KernelID int

const (
	KernelLeGall53 KernelID = iota
	KernelCDF97
	KernelHaar
	KernelCustom
)

// Kernel is an immutable wavelet filter-bank descriptor. For the two
// standard kernels, AnalysisLow/AnalysisHigh/SynthesisLow/SynthesisHigh
// are left empty and the engine dispatches to Forward53/Forward97
// directly; they are populated for convolution kernels such as
// KernelCustom. The ADS marker does not carry these coefficients: it only
// signals that a custom decomposition is in use, so both sides hold the
// taps out of band.
type Kernel struct {
	ID KernelID

	// AnalysisLow, AnalysisHigh, SynthesisLow, SynthesisHigh are the
	// filter-tap sequences for the arbitrary-kernel convolution path.
	// Centre tap index is len(taps)/2 per spec §4.3.
	AnalysisLow, AnalysisHigh   []float64
	SynthesisLow, SynthesisHigh []float64

	// Reversible marks whether this kernel guarantees exact integer
	// round-trip (true only for LeGall53 and an integer-tap custom
	// kernel explicitly marked as such).
	Reversible bool
}

// LeGall53 returns the descriptor for the standard reversible 5/3 kernel.
func LeGall53() Kernel { return Kernel{ID: KernelLeGall53, Reversible: true} }

// CDF97 returns the descriptor for the standard irreversible 9/7 kernel.
func CDF97() Kernel { return Kernel{ID: KernelCDF97, Reversible: false} }

// extendIndex maps a possibly out-of-range index into [0, n) under the
// given boundary mode. Returns (0, true) for BoundaryZero when the
// sample should be treated as zero.
func extendIndex(i, n int, b Boundary) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	switch b {
	case BoundaryZero:
		if i < 0 || i >= n {
			return 0, true
		}
		return i, false
	case BoundaryPeriodic:
		m := i % n
		if m < 0 {
			m += n
		}
		return m, false
	default: // BoundarySymmetric
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			}
			if i >= n {
				i = 2*n - i - 1
			}
		}
		return i, false
	}
}

// Convolve1D performs direct analysis convolution + downsample-by-2 for an
// arbitrary kernel, per spec §4.3's Part 2 path. It returns the lowpass
// and highpass bands (lengths ceil(n/2), floor(n/2)).
func Convolve1D(signal []float64, k Kernel, boundary Boundary) (low, high []float64) {
	n := len(signal)
	low = make([]float64, (n+1)/2)
	high = make([]float64, n/2)

	sample := func(i int) float64 {
		idx, isZero := extendIndex(i, n, boundary)
		if isZero {
			return 0
		}
		return signal[idx]
	}

	convolveAt := func(taps []float64, outIdx int) float64 {
		centre := len(taps) / 2
		sum := 0.0
		for t, coef := range taps {
			sum += coef * sample(2*outIdx+t-centre)
		}
		return sum
	}

	for i := range low {
		low[i] = convolveAt(k.AnalysisLow, i)
	}
	for i := range high {
		high[i] = convolveAt(k.AnalysisHigh, i)
	}
	return low, high
}

// Synthesize1D performs the inverse: upsample both bands by 2 (zero
// insertion), convolve with the synthesis filters, and sum, per spec
// §4.3's 1-D inverse description.
func Synthesize1D(low, high []float64, k Kernel, boundary Boundary) ([]float64, error) {
	if abs(len(low)-len(high)) > 1 {
		return nil, fmt.Errorf("dwt: synthesize1d: mismatched band lengths low=%d high=%d", len(low), len(high))
	}
	n := len(low) + len(high)
	out := make([]float64, n)

	upsampled := func(band []float64, idx int) float64 {
		if idx%2 != 0 {
			return 0
		}
		if len(band) == 0 {
			return 0
		}
		j, isZero := extendIndex(idx/2, len(band), boundary)
		if isZero {
			return 0
		}
		return band[j]
	}

	for i := 0; i < n; i++ {
		centreL := len(k.SynthesisLow) / 2
		centreH := len(k.SynthesisHigh) / 2
		sum := 0.0
		for t, coef := range k.SynthesisLow {
			sum += coef * upsampled(low, i-t+centreL)
		}
		for t, coef := range k.SynthesisHigh {
			sum += coef * upsampled(high, i-t+centreH)
		}
		out[i] = sum
	}
	return out, nil
}

// Forward2DCustom performs one level of 2D analysis with an arbitrary
// kernel, packing LL/HL/LH/HH into the same low-half/high-half-per-axis
// in-place layout Forward2D53/Forward2D97 use, so downstream subband
// addressing (SubbandBounds, code-block geometry) is unchanged.
func Forward2DCustom(data []float64, width, height int, k Kernel, boundary Boundary) {
	row := make([]float64, width)
	for y := 0; y < height; y++ {
		copy(row, data[y*width:(y+1)*width])
		low, high := Convolve1D(row, k, boundary)
		copy(data[y*width:], low)
		copy(data[y*width+len(low):], high)
	}

	col := make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		low, high := Convolve1D(col, k, boundary)
		for y := 0; y < len(low); y++ {
			data[y*width+x] = low[y]
		}
		for y := 0; y < len(high); y++ {
			data[(len(low)+y)*width+x] = high[y]
		}
	}
}

// Inverse2DCustom reverses Forward2DCustom for one level.
func Inverse2DCustom(data []float64, width, height int, k Kernel, boundary Boundary) error {
	lowH := (height + 1) / 2
	col := make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		out, err := Synthesize1D(col[:lowH], col[lowH:], k, boundary)
		if err != nil {
			return err
		}
		for y := 0; y < height; y++ {
			data[y*width+x] = out[y]
		}
	}

	lowW := (width + 1) / 2
	row := make([]float64, width)
	for y := 0; y < height; y++ {
		copy(row, data[y*width:(y+1)*width])
		out, err := Synthesize1D(row[:lowW], row[lowW:], k, boundary)
		if err != nil {
			return err
		}
		copy(data[y*width:(y+1)*width], out)
	}
	return nil
}

// AnalyzeMultiLevelCustom applies Forward2DCustom recursively to the LL
// subband, mirroring DecomposeMultiLevel97's Mallat recursion.
func AnalyzeMultiLevelCustom(data []float64, width, height, levels int, k Kernel, boundary Boundary) {
	w, h := width, height
	for level := 0; level < levels; level++ {
		Forward2DCustom(data, w, h, k, boundary)
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
}

// SynthesizeMultiLevelCustom reverses AnalyzeMultiLevelCustom.
func SynthesizeMultiLevelCustom(data []float64, width, height, levels int, k Kernel, boundary Boundary) error {
	dims := make([]struct{ w, h int }, levels)
	w, h := width, height
	for level := 0; level < levels; level++ {
		dims[level] = struct{ w, h int }{w, h}
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	for level := levels - 1; level >= 0; level-- {
		if err := Inverse2DCustom(data, dims[level].w, dims[level].h, k, boundary); err != nil {
			return err
		}
	}
	return nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
