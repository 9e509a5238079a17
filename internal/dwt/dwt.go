// Package dwt implements the lifting-based Discrete Wavelet Transform used
// by JPEG 2000's Part 1 wavelet filters:
//
//   - 5/3, integer lifting, exactly invertible (the lossless path)
//   - 9/7, floating-point lifting, the irreversible lossy path
//
// Part 2's arbitrary-kernel convolution path lives in kernel.go; this file
// covers only the two standard, fixed-tap filters.
package dwt

import (
	"math"
	"sync"
)

// int32Pool and float64Pool recycle the scratch buffers deinterleave/
// interleave and the 2D row/column transforms need, so a tile's worth of
// wavelet passes doesn't churn the allocator one slice per row/column.
var (
	int32Pool = sync.Pool{
		New: func() interface{} {
			buf := make([]int32, 4096)
			return &buf
		},
	}
	float64Pool = sync.Pool{
		New: func() interface{} {
			buf := make([]float64, 4096)
			return &buf
		},
	}
)

func borrowInt32(n int) []int32 {
	bp := int32Pool.Get().(*[]int32)
	buf := *bp
	if cap(buf) < n {
		buf = make([]int32, n)
		*bp = buf
	}
	return buf[:n]
}

func releaseInt32(buf []int32) {
	int32Pool.Put(&buf)
}

func borrowFloat64(n int) []float64 {
	bp := float64Pool.Get().(*[]float64)
	buf := *bp
	if cap(buf) < n {
		buf = make([]float64, n)
		*bp = buf
	}
	return buf[:n]
}

func releaseFloat64(buf []float64) {
	float64Pool.Put(&buf)
}

// Transform type identifiers for callers that need to name a filter rather
// than call its entry points directly.
const (
	Reversible53 = iota
	Irreversible97
)

// Forward53 applies the forward 5/3 reversible lifting transform to the
// first length samples of data, in place, then separates the result into
// low-pass/high-pass halves (see deinterleave). Exactly invertible by
// Inverse53 over the integers, no rounding loss.
func Forward53(data []int32, length int) {
	if length < 2 {
		return
	}

	// Predict: odd samples become high-pass detail relative to their even
	// neighbours. H[n] = X[2n+1] - floor((X[2n] + X[2n+2]) / 2).
	for i := 1; i < length-1; i += 2 {
		data[i] -= (data[i-1] + data[i+1]) >> 1
	}
	if length&1 == 0 {
		// No right neighbour for the last odd sample: symmetric extension
		// folds X[2n+2] back onto X[2n].
		data[length-1] -= data[length-2]
	}

	// Update: even samples absorb a rounded quarter of their two
	// surrounding (already-updated) high-pass neighbours.
	data[0] += (2*data[1] + 2) >> 2
	for i := 2; i < length-1; i += 2 {
		data[i] += (data[i-1] + data[i+1] + 2) >> 2
	}
	if length&1 != 0 {
		data[length-1] += (2*data[length-2] + 2) >> 2
	}

	deinterleave(data, length)
}

// Inverse53 reverses Forward53 exactly.
func Inverse53(data []int32, length int) {
	if length < 2 {
		return
	}

	interleave(data, length)

	data[0] -= (2*data[1] + 2) >> 2
	for i := 2; i < length-1; i += 2 {
		data[i] -= (data[i-1] + data[i+1] + 2) >> 2
	}
	if length&1 != 0 {
		data[length-1] -= (2*data[length-2] + 2) >> 2
	}

	for i := 1; i < length-1; i += 2 {
		data[i] += (data[i-1] + data[i+1]) >> 1
	}
	if length&1 == 0 {
		data[length-1] += data[length-2]
	}
}

// 9/7 lifting coefficients, ITU-T T.800 Annex F.4.
const (
	alpha97 = -1.586134342059924
	beta97  = -0.052980118572961
	gamma97 = 0.882911075530934
	delta97 = 0.443506852043971
	k97     = 1.230174104914001
	k97Inv  = 0.812893066115961
)

// lift97 applies one predict-or-update lifting pass with coefficient c to
// the first length samples of data, treating evens and odds symmetrically
// at the boundary (mirroring the missing neighbour rather than padding with
// zero). updateOdd selects which phase is updated (true: odd samples,
// predict; false: even samples, update); the other phase stays fixed and
// supplies each updated sample's neighbours.
func lift97(data []float64, length int, c float64, updateOdd bool) {
	if updateOdd {
		for i := 1; i < length-1; i += 2 {
			data[i] += c * (data[i-1] + data[i+1])
		}
		if length&1 == 0 {
			data[length-1] += 2 * c * data[length-2]
		}
		return
	}
	data[0] += 2 * c * data[1]
	for i := 2; i < length-1; i += 2 {
		data[i] += c * (data[i-1] + data[i+1])
	}
	if length&1 != 0 {
		data[length-1] += 2 * c * data[length-2]
	}
}

// Forward97 applies the forward 9/7 irreversible lifting transform (predict
// alpha, update beta, predict gamma, update delta, then the K/1-K scaling)
// to the first length samples of data, in place, then deinterleaves into
// low-pass/high-pass halves.
func Forward97(data []float64, length int) {
	if length < 2 {
		return
	}

	lift97(data, length, alpha97, true)
	lift97(data, length, beta97, false)
	lift97(data, length, gamma97, true)
	lift97(data, length, delta97, false)

	for i := 0; i < length; i += 2 {
		data[i] *= k97Inv
	}
	for i := 1; i < length; i += 2 {
		data[i] *= k97
	}

	deinterleaveFloat(data, length)
}

// Inverse97 reverses Forward97, up to floating-point rounding.
func Inverse97(data []float64, length int) {
	if length < 2 {
		return
	}

	interleaveFloat(data, length)

	for i := 0; i < length; i += 2 {
		data[i] *= k97
	}
	for i := 1; i < length; i += 2 {
		data[i] *= k97Inv
	}

	lift97(data, length, -delta97, false)
	lift97(data, length, -gamma97, true)
	lift97(data, length, -beta97, false)
	lift97(data, length, -alpha97, true)
}

// deinterleave rearranges the first length samples of data from
// even/odd-interleaved to separated low-pass-then-high-pass order.
func deinterleave(data []int32, length int) {
	if length < 2 {
		return
	}
	scratch := borrowInt32(length)
	defer releaseInt32(scratch)

	half := (length + 1) / 2
	for i, j := 0, 0; i < length; i, j = i+2, j+1 {
		scratch[j] = data[i]
	}
	for i, j := 1, half; i < length; i, j = i+2, j+1 {
		scratch[j] = data[i]
	}
	copy(data[:length], scratch[:length])
}

// interleave undoes deinterleave.
func interleave(data []int32, length int) {
	if length < 2 {
		return
	}
	scratch := borrowInt32(length)
	defer releaseInt32(scratch)
	copy(scratch[:length], data[:length])

	half := (length + 1) / 2
	for i, j := 0, 0; j < half; i, j = i+2, j+1 {
		data[i] = scratch[j]
	}
	for i, j := 1, half; j < length; i, j = i+2, j+1 {
		data[i] = scratch[j]
	}
}

// deinterleaveFloat is deinterleave's float64 counterpart.
func deinterleaveFloat(data []float64, length int) {
	if length < 2 {
		return
	}
	scratch := borrowFloat64(length)
	defer releaseFloat64(scratch)

	half := (length + 1) / 2
	for i, j := 0, 0; i < length; i, j = i+2, j+1 {
		scratch[j] = data[i]
	}
	for i, j := 1, half; i < length; i, j = i+2, j+1 {
		scratch[j] = data[i]
	}
	copy(data[:length], scratch[:length])
}

// interleaveFloat undoes deinterleaveFloat.
func interleaveFloat(data []float64, length int) {
	if length < 2 {
		return
	}
	scratch := borrowFloat64(length)
	defer releaseFloat64(scratch)
	copy(scratch[:length], data[:length])

	half := (length + 1) / 2
	for i, j := 0, 0; j < half; i, j = i+2, j+1 {
		data[i] = scratch[j]
	}
	for i, j := 1, half; j < length; i, j = i+2, j+1 {
		data[i] = scratch[j]
	}
}

// Forward2D53 applies Forward53 to every row then every column of a
// width x height row-major image, one level of 2D 5/3 analysis.
func Forward2D53(data []int32, width, height int) {
	for y := 0; y < height; y++ {
		Forward53(data[y*width:(y+1)*width], width)
	}

	col := borrowInt32(height)
	defer releaseInt32(col)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		Forward53(col, height)
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}
}

// Inverse2D53 reverses Forward2D53: columns first, then rows.
func Inverse2D53(data []int32, width, height int) {
	col := borrowInt32(height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		Inverse53(col, height)
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}
	releaseInt32(col)

	for y := 0; y < height; y++ {
		Inverse53(data[y*width:(y+1)*width], width)
	}
}

// Forward2D97 is Forward2D53's 9/7 counterpart.
func Forward2D97(data []float64, width, height int) {
	for y := 0; y < height; y++ {
		Forward97(data[y*width:(y+1)*width], width)
	}

	col := borrowFloat64(height)
	defer releaseFloat64(col)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		Forward97(col, height)
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}
}

// Inverse2D97 reverses Forward2D97: columns first, then rows.
func Inverse2D97(data []float64, width, height int) {
	col := borrowFloat64(height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		Inverse97(col, height)
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}
	releaseFloat64(col)

	for y := 0; y < height; y++ {
		Inverse97(data[y*width:(y+1)*width], width)
	}
}

// SubbandBounds is a subband's rectangular extent within a resolution
// level's coefficient array, in that level's own coordinate space.
type SubbandBounds struct {
	X0, Y0, X1, Y1 int
}

// CalculateSubbands returns the LL/HL/LH/HH rectangles produced by one
// level of 2D analysis on a width x height image at decomposition depth
// level (0 = finest).
func CalculateSubbands(width, height, level int) (ll, hl, lh, hh SubbandBounds) {
	w := width >> level
	h := height >> level
	halfW := (w + 1) / 2
	halfH := (h + 1) / 2

	ll = SubbandBounds{0, 0, halfW, halfH}
	hl = SubbandBounds{halfW, 0, w, halfH}
	lh = SubbandBounds{0, halfH, halfW, h}
	hh = SubbandBounds{halfW, halfH, w, h}
	return
}

// Quantize scalar-quantizes wavelet coefficients with the given step size,
// rounding to nearest with ties away from zero.
func Quantize(data []float64, stepSize float64) []int32 {
	out := make([]int32, len(data))
	invStep := 1.0 / stepSize
	for i, v := range data {
		if v >= 0 {
			out[i] = int32(math.Floor(v*invStep + 0.5))
		} else {
			out[i] = int32(math.Ceil(v*invStep - 0.5))
		}
	}
	return out
}

// Dequantize reconstructs approximate coefficients from quantized indices.
func Dequantize(data []int32, stepSize float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v) * stepSize
	}
	return out
}

// levelDims returns, for each of levels decomposition levels applied to a
// width x height image, the (w, h) the LL subband carried into that level.
func levelDims(width, height, levels int) []struct{ w, h int } {
	dims := make([]struct{ w, h int }, levels)
	w, h := width, height
	for level := 0; level < levels; level++ {
		dims[level] = struct{ w, h int }{w, h}
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	return dims
}

// DecomposeMultiLevel53 recursively applies Forward2D53 to the LL subband,
// producing a full Mallat-tree decomposition to the given depth.
func DecomposeMultiLevel53(data []int32, width, height, levels int) {
	w, h := width, height
	for level := 0; level < levels; level++ {
		Forward2D53(data, w, h)
		w, h = (w+1)/2, (h+1)/2
	}
}

// ReconstructMultiLevel53 reverses DecomposeMultiLevel53, synthesizing from
// the coarsest level back to the finest.
func ReconstructMultiLevel53(data []int32, width, height, levels int) {
	dims := levelDims(width, height, levels)
	for level := levels - 1; level >= 0; level-- {
		Inverse2D53(data, dims[level].w, dims[level].h)
	}
}

// DecomposeMultiLevel97 is DecomposeMultiLevel53's 9/7 counterpart.
func DecomposeMultiLevel97(data []float64, width, height, levels int) {
	w, h := width, height
	for level := 0; level < levels; level++ {
		Forward2D97(data, w, h)
		w, h = (w+1)/2, (h+1)/2
	}
}

// ReconstructMultiLevel97 reverses DecomposeMultiLevel97.
func ReconstructMultiLevel97(data []float64, width, height, levels int) {
	dims := levelDims(width, height, levels)
	for level := levels - 1; level >= 0; level-- {
		Inverse2D97(data, dims[level].w, dims[level].h)
	}
}
