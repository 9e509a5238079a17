// Package entropy - t1.go implements Tier-1 (EBCOT) coding.
//
// EBCOT (Embedded Block Coding with Optimized Truncation) is the
// entropy coding algorithm used in JPEG 2000. It operates on
// code-blocks (typically 64x64 or 32x32) and produces embedded
// bit-streams that can be truncated at various points.
package entropy

import (
	"math"
	"sync"
)

// t1Pool provides pooled T1 encoders to reduce allocations.
var t1Pool = sync.Pool{
	New: func() interface{} {
		t := &T1{
			width:  64,
			height: 64,
			data:   make([]int32, 64*64),
			flags:  make([]T1Flags, (64+2)*(64+2)),
			mqEnc:  NewMQEncoder(),
			mqBuf:  make([]byte, 1, 8192),
		}
		t.mqBuf[0] = 0
		return t
	},
}

// GetT1 returns a pooled T1 encoder, resizing if necessary.
func GetT1(width, height int) *T1 {
	t := t1Pool.Get().(*T1)
	t.resize(width, height)
	return t
}

// PutT1 returns a T1 encoder to the pool.
func PutT1(t *T1) {
	t1Pool.Put(t)
}

// Resize adjusts the T1 to the given dimensions and clears state, for
// reuse across multiple code-blocks.
func (t *T1) Resize(width, height int) {
	t.resize(width, height)
}

func (t *T1) resize(width, height int) {
	t.width = width
	t.height = height

	dataSize := width * height
	if cap(t.data) < dataSize {
		t.data = make([]int32, dataSize)
	} else {
		t.data = t.data[:dataSize]
	}

	flagsSize := (width + 2) * (height + 2)
	if cap(t.flags) < flagsSize {
		t.flags = make([]T1Flags, flagsSize)
	} else {
		t.flags = t.flags[:flagsSize]
		clearFlagsFast(t.flags)
	}
}

// T1Flags holds the significance and refinement state of a coefficient.
type T1Flags uint8

const (
	T1Sig    T1Flags = 1 << iota // coefficient is significant
	T1Visit                      // coefficient was visited this bit-plane
	T1Refine                     // coefficient needs magnitude refinement
	T1SignNeg                    // coefficient's sign is negative
	T1SigN                       // north neighbor is significant
	T1SigS                       // south neighbor is significant
	T1SigE                       // east neighbor is significant
	T1SigW                       // west neighbor is significant
)

// T1 implements Tier-1 EBCOT coding for a single code-block.
type T1 struct {
	width  int
	height int

	data  []int32   // coefficient magnitudes
	flags []T1Flags // one-pixel border around the code-block

	mqEnc *MQEncoder
	mqDec *MQDecoder

	bandType int
	numBPS   int

	// Inlined MQ encoder state, mirroring MQEncoder's fields, used by
	// the *Inlined hot-path methods to avoid per-call method overhead.
	mqA        uint32
	mqC        uint32
	mqCT       uint32
	mqBuf      []byte
	mqBp       int
	mqContexts [NumContexts]uint8
}

// Band type constants, indexing lutZCCtx's four 256-entry blocks.
const (
	BandLL = iota
	BandHL
	BandLH
	BandHH
)

// NewT1 creates a new T1 encoder/decoder for the given code-block size.
func NewT1(width, height int) *T1 {
	t := &T1{
		width:  width,
		height: height,
		data:   make([]int32, width*height),
		flags:  make([]T1Flags, (width+2)*(height+2)),
		mqEnc:  NewMQEncoder(),
		mqBuf:  make([]byte, 1, 8192),
	}
	t.mqBuf[0] = 0
	return t
}

// Reset clears coefficient and flag state for a new code-block.
func (t *T1) Reset() {
	for i := range t.data {
		t.data[i] = 0
	}
	for i := range t.flags {
		t.flags[i] = 0
	}
	t.mqEnc.Reset()
}

func (t *T1) resetMQInlined() {
	t.mqA = 0x8000
	t.mqC = 0
	t.mqCT = 12
	if cap(t.mqBuf) > 0 {
		t.mqBuf = t.mqBuf[:1]
	} else {
		t.mqBuf = make([]byte, 1, 8192)
	}
	t.mqBuf[0] = 0
	t.mqBp = 0
	for i := range t.mqContexts {
		t.mqContexts[i] = 0
	}
	t.mqContexts[CtxUni] = uniformState
}

// mqEncodeInlined mirrors MQEncoder.Encode against the T1's own copy of
// the coder state, avoiding a pointer-indirect method call on the
// per-coefficient hot path.
func (t *T1) mqEncodeInlined(ctx int, decision int) {
	stateIdx := t.mqContexts[ctx]
	qe := mqQe[stateIdx]
	mps := stateIdx & 1

	t.mqA -= qe

	if uint8(decision) == mps {
		if t.mqA&0x8000 == 0 {
			if t.mqA < qe {
				t.mqA = qe
			} else {
				t.mqC += qe
			}
			t.mqContexts[ctx] = mqNMPS[stateIdx]
			t.mqRenormInlined()
		} else {
			t.mqC += qe
		}
		return
	}

	if t.mqA < qe {
		t.mqC += qe
	} else {
		t.mqA = qe
	}
	t.mqContexts[ctx] = mqNLPS[stateIdx]
	t.mqRenormInlined()
}

func (t *T1) mqRenormInlined() {
	for t.mqA&0x8000 == 0 {
		t.mqA <<= 1
		t.mqC <<= 1
		t.mqCT--
		if t.mqCT == 0 {
			t.mqByteOutInlined()
		}
	}
}

func (t *T1) mqByteOutInlined() {
	if t.mqBuf[t.mqBp] == 0xFF {
		t.mqAppendByte(byte(t.mqC>>20), 0xFFFFF, 7)
		return
	}
	if t.mqC&0x8000000 == 0 {
		t.mqAppendByte(byte(t.mqC>>19), 0x7FFFF, 8)
		return
	}
	t.mqBuf[t.mqBp]++
	if t.mqBuf[t.mqBp] == 0xFF {
		t.mqC &= 0x7FFFFFF
		t.mqAppendByte(byte(t.mqC>>20), 0xFFFFF, 7)
		return
	}
	t.mqAppendByte(byte(t.mqC>>19), 0x7FFFF, 8)
}

func (t *T1) mqAppendByte(b byte, mask uint32, ct uint32) {
	t.mqBp++
	if t.mqBp >= len(t.mqBuf) {
		t.mqBuf = append(t.mqBuf, 0)
	}
	t.mqBuf[t.mqBp] = b
	t.mqC &= mask
	t.mqCT = ct
}

func (t *T1) mqFlushInlined() []byte {
	tmp := t.mqC + t.mqA
	t.mqC |= 0xFFFF
	if t.mqC >= tmp {
		t.mqC -= 0x8000
	}

	t.mqC <<= t.mqCT
	t.mqByteOutInlined()
	t.mqC <<= t.mqCT
	t.mqByteOutInlined()

	endPos := t.mqBp + 1
	if endPos > 0 && t.mqBuf[endPos-1] == 0xFF {
		endPos--
	}
	if endPos > 1 {
		return t.mqBuf[1:endPos]
	}
	return nil
}

// SetData sets the coefficient magnitudes for encoding; negative values
// are stored as their absolute value with the sign recorded in flags.
// Flags must already be cleared (resize does this).
func (t *T1) SetData(data []int32) {
	width := t.width
	flags := t.flags
	copy(t.data, data)
	for i, v := range t.data {
		if v < 0 {
			t.data[i] = -v
			idx := (i/width+1)*(width+2) + (i%width + 1)
			flags[idx] |= T1SignNeg
		}
	}
}

// flagIndex maps a code-block coordinate to its slot in the
// border-padded flags array.
func (t *T1) flagIndex(x, y int) int {
	return (y+1)*(t.width+2) + (x + 1)
}

func (t *T1) setFlag(x, y int, flag T1Flags) {
	t.flags[t.flagIndex(x, y)] |= flag
}

func (t *T1) hasFlag(x, y int, flag T1Flags) bool {
	return t.flags[t.flagIndex(x, y)]&flag != 0
}

func (t *T1) clearFlag(x, y int, flag T1Flags) {
	t.flags[t.flagIndex(x, y)] &^= flag
}

// updateNeighborFlags records that (x, y) became significant, so its
// 4-connected neighbors see it on their next context lookup.
func (t *T1) updateNeighborFlags(x, y int) {
	idx := t.flagIndex(x, y)
	stride := t.width + 2

	if y > 0 {
		t.flags[idx-stride] |= T1SigS
	}
	if y < t.height-1 {
		t.flags[idx+stride] |= T1SigN
	}
	if x > 0 {
		t.flags[idx-1] |= T1SigE
	}
	if x < t.width-1 {
		t.flags[idx+1] |= T1SigW
	}
}

// packSignificance packs the 8-connected neighborhood of idx into the
// bit layout lutZCCtx is indexed by: W=0x01 E=0x02 N=0x04 S=0x08,
// NW=0x10 NE=0x20 SW=0x40 SE=0x80.
func packSignificance(flags []T1Flags, idx, stride int) uint8 {
	var packed uint8
	if flags[idx-1]&T1Sig != 0 {
		packed |= 0x01
	}
	if flags[idx+1]&T1Sig != 0 {
		packed |= 0x02
	}
	if flags[idx-stride]&T1Sig != 0 {
		packed |= 0x04
	}
	if flags[idx+stride]&T1Sig != 0 {
		packed |= 0x08
	}
	if flags[idx-stride-1]&T1Sig != 0 {
		packed |= 0x10
	}
	if flags[idx-stride+1]&T1Sig != 0 {
		packed |= 0x20
	}
	if flags[idx+stride-1]&T1Sig != 0 {
		packed |= 0x40
	}
	if flags[idx+stride+1]&T1Sig != 0 {
		packed |= 0x80
	}
	return packed
}

// neighborMask ORs together the flags of all 8 neighbors of idx.
func neighborMask(flags []T1Flags, idx, stride int) T1Flags {
	return flags[idx-1] | flags[idx+1] | flags[idx-stride] | flags[idx+stride] |
		flags[idx-stride-1] | flags[idx-stride+1] | flags[idx+stride-1] | flags[idx+stride+1]
}

// signContribution returns the horizontal and vertical sign-coding
// contributions of idx's immediate neighbors (each in [-2, 2]).
func signContribution(flags []T1Flags, idx, stride int) (hc, vc int) {
	hc = neighborSign(flags[idx-1]) + neighborSign(flags[idx+1])
	vc = neighborSign(flags[idx-stride]) + neighborSign(flags[idx+stride])
	return
}

func neighborSign(f T1Flags) int {
	if f&T1Sig == 0 {
		return 0
	}
	if f&T1SignNeg != 0 {
		return -1
	}
	return 1
}

// getZCContext returns the zero-coding context for (x, y) in the given
// band, via the lutZCCtx table.
func (t *T1) getZCContext(x, y int, bandType int) int {
	idx := t.flagIndex(x, y)
	packed := packSignificance(t.flags, idx, t.width+2)
	return int(lutZCCtx[bandType*256+int(packed)])
}

// getSCContext returns the sign-coding context and XOR prediction for
// the coefficient at (x, y), via lutSCCtx.
func (t *T1) getSCContext(x, y int) (ctx int, pred int) {
	idx := t.flagIndex(x, y)
	hc, vc := signContribution(t.flags, idx, t.width+2)
	return getSCContextFast(hc, vc)
}

// getMRContext returns the magnitude refinement context for (x, y).
func (t *T1) getMRContext(x, y int) int {
	idx := t.flagIndex(x, y)
	if t.flags[idx]&T1Refine != 0 {
		return CtxMag2
	}
	if neighborMask(t.flags, idx, t.width+2)&T1Sig != 0 {
		return CtxMag1
	}
	return CtxMag0
}

// encodeSignInlined encodes the sign of a newly significant coefficient
// using the inlined MQ encoder.
func (t *T1) encodeSignInlined(x, y int) {
	idx := t.flagIndex(x, y)
	hc, vc := signContribution(t.flags, idx, t.width+2)
	ctx, pred := getSCContextFast(hc, vc)

	sign := 0
	if t.flags[idx]&T1SignNeg != 0 {
		sign = 1
	}
	t.mqEncodeInlined(ctx, sign^pred)
}

// encodeSignificancePassInlined runs the significance propagation pass
// using the inlined MQ encoder.
func (t *T1) encodeSignificancePassInlined(bp int) {
	bit := int32(1) << bp
	stride := t.width + 2
	flags := t.flags
	data := t.data
	width := t.width
	height := t.height
	bandOffset := t.bandType * 256

	for y := 0; y < height; y++ {
		rowIdx := (y + 1) * stride
		dataRowIdx := y * width
		isFirstRow := y == 0
		isLastRow := y == height-1

		for x := 0; x < width; x++ {
			i := rowIdx + x + 1
			if flags[i]&T1Sig != 0 {
				continue
			}

			packed := packSignificance(flags, i, stride)
			if packed == 0 {
				continue
			}

			sig := 0
			if data[dataRowIdx+x]&bit != 0 {
				sig = 1
			}

			t.mqEncodeInlined(int(lutZCCtx[bandOffset+int(packed)]), sig)

			if sig != 0 {
				t.encodeSignInlined(x, y)
				flags[i] |= T1Sig
				if !isFirstRow {
					flags[i-stride] |= T1SigS
				}
				if !isLastRow {
					flags[i+stride] |= T1SigN
				}
				if x > 0 {
					flags[i-1] |= T1SigE
				}
				if x < width-1 {
					flags[i+1] |= T1SigW
				}
			}
			flags[i] |= T1Visit
		}
	}
}

// encodeMagnitudeRefinementPassInlined runs the magnitude refinement
// pass using the inlined MQ encoder.
func (t *T1) encodeMagnitudeRefinementPassInlined(bp int) {
	bit := int32(1) << bp
	stride := t.width + 2
	flags := t.flags
	data := t.data
	width := t.width
	height := t.height

	for y := 0; y < height; y++ {
		rowIdx := (y + 1) * stride
		dataRowIdx := y * width
		for x := 0; x < width; x++ {
			idx := rowIdx + x + 1
			f := flags[idx]
			if f&T1Sig == 0 || f&T1Visit != 0 {
				continue
			}

			refBit := 0
			if data[dataRowIdx+x]&bit != 0 {
				refBit = 1
			}

			ctx := CtxMag2
			if f&T1Refine == 0 {
				if neighborMask(flags, idx, stride)&T1Sig != 0 {
					ctx = CtxMag1
				} else {
					ctx = CtxMag0
				}
			}

			t.mqEncodeInlined(ctx, refBit)
			flags[idx] |= T1Refine
		}
	}
}

// encodeCleanupPassInlined runs the cleanup pass using the inlined MQ
// encoder, with a run-length shortcut for all-insignificant 4-row
// stripes.
func (t *T1) encodeCleanupPassInlined(bp int) {
	bit := int32(1) << bp
	stride := t.width + 2
	flags := t.flags
	data := t.data
	width := t.width
	height := t.height
	bandOffset := t.bandType * 256

	for y := 0; y < height; y += 4 {
		for x := 0; x < width; x++ {
			if t.canUseRunLengthInlined(x, y, bp, stride, flags) {
				t.encodeRunLengthInlined(x, y, bp, bit, stride, flags, data, bandOffset)
				continue
			}

			for yy := y; yy < y+4 && yy < height; yy++ {
				idx := (yy+1)*stride + x + 1
				f := flags[idx]

				if f&T1Visit != 0 {
					flags[idx] &^= T1Visit
					continue
				}
				if f&T1Sig != 0 {
					continue
				}

				sig := 0
				if data[yy*width+x]&bit != 0 {
					sig = 1
				}

				packed := packSignificance(flags, idx, stride)
				t.mqEncodeInlined(int(lutZCCtx[bandOffset+int(packed)]), sig)

				if sig != 0 {
					t.encodeSignInlined(x, yy)
					flags[idx] |= T1Sig
					if yy > 0 {
						flags[idx-stride] |= T1SigS
					}
					if yy < height-1 {
						flags[idx+stride] |= T1SigN
					}
					if x > 0 {
						flags[idx-1] |= T1SigE
					}
					if x < width-1 {
						flags[idx+1] |= T1SigW
					}
				}
			}
		}
	}
}

// canUseRunLengthInlined reports whether the 4-row stripe starting at
// (x, y) is entirely insignificant, unvisited, and has no significant
// neighbor, making it eligible for run-length coding.
func (t *T1) canUseRunLengthInlined(x, y, bp, stride int, flags []T1Flags) bool {
	if y+4 > t.height {
		return false
	}

	idx0 := (y+1)*stride + x + 1
	idx1 := idx0 + stride
	idx2 := idx1 + stride
	idx3 := idx2 + stride

	combined := flags[idx0] | flags[idx1] | flags[idx2] | flags[idx3]
	if combined&(T1Sig|T1Visit) != 0 {
		return false
	}

	left := flags[idx0-1] | flags[idx1-1] | flags[idx2-1] | flags[idx3-1]
	right := flags[idx0+1] | flags[idx1+1] | flags[idx2+1] | flags[idx3+1]
	if (left|right)&T1Sig != 0 {
		return false
	}

	n := flags[idx0-stride] | flags[idx0-stride-1] | flags[idx0-stride+1]
	if n&T1Sig != 0 {
		return false
	}

	s := flags[idx3+stride] | flags[idx3+stride-1] | flags[idx3+stride+1]
	return s&T1Sig == 0
}

// encodeRunLengthInlined encodes a run-length-coded 4-row stripe using
// the inlined MQ encoder.
func (t *T1) encodeRunLengthInlined(x, y, bp int, bit int32, stride int, flags []T1Flags, data []int32, bandOffset int) {
	width := t.width
	height := t.height

	firstSig := -1
	for i := 0; i < 4; i++ {
		if y+i >= height {
			break
		}
		if data[(y+i)*width+x]&bit != 0 {
			firstSig = i
			break
		}
	}

	if firstSig == -1 {
		t.mqEncodeInlined(CtxRL, 0)
		return
	}

	t.mqEncodeInlined(CtxRL, 1)
	t.mqEncodeInlined(CtxUni, (firstSig>>1)&1)
	t.mqEncodeInlined(CtxUni, firstSig&1)

	yy := y + firstSig
	idx := (yy+1)*stride + x + 1
	t.encodeSignInlined(x, yy)
	flags[idx] |= T1Sig
	if yy > 0 {
		flags[idx-stride] |= T1SigS
	}
	if yy < height-1 {
		flags[idx+stride] |= T1SigN
	}
	if x > 0 {
		flags[idx-1] |= T1SigE
	}
	if x < width-1 {
		flags[idx+1] |= T1SigW
	}

	for i := firstSig + 1; i < 4 && y+i < height; i++ {
		yy := y + i
		idx := (yy+1)*stride + x + 1

		sig := 0
		if data[yy*width+x]&bit != 0 {
			sig = 1
		}

		packed := packSignificance(flags, idx, stride)
		t.mqEncodeInlined(int(lutZCCtx[bandOffset+int(packed)]), sig)

		if sig != 0 {
			t.encodeSignInlined(x, yy)
			flags[idx] |= T1Sig
			if yy > 0 {
				flags[idx-stride] |= T1SigS
			}
			if yy < height-1 {
				flags[idx+stride] |= T1SigN
			}
			if x > 0 {
				flags[idx-1] |= T1SigE
			}
			if x < width-1 {
				flags[idx+1] |= T1SigW
			}
		}
	}
}

// Encode encodes a code-block and returns its compressed bit-stream,
// using the fully-inlined MQ encoding path.
func (t *T1) Encode(bandType int) []byte {
	return t.EncodeFast5(bandType)
}

// EncodeSafe encodes a code-block using the inlined MQ encoder but none
// of EncodeFast5's additional unsafe optimizations.
func (t *T1) EncodeSafe(bandType int) []byte {
	t.bandType = bandType
	t.resetMQInlined()

	maxVal := int32(0)
	for _, v := range t.data {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return nil
	}
	t.numBPS = int(math.Ceil(math.Log2(float64(maxVal + 1))))

	for bp := t.numBPS - 1; bp >= 0; bp-- {
		t.encodeSignificancePassInlined(bp)
		t.encodeMagnitudeRefinementPassInlined(bp)
		t.encodeCleanupPassInlined(bp)
	}

	return t.mqFlushInlined()
}

// encodeSignificancePass encodes the significance propagation pass
// using the non-inlined MQEncoder, 4 coefficients at a time.
func (t *T1) encodeSignificancePass(bp int) {
	bit := int32(1) << bp
	stride := t.width + 2
	flags := t.flags
	data := t.data
	width := t.width
	height := t.height
	bandType := t.bandType
	bandOffset := bandType * 256

	for y := 0; y < height; y++ {
		rowIdx := (y + 1) * stride
		dataRowIdx := y * width
		isFirstRow := y == 0
		isLastRow := y == height-1

		x := 0
		for ; x+4 <= width; x += 4 {
			idx := rowIdx + x + 1
			for dx := 0; dx < 4; dx++ {
				i := idx + dx
				if flags[i]&T1Sig != 0 {
					continue
				}

				packed := packSignificance(flags, i, stride)
				if packed == 0 {
					continue
				}

				sig := 0
				if data[dataRowIdx+x+dx]&bit != 0 {
					sig = 1
				}

				t.mqEnc.Encode(int(lutZCCtx[bandOffset+int(packed)]), sig)

				if sig != 0 {
					t.encodeSign(x+dx, y)
					flags[i] |= T1Sig
					if !isFirstRow {
						flags[i-stride] |= T1SigS
					}
					if !isLastRow {
						flags[i+stride] |= T1SigN
					}
					if x+dx > 0 {
						flags[i-1] |= T1SigE
					}
					if x+dx < width-1 {
						flags[i+1] |= T1SigW
					}
				}
				flags[i] |= T1Visit
			}
		}

		for ; x < width; x++ {
			idx := rowIdx + x + 1
			if flags[idx]&T1Sig != 0 {
				continue
			}
			if !neighborsSignificant(flags, idx, stride) {
				continue
			}

			sig := 0
			if data[dataRowIdx+x]&bit != 0 {
				sig = 1
			}

			ctx := t.getZCContext(x, y, bandType)
			t.mqEnc.Encode(ctx, sig)

			if sig != 0 {
				t.encodeSign(x, y)
				flags[idx] |= T1Sig
				if !isFirstRow {
					flags[idx-stride] |= T1SigS
				}
				if !isLastRow {
					flags[idx+stride] |= T1SigN
				}
				if x > 0 {
					flags[idx-1] |= T1SigE
				}
				if x < width-1 {
					flags[idx+1] |= T1SigW
				}
			}
			flags[idx] |= T1Visit
		}
	}
}

func neighborsSignificant(flags []T1Flags, idx, stride int) bool {
	return neighborMask(flags, idx, stride)&T1Sig != 0
}

// hasSignificantNeighbor reports whether any 8-connected neighbor of
// (x, y) is significant.
func (t *T1) hasSignificantNeighbor(x, y int) bool {
	return neighborsSignificant(t.flags, t.flagIndex(x, y), t.width+2)
}

// encodeSign encodes the sign of a newly significant coefficient using
// the non-inlined MQEncoder.
func (t *T1) encodeSign(x, y int) {
	ctx, pred := t.getSCContext(x, y)
	sign := 0
	if t.hasFlag(x, y, T1SignNeg) {
		sign = 1
	}
	t.mqEnc.Encode(ctx, sign^pred)
}

// encodeMagnitudeRefinementPass encodes the magnitude refinement pass
// using the non-inlined MQEncoder.
func (t *T1) encodeMagnitudeRefinementPass(bp int) {
	bit := int32(1) << bp
	stride := t.width + 2
	flags := t.flags
	data := t.data
	width := t.width
	height := t.height

	for y := 0; y < height; y++ {
		rowIdx := (y + 1) * stride
		dataRowIdx := y * width
		for x := 0; x < width; x++ {
			idx := rowIdx + x + 1
			f := flags[idx]
			if f&T1Sig == 0 || f&T1Visit != 0 {
				continue
			}

			refBit := 0
			if data[dataRowIdx+x]&bit != 0 {
				refBit = 1
			}

			ctx := CtxMag2
			if f&T1Refine == 0 {
				if neighborsSignificant(flags, idx, stride) {
					ctx = CtxMag1
				} else {
					ctx = CtxMag0
				}
			}

			t.mqEnc.Encode(ctx, refBit)
			flags[idx] |= T1Refine
		}
	}
}

// encodeCleanupPass encodes the cleanup pass using the non-inlined
// MQEncoder, with a run-length shortcut for all-insignificant stripes.
func (t *T1) encodeCleanupPass(bp int) {
	bit := int32(1) << bp

	for y := 0; y < t.height; y += 4 {
		for x := 0; x < t.width; x++ {
			if t.canUseRunLength(x, y, bp) {
				t.encodeRunLength(x, y, bp, bit)
				continue
			}

			for yy := y; yy < y+4 && yy < t.height; yy++ {
				if t.hasFlag(x, yy, T1Visit) {
					t.clearFlag(x, yy, T1Visit)
					continue
				}
				if t.hasFlag(x, yy, T1Sig) {
					continue
				}

				sig := 0
				if t.data[yy*t.width+x]&bit != 0 {
					sig = 1
				}

				ctx := t.getZCContext(x, yy, t.bandType)
				t.mqEnc.Encode(ctx, sig)

				if sig != 0 {
					t.encodeSign(x, yy)
					t.setFlag(x, yy, T1Sig)
					t.updateNeighborFlags(x, yy)
				}
			}
		}
	}
}

// canUseRunLength reports whether the 4-row stripe at (x, y) is
// eligible for run-length coding.
func (t *T1) canUseRunLength(x, y, bp int) bool {
	if y+4 > t.height {
		return false
	}
	for yy := y; yy < y+4; yy++ {
		if t.hasFlag(x, yy, T1Sig|T1Visit) {
			return false
		}
		if t.hasSignificantNeighbor(x, yy) {
			return false
		}
	}
	return true
}

// encodeRunLength encodes a run-length-coded 4-row stripe using the
// non-inlined MQEncoder.
func (t *T1) encodeRunLength(x, y, bp int, bit int32) int {
	firstSig := -1
	for i := 0; i < 4; i++ {
		if y+i >= t.height {
			break
		}
		if t.data[(y+i)*t.width+x]&bit != 0 {
			firstSig = i
			break
		}
	}

	if firstSig == -1 {
		t.mqEnc.Encode(CtxRL, 0)
		return 4
	}

	t.mqEnc.Encode(CtxRL, 1)
	t.mqEnc.Encode(CtxUni, (firstSig>>1)&1)
	t.mqEnc.Encode(CtxUni, firstSig&1)

	t.encodeSign(x, y+firstSig)
	t.setFlag(x, y+firstSig, T1Sig)
	t.updateNeighborFlags(x, y+firstSig)

	for i := firstSig + 1; i < 4 && y+i < t.height; i++ {
		sig := 0
		if t.data[(y+i)*t.width+x]&bit != 0 {
			sig = 1
		}
		ctx := t.getZCContext(x, y+i, t.bandType)
		t.mqEnc.Encode(ctx, sig)
		if sig != 0 {
			t.encodeSign(x, y+i)
			t.setFlag(x, y+i, T1Sig)
			t.updateNeighborFlags(x, y+i)
		}
	}

	return 4
}

// Decode decodes a code-block from its compressed bit-stream.
func (t *T1) Decode(data []byte, numBPS int, bandType int) []int32 {
	t.bandType = bandType
	t.numBPS = numBPS
	t.mqDec = NewMQDecoder(data)

	for i := range t.data {
		t.data[i] = 0
	}
	for i := range t.flags {
		t.flags[i] = 0
	}

	for bp := numBPS - 1; bp >= 0; bp-- {
		t.decodeSignificancePass(bp)
		t.decodeMagnitudeRefinementPass(bp)
		t.decodeCleanupPass(bp)
	}

	result := make([]int32, len(t.data))
	for i, v := range t.data {
		if t.flags[t.flagIndex(i%t.width, i/t.width)]&T1SignNeg != 0 {
			result[i] = -v
		} else {
			result[i] = v
		}
	}

	return result
}

// decodeSignificancePass decodes the significance propagation pass.
func (t *T1) decodeSignificancePass(bp int) {
	bit := int32(1) << bp

	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			if t.hasFlag(x, y, T1Sig) {
				continue
			}
			if !t.hasSignificantNeighbor(x, y) {
				continue
			}

			ctx := t.getZCContext(x, y, t.bandType)
			sig := t.mqDec.Decode(ctx)

			if sig != 0 {
				t.data[y*t.width+x] = bit
				t.decodeSign(x, y)
				t.setFlag(x, y, T1Sig)
				t.updateNeighborFlags(x, y)
			}
			t.setFlag(x, y, T1Visit)
		}
	}
}

// decodeSign decodes the sign of a coefficient.
func (t *T1) decodeSign(x, y int) {
	ctx, pred := t.getSCContext(x, y)
	sign := t.mqDec.Decode(ctx) ^ pred
	if sign != 0 {
		t.setFlag(x, y, T1SignNeg)
	}
}

// decodeMagnitudeRefinementPass decodes the magnitude refinement pass.
func (t *T1) decodeMagnitudeRefinementPass(bp int) {
	bit := int32(1) << bp

	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			if !t.hasFlag(x, y, T1Sig) || t.hasFlag(x, y, T1Visit) {
				continue
			}

			ctx := t.getMRContext(x, y)
			if t.mqDec.Decode(ctx) != 0 {
				t.data[y*t.width+x] |= bit
			}
			t.setFlag(x, y, T1Refine)
		}
	}
}

// decodeCleanupPass decodes the cleanup pass.
func (t *T1) decodeCleanupPass(bp int) {
	bit := int32(1) << bp

	for y := 0; y < t.height; y += 4 {
		for x := 0; x < t.width; x++ {
			if t.canUseRunLength(x, y, bp) {
				t.decodeRunLength(x, y, bit)
				continue
			}

			for yy := y; yy < y+4 && yy < t.height; yy++ {
				if t.hasFlag(x, yy, T1Visit) {
					t.clearFlag(x, yy, T1Visit)
					continue
				}
				if t.hasFlag(x, yy, T1Sig) {
					continue
				}

				ctx := t.getZCContext(x, yy, t.bandType)
				sig := t.mqDec.Decode(ctx)

				if sig != 0 {
					t.data[yy*t.width+x] = bit
					t.decodeSign(x, yy)
					t.setFlag(x, yy, T1Sig)
					t.updateNeighborFlags(x, yy)
				}
			}
		}
	}
}

// decodeRunLength decodes a run-length-coded 4-row stripe.
func (t *T1) decodeRunLength(x, y int, bit int32) {
	if t.mqDec.Decode(CtxRL) == 0 {
		return
	}

	pos := t.mqDec.Decode(CtxUni) << 1
	pos |= t.mqDec.Decode(CtxUni)

	t.data[(y+pos)*t.width+x] = bit
	t.decodeSign(x, y+pos)
	t.setFlag(x, y+pos, T1Sig)
	t.updateNeighborFlags(x, y+pos)

	for i := pos + 1; i < 4 && y+i < t.height; i++ {
		ctx := t.getZCContext(x, y+i, t.bandType)
		if t.mqDec.Decode(ctx) != 0 {
			t.data[(y+i)*t.width+x] = bit
			t.decodeSign(x, y+i)
			t.setFlag(x, y+i, T1Sig)
			t.updateNeighborFlags(x, y+i)
		}
	}
}
