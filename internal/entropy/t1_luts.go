// Package entropy - lookup tables replacing the zero-coding and
// sign-coding context rules with O(1) table lookups, generated once at
// package init from the same neighbor-counting rules the spec defines.
package entropy

// lutZCCtx is the zero-coding context table, indexed by
// bandType*256 + packed neighbor significance flags:
//
//	bit 0: W   bit 4: NW
//	bit 1: E   bit 5: NE
//	bit 2: N   bit 6: SW
//	bit 3: S   bit 7: SE
//
// Band types: 0=LL, 1=HL, 2=LH, 3=HH. Values are contexts 0-8.
var lutZCCtx [4 * 256]uint8

// lutSCCtx is the sign-coding context table, indexed by
// (hContrib+2)*5 + (vContrib+2) for contributions in [-2, 2].
// Each entry packs (ctx << 1) | predictionBit.
var lutSCCtx [25]uint8

// lutSignCtx and lutSignPred give the sign context (0-4, relative to
// CtxSC0) and prediction bit for a packed 8-bit neighbor word:
// bits 0-1 = W sig/neg, 2-3 = E sig/neg, 4-5 = N sig/neg, 6-7 = S sig/neg.
var (
	lutSignCtx  [256]uint8
	lutSignPred [256]uint8
)

func init() {
	buildZCTable()
	buildSCTable()
	buildSignTable()
}

// zcCounts holds the horizontal, vertical, and diagonal significant
// neighbor counts used by the zero-coding context rules.
type zcCounts struct {
	h, v, d int
}

func unpackZCNeighbors(packed int) zcCounts {
	w := (packed >> 0) & 1
	e := (packed >> 1) & 1
	n := (packed >> 2) & 1
	s := (packed >> 3) & 1
	nw := (packed >> 4) & 1
	ne := (packed >> 5) & 1
	sw := (packed >> 6) & 1
	se := (packed >> 7) & 1
	return zcCounts{h: w + e, v: n + s, d: nw + ne + sw + se}
}

func buildZCTable() {
	for bandType := 0; bandType < 4; bandType++ {
		for packed := 0; packed < 256; packed++ {
			lutZCCtx[bandType*256+packed] = uint8(zcContext(bandType, unpackZCNeighbors(packed)))
		}
	}
}

// zcContext implements the zero-coding context assignment rules (Table
// D.1 of the spec) for a given band type and neighbor counts.
func zcContext(bandType int, c zcCounts) int {
	if bandType == BandHL {
		c.h, c.v = c.v, c.h
	}
	if bandType == BandHH {
		return zcContextHH(c)
	}
	return zcContextLLLike(c)
}

func zcContextLLLike(c zcCounts) int {
	switch {
	case c.h == 2:
		return 8
	case c.h == 1 && c.v >= 1:
		return 7
	case c.h == 1 && c.d >= 1:
		return 6
	case c.h == 1:
		return 5
	case c.v == 2:
		return 4
	case c.v == 1 && c.d >= 1:
		return 3
	case c.v == 1:
		return 2
	case c.d >= 2:
		return 1
	default:
		return 0
	}
}

func zcContextHH(c zcCounts) int {
	hv := c.h + c.v
	switch {
	case hv >= 3:
		return 8
	case hv == 2 && c.d >= 2:
		return 7
	case hv == 2 && c.d >= 1:
		return 6
	case hv == 2:
		return 5
	case hv == 1 && c.d >= 2:
		return 4
	case hv == 1:
		return 3
	case c.d >= 2:
		return 2
	case c.d >= 1:
		return 1
	default:
		return 0
	}
}

// signPrediction normalizes a (horizontal, vertical) sign contribution
// pair into a magnitude pair plus the XOR prediction bit.
func signPrediction(hc, vc int) (h, v, pred int) {
	h, v = hc, vc
	if h < 0 {
		pred = 1
		h = -h
	}
	if h == 0 && v < 0 {
		pred = 1
		v = -v
	}
	return h, v, pred
}

// signContext maps normalized (h, v) magnitudes to a sign context
// relative to CtxSC0 (0-4).
func signContext(h, v int) int {
	switch {
	case h == 1 && v == 1:
		return 4
	case h == 1 && v == 0:
		return 2
	case h == 1:
		return 1
	case h == 0 && v == 1:
		return 1
	case h == 2:
		return 3
	default:
		return 0
	}
}

func buildSCTable() {
	for hc := -2; hc <= 2; hc++ {
		for vc := -2; vc <= 2; vc++ {
			h, v, pred := signPrediction(hc, vc)
			ctx := CtxSC0 + signContext(h, v)
			lutSCCtx[(hc+2)*5+(vc+2)] = uint8(ctx<<1) | uint8(pred)
		}
	}
}

func neighborContrib(sig, neg int) int {
	if sig == 0 {
		return 0
	}
	if neg != 0 {
		return -1
	}
	return 1
}

func buildSignTable() {
	for i := 0; i < 256; i++ {
		wSig, wChi := (i>>0)&1, (i>>1)&1
		eSig, eChi := (i>>2)&1, (i>>3)&1
		nSig, nChi := (i>>4)&1, (i>>5)&1
		sSig, sChi := (i>>6)&1, (i>>7)&1

		hc := neighborContrib(wSig, wChi) + neighborContrib(eSig, eChi)
		vc := neighborContrib(nSig, nChi) + neighborContrib(sSig, sChi)

		h, v, pred := signPrediction(hc, vc)
		lutSignCtx[i] = uint8(signContext(h, v))
		lutSignPred[i] = uint8(pred)
	}
}

// getZCContextFast returns the zero-coding context for packed neighbor
// flags and a band type, via lutZCCtx.
func getZCContextFast(packed uint8, bandType int) int {
	return int(lutZCCtx[bandType*256+int(packed)])
}

// getSCContextFast returns the sign-coding context and prediction bit
// for a pair of contribution values, via lutSCCtx.
func getSCContextFast(hContrib, vContrib int) (ctx int, pred int) {
	if hContrib < -2 {
		hContrib = -2
	} else if hContrib > 2 {
		hContrib = 2
	}
	if vContrib < -2 {
		vContrib = -2
	} else if vContrib > 2 {
		vContrib = 2
	}

	v := lutSCCtx[(hContrib+2)*5+(vContrib+2)]
	return int(v >> 1), int(v & 1)
}
