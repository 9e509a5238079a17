//go:build !purego

package entropy

import (
	"unsafe"
)

// loadFlagAt reads the T1Flags at a byte offset from a base pointer,
// trading bounds-checked slice indexing for raw pointer arithmetic on
// EncodeFast5's hot path.
func loadFlagAt(base unsafe.Pointer, offset int) T1Flags {
	return *(*T1Flags)(unsafe.Add(base, offset))
}

// packZCUnsafe packs 8 already-loaded neighbor flags into the lutZCCtx
// bit layout.
func packZCUnsafe(fW, fE, fN, fS, fNW, fNE, fSW, fSE T1Flags) uint8 {
	return uint8(fW&T1Sig) |
		(uint8(fE&T1Sig) << 1) |
		(uint8(fN&T1Sig) << 2) |
		(uint8(fS&T1Sig) << 3) |
		(uint8(fNW&T1Sig) << 4) |
		(uint8(fNE&T1Sig) << 5) |
		(uint8(fSW&T1Sig) << 6) |
		(uint8(fSE&T1Sig) << 7)
}

// signContextUnsafe computes the sign-coding context and XOR prediction
// from the cardinal neighbors' flags, via lutSignCtx/lutSignPred.
func signContextUnsafe(fW, fE, fN, fS T1Flags) (ctx int, pred int) {
	scIdx := int(fW&T1Sig) |
		(int(fW&T1SignNeg) >> 3 << 1) |
		(int(fE&T1Sig) << 2) |
		(int(fE&T1SignNeg) >> 3 << 3) |
		(int(fN&T1Sig) << 4) |
		(int(fN&T1SignNeg) >> 3 << 5) |
		(int(fS&T1Sig) << 6) |
		(int(fS&T1SignNeg) >> 3 << 7)
	return int(lutSignCtx[scIdx]) + CtxSC0, int(lutSignPred[scIdx])
}

// EncodeFast5 is Encode's hot path: it keeps the MQ coder state and the
// flags/data arrays in locals and raw pointers instead of going through
// T1's fields and slice indexing, for code-blocks where that overhead
// is measurable.
func (t *T1) EncodeFast5(bandType int) []byte {
	t.bandType = bandType

	maxVal := int32(0)
	for _, v := range t.data {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return nil
	}
	numBPS := 0
	for maxVal > 0 {
		numBPS++
		maxVal >>= 1
	}
	t.numBPS = numBPS

	width := t.width
	height := t.height
	stride := width + 2
	bandOffset := bandType * 256

	offsetN := -stride
	offsetS := stride
	offsetNW := -stride - 1
	offsetNE := -stride + 1
	offsetSW := stride - 1
	offsetSE := stride + 1

	mqA := uint32(0x8000)
	mqC := uint32(0)
	mqCT := uint32(12)
	estimatedSize := width*height*2 + 1024
	if estimatedSize < 16384 {
		estimatedSize = 16384
	}
	if cap(t.mqBuf) >= estimatedSize {
		t.mqBuf = t.mqBuf[:cap(t.mqBuf)]
	} else {
		t.mqBuf = make([]byte, estimatedSize)
	}
	t.mqBuf[0] = 0
	mqBp := 0
	mqBuf := t.mqBuf
	var mqContexts [NumContexts]uint8
	mqContexts[CtxUni] = uniformState

	// mqEncode codes one decision against the locals above, the same
	// state transitions as MQEncoder.Encode but without a pointer
	// receiver on the per-coefficient path.
	mqEncode := func(ctx int, decision int) {
		stateIdx := mqContexts[ctx]
		qe := mqQe[stateIdx]
		mps := stateIdx & 1
		mqA -= qe

		if uint8(decision) == mps {
			if mqA&0x8000 == 0 {
				if mqA < qe {
					mqA = qe
				} else {
					mqC += qe
				}
				mqContexts[ctx] = mqNMPS[stateIdx]
				for mqA&0x8000 == 0 {
					mqA <<= 1
					mqC <<= 1
					mqCT--
					if mqCT == 0 {
						mqBp, mqC, mqCT = mqByteOutLocal(mqBuf, mqBp, mqC)
					}
				}
			} else {
				mqC += qe
			}
			return
		}

		if mqA < qe {
			mqC += qe
		} else {
			mqA = qe
		}
		mqContexts[ctx] = mqNLPS[stateIdx]
		for mqA&0x8000 == 0 {
			mqA <<= 1
			mqC <<= 1
			mqCT--
			if mqCT == 0 {
				mqBp, mqC, mqCT = mqByteOutLocal(mqBuf, mqBp, mqC)
			}
		}
	}

	flags := t.flags
	data := t.data
	flagsBase := unsafe.Pointer(&flags[0])
	dataBase := unsafe.Pointer(&data[0])

	for bp := numBPS - 1; bp >= 0; bp-- {
		bit := int32(1) << bp

		// Significance propagation.
		for y := 0; y < height; y++ {
			rowStart := (y + 1) * stride
			dataRowStart := y * width
			isFirstRow := y == 0
			isLastRow := y == height-1

			fRowPtr := unsafe.Add(flagsBase, rowStart+1)
			dRowPtr := unsafe.Add(dataBase, dataRowStart*4)

			for x := 0; x < width; x++ {
				fPtr := unsafe.Add(fRowPtr, x)
				f := *(*T1Flags)(fPtr)
				if f&T1Sig != 0 {
					continue
				}

				// Cardinal significance is cached on f itself by prior
				// passes; only the diagonals need a fresh load when
				// none of the cardinals are flagged significant.
				cardinalSigs := f & (T1SigN | T1SigS | T1SigE | T1SigW)

				var fW, fE, fN, fS, fNW, fNE, fSW, fSE T1Flags
				fNW = loadFlagAt(fPtr, offsetNW)
				fNE = loadFlagAt(fPtr, offsetNE)
				fSW = loadFlagAt(fPtr, offsetSW)
				fSE = loadFlagAt(fPtr, offsetSE)
				if cardinalSigs == 0 {
					if (fNW|fNE|fSW|fSE)&T1Sig == 0 {
						continue
					}
				} else {
					fW = loadFlagAt(fPtr, -1)
					fE = loadFlagAt(fPtr, 1)
					fN = loadFlagAt(fPtr, offsetN)
					fS = loadFlagAt(fPtr, offsetS)
				}

				coeff := *(*int32)(unsafe.Add(dRowPtr, x*4))
				sig := int(coeff>>bp) & 1

				ctx := int(lutZCCtx[bandOffset+int(packZCUnsafe(fW, fE, fN, fS, fNW, fNE, fSW, fSE))])
				mqEncode(ctx, sig)

				if sig != 0 {
					signCtx, pred := signContextUnsafe(fW, fE, fN, fS)
					sign := 0
					if f&T1SignNeg != 0 {
						sign = 1
					}
					mqEncode(signCtx, sign^pred)

					*(*T1Flags)(fPtr) |= T1Sig
					if !isFirstRow {
						*(*T1Flags)(unsafe.Add(fPtr, offsetN)) |= T1SigS
					}
					if !isLastRow {
						*(*T1Flags)(unsafe.Add(fPtr, offsetS)) |= T1SigN
					}
					if x > 0 {
						*(*T1Flags)(unsafe.Add(fPtr, -1)) |= T1SigE
					}
					if x < width-1 {
						*(*T1Flags)(unsafe.Add(fPtr, 1)) |= T1SigW
					}
				}
				*(*T1Flags)(fPtr) |= T1Visit
			}
		}

		// Magnitude refinement.
		for y := 0; y < height; y++ {
			rowStart := (y + 1) * stride
			dataRowStart := y * width
			fRowPtr := unsafe.Add(flagsBase, rowStart+1)
			dRowPtr := unsafe.Add(dataBase, dataRowStart*4)

			for x := 0; x < width; x++ {
				fPtr := unsafe.Add(fRowPtr, x)
				f := *(*T1Flags)(fPtr)
				if f&T1Sig == 0 || f&T1Visit != 0 {
					continue
				}

				coeff := *(*int32)(unsafe.Add(dRowPtr, x*4))
				refBit := 0
				if coeff&bit != 0 {
					refBit = 1
				}

				ctx := CtxMag2
				if f&T1Refine == 0 {
					fW := loadFlagAt(fPtr, -1)
					fE := loadFlagAt(fPtr, 1)
					fN := loadFlagAt(fPtr, offsetN)
					fS := loadFlagAt(fPtr, offsetS)
					fNW := loadFlagAt(fPtr, offsetNW)
					fNE := loadFlagAt(fPtr, offsetNE)
					fSW := loadFlagAt(fPtr, offsetSW)
					fSE := loadFlagAt(fPtr, offsetSE)
					if (fW|fE|fN|fS|fNW|fNE|fSW|fSE)&T1Sig != 0 {
						ctx = CtxMag1
					} else {
						ctx = CtxMag0
					}
				}

				mqEncode(ctx, refBit)
				*(*T1Flags)(fPtr) |= T1Refine
			}
		}

		// Cleanup, with a run-length shortcut for all-insignificant
		// 4-row stripes.
		for y := 0; y < height; y += 4 {
			for x := 0; x < width; x++ {
				canRL := y+4 <= height
				if canRL {
					for yy := 0; yy < 4; yy++ {
						idx := (y+yy+1)*stride + x + 1
						fPtr := unsafe.Add(flagsBase, idx)
						f := *(*T1Flags)(fPtr)
						if f&(T1Sig|T1Visit) != 0 {
							canRL = false
							break
						}
						fW := loadFlagAt(fPtr, -1)
						fE := loadFlagAt(fPtr, 1)
						fN := loadFlagAt(fPtr, offsetN)
						fS := loadFlagAt(fPtr, offsetS)
						fNW := loadFlagAt(fPtr, offsetNW)
						fNE := loadFlagAt(fPtr, offsetNE)
						fSW := loadFlagAt(fPtr, offsetSW)
						fSE := loadFlagAt(fPtr, offsetSE)
						if (fW|fE|fN|fS|fNW|fNE|fSW|fSE)&T1Sig != 0 {
							canRL = false
							break
						}
					}
				}

				if canRL {
					firstSig := -1
					for i := 0; i < 4; i++ {
						coeff := *(*int32)(unsafe.Add(dataBase, ((y+i)*width+x)*4))
						if coeff&bit != 0 {
							firstSig = i
							break
						}
					}

					decision := 0
					if firstSig >= 0 {
						decision = 1
					}
					mqEncode(CtxRL, decision)
					if firstSig < 0 {
						continue
					}

					mqEncode(CtxUni, (firstSig>>1)&1)
					mqEncode(CtxUni, firstSig&1)

					yy := y + firstSig
					idx := (yy+1)*stride + x + 1
					fPtr := unsafe.Add(flagsBase, idx)
					f := *(*T1Flags)(fPtr)
					fW := loadFlagAt(fPtr, -1)
					fE := loadFlagAt(fPtr, 1)
					fN := loadFlagAt(fPtr, offsetN)
					fS := loadFlagAt(fPtr, offsetS)

					signCtx, pred := signContextUnsafe(fW, fE, fN, fS)
					sign := 0
					if f&T1SignNeg != 0 {
						sign = 1
					}
					mqEncode(signCtx, sign^pred)

					*(*T1Flags)(fPtr) |= T1Sig
					if yy > 0 {
						*(*T1Flags)(unsafe.Add(fPtr, offsetN)) |= T1SigS
					}
					if yy < height-1 {
						*(*T1Flags)(unsafe.Add(fPtr, offsetS)) |= T1SigN
					}
					if x > 0 {
						*(*T1Flags)(unsafe.Add(fPtr, -1)) |= T1SigE
					}
					if x < width-1 {
						*(*T1Flags)(unsafe.Add(fPtr, 1)) |= T1SigW
					}

					for i := firstSig + 1; i < 4; i++ {
						yy := y + i
						idx := (yy+1)*stride + x + 1
						fPtr := unsafe.Add(flagsBase, idx)
						f := *(*T1Flags)(fPtr)

						coeff := *(*int32)(unsafe.Add(dataBase, (yy*width+x)*4))
						sig := 0
						if coeff&bit != 0 {
							sig = 1
						}

						fW := loadFlagAt(fPtr, -1)
						fE := loadFlagAt(fPtr, 1)
						fN := loadFlagAt(fPtr, offsetN)
						fS := loadFlagAt(fPtr, offsetS)
						fNW := loadFlagAt(fPtr, offsetNW)
						fNE := loadFlagAt(fPtr, offsetNE)
						fSW := loadFlagAt(fPtr, offsetSW)
						fSE := loadFlagAt(fPtr, offsetSE)

						ctx := int(lutZCCtx[bandOffset+int(packZCUnsafe(fW, fE, fN, fS, fNW, fNE, fSW, fSE))])
						mqEncode(ctx, sig)

						if sig != 0 {
							signCtx, pred := signContextUnsafe(fW, fE, fN, fS)
							sign := 0
							if f&T1SignNeg != 0 {
								sign = 1
							}
							mqEncode(signCtx, sign^pred)

							*(*T1Flags)(fPtr) |= T1Sig
							if yy > 0 {
								*(*T1Flags)(unsafe.Add(fPtr, offsetN)) |= T1SigS
							}
							if yy < height-1 {
								*(*T1Flags)(unsafe.Add(fPtr, offsetS)) |= T1SigN
							}
							if x > 0 {
								*(*T1Flags)(unsafe.Add(fPtr, -1)) |= T1SigE
							}
							if x < width-1 {
								*(*T1Flags)(unsafe.Add(fPtr, 1)) |= T1SigW
							}
						}
					}
					continue
				}

				yEnd := y + 4
				if yEnd > height {
					yEnd = height
				}
				for yy := y; yy < yEnd; yy++ {
					idx := (yy+1)*stride + x + 1
					fPtr := unsafe.Add(flagsBase, idx)
					f := *(*T1Flags)(fPtr)

					if f&T1Visit != 0 {
						*(*T1Flags)(fPtr) &^= T1Visit
						continue
					}
					if f&T1Sig != 0 {
						continue
					}

					coeff := *(*int32)(unsafe.Add(dataBase, (yy*width+x)*4))
					sig := 0
					if coeff&bit != 0 {
						sig = 1
					}

					fW := loadFlagAt(fPtr, -1)
					fE := loadFlagAt(fPtr, 1)
					fN := loadFlagAt(fPtr, offsetN)
					fS := loadFlagAt(fPtr, offsetS)
					fNW := loadFlagAt(fPtr, offsetNW)
					fNE := loadFlagAt(fPtr, offsetNE)
					fSW := loadFlagAt(fPtr, offsetSW)
					fSE := loadFlagAt(fPtr, offsetSE)

					ctx := int(lutZCCtx[bandOffset+int(packZCUnsafe(fW, fE, fN, fS, fNW, fNE, fSW, fSE))])
					mqEncode(ctx, sig)

					if sig != 0 {
						signCtx, pred := signContextUnsafe(fW, fE, fN, fS)
						sign := 0
						if f&T1SignNeg != 0 {
							sign = 1
						}
						mqEncode(signCtx, sign^pred)

						*(*T1Flags)(fPtr) |= T1Sig
						if yy > 0 {
							*(*T1Flags)(unsafe.Add(fPtr, offsetN)) |= T1SigS
						}
						if yy < height-1 {
							*(*T1Flags)(unsafe.Add(fPtr, offsetS)) |= T1SigN
						}
						if x > 0 {
							*(*T1Flags)(unsafe.Add(fPtr, -1)) |= T1SigE
						}
						if x < width-1 {
							*(*T1Flags)(unsafe.Add(fPtr, 1)) |= T1SigW
						}
					}
				}
			}
		}
	}

	tmp := mqC + mqA
	mqC |= 0xFFFF
	if mqC >= tmp {
		mqC -= 0x8000
	}

	mqC <<= mqCT
	mqBp, mqC, mqCT = mqByteOutLocal(mqBuf, mqBp, mqC)
	mqC <<= mqCT
	mqBp, _, _ = mqByteOutLocal(mqBuf, mqBp, mqC)

	endPos := mqBp + 1
	if endPos > 0 && mqBuf[endPos-1] == 0xFF {
		endPos--
	}
	if endPos > 1 {
		return mqBuf[1:endPos]
	}
	return nil
}
