// Package entropy implements the bit-plane entropy coders used by the
// codestream: the MQ arithmetic coder and context models for EBCOT, the
// raw (bypass) coder, and the HTJ2K block coder.
package entropy

// mqQe holds the probability estimate (Qe, fixed point) for each of the 94
// MQ-coder states. Even state indices carry MPS=0, odd indices MPS=1; the
// values come from the JPEG 2000 Annex C state transition table.
var mqQe = [94]uint32{
	0x5601, 0x5601, 0x3401, 0x3401, 0x1801, 0x1801, 0x0AC1, 0x0AC1,
	0x0521, 0x0521, 0x0221, 0x0221, 0x5601, 0x5601, 0x5401, 0x5401,
	0x4801, 0x4801, 0x3801, 0x3801, 0x3001, 0x3001, 0x2401, 0x2401,
	0x1C01, 0x1C01, 0x1601, 0x1601, 0x5601, 0x5601, 0x5401, 0x5401,
	0x5101, 0x5101, 0x4801, 0x4801, 0x3801, 0x3801, 0x3401, 0x3401,
	0x3001, 0x3001, 0x2801, 0x2801, 0x2401, 0x2401, 0x2201, 0x2201,
	0x1C01, 0x1C01, 0x1801, 0x1801, 0x1601, 0x1601, 0x1401, 0x1401,
	0x1201, 0x1201, 0x1101, 0x1101, 0x0AC1, 0x0AC1, 0x09C1, 0x09C1,
	0x08A1, 0x08A1, 0x0521, 0x0521, 0x0441, 0x0441, 0x02A1, 0x02A1,
	0x0221, 0x0221, 0x0141, 0x0141, 0x0111, 0x0111, 0x0085, 0x0085,
	0x0049, 0x0049, 0x0025, 0x0025, 0x0015, 0x0015, 0x0009, 0x0009,
	0x0005, 0x0005, 0x0001, 0x0001, 0x5601, 0x5601,
}

// mqNMPS is the successor state on an MPS decision, per mqQe's indexing.
var mqNMPS = [94]uint8{
	2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 76, 77, 14, 15, 16, 17,
	18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 58, 59, 30, 31, 32, 33,
	34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49,
	50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 63, 64, 65,
	66, 67, 68, 69, 70, 71, 72, 73, 74, 75, 76, 77, 78, 79, 80, 81,
	82, 83, 84, 85, 86, 87, 88, 89, 90, 91, 90, 91, 92, 93,
}

// mqNLPS is the successor state on an LPS decision, per mqQe's indexing.
var mqNLPS = [94]uint8{
	3, 2, 12, 13, 18, 19, 24, 25, 58, 59, 66, 67, 13, 12, 28, 29,
	28, 29, 28, 29, 34, 35, 36, 37, 40, 41, 42, 43, 29, 28, 28, 29,
	30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 38, 39, 40, 41, 42, 43,
	44, 45, 46, 47, 48, 49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59,
	60, 61, 62, 63, 64, 65, 66, 67, 68, 69, 70, 71, 72, 73, 74, 75,
	76, 77, 78, 79, 80, 81, 82, 83, 84, 85, 86, 87, 92, 93,
}

// Context indices for EBCOT coding passes.
const (
	CtxZC0 = iota // LL band
	CtxZC1
	CtxZC2
	CtxZC3
	CtxZC4
	CtxZC5
	CtxZC6
	CtxZC7
	CtxZC8

	CtxSC0
	CtxSC1
	CtxSC2
	CtxSC3
	CtxSC4

	CtxMag0
	CtxMag1
	CtxMag2

	CtxRL

	CtxUni

	NumContexts
)

// uniformState is the fixed state index (MPS=0) the uniform context is
// reset to; it never transitions during coding (mqNMPS/mqNLPS loop to 92/93).
const uniformState = 92

// MQEncoder implements the MQ arithmetic encoder (ITU-T T.800 Annex C).
type MQEncoder struct {
	A        uint32 // interval register
	C        uint32 // code register
	CT       uint32 // bit counter until next byte-out
	buf      []byte // output bytes; buf[0] is a leading dummy byte
	bp       int    // index of the last emitted byte
	contexts [NumContexts]uint8
}

// NewMQEncoder creates a new MQ encoder ready to code decisions.
func NewMQEncoder() *MQEncoder {
	e := &MQEncoder{
		A:   0x8000,
		CT:  12,
		buf: make([]byte, 1, 8192),
	}
	e.resetContexts()
	return e
}

// Reset restores the encoder to its initial state, reusing its buffer.
func (e *MQEncoder) Reset() {
	e.A = 0x8000
	e.C = 0
	e.CT = 12
	if cap(e.buf) > 0 {
		e.buf = e.buf[:1]
	} else {
		e.buf = make([]byte, 1, 8192)
	}
	e.buf[0] = 0
	e.bp = 0
	e.resetContexts()
}

func (e *MQEncoder) resetContexts() {
	for i := range e.contexts {
		e.contexts[i] = 0
	}
	e.contexts[CtxUni] = uniformState
}

// Encode codes one binary decision (0 or 1) under the given context.
func (e *MQEncoder) Encode(ctx int, decision int) {
	stateIdx := e.contexts[ctx]
	qe := mqQe[stateIdx]
	mps := stateIdx & 1

	e.A -= qe

	if uint8(decision) == mps {
		if e.A&0x8000 == 0 {
			if e.A < qe {
				e.A = qe
			} else {
				e.C += qe
			}
			e.contexts[ctx] = mqNMPS[stateIdx]
			e.renorm()
		} else {
			e.C += qe
		}
		return
	}

	if e.A < qe {
		e.C += qe
	} else {
		e.A = qe
	}
	e.contexts[ctx] = mqNLPS[stateIdx]
	e.renorm()
}

// renorm performs encoder interval renormalization, flushing bytes as CT
// depletes.
func (e *MQEncoder) renorm() {
	for e.A&0x8000 == 0 {
		e.A <<= 1
		e.C <<= 1
		e.CT--
		if e.CT == 0 {
			e.byteOut()
		}
	}
}

// byteOut emits one byte from the code register, applying the bit-stuffing
// rule that suppresses a carry into a 0xFF byte (C.2.8 BYTEOUT procedure).
func (e *MQEncoder) byteOut() {
	if e.buf[e.bp] == 0xFF {
		e.appendByte(byte(e.C>>20), 0xFFFFF, 7)
		return
	}
	if e.C&0x8000000 == 0 {
		e.appendByte(byte(e.C>>19), 0x7FFFF, 8)
		return
	}
	e.buf[e.bp]++
	if e.buf[e.bp] == 0xFF {
		e.C &= 0x7FFFFFF
		e.appendByte(byte(e.C>>20), 0xFFFFF, 7)
		return
	}
	e.appendByte(byte(e.C>>19), 0x7FFFF, 8)
}

func (e *MQEncoder) appendByte(b byte, mask uint32, ct uint32) {
	e.bp++
	if e.bp >= len(e.buf) {
		e.buf = append(e.buf, 0)
	}
	e.buf[e.bp] = b
	e.C &= mask
	e.CT = ct
}

// Flush terminates coding (C.2.9 FLUSH) and returns the compressed bytes,
// omitting the leading dummy byte and any trailing 0xFF.
func (e *MQEncoder) Flush() []byte {
	e.setBits()
	e.C <<= e.CT
	e.byteOut()
	e.C <<= e.CT
	e.byteOut()

	endPos := e.bp + 1
	if endPos > 0 && e.buf[endPos-1] == 0xFF {
		endPos--
	}
	if endPos > 1 {
		return e.buf[1:endPos]
	}
	return nil
}

// setBits rounds the code register up to the smallest value compatible
// with the remaining interval, so that termination needs only two bytes.
func (e *MQEncoder) setBits() {
	tmp := e.C + e.A
	e.C |= 0xFFFF
	if e.C >= tmp {
		e.C -= 0x8000
	}
}

// Bytes returns the bytes emitted so far without flushing.
func (e *MQEncoder) Bytes() []byte {
	if e.bp > 0 {
		return e.buf[1 : e.bp+1]
	}
	return nil
}

// MQDecoder implements the MQ arithmetic decoder (ITU-T T.800 Annex C).
type MQDecoder struct {
	C          uint32
	A          uint32
	CT         uint32
	bp         int
	data       []byte
	contexts   [NumContexts]uint8
	endCounter int
}

// NewMQDecoder creates a decoder over data, running INITDEC (C.3.5).
func NewMQDecoder(data []byte) *MQDecoder {
	d := &MQDecoder{
		A:    0x8000,
		data: data,
		bp:   -1,
	}
	d.resetContexts()

	if len(data) == 0 {
		d.C = 0xFF << 16
	} else {
		d.bp = 0
		d.C = uint32(data[0]) << 16
	}
	d.byteIn()
	d.C <<= 7
	d.CT -= 7
	d.A = 0x8000

	return d
}

func (d *MQDecoder) resetContexts() {
	for i := range d.contexts {
		d.contexts[i] = 0
	}
	d.contexts[CtxUni] = uniformState
}

// byteIn reads the next byte into the code register, honoring bit
// stuffing and marker detection (C.3.4 BYTEIN).
func (d *MQDecoder) byteIn() {
	if d.bp < 0 {
		d.bp = 0
	}

	if d.bp >= len(d.data) {
		d.C += 0xFF00
		d.CT = 8
		d.endCounter++
		return
	}

	var next byte = 0xFF
	if d.bp+1 < len(d.data) {
		next = d.data[d.bp+1]
	}

	if d.data[d.bp] != 0xFF {
		d.bp++
		d.C += uint32(next) << 8
		d.CT = 8
		return
	}

	if next > 0x8F {
		d.C += 0xFF00
		d.CT = 8
		d.endCounter++
		return
	}
	d.bp++
	d.C += uint32(next) << 9
	d.CT = 7
}

// Decode decodes one binary decision under the given context.
func (d *MQDecoder) Decode(ctx int) int {
	stateIdx := d.contexts[ctx]
	qe := mqQe[stateIdx]
	mps := int(stateIdx & 1)

	d.A -= qe

	if (d.C >> 16) < qe {
		decision := mps
		if d.A < qe {
			d.A = qe
			d.contexts[ctx] = mqNMPS[stateIdx]
		} else {
			d.A = qe
			decision = 1 - mps
			d.contexts[ctx] = mqNLPS[stateIdx]
		}
		d.renorm()
		return decision
	}

	d.C -= qe << 16
	if d.A&0x8000 == 0 {
		decision := mps
		if d.A < qe {
			decision = 1 - mps
			d.contexts[ctx] = mqNLPS[stateIdx]
		} else {
			d.contexts[ctx] = mqNMPS[stateIdx]
		}
		d.renorm()
		return decision
	}
	return mps
}

// renorm performs decoder interval renormalization, pulling in bytes as
// CT depletes.
func (d *MQDecoder) renorm() {
	for d.A&0x8000 == 0 {
		if d.CT == 0 {
			d.byteIn()
		}
		d.A <<= 1
		d.C <<= 1
		d.CT--
	}
}

// ResetContext resets a single context to its initial state.
func (d *MQDecoder) ResetContext(ctx int) {
	if ctx == CtxUni {
		d.contexts[ctx] = uniformState
		return
	}
	d.contexts[ctx] = 0
}

// ResetAllContexts resets every context to its initial state.
func (d *MQDecoder) ResetAllContexts() {
	d.resetContexts()
}

// RawDecoder implements raw (bypass) mode bit decoding.
type RawDecoder struct {
	data []byte
	pos  int
	c    byte
	ct   int
}

// NewRawDecoder creates a raw decoder over data.
func NewRawDecoder(data []byte) *RawDecoder {
	return &RawDecoder{data: data}
}

// DecodeBit decodes a single bit in raw mode.
func (r *RawDecoder) DecodeBit() int {
	if r.ct == 0 {
		r.fill()
	}
	r.ct--
	return int((r.c >> r.ct) & 1)
}

func (r *RawDecoder) fill() {
	if r.c == 0xFF {
		if r.pos < len(r.data) && r.data[r.pos] > 0x8F {
			r.c = 0xFF
			r.ct = 8
			return
		}
		if r.pos < len(r.data) {
			r.c = r.data[r.pos]
			r.pos++
			r.ct = 7
			return
		}
		r.c = 0xFF
		r.ct = 8
		return
	}
	if r.pos < len(r.data) {
		r.c = r.data[r.pos]
		r.pos++
		r.ct = 8
		return
	}
	r.c = 0xFF
	r.ct = 8
}

// RawEncoder implements raw (bypass) mode bit encoding.
type RawEncoder struct {
	buf []byte
	c   uint32
	ct  int
}

// NewRawEncoder creates a raw encoder.
func NewRawEncoder() *RawEncoder {
	return &RawEncoder{
		buf: make([]byte, 0, 64),
		ct:  8,
	}
}

// EncodeBit encodes a single bit in raw mode.
func (r *RawEncoder) EncodeBit(bit int) {
	r.ct--
	r.c += uint32(bit&1) << r.ct
	if r.ct == 0 {
		r.buf = append(r.buf, byte(r.c))
		if byte(r.c) == 0xFF {
			r.ct = 7
		} else {
			r.ct = 8
		}
		r.c = 0
	}
}

// Flush flushes any partial byte and returns the encoded data.
func (r *RawEncoder) Flush() []byte {
	if r.ct < 8 {
		r.buf = append(r.buf, byte(r.c))
	}
	return r.buf
}
