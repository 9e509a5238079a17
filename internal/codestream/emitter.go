package codestream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Emitter writes marker-delimited codestream segments to an io.Writer. It
// is the symmetric counterpart of Parser: every segment Emitter writes,
// Parser can read back byte-identically (spec §8's marker round-trip
// laws).
type Emitter struct {
	w   io.Writer
	err error
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Err returns the first error encountered by any Write* call.
func (e *Emitter) Err() error { return e.err }

func (e *Emitter) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *Emitter) writeMarker(m Marker) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(m))
	e.write(b[:])
}

// WriteSOC writes the SOC delimiter.
func (e *Emitter) WriteSOC() { e.writeMarker(SOC) }

// WriteEOC writes the EOC delimiter.
func (e *Emitter) WriteEOC() { e.writeMarker(EOC) }

// WriteSOD writes the SOD delimiter.
func (e *Emitter) WriteSOD() { e.writeMarker(SOD) }

// WriteSIZ emits the SIZ marker segment.
func (e *Emitter) WriteSIZ(h *Header) {
	payload := make([]byte, 0, 38+3*len(h.ComponentInfo))
	payload = appendUint16(payload, h.Profile)
	payload = appendUint32(payload, h.ImageWidth)
	payload = appendUint32(payload, h.ImageHeight)
	payload = appendUint32(payload, h.ImageXOffset)
	payload = appendUint32(payload, h.ImageYOffset)
	payload = appendUint32(payload, h.TileWidth)
	payload = appendUint32(payload, h.TileHeight)
	payload = appendUint32(payload, h.TileXOffset)
	payload = appendUint32(payload, h.TileYOffset)
	payload = appendUint16(payload, h.NumComponents)
	for _, c := range h.ComponentInfo {
		payload = append(payload, c.BitDepth, c.SubsamplingX, c.SubsamplingY)
	}
	e.writeSegment(SIZ, payload)
}

// WriteCOD emits the COD marker segment.
func (e *Emitter) WriteCOD(c CodingStyleDefault) {
	payload := []byte{
		c.CodingStyle,
		c.ProgressionOrder,
		byte(c.NumLayers >> 8), byte(c.NumLayers),
		c.MultipleComponentXf,
		c.NumDecompositions,
		c.CodeBlockWidthExp,
		c.CodeBlockHeightExp,
		c.CodeBlockStyle,
		c.WaveletTransform,
	}
	if c.CodingStyle&CodingStylePrecincts != 0 {
		for _, ps := range c.PrecinctSizes {
			payload = append(payload, ps.WidthExp|(ps.HeightExp<<4))
		}
	}
	e.writeSegment(COD, payload)
}

// WriteQCD emits the QCD marker segment.
func (e *Emitter) WriteQCD(q QuantizationDefault) {
	sqcd := (q.NumGuardBits << 5) | (q.QuantizationStyle & 0x1F)
	payload := []byte{sqcd}
	style := q.QuantizationStyle & 0x1F
	for _, s := range q.StepSizes {
		if style == QuantizationNone {
			payload = append(payload, s.Exponent<<3)
		} else {
			v := (uint16(s.Exponent) << 11) | (s.Mantissa & 0x7FF)
			payload = append(payload, byte(v>>8), byte(v))
		}
	}
	e.writeSegment(QCD, payload)
}

// WriteCAP emits the CAP marker segment.
func (e *Emitter) WriteCAP(c CapabilitiesMarker) {
	payload := make([]byte, 0, 4+2*len(c.CCAPi))
	payload = appendUint32(payload, c.Pcap)
	for _, v := range c.CCAPi {
		payload = appendUint16(payload, v)
	}
	e.writeSegment(CAP, payload)
}

// WriteCPF emits the CPF marker segment.
func (e *Emitter) WriteCPF(c CorrespondingProfileMarker) {
	payload := appendUint16(nil, c.Pcpf)
	e.writeSegment(CPF, payload)
}

// WriteADS emits one ADS marker segment per spec §4.7/scenario S5.
func (e *Emitter) WriteADS(a ArbitraryDecomposition) {
	payload := []byte{a.Index, a.DecompositionOrder, a.MaxLevels}
	for _, n := range a.Nodes {
		var flags uint8
		if n.Horizontal {
			flags |= 0x01
		}
		if n.Vertical {
			flags |= 0x02
		}
		payload = append(payload, flags, n.KernelIndex)
	}
	e.writeSegment(ADS, payload)
}

// WriteCOM emits a text comment.
func (e *Emitter) WriteCOM(comment string) {
	payload := appendUint16(nil, CommentLatin1)
	payload = append(payload, []byte(comment)...)
	e.writeSegment(COM, payload)
}

// WriteSOT emits a tile-part SOT header. tilePartLength must include the
// SOT segment itself per spec §4.7 (Psot "tile-part length including SOT").
func (e *Emitter) WriteSOT(tileIndex uint16, tilePartLength uint32, tilePartIndex, numTileParts uint8) {
	payload := make([]byte, 0, 8)
	payload = appendUint16(payload, tileIndex)
	payload = appendUint32(payload, tilePartLength)
	payload = append(payload, tilePartIndex, numTileParts)
	e.writeSegment(SOT, payload)
}

// writeSegment writes marker + big-endian length (length field counts
// itself) + payload, matching the parser's expectations exactly.
func (e *Emitter) writeSegment(m Marker, payload []byte) {
	if e.err != nil {
		return
	}
	length := len(payload) + 2
	if length > 0xFFFF {
		e.err = fmt.Errorf("codestream: %s segment too long: %d bytes", m, length)
		return
	}
	e.writeMarker(m)
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(length))
	e.write(lb[:])
	e.write(payload)
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
