package jpeg2000

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/go-j2k/codec/internal/codestream"
	"github.com/go-j2k/codec/internal/mct"
	"github.com/go-j2k/codec/internal/tcd"
)

// decoder handles JPEG 2000 decoding.
type decoder struct {
	r   io.Reader
	cfg Config
}

// newDecoder creates a new decoder.
func newDecoder(r io.Reader, cfg Config) *decoder {
	return &decoder{r: r, cfg: cfg}
}

// readMetadata parses just the main header and reports image geometry
// without decoding any tile data.
func (d *decoder) readMetadata() (*Metadata, error) {
	parser := codestream.NewParser(d.r)
	header, err := parser.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("jpeg2000: reading header: %w", err)
	}
	return metadataFromHeader(header), nil
}

func metadataFromHeader(header *codestream.Header) *Metadata {
	m := &Metadata{
		Width:            int(header.ImageWidth - header.ImageXOffset),
		Height:           int(header.ImageHeight - header.ImageYOffset),
		NumComponents:    int(header.NumComponents),
		NumResolutions:   header.CodingStyle.NumResolutions(),
		NumQualityLayers: int(header.CodingStyle.NumLayers),
		TileWidth:        int(header.TileWidth),
		TileHeight:       int(header.TileHeight),
		NumTilesX:        int(header.NumTilesX),
		NumTilesY:        int(header.NumTilesY),
		Lossless:         header.CodingStyle.IsReversible(),
		HTJ2K:            header.IsHTJ2K(),
		Comment:          header.Comment,
	}
	m.BitsPerComponent = make([]int, header.NumComponents)
	m.Signed = make([]bool, header.NumComponents)
	for c := range m.BitsPerComponent {
		m.BitsPerComponent[c] = header.ComponentInfo[c].Precision()
		m.Signed[c] = header.ComponentInfo[c].IsSigned()
	}
	return m
}

// decode runs the full decode pipeline: header parsing, packet decoding,
// dequantization, inverse wavelet transform, inverse colour transform,
// and image assembly.
func (d *decoder) decode(ctx context.Context) (image.Image, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("jpeg2000: decode: %w", err)
	}

	parser := codestream.NewParser(d.r)
	header, err := parser.ReadHeader()
	if err != nil {
		return nil, nil, fmt.Errorf("jpeg2000: reading header: %w", err)
	}

	if _, err := parser.ReadTilePartHeader(); err != nil {
		return nil, nil, fmt.Errorf("jpeg2000: reading tile-part header: %w", err)
	}

	body, err := io.ReadAll(d.r)
	if err != nil {
		return nil, nil, fmt.Errorf("jpeg2000: reading tile data: %w", err)
	}
	body = bytes.TrimSuffix(body, []byte{0xFF, 0xD9})

	img, err := d.decodeTile(ctx, header, body)
	if err != nil {
		return nil, nil, err
	}
	return img, metadataFromHeader(header), nil
}

// decodeTile decodes the single tile-part present in body into an image.
func (d *decoder) decodeTile(ctx context.Context, header *codestream.Header, body []byte) (image.Image, error) {
	tileDecoder := tcd.NewTileDecoder(header)
	tileDecoder.SetHTJ2K(header.IsHTJ2K())
	tileDecoder.InitTile(0)
	tile := tileDecoder.Tile()

	numRes := header.CodingStyle.NumResolutions()
	numLayers := int(header.CodingStyle.NumLayers)
	if numLayers <= 0 {
		numLayers = 1
	}
	if d.cfg.QualityLayers > 0 && d.cfg.QualityLayers < numLayers {
		numLayers = d.cfg.QualityLayers
	}

	precinctCounts := make([][][]int, len(tile.Components))
	for c, tc_ := range tile.Components {
		tcd.BuildPrecincts(header, tc_)
		precinctCounts[c] = make([][]int, len(tc_.Resolutions))
		for r := range tc_.Resolutions {
			precinctCounts[c][r] = []int{1}
		}
	}

	dec := tcd.NewPacketDecoder(body)
	it := tcd.NewPacketIterator(len(tile.Components), numRes, numLayers, precinctCounts, codestream.ProgressionOrder(header.CodingStyle.ProgressionOrder))
	sop := header.CodingStyle.CodingStyle&codestream.CodingStyleSOP != 0
	eph := header.CodingStyle.CodingStyle&codestream.CodingStyleEPH != 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("jpeg2000: decode tile: %w", err)
		}
		p, ok := it.Next()
		if !ok {
			break
		}
		tc_ := tile.Components[p.Component]
		if p.Resolution >= len(tc_.Resolutions) {
			continue
		}
		res := tc_.Resolutions[p.Resolution]
		if len(res.Precincts) == 0 {
			continue
		}
		precinct := res.Precincts[0]
		if err := dec.DecodePacket(precinct, p.Layer, sop, eph); err != nil {
			if d.cfg.Strict {
				return nil, fmt.Errorf("jpeg2000: decoding packet: %w", err)
			}
			continue
		}
	}

	for _, tc_ := range tile.Components {
		for resIdx, res := range tc_.Resolutions {
			for _, band := range res.Bands {
				for _, cb := range band.CodeBlocks {
					if err := tileDecoder.DecodeCodeBlock(cb, band.Type); err != nil {
						if d.cfg.Strict {
							return nil, fmt.Errorf("jpeg2000: decoding code-block: %w", err)
						}
						continue
					}
					tileDecoder.DequantizeCodeBlock(tc_, resIdx, band, cb)
				}
			}
		}
		tileDecoder.ApplyInverseDWT(tc_)
	}

	numComponents := len(tile.Components)
	componentData := make([][]int32, numComponents)
	for c, tc_ := range tile.Components {
		componentData[c] = tc_.Data
	}

	width := tile.X1 - tile.X0
	height := tile.Y1 - tile.Y0
	reversible := header.CodingStyle.IsReversible()

	if numComponents >= 3 {
		d.applyInverseMCT(componentData, reversible, width, height)
	}
	for c := 0; c < numComponents; c++ {
		mct.DCLevelShiftInverse(componentData[c], header.ComponentInfo[c].Precision())
	}

	return buildImage(componentData, width, height, header), nil
}

// applyInverseMCT reverses the encoder's colour transform across the
// first three components, preferring the go-highway kernels whenever the
// build tag is present since they are a pure acceleration of the same
// arithmetic and the codestream carries no flag distinguishing them.
func (d *decoder) applyInverseMCT(componentData [][]int32, reversible bool, width, height int) {
	if reversible {
		r, g, b := mct.HighwayInverseRCT(componentData[0], componentData[1], componentData[2], width, height)
		componentData[0], componentData[1], componentData[2] = r, g, b
		return
	}

	yf := toFloat(componentData[0])
	cbf := toFloat(componentData[1])
	crf := toFloat(componentData[2])
	rf, gf, bf := mct.HighwayInverseICT(yf, cbf, crf, width, height)
	roundInto(componentData[0], rf)
	roundInto(componentData[1], gf)
	roundInto(componentData[2], bf)
}

// buildImage assembles the decoded component planes into a concrete
// image.Image, picking the standard-library type matching component
// count and bit depth, mirroring extractImageData's inverse.
func buildImage(componentData [][]int32, width, height int, header *codestream.Header) image.Image {
	numComponents := len(componentData)
	precision := header.ComponentInfo[0].Precision()
	rect := image.Rect(0, 0, width, height)

	clampTo := func(v int32, maxVal int32) int32 {
		if v < 0 {
			return 0
		}
		if v > maxVal {
			return maxVal
		}
		return v
	}

	switch {
	case numComponents == 1 && precision <= 8:
		img := image.NewGray(rect)
		for i := 0; i < width*height; i++ {
			img.Pix[i] = uint8(clampTo(componentData[0][i], 255))
		}
		return img

	case numComponents == 1:
		img := image.NewGray16(rect)
		for i := 0; i < width*height; i++ {
			v := uint16(clampTo(componentData[0][i], 65535))
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img

	case numComponents == 4 && precision <= 8:
		img := image.NewNRGBA(rect)
		for i := 0; i < width*height; i++ {
			o := 4 * i
			img.Pix[o] = uint8(clampTo(componentData[0][i], 255))
			img.Pix[o+1] = uint8(clampTo(componentData[1][i], 255))
			img.Pix[o+2] = uint8(clampTo(componentData[2][i], 255))
			img.Pix[o+3] = uint8(clampTo(componentData[3][i], 255))
		}
		return img

	case numComponents == 4:
		img := image.NewNRGBA64(rect)
		for i := 0; i < width*height; i++ {
			o := 8 * i
			r := uint16(clampTo(componentData[0][i], 65535))
			g := uint16(clampTo(componentData[1][i], 65535))
			b := uint16(clampTo(componentData[2][i], 65535))
			a := uint16(clampTo(componentData[3][i], 65535))
			img.Pix[o], img.Pix[o+1] = uint8(r>>8), uint8(r)
			img.Pix[o+2], img.Pix[o+3] = uint8(g>>8), uint8(g)
			img.Pix[o+4], img.Pix[o+5] = uint8(b>>8), uint8(b)
			img.Pix[o+6], img.Pix[o+7] = uint8(a>>8), uint8(a)
		}
		return img

	case precision <= 8:
		img := image.NewRGBA(rect)
		for i := 0; i < width*height; i++ {
			o := 4 * i
			img.Pix[o] = uint8(clampTo(componentData[0][i], 255))
			img.Pix[o+1] = uint8(clampTo(componentData[1][i], 255))
			img.Pix[o+2] = uint8(clampTo(componentData[2][i], 255))
			img.Pix[o+3] = 255
		}
		return img

	default:
		img := image.NewRGBA64(rect)
		for i := 0; i < width*height; i++ {
			o := 8 * i
			r := uint16(clampTo(componentData[0][i], 65535))
			g := uint16(clampTo(componentData[1][i], 65535))
			b := uint16(clampTo(componentData[2][i], 65535))
			img.Pix[o], img.Pix[o+1] = uint8(r>>8), uint8(r)
			img.Pix[o+2], img.Pix[o+3] = uint8(g>>8), uint8(g)
			img.Pix[o+4], img.Pix[o+5] = uint8(b>>8), uint8(b)
			img.Pix[o+6], img.Pix[o+7] = 0xFF, 0xFF
		}
		return img
	}
}
