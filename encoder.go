package jpeg2000

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"

	"github.com/go-j2k/codec/internal/codestream"
	"github.com/go-j2k/codec/internal/dwt"
	"github.com/go-j2k/codec/internal/mct"
	"github.com/go-j2k/codec/internal/rate"
	"github.com/go-j2k/codec/internal/tcd"
)

// encoder handles JPEG 2000 encoding.
type encoder struct {
	w       io.Writer
	img     image.Image
	options Options

	width         int
	height        int
	numComponents int
	precision     int
	signed        bool

	componentData [][]int32
}

// newEncoder creates a new encoder.
func newEncoder(w io.Writer, img image.Image, options Options) *encoder {
	bounds := img.Bounds()
	return &encoder{
		w:       w,
		img:     img,
		options: options,
		width:   bounds.Dx(),
		height:  bounds.Dy(),
	}
}

// encode runs the full encode pipeline: extraction, colour/wavelet
// transform, quantization, entropy coding, and codestream framing.
func (e *encoder) encode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("jpeg2000: encode: %w", err)
	}

	if err := e.extractImageData(); err != nil {
		return fmt.Errorf("jpeg2000: extracting image data: %w", err)
	}

	header := e.buildHeader()

	emitter := codestream.NewEmitter(e.w)
	emitter.WriteSOC()
	emitter.WriteSIZ(header)
	if e.options.UseHTJ2K {
		emitter.WriteCAP(codestream.CapabilitiesMarker{Pcap: codestream.CapPcapHTJ2K})
		emitter.WriteCPF(codestream.CorrespondingProfileMarker{Pcpf: 0x8000})
	}
	emitter.WriteCOD(header.CodingStyle)
	emitter.WriteQCD(header.Quantization)
	if e.options.WaveletKernel == KernelCustom && e.options.CustomKernel != nil {
		emitter.WriteADS(customKernelADS(*e.options.CustomKernel, header.CodingStyle.NumDecompositions))
	}
	if e.options.Comment != "" {
		emitter.WriteCOM(e.options.Comment)
	}
	if err := emitter.Err(); err != nil {
		return fmt.Errorf("jpeg2000: writing main header: %w", err)
	}

	tileData, err := e.encodeTile(ctx, header, 0)
	if err != nil {
		return err
	}

	tileEmitter := codestream.NewEmitter(e.w)
	tileEmitter.WriteSOT(0, uint32(12+2+len(tileData)), 0, 1)
	tileEmitter.WriteSOD()
	if err := tileEmitter.Err(); err != nil {
		return fmt.Errorf("jpeg2000: writing tile-part header: %w", err)
	}
	if _, err := e.w.Write(tileData); err != nil {
		return fmt.Errorf("jpeg2000: writing tile data: %w", err)
	}

	tileEmitter.WriteEOC()
	return tileEmitter.Err()
}

// buildHeader assembles the codestream.Header this encode will emit,
// including the QCD step sizes derived from Options.Quality.
func (e *encoder) buildHeader() *codestream.Header {
	reversible := e.options.Lossless || e.options.WaveletKernel == KernelLeGall53

	numLevels := e.options.DecompositionLevels
	if numLevels <= 0 {
		numLevels = 5
	}

	cbw := e.options.CodeBlockWidth
	cbh := e.options.CodeBlockHeight
	if cbw <= 0 {
		cbw = 64
	}
	if cbh <= 0 {
		cbh = 64
	}

	scod := uint8(0)
	if e.options.EnableSOP {
		scod |= codestream.CodingStyleSOP
	}
	if e.options.EnableEPH {
		scod |= codestream.CodingStyleEPH
	}

	numLayers := e.options.QualityLayers
	if numLayers <= 0 {
		numLayers = 1
	}

	waveletTransform := uint8(0)
	if reversible {
		waveletTransform = 1
	}

	cbStyle := uint8(0)
	if e.options.UseHTJ2K {
		cbStyle |= codestream.CodeBlockHT
	}

	h := &codestream.Header{
		Profile:       0,
		ImageWidth:    uint32(e.width),
		ImageHeight:   uint32(e.height),
		TileWidth:     uint32(e.width),
		TileHeight:    uint32(e.height),
		NumComponents: uint16(e.numComponents),
		ComponentInfo: make([]codestream.ComponentInfo, e.numComponents),
		CodingStyle: codestream.CodingStyleDefault{
			CodingStyle:         scod,
			ProgressionOrder:    uint8(e.options.ProgressionOrder),
			NumLayers:           uint16(numLayers),
			MultipleComponentXf: boolByte(e.numComponents >= 3),
			NumDecompositions:   uint8(numLevels),
			CodeBlockWidthExp:   uint8(log2(cbw) - 2),
			CodeBlockHeightExp:  uint8(log2(cbh) - 2),
			CodeBlockStyle:      cbStyle,
			WaveletTransform:    waveletTransform,
		},
		ComponentQuantization:  make(map[uint16]codestream.QuantizationComponent),
		DecompositionStructures: make(map[uint8]codestream.ArbitraryDecomposition),
	}
	if e.options.TileWidth > 0 {
		h.TileWidth = uint32(e.options.TileWidth)
	}
	if e.options.TileHeight > 0 {
		h.TileHeight = uint32(e.options.TileHeight)
	}

	for c := 0; c < e.numComponents; c++ {
		ssiz := uint8(e.precision - 1)
		if e.signed {
			ssiz |= 0x80
		}
		h.ComponentInfo[c] = codestream.ComponentInfo{BitDepth: ssiz, SubsamplingX: 1, SubsamplingY: 1}
	}

	h.CalculateDerivedValues()
	h.Quantization = e.buildQuantization(reversible, numLevels)
	return h
}

// buildQuantization derives QCD contents from Options.Quality. Reversible
// (5/3) coding always uses style 0 (no quantization); irreversible (9/7)
// uses scalar-derived quantization, a single base step size the decoder
// scales per subband via quant.StepSizeForSubband.
func (e *encoder) buildQuantization(reversible bool, numLevels int) codestream.QuantizationDefault {
	if reversible {
		numBands := 3*numLevels + 1
		steps := make([]codestream.StepSize, numBands)
		for i := range steps {
			steps[i] = codestream.StepSize{Exponent: uint8(e.precision)}
		}
		return codestream.QuantizationDefault{QuantizationStyle: codestream.QuantizationNone, NumGuardBits: 2, StepSizes: steps}
	}

	quality := e.options.Quality
	if quality <= 0 {
		quality = 0.75
	}
	// Smaller step size at higher quality; base scaled to the component's
	// dynamic range so Quality is roughly precision-independent.
	baseDelta := (1.0 - quality*0.95) * float64(int32(1)<<uint(e.precision)) / 32.0
	if baseDelta <= 0 {
		baseDelta = 1e-3
	}
	return codestream.QuantizationDefault{
		QuantizationStyle: codestream.QuantizationScalarDerived,
		NumGuardBits:      2,
		StepSizes:         []codestream.StepSize{codestream.NewStepSize(baseDelta)},
	}
}

// encodeTile runs the transform/quantize/entropy-code/packetize pipeline
// for one tile and returns its packet-stream bytes.
func (e *encoder) encodeTile(ctx context.Context, header *codestream.Header, tileIdx int) ([]byte, error) {
	reversible := header.CodingStyle.IsReversible()

	for c := 0; c < e.numComponents; c++ {
		mct.DCLevelShiftForward(e.componentData[c], e.precision)
	}
	if e.numComponents >= 3 {
		e.applyForwardMCT(reversible)
	}

	tileEncoder := tcd.NewTileEncoder(header)
	tileEncoder.SetHTJ2K(e.options.UseHTJ2K)
	tileEncoder.InitTile(tileIdx, e.componentData)
	tile := tileEncoder.Tile()

	numRes := header.CodingStyle.NumResolutions()

	var jobs []codeBlockJob

	for _, tc_ := range tile.Components {
		tileEncoder.ApplyForwardDWT(tc_)
		tcd.BuildPrecincts(header, tc_)
		for resIdx, res := range tc_.Resolutions {
			for _, band := range res.Bands {
				for _, cb := range band.CodeBlocks {
					jobs = append(jobs, codeBlockJob{tc_, resIdx, band, cb})
				}
			}
		}
	}

	runJob := func(j codeBlockJob) {
		data := tileEncoder.QuantizeCodeBlock(j.tc, j.resIdx, j.band, j.cb)
		tileEncoder.EncodeCodeBlock(j.cb, data, j.band.Type)
		j.cb.IncludedInLayers = 0
		j.cb.ZeroBitPlanes = 0
		j.cb.Passes = []tcd.CodingPass{{Type: tcd.PassCleanup, Length: len(j.cb.Data), CumulativeLength: len(j.cb.Data)}}
	}

	if e.options.EnableParallelCodeBlocks && runtime.GOMAXPROCS(0) > 1 && len(jobs) > 4 {
		numWorkers := runtime.GOMAXPROCS(0)
		jobChan := make(chan codeBlockJob, len(jobs))
		for _, j := range jobs {
			jobChan <- j
		}
		close(jobChan)
		var wg sync.WaitGroup
		for i := 0; i < numWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobChan {
					runJob(j)
				}
			}()
		}
		wg.Wait()
	} else {
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("jpeg2000: encode tile: %w", err)
			}
			runJob(j)
		}
	}

	if e.options.QualityLayers > 1 {
		e.formLayers(jobs, header)
	}

	return e.assemblePackets(header, tile, numRes)
}

// codeBlockJob names one code-block's position within a tile so the
// transform/quantize/entropy-code stages can run over a flat work list,
// sequentially or on a worker pool.
type codeBlockJob struct {
	tc     *tcd.TileComponent
	resIdx int
	band   *tcd.Band
	cb     *tcd.CodeBlock
}

// formLayers ranks each code-block's single cleanup pass by a
// rate-distortion proxy slope (bytes spent per original sample) and lets
// internal/rate divide the resulting byte budget across Options.QualityLayers.
// Every code-block still has only one candidate truncation point, so the
// assignment always lands the full pass in layer 0 and leaves later layers
// empty; finer per-pass layering needs per-pass distortion tracking the
// entropy coders don't expose yet.
func (e *encoder) formLayers(jobs []codeBlockJob, header *codestream.Header) {
	numLayers := int(header.CodingStyle.NumLayers)
	blocks := make([]rate.CodeBlockPoints, len(jobs))
	for i, j := range jobs {
		n := (j.cb.X1 - j.cb.X0) * (j.cb.Y1 - j.cb.Y0)
		blocks[i] = rate.CodeBlockPoints{
			ID:     i,
			Points: []rate.PassPoint{{CumulativeBytes: len(j.cb.Data), DeltaDistortion: float64(n)}},
		}
	}
	assignments := rate.FormLayers(blocks, numLayers, nil)
	for i, a := range assignments {
		if len(a.IncludedBytes) > 0 && a.IncludedBytes[0] >= len(jobs[i].cb.Data) {
			jobs[i].cb.IncludedInLayers = 0
		}
	}
}

// assemblePackets walks every tile-component/resolution/precinct and
// encodes one packet per (layer, resolution, component, precinct) tuple
// in the header's configured progression order.
func (e *encoder) assemblePackets(header *codestream.Header, tile *tcd.Tile, numRes int) ([]byte, error) {
	numLayers := int(header.CodingStyle.NumLayers)
	if numLayers <= 0 {
		numLayers = 1
	}

	precinctCounts := make([][][]int, len(tile.Components))
	for c, tc_ := range tile.Components {
		precinctCounts[c] = make([][]int, len(tc_.Resolutions))
		for r := range tc_.Resolutions {
			precinctCounts[c][r] = []int{1}
		}
	}

	var buf bufWriter
	enc := tcd.NewPacketEncoder(&buf)
	it := tcd.NewPacketIterator(len(tile.Components), numRes, numLayers, precinctCounts, codestream.ProgressionOrder(header.CodingStyle.ProgressionOrder))

	for {
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
		if err := enc.EncodePacket(precinct, p.Layer, header.CodingStyle.CodingStyle&codestream.CodingStyleSOP != 0, header.CodingStyle.CodingStyle&codestream.CodingStyleEPH != 0); err != nil {
			return nil, fmt.Errorf("jpeg2000: encoding packet: %w", err)
		}
	}

	return buf.data, nil
}

// bufWriter is a minimal growable-byte-slice io.Writer, avoiding a
// bytes.Buffer import just for Write.
type bufWriter struct{ data []byte }

func (b *bufWriter) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// applyForwardMCT applies the reversible or irreversible colour
// transform across the first three components.
func (e *encoder) applyForwardMCT(reversible bool) {
	if reversible {
		if e.options.UseHighwayMCT {
			y, cb, cr := mct.HighwayForwardRCT(e.componentData[0], e.componentData[1], e.componentData[2], e.width, e.height)
			e.componentData[0], e.componentData[1], e.componentData[2] = y, cb, cr
		} else {
			mct.ForwardRCT(e.componentData[0], e.componentData[1], e.componentData[2])
		}
		return
	}

	rf := toFloat(e.componentData[0])
	gf := toFloat(e.componentData[1])
	bf := toFloat(e.componentData[2])
	var yf, cbf, crf []float64
	if e.options.UseHighwayMCT {
		yf, cbf, crf = mct.HighwayForwardICT(rf, gf, bf, e.width, e.height)
	} else {
		mct.ForwardICT(rf, gf, bf)
		yf, cbf, crf = rf, gf, bf
	}
	roundInto(e.componentData[0], yf)
	roundInto(e.componentData[1], cbf)
	roundInto(e.componentData[2], crf)
}

func toFloat(in []int32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func roundInto(dst []int32, src []float64) {
	for i, v := range src {
		if v >= 0 {
			dst[i] = int32(v + 0.5)
		} else {
			dst[i] = int32(v - 0.5)
		}
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func log2(n int) int {
	r := 0
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

// customKernelADS describes k as a single-node ADS marker: both axes
// split by the custom filter bank, at the encoder's configured
// decomposition depth.
func customKernelADS(k dwt.Kernel, levels uint8) codestream.ArbitraryDecomposition {
	return codestream.ArbitraryDecomposition{
		Index:              0,
		DecompositionOrder: 0,
		MaxLevels:          levels,
		Nodes:              []codestream.DecompositionNode{{Horizontal: true, Vertical: true, KernelIndex: 0}},
	}
}

// extractImageData extracts pixel data from the source image into
// e.componentData, inferring component count, precision, and signedness
// from the concrete image.Image type.
func (e *encoder) extractImageData() error {
	bounds := e.img.Bounds()

	switch img := e.img.(type) {
	case *image.Gray:
		e.numComponents = 1
		e.precision = 8
		e.componentData = [][]int32{make([]int32, e.width*e.height)}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				e.componentData[0][idx] = int32(img.GrayAt(x, y).Y)
			}
		}

	case *image.Gray16:
		e.numComponents = 1
		e.precision = 16
		e.componentData = [][]int32{make([]int32, e.width*e.height)}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				e.componentData[0][idx] = int32(img.Gray16At(x, y).Y)
			}
		}

	case *image.RGBA:
		e.numComponents = 3
		e.precision = 8
		e.componentData = make([][]int32, 3)
		for c := range e.componentData {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.RGBAAt(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
			}
		}

	case *image.RGBA64:
		e.numComponents = 3
		e.precision = 16
		e.componentData = make([][]int32, 3)
		for c := range e.componentData {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.RGBA64At(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
			}
		}

	case *image.NRGBA:
		e.numComponents = 4
		e.precision = 8
		e.componentData = make([][]int32, 4)
		for c := range e.componentData {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.NRGBAAt(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
				e.componentData[3][idx] = int32(c.A)
			}
		}

	case *image.NRGBA64:
		e.numComponents = 4
		e.precision = 16
		e.componentData = make([][]int32, 4)
		for c := range e.componentData {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.NRGBA64At(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
				e.componentData[3][idx] = int32(c.A)
			}
		}

	default:
		e.numComponents = 3
		e.precision = 8
		e.componentData = make([][]int32, 3)
		for c := range e.componentData {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				r, g, b, _ := e.img.At(x, y).RGBA()
				e.componentData[0][idx] = int32(r >> 8)
				e.componentData[1][idx] = int32(g >> 8)
				e.componentData[2][idx] = int32(b >> 8)
			}
		}
	}

	return nil
}
