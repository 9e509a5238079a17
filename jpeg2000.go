// Package jpeg2000 provides a pure Go implementation of the JPEG 2000 codestream
// codec (ISO/IEC 15444-1, -2, and -15/HTJ2K).
//
// This package implements the codestream core only: wavelet transform,
// quantization, entropy coding (EBCOT and HTJ2K), and marker-segment framing.
// It does not implement JP2/JPX file containers or ICC colour management —
// callers who need those build them on top of the codestream bytes produced
// here.
//
// Basic usage for decoding:
//
//	f, _ := os.Open("image.j2k")
//	img, _, err := jpeg2000.Decode(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Basic usage for encoding:
//
//	f, _ := os.Create("output.j2k")
//	err := jpeg2000.Encode(f, img, jpeg2000.DefaultOptions())
package jpeg2000

import (
	"context"
	"image"
	"io"

	"github.com/go-j2k/codec/internal/codestream"
	"github.com/go-j2k/codec/internal/dwt"
)

// Kernel describes a custom arbitrary DWT kernel (Part 2), re-exported so
// callers can build one without importing the internal dwt package.
type Kernel = dwt.Kernel

// ProgressionOrder defines the order in which packets are encoded/decoded.
type ProgressionOrder = codestream.ProgressionOrder

// Progression order constants, re-exported from internal/codestream so
// callers never need to import the internal package directly.
const (
	LRCP = codestream.LRCP
	RLCP = codestream.RLCP
	RPCL = codestream.RPCL
	PCRL = codestream.PCRL
	CPRL = codestream.CPRL
)

// BitrateMode selects how the rate controller picks truncation points.
type BitrateMode int

const (
	// BitrateConstantQuality lets every code-block code to its natural
	// number of passes; no layer truncation is applied.
	BitrateConstantQuality BitrateMode = iota
	// BitrateConstantBPP truncates layers to hit a target bits-per-pixel.
	BitrateConstantBPP
	// BitrateVariable allows a quality floor and a bitrate ceiling.
	BitrateVariable
	// BitrateLossless disables the rate controller entirely (5/3, no truncation).
	BitrateLossless
)

// WaveletKernel names a DWT kernel. Custom kernels are carried by value in
// Options.CustomKernel and referenced from the codestream via an ADS marker.
type WaveletKernel int

const (
	// KernelDefault lets Lossless pick 5/3 or 9/7.
	KernelDefault WaveletKernel = iota
	KernelLeGall53
	KernelCDF97
	KernelCustom
)

// Options holds the encoding configuration. Field names and ranges mirror
// the configuration surface this codec is built against: quality,
// losslessness, decomposition depth, code-block geometry, quality layers,
// progression order, tiling, bitrate mode, HTJ2K, parallelism, perceptual
// weighting, and wavelet kernel selection.
type Options struct {
	// Quality is a perceptual quality target in [0, 1]. Ignored when
	// Lossless is true or BitrateMode is not BitrateConstantQuality.
	Quality float64

	// Lossless selects the 5/3 reversible wavelet and disables
	// quantization (quant.ModeNone).
	Lossless bool

	// DecompositionLevels is the number of DWT levels, in [0, 10].
	DecompositionLevels int

	// CodeBlockWidth, CodeBlockHeight are each a power of two in
	// [4, 1024] with product <= 4096.
	CodeBlockWidth, CodeBlockHeight int

	// QualityLayers is the number of quality layers, in [1, 20].
	QualityLayers int

	// ProgressionOrder selects packet interleaving.
	ProgressionOrder ProgressionOrder

	// TileWidth, TileHeight; zero means a single tile covering the image.
	TileWidth, TileHeight int

	// BitrateMode selects the rate-control strategy.
	BitrateMode BitrateMode
	// TargetBPP is used when BitrateMode is BitrateConstantBPP.
	TargetBPP float64
	// MinQuality, MaxBPP bound BitrateVariable.
	MinQuality, MaxBPP float64

	// UseHTJ2K selects the Part 15 high-throughput block coder (FBCOT)
	// in place of legacy EBCOT.
	UseHTJ2K bool

	// EnableParallelCodeBlocks codes code-blocks on a worker pool sized
	// to GOMAXPROCS instead of sequentially.
	EnableParallelCodeBlocks bool

	// VisualWeighting applies a contrast-sensitivity subband weighting
	// to the rate-distortion slopes used for layer formation.
	VisualWeighting bool

	// WaveletKernel selects among the named kernel library; KernelCustom
	// requires CustomKernel to be set.
	WaveletKernel WaveletKernel
	// CustomKernel supplies filter taps when WaveletKernel is KernelCustom.
	CustomKernel *Kernel

	// UseHighwayMCT routes the multiple-component transform through
	// github.com/ajroetker/go-highway's batch image kernels instead of
	// the scalar path in internal/mct.
	UseHighwayMCT bool

	// EnableSOP, EnableEPH control in-bitstream packet delimiters.
	EnableSOP, EnableEPH bool

	// Comment is carried in a COM marker.
	Comment string
}

// DefaultOptions returns reasonable lossy defaults: 9/7 kernel, 6
// resolutions, 64x64 code-blocks, single quality layer, LRCP.
func DefaultOptions() Options {
	return Options{
		Quality:             0.75,
		Lossless:            false,
		DecompositionLevels: 5,
		CodeBlockWidth:      64,
		CodeBlockHeight:     64,
		QualityLayers:       1,
		ProgressionOrder:    LRCP,
		BitrateMode:         BitrateConstantQuality,
		WaveletKernel:       KernelDefault,
	}
}

// Config holds decode-time options.
type Config struct {
	// DecodeArea restricts decoding to a sub-rectangle (nil = full image).
	DecodeArea *image.Rectangle
	// ReduceResolution skips this many finest resolution levels.
	ReduceResolution int
	// QualityLayers limits how many layers are decoded (0 = all).
	QualityLayers int
	// Strict mirrors the encoder's error-handling policy: when true,
	// the first decoding error aborts the tile; when false, the
	// offending code-block decodes to all-zero coefficients and
	// decoding continues (ISO/IEC 15444-1 Annex error-concealment
	// behaviour).
	Strict bool
}

// Metadata contains image metadata extracted from a codestream without
// decoding pixel data.
type Metadata struct {
	Width, Height       int
	NumComponents       int
	BitsPerComponent    []int
	Signed              []bool
	NumResolutions      int
	NumQualityLayers    int
	TileWidth, TileHeight int
	NumTilesX, NumTilesY  int
	Lossless            bool
	HTJ2K               bool
	Comment             string
}

// Decode reads a JPEG 2000 codestream from r and returns it as an
// image.Image plus its metadata. ctx is checked at tile and code-block
// boundaries; a cancelled context aborts with a wrapped context error and
// produces no partial image.
func Decode(ctx context.Context, r io.Reader, cfg Config) (image.Image, *Metadata, error) {
	d := newDecoder(r, cfg)
	return d.decode(ctx)
}

// DecodeMetadata reads only the header information without decoding pixels.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	d := newDecoder(r, Config{})
	return d.readMetadata()
}

// Encode writes m to w as a JPEG 2000 codestream using the given options.
func Encode(ctx context.Context, w io.Writer, m image.Image, o Options) error {
	e := newEncoder(w, m, o)
	return e.encode(ctx)
}
