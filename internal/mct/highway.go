//go:build highway

package mct

import (
	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
)

// HighwayForwardRCT applies the reversible colour transform via
// go-highway's batch image kernels instead of the scalar per-sample loop
// in ForwardRCT. width/height describe the component planes; r, g, b must
// each have length width*height.
func HighwayForwardRCT(r, g, b []int32, width, height int) (y, cb, cr []int32) {
	rImg := imageFromSlice(r, width, height)
	gImg := imageFromSlice(g, width, height)
	bImg := imageFromSlice(b, width, height)
	yImg := hwyimage.NewImage[int32](width, height)
	cbImg := hwyimage.NewImage[int32](width, height)
	crImg := hwyimage.NewImage[int32](width, height)

	hwyimage.BaseForwardRCT(rImg, gImg, bImg, yImg, cbImg, crImg)

	return sliceFromImage(yImg), sliceFromImage(cbImg), sliceFromImage(crImg)
}

// HighwayInverseRCT is the synthesis counterpart of HighwayForwardRCT.
func HighwayInverseRCT(y, cb, cr []int32, width, height int) (r, g, b []int32) {
	yImg := imageFromSlice(y, width, height)
	cbImg := imageFromSlice(cb, width, height)
	crImg := imageFromSlice(cr, width, height)
	rImg := hwyimage.NewImage[int32](width, height)
	gImg := hwyimage.NewImage[int32](width, height)
	bImg := hwyimage.NewImage[int32](width, height)

	hwyimage.BaseInverseRCT(yImg, cbImg, crImg, rImg, gImg, bImg)

	return sliceFromImage(rImg), sliceFromImage(gImg), sliceFromImage(bImg)
}

// HighwayForwardICT applies the irreversible colour transform via
// go-highway's batch image kernels.
func HighwayForwardICT(r, g, b []float64, width, height int) (y, cb, cr []float64) {
	rImg := imageFromSliceF(r, width, height)
	gImg := imageFromSliceF(g, width, height)
	bImg := imageFromSliceF(b, width, height)
	yImg := hwyimage.NewImage[float64](width, height)
	cbImg := hwyimage.NewImage[float64](width, height)
	crImg := hwyimage.NewImage[float64](width, height)

	hwyimage.BaseForwardICT(rImg, gImg, bImg, yImg, cbImg, crImg)

	return sliceFromImageF(yImg), sliceFromImageF(cbImg), sliceFromImageF(crImg)
}

// HighwayInverseICT is the synthesis counterpart of HighwayForwardICT.
func HighwayInverseICT(y, cb, cr []float64, width, height int) (r, g, b []float64) {
	yImg := imageFromSliceF(y, width, height)
	cbImg := imageFromSliceF(cb, width, height)
	crImg := imageFromSliceF(cr, width, height)
	rImg := hwyimage.NewImage[float64](width, height)
	gImg := hwyimage.NewImage[float64](width, height)
	bImg := hwyimage.NewImage[float64](width, height)

	hwyimage.BaseInverseICT(yImg, cbImg, crImg, rImg, gImg, bImg)

	return sliceFromImageF(rImg), sliceFromImageF(gImg), sliceFromImageF(bImg)
}

func imageFromSlice(data []int32, width, height int) *hwyimage.Image[int32] {
	img := hwyimage.NewImage[int32](width, height)
	for y := 0; y < height; y++ {
		copy(img.RowSlice(y), data[y*width:(y+1)*width])
	}
	return img
}

func sliceFromImage(img *hwyimage.Image[int32]) []int32 {
	w, h := img.Width(), img.Height()
	out := make([]int32, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], img.RowSlice(y))
	}
	return out
}

func imageFromSliceF(data []float64, width, height int) *hwyimage.Image[float64] {
	img := hwyimage.NewImage[float64](width, height)
	for y := 0; y < height; y++ {
		copy(img.RowSlice(y), data[y*width:(y+1)*width])
	}
	return img
}

func sliceFromImageF(img *hwyimage.Image[float64]) []float64 {
	w, h := img.Width(), img.Height()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], img.RowSlice(y))
	}
	return out
}
