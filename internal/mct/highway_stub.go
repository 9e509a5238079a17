//go:build !highway

package mct

// HighwayForwardRCT falls back to the scalar in-place transform when the
// go-highway build tag is not set, copying into fresh output slices to
// match the tagged implementation's signature.
func HighwayForwardRCT(r, g, b []int32, width, height int) (y, cb, cr []int32) {
	y = append([]int32(nil), r...)
	cb = append([]int32(nil), g...)
	cr = append([]int32(nil), b...)
	ForwardRCT(y, cb, cr)
	return y, cb, cr
}

// HighwayInverseRCT is the fallback synthesis counterpart of HighwayForwardRCT.
func HighwayInverseRCT(y, cb, cr []int32, width, height int) (r, g, b []int32) {
	r = append([]int32(nil), y...)
	g = append([]int32(nil), cb...)
	b = append([]int32(nil), cr...)
	InverseRCT(r, g, b)
	return r, g, b
}

// HighwayForwardICT is the fallback of HighwayForwardICT.
func HighwayForwardICT(r, g, b []float64, width, height int) (y, cb, cr []float64) {
	y = append([]float64(nil), r...)
	cb = append([]float64(nil), g...)
	cr = append([]float64(nil), b...)
	ForwardICT(y, cb, cr)
	return y, cb, cr
}

// HighwayInverseICT is the fallback of HighwayInverseICT.
func HighwayInverseICT(y, cb, cr []float64, width, height int) (r, g, b []float64) {
	r = append([]float64(nil), y...)
	g = append([]float64(nil), cb...)
	b = append([]float64(nil), cr...)
	InverseICT(r, g, b)
	return r, g, b
}
