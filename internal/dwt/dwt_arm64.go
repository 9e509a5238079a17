//go:build arm64

package dwt

// predictOdd53NEON runs Forward53's odd-indexed lifting step
// (data[i] -= (data[i-1]+data[i+1])>>1) using NEON lanes.
//
//go:noescape
func predictOdd53NEON(data []int32, length int)

// updateEven53NEON runs Forward53's even-indexed lifting step
// (data[i] += (data[i-1]+data[i+1]+2)>>2) using NEON lanes.
//
//go:noescape
func updateEven53NEON(data []int32, length int)

// zeroInt32NEON zeroes a slice using NEON wide stores.
//
//go:noescape
func zeroInt32NEON(data []int32)

const useSIMD = true

// Forward53Fast is Forward53 with both lifting passes routed through the
// NEON kernels above instead of the scalar loops.
func Forward53Fast(data []int32, length int) {
	if length < 2 {
		return
	}
	predictOdd53NEON(data, length)
	updateEven53NEON(data, length)
	deinterleave(data, length)
}

// clearInt32SliceFast zeroes data using the NEON kernel.
func clearInt32SliceFast(data []int32) {
	if len(data) == 0 {
		return
	}
	zeroInt32NEON(data)
}
