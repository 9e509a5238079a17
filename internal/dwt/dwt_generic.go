//go:build !amd64 && !arm64

package dwt

const useSIMD = false

// Forward53Fast has no SIMD kernel on this architecture; it's the scalar
// Forward53 under a name the platform-specific builds also provide.
func Forward53Fast(data []int32, length int) {
	Forward53(data, length)
}

// clearInt32SliceFast zeroes data with a plain loop.
func clearInt32SliceFast(data []int32) {
	for i := range data {
		data[i] = 0
	}
}
