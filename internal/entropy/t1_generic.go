//go:build !amd64 && !arm64

package entropy

// clearFlagsFast zeroes flags with a plain loop; no SIMD kernel exists
// for this architecture.
func clearFlagsFast(flags []T1Flags) {
	for i := range flags {
		flags[i] = 0
	}
}

const useSIMD = false
