//go:build arm64

package entropy

// zeroFlagsNEON clears a T1Flags slice using NEON wide stores.
//
//go:noescape
func zeroFlagsNEON(flags []T1Flags)

// clearFlagsFast zeroes flags through the NEON kernel above.
func clearFlagsFast(flags []T1Flags) {
	if len(flags) == 0 {
		return
	}
	zeroFlagsNEON(flags)
}

const useSIMD = true
