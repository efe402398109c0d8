// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two arithmetic used to size
transforms. Radix-2 transforms need a power-of-two length, so windows
of arbitrary length are zero-padded up to NextPowerOfTwo(len).

	size := bitint.NextPowerOfTwo(2000) // 2048
	bins := bitint.OneSidedBins(size)   // 1025

NextPowerOfTwo subtracts one before taking the bit length so that an
exact power of two maps to itself:

	8 -> 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	9 -> 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Zero and negative sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// Powers of two have exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// OneSidedBins returns the number of non-redundant bins of a real-input
// transform of length n, i.e. DC through Nyquist.
func OneSidedBins(n int) int {
	if n <= 0 {
		return 0
	}
	return n/2 + 1
}
