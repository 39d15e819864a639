// SPDX-License-Identifier: MIT
//
// Package bitint holds the power-of-two check used to validate transform
// windows. It is O(1), allocation free and safe to call from the frame loop.
package bitint

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of two have a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
