// Package fixedpoint provides 128-bit-safe integer math for the analyzers.
// Swap reserves and amounts are uint64, but a naive a*b/c in Go overflows
// whenever a*b exceeds 2^64 - every price-impact, depth-ratio, and
// constant-product computation in this package routes the multiply through
// a 256-bit intermediate before dividing back down.
package fixedpoint

import "github.com/holiman/uint256"

// MulDiv computes floor(a*b/c) without overflowing when a*b exceeds the
// range of a uint64. Returns 0 if c is zero.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	prod.Div(prod, uint256.NewInt(c))
	return prod.Uint64()
}

// RatioBps returns floor(numerator * 10000 / denominator), saturating at
// the uint64 max if the ratio itself would overflow. Returns 0 if
// denominator is zero.
func RatioBps(numerator, denominator uint64) uint64 {
	if denominator == 0 {
		return 0
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(numerator), uint256.NewInt(10000))
	prod.Div(prod, uint256.NewInt(denominator))
	if !prod.IsUint64() {
		return ^uint64(0)
	}
	return prod.Uint64()
}

// AbsDiff returns |a-b| without relying on signed arithmetic.
func AbsDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// DeviationBps returns the relative deviation, in basis points, of a from
// b: |a-b| * 10000 / min(a, b). Returns 0 if both are zero.
func DeviationBps(a, b uint64) uint64 {
	floor := a
	if b < floor {
		floor = b
	}
	if floor == 0 {
		if a == b {
			return 0
		}
		return ^uint64(0)
	}
	return RatioBps(AbsDiff(a, b), floor)
}

// ConstantProductOut returns the output amount a constant-product pool
// (x*y=k) yields for amountIn against the given reserves, after deducting
// a fee expressed in basis points (e.g. 30 = 0.30%).
func ConstantProductOut(amountIn, reserveIn, reserveOut, feeBps uint64) uint64 {
	if reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	amountInAfterFee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(10000-feeBps))
	numerator := new(uint256.Int).Mul(amountInAfterFee, uint256.NewInt(reserveOut))
	denominator := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(10000))
	denominator.Add(denominator, amountInAfterFee)
	if denominator.IsZero() {
		return 0
	}
	numerator.Div(numerator, denominator)
	if !numerator.IsUint64() {
		return ^uint64(0)
	}
	return numerator.Uint64()
}
