// Package money implements fixed-precision arithmetic on integer minor
// currency units. Rates are converted to integer basis points so that no
// float ever participates in a stored amount.
package money

import (
	"fmt"
	"math"
)

// basisPointScale is the denominator for a percent rate expressed in basis
// points: 8.25% -> 825 basis points over 10000.
const basisPointScale = 10000

// Tax computes the tax on subtotal for a percent rate in [0,100].
// If inclusive, the tax is the portion already contained in subtotal:
// round(subtotal * rate / (100 + rate)); otherwise it is added on top:
// round(subtotal * rate / 100). Rounding is half away from zero at the
// minor-unit boundary.
func Tax(subtotalMinor int64, ratePercent float64, inclusive bool) int64 {
	if subtotalMinor <= 0 || ratePercent <= 0 {
		return 0
	}
	bp := int64(math.Round(ratePercent * 100))
	if bp <= 0 {
		return 0
	}
	den := int64(basisPointScale)
	if inclusive {
		den += bp
	}
	return divRoundHalfAway(subtotalMinor*bp, den)
}

// Totals returns (tax, total) such that total == subtotal + tax + shipping
// holds exactly. Each addend is rounded independently; totals are never
// produced by summing unrounded intermediate values.
func Totals(subtotalMinor int64, ratePercent float64, inclusive bool, shippingMinor int64) (int64, int64) {
	tax := Tax(subtotalMinor, ratePercent, inclusive)
	return tax, subtotalMinor + tax + shippingMinor
}

// Change returns the cash change due. Negative means the tender was short.
func Change(tenderedMinor, totalMinor int64) int64 {
	return tenderedMinor - totalMinor
}

// CardPortion returns the card leg of a split payment. Split payments never
// produce change; the card leg absorbs the remainder.
func CardPortion(totalMinor, cashPortionMinor int64) int64 {
	return totalMinor - cashPortionMinor
}

// Format renders a minor-unit amount as a decimal string with two fraction
// digits. Display boundary only; never parse this back into arithmetic.
func Format(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// divRoundHalfAway divides num by den rounding half away from zero.
// Both arguments must be positive.
func divRoundHalfAway(num, den int64) int64 {
	return (num + den/2) / den
}
