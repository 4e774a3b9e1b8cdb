package types

import (
	"github.com/holiman/uint256"
)

// FillQuoteAtoms computes the quote-atom cost of filling baseFill atoms at
// makerPrice (quote per base), rounding in the direction that never lets the
// maker receive less than its quoted price: round up when the taker is
// buying (paying quote), round down when the taker is selling (receiving
// quote) — see §4.4. The intermediate product is carried in 256 bits to
// avoid overflow before the final uint64 downcast, which is checked.
func FillQuoteAtoms(baseFill BaseAtoms, makerPrice Price, roundUp bool) (QuoteAtoms, bool) {
	num := uint256.NewInt(uint64(baseFill))
	num.Mul(num, uint256.NewInt(uint64(makerPrice.Mantissa)))

	e := makerPrice.Exponent
	var result *uint256.Int
	if e >= 0 {
		result = num.Mul(num, pow10(uint(e)))
	} else {
		den := pow10(uint(-e))
		q := new(uint256.Int).Div(num, den)
		if roundUp {
			r := new(uint256.Int).Mod(num, den)
			if !r.IsZero() {
				q.AddUint64(q, 1)
			}
		}
		result = q
	}

	if !result.IsUint64() {
		return 0, false
	}
	return QuoteAtoms(result.Uint64()), true
}

// LockedQuoteForBid returns the quote atoms a resting bid of size baseAtoms
// at price must lock, rounded up so the book never under-reserves (§4.4
// step 4: "bid locks quote atoms equal to remaining x price rounded up").
func LockedQuoteForBid(baseAtoms BaseAtoms, price Price) (QuoteAtoms, bool) {
	return FillQuoteAtoms(baseAtoms, price, true)
}

// CheckedAddBase adds two BaseAtoms values, reporting overflow.
func CheckedAddBase(a, b BaseAtoms) (BaseAtoms, bool) {
	sum := a + b
	return sum, sum >= a
}

// CheckedSubBase subtracts b from a, reporting underflow.
func CheckedSubBase(a, b BaseAtoms) (BaseAtoms, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// CheckedAddQuote adds two QuoteAtoms values, reporting overflow.
func CheckedAddQuote(a, b QuoteAtoms) (QuoteAtoms, bool) {
	sum := a + b
	return sum, sum >= a
}

// CheckedSubQuote subtracts b from a, reporting underflow.
func CheckedSubQuote(a, b QuoteAtoms) (QuoteAtoms, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
