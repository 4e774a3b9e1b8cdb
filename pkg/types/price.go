package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Price is mantissa*10^exponent, compared by cross-multiplication so that
// (100, 0) and (10, 1) are recognized as equal (§3.1).
type Price struct {
	Mantissa uint32
	Exponent int8
}

// MinExponent and MaxExponent bound Price.Exponent per §3.1.
const (
	MinExponent int8 = -20
	MaxExponent int8 = 20
)

func pow10(n uint) *uint256.Int {
	out := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint(0); i < n; i++ {
		out.Mul(out, ten)
	}
	return out
}

// scaledFrom returns mantissa*10^(exponent-base) as a 256-bit integer, where
// base is chosen by the caller to be <= exponent so the result needs no
// fractional part.
func (p Price) scaledFrom(base int) *uint256.Int {
	v := uint256.NewInt(uint64(p.Mantissa))
	e := int(p.Exponent) - base
	return v.Mul(v, pow10(uint(e)))
}

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater than
// other, using 128/256-bit cross-multiplication to avoid precision loss.
func (p Price) Compare(other Price) int {
	base := int(p.Exponent)
	if int(other.Exponent) < base {
		base = int(other.Exponent)
	}
	a := p.scaledFrom(base)
	b := other.scaledFrom(base)
	return a.Cmp(b)
}

func (p Price) Less(other Price) bool    { return p.Compare(other) < 0 }
func (p Price) Equal(other Price) bool   { return p.Compare(other) == 0 }
func (p Price) Greater(o Price) bool     { return p.Compare(o) > 0 }
func (p Price) GreaterEq(o Price) bool   { return p.Compare(o) >= 0 }
func (p Price) LessEq(o Price) bool      { return p.Compare(o) <= 0 }

func (p Price) String() string {
	return fmt.Sprintf("%d*10^%d", p.Mantissa, p.Exponent)
}

// AdjustByBps returns p scaled by (1 + bps/10000) in p's own exponent,
// truncating the mantissa, or rounding it up when roundUp is set and the
// division leaves a remainder. bps may be
// negative (discount) or positive (premium); it is the caller's job to pick
// the sign (Reverse orders flip to the opposite side at a worse price for
// the new resting side).
func (p Price) AdjustByBps(bps int32, roundUp bool) Price {
	num := uint256.NewInt(uint64(p.Mantissa))
	num.Mul(num, uint256.NewInt(uint64(10000+int64(bps))))
	den := uint256.NewInt(10000)
	q := new(uint256.Int).Div(num, den)
	r := new(uint256.Int).Mod(num, den)
	if roundUp && !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return Price{Mantissa: uint32(q.Uint64()), Exponent: p.Exponent}
}
