package bounty

import (
	"math/big"

	nativecommon "primenumbers/native/common"
)

// BoostCurve shapes the base bounty from the current and reference reward
// token prices. reference may be nil when no previous window exists.
type BoostCurve interface {
	Apply(base, current, reference *big.Int) *big.Int
}

// FlatBoost leaves the base bounty untouched.
type FlatBoost struct{}

func (FlatBoost) Apply(base, _, _ *big.Int) *big.Int { return nativecommon.Copy(base) }

// DrawdownBoost raises the bounty by reference/current when the price fell
// below the reference window, up to MaxBoostBps. A cap at or below 10000 bps
// disables the boost.
type DrawdownBoost struct {
	MaxBoostBps uint64
}

func (d DrawdownBoost) Apply(base, current, reference *big.Int) *big.Int {
	if d.MaxBoostBps <= nativecommon.BasisPoints {
		return nativecommon.Copy(base)
	}
	if reference == nil || !nativecommon.IsPositive(current) || reference.Cmp(current) <= 0 {
		return nativecommon.Copy(base)
	}
	factor := nativecommon.MulDiv(reference, big.NewInt(nativecommon.BasisPoints), current)
	if limit := new(big.Int).SetUint64(d.MaxBoostBps); factor.Cmp(limit) > 0 {
		factor = limit
	}
	return nativecommon.MulDiv(base, factor, big.NewInt(nativecommon.BasisPoints))
}
