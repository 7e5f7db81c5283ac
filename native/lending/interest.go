package lending

import (
	"math/big"

	nativecommon "primenumbers/native/common"
)

// InterestModel is a kinked borrow rate curve. Rates are annual and every
// parameter is in basis points. Below the optimal utilisation the rate climbs
// from BaseRateBps to BaseRateBps+Slope1Bps; above it Slope2Bps is added
// over the remaining utilisation.
type InterestModel struct {
	BaseRateBps           uint64
	Slope1Bps             uint64
	Slope2Bps             uint64
	OptimalUtilisationBps uint64
}

// DefaultInterestModel is the curve used for PRNT money markets: 4% at 80%
// utilisation, then steeply up to 79% when the pool is drained.
var DefaultInterestModel = InterestModel{
	Slope1Bps:             400,
	Slope2Bps:             7_500,
	OptimalUtilisationBps: 8_000,
}

// Validate rejects an optimal utilisation outside (0, 100%].
func (m InterestModel) Validate() error {
	if m.OptimalUtilisationBps == 0 || m.OptimalUtilisationBps > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidRatio
	}
	return nil
}

func bpsToRay(bps uint64) *big.Int {
	return nativecommon.MulDiv(ray, new(big.Int).SetUint64(bps), basisPoints)
}

// Utilisation returns borrowed/supplied in ray, capped at one. An empty pool
// has zero utilisation.
func (m InterestModel) Utilisation(borrowed, supplied *big.Int) *big.Int {
	if !nativecommon.IsPositive(borrowed) || !nativecommon.IsPositive(supplied) {
		return big.NewInt(0)
	}
	if borrowed.Cmp(supplied) >= 0 {
		return new(big.Int).Set(ray)
	}
	return nativecommon.MulDiv(borrowed, ray, supplied)
}

// BorrowRate returns the annual borrow rate in ray.
func (m InterestModel) BorrowRate(borrowed, supplied *big.Int) *big.Int {
	rate := bpsToRay(m.BaseRateBps)
	u := m.Utilisation(borrowed, supplied)
	if u.Sign() == 0 {
		return rate
	}
	optimal := bpsToRay(m.OptimalUtilisationBps)
	if optimal.Sign() == 0 {
		return rate
	}
	slope1 := bpsToRay(m.Slope1Bps)
	if u.Cmp(optimal) <= 0 {
		return rate.Add(rate, nativecommon.MulDiv(slope1, u, optimal))
	}
	rate.Add(rate, slope1)
	excess := new(big.Int).Sub(u, optimal)
	return rate.Add(rate, nativecommon.MulDiv(bpsToRay(m.Slope2Bps), excess, new(big.Int).Sub(ray, optimal)))
}

// SupplyRate returns the annual rate suppliers earn in ray once the reserve
// factor has been set aside.
func (m InterestModel) SupplyRate(borrowed, supplied *big.Int, reserveFactorBps uint64) *big.Int {
	u := m.Utilisation(borrowed, supplied)
	if u.Sign() == 0 || reserveFactorBps >= nativecommon.BasisPoints {
		return big.NewInt(0)
	}
	gross := nativecommon.RayMul(m.BorrowRate(borrowed, supplied), u)
	return nativecommon.MulDiv(gross, new(big.Int).SetUint64(nativecommon.BasisPoints-reserveFactorBps), basisPoints)
}
