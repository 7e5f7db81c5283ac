package lending

import (
	"math/big"

	nativecommon "primenumbers/native/common"
)

const secondsPerYear = 31_536_000

var (
	ray         = nativecommon.Ray
	halfRay     = new(big.Int).Rsh(ray, 1)
	basisPoints = big.NewInt(nativecommon.BasisPoints)
)

// rateFactor returns 1 + rate*delta/year in ray precision, with rate an
// annual ray rate.
func rateFactor(rate *big.Int, delta uint64) *big.Int {
	if !nativecommon.IsPositive(rate) || delta == 0 {
		return new(big.Int).Set(ray)
	}
	growth := new(big.Int).Mul(rate, new(big.Int).SetUint64(delta))
	growth.Quo(growth, big.NewInt(secondsPerYear))
	return growth.Add(growth, ray)
}

func sharesFromLiquidity(amount, index *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, ray)
	scaled.Add(scaled, halfUp(index))
	scaled.Quo(scaled, index)
	return scaled
}

func liquidityFromShares(shares, index *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(shares, index)
	scaled.Quo(scaled, ray)
	return scaled
}

func scaledDebtFromAmount(amount, index *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, ray)
	scaled.Add(scaled, halfUp(index))
	scaled.Quo(scaled, index)
	if scaled.Sign() == 0 && amount.Sign() > 0 {
		return big.NewInt(1)
	}
	return scaled
}

func debtFromScaled(scaled, index *big.Int) *big.Int {
	if scaled == nil || scaled.Sign() == 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	actual := new(big.Int).Mul(scaled, index)
	actual.Add(actual, halfRay)
	actual.Quo(actual, ray)
	return actual
}

func halfUp(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}
