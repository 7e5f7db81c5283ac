package common

import (
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// BasisPoints is the denominator for every ratio in the protocol.
	BasisPoints = 10_000
	// PriceDecimals is the precision of USD prices and USD values.
	PriceDecimals = 8
)

var (
	bpsDenominator = big.NewInt(BasisPoints)
	// Wad is the 18 decimal fixed-point unit used for token amounts.
	Wad = mustBigInt("1000000000000000000")
	// Ray is the 27 decimal fixed-point unit used by lending indexes.
	Ray     = mustBigInt("1000000000000000000000000000")
	halfRay = new(big.Int).Rsh(Ray, 1)
	// MaxUint256 mirrors the EVM word ceiling.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Zero returns a fresh zero value.
func Zero() *big.Int { return big.NewInt(0) }

// Copy returns a fresh copy of v, mapping nil to zero.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is strictly greater than zero.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// fits reports whether v is representable as an EVM word.
func fits(v *big.Int) bool {
	if v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

// CheckedAdd returns a+b, failing when the sum leaves the uint256 range.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(Copy(a), Copy(b))
	if !fits(sum) {
		return nil, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, failing on underflow.
func CheckedSub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(Copy(a), Copy(b))
	if diff.Sign() < 0 {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// CheckedMul returns a*b, failing when the product leaves the uint256 range.
func CheckedMul(a, b *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(Copy(a), Copy(b))
	if !fits(product) {
		return nil, ErrOverflow
	}
	return product, nil
}

// SaturatingSub returns max(a-b, 0).
func SaturatingSub(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(Copy(a), Copy(b))
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

// MulDiv returns floor(a*b/d). A zero divisor yields zero.
func MulDiv(a, b, d *big.Int) *big.Int {
	if a == nil || b == nil || d == nil || d.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, d)
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	return MulDiv(amount, new(big.Int).SetUint64(bps), bpsDenominator)
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if Copy(a).Cmp(Copy(b)) <= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// RayMul multiplies two ray values rounding half up.
func RayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	return product.Quo(product, Ray)
}

// RayDiv divides a by b in ray precision rounding half up.
func RayDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, Ray)
	numerator.Add(numerator, new(big.Int).Rsh(b, 1))
	return numerator.Quo(numerator, b)
}

// ToUsd converts a token amount with the given decimals into an 8 decimal USD
// value using an 8 decimal price.
func ToUsd(amount *big.Int, decimals uint8, price *big.Int) *big.Int {
	if !IsPositive(amount) || !IsPositive(price) {
		return big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return MulDiv(amount, price, scale)
}

// FromUsd converts an 8 decimal USD value into token units with the given
// decimals using an 8 decimal price.
func FromUsd(usd *big.Int, decimals uint8, price *big.Int) *big.Int {
	if !IsPositive(usd) || !IsPositive(price) {
		return big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return MulDiv(usd, scale, price)
}
