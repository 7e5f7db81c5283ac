package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// FeeNumerator and FeeDenominator encode the 30 bps swap fee.
	FeeNumerator   = 997
	FeeDenominator = 1000
)

var (
	// MinimumLiquidity is burned on the first mint of every pair.
	MinimumLiquidity = big.NewInt(1_000)
	// PriceScale is the fixed-point unit of the cumulative price accumulators.
	PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	deadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

// Pair is the persisted state of a constant-product pool. Token0 sorts before
// Token1 lexicographically.
type Pair struct {
	Token0           string
	Token1           string
	LPToken          string
	Address          common.Address
	Reserve0         *big.Int
	Reserve1         *big.Int
	Price0Cumulative *big.Int
	Price1Cumulative *big.Int
	LastUpdate       uint64
}

func (p *Pair) ensure() {
	if p.Reserve0 == nil {
		p.Reserve0 = big.NewInt(0)
	}
	if p.Reserve1 == nil {
		p.Reserve1 = big.NewInt(0)
	}
	if p.Price0Cumulative == nil {
		p.Price0Cumulative = big.NewInt(0)
	}
	if p.Price1Cumulative == nil {
		p.Price1Cumulative = big.NewInt(0)
	}
}

// Clone returns a deep copy of the pair.
func (p *Pair) Clone() *Pair {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Reserve0 = new(big.Int).Set(p.Reserve0)
	clone.Reserve1 = new(big.Int).Set(p.Reserve1)
	clone.Price0Cumulative = new(big.Int).Set(p.Price0Cumulative)
	clone.Price1Cumulative = new(big.Int).Set(p.Price1Cumulative)
	return &clone
}

// ReservesFor returns the reserves ordered as (tokenA, other).
func (p *Pair) ReservesFor(tokenA string) (*big.Int, *big.Int) {
	if tokenA == p.Token0 {
		return new(big.Int).Set(p.Reserve0), new(big.Int).Set(p.Reserve1)
	}
	return new(big.Int).Set(p.Reserve1), new(big.Int).Set(p.Reserve0)
}

// CumulativeFor returns the cumulative price of tokenA quoted in the other
// token, scaled by PriceScale and summed per second.
func (p *Pair) CumulativeFor(tokenA string) *big.Int {
	if tokenA == p.Token0 {
		return new(big.Int).Set(p.Price0Cumulative)
	}
	return new(big.Int).Set(p.Price1Cumulative)
}
