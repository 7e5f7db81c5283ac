package lending

import (
	"math/big"
	"strings"
)

const (
	// DepositTokenPrefix and DebtTokenPrefix name the pool tokens reported to
	// the incentives controller, e.g. rUSDC and vdUSDC.
	DepositTokenPrefix = "r"
	DebtTokenPrefix    = "vd"
)

// AssetConfig holds the risk parameters of a listed asset. Ratios are in basis
// points.
type AssetConfig struct {
	Asset                   string `toml:"Asset"`
	Decimals                uint8  `toml:"Decimals"`
	MaxLTVBps               uint64 `toml:"MaxLTVBps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps"`
	ReserveFactorBps        uint64 `toml:"ReserveFactorBps"`
	DepositAllocPoint       uint64 `toml:"DepositAllocPoint"`
	BorrowAllocPoint        uint64 `toml:"BorrowAllocPoint"`
}

// Market captures the global accounting state of one asset. Supplier and
// borrower balances are stored scaled by the respective index.
type Market struct {
	Asset             string
	TotalSupplyShares *big.Int
	TotalScaledDebt   *big.Int
	SupplyIndex       *big.Int
	BorrowIndex       *big.Int
	Reserves          *big.Int
	LastAccrual       uint64
}

// UserAccount maintains the position of one participant in one asset.
type UserAccount struct {
	SupplyShares *big.Int
	ScaledDebt   *big.Int
}

// MarketView is the derived snapshot returned to callers.
type MarketView struct {
	Asset         string
	TotalSupplied *big.Int
	TotalBorrowed *big.Int
	Reserves      *big.Int
	SupplyIndex   *big.Int
	BorrowIndex   *big.Int
}

// AccountView summarises a user's cross-asset position in USD (8 decimals).
type AccountView struct {
	CollateralUsd     *big.Int
	DebtUsd           *big.Int
	BorrowCapacityUsd *big.Int
	LiquidationUsd    *big.Int
	HealthFactor      *big.Int
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := &Market{Asset: m.Asset, LastAccrual: m.LastAccrual}
	clone.TotalSupplyShares = cloneInt(m.TotalSupplyShares)
	clone.TotalScaledDebt = cloneInt(m.TotalScaledDebt)
	clone.SupplyIndex = cloneInt(m.SupplyIndex)
	clone.BorrowIndex = cloneInt(m.BorrowIndex)
	clone.Reserves = cloneInt(m.Reserves)
	return clone
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// DepositToken returns the pool token tracking deposits of asset.
func DepositToken(asset string) string {
	return DepositTokenPrefix + strings.ToUpper(strings.TrimSpace(asset))
}

// DebtToken returns the pool token tracking variable debt of asset.
func DebtToken(asset string) string {
	return DebtTokenPrefix + strings.ToUpper(strings.TrimSpace(asset))
}

// ParsePoolToken splits a pool token into its asset and whether it tracks debt.
func ParsePoolToken(poolToken string) (string, bool, bool) {
	trimmed := strings.TrimSpace(poolToken)
	switch {
	case strings.HasPrefix(trimmed, DebtTokenPrefix) && len(trimmed) > len(DebtTokenPrefix):
		return strings.ToUpper(trimmed[len(DebtTokenPrefix):]), true, true
	case strings.HasPrefix(trimmed, DepositTokenPrefix) && len(trimmed) > len(DepositTokenPrefix):
		return strings.ToUpper(trimmed[len(DepositTokenPrefix):]), false, true
	default:
		return "", false, false
	}
}
