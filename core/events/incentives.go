package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/types"
)

const (
	TypeTokenTransfer        = "token.transfer"
	TypeLocked               = "mfd.locked"
	TypeLocksWithdrawn       = "mfd.locks_withdrawn"
	TypeRelocked             = "mfd.relocked"
	TypeRewardNotified       = "mfd.reward_notified"
	TypeRewardPaid           = "mfd.reward_paid"
	TypeVested               = "mfd.vested"
	TypeEarlyExitPenalty     = "mfd.penalty"
	TypeEligibilityRefreshed = "eligibility.refreshed"
	TypeDisqualified         = "chef.disqualified"
	TypeEmissionsClaimed     = "chef.claimed"
	TypeRewardDeposit        = "chef.reward_deposit"
	TypeBountyClaimed        = "bounty.claimed"
	TypeBountyReserveEmpty   = "bounty.reserve_empty"
	TypeCompounded           = "compounder.compounded"
	TypeLiquidated           = "lending.liquidated"
)

type TokenTransfer struct {
	Token  string
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"token":  normalizeAsset(e.Token),
			"from":   addr(e.From),
			"to":     addr(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

type Locked struct {
	User       common.Address
	Amount     *big.Int
	TypeIndex  uint64
	UnlockTime uint64
	Relock     bool
}

func (Locked) EventType() string { return TypeLocked }

func (e Locked) Event() *types.Event {
	typ := TypeLocked
	if e.Relock {
		typ = TypeRelocked
	}
	return &types.Event{
		Type: typ,
		Attributes: map[string]string{
			"user":       addr(e.User),
			"amount":     formatAmount(e.Amount),
			"typeIndex":  uintToString(e.TypeIndex),
			"unlockTime": uintToString(e.UnlockTime),
		},
	}
}

type LocksWithdrawn struct {
	User   common.Address
	Amount *big.Int
	Count  uint64
}

func (LocksWithdrawn) EventType() string { return TypeLocksWithdrawn }

func (e LocksWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeLocksWithdrawn,
		Attributes: map[string]string{
			"user":   addr(e.User),
			"amount": formatAmount(e.Amount),
			"count":  uintToString(e.Count),
		},
	}
}

type RewardNotified struct {
	Token        string
	Amount       *big.Int
	PeriodFinish uint64
}

func (RewardNotified) EventType() string { return TypeRewardNotified }

func (e RewardNotified) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardNotified,
		Attributes: map[string]string{
			"token":        normalizeAsset(e.Token),
			"amount":       formatAmount(e.Amount),
			"periodFinish": uintToString(e.PeriodFinish),
		},
	}
}

type RewardPaid struct {
	User   common.Address
	To     common.Address
	Token  string
	Amount *big.Int
}

func (RewardPaid) EventType() string { return TypeRewardPaid }

func (e RewardPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardPaid,
		Attributes: map[string]string{
			"user":   addr(e.User),
			"to":     addr(e.To),
			"token":  normalizeAsset(e.Token),
			"amount": formatAmount(e.Amount),
		},
	}
}

type Vested struct {
	User        common.Address
	Amount      *big.Int
	WithPenalty bool
	UnlockTime  uint64
}

func (Vested) EventType() string { return TypeVested }

func (e Vested) Event() *types.Event {
	return &types.Event{
		Type: TypeVested,
		Attributes: map[string]string{
			"user":        addr(e.User),
			"amount":      formatAmount(e.Amount),
			"withPenalty": strconv.FormatBool(e.WithPenalty),
			"unlockTime":  uintToString(e.UnlockTime),
		},
	}
}

type EarlyExitPenalty struct {
	User     common.Address
	Received *big.Int
	Penalty  *big.Int
	Burned   *big.Int
}

func (EarlyExitPenalty) EventType() string { return TypeEarlyExitPenalty }

func (e EarlyExitPenalty) Event() *types.Event {
	return &types.Event{
		Type: TypeEarlyExitPenalty,
		Attributes: map[string]string{
			"user":     addr(e.User),
			"received": formatAmount(e.Received),
			"penalty":  formatAmount(e.Penalty),
			"burned":   formatAmount(e.Burned),
		},
	}
}

type EligibilityRefreshed struct {
	User             common.Address
	Eligible         bool
	LastEligibleTime uint64
}

func (EligibilityRefreshed) EventType() string { return TypeEligibilityRefreshed }

func (e EligibilityRefreshed) Event() *types.Event {
	return &types.Event{
		Type: TypeEligibilityRefreshed,
		Attributes: map[string]string{
			"user":             addr(e.User),
			"eligible":         strconv.FormatBool(e.Eligible),
			"lastEligibleTime": uintToString(e.LastEligibleTime),
		},
	}
}

type Disqualified struct {
	User      common.Address
	Reason    string
	Credited  *big.Int
	Forfeited *big.Int
}

func (Disqualified) EventType() string { return TypeDisqualified }

func (e Disqualified) Event() *types.Event {
	return &types.Event{
		Type: TypeDisqualified,
		Attributes: map[string]string{
			"user":      addr(e.User),
			"reason":    e.Reason,
			"credited":  formatAmount(e.Credited),
			"forfeited": formatAmount(e.Forfeited),
		},
	}
}

type EmissionsClaimed struct {
	User   common.Address
	Amount *big.Int
}

func (EmissionsClaimed) EventType() string { return TypeEmissionsClaimed }

func (e EmissionsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeEmissionsClaimed,
		Attributes: map[string]string{
			"user":   addr(e.User),
			"amount": formatAmount(e.Amount),
		},
	}
}

type RewardDeposit struct {
	Amount    *big.Int
	Deposited *big.Int
}

func (RewardDeposit) EventType() string { return TypeRewardDeposit }

func (e RewardDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardDeposit,
		Attributes: map[string]string{
			"amount":    formatAmount(e.Amount),
			"deposited": formatAmount(e.Deposited),
		},
	}
}

type BountyClaimed struct {
	Hunter     common.Address
	User       common.Address
	ActionType uint64
	Bounty     *big.Int
}

func (BountyClaimed) EventType() string { return TypeBountyClaimed }

func (e BountyClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeBountyClaimed,
		Attributes: map[string]string{
			"hunter":     addr(e.Hunter),
			"user":       addr(e.User),
			"actionType": uintToString(e.ActionType),
			"bounty":     formatAmount(e.Bounty),
		},
	}
}

type BountyReserveEmpty struct {
	Available *big.Int
}

func (BountyReserveEmpty) EventType() string { return TypeBountyReserveEmpty }

func (e BountyReserveEmpty) Event() *types.Event {
	return &types.Event{
		Type:       TypeBountyReserveEmpty,
		Attributes: map[string]string{"available": formatAmount(e.Available)},
	}
}

type Compounded struct {
	User     common.Address
	Caller   common.Address
	BaseIn   *big.Int
	Fee      *big.Int
	LPStaked *big.Int
}

func (Compounded) EventType() string { return TypeCompounded }

func (e Compounded) Event() *types.Event {
	return &types.Event{
		Type: TypeCompounded,
		Attributes: map[string]string{
			"user":     addr(e.User),
			"caller":   addr(e.Caller),
			"baseIn":   formatAmount(e.BaseIn),
			"fee":      formatAmount(e.Fee),
			"lpStaked": formatAmount(e.LPStaked),
		},
	}
}

type Liquidated struct {
	Liquidator      common.Address
	Borrower        common.Address
	DebtAsset       string
	CollateralAsset string
	Repaid          *big.Int
	Seized          *big.Int
	ProtocolBonus   *big.Int
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidated,
		Attributes: map[string]string{
			"liquidator":      addr(e.Liquidator),
			"borrower":        addr(e.Borrower),
			"debtAsset":       normalizeAsset(e.DebtAsset),
			"collateralAsset": normalizeAsset(e.CollateralAsset),
			"repaid":          formatAmount(e.Repaid),
			"seized":          formatAmount(e.Seized),
			"protocolBonus":   formatAmount(e.ProtocolBonus),
		},
	}
}
