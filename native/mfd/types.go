package mfd

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidType        = errors.New("mfd: invalid lock type")
	ErrInvalidEarned      = errors.New("mfd: insufficient earned balance")
	ErrUnlockTimeNotFound = errors.New("mfd: unlock time not found")
	ErrInvalidTime        = errors.New("mfd: unlock time already passed")
	ErrRewardExists       = errors.New("mfd: reward token already added")
	ErrUnknownReward      = errors.New("mfd: unknown reward token")
	ErrInvalidSlippage    = errors.New("mfd: invalid slippage")
	ErrNothingToRelock    = errors.New("mfd: nothing to relock")
)

const (
	// RatePrecision scales reward rates and stored user rewards.
	RatePrecision = 1_000_000_000_000

	quartPenaltyBps = 2_500
	halfPenaltyBps  = 6_500
	day             = 24 * 60 * 60

	minSlippageBps = 8_000
)

var (
	ratePrecision = big.NewInt(RatePrecision)
	rptPrecision  = big.NewInt(1_000_000_000_000_000_000)
)

// LockHooks is notified around every change to a user's locked balance.
type LockHooks interface {
	BeforeLockUpdate(caller, user common.Address) error
	AfterLockUpdate(caller, user common.Address) error
}

// LockedBalance is one lock position or one vesting tranche.
type LockedBalance struct {
	Amount     *big.Int
	UnlockTime uint64
	Multiplier uint64
	Duration   uint64
}

func (l LockedBalance) clone() LockedBalance {
	out := l
	out.Amount = copyInt(l.Amount)
	return out
}

// EarnedBalance is a vesting tranche together with its current exit penalty.
type EarnedBalance struct {
	Amount     *big.Int
	UnlockTime uint64
	Penalty    *big.Int
}

// Balances aggregates the per-user totals.
type Balances struct {
	Total                *big.Int
	Unlocked             *big.Int
	Locked               *big.Int
	LockedWithMultiplier *big.Int
	Earned               *big.Int
}

// LockedBalancesView is the result of LockedBalances. LockData only lists
// locks that have not expired yet.
type LockedBalancesView struct {
	Total                *big.Int
	Unlockable           *big.Int
	Locked               *big.Int
	LockedWithMultiplier *big.Int
	LockData             []LockedBalance
}

// EarnedBalancesView is the result of EarnedBalances.
type EarnedBalancesView struct {
	TotalVesting *big.Int
	Unlocked     *big.Int
	Entries      []EarnedBalance
}

// WithdrawableView reports what Exit would currently pay.
type WithdrawableView struct {
	Amount  *big.Int
	Penalty *big.Int
	Burn    *big.Int
}

// RewardAmount pairs a reward token with an amount.
type RewardAmount struct {
	Token  string
	Amount *big.Int
}

// RewardData is the streaming state of one reward token.
type RewardData struct {
	PeriodFinish         uint64
	RewardPerSecond      *big.Int
	LastUpdateTime       uint64
	RewardPerTokenStored *big.Int
	Balance              *big.Int
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	AutoRelockDisabled  bool
	DefaultLockIndex    uint64
	AutocompoundEnabled bool
	Slippage            uint64
	LastClaimTime       uint64
}

type userLocks struct {
	Locks []LockedBalance
}

type userEarnings struct {
	Entries []LockedBalance
}

type userReward struct {
	Paid    *big.Int
	Rewards *big.Int
}

type supply struct {
	Locked               *big.Int
	LockedWithMultiplier *big.Int
	Vesting              *big.Int
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (b *Balances) ensure() {
	b.Total = copyInt(b.Total)
	b.Unlocked = copyInt(b.Unlocked)
	b.Locked = copyInt(b.Locked)
	b.LockedWithMultiplier = copyInt(b.LockedWithMultiplier)
	b.Earned = copyInt(b.Earned)
}

func (r *RewardData) ensure() {
	r.RewardPerSecond = copyInt(r.RewardPerSecond)
	r.RewardPerTokenStored = copyInt(r.RewardPerTokenStored)
	r.Balance = copyInt(r.Balance)
}

func (s *supply) ensure() {
	s.Locked = copyInt(s.Locked)
	s.LockedWithMultiplier = copyInt(s.LockedWithMultiplier)
	s.Vesting = copyInt(s.Vesting)
}
