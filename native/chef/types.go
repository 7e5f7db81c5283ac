package chef

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/native/eligibility"
)

var (
	ErrPoolExists       = errors.New("chef: pool already exists")
	ErrUnknownPool      = errors.New("chef: unknown pool")
	ErrCadenceTooLong   = errors.New("chef: cadence too long")
	ErrEligibleRequired = errors.New("chef: eligibility required")
	ErrNothingToVest    = errors.New("chef: nothing to vest")
	ErrOutOfRewards     = errors.New("chef: reward reserve exhausted")
	ErrAlreadyStarted   = errors.New("chef: already started")
	ErrNotRewardable    = errors.New("chef: caller is not the lending pool")
)

const (
	// AccRewardPrecision scales accRewardPerShare.
	AccRewardPrecision = 1_000_000_000_000

	MaxEndingTimeUpdateCadence     = 7 * 24 * 60 * 60
	DefaultEndingTimeUpdateCadence = 24 * 60 * 60

	ReasonTime   = "time"
	ReasonMarket = "market"
)

var accPrecision = big.NewInt(AccRewardPrecision)

// EligibilityMode selects whether emissions are gated on eligibility.
type EligibilityMode uint8

const (
	ModeFull EligibilityMode = iota
	ModeNone
)

// EligibilityProvider is the eligibility oracle consulted on every balance
// change.
type EligibilityProvider interface {
	IsEligibleForRewards(user common.Address) bool
	Refresh(caller, user common.Address) (bool, error)
	SetDqTime(caller, user common.Address, ts uint64) error
	State(user common.Address) (*eligibility.State, error)
}

// Vester receives claimed emissions and vests them for the user.
type Vester interface {
	VestTokens(caller, user common.Address, amount *big.Int, withPenalty bool) error
}

// PoolBalances resolves a user's current pool token balance.
type PoolBalances interface {
	PoolBalance(poolToken string, user common.Address) (*big.Int, error)
}

// EmissionPoint switches the emission rate StartTimeOffset seconds after
// Start.
type EmissionPoint struct {
	StartTimeOffset  uint64
	RewardsPerSecond *big.Int
}

// Pool is the emission accounting of one pool token.
type Pool struct {
	Token             string
	TotalSupply       *big.Int
	AllocPoint        uint64
	LastRewardTime    uint64
	AccRewardPerShare *big.Int
}

// UserInfo is a user's registered balance in one pool.
type UserInfo struct {
	Amount     *big.Int
	RewardDebt *big.Int
	LastUpdate uint64
}

type globals struct {
	RewardsPerSecond        *big.Int
	StartTime               uint64
	DepositedRewards        *big.Int
	AccountedRewards        *big.Int
	LastAllPoolUpdate       uint64
	EmissionIndex           uint64
	EndTimeEstimate         uint64
	EndTimeUpdated          uint64
	PersistRewardsPerSecond bool
	TotalAllocPoint         uint64
}

type claimable struct {
	Amount *big.Int
}

type exemptRecord struct {
	Exempt bool
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (g *globals) ensure() {
	g.RewardsPerSecond = copyInt(g.RewardsPerSecond)
	g.DepositedRewards = copyInt(g.DepositedRewards)
	g.AccountedRewards = copyInt(g.AccountedRewards)
}

func (p *Pool) ensure() {
	p.TotalSupply = copyInt(p.TotalSupply)
	p.AccRewardPerShare = copyInt(p.AccRewardPerShare)
}

func (u *UserInfo) ensure() {
	u.Amount = copyInt(u.Amount)
	u.RewardDebt = copyInt(u.RewardDebt)
}

// availableRewards is the deposited budget not yet attributed to pools.
func (g *globals) availableRewards() *big.Int {
	diff := new(big.Int).Sub(g.DepositedRewards, g.AccountedRewards)
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}
