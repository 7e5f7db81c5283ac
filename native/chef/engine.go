package chef

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/token"
)

const moduleName = "chef"

// Dependencies are the collaborators wired at Configure.
type Dependencies struct {
	Eligibility   EligibilityProvider
	Vester        Vester
	Lending       PoolBalances
	LendingAddr   common.Address
	MFDAddr       common.Address
	BountyManager common.Address
	RewardToken   string
}

// Engine is the emissions controller. Every lending pool token has an
// allocation point and emissions are shared among eligible balances.
type Engine struct {
	nativecommon.Ownable
	nativecommon.Lifecycle

	store   nativecommon.Store
	ledger  *token.Ledger
	clock   nativecommon.Clock
	address common.Address
	pauses  *nativecommon.PauseRegistry

	deps      Dependencies
	leverager common.Address
	mode      EligibilityMode
	cadence   uint64
	schedule  []EmissionPoint
	tokens    []string
}

// NewEngine allocates a controller holding its reward reserve at address.
func NewEngine(owner, address common.Address, store nativecommon.Store, ledger *token.Ledger, clock nativecommon.Clock) *Engine {
	return &Engine{
		Ownable: nativecommon.NewOwnable(owner),
		store:   store,
		ledger:  ledger,
		clock:   clock,
		address: address,
		cadence: DefaultEndingTimeUpdateCadence,
	}
}

// Configure wires the collaborators, reloads the persisted pool list and
// schedule, and seeds the emission rate until emissions start.
func (e *Engine) Configure(caller common.Address, deps Dependencies, rewardsPerSecond *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if deps.Eligibility == nil || deps.Vester == nil || deps.Lending == nil {
		return nativecommon.ErrAddressZero
	}
	deps.RewardToken = token.Normalize(deps.RewardToken)
	if deps.RewardToken == "" {
		return token.ErrInvalidToken
	}
	if err := e.Initialize(); err != nil {
		return err
	}
	e.deps = deps
	if err := e.restore(); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if g.StartTime != 0 {
		return nil
	}
	g.RewardsPerSecond = nativecommon.Copy(rewardsPerSecond)
	return e.putGlobals(g)
}

// Address returns the account holding the reward reserve.
func (e *Engine) Address() common.Address { return e.address }

// SetPauses wires the shared circuit breaker registry.
func (e *Engine) SetPauses(p *nativecommon.PauseRegistry) { e.pauses = p }

// Pause stops all mutating entry points.
func (e *Engine) Pause(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.pauses.SetPaused(moduleName, true)
}

// Unpause resumes the controller.
func (e *Engine) Unpause(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.pauses.SetPaused(moduleName, false)
}

func (e *Engine) guard() error {
	if err := e.RequireConfigured(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// SetBountyManager sets the only caller allowed to use ClaimBounty.
func (e *Engine) SetBountyManager(caller, manager common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.deps.BountyManager = manager
	return nil
}

// SetLeverager authorises the looping helper to toggle exemptions.
func (e *Engine) SetLeverager(caller, leverager common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.leverager = leverager
	return nil
}

// SetEligibilityExempt makes balance updates of user bypass eligibility
// handling while a looping transaction is in flight.
func (e *Engine) SetEligibilityExempt(caller, user common.Address, exempt bool) error {
	if caller != e.leverager || nativecommon.IsZeroAddress(caller) {
		if err := e.OnlyOwner(caller); err != nil {
			return nativecommon.ErrInsufficientPermission
		}
	}
	return e.putExempt(user, exempt)
}

// SetEligibilityMode switches eligibility gating on or off.
func (e *Engine) SetEligibilityMode(caller common.Address, mode EligibilityMode) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if mode > ModeNone {
		return nativecommon.ErrInvalidNumber
	}
	e.mode = mode
	return nil
}

// EligibilityMode returns the active mode.
func (e *Engine) EligibilityMode() EligibilityMode { return e.mode }

// SetEndingTimeUpdateCadence bounds how often the end time estimate is
// recomputed.
func (e *Engine) SetEndingTimeUpdateCadence(caller common.Address, cadence uint64) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if cadence > MaxEndingTimeUpdateCadence {
		return ErrCadenceTooLong
	}
	e.cadence = cadence
	return nil
}

// Start anchors the emission schedule at the current time.
func (e *Engine) Start(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if g.StartTime != 0 {
		return ErrAlreadyStarted
	}
	g.StartTime = e.clock.Now()
	return e.putGlobals(g)
}

// AddPool registers a pool token. The lending pool may register its own
// tokens when it lists an asset.
func (e *Engine) AddPool(caller common.Address, poolToken string, allocPoint uint64) error {
	if caller != e.deps.LendingAddr || nativecommon.IsZeroAddress(caller) {
		if err := e.OnlyOwner(caller); err != nil {
			return err
		}
	}
	if _, err := e.pool(poolToken); err == nil {
		return ErrPoolExists
	} else if err != ErrUnknownPool {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.updateEmissions(g); err != nil {
		return err
	}
	if err := e.massUpdatePools(g); err != nil {
		return err
	}
	g.TotalAllocPoint += allocPoint
	p := &Pool{
		Token:             poolToken,
		TotalSupply:       big.NewInt(0),
		AllocPoint:        allocPoint,
		LastRewardTime:    e.clock.Now(),
		AccRewardPerShare: big.NewInt(0),
	}
	if err := e.putPool(p); err != nil {
		return err
	}
	e.tokens = append(e.tokens, poolToken)
	if err := e.putPoolList(); err != nil {
		return err
	}
	return e.putGlobals(g)
}

// BatchUpdateAllocPoint changes the allocation of several pools at once.
func (e *Engine) BatchUpdateAllocPoint(caller common.Address, poolTokens []string, allocPoints []uint64) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if len(poolTokens) != len(allocPoints) {
		return nativecommon.ErrLengthMismatch
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.massUpdatePools(g); err != nil {
		return err
	}
	for i, poolToken := range poolTokens {
		p, err := e.pool(poolToken)
		if err != nil {
			return err
		}
		g.TotalAllocPoint = g.TotalAllocPoint - p.AllocPoint + allocPoints[i]
		p.AllocPoint = allocPoints[i]
		if err := e.putPool(p); err != nil {
			return err
		}
	}
	return e.putGlobals(g)
}

// SetRewardsPerSecond overrides the emission rate. With persist set the
// emission schedule no longer applies.
func (e *Engine) SetRewardsPerSecond(caller common.Address, rewardsPerSecond *big.Int, persist bool) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.massUpdatePools(g); err != nil {
		return err
	}
	g.RewardsPerSecond = nativecommon.Copy(rewardsPerSecond)
	g.PersistRewardsPerSecond = persist
	g.EndTimeUpdated = 0
	return e.putGlobals(g)
}

// SetEmissionSchedule appends rate changes. Offsets are relative to Start,
// strictly increasing and not in the past.
func (e *Engine) SetEmissionSchedule(caller common.Address, offsets []uint64, rewardsPerSecond []*big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if len(offsets) != len(rewardsPerSecond) {
		return nativecommon.ErrLengthMismatch
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	var elapsed uint64
	if g.StartTime != 0 {
		elapsed = e.clock.Now() - g.StartTime
	}
	last := int64(-1)
	if n := len(e.schedule); n > 0 {
		last = int64(e.schedule[n-1].StartTimeOffset)
	}
	points := make([]EmissionPoint, 0, len(offsets))
	for i, offset := range offsets {
		if int64(offset) <= last || offset < elapsed || rewardsPerSecond[i] == nil || rewardsPerSecond[i].Sign() < 0 {
			return nativecommon.ErrInvalidNumber
		}
		last = int64(offset)
		points = append(points, EmissionPoint{StartTimeOffset: offset, RewardsPerSecond: new(big.Int).Set(rewardsPerSecond[i])})
	}
	e.schedule = append(e.schedule, points...)
	return e.putSchedule()
}

// EmissionSchedule returns the configured rate changes.
func (e *Engine) EmissionSchedule() []EmissionPoint {
	return append([]EmissionPoint(nil), e.schedule...)
}

// RegisterRewardDeposit pulls amount of the reward token from the caller into
// the reserve and extends the emission budget.
func (e *Engine) RegisterRewardDeposit(caller common.Address, amount *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return nativecommon.ErrAmountTooSmall
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.massUpdatePools(g); err != nil {
		return err
	}
	g.DepositedRewards.Add(g.DepositedRewards, amount)
	g.EndTimeUpdated = 0
	if err := e.putGlobals(g); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.deps.RewardToken, caller, e.address, amount); err != nil {
		return err
	}
	e.store.AppendEvent(events.RewardDeposit{Amount: amount, Deposited: g.DepositedRewards}.Event())
	return nil
}

// Pools lists the registered pool tokens.
func (e *Engine) Pools() []string {
	return append([]string(nil), e.tokens...)
}

// PoolInfo returns the accounting of poolToken.
func (e *Engine) PoolInfo(poolToken string) (*Pool, error) {
	return e.pool(poolToken)
}

// UserInfo returns user's registered balance in poolToken.
func (e *Engine) UserInfo(poolToken string, user common.Address) (*UserInfo, error) {
	return e.userInfo(poolToken, user)
}

// RewardsPerSecond returns the current emission rate.
func (e *Engine) RewardsPerSecond() (*big.Int, error) {
	g, err := e.loadGlobals()
	if err != nil {
		return nil, err
	}
	return g.RewardsPerSecond, nil
}

// Budget returns the deposited and accounted reward totals.
func (e *Engine) Budget() (*big.Int, *big.Int, error) {
	g, err := e.loadGlobals()
	if err != nil {
		return nil, nil, err
	}
	return g.DepositedRewards, g.AccountedRewards, nil
}
