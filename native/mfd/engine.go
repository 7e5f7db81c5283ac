package mfd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
	"primenumbers/native/token"
)

const moduleName = "mfd"

// Config fixes the lock tiers and reward streaming parameters.
type Config struct {
	StakingToken    string
	RewardToken     string
	LockDurations   []uint64
	LockMultipliers []uint64
	RewardsDuration uint64
	RewardsLookback uint64
	VestDuration    uint64
	BurnRatioBps    uint64
	Treasury        common.Address
}

// DefaultConfig returns the production tier table.
func DefaultConfig() Config {
	return Config{
		StakingToken:    "DLP",
		RewardToken:     "PRNT",
		LockDurations:   []uint64{30 * day, 90 * day, 180 * day, 360 * day},
		LockMultipliers: []uint64{1, 4, 10, 25},
		RewardsDuration: 7 * day,
		RewardsLookback: day,
		VestDuration:    90 * day,
		BurnRatioBps:    5_000,
	}
}

// Engine is the multi fee distribution: it locks the staking token in tiers,
// streams protocol revenue to lockers and vests emissions.
type Engine struct {
	nativecommon.Ownable
	nativecommon.Lifecycle

	store   nativecommon.Store
	ledger  *token.Ledger
	clock   nativecommon.Clock
	address common.Address
	pauses  nativecommon.PauseView

	cfg           Config
	rewardTokens  []string
	minters       map[common.Address]bool
	hooks         LockHooks
	bountyManager common.Address
	compounder    common.Address
}

// NewEngine allocates an engine holding its balances at address. Configure
// must run before use.
func NewEngine(owner, address common.Address, store nativecommon.Store, ledger *token.Ledger, clock nativecommon.Clock) *Engine {
	return &Engine{
		Ownable: nativecommon.NewOwnable(owner),
		store:   store,
		ledger:  ledger,
		clock:   clock,
		address: address,
		minters: make(map[common.Address]bool),
	}
}

// Configure installs the tier table and registers the reward token as the
// first streamed token.
func (e *Engine) Configure(caller common.Address, cfg Config) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if len(cfg.LockDurations) != len(cfg.LockMultipliers) {
		return nativecommon.ErrLengthMismatch
	}
	if len(cfg.LockDurations) == 0 || cfg.RewardsDuration == 0 || cfg.VestDuration == 0 {
		return nativecommon.ErrInvalidNumber
	}
	if cfg.RewardsLookback > cfg.RewardsDuration || cfg.BurnRatioBps > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidRatio
	}
	cfg.StakingToken = token.Normalize(cfg.StakingToken)
	cfg.RewardToken = token.Normalize(cfg.RewardToken)
	if cfg.StakingToken == "" || cfg.RewardToken == "" {
		return token.ErrInvalidToken
	}
	if err := e.Initialize(); err != nil {
		return err
	}
	cfg.LockDurations = append([]uint64(nil), cfg.LockDurations...)
	cfg.LockMultipliers = append([]uint64(nil), cfg.LockMultipliers...)
	e.cfg = cfg
	e.rewardTokens = []string{cfg.RewardToken}
	return nil
}

// Address returns the account holding locked and vesting tokens.
func (e *Engine) Address() common.Address { return e.address }

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.cfg }

// SetPauses wires the module circuit breaker.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLockHooks wires the emissions controller.
func (e *Engine) SetLockHooks(caller common.Address, hooks LockHooks) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.hooks = hooks
	return nil
}

// SetMinters replaces the set of addresses allowed to vest tokens.
func (e *Engine) SetMinters(caller common.Address, minters []common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	next := make(map[common.Address]bool, len(minters))
	for _, m := range minters {
		if nativecommon.IsZeroAddress(m) {
			return nativecommon.ErrAddressZero
		}
		next[m] = true
	}
	e.minters = next
	return nil
}

// SetBountyManager authorises the bounty manager to withdraw expired locks.
func (e *Engine) SetBountyManager(caller, manager common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(manager) {
		return nativecommon.ErrAddressZero
	}
	e.bountyManager = manager
	e.minters[manager] = true
	return nil
}

// SetCompounder authorises the compounder to pull rewards for conversion.
func (e *Engine) SetCompounder(caller, compounder common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(compounder) {
		return nativecommon.ErrAddressZero
	}
	e.compounder = compounder
	return nil
}

// SetTreasury sets the recipient of the non-burned part of exit penalties.
func (e *Engine) SetTreasury(caller, treasury common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.cfg.Treasury = treasury
	return nil
}

// LockDurations returns the tier durations in seconds.
func (e *Engine) LockDurations() []uint64 {
	return append([]uint64(nil), e.cfg.LockDurations...)
}

// LockMultipliers returns the tier reward multipliers.
func (e *Engine) LockMultipliers() []uint64 {
	return append([]uint64(nil), e.cfg.LockMultipliers...)
}

// RewardTokens lists the tokens streamed to lockers.
func (e *Engine) RewardTokens() []string {
	return append([]string(nil), e.rewardTokens...)
}

// IsMinter reports whether addr may vest tokens.
func (e *Engine) IsMinter(addr common.Address) bool { return e.minters[addr] }

// AddReward registers a new reward token. A token streamed before a restart
// keeps its stored schedule.
func (e *Engine) AddReward(caller common.Address, rewardToken string) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	rewardToken = token.Normalize(rewardToken)
	if rewardToken == "" {
		return token.ErrInvalidToken
	}
	for _, t := range e.rewardTokens {
		if t == rewardToken {
			return ErrRewardExists
		}
	}
	data, err := e.rewardData(rewardToken)
	if err != nil {
		return err
	}
	if data.LastUpdateTime == 0 {
		data.LastUpdateTime = e.clock.Now()
		data.PeriodFinish = e.clock.Now()
		if err := e.putRewardData(rewardToken, data); err != nil {
			return err
		}
	}
	e.rewardTokens = append(e.rewardTokens, rewardToken)
	return nil
}

// RemoveReward stops streaming a reward token. Accrued user rewards stay
// claimable through GetReward.
func (e *Engine) RemoveReward(caller common.Address, rewardToken string) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	rewardToken = token.Normalize(rewardToken)
	for i, t := range e.rewardTokens {
		if t == rewardToken {
			e.rewardTokens = append(e.rewardTokens[:i], e.rewardTokens[i+1:]...)
			return nil
		}
	}
	return ErrUnknownReward
}

// SetRelock toggles auto relocking of the caller's expired locks.
func (e *Engine) SetRelock(caller common.Address, enabled bool) error {
	settings, err := e.Settings(caller)
	if err != nil {
		return err
	}
	settings.AutoRelockDisabled = !enabled
	return e.putSettings(caller, settings)
}

// SetDefaultRelockTypeIndex picks the tier used when relocking.
func (e *Engine) SetDefaultRelockTypeIndex(caller common.Address, index uint64) error {
	if index >= uint64(len(e.cfg.LockDurations)) {
		return ErrInvalidType
	}
	settings, err := e.Settings(caller)
	if err != nil {
		return err
	}
	settings.DefaultLockIndex = index
	return e.putSettings(caller, settings)
}

// SetAutocompound opts the caller in or out of third party compounding with
// the given slippage tolerance.
func (e *Engine) SetAutocompound(caller common.Address, enabled bool, slippageBps uint64) error {
	if enabled && (slippageBps < minSlippageBps || slippageBps >= nativecommon.BasisPoints) {
		return ErrInvalidSlippage
	}
	settings, err := e.Settings(caller)
	if err != nil {
		return err
	}
	settings.AutocompoundEnabled = enabled
	if enabled {
		settings.Slippage = slippageBps
	}
	return e.putSettings(caller, settings)
}

// AutoRelockEnabled reports whether expired locks of user are relocked when a
// third party withdraws them.
func (e *Engine) AutoRelockEnabled(user common.Address) (bool, error) {
	settings, err := e.Settings(user)
	if err != nil {
		return false, err
	}
	return !settings.AutoRelockDisabled, nil
}

// DefaultLockIndex returns the tier used when relocking for user.
func (e *Engine) DefaultLockIndex(user common.Address) (uint64, error) {
	settings, err := e.Settings(user)
	if err != nil {
		return 0, err
	}
	return settings.DefaultLockIndex, nil
}

// LockedSupply returns the total locked staking tokens and the multiplier
// weighted total.
func (e *Engine) LockedSupply() (*big.Int, *big.Int, error) {
	s, err := e.supply()
	if err != nil {
		return nil, nil, err
	}
	return s.Locked, s.LockedWithMultiplier, nil
}

// TotalBalance returns the locked staking balance of user.
func (e *Engine) TotalBalance(user common.Address) (*big.Int, error) {
	bal, err := e.balances(user)
	if err != nil {
		return nil, err
	}
	return bal.Locked, nil
}

func (e *Engine) guard() error {
	if err := e.RequireConfigured(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) beforeLockUpdate(user common.Address) error {
	if e.hooks == nil {
		return nil
	}
	return e.hooks.BeforeLockUpdate(e.address, user)
}

func (e *Engine) afterLockUpdate(user common.Address) error {
	if e.hooks == nil {
		return nil
	}
	return e.hooks.AfterLockUpdate(e.address, user)
}
