package bounty

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/mfd"
	"primenumbers/native/token"
)

var (
	ErrActionTypeIndexOutOfBounds = errors.New("bounty: action type index out of bounds")
	ErrHunterNotEligible          = errors.New("bounty: hunter not eligible")
	ErrQuoteFail                  = errors.New("bounty: nothing to claim")
)

const (
	moduleName      = "bounty"
	whitelistPrefix = "bounty/whitelist"
	gatingKey       = "bounty/whitelist-active"

	DefaultHunterShare = 3_000
)

// Action types accepted by Claim.
const (
	// ActionAuto selects the first applicable action.
	ActionAuto uint64 = iota
	ActionExpiredLocks
	ActionIneligible
	ActionAutocompound
)

// Locker is the lock ledger the manager settles expired locks through and
// vests payouts into.
type Locker interface {
	ClaimBounty(caller, user common.Address, execute bool) (bool, error)
	LockedBalances(user common.Address) (*mfd.LockedBalancesView, error)
	VestTokens(caller, user common.Address, amount *big.Int, withPenalty bool) error
}

// Emissions disqualifies users that lost eligibility.
type Emissions interface {
	ClaimBounty(caller, user common.Address, execute bool) (bool, error)
}

// Compounder compounds a user's rewards and reports the fee it pays to the
// manager in reward tokens.
type Compounder interface {
	ClaimCompound(caller, user common.Address, execute bool, slippage uint64) (*big.Int, error)
}

// Prices quotes the reward token and the lockable LP token in USD.
type Prices interface {
	GetTokenPriceUsd() (*big.Int, error)
	ReferenceTokenPriceUsd() (*big.Int, error)
	GetLpTokenPriceUsd() (*big.Int, error)
}

// EligibilityView reports whether an account currently earns emissions.
type EligibilityView interface {
	IsEligibleForRewards(user common.Address) bool
}

// Config holds the economic parameters of the manager.
type Config struct {
	RewardToken string
	// MinStakeAmount is the USD value of locks a hunter must hold.
	MinStakeAmount *big.Int
	// BaseBountyUsdTarget is the USD value of a disqualification bounty.
	BaseBountyUsdTarget *big.Int
	MaxBaseBounty       *big.Int
	HunterShare         uint64
}

// Dependencies are the collaborators the manager acts through.
type Dependencies struct {
	Locker      Locker
	Emissions   Emissions
	Compounder  Compounder
	Prices      Prices
	Eligibility EligibilityView
}

type whitelistEntry struct {
	Allowed bool
}

type gatingEntry struct {
	Active bool
}

// Engine pays hunters for disqualifying ineligible users and for triggering
// autocompounds. Payouts come from the reward token balance it holds.
type Engine struct {
	nativecommon.Ownable
	nativecommon.Lifecycle

	store   nativecommon.Store
	ledger  *token.Ledger
	address common.Address
	pauses  *nativecommon.PauseRegistry

	cfg   Config
	deps  Dependencies
	curve BoostCurve
}

// NewEngine allocates a manager whose reserve is held at address.
func NewEngine(owner, address common.Address, store nativecommon.Store, ledger *token.Ledger) *Engine {
	return &Engine{
		Ownable: nativecommon.NewOwnable(owner),
		store:   store,
		ledger:  ledger,
		address: address,
		curve:   FlatBoost{},
	}
}

// Configure validates cfg and wires the collaborators.
func (e *Engine) Configure(caller common.Address, cfg Config, deps Dependencies) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if deps.Locker == nil || deps.Emissions == nil || deps.Compounder == nil || deps.Prices == nil || deps.Eligibility == nil {
		return nativecommon.ErrAddressZero
	}
	cfg.RewardToken = token.Normalize(cfg.RewardToken)
	if cfg.RewardToken == "" {
		return token.ErrInvalidToken
	}
	if cfg.HunterShare == 0 {
		cfg.HunterShare = DefaultHunterShare
	}
	if cfg.HunterShare > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidNumber
	}
	cfg.MinStakeAmount = nativecommon.Copy(cfg.MinStakeAmount)
	cfg.BaseBountyUsdTarget = nativecommon.Copy(cfg.BaseBountyUsdTarget)
	cfg.MaxBaseBounty = nativecommon.Copy(cfg.MaxBaseBounty)
	if err := e.Initialize(); err != nil {
		return err
	}
	e.cfg = cfg
	e.deps = deps
	return nil
}

// Address returns the account holding the bounty reserve.
func (e *Engine) Address() common.Address { return e.address }

// Config returns a copy of the economic parameters.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.MinStakeAmount = nativecommon.Copy(e.cfg.MinStakeAmount)
	cfg.BaseBountyUsdTarget = nativecommon.Copy(e.cfg.BaseBountyUsdTarget)
	cfg.MaxBaseBounty = nativecommon.Copy(e.cfg.MaxBaseBounty)
	return cfg
}

// SetPauses wires the shared circuit breaker registry.
func (e *Engine) SetPauses(p *nativecommon.PauseRegistry) { e.pauses = p }

func (e *Engine) guard() error {
	if err := e.RequireConfigured(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// SetBoostCurve replaces the base bounty boost curve.
func (e *Engine) SetBoostCurve(caller common.Address, curve BoostCurve) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if curve == nil {
		curve = FlatBoost{}
	}
	e.curve = curve
	return nil
}

func (e *Engine) SetMinStakeAmount(caller common.Address, amount *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.cfg.MinStakeAmount = nativecommon.Copy(amount)
	return nil
}

func (e *Engine) SetBaseBountyUsdTarget(caller common.Address, target *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.cfg.BaseBountyUsdTarget = nativecommon.Copy(target)
	return nil
}

// SetHunterShare sets the share of autocompound fees paid to hunters.
func (e *Engine) SetHunterShare(caller common.Address, share uint64) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if share == 0 || share > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidNumber
	}
	e.cfg.HunterShare = share
	return nil
}

func (e *Engine) SetMaxBaseBounty(caller common.Address, max *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.cfg.MaxBaseBounty = nativecommon.Copy(max)
	return nil
}

// ChangeWL toggles whitelist gating of Claim. The flag lives in state next to
// the whitelist entries.
func (e *Engine) ChangeWL(caller common.Address, active bool) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.store.KVPut([]byte(gatingKey), &gatingEntry{Active: active})
}

// WhitelistActive reports whether Claim is gated by the whitelist.
func (e *Engine) WhitelistActive() (bool, error) {
	entry := new(gatingEntry)
	ok, err := e.store.KVGet([]byte(gatingKey), entry)
	if err != nil {
		return false, err
	}
	return ok && entry.Active, nil
}

// AddAddressToWL allows or disallows hunter while gating is active.
func (e *Engine) AddAddressToWL(caller, hunter common.Address, allowed bool) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	key := nativecommon.Key(whitelistPrefix, hunter.Bytes())
	if !allowed {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, &whitelistEntry{Allowed: true})
}

// IsWhitelisted reports whether hunter may claim while gating is active.
func (e *Engine) IsWhitelisted(hunter common.Address) (bool, error) {
	active, err := e.WhitelistActive()
	if err != nil {
		return false, err
	}
	if !active {
		return true, nil
	}
	entry := new(whitelistEntry)
	ok, err := e.store.KVGet(nativecommon.Key(whitelistPrefix, hunter.Bytes()), entry)
	if err != nil {
		return false, err
	}
	return ok && entry.Allowed, nil
}

func (e *Engine) Pause(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.pauses.SetPaused(moduleName, true)
}

func (e *Engine) Unpause(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.pauses.SetPaused(moduleName, false)
}

// RecoverERC20 sends amount of tok held by the manager to the owner.
func (e *Engine) RecoverERC20(caller common.Address, tok string, amount *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.ledger.Transfer(tok, e.address, e.Owner(), amount)
}

// GetBaseBounty converts the USD target into reward tokens at the current
// price, applies the boost curve and caps the result at MaxBaseBounty.
func (e *Engine) GetBaseBounty() (*big.Int, error) {
	if err := e.RequireConfigured(); err != nil {
		return nil, err
	}
	price, err := e.deps.Prices.GetTokenPriceUsd()
	if err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(price) {
		return big.NewInt(0), nil
	}
	base := nativecommon.MulDiv(e.cfg.BaseBountyUsdTarget, nativecommon.Wad, price)
	base = nativecommon.Min(base, e.cfg.MaxBaseBounty)
	reference, err := e.deps.Prices.ReferenceTokenPriceUsd()
	if err != nil {
		reference = nil
	}
	return nativecommon.Min(e.curve.Apply(base, price, reference), e.cfg.MaxBaseBounty), nil
}

// MinDLPBalance is the locked LP amount a hunter needs, derived from
// MinStakeAmount at the current LP price.
func (e *Engine) MinDLPBalance() (*big.Int, error) {
	if err := e.RequireConfigured(); err != nil {
		return nil, err
	}
	price, err := e.deps.Prices.GetLpTokenPriceUsd()
	if err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(price) {
		return big.NewInt(0), nil
	}
	return nativecommon.MulDiv(e.cfg.MinStakeAmount, nativecommon.Wad, price), nil
}

// Quote returns the bounty a hunter would receive for acting on user and the
// action that would run. Failures quote zero.
func (e *Engine) Quote(user common.Address) (*big.Int, uint64) {
	bounty, actionType, err := e.ExecuteBounty(e.address, user, false, ActionAuto)
	if err != nil || bounty == nil {
		return big.NewInt(0), ActionAuto
	}
	return bounty, actionType
}

// ExecuteBounty evaluates actionType against user. Only the manager itself
// may execute; anyone may evaluate.
func (e *Engine) ExecuteBounty(caller, user common.Address, execute bool, actionType uint64) (*big.Int, uint64, error) {
	if err := e.guard(); err != nil {
		return nil, 0, err
	}
	if execute && caller != e.address {
		return nil, 0, nativecommon.ErrInsufficientPermission
	}
	if actionType > ActionAutocompound {
		return nil, 0, ErrActionTypeIndexOutOfBounds
	}
	if actionType == ActionAuto {
		for candidate := ActionExpiredLocks; candidate <= ActionAutocompound; candidate++ {
			bounty, err := e.runAction(candidate, user, false)
			if err != nil {
				return nil, 0, err
			}
			if bounty.Sign() > 0 {
				actionType = candidate
				break
			}
		}
		if actionType == ActionAuto {
			return big.NewInt(0), ActionAuto, nil
		}
	}
	bounty, err := e.runAction(actionType, user, execute)
	if err != nil {
		return nil, 0, err
	}
	return bounty, actionType, nil
}

func (e *Engine) runAction(actionType uint64, user common.Address, execute bool) (*big.Int, error) {
	var issue bool
	var err error
	switch actionType {
	case ActionExpiredLocks:
		issue, err = e.deps.Locker.ClaimBounty(e.address, user, execute)
	case ActionIneligible:
		issue, err = e.deps.Emissions.ClaimBounty(e.address, user, execute)
	case ActionAutocompound:
		fee, err := e.deps.Compounder.ClaimCompound(e.address, user, execute, 0)
		if err != nil {
			return nil, err
		}
		return nativecommon.ApplyBps(fee, e.cfg.HunterShare), nil
	default:
		return nil, ErrActionTypeIndexOutOfBounds
	}
	if err != nil {
		return nil, err
	}
	if !issue {
		return big.NewInt(0), nil
	}
	return e.GetBaseBounty()
}

func (e *Engine) checkHunter(hunter common.Address) error {
	required, err := e.MinDLPBalance()
	if err != nil {
		return err
	}
	view, err := e.deps.Locker.LockedBalances(hunter)
	if err != nil {
		return err
	}
	if view.Locked.Cmp(required) < 0 || !e.deps.Eligibility.IsEligibleForRewards(hunter) {
		return ErrHunterNotEligible
	}
	return nil
}

// Claim executes actionType on user and vests the bounty to caller. When the
// reserve cannot cover the bounty the remainder is paid and the manager
// pauses itself.
func (e *Engine) Claim(caller, user common.Address, actionType uint64) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	allowed, err := e.IsWhitelisted(caller)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, nativecommon.ErrNotWhitelisted
	}
	if actionType > ActionAutocompound {
		return nil, ErrActionTypeIndexOutOfBounds
	}
	if err := e.checkHunter(caller); err != nil {
		return nil, err
	}
	bounty, executed, err := e.ExecuteBounty(e.address, user, true, actionType)
	if err != nil {
		return nil, err
	}
	if bounty.Sign() == 0 {
		return nil, ErrQuoteFail
	}
	paid, err := e.sendBounty(caller, bounty)
	if err != nil {
		return nil, err
	}
	e.store.AppendEvent(events.BountyClaimed{Hunter: caller, User: user, ActionType: executed, Bounty: paid}.Event())
	return paid, nil
}

func (e *Engine) sendBounty(hunter common.Address, amount *big.Int) (*big.Int, error) {
	reserve, err := e.ledger.Balance(e.cfg.RewardToken, e.address)
	if err != nil {
		return nil, err
	}
	paid := nativecommon.Min(amount, reserve)
	if paid.Sign() > 0 {
		if err := e.deps.Locker.VestTokens(e.address, hunter, paid, true); err != nil {
			return nil, err
		}
	}
	if amount.Cmp(reserve) > 0 {
		e.store.AppendEvent(events.BountyReserveEmpty{Available: reserve}.Event())
		if err := e.pauses.SetPaused(moduleName, true); err != nil {
			return nil, err
		}
	}
	return paid, nil
}
