package eligibility

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/mfd"
)

var errNotConfigured = errors.New("eligibility: dependencies not configured")

const (
	DefaultRequiredDepositRatio = 500
	DefaultPriceToleranceRatio  = 9_000
	MinPriceToleranceRatio      = 8_000

	statePrefix  = "eligibility/state"
	exemptPrefix = "eligibility/exempt"
)

// BorrowView exposes the USD value of a user's debt.
type BorrowView interface {
	BorrowedValueUsd(user common.Address) (*big.Int, error)
}

// LockView exposes a user's locks.
type LockView interface {
	LockedBalances(user common.Address) (*mfd.LockedBalancesView, error)
}

// LpPriceView prices the lockable LP token in USD.
type LpPriceView interface {
	GetLpTokenPriceUsd() (*big.Int, error)
}

// State is the cached eligibility of a user as of the last refresh.
type State struct {
	LastEligibleTime   uint64
	LastEligibleStatus bool
	DqTime             uint64
}

type exemptRecord struct {
	Exempt bool
}

// Provider decides whether a user's locked liquidity covers the share of
// their borrowing required to earn emissions.
type Provider struct {
	nativecommon.Ownable
	nativecommon.Lifecycle

	store nativecommon.Store
	clock nativecommon.Clock

	lending BorrowView
	locks   LockView
	prices  LpPriceView
	chef    common.Address

	requiredDepositRatio uint64
	priceToleranceRatio  uint64
}

// NewProvider allocates a provider with the default ratios.
func NewProvider(owner common.Address, store nativecommon.Store, clock nativecommon.Clock) *Provider {
	return &Provider{
		Ownable:              nativecommon.NewOwnable(owner),
		store:                store,
		clock:                clock,
		requiredDepositRatio: DefaultRequiredDepositRatio,
		priceToleranceRatio:  DefaultPriceToleranceRatio,
	}
}

// Configure wires the data sources and the emissions controller allowed to
// refresh cached state.
func (p *Provider) Configure(caller common.Address, lending BorrowView, locks LockView, prices LpPriceView, chef common.Address) error {
	if err := p.OnlyOwner(caller); err != nil {
		return err
	}
	if lending == nil || locks == nil || prices == nil {
		return errNotConfigured
	}
	if nativecommon.IsZeroAddress(chef) {
		return nativecommon.ErrAddressZero
	}
	if err := p.Initialize(); err != nil {
		return err
	}
	p.lending = lending
	p.locks = locks
	p.prices = prices
	p.chef = chef
	return nil
}

// SetRequiredDepositRatio sets the locked value required per unit of debt.
func (p *Provider) SetRequiredDepositRatio(caller common.Address, ratio uint64) error {
	if err := p.OnlyOwner(caller); err != nil {
		return err
	}
	if ratio > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidRatio
	}
	p.requiredDepositRatio = ratio
	return nil
}

// SetPriceToleranceRatio sets how far below the requirement a lock may fall
// before the user loses eligibility.
func (p *Provider) SetPriceToleranceRatio(caller common.Address, ratio uint64) error {
	if err := p.OnlyOwner(caller); err != nil {
		return err
	}
	if ratio < MinPriceToleranceRatio || ratio > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidRatio
	}
	p.priceToleranceRatio = ratio
	return nil
}

// RequiredDepositRatio returns the configured ratio in basis points.
func (p *Provider) RequiredDepositRatio() uint64 { return p.requiredDepositRatio }

// PriceToleranceRatio returns the configured tolerance in basis points.
func (p *Provider) PriceToleranceRatio() uint64 { return p.priceToleranceRatio }

// SetExempt adds or removes user from the exemption list. The owner and the
// emissions controller may call it.
func (p *Provider) SetExempt(caller, user common.Address, exempt bool) error {
	if caller != p.chef {
		if err := p.OnlyOwner(caller); err != nil {
			return err
		}
	}
	key := nativecommon.Key(exemptPrefix, user.Bytes())
	if !exempt {
		return p.store.KVDelete(key)
	}
	return p.store.KVPut(key, &exemptRecord{Exempt: true})
}

// IsExempt reports whether user bypasses eligibility checks.
func (p *Provider) IsExempt(user common.Address) (bool, error) {
	rec := new(exemptRecord)
	ok, err := p.store.KVGet(nativecommon.Key(exemptPrefix, user.Bytes()), rec)
	if err != nil {
		return false, err
	}
	return ok && rec.Exempt, nil
}

// RequiredUsdValue returns the USD value of locks user needs.
func (p *Provider) RequiredUsdValue(user common.Address) (*big.Int, error) {
	if err := p.RequireConfigured(); err != nil {
		return nil, err
	}
	borrowed, err := p.lending.BorrowedValueUsd(user)
	if err != nil {
		return nil, err
	}
	return nativecommon.ApplyBps(borrowed, p.requiredDepositRatio), nil
}

// LockedUsdValue returns the USD value of user's unexpired locks.
func (p *Provider) LockedUsdValue(user common.Address) (*big.Int, error) {
	if err := p.RequireConfigured(); err != nil {
		return nil, err
	}
	view, err := p.locks.LockedBalances(user)
	if err != nil {
		return nil, err
	}
	return p.lpValue(view.Locked)
}

func (p *Provider) lpValue(amount *big.Int) (*big.Int, error) {
	price, err := p.prices.GetLpTokenPriceUsd()
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(amount, price, nativecommon.Wad), nil
}

// threshold is the required value after the price tolerance is applied.
func (p *Provider) threshold(user common.Address) (*big.Int, error) {
	required, err := p.RequiredUsdValue(user)
	if err != nil {
		return nil, err
	}
	return nativecommon.ApplyBps(required, p.priceToleranceRatio), nil
}

// IsEligibleForRewards reports whether user currently earns emissions.
// Lookup failures make the user ineligible.
func (p *Provider) IsEligibleForRewards(user common.Address) bool {
	if exempt, err := p.IsExempt(user); err == nil && exempt {
		return true
	}
	threshold, err := p.threshold(user)
	if err != nil || threshold.Sign() == 0 {
		return false
	}
	locked, err := p.LockedUsdValue(user)
	if err != nil || locked.Cmp(threshold) < 0 {
		return false
	}
	return p.LastEligibleTime(user) > p.clock.Now()
}

// LastEligibleTime walks user's unexpired locks from the latest unlock time
// backwards and returns the unlock time of the lock at which the locked value
// first covers the requirement. It returns 0 when the locks do not cover it.
func (p *Provider) LastEligibleTime(user common.Address) uint64 {
	threshold, err := p.threshold(user)
	if err != nil || threshold.Sign() == 0 {
		return 0
	}
	view, err := p.locks.LockedBalances(user)
	if err != nil {
		return 0
	}
	cumulative := big.NewInt(0)
	for i := len(view.LockData) - 1; i >= 0; i-- {
		cumulative.Add(cumulative, view.LockData[i].Amount)
		value, err := p.lpValue(cumulative)
		if err != nil {
			return 0
		}
		if value.Cmp(threshold) >= 0 {
			return view.LockData[i].UnlockTime
		}
	}
	return 0
}

// State returns the cached eligibility of user.
func (p *Provider) State(user common.Address) (*State, error) {
	st := new(State)
	if _, err := p.store.KVGet(nativecommon.Key(statePrefix, user.Bytes()), st); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *Provider) putState(user common.Address, st *State) error {
	return p.store.KVPut(nativecommon.Key(statePrefix, user.Bytes()), st)
}

// Refresh recomputes and caches user's eligibility.
func (p *Provider) Refresh(caller, user common.Address) (bool, error) {
	if err := p.RequireConfigured(); err != nil {
		return false, err
	}
	if caller != p.chef {
		return false, nativecommon.ErrInsufficientPermission
	}
	st, err := p.State(user)
	if err != nil {
		return false, err
	}
	eligible := p.IsEligibleForRewards(user)
	st.LastEligibleStatus = eligible
	st.LastEligibleTime = p.LastEligibleTime(user)
	if eligible {
		st.DqTime = 0
	}
	if err := p.putState(user, st); err != nil {
		return false, err
	}
	p.store.AppendEvent(events.EligibilityRefreshed{User: user, Eligible: eligible, LastEligibleTime: st.LastEligibleTime}.Event())
	return eligible, nil
}

// SetDqTime records that user was disqualified at ts.
func (p *Provider) SetDqTime(caller, user common.Address, ts uint64) error {
	if caller != p.chef || nativecommon.IsZeroAddress(caller) {
		return nativecommon.ErrInsufficientPermission
	}
	st, err := p.State(user)
	if err != nil {
		return err
	}
	st.DqTime = ts
	st.LastEligibleTime = 0
	st.LastEligibleStatus = false
	return p.putState(user, st)
}
