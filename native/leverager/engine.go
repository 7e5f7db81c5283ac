package leverager

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
	"primenumbers/native/lending"
)

const (
	moduleName = "leverager"

	MaxLoops = 40
)

// Pool is the lending surface the leverager loops through.
type Pool interface {
	AssetConfig(asset string) (lending.AssetConfig, error)
	Deposit(caller common.Address, asset string, amount *big.Int, onBehalf common.Address) error
	Borrow(caller common.Address, asset string, amount *big.Int) error
}

// Emissions is the controller whose eligibility handling is suspended while a
// loop runs.
type Emissions interface {
	SetEligibilityExempt(caller, user common.Address, exempt bool) error
	RefreshUser(user common.Address) error
}

// Engine repeats deposit and borrow for a user in a single call.
type Engine struct {
	address   common.Address
	pool      Pool
	emissions Emissions
	pauses    nativecommon.PauseView
}

// NewEngine wires the leverager acting as address.
func NewEngine(address common.Address, pool Pool, emissions Emissions) *Engine {
	return &Engine{address: address, pool: pool, emissions: emissions}
}

// Address returns the account the controller knows the leverager by.
func (e *Engine) Address() common.Address { return e.address }

// SetPauses wires the shared circuit breaker registry.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Loop deposits amount of asset for caller, then borrows borrowRatioBps of
// the last deposit and deposits it again, loops times. Eligibility handling
// is suspended for caller until the last step and re-evaluated once at the
// end.
func (e *Engine) Loop(caller common.Address, asset string, amount *big.Int, borrowRatioBps uint64, loops uint64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if loops == 0 || loops > MaxLoops {
		return nil, nativecommon.ErrInvalidNumber
	}
	if !nativecommon.IsPositive(amount) {
		return nil, nativecommon.ErrAmountTooSmall
	}
	cfg, err := e.pool.AssetConfig(asset)
	if err != nil {
		return nil, err
	}
	if borrowRatioBps == 0 || borrowRatioBps > cfg.MaxLTVBps {
		return nil, nativecommon.ErrInvalidRatio
	}
	if err := e.emissions.SetEligibilityExempt(e.address, caller, true); err != nil {
		return nil, err
	}
	if err := e.pool.Deposit(caller, asset, amount, caller); err != nil {
		return nil, err
	}
	borrowed := big.NewInt(0)
	next := new(big.Int).Set(amount)
	for i := uint64(0); i < loops; i++ {
		next = nativecommon.ApplyBps(next, borrowRatioBps)
		if next.Sign() == 0 {
			break
		}
		if err := e.pool.Borrow(caller, asset, next); err != nil {
			return nil, err
		}
		if err := e.pool.Deposit(caller, asset, next, caller); err != nil {
			return nil, err
		}
		borrowed.Add(borrowed, next)
	}
	if err := e.emissions.SetEligibilityExempt(e.address, caller, false); err != nil {
		return nil, err
	}
	if err := e.emissions.RefreshUser(caller); err != nil {
		return nil, err
	}
	return borrowed, nil
}
