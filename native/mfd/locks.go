package mfd

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
)

// Stake locks amount of the staking token pulled from caller for onBehalf in
// tier typeIndex.
func (e *Engine) Stake(caller common.Address, amount *big.Int, onBehalf common.Address, typeIndex uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return nativecommon.ErrAmountTooSmall
	}
	if typeIndex >= uint64(len(e.cfg.LockDurations)) {
		return ErrInvalidType
	}
	if err := e.updateReward(onBehalf); err != nil {
		return err
	}
	if err := e.beforeLockUpdate(onBehalf); err != nil {
		return err
	}
	if err := e.lock(onBehalf, amount, typeIndex, false); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.cfg.StakingToken, caller, e.address, amount); err != nil {
		return err
	}
	return e.afterLockUpdate(onBehalf)
}

// lock books a new lock without moving tokens or notifying hooks.
func (e *Engine) lock(user common.Address, amount *big.Int, typeIndex uint64, relock bool) error {
	multiplier := e.cfg.LockMultipliers[typeIndex]
	duration := e.cfg.LockDurations[typeIndex]
	weighted := new(big.Int).Mul(amount, new(big.Int).SetUint64(multiplier))

	bal, err := e.balances(user)
	if err != nil {
		return err
	}
	bal.Total.Add(bal.Total, amount)
	bal.Locked.Add(bal.Locked, amount)
	bal.LockedWithMultiplier.Add(bal.LockedWithMultiplier, weighted)
	if err := e.putBalances(user, bal); err != nil {
		return err
	}
	s, err := e.supply()
	if err != nil {
		return err
	}
	s.Locked.Add(s.Locked, amount)
	s.LockedWithMultiplier.Add(s.LockedWithMultiplier, weighted)
	if err := e.putSupply(s); err != nil {
		return err
	}

	unlockTime := e.clock.Now() + duration
	locks, err := e.locks(user)
	if err != nil {
		return err
	}
	idx := sort.Search(len(locks), func(i int) bool { return locks[i].UnlockTime >= unlockTime })
	if idx < len(locks) && locks[idx].UnlockTime == unlockTime && locks[idx].Multiplier == multiplier {
		locks[idx].Amount.Add(locks[idx].Amount, amount)
	} else {
		entry := LockedBalance{Amount: new(big.Int).Set(amount), UnlockTime: unlockTime, Multiplier: multiplier, Duration: duration}
		locks = append(locks, LockedBalance{})
		copy(locks[idx+1:], locks[idx:])
		locks[idx] = entry
	}
	if err := e.putLocks(user, locks); err != nil {
		return err
	}
	e.store.AppendEvent(events.Locked{User: user, Amount: amount, TypeIndex: typeIndex, UnlockTime: unlockTime, Relock: relock}.Event())
	return nil
}

// LockedBalances summarises user's locks at the current time.
func (e *Engine) LockedBalances(user common.Address) (*LockedBalancesView, error) {
	locks, err := e.locks(user)
	if err != nil {
		return nil, err
	}
	bal, err := e.balances(user)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	view := &LockedBalancesView{
		Total:                bal.Locked,
		Unlockable:           big.NewInt(0),
		Locked:               big.NewInt(0),
		LockedWithMultiplier: big.NewInt(0),
	}
	for _, l := range locks {
		if l.UnlockTime > now {
			view.LockData = append(view.LockData, l.clone())
			view.Locked.Add(view.Locked, l.Amount)
			view.LockedWithMultiplier.Add(view.LockedWithMultiplier, new(big.Int).Mul(l.Amount, new(big.Int).SetUint64(l.Multiplier)))
		} else {
			view.Unlockable.Add(view.Unlockable, l.Amount)
		}
	}
	return view, nil
}

// WithdrawExpiredLocksFor releases user's matured locks. When a third party
// triggers it and user has auto relock enabled, the locks are relocked into
// the user's default tier; otherwise the staking tokens are returned.
func (e *Engine) WithdrawExpiredLocksFor(caller, user common.Address) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	relock := false
	if caller != user {
		enabled, err := e.AutoRelockEnabled(user)
		if err != nil {
			return nil, err
		}
		relock = enabled
	}
	return e.withdrawExpiredLocks(user, relock, 0)
}

// WithdrawExpiredLocksForWithOptions releases at most limit of the caller's
// matured locks (0 means all). Unless ignoreRelock is set the caller's auto
// relock preference applies.
func (e *Engine) WithdrawExpiredLocksForWithOptions(caller common.Address, limit uint64, ignoreRelock bool) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	relock := false
	if !ignoreRelock {
		enabled, err := e.AutoRelockEnabled(caller)
		if err != nil {
			return nil, err
		}
		relock = enabled
	}
	return e.withdrawExpiredLocks(caller, relock, limit)
}

// Relock moves the caller's matured locks into the caller's default tier.
func (e *Engine) Relock(caller common.Address) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	amount, err := e.withdrawExpiredLocks(caller, true, 0)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, ErrNothingToRelock
	}
	return amount, nil
}

func (e *Engine) withdrawExpiredLocks(user common.Address, relock bool, limit uint64) (*big.Int, error) {
	if err := e.updateReward(user); err != nil {
		return nil, err
	}
	if err := e.beforeLockUpdate(user); err != nil {
		return nil, err
	}
	locks, err := e.locks(user)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	amount := big.NewInt(0)
	weighted := big.NewInt(0)
	n := 0
	for n < len(locks) && locks[n].UnlockTime <= now {
		if limit != 0 && uint64(n) >= limit {
			break
		}
		amount.Add(amount, locks[n].Amount)
		weighted.Add(weighted, new(big.Int).Mul(locks[n].Amount, new(big.Int).SetUint64(locks[n].Multiplier)))
		n++
	}
	if n == 0 {
		return big.NewInt(0), e.afterLockUpdate(user)
	}
	if err := e.putLocks(user, locks[n:]); err != nil {
		return nil, err
	}

	bal, err := e.balances(user)
	if err != nil {
		return nil, err
	}
	bal.Total = nativecommon.SaturatingSub(bal.Total, amount)
	bal.Locked = nativecommon.SaturatingSub(bal.Locked, amount)
	bal.LockedWithMultiplier = nativecommon.SaturatingSub(bal.LockedWithMultiplier, weighted)
	if err := e.putBalances(user, bal); err != nil {
		return nil, err
	}
	s, err := e.supply()
	if err != nil {
		return nil, err
	}
	s.Locked = nativecommon.SaturatingSub(s.Locked, amount)
	s.LockedWithMultiplier = nativecommon.SaturatingSub(s.LockedWithMultiplier, weighted)
	if err := e.putSupply(s); err != nil {
		return nil, err
	}

	if relock {
		index, err := e.DefaultLockIndex(user)
		if err != nil {
			return nil, err
		}
		if index >= uint64(len(e.cfg.LockDurations)) {
			index = 0
		}
		if err := e.lock(user, amount, index, true); err != nil {
			return nil, err
		}
	} else {
		if err := e.ledger.Transfer(e.cfg.StakingToken, e.address, user, amount); err != nil {
			return nil, err
		}
		e.store.AppendEvent(events.LocksWithdrawn{User: user, Amount: amount, Count: uint64(n)}.Event())
	}
	if err := e.afterLockUpdate(user); err != nil {
		return nil, err
	}
	return amount, nil
}

// ClaimBounty reports whether user has matured locks and, when execute is
// set, withdraws them on the bounty manager's behalf.
func (e *Engine) ClaimBounty(caller, user common.Address, execute bool) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}
	if caller != e.bountyManager || nativecommon.IsZeroAddress(caller) {
		return false, nativecommon.ErrInsufficientPermission
	}
	view, err := e.LockedBalances(user)
	if err != nil {
		return false, err
	}
	if view.Unlockable.Sign() == 0 {
		return false, nil
	}
	if !execute {
		return true, nil
	}
	enabled, err := e.AutoRelockEnabled(user)
	if err != nil {
		return false, err
	}
	if _, err := e.withdrawExpiredLocks(user, enabled, 0); err != nil {
		return false, err
	}
	return true, nil
}
