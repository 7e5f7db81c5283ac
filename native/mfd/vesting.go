package mfd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
)

// VestTokens pulls amount of the reward token from a minter and credits it to
// user. With penalty the tokens vest for VestDuration, entries created on the
// same day are merged; without penalty they are unlocked immediately.
func (e *Engine) VestTokens(caller, user common.Address, amount *big.Int, withPenalty bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	if !e.minters[caller] {
		return nativecommon.ErrInsufficientPermission
	}
	if !nativecommon.IsPositive(amount) {
		return nil
	}
	if err := e.ledger.Transfer(e.cfg.RewardToken, caller, e.address, amount); err != nil {
		return err
	}
	bal, err := e.balances(user)
	if err != nil {
		return err
	}
	bal.Total.Add(bal.Total, amount)
	now := e.clock.Now()
	unlockTime := uint64(0)
	if withPenalty {
		bal.Earned.Add(bal.Earned, amount)
		entries, err := e.earnings(user)
		if err != nil {
			return err
		}
		targetDay := now/day + e.cfg.VestDuration/day
		if n := len(entries); n > 0 && entries[n-1].UnlockTime/day == targetDay {
			entries[n-1].Amount.Add(entries[n-1].Amount, amount)
			unlockTime = entries[n-1].UnlockTime
		} else {
			unlockTime = now + e.cfg.VestDuration
			entries = append(entries, LockedBalance{Amount: new(big.Int).Set(amount), UnlockTime: unlockTime, Multiplier: 1, Duration: e.cfg.VestDuration})
		}
		if err := e.putEarnings(user, entries); err != nil {
			return err
		}
	} else {
		bal.Unlocked.Add(bal.Unlocked, amount)
	}
	if err := e.putBalances(user, bal); err != nil {
		return err
	}
	s, err := e.supply()
	if err != nil {
		return err
	}
	s.Vesting.Add(s.Vesting, amount)
	if err := e.putSupply(s); err != nil {
		return err
	}
	e.store.AppendEvent(events.Vested{User: user, Amount: amount, WithPenalty: withPenalty, UnlockTime: unlockTime}.Event())
	return nil
}

// penaltyFactor returns the exit penalty in basis points for a tranche:
// 25% at maturity rising linearly to 90% for a fresh tranche.
func (e *Engine) penaltyFactor(entry LockedBalance) uint64 {
	now := e.clock.Now()
	if entry.UnlockTime <= now {
		return 0
	}
	remaining := entry.UnlockTime - now
	if remaining > e.cfg.VestDuration {
		remaining = e.cfg.VestDuration
	}
	return quartPenaltyBps + remaining*halfPenaltyBps/e.cfg.VestDuration
}

func (e *Engine) penaltyInfo(entry LockedBalance) (*big.Int, *big.Int) {
	penalty := nativecommon.ApplyBps(entry.Amount, e.penaltyFactor(entry))
	return penalty, nativecommon.ApplyBps(penalty, e.cfg.BurnRatioBps)
}

// EarnedBalances lists user's vesting tranches. Matured tranches count as
// unlocked.
func (e *Engine) EarnedBalances(user common.Address) (*EarnedBalancesView, error) {
	bal, err := e.balances(user)
	if err != nil {
		return nil, err
	}
	entries, err := e.earnings(user)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	view := &EarnedBalancesView{TotalVesting: big.NewInt(0), Unlocked: new(big.Int).Set(bal.Unlocked)}
	for _, entry := range entries {
		if entry.UnlockTime > now {
			penalty, _ := e.penaltyInfo(entry)
			view.Entries = append(view.Entries, EarnedBalance{Amount: new(big.Int).Set(entry.Amount), UnlockTime: entry.UnlockTime, Penalty: penalty})
			view.TotalVesting.Add(view.TotalVesting, entry.Amount)
		} else {
			view.Unlocked.Add(view.Unlocked, entry.Amount)
		}
	}
	return view, nil
}

// WithdrawableBalance reports what Exit would pay now and the penalty it
// would incur.
func (e *Engine) WithdrawableBalance(user common.Address) (*WithdrawableView, error) {
	bal, err := e.balances(user)
	if err != nil {
		return nil, err
	}
	entries, err := e.earnings(user)
	if err != nil {
		return nil, err
	}
	view := &WithdrawableView{Amount: new(big.Int).Set(bal.Unlocked), Penalty: big.NewInt(0), Burn: big.NewInt(0)}
	for _, entry := range entries {
		penalty, burn := e.penaltyInfo(entry)
		view.Amount.Add(view.Amount, new(big.Int).Sub(entry.Amount, penalty))
		view.Penalty.Add(view.Penalty, penalty)
		view.Burn.Add(view.Burn, burn)
	}
	return view, nil
}

// Withdraw pays amount of the reward token to the caller, taking unlocked
// tokens first and then vesting tranches oldest first with their penalty.
func (e *Engine) Withdraw(caller common.Address, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return nativecommon.ErrAmountTooSmall
	}
	bal, err := e.balances(caller)
	if err != nil {
		return err
	}
	penalty := big.NewInt(0)
	burn := big.NewInt(0)
	if amount.Cmp(bal.Unlocked) <= 0 {
		bal.Unlocked = new(big.Int).Sub(bal.Unlocked, amount)
	} else {
		remaining := new(big.Int).Sub(amount, bal.Unlocked)
		if bal.Earned.Cmp(remaining) < 0 {
			return ErrInvalidEarned
		}
		bal.Unlocked = big.NewInt(0)
		entries, err := e.earnings(caller)
		if err != nil {
			return err
		}
		consumed := 0
		for i := range entries {
			entry := &entries[i]
			factor := e.penaltyFactor(*entry)
			net := new(big.Int).SetUint64(nativecommon.BasisPoints - factor)
			required := nativecommon.MulDiv(remaining, basisPoints(), net)
			var cut *big.Int
			if required.Cmp(entry.Amount) >= 0 {
				required = new(big.Int).Set(entry.Amount)
				received := nativecommon.MulDiv(required, net, basisPoints())
				cut = new(big.Int).Sub(required, received)
				remaining = nativecommon.SaturatingSub(remaining, received)
				consumed++
			} else {
				cut = nativecommon.SaturatingSub(required, remaining)
				entry.Amount = new(big.Int).Sub(entry.Amount, required)
				remaining = big.NewInt(0)
			}
			bal.Earned = nativecommon.SaturatingSub(bal.Earned, required)
			penalty.Add(penalty, cut)
			burn.Add(burn, nativecommon.ApplyBps(cut, e.cfg.BurnRatioBps))
			if remaining.Sign() == 0 {
				break
			}
		}
		if remaining.Sign() > 0 {
			return ErrInvalidEarned
		}
		if err := e.putEarnings(caller, entries[consumed:]); err != nil {
			return err
		}
	}
	bal.Total = nativecommon.SaturatingSub(bal.Total, new(big.Int).Add(amount, penalty))
	if err := e.putBalances(caller, bal); err != nil {
		return err
	}
	return e.withdrawTokens(caller, amount, penalty, burn)
}

// IndividualEarlyExit withdraws the single vesting tranche unlocking at
// unlockTime, paying its penalty.
func (e *Engine) IndividualEarlyExit(caller common.Address, claimRewards bool, unlockTime uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if unlockTime <= e.clock.Now() {
		return ErrInvalidTime
	}
	entries, err := e.earnings(caller)
	if err != nil {
		return err
	}
	idx := -1
	for i, entry := range entries {
		if entry.UnlockTime == unlockTime {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnlockTimeNotFound
	}
	entry := entries[idx]
	penalty, burn := e.penaltyInfo(entry)
	amount := new(big.Int).Sub(entry.Amount, penalty)
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := e.putEarnings(caller, entries); err != nil {
		return err
	}
	bal, err := e.balances(caller)
	if err != nil {
		return err
	}
	bal.Earned = nativecommon.SaturatingSub(bal.Earned, entry.Amount)
	bal.Total = nativecommon.SaturatingSub(bal.Total, entry.Amount)
	if err := e.putBalances(caller, bal); err != nil {
		return err
	}
	if err := e.withdrawTokens(caller, amount, penalty, burn); err != nil {
		return err
	}
	if claimRewards {
		_, err := e.GetAllRewards(caller)
		return err
	}
	return nil
}

// Exit withdraws all unlocked and vesting tokens of the caller, paying the
// early exit penalty on unmatured tranches. Locked staking tokens are not
// touched.
func (e *Engine) Exit(caller common.Address, claimRewards bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	view, err := e.WithdrawableBalance(caller)
	if err != nil {
		return err
	}
	bal, err := e.balances(caller)
	if err != nil {
		return err
	}
	bal.Total = nativecommon.SaturatingSub(bal.Total, new(big.Int).Add(bal.Unlocked, bal.Earned))
	bal.Unlocked = big.NewInt(0)
	bal.Earned = big.NewInt(0)
	if err := e.putBalances(caller, bal); err != nil {
		return err
	}
	if err := e.putEarnings(caller, nil); err != nil {
		return err
	}
	if err := e.withdrawTokens(caller, view.Amount, view.Penalty, view.Burn); err != nil {
		return err
	}
	if claimRewards {
		_, err := e.GetAllRewards(caller)
		return err
	}
	return nil
}

func (e *Engine) withdrawTokens(user common.Address, amount, penalty, burn *big.Int) error {
	s, err := e.supply()
	if err != nil {
		return err
	}
	s.Vesting = nativecommon.SaturatingSub(s.Vesting, new(big.Int).Add(amount, penalty))
	if err := e.putSupply(s); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		if err := e.ledger.Transfer(e.cfg.RewardToken, e.address, user, amount); err != nil {
			return err
		}
	}
	if penalty.Sign() > 0 {
		if burn.Sign() > 0 {
			if err := e.ledger.Burn(e.cfg.RewardToken, e.address, burn); err != nil {
				return err
			}
		}
		rest := nativecommon.SaturatingSub(penalty, burn)
		if rest.Sign() > 0 && nativecommon.IsZeroAddress(e.cfg.Treasury) {
			if err := e.ledger.Burn(e.cfg.RewardToken, e.address, rest); err != nil {
				return err
			}
		} else if rest.Sign() > 0 {
			if err := e.ledger.Transfer(e.cfg.RewardToken, e.address, e.cfg.Treasury, rest); err != nil {
				return err
			}
		}
		e.store.AppendEvent(events.EarlyExitPenalty{User: user, Received: amount, Penalty: penalty, Burned: burn}.Event())
	}
	return nil
}

func basisPoints() *big.Int { return big.NewInt(nativecommon.BasisPoints) }
