package chef

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
)

// Claim vests user's accrued emissions from tokens into the MFD. Anyone may
// trigger it; the vest always goes to user.
func (e *Engine) Claim(caller, user common.Address, tokens []string) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return nil, err
	}
	if err := e.updateEmissions(g); err != nil {
		return nil, err
	}
	if e.mode == ModeFull {
		if !e.deps.Eligibility.IsEligibleForRewards(user) {
			return nil, ErrEligibleRequired
		}
		if _, _, err := e.checkAndProcessEligibility(g, user, true, true); err != nil {
			return nil, err
		}
	}
	total, err := e.baseClaimable(user)
	if err != nil {
		return nil, err
	}
	end, err := e.endRewardTime(g)
	if err != nil {
		return nil, err
	}
	for _, poolToken := range tokens {
		p, err := e.pool(poolToken)
		if err != nil {
			return nil, err
		}
		e.accrue(g, p, end)
		u, err := e.userInfo(poolToken, user)
		if err != nil {
			return nil, err
		}
		total.Add(total, pendingIn(u, p.AccRewardPerShare))
		u.RewardDebt = new(big.Int).Mul(u.Amount, p.AccRewardPerShare)
		u.RewardDebt.Quo(u.RewardDebt, accPrecision)
		if err := e.putPool(p); err != nil {
			return nil, err
		}
		if err := e.putUserInfo(poolToken, user, u); err != nil {
			return nil, err
		}
	}
	if total.Sign() == 0 {
		return nil, ErrNothingToVest
	}
	reserve, err := e.ledger.Balance(e.deps.RewardToken, e.address)
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(total) < 0 {
		return nil, ErrOutOfRewards
	}
	if err := e.putBaseClaimable(user, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.putGlobals(g); err != nil {
		return nil, err
	}
	if err := e.deps.Vester.VestTokens(e.address, user, total, true); err != nil {
		return nil, err
	}
	e.store.AppendEvent(events.EmissionsClaimed{User: user, Amount: total}.Event())
	return total, nil
}

// ClaimAll claims from every registered pool.
func (e *Engine) ClaimAll(caller, user common.Address) (*big.Int, error) {
	return e.Claim(caller, user, e.Pools())
}

// PendingRewards previews the reward claimable from each of tokens. For a
// user whose locks expired the preview only counts what accrued before the
// last eligible time.
func (e *Engine) PendingRewards(user common.Address, tokens []string) ([]*big.Int, error) {
	g, err := e.loadGlobals()
	if err != nil {
		return nil, err
	}
	end, err := e.endRewardTime(g)
	if err != nil {
		return nil, err
	}
	cutoff := uint64(0)
	if e.mode == ModeFull && e.deps.Eligibility != nil && !e.deps.Eligibility.IsEligibleForRewards(user) {
		st, err := e.deps.Eligibility.State(user)
		if err != nil {
			return nil, err
		}
		if st.DqTime == 0 && st.LastEligibleTime != 0 && st.LastEligibleTime <= e.clock.Now() {
			cutoff = st.LastEligibleTime
		}
	}
	out := make([]*big.Int, len(tokens))
	for i, poolToken := range tokens {
		p, err := e.pool(poolToken)
		if err != nil {
			return nil, err
		}
		e.accrue(g, p, end)
		u, err := e.userInfo(poolToken, user)
		if err != nil {
			return nil, err
		}
		pending := pendingIn(u, p.AccRewardPerShare)
		if cutoff != 0 {
			pending = creditedShare(pending, u.LastUpdate, p.LastRewardTime, cutoff)
		}
		out[i] = pending
	}
	return out, nil
}

// AllPendingRewards is the settled balance plus the pending reward of every
// pool.
func (e *Engine) AllPendingRewards(user common.Address) (*big.Int, error) {
	total, err := e.baseClaimable(user)
	if err != nil {
		return nil, err
	}
	pending, err := e.PendingRewards(user, e.Pools())
	if err != nil {
		return nil, err
	}
	for _, amount := range pending {
		total.Add(total, amount)
	}
	return total, nil
}
