package chef

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
)

// hasRegisteredBalance reports whether user has a registered stake in any
// pool.
func (e *Engine) hasRegisteredBalance(user common.Address) (bool, error) {
	for _, poolToken := range e.tokens {
		u, err := e.userInfo(poolToken, user)
		if err != nil {
			return false, err
		}
		if u.Amount.Sign() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// checkAndProcessEligibility evaluates user and, when execute is set and the
// user lost eligibility while still registered, stops their emissions. It
// returns the current eligibility and whether a disqualification applies.
func (e *Engine) checkAndProcessEligibility(g *globals, user common.Address, execute, refresh bool) (eligible, issue bool, err error) {
	prior, err := e.deps.Eligibility.State(user)
	if err != nil {
		return false, false, err
	}
	if refresh && execute {
		eligible, err = e.deps.Eligibility.Refresh(e.address, user)
		if err != nil {
			return false, false, err
		}
	} else {
		eligible = e.deps.Eligibility.IsEligibleForRewards(user)
	}
	if eligible {
		return true, false, nil
	}
	registered, err := e.hasRegisteredBalance(user)
	if err != nil {
		return false, false, err
	}
	issue = registered && prior.DqTime == 0
	if !issue || !execute {
		return false, issue, nil
	}
	if err := e.stopEmissionsFor(g, user, prior.LastEligibleTime); err != nil {
		return false, false, err
	}
	if err := e.deps.Eligibility.SetDqTime(e.address, user, e.clock.Now()); err != nil {
		return false, false, err
	}
	return false, true, nil
}

// creditedShare returns the portion of pending earned up to cutoff when the
// stake was live from since to until.
func creditedShare(pending *big.Int, since, until, cutoff uint64) *big.Int {
	if cutoff >= until || until <= since {
		return new(big.Int).Set(pending)
	}
	if cutoff <= since {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(pending, new(big.Int).SetUint64(cutoff-since))
	return share.Quo(share, new(big.Int).SetUint64(until-since))
}

// stopEmissionsFor removes user's stakes from every pool. A user whose locks
// expired keeps only what accrued before lastEligible; any other
// disqualification keeps everything accrued so far. The forfeited part goes
// back to the unaccounted budget.
func (e *Engine) stopEmissionsFor(g *globals, user common.Address, lastEligible uint64) error {
	now := e.clock.Now()
	reason := ReasonMarket
	if lastEligible != 0 && lastEligible <= now {
		reason = ReasonTime
	}
	end, err := e.endRewardTime(g)
	if err != nil {
		return err
	}
	credited := big.NewInt(0)
	forfeited := big.NewInt(0)
	for _, poolToken := range e.tokens {
		u, err := e.userInfo(poolToken, user)
		if err != nil {
			return err
		}
		if u.Amount.Sign() == 0 {
			continue
		}
		p, err := e.pool(poolToken)
		if err != nil {
			return err
		}
		e.accrue(g, p, end)
		pending := pendingIn(u, p.AccRewardPerShare)
		kept := pending
		if reason == ReasonTime {
			kept = creditedShare(pending, u.LastUpdate, p.LastRewardTime, lastEligible)
		}
		lost := new(big.Int).Sub(pending, kept)
		credited.Add(credited, kept)
		forfeited.Add(forfeited, lost)

		p.TotalSupply = nativecommon.SaturatingSub(p.TotalSupply, u.Amount)
		if err := e.putPool(p); err != nil {
			return err
		}
		u.Amount = big.NewInt(0)
		u.RewardDebt = big.NewInt(0)
		u.LastUpdate = now
		if err := e.putUserInfo(poolToken, user, u); err != nil {
			return err
		}
	}
	if err := e.addBaseClaimable(user, credited); err != nil {
		return err
	}
	g.AccountedRewards = nativecommon.SaturatingSub(g.AccountedRewards, forfeited)
	if forfeited.Sign() > 0 {
		g.EndTimeUpdated = 0
	}
	e.store.AppendEvent(events.Disqualified{User: user, Reason: reason, Credited: credited, Forfeited: forfeited}.Event())
	return nil
}

// registerAll re-registers every pool balance of an eligible user.
func (e *Engine) registerAll(g *globals, user common.Address) error {
	for _, poolToken := range e.tokens {
		balance, err := e.deps.Lending.PoolBalance(poolToken, user)
		if err != nil {
			return err
		}
		u, err := e.userInfo(poolToken, user)
		if err != nil {
			return err
		}
		if balance.Sign() == 0 && u.Amount.Sign() == 0 {
			continue
		}
		if err := e.handleActionAfterForToken(g, poolToken, user, balance); err != nil {
			return err
		}
	}
	return nil
}

// HandleActionAfter is invoked by the lending pool after user's balance in
// poolToken changed to balance.
func (e *Engine) HandleActionAfter(caller common.Address, poolToken string, user common.Address, balance *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.deps.LendingAddr {
		return ErrNotRewardable
	}
	if exempt, err := e.IsEligibilityExempt(user); err != nil || exempt {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.updateEmissions(g); err != nil {
		return err
	}
	if e.mode == ModeFull {
		eligible, _, err := e.checkAndProcessEligibility(g, user, true, true)
		if err != nil {
			return err
		}
		if !eligible {
			return e.putGlobals(g)
		}
	}
	if err := e.handleActionAfterForToken(g, poolToken, user, balance); err != nil {
		return err
	}
	return e.putGlobals(g)
}

// BeforeLockUpdate settles a disqualification before user's locks change.
func (e *Engine) BeforeLockUpdate(caller, user common.Address) error {
	if caller != e.deps.MFDAddr {
		return nativecommon.ErrNotMFD
	}
	if e.mode != ModeFull {
		return nil
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if _, _, err := e.checkAndProcessEligibility(g, user, true, false); err != nil {
		return err
	}
	return e.putGlobals(g)
}

// AfterLockUpdate re-evaluates user once their locks changed.
func (e *Engine) AfterLockUpdate(caller, user common.Address) error {
	if caller != e.deps.MFDAddr {
		return nativecommon.ErrNotMFD
	}
	return e.reevaluate(user)
}

// RefreshUser re-evaluates user and registers their pool balances when they
// are eligible.
func (e *Engine) RefreshUser(user common.Address) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.reevaluate(user)
}

func (e *Engine) reevaluate(user common.Address) error {
	if exempt, err := e.IsEligibilityExempt(user); err != nil || exempt {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.updateEmissions(g); err != nil {
		return err
	}
	eligible := true
	if e.mode == ModeFull {
		eligible, _, err = e.checkAndProcessEligibility(g, user, true, true)
		if err != nil {
			return err
		}
	}
	if eligible {
		if err := e.registerAll(g, user); err != nil {
			return err
		}
	}
	return e.putGlobals(g)
}

// ClaimBounty reports whether user can be disqualified and, with execute,
// performs it. Only the bounty manager may call it.
func (e *Engine) ClaimBounty(caller, user common.Address, execute bool) (bool, error) {
	if caller != e.deps.BountyManager || nativecommon.IsZeroAddress(caller) {
		return false, nativecommon.ErrInsufficientPermission
	}
	if e.mode != ModeFull {
		return false, nil
	}
	g, err := e.loadGlobals()
	if err != nil {
		return false, err
	}
	_, issue, err := e.checkAndProcessEligibility(g, user, execute, true)
	if err != nil {
		return false, err
	}
	if execute {
		if err := e.putGlobals(g); err != nil {
			return false, err
		}
	}
	return issue, nil
}
