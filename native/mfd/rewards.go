package mfd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
)

func (e *Engine) lastTimeRewardApplicable(data *RewardData) uint64 {
	now := e.clock.Now()
	if data.PeriodFinish < now {
		return data.PeriodFinish
	}
	return now
}

// RewardInfo returns the streaming state of a reward token.
func (e *Engine) RewardInfo(rewardToken string) (*RewardData, error) {
	return e.rewardData(rewardToken)
}

// rewardPerToken is scaled by 1e18 * RatePrecision.
func (e *Engine) rewardPerToken(data *RewardData, lockedSupplyWithMultiplier *big.Int) *big.Int {
	if lockedSupplyWithMultiplier.Sign() == 0 {
		return new(big.Int).Set(data.RewardPerTokenStored)
	}
	applicable := e.lastTimeRewardApplicable(data)
	if applicable <= data.LastUpdateTime {
		return new(big.Int).Set(data.RewardPerTokenStored)
	}
	elapsed := new(big.Int).SetUint64(applicable - data.LastUpdateTime)
	accrued := new(big.Int).Mul(elapsed, data.RewardPerSecond)
	accrued.Mul(accrued, rptPrecision)
	accrued.Quo(accrued, lockedSupplyWithMultiplier)
	return accrued.Add(accrued, data.RewardPerTokenStored)
}

// earned is scaled by RatePrecision.
func earned(weighted, rpt *big.Int, rec *userReward) *big.Int {
	delta := nativecommon.SaturatingSub(rpt, rec.Paid)
	out := new(big.Int).Mul(weighted, delta)
	out.Quo(out, rptPrecision)
	return out.Add(out, rec.Rewards)
}

func (e *Engine) updateReward(user common.Address) error {
	s, err := e.supply()
	if err != nil {
		return err
	}
	bal, err := e.balances(user)
	if err != nil {
		return err
	}
	for _, tok := range e.rewardTokens {
		data, err := e.rewardData(tok)
		if err != nil {
			return err
		}
		rpt := e.rewardPerToken(data, s.LockedWithMultiplier)
		data.RewardPerTokenStored = rpt
		data.LastUpdateTime = e.lastTimeRewardApplicable(data)
		if err := e.putRewardData(tok, data); err != nil {
			return err
		}
		if nativecommon.IsZeroAddress(user) {
			continue
		}
		rec, err := e.userReward(user, tok)
		if err != nil {
			return err
		}
		rec.Rewards = earned(bal.LockedWithMultiplier, rpt, rec)
		rec.Paid = rpt
		if err := e.putUserReward(user, tok, rec); err != nil {
			return err
		}
	}
	return nil
}

// reserved is the part of the engine's balance of tok that is not reward.
func (e *Engine) reserved(tok string) (*big.Int, error) {
	s, err := e.supply()
	if err != nil {
		return nil, err
	}
	switch tok {
	case e.cfg.RewardToken:
		return s.Vesting, nil
	case e.cfg.StakingToken:
		return s.Locked, nil
	default:
		return big.NewInt(0), nil
	}
}

func (e *Engine) notifyReward(tok string, data *RewardData, reward *big.Int) {
	now := e.clock.Now()
	duration := new(big.Int).SetUint64(e.cfg.RewardsDuration)
	scaled := new(big.Int).Mul(reward, ratePrecision)
	if now < data.PeriodFinish {
		remaining := new(big.Int).SetUint64(data.PeriodFinish - now)
		leftover := new(big.Int).Mul(remaining, data.RewardPerSecond)
		scaled.Add(scaled, leftover)
	}
	data.RewardPerSecond = scaled.Quo(scaled, duration)
	data.LastUpdateTime = now
	data.PeriodFinish = now + e.cfg.RewardsDuration
	data.Balance = new(big.Int).Add(data.Balance, reward)
	e.store.AppendEvent(events.RewardNotified{Token: tok, Amount: reward, PeriodFinish: data.PeriodFinish}.Event())
}

// notifyUnseenReward starts streaming any balance of tok that has not been
// registered yet. Nothing happens until the running period is within its
// lookback window of completion.
func (e *Engine) notifyUnseenReward(tok string) error {
	data, err := e.rewardData(tok)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	if data.PeriodFinish >= now+e.cfg.RewardsDuration-e.cfg.RewardsLookback {
		return nil
	}
	held, err := e.ledger.Balance(tok, e.address)
	if err != nil {
		return err
	}
	reserved, err := e.reserved(tok)
	if err != nil {
		return err
	}
	unseen := nativecommon.SaturatingSub(nativecommon.SaturatingSub(held, data.Balance), reserved)
	if unseen.Sign() == 0 {
		return nil
	}
	// Settle the accumulator at the old rate before switching.
	if err := e.updateReward(common.Address{}); err != nil {
		return err
	}
	if data, err = e.rewardData(tok); err != nil {
		return err
	}
	e.notifyReward(tok, data, unseen)
	return e.putRewardData(tok, data)
}

// NotifyUnseenRewards registers new revenue for every reward token.
func (e *Engine) NotifyUnseenRewards() error {
	if err := e.guard(); err != nil {
		return err
	}
	for _, tok := range e.rewardTokens {
		if err := e.notifyUnseenReward(tok); err != nil {
			return err
		}
	}
	return nil
}

// ClaimableRewards returns the amount of every reward token user could claim
// right now.
func (e *Engine) ClaimableRewards(user common.Address) ([]RewardAmount, error) {
	s, err := e.supply()
	if err != nil {
		return nil, err
	}
	bal, err := e.balances(user)
	if err != nil {
		return nil, err
	}
	out := make([]RewardAmount, 0, len(e.rewardTokens))
	for _, tok := range e.rewardTokens {
		data, err := e.rewardData(tok)
		if err != nil {
			return nil, err
		}
		rec, err := e.userReward(user, tok)
		if err != nil {
			return nil, err
		}
		amount := earned(bal.LockedWithMultiplier, e.rewardPerToken(data, s.LockedWithMultiplier), rec)
		out = append(out, RewardAmount{Token: tok, Amount: amount.Quo(amount, ratePrecision)})
	}
	return out, nil
}

// GetAllRewards pays out every reward token to the caller.
func (e *Engine) GetAllRewards(caller common.Address) ([]RewardAmount, error) {
	return e.GetReward(caller, e.RewardTokens())
}

// GetReward pays out the listed reward tokens to the caller.
func (e *Engine) GetReward(caller common.Address, tokens []string) ([]RewardAmount, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if err := e.updateReward(caller); err != nil {
		return nil, err
	}
	return e.payRewards(caller, caller, tokens)
}

func (e *Engine) payRewards(user, to common.Address, tokens []string) ([]RewardAmount, error) {
	paid := make([]RewardAmount, 0, len(tokens))
	for _, tok := range tokens {
		if err := e.notifyUnseenReward(tok); err != nil {
			return nil, err
		}
		rec, err := e.userReward(user, tok)
		if err != nil {
			return nil, err
		}
		reward := new(big.Int).Quo(rec.Rewards, ratePrecision)
		if reward.Sign() == 0 {
			continue
		}
		rec.Rewards = new(big.Int).Sub(rec.Rewards, new(big.Int).Mul(reward, ratePrecision))
		if err := e.putUserReward(user, tok, rec); err != nil {
			return nil, err
		}
		data, err := e.rewardData(tok)
		if err != nil {
			return nil, err
		}
		data.Balance = nativecommon.SaturatingSub(data.Balance, reward)
		if err := e.putRewardData(tok, data); err != nil {
			return nil, err
		}
		if err := e.ledger.Transfer(tok, e.address, to, reward); err != nil {
			return nil, err
		}
		e.store.AppendEvent(events.RewardPaid{User: user, To: to, Token: tok, Amount: reward}.Event())
		paid = append(paid, RewardAmount{Token: tok, Amount: reward})
	}
	return paid, nil
}

// ClaimFromConverter sends user's non PRNT rewards to the compounder for
// conversion and returns what was sent.
func (e *Engine) ClaimFromConverter(caller, user common.Address) ([]RewardAmount, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if caller != e.compounder || nativecommon.IsZeroAddress(caller) {
		return nil, nativecommon.ErrInsufficientPermission
	}
	if err := e.updateReward(user); err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(e.rewardTokens))
	for _, tok := range e.rewardTokens {
		if tok != e.cfg.RewardToken {
			tokens = append(tokens, tok)
		}
	}
	paid, err := e.payRewards(user, caller, tokens)
	if err != nil {
		return nil, err
	}
	settings, err := e.Settings(user)
	if err != nil {
		return nil, err
	}
	settings.LastClaimTime = e.clock.Now()
	if err := e.putSettings(user, settings); err != nil {
		return nil, err
	}
	return paid, nil
}
