package chef

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// updateEmissions applies due schedule entries unless the rate is pinned.
func (e *Engine) updateEmissions(g *globals) error {
	if g.StartTime == 0 || g.PersistRewardsPerSecond {
		return nil
	}
	elapsed := e.clock.Now() - g.StartTime
	for g.EmissionIndex < uint64(len(e.schedule)) {
		point := e.schedule[g.EmissionIndex]
		if elapsed <= point.StartTimeOffset {
			break
		}
		if err := e.massUpdatePools(g); err != nil {
			return err
		}
		g.RewardsPerSecond = new(big.Int).Set(point.RewardsPerSecond)
		g.EmissionIndex++
		g.EndTimeUpdated = 0
	}
	return nil
}

// endRewardTime estimates when the deposited budget runs out at the current
// rate. The estimate is refreshed at most once per cadence.
func (e *Engine) endRewardTime(g *globals) (uint64, error) {
	now := e.clock.Now()
	if g.EndTimeUpdated != 0 && now < g.EndTimeUpdated+e.cadence {
		return g.EndTimeEstimate, nil
	}
	estimate := uint64(math.MaxUint64)
	if g.RewardsPerSecond.Sign() > 0 {
		extra := big.NewInt(0)
		if g.TotalAllocPoint > 0 {
			for _, poolToken := range e.tokens {
				p, err := e.pool(poolToken)
				if err != nil {
					return 0, err
				}
				if p.LastRewardTime >= g.LastAllPoolUpdate {
					continue
				}
				gap := new(big.Int).SetUint64(g.LastAllPoolUpdate - p.LastRewardTime)
				gap.Mul(gap, g.RewardsPerSecond)
				gap.Mul(gap, new(big.Int).SetUint64(p.AllocPoint))
				gap.Quo(gap, new(big.Int).SetUint64(g.TotalAllocPoint))
				extra.Add(extra, gap)
			}
		}
		remaining := g.availableRewards()
		remaining.Sub(remaining, extra)
		if remaining.Sign() < 0 {
			remaining.SetInt64(0)
		}
		base := g.LastAllPoolUpdate
		if base == 0 {
			base = now
		}
		seconds := remaining.Quo(remaining, g.RewardsPerSecond)
		if seconds.IsUint64() && seconds.Uint64() <= math.MaxUint64-base {
			estimate = base + seconds.Uint64()
		}
	}
	g.EndTimeEstimate = estimate
	g.EndTimeUpdated = now
	return estimate, nil
}

// accrue advances p to min(now, end) without persisting it.
func (e *Engine) accrue(g *globals, p *Pool, end uint64) {
	timestamp := e.clock.Now()
	if end < timestamp {
		timestamp = end
	}
	if timestamp <= p.LastRewardTime {
		return
	}
	if p.TotalSupply.Sign() == 0 || g.TotalAllocPoint == 0 {
		p.LastRewardTime = timestamp
		return
	}
	raw := new(big.Int).SetUint64(timestamp - p.LastRewardTime)
	raw.Mul(raw, g.RewardsPerSecond)
	if available := g.availableRewards(); raw.Cmp(available) > 0 {
		raw = available
	}
	reward := raw.Mul(raw, new(big.Int).SetUint64(p.AllocPoint))
	reward.Quo(reward, new(big.Int).SetUint64(g.TotalAllocPoint))
	share := new(big.Int).Mul(reward, accPrecision)
	share.Quo(share, p.TotalSupply)
	p.AccRewardPerShare.Add(p.AccRewardPerShare, share)
	g.AccountedRewards.Add(g.AccountedRewards, reward)
	p.LastRewardTime = timestamp
}

func (e *Engine) massUpdatePools(g *globals) error {
	end, err := e.endRewardTime(g)
	if err != nil {
		return err
	}
	for _, poolToken := range e.tokens {
		p, err := e.pool(poolToken)
		if err != nil {
			return err
		}
		e.accrue(g, p, end)
		if err := e.putPool(p); err != nil {
			return err
		}
	}
	g.LastAllPoolUpdate = e.clock.Now()
	return nil
}

// pendingIn is the unsettled reward of u at accumulator acc.
func pendingIn(u *UserInfo, acc *big.Int) *big.Int {
	owed := new(big.Int).Mul(u.Amount, acc)
	owed.Quo(owed, accPrecision)
	owed.Sub(owed, u.RewardDebt)
	if owed.Sign() < 0 {
		return big.NewInt(0)
	}
	return owed
}

// handleActionAfterForToken settles user's pending reward in poolToken and
// registers balance as the new stake.
func (e *Engine) handleActionAfterForToken(g *globals, poolToken string, user common.Address, balance *big.Int) error {
	p, err := e.pool(poolToken)
	if err != nil {
		return err
	}
	end, err := e.endRewardTime(g)
	if err != nil {
		return err
	}
	e.accrue(g, p, end)
	u, err := e.userInfo(poolToken, user)
	if err != nil {
		return err
	}
	if err := e.addBaseClaimable(user, pendingIn(u, p.AccRewardPerShare)); err != nil {
		return err
	}
	p.TotalSupply.Sub(p.TotalSupply, u.Amount)
	p.TotalSupply.Add(p.TotalSupply, balance)
	u.Amount = copyInt(balance)
	u.RewardDebt = new(big.Int).Mul(u.Amount, p.AccRewardPerShare)
	u.RewardDebt.Quo(u.RewardDebt, accPrecision)
	u.LastUpdate = e.clock.Now()
	if err := e.putPool(p); err != nil {
		return err
	}
	return e.putUserInfo(poolToken, user, u)
}
