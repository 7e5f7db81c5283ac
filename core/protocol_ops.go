package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/native/bounty"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/lending"
	"primenumbers/native/mfd"
	"primenumbers/native/token"
)

func (p *Protocol) onlyOwner(caller common.Address) error {
	if caller != p.addrs.Owner {
		return nativecommon.ErrNotOwner
	}
	return nil
}

// Mint credits amount of tok to to. Operator only; used to fund devnet
// accounts.
func (p *Protocol) Mint(ctx context.Context, caller common.Address, tok string, to common.Address, amount *big.Int) error {
	return p.Execute(ctx, "token.mint", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		return p.ledger.Mint(tok, to, amount)
	})
}

// Transfer moves amount of tok from caller to to.
func (p *Protocol) Transfer(ctx context.Context, caller common.Address, tok string, to common.Address, amount *big.Int) error {
	return p.Execute(ctx, "token.transfer", func() error {
		return p.ledger.Transfer(tok, caller, to, amount)
	})
}

// SetAssetPrice publishes a new USD answer on the asset's feed. Operator
// only. The answer survives restarts.
func (p *Protocol) SetAssetPrice(ctx context.Context, caller common.Address, asset string, price *big.Int) error {
	asset = token.Normalize(asset)
	return p.Execute(ctx, "oracle.set_price", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		feed, ok := p.feeds[asset]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeed, asset)
		}
		if !nativecommon.IsPositive(price) {
			return nativecommon.ErrInvalidNumber
		}
		if err := p.state.KVPut(priceKey(asset), &priceRecord{Answer: price}); err != nil {
			return err
		}
		feed.SetAnswer(price)
		p.logger.Info("price updated", slog.String("asset", asset), slog.String("price", price.String()))
		return nil
	})
}

// AdvanceTime moves block time forward, republishes the feed answers at the
// new time and checkpoints the TWAP. It returns the new block time.
func (p *Protocol) AdvanceTime(ctx context.Context, seconds uint64) (uint64, error) {
	var now uint64
	err := p.Execute(ctx, "clock.advance", func() error {
		if seconds == 0 {
			return nativecommon.ErrInvalidNumber
		}
		prev := p.clock.Now()
		now = p.clock.Advance(seconds)
		for _, feed := range p.feeds {
			round, err := feed.LatestRoundData()
			if err != nil {
				p.clock.Restore(prev)
				return err
			}
			feed.SetAnswer(round.Answer)
		}
		if _, err := p.prices.Update(); err != nil {
			p.clock.Restore(prev)
			return err
		}
		return nil
	})
	return now, err
}

// ProvideLiquidity adds reward and base tokens of caller to the reward pool
// and returns the LP tokens minted to caller.
func (p *Protocol) ProvideLiquidity(ctx context.Context, caller common.Address, rewardAmount, baseAmount *big.Int) (*big.Int, error) {
	var lp *big.Int
	err := p.Execute(ctx, "amm.add_liquidity", func() error {
		var err error
		_, _, lp, err = p.router.AddLiquidity(caller, p.genesis.RewardToken, p.genesis.BaseToken, rewardAmount, baseAmount, caller)
		return err
	})
	return lp, err
}

// Swap sells amountIn of from for to along the direct pair.
func (p *Protocol) Swap(ctx context.Context, caller common.Address, from, to string, amountIn, minOut *big.Int) (*big.Int, error) {
	var out *big.Int
	err := p.Execute(ctx, "amm.swap", func() error {
		var err error
		out, err = p.router.SwapExactIn(caller, []string{from, to}, amountIn, minOut, caller)
		return err
	})
	return out, err
}

// Stake locks amount of the LP token from caller for onBehalf.
func (p *Protocol) Stake(ctx context.Context, caller common.Address, amount *big.Int, onBehalf common.Address, typeIndex uint64) error {
	if nativecommon.IsZeroAddress(onBehalf) {
		onBehalf = caller
	}
	return p.Execute(ctx, "mfd.stake", func() error {
		return p.mfd.Stake(caller, amount, onBehalf, typeIndex)
	})
}

// WithdrawExpiredLocks releases or relocks the caller's expired locks.
func (p *Protocol) WithdrawExpiredLocks(ctx context.Context, caller common.Address) (*big.Int, error) {
	var amount *big.Int
	err := p.Execute(ctx, "mfd.withdraw_expired", func() error {
		var err error
		amount, err = p.mfd.WithdrawExpiredLocksFor(caller, caller)
		return err
	})
	return amount, err
}

// Relock locks the caller's expired locks again in their default tier.
func (p *Protocol) Relock(ctx context.Context, caller common.Address) (*big.Int, error) {
	var amount *big.Int
	err := p.Execute(ctx, "mfd.relock", func() error {
		var err error
		amount, err = p.mfd.Relock(caller)
		return err
	})
	return amount, err
}

// SetRelock toggles auto relock for caller.
func (p *Protocol) SetRelock(ctx context.Context, caller common.Address, enabled bool) error {
	return p.Execute(ctx, "mfd.set_relock", func() error {
		return p.mfd.SetRelock(caller, enabled)
	})
}

// SetAutocompound opts caller in or out of third party compounding.
func (p *Protocol) SetAutocompound(ctx context.Context, caller common.Address, enabled bool, slippage uint64) error {
	return p.Execute(ctx, "mfd.set_autocompound", func() error {
		return p.mfd.SetAutocompound(caller, enabled, slippage)
	})
}

// ClaimRewards pays the caller's streamed revenue rewards.
func (p *Protocol) ClaimRewards(ctx context.Context, caller common.Address) ([]mfd.RewardAmount, error) {
	var paid []mfd.RewardAmount
	err := p.Execute(ctx, "mfd.get_reward", func() error {
		var err error
		paid, err = p.mfd.GetAllRewards(caller)
		return err
	})
	return paid, err
}

// Exit withdraws the caller's vesting and unlocked reward tokens, paying the
// early exit penalty where due.
func (p *Protocol) Exit(ctx context.Context, caller common.Address, claimRewards bool) error {
	return p.Execute(ctx, "mfd.exit", func() error {
		return p.mfd.Exit(caller, claimRewards)
	})
}

// Deposit supplies amount of asset from caller.
func (p *Protocol) Deposit(ctx context.Context, caller common.Address, asset string, amount *big.Int) error {
	return p.Execute(ctx, "lending.deposit", func() error {
		return p.lending.Deposit(caller, asset, amount, caller)
	})
}

// Withdraw redeems amount of asset to caller and returns what was paid.
func (p *Protocol) Withdraw(ctx context.Context, caller common.Address, asset string, amount *big.Int) (*big.Int, error) {
	var out *big.Int
	err := p.Execute(ctx, "lending.withdraw", func() error {
		var err error
		out, err = p.lending.Withdraw(caller, asset, amount, caller)
		return err
	})
	return out, err
}

// Borrow draws amount of asset against caller's collateral.
func (p *Protocol) Borrow(ctx context.Context, caller common.Address, asset string, amount *big.Int) error {
	return p.Execute(ctx, "lending.borrow", func() error {
		return p.lending.Borrow(caller, asset, amount)
	})
}

// Repay reduces caller's debt in asset and returns the amount applied.
func (p *Protocol) Repay(ctx context.Context, caller common.Address, asset string, amount *big.Int) (*big.Int, error) {
	var repaid *big.Int
	err := p.Execute(ctx, "lending.repay", func() error {
		var err error
		repaid, err = p.lending.Repay(caller, asset, amount, caller)
		return err
	})
	return repaid, err
}

// Liquidate repays debt of an unhealthy borrower for a share of their
// collateral.
func (p *Protocol) Liquidate(ctx context.Context, caller common.Address, collateralAsset, debtAsset string, borrower common.Address, amount *big.Int) (*lending.LiquidationResult, error) {
	var res *lending.LiquidationResult
	err := p.Execute(ctx, "lending.liquidate", func() error {
		var err error
		res, err = p.lending.Liquidate(caller, collateralAsset, debtAsset, borrower, amount)
		return err
	})
	return res, err
}

// Loop builds a leveraged position for caller through the leverager.
func (p *Protocol) Loop(ctx context.Context, caller common.Address, asset string, amount *big.Int, borrowRatioBps, loops uint64) (*big.Int, error) {
	var borrowed *big.Int
	err := p.Execute(ctx, "leverager.loop", func() error {
		var err error
		borrowed, err = p.leverager.Loop(caller, asset, amount, borrowRatioBps, loops)
		return err
	})
	return borrowed, err
}

// ClaimEmissions vests the caller's pending emissions across all pools.
func (p *Protocol) ClaimEmissions(ctx context.Context, caller common.Address) (*big.Int, error) {
	var claimed *big.Int
	err := p.Execute(ctx, "chef.claim", func() error {
		var err error
		claimed, err = p.chef.ClaimAll(caller, caller)
		return err
	})
	return claimed, err
}

// ClaimBounty executes actionType against user and vests the bounty to hunter.
func (p *Protocol) ClaimBounty(ctx context.Context, hunter, user common.Address, actionType uint64) (*big.Int, error) {
	var paid *big.Int
	err := p.Execute(ctx, "bounty.claim", func() error {
		var err error
		paid, err = p.bounty.Claim(hunter, user, actionType)
		return err
	})
	return paid, err
}

// SelfCompound compounds the caller's own revenue rewards without a fee.
func (p *Protocol) SelfCompound(ctx context.Context, caller common.Address, slippage uint64) (*big.Int, error) {
	var lp *big.Int
	err := p.Execute(ctx, "compounder.self_compound", func() error {
		var err error
		lp, err = p.compounder.SelfCompound(caller, slippage)
		return err
	})
	return lp, err
}

// CollectRevenue sweeps the lending reserves into the fee distributor and
// starts streaming them to lockers. Operator only.
func (p *Protocol) CollectRevenue(ctx context.Context, caller common.Address) (map[string]*big.Int, error) {
	collected := make(map[string]*big.Int)
	err := p.Execute(ctx, "lending.collect_revenue", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		for _, asset := range p.lending.Assets() {
			amount, err := p.lending.CollectReserves(caller, asset, p.addrs.MFD)
			if err != nil {
				return fmt.Errorf("collect %s: %w", asset, err)
			}
			collected[asset] = amount
		}
		return p.mfd.NotifyUnseenRewards()
	})
	return collected, err
}

// SetModulePaused trips or resets the circuit breaker of module. Operator
// only. The breaker is kept in state and survives restarts.
func (p *Protocol) SetModulePaused(ctx context.Context, caller common.Address, module string, paused bool) error {
	err := p.Execute(ctx, "module.pause", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		return p.pauses.SetPaused(module, paused)
	})
	if err != nil {
		return err
	}
	p.logger.Info("module pause changed", slog.String("component", module), slog.Bool("paused", paused))
	return nil
}

// SetBountyWhitelist toggles the hunter whitelist and optionally admits
// hunters. Operator only.
func (p *Protocol) SetBountyWhitelist(ctx context.Context, caller common.Address, active bool, hunters ...common.Address) error {
	return p.Execute(ctx, "bounty.whitelist", func() error {
		for _, hunter := range hunters {
			if err := p.bounty.AddAddressToWL(caller, hunter, true); err != nil {
				return err
			}
		}
		return p.bounty.ChangeWL(caller, active)
	})
}

// ActionNames labels bounty action types for logs and the RPC surface.
var ActionNames = map[uint64]string{
	bounty.ActionAuto:         "auto",
	bounty.ActionExpiredLocks: "expired_locks",
	bounty.ActionIneligible:   "ineligible",
	bounty.ActionAutocompound: "autocompound",
}
