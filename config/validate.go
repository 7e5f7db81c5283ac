package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	basisPoints            = 10_000
	maxCompoundFee         = 2_000
	minSlippageLimit       = 8_000
	minPriceToleranceRatio = 8_000
	maxLockTiers           = 32
)

// Validate checks the configuration before the node boots from it.
func (cfg *Config) Validate() error {
	if cfg.RPC.RequestsPerMinute < 0 || cfg.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0, 1]")
	}
	return cfg.Genesis.Validate()
}

// Validate checks ratios, tier tables and amounts of the genesis.
func (g Genesis) Validate() error {
	if g.RewardToken == "" || g.BaseToken == "" || g.LPToken == "" {
		return fmt.Errorf("genesis: reward, base and lp tokens are required")
	}
	if g.RewardToken == g.BaseToken || g.LPToken == g.RewardToken || g.LPToken == g.BaseToken {
		return fmt.Errorf("genesis: reward, base and lp tokens must differ")
	}
	if _, err := ResolveAddress(g.Treasury, common.Address{}); err != nil {
		return fmt.Errorf("genesis.Treasury: %w", err)
	}
	if err := positive("genesis.reward_pool.RewardLiquidity", g.RewardPool.RewardLiquidity, Tokens); err != nil {
		return err
	}
	if err := positive("genesis.reward_pool.BaseLiquidity", g.RewardPool.BaseLiquidity, Tokens); err != nil {
		return err
	}

	seen := make(map[string]bool, len(g.Assets))
	baseListed := false
	for i, asset := range g.Assets {
		field := fmt.Sprintf("genesis.assets[%d]", i)
		if asset.Symbol == "" {
			return fmt.Errorf("%s: symbol required", field)
		}
		if seen[asset.Symbol] {
			return fmt.Errorf("%s: duplicate asset %s", field, asset.Symbol)
		}
		seen[asset.Symbol] = true
		if asset.Symbol == g.BaseToken {
			baseListed = true
		}
		if asset.Symbol == g.RewardToken || asset.Symbol == g.LPToken {
			return fmt.Errorf("%s: %s cannot be listed for lending", field, asset.Symbol)
		}
		if err := positive(field+".PriceUsd", asset.PriceUsd, Usd); err != nil {
			return err
		}
		if asset.MaxLTVBps > asset.LiquidationThresholdBps || asset.LiquidationThresholdBps >= basisPoints {
			return fmt.Errorf("%s: require MaxLTVBps <= LiquidationThresholdBps < 10000", field)
		}
		if asset.LiquidationBonusBps > basisPoints || asset.ReserveFactorBps > basisPoints {
			return fmt.Errorf("%s: bonus and reserve factor must be <= 10000", field)
		}
	}
	if !baseListed {
		return fmt.Errorf("genesis.assets: base token %s must be listed so it can be priced", g.BaseToken)
	}

	for i, alloc := range g.Allocations {
		field := fmt.Sprintf("genesis.allocations[%d]", i)
		if alloc.Token == "" {
			return fmt.Errorf("%s: token required", field)
		}
		if _, err := ResolveAddress(alloc.Address, common.Address{}); err != nil {
			return fmt.Errorf("%s.Address: %w", field, err)
		}
		if _, err := Tokens(alloc.Amount); err != nil {
			return fmt.Errorf("%s.Amount: %w", field, err)
		}
	}

	if g.Oracle.HeartbeatSeconds == 0 {
		return fmt.Errorf("genesis.oracle: HeartbeatSeconds must be > 0")
	}
	if g.Oracle.UseTwap && g.Oracle.TwapPeriod == 0 {
		return fmt.Errorf("genesis.oracle: TwapPeriod must be > 0 when UseTwap is set")
	}
	if g.Lending.LiquidationProtocolFeeBps > basisPoints {
		return fmt.Errorf("genesis.lending: LiquidationProtocolFeeBps must be <= 10000")
	}
	if l := g.Lending; l.HasInterestModel() {
		if l.OptimalUtilisationBps == 0 || l.OptimalUtilisationBps > basisPoints {
			return fmt.Errorf("genesis.lending: OptimalUtilisationBps must be within (0,10000]")
		}
	}

	if err := g.MFD.validate(); err != nil {
		return err
	}

	if g.Eligibility.RequiredDepositRatio > basisPoints {
		return fmt.Errorf("genesis.eligibility: RequiredDepositRatio must be <= 10000")
	}
	if g.Eligibility.PriceToleranceRatio < minPriceToleranceRatio || g.Eligibility.PriceToleranceRatio > basisPoints {
		return fmt.Errorf("genesis.eligibility: PriceToleranceRatio must be within [8000,10000]")
	}

	if _, err := Tokens(g.Chef.RewardsPerSecond); err != nil {
		return fmt.Errorf("genesis.chef.RewardsPerSecond: %w", err)
	}
	if _, err := Tokens(g.Chef.RewardBudget); err != nil {
		return fmt.Errorf("genesis.chef.RewardBudget: %w", err)
	}
	if g.Chef.EndingTimeUpdateCadence > 7*day {
		return fmt.Errorf("genesis.chef: EndingTimeUpdateCadence must be <= one week")
	}
	if len(g.Chef.ScheduleOffsets) != len(g.Chef.ScheduleRates) {
		return fmt.Errorf("genesis.chef: ScheduleOffsets and ScheduleRates length mismatch")
	}
	for i := 1; i < len(g.Chef.ScheduleOffsets); i++ {
		if g.Chef.ScheduleOffsets[i] <= g.Chef.ScheduleOffsets[i-1] {
			return fmt.Errorf("genesis.chef: ScheduleOffsets must be strictly increasing")
		}
	}
	if _, err := g.Chef.Rates(); err != nil {
		return fmt.Errorf("genesis.%w", err)
	}

	for field, raw := range map[string]string{
		"MinStakeAmountUsd":   g.Bounty.MinStakeAmountUsd,
		"BaseBountyUsdTarget": g.Bounty.BaseBountyUsdTarget,
	} {
		if _, err := Usd(raw); err != nil {
			return fmt.Errorf("genesis.bounty.%s: %w", field, err)
		}
	}
	if err := positive("genesis.bounty.MaxBaseBounty", g.Bounty.MaxBaseBounty, Tokens); err != nil {
		return err
	}
	if _, err := Tokens(g.Bounty.Reserve); err != nil {
		return fmt.Errorf("genesis.bounty.Reserve: %w", err)
	}
	if g.Bounty.HunterShare == 0 || g.Bounty.HunterShare > basisPoints {
		return fmt.Errorf("genesis.bounty: HunterShare must be within (0,10000]")
	}
	if g.Bounty.MaxBoostBps != 0 && g.Bounty.MaxBoostBps < basisPoints {
		return fmt.Errorf("genesis.bounty: MaxBoostBps must be 0 or >= 10000")
	}
	for i, hunter := range g.Bounty.Whitelist {
		if strings.TrimSpace(hunter) == "" {
			return fmt.Errorf("genesis.bounty.Whitelist[%d]: empty address", i)
		}
		if _, err := ResolveAddress(hunter, common.Address{}); err != nil {
			return fmt.Errorf("genesis.bounty.Whitelist[%d]: %w", i, err)
		}
	}

	if g.Compounder.CompoundFee == 0 || g.Compounder.CompoundFee > maxCompoundFee {
		return fmt.Errorf("genesis.compounder: CompoundFee must be within (0,2000]")
	}
	if g.Compounder.SlippageLimit < minSlippageLimit || g.Compounder.SlippageLimit >= basisPoints {
		return fmt.Errorf("genesis.compounder: SlippageLimit must be within [8000,10000)")
	}
	if _, err := Usd(g.Compounder.AutocompoundThresholdUsd); err != nil {
		return fmt.Errorf("genesis.compounder.AutocompoundThresholdUsd: %w", err)
	}
	return nil
}

func (m MFDParams) validate() error {
	if len(m.LockDurations) == 0 || len(m.LockDurations) > maxLockTiers {
		return fmt.Errorf("genesis.mfd: LockDurations must list between 1 and %d tiers", maxLockTiers)
	}
	if len(m.LockDurations) != len(m.LockMultipliers) {
		return fmt.Errorf("genesis.mfd: LockDurations and LockMultipliers length mismatch")
	}
	for i := range m.LockDurations {
		if m.LockDurations[i] == 0 || m.LockMultipliers[i] == 0 {
			return fmt.Errorf("genesis.mfd: tier %d must have a non-zero duration and multiplier", i)
		}
	}
	if m.RewardsDuration == 0 || m.VestDuration == 0 {
		return fmt.Errorf("genesis.mfd: RewardsDuration and VestDuration must be > 0")
	}
	if m.RewardsLookback > m.RewardsDuration {
		return fmt.Errorf("genesis.mfd: RewardsLookback must be <= RewardsDuration")
	}
	if m.BurnRatioBps > basisPoints {
		return fmt.Errorf("genesis.mfd: BurnRatioBps must be <= 10000")
	}
	return nil
}

func positive(field, raw string, parse func(string) (*big.Int, error)) error {
	value, err := parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if value.Sign() <= 0 {
		return fmt.Errorf("%s: must be > 0", field)
	}
	return nil
}
