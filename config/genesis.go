package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/crypto"
)

const (
	// TokenDecimals is the precision of every ledger token.
	TokenDecimals = 18
	// UsdDecimals is the precision of USD prices and values.
	UsdDecimals = 8

	day = 24 * 60 * 60
)

// Genesis is the protocol state the node boots from.
type Genesis struct {
	// StartTime is the initial block time; zero uses the wall clock.
	StartTime   uint64 `toml:"StartTime" yaml:"start_time"`
	RewardToken string `toml:"RewardToken" yaml:"reward_token"`
	BaseToken   string `toml:"BaseToken" yaml:"base_token"`
	LPToken     string `toml:"LPToken" yaml:"lp_token"`
	// Treasury receives the non-burned share of exit penalties; empty means
	// the operator.
	Treasury string `toml:"Treasury" yaml:"treasury"`

	RewardPool  RewardPool        `toml:"reward_pool" yaml:"reward_pool"`
	Assets      []Asset           `toml:"assets" yaml:"assets"`
	Allocations []Allocation      `toml:"allocations" yaml:"allocations"`
	Oracle      OracleParams      `toml:"oracle" yaml:"oracle"`
	Lending     LendingParams     `toml:"lending" yaml:"lending"`
	MFD         MFDParams         `toml:"mfd" yaml:"mfd"`
	Eligibility EligibilityParams `toml:"eligibility" yaml:"eligibility"`
	Chef        ChefParams        `toml:"chef" yaml:"chef"`
	Bounty      BountyParams      `toml:"bounty" yaml:"bounty"`
	Compounder  CompounderParams  `toml:"compounder" yaml:"compounder"`
}

// RewardPool seeds the reward/base AMM pair. Amounts are whole tokens.
type RewardPool struct {
	RewardLiquidity string `toml:"RewardLiquidity" yaml:"reward_liquidity"`
	BaseLiquidity   string `toml:"BaseLiquidity" yaml:"base_liquidity"`
}

// Asset lists a lending market priced by a manual feed.
type Asset struct {
	Symbol                  string `toml:"Symbol" yaml:"symbol"`
	PriceUsd                string `toml:"PriceUsd" yaml:"price_usd"`
	MaxLTVBps               uint64 `toml:"MaxLTVBps" yaml:"max_ltv_bps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps" yaml:"liquidation_threshold_bps"`
	LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps" yaml:"liquidation_bonus_bps"`
	ReserveFactorBps        uint64 `toml:"ReserveFactorBps" yaml:"reserve_factor_bps"`
	DepositAllocPoint       uint64 `toml:"DepositAllocPoint" yaml:"deposit_alloc_point"`
	BorrowAllocPoint        uint64 `toml:"BorrowAllocPoint" yaml:"borrow_alloc_point"`
}

// Allocation mints Amount whole tokens to Address at genesis. An empty
// address means the operator.
type Allocation struct {
	Address string `toml:"Address" yaml:"address"`
	Token   string `toml:"Token" yaml:"token"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

type OracleParams struct {
	HeartbeatSeconds uint64 `toml:"HeartbeatSeconds" yaml:"heartbeat_seconds"`
	TwapPeriod       uint64 `toml:"TwapPeriod" yaml:"twap_period"`
	UseTwap          bool   `toml:"UseTwap" yaml:"use_twap"`
}

// LendingParams configures the pool. The borrow rate curve is annual and in
// basis points; an all zero curve disables interest accrual.
type LendingParams struct {
	LiquidationProtocolFeeBps uint64 `toml:"LiquidationProtocolFeeBps" yaml:"liquidation_protocol_fee_bps"`
	BaseRateBps               uint64 `toml:"BaseRateBps" yaml:"base_rate_bps"`
	Slope1Bps                 uint64 `toml:"Slope1Bps" yaml:"slope1_bps"`
	Slope2Bps                 uint64 `toml:"Slope2Bps" yaml:"slope2_bps"`
	OptimalUtilisationBps     uint64 `toml:"OptimalUtilisationBps" yaml:"optimal_utilisation_bps"`
}

// HasInterestModel reports whether any interest curve parameter is set.
func (l LendingParams) HasInterestModel() bool {
	return l.BaseRateBps != 0 || l.Slope1Bps != 0 || l.Slope2Bps != 0 || l.OptimalUtilisationBps != 0
}

type MFDParams struct {
	LockDurations   []uint64 `toml:"LockDurations" yaml:"lock_durations"`
	LockMultipliers []uint64 `toml:"LockMultipliers" yaml:"lock_multipliers"`
	RewardsDuration uint64   `toml:"RewardsDuration" yaml:"rewards_duration"`
	RewardsLookback uint64   `toml:"RewardsLookback" yaml:"rewards_lookback"`
	VestDuration    uint64   `toml:"VestDuration" yaml:"vest_duration"`
	BurnRatioBps    uint64   `toml:"BurnRatioBps" yaml:"burn_ratio_bps"`
}

type EligibilityParams struct {
	RequiredDepositRatio uint64 `toml:"RequiredDepositRatio" yaml:"required_deposit_ratio"`
	PriceToleranceRatio  uint64 `toml:"PriceToleranceRatio" yaml:"price_tolerance_ratio"`
}

// ChefParams configures emissions. Rates and budgets are whole tokens.
type ChefParams struct {
	RewardsPerSecond        string   `toml:"RewardsPerSecond" yaml:"rewards_per_second"`
	RewardBudget            string   `toml:"RewardBudget" yaml:"reward_budget"`
	EndingTimeUpdateCadence uint64   `toml:"EndingTimeUpdateCadence" yaml:"ending_time_update_cadence"`
	ScheduleOffsets         []uint64 `toml:"ScheduleOffsets" yaml:"schedule_offsets"`
	ScheduleRates           []string `toml:"ScheduleRates" yaml:"schedule_rates"`
}

// BountyParams configures the bounty manager. USD values are decimal
// strings, token amounts whole tokens.
type BountyParams struct {
	MinStakeAmountUsd   string   `toml:"MinStakeAmountUsd" yaml:"min_stake_amount_usd"`
	BaseBountyUsdTarget string   `toml:"BaseBountyUsdTarget" yaml:"base_bounty_usd_target"`
	MaxBaseBounty       string   `toml:"MaxBaseBounty" yaml:"max_base_bounty"`
	HunterShare         uint64   `toml:"HunterShare" yaml:"hunter_share"`
	Reserve             string   `toml:"Reserve" yaml:"reserve"`
	WhitelistActive     bool     `toml:"WhitelistActive" yaml:"whitelist_active"`
	Whitelist           []string `toml:"Whitelist" yaml:"whitelist"`
	// MaxBoostBps enables the drawdown boost curve when non-zero.
	MaxBoostBps uint64 `toml:"MaxBoostBps" yaml:"max_boost_bps"`
}

type CompounderParams struct {
	CompoundFee              uint64 `toml:"CompoundFee" yaml:"compound_fee"`
	SlippageLimit            uint64 `toml:"SlippageLimit" yaml:"slippage_limit"`
	AutocompoundThresholdUsd string `toml:"AutocompoundThresholdUsd" yaml:"autocompound_threshold_usd"`
}

// DefaultGenesis is a devnet with USDC and WETH markets, PRNT priced at
// roughly one dollar and a million PRNT emission budget.
func DefaultGenesis() Genesis {
	return Genesis{
		RewardToken: "PRNT",
		BaseToken:   "WETH",
		LPToken:     "DLP",
		RewardPool: RewardPool{
			RewardLiquidity: "1000000",
			BaseLiquidity:   "500",
		},
		Assets: []Asset{
			{
				Symbol:                  "USDC",
				PriceUsd:                "1",
				MaxLTVBps:               8_000,
				LiquidationThresholdBps: 8_500,
				LiquidationBonusBps:     500,
				ReserveFactorBps:        1_000,
				DepositAllocPoint:       100,
				BorrowAllocPoint:        100,
			},
			{
				Symbol:                  "WETH",
				PriceUsd:                "2000",
				MaxLTVBps:               7_500,
				LiquidationThresholdBps: 8_000,
				LiquidationBonusBps:     1_000,
				ReserveFactorBps:        1_500,
				DepositAllocPoint:       100,
				BorrowAllocPoint:        100,
			},
		},
		Allocations: []Allocation{
			{Token: "PRNT", Amount: "10000000"},
			{Token: "WETH", Amount: "10000"},
			{Token: "USDC", Amount: "10000000"},
		},
		Oracle:  OracleParams{HeartbeatSeconds: day, TwapPeriod: 60 * 60},
		Lending: LendingParams{
			LiquidationProtocolFeeBps: 750,
			Slope1Bps:                 400,
			Slope2Bps:                 7_500,
			OptimalUtilisationBps:     8_000,
		},
		MFD: MFDParams{
			LockDurations:   []uint64{30 * day, 90 * day, 180 * day, 360 * day},
			LockMultipliers: []uint64{1, 4, 10, 25},
			RewardsDuration: 7 * day,
			RewardsLookback: day,
			VestDuration:    90 * day,
			BurnRatioBps:    5_000,
		},
		Eligibility: EligibilityParams{RequiredDepositRatio: 500, PriceToleranceRatio: 9_000},
		Chef: ChefParams{
			RewardsPerSecond:        "1",
			RewardBudget:            "1000000",
			EndingTimeUpdateCadence: day,
		},
		Bounty: BountyParams{
			MinStakeAmountUsd:   "5",
			BaseBountyUsdTarget: "2",
			MaxBaseBounty:       "100",
			HunterShare:         3_000,
			Reserve:             "100000",
		},
		Compounder: CompounderParams{
			CompoundFee:              300,
			SlippageLimit:            9_500,
			AutocompoundThresholdUsd: "1",
		},
	}
}

func (g *Genesis) normalize() {
	g.RewardToken = strings.ToUpper(strings.TrimSpace(g.RewardToken))
	g.BaseToken = strings.ToUpper(strings.TrimSpace(g.BaseToken))
	g.LPToken = strings.ToUpper(strings.TrimSpace(g.LPToken))
	for i := range g.Assets {
		g.Assets[i].Symbol = strings.ToUpper(strings.TrimSpace(g.Assets[i].Symbol))
	}
	for i := range g.Allocations {
		g.Allocations[i].Token = strings.ToUpper(strings.TrimSpace(g.Allocations[i].Token))
	}
}

// ParseUnits converts a decimal string such as "12.5" into an integer with
// the given number of decimals. Negative values and excess precision are
// rejected.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	if strings.ContainsAny(trimmed, "+-") {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	whole, frac, hasFrac := strings.Cut(trimmed, ".")
	if hasFrac && len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return out, nil
}

// Tokens parses an amount of whole tokens into 18 decimal units.
func Tokens(value string) (*big.Int, error) {
	return ParseUnits(value, TokenDecimals)
}

// Usd parses a dollar amount into 8 decimal units.
func Usd(value string) (*big.Int, error) {
	return ParseUnits(value, UsdDecimals)
}

// ResolveAddress parses addr, substituting fallback when it is empty.
func ResolveAddress(addr string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(addr) == "" {
		return fallback, nil
	}
	return crypto.ParseAddress(addr)
}

// Rates parses the emission schedule rates.
func (c ChefParams) Rates() ([]*big.Int, error) {
	out := make([]*big.Int, len(c.ScheduleRates))
	for i, raw := range c.ScheduleRates {
		rate, err := Tokens(raw)
		if err != nil {
			return nil, fmt.Errorf("chef.ScheduleRates[%d]: %w", i, err)
		}
		out[i] = rate
	}
	return out, nil
}
