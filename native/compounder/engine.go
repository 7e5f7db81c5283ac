package compounder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/mfd"
	"primenumbers/native/token"
)

var (
	ErrNotEligible        = errors.New("compounder: user not eligible for autocompound")
	ErrSwapFailed         = errors.New("compounder: swap failed")
	ErrSlippageTooHigh    = errors.New("compounder: slippage too high")
	ErrInvalidCompoundFee = errors.New("compounder: invalid compound fee")
	ErrInvalidSlippage    = errors.New("compounder: invalid slippage")
)

const (
	moduleName = "compounder"

	MaxCompoundFee     = 2_000
	MinSlippageLimit   = 8_000
	DefaultCompoundFee = 300
	DefaultSlippage    = 9_500

	// MinDelay separates two third party compounds of the same user.
	MinDelay = 24 * 60 * 60
)

// Distributor is the lock ledger rewards are claimed from and LP is staked
// back into.
type Distributor interface {
	ClaimableRewards(user common.Address) ([]mfd.RewardAmount, error)
	ClaimFromConverter(caller, user common.Address) ([]mfd.RewardAmount, error)
	Stake(caller common.Address, amount *big.Int, onBehalf common.Address, typeIndex uint64) error
	Settings(user common.Address) (*mfd.UserSettings, error)
}

// Router swaps and provides liquidity.
type Router interface {
	GetAmountsOut(amountIn *big.Int, path []string) ([]*big.Int, error)
	SwapExactIn(caller common.Address, path []string, amountIn, minOut *big.Int, recipient common.Address) (*big.Int, error)
	AddLiquidity(caller common.Address, tokenA, tokenB string, desiredA, desiredB *big.Int, recipient common.Address) (*big.Int, *big.Int, *big.Int, error)
}

// AssetPrices quotes reward assets in USD.
type AssetPrices interface {
	Price(asset string) (*big.Int, error)
}

// RewardPrices quotes the reward token and its LP token in USD.
type RewardPrices interface {
	GetTokenPriceUsd() (*big.Int, error)
	GetLpTokenPriceUsd() (*big.Int, error)
}

// Config names the tokens the compounder converts through.
type Config struct {
	RewardToken string
	BaseToken   string
	// AutocompoundThreshold is the USD value of pending rewards below which
	// third parties may not compound.
	AutocompoundThreshold *big.Int
	CompoundFee           uint64
	SlippageLimit         uint64
}

// Dependencies are the collaborators wired at Configure.
type Dependencies struct {
	Distributor   Distributor
	Router        Router
	AssetPrices   AssetPrices
	RewardPrices  RewardPrices
	BountyManager common.Address
}

// Engine converts a user's platform revenue rewards into locked LP.
type Engine struct {
	nativecommon.Ownable
	nativecommon.Lifecycle

	store   nativecommon.Store
	ledger  *token.Ledger
	clock   nativecommon.Clock
	address common.Address
	pauses  *nativecommon.PauseRegistry

	cfg  Config
	deps Dependencies
}

// NewEngine allocates a compounder operating from address.
func NewEngine(owner, address common.Address, store nativecommon.Store, ledger *token.Ledger, clock nativecommon.Clock) *Engine {
	return &Engine{
		Ownable: nativecommon.NewOwnable(owner),
		store:   store,
		ledger:  ledger,
		clock:   clock,
		address: address,
	}
}

// Configure validates cfg and wires the collaborators.
func (e *Engine) Configure(caller common.Address, cfg Config, deps Dependencies) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if deps.Distributor == nil || deps.Router == nil || deps.AssetPrices == nil || deps.RewardPrices == nil {
		return nativecommon.ErrAddressZero
	}
	cfg.RewardToken = token.Normalize(cfg.RewardToken)
	cfg.BaseToken = token.Normalize(cfg.BaseToken)
	if cfg.RewardToken == "" || cfg.BaseToken == "" {
		return token.ErrInvalidToken
	}
	if cfg.CompoundFee == 0 {
		cfg.CompoundFee = DefaultCompoundFee
	}
	if cfg.SlippageLimit == 0 {
		cfg.SlippageLimit = DefaultSlippage
	}
	if err := validateFee(cfg.CompoundFee); err != nil {
		return err
	}
	if err := validateSlippage(cfg.SlippageLimit); err != nil {
		return err
	}
	cfg.AutocompoundThreshold = nativecommon.Copy(cfg.AutocompoundThreshold)
	if err := e.Initialize(); err != nil {
		return err
	}
	e.cfg = cfg
	e.deps = deps
	return nil
}

func validateFee(fee uint64) error {
	if fee == 0 || fee > MaxCompoundFee {
		return ErrInvalidCompoundFee
	}
	return nil
}

func validateSlippage(limit uint64) error {
	if limit < MinSlippageLimit || limit >= nativecommon.BasisPoints {
		return ErrInvalidSlippage
	}
	return nil
}

// Address returns the compounder's account.
func (e *Engine) Address() common.Address { return e.address }

// SetPauses wires the shared circuit breaker registry.
func (e *Engine) SetPauses(p *nativecommon.PauseRegistry) { e.pauses = p }

func (e *Engine) Pause(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.pauses.SetPaused(moduleName, true)
}

func (e *Engine) Unpause(caller common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	return e.pauses.SetPaused(moduleName, false)
}

// SetCompoundFee sets the fee charged on third party compounds.
func (e *Engine) SetCompoundFee(caller common.Address, fee uint64) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if err := validateFee(fee); err != nil {
		return err
	}
	e.cfg.CompoundFee = fee
	return nil
}

// SetSlippageLimit sets the minimum accepted output ratio of conversions.
func (e *Engine) SetSlippageLimit(caller common.Address, limit uint64) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if err := validateSlippage(limit); err != nil {
		return err
	}
	e.cfg.SlippageLimit = limit
	return nil
}

func (e *Engine) SetAutocompoundThreshold(caller common.Address, usd *big.Int) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.cfg.AutocompoundThreshold = nativecommon.Copy(usd)
	return nil
}

func (e *Engine) SetBountyManager(caller, manager common.Address) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	e.deps.BountyManager = manager
	return nil
}

// CompoundFee returns the fee in basis points.
func (e *Engine) CompoundFee() uint64 { return e.cfg.CompoundFee }

// SlippageLimit returns the limit in basis points.
func (e *Engine) SlippageLimit() uint64 { return e.cfg.SlippageLimit }

// PendingRewardsUsd values user's claimable non reward token rewards.
func (e *Engine) PendingRewardsUsd(user common.Address) (*big.Int, error) {
	pending, err := e.deps.Distributor.ClaimableRewards(user)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, r := range pending {
		if r.Token == e.cfg.RewardToken || r.Amount.Sign() == 0 {
			continue
		}
		price, err := e.deps.AssetPrices.Price(r.Token)
		if err != nil {
			return nil, err
		}
		total.Add(total, nativecommon.ToUsd(r.Amount, 18, price))
	}
	return total, nil
}

// IsEligibleForAutoCompound reports whether a third party may compound user
// now given pendingUsd of rewards.
func (e *Engine) IsEligibleForAutoCompound(user common.Address, pendingUsd *big.Int) (bool, error) {
	settings, err := e.deps.Distributor.Settings(user)
	if err != nil {
		return false, err
	}
	if !settings.AutocompoundEnabled || pendingUsd.Sign() == 0 {
		return false, nil
	}
	if pendingUsd.Cmp(e.cfg.AutocompoundThreshold) < 0 {
		return false, nil
	}
	return e.clock.Now() >= settings.LastClaimTime+MinDelay, nil
}

// ClaimCompound compounds user's rewards on behalf of the bounty manager and
// returns the fee, in reward tokens, paid to the manager. Without execute it
// only estimates the fee. While paused it does nothing and returns zero.
func (e *Engine) ClaimCompound(caller, user common.Address, execute bool, slippage uint64) (*big.Int, error) {
	if err := e.RequireConfigured(); err != nil {
		return nil, err
	}
	if e.pauses.IsPaused(moduleName) {
		return big.NewInt(0), nil
	}
	if caller != e.deps.BountyManager || nativecommon.IsZeroAddress(caller) {
		return nil, nativecommon.ErrInsufficientPermission
	}
	pendingUsd, err := e.PendingRewardsUsd(user)
	if err != nil {
		return nil, err
	}
	eligible, err := e.IsEligibleForAutoCompound(user, pendingUsd)
	if err != nil {
		return nil, err
	}
	if !execute {
		if !eligible {
			return big.NewInt(0), nil
		}
		return e.estimateFee(pendingUsd)
	}
	if !eligible {
		return nil, ErrNotEligible
	}
	if slippage == 0 {
		settings, err := e.deps.Distributor.Settings(user)
		if err != nil {
			return nil, err
		}
		slippage = settings.Slippage
	}
	fee, _, err := e.compound(caller, user, true, slippage)
	return fee, err
}

// SelfCompound compounds the caller's own rewards without a fee and returns
// the LP staked.
func (e *Engine) SelfCompound(caller common.Address, slippage uint64) (*big.Int, error) {
	if err := e.RequireConfigured(); err != nil {
		return nil, err
	}
	if e.pauses.IsPaused(moduleName) {
		return big.NewInt(0), nil
	}
	_, lp, err := e.compound(caller, caller, false, slippage)
	return lp, err
}

func (e *Engine) estimateFee(pendingUsd *big.Int) (*big.Int, error) {
	price, err := e.deps.RewardPrices.GetTokenPriceUsd()
	if err != nil {
		return nil, err
	}
	return nativecommon.FromUsd(nativecommon.ApplyBps(pendingUsd, e.cfg.CompoundFee), 18, price), nil
}

func (e *Engine) effectiveSlippage(slippage uint64) uint64 {
	if slippage < e.cfg.SlippageLimit || slippage >= nativecommon.BasisPoints {
		return e.cfg.SlippageLimit
	}
	return slippage
}

// minOut is the oracle value of amountIn of from in to, reduced by slippage.
func (e *Engine) minOut(from, to string, amountIn *big.Int, slippage uint64) (*big.Int, error) {
	fromPrice, err := e.price(from)
	if err != nil {
		return nil, err
	}
	toPrice, err := e.price(to)
	if err != nil {
		return nil, err
	}
	fair := nativecommon.FromUsd(nativecommon.ToUsd(amountIn, 18, fromPrice), 18, toPrice)
	return nativecommon.ApplyBps(fair, slippage), nil
}

func (e *Engine) price(asset string) (*big.Int, error) {
	if asset == e.cfg.RewardToken {
		return e.deps.RewardPrices.GetTokenPriceUsd()
	}
	return e.deps.AssetPrices.Price(asset)
}

func (e *Engine) swap(from, to string, amountIn *big.Int, slippage uint64, recipient common.Address) (*big.Int, error) {
	floor, err := e.minOut(from, to, amountIn, slippage)
	if err != nil {
		return nil, err
	}
	out, err := e.deps.Router.SwapExactIn(e.address, []string{from, to}, amountIn, floor, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %s->%s: %v", ErrSwapFailed, from, to, err)
	}
	return out, nil
}

// compound claims user's converter rewards, swaps them to the base token,
// optionally takes the fee, zaps the rest into LP and stakes it for user in
// their default tier.
func (e *Engine) compound(caller, user common.Address, takeFee bool, slippage uint64) (*big.Int, *big.Int, error) {
	slippage = e.effectiveSlippage(slippage)
	rewards, err := e.deps.Distributor.ClaimFromConverter(e.address, user)
	if err != nil {
		return nil, nil, err
	}
	baseIn := big.NewInt(0)
	for _, r := range rewards {
		if r.Amount.Sign() == 0 {
			continue
		}
		if r.Token == e.cfg.BaseToken {
			baseIn.Add(baseIn, r.Amount)
			continue
		}
		out, err := e.swap(r.Token, e.cfg.BaseToken, r.Amount, slippage, e.address)
		if err != nil {
			return nil, nil, err
		}
		baseIn.Add(baseIn, out)
	}
	if baseIn.Sign() == 0 {
		return nil, nil, ErrNotEligible
	}

	fee := big.NewInt(0)
	feeInReward := big.NewInt(0)
	if takeFee {
		fee = nativecommon.ApplyBps(baseIn, e.cfg.CompoundFee)
		if fee.Sign() > 0 {
			feeInReward, err = e.swap(e.cfg.BaseToken, e.cfg.RewardToken, fee, slippage, e.deps.BountyManager)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	remaining := new(big.Int).Sub(baseIn, fee)
	lp, err := e.zap(user, remaining, slippage)
	if err != nil {
		return nil, nil, err
	}
	e.store.AppendEvent(events.Compounded{User: user, Caller: caller, BaseIn: baseIn, Fee: feeInReward, LPStaked: lp}.Event())
	return feeInReward, lp, nil
}

// zap turns amount of the base token into LP and stakes it for user. The LP
// value must stay within slippage of the input value.
func (e *Engine) zap(user common.Address, amount *big.Int, slippage uint64) (*big.Int, error) {
	half := new(big.Int).Rsh(amount, 1)
	rest := new(big.Int).Sub(amount, half)
	rewardOut, err := e.swap(e.cfg.BaseToken, e.cfg.RewardToken, half, slippage, e.address)
	if err != nil {
		return nil, err
	}
	usedReward, usedBase, lp, err := e.deps.Router.AddLiquidity(e.address, e.cfg.RewardToken, e.cfg.BaseToken, rewardOut, rest, e.address)
	if err != nil {
		return nil, fmt.Errorf("%w: add liquidity: %v", ErrSwapFailed, err)
	}
	basePrice, err := e.price(e.cfg.BaseToken)
	if err != nil {
		return nil, err
	}
	lpPrice, err := e.deps.RewardPrices.GetLpTokenPriceUsd()
	if err != nil {
		return nil, err
	}
	inputUsd := nativecommon.ToUsd(amount, 18, basePrice)
	lpUsd := nativecommon.MulDiv(lp, lpPrice, nativecommon.Wad)
	if lpUsd.Cmp(nativecommon.ApplyBps(inputUsd, slippage)) < 0 {
		return nil, ErrSlippageTooHigh
	}
	if dust := new(big.Int).Sub(rewardOut, usedReward); dust.Sign() > 0 {
		if err := e.ledger.Transfer(e.cfg.RewardToken, e.address, user, dust); err != nil {
			return nil, err
		}
	}
	if dust := new(big.Int).Sub(rest, usedBase); dust.Sign() > 0 {
		if err := e.ledger.Transfer(e.cfg.BaseToken, e.address, user, dust); err != nil {
			return nil, err
		}
	}
	settings, err := e.deps.Distributor.Settings(user)
	if err != nil {
		return nil, err
	}
	if err := e.deps.Distributor.Stake(e.address, lp, user, settings.DefaultLockIndex); err != nil {
		return nil, err
	}
	return lp, nil
}
