package lending

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/token"
)

var (
	errNilState              = errors.New("lending engine: state not configured")
	errNilOracle             = errors.New("lending engine: price oracle not configured")
	errInvalidAmount         = errors.New("lending engine: amount must be positive")
	errInsufficientBalance   = errors.New("lending engine: insufficient balance")
	errInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	errHealthCheckFailed     = errors.New("lending engine: borrower health factor below 1")
	errBorrowCapacity        = errors.New("lending engine: borrow exceeds collateral capacity")
	errNoDebtToRepay         = errors.New("lending engine: no outstanding debt to repay")
	errNotLiquidatable       = errors.New("lending engine: borrower not eligible for liquidation")
	errUnknownAsset          = errors.New("lending engine: asset not listed")
	errAssetListed           = errors.New("lending engine: asset already listed")
	errInvalidRiskParams     = errors.New("lending engine: invalid risk parameters")
)

const (
	moduleName            = "lending"
	defaultCloseFactorBps = 5_000
)

// PriceOracle supplies 8 decimal USD prices for listed assets.
type PriceOracle interface {
	Price(asset string) (*big.Int, error)
}

// Incentives receives pool token balance updates after every position change.
type Incentives interface {
	AddPool(caller common.Address, poolToken string, allocPoint uint64) error
	HandleActionAfter(caller common.Address, poolToken string, user common.Address, balance *big.Int) error
}

// LiquidationResult reports how a liquidation was settled.
type LiquidationResult struct {
	Repaid               *big.Int
	Seized               *big.Int
	LiquidatorCollateral *big.Int
	ProtocolFee          *big.Int
}

// Engine orchestrates the primary state transitions for the lending module.
type Engine struct {
	nativecommon.Ownable

	store         nativecommon.Store
	ledger        *token.Ledger
	clock         nativecommon.Clock
	address       common.Address
	oracle        PriceOracle
	incentives    Incentives
	pauses        nativecommon.PauseView
	interestModel *InterestModel

	liquidationProtocolFeeBps uint64
	closeFactorBps            uint64
	assets                    map[string]AssetConfig
	order                     []string
}

// NewEngine constructs a lending engine holding pool liquidity at address.
func NewEngine(owner, address common.Address, store nativecommon.Store, ledger *token.Ledger, clock nativecommon.Clock) *Engine {
	return &Engine{
		Ownable:        nativecommon.NewOwnable(owner),
		store:          store,
		ledger:         ledger,
		clock:          clock,
		address:        address,
		closeFactorBps: defaultCloseFactorBps,
		assets:         make(map[string]AssetConfig),
	}
}

// Address returns the module account holding pool liquidity.
func (e *Engine) Address() common.Address { return e.address }

// SetOracle wires the asset price oracle.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetIncentives wires the emission controller notified of balance changes.
func (e *Engine) SetIncentives(incentives Incentives) { e.incentives = incentives }

// SetPauses wires the module circuit breaker.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetInterestModel configures the borrow rate curve. A nil model stops
// interest accrual.
func (e *Engine) SetInterestModel(model *InterestModel) error {
	if model == nil {
		e.interestModel = nil
		return nil
	}
	if err := model.Validate(); err != nil {
		return err
	}
	m := *model
	e.interestModel = &m
	return nil
}

// SetLiquidationProtocolFee sets the share of the liquidation bonus retained as
// protocol reserves.
func (e *Engine) SetLiquidationProtocolFee(caller common.Address, bps uint64) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	if bps > nativecommon.BasisPoints {
		return nativecommon.ErrInvalidRatio
	}
	e.liquidationProtocolFeeBps = bps
	return nil
}

// LiquidationProtocolFee returns the configured protocol share of the bonus.
func (e *Engine) LiquidationProtocolFee() uint64 { return e.liquidationProtocolFeeBps }

// ListAsset opens a market and registers its pool tokens with the
// incentives controller. Listing an asset whose market is already in state
// only restores its risk parameters.
func (e *Engine) ListAsset(caller common.Address, cfg AssetConfig) error {
	if err := e.OnlyOwner(caller); err != nil {
		return err
	}
	cfg.Asset = token.Normalize(cfg.Asset)
	if cfg.Asset == "" {
		return token.ErrInvalidToken
	}
	if _, ok := e.assets[cfg.Asset]; ok {
		return errAssetListed
	}
	if cfg.MaxLTVBps > cfg.LiquidationThresholdBps || cfg.LiquidationThresholdBps >= nativecommon.BasisPoints ||
		cfg.ReserveFactorBps > nativecommon.BasisPoints || cfg.LiquidationBonusBps > nativecommon.BasisPoints {
		return errInvalidRiskParams
	}
	listed, err := e.store.KVGet(marketKey(cfg.Asset), nil)
	if err != nil {
		return err
	}
	if listed {
		e.assets[cfg.Asset] = cfg
		e.order = append(e.order, cfg.Asset)
		return nil
	}
	market := &Market{
		Asset:             cfg.Asset,
		TotalSupplyShares: big.NewInt(0),
		TotalScaledDebt:   big.NewInt(0),
		SupplyIndex:       new(big.Int).Set(ray),
		BorrowIndex:       new(big.Int).Set(ray),
		Reserves:          big.NewInt(0),
		LastAccrual:       e.clock.Now(),
	}
	if err := e.putMarket(market); err != nil {
		return err
	}
	e.assets[cfg.Asset] = cfg
	e.order = append(e.order, cfg.Asset)
	if e.incentives != nil {
		if err := e.incentives.AddPool(e.address, DepositToken(cfg.Asset), cfg.DepositAllocPoint); err != nil {
			return err
		}
		if err := e.incentives.AddPool(e.address, DebtToken(cfg.Asset), cfg.BorrowAllocPoint); err != nil {
			return err
		}
	}
	return nil
}

// Assets returns the listed assets in listing order.
func (e *Engine) Assets() []string {
	return append([]string(nil), e.order...)
}

// AssetConfig returns the risk parameters of asset.
func (e *Engine) AssetConfig(asset string) (AssetConfig, error) {
	cfg, ok := e.assets[token.Normalize(asset)]
	if !ok {
		return AssetConfig{}, errUnknownAsset
	}
	return cfg, nil
}

// Deposit supplies amount of asset from caller on behalf of onBehalf.
func (e *Engine) Deposit(caller common.Address, asset string, amount *big.Int, onBehalf common.Address) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return errInvalidAmount
	}
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return err
	}
	user, err := e.account(cfg.Asset, onBehalf)
	if err != nil {
		return err
	}
	shares := sharesFromLiquidity(amount, market.SupplyIndex)
	if shares.Sign() == 0 {
		return errInvalidAmount
	}
	user.SupplyShares = new(big.Int).Add(user.SupplyShares, shares)
	market.TotalSupplyShares = new(big.Int).Add(market.TotalSupplyShares, shares)
	if err := e.putAccount(cfg.Asset, onBehalf, user); err != nil {
		return err
	}
	if err := e.putMarket(market); err != nil {
		return err
	}
	if err := e.ledger.Transfer(cfg.Asset, caller, e.address, amount); err != nil {
		return err
	}
	return e.notify(DepositToken(cfg.Asset), onBehalf, liquidityFromShares(user.SupplyShares, market.SupplyIndex))
}

// Withdraw redeems up to amount of the caller's supplied asset to recipient.
// A nil amount or one above the balance withdraws everything.
func (e *Engine) Withdraw(caller common.Address, asset string, amount *big.Int, recipient common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount != nil && amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return nil, err
	}
	user, err := e.account(cfg.Asset, caller)
	if err != nil {
		return nil, err
	}
	balance := liquidityFromShares(user.SupplyShares, market.SupplyIndex)
	if balance.Sign() == 0 {
		return nil, errInsufficientBalance
	}
	redeem := new(big.Int).Set(balance)
	shares := new(big.Int).Set(user.SupplyShares)
	if amount != nil && amount.Cmp(balance) < 0 {
		redeem = new(big.Int).Set(amount)
		shares = sharesFromLiquidity(amount, market.SupplyIndex)
		if shares.Cmp(user.SupplyShares) > 0 {
			shares = new(big.Int).Set(user.SupplyShares)
		}
	}
	available, err := e.availableLiquidity(market)
	if err != nil {
		return nil, err
	}
	if available.Cmp(redeem) < 0 {
		return nil, errInsufficientLiquidity
	}
	view, err := e.AccountView(caller)
	if err != nil {
		return nil, err
	}
	if view.DebtUsd.Sign() > 0 {
		price, err := e.price(cfg.Asset)
		if err != nil {
			return nil, err
		}
		removed := nativecommon.ApplyBps(nativecommon.ToUsd(redeem, cfg.Decimals, price), cfg.LiquidationThresholdBps)
		if nativecommon.SaturatingSub(view.LiquidationUsd, removed).Cmp(view.DebtUsd) < 0 {
			return nil, errHealthCheckFailed
		}
	}
	user.SupplyShares = new(big.Int).Sub(user.SupplyShares, shares)
	market.TotalSupplyShares = new(big.Int).Sub(market.TotalSupplyShares, shares)
	if err := e.putAccount(cfg.Asset, caller, user); err != nil {
		return nil, err
	}
	if err := e.putMarket(market); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(cfg.Asset, e.address, recipient, redeem); err != nil {
		return nil, err
	}
	if err := e.notify(DepositToken(cfg.Asset), caller, liquidityFromShares(user.SupplyShares, market.SupplyIndex)); err != nil {
		return nil, err
	}
	return redeem, nil
}

// Borrow draws amount of asset against the caller's collateral.
func (e *Engine) Borrow(caller common.Address, asset string, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return errInvalidAmount
	}
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return err
	}
	available, err := e.availableLiquidity(market)
	if err != nil {
		return err
	}
	if available.Cmp(amount) < 0 {
		return errInsufficientLiquidity
	}
	view, err := e.AccountView(caller)
	if err != nil {
		return err
	}
	price, err := e.price(cfg.Asset)
	if err != nil {
		return err
	}
	nextDebt := new(big.Int).Add(view.DebtUsd, nativecommon.ToUsd(amount, cfg.Decimals, price))
	if nextDebt.Cmp(view.BorrowCapacityUsd) > 0 {
		return errBorrowCapacity
	}
	user, err := e.account(cfg.Asset, caller)
	if err != nil {
		return err
	}
	scaled := scaledDebtFromAmount(amount, market.BorrowIndex)
	user.ScaledDebt = new(big.Int).Add(user.ScaledDebt, scaled)
	market.TotalScaledDebt = new(big.Int).Add(market.TotalScaledDebt, scaled)
	if err := e.putAccount(cfg.Asset, caller, user); err != nil {
		return err
	}
	if err := e.putMarket(market); err != nil {
		return err
	}
	if err := e.ledger.Transfer(cfg.Asset, e.address, caller, amount); err != nil {
		return err
	}
	return e.notify(DebtToken(cfg.Asset), caller, debtFromScaled(user.ScaledDebt, market.BorrowIndex))
}

// Repay returns up to amount of asset from caller against onBehalf's debt and
// reports the amount actually repaid.
func (e *Engine) Repay(caller common.Address, asset string, amount *big.Int, onBehalf common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(amount) {
		return nil, errInvalidAmount
	}
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return nil, err
	}
	user, err := e.account(cfg.Asset, onBehalf)
	if err != nil {
		return nil, err
	}
	debt := debtFromScaled(user.ScaledDebt, market.BorrowIndex)
	if debt.Sign() == 0 {
		return nil, errNoDebtToRepay
	}
	repay := nativecommon.Min(amount, debt)
	e.reduceDebt(market, user, repay, debt)
	if err := e.putAccount(cfg.Asset, onBehalf, user); err != nil {
		return nil, err
	}
	if err := e.putMarket(market); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(cfg.Asset, caller, e.address, repay); err != nil {
		return nil, err
	}
	if err := e.notify(DebtToken(cfg.Asset), onBehalf, debtFromScaled(user.ScaledDebt, market.BorrowIndex)); err != nil {
		return nil, err
	}
	return repay, nil
}

func (e *Engine) reduceDebt(market *Market, user *UserAccount, repay, debt *big.Int) {
	scaled := scaledDebtFromAmount(repay, market.BorrowIndex)
	if repay.Cmp(debt) >= 0 || scaled.Cmp(user.ScaledDebt) > 0 {
		scaled = new(big.Int).Set(user.ScaledDebt)
	}
	user.ScaledDebt = new(big.Int).Sub(user.ScaledDebt, scaled)
	market.TotalScaledDebt = nativecommon.SaturatingSub(market.TotalScaledDebt, scaled)
}

// Liquidate repays up to debtToCover of an unhealthy borrower's debtAsset in
// exchange for discounted collateralAsset. The protocol keeps
// liquidationProtocolFeeBps of the bonus as reserves of the collateral market.
func (e *Engine) Liquidate(caller common.Address, collateralAsset, debtAsset string, borrower common.Address, debtToCover *big.Int) (*LiquidationResult, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(debtToCover) {
		return nil, errInvalidAmount
	}
	collMarket, collCfg, err := e.loadAccrued(collateralAsset)
	if err != nil {
		return nil, err
	}
	debtMarket, debtCfg, err := e.loadAccrued(debtAsset)
	if err != nil {
		return nil, err
	}
	if debtCfg.Asset == collCfg.Asset {
		debtMarket = collMarket
	}
	view, err := e.AccountView(borrower)
	if err != nil {
		return nil, err
	}
	if view.DebtUsd.Sign() == 0 {
		return nil, errNoDebtToRepay
	}
	if view.LiquidationUsd.Cmp(view.DebtUsd) >= 0 {
		return nil, errNotLiquidatable
	}

	debtAccount, err := e.account(debtCfg.Asset, borrower)
	if err != nil {
		return nil, err
	}
	debt := debtFromScaled(debtAccount.ScaledDebt, debtMarket.BorrowIndex)
	if debt.Sign() == 0 {
		return nil, errNoDebtToRepay
	}
	collAccount := debtAccount
	if debtCfg.Asset != collCfg.Asset {
		if collAccount, err = e.account(collCfg.Asset, borrower); err != nil {
			return nil, err
		}
	}
	collateral := liquidityFromShares(collAccount.SupplyShares, collMarket.SupplyIndex)
	if collateral.Sign() == 0 {
		return nil, errInsufficientBalance
	}

	debtPrice, err := e.price(debtCfg.Asset)
	if err != nil {
		return nil, err
	}
	collPrice, err := e.price(collCfg.Asset)
	if err != nil {
		return nil, err
	}

	repay := nativecommon.Min(debtToCover, nativecommon.ApplyBps(debt, e.closeFactorBps))
	bonusFactor := new(big.Int).SetUint64(nativecommon.BasisPoints + collCfg.LiquidationBonusBps)
	baseCollateral := nativecommon.FromUsd(nativecommon.ToUsd(repay, debtCfg.Decimals, debtPrice), collCfg.Decimals, collPrice)
	seized := nativecommon.MulDiv(baseCollateral, bonusFactor, basisPoints)
	if seized.Cmp(collateral) > 0 {
		seized = new(big.Int).Set(collateral)
		baseCollateral = nativecommon.MulDiv(seized, basisPoints, bonusFactor)
		repay = nativecommon.FromUsd(nativecommon.ToUsd(baseCollateral, collCfg.Decimals, collPrice), debtCfg.Decimals, debtPrice)
	}
	if repay.Sign() == 0 || seized.Sign() == 0 {
		return nil, errInvalidAmount
	}
	bonus := nativecommon.SaturatingSub(seized, baseCollateral)
	protocolFee := nativecommon.ApplyBps(bonus, e.liquidationProtocolFeeBps)
	toLiquidator := new(big.Int).Sub(seized, protocolFee)

	cash, err := e.ledger.Balance(collCfg.Asset, e.address)
	if err != nil {
		return nil, err
	}
	if cash.Cmp(toLiquidator) < 0 {
		return nil, errInsufficientLiquidity
	}

	e.reduceDebt(debtMarket, debtAccount, repay, debt)
	seizedShares := sharesFromLiquidity(seized, collMarket.SupplyIndex)
	if seizedShares.Cmp(collAccount.SupplyShares) > 0 || seized.Cmp(collateral) == 0 {
		seizedShares = new(big.Int).Set(collAccount.SupplyShares)
	}
	collAccount.SupplyShares = new(big.Int).Sub(collAccount.SupplyShares, seizedShares)
	collMarket.TotalSupplyShares = nativecommon.SaturatingSub(collMarket.TotalSupplyShares, seizedShares)
	collMarket.Reserves = new(big.Int).Add(collMarket.Reserves, protocolFee)

	if err := e.putAccount(debtCfg.Asset, borrower, debtAccount); err != nil {
		return nil, err
	}
	if err := e.putAccount(collCfg.Asset, borrower, collAccount); err != nil {
		return nil, err
	}
	if err := e.putMarket(debtMarket); err != nil {
		return nil, err
	}
	if err := e.putMarket(collMarket); err != nil {
		return nil, err
	}

	if err := e.ledger.Transfer(debtCfg.Asset, caller, e.address, repay); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(collCfg.Asset, e.address, caller, toLiquidator); err != nil {
		return nil, err
	}
	e.store.AppendEvent(events.Liquidated{
		Liquidator:      caller,
		Borrower:        borrower,
		DebtAsset:       debtCfg.Asset,
		CollateralAsset: collCfg.Asset,
		Repaid:          repay,
		Seized:          seized,
		ProtocolBonus:   protocolFee,
	}.Event())
	if err := e.notify(DebtToken(debtCfg.Asset), borrower, debtFromScaled(debtAccount.ScaledDebt, debtMarket.BorrowIndex)); err != nil {
		return nil, err
	}
	if err := e.notify(DepositToken(collCfg.Asset), borrower, liquidityFromShares(collAccount.SupplyShares, collMarket.SupplyIndex)); err != nil {
		return nil, err
	}
	return &LiquidationResult{
		Repaid:               repay,
		Seized:               seized,
		LiquidatorCollateral: toLiquidator,
		ProtocolFee:          protocolFee,
	}, nil
}

// CollectReserves transfers the accrued reserves of asset to recipient.
func (e *Engine) CollectReserves(caller common.Address, asset string, recipient common.Address) (*big.Int, error) {
	if err := e.OnlyOwner(caller); err != nil {
		return nil, err
	}
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return nil, err
	}
	cash, err := e.ledger.Balance(cfg.Asset, e.address)
	if err != nil {
		return nil, err
	}
	amount := nativecommon.Min(market.Reserves, cash)
	market.Reserves = new(big.Int).Sub(market.Reserves, amount)
	if err := e.putMarket(market); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(cfg.Asset, e.address, recipient, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// MarketView returns the live accounting of asset including pending interest.
func (e *Engine) MarketView(asset string) (*MarketView, error) {
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return nil, err
	}
	return &MarketView{
		Asset:         cfg.Asset,
		TotalSupplied: liquidityFromShares(market.TotalSupplyShares, market.SupplyIndex),
		TotalBorrowed: debtFromScaled(market.TotalScaledDebt, market.BorrowIndex),
		Reserves:      cloneInt(market.Reserves),
		SupplyIndex:   cloneInt(market.SupplyIndex),
		BorrowIndex:   cloneInt(market.BorrowIndex),
	}, nil
}

// SupplyBalance returns user's supplied asset including accrued interest.
func (e *Engine) SupplyBalance(asset string, user common.Address) (*big.Int, error) {
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return nil, err
	}
	acct, err := e.account(cfg.Asset, user)
	if err != nil {
		return nil, err
	}
	return liquidityFromShares(acct.SupplyShares, market.SupplyIndex), nil
}

// DebtBalance returns user's outstanding debt in asset.
func (e *Engine) DebtBalance(asset string, user common.Address) (*big.Int, error) {
	market, cfg, err := e.loadAccrued(asset)
	if err != nil {
		return nil, err
	}
	acct, err := e.account(cfg.Asset, user)
	if err != nil {
		return nil, err
	}
	return debtFromScaled(acct.ScaledDebt, market.BorrowIndex), nil
}

// PoolBalance resolves the balance of a pool token (rASSET or vdASSET).
func (e *Engine) PoolBalance(poolToken string, user common.Address) (*big.Int, error) {
	asset, debt, ok := ParsePoolToken(poolToken)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownAsset, poolToken)
	}
	if debt {
		return e.DebtBalance(asset, user)
	}
	return e.SupplyBalance(asset, user)
}

// BorrowedValueUsd returns the USD value of user's debt across all assets.
func (e *Engine) BorrowedValueUsd(user common.Address) (*big.Int, error) {
	view, err := e.AccountView(user)
	if err != nil {
		return nil, err
	}
	return view.DebtUsd, nil
}

// CollateralValueUsd returns the USD value of user's deposits.
func (e *Engine) CollateralValueUsd(user common.Address) (*big.Int, error) {
	view, err := e.AccountView(user)
	if err != nil {
		return nil, err
	}
	return view.CollateralUsd, nil
}

// AccountView aggregates user's position across listed assets.
func (e *Engine) AccountView(user common.Address) (*AccountView, error) {
	view := &AccountView{
		CollateralUsd:     big.NewInt(0),
		DebtUsd:           big.NewInt(0),
		BorrowCapacityUsd: big.NewInt(0),
		LiquidationUsd:    big.NewInt(0),
	}
	for _, asset := range e.order {
		cfg := e.assets[asset]
		market, _, err := e.loadAccrued(asset)
		if err != nil {
			return nil, err
		}
		acct, err := e.account(asset, user)
		if err != nil {
			return nil, err
		}
		supplied := liquidityFromShares(acct.SupplyShares, market.SupplyIndex)
		debt := debtFromScaled(acct.ScaledDebt, market.BorrowIndex)
		if supplied.Sign() == 0 && debt.Sign() == 0 {
			continue
		}
		price, err := e.price(asset)
		if err != nil {
			return nil, err
		}
		collUsd := nativecommon.ToUsd(supplied, cfg.Decimals, price)
		view.CollateralUsd.Add(view.CollateralUsd, collUsd)
		view.BorrowCapacityUsd.Add(view.BorrowCapacityUsd, nativecommon.ApplyBps(collUsd, cfg.MaxLTVBps))
		view.LiquidationUsd.Add(view.LiquidationUsd, nativecommon.ApplyBps(collUsd, cfg.LiquidationThresholdBps))
		view.DebtUsd.Add(view.DebtUsd, nativecommon.ToUsd(debt, cfg.Decimals, price))
	}
	if view.DebtUsd.Sign() == 0 {
		view.HealthFactor = new(big.Int).Set(nativecommon.MaxUint256)
	} else {
		view.HealthFactor = nativecommon.MulDiv(view.LiquidationUsd, ray, view.DebtUsd)
	}
	return view, nil
}

func (e *Engine) price(asset string) (*big.Int, error) {
	if e.oracle == nil {
		return nil, errNilOracle
	}
	return e.oracle.Price(asset)
}

func (e *Engine) notify(poolToken string, user common.Address, balance *big.Int) error {
	if e.incentives == nil {
		return nil
	}
	return e.incentives.HandleActionAfter(e.address, poolToken, user, balance)
}

func (e *Engine) availableLiquidity(market *Market) (*big.Int, error) {
	cash, err := e.ledger.Balance(market.Asset, e.address)
	if err != nil {
		return nil, err
	}
	return nativecommon.SaturatingSub(cash, market.Reserves), nil
}

func (e *Engine) loadAccrued(asset string) (*Market, AssetConfig, error) {
	if e == nil || e.store == nil || e.ledger == nil {
		return nil, AssetConfig{}, errNilState
	}
	cfg, ok := e.assets[token.Normalize(asset)]
	if !ok {
		return nil, AssetConfig{}, fmt.Errorf("%w: %s", errUnknownAsset, strings.TrimSpace(asset))
	}
	market := new(Market)
	found, err := e.store.KVGet(marketKey(cfg.Asset), market)
	if err != nil {
		return nil, cfg, err
	}
	if !found {
		return nil, cfg, fmt.Errorf("%w: %s", errUnknownAsset, cfg.Asset)
	}
	ensureMarket(market)
	e.accrueInterest(market, cfg)
	return market, cfg, nil
}

func ensureMarket(market *Market) {
	if market.TotalSupplyShares == nil {
		market.TotalSupplyShares = big.NewInt(0)
	}
	if market.TotalScaledDebt == nil {
		market.TotalScaledDebt = big.NewInt(0)
	}
	if market.SupplyIndex == nil || market.SupplyIndex.Sign() == 0 {
		market.SupplyIndex = new(big.Int).Set(ray)
	}
	if market.BorrowIndex == nil || market.BorrowIndex.Sign() == 0 {
		market.BorrowIndex = new(big.Int).Set(ray)
	}
	if market.Reserves == nil {
		market.Reserves = big.NewInt(0)
	}
}

// accrueInterest rolls the market indexes forward to the current time. The
// reserve factor share of the interest is set aside as reserves and the rest
// is credited to suppliers through the supply index.
func (e *Engine) accrueInterest(market *Market, cfg AssetConfig) {
	now := e.clock.Now()
	if now <= market.LastAccrual {
		return
	}
	delta := now - market.LastAccrual
	market.LastAccrual = now
	if e.interestModel == nil || market.TotalScaledDebt.Sign() == 0 {
		return
	}
	totalBorrowed := debtFromScaled(market.TotalScaledDebt, market.BorrowIndex)
	totalSupplied := liquidityFromShares(market.TotalSupplyShares, market.SupplyIndex)
	borrowRate := e.interestModel.BorrowRate(totalBorrowed, totalSupplied)
	if borrowRate.Sign() == 0 {
		return
	}
	market.BorrowIndex = nativecommon.RayMul(market.BorrowIndex, rateFactor(borrowRate, delta))
	interest := nativecommon.SaturatingSub(debtFromScaled(market.TotalScaledDebt, market.BorrowIndex), totalBorrowed)
	if interest.Sign() == 0 {
		return
	}
	reserveShare := nativecommon.ApplyBps(interest, cfg.ReserveFactorBps)
	market.Reserves = new(big.Int).Add(market.Reserves, reserveShare)
	if totalSupplied.Sign() > 0 {
		supplierShare := new(big.Int).Sub(interest, reserveShare)
		grown := new(big.Int).Add(totalSupplied, supplierShare)
		market.SupplyIndex = nativecommon.MulDiv(market.SupplyIndex, grown, totalSupplied)
	}
}
