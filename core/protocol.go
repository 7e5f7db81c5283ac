package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"primenumbers/config"
	"primenumbers/core/events"
	"primenumbers/core/state"
	"primenumbers/core/types"
	"primenumbers/crypto"
	"primenumbers/native/amm"
	"primenumbers/native/bounty"
	"primenumbers/native/chef"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/compounder"
	"primenumbers/native/eligibility"
	"primenumbers/native/lending"
	"primenumbers/native/leverager"
	"primenumbers/native/mfd"
	"primenumbers/native/priceprovider"
	"primenumbers/native/token"
	"primenumbers/observability"
	"primenumbers/observability/metrics"
	prntotel "primenumbers/observability/otel"
	"primenumbers/storage"
)

const (
	genesisKey = "protocol/genesis"
	seqKey     = "protocol/seq"
	clockKey   = "protocol/clock"
	pricePfx   = "protocol/price"

	opGenesis = "genesis"
)

// Module names double as address seeds and pause registry keys.
const (
	ModuleLending    = "lending"
	ModuleMFD        = "mfd"
	ModuleChef       = "chef"
	ModuleBounty     = "bounty"
	ModuleCompounder = "compounder"
	ModuleLeverager  = "leverager"
)

var ErrUnknownFeed = errors.New("protocol: no price feed for asset")

// EventSink receives the events of every committed transaction in commit
// order.
type EventSink interface {
	Record(ctx context.Context, seq uint64, op string, blockTime uint64, events []*types.Event) error
}

// Option tunes New.
type Option func(*Protocol)

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEventSink forwards committed events to sink.
func WithEventSink(sink EventSink) Option {
	return func(p *Protocol) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithTracer replaces the global protocol tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Protocol) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

type seqRecord struct {
	Seq uint64
}

type clockRecord struct {
	Now uint64
}

type priceRecord struct {
	Answer *big.Int
}

type genesisRecord struct {
	BootedAt uint64
}

// Addresses are the module accounts of a protocol instance.
type Addresses struct {
	Owner      common.Address
	Treasury   common.Address
	Lending    common.Address
	MFD        common.Address
	Chef       common.Address
	Bounty     common.Address
	Compounder common.Address
	Leverager  common.Address
}

// Protocol wires the incentive engines over one state manager and serialises
// every mutation into an atomic transaction.
type Protocol struct {
	mu sync.Mutex

	state   *state.Manager
	clock   *nativecommon.ManualClock
	pauses  *nativecommon.PauseRegistry
	genesis config.Genesis
	addrs   Addresses
	logger  *slog.Logger
	tracer  trace.Tracer
	sinks   []EventSink
	seq     uint64

	ledger      *token.Ledger
	router      *amm.Engine
	feeds       map[string]*priceprovider.ManualFeed
	assets      *priceprovider.AssetOracle
	prices      *priceprovider.Provider
	lending     *lending.Engine
	mfd         *mfd.Engine
	eligibility *eligibility.Provider
	chef        *chef.Engine
	bounty      *bounty.Engine
	compounder  *compounder.Engine
	leverager   *leverager.Engine
}

// New boots a protocol over db. The genesis allocations, pools and reserves
// are written on first boot only; later boots restore the persisted state and
// re-apply the configuration.
func New(db storage.Database, owner common.Address, gen config.Genesis, opts ...Option) (*Protocol, error) {
	if db == nil {
		return nil, fmt.Errorf("protocol: nil database")
	}
	if nativecommon.IsZeroAddress(owner) {
		return nil, nativecommon.ErrAddressZero
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	treasury, err := config.ResolveAddress(gen.Treasury, owner)
	if err != nil {
		return nil, fmt.Errorf("protocol: treasury: %w", err)
	}
	p := &Protocol{
		state:   state.NewManager(db),
		genesis: gen,
		logger:  slog.Default(),
		tracer:  prntotel.Tracer(),
		feeds:   make(map[string]*priceprovider.ManualFeed),
		addrs: Addresses{
			Owner:      owner,
			Treasury:   treasury,
			Lending:    crypto.ModuleAddress(ModuleLending),
			MFD:        crypto.ModuleAddress(ModuleMFD),
			Chef:       crypto.ModuleAddress(ModuleChef),
			Bounty:     crypto.ModuleAddress(ModuleBounty),
			Compounder: crypto.ModuleAddress(ModuleCompounder),
			Leverager:  crypto.ModuleAddress(ModuleLeverager),
		},
	}
	p.pauses = nativecommon.NewStoredPauseRegistry(p.state)
	for _, opt := range opts {
		opt(p)
	}
	if err := p.boot(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Protocol) boot(ctx context.Context) error {
	booted, err := p.state.KVGet([]byte(genesisKey), nil)
	if err != nil {
		return err
	}
	start := p.genesis.StartTime
	if start == 0 {
		start = uint64(time.Now().Unix())
	}
	if booted {
		var clock clockRecord
		if _, err := p.state.KVGet([]byte(clockKey), &clock); err != nil {
			return err
		}
		var seq seqRecord
		if _, err := p.state.KVGet([]byte(seqKey), &seq); err != nil {
			return err
		}
		start, p.seq = clock.Now, seq.Seq
	}
	p.clock = nativecommon.NewManualClock(start)

	if err := p.state.Begin(); err != nil {
		return err
	}
	if err := p.wire(); err != nil {
		p.state.Rollback()
		return fmt.Errorf("protocol: wire: %w", err)
	}
	if booted {
		if _, err := p.state.Commit(); err != nil {
			return err
		}
		p.logger.Info("protocol restored", slog.Uint64("seq", p.seq), slog.Uint64("time", start))
		return nil
	}
	if err := p.seedGenesis(); err != nil {
		p.state.Rollback()
		return fmt.Errorf("protocol: genesis: %w", err)
	}
	if err := p.state.KVPut([]byte(genesisKey), &genesisRecord{BootedAt: start}); err != nil {
		p.state.Rollback()
		return err
	}
	p.logger.Info("protocol genesis",
		slog.String("operator", crypto.FormatAddress(p.addrs.Owner)),
		slog.Int("assets", len(p.genesis.Assets)))
	return p.commit(ctx, opGenesis)
}

// wire constructs and configures every engine. It runs on every boot and
// must only write state idempotently.
func (p *Protocol) wire() error {
	gen := p.genesis
	owner := p.addrs.Owner

	p.ledger = token.NewLedger(p.state)
	p.router = amm.NewEngine(p.state, p.ledger, p.clock)

	p.assets = priceprovider.NewAssetOracle()
	for _, asset := range gen.Assets {
		answer, err := p.storedPrice(asset.Symbol)
		if err != nil {
			return err
		}
		if answer == nil {
			if answer, err = config.Usd(asset.PriceUsd); err != nil {
				return err
			}
		}
		feed := priceprovider.NewManualFeed(config.UsdDecimals, p.clock)
		feed.SetAnswer(answer)
		p.feeds[asset.Symbol] = feed
		p.assets.SetSource(asset.Symbol, priceprovider.NewChainlinkAdapter(feed, gen.Oracle.HeartbeatSeconds, p.clock))
	}
	baseFeed := p.feeds[gen.BaseToken]
	p.prices = priceprovider.NewProvider(owner, p.state, p.router,
		priceprovider.NewChainlinkAdapter(baseFeed, gen.Oracle.HeartbeatSeconds, p.clock), p.clock,
		priceprovider.Config{
			RewardToken: gen.RewardToken,
			BaseToken:   gen.BaseToken,
			TwapPeriod:  gen.Oracle.TwapPeriod,
			UseTwap:     gen.Oracle.UseTwap,
		})

	p.lending = lending.NewEngine(owner, p.addrs.Lending, p.state, p.ledger, p.clock)
	p.mfd = mfd.NewEngine(owner, p.addrs.MFD, p.state, p.ledger, p.clock)
	p.eligibility = eligibility.NewProvider(owner, p.state, p.clock)
	p.chef = chef.NewEngine(owner, p.addrs.Chef, p.state, p.ledger, p.clock)
	p.bounty = bounty.NewEngine(owner, p.addrs.Bounty, p.state, p.ledger)
	p.compounder = compounder.NewEngine(owner, p.addrs.Compounder, p.state, p.ledger, p.clock)
	p.leverager = leverager.NewEngine(p.addrs.Leverager, p.lending, p.chef)

	p.lending.SetPauses(p.pauses)
	p.mfd.SetPauses(p.pauses)
	p.chef.SetPauses(p.pauses)
	p.bounty.SetPauses(p.pauses)
	p.compounder.SetPauses(p.pauses)
	p.leverager.SetPauses(p.pauses)

	if err := p.configureMFD(); err != nil {
		return fmt.Errorf("mfd: %w", err)
	}
	if err := p.eligibility.Configure(owner, p.lending, p.mfd, p.prices, p.addrs.Chef); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	if err := p.eligibility.SetRequiredDepositRatio(owner, gen.Eligibility.RequiredDepositRatio); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	if err := p.eligibility.SetPriceToleranceRatio(owner, gen.Eligibility.PriceToleranceRatio); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	if err := p.configureChef(); err != nil {
		return fmt.Errorf("chef: %w", err)
	}
	if err := p.configureBounty(); err != nil {
		return fmt.Errorf("bounty: %w", err)
	}
	if err := p.configureCompounder(); err != nil {
		return fmt.Errorf("compounder: %w", err)
	}
	if err := p.configureLending(); err != nil {
		return fmt.Errorf("lending: %w", err)
	}
	return nil
}

func (p *Protocol) configureMFD() error {
	gen := p.genesis
	owner := p.addrs.Owner
	err := p.mfd.Configure(owner, mfd.Config{
		StakingToken:    gen.LPToken,
		RewardToken:     gen.RewardToken,
		LockDurations:   gen.MFD.LockDurations,
		LockMultipliers: gen.MFD.LockMultipliers,
		RewardsDuration: gen.MFD.RewardsDuration,
		RewardsLookback: gen.MFD.RewardsLookback,
		VestDuration:    gen.MFD.VestDuration,
		BurnRatioBps:    gen.MFD.BurnRatioBps,
		Treasury:        p.addrs.Treasury,
	})
	if err != nil {
		return err
	}
	if err := p.mfd.SetLockHooks(owner, p.chef); err != nil {
		return err
	}
	if err := p.mfd.SetMinters(owner, []common.Address{p.addrs.Chef, p.addrs.Bounty}); err != nil {
		return err
	}
	if err := p.mfd.SetBountyManager(owner, p.addrs.Bounty); err != nil {
		return err
	}
	if err := p.mfd.SetCompounder(owner, p.addrs.Compounder); err != nil {
		return err
	}
	for _, asset := range gen.Assets {
		if err := p.mfd.AddReward(owner, asset.Symbol); err != nil {
			return err
		}
	}
	return nil
}

func (p *Protocol) configureChef() error {
	gen := p.genesis
	owner := p.addrs.Owner
	rps, err := config.Tokens(gen.Chef.RewardsPerSecond)
	if err != nil {
		return err
	}
	deps := chef.Dependencies{
		Eligibility:   p.eligibility,
		Vester:        p.mfd,
		Lending:       p.lending,
		LendingAddr:   p.addrs.Lending,
		MFDAddr:       p.addrs.MFD,
		BountyManager: p.addrs.Bounty,
		RewardToken:   gen.RewardToken,
	}
	if err := p.chef.Configure(owner, deps, rps); err != nil {
		return err
	}
	if gen.Chef.EndingTimeUpdateCadence > 0 {
		if err := p.chef.SetEndingTimeUpdateCadence(owner, gen.Chef.EndingTimeUpdateCadence); err != nil {
			return err
		}
	}
	return p.chef.SetLeverager(owner, p.addrs.Leverager)
}

func (p *Protocol) configureBounty() error {
	gen := p.genesis
	owner := p.addrs.Owner
	minStake, err := config.Usd(gen.Bounty.MinStakeAmountUsd)
	if err != nil {
		return err
	}
	target, err := config.Usd(gen.Bounty.BaseBountyUsdTarget)
	if err != nil {
		return err
	}
	maxBase, err := config.Tokens(gen.Bounty.MaxBaseBounty)
	if err != nil {
		return err
	}
	err = p.bounty.Configure(owner, bounty.Config{
		RewardToken:         gen.RewardToken,
		MinStakeAmount:      minStake,
		BaseBountyUsdTarget: target,
		MaxBaseBounty:       maxBase,
		HunterShare:         gen.Bounty.HunterShare,
	}, bounty.Dependencies{
		Locker:      p.mfd,
		Emissions:   p.chef,
		Compounder:  p.compounder,
		Prices:      p.prices,
		Eligibility: p.eligibility,
	})
	if err != nil {
		return err
	}
	if gen.Bounty.MaxBoostBps > 0 {
		if err := p.bounty.SetBoostCurve(owner, bounty.DrawdownBoost{MaxBoostBps: gen.Bounty.MaxBoostBps}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Protocol) configureCompounder() error {
	gen := p.genesis
	threshold, err := config.Usd(gen.Compounder.AutocompoundThresholdUsd)
	if err != nil {
		return err
	}
	return p.compounder.Configure(p.addrs.Owner, compounder.Config{
		RewardToken:           gen.RewardToken,
		BaseToken:             gen.BaseToken,
		AutocompoundThreshold: threshold,
		CompoundFee:           gen.Compounder.CompoundFee,
		SlippageLimit:         gen.Compounder.SlippageLimit,
	}, compounder.Dependencies{
		Distributor:   p.mfd,
		Router:        p.router,
		AssetPrices:   p.assets,
		RewardPrices:  p.prices,
		BountyManager: p.addrs.Bounty,
	})
}

func (p *Protocol) configureLending() error {
	gen := p.genesis
	owner := p.addrs.Owner
	p.lending.SetOracle(p.assets)
	p.lending.SetIncentives(p.chef)
	if gen.Lending.HasInterestModel() {
		err := p.lending.SetInterestModel(&lending.InterestModel{
			BaseRateBps:           gen.Lending.BaseRateBps,
			Slope1Bps:             gen.Lending.Slope1Bps,
			Slope2Bps:             gen.Lending.Slope2Bps,
			OptimalUtilisationBps: gen.Lending.OptimalUtilisationBps,
		})
		if err != nil {
			return err
		}
	}
	if err := p.lending.SetLiquidationProtocolFee(owner, gen.Lending.LiquidationProtocolFeeBps); err != nil {
		return err
	}
	for _, asset := range gen.Assets {
		err := p.lending.ListAsset(owner, lending.AssetConfig{
			Asset:                   asset.Symbol,
			Decimals:                config.TokenDecimals,
			MaxLTVBps:               asset.MaxLTVBps,
			LiquidationThresholdBps: asset.LiquidationThresholdBps,
			LiquidationBonusBps:     asset.LiquidationBonusBps,
			ReserveFactorBps:        asset.ReserveFactorBps,
			DepositAllocPoint:       asset.DepositAllocPoint,
			BorrowAllocPoint:        asset.BorrowAllocPoint,
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", asset.Symbol, err)
		}
	}
	return nil
}

// seedGenesis writes the one-off genesis state: allocations, AMM liquidity,
// the emission budget and the bounty reserve.
func (p *Protocol) seedGenesis() error {
	gen := p.genesis
	owner := p.addrs.Owner

	for _, alloc := range gen.Allocations {
		to, err := config.ResolveAddress(alloc.Address, owner)
		if err != nil {
			return err
		}
		amount, err := config.Tokens(alloc.Amount)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			continue
		}
		if err := p.ledger.Mint(alloc.Token, to, amount); err != nil {
			return fmt.Errorf("allocate %s: %w", alloc.Token, err)
		}
	}

	rewardLiq, err := config.Tokens(gen.RewardPool.RewardLiquidity)
	if err != nil {
		return err
	}
	baseLiq, err := config.Tokens(gen.RewardPool.BaseLiquidity)
	if err != nil {
		return err
	}
	if err := p.seedPair(gen.RewardToken, gen.BaseToken, gen.LPToken, rewardLiq, baseLiq); err != nil {
		return err
	}
	basePrice, err := p.assets.Price(gen.BaseToken)
	if err != nil {
		return err
	}
	for _, asset := range gen.Assets {
		if asset.Symbol == gen.BaseToken {
			continue
		}
		price, err := p.assets.Price(asset.Symbol)
		if err != nil {
			return err
		}
		assetLiq := nativecommon.FromUsd(nativecommon.ToUsd(baseLiq, config.TokenDecimals, basePrice), config.TokenDecimals, price)
		if err := p.seedPair(asset.Symbol, gen.BaseToken, ConversionLPToken(asset.Symbol, gen.BaseToken), assetLiq, baseLiq); err != nil {
			return err
		}
	}
	if _, err := p.prices.Update(); err != nil {
		return err
	}

	if len(gen.Chef.ScheduleOffsets) > 0 {
		rates, err := gen.Chef.Rates()
		if err != nil {
			return err
		}
		if err := p.chef.SetEmissionSchedule(owner, gen.Chef.ScheduleOffsets, rates); err != nil {
			return err
		}
	}
	if err := p.chef.Start(owner); err != nil {
		return err
	}
	budget, err := config.Tokens(gen.Chef.RewardBudget)
	if err != nil {
		return err
	}
	if budget.Sign() > 0 {
		if err := p.ledger.Mint(gen.RewardToken, owner, budget); err != nil {
			return err
		}
		if err := p.chef.RegisterRewardDeposit(owner, budget); err != nil {
			return err
		}
	}

	reserve, err := config.Tokens(gen.Bounty.Reserve)
	if err != nil {
		return err
	}
	if reserve.Sign() > 0 {
		if err := p.ledger.Mint(gen.RewardToken, p.addrs.Bounty, reserve); err != nil {
			return err
		}
	}
	// Gating is seeded once; later toggles are state like the entries.
	if err := p.bounty.ChangeWL(owner, gen.Bounty.WhitelistActive); err != nil {
		return err
	}
	for _, raw := range gen.Bounty.Whitelist {
		hunter, err := crypto.ParseAddress(raw)
		if err != nil {
			return err
		}
		if err := p.bounty.AddAddressToWL(owner, hunter, true); err != nil {
			return err
		}
	}
	return nil
}

// seedPair creates the tokenA/tokenB pair and provides its first liquidity
// from freshly minted operator funds.
func (p *Protocol) seedPair(tokenA, tokenB, lpToken string, amountA, amountB *big.Int) error {
	if _, err := p.router.CreatePair(tokenA, tokenB, lpToken); err != nil {
		return fmt.Errorf("pair %s/%s: %w", tokenA, tokenB, err)
	}
	if amountA.Sign() == 0 || amountB.Sign() == 0 {
		return nil
	}
	owner := p.addrs.Owner
	if err := p.ledger.Mint(tokenA, owner, amountA); err != nil {
		return err
	}
	if err := p.ledger.Mint(tokenB, owner, amountB); err != nil {
		return err
	}
	_, _, _, err := p.router.AddLiquidity(owner, tokenA, tokenB, amountA, amountB, owner)
	return err
}

// ConversionLPToken names the LP token of the pair used to convert asset
// revenue into the base token.
func ConversionLPToken(asset, base string) string {
	return token.Normalize(asset + base + "LP")
}

// Execute runs fn as one transaction. On error every write and event is
// discarded; on success the events are observed and forwarded to the sinks.
func (p *Protocol) Execute(ctx context.Context, op string, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("prnt.op", op)))
	defer span.End()

	if err := p.state.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		p.state.Rollback()
		metrics.Incentives().ObserveTxFailure(op)
		prntotel.RecordTx(ctx, op, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("tx reverted", slog.String("op", op), slog.Any("error", err))
		return err
	}
	return p.commit(ctx, op)
}

// commit persists the sequence and clock and flushes the open transaction.
func (p *Protocol) commit(ctx context.Context, op string) error {
	seq := p.seq + 1
	now := p.clock.Now()
	if err := p.state.KVPut([]byte(seqKey), &seqRecord{Seq: seq}); err != nil {
		p.state.Rollback()
		return err
	}
	if err := p.state.KVPut([]byte(clockKey), &clockRecord{Now: now}); err != nil {
		p.state.Rollback()
		return err
	}
	evts, err := p.state.Commit()
	if err != nil {
		p.state.Rollback()
		return err
	}
	p.seq = seq
	p.observe(evts)
	prntotel.RecordTx(ctx, op, true)
	for _, sink := range p.sinks {
		if err := sink.Record(ctx, seq, op, now, evts); err != nil {
			p.logger.Error("event sink failed", slog.String("op", op), slog.Uint64("seq", seq), slog.Any("error", err))
		}
	}
	p.logger.Debug("tx committed", slog.String("op", op), slog.Uint64("seq", seq), slog.Int("events", len(evts)))
	return nil
}

// View runs fn against a throwaway overlay so read paths that evaluate
// actions cannot persist anything.
func (p *Protocol) View(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.state.Begin(); err != nil {
		return err
	}
	defer p.state.Rollback()
	return fn()
}

func (p *Protocol) observe(evts []*types.Event) {
	m := metrics.Incentives()
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		observability.Events().RecordEvent(evt.Type)
		switch evt.Type {
		case events.TypeTokenTransfer:
			observability.Events().RecordTransfer(evt.Attributes["token"])
		case events.TypeDisqualified:
			m.ObserveDisqualified(evt.Attributes["reason"], parseAmount(evt.Attributes["forfeited"]))
		case events.TypeBountyClaimed:
			m.ObserveBountyClaimed(evt.Attributes["actionType"], parseAmount(evt.Attributes["bounty"]))
		case events.TypeBountyReserveEmpty:
			m.ObserveBountyReserveEmpty()
			p.logger.Warn("bounty reserve exhausted, manager paused", slog.String("available", evt.Attributes["available"]))
		case events.TypeCompounded:
			m.ObserveCompound(parseAmount(evt.Attributes["fee"]))
		case events.TypeVested:
			m.ObserveVested(parseAmount(evt.Attributes["amount"]))
		case events.TypeEmissionsClaimed:
			m.ObserveEmissionsClaimed(parseAmount(evt.Attributes["amount"]))
		case events.TypeRewardDeposit:
			m.ObserveRewardDeposit(parseAmount(evt.Attributes["amount"]))
		case events.TypeLiquidated:
			m.ObserveLiquidation()
		case events.TypeEligibilityRefreshed:
			m.SetLastRefreshEligible(evt.Attributes["eligible"] == "true")
		}
	}
	if rate, err := p.chef.RewardsPerSecond(); err == nil {
		m.SetEmissionRate(rate)
	}
}

func parseAmount(raw string) *big.Int {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func priceKey(asset string) []byte {
	return nativecommon.Key(pricePfx, []byte(token.Normalize(asset)))
}

func (p *Protocol) storedPrice(asset string) (*big.Int, error) {
	var rec priceRecord
	ok, err := p.state.KVGet(priceKey(asset), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return rec.Answer, nil
}

// Owner returns the operator account.
func (p *Protocol) Owner() common.Address { return p.addrs.Owner }

// Addresses returns the module accounts.
func (p *Protocol) Addresses() Addresses { return p.addrs }

// Genesis returns the configuration the protocol was booted with.
func (p *Protocol) Genesis() config.Genesis { return p.genesis }

// Seq returns the number of committed transactions.
func (p *Protocol) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Now returns the protocol block time.
func (p *Protocol) Now() uint64 { return p.clock.Now() }

// ModulePaused reports whether the circuit breaker of module is engaged.
func (p *Protocol) ModulePaused(module string) bool {
	var paused bool
	_ = p.View(func() error {
		paused = p.pauses.IsPaused(module)
		return nil
	})
	return paused
}

func (p *Protocol) Ledger() *token.Ledger { return p.ledger }
func (p *Protocol) Router() *amm.Engine { return p.router }
func (p *Protocol) Prices() *priceprovider.Provider { return p.prices }
func (p *Protocol) AssetPrices() *priceprovider.AssetOracle { return p.assets }
func (p *Protocol) Lending() *lending.Engine { return p.lending }
func (p *Protocol) MFD() *mfd.Engine { return p.mfd }
func (p *Protocol) Eligibility() *eligibility.Provider { return p.eligibility }
func (p *Protocol) Chef() *chef.Engine { return p.chef }
func (p *Protocol) Bounty() *bounty.Engine { return p.bounty }
func (p *Protocol) Compounder() *compounder.Engine { return p.compounder }
func (p *Protocol) Leverager() *leverager.Engine { return p.leverager }
