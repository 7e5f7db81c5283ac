package priceprovider

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
)

var (
	ErrUnknownAsset = errors.New("priceprovider: unknown asset")
	ErrNoLiquidity  = errors.New("priceprovider: pool has no liquidity")
	errNilState     = errors.New("priceprovider: state not configured")
)

const twapKey = "priceprovider/twap"

// PoolSource exposes the reward/base pool the reward token price is read from.
type PoolSource interface {
	Reserves(tokenA, tokenB string) (*big.Int, *big.Int, error)
	LPTotalSupply(tokenA, tokenB string) (*big.Int, error)
	CurrentCumulativePrice(tokenA, tokenB string) (*big.Int, uint64, error)
}

// PriceSource yields an 8 decimal USD price.
type PriceSource interface {
	LatestAnswer() (*big.Int, error)
}

// Config describes the pool the provider prices from.
type Config struct {
	RewardToken string
	BaseToken   string
	TwapPeriod  uint64
	UseTwap     bool
}

// Observation is the persisted TWAP checkpoint. Averages are reward token
// prices quoted in the base token, scaled by 1e18.
type Observation struct {
	Cumulative      *big.Int
	Timestamp       uint64
	Average         *big.Int
	PreviousAverage *big.Int
}

// Provider prices the reward token and the reward/base LP token in USD.
type Provider struct {
	nativecommon.Ownable

	store nativecommon.Store
	pool  PoolSource
	base  PriceSource
	clock nativecommon.Clock
	cfg   Config
}

// NewProvider builds a provider. base supplies the USD price of cfg.BaseToken.
func NewProvider(owner common.Address, store nativecommon.Store, pool PoolSource, base PriceSource, clock nativecommon.Clock, cfg Config) *Provider {
	cfg.RewardToken = strings.ToUpper(strings.TrimSpace(cfg.RewardToken))
	cfg.BaseToken = strings.ToUpper(strings.TrimSpace(cfg.BaseToken))
	return &Provider{
		Ownable: nativecommon.NewOwnable(owner),
		store:   store,
		pool:    pool,
		base:    base,
		clock:   clock,
		cfg:     cfg,
	}
}

// Config returns the active configuration.
func (p *Provider) Config() Config { return p.cfg }

// SetUseTwap switches between TWAP and spot pricing.
func (p *Provider) SetUseTwap(caller common.Address, enabled bool) error {
	if err := p.OnlyOwner(caller); err != nil {
		return err
	}
	p.cfg.UseTwap = enabled
	return nil
}

func (p *Provider) observation() (*Observation, error) {
	if p == nil || p.store == nil {
		return nil, errNilState
	}
	obs := new(Observation)
	ok, err := p.store.KVGet([]byte(twapKey), obs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Observation{}, nil
	}
	return obs, nil
}

// Update checkpoints the pool's cumulative price once per TWAP period. It
// reports whether a new checkpoint was written.
func (p *Provider) Update() (bool, error) {
	obs, err := p.observation()
	if err != nil {
		return false, err
	}
	cumulative, ts, err := p.pool.CurrentCumulativePrice(p.cfg.RewardToken, p.cfg.BaseToken)
	if err != nil {
		return false, err
	}
	if obs.Timestamp == 0 {
		spot, err := p.spotInBase()
		if err != nil {
			return false, err
		}
		next := &Observation{Cumulative: cumulative, Timestamp: ts, Average: spot, PreviousAverage: spot}
		return true, p.store.KVPut([]byte(twapKey), next)
	}
	if ts <= obs.Timestamp || ts-obs.Timestamp < p.cfg.TwapPeriod {
		return false, nil
	}
	elapsed := new(big.Int).SetUint64(ts - obs.Timestamp)
	average := new(big.Int).Sub(cumulative, nativecommon.Copy(obs.Cumulative))
	average.Quo(average, elapsed)
	next := &Observation{
		Cumulative:      cumulative,
		Timestamp:       ts,
		Average:         average,
		PreviousAverage: nativecommon.Copy(obs.Average),
	}
	return true, p.store.KVPut([]byte(twapKey), next)
}

func (p *Provider) spotInBase() (*big.Int, error) {
	reward, base, err := p.pool.Reserves(p.cfg.RewardToken, p.cfg.BaseToken)
	if err != nil {
		return nil, err
	}
	if reward.Sign() == 0 || base.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	return nativecommon.MulDiv(base, nativecommon.Wad, reward), nil
}

func (p *Provider) twapInBase() (*big.Int, error) {
	obs, err := p.observation()
	if err != nil {
		return nil, err
	}
	if obs.Timestamp == 0 || !nativecommon.IsPositive(obs.Average) {
		return nil, ErrStalePrice
	}
	now := p.clock.Now()
	if now > obs.Timestamp && now-obs.Timestamp > 2*p.cfg.TwapPeriod {
		return nil, ErrStalePrice
	}
	return obs.Average, nil
}

func (p *Provider) priceInBase() (*big.Int, error) {
	if p.cfg.UseTwap {
		return p.twapInBase()
	}
	return p.spotInBase()
}

func (p *Provider) toUsd(inBase *big.Int) (*big.Int, error) {
	baseUsd, err := p.base.LatestAnswer()
	if err != nil {
		return nil, err
	}
	price := nativecommon.MulDiv(inBase, baseUsd, nativecommon.Wad)
	if price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	return price, nil
}

// GetTokenPriceUsd returns the reward token price with 8 decimals.
func (p *Provider) GetTokenPriceUsd() (*big.Int, error) {
	inBase, err := p.priceInBase()
	if err != nil {
		return nil, err
	}
	return p.toUsd(inBase)
}

// LatestAnswer lets the provider act as the reward token's PriceSource.
func (p *Provider) LatestAnswer() (*big.Int, error) {
	return p.GetTokenPriceUsd()
}

// ReferenceTokenPriceUsd returns the reward token price over the previous
// TWAP window, falling back to the current price when no history exists.
func (p *Provider) ReferenceTokenPriceUsd() (*big.Int, error) {
	obs, err := p.observation()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsPositive(obs.PreviousAverage) {
		return p.toUsd(obs.PreviousAverage)
	}
	return p.GetTokenPriceUsd()
}

// fairPriceInBase is the reward price the LP formula uses. It reads the last
// TWAP checkpoint, so swaps inside a window only move the pool along its
// invariant and leave the LP price where it was. Spot is used only before the
// first checkpoint.
func (p *Provider) fairPriceInBase() (*big.Int, error) {
	if p.cfg.UseTwap {
		return p.twapInBase()
	}
	obs, err := p.observation()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsPositive(obs.Average) {
		return nativecommon.Copy(obs.Average), nil
	}
	return p.spotInBase()
}

// GetLpTokenPriceUsd prices one LP token from fair reserves:
// 2*sqrt(r0*p0*r1*p1)/supply, with p0 taken from the TWAP checkpoint.
func (p *Provider) GetLpTokenPriceUsd() (*big.Int, error) {
	inBase, err := p.fairPriceInBase()
	if err != nil {
		return nil, err
	}
	rewardPrice, err := p.toUsd(inBase)
	if err != nil {
		return nil, err
	}
	basePrice, err := p.base.LatestAnswer()
	if err != nil {
		return nil, err
	}
	reward, base, err := p.pool.Reserves(p.cfg.RewardToken, p.cfg.BaseToken)
	if err != nil {
		return nil, err
	}
	supply, err := p.pool.LPTotalSupply(p.cfg.RewardToken, p.cfg.BaseToken)
	if err != nil {
		return nil, err
	}
	if reward.Sign() == 0 || base.Sign() == 0 || supply.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	product := new(big.Int).Mul(reward, rewardPrice)
	product.Mul(product, base)
	product.Mul(product, basePrice)
	value := new(big.Int).Sqrt(product)
	value.Mul(value, big.NewInt(2))
	return value.Quo(value, supply), nil
}

// AssetOracle resolves USD prices for lending assets.
type AssetOracle struct {
	mu      sync.RWMutex
	sources map[string]PriceSource
}

// NewAssetOracle creates an empty oracle.
func NewAssetOracle() *AssetOracle {
	return &AssetOracle{sources: make(map[string]PriceSource)}
}

// SetSource registers the price source for asset.
func (o *AssetOracle) SetSource(asset string, src PriceSource) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources[strings.ToUpper(strings.TrimSpace(asset))] = src
}

// Price returns the 8 decimal USD price of asset.
func (o *AssetOracle) Price(asset string) (*big.Int, error) {
	o.mu.RLock()
	src, ok := o.sources[strings.ToUpper(strings.TrimSpace(asset))]
	o.mu.RUnlock()
	if !ok || src == nil {
		return nil, ErrUnknownAsset
	}
	return src.LatestAnswer()
}
