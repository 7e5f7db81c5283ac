package priceprovider

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/state"
	"primenumbers/native/amm"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/token"
	"primenumbers/storage"
)

type fixture struct {
	provider *Provider
	amm      *amm.Engine
	ledger   *token.Ledger
	clock    *nativecommon.ManualClock
	ethFeed  *ManualFeed
	owner    common.Address
}

func ether(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), nativecommon.Wad)
}

// newFixture seeds a PRNT/WETH pool at 400 PRNT per WETH with WETH at $200,
// so PRNT trades at $0.50.
func newFixture(t *testing.T, useTwap bool) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	clock := nativecommon.NewManualClock(1_700_000_000)
	ledger := token.NewLedger(manager)
	router := amm.NewEngine(manager, ledger, clock)
	if _, err := router.CreatePair("PRNT", "WETH", "DLP"); err != nil {
		t.Fatalf("create pair: %v", err)
	}
	lp := common.HexToAddress("0x11")
	if err := ledger.Mint("PRNT", lp, ether(400)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint("WETH", lp, ether(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, _, err := router.AddLiquidity(lp, "PRNT", "WETH", ether(400), ether(1), lp); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	ethFeed := NewManualFeed(8, clock)
	ethFeed.SetAnswer(big.NewInt(200_00000000))
	owner := common.HexToAddress("0x0a")
	provider := NewProvider(owner, manager, router, NewChainlinkAdapter(ethFeed, 86_400, clock), clock, Config{
		RewardToken: "PRNT",
		BaseToken:   "WETH",
		TwapPeriod:  1_200,
		UseTwap:     useTwap,
	})
	return &fixture{provider: provider, amm: router, ledger: ledger, clock: clock, ethFeed: ethFeed, owner: owner}
}

func TestSpotTokenPrice(t *testing.T) {
	f := newFixture(t, false)
	price, err := f.provider.GetTokenPriceUsd()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("expected $0.50, got %s", price)
	}
}

func TestFairLpPrice(t *testing.T) {
	f := newFixture(t, false)
	price, err := f.provider.GetLpTokenPriceUsd()
	if err != nil {
		t.Fatalf("lp price: %v", err)
	}
	// $400 of liquidity over 20 LP tokens.
	if price.Cmp(big.NewInt(20_00000000)) != 0 {
		t.Fatalf("expected $20 per LP, got %s", price)
	}
}

func TestLpPriceHoldsThroughSwaps(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.provider.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	before, err := f.provider.GetLpTokenPriceUsd()
	if err != nil {
		t.Fatalf("lp price: %v", err)
	}
	trader := common.HexToAddress("0x22")
	if err := f.ledger.Mint("PRNT", trader, ether(400)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	out, err := f.amm.SwapExactIn(trader, []string{"PRNT", "WETH"}, ether(400), nil, trader)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	spot, err := f.provider.GetTokenPriceUsd()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if spot.Cmp(big.NewInt(50_000_000)) >= 0 {
		t.Fatalf("expected the dump to lower spot, got %s", spot)
	}
	during, err := f.provider.GetLpTokenPriceUsd()
	if err != nil {
		t.Fatalf("lp price: %v", err)
	}
	if during.Cmp(before) < 0 {
		t.Fatalf("lp price fell from %s to %s on a swap", before, during)
	}
	if _, err := f.amm.SwapExactIn(trader, []string{"WETH", "PRNT"}, out, nil, trader); err != nil {
		t.Fatalf("swap back: %v", err)
	}
	after, err := f.provider.GetLpTokenPriceUsd()
	if err != nil {
		t.Fatalf("lp price: %v", err)
	}
	if after.Cmp(before) < 0 {
		t.Fatalf("lp price fell from %s to %s after the round trip", before, after)
	}
}

func TestTwapRequiresUpdateAndGoesStale(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.provider.GetTokenPriceUsd(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice before first update, got %v", err)
	}
	updated, err := f.provider.Update()
	if err != nil || !updated {
		t.Fatalf("first update: updated=%v err=%v", updated, err)
	}
	price, err := f.provider.GetTokenPriceUsd()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("unexpected twap price %s", price)
	}

	f.clock.Advance(600)
	updated, err = f.provider.Update()
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated {
		t.Fatalf("update inside the period should be a no-op")
	}

	f.clock.Advance(2_401)
	f.ethFeed.SetAnswer(big.NewInt(200_00000000))
	if _, err := f.provider.GetTokenPriceUsd(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice after two periods, got %v", err)
	}
	if _, err := f.provider.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := f.provider.GetTokenPriceUsd(); err != nil {
		t.Fatalf("price after refresh: %v", err)
	}
}

func TestReferencePriceLagsOneWindow(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.provider.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Dump PRNT into the pool so the next window averages a lower price.
	trader := common.HexToAddress("0x22")
	if err := f.ledger.Mint("PRNT", trader, ether(400)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.amm.SwapExactIn(trader, []string{"PRNT", "WETH"}, ether(400), nil, trader); err != nil {
		t.Fatalf("swap: %v", err)
	}
	f.clock.Advance(1_200)
	f.ethFeed.SetAnswer(big.NewInt(200_00000000))
	if _, err := f.provider.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	current, err := f.provider.GetTokenPriceUsd()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	reference, err := f.provider.ReferenceTokenPriceUsd()
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	if current.Cmp(reference) >= 0 {
		t.Fatalf("expected current %s below reference %s after the dump", current, reference)
	}
}

func TestAssetOracle(t *testing.T) {
	f := newFixture(t, false)
	oracle := NewAssetOracle()
	oracle.SetSource("prnt", f.provider)
	price, err := oracle.Price("PRNT")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("unexpected price %s", price)
	}
	if _, err := oracle.Price("DOGE"); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}
