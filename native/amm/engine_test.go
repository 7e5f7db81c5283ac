package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/state"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/token"
	"primenumbers/storage"
)

func ether(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), nativecommon.Wad)
}

func newTestEngine(t *testing.T) (*Engine, *token.Ledger, *nativecommon.ManualClock) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(manager)
	clock := nativecommon.NewManualClock(1_700_000_000)
	engine := NewEngine(manager, ledger, clock)
	if _, err := engine.CreatePair("PRNT", "WETH", "DLP"); err != nil {
		t.Fatalf("create pair: %v", err)
	}
	return engine, ledger, clock
}

func seedLiquidity(t *testing.T, engine *Engine, ledger *token.Ledger, provider common.Address, prnt, weth *big.Int) *big.Int {
	t.Helper()
	if err := ledger.Mint("PRNT", provider, prnt); err != nil {
		t.Fatalf("mint prnt: %v", err)
	}
	if err := ledger.Mint("WETH", provider, weth); err != nil {
		t.Fatalf("mint weth: %v", err)
	}
	_, _, lp, err := engine.AddLiquidity(provider, "PRNT", "WETH", prnt, weth, provider)
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	return lp
}

func TestFirstMintBurnsMinimumLiquidity(t *testing.T) {
	engine, ledger, _ := newTestEngine(t)
	provider := common.HexToAddress("0xa1")
	lp := seedLiquidity(t, engine, ledger, provider, ether(400), ether(1))

	root := new(big.Int).Sqrt(new(big.Int).Mul(ether(400), ether(1)))
	want := new(big.Int).Sub(root, MinimumLiquidity)
	if lp.Cmp(want) != 0 {
		t.Fatalf("unexpected liquidity: got %s want %s", lp, want)
	}
	supply, err := engine.LPTotalSupply("WETH", "PRNT")
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(root) != 0 {
		t.Fatalf("unexpected lp supply: got %s want %s", supply, root)
	}
	rPrnt, rWeth, err := engine.Reserves("PRNT", "WETH")
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if rPrnt.Cmp(ether(400)) != 0 || rWeth.Cmp(ether(1)) != 0 {
		t.Fatalf("unexpected reserves %s/%s", rPrnt, rWeth)
	}
}

func TestSwapExactInRespectsMinimumOutput(t *testing.T) {
	engine, ledger, _ := newTestEngine(t)
	provider := common.HexToAddress("0xa1")
	trader := common.HexToAddress("0xb2")
	seedLiquidity(t, engine, ledger, provider, ether(1_000), ether(10))
	if err := ledger.Mint("WETH", trader, ether(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	amounts, err := engine.GetAmountsOut(ether(1), []string{"WETH", "PRNT"})
	if err != nil {
		t.Fatalf("amounts out: %v", err)
	}
	expected := amounts[1]

	tooHigh := new(big.Int).Add(expected, big.NewInt(1))
	if _, err := engine.SwapExactIn(trader, []string{"WETH", "PRNT"}, ether(1), tooHigh, trader); !errors.Is(err, ErrInsufficientOutput) {
		t.Fatalf("expected ErrInsufficientOutput, got %v", err)
	}

	out, err := engine.SwapExactIn(trader, []string{"WETH", "PRNT"}, ether(1), expected, trader)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(expected) != 0 {
		t.Fatalf("unexpected output %s want %s", out, expected)
	}
	bal, _ := ledger.Balance("PRNT", trader)
	if bal.Cmp(expected) != 0 {
		t.Fatalf("trader balance %s want %s", bal, expected)
	}
	rPrnt, rWeth, _ := engine.Reserves("PRNT", "WETH")
	if rWeth.Cmp(ether(11)) != 0 {
		t.Fatalf("weth reserve %s", rWeth)
	}
	if new(big.Int).Add(rPrnt, expected).Cmp(ether(1_000)) != 0 {
		t.Fatalf("prnt reserve %s inconsistent with output %s", rPrnt, expected)
	}
}

func TestCumulativePriceTracksSpot(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)
	provider := common.HexToAddress("0xa1")
	seedLiquidity(t, engine, ledger, provider, ether(500), ether(1))

	start, ts0, err := engine.CurrentCumulativePrice("PRNT", "WETH")
	if err != nil {
		t.Fatalf("cumulative: %v", err)
	}
	clock.Advance(100)
	end, ts1, err := engine.CurrentCumulativePrice("PRNT", "WETH")
	if err != nil {
		t.Fatalf("cumulative: %v", err)
	}
	if ts1-ts0 != 100 {
		t.Fatalf("unexpected elapsed %d", ts1-ts0)
	}
	avg := new(big.Int).Sub(end, start)
	avg.Quo(avg, big.NewInt(100))
	want := new(big.Int).Quo(PriceScale, big.NewInt(500))
	if avg.Cmp(want) != 0 {
		t.Fatalf("unexpected average price %s want %s", avg, want)
	}
}

func TestRemoveLiquidityReturnsUnderlying(t *testing.T) {
	engine, ledger, _ := newTestEngine(t)
	provider := common.HexToAddress("0xa1")
	lp := seedLiquidity(t, engine, ledger, provider, ether(100), ether(100))

	prnt, weth, err := engine.RemoveLiquidity(provider, "PRNT", "WETH", lp, provider)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if prnt.Cmp(weth) != 0 {
		t.Fatalf("expected symmetric withdrawal, got %s/%s", prnt, weth)
	}
	if prnt.Cmp(ether(100)) >= 0 {
		t.Fatalf("minimum liquidity should remain locked, got %s", prnt)
	}
}

func TestCreatePairRejectsDuplicates(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.CreatePair("weth", "prnt", "DLP"); !errors.Is(err, ErrPairExists) {
		t.Fatalf("expected ErrPairExists, got %v", err)
	}
	if _, err := engine.CreatePair("USDC", "usdc", "X"); !errors.Is(err, ErrIdenticalTokens) {
		t.Fatalf("expected ErrIdenticalTokens, got %v", err)
	}
}
