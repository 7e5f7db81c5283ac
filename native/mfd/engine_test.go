package mfd

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

var (
	owner      = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	moduleAddr = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	minter     = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	bountyAddr = common.HexToAddress("0x0000000000000000000000000000000000000a04")
	compAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a05")
	treasury   = common.HexToAddress("0x0000000000000000000000000000000000000a06")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

const start = 1_700_000_000

type recordingHooks struct {
	calls []string
}

func (h *recordingHooks) BeforeLockUpdate(caller, user common.Address) error {
	if caller != moduleAddr {
		return nativecommon.ErrNotMFD
	}
	h.calls = append(h.calls, "before")
	return nil
}

func (h *recordingHooks) AfterLockUpdate(caller, user common.Address) error {
	if caller != moduleAddr {
		return nativecommon.ErrNotMFD
	}
	h.calls = append(h.calls, "after")
	return nil
}

type fixture struct {
	engine *Engine
	ledger *token.Ledger
	clock  *nativecommon.ManualClock
	hooks  *recordingHooks
}

func units(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), nativecommon.Wad)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(mgr)
	clock := nativecommon.NewManualClock(start)
	engine := NewEngine(owner, moduleAddr, mgr, ledger, clock)
	cfg := DefaultConfig()
	cfg.Treasury = treasury
	if err := engine.Configure(owner, cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	hooks := &recordingHooks{}
	if err := engine.SetLockHooks(owner, hooks); err != nil {
		t.Fatalf("hooks: %v", err)
	}
	if err := engine.SetMinters(owner, []common.Address{minter}); err != nil {
		t.Fatalf("minters: %v", err)
	}
	if err := engine.SetBountyManager(owner, bountyAddr); err != nil {
		t.Fatalf("bounty manager: %v", err)
	}
	if err := engine.SetCompounder(owner, compAddr); err != nil {
		t.Fatalf("compounder: %v", err)
	}
	for _, user := range []common.Address{alice, bob} {
		if err := ledger.Mint("DLP", user, units(1_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if err := ledger.Mint("PRNT", minter, units(100_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return &fixture{engine: engine, ledger: ledger, clock: clock, hooks: hooks}
}

func (f *fixture) balance(t *testing.T, tok string, addr common.Address) *big.Int {
	t.Helper()
	bal, err := f.ledger.Balance(tok, addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func TestConfigureValidation(t *testing.T) {
	mgr := state.NewManager(storage.NewMemDB())
	engine := NewEngine(owner, moduleAddr, mgr, token.NewLedger(mgr), nativecommon.NewManualClock(start))
	if err := engine.Stake(alice, units(1), alice, 0); !errors.Is(err, nativecommon.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	cfg := DefaultConfig()
	cfg.LockMultipliers = cfg.LockMultipliers[:2]
	if err := engine.Configure(owner, cfg); !errors.Is(err, nativecommon.ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	if err := engine.Configure(alice, DefaultConfig()); !errors.Is(err, nativecommon.ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if err := engine.Configure(owner, DefaultConfig()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.Configure(owner, DefaultConfig()); !errors.Is(err, nativecommon.ErrAlreadyInitialized) {
		t.Fatalf("expected second configure to fail, got %v", err)
	}
	if got := engine.LockMultipliers(); len(got) != 4 || got[3] != 25 {
		t.Fatalf("unexpected multipliers %v", got)
	}
	if got := engine.LockDurations(); got[0] != 30*day {
		t.Fatalf("unexpected durations %v", got)
	}
}

func TestStakeValidation(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Stake(alice, big.NewInt(0), alice, 0); !errors.Is(err, nativecommon.ErrAmountTooSmall) {
		t.Fatalf("expected amount too small, got %v", err)
	}
	if err := f.engine.Stake(alice, units(1), alice, 4); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	if err := f.engine.Stake(alice, units(2_000), alice, 0); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestStakeSortsAndMergesLocks(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Stake(alice, units(10), alice, 1); err != nil {
		t.Fatalf("stake tier 1: %v", err)
	}
	if err := f.engine.Stake(alice, units(20), alice, 0); err != nil {
		t.Fatalf("stake tier 0: %v", err)
	}
	if err := f.engine.Stake(alice, units(5), alice, 0); err != nil {
		t.Fatalf("stake tier 0 again: %v", err)
	}
	view, err := f.engine.LockedBalances(alice)
	if err != nil {
		t.Fatalf("locked balances: %v", err)
	}
	if len(view.LockData) != 2 {
		t.Fatalf("expected merged locks, got %d entries", len(view.LockData))
	}
	if view.LockData[0].UnlockTime != start+30*day || view.LockData[0].Amount.Cmp(units(25)) != 0 {
		t.Fatalf("unexpected first lock %+v", view.LockData[0])
	}
	if view.LockData[1].Multiplier != 4 {
		t.Fatalf("expected tier 1 lock last, got %+v", view.LockData[1])
	}
	if view.Locked.Cmp(units(35)) != 0 || view.Total.Cmp(units(35)) != 0 {
		t.Fatalf("unexpected totals %s/%s", view.Locked, view.Total)
	}
	if view.LockedWithMultiplier.Cmp(units(65)) != 0 {
		t.Fatalf("unexpected weighted total %s", view.LockedWithMultiplier)
	}
	if len(f.hooks.calls) != 6 || f.hooks.calls[0] != "before" || f.hooks.calls[5] != "after" {
		t.Fatalf("unexpected hook sequence %v", f.hooks.calls)
	}
	if got := f.balance(t, "DLP", moduleAddr); got.Cmp(units(35)) != 0 {
		t.Fatalf("engine should hold the locked tokens, has %s", got)
	}
}

func TestStakeMergesOnlyIdenticalUnlockTime(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Stake(alice, units(10), alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(60 * 60)
	if err := f.engine.Stake(alice, units(5), alice, 0); err != nil {
		t.Fatalf("stake an hour later: %v", err)
	}
	view, err := f.engine.LockedBalances(alice)
	if err != nil {
		t.Fatalf("locked balances: %v", err)
	}
	if len(view.LockData) != 2 {
		t.Fatalf("same-day locks with different unlock times merged: %+v", view.LockData)
	}
	if view.LockData[0].UnlockTime != start+30*day || view.LockData[1].UnlockTime != start+30*day+60*60 {
		t.Fatalf("unexpected unlock times %d/%d", view.LockData[0].UnlockTime, view.LockData[1].UnlockTime)
	}
}

func TestBountyWithdrawRelocksWhenEnabled(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Stake(alice, units(100), alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if ok, err := f.engine.ClaimBounty(bountyAddr, alice, false); err != nil || ok {
		t.Fatalf("nothing should be claimable yet: ok=%v err=%v", ok, err)
	}
	f.clock.Advance(30 * day)

	view, _ := f.engine.LockedBalances(alice)
	if view.Unlockable.Cmp(units(100)) != 0 || len(view.LockData) != 0 {
		t.Fatalf("lock should have matured: %+v", view)
	}
	if _, err := f.engine.ClaimBounty(alice, alice, true); !errors.Is(err, nativecommon.ErrInsufficientPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if ok, err := f.engine.ClaimBounty(bountyAddr, alice, true); err != nil || !ok {
		t.Fatalf("claim bounty: ok=%v err=%v", ok, err)
	}
	view, _ = f.engine.LockedBalances(alice)
	if len(view.LockData) != 1 || view.Locked.Cmp(units(100)) != 0 {
		t.Fatalf("expected a single relocked position, got %+v", view)
	}
	if view.LockData[0].UnlockTime != start+60*day {
		t.Fatalf("relock should restart the tier, unlock %d", view.LockData[0].UnlockTime)
	}
	if got := f.balance(t, "DLP", alice); got.Cmp(units(900)) != 0 {
		t.Fatalf("no tokens should return on relock, alice has %s", got)
	}
}

func TestBountyWithdrawReturnsTokensWhenRelockDisabled(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetRelock(alice, false); err != nil {
		t.Fatalf("set relock: %v", err)
	}
	if err := f.engine.Stake(alice, units(100), alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(31 * day)
	if ok, err := f.engine.ClaimBounty(bountyAddr, alice, true); err != nil || !ok {
		t.Fatalf("claim bounty: ok=%v err=%v", ok, err)
	}
	view, _ := f.engine.LockedBalances(alice)
	if len(view.LockData) != 0 || view.Total.Sign() != 0 {
		t.Fatalf("expected no locks left, got %+v", view)
	}
	if got := f.balance(t, "DLP", alice); got.Cmp(units(1_000)) != 0 {
		t.Fatalf("tokens should be returned, alice has %s", got)
	}
	locked, weighted, err := f.engine.LockedSupply()
	if err != nil || locked.Sign() != 0 || weighted.Sign() != 0 {
		t.Fatalf("supply not cleared: %s %s %v", locked, weighted, err)
	}
}

func TestSelfWithdrawAndRelock(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Relock(alice); !errors.Is(err, ErrNothingToRelock) {
		t.Fatalf("expected nothing to relock, got %v", err)
	}
	if err := f.engine.SetDefaultRelockTypeIndex(alice, 9); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	if err := f.engine.SetDefaultRelockTypeIndex(alice, 2); err != nil {
		t.Fatalf("default index: %v", err)
	}
	if err := f.engine.Stake(alice, units(40), alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := f.engine.Stake(bob, units(40), bob, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(30 * day)

	amount, err := f.engine.Relock(alice)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	if amount.Cmp(units(40)) != 0 {
		t.Fatalf("unexpected relock amount %s", amount)
	}
	view, _ := f.engine.LockedBalances(alice)
	if len(view.LockData) != 1 || view.LockData[0].Multiplier != 10 {
		t.Fatalf("expected relock into tier 2, got %+v", view.LockData)
	}

	// A user withdrawing their own locks gets the tokens back.
	if _, err := f.engine.WithdrawExpiredLocksFor(bob, bob); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, "DLP", bob); got.Cmp(units(1_000)) != 0 {
		t.Fatalf("bob should have his tokens back, has %s", got)
	}
}

func TestWithdrawWithOptionsLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		if err := f.engine.Stake(alice, units(10), alice, 0); err != nil {
			t.Fatalf("stake: %v", err)
		}
		f.clock.Advance(day)
	}
	f.clock.Advance(30 * day)
	amount, err := f.engine.WithdrawExpiredLocksForWithOptions(alice, 2, true)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(units(20)) != 0 {
		t.Fatalf("expected two locks released, got %s", amount)
	}
	view, _ := f.engine.LockedBalances(alice)
	if view.Unlockable.Cmp(units(10)) != 0 {
		t.Fatalf("one matured lock should remain, got %s", view.Unlockable)
	}
}
