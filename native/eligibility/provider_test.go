package eligibility

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/state"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/mfd"
	"primenumbers/storage"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	chef    = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	user    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	another = common.HexToAddress("0x00000000000000000000000000000000000000d2")
)

const now = 1_700_000_000

type stubLending map[common.Address]*big.Int

func (s stubLending) BorrowedValueUsd(addr common.Address) (*big.Int, error) {
	if v, ok := s[addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

type stubLocks map[common.Address][]mfd.LockedBalance

func (s stubLocks) LockedBalances(addr common.Address) (*mfd.LockedBalancesView, error) {
	view := &mfd.LockedBalancesView{Locked: big.NewInt(0)}
	for _, l := range s[addr] {
		view.LockData = append(view.LockData, l)
		view.Locked.Add(view.Locked, l.Amount)
	}
	return view, nil
}

type stubPrice struct {
	price *big.Int
	err   error
}

func (s *stubPrice) GetLpTokenPriceUsd() (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.price), nil
}

func usd(v int64) *big.Int { return new(big.Int).Mul(big.NewInt(v), big.NewInt(100_000_000)) }

func lp(v int64) *big.Int { return new(big.Int).Mul(big.NewInt(v), nativecommon.Wad) }

type fixture struct {
	provider *Provider
	lending  stubLending
	locks    stubLocks
	price    *stubPrice
	clock    *nativecommon.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	clock := nativecommon.NewManualClock(now)
	f := &fixture{
		provider: NewProvider(owner, mgr, clock),
		lending:  stubLending{user: usd(10_000)},
		locks:    stubLocks{},
		price:    &stubPrice{price: usd(20)},
		clock:    clock,
	}
	if err := f.provider.Configure(owner, f.lending, f.locks, f.price, chef); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return f
}

func TestRequiredAndLockedValue(t *testing.T) {
	f := newFixture(t)
	f.locks[user] = []mfd.LockedBalance{{Amount: lp(30), UnlockTime: now + 30*86400, Multiplier: 1}}
	required, err := f.provider.RequiredUsdValue(user)
	if err != nil {
		t.Fatalf("required: %v", err)
	}
	if required.Cmp(usd(500)) != 0 {
		t.Fatalf("expected 5%% of debt, got %s", required)
	}
	locked, err := f.provider.LockedUsdValue(user)
	if err != nil {
		t.Fatalf("locked: %v", err)
	}
	if locked.Cmp(usd(600)) != 0 {
		t.Fatalf("unexpected locked value %s", locked)
	}
	if !f.provider.IsEligibleForRewards(user) {
		t.Fatalf("user should be eligible")
	}
	if got := f.provider.LastEligibleTime(user); got != now+30*86400 {
		t.Fatalf("unexpected last eligible time %d", got)
	}
}

func TestLastEligibleTimeWalksFromLatestLock(t *testing.T) {
	f := newFixture(t)
	f.locks[user] = []mfd.LockedBalance{
		{Amount: lp(10), UnlockTime: now + 30*86400, Multiplier: 1},
		{Amount: lp(15), UnlockTime: now + 90*86400, Multiplier: 4},
	}
	// The latest lock is worth $300, below the $450 threshold; both cover it.
	if got := f.provider.LastEligibleTime(user); got != now+30*86400 {
		t.Fatalf("expected the earlier lock to set the horizon, got %d", got)
	}
	f.locks[user][0].Amount = lp(1)
	if got := f.provider.LastEligibleTime(user); got != 0 {
		t.Fatalf("expected no horizon when locks fall short, got %d", got)
	}
	if f.provider.IsEligibleForRewards(user) {
		t.Fatalf("user should not be eligible")
	}
}

func TestToleranceLowersThreshold(t *testing.T) {
	f := newFixture(t)
	f.locks[user] = []mfd.LockedBalance{{Amount: lp(23), UnlockTime: now + 86400, Multiplier: 1}}
	if !f.provider.IsEligibleForRewards(user) {
		t.Fatalf("$460 should pass the 90%% tolerance on $500")
	}
	if err := f.provider.SetPriceToleranceRatio(owner, 10_000); err != nil {
		t.Fatalf("set tolerance: %v", err)
	}
	if f.provider.IsEligibleForRewards(user) {
		t.Fatalf("$460 should fail without tolerance")
	}
	if err := f.provider.SetPriceToleranceRatio(owner, 7_999); !errors.Is(err, nativecommon.ErrInvalidRatio) {
		t.Fatalf("expected invalid ratio, got %v", err)
	}
	if err := f.provider.SetRequiredDepositRatio(owner, 10_001); !errors.Is(err, nativecommon.ErrInvalidRatio) {
		t.Fatalf("expected invalid ratio, got %v", err)
	}
	if err := f.provider.SetRequiredDepositRatio(user, 100); !errors.Is(err, nativecommon.ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
}

func TestNoDebtOrNoPriceIsIneligible(t *testing.T) {
	f := newFixture(t)
	f.locks[another] = []mfd.LockedBalance{{Amount: lp(100), UnlockTime: now + 86400, Multiplier: 1}}
	if f.provider.IsEligibleForRewards(another) {
		t.Fatalf("a user without debt has no requirement to meet")
	}
	f.locks[user] = []mfd.LockedBalance{{Amount: lp(100), UnlockTime: now + 86400, Multiplier: 1}}
	f.price.err = errors.New("feed down")
	if f.provider.IsEligibleForRewards(user) {
		t.Fatalf("price failures must make the user ineligible")
	}
	if got := f.provider.LastEligibleTime(user); got != 0 {
		t.Fatalf("expected zero horizon on price failure, got %d", got)
	}
}

func TestExemption(t *testing.T) {
	f := newFixture(t)
	if err := f.provider.SetExempt(user, user, true); !errors.Is(err, nativecommon.ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if err := f.provider.SetExempt(chef, user, true); err != nil {
		t.Fatalf("chef exemption: %v", err)
	}
	if !f.provider.IsEligibleForRewards(user) {
		t.Fatalf("exempt user should be eligible")
	}
	if err := f.provider.SetExempt(owner, user, false); err != nil {
		t.Fatalf("clear exemption: %v", err)
	}
	if f.provider.IsEligibleForRewards(user) {
		t.Fatalf("user without locks should not be eligible")
	}
}

func TestRefreshAndDisqualification(t *testing.T) {
	f := newFixture(t)
	f.locks[user] = []mfd.LockedBalance{{Amount: lp(30), UnlockTime: now + 86400, Multiplier: 1}}
	if _, err := f.provider.Refresh(user, user); !errors.Is(err, nativecommon.ErrInsufficientPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	eligible, err := f.provider.Refresh(chef, user)
	if err != nil || !eligible {
		t.Fatalf("refresh: eligible=%v err=%v", eligible, err)
	}
	st, _ := f.provider.State(user)
	if st.LastEligibleTime != now+86400 || !st.LastEligibleStatus {
		t.Fatalf("unexpected cached state %+v", st)
	}

	if err := f.provider.SetDqTime(user, user, now); !errors.Is(err, nativecommon.ErrInsufficientPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if err := f.provider.SetDqTime(chef, user, now); err != nil {
		t.Fatalf("set dq: %v", err)
	}
	st, _ = f.provider.State(user)
	if st.DqTime != now || st.LastEligibleTime != 0 {
		t.Fatalf("disqualification not recorded %+v", st)
	}

	if _, err := f.provider.Refresh(chef, user); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	st, _ = f.provider.State(user)
	if st.DqTime != 0 {
		t.Fatalf("eligible refresh should clear the dq time, got %d", st.DqTime)
	}

	f.clock.Advance(86400)
	eligible, _ = f.provider.Refresh(chef, user)
	if eligible {
		t.Fatalf("matured lock should not keep the user eligible")
	}
}
