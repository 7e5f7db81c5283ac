package chef

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
	"primenumbers/native/mfd"
)

// eligibleFixture gives alice $10k of debt covered by 30 LP at $20 locked
// until start+100.
func eligibleFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, units(1))
	f.addPool(t, depositR, 100)
	f.deposit(t, 1_000)
	f.debt[alice] = usd(10_000)
	f.locks.locks[alice] = []mfd.LockedBalance{{Amount: units(30), UnlockTime: start + 100, Multiplier: 1, Duration: 100}}
	f.register(t, depositR, alice, units(10))
	return f
}

func registered(t *testing.T, f *fixture, user common.Address) string {
	t.Helper()
	u, err := f.engine.UserInfo(depositR, user)
	if err != nil {
		t.Fatalf("user info: %v", err)
	}
	return u.Amount.String()
}

func TestIneligibleUserIsNotRegistered(t *testing.T) {
	f := eligibleFixture(t)
	f.debt[bob] = usd(1_000)
	f.register(t, depositR, bob, units(10))
	if got := registered(t, f, bob); got != "0" {
		t.Fatalf("ineligible stake registered: %s", got)
	}
	if got := registered(t, f, alice); got != units(10).String() {
		t.Fatalf("eligible stake = %s", got)
	}
	p, err := f.engine.PoolInfo(depositR)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if p.TotalSupply.Cmp(units(10)) != 0 {
		t.Fatalf("pool supply = %s", p.TotalSupply)
	}
}

func TestTimeDisqualificationCreditsUntilLastEligible(t *testing.T) {
	f := eligibleFixture(t)
	f.clock.Advance(200)

	preview, err := f.engine.PendingRewards(alice, []string{depositR})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if preview[0].Cmp(units(100)) != 0 {
		t.Fatalf("preview = %s, want 100", preview[0])
	}
	issue, err := f.engine.ClaimBounty(bountyAddr, alice, false)
	if err != nil || !issue {
		t.Fatalf("quote issue=%v err=%v", issue, err)
	}
	if got := registered(t, f, alice); got != units(10).String() {
		t.Fatalf("quote mutated state: %s", got)
	}
	issue, err = f.engine.ClaimBounty(bountyAddr, alice, true)
	if err != nil || !issue {
		t.Fatalf("execute issue=%v err=%v", issue, err)
	}
	owed, err := f.engine.AllPendingRewards(alice)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if owed.Cmp(units(100)) != 0 {
		t.Fatalf("credited = %s, want 100", owed)
	}
	_, accounted, err := f.engine.Budget()
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if accounted.Cmp(units(100)) != 0 {
		t.Fatalf("forfeited share not returned, accounted = %s", accounted)
	}
	st, err := f.provider.State(alice)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.DqTime != f.clock.Now() || st.LastEligibleTime != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
	if issue, err := f.engine.ClaimBounty(bountyAddr, alice, true); err != nil || issue {
		t.Fatalf("second disqualification issue=%v err=%v", issue, err)
	}
	if _, err := f.engine.Claim(alice, alice, []string{depositR}); !errors.Is(err, ErrEligibleRequired) {
		t.Fatalf("expected ErrEligibleRequired, got %v", err)
	}
}

func TestMarketDisqualificationCreditsEverything(t *testing.T) {
	f := eligibleFixture(t)
	f.clock.Advance(50)
	f.debt[alice] = usd(100_000)

	issue, err := f.engine.ClaimBounty(bountyAddr, alice, true)
	if err != nil || !issue {
		t.Fatalf("issue=%v err=%v", issue, err)
	}
	owed, err := f.engine.AllPendingRewards(alice)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if owed.Cmp(units(50)) != 0 {
		t.Fatalf("credited = %s, want 50", owed)
	}

	f.debt[alice] = usd(10_000)
	if err := f.engine.RefreshUser(alice); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := registered(t, f, alice); got != units(10).String() {
		t.Fatalf("requalified stake = %s", got)
	}
	f.clock.Advance(10)
	owed, err = f.engine.AllPendingRewards(alice)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if owed.Cmp(units(60)) != 0 {
		t.Fatalf("pending after requalify = %s, want 60", owed)
	}
}

func TestClaimVestsEligibleRewards(t *testing.T) {
	f := eligibleFixture(t)
	f.clock.Advance(10)
	claimed, err := f.engine.ClaimAll(bob, alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Cmp(units(10)) != 0 || f.vester.vested[alice].Cmp(units(10)) != 0 {
		t.Fatalf("claimed %s", claimed)
	}
	reserve, err := f.ledger.Balance(rewardTok, chefAddr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if reserve.Cmp(units(990)) != 0 {
		t.Fatalf("reserve = %s", reserve)
	}
}

func TestLockHooksRequireMFD(t *testing.T) {
	f := eligibleFixture(t)
	if err := f.engine.BeforeLockUpdate(alice, alice); !errors.Is(err, nativecommon.ErrNotMFD) {
		t.Fatalf("expected ErrNotMFD, got %v", err)
	}
	if err := f.engine.AfterLockUpdate(alice, alice); !errors.Is(err, nativecommon.ErrNotMFD) {
		t.Fatalf("expected ErrNotMFD, got %v", err)
	}
	f.clock.Advance(150)
	if err := f.engine.BeforeLockUpdate(mfdAddr, alice); err != nil {
		t.Fatalf("before lock update: %v", err)
	}
	if got := registered(t, f, alice); got != "0" {
		t.Fatalf("expired user still registered: %s", got)
	}
}

func TestClaimBountyRestrictedToManager(t *testing.T) {
	f := eligibleFixture(t)
	if _, err := f.engine.ClaimBounty(alice, alice, true); !errors.Is(err, nativecommon.ErrInsufficientPermission) {
		t.Fatalf("expected ErrInsufficientPermission, got %v", err)
	}
}

func TestLeveragerExemption(t *testing.T) {
	f := eligibleFixture(t)
	if err := f.engine.SetLeverager(owner, leverager); err != nil {
		t.Fatalf("set leverager: %v", err)
	}
	if err := f.engine.SetEligibilityExempt(alice, bob, true); !errors.Is(err, nativecommon.ErrInsufficientPermission) {
		t.Fatalf("expected ErrInsufficientPermission, got %v", err)
	}
	if err := f.engine.SetEligibilityExempt(leverager, bob, true); err != nil {
		t.Fatalf("exempt: %v", err)
	}
	f.debt[bob] = usd(10_000)
	f.locks.locks[bob] = []mfd.LockedBalance{{Amount: units(30), UnlockTime: start + 100, Multiplier: 1, Duration: 100}}
	f.register(t, depositR, bob, units(4))
	if got := registered(t, f, bob); got != "0" {
		t.Fatalf("exempt balance registered: %s", got)
	}
	if err := f.engine.SetEligibilityExempt(leverager, bob, false); err != nil {
		t.Fatalf("clear exempt: %v", err)
	}
	if err := f.engine.RefreshUser(bob); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := registered(t, f, bob); got != units(4).String() {
		t.Fatalf("balance after loop = %s", got)
	}
}
