package bounty

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/state"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/mfd"
	"primenumbers/native/token"
	"primenumbers/storage"
)

var (
	owner      = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	bountyAddr = common.HexToAddress("0x0000000000000000000000000000000000000e02")
	mfdAddr    = common.HexToAddress("0x0000000000000000000000000000000000000e03")
	hunter     = common.HexToAddress("0x0000000000000000000000000000000000000f01")
	target     = common.HexToAddress("0x0000000000000000000000000000000000000f02")
)

func units(v int64) *big.Int { return new(big.Int).Mul(big.NewInt(v), nativecommon.Wad) }

func usd(v int64) *big.Int { return new(big.Int).Mul(big.NewInt(v), big.NewInt(100_000_000)) }

// stubLocker reports expired locks for users in expired and clears them when
// executed.
type stubLocker struct {
	ledger  *token.Ledger
	expired map[common.Address]bool
	locked  map[common.Address]*big.Int
	vested  map[common.Address]*big.Int
}

func (s *stubLocker) ClaimBounty(caller, user common.Address, execute bool) (bool, error) {
	if caller != bountyAddr {
		return false, nativecommon.ErrInsufficientPermission
	}
	issue := s.expired[user]
	if issue && execute {
		delete(s.expired, user)
	}
	return issue, nil
}

func (s *stubLocker) LockedBalances(user common.Address) (*mfd.LockedBalancesView, error) {
	locked := big.NewInt(0)
	if v, ok := s.locked[user]; ok {
		locked.Set(v)
	}
	return &mfd.LockedBalancesView{Locked: locked}, nil
}

func (s *stubLocker) VestTokens(caller, user common.Address, amount *big.Int, withPenalty bool) error {
	if err := s.ledger.Transfer("PRNT", caller, mfdAddr, amount); err != nil {
		return err
	}
	if s.vested[user] == nil {
		s.vested[user] = big.NewInt(0)
	}
	s.vested[user].Add(s.vested[user], amount)
	return nil
}

type stubEmissions map[common.Address]bool

func (s stubEmissions) ClaimBounty(caller, user common.Address, execute bool) (bool, error) {
	issue := s[user]
	if issue && execute {
		delete(s, user)
	}
	return issue, nil
}

type stubCompounder struct {
	fees map[common.Address]*big.Int
	err  error
}

func (s *stubCompounder) ClaimCompound(caller, user common.Address, execute bool, slippage uint64) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	fee, ok := s.fees[user]
	if !ok {
		return big.NewInt(0), nil
	}
	if execute {
		delete(s.fees, user)
	}
	return new(big.Int).Set(fee), nil
}

type stubPrices struct {
	token     *big.Int
	reference *big.Int
	lp        *big.Int
	err       error
}

func (s *stubPrices) GetTokenPriceUsd() (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.token), nil
}

func (s *stubPrices) ReferenceTokenPriceUsd() (*big.Int, error) {
	if s.reference == nil {
		return nil, errors.New("no reference window")
	}
	return new(big.Int).Set(s.reference), nil
}

func (s *stubPrices) GetLpTokenPriceUsd() (*big.Int, error) { return new(big.Int).Set(s.lp), nil }

type stubEligibility map[common.Address]bool

func (s stubEligibility) IsEligibleForRewards(user common.Address) bool { return s[user] }

type fixture struct {
	engine     *Engine
	mgr        *state.Manager
	ledger     *token.Ledger
	pauses     *nativecommon.PauseRegistry
	locker     *stubLocker
	emissions  stubEmissions
	compounder *stubCompounder
	prices     *stubPrices
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(mgr)
	f := &fixture{
		engine: NewEngine(owner, bountyAddr, mgr, ledger),
		mgr:    mgr,
		ledger: ledger,
		pauses: nativecommon.NewPauseRegistry(),
		locker: &stubLocker{
			ledger:  ledger,
			expired: make(map[common.Address]bool),
			locked:  map[common.Address]*big.Int{hunter: units(10)},
			vested:  make(map[common.Address]*big.Int),
		},
		emissions:  stubEmissions{},
		compounder: &stubCompounder{fees: make(map[common.Address]*big.Int)},
		prices:     &stubPrices{token: usd(2), lp: usd(50)},
	}
	f.engine.SetPauses(f.pauses)
	cfg := Config{
		RewardToken:         "prnt",
		MinStakeAmount:      usd(100),
		BaseBountyUsdTarget: usd(10),
		MaxBaseBounty:       units(100),
	}
	deps := Dependencies{
		Locker:      f.locker,
		Emissions:   f.emissions,
		Compounder:  f.compounder,
		Prices:      f.prices,
		Eligibility: stubEligibility{hunter: true},
	}
	if err := f.engine.Configure(owner, cfg, deps); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := ledger.Mint("PRNT", bountyAddr, units(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return f
}

func TestBaseBountyRisesAsPriceFalls(t *testing.T) {
	f := newFixture(t)
	var last *big.Int
	for _, cents := range []int64{400, 200, 100, 25, 5} {
		f.prices.token = new(big.Int).Mul(big.NewInt(cents), big.NewInt(1_000_000))
		base, err := f.engine.GetBaseBounty()
		if err != nil {
			t.Fatalf("base bounty: %v", err)
		}
		if last != nil && base.Cmp(last) < 0 {
			t.Fatalf("base bounty fell from %s to %s as price fell", last, base)
		}
		last = base
	}
	if last.Cmp(units(100)) != 0 {
		t.Fatalf("base bounty = %s, want cap", last)
	}
	f.prices.token = usd(2)
	base, _ := f.engine.GetBaseBounty()
	if base.Cmp(units(5)) != 0 {
		t.Fatalf("base bounty at $2 = %s, want 5", base)
	}
}

func TestDrawdownBoost(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetBoostCurve(owner, DrawdownBoost{MaxBoostBps: 15_000}); err != nil {
		t.Fatalf("curve: %v", err)
	}
	f.prices.token = usd(1)
	f.prices.reference = usd(2)
	base, err := f.engine.GetBaseBounty()
	if err != nil {
		t.Fatalf("base bounty: %v", err)
	}
	if base.Cmp(units(15)) != 0 {
		t.Fatalf("boosted = %s, want 15", base)
	}
	f.prices.reference = usd(1)
	if base, _ = f.engine.GetBaseBounty(); base.Cmp(units(10)) != 0 {
		t.Fatalf("unboosted = %s, want 10", base)
	}
}

func TestDrawdownBoostCap(t *testing.T) {
	base, current, reference := units(10), usd(1), usd(4)
	if got := (DrawdownBoost{MaxBoostBps: 12_000}).Apply(base, current, reference); got.Cmp(units(12)) != 0 {
		t.Fatalf("capped boost = %s, want 12", got)
	}
	for _, cap := range []uint64{0, 5_000, 10_000} {
		if got := (DrawdownBoost{MaxBoostBps: cap}).Apply(base, current, reference); got.Cmp(base) != 0 {
			t.Fatalf("cap %d boosted to %s, want base", cap, got)
		}
	}
}

func TestQuoteSelectsFirstApplicableAction(t *testing.T) {
	f := newFixture(t)
	if bounty, action := f.engine.Quote(target); bounty.Sign() != 0 || action != ActionAuto {
		t.Fatalf("quote for idle user = %s/%d", bounty, action)
	}
	f.emissions[target] = true
	f.locker.expired[target] = true
	first, action := f.engine.Quote(target)
	if action != ActionExpiredLocks || first.Cmp(units(5)) != 0 {
		t.Fatalf("quote = %s/%d", first, action)
	}
	second, again := f.engine.Quote(target)
	if second.Cmp(first) != 0 || again != action {
		t.Fatalf("quote not idempotent: %s/%d then %s/%d", first, action, second, again)
	}
	delete(f.locker.expired, target)
	if _, action := f.engine.Quote(target); action != ActionIneligible {
		t.Fatalf("expected market disqualification, got %d", action)
	}
	f.prices.err = errors.New("stale")
	if bounty, _ := f.engine.Quote(target); bounty.Sign() != 0 {
		t.Fatalf("failed quote returned %s", bounty)
	}
}

func TestClaimPaysHunterAndZeroesQuote(t *testing.T) {
	f := newFixture(t)
	f.locker.expired[target] = true
	quoted, _ := f.engine.Quote(target)
	paid, err := f.engine.Claim(hunter, target, ActionAuto)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(quoted) != 0 || f.locker.vested[hunter].Cmp(quoted) != 0 {
		t.Fatalf("paid %s vested %s quoted %s", paid, f.locker.vested[hunter], quoted)
	}
	if bounty, _ := f.engine.Quote(target); bounty.Sign() != 0 {
		t.Fatalf("quote after claim = %s", bounty)
	}
	if _, err := f.engine.Claim(hunter, target, ActionExpiredLocks); !errors.Is(err, ErrQuoteFail) {
		t.Fatalf("expected ErrQuoteFail, got %v", err)
	}
}

func TestClaimValidation(t *testing.T) {
	f := newFixture(t)
	f.locker.expired[target] = true
	if _, err := f.engine.Claim(hunter, target, 4); !errors.Is(err, ErrActionTypeIndexOutOfBounds) {
		t.Fatalf("expected ErrActionTypeIndexOutOfBounds, got %v", err)
	}
	if _, err := f.engine.Claim(target, target, ActionAuto); !errors.Is(err, ErrHunterNotEligible) {
		t.Fatalf("expected ErrHunterNotEligible, got %v", err)
	}
	if _, _, err := f.engine.ExecuteBounty(hunter, target, true, ActionExpiredLocks); !errors.Is(err, nativecommon.ErrInsufficientPermission) {
		t.Fatalf("expected ErrInsufficientPermission, got %v", err)
	}
}

func TestWhitelistGating(t *testing.T) {
	f := newFixture(t)
	f.locker.expired[target] = true
	if err := f.engine.ChangeWL(owner, true); err != nil {
		t.Fatalf("change wl: %v", err)
	}
	if _, err := f.engine.Claim(hunter, target, ActionAuto); !errors.Is(err, nativecommon.ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}
	if err := f.engine.AddAddressToWL(owner, hunter, true); err != nil {
		t.Fatalf("add wl: %v", err)
	}
	if _, err := f.engine.Claim(hunter, target, ActionAuto); err != nil {
		t.Fatalf("claim after whitelisting: %v", err)
	}
}

func TestGatingAndPauseLiveInState(t *testing.T) {
	f := newFixture(t)
	f.engine.SetPauses(nativecommon.NewStoredPauseRegistry(f.mgr))
	if err := f.engine.ChangeWL(owner, true); err != nil {
		t.Fatalf("change wl: %v", err)
	}
	if err := f.engine.Pause(owner); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// A reverted toggle leaves the gate engaged.
	if err := f.mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := f.engine.ChangeWL(owner, false); err != nil {
		t.Fatalf("change wl: %v", err)
	}
	f.mgr.Rollback()

	reloaded := NewEngine(owner, bountyAddr, f.mgr, f.ledger)
	active, err := reloaded.WhitelistActive()
	if err != nil {
		t.Fatalf("whitelist active: %v", err)
	}
	if !active {
		t.Fatalf("whitelist gating lost on reload")
	}
	allowed, err := reloaded.IsWhitelisted(hunter)
	if err != nil || allowed {
		t.Fatalf("expected hunter gated, allowed=%v err=%v", allowed, err)
	}
	if !nativecommon.NewStoredPauseRegistry(f.mgr).IsPaused(moduleName) {
		t.Fatalf("pause lost on reload")
	}
}

func TestAutocompoundPaysHunterShare(t *testing.T) {
	f := newFixture(t)
	f.compounder.fees[target] = units(100)
	bounty, action := f.engine.Quote(target)
	if action != ActionAutocompound || bounty.Cmp(units(30)) != 0 {
		t.Fatalf("quote = %s/%d", bounty, action)
	}
	if err := f.engine.SetHunterShare(owner, 0); !errors.Is(err, nativecommon.ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	if err := f.engine.SetHunterShare(owner, 10_001); !errors.Is(err, nativecommon.ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	if err := f.engine.SetHunterShare(owner, 5_000); err != nil {
		t.Fatalf("hunter share: %v", err)
	}
	paid, err := f.engine.Claim(hunter, target, ActionAutocompound)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(units(50)) != 0 {
		t.Fatalf("paid = %s, want 50", paid)
	}
}

func TestShortReservePaysRemainderAndPauses(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.RecoverERC20(owner, "PRNT", units(997)); err != nil {
		t.Fatalf("recover: %v", err)
	}
	f.locker.expired[target] = true
	paid, err := f.engine.Claim(hunter, target, ActionAuto)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(units(3)) != 0 {
		t.Fatalf("paid = %s, want remaining reserve", paid)
	}
	if !f.pauses.IsPaused(moduleName) {
		t.Fatalf("manager not paused after reserve ran dry")
	}
	if _, err := f.engine.Claim(hunter, target, ActionAuto); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := f.engine.Unpause(owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
}
