package core

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"primenumbers/config"
	"primenumbers/core/events"
	"primenumbers/indexer"
	"primenumbers/native/bounty"
	nativecommon "primenumbers/native/common"
	"primenumbers/storage"
)

const (
	testStart = uint64(1_700_000_000)
	testDay   = uint64(24 * 60 * 60)
)

var (
	testOwner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testUser     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testHunter   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testBorrower = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func wholeTokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), nativecommon.Wad)
}

func usdPrice(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(100_000_000))
}

func testGenesis() config.Genesis {
	gen := config.DefaultGenesis()
	gen.StartTime = testStart
	return gen
}

func newTestProtocol(t *testing.T, db storage.Database, opts ...Option) *Protocol {
	t.Helper()
	if db == nil {
		db = storage.NewMemDB()
	}
	p, err := New(db, testOwner, testGenesis(), opts...)
	require.NoError(t, err)
	return p
}

// seedLendingLiquidity lets test accounts borrow USDC.
func seedLendingLiquidity(t *testing.T, p *Protocol) {
	t.Helper()
	require.NoError(t, p.Deposit(context.Background(), testOwner, "USDC", wholeTokens(1_000_000)))
}

func fund(t *testing.T, p *Protocol, to common.Address, tok string, amount *big.Int) {
	t.Helper()
	require.NoError(t, p.Mint(context.Background(), testOwner, tok, to, amount))
}

// lockLP provides reward and base liquidity for user and locks all the LP in
// tier. It returns the locked amount.
func lockLP(t *testing.T, p *Protocol, user common.Address, reward, base int64, tier uint64) *big.Int {
	t.Helper()
	ctx := context.Background()
	fund(t, p, user, "PRNT", wholeTokens(reward))
	fund(t, p, user, "WETH", wholeTokens(base))
	lp, err := p.ProvideLiquidity(ctx, user, wholeTokens(reward), wholeTokens(base))
	require.NoError(t, err)
	require.Positive(t, lp.Sign())
	require.NoError(t, p.Stake(ctx, user, lp, user, tier))
	return lp
}

// setupHunter makes hunter eligible: a long lock plus a small USDC borrow
// against WETH collateral.
func setupHunter(t *testing.T, p *Protocol, hunter common.Address) {
	t.Helper()
	ctx := context.Background()
	seedLendingLiquidity(t, p)
	lockLP(t, p, hunter, 2_000, 1, 3)
	fund(t, p, hunter, "WETH", wholeTokens(10))
	require.NoError(t, p.Deposit(ctx, hunter, "WETH", wholeTokens(10)))
	require.NoError(t, p.Borrow(ctx, hunter, "USDC", wholeTokens(1_000)))

	view, err := p.EligibilityOf(hunter)
	require.NoError(t, err)
	require.True(t, view.Eligible)
}

func pushRevenue(t *testing.T, p *Protocol, amount *big.Int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.Transfer(ctx, testOwner, "USDC", p.Addresses().MFD, amount))
	_, err := p.CollectRevenue(ctx, testOwner)
	require.NoError(t, err)
}

func ratio(num, den *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(num, den).Float64()
	return f
}

func TestNewSeedsGenesis(t *testing.T) {
	p := newTestProtocol(t, nil)

	require.Equal(t, uint64(1), p.Seq())
	require.Equal(t, testStart, p.Now())

	reserve, err := p.Balance("PRNT", p.Addresses().Bounty)
	require.NoError(t, err)
	require.Zero(t, reserve.Cmp(wholeTokens(100_000)))

	price, lpPrice, err := p.RewardPrice()
	require.NoError(t, err)
	require.Zero(t, price.Cmp(usdPrice(1)))
	require.Positive(t, lpPrice.Sign())

	base, err := p.BaseBounty()
	require.NoError(t, err)
	require.Zero(t, base.Cmp(wholeTokens(2)))
}

func TestNewRejectsInvalidGenesis(t *testing.T) {
	gen := testGenesis()
	gen.Compounder.CompoundFee = 5_000
	_, err := New(storage.NewMemDB(), testOwner, gen)
	require.Error(t, err)

	_, err = New(storage.NewMemDB(), common.Address{}, testGenesis())
	require.ErrorIs(t, err, nativecommon.ErrAddressZero)
}

func TestExpiredLockBounty(t *testing.T) {
	for _, tc := range []struct {
		name       string
		autoRelock bool
		wantLocks  int
	}{
		{name: "relock", autoRelock: true, wantLocks: 1},
		{name: "withdraw", autoRelock: false, wantLocks: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			p := newTestProtocol(t, nil)
			setupHunter(t, p, testHunter)

			// Roughly one million dollars of LP in the shortest tier.
			locked := lockLP(t, p, testUser, 500_000, 250, 0)
			if !tc.autoRelock {
				require.NoError(t, p.SetRelock(ctx, testUser, false))
			}
			pushRevenue(t, p, wholeTokens(10_000))

			_, err := p.AdvanceTime(ctx, 31*testDay)
			require.NoError(t, err)

			view, err := p.LockedBalances(testUser)
			require.NoError(t, err)
			require.Empty(t, view.LockData)
			require.Zero(t, view.Unlockable.Cmp(locked))

			quote, action, err := p.Quote(testUser)
			require.NoError(t, err)
			require.Equal(t, bounty.ActionExpiredLocks, action)
			base, err := p.BaseBounty()
			require.NoError(t, err)
			require.Positive(t, quote.Sign())
			require.Zero(t, quote.Cmp(base))

			before, err := p.EarnedBalances(testHunter)
			require.NoError(t, err)
			paid, err := p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
			require.NoError(t, err)
			require.Zero(t, paid.Cmp(quote))
			after, err := p.EarnedBalances(testHunter)
			require.NoError(t, err)
			gained := new(big.Int).Sub(after.TotalVesting, before.TotalVesting)
			require.Zero(t, gained.Cmp(paid))

			view, err = p.LockedBalances(testUser)
			require.NoError(t, err)
			require.Len(t, view.LockData, tc.wantLocks)
			require.Zero(t, view.Unlockable.Sign())
			if !tc.autoRelock {
				bal, err := p.Balance("DLP", testUser)
				require.NoError(t, err)
				require.Zero(t, bal.Cmp(locked))
			}

			again, _, err := p.Quote(testUser)
			require.NoError(t, err)
			require.Zero(t, again.Sign())
		})
	}
}

func TestQuoteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	lockLP(t, p, testUser, 10_000, 5, 0)
	_, err := p.AdvanceTime(ctx, 31*testDay)
	require.NoError(t, err)

	seq := p.Seq()
	first, firstAction, err := p.Quote(testUser)
	require.NoError(t, err)
	second, secondAction, err := p.Quote(testUser)
	require.NoError(t, err)
	require.Zero(t, first.Cmp(second))
	require.Equal(t, firstAction, secondAction)
	require.Equal(t, seq, p.Seq())

	view, err := p.LockedBalances(testUser)
	require.NoError(t, err)
	require.Positive(t, view.Unlockable.Sign())
}

func TestClaimBountyWhitelist(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	setupHunter(t, p, testHunter)
	lockLP(t, p, testUser, 10_000, 5, 0)
	_, err := p.AdvanceTime(ctx, 31*testDay)
	require.NoError(t, err)

	require.NoError(t, p.SetBountyWhitelist(ctx, testOwner, true))
	_, err = p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
	require.ErrorIs(t, err, nativecommon.ErrNotWhitelisted)

	view, err := p.LockedBalances(testUser)
	require.NoError(t, err)
	require.Positive(t, view.Unlockable.Sign())

	require.ErrorIs(t, p.SetBountyWhitelist(ctx, testHunter, true, testHunter), nativecommon.ErrNotOwner)
	require.NoError(t, p.SetBountyWhitelist(ctx, testOwner, true, testHunter))
	paid, err := p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
	require.NoError(t, err)
	require.Positive(t, paid.Sign())
}

func TestClaimBountyRejectsUnknownAction(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	setupHunter(t, p, testHunter)
	lockLP(t, p, testUser, 10_000, 5, 0)
	_, err := p.AdvanceTime(ctx, 31*testDay)
	require.NoError(t, err)

	_, err = p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAutocompound+1)
	require.ErrorIs(t, err, bounty.ErrActionTypeIndexOutOfBounds)
}

func TestClaimBountyRequiresEligibleHunter(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	lockLP(t, p, testUser, 10_000, 5, 0)
	_, err := p.AdvanceTime(ctx, 31*testDay)
	require.NoError(t, err)

	reserveBefore, err := p.Balance("PRNT", p.Addresses().Bounty)
	require.NoError(t, err)
	_, err = p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
	require.ErrorIs(t, err, bounty.ErrHunterNotEligible)
	reserveAfter, err := p.Balance("PRNT", p.Addresses().Bounty)
	require.NoError(t, err)
	require.Zero(t, reserveBefore.Cmp(reserveAfter))
}

func TestBaseBountyRisesAsPriceFalls(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)

	initial, err := p.BaseBounty()
	require.NoError(t, err)

	// Halving WETH halves the reward token price.
	require.NoError(t, p.SetAssetPrice(ctx, testOwner, "WETH", usdPrice(1_000)))
	halved, err := p.BaseBounty()
	require.NoError(t, err)
	require.Equal(t, 1, halved.Cmp(initial))
	require.Zero(t, halved.Cmp(new(big.Int).Mul(initial, big.NewInt(2))))

	// Selling into the pool lowers it further.
	_, err = p.Swap(ctx, testOwner, "PRNT", "WETH", wholeTokens(200_000), big.NewInt(1))
	require.NoError(t, err)
	dumped, err := p.BaseBounty()
	require.NoError(t, err)
	require.Equal(t, 1, dumped.Cmp(halved))

	require.ErrorIs(t, p.SetAssetPrice(ctx, testUser, "WETH", usdPrice(1)), nativecommon.ErrNotOwner)
	require.ErrorIs(t, p.SetAssetPrice(ctx, testOwner, "DOGE", usdPrice(1)), ErrUnknownFeed)
}

func TestLiquidationProtocolFee(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	seedLendingLiquidity(t, p)

	fund(t, p, testBorrower, "WETH", wholeTokens(10))
	require.NoError(t, p.Deposit(ctx, testBorrower, "WETH", wholeTokens(10)))
	require.NoError(t, p.Borrow(ctx, testBorrower, "USDC", wholeTokens(14_000)))

	_, err := p.Liquidate(ctx, testOwner, "WETH", "USDC", testBorrower, wholeTokens(1_000))
	require.Error(t, err)

	require.NoError(t, p.SetAssetPrice(ctx, testOwner, "WETH", usdPrice(1_500)))
	account, err := p.Account(testBorrower)
	require.NoError(t, err)
	require.Equal(t, -1, account.LiquidationUsd.Cmp(account.DebtUsd))

	res, err := p.Liquidate(ctx, testOwner, "WETH", "USDC", testBorrower, wholeTokens(5_000))
	require.NoError(t, err)
	bonus := new(big.Int).Sub(res.Seized, nativecommon.MulDiv(res.Seized, big.NewInt(10_000), big.NewInt(11_000)))
	require.InDelta(t, 0.075, ratio(res.ProtocolFee, bonus), 0.001)
	require.Zero(t, new(big.Int).Add(res.LiquidatorCollateral, res.ProtocolFee).Cmp(res.Seized))

	collected, err := p.CollectRevenue(ctx, testOwner)
	require.NoError(t, err)
	require.GreaterOrEqual(t, collected["WETH"].Cmp(res.ProtocolFee), 0)

	_, err = p.CollectRevenue(ctx, testBorrower)
	require.ErrorIs(t, err, nativecommon.ErrNotOwner)
}

func TestAutocompoundBounty(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	setupHunter(t, p, testHunter)
	lockLP(t, p, testUser, 20_000, 10, 0)
	require.NoError(t, p.SetAutocompound(ctx, testUser, true, 9_500))
	pushRevenue(t, p, wholeTokens(10_000))

	_, err := p.AdvanceTime(ctx, 2*testDay)
	require.NoError(t, err)

	claimable, err := p.ClaimableRewards(testUser)
	require.NoError(t, err)
	require.NotEmpty(t, claimable)

	quote, action, err := p.Quote(testUser)
	require.NoError(t, err)
	require.Equal(t, bounty.ActionAutocompound, action)
	require.Positive(t, quote.Sign())

	lockedBefore, err := p.LockedBalances(testUser)
	require.NoError(t, err)
	earnedBefore, err := p.EarnedBalances(testHunter)
	require.NoError(t, err)

	paid, err := p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAutocompound)
	require.NoError(t, err)
	require.InDelta(t, 1.0, ratio(paid, quote), 0.05)

	earnedAfter, err := p.EarnedBalances(testHunter)
	require.NoError(t, err)
	require.Zero(t, new(big.Int).Sub(earnedAfter.TotalVesting, earnedBefore.TotalVesting).Cmp(paid))
	lockedAfter, err := p.LockedBalances(testUser)
	require.NoError(t, err)
	require.Equal(t, 1, lockedAfter.Total.Cmp(lockedBefore.Total))

	// The minimum delay blocks a second compound straight away.
	again, _, err := p.Quote(testUser)
	require.NoError(t, err)
	require.Zero(t, again.Sign())
}

func TestSelfCompound(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	lockLP(t, p, testUser, 20_000, 10, 1)
	pushRevenue(t, p, wholeTokens(5_000))
	_, err := p.AdvanceTime(ctx, testDay)
	require.NoError(t, err)

	before, err := p.LockedBalances(testUser)
	require.NoError(t, err)
	lp, err := p.SelfCompound(ctx, testUser, 9_500)
	require.NoError(t, err)
	require.Positive(t, lp.Sign())
	after, err := p.LockedBalances(testUser)
	require.NoError(t, err)
	require.Zero(t, new(big.Int).Sub(after.Total, before.Total).Cmp(lp))
}

func TestRevertedOperationLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	seq := p.Seq()

	err := p.Transfer(ctx, testUser, "PRNT", testHunter, wholeTokens(1))
	require.Error(t, err)
	require.Equal(t, seq, p.Seq())

	now := p.Now()
	_, err = p.AdvanceTime(ctx, 0)
	require.ErrorIs(t, err, nativecommon.ErrInvalidNumber)
	require.Equal(t, now, p.Now())
}

func TestModulePause(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	fund(t, p, testUser, "USDC", wholeTokens(100))

	require.ErrorIs(t, p.SetModulePaused(ctx, testUser, ModuleLending, true), nativecommon.ErrNotOwner)
	require.NoError(t, p.SetModulePaused(ctx, testOwner, ModuleLending, true))
	err := p.Deposit(ctx, testUser, "USDC", wholeTokens(100))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.NoError(t, p.SetModulePaused(ctx, testOwner, ModuleLending, false))
	require.NoError(t, p.Deposit(ctx, testUser, "USDC", wholeTokens(100)))
}

func TestRestartRestoresState(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemDB()
	first := newTestProtocol(t, db)
	locked := lockLP(t, first, testUser, 10_000, 5, 2)
	require.NoError(t, first.SetAssetPrice(ctx, testOwner, "WETH", usdPrice(1_800)))
	_, err := first.AdvanceTime(ctx, 3*testDay)
	require.NoError(t, err)
	ownerPRNT, err := first.Balance("PRNT", testOwner)
	require.NoError(t, err)

	second := newTestProtocol(t, db)
	require.Equal(t, first.Seq(), second.Seq())
	require.Equal(t, first.Now(), second.Now())

	view, err := second.LockedBalances(testUser)
	require.NoError(t, err)
	require.Zero(t, view.Locked.Cmp(locked))

	price, err := second.AssetPrices().Price("WETH")
	require.NoError(t, err)
	require.Zero(t, price.Cmp(usdPrice(1_800)))

	restored, err := second.Balance("PRNT", testOwner)
	require.NoError(t, err)
	require.Zero(t, restored.Cmp(ownerPRNT))

	require.NoError(t, second.Transfer(ctx, testOwner, "PRNT", testUser, wholeTokens(1)))
	require.Equal(t, first.Seq()+1, second.Seq())
}

func TestRestartKeepsGatingAndPauses(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemDB()
	first := newTestProtocol(t, db)
	setupHunter(t, first, testHunter)
	lockLP(t, first, testUser, 10_000, 5, 0)
	_, err := first.AdvanceTime(ctx, 31*testDay)
	require.NoError(t, err)

	require.NoError(t, first.SetBountyWhitelist(ctx, testOwner, true))
	require.NoError(t, first.SetModulePaused(ctx, testOwner, ModuleLeverager, true))
	_, err = first.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
	require.ErrorIs(t, err, nativecommon.ErrNotWhitelisted)

	second := newTestProtocol(t, db)
	require.True(t, second.ModulePaused(ModuleLeverager))
	require.False(t, second.ModulePaused(ModuleLending))
	_, err = second.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
	require.ErrorIs(t, err, nativecommon.ErrNotWhitelisted)

	require.NoError(t, second.SetBountyWhitelist(ctx, testOwner, true, testHunter))
	paid, err := second.ClaimBounty(ctx, testHunter, testUser, bounty.ActionAuto)
	require.NoError(t, err)
	require.Positive(t, paid.Sign())
}

func TestPoolSwapsCannotForceMarketDisqualification(t *testing.T) {
	ctx := context.Background()
	p := newTestProtocol(t, nil)
	setupHunter(t, p, testHunter)

	// About $4,000 of LP against an $80,000 borrow leaves little headroom
	// over the 5% requirement.
	lockLP(t, p, testUser, 2_000, 1, 3)
	fund(t, p, testUser, "WETH", wholeTokens(60))
	require.NoError(t, p.Deposit(ctx, testUser, "WETH", wholeTokens(60)))
	require.NoError(t, p.Borrow(ctx, testUser, "USDC", wholeTokens(80_000)))

	view, err := p.EligibilityOf(testUser)
	require.NoError(t, err)
	require.True(t, view.Eligible)
	_, lpBefore, err := p.RewardPrice()
	require.NoError(t, err)

	out, err := p.Swap(ctx, testOwner, "PRNT", "WETH", wholeTokens(200_000), big.NewInt(1))
	require.NoError(t, err)
	spot, lpAfter, err := p.RewardPrice()
	require.NoError(t, err)
	require.Equal(t, -1, spot.Cmp(usdPrice(1)))
	require.GreaterOrEqual(t, lpAfter.Cmp(lpBefore), 0)

	view, err = p.EligibilityOf(testUser)
	require.NoError(t, err)
	require.True(t, view.Eligible)
	quote, _, err := p.Quote(testUser)
	require.NoError(t, err)
	require.Zero(t, quote.Sign())
	_, err = p.ClaimBounty(ctx, testHunter, testUser, bounty.ActionIneligible)
	require.ErrorIs(t, err, bounty.ErrQuoteFail)

	_, err = p.Swap(ctx, testOwner, "WETH", "PRNT", out, big.NewInt(1))
	require.NoError(t, err)
	view, err = p.EligibilityOf(testUser)
	require.NoError(t, err)
	require.True(t, view.Eligible)
}

func TestEventSinkRecordsCommittedTransactions(t *testing.T) {
	ctx := context.Background()
	ix, err := indexer.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	p := newTestProtocol(t, nil, WithEventSink(ix))
	last, err := ix.LastSeq(ctx)
	require.NoError(t, err)
	require.Equal(t, p.Seq(), last)

	require.NoError(t, p.Transfer(ctx, testOwner, "PRNT", testUser, wholeTokens(7)))
	require.Error(t, p.Transfer(ctx, testUser, "PRNT", testHunter, wholeTokens(100)))

	records, err := ix.Query(ctx, indexer.Filter{
		Type:    events.TypeTokenTransfer,
		Subject: strings.ToLower(testOwner.Hex()),
	})
	require.NoError(t, err)
	require.NotEmpty(t, records)
	require.Equal(t, "token.transfer", records[0].Op)
	require.Equal(t, p.Seq(), records[0].TxSeq)
	last, err = ix.LastSeq(ctx)
	require.NoError(t, err)
	require.Equal(t, p.Seq(), last)
	attrs, err := records[0].Decode()
	require.NoError(t, err)
	require.Equal(t, wholeTokens(7).String(), attrs["amount"])
}
