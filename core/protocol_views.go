package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/native/lending"
	"primenumbers/native/mfd"
	"primenumbers/observability/metrics"
)

// EligibilityView summarises whether a user currently earns emissions.
type EligibilityView struct {
	Eligible         bool
	RequiredUsd      *big.Int
	LockedUsd        *big.Int
	LastEligibleTime uint64
	// Cached is the status recorded at the user's last refresh.
	Cached   bool
	DqTime   uint64
	Exempted bool
}

// Quote evaluates the bounty claimable against user without changing state.
// A zero bounty means nothing is actionable.
func (p *Protocol) Quote(user common.Address) (*big.Int, uint64, error) {
	var (
		amount     *big.Int
		actionType uint64
	)
	err := p.View(func() error {
		amount, actionType = p.bounty.Quote(user)
		return nil
	})
	return amount, actionType, err
}

// BaseBounty returns the current base bounty in reward tokens.
func (p *Protocol) BaseBounty() (*big.Int, error) {
	var amount *big.Int
	err := p.View(func() error {
		var err error
		amount, err = p.bounty.GetBaseBounty()
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.Incentives().SetBaseBounty(amount)
	return amount, nil
}

// LockedBalances returns user's lock entries.
func (p *Protocol) LockedBalances(user common.Address) (*mfd.LockedBalancesView, error) {
	var view *mfd.LockedBalancesView
	err := p.View(func() error {
		var err error
		view, err = p.mfd.LockedBalances(user)
		return err
	})
	return view, err
}

// EarnedBalances returns user's vesting and unlocked reward tokens.
func (p *Protocol) EarnedBalances(user common.Address) (*mfd.EarnedBalancesView, error) {
	var view *mfd.EarnedBalancesView
	err := p.View(func() error {
		var err error
		view, err = p.mfd.EarnedBalances(user)
		return err
	})
	return view, err
}

// PendingEmissions returns the emissions user could claim across all pools.
func (p *Protocol) PendingEmissions(user common.Address) (*big.Int, error) {
	var pending *big.Int
	err := p.View(func() error {
		var err error
		pending, err = p.chef.AllPendingRewards(user)
		return err
	})
	return pending, err
}

// ClaimableRewards returns user's accrued revenue rewards per token.
func (p *Protocol) ClaimableRewards(user common.Address) ([]mfd.RewardAmount, error) {
	var rewards []mfd.RewardAmount
	err := p.View(func() error {
		var err error
		rewards, err = p.mfd.ClaimableRewards(user)
		return err
	})
	return rewards, err
}

// EligibilityOf reports user's live and cached eligibility.
func (p *Protocol) EligibilityOf(user common.Address) (*EligibilityView, error) {
	view := new(EligibilityView)
	err := p.View(func() error {
		var err error
		if view.RequiredUsd, err = p.eligibility.RequiredUsdValue(user); err != nil {
			return err
		}
		if view.LockedUsd, err = p.eligibility.LockedUsdValue(user); err != nil {
			return err
		}
		if view.Exempted, err = p.eligibility.IsExempt(user); err != nil {
			return err
		}
		view.Eligible = p.eligibility.IsEligibleForRewards(user)
		view.LastEligibleTime = p.eligibility.LastEligibleTime(user)
		st, err := p.eligibility.State(user)
		if err != nil {
			return err
		}
		view.Cached = st.LastEligibleStatus
		view.DqTime = st.DqTime
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Balance returns addr's wallet balance of tok.
func (p *Protocol) Balance(tok string, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := p.View(func() error {
		var err error
		bal, err = p.ledger.Balance(tok, addr)
		return err
	})
	return bal, err
}

// Account returns user's lending position in USD.
func (p *Protocol) Account(user common.Address) (*lending.AccountView, error) {
	var view *lending.AccountView
	err := p.View(func() error {
		var err error
		view, err = p.lending.AccountView(user)
		return err
	})
	return view, err
}

// Market returns the state of a lending market.
func (p *Protocol) Market(asset string) (*lending.MarketView, error) {
	var view *lending.MarketView
	err := p.View(func() error {
		var err error
		view, err = p.lending.MarketView(asset)
		return err
	})
	return view, err
}

// RewardPrice returns the reward token and LP prices in USD.
func (p *Protocol) RewardPrice() (*big.Int, *big.Int, error) {
	var tokenPrice, lpPrice *big.Int
	err := p.View(func() error {
		var err error
		if tokenPrice, err = p.prices.GetTokenPriceUsd(); err != nil {
			return err
		}
		lpPrice, err = p.prices.GetLpTokenPriceUsd()
		return err
	})
	return tokenPrice, lpPrice, err
}
