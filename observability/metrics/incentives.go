package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IncentiveMetrics tracks the incentive engine: disqualifications, bounties,
// compounds, vesting and emissions.
type IncentiveMetrics struct {
	disqualified     *prometheus.CounterVec
	forfeited        prometheus.Counter
	bountiesClaimed  *prometheus.CounterVec
	bountyPaid       prometheus.Counter
	bountyReserveOut prometheus.Counter
	compounds        prometheus.Counter
	compoundFees     prometheus.Counter
	vested           prometheus.Counter
	emissionsClaimed prometheus.Counter
	rewardDeposits   prometheus.Counter
	liquidations     prometheus.Counter
	txFailures       *prometheus.CounterVec
	eligibleUsers    prometheus.Gauge
	baseBounty       prometheus.Gauge
	emissionRate     prometheus.Gauge
}

var (
	incentivesOnce     sync.Once
	incentivesRegistry *IncentiveMetrics
)

// Incentives returns the process-wide incentive metrics registry.
func Incentives() *IncentiveMetrics {
	incentivesOnce.Do(func() {
		incentivesRegistry = &IncentiveMetrics{
			disqualified: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "prnt_disqualifications_total",
				Help: "Count of users removed from emissions by reason.",
			}, []string{"reason"}),
			forfeited: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_forfeited_emissions",
				Help: "Emissions (whole PRNT) returned to the budget on disqualification.",
			}),
			bountiesClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "prnt_bounties_claimed_total",
				Help: "Count of bounty claims by action type.",
			}, []string{"action"}),
			bountyPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_bounty_paid",
				Help: "Bounties (whole PRNT) vested to hunters.",
			}),
			bountyReserveOut: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_bounty_reserve_empty_total",
				Help: "Number of times the bounty reserve ran dry.",
			}),
			compounds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_compounds_total",
				Help: "Count of compounded reward claims.",
			}),
			compoundFees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_compound_fees",
				Help: "Compound fees (whole PRNT) forwarded to the bounty reserve.",
			}),
			vested: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_vested",
				Help: "Tokens (whole PRNT) placed into vesting.",
			}),
			emissionsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_emissions_claimed",
				Help: "Emissions (whole PRNT) claimed from the controller.",
			}),
			rewardDeposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_reward_deposits",
				Help: "Reward budget (whole PRNT) deposited into the controller.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "prnt_liquidations_total",
				Help: "Count of lending liquidations.",
			}),
			txFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "prnt_tx_failures_total",
				Help: "Count of reverted protocol transactions by operation.",
			}, []string{"op"}),
			eligibleUsers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "prnt_last_refresh_eligible",
				Help: "Outcome of the most recent eligibility refresh (1 eligible, 0 not).",
			}),
			baseBounty: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "prnt_base_bounty",
				Help: "Most recently quoted base bounty in whole PRNT.",
			}),
			emissionRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "prnt_rewards_per_second",
				Help: "Current emission rate in whole PRNT per second.",
			}),
		}
		prometheus.MustRegister(
			incentivesRegistry.disqualified,
			incentivesRegistry.forfeited,
			incentivesRegistry.bountiesClaimed,
			incentivesRegistry.bountyPaid,
			incentivesRegistry.bountyReserveOut,
			incentivesRegistry.compounds,
			incentivesRegistry.compoundFees,
			incentivesRegistry.vested,
			incentivesRegistry.emissionsClaimed,
			incentivesRegistry.rewardDeposits,
			incentivesRegistry.liquidations,
			incentivesRegistry.txFailures,
			incentivesRegistry.eligibleUsers,
			incentivesRegistry.baseBounty,
			incentivesRegistry.emissionRate,
		)
	})
	return incentivesRegistry
}

var wei = new(big.Float).SetInt(big.NewInt(1_000_000_000_000_000_000))

// tokens converts an 18 decimal amount to a float of whole tokens.
func tokens(amount *big.Int) float64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), wei).Float64()
	return value
}

func (m *IncentiveMetrics) ObserveDisqualified(reason string, forfeited *big.Int) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.disqualified.WithLabelValues(reason).Inc()
	m.forfeited.Add(tokens(forfeited))
}

func (m *IncentiveMetrics) ObserveBountyClaimed(action string, bounty *big.Int) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.bountiesClaimed.WithLabelValues(action).Inc()
	m.bountyPaid.Add(tokens(bounty))
}

func (m *IncentiveMetrics) ObserveBountyReserveEmpty() {
	if m == nil {
		return
	}
	m.bountyReserveOut.Inc()
}

func (m *IncentiveMetrics) ObserveCompound(fee *big.Int) {
	if m == nil {
		return
	}
	m.compounds.Inc()
	m.compoundFees.Add(tokens(fee))
}

func (m *IncentiveMetrics) ObserveVested(amount *big.Int) {
	if m == nil {
		return
	}
	m.vested.Add(tokens(amount))
}

func (m *IncentiveMetrics) ObserveEmissionsClaimed(amount *big.Int) {
	if m == nil {
		return
	}
	m.emissionsClaimed.Add(tokens(amount))
}

func (m *IncentiveMetrics) ObserveRewardDeposit(amount *big.Int) {
	if m == nil {
		return
	}
	m.rewardDeposits.Add(tokens(amount))
}

func (m *IncentiveMetrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

func (m *IncentiveMetrics) ObserveTxFailure(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.txFailures.WithLabelValues(op).Inc()
}

func (m *IncentiveMetrics) SetLastRefreshEligible(eligible bool) {
	if m == nil {
		return
	}
	if eligible {
		m.eligibleUsers.Set(1)
		return
	}
	m.eligibleUsers.Set(0)
}

func (m *IncentiveMetrics) SetBaseBounty(amount *big.Int) {
	if m == nil {
		return
	}
	m.baseBounty.Set(tokens(amount))
}

func (m *IncentiveMetrics) SetEmissionRate(rate *big.Int) {
	if m == nil {
		return
	}
	m.emissionRate.Set(tokens(rate))
}
