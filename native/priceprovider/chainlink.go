package priceprovider

import (
	"errors"
	"math/big"
	"sync"

	nativecommon "primenumbers/native/common"
)

var (
	ErrStalePrice         = errors.New("priceprovider: stale price")
	ErrRoundNotComplete   = errors.New("priceprovider: round not complete")
	ErrInvalidPrice       = errors.New("priceprovider: invalid price")
	ErrSequencerDown      = errors.New("priceprovider: sequencer down")
	ErrGracePeriodNotOver = errors.New("priceprovider: grace period not over")
)

// RoundData mirrors the answer of an aggregator round.
type RoundData struct {
	RoundID         uint64
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound uint64
}

// Aggregator is a price feed reporting the latest completed round.
type Aggregator interface {
	LatestRoundData() (RoundData, error)
	Decimals() uint8
}

// ManualFeed is an in-process aggregator whose answers are pushed by an
// operator. Sequencer uptime feeds use answer 0 for up and 1 for down.
type ManualFeed struct {
	mu       sync.RWMutex
	decimals uint8
	clock    nativecommon.Clock
	round    RoundData
}

// NewManualFeed creates a feed that timestamps answers with clock.
func NewManualFeed(decimals uint8, clock nativecommon.Clock) *ManualFeed {
	return &ManualFeed{decimals: decimals, clock: clock}
}

// SetAnswer publishes a new completed round.
func (f *ManualFeed) SetAnswer(answer *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := uint64(0)
	if f.clock != nil {
		now = f.clock.Now()
	}
	next := f.round.RoundID + 1
	f.round = RoundData{
		RoundID:         next,
		Answer:          nativecommon.Copy(answer),
		StartedAt:       now,
		UpdatedAt:       now,
		AnsweredInRound: next,
	}
}

// SetRound replaces the latest round verbatim.
func (f *ManualFeed) SetRound(round RoundData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	round.Answer = nativecommon.Copy(round.Answer)
	f.round = round
}

// LatestRoundData satisfies Aggregator.
func (f *ManualFeed) LatestRoundData() (RoundData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := f.round
	out.Answer = nativecommon.Copy(f.round.Answer)
	return out, nil
}

// Decimals satisfies Aggregator.
func (f *ManualFeed) Decimals() uint8 {
	return f.decimals
}

// ChainlinkAdapter validates aggregator rounds and normalises answers to 8
// decimals. Every failed check is terminal; callers never receive a stale or
// partial answer.
type ChainlinkAdapter struct {
	feed        Aggregator
	sequencer   Aggregator
	heartbeat   uint64
	gracePeriod uint64
	clock       nativecommon.Clock
}

// NewChainlinkAdapter wraps feed with a heartbeat in seconds.
func NewChainlinkAdapter(feed Aggregator, heartbeat uint64, clock nativecommon.Clock) *ChainlinkAdapter {
	return &ChainlinkAdapter{feed: feed, heartbeat: heartbeat, clock: clock}
}

// WithSequencer enables the L2 sequencer uptime check.
func (a *ChainlinkAdapter) WithSequencer(sequencer Aggregator, gracePeriod uint64) *ChainlinkAdapter {
	a.sequencer = sequencer
	a.gracePeriod = gracePeriod
	return a
}

// LatestAnswer returns the validated price with 8 decimals.
func (a *ChainlinkAdapter) LatestAnswer() (*big.Int, error) {
	if a == nil || a.feed == nil {
		return nil, ErrInvalidPrice
	}
	now := a.clock.Now()
	if a.sequencer != nil {
		status, err := a.sequencer.LatestRoundData()
		if err != nil {
			return nil, err
		}
		if status.Answer != nil && status.Answer.Cmp(big.NewInt(1)) == 0 {
			return nil, ErrSequencerDown
		}
		if now < status.StartedAt || now-status.StartedAt <= a.gracePeriod {
			return nil, ErrGracePeriodNotOver
		}
	}
	round, err := a.feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if round.UpdatedAt == 0 {
		return nil, ErrRoundNotComplete
	}
	if round.AnsweredInRound < round.RoundID {
		return nil, ErrStalePrice
	}
	if now > round.UpdatedAt && now-round.UpdatedAt > a.heartbeat {
		return nil, ErrStalePrice
	}
	return scaleDecimals(round.Answer, a.feed.Decimals(), nativecommon.PriceDecimals), nil
}

func scaleDecimals(v *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(v)
	switch {
	case from > to:
		return out.Quo(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil))
	case from < to:
		return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil))
	default:
		return out
	}
}
