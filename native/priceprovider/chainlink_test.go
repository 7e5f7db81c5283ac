package priceprovider

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "primenumbers/native/common"
)

func TestChainlinkAdapterChecks(t *testing.T) {
	clock := nativecommon.NewManualClock(1_000_000)
	feed := NewManualFeed(8, clock)
	adapter := NewChainlinkAdapter(feed, 3_600, clock)

	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for empty feed, got %v", err)
	}

	feed.SetAnswer(big.NewInt(2_000_00000000))
	price, err := adapter.LatestAnswer()
	if err != nil {
		t.Fatalf("latest answer: %v", err)
	}
	if price.Cmp(big.NewInt(2_000_00000000)) != 0 {
		t.Fatalf("unexpected price %s", price)
	}

	clock.Advance(3_601)
	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice after heartbeat, got %v", err)
	}

	feed.SetRound(RoundData{RoundID: 9, Answer: big.NewInt(1), UpdatedAt: clock.Now(), AnsweredInRound: 8})
	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice for carried round, got %v", err)
	}

	feed.SetRound(RoundData{RoundID: 10, Answer: big.NewInt(1), AnsweredInRound: 10})
	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrRoundNotComplete) {
		t.Fatalf("expected ErrRoundNotComplete, got %v", err)
	}

	feed.SetRound(RoundData{RoundID: 11, Answer: big.NewInt(-5), UpdatedAt: clock.Now(), AnsweredInRound: 11})
	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative answer, got %v", err)
	}
}

func TestChainlinkAdapterSequencer(t *testing.T) {
	clock := nativecommon.NewManualClock(1_000_000)
	feed := NewManualFeed(18, clock)
	sequencer := NewManualFeed(0, clock)
	adapter := NewChainlinkAdapter(feed, 86_400, clock).WithSequencer(sequencer, 3_600)

	feed.SetAnswer(new(big.Int).Mul(big.NewInt(3), nativecommon.Wad))
	sequencer.SetAnswer(big.NewInt(1))
	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrSequencerDown) {
		t.Fatalf("expected ErrSequencerDown, got %v", err)
	}

	sequencer.SetAnswer(big.NewInt(0))
	clock.Advance(60)
	if _, err := adapter.LatestAnswer(); !errors.Is(err, ErrGracePeriodNotOver) {
		t.Fatalf("expected ErrGracePeriodNotOver, got %v", err)
	}

	clock.Advance(3_600)
	price, err := adapter.LatestAnswer()
	if err != nil {
		t.Fatalf("latest answer: %v", err)
	}
	if price.Cmp(big.NewInt(3_00000000)) != 0 {
		t.Fatalf("expected 18 decimal answer scaled to 8, got %s", price)
	}
}
