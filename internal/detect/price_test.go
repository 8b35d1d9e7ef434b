package detect

import (
	"context"
	"testing"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

func TestPriceAnalyzer_LegitimateSmallSwapNoEvent(t *testing.T) {
	a := NewPriceAnalyzer(25, 500, 1000)
	tx := TransactionContext{
		Events: []chainevent.Event{
			{Kind: chainevent.KindSwapExecuted, Swap: &chainevent.SwapExecuted{
				PoolID: "p1", AmountIn: 100_000_000, AmountOut: 99_700_000,
				PriceImpactBps: 10, ReserveAAfter: 10_000_000_000, ReserveBAfter: 10_000_000_000,
			}},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no event for a legitimate small swap, got %v err=%v", events, err)
	}
}

func TestPriceAnalyzer_PumpPatternLow(t *testing.T) {
	a := NewPriceAnalyzer(25, 500, 1000)
	mkSwap := func() *chainevent.SwapExecuted {
		return &chainevent.SwapExecuted{
			PoolID: "p1", TokenInIsA: true, AmountIn: 2_000_000, PriceImpactBps: 200,
			ReserveAAfter: 10_000_000, ReserveBAfter: 50_000_000,
		}
	}
	tx := TransactionContext{
		Digest: "txPump",
		Events: []chainevent.Event{
			{Kind: chainevent.KindSwapExecuted, Swap: mkSwap()},
			{Kind: chainevent.KindSwapExecuted, Swap: mkSwap()},
			{Kind: chainevent.KindSwapExecuted, Swap: mkSwap()},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Level != risk.LevelLow {
		t.Fatalf("level = %v, want low", ev.Level)
	}
	if ev.Detail["consecutive_same_direction_count"] != 3 {
		t.Fatalf("consecutive_same_direction_count = %v, want 3", ev.Detail["consecutive_same_direction_count"])
	}
}

func TestPriceAnalyzer_DirectImpactMonotone(t *testing.T) {
	a := NewPriceAnalyzer(25, 500, 1000)
	mk := func(impact uint64) TransactionContext {
		return TransactionContext{
			Events: []chainevent.Event{
				{Kind: chainevent.KindSwapExecuted, Swap: &chainevent.SwapExecuted{
					PoolID: "p1", AmountIn: 300_000, PriceImpactBps: impact,
					ReserveAAfter: 500_000, ReserveBAfter: 2_000_000,
				}},
			},
		}
	}
	var prev uint16
	for _, impact := range []uint64{500, 1000, 2000} {
		events, err := a.Analyze(context.Background(), mk(impact))
		if err != nil || len(events) != 1 {
			t.Fatalf("impact=%d: expected one event, got %v err=%v", impact, events, err)
		}
		score := events[0].Score
		if score < prev {
			t.Fatalf("impact=%d: score %d decreased from previous %d", impact, score, prev)
		}
		prev = score
	}
}
