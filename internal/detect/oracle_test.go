package detect

import (
	"context"
	"testing"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

func TestOracleAnalyzer_NoFlashLoanNoEvent(t *testing.T) {
	a := NewOracleAnalyzer(40, 100, 15000)
	tx := TransactionContext{
		Events: []chainevent.Event{
			{Kind: chainevent.KindSwapExecuted, EventIndex: 0, Swap: &chainevent.SwapExecuted{
				PoolID: "p1", TokenInIsA: true, AmountIn: 500_000, AmountOut: 495_000, PriceImpactBps: 900,
				ReserveAAfter: 1_500_000, ReserveBAfter: 505_000,
			}},
			{Kind: chainevent.KindBorrowEvent, EventIndex: 1, Borrow: &chainevent.BorrowEvent{
				BorrowAmount: 200, CollateralValue: 400, OraclePrice: 337, HealthFactorBps: 20000,
			}},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no event without a flash loan, got %v err=%v", events, err)
	}
}

func TestOracleAnalyzer_BorrowBeforeSwapNoEvent(t *testing.T) {
	a := NewOracleAnalyzer(40, 100, 15000)
	tx := TransactionContext{
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, EventIndex: 0, FlashLoanTaken: &chainevent.FlashLoanTaken{PoolID: "p1", Amount: 1_000_000, Fee: 30}},
			{Kind: chainevent.KindBorrowEvent, EventIndex: 1, Borrow: &chainevent.BorrowEvent{
				BorrowAmount: 5000, CollateralValue: 5000, OraclePrice: 500, HealthFactorBps: 20000,
			}},
			{Kind: chainevent.KindSwapExecuted, EventIndex: 2, Swap: &chainevent.SwapExecuted{
				PoolID: "p1", TokenInIsA: true, AmountIn: 500_000, AmountOut: 495_000, PriceImpactBps: 900,
				ReserveAAfter: 1_500_000, ReserveBAfter: 505_000,
			}},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no event when the borrow precedes the qualifying swap, got %v err=%v", events, err)
	}
}

func TestOracleAnalyzer_FlashLoanPriceMoveThenBorrowCritical(t *testing.T) {
	a := NewOracleAnalyzer(40, 100, 15000)
	tx := TransactionContext{
		Digest: "txOracle", Sender: "0xattacker", CheckpointSeq: 7, TimestampMs: 123,
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, EventIndex: 0, FlashLoanTaken: &chainevent.FlashLoanTaken{PoolID: "p1", Amount: 5_000_000, Fee: 30}},
			// Pre-swap reserves 1,000,000 / 1,000,000 (normal price 1.0 at
			// priceScale). After a large one-sided swap the pool's spot
			// price is pushed far from that level.
			{Kind: chainevent.KindSwapExecuted, EventIndex: 1, Swap: &chainevent.SwapExecuted{
				PoolID: "p1", TokenInIsA: true, AmountIn: 900_000, AmountOut: 470_000, PriceImpactBps: 3000,
				ReserveAAfter: 1_900_000, ReserveBAfter: 530_000,
			}},
			// Borrow reads the now-manipulated spot price as its oracle
			// price: 530,000/1,900,000 * priceScale =~ 278,947.
			{Kind: chainevent.KindBorrowEvent, EventIndex: 2, Borrow: &chainevent.BorrowEvent{
				BorrowAmount: 20_000, CollateralValue: 20_000, OraclePrice: 278_947, HealthFactorBps: 20000,
			}},
			{Kind: chainevent.KindFlashLoanRepaid, EventIndex: 3, FlashLoanRepaid: &chainevent.FlashLoanRepaid{PoolID: "p1", Amount: 5_000_000, Fee: 30}},
		},
	}

	events, err := a.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one oracle risk event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != risk.KindOracleManipulation {
		t.Fatalf("kind = %v", ev.Kind)
	}
	if ev.Level != risk.LevelCritical && ev.Level != risk.LevelHigh {
		t.Fatalf("level = %v, want high or critical", ev.Level)
	}
	if ev.Detail["normal_price"] != uint64(1_000_000) {
		t.Fatalf("normal_price = %v, want 1,000,000 (parity)", ev.Detail["normal_price"])
	}
	if ev.Detail["borrow_amount"] != uint64(20_000) {
		t.Fatalf("borrow_amount = %v", ev.Detail["borrow_amount"])
	}
}

// TestOracleAnalyzer_TargetsLatestQualifyingSwapNotHighestImpact mirrors a
// reversal pattern: an earlier, higher-impact swap on one pool followed by
// a later, lower-impact (but still qualifying) swap on a different pool,
// with the borrow correlated to the later swap. The target must be chosen
// by latest event_index, not by highest price_impact_bps, or the wrong
// pool's reserves get used to reconstruct the "normal" price.
func TestOracleAnalyzer_TargetsLatestQualifyingSwapNotHighestImpact(t *testing.T) {
	a := NewOracleAnalyzer(40, 100, 15000)
	tx := TransactionContext{
		Digest: "txReversal", Sender: "0xattacker", CheckpointSeq: 9, TimestampMs: 456,
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, EventIndex: 0, FlashLoanTaken: &chainevent.FlashLoanTaken{PoolID: "p1", Amount: 5_000_000, Fee: 30}},
			// Earlier, higher-impact swap on p1 (pre-swap reserves
			// 1,000,000 / 1,000,000, normal price 1,000,000). A
			// highest-impact selection would lock onto this one.
			{Kind: chainevent.KindSwapExecuted, EventIndex: 1, Swap: &chainevent.SwapExecuted{
				PoolID: "p1", TokenInIsA: true, AmountIn: 900_000, AmountOut: 470_000, PriceImpactBps: 3000,
				ReserveAAfter: 1_900_000, ReserveBAfter: 530_000,
			}},
			// Later, lower-impact but still-qualifying swap on a
			// different pool p2 (pre-swap reserves 2,000,000 /
			// 4,000,000, normal price 2,000,000). This is the real
			// target: the latest qualifying swap before the borrow.
			{Kind: chainevent.KindSwapExecuted, EventIndex: 2, Swap: &chainevent.SwapExecuted{
				PoolID: "p2", TokenInIsA: true, AmountIn: 200_000, AmountOut: 200_000, PriceImpactBps: 600,
				ReserveAAfter: 2_200_000, ReserveBAfter: 3_800_000,
			}},
			{Kind: chainevent.KindBorrowEvent, EventIndex: 3, Borrow: &chainevent.BorrowEvent{
				BorrowAmount: 20_000, CollateralValue: 20_000, OraclePrice: 1_000_000, HealthFactorBps: 20000,
			}},
			{Kind: chainevent.KindFlashLoanRepaid, EventIndex: 4, FlashLoanRepaid: &chainevent.FlashLoanRepaid{PoolID: "p1", Amount: 5_000_000, Fee: 30}},
		},
	}

	events, err := a.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one oracle risk event, got %d", len(events))
	}
	ev := events[0]
	if ev.Detail["normal_price"] != uint64(2_000_000) {
		t.Fatalf("normal_price = %v, want 2,000,000 (p2's parity, the latest qualifying swap's pool, not p1's)", ev.Detail["normal_price"])
	}
}

func TestOracleAnalyzer_BelowFloorNoEvent(t *testing.T) {
	a := NewOracleAnalyzer(40, 100, 15000)
	tx := TransactionContext{
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, EventIndex: 0, FlashLoanTaken: &chainevent.FlashLoanTaken{PoolID: "p1", Amount: 1000, Fee: 3}},
			{Kind: chainevent.KindSwapExecuted, EventIndex: 1, Swap: &chainevent.SwapExecuted{
				PoolID: "p1", TokenInIsA: true, AmountIn: 50_000, AmountOut: 49_500, PriceImpactBps: 500,
				ReserveAAfter: 1_050_000, ReserveBAfter: 999_500,
			}},
			{Kind: chainevent.KindBorrowEvent, EventIndex: 2, Borrow: &chainevent.BorrowEvent{
				BorrowAmount: 50, CollateralValue: 100, OraclePrice: 1_055_000, HealthFactorBps: 20000,
			}},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no event for a small borrow with low deviation, got %v err=%v", events, err)
	}
}
