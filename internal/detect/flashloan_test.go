package detect

import (
	"context"
	"testing"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

func swap(pool string, tokenInIsA bool, impactBps uint64) *chainevent.SwapExecuted {
	return &chainevent.SwapExecuted{PoolID: pool, TokenInIsA: tokenInIsA, PriceImpactBps: impactBps}
}

func TestFlashLoanAnalyzer_NoFlashLoanNoEvent(t *testing.T) {
	a := NewFlashLoanAnalyzer(2, 30, 1_000_000_000)
	tx := TransactionContext{
		Digest: "tx1",
		Events: []chainevent.Event{
			{Kind: chainevent.KindSwapExecuted, Swap: swap("p1", true, 50)},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events without a flash loan, got %v err=%v", events, err)
	}
}

func TestFlashLoanAnalyzer_MismatchedRepaymentIgnored(t *testing.T) {
	a := NewFlashLoanAnalyzer(2, 30, 1_000_000_000)
	tx := TransactionContext{
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, FlashLoanTaken: &chainevent.FlashLoanTaken{Amount: 1000, Fee: 3}},
			{Kind: chainevent.KindFlashLoanRepaid, FlashLoanRepaid: &chainevent.FlashLoanRepaid{Amount: 999, Fee: 3}},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events when amounts don't match, got %v err=%v", events, err)
	}
}

func TestFlashLoanAnalyzer_MultiHopArbitrageCritical(t *testing.T) {
	a := NewFlashLoanAnalyzer(2, 30, 1_000_000_000)
	tx := TransactionContext{
		Digest:        "txArb",
		Sender:        "0xattacker",
		CheckpointSeq: 42,
		TimestampMs:   1700000000000,
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, FlashLoanTaken: &chainevent.FlashLoanTaken{PoolID: "p1", Amount: 10_000_000_000_000, Fee: 30}},
			{Kind: chainevent.KindSwapExecuted, Swap: swap("p1", true, 1200)},
			{Kind: chainevent.KindSwapExecuted, Swap: swap("p2", false, 800)},
			{Kind: chainevent.KindSwapExecuted, Swap: swap("p3", false, 900)},
			{Kind: chainevent.KindFlashLoanRepaid, FlashLoanRepaid: &chainevent.FlashLoanRepaid{PoolID: "p1", Amount: 10_000_000_000_000, Fee: 30}},
		},
	}

	events, err := a.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one risk event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != risk.KindFlashLoan {
		t.Fatalf("kind = %v", ev.Kind)
	}
	if ev.Level != risk.LevelCritical {
		t.Fatalf("level = %v, want critical", ev.Level)
	}
	if ev.Detail["swap_count"] != 3 {
		t.Fatalf("swap_count = %v, want 3", ev.Detail["swap_count"])
	}
	if ev.Detail["unique_pools"] != 3 {
		t.Fatalf("unique_pools = %v, want 3", ev.Detail["unique_pools"])
	}
	if ev.Detail["circular_trading"] != true {
		t.Fatalf("circular_trading = %v, want true", ev.Detail["circular_trading"])
	}
	if ev.Detail["total_price_impact_bps"] != uint64(2900) {
		t.Fatalf("total_price_impact_bps = %v, want 2900", ev.Detail["total_price_impact_bps"])
	}
	if ev.Detail["max_price_impact_bps"] != uint64(1200) {
		t.Fatalf("max_price_impact_bps = %v, want 1200", ev.Detail["max_price_impact_bps"])
	}
}

func TestFlashLoanAnalyzer_BelowFloorNoEvent(t *testing.T) {
	a := NewFlashLoanAnalyzer(2, 30, 1_000_000_000)
	tx := TransactionContext{
		Events: []chainevent.Event{
			{Kind: chainevent.KindFlashLoanTaken, FlashLoanTaken: &chainevent.FlashLoanTaken{PoolID: "p1", Amount: 1000, Fee: 3}},
			{Kind: chainevent.KindFlashLoanRepaid, FlashLoanRepaid: &chainevent.FlashLoanRepaid{PoolID: "p1", Amount: 1000, Fee: 3}},
			{Kind: chainevent.KindSwapExecuted, Swap: swap("p1", true, 10)},
		},
	}
	events, err := a.Analyze(context.Background(), tx)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no event below the score floor, got %v err=%v", events, err)
	}
}
