package detect

import (
	"context"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// FlashLoanAnalyzer flags transactions that draw a flash loan and use it to
// walk a chain of swaps back to the token they started with.
//
// Swap events only carry a per-pool token_in_is_a boolean, not a global
// token identity, so there is no way to tell from the decoded data alone
// whether pool P2's "B side" is the same real-world token as pool P3's
// "A side" in a three-hop arbitrage. Circular-trading detection is
// therefore modeled as a two-state walk rather than true multi-token graph
// reachability: the token you are holding flips to "the other side" after
// every swap, and the walk is circular if the side you funded the first
// swap with equals the side you are left holding after the last one. Only
// the side labels of the first and last swaps are compared, so a walk
// whose last pool's A side is a different real token from the first
// pool's A side is still reported as circular, and a real loop that ends
// on the differently labelled side of its last pool is not.
type FlashLoanAnalyzer struct {
	minSwapCount int
	scoreFloor   uint16
	largeLoanAmt uint64
}

// NewFlashLoanAnalyzer builds a FlashLoanAnalyzer. minSwapCount sets the
// "multiple swaps" signal threshold: a transaction with at least
// minSwapCount swaps (anywhere in it) scores higher, and one more than that
// scores higher still; scoreFloor is the minimum score required to emit a
// risk event; largeLoanAmt is the "large loan" signal threshold.
func NewFlashLoanAnalyzer(minSwapCount int, scoreFloor uint16, largeLoanAmt uint64) *FlashLoanAnalyzer {
	return &FlashLoanAnalyzer{minSwapCount: minSwapCount, scoreFloor: scoreFloor, largeLoanAmt: largeLoanAmt}
}

func (a *FlashLoanAnalyzer) Name() string { return "flash_loan" }

func (a *FlashLoanAnalyzer) Analyze(_ context.Context, tx TransactionContext) ([]risk.Event, error) {
	taken := tx.FlashLoansTaken()
	repaid := tx.FlashLoansRepaid()
	if len(taken) == 0 || len(repaid) == 0 || !hasMatchingRepayment(taken, repaid) {
		return nil, nil
	}

	swaps := tx.Swaps()
	swapCount := len(swaps)

	var score uint16
	circular := isCircular(swaps)
	if circular {
		score += 30
	}

	switch {
	case swapCount >= a.minSwapCount+1:
		score += 20
	case swapCount >= a.minSwapCount:
		score += 10
	}

	var totalImpact, maxImpact uint64
	pools := map[string]struct{}{}
	for _, s := range swaps {
		totalImpact += s.PriceImpactBps
		if s.PriceImpactBps > maxImpact {
			maxImpact = s.PriceImpactBps
		}
		pools[s.PoolID] = struct{}{}
	}

	switch {
	case totalImpact > 2000:
		score += 25
	case totalImpact > 1000:
		score += 15
	}

	if maxImpact > 500 {
		score += 15
	}

	switch {
	case len(pools) >= 3:
		score += 15
	case len(pools) >= 2:
		score += 10
	}

	var totalBorrowed uint64
	var largeLoan bool
	for _, t := range taken {
		totalBorrowed += t.Amount
		if t.Amount > a.largeLoanAmt {
			largeLoan = true
		}
	}
	if largeLoan {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < a.scoreFloor {
		return nil, nil
	}

	level := flashLoanLevel(score)
	detail := map[string]interface{}{
		"flash_loan_count":       len(taken),
		"total_borrowed":         totalBorrowed,
		"swap_count":             swapCount,
		"unique_pools":           len(pools),
		"circular_trading":       circular,
		"total_price_impact_bps": totalImpact,
		"max_price_impact_bps":   maxImpact,
		"risk_score":             score,
	}

	return []risk.Event{risk.New(
		risk.KindFlashLoan, level, score, tx.Digest, tx.Sender, tx.CheckpointSeq, tx.TimestampMs,
		"flash loan with downstream swap pattern consistent with arbitrage or manipulation",
		detail,
	)}, nil
}

func hasMatchingRepayment(taken []*chainevent.FlashLoanTaken, repaid []*chainevent.FlashLoanRepaid) bool {
	for _, t := range taken {
		for _, r := range repaid {
			if t.Amount == r.Amount && t.Fee == r.Fee {
				return true
			}
		}
	}
	return false
}

// isCircular reports whether the swap sequence starts and ends on the same
// abstract token side (see the FlashLoanAnalyzer doc comment).
func isCircular(swaps []*chainevent.SwapExecuted) bool {
	if len(swaps) < 2 {
		return false
	}
	startedWithA := swaps[0].TokenInIsA
	last := swaps[len(swaps)-1]
	endedHoldingA := !last.TokenInIsA
	return startedWithA == endedHoldingA
}

func flashLoanLevel(score uint16) risk.Level {
	switch {
	case score >= 85:
		return risk.LevelCritical
	case score >= 70:
		return risk.LevelHigh
	case score >= 50:
		return risk.LevelMedium
	default:
		return risk.LevelLow
	}
}
