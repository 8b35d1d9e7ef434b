package detect

import (
	"context"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/fixedpoint"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// priceScale is the fixed-point denominator used when reconstructing a
// pool's implied price from its reserves, so it can be compared against an
// oracle_price reported on the same scale.
const priceScale = 1_000_000

// OracleAnalyzer flags a flash loan used to move a pool's spot price away
// from its pre-transaction level and then borrow against that price through
// a lending market that reads it as an oracle.
type OracleAnalyzer struct {
	scoreFloor          uint16
	minBorrowAmount     uint64
	healthFactorHighBps uint64

	// normalPrice lets tests (and, in principle, a caller with a better
	// source of truth) override the default reconstruction of the
	// pre-transaction pool price from reserves.
	normalPrice func(swaps []timedSwap) uint64
}

type timedSwap struct {
	eventIndex uint64
	swap       *chainevent.SwapExecuted
}

// OracleAnalyzerOption configures an OracleAnalyzer beyond its required
// constructor arguments.
type OracleAnalyzerOption func(*OracleAnalyzer)

// WithNormalPriceFunc overrides how the pre-transaction "normal" pool
// price is reconstructed, in place of the default earliest-swap-reserves
// approximation. Useful when a caller has a better source of truth (a
// pool's last finalized checkpoint price, for instance). A nil f keeps the
// default reconstruction.
func WithNormalPriceFunc(f func(swaps []timedSwap) uint64) OracleAnalyzerOption {
	return func(a *OracleAnalyzer) {
		if f != nil {
			a.normalPrice = f
		}
	}
}

// NewOracleAnalyzer builds an OracleAnalyzer.
func NewOracleAnalyzer(scoreFloor uint16, minBorrowAmount, healthFactorHighBps uint64, opts ...OracleAnalyzerOption) *OracleAnalyzer {
	a := &OracleAnalyzer{
		scoreFloor:          scoreFloor,
		minBorrowAmount:     minBorrowAmount,
		healthFactorHighBps: healthFactorHighBps,
		normalPrice:         defaultNormalPrice,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *OracleAnalyzer) Name() string { return "oracle_manipulation" }

func (a *OracleAnalyzer) Analyze(_ context.Context, tx TransactionContext) ([]risk.Event, error) {
	loans := tx.FlashLoansTaken()
	if len(loans) == 0 {
		return nil, nil
	}

	var allSwaps, targetPoolSwaps []timedSwap
	var borrows []struct {
		eventIndex uint64
		borrow     *chainevent.BorrowEvent
	}
	for _, ev := range tx.Events {
		switch ev.Kind {
		case chainevent.KindSwapExecuted:
			allSwaps = append(allSwaps, timedSwap{eventIndex: ev.EventIndex, swap: ev.Swap})
		case chainevent.KindBorrowEvent:
			borrows = append(borrows, struct {
				eventIndex uint64
				borrow     *chainevent.BorrowEvent
			}{ev.EventIndex, ev.Borrow})
		}
	}
	if len(allSwaps) == 0 || len(borrows) == 0 {
		return nil, nil
	}

	// The large price-moving swap: the latest qualifying swap (by event
	// index) decides which pool is being targeted, so a borrow only
	// counts as correlated if it follows the most recent price move, not
	// merely the largest one seen anywhere earlier in the transaction.
	var target *timedSwap
	for i := range allSwaps {
		s := allSwaps[i]
		if s.swap.PriceImpactBps < 500 {
			continue
		}
		if target == nil || s.eventIndex > target.eventIndex {
			target = &allSwaps[i]
		}
	}
	if target == nil {
		return nil, nil
	}

	for _, s := range allSwaps {
		if s.swap.PoolID == target.swap.PoolID {
			targetPoolSwaps = append(targetPoolSwaps, s)
		}
	}

	// Temporal correlation: a borrow must follow the qualifying swap.
	var borrow *chainevent.BorrowEvent
	for _, b := range borrows {
		if b.eventIndex > target.eventIndex && b.borrow.BorrowAmount >= a.minBorrowAmount {
			if borrow == nil {
				borrow = b.borrow
			}
		}
	}
	if borrow == nil {
		return nil, nil
	}

	normalPrice := a.normalPrice(targetPoolSwaps)
	oraclePrice := borrow.OraclePrice
	deviationBps := fixedpoint.DeviationBps(oraclePrice, normalPrice)

	realCollateralValue := fixedpoint.MulDiv(borrow.CollateralValue, normalPrice, oraclePrice)
	var protocolLoss uint64
	if borrow.BorrowAmount > realCollateralValue {
		protocolLoss = borrow.BorrowAmount - realCollateralValue
	}

	var score uint16
	score += 20 // flash loan present (base)

	switch {
	case borrow.BorrowAmount >= 10_000:
		score += 20
	case borrow.BorrowAmount >= 100:
		score += 15
	}

	switch {
	case deviationBps >= 5000:
		score += 40
	case deviationBps >= 2000:
		score += 30
	case deviationBps >= 1000:
		score += 20
	}

	if protocolLoss > 0 {
		lossRatioBps := fixedpoint.RatioBps(protocolLoss, borrow.BorrowAmount)
		if lossRatioBps > 5000 {
			score += 20
		} else {
			score += 10
		}
	}

	if borrow.HealthFactorBps > a.healthFactorHighBps && deviationBps >= 1000 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < a.scoreFloor {
		return nil, nil
	}

	var totalBorrowed uint64
	for _, l := range loans {
		totalBorrowed += l.Amount
	}

	level := oracleLevel(score)
	detail := map[string]interface{}{
		"flash_loan_amount":     totalBorrowed,
		"swap_count":            len(allSwaps),
		"oracle_price":          oraclePrice,
		"normal_price":          normalPrice,
		"price_deviation_bps":   deviationBps,
		"borrow_amount":         borrow.BorrowAmount,
		"collateral_value":      borrow.CollateralValue,
		"real_collateral_value": realCollateralValue,
		"protocol_loss":         protocolLoss,
		"health_factor_bps":     borrow.HealthFactorBps,
		"risk_score":            score,
	}

	return []risk.Event{risk.New(
		risk.KindOracleManipulation, level, score, tx.Digest, tx.Sender, tx.CheckpointSeq, tx.TimestampMs,
		"flash loan used to move a pool price ahead of a borrow against that price",
		detail,
	)}, nil
}

// defaultNormalPrice reconstructs the pre-transaction implied price of the
// targeted pool from the reserves reported by the earliest swap against it
// in this transaction, expressed as reserveB/reserveA scaled by priceScale.
func defaultNormalPrice(swaps []timedSwap) uint64 {
	if len(swaps) == 0 {
		return 0
	}
	earliest := swaps[0]
	for _, s := range swaps[1:] {
		if s.eventIndex < earliest.eventIndex {
			earliest = s
		}
	}
	reserveABefore, reserveBBefore := swapPreSwapReserves(earliest.swap)
	return fixedpoint.MulDiv(reserveBBefore, priceScale, reserveABefore)
}

// swapPreSwapReserves reconstructs a swap's pool reserves immediately
// before it executed from its post-swap reserves and consumed amounts.
func swapPreSwapReserves(s *chainevent.SwapExecuted) (reserveABefore, reserveBBefore uint64) {
	if s.TokenInIsA {
		reserveABefore = s.ReserveAAfter - s.AmountIn
		reserveBBefore = s.ReserveBAfter + s.AmountOut
	} else {
		reserveBBefore = s.ReserveBAfter - s.AmountIn
		reserveABefore = s.ReserveAAfter + s.AmountOut
	}
	return
}

func oracleLevel(score uint16) risk.Level {
	switch {
	case score >= 80:
		return risk.LevelCritical
	case score >= 60:
		return risk.LevelHigh
	case score >= 40:
		return risk.LevelMedium
	default:
		return risk.LevelLow
	}
}
