package detect

import (
	"context"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/fixedpoint"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// PriceAnalyzer flags transactions whose swaps or oracle signals indicate
// artificial price movement, independent of whether a flash loan is
// involved.
type PriceAnalyzer struct {
	scoreFloor           uint16
	minDepthRatioBps     uint64
	twapDeviationBpsHigh uint64
}

// NewPriceAnalyzer builds a PriceAnalyzer. minDepthRatioBps is the unit of
// the depth-ratio tiers: a swap scores once its depth ratio exceeds three
// times it, and more once it exceeds six times it. twapDeviationBpsHigh is
// the middle TWAP-deviation tier; half of it and twice it bound the lower
// and upper tiers.
func NewPriceAnalyzer(scoreFloor uint16, minDepthRatioBps, twapDeviationBpsHigh uint64) *PriceAnalyzer {
	return &PriceAnalyzer{scoreFloor: scoreFloor, minDepthRatioBps: minDepthRatioBps, twapDeviationBpsHigh: twapDeviationBpsHigh}
}

func (a *PriceAnalyzer) Name() string { return "price_manipulation" }

func (a *PriceAnalyzer) Analyze(_ context.Context, tx TransactionContext) ([]risk.Event, error) {
	swaps := tx.Swaps()
	if len(swaps) == 0 {
		return nil, nil
	}

	var score uint16
	var maxImpact uint64
	var maxDepthRatioBps uint64
	var poolDepth uint64
	for _, s := range swaps {
		if s.PriceImpactBps > maxImpact {
			maxImpact = s.PriceImpactBps
		}
		depth := s.ReserveAAfter
		if s.ReserveBAfter < depth {
			depth = s.ReserveBAfter
		}
		ratio := fixedpoint.RatioBps(s.AmountIn, depth+s.AmountIn)
		if ratio > maxDepthRatioBps {
			maxDepthRatioBps = ratio
			poolDepth = depth
		}
	}

	switch {
	case maxImpact >= 2000:
		score += 40
	case maxImpact >= 1000:
		score += 30
	case maxImpact >= 500:
		score += 15
	}

	switch {
	case maxDepthRatioBps > a.minDepthRatioBps*6:
		score += 25
	case maxDepthRatioBps > a.minDepthRatioBps*3:
		score += 15
	}

	var maxTWAPDeviation uint64
	var sawExplicitDeviation bool
	for _, ev := range tx.Events {
		if ev.Kind == chainevent.KindTWAPUpdated && ev.TWAPUpdated.PriceDeviationBps > maxTWAPDeviation {
			maxTWAPDeviation = ev.TWAPUpdated.PriceDeviationBps
		}
		if ev.Kind == chainevent.KindPriceDeviationDetected {
			sawExplicitDeviation = true
		}
	}
	switch {
	case maxTWAPDeviation >= a.twapDeviationBpsHigh*2:
		score += 25
	case maxTWAPDeviation >= a.twapDeviationBpsHigh:
		score += 15
	case maxTWAPDeviation >= a.twapDeviationBpsHigh/2:
		score += 5
	}
	if sawExplicitDeviation {
		score += 10
	}

	consecutive := maxConsecutiveSameDirection(swaps)
	if consecutive >= 2 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < a.scoreFloor {
		return nil, nil
	}

	level := priceLevel(score)
	detail := map[string]interface{}{
		"price_impact_bps":                 maxImpact,
		"pool_depth":                       poolDepth,
		"depth_ratio_bps":                  maxDepthRatioBps,
		"twap_deviation_bps":               maxTWAPDeviation,
		"consecutive_same_direction_count": consecutive,
		"risk_score":                       score,
	}

	return []risk.Event{risk.New(
		risk.KindPriceManipulation, level, score, tx.Digest, tx.Sender, tx.CheckpointSeq, tx.TimestampMs,
		"swap or oracle signal consistent with artificial price movement",
		detail,
	)}, nil
}

// maxConsecutiveSameDirection returns the length of the longest run of
// same-pool, same-direction swaps each with price_impact_bps >= 100,
// which is the "pump pattern" signal.
func maxConsecutiveSameDirection(swaps []*chainevent.SwapExecuted) int {
	best, run := 0, 0
	var lastPool string
	var lastDir bool
	haveLast := false
	for _, s := range swaps {
		qualifies := s.PriceImpactBps >= 100
		if qualifies && haveLast && s.PoolID == lastPool && s.TokenInIsA == lastDir {
			run++
		} else if qualifies {
			run = 1
		} else {
			run = 0
		}
		if run > best {
			best = run
		}
		lastPool, lastDir, haveLast = s.PoolID, s.TokenInIsA, qualifies
	}
	return best
}

func priceLevel(score uint16) risk.Level {
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
