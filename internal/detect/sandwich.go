package detect

import (
	"context"
	"sync"

	"github.com/DimaJoyti/defi-sentinel/internal/fixedpoint"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

const sandwichFeeBps = 30

// SandwichAnalyzer is the one stateful analyzer in the pipeline: it
// correlates swaps across transactions to find front-run / victim /
// back-run triples on the same pool.
type SandwichAnalyzer struct {
	mu                sync.Mutex
	buf               *ringBuffer
	maxCheckpointDist uint64
	scoreFloor        uint16
	latestCheckpoint  uint64
	haveLatest        bool
}

// NewSandwichAnalyzer builds a SandwichAnalyzer with the given buffer
// capacity, eviction horizon (in checkpoints), and minimum score to emit.
func NewSandwichAnalyzer(bufferCapacity int, maxCheckpointDistance uint64, scoreFloor uint16) *SandwichAnalyzer {
	return &SandwichAnalyzer{
		buf:               newRingBuffer(bufferCapacity, maxCheckpointDistance),
		maxCheckpointDist: maxCheckpointDistance,
		scoreFloor:        scoreFloor,
	}
}

func (a *SandwichAnalyzer) Name() string { return "sandwich" }

func (a *SandwichAnalyzer) Analyze(_ context.Context, tx TransactionContext) ([]risk.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	swaps := tx.Swaps()
	if len(swaps) == 0 {
		return nil, nil
	}

	// Monotonicity regression: fail-open. Process without touching the
	// buffer or attempting a match.
	if a.haveLatest && tx.CheckpointSeq < a.latestCheckpoint {
		return nil, nil
	}
	if !a.haveLatest || tx.CheckpointSeq > a.latestCheckpoint {
		a.latestCheckpoint = tx.CheckpointSeq
		a.haveLatest = true
	}

	a.buf.pruneOld(a.latestCheckpoint)

	var events []risk.Event
	seen := map[[3]string]bool{}

	for _, s := range swaps {
		backRun := sandwichPattern{
			txDigest: tx.Digest, sender: tx.Sender, poolID: s.PoolID, dir: directionOf(s.TokenInIsA),
			amountIn: s.AmountIn, amountOut: s.AmountOut, priceImpactBps: s.PriceImpactBps,
			reserveAAfter: s.ReserveAAfter, reserveBAfter: s.ReserveBAfter,
			checkpointSeq: tx.CheckpointSeq, timestampMs: tx.TimestampMs,
		}

		frontRun, ok := a.findFrontRun(backRun)
		if !ok {
			continue
		}
		victim, ok := a.findVictim(frontRun, backRun)
		if !ok {
			continue
		}

		key := [3]string{frontRun.txDigest, victim.txDigest, backRun.txDigest}
		if seen[key] {
			continue
		}
		seen[key] = true

		if ev, ok := a.buildEvent(frontRun, victim, backRun); ok {
			events = append(events, ev)
		}
	}

	for _, s := range swaps {
		a.buf.insert(sandwichPattern{
			txDigest: tx.Digest, sender: tx.Sender, poolID: s.PoolID, dir: directionOf(s.TokenInIsA),
			amountIn: s.AmountIn, amountOut: s.AmountOut, priceImpactBps: s.PriceImpactBps,
			reserveAAfter: s.ReserveAAfter, reserveBAfter: s.ReserveBAfter,
			checkpointSeq: tx.CheckpointSeq, timestampMs: tx.TimestampMs,
		})
	}

	return events, nil
}

// findFrontRun scans the buffer for the best front-run candidate for
// backRun: same pool, same sender, the opposite leg of the round trip
// (the attacker buys on the front-run and sells on the back-run, or vice
// versa), strictly earlier, within the checkpoint horizon, with a
// qualifying price impact. Ties are broken by picking the candidate
// closest to the back-run.
func (a *SandwichAnalyzer) findFrontRun(backRun sandwichPattern) (sandwichPattern, bool) {
	var best sandwichPattern
	found := false
	for _, cand := range a.buf.entries {
		if cand.poolID != backRun.poolID || cand.sender != backRun.sender || cand.dir != backRun.dir.opposite() {
			continue
		}
		if !cand.before(backRun) {
			continue
		}
		if cand.checkpointDistance(backRun) > a.maxCheckpointDist {
			continue
		}
		if cand.priceImpactBps < 100 {
			continue
		}
		if !found || best.before(cand) {
			best = cand
			found = true
		}
	}
	return best, found
}

// findVictim scans the buffer for a victim strictly between frontRun and
// backRun: same pool, different sender, same direction as the attacker.
// Since any qualifying candidate lies strictly between the two, its
// distance to the front-run plus its distance to the back-run is constant
// (it sums to the front-run/back-run span regardless of where the
// candidate falls), so it can't discriminate between multiple candidates.
// Ties are instead broken by distance to the midpoint of the pair: the
// trade most tightly sandwiched between the two legs.
func (a *SandwichAnalyzer) findVictim(frontRun, backRun sandwichPattern) (sandwichPattern, bool) {
	mid := frontRun.timestampMs + (backRun.timestampMs-frontRun.timestampMs)/2

	var best sandwichPattern
	bestSpan := ^uint64(0)
	found := false
	for _, cand := range a.buf.entries {
		if cand.poolID != frontRun.poolID || cand.sender == frontRun.sender || cand.dir != frontRun.dir {
			continue
		}
		if !frontRun.before(cand) || !cand.before(backRun) {
			continue
		}
		span := fixedpoint.AbsDiff(cand.timestampMs, mid)
		if !found || span < bestSpan {
			best, bestSpan, found = cand, span, true
		}
	}
	return best, found
}

func (a *SandwichAnalyzer) buildEvent(frontRun, victim, backRun sandwichPattern) (risk.Event, bool) {
	attackerProfit := uint64(0)
	if backRun.amountOut > frontRun.amountIn {
		attackerProfit = backRun.amountOut - frontRun.amountIn
	}

	reserveInBefore, reserveOutBefore := frontRunPreSwapReserves(frontRun)
	expectedOut := fixedpoint.ConstantProductOut(victim.amountIn, reserveInBefore, reserveOutBefore, sandwichFeeBps)

	var victimLossBps uint64
	if expectedOut > victim.amountOut {
		victimLossBps = fixedpoint.RatioBps(expectedOut-victim.amountOut, expectedOut)
	}

	var score uint16
	switch {
	case attackerProfit > 1000:
		score += 40
	case attackerProfit > 100:
		score += 30
	case attackerProfit > 0:
		score += 20
	}

	switch {
	case victimLossBps > 1000:
		score += 30
	case victimLossBps > 500:
		score += 20
	case victimLossBps > 100:
		score += 10
	}

	if frontRun.checkpointSeq == backRun.checkpointSeq {
		score += 10
	}

	spanMs := fixedpoint.AbsDiff(backRun.timestampMs, frontRun.timestampMs)
	if spanMs < 5000 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < a.scoreFloor {
		return risk.Event{}, false
	}

	level := sandwichLevel(score)
	detail := map[string]interface{}{
		"front_run_digest": frontRun.txDigest,
		"victim_digest":    victim.txDigest,
		"back_run_digest":  backRun.txDigest,
		"attacker":         frontRun.sender,
		"victim":           victim.sender,
		"pool_id":          backRun.poolID,
		"attacker_profit":  attackerProfit,
		"victim_loss_bps":  victimLossBps,
		"span_ms":          spanMs,
		"risk_score":       score,
	}

	ev := risk.New(
		risk.KindSandwich, level, score, backRun.txDigest, frontRun.sender, backRun.checkpointSeq, backRun.timestampMs,
		"front-run/victim/back-run triple detected on the same pool",
		detail,
	)
	return ev, true
}

// frontRunPreSwapReserves reconstructs the pool reserves immediately
// before the front-run swap from its own post-swap reserves and consumed
// amounts.
func frontRunPreSwapReserves(frontRun sandwichPattern) (reserveInBefore, reserveOutBefore uint64) {
	if frontRun.dir == directionAToB {
		reserveInBefore = frontRun.reserveAAfter - frontRun.amountIn
		reserveOutBefore = frontRun.reserveBAfter + frontRun.amountOut
	} else {
		reserveInBefore = frontRun.reserveBAfter - frontRun.amountIn
		reserveOutBefore = frontRun.reserveAAfter + frontRun.amountOut
	}
	return
}

func sandwichLevel(score uint16) risk.Level {
	switch {
	case score >= 70:
		return risk.LevelCritical
	case score >= 50:
		return risk.LevelHigh
	default:
		return risk.LevelMedium
	}
}
