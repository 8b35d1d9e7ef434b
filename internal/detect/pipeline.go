package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
	"github.com/DimaJoyti/defi-sentinel/pkg/metrics"
	"go.uber.org/zap"
)

// AnalyzerError wraps the panic or error an analyzer raised while
// processing a transaction. The pipeline always recovers from these: one
// misbehaving analyzer must never stop the rest of the pipeline from
// running, or stop the next transaction from being processed.
type AnalyzerError struct {
	Analyzer string
	Cause    error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("detect: analyzer %s: %v", e.Analyzer, e.Cause)
}

func (e *AnalyzerError) Unwrap() error { return e.Cause }

// Pipeline runs a fixed, ordered set of analyzers against every
// transaction that touches the target package.
type Pipeline struct {
	targetPackageID string
	analyzers       []Analyzer
	log             *logger.Logger
	metrics         *metrics.Metrics
}

// NewPipeline builds a Pipeline. Analyzers run in the order given; the
// intended order is flash-loan, price-manipulation, sandwich,
// oracle-manipulation, but the pipeline itself does not enforce any
// particular ordering beyond "whatever the caller passed in".
func NewPipeline(targetPackageID string, log *logger.Logger, m *metrics.Metrics, analyzers ...Analyzer) *Pipeline {
	return &Pipeline{
		targetPackageID: targetPackageID,
		analyzers:       analyzers,
		log:             log,
		metrics:         m,
	}
}

// Process runs every analyzer against tx, in order, and returns the
// concatenation of every risk event they reported. Transactions that never
// touch the target package are skipped before any analyzer runs.
func (p *Pipeline) Process(ctx context.Context, tx TransactionContext) []risk.Event {
	if !tx.TouchesPackage(p.targetPackageID) {
		return nil
	}

	var out []risk.Event
	for _, a := range p.analyzers {
		events := p.runAnalyzer(ctx, a, tx)
		out = append(out, events...)
	}
	return out
}

func (p *Pipeline) runAnalyzer(ctx context.Context, a Analyzer, tx TransactionContext) (events []risk.Event) {
	defer func() {
		if r := recover(); r != nil {
			err := &AnalyzerError{Analyzer: a.Name(), Cause: fmt.Errorf("panic: %v", r)}
			p.reportError(a.Name(), err, tx)
			events = nil
		}
	}()

	start := time.Now()
	result, err := a.Analyze(ctx, tx)
	if p.metrics != nil {
		p.metrics.AnalyzerDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		p.reportError(a.Name(), &AnalyzerError{Analyzer: a.Name(), Cause: err}, tx)
		return nil
	}
	for _, ev := range result {
		if p.metrics != nil {
			p.metrics.RiskEvents.WithLabelValues(string(ev.Kind), ev.Level.String()).Inc()
		}
	}
	return result
}

func (p *Pipeline) reportError(analyzer string, err error, tx TransactionContext) {
	if p.metrics != nil {
		p.metrics.AnalyzerErrors.WithLabelValues(analyzer).Inc()
	}
	if p.log != nil {
		p.log.Warn("analyzer failed",
			zap.String("analyzer", analyzer),
			zap.String("tx_digest", tx.Digest),
			zap.Error(err),
		)
	}
}
