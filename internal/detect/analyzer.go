package detect

import (
	"context"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// Analyzer inspects a single transaction and reports zero or more risk
// events. Implementations must not block: the pipeline calls every
// analyzer sequentially and in a fixed order.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, tx TransactionContext) ([]risk.Event, error)
}
