package action

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
	"github.com/DimaJoyti/defi-sentinel/pkg/metrics"
	"go.uber.org/zap"
)

type registration struct {
	sink     Sink
	minLevel risk.Level
}

// Manager fans a risk event out to every registered sink whose minimum
// level the event meets or exceeds. Sinks run concurrently and are
// isolated from one another: a sink that times out or errors does not
// cancel its siblings, and every sink's error is reported rather than
// just the first.
type Manager struct {
	log         *logger.Logger
	metrics     *metrics.Metrics
	sinkTimeout time.Duration

	registrations []registration
}

// NewManager builds a Manager. sinkTimeout bounds how long any single
// sink's Dispatch call may run before it is cancelled.
func NewManager(log *logger.Logger, m *metrics.Metrics, sinkTimeout time.Duration) *Manager {
	return &Manager{log: log.Named("action-manager"), metrics: m, sinkTimeout: sinkTimeout}
}

// Register adds a sink, delivered only events at or above minLevel.
func (mgr *Manager) Register(sink Sink, minLevel risk.Level) {
	mgr.registrations = append(mgr.registrations, registration{sink: sink, minLevel: minLevel})
}

// Dispatch delivers ev to every eligible sink concurrently and returns a
// joined error of every sink that failed, or nil if all succeeded.
func (mgr *Manager) Dispatch(ctx context.Context, ev risk.Event) error {
	var g errgroup.Group
	errs := make([]error, len(mgr.registrations))

	for i, reg := range mgr.registrations {
		if ev.Level < reg.minLevel {
			continue
		}
		i, reg := i, reg
		g.Go(func() error {
			sinkCtx, cancel := context.WithTimeout(ctx, mgr.sinkTimeout)
			defer cancel()

			if err := reg.sink.Dispatch(sinkCtx, ev); err != nil {
				sinkErr := &SinkError{Sink: reg.sink.Name(), Cause: err}
				errs[i] = sinkErr
				mgr.metrics.SinkErrors.WithLabelValues(reg.sink.Name()).Inc()
				mgr.log.Error("sink dispatch failed",
					zap.String("sink", reg.sink.Name()),
					zap.String("risk_event_id", ev.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	// g.Wait's own error is always nil: each goroutine above swallows its
	// sink's error into errs so one failing sink never short-circuits the
	// others.
	_ = g.Wait()

	return errors.Join(errs...)
}
