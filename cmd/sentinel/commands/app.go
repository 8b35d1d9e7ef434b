package commands

import (
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/DimaJoyti/defi-sentinel/internal/action"
	"github.com/DimaJoyti/defi-sentinel/internal/detect"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
	"github.com/DimaJoyti/defi-sentinel/pkg/config"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
	"github.com/DimaJoyti/defi-sentinel/pkg/metrics"
)

// riskLevelOrDefault parses s as a risk.Level, reporting false if it is
// non-empty but not a recognized level name. An empty s yields fallback.
func riskLevelOrDefault(s string, fallback risk.Level) (risk.Level, bool) {
	if s == "" {
		return fallback, true
	}
	return risk.ParseLevel(s)
}

// buildPipeline wires the fixed four-analyzer pipeline from config.
func buildPipeline(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *detect.Pipeline {
	fl := cfg.Analyzer.FlashLoan
	pr := cfg.Analyzer.Price
	sw := cfg.Analyzer.Sandwich
	or := cfg.Analyzer.Oracle

	return detect.NewPipeline(cfg.Service.TargetPackage, log, m,
		detect.NewFlashLoanAnalyzer(fl.MinSwapCount, fl.ScoreFloor, fl.LargeLoanAmt),
		detect.NewPriceAnalyzer(pr.ScoreFloor, pr.MinDepthRatioBps, pr.TWAPDeviationBpsHigh),
		detect.NewSandwichAnalyzer(sw.BufferCapacity, uint64(sw.MaxCheckpointAge), sw.ScoreFloor),
		detect.NewOracleAnalyzer(or.ScoreFloor, or.MinBorrowAmount, or.HealthFactorHighBps),
	)
}

// buildActionManager wires every sink enabled in config onto a Manager.
// It returns a closer that releases any connections the enabled sinks
// opened, to be called during shutdown.
func buildActionManager(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*action.Manager, func() error, error) {
	mgr := action.NewManager(log, m, cfg.SinkTimeout())
	mgr.Register(action.NewLogSink(log), risk.LevelLow)

	var closers []io.Closer

	if cfg.Action.Alert.Enabled {
		minLevel, ok := riskLevelOrDefault(cfg.Action.Alert.MinLevel, risk.LevelLow)
		if !ok {
			return nil, nil, fmt.Errorf("config: action.alert.min_level %q is invalid", cfg.Action.Alert.MinLevel)
		}
		mgr.Register(action.NewAlertSink(cfg.Action.Alert.WebhookURL, float64(cfg.Action.Alert.RatePerSec), cfg.Action.Alert.Burst), minLevel)
	}

	if cfg.Action.Store.Enabled {
		minLevel, ok := riskLevelOrDefault(cfg.Action.Store.MinLevel, risk.LevelLow)
		if !ok {
			return nil, nil, fmt.Errorf("config: action.store.min_level %q is invalid", cfg.Action.Store.MinLevel)
		}
		db, err := sqlx.Connect("postgres", cfg.Action.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect store postgres: %w", err)
		}
		closers = append(closers, db)

		cache := redis.NewClient(&redis.Options{Addr: cfg.Action.Store.RedisAddr})
		closers = append(closers, cache)

		mgr.Register(action.NewStoreSink(db, cache, cfg.SinkTimeout()), minLevel)
	}

	if cfg.Action.Index.Enabled {
		minLevel, ok := riskLevelOrDefault(cfg.Action.Index.MinLevel, risk.LevelLow)
		if !ok {
			return nil, nil, fmt.Errorf("config: action.index.min_level %q is invalid", cfg.Action.Index.MinLevel)
		}
		idx, err := action.NewIndexSink(cfg.Action.Index.Brokers, cfg.Action.Index.Topic)
		if err != nil {
			return nil, nil, fmt.Errorf("build index sink: %w", err)
		}
		closers = append(closers, idx)
		mgr.Register(idx, minLevel)
	}

	closeAll := func() error {
		var err error
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}
	return mgr, closeAll, nil
}
