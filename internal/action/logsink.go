package action

import (
	"context"

	"go.uber.org/zap"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
)

// LogSink writes every risk event as a structured log line. It never
// fails: logging is the backstop delivery path when every other sink is
// down, so it has no external dependency to fail against.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Named("log-sink")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Dispatch(_ context.Context, ev risk.Event) error {
	s.log.Warn("risk event detected",
		zap.String("id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("level", ev.Level.String()),
		zap.Uint16("score", ev.Score),
		zap.String("tx_digest", ev.TxDigest),
		zap.String("sender", ev.Sender),
		zap.Uint64("checkpoint_seq", ev.CheckpointSeq),
		zap.String("description", ev.Description),
	)
	return nil
}
