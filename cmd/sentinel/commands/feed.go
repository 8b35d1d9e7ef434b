package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/DimaJoyti/defi-sentinel/internal/action"
	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/detect"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
	"github.com/DimaJoyti/defi-sentinel/pkg/metrics"
)

// feedTransaction is the NDJSON shape one line of the transaction feed is
// decoded into.
type feedTransaction struct {
	Digest        string      `json:"digest"`
	Sender        string      `json:"sender"`
	CheckpointSeq uint64      `json:"checkpoint_seq"`
	TimestampMs   uint64      `json:"timestamp_ms"`
	Events        []feedEvent `json:"events"`
}

type feedEvent struct {
	Type       string                 `json:"type"`
	PackageID  string                 `json:"package_id"`
	EventIndex uint64                 `json:"event_index"`
	Payload    map[string]interface{} `json:"payload"`
}

// runFeed reads NDJSON transactions from r, one per line, decodes their
// events, runs them through the pipeline, and dispatches any risk events
// through the action manager. It returns the number of transactions
// processed and the first fatal (non-decode) error encountered, if any.
func runFeed(ctx context.Context, r io.Reader, strictDecoding bool, pipeline *detect.Pipeline, mgr *action.Manager, log *logger.Logger, m *metrics.Metrics) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	processed := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ft feedTransaction
		if err := json.Unmarshal(line, &ft); err != nil {
			log.Error("malformed feed line, skipping", zap.Error(err))
			continue
		}

		tx := detect.TransactionContext{
			Digest: ft.Digest, Sender: ft.Sender,
			CheckpointSeq: ft.CheckpointSeq, TimestampMs: ft.TimestampMs,
		}
		for _, fe := range ft.Events {
			ev, ok, err := chainevent.Decode(chainevent.RawEvent{
				TypeName: fe.Type, PackageID: fe.PackageID, EventIndex: fe.EventIndex, Payload: fe.Payload,
			}, strictDecoding)
			if err != nil {
				m.DecodeErrors.WithLabelValues().Inc()
				log.Warn("dropping malformed event", zap.String("tx_digest", ft.Digest), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			tx.Events = append(tx.Events, ev)
		}

		risks := pipeline.Process(ctx, tx)
		for _, rev := range risks {
			if err := mgr.Dispatch(ctx, rev); err != nil {
				log.Error("action dispatch reported sink failures", zap.String("risk_event_id", rev.ID), zap.Error(err))
			}
		}
		processed++
	}
	if err := scanner.Err(); err != nil {
		return processed, fmt.Errorf("read feed: %w", err)
	}
	return processed, nil
}
