// Package action fans a risk event out to every sink interested in it:
// a structured log line, an outbound webhook alert, a Postgres/Redis
// store, and a Kafka topic for downstream indexing.
package action

import (
	"context"
	"fmt"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// Sink delivers one risk event somewhere. Implementations must be safe
// for concurrent use: the Manager may call Dispatch on several sinks for
// the same event at once.
type Sink interface {
	Name() string
	Dispatch(ctx context.Context, ev risk.Event) error
}

// SinkError wraps a failure from a named sink so callers can tell which
// sink failed without string-matching the message.
type SinkError struct {
	Sink  string
	Cause error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Cause)
}

func (e *SinkError) Unwrap() error { return e.Cause }

// riskEventWire is the snake_case-tagged shape a risk event takes wherever
// it crosses a wire (a webhook body, a Kafka message): spec.md §6's
// {kind, level, score, tx_digest, sender, checkpoint_seq, timestamp_ms,
// description, detail}, plus the event's id. risk.Event itself carries no
// JSON tags and an untagged int Level, so sinks that serialize it build
// this instead of marshaling the domain struct directly.
type riskEventWire struct {
	ID            string                 `json:"id"`
	Kind          string                 `json:"kind"`
	Level         string                 `json:"level"`
	Score         uint16                 `json:"score"`
	TxDigest      string                 `json:"tx_digest"`
	Sender        string                 `json:"sender"`
	CheckpointSeq uint64                 `json:"checkpoint_seq"`
	TimestampMs   uint64                 `json:"timestamp_ms"`
	Description   string                 `json:"description"`
	Detail        map[string]interface{} `json:"detail"`
}

func newRiskEventWire(ev risk.Event) riskEventWire {
	return riskEventWire{
		ID: ev.ID, Kind: string(ev.Kind), Level: ev.Level.String(), Score: ev.Score,
		TxDigest: ev.TxDigest, Sender: ev.Sender, CheckpointSeq: ev.CheckpointSeq,
		TimestampMs: ev.TimestampMs, Description: ev.Description, Detail: ev.Detail,
	}
}
