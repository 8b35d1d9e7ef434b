package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// StoreSink persists every risk event to Postgres for durable querying
// and writes it through to Redis under a per-sender key, so the latest
// event for each sender is readable without hitting the database. Each
// write replaces that sender's previous cached event.
type StoreSink struct {
	db       *sqlx.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewStoreSink builds a StoreSink. db and cache are expected to already
// be connected; StoreSink never manages their lifecycle.
func NewStoreSink(db *sqlx.DB, cache *redis.Client, cacheTTL time.Duration) *StoreSink {
	return &StoreSink{db: db, cache: cache, cacheTTL: cacheTTL}
}

func (s *StoreSink) Name() string { return "store" }

type riskEventRow struct {
	ID            string `db:"id"`
	Kind          string `db:"kind"`
	Level         string `db:"level"`
	Score         uint16 `db:"score"`
	TxDigest      string `db:"tx_digest"`
	Sender        string `db:"sender"`
	CheckpointSeq uint64 `db:"checkpoint_seq"`
	TimestampMs   uint64 `db:"timestamp_ms"`
	Description   string `db:"description"`
	Detail        []byte `db:"detail"`
}

func (s *StoreSink) Dispatch(ctx context.Context, ev risk.Event) error {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}

	row := riskEventRow{
		ID: ev.ID, Kind: string(ev.Kind), Level: ev.Level.String(), Score: ev.Score,
		TxDigest: ev.TxDigest, Sender: ev.Sender, CheckpointSeq: ev.CheckpointSeq,
		TimestampMs: ev.TimestampMs, Description: ev.Description, Detail: detail,
	}

	const query = `
		INSERT INTO risk_events (
			id, kind, level, score, tx_digest, sender, checkpoint_seq, timestamp_ms, description, detail
		) VALUES (
			:id, :kind, :level, :score, :tx_digest, :sender, :checkpoint_seq, :timestamp_ms, :description, :detail
		)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert risk event: %w", err)
	}

	cached, err := json.Marshal(newRiskEventWire(ev))
	if err != nil {
		return fmt.Errorf("marshal cached risk event: %w", err)
	}
	cacheKey := fmt.Sprintf("sentinel:last_risk_event:%s", ev.Sender)
	if err := s.cache.Set(ctx, cacheKey, cached, s.cacheTTL).Err(); err != nil {
		return fmt.Errorf("cache risk event: %w", err)
	}
	return nil
}
