// Package risk defines the output vocabulary of the detection pipeline:
// the kinds of attack an analyzer can report and the event shape used to
// hand a finding off to the action manager.
package risk

import "github.com/google/uuid"

// Kind identifies which analyzer produced a risk event.
type Kind string

const (
	KindFlashLoan          Kind = "flash_loan"
	KindPriceManipulation  Kind = "price_manipulation"
	KindSandwich           Kind = "sandwich"
	KindOracleManipulation Kind = "oracle_manipulation"
)

// Level is a risk event's severity bucket, ordered Low < Medium < High <
// Critical.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseLevel parses the lowercase level names used in configuration
// (sink minimum-level thresholds).
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "low":
		return LevelLow, true
	case "medium":
		return LevelMedium, true
	case "high":
		return LevelHigh, true
	case "critical":
		return LevelCritical, true
	default:
		return 0, false
	}
}

// Event is one finding emitted by an analyzer.
type Event struct {
	ID            string
	Kind          Kind
	Level         Level
	Score         uint16
	TxDigest      string
	Sender        string
	CheckpointSeq uint64
	TimestampMs   uint64
	Description   string
	Detail        map[string]interface{}
}

// New builds an Event, assigning a fresh id.
func New(kind Kind, level Level, score uint16, txDigest, sender string, checkpointSeq, timestampMs uint64, description string, detail map[string]interface{}) Event {
	return Event{
		ID:            uuid.NewString(),
		Kind:          kind,
		Level:         level,
		Score:         score,
		TxDigest:      txDigest,
		Sender:        sender,
		CheckpointSeq: checkpointSeq,
		TimestampMs:   timestampMs,
		Description:   description,
		Detail:        detail,
	}
}
