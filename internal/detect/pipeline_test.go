package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/DimaJoyti/defi-sentinel/internal/chainevent"
	"github.com/DimaJoyti/defi-sentinel/internal/risk"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
	"github.com/DimaJoyti/defi-sentinel/pkg/metrics"
)

type recordingAnalyzer struct {
	name  string
	calls *[]string
	ev    risk.Event
	err   error
	panic bool
}

func (a *recordingAnalyzer) Name() string { return a.name }

func (a *recordingAnalyzer) Analyze(_ context.Context, _ TransactionContext) ([]risk.Event, error) {
	*a.calls = append(*a.calls, a.name)
	if a.panic {
		panic("boom")
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.ev.Kind != "" {
		return []risk.Event{a.ev}, nil
	}
	return nil, nil
}

func TestPipeline_SkipsTransactionsThatNeverTouchTargetPackage(t *testing.T) {
	var calls []string
	a := &recordingAnalyzer{name: "a", calls: &calls}
	p := NewPipeline("0xtarget", logger.Nop(), metrics.New(), a)

	tx := TransactionContext{Events: []chainevent.Event{{PackageID: "0xother"}}}
	events := p.Process(context.Background(), tx)
	if events != nil {
		t.Fatalf("expected no events, got %v", events)
	}
	if len(calls) != 0 {
		t.Fatalf("expected no analyzer calls when the package never matches, got %v", calls)
	}
}

func TestPipeline_RunsAnalyzersInOrderAndConcatenatesResults(t *testing.T) {
	var calls []string
	a1 := &recordingAnalyzer{name: "first", calls: &calls, ev: risk.New(risk.KindFlashLoan, risk.LevelLow, 10, "tx", "s", 1, 1, "d", nil)}
	a2 := &recordingAnalyzer{name: "second", calls: &calls, ev: risk.New(risk.KindPriceManipulation, risk.LevelLow, 10, "tx", "s", 1, 1, "d", nil)}
	p := NewPipeline("0xtarget", logger.Nop(), metrics.New(), a1, a2)

	tx := TransactionContext{Events: []chainevent.Event{{PackageID: "0xtarget"}}}
	events := p.Process(context.Background(), tx)

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected ordered calls [first second], got %v", calls)
	}
	if len(events) != 2 {
		t.Fatalf("expected both analyzers' events concatenated, got %d", len(events))
	}
}

func TestPipeline_RecoversFromPanickingAnalyzer(t *testing.T) {
	var calls []string
	panicking := &recordingAnalyzer{name: "panics", calls: &calls, panic: true}
	after := &recordingAnalyzer{name: "after", calls: &calls, ev: risk.New(risk.KindSandwich, risk.LevelLow, 10, "tx", "s", 1, 1, "d", nil)}
	p := NewPipeline("0xtarget", logger.Nop(), metrics.New(), panicking, after)

	tx := TransactionContext{Events: []chainevent.Event{{PackageID: "0xtarget"}}}
	events := p.Process(context.Background(), tx)

	if len(calls) != 2 {
		t.Fatalf("expected the panicking analyzer to not block the next one, got calls %v", calls)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the surviving analyzer's event, got %d", len(events))
	}
}

func TestPipeline_AnalyzerErrorDoesNotStopPipeline(t *testing.T) {
	var calls []string
	erroring := &recordingAnalyzer{name: "errors", calls: &calls, err: errors.New("boom")}
	after := &recordingAnalyzer{name: "after", calls: &calls, ev: risk.New(risk.KindOracleManipulation, risk.LevelLow, 10, "tx", "s", 1, 1, "d", nil)}
	p := NewPipeline("0xtarget", logger.Nop(), metrics.New(), erroring, after)

	tx := TransactionContext{Events: []chainevent.Event{{PackageID: "0xtarget"}}}
	events := p.Process(context.Background(), tx)

	if len(calls) != 2 {
		t.Fatalf("expected both analyzers to run, got %v", calls)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the surviving analyzer's event, got %d", len(events))
	}
}
