package detect

import "github.com/DimaJoyti/defi-sentinel/internal/chainevent"

// TransactionContext is one transaction's worth of decoded events, in
// emission order, handed to every analyzer in the pipeline.
type TransactionContext struct {
	Digest        string
	Sender        string
	CheckpointSeq uint64
	TimestampMs   uint64
	Events        []chainevent.Event
}

// TouchesPackage reports whether any event in the transaction belongs to
// the given package id. The pipeline uses this to skip transactions that
// never touch the target protocol before running any analyzer.
func (tx TransactionContext) TouchesPackage(packageID string) bool {
	for _, ev := range tx.Events {
		if ev.PackageID == packageID {
			return true
		}
	}
	return false
}

// Swaps returns every SwapExecuted event in the transaction, in order.
func (tx TransactionContext) Swaps() []*chainevent.SwapExecuted {
	var out []*chainevent.SwapExecuted
	for _, ev := range tx.Events {
		if ev.Kind == chainevent.KindSwapExecuted {
			out = append(out, ev.Swap)
		}
	}
	return out
}

// FlashLoansTaken returns every FlashLoanTaken event in the transaction.
func (tx TransactionContext) FlashLoansTaken() []*chainevent.FlashLoanTaken {
	var out []*chainevent.FlashLoanTaken
	for _, ev := range tx.Events {
		if ev.Kind == chainevent.KindFlashLoanTaken {
			out = append(out, ev.FlashLoanTaken)
		}
	}
	return out
}

// FlashLoansRepaid returns every FlashLoanRepaid event in the transaction.
func (tx TransactionContext) FlashLoansRepaid() []*chainevent.FlashLoanRepaid {
	var out []*chainevent.FlashLoanRepaid
	for _, ev := range tx.Events {
		if ev.Kind == chainevent.KindFlashLoanRepaid {
			out = append(out, ev.FlashLoanRepaid)
		}
	}
	return out
}

// BorrowEvents returns every BorrowEvent in the transaction.
func (tx TransactionContext) BorrowEvents() []*chainevent.BorrowEvent {
	var out []*chainevent.BorrowEvent
	for _, ev := range tx.Events {
		if ev.Kind == chainevent.KindBorrowEvent {
			out = append(out, ev.Borrow)
		}
	}
	return out
}
