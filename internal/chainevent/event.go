// Package chainevent defines the decoded on-chain event model the
// detection pipeline operates on, and the decoder that turns a raw
// indexer-supplied event into one of its closed set of variants.
package chainevent

// Kind identifies which variant of Event is populated.
type Kind string

const (
	KindSwapExecuted           Kind = "SwapExecuted"
	KindFlashLoanTaken         Kind = "FlashLoanTaken"
	KindFlashLoanRepaid        Kind = "FlashLoanRepaid"
	KindTWAPUpdated            Kind = "TWAPUpdated"
	KindPriceDeviationDetected Kind = "PriceDeviationDetected"
	KindBorrowEvent            Kind = "BorrowEvent"
)

// SwapExecuted records one AMM swap against a constant-product pool.
type SwapExecuted struct {
	PoolID         string
	Sender         string
	TokenInIsA     bool
	AmountIn       uint64
	AmountOut      uint64
	FeeAmount      uint64
	ReserveAAfter  uint64
	ReserveBAfter  uint64
	PriceImpactBps uint64
}

// FlashLoanTaken records a flash-loan draw.
type FlashLoanTaken struct {
	PoolID   string
	Borrower string
	Amount   uint64
	Fee      uint64
}

// FlashLoanRepaid records a flash-loan repayment.
type FlashLoanRepaid struct {
	PoolID   string
	Borrower string
	Amount   uint64
	Fee      uint64
}

// TWAPUpdated records an oracle's time-weighted-average-price checkpoint.
type TWAPUpdated struct {
	PoolID            string
	TWAPPrice         uint64
	SpotPrice         uint64
	PriceDeviationBps uint64
	TimestampMs       uint64
}

// PriceDeviationDetected records an oracle module's own deviation alarm.
type PriceDeviationDetected struct {
	PoolID       string
	TWAPPrice    uint64
	SpotPrice    uint64
	DeviationBps uint64
	TimestampMs  uint64
}

// BorrowEvent records a lending-market borrow against collateral.
type BorrowEvent struct {
	MarketID        string
	Borrower        string
	PositionID      string
	BorrowAmount    uint64
	CollateralValue uint64
	OraclePrice     uint64
	HealthFactorBps uint64
	TimestampMs     uint64
}

// Event is a closed tagged variant: Kind names which of the pointer fields
// below is populated. Exactly one is non-nil for any successfully decoded
// Event.
type Event struct {
	Kind       Kind
	PackageID  string
	EventIndex uint64

	Swap            *SwapExecuted
	FlashLoanTaken  *FlashLoanTaken
	FlashLoanRepaid *FlashLoanRepaid
	TWAPUpdated     *TWAPUpdated
	PriceDeviation  *PriceDeviationDetected
	Borrow          *BorrowEvent
}
