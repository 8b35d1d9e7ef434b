package chainevent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawEvent is the indexer's view of one emitted event before decoding: a
// fully qualified Move type name and a generic JSON-object payload.
type RawEvent struct {
	TypeName   string
	PackageID  string
	EventIndex uint64
	Payload    map[string]interface{}
}

// DecodeError reports a recognized event type whose payload could not be
// parsed. It is only ever returned when strict decoding is enabled;
// otherwise malformed or incomplete payloads are dropped silently.
type DecodeError struct {
	TypeName string
	Field    string
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("chainevent: decode %s: field %q: %v", e.TypeName, e.Field, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// variantSuffix returns the "module::Type" suffix of a fully qualified Move
// type name, e.g. "0xabc::amm::SwapExecuted" -> "amm::SwapExecuted". This
// is what the decoder keys its registry on, so that a package upgrade
// (which changes the leading address) never breaks recognition.
func variantSuffix(typeName string) string {
	parts := strings.Split(typeName, "::")
	if len(parts) < 2 {
		return typeName
	}
	return strings.Join(parts[len(parts)-2:], "::")
}

type decodeFunc func(raw RawEvent, strict bool) (Event, bool, error)

var registry = map[string]decodeFunc{
	"amm::SwapExecuted":              decodeSwapExecuted,
	"amm::FlashLoanTaken":            decodeFlashLoanTaken,
	"amm::FlashLoanRepaid":           decodeFlashLoanRepaid,
	"oracle::TWAPUpdated":            decodeTWAPUpdated,
	"oracle::PriceDeviationDetected": decodePriceDeviationDetected,
	"lending::BorrowEvent":           decodeBorrowEvent,
}

// Decode turns a raw indexer event into a chainevent.Event. The second
// return value reports whether the event was recognized and fully
// populated; false means the caller should simply skip it (unknown type,
// or a recognized type missing a required field). The error is non-nil
// only in strict mode, when a recognized type has a value present for a
// field but in a shape that cannot be coerced to the expected type.
func Decode(raw RawEvent, strict bool) (Event, bool, error) {
	suffix := variantSuffix(raw.TypeName)
	fn, ok := registry[suffix]
	if !ok {
		return Event{}, false, nil
	}
	return fn(raw, strict)
}

// field coercion helpers. Payload values may arrive as json.Number,
// float64, string, or bool depending on how the host's JSON decoder was
// configured; these helpers accept any of the numeric representations and
// report a ternary status so the caller can tell "absent" (drop silently)
// from "present but malformed" (strict-mode error) apart.

type fieldStatus int

const (
	fieldOK fieldStatus = iota
	fieldMissing
	fieldMalformed
)

func getUint64(payload map[string]interface{}, key string) (uint64, fieldStatus) {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0, fieldMissing
	}
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, fieldMalformed
		}
		return uint64(t), fieldOK
	case json.Number:
		n, err := strconv.ParseUint(string(t), 10, 64)
		if err != nil {
			return 0, fieldMalformed
		}
		return n, fieldOK
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, fieldMalformed
		}
		return n, fieldOK
	default:
		return 0, fieldMalformed
	}
}

func getString(payload map[string]interface{}, key string) (string, fieldStatus) {
	v, ok := payload[key]
	if !ok || v == nil {
		return "", fieldMissing
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldMalformed
	}
	return s, fieldOK
}

func getBool(payload map[string]interface{}, key string) (bool, fieldStatus) {
	v, ok := payload[key]
	if !ok || v == nil {
		return false, fieldMissing
	}
	b, ok := v.(bool)
	if !ok {
		return false, fieldMalformed
	}
	return b, fieldOK
}

// fieldReader accumulates field reads for one decode call and reports the
// first problem encountered, so each decodeXxx function can read every
// field unconditionally and check once at the end.
type fieldReader struct {
	raw       RawEvent
	strict    bool
	malformed string
	missing   bool
}

func newFieldReader(raw RawEvent, strict bool) *fieldReader {
	return &fieldReader{raw: raw, strict: strict}
}

func (r *fieldReader) uint64(key string) uint64 {
	v, status := getUint64(r.raw.Payload, key)
	r.note(key, status)
	return v
}

func (r *fieldReader) string(key string) string {
	v, status := getString(r.raw.Payload, key)
	r.note(key, status)
	return v
}

func (r *fieldReader) bool(key string) bool {
	v, status := getBool(r.raw.Payload, key)
	r.note(key, status)
	return v
}

func (r *fieldReader) note(key string, status fieldStatus) {
	if r.malformed != "" || r.missing {
		return
	}
	switch status {
	case fieldMissing:
		r.missing = true
	case fieldMalformed:
		r.malformed = key
	}
}

// result reports whether the event should be dropped (ok=false) and the
// error to surface, if any, given the fields read so far.
func (r *fieldReader) result() (bool, error) {
	if r.missing {
		return false, nil
	}
	if r.malformed != "" {
		if r.strict {
			return false, &DecodeError{TypeName: r.raw.TypeName, Field: r.malformed, Cause: fmt.Errorf("value could not be coerced to the expected type")}
		}
		return false, nil
	}
	return true, nil
}

func decodeSwapExecuted(raw RawEvent, strict bool) (Event, bool, error) {
	r := newFieldReader(raw, strict)
	v := SwapExecuted{
		PoolID:         r.string("pool_id"),
		Sender:         r.string("sender"),
		TokenInIsA:     r.bool("token_in_is_a"),
		AmountIn:       r.uint64("amount_in"),
		AmountOut:      r.uint64("amount_out"),
		FeeAmount:      r.uint64("fee_amount"),
		ReserveAAfter:  r.uint64("reserve_a_after"),
		ReserveBAfter:  r.uint64("reserve_b_after"),
		PriceImpactBps: r.uint64("price_impact_bps"),
	}
	ok, err := r.result()
	if !ok || err != nil {
		return Event{}, false, err
	}
	return Event{Kind: KindSwapExecuted, PackageID: raw.PackageID, EventIndex: raw.EventIndex, Swap: &v}, true, nil
}

func decodeFlashLoanTaken(raw RawEvent, strict bool) (Event, bool, error) {
	r := newFieldReader(raw, strict)
	v := FlashLoanTaken{
		PoolID:   r.string("pool_id"),
		Borrower: r.string("borrower"),
		Amount:   r.uint64("amount"),
		Fee:      r.uint64("fee"),
	}
	ok, err := r.result()
	if !ok || err != nil {
		return Event{}, false, err
	}
	return Event{Kind: KindFlashLoanTaken, PackageID: raw.PackageID, EventIndex: raw.EventIndex, FlashLoanTaken: &v}, true, nil
}

func decodeFlashLoanRepaid(raw RawEvent, strict bool) (Event, bool, error) {
	r := newFieldReader(raw, strict)
	v := FlashLoanRepaid{
		PoolID:   r.string("pool_id"),
		Borrower: r.string("borrower"),
		Amount:   r.uint64("amount"),
		Fee:      r.uint64("fee"),
	}
	ok, err := r.result()
	if !ok || err != nil {
		return Event{}, false, err
	}
	return Event{Kind: KindFlashLoanRepaid, PackageID: raw.PackageID, EventIndex: raw.EventIndex, FlashLoanRepaid: &v}, true, nil
}

func decodeTWAPUpdated(raw RawEvent, strict bool) (Event, bool, error) {
	r := newFieldReader(raw, strict)
	v := TWAPUpdated{
		PoolID:            r.string("pool_id"),
		TWAPPrice:         r.uint64("twap_price"),
		SpotPrice:         r.uint64("spot_price"),
		PriceDeviationBps: r.uint64("price_deviation_bps"),
		TimestampMs:       r.uint64("timestamp_ms"),
	}
	ok, err := r.result()
	if !ok || err != nil {
		return Event{}, false, err
	}
	return Event{Kind: KindTWAPUpdated, PackageID: raw.PackageID, EventIndex: raw.EventIndex, TWAPUpdated: &v}, true, nil
}

func decodePriceDeviationDetected(raw RawEvent, strict bool) (Event, bool, error) {
	r := newFieldReader(raw, strict)
	v := PriceDeviationDetected{
		PoolID:       r.string("pool_id"),
		TWAPPrice:    r.uint64("twap_price"),
		SpotPrice:    r.uint64("spot_price"),
		DeviationBps: r.uint64("deviation_bps"),
		TimestampMs:  r.uint64("timestamp_ms"),
	}
	ok, err := r.result()
	if !ok || err != nil {
		return Event{}, false, err
	}
	return Event{Kind: KindPriceDeviationDetected, PackageID: raw.PackageID, EventIndex: raw.EventIndex, PriceDeviation: &v}, true, nil
}

func decodeBorrowEvent(raw RawEvent, strict bool) (Event, bool, error) {
	r := newFieldReader(raw, strict)
	v := BorrowEvent{
		MarketID:        r.string("market_id"),
		Borrower:        r.string("borrower"),
		PositionID:      r.string("position_id"),
		BorrowAmount:    r.uint64("borrow_amount"),
		CollateralValue: r.uint64("collateral_value"),
		OraclePrice:     r.uint64("oracle_price"),
		HealthFactorBps: r.uint64("health_factor_bps"),
		TimestampMs:     r.uint64("timestamp_ms"),
	}
	ok, err := r.result()
	if !ok || err != nil {
		return Event{}, false, err
	}
	return Event{Kind: KindBorrowEvent, PackageID: raw.PackageID, EventIndex: raw.EventIndex, Borrow: &v}, true, nil
}
