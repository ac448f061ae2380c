package sentinel

import "errors"

// Sentinel errors for facts the stores and ledger report. Services and
// transports match on these with errors.Is and translate them into domain
// errors at the boundary.
//
// These represent factual states, not transport concerns:
// - ErrNotFound: entity does not exist in the store
// - ErrInvalidAmount: a ledger mutation was requested with a non-positive
//   amount; a caller or rule-author bug, never retried
// - ErrInsufficientBalance: a subtraction exceeds the current balance; an
//   expected business condition, surfaced for domain handling
// - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnavailable         = errors.New("unavailable")
)
