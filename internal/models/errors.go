package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repositories and services
var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidReference = errors.New("invalid booking reference")
	ErrAlreadyRefunded  = errors.New("booking has already been refunded")
	ErrNotRefundable    = errors.New("only completed bookings can be refunded")
	ErrEmailMismatch    = errors.New("passenger email does not match booking")
)

// ValidationError marks request input that failed a schema check. Its message
// names the offending field and is safe to return to clients; anything else
// that reaches the handler boundary untyped is treated as internal.
type ValidationError struct {
	msg string
}

// NewValidationError builds a ValidationError from a format string
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.msg
}

// SeatConflictError is returned when a reservation attempt collides with
// seats already held for the same trip key. TakenSeats names the specific
// seats so the caller can retry meaningfully.
type SeatConflictError struct {
	Trip       TripKey
	TakenSeats []int
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats %v are already taken for trip %s", e.TakenSeats, e.Trip)
}

// InsufficientFundsError is returned when an atomic wallet debit finds the
// balance cannot cover the amount. Balance carries the current balance for
// the caller's error payload.
type InsufficientFundsError struct {
	Balance int64
	Amount  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: have %d, need %d", e.Balance, e.Amount)
}

// GatewayError wraps a payment gateway failure. During initialize it triggers
// a full rollback; during verify it means the money's state is indeterminate
// and the booking stays pending.
type GatewayError struct {
	Op         string // "initialize" or "verify"
	StatusCode int    // zero for transport errors
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
