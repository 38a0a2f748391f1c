package models

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roadpass/booking-backend/pkg/validator"
)

// PaymentStatus represents the settlement state of a booking
type PaymentStatus string

const (
	// PaymentStatusReserved means seats are exclusively allocated but no
	// gateway transaction exists yet. Transient: advanced or deleted within
	// the same orchestrated attempt.
	PaymentStatusReserved PaymentStatus = "reserved"

	// PaymentStatusPending means a gateway transaction has been initialized
	// and the money's true state is only known to the processor.
	PaymentStatusPending PaymentStatus = "pending"

	// PaymentStatusCompleted means money has moved successfully.
	PaymentStatusCompleted PaymentStatus = "completed"

	// PaymentStatusFailed means the gateway confirmed failure or the attempt
	// was counted as abandoned. Seats stay allocated.
	PaymentStatusFailed PaymentStatus = "failed"

	// PaymentStatusRefunded is terminal; money has been returned to the
	// passenger's wallet. Seats stay recorded for the manifest.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// paymentTransitions enumerates the legal status transitions
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusReserved:  {PaymentStatusPending, PaymentStatusCompleted},
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
	PaymentStatusFailed:    {},
	PaymentStatusRefunded:  {},
}

// CanTransition reports whether moving from s to target is a legal transition.
// A same-status re-application is not a transition; callers treat it as an
// idempotent no-op.
func (s PaymentStatus) CanTransition(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PaymentChannel records how a booking was paid for
type PaymentChannel string

const (
	PaymentChannelCard   PaymentChannel = "card"
	PaymentChannelWallet PaymentChannel = "wallet"
)

// Booking is the aggregate root for one purchase attempt. It exclusively owns
// its seat reservations and is mutated only through defined transitions.
type Booking struct {
	ID             string         `json:"id" db:"id"`
	Reference      string         `json:"reference" db:"reference"`
	UserID         *string        `json:"user_id,omitempty" db:"user_id"`
	RouteID        string         `json:"route_id" db:"route_id"`
	TravelDate     string         `json:"travel_date" db:"travel_date"`
	DepartureTime  string         `json:"departure_time" db:"departure_time"`
	PassengerName  string         `json:"passenger_name" db:"passenger_name"`
	PassengerEmail string         `json:"passenger_email" db:"passenger_email"`
	PassengerPhone string         `json:"passenger_phone" db:"passenger_phone"`
	NextOfKinName  string         `json:"next_of_kin_name" db:"next_of_kin_name"`
	NextOfKinPhone string         `json:"next_of_kin_phone" db:"next_of_kin_phone"`
	SeatCount      int            `json:"seat_count" db:"seat_count"`
	Amount         int64          `json:"amount" db:"amount"` // kobo
	PaymentStatus  PaymentStatus  `json:"payment_status" db:"payment_status"`
	PaymentChannel PaymentChannel `json:"payment_channel" db:"payment_channel"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// TripKey returns the trip key the booking was made against
func (b *Booking) TripKey() TripKey {
	return TripKey{
		RouteID:       b.RouteID,
		TravelDate:    b.TravelDate,
		DepartureTime: b.DepartureTime,
	}
}

// BookingSummary is the minimal receipt view returned by verification.
// No contact or next-of-kin fields beyond the passenger name.
type BookingSummary struct {
	Reference     string        `json:"reference"`
	PassengerName string        `json:"passenger_name"`
	RouteID       string        `json:"route_id"`
	TravelDate    string        `json:"travel_date"`
	DepartureTime string        `json:"departure_time"`
	SeatCount     int           `json:"seat_count"`
	Amount        int64         `json:"amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Summary strips the booking down to its receipt view
func (b *Booking) Summary() BookingSummary {
	return BookingSummary{
		Reference:     b.Reference,
		PassengerName: b.PassengerName,
		RouteID:       b.RouteID,
		TravelDate:    b.TravelDate,
		DepartureTime: b.DepartureTime,
		SeatCount:     b.SeatCount,
		Amount:        b.Amount,
		PaymentStatus: b.PaymentStatus,
	}
}

// ============================================================================
// BOOKING REFERENCE
// ============================================================================

// ReferencePrefix is the fixed prefix of every booking reference
const ReferencePrefix = "RPB-"

// referenceTokenLength is the number of random characters after the prefix
const referenceTokenLength = 10

// referenceCharset has 32 characters so a random byte maps onto it without
// modulo bias (256 is divisible by 32). Ambiguous characters are excluded.
const referenceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var referenceRegex = regexp.MustCompile(`^RPB-[A-Z0-9]{10}$`)

// NewBookingReference generates a globally unique, unguessable booking
// reference from a cryptographically strong random source.
// Format: RPB-XXXXXXXXXX (10 uppercase alphanumerics).
func NewBookingReference() (string, error) {
	buf := make([]byte, referenceTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(ReferencePrefix)
	for _, b := range buf {
		sb.WriteByte(referenceCharset[int(b)%len(referenceCharset)])
	}
	return sb.String(), nil
}

// IsValidReference reports whether ref matches the server-generated reference
// format. The verify endpoint rejects anything else before touching the
// gateway, so arbitrary strings cannot be probed against it.
func IsValidReference(ref string) bool {
	return referenceRegex.MatchString(ref)
}

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	phoneValidator = validator.NewPhoneValidator()
)

// PurchaseRequest carries the common purchase fields for the card-pay and
// wallet-pay flows
type PurchaseRequest struct {
	RouteID        string `json:"route_id" binding:"required"`
	TravelDate     string `json:"travel_date" binding:"required"`
	DepartureTime  string `json:"departure_time" binding:"required"`
	Seats          []int  `json:"seats" binding:"required"`
	Amount         int64  `json:"amount" binding:"required"`
	PassengerName  string `json:"passenger_name" binding:"required,max=100"`
	PassengerEmail string `json:"passenger_email" binding:"required,max=120"`
	PassengerPhone string `json:"passenger_phone" binding:"required,max=20"`
	NextOfKinName  string `json:"next_of_kin_name" binding:"required,max=100"`
	NextOfKinPhone string `json:"next_of_kin_phone" binding:"required,max=20"`
}

// TripKey builds the trip key addressed by the request
func (r *PurchaseRequest) TripKey() TripKey {
	return TripKey{
		RouteID:       r.RouteID,
		TravelDate:    r.TravelDate,
		DepartureTime: r.DepartureTime,
	}
}

// Validate applies the schema checks that must pass before any side effect
func (r *PurchaseRequest) Validate(totalSeats, maxSeatsPerBooking int) error {
	if err := r.TripKey().Validate(); err != nil {
		return err
	}
	if err := ValidateSeatSelection(r.Seats, totalSeats, maxSeatsPerBooking); err != nil {
		return err
	}
	if r.Amount <= 0 {
		return NewValidationError("amount must be positive")
	}
	if !emailRegex.MatchString(r.PassengerEmail) {
		return NewValidationError("passenger_email is not a valid email address")
	}
	if err := phoneValidator.Validate(r.PassengerPhone); err != nil {
		return NewValidationError("passenger_phone: %v", err)
	}
	if err := phoneValidator.Validate(r.NextOfKinPhone); err != nil {
		return NewValidationError("next_of_kin_phone: %v", err)
	}
	if strings.TrimSpace(r.PassengerName) == "" {
		return NewValidationError("passenger_name cannot be blank")
	}
	if strings.TrimSpace(r.NextOfKinName) == "" {
		return NewValidationError("next_of_kin_name cannot be blank")
	}
	return nil
}

// InitializePurchaseResponse is returned by the card-pay initialize flow
type InitializePurchaseResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// VerifyPurchaseResponse is returned by the card-pay verify flow
type VerifyPurchaseResponse struct {
	Status  PaymentStatus  `json:"status"`
	Booking BookingSummary `json:"booking"`
}

// WalletPayResponse is returned by the wallet-pay flow
type WalletPayResponse struct {
	Reference  string `json:"reference"`
	NewBalance int64  `json:"new_balance"`
}

// RefundRequest is the privileged input to the refund flow
type RefundRequest struct {
	BookingID      string `json:"booking_id" binding:"required"`
	PassengerEmail string `json:"passenger_email" binding:"required,max=120"`
	Amount         int64  `json:"amount" binding:"required"`
	Reason         string `json:"reason" binding:"max=255"`
}

// Validate applies the schema checks for a refund request
func (r *RefundRequest) Validate() error {
	if r.Amount <= 0 {
		return NewValidationError("amount must be positive")
	}
	if !emailRegex.MatchString(r.PassengerEmail) {
		return NewValidationError("passenger_email is not a valid email address")
	}
	return nil
}

// RefundResponse is returned by the refund flow
type RefundResponse struct {
	BookingReference string `json:"booking_reference"`
	NewWalletBalance int64  `json:"new_wallet_balance"`
}
